package scoring

import (
	"math"
	"math/rand"
	"testing"

	"homescore/internal/feature"
)

func randomVector(r *rand.Rand) feature.Vector {
	v := feature.Zero()
	for _, k := range feature.Keys {
		v[k] = r.Float64()*4 - 2
	}
	return v
}

func TestSimilarityBoundsAndDecomposition(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	weights := []feature.Weights{nil, feature.Uniform(), {feature.Sqft: 3, feature.Beds: 0.5, feature.Pool: 2}}
	for i := 0; i < 500; i++ {
		a, b := randomVector(r), randomVector(r)
		w := weights[i%len(weights)]
		score, contribs := WeightedSimilarity(a, b, w)
		if score < -1 || score > 1 {
			t.Fatalf("score %v out of range", score)
		}
		if len(contribs) != len(feature.Keys) {
			t.Fatalf("contribs = %d; want %d", len(contribs), len(feature.Keys))
		}
		var sum float64
		for j, c := range contribs {
			if c.Feature != feature.Keys[j] {
				t.Fatalf("contribution %d is %s; want %s", j, c.Feature, feature.Keys[j])
			}
			sum += c.Value
		}
		if math.Abs(sum-score) > 1e-9 {
			t.Fatalf("contributions sum %v != score %v", sum, score)
		}
	}
}

func TestSelfSimilarityIsExactlyOne(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for i := 0; i < 200; i++ {
		a := randomVector(r)
		if s, _ := WeightedSimilarity(a, a, nil); s != 1 {
			t.Fatalf("self similarity = %.17g; want 1", s)
		}
	}
}

func TestZeroMagnitudeIsZero(t *testing.T) {
	a := feature.Zero()
	b := feature.Zero()
	b[feature.Beds] = 1
	s, contribs := WeightedSimilarity(a, b, nil)
	if s != 0 {
		t.Fatalf("score = %v; want 0", s)
	}
	for _, c := range contribs {
		if c.Value != 0 {
			t.Fatalf("non-zero contribution %+v", c)
		}
	}
	// weights can also zero out a vector
	if s, _ := WeightedSimilarity(b, b, feature.Weights{feature.Sqft: 1}); s != 0 {
		t.Fatalf("score with zeroing weights = %v; want 0", s)
	}
}

func TestOppositeVectors(t *testing.T) {
	a := feature.Zero()
	a[feature.Sqft] = 0.5
	a[feature.Pool] = 1
	b := a.Clone()
	b.Scale(-1)
	if s, _ := WeightedSimilarity(a, b, nil); math.Abs(s+1) > 1e-12 {
		t.Fatalf("opposite vectors score %v; want -1", s)
	}
}

func TestTopChips(t *testing.T) {
	contribs := []Contribution{
		{"price", 0.10}, {"sqft", -0.30}, {"beds", 0.25}, {"baths", 0},
		{"pool", 0.25}, {"garage", -0.05}, {"walkable", 0.40},
	}
	ex := TopChips(contribs, 2)
	if len(ex.Positive) != 2 || ex.Positive[0].Feature != "walkable" || ex.Positive[1].Feature != "beds" {
		t.Fatalf("positive = %+v", ex.Positive)
	}
	if len(ex.Negative) != 2 || ex.Negative[0].Feature != "sqft" || ex.Negative[0].Magnitude != 0.30 {
		t.Fatalf("negative = %+v", ex.Negative)
	}
	for _, c := range append(ex.Positive, ex.Negative...) {
		if c.Feature == "baths" {
			t.Fatalf("zero contribution surfaced")
		}
	}
	if ex.Negative[1].Direction != Negative || ex.Positive[0].Direction != Positive {
		t.Fatalf("directions wrong: %+v", ex)
	}
	if empty := TopChips(contribs, 0); empty.Positive != nil || empty.Negative != nil {
		t.Fatalf("n=0 should yield no chips")
	}
}
