package feature

import (
	"math"
	"testing"
	"time"

	"homescore/internal/model"
)

func ptrF(v float64) *float64 { return &v }
func ptrI(v int) *int         { return &v }

func TestToFeatureVectorIsTotal(t *testing.T) {
	listings := []model.Listing{
		{},
		{ID: "bare", Status: model.StatusActive},
		{
			ID: "full", ListPriceCents: 450_000_00, Beds: ptrF(4), Baths: ptrF(2.5),
			Sqft: ptrI(2400), LotSqft: ptrI(9000), YearBuilt: ptrI(1995), Garage: true,
			HOAFeeCents: 150_00, DaysOnMarket: ptrI(12), WalkScore: ptrI(80),
			Tags: []string{"Waterfront", "open floor plan"},
		},
	}
	for _, l := range listings {
		v := ToFeatureVector(l)
		if len(v) != len(Keys) {
			t.Fatalf("%q: %d keys; want %d", l.ID, len(v), len(Keys))
		}
		for _, k := range Keys {
			x, ok := v[k]
			if !ok {
				t.Fatalf("%q: missing key %s", l.ID, k)
			}
			if math.IsNaN(x) || math.IsInf(x, 0) {
				t.Fatalf("%q: %s = %v", l.ID, k, x)
			}
		}
	}
}

func TestNeutralDefaults(t *testing.T) {
	v := Raw(model.Listing{ID: "x"})
	for k, n := range Neutral {
		if v[k] != n {
			t.Errorf("%s = %v; want neutral %v", k, v[k], n)
		}
	}
	if got := len(Missing(model.Listing{ID: "x"})); got != len(Neutral) {
		t.Errorf("missing = %d; want %d", got, len(Neutral))
	}
}

func TestDerivedTags(t *testing.T) {
	listed := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	l := model.Listing{
		ID: "t", LotSqft: ptrI(LargeYardLotSqft), YearBuilt: ptrI(2024), ListedAt: &listed,
		WalkScore: ptrI(WalkableScore), Pool: true, Tags: []string{" Finished_Basement "},
	}
	v := ToFeatureVector(l)
	for _, k := range []string{LargeYard, NewConstruction, Walkable, Pool, FinishedBasement} {
		if v[k] != 1 {
			t.Errorf("%s = %v; want 1", k, v[k])
		}
	}
	for _, k := range []string{Garage, Waterfront, OpenFloorplan} {
		if v[k] != 0 {
			t.Errorf("%s = %v; want 0", k, v[k])
		}
	}

	old := l
	old.YearBuilt = ptrI(1990)
	if ToFeatureVector(old)[NewConstruction] != 0 {
		t.Errorf("1990 build should not be new construction")
	}
}

func TestNormalisation(t *testing.T) {
	l := model.Listing{ListPriceCents: 500_000_00, SalePriceCents: 480_000_00, Sqft: ptrI(2000), YearBuilt: ptrI(2000)}
	v := ToFeatureVector(l)
	if v[Price] != 0.48 {
		t.Errorf("price = %v; want sale price scaled to 0.48", v[Price])
	}
	if v[Sqft] != 0.5 || v[YearBuilt] != 0.5 {
		t.Errorf("sqft=%v year=%v", v[Sqft], v[YearBuilt])
	}
}

func TestWeightsOf(t *testing.T) {
	var nilW Weights
	if nilW.Of(Price) != 1 {
		t.Fatalf("nil weights should be uniform")
	}
	w := Weights{Sqft: 2}
	if w.Of(Sqft) != 2 || w.Of(Price) != 0 {
		t.Fatalf("explicit weights: sqft=%v price=%v", w.Of(Sqft), w.Of(Price))
	}
	if len(Uniform()) != len(Keys) {
		t.Fatalf("uniform weights incomplete")
	}
}

func TestVectorArithmetic(t *testing.T) {
	a := Zero()
	b := Zero()
	b[Beds] = 0.6
	a.AddScaled(b, -2)
	a.Scale(0.5)
	if a[Beds] != -0.6 {
		t.Fatalf("beds = %v; want -0.6", a[Beds])
	}
	c := a.Clone()
	c[Beds] = 9
	if a[Beds] == 9 {
		t.Fatalf("clone aliases the original")
	}
}
