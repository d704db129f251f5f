// Package scoring implements weighted cosine similarity with an exact
// per-feature decomposition, and turns that decomposition into explanation
// chips.
package scoring

import (
	"math"
	"sort"

	"homescore/internal/feature"
)

// Contribution is one feature's signed share of a similarity score.
type Contribution struct {
	Feature string  `json:"feature"`
	Value   float64 `json:"value"`
}

// WeightedSimilarity returns the cosine similarity of a and b after scaling
// each feature by its weight, plus the per-feature contributions in
// feature.Keys order. Contributions sum to the score. If either weighted
// vector has zero magnitude the score is 0 and every contribution is 0.
func WeightedSimilarity(a, b feature.Vector, w feature.Weights) (float64, []Contribution) {
	prods := make([]float64, len(feature.Keys))
	var na, nb float64
	for i, k := range feature.Keys {
		wk := w.Of(k)
		x, y := wk*a[k], wk*b[k]
		prods[i] = x * y
		na += x * x
		nb += y * y
	}

	contribs := make([]Contribution, len(feature.Keys))
	for i, k := range feature.Keys {
		contribs[i].Feature = k
	}
	if na == 0 || nb == 0 {
		return 0, contribs
	}

	denom := math.Sqrt(na * nb)
	var num float64
	for i := range prods {
		num += prods[i]
		contribs[i].Value = prods[i] / denom
	}
	score := num / denom
	if score > 1 {
		score = 1
	} else if score < -1 {
		score = -1
	}
	return score, contribs
}

// Direction of a chip.
const (
	Positive = "positive"
	Negative = "negative"
)

// Chip is a (feature, direction, magnitude) explanation triple.
type Chip struct {
	Feature   string  `json:"feature"`
	Direction string  `json:"direction"`
	Magnitude float64 `json:"magnitude"`
}

// Explanation holds the strongest positive and negative contributors.
type Explanation struct {
	Positive []Chip `json:"positive"`
	Negative []Chip `json:"negative"`
}

// TopChips picks up to n positive and n negative contributors, largest
// magnitude first. Zero contributions are never surfaced. Ties keep the
// input order, which for WeightedSimilarity output is feature.Keys order.
func TopChips(contribs []Contribution, n int) Explanation {
	var ex Explanation
	if n <= 0 {
		return ex
	}
	for _, c := range contribs {
		switch {
		case c.Value > 0:
			ex.Positive = append(ex.Positive, Chip{Feature: c.Feature, Direction: Positive, Magnitude: c.Value})
		case c.Value < 0:
			ex.Negative = append(ex.Negative, Chip{Feature: c.Feature, Direction: Negative, Magnitude: -c.Value})
		}
	}
	ex.Positive = top(ex.Positive, n)
	ex.Negative = top(ex.Negative, n)
	return ex
}

func top(chips []Chip, n int) []Chip {
	sort.SliceStable(chips, func(i, j int) bool { return chips[i].Magnitude > chips[j].Magnitude })
	if len(chips) > n {
		chips = chips[:n]
	}
	return chips
}
