package cma

import (
	"github.com/shopspring/decimal"

	"homescore/internal/errs"
	"homescore/internal/model"
)

var hundred = decimal.NewFromInt(100)

// adjustment is the outcome of pricing one comp toward the subject.
type adjustment struct {
	deltas        map[string]float64
	cents         map[string]int64
	rawCents      int64
	adjustedCents int64
}

// adjust computes subject-minus-comp deltas for every adjustment feature that
// both listings report, converts each delta to signed cents via the table,
// and adds them to the comp's price. A positive delta (subject has more)
// raises the comp's price. Features are independent and additive. The
// adjusted price never drops below zero.
func adjust(subject, comp model.Listing, table AdjustmentTable) (adjustment, error) {
	raw := comp.PriceCents()
	if raw <= 0 {
		return adjustment{}, &errs.MissingFeatureDataError{ListingID: comp.ID, Field: "price"}
	}
	a := adjustment{
		deltas:   make(map[string]float64),
		cents:    make(map[string]int64),
		rawCents: raw,
	}
	for _, f := range AdjustmentFeatures {
		delta, ok := featureDelta(f, subject, comp)
		if !ok {
			continue
		}
		a.deltas[f] = delta
		rate, ok := table[f]
		if !ok || delta == 0 {
			continue
		}
		c := decimal.NewFromFloat(delta).Mul(rate).Mul(hundred).Round(0).IntPart()
		if c != 0 {
			a.cents[f] = c
		}
	}

	total := raw
	for _, f := range AdjustmentFeatures {
		total += a.cents[f]
	}
	if total < 0 {
		total = 0
	}
	a.adjustedCents = total
	return a, nil
}

func featureDelta(f string, s, c model.Listing) (float64, bool) {
	switch f {
	case AdjBedrooms:
		return floatDelta(s.Beds, c.Beds)
	case AdjBathrooms:
		return floatDelta(s.Baths, c.Baths)
	case AdjLivingArea:
		return intDelta(s.Sqft, c.Sqft)
	case AdjLotSize:
		return intDelta(s.LotSqft, c.LotSqft)
	case AdjGarage:
		return boolDelta(s.Garage, c.Garage), true
	case AdjPool:
		return boolDelta(s.Pool, c.Pool), true
	case AdjYearBuilt:
		return intDelta(s.YearBuilt, c.YearBuilt)
	}
	return 0, false
}

func floatDelta(s, c *float64) (float64, bool) {
	if s == nil || c == nil {
		return 0, false
	}
	return *s - *c, true
}

func intDelta(s, c *int) (float64, bool) {
	if s == nil || c == nil {
		return 0, false
	}
	return float64(*s - *c), true
}

func boolDelta(s, c bool) float64 {
	switch {
	case s && !c:
		return 1
	case c && !s:
		return -1
	}
	return 0
}
