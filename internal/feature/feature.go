// Package feature derives fixed-dimension numeric vectors from listings.
//
// Every vector carries exactly the keys in Keys, in that order. Attributes a
// provider did not report are filled from Neutral so that dimensionality never
// changes between listings.
package feature

import (
	"homescore/internal/model"
)

// Feature keys. Numeric keys come first, then boolean tags.
const (
	Price            = "price"
	Sqft             = "sqft"
	Beds             = "beds"
	Baths            = "baths"
	LotSqft          = "lot_sqft"
	YearBuilt        = "year_built"
	HOAFee           = "hoa_fee"
	DaysOnMarket     = "days_on_market"
	Garage           = "garage"
	Pool             = "pool"
	Waterfront       = "waterfront"
	OpenFloorplan    = "open_floorplan"
	FinishedBasement = "finished_basement"
	LargeYard        = "large_yard"
	NewConstruction  = "new_construction"
	Walkable         = "walkable"
)

// Keys is the fixed, ordered feature set.
var Keys = []string{
	Price, Sqft, Beds, Baths, LotSqft, YearBuilt, HOAFee, DaysOnMarket,
	Garage, Pool, Waterfront, OpenFloorplan, FinishedBasement, LargeYard, NewConstruction, Walkable,
}

// Neutral holds the raw value substituted for a numeric attribute the listing
// does not report. Roughly a median suburban single-family home.
var Neutral = map[string]float64{
	Price:        0,
	Sqft:         1800,
	Beds:         3,
	Baths:        2,
	LotSqft:      7000,
	YearBuilt:    1980,
	HOAFee:       0,
	DaysOnMarket: 0,
}

// Thresholds for derived tags.
const (
	LargeYardLotSqft     = 8000
	NewConstructionYears = 3
	WalkableScore        = 70
)

// scale maps a raw numeric value onto roughly [0,1].
var scale = map[string]func(float64) float64{
	Price:        func(v float64) float64 { return v / 1e6 }, // dollars
	Sqft:         func(v float64) float64 { return v / 4000 },
	Beds:         func(v float64) float64 { return v / 5 },
	Baths:        func(v float64) float64 { return v / 4 },
	LotSqft:      func(v float64) float64 { return v / 20000 },
	YearBuilt:    func(v float64) float64 { return (v - 1950) / 100 },
	HOAFee:       func(v float64) float64 { return v / 1000 }, // dollars per month
	DaysOnMarket: func(v float64) float64 { return v / 120 },
}

// Vector maps feature key to value.
type Vector map[string]float64

// Zero returns a vector with every key set to 0.
func Zero() Vector {
	v := make(Vector, len(Keys))
	for _, k := range Keys {
		v[k] = 0
	}
	return v
}

// Clone returns a copy of v.
func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	for k, x := range v {
		out[k] = x
	}
	return out
}

// AddScaled adds w*o to v in place.
func (v Vector) AddScaled(o Vector, w float64) {
	for _, k := range Keys {
		v[k] += w * o[k]
	}
}

// Scale multiplies every entry of v by f in place.
func (v Vector) Scale(f float64) {
	for _, k := range Keys {
		v[k] *= f
	}
}

// Weights assigns a per-feature weight for similarity. A nil Weights means
// uniform weight 1; otherwise absent keys weigh 0.
type Weights map[string]float64

// Uniform returns explicit weight 1 for every key.
func Uniform() Weights {
	w := make(Weights, len(Keys))
	for _, k := range Keys {
		w[k] = 1
	}
	return w
}

// Of returns the weight for key k.
func (w Weights) Of(k string) float64 {
	if w == nil {
		return 1
	}
	return w[k]
}

// Raw returns the un-normalised attributes of l, with Neutral substitutes for
// missing numeric values and 0/1 for tags. It never fails.
func Raw(l model.Listing) Vector {
	v := Zero()
	for k, n := range Neutral {
		v[k] = n
	}
	if p := l.PriceCents(); p > 0 {
		v[Price] = float64(p) / 100
	}
	if l.Sqft != nil {
		v[Sqft] = float64(*l.Sqft)
	}
	if l.Beds != nil {
		v[Beds] = *l.Beds
	}
	if l.Baths != nil {
		v[Baths] = *l.Baths
	}
	if l.LotSqft != nil {
		v[LotSqft] = float64(*l.LotSqft)
	}
	if l.YearBuilt != nil {
		v[YearBuilt] = float64(*l.YearBuilt)
	}
	if l.HOAFeeCents > 0 {
		v[HOAFee] = float64(l.HOAFeeCents) / 100
	}
	if l.DaysOnMarket != nil {
		v[DaysOnMarket] = float64(*l.DaysOnMarket)
	}

	v[Garage] = flag(l.Garage || l.HasTag(Garage))
	v[Pool] = flag(l.Pool || l.HasTag(Pool))
	v[Waterfront] = flag(l.HasTag(Waterfront))
	v[OpenFloorplan] = flag(l.HasTag(OpenFloorplan) || l.HasTag("open floor plan"))
	v[FinishedBasement] = flag(l.HasTag(FinishedBasement) || l.HasTag("finished basement"))
	v[LargeYard] = flag(l.HasTag(LargeYard) || (l.LotSqft != nil && *l.LotSqft >= LargeYardLotSqft))
	v[NewConstruction] = flag(l.HasTag(NewConstruction) || isNew(l))
	v[Walkable] = flag(l.HasTag(Walkable) || (l.WalkScore != nil && *l.WalkScore >= WalkableScore))
	return v
}

// ToFeatureVector returns the normalised vector for l. It is total: every key
// in Keys is present for every listing.
func ToFeatureVector(l model.Listing) Vector {
	v := Raw(l)
	for k, f := range scale {
		v[k] = f(v[k])
	}
	return v
}

// Missing lists the numeric keys that were filled from Neutral.
func Missing(l model.Listing) []string {
	var out []string
	if l.PriceCents() <= 0 {
		out = append(out, Price)
	}
	if l.Sqft == nil {
		out = append(out, Sqft)
	}
	if l.Beds == nil {
		out = append(out, Beds)
	}
	if l.Baths == nil {
		out = append(out, Baths)
	}
	if l.LotSqft == nil {
		out = append(out, LotSqft)
	}
	if l.YearBuilt == nil {
		out = append(out, YearBuilt)
	}
	if l.HOAFeeCents <= 0 {
		out = append(out, HOAFee)
	}
	if l.DaysOnMarket == nil {
		out = append(out, DaysOnMarket)
	}
	return out
}

func isNew(l model.Listing) bool {
	if l.YearBuilt == nil {
		return false
	}
	at := l.Recency()
	if at.IsZero() {
		return false
	}
	age := at.Year() - *l.YearBuilt
	return age >= 0 && age <= NewConstructionYears
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
