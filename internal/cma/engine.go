// Package cma selects comparable sales for a subject property, adjusts them
// toward the subject, and aggregates them into an estimate, a price band and
// a confidence score. It performs no I/O.
package cma

import (
	"math"
	"time"

	"github.com/cockroachdb/errors"

	"homescore/internal/errs"
	"homescore/internal/feature"
	"homescore/internal/model"
	"homescore/internal/scoring"
)

// Engine runs CMAs under a fixed Policy. Safe for concurrent use.
type Engine struct {
	policy Policy
}

// NewEngine returns an Engine for p.
func NewEngine(p Policy) *Engine {
	return &Engine{policy: p}
}

// Policy returns the engine's configuration.
func (e *Engine) Policy() Policy { return e.policy }

// Generate builds a fresh report for subject from the candidate pool.
func (e *Engine) Generate(subject model.Listing, candidates []model.Listing, w model.Window, now time.Time) (model.CMAReport, error) {
	version, err := DataVersion(subject, candidates, w, e.policy)
	if err != nil {
		return model.CMAReport{}, err
	}
	return e.generate(subject, candidates, w, version, now)
}

// Ensure returns existing unchanged when it is still valid for the inputs;
// otherwise it generates a new report. The bool reports reuse.
func (e *Engine) Ensure(existing *model.CMAReport, subject model.Listing, candidates []model.Listing, w model.Window, now time.Time) (model.CMAReport, bool, error) {
	version, err := DataVersion(subject, candidates, w, e.policy)
	if err != nil {
		return model.CMAReport{}, false, err
	}
	if existing != nil && e.CheckCurrent(*existing, w, version, now) == nil {
		return *existing, true, nil
	}
	r, err := e.generate(subject, candidates, w, version, now)
	return r, false, err
}

// CheckCurrent returns a StaleDataError when r was built from a different
// window or data version, or is older than the report TTL.
func (e *Engine) CheckCurrent(r model.CMAReport, w model.Window, version string, now time.Time) error {
	if r.Window != w || r.DataVersion != version {
		return &errs.StaleDataError{ReportID: r.ID, Have: r.DataVersion, Want: version}
	}
	if e.policy.ReportTTL > 0 && now.Sub(r.GeneratedAt) >= e.policy.ReportTTL {
		return &errs.StaleDataError{ReportID: r.ID, Have: r.DataVersion, Want: "expired"}
	}
	return nil
}

func (e *Engine) generate(subject model.Listing, candidates []model.Listing, w model.Window, version string, now time.Time) (model.CMAReport, error) {
	p := e.policy
	picked, err := selectComparables(subject, candidates, w, p, now)
	if err != nil {
		return model.CMAReport{}, err
	}

	subjectVec := feature.ToFeatureVector(subject)
	comps := make([]model.ComparableSale, 0, len(picked))
	prices := make([]int64, 0, len(picked))
	weights := make([]float64, 0, len(picked))
	for _, c := range picked {
		adj, err := adjust(subject, c.listing, p.Adjustments)
		if err != nil {
			return model.CMAReport{}, errors.Wrapf(err, "adjust comp %s", c.listing.ID)
		}
		sim, _ := scoring.WeightedSimilarity(subjectVec, feature.ToFeatureVector(c.listing), p.SimilarityWeights)
		sim = clamp01(sim)
		wt := compWeight(sim, c.distance, c.days, p)

		comps = append(comps, model.ComparableSale{
			Listing:            c.listing,
			DistanceMiles:      round4(c.distance),
			DaysSinceSale:      c.days,
			Deltas:             adj.deltas,
			Adjustments:        adj.cents,
			RawPriceCents:      adj.rawCents,
			AdjustedPriceCents: adj.adjustedCents,
			Similarity:         round4(sim),
		})
		prices = append(prices, adj.adjustedCents)
		weights = append(weights, wt)
	}

	v := valuate(prices, weights, p)
	for i := range comps {
		comps[i].Weight = weights[i]
	}

	return model.CMAReport{
		ID:             ReportID(subject.ID, w, version, now),
		SubjectID:      subject.ID,
		Window:         w,
		DataVersion:    version,
		Comparables:    comps,
		EstimateCents:  v.estimate,
		LowCents:       v.low,
		HighCents:      v.high,
		Confidence:     v.confidence,
		Dispersion:     v.dispersion,
		SubjectDefects: subject.Defects,
		PSFChart:       psfChart(comps),
		GeneratedAt:    now.UTC(),
	}, nil
}

// psfChart lists raw price per square foot, in dollars, for comps with a
// known living area.
func psfChart(comps []model.ComparableSale) []model.PSFPoint {
	var out []model.PSFPoint
	for _, c := range comps {
		if c.Listing.Sqft == nil || *c.Listing.Sqft <= 0 {
			continue
		}
		psf := float64(c.RawPriceCents) / 100 / float64(*c.Listing.Sqft)
		out = append(out, model.PSFPoint{ListingID: c.Listing.ID, PricePerSqft: math.Round(psf*100) / 100})
	}
	return out
}
