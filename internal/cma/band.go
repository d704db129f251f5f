package cma

import "math"

// valuation is the aggregate of a set of weighted adjusted comp prices.
type valuation struct {
	estimate   int64
	low        int64
	high       int64
	confidence float64
	dispersion float64
}

// compWeight is closer-and-more-recent-weighs-more, scaled by how alike the
// comp is to the subject:
//
//	w = max(sim, floor) / ((1 + d/distScale) * (1 + days/recencyScale))
func compWeight(similarity, distance float64, days int, p Policy) float64 {
	sim := math.Max(similarity, p.SimilarityFloor)
	dd := 1.0
	if p.DistanceScaleMiles > 0 {
		dd += distance / p.DistanceScaleMiles
	}
	rd := 1.0
	if p.RecencyScaleDays > 0 {
		rd += float64(days) / p.RecencyScaleDays
	}
	return sim / (dd * rd)
}

// valuate computes the weighted estimate, band and confidence.
//
//	mu   = sum(w*p) / sum(w)
//	sd   = sqrt(sum(w*(p-mu)^2) / sum(w))
//	cv   = sd / mu
//	s    = max(BandZ*sd, MinBandRatio*mu) * sqrt(sat / min(n, sat))
//	band = [max(mu-s, 0), mu+s]
//	conf = clamp01(min(1, n/sat) * clamp01(1 - DispersionPenalty*cv)), 4 dp
//
// Cents are rounded half away from zero, and low <= estimate <= high always
// holds.
func valuate(prices []int64, weights []float64, p Policy) valuation {
	n := len(prices)
	if n == 0 {
		return valuation{}
	}
	var sw, swp float64
	for i, price := range prices {
		sw += weights[i]
		swp += weights[i] * float64(price)
	}
	if sw <= 0 {
		// Degenerate weights fall back to a plain mean.
		sw, swp = 0, 0
		for i := range weights {
			weights[i] = 1
			sw++
			swp += float64(prices[i])
		}
	}
	mu := swp / sw

	var ss float64
	for i, price := range prices {
		d := float64(price) - mu
		ss += weights[i] * d * d
	}
	sd := math.Sqrt(ss / sw)

	cv := 0.0
	if mu > 0 {
		cv = sd / mu
	}

	sat := p.ConfidenceSaturationComps
	if sat <= 0 {
		sat = 1
	}
	thin := math.Sqrt(float64(sat) / float64(minInt(n, sat)))
	spread := math.Max(p.BandZ*sd, p.MinBandRatio*mu) * thin

	v := valuation{
		estimate:   int64(math.Round(mu)),
		low:        int64(math.Round(math.Max(mu-spread, 0))),
		high:       int64(math.Round(mu + spread)),
		dispersion: round4(cv),
	}
	if v.low > v.estimate {
		v.low = v.estimate
	}
	if v.high < v.estimate {
		v.high = v.estimate
	}

	countFactor := math.Min(1, float64(n)/float64(sat))
	dispFactor := clamp01(1 - p.DispersionPenalty*cv)
	if mu <= 0 {
		dispFactor = 0
	}
	v.confidence = round4(clamp01(countFactor * dispFactor))
	return v
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func round4(x float64) float64 { return math.Round(x*1e4) / 1e4 }

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
