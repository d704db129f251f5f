// Package preference learns a client's taste vector from their interaction
// history and ranks listings against it.
//
// The vector is always a full fold over the chronological history, never an
// incremental update, so the same history and clock give the same vector.
package preference

import (
	"math"
	"sort"
	"time"

	"homescore/internal/feature"
	"homescore/internal/model"
	"homescore/internal/scoring"
)

// Policy configures signal weights, decay and explanation size.
type Policy struct {
	// DecayFactor is the per-day multiplier applied to an interaction's
	// weight, in (0,1).
	DecayFactor float64 `json:"decayFactor"`

	LikeWeight    float64 `json:"likeWeight"`
	DislikeWeight float64 `json:"dislikeWeight"`
	SkipWeight    float64 `json:"skipWeight"`
	// DwellWeight is reached once dwell time hits DwellSaturationSeconds;
	// shorter dwells scale linearly.
	DwellWeight            float64 `json:"dwellWeight"`
	DwellSaturationSeconds float64 `json:"dwellSaturationSeconds"`

	// Weights are the similarity weights used for scoring. nil is uniform.
	Weights   feature.Weights `json:"weights"`
	ChipsTopN int             `json:"chipsTopN"`
}

// HalfLifeDecay returns the per-day factor that halves influence every
// halfLifeDays.
func HalfLifeDecay(halfLifeDays float64) float64 {
	return math.Pow(0.5, 1/halfLifeDays)
}

// DefaultPolicy halves influence every 30 days.
func DefaultPolicy() Policy {
	return Policy{
		DecayFactor:            HalfLifeDecay(30),
		LikeWeight:             1,
		DislikeWeight:          -1,
		SkipWeight:             0,
		DwellWeight:            0.5,
		DwellSaturationSeconds: 120,
		ChipsTopN:              3,
	}
}

// BaseWeight returns the undecayed signed weight of one interaction.
func (p Policy) BaseWeight(it model.Interaction) float64 {
	switch it.Action {
	case model.ActionLike:
		return p.LikeWeight
	case model.ActionDislike:
		return p.DislikeWeight
	case model.ActionSkip:
		return p.SkipWeight
	case model.ActionDwell:
		if it.DwellSeconds <= 0 || p.DwellSaturationSeconds <= 0 {
			return 0
		}
		return p.DwellWeight * math.Min(1, it.DwellSeconds/p.DwellSaturationSeconds)
	}
	return 0
}

// ColdStart is the vector of a client with no interactions: all zeros, so
// every candidate scores 0 and ranking falls back to recency.
func ColdStart(clientID string, now time.Time) model.PreferenceVector {
	return model.PreferenceVector{
		ClientID:  clientID,
		State:     model.PreferenceColdStart,
		Vector:    feature.Zero(),
		UpdatedAt: now.UTC(),
	}
}

// Recompute folds history into a taste vector as of now:
//
//	w_i    = base(action_i) * DecayFactor^ageDays_i
//	vector = sum(w_i * fv(listing_i)) / sum(|w_i|)
//
// Interactions are visited in chronological order (stable for equal
// timestamps). Interactions whose listing is not in listings are counted in
// SkippedCount and contribute nothing. Interactions in the future of now are
// treated as age 0.
func Recompute(clientID string, history []model.Interaction, listings map[string]model.Listing, p Policy, now time.Time) model.PreferenceVector {
	if len(history) == 0 {
		return ColdStart(clientID, now)
	}
	ordered := make([]model.Interaction, len(history))
	copy(ordered, history)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].At.Before(ordered[j].At) })

	pv := model.PreferenceVector{
		ClientID:            clientID,
		State:               model.PreferenceWarm,
		InteractionCount:    len(ordered),
		LatestInteractionAt: ordered[len(ordered)-1].At.UTC(),
		UpdatedAt:           now.UTC(),
	}
	sum := feature.Zero()
	var norm float64
	for _, it := range ordered {
		l, ok := listings[it.ListingID]
		if !ok {
			pv.SkippedCount++
			continue
		}
		base := p.BaseWeight(it)
		if base == 0 {
			continue
		}
		w := base * decay(p.DecayFactor, ageDays(it.At, now))
		sum.AddScaled(feature.ToFeatureVector(l), w)
		norm += math.Abs(w)
	}
	if norm > 0 {
		sum.Scale(1 / norm)
	}
	pv.Vector = sum
	return pv
}

// Current reports whether pv was folded from history. Decay scales every
// weight by the same factor as time passes, so a vector stays valid until the
// history itself changes.
func Current(pv model.PreferenceVector, history []model.Interaction) bool {
	if pv.InteractionCount != len(history) {
		return false
	}
	if len(history) == 0 {
		return pv.State == model.PreferenceColdStart
	}
	var latest time.Time
	for _, it := range history {
		if it.At.After(latest) {
			latest = it.At
		}
	}
	return latest.Equal(pv.LatestInteractionAt)
}

func ageDays(at, now time.Time) float64 {
	d := now.Sub(at)
	if d <= 0 {
		return 0
	}
	return d.Hours() / 24
}

func decay(factor, days float64) float64 {
	if days == 0 {
		return 1
	}
	return math.Pow(factor, days)
}

// RankedListing is one scored candidate.
type RankedListing struct {
	Listing     model.Listing       `json:"listing"`
	Score       float64             `json:"score"`
	Explanation scoring.Explanation `json:"explanation"`
}

// ScoreAndRank scores each candidate against pv and sorts by score
// descending, then listing recency descending, then id. The result does not
// depend on the order of candidates.
func ScoreAndRank(pv model.PreferenceVector, candidates []model.Listing, p Policy) []RankedListing {
	client := feature.Vector(pv.Vector)
	out := make([]RankedListing, 0, len(candidates))
	for _, l := range candidates {
		score, contribs := scoring.WeightedSimilarity(client, feature.ToFeatureVector(l), p.Weights)
		out = append(out, RankedListing{
			Listing:     l,
			Score:       score,
			Explanation: scoring.TopChips(contribs, p.ChipsTopN),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		ra, rb := a.Listing.Recency(), b.Listing.Recency()
		if !ra.Equal(rb) {
			return ra.After(rb)
		}
		return a.Listing.ID < b.Listing.ID
	})
	return out
}
