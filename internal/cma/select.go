package cma

import (
	"math"
	"sort"
	"time"

	"homescore/internal/errs"
	"homescore/internal/geo"
	"homescore/internal/model"
)

// candidate is a listing that survived filtering, with its position relative
// to the subject.
type candidate struct {
	listing  model.Listing
	distance float64
	days     int
}

// selectComparables filters candidates down to the comps used for subject:
//   - the subject itself (by id or physical property) is never a comp
//   - status must be eligible under p
//   - sold and pending records must fall inside the day window; under-contract
//     and coming-soon records are current by definition and skip that check
//   - a comp needs a positive price and a location within the radius
//
// Records for the same physical property collapse to the most recent one.
// Survivors are ordered closest first, then most recent, then by id, and
// capped at MaxComps. Fewer than MinComps is an InsufficientComparablesError.
func selectComparables(subject model.Listing, candidates []model.Listing, w model.Window, p Policy, now time.Time) ([]candidate, error) {
	if subject.Location == nil {
		return nil, &errs.MissingFeatureDataError{ListingID: subject.ID, Field: "location"}
	}
	var kept []candidate
	for _, l := range candidates {
		if l.ID == subject.ID || l.SameProperty(subject) {
			continue
		}
		if !p.eligible(l.Status) || l.PriceCents() <= 0 || l.Location == nil {
			continue
		}
		days, ok := daysBack(l, w, now)
		if !ok {
			continue
		}
		d := geo.DistanceMiles(*subject.Location, *l.Location)
		if d > w.RadiusMiles {
			continue
		}
		kept = append(kept, candidate{listing: l, distance: d, days: days})
	}

	out := collapseProperties(kept)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.distance != b.distance {
			return a.distance < b.distance
		}
		if a.days != b.days {
			return a.days < b.days
		}
		return a.listing.ID < b.listing.ID
	})
	if p.MaxComps > 0 && len(out) > p.MaxComps {
		out = out[:p.MaxComps]
	}
	if len(out) < p.MinComps {
		return nil, &errs.InsufficientComparablesError{SubjectID: subject.ID, Found: len(out), Required: p.MinComps}
	}
	return out, nil
}

// collapseProperties groups candidates that share any property key, so an
// address match and a provider-reference match chain into one group, and
// keeps the most recent record of each group.
func collapseProperties(cs []candidate) []candidate {
	parent := make([]int, len(cs))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	owner := make(map[string]int)
	for i, c := range cs {
		for _, k := range c.listing.PropertyKeys() {
			if j, ok := owner[k]; ok {
				parent[find(i)] = find(j)
			} else {
				owner[k] = i
			}
		}
	}

	best := make(map[int]int)
	for i := range cs {
		r := find(i)
		if j, ok := best[r]; !ok || newer(cs[i].listing, cs[j].listing) {
			best[r] = i
		}
	}
	out := make([]candidate, 0, len(best))
	for _, i := range best {
		out = append(out, cs[i])
	}
	return out
}

// daysBack reports how many whole days ago the record was current and whether
// it falls inside the window.
func daysBack(l model.Listing, w model.Window, now time.Time) (int, bool) {
	switch l.Status {
	case model.StatusSold:
		if l.SaleDate == nil {
			return 0, false
		}
		return inWindow(*l.SaleDate, w, now)
	case model.StatusPending:
		return inWindow(l.Recency(), w, now)
	default:
		at := l.Recency()
		if at.IsZero() || at.After(now) {
			return 0, true
		}
		return int(math.Floor(now.Sub(at).Hours() / 24)), true
	}
}

func inWindow(at time.Time, w model.Window, now time.Time) (int, bool) {
	if at.IsZero() || at.After(now) {
		return 0, false
	}
	days := int(math.Floor(now.Sub(at).Hours() / 24))
	return days, days <= w.DayRange
}

func newer(a, b model.Listing) bool {
	ra, rb := a.Recency(), b.Recency()
	if !ra.Equal(rb) {
		return ra.After(rb)
	}
	return a.ID < b.ID
}
