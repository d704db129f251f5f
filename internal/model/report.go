package model

import (
	"fmt"
	"time"
)

// Window is the comp search window of a CMA run.
type Window struct {
	RadiusMiles float64 `json:"radiusMiles"`
	DayRange    int     `json:"dayRange"`
}

// Key returns a stable string form used in storage keys and report ids.
func (w Window) Key() string {
	return fmt.Sprintf("r%.4f-d%d", w.RadiusMiles, w.DayRange)
}

// ComparableSale is one comp as used for a specific subject. Created per CMA
// run and never mutated afterwards.
type ComparableSale struct {
	Listing       Listing `json:"listing"`
	DistanceMiles float64 `json:"distanceMiles"`
	DaysSinceSale int     `json:"daysSinceSale"`

	// Deltas are subject minus comp, per adjustment feature, in native units.
	Deltas map[string]float64 `json:"deltas"`
	// Adjustments are signed cents per adjustment feature.
	Adjustments map[string]int64 `json:"adjustments"`

	RawPriceCents      int64   `json:"rawPriceCents"`
	AdjustedPriceCents int64   `json:"adjustedPriceCents"`
	Similarity         float64 `json:"similarity"`
	Weight             float64 `json:"weight"`
}

// PSFPoint is one bar of the price-per-square-foot chart.
type PSFPoint struct {
	ListingID    string  `json:"listingId"`
	PricePerSqft float64 `json:"pricePerSqft"`
}

// CMAReport is the immutable result of a CMA run. A later report for the
// same subject and window supersedes it; it is never edited.
type CMAReport struct {
	ID          string `json:"id"`
	SubjectID   string `json:"subjectId"`
	Window      Window `json:"window"`
	DataVersion string `json:"dataVersion"`

	Comparables []ComparableSale `json:"comparables"`

	EstimateCents int64   `json:"estimateCents"`
	LowCents      int64   `json:"lowCents"`
	HighCents     int64   `json:"highCents"`
	Confidence    float64 `json:"confidence"`
	// Dispersion is the weighted coefficient of variation of adjusted prices.
	Dispersion float64 `json:"dispersion"`

	SubjectDefects DefectFlags `json:"subjectDefects"`
	PSFChart       []PSFPoint  `json:"psfChart,omitempty"`
	GeneratedAt    time.Time   `json:"generatedAt"`
}

// DealAlert flags a subject priced materially below its CMA estimate.
// Acknowledgement is changed only by an external reviewer.
type DealAlert struct {
	ID               string  `json:"id"`
	ListingID        string  `json:"listingId"`
	ReportID         string  `json:"reportId"`
	MarketValueCents int64   `json:"marketValueCents"`
	PriceCents       int64   `json:"priceCents"`
	DiscountRatio    float64 `json:"discountRatio"`
	Confidence       float64 `json:"confidence"`
	Rationale        string  `json:"rationale"`

	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedBy string     `json:"acknowledgedBy,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt,omitempty"`
	ReviewerNotes  string     `json:"reviewerNotes,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// PreferenceState is the lifecycle state of a client's taste vector.
type PreferenceState string

const (
	PreferenceColdStart PreferenceState = "cold_start"
	PreferenceWarm      PreferenceState = "warm"
)

// PreferenceVector caches a client's decayed taste vector. It can always be
// re-derived from the interaction history.
type PreferenceVector struct {
	ClientID         string             `json:"clientId"`
	State            PreferenceState    `json:"state"`
	Vector           map[string]float64 `json:"vector"`
	InteractionCount int                `json:"interactionCount"`
	SkippedCount     int                `json:"skippedCount"`
	// LatestInteractionAt is the newest interaction folded into Vector.
	LatestInteractionAt time.Time `json:"latestInteractionAt,omitempty"`
	UpdatedAt           time.Time `json:"updatedAt"`
}
