package cma

import (
	"time"

	"github.com/shopspring/decimal"

	"homescore/internal/feature"
	"homescore/internal/model"
)

// Adjustment features, in the order adjustments are applied and reported.
const (
	AdjBedrooms   = "bedrooms"
	AdjBathrooms  = "bathrooms"
	AdjLivingArea = "living_area"
	AdjLotSize    = "lot_size"
	AdjGarage     = "garage"
	AdjPool       = "pool"
	AdjYearBuilt  = "year_built"
)

// AdjustmentFeatures lists every feature the adjustment engine knows.
var AdjustmentFeatures = []string{
	AdjBedrooms, AdjBathrooms, AdjLivingArea, AdjLotSize, AdjGarage, AdjPool, AdjYearBuilt,
}

// AdjustmentTable maps an adjustment feature to dollars per unit of
// difference. Units: rooms for bedrooms/bathrooms, square feet for
// living_area/lot_size, presence for garage/pool, years for year_built.
type AdjustmentTable map[string]decimal.Decimal

// DefaultAdjustments returns the stock dollar-per-unit table.
func DefaultAdjustments() AdjustmentTable {
	return AdjustmentTable{
		AdjBedrooms:   decimal.NewFromInt(12000),
		AdjBathrooms:  decimal.NewFromInt(8000),
		AdjLivingArea: decimal.NewFromInt(100),
		AdjLotSize:    decimal.NewFromInt(2),
		AdjGarage:     decimal.NewFromInt(8000),
		AdjPool:       decimal.NewFromInt(20000),
		AdjYearBuilt:  decimal.NewFromInt(1000),
	}
}

// Policy is the full configuration of a CMA run. It is passed by value into
// the engine; nothing here is global.
type Policy struct {
	AllowActiveUnderContract bool `json:"allowActiveUnderContract"`
	AllowComingSoon          bool `json:"allowComingSoon"`

	MinComps int `json:"minComps"`
	// MaxComps caps the comps kept after sorting by distance. 0 means no cap.
	MaxComps int `json:"maxComps"`

	Adjustments AdjustmentTable `json:"adjustments"`

	// SimilarityWeights weigh features when scoring how alike a comp is to
	// the subject. Comp weight is scaled by max(similarity, SimilarityFloor).
	SimilarityWeights feature.Weights `json:"similarityWeights"`
	SimilarityFloor   float64         `json:"similarityFloor"`

	DistanceScaleMiles float64 `json:"distanceScaleMiles"`
	RecencyScaleDays   float64 `json:"recencyScaleDays"`

	BandZ                     float64 `json:"bandZ"`
	MinBandRatio              float64 `json:"minBandRatio"`
	ConfidenceSaturationComps int     `json:"confidenceSaturationComps"`
	DispersionPenalty         float64 `json:"dispersionPenalty"`

	// ReportTTL bounds how long an existing report is reused when the
	// underlying data has not changed. 0 disables the age check.
	ReportTTL time.Duration `json:"reportTtl"`
}

// DefaultPolicy returns the stock configuration.
func DefaultPolicy() Policy {
	return Policy{
		AllowActiveUnderContract: true,
		AllowComingSoon:          true,
		MinComps:                 3,
		MaxComps:                 10,
		Adjustments:              DefaultAdjustments(),
		SimilarityWeights: feature.Weights{
			feature.Sqft:      1,
			feature.Beds:      1,
			feature.Baths:     1,
			feature.LotSqft:   0.5,
			feature.YearBuilt: 0.5,
			feature.Garage:    0.5,
			feature.Pool:      0.5,
		},
		SimilarityFloor:           0.25,
		DistanceScaleMiles:        1.0,
		RecencyScaleDays:          90,
		BandZ:                     1.0,
		MinBandRatio:              0.05,
		ConfidenceSaturationComps: 6,
		DispersionPenalty:         2.0,
		ReportTTL:                 72 * time.Hour,
	}
}

// EligibleStatuses returns the statuses a comp may have under p.
func (p Policy) EligibleStatuses() []model.Status {
	out := []model.Status{model.StatusSold, model.StatusPending}
	if p.AllowActiveUnderContract {
		out = append(out, model.StatusUnderContract)
	}
	if p.AllowComingSoon {
		out = append(out, model.StatusComingSoon)
	}
	return out
}

func (p Policy) eligible(s model.Status) bool {
	for _, e := range p.EligibleStatuses() {
		if e == s {
			return true
		}
	}
	return false
}
