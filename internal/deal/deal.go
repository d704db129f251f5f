// Package deal decides whether a subject priced below its CMA estimate is an
// alert-worthy opportunity.
package deal

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"homescore/internal/model"
)

var alertNamespace = uuid.MustParse("a41e92c7-0b6d-4f35-8e2a-c7d9165f03b8")

// Policy holds the alert thresholds.
type Policy struct {
	// DiscountThreshold is the price/estimate ratio at or below which a deal
	// may fire.
	DiscountThreshold float64 `json:"discountThreshold"`
	// MinConfidence is the report confidence a deal needs.
	MinConfidence float64 `json:"minConfidence"`
}

// DefaultPolicy returns the stock thresholds.
func DefaultPolicy() Policy {
	return Policy{DiscountThreshold: 0.80, MinConfidence: 0.50}
}

// Suppression reasons.
const (
	ReasonNotDiscounted = "not_discounted"
	ReasonLowConfidence = "low_confidence"
	ReasonNoEstimate    = "no_estimate"
	ReasonNoPrice       = "no_price"
)

// Decision is the outcome of Decide with the reasons behind it.
type Decision struct {
	Fire  bool    `json:"fire"`
	Ratio float64 `json:"ratio"`
	// Reasons explain which checks passed or failed, in evaluation order.
	Reasons []string `json:"reasons"`
	// SuppressedBy lists the defect flags and reason codes that blocked the
	// alert. Empty when Fire is true.
	SuppressedBy []string `json:"suppressedBy,omitempty"`
}

// Decide fires exactly when ratio <= DiscountThreshold, no defect is flagged
// and confidence >= MinConfidence. It has no side effects.
func (p Policy) Decide(ratio float64, defects model.DefectFlags, confidence float64) Decision {
	d := Decision{Ratio: ratio}
	if ratio <= p.DiscountThreshold {
		d.Reasons = append(d.Reasons, fmt.Sprintf("ratio %.4f at or below threshold %.2f", ratio, p.DiscountThreshold))
	} else {
		d.Reasons = append(d.Reasons, fmt.Sprintf("ratio %.4f above threshold %.2f", ratio, p.DiscountThreshold))
		d.SuppressedBy = append(d.SuppressedBy, ReasonNotDiscounted)
	}
	for _, name := range defects.Names() {
		d.Reasons = append(d.Reasons, name+" defect flagged")
		d.SuppressedBy = append(d.SuppressedBy, name)
	}
	if confidence >= p.MinConfidence {
		d.Reasons = append(d.Reasons, fmt.Sprintf("confidence %.4f meets floor %.2f", confidence, p.MinConfidence))
	} else {
		d.Reasons = append(d.Reasons, fmt.Sprintf("confidence %.4f below floor %.2f", confidence, p.MinConfidence))
		d.SuppressedBy = append(d.SuppressedBy, ReasonLowConfidence)
	}
	d.Fire = len(d.SuppressedBy) == 0
	return d
}

// Detect evaluates report against the subject's current price. It returns
// the alert when one fires, and the decision either way. The alert has no
// CreatedAt; the caller stamps it when persisting.
func (p Policy) Detect(report model.CMAReport, priceCents int64) (*model.DealAlert, Decision) {
	if report.EstimateCents <= 0 {
		return nil, Decision{Reasons: []string{"report has no positive estimate"}, SuppressedBy: []string{ReasonNoEstimate}}
	}
	if priceCents <= 0 {
		return nil, Decision{Reasons: []string{"subject has no price"}, SuppressedBy: []string{ReasonNoPrice}}
	}
	ratio := float64(priceCents) / float64(report.EstimateCents)
	d := p.Decide(ratio, report.SubjectDefects, report.Confidence)
	if !d.Fire {
		return nil, d
	}
	return &model.DealAlert{
		ID:               AlertID(report.SubjectID, report.ID),
		ListingID:        report.SubjectID,
		ReportID:         report.ID,
		MarketValueCents: report.EstimateCents,
		PriceCents:       priceCents,
		DiscountRatio:    math.Round(ratio*1e4) / 1e4,
		Confidence:       report.Confidence,
		Rationale:        fmt.Sprintf("Priced %.1f%% below CMA estimate.", (1-ratio)*100),
	}, d
}

// AlertID is stable per (listing, report), so the same report never yields
// two alerts.
func AlertID(listingID, reportID string) string {
	return uuid.NewSHA1(alertNamespace, []byte(listingID+"|"+reportID)).String()
}
