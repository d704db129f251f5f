package deal

import (
	"testing"

	"homescore/internal/model"
)

func TestDecideTruthTable(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		name       string
		ratio      float64
		defects    model.DefectFlags
		confidence float64
		fire       bool
	}{
		{"clean deal", 0.75, model.DefectFlags{}, 0.9, true},
		{"exactly at threshold", 0.80, model.DefectFlags{}, 0.9, true},
		{"exactly at floor", 0.70, model.DefectFlags{}, 0.50, true},
		{"not discounted", 0.81, model.DefectFlags{}, 0.9, false},
		{"structural at half price", 0.5, model.DefectFlags{Structural: true}, 0.9, false},
		{"mechanical", 0.6, model.DefectFlags{Mechanical: true}, 0.9, false},
		{"electrical", 0.6, model.DefectFlags{Electrical: true}, 0.9, false},
		{"thin comps", 0.5, model.DefectFlags{}, 0.49, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := p.Decide(tt.ratio, tt.defects, tt.confidence)
			if d.Fire != tt.fire {
				t.Fatalf("fire = %v; want %v (%v)", d.Fire, tt.fire, d.Reasons)
			}
			if d.Fire && len(d.SuppressedBy) != 0 {
				t.Fatalf("fired with suppressions %v", d.SuppressedBy)
			}
			if !d.Fire && len(d.SuppressedBy) == 0 {
				t.Fatalf("suppressed without a reason")
			}
		})
	}
}

func TestDecideListsEverySuppression(t *testing.T) {
	d := DefaultPolicy().Decide(0.9, model.DefectFlags{Structural: true, Electrical: true}, 0.1)
	want := []string{ReasonNotDiscounted, "electrical", "structural", ReasonLowConfidence}
	if len(d.SuppressedBy) != len(want) {
		t.Fatalf("suppressed by %v; want %v", d.SuppressedBy, want)
	}
	for i := range want {
		if d.SuppressedBy[i] != want[i] {
			t.Fatalf("suppressed by %v; want %v", d.SuppressedBy, want)
		}
	}
}

func report(estimate int64, conf float64, defects model.DefectFlags) model.CMAReport {
	return model.CMAReport{ID: "rep-1", SubjectID: "subj", EstimateCents: estimate, Confidence: conf, SubjectDefects: defects}
}

func TestDetect(t *testing.T) {
	p := DefaultPolicy()

	alert, d := p.Detect(report(500_000_00, 0.8, model.DefectFlags{}), 390_500_00)
	if alert == nil {
		t.Fatalf("expected alert: %+v", d)
	}
	if alert.DiscountRatio != 0.781 || alert.Rationale != "Priced 21.9% below CMA estimate." {
		t.Fatalf("alert = %+v", alert)
	}
	if alert.ListingID != "subj" || alert.ReportID != "rep-1" || alert.MarketValueCents != 500_000_00 || alert.Acknowledged {
		t.Fatalf("alert fields = %+v", alert)
	}
	if alert.ID != AlertID("subj", "rep-1") {
		t.Fatalf("alert id not deterministic")
	}

	if a, _ := p.Detect(report(500_000_00, 0.8, model.DefectFlags{Structural: true}), 250_000_00); a != nil {
		t.Fatalf("structural defect at ratio 0.5 must not alert")
	}
	if a, d := p.Detect(report(0, 0.8, model.DefectFlags{}), 100); a != nil || d.SuppressedBy[0] != ReasonNoEstimate {
		t.Fatalf("zero estimate: alert=%v decision=%+v", a, d)
	}
	if a, d := p.Detect(report(100, 0.8, model.DefectFlags{}), 0); a != nil || d.SuppressedBy[0] != ReasonNoPrice {
		t.Fatalf("zero price: alert=%v decision=%+v", a, d)
	}
}

func TestAlertIDDistinctPerReport(t *testing.T) {
	if AlertID("l", "r1") == AlertID("l", "r2") {
		t.Fatalf("alert ids collide across reports")
	}
}
