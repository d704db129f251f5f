package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRegistryServesMetrics(t *testing.T) {
	r := NewRegistry()
	r.ReportsGenerated.Inc()
	r.AlertsSuppressed.WithLabelValues("structural").Inc()
	r.RecomputeTotal.WithLabelValues("warm").Add(2)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)
	for _, want := range []string{
		"homescore_cma_reports_generated_total 1",
		`homescore_deal_alerts_suppressed_total{reason="structural"} 1`,
		`homescore_preference_recompute_total{state="warm"} 2`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in output", want)
		}
	}

	mfs, err := r.Gatherer().Gather()
	if err != nil || len(mfs) == 0 {
		t.Fatalf("gather: %d families, err=%v", len(mfs), err)
	}
}
