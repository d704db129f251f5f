package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	// CMA
	ReportsGenerated  prometheus.Counter
	ReportsReused     prometheus.Counter
	ReportsStale      prometheus.Counter
	InsufficientComps prometheus.Counter
	ReportConfidence  prometheus.Histogram
	ReportLatencySec  prometheus.Histogram
	ComparablesPerRun prometheus.Histogram

	// Deals
	AlertsFired      prometheus.Counter
	AlertsSuppressed *prometheus.CounterVec
	AlertsPublishErr prometheus.Counter

	// Preferences
	RecomputeTotal  *prometheus.CounterVec
	RecomputeSec    prometheus.Histogram
	EventsConsumed  prometheus.Counter
	EventsMalformed prometheus.Counter
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	reg := &Registry{
		reg:               r,
		ReportsGenerated:  prometheus.NewCounter(prometheus.CounterOpts{Name: "homescore_cma_reports_generated_total"}),
		ReportsReused:     prometheus.NewCounter(prometheus.CounterOpts{Name: "homescore_cma_reports_reused_total"}),
		ReportsStale:      prometheus.NewCounter(prometheus.CounterOpts{Name: "homescore_cma_reports_stale_total"}),
		InsufficientComps: prometheus.NewCounter(prometheus.CounterOpts{Name: "homescore_cma_insufficient_comps_total"}),
		ReportConfidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "homescore_cma_confidence",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		ReportLatencySec: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "homescore_cma_latency_seconds",
			Buckets: prometheus.DefBuckets,
		}),
		ComparablesPerRun: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "homescore_cma_comparables",
			Buckets: prometheus.LinearBuckets(1, 1, 12),
		}),
		AlertsFired: prometheus.NewCounter(prometheus.CounterOpts{Name: "homescore_deal_alerts_fired_total"}),
		AlertsSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "homescore_deal_alerts_suppressed_total",
		}, []string{"reason"}),
		AlertsPublishErr: prometheus.NewCounter(prometheus.CounterOpts{Name: "homescore_deal_alerts_publish_errors_total"}),
		RecomputeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "homescore_preference_recompute_total",
		}, []string{"state"}),
		RecomputeSec: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "homescore_preference_recompute_seconds",
			Buckets: prometheus.DefBuckets,
		}),
		EventsConsumed:  prometheus.NewCounter(prometheus.CounterOpts{Name: "homescore_interaction_events_consumed_total"}),
		EventsMalformed: prometheus.NewCounter(prometheus.CounterOpts{Name: "homescore_interaction_events_malformed_total"}),
	}
	r.MustRegister(
		reg.ReportsGenerated, reg.ReportsReused, reg.ReportsStale, reg.InsufficientComps,
		reg.ReportConfidence, reg.ReportLatencySec, reg.ComparablesPerRun,
		reg.AlertsFired, reg.AlertsSuppressed, reg.AlertsPublishErr,
		reg.RecomputeTotal, reg.RecomputeSec, reg.EventsConsumed, reg.EventsMalformed,
	)
	return reg
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

// Gatherer exposes the underlying registry for tests and custom exporters.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }
