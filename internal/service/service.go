// Package service runs the valuation and matching engines against the
// data-access layer, the report store, the advisory lock and the alert
// publishers.
package service

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"homescore/internal/alerts"
	"homescore/internal/cma"
	"homescore/internal/deal"
	"homescore/internal/errs"
	"homescore/internal/lock"
	"homescore/internal/logger"
	"homescore/internal/metrics"
	"homescore/internal/model"
	"homescore/internal/preference"
	"homescore/internal/repository"
	"homescore/internal/state"
)

// Now returns the current time. Split for testability.
var Now = func() time.Time { return time.Now().UTC() }

// Source is the read side of the data-access layer.
type Source interface {
	repository.ListingSource
	repository.InteractionSource
}

// Options carries the engine policies and the recompute fan-out.
type Options struct {
	CMA        cma.Policy
	Deal       deal.Policy
	Preference preference.Policy
	Workers    int
}

// DefaultOptions returns stock policies with four workers.
func DefaultOptions() Options {
	return Options{
		CMA:        cma.DefaultPolicy(),
		Deal:       deal.DefaultPolicy(),
		Preference: preference.DefaultPolicy(),
		Workers:    4,
	}
}

type Service struct {
	repo      Source
	store     state.Store
	locker    lock.Locker
	publisher alerts.Publisher
	metrics   *metrics.Registry
	log       logrus.FieldLogger

	engine  *cma.Engine
	deals   deal.Policy
	prefs   preference.Policy
	workers int
}

// New builds a Service. A nil locker falls back to an in-process keyed
// mutex, a nil publisher discards alerts, and nil metrics or logger get
// private defaults.
func New(repo Source, store state.Store, locker lock.Locker, pub alerts.Publisher, m *metrics.Registry, log logrus.FieldLogger, opts Options) *Service {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	if pub == nil {
		pub = alerts.Discard{}
	}
	if m == nil {
		m = metrics.NewRegistry()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Service{
		repo:      repo,
		store:     store,
		locker:    locker,
		publisher: pub,
		metrics:   m,
		log:       log.WithField("component", "service"),
		engine:    cma.NewEngine(opts.CMA),
		deals:     opts.Deal,
		prefs:     opts.Preference,
		workers:   opts.Workers,
	}
}

// EnsureCMAReport returns the current report for (subject, window),
// generating and storing one when none exists or the stored one is stale.
// Concurrent callers for the same subject and window are serialised on the
// advisory lock, so at most one report is stored per data version.
func (s *Service) EnsureCMAReport(ctx context.Context, subjectID string, w model.Window) (model.CMAReport, error) {
	_, r, err := s.ensure(ctx, subjectID, w)
	return r, err
}

func (s *Service) ensure(ctx context.Context, subjectID string, w model.Window) (model.Listing, model.CMAReport, error) {
	start := time.Now()
	fields := logrus.Fields{"subject_id": subjectID, "window": w.Key()}

	unlock, err := s.locker.Lock(ctx, "cma:"+subjectID+":"+w.Key())
	if err != nil {
		return model.Listing{}, model.CMAReport{}, errors.Wrapf(err, "lock cma for %s", subjectID)
	}
	defer unlock()

	subject, err := s.repo.GetListing(ctx, subjectID)
	if err != nil {
		return model.Listing{}, model.CMAReport{}, err
	}
	if subject.Location == nil {
		return subject, model.CMAReport{}, &errs.MissingFeatureDataError{ListingID: subjectID, Field: "location"}
	}
	candidates, err := s.repo.ListListingsNear(ctx, *subject.Location, w.RadiusMiles, s.engine.Policy().EligibleStatuses())
	if err != nil {
		return subject, model.CMAReport{}, errors.Wrapf(err, "list comparables near %s", subjectID)
	}

	var existing *model.CMAReport
	prev, ok, err := s.store.Latest(subjectID, w)
	if err != nil {
		return subject, model.CMAReport{}, errors.Wrapf(err, "load latest report for %s", subjectID)
	}
	if ok {
		existing = &prev
	}

	report, reused, err := s.engine.Ensure(existing, subject, candidates, w, Now())
	if err != nil {
		if errs.IsInsufficientComparables(err) {
			s.metrics.InsufficientComps.Inc()
		}
		logger.LogError(s.log, "service", "EnsureCMAReport", fields, err)
		return subject, model.CMAReport{}, err
	}
	if reused {
		s.metrics.ReportsReused.Inc()
		s.log.WithFields(fields).WithField("report_id", report.ID).Debug("cma report still current")
		return subject, report, nil
	}
	if existing != nil {
		s.metrics.ReportsStale.Inc()
	}

	stored, inserted, err := s.store.PutIfAbsent(report)
	if err != nil {
		return subject, model.CMAReport{}, errors.Wrapf(err, "store report %s", report.ID)
	}
	if inserted {
		s.metrics.ReportsGenerated.Inc()
		s.metrics.ReportConfidence.Observe(stored.Confidence)
		s.metrics.ComparablesPerRun.Observe(float64(len(stored.Comparables)))
	}
	s.metrics.ReportLatencySec.Observe(time.Since(start).Seconds())
	s.log.WithFields(fields).WithFields(logrus.Fields{
		"report_id":  stored.ID,
		"comps":      len(stored.Comparables),
		"estimate":   stored.EstimateCents,
		"confidence": stored.Confidence,
		"inserted":   inserted,
	}).Info("cma report generated")
	return subject, stored, nil
}

// DetectDeal decides whether the subject of report priced at priceCents is
// a deal. A fired alert is stored once per (listing, report) and published
// only on first insertion. The decision is returned either way.
func (s *Service) DetectDeal(ctx context.Context, report model.CMAReport, priceCents int64) (*model.DealAlert, deal.Decision, error) {
	fields := logrus.Fields{"subject_id": report.SubjectID, "report_id": report.ID}
	alert, d := s.deals.Detect(report, priceCents)
	if alert == nil {
		for _, reason := range d.SuppressedBy {
			s.metrics.AlertsSuppressed.WithLabelValues(reason).Inc()
		}
		s.log.WithFields(fields).WithField("suppressed_by", d.SuppressedBy).Debug("no deal")
		return nil, d, nil
	}

	alert.CreatedAt = Now()
	stored, inserted, err := s.store.PutAlertIfAbsent(*alert)
	if err != nil {
		return nil, d, errors.Wrapf(err, "store alert %s", alert.ID)
	}
	if !inserted {
		return &stored, d, nil
	}
	s.metrics.AlertsFired.Inc()
	s.log.WithFields(fields).WithFields(logrus.Fields{
		"alert_id":   stored.ID,
		"ratio":      stored.DiscountRatio,
		"confidence": stored.Confidence,
	}).Info("deal alert fired")
	if err := s.publisher.Publish(ctx, stored); err != nil {
		s.metrics.AlertsPublishErr.Inc()
		logger.LogError(s.log, "service", "DetectDeal", fields, err)
		return &stored, d, errors.Wrapf(err, "publish alert %s", stored.ID)
	}
	return &stored, d, nil
}

// ScanForDeal ensures the subject's report and checks its current asking
// price against it.
func (s *Service) ScanForDeal(ctx context.Context, subjectID string, w model.Window) (*model.DealAlert, deal.Decision, model.CMAReport, error) {
	subject, report, err := s.ensure(ctx, subjectID, w)
	if err != nil {
		return nil, deal.Decision{}, model.CMAReport{}, err
	}
	alert, d, err := s.DetectDeal(ctx, report, subject.PriceCents())
	return alert, d, report, err
}

// AcknowledgeAlert records a reviewer's acknowledgement of an alert.
func (s *Service) AcknowledgeAlert(_ context.Context, alertID, reviewer, notes string) (model.DealAlert, error) {
	if reviewer == "" {
		return model.DealAlert{}, errors.New("acknowledge: reviewer is required")
	}
	a, err := s.store.AcknowledgeAlert(alertID, reviewer, notes, Now())
	if err != nil {
		return model.DealAlert{}, err
	}
	s.log.WithFields(logrus.Fields{"alert_id": alertID, "reviewer": reviewer}).Info("deal alert acknowledged")
	return a, nil
}

// ReplayAlerts republishes stored alerts in id order, skipping
// acknowledged ones unless all is set. It returns how many were published.
func (s *Service) ReplayAlerts(ctx context.Context, all bool) (int, error) {
	n := 0
	err := s.store.RangeAlerts(func(a model.DealAlert) error {
		if a.Acknowledged && !all {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.publisher.Publish(ctx, a); err != nil {
			s.metrics.AlertsPublishErr.Inc()
			return errors.Wrapf(err, "publish alert %s", a.ID)
		}
		n++
		return nil
	})
	return n, err
}

// RecomputePreferenceVector folds the client's full interaction history
// into a fresh vector and caches it. Interactions whose listing no longer
// exists are counted as skipped.
func (s *Service) RecomputePreferenceVector(ctx context.Context, clientID string) (model.PreferenceVector, error) {
	start := time.Now()
	history, err := s.repo.ListInteractions(ctx, clientID)
	if err != nil {
		return model.PreferenceVector{}, errors.Wrapf(err, "list interactions for %s", clientID)
	}
	return s.recompute(ctx, clientID, history, start)
}

func (s *Service) recompute(ctx context.Context, clientID string, history []model.Interaction, start time.Time) (model.PreferenceVector, error) {
	listings := make(map[string]model.Listing)
	for _, it := range history {
		if err := ctx.Err(); err != nil {
			return model.PreferenceVector{}, err
		}
		if _, ok := listings[it.ListingID]; ok {
			continue
		}
		l, err := s.repo.GetListing(ctx, it.ListingID)
		if errs.IsNotFound(err) {
			continue
		}
		if err != nil {
			return model.PreferenceVector{}, errors.Wrapf(err, "load listing %s", it.ListingID)
		}
		listings[it.ListingID] = l
	}

	pv := preference.Recompute(clientID, history, listings, s.prefs, Now())
	if err := s.store.PutPreference(pv); err != nil {
		return model.PreferenceVector{}, errors.Wrapf(err, "cache preference for %s", clientID)
	}
	s.metrics.RecomputeTotal.WithLabelValues(string(pv.State)).Inc()
	s.metrics.RecomputeSec.Observe(time.Since(start).Seconds())
	s.log.WithFields(logrus.Fields{
		"client_id":    clientID,
		"state":        pv.State,
		"interactions": pv.InteractionCount,
		"skipped":      pv.SkippedCount,
	}).Debug("preference vector recomputed")
	return pv, nil
}

// RecomputeAll recomputes every client on a bounded worker pool. Clients
// are independent; the first failure cancels the rest.
func (s *Service) RecomputeAll(ctx context.Context, clientIDs []string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, id := range clientIDs {
		id := id
		g.Go(func() error {
			_, err := s.RecomputePreferenceVector(gctx, id)
			return err
		})
	}
	return g.Wait()
}

// ScoreAndRank ranks candidates for the client using the cached preference
// vector. The vector is recomputed when none is cached or when the stored
// interaction history has changed since it was folded.
func (s *Service) ScoreAndRank(ctx context.Context, clientID string, candidates []model.Listing) ([]preference.RankedListing, error) {
	start := time.Now()
	history, err := s.repo.ListInteractions(ctx, clientID)
	if err != nil {
		return nil, errors.Wrapf(err, "list interactions for %s", clientID)
	}
	pv, ok, err := s.store.Preference(clientID)
	if err != nil {
		return nil, errors.Wrapf(err, "load preference for %s", clientID)
	}
	if !ok || !preference.Current(pv, history) {
		if pv, err = s.recompute(ctx, clientID, history, start); err != nil {
			return nil, err
		}
	}
	return preference.ScoreAndRank(pv, candidates, s.prefs), nil
}

// Preference returns the cached vector for clientID, if any.
func (s *Service) Preference(clientID string) (model.PreferenceVector, bool, error) {
	return s.store.Preference(clientID)
}
