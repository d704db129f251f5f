package state

import (
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"homescore/internal/errs"
	"homescore/internal/model"
)

// ReportStore persists CMA reports and deal alerts. Reports and alerts are
// inserted at most once per id; the "latest" pointer per (subject, window)
// tracks the newest report.
type ReportStore interface {
	Latest(subjectID string, w model.Window) (model.CMAReport, bool, error)
	Report(id string) (model.CMAReport, bool, error)
	// PutIfAbsent stores r unless a report with the same id exists. It
	// returns the stored report and whether this call inserted it. The latest
	// pointer moves to r unless it already names a newer report.
	PutIfAbsent(r model.CMAReport) (model.CMAReport, bool, error)

	Alert(id string) (model.DealAlert, bool, error)
	PutAlertIfAbsent(a model.DealAlert) (model.DealAlert, bool, error)
	// AcknowledgeAlert records a reviewer's acknowledgement. It fails with
	// *errs.NotFoundError for an unknown id and is a no-op when already
	// acknowledged.
	AcknowledgeAlert(id, reviewer, notes string, at time.Time) (model.DealAlert, error)
	RangeAlerts(fn func(a model.DealAlert) error) error
	RangeReports(fn func(r model.CMAReport) error) error
}

// PreferenceStore caches preference vectors by client id.
type PreferenceStore interface {
	Preference(clientID string) (model.PreferenceVector, bool, error)
	PutPreference(pv model.PreferenceVector) error
	RangePreferences(fn func(pv model.PreferenceVector) error) error
}

// Store is the full persistence surface of the service.
type Store interface {
	ReportStore
	PreferenceStore
	Close() error
}

func latestKey(subjectID string, w model.Window) string {
	return subjectID + "|" + w.Key()
}

// InMemoryStore is a simple thread-safe map store.
type InMemoryStore struct {
	mu      sync.RWMutex
	reports map[string]model.CMAReport
	latest  map[string]string
	alerts  map[string]model.DealAlert
	prefs   map[string]model.PreferenceVector
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		reports: make(map[string]model.CMAReport),
		latest:  make(map[string]string),
		alerts:  make(map[string]model.DealAlert),
		prefs:   make(map[string]model.PreferenceVector),
	}
}

func (s *InMemoryStore) Close() error { return nil }

func (s *InMemoryStore) Latest(subjectID string, w model.Window) (model.CMAReport, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.latest[latestKey(subjectID, w)]
	if !ok {
		return model.CMAReport{}, false, nil
	}
	r, ok := s.reports[id]
	return r, ok, nil
}

func (s *InMemoryStore) Report(id string) (model.CMAReport, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	return r, ok, nil
}

func (s *InMemoryStore) PutIfAbsent(r model.CMAReport) (model.CMAReport, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.reports[r.ID]; ok {
		return cur, false, nil
	}
	s.reports[r.ID] = r
	key := latestKey(r.SubjectID, r.Window)
	if cur, ok := s.reports[s.latest[key]]; !ok || !r.GeneratedAt.Before(cur.GeneratedAt) {
		s.latest[key] = r.ID
	}
	return r, true, nil
}

func (s *InMemoryStore) Alert(id string) (model.DealAlert, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[id]
	return a, ok, nil
}

func (s *InMemoryStore) PutAlertIfAbsent(a model.DealAlert) (model.DealAlert, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.alerts[a.ID]; ok {
		return cur, false, nil
	}
	s.alerts[a.ID] = a
	return a, true, nil
}

func (s *InMemoryStore) AcknowledgeAlert(id, reviewer, notes string, at time.Time) (model.DealAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return model.DealAlert{}, &errs.NotFoundError{Kind: "alert", ID: id}
	}
	if a.Acknowledged {
		return a, nil
	}
	s.alerts[id] = acknowledge(a, reviewer, notes, at)
	return s.alerts[id], nil
}

// RangeAlerts visits alerts in id order over a copy, so fn may write to
// the store.
func (s *InMemoryStore) RangeAlerts(fn func(a model.DealAlert) error) error {
	s.mu.RLock()
	alerts := sortedValues(s.alerts)
	s.mu.RUnlock()
	return each(alerts, fn)
}

func (s *InMemoryStore) RangeReports(fn func(r model.CMAReport) error) error {
	s.mu.RLock()
	reports := sortedValues(s.reports)
	s.mu.RUnlock()
	return each(reports, fn)
}

func (s *InMemoryStore) RangePreferences(fn func(pv model.PreferenceVector) error) error {
	s.mu.RLock()
	prefs := sortedValues(s.prefs)
	s.mu.RUnlock()
	return each(prefs, fn)
}

func sortedValues[T any](m map[string]T) []T {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]T, len(keys))
	for i, k := range keys {
		out[i] = m[k]
	}
	return out
}

func each[T any](vs []T, fn func(T) error) error {
	for _, v := range vs {
		if err := fn(v); err != nil {
			return errors.Wrap(err, "range callback failed")
		}
	}
	return nil
}

func (s *InMemoryStore) Preference(clientID string) (model.PreferenceVector, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pv, ok := s.prefs[clientID]
	return pv, ok, nil
}

func (s *InMemoryStore) PutPreference(pv model.PreferenceVector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[pv.ClientID] = pv
	return nil
}

func acknowledge(a model.DealAlert, reviewer, notes string, at time.Time) model.DealAlert {
	t := at.UTC()
	a.Acknowledged = true
	a.AcknowledgedBy = reviewer
	a.AcknowledgedAt = &t
	a.ReviewerNotes = notes
	return a
}
