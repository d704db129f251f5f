package state

import (
	"errors"
	"sync"
	"testing"
	"time"

	"homescore/internal/errs"
	"homescore/internal/model"
)

var (
	t0  = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	win = model.Window{RadiusMiles: 1, DayRange: 180}
)

func report(id, subject string, estimate int64) model.CMAReport {
	return model.CMAReport{ID: id, SubjectID: subject, Window: win, DataVersion: "v-" + id, EstimateCents: estimate, LowCents: estimate - 1, HighCents: estimate + 1, GeneratedAt: t0}
}

// stores runs fn against every Store implementation.
func stores(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewInMemoryStore()) })
	t.Run("pebble", func(t *testing.T) {
		st, err := NewPebbleStore(t.TempDir())
		if err != nil {
			t.Fatalf("pebble open: %v", err)
		}
		t.Cleanup(func() { _ = st.Close() })
		fn(t, st)
	})
}

func TestStore_PutIfAbsentAndLatest(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		if _, ok, err := s.Latest("subj", win); err != nil || ok {
			t.Fatalf("empty store latest: ok=%v err=%v", ok, err)
		}

		got, inserted, err := s.PutIfAbsent(report("r1", "subj", 100))
		if err != nil || !inserted || got.EstimateCents != 100 {
			t.Fatalf("first put: %+v inserted=%v err=%v", got, inserted, err)
		}

		// same id => idempotent skip, original kept
		got, inserted, err = s.PutIfAbsent(report("r1", "subj", 999))
		if err != nil || inserted || got.EstimateCents != 100 {
			t.Fatalf("second put should keep original: %+v inserted=%v err=%v", got, inserted, err)
		}

		// a newer report supersedes the latest pointer, the old one stays readable
		if _, _, err := s.PutIfAbsent(report("r2", "subj", 200)); err != nil {
			t.Fatalf("put r2: %v", err)
		}
		latest, ok, err := s.Latest("subj", win)
		if err != nil || !ok || latest.ID != "r2" {
			t.Fatalf("latest = %+v ok=%v err=%v", latest, ok, err)
		}
		old, ok, _ := s.Report("r1")
		if !ok || old.EstimateCents != 100 || !old.GeneratedAt.Equal(t0) {
			t.Fatalf("r1 = %+v ok=%v", old, ok)
		}

		// other windows are tracked separately
		other := model.Window{RadiusMiles: 2, DayRange: 90}
		if _, ok, _ := s.Latest("subj", other); ok {
			t.Fatalf("latest leaked across windows")
		}
	})
}

func TestStore_ConcurrentPutIfAbsent(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		var wg sync.WaitGroup
		var mu sync.Mutex
		inserts := 0
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, inserted, err := s.PutIfAbsent(report("same", "subj", 1))
				if err != nil {
					t.Errorf("put err: %v", err)
					return
				}
				if inserted {
					mu.Lock()
					inserts++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		if inserts != 1 {
			t.Fatalf("inserts = %d; want exactly 1", inserts)
		}
	})
}

func TestStore_Alerts(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		a := model.DealAlert{ID: "a1", ListingID: "subj", ReportID: "r1", DiscountRatio: 0.7, CreatedAt: t0}
		if _, inserted, err := s.PutAlertIfAbsent(a); err != nil || !inserted {
			t.Fatalf("put alert: inserted=%v err=%v", inserted, err)
		}
		if _, inserted, _ := s.PutAlertIfAbsent(a); inserted {
			t.Fatalf("duplicate alert inserted")
		}
		if _, _, err := s.PutAlertIfAbsent(model.DealAlert{ID: "a0", ListingID: "other"}); err != nil {
			t.Fatalf("put a0: %v", err)
		}

		if _, err := s.AcknowledgeAlert("missing", "rev", "", t0); !errs.IsNotFound(err) {
			t.Fatalf("want NotFoundError, got %v", err)
		}
		acked, err := s.AcknowledgeAlert("a1", "reviewer@example.com", "looks right", t0.Add(time.Hour))
		if err != nil || !acked.Acknowledged || acked.AcknowledgedBy != "reviewer@example.com" || acked.AcknowledgedAt == nil {
			t.Fatalf("ack = %+v err=%v", acked, err)
		}
		// second ack by someone else does not overwrite
		again, err := s.AcknowledgeAlert("a1", "someone-else", "", t0.Add(2*time.Hour))
		if err != nil || again.AcknowledgedBy != "reviewer@example.com" {
			t.Fatalf("re-ack = %+v err=%v", again, err)
		}
		got, ok, _ := s.Alert("a1")
		if !ok || !got.Acknowledged || got.ReviewerNotes != "looks right" {
			t.Fatalf("stored alert = %+v", got)
		}

		var seen []string
		if err := s.RangeAlerts(func(a model.DealAlert) error { seen = append(seen, a.ID); return nil }); err != nil {
			t.Fatalf("range err: %v", err)
		}
		if len(seen) != 2 || seen[0] != "a0" || seen[1] != "a1" {
			t.Fatalf("range = %v", seen)
		}
		stop := errors.New("stop")
		if err := s.RangeAlerts(func(model.DealAlert) error { return stop }); !errors.Is(err, stop) {
			t.Fatalf("range should surface callback error, got %v", err)
		}
	})
}

func TestStore_Preferences(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		if _, ok, err := s.Preference("c1"); err != nil || ok {
			t.Fatalf("empty preference: ok=%v err=%v", ok, err)
		}
		pv := model.PreferenceVector{ClientID: "c1", State: model.PreferenceWarm, Vector: map[string]float64{"beds": 0.6}, InteractionCount: 2, UpdatedAt: t0}
		if err := s.PutPreference(pv); err != nil {
			t.Fatalf("put: %v", err)
		}
		got, ok, err := s.Preference("c1")
		if err != nil || !ok || got.Vector["beds"] != 0.6 || got.State != model.PreferenceWarm || got.InteractionCount != 2 {
			t.Fatalf("got %+v ok=%v err=%v", got, ok, err)
		}
	})
}

func TestPebbleStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	st, err := NewPebbleStore(dir)
	if err != nil {
		t.Fatalf("pebble open: %v", err)
	}
	if _, _, err := st.PutIfAbsent(report("r1", "subj", 100)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	st, err = NewPebbleStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	got, ok, err := st.Latest("subj", win)
	if err != nil || !ok || got.ID != "r1" {
		t.Fatalf("after reopen latest = %+v ok=%v err=%v", got, ok, err)
	}
}

func TestStore_OlderReportKeepsLatest(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		newer := report("r2", "subj", 200)
		newer.GeneratedAt = t0.Add(time.Hour)
		if _, _, err := s.PutIfAbsent(newer); err != nil {
			t.Fatalf("put r2: %v", err)
		}
		if _, inserted, err := s.PutIfAbsent(report("r1", "subj", 100)); err != nil || !inserted {
			t.Fatalf("put r1: inserted=%v err=%v", inserted, err)
		}
		latest, _, _ := s.Latest("subj", win)
		if latest.ID != "r2" {
			t.Fatalf("latest = %s; want r2", latest.ID)
		}
	})
}

func TestStore_RangeReportsAndPreferences(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		for _, id := range []string{"r2", "r1", "r3"} {
			if _, _, err := s.PutIfAbsent(report(id, "subj-"+id, 100)); err != nil {
				t.Fatalf("put %s: %v", id, err)
			}
		}
		for _, c := range []string{"bob", "alice"} {
			if err := s.PutPreference(model.PreferenceVector{ClientID: c, UpdatedAt: t0}); err != nil {
				t.Fatalf("put %s: %v", c, err)
			}
		}

		var ids []string
		if err := s.RangeReports(func(r model.CMAReport) error {
			ids = append(ids, r.ID)
			return nil
		}); err != nil {
			t.Fatalf("range reports: %v", err)
		}
		if len(ids) != 3 || ids[0] != "r1" || ids[2] != "r3" {
			t.Fatalf("report ids = %v", ids)
		}

		var clients []string
		if err := s.RangePreferences(func(pv model.PreferenceVector) error {
			clients = append(clients, pv.ClientID)
			return nil
		}); err != nil {
			t.Fatalf("range preferences: %v", err)
		}
		if len(clients) != 2 || clients[0] != "alice" {
			t.Fatalf("clients = %v", clients)
		}
	})
}
