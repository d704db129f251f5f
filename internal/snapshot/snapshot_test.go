package snapshot

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"homescore/internal/model"
	"homescore/internal/state"
)

var (
	t0 = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	w  = model.Window{RadiusMiles: 1, DayRange: 180}
)

func report(id string, at time.Time) model.CMAReport {
	return model.CMAReport{ID: id, SubjectID: "subj", Window: w, DataVersion: "v-" + id, EstimateCents: 50_000_000, GeneratedAt: at}
}

func seeded(t *testing.T) *state.InMemoryStore {
	t.Helper()
	s := state.NewInMemoryStore()
	for _, r := range []model.CMAReport{report("r1", t0), report("r2", t0.Add(time.Hour))} {
		if _, _, err := s.PutIfAbsent(r); err != nil {
			t.Fatal(err)
		}
	}
	if _, _, err := s.PutAlertIfAbsent(model.DealAlert{ID: "a1", ListingID: "subj", ReportID: "r2", CreatedAt: t0}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AcknowledgeAlert("a1", "dana", "checked", t0.Add(2*time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := s.PutPreference(model.PreferenceVector{ClientID: "alice", State: model.PreferenceWarm, Vector: map[string]float64{"pool": 1}, UpdatedAt: t0}); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestWriteSnapshotWritesStateAndManifest(t *testing.T) {
	dir := t.TempDir()
	snap := NewFilesystemSnapshotter(dir)
	snap.Now = func() time.Time { return t0 }

	m, err := snap.WriteSnapshot(NewID(t0), seeded(t))
	if err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	if m.SnapshotID != "20260601T120000.000Z" || m.Reports != 2 || m.Alerts != 1 || m.Preferences != 1 {
		t.Fatalf("manifest = %+v", m)
	}

	b, err := os.ReadFile(filepath.Join(dir, m.SnapshotID, "state.json"))
	if err != nil {
		t.Fatalf("state.json missing: %v", err)
	}
	var s Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if len(s.Reports) != 2 || s.Reports[0].ID != "r1" || !s.Alerts[0].Acknowledged {
		t.Fatalf("snapshot = %+v", s)
	}
	if _, err := os.Stat(filepath.Join(dir, m.SnapshotID, "state.json.tmp")); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}

	latest, err := snap.ReadLatest()
	if err != nil || latest.SnapshotID != m.SnapshotID || latest.Reports != 2 || !latest.CreatedAt.Equal(t0) {
		t.Fatalf("ReadLatest = %+v, %v; want %+v", latest, err, m)
	}
}

func TestReadMissingSnapshot(t *testing.T) {
	snap := NewFilesystemSnapshotter(t.TempDir())
	if _, err := snap.ReadLatest(); err == nil {
		t.Fatal("want error without a manifest")
	}
	if _, err := snap.Read(""); err == nil {
		t.Fatal("want error for empty id")
	}
}

func TestRestoreIntoEmptyPebbleStore(t *testing.T) {
	dir := t.TempDir()
	snap := NewFilesystemSnapshotter(filepath.Join(dir, "snapshots"))
	m, err := snap.WriteSnapshot("s1", seeded(t))
	if err != nil {
		t.Fatal(err)
	}
	s, err := snap.Read(m.SnapshotID)
	if err != nil {
		t.Fatal(err)
	}

	st, err := state.NewPebbleStore(filepath.Join(dir, "pebble"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	res, err := Restore(st, s)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if res.Applied != 4 || res.Skipped != 0 {
		t.Fatalf("result = %+v; want 4 applied", res)
	}
	latest, ok, err := st.Latest("subj", w)
	if err != nil || !ok || latest.ID != "r2" {
		t.Fatalf("latest = %s ok=%v err=%v; want r2", latest.ID, ok, err)
	}
	a, ok, _ := st.Alert("a1")
	if !ok || !a.Acknowledged || a.AcknowledgedBy != "dana" {
		t.Fatalf("alert = %+v", a)
	}

	// a second restore changes nothing
	res, err = Restore(st, s)
	if err != nil || res.Applied != 0 || res.Skipped != 4 {
		t.Fatalf("second restore = %+v, %v", res, err)
	}
}

func TestRestoreKeepsNewerData(t *testing.T) {
	st := state.NewInMemoryStore()
	if _, _, err := st.PutIfAbsent(report("r3", t0.Add(5*time.Hour))); err != nil {
		t.Fatal(err)
	}
	if err := st.PutPreference(model.PreferenceVector{ClientID: "alice", State: model.PreferenceWarm, Vector: map[string]float64{"garage": 1}, UpdatedAt: t0.Add(time.Hour)}); err != nil {
		t.Fatal(err)
	}

	snap := Snapshot{
		Reports:     []model.CMAReport{report("r2", t0.Add(time.Hour)), report("r1", t0)},
		Preferences: []model.PreferenceVector{{ClientID: "alice", Vector: map[string]float64{"pool": 1}, UpdatedAt: t0}},
	}
	res, err := Restore(st, snap)
	if err != nil {
		t.Fatal(err)
	}
	if res.Applied != 2 || res.Skipped != 1 {
		t.Fatalf("result = %+v; want 2 applied 1 skipped", res)
	}
	latest, _, _ := st.Latest("subj", w)
	if latest.ID != "r3" {
		t.Fatalf("latest = %s; want r3", latest.ID)
	}
	if _, ok, _ := st.Report("r1"); !ok {
		t.Fatal("older report not restored")
	}
	pv, _, _ := st.Preference("alice")
	if pv.Vector["garage"] != 1 {
		t.Fatalf("newer preference overwritten: %+v", pv.Vector)
	}
}

var errDiskFull = errors.New("disk full")

type failingStore struct {
	*state.InMemoryStore
}

func (failingStore) PutAlertIfAbsent(model.DealAlert) (model.DealAlert, bool, error) {
	return model.DealAlert{}, false, errDiskFull
}

func TestRestoreWrapsStoreErrors(t *testing.T) {
	st := failingStore{state.NewInMemoryStore()}
	snap := Snapshot{
		Reports: []model.CMAReport{report("r1", t0)},
		Alerts:  []model.DealAlert{{ID: "a1", ReportID: "r1"}},
	}
	res, err := Restore(st, snap)
	if !errors.Is(err, errDiskFull) || !strings.Contains(err.Error(), "restore alert a1") {
		t.Fatalf("err = %v", err)
	}
	if res.Applied != 1 {
		t.Fatalf("result = %+v; want the report applied before the failure", res)
	}
}
