// Package snapshot writes point-in-time copies of the report store (CMA
// reports, deal alerts and cached preference vectors) to disk and restores
// them into an empty or partially populated store.
package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"

	"homescore/internal/model"
	"homescore/internal/state"
)

// Snapshot is the on-disk content of one snapshot.
type Snapshot struct {
	ID          string                   `json:"id"`
	CreatedAt   time.Time                `json:"createdAt"`
	Reports     []model.CMAReport        `json:"reports"`
	Alerts      []model.DealAlert        `json:"alerts"`
	Preferences []model.PreferenceVector `json:"preferences"`
}

type Snapshotter interface {
	WriteSnapshot(snapshotID string, st state.Store) (Manifest, error)
}

type FilesystemSnapshotter struct {
	baseDir string
	// Now is split for testability.
	Now func() time.Time
}

func NewFilesystemSnapshotter(baseDir string) *FilesystemSnapshotter {
	return &FilesystemSnapshotter{baseDir: baseDir, Now: func() time.Time { return time.Now().UTC() }}
}

// NewID returns a sortable snapshot id for t.
func NewID(t time.Time) string {
	return t.UTC().Format("20060102T150405.000Z")
}

// WriteSnapshot dumps st to <baseDir>/<id>/state.json and then points
// manifest.latest.json at it. Both files are replaced atomically, so a crash
// leaves the previous manifest intact.
func (f *FilesystemSnapshotter) WriteSnapshot(snapshotID string, st state.Store) (Manifest, error) {
	snap := Snapshot{ID: snapshotID, CreatedAt: f.Now()}
	if err := st.RangeReports(func(r model.CMAReport) error {
		snap.Reports = append(snap.Reports, r)
		return nil
	}); err != nil {
		return Manifest{}, err
	}
	if err := st.RangeAlerts(func(a model.DealAlert) error {
		snap.Alerts = append(snap.Alerts, a)
		return nil
	}); err != nil {
		return Manifest{}, err
	}
	if err := st.RangePreferences(func(pv model.PreferenceVector) error {
		snap.Preferences = append(snap.Preferences, pv)
		return nil
	}); err != nil {
		return Manifest{}, err
	}

	dir := filepath.Join(f.baseDir, snapshotID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Manifest{}, errors.Wrap(err, "mkdir")
	}
	if err := writeJSONAtomic(filepath.Join(dir, "state.json"), &snap); err != nil {
		return Manifest{}, err
	}
	m := Manifest{
		SnapshotID:  snapshotID,
		Reports:     len(snap.Reports),
		Alerts:      len(snap.Alerts),
		Preferences: len(snap.Preferences),
		CreatedAt:   snap.CreatedAt,
	}
	if err := writeJSONAtomic(filepath.Join(f.baseDir, manifestFile), &m); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// Read loads a snapshot by id.
func (f *FilesystemSnapshotter) Read(snapshotID string) (Snapshot, error) {
	if snapshotID == "" {
		return Snapshot{}, errors.New("snapshot id is empty")
	}
	data, err := os.ReadFile(filepath.Join(f.baseDir, snapshotID, "state.json"))
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "read snapshot")
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, errors.Wrap(err, "unmarshal snapshot")
	}
	return s, nil
}

func writeJSONAtomic(path string, v any) error {
	tmp := path + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(err, "create")
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		out.Close()
		return errors.Wrap(err, "encode")
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return errors.Wrap(err, "sync")
	}
	if err := out.Close(); err != nil {
		return errors.Wrap(err, "close")
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, "rename")
	}
	return nil
}
