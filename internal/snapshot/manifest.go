package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
)

const manifestFile = "manifest.latest.json"

// Manifest points at the most recent complete snapshot.
type Manifest struct {
	SnapshotID  string    `json:"snapshotId"`
	Reports     int       `json:"reports"`
	Alerts      int       `json:"alerts"`
	Preferences int       `json:"preferences"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Reader interface {
	ReadLatest() (Manifest, error)
}

func (f *FilesystemSnapshotter) ReadLatest() (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(f.baseDir, manifestFile))
	if err != nil {
		return Manifest{}, errors.Wrap(err, "read manifest")
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, errors.Wrap(err, "unmarshal manifest")
	}
	return m, nil
}
