package state

import (
	"encoding/json"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"

	"homescore/internal/errs"
	"homescore/internal/model"
)

const (
	reportPrefix = "report/"
	latestPrefix = "latest/"
	alertPrefix  = "alert/"
	prefPrefix   = "pref/"
)

// PebbleStore implements Store using PebbleDB. Values are JSON.
type PebbleStore struct {
	db *pebble.DB
	// mu serialises check-then-insert within this process. Cross-process
	// callers are expected to hold a lock.Locker key.
	mu sync.Mutex
}

func NewPebbleStore(dir string) (*PebbleStore, error) {
	opts := &pebble.Options{
		MemTableSize:             64 << 20,
		MaxConcurrentCompactions: func() int { return 2 },
		L0CompactionThreshold:    4,
		L0StopWritesThreshold:    12,
		WALBytesPerSync:          1 << 20,
	}
	d, err := pebble.Open(filepath.Clean(dir), opts)
	if err != nil {
		return nil, errors.Wrap(err, "pebble open")
	}
	return &PebbleStore{db: d}, nil
}

func (p *PebbleStore) Close() error { return p.db.Close() }

// getJSON decodes the value at key into v. Missing keys report false.
func (p *PebbleStore) getJSON(key string, v any) (bool, error) {
	val, closer, err := p.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "pebble get %s", key)
	}
	defer closer.Close()
	if err := json.Unmarshal(val, v); err != nil {
		return false, errors.Wrapf(err, "decode %s", key)
	}
	return true, nil
}

func setJSON(b *pebble.Batch, key string, v any) error {
	bytes, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode %s", key)
	}
	return b.Set([]byte(key), bytes, nil)
}

func (p *PebbleStore) Latest(subjectID string, w model.Window) (model.CMAReport, bool, error) {
	var id string
	ok, err := p.getJSON(latestPrefix+latestKey(subjectID, w), &id)
	if err != nil || !ok {
		return model.CMAReport{}, false, err
	}
	return p.Report(id)
}

func (p *PebbleStore) Report(id string) (model.CMAReport, bool, error) {
	var r model.CMAReport
	ok, err := p.getJSON(reportPrefix+id, &r)
	return r, ok, err
}

// PutIfAbsent writes the report and its latest pointer in one batch.
func (p *PebbleStore) PutIfAbsent(r model.CMAReport) (model.CMAReport, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var cur model.CMAReport
	ok, err := p.getJSON(reportPrefix+r.ID, &cur)
	if err != nil {
		return model.CMAReport{}, false, err
	}
	if ok {
		return cur, false, nil
	}
	b := p.db.NewBatch()
	defer b.Close()
	if err := setJSON(b, reportPrefix+r.ID, r); err != nil {
		return model.CMAReport{}, false, err
	}
	newest, err := p.newerThanLatest(r)
	if err != nil {
		return model.CMAReport{}, false, err
	}
	if newest {
		if err := setJSON(b, latestPrefix+latestKey(r.SubjectID, r.Window), r.ID); err != nil {
			return model.CMAReport{}, false, err
		}
	}
	if err := b.Commit(pebble.NoSync); err != nil {
		return model.CMAReport{}, false, errors.Wrap(err, "commit report")
	}
	return r, true, nil
}

func (p *PebbleStore) newerThanLatest(r model.CMAReport) (bool, error) {
	var id string
	ok, err := p.getJSON(latestPrefix+latestKey(r.SubjectID, r.Window), &id)
	if err != nil || !ok {
		return true, err
	}
	var cur model.CMAReport
	ok, err = p.getJSON(reportPrefix+id, &cur)
	if err != nil || !ok {
		return true, err
	}
	return !r.GeneratedAt.Before(cur.GeneratedAt), nil
}

func (p *PebbleStore) Alert(id string) (model.DealAlert, bool, error) {
	var a model.DealAlert
	ok, err := p.getJSON(alertPrefix+id, &a)
	return a, ok, err
}

func (p *PebbleStore) PutAlertIfAbsent(a model.DealAlert) (model.DealAlert, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var cur model.DealAlert
	ok, err := p.getJSON(alertPrefix+a.ID, &cur)
	if err != nil {
		return model.DealAlert{}, false, err
	}
	if ok {
		return cur, false, nil
	}
	if err := p.putAlert(a); err != nil {
		return model.DealAlert{}, false, err
	}
	return a, true, nil
}

func (p *PebbleStore) AcknowledgeAlert(id, reviewer, notes string, at time.Time) (model.DealAlert, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var a model.DealAlert
	ok, err := p.getJSON(alertPrefix+id, &a)
	if err != nil {
		return model.DealAlert{}, err
	}
	if !ok {
		return model.DealAlert{}, &errs.NotFoundError{Kind: "alert", ID: id}
	}
	if a.Acknowledged {
		return a, nil
	}
	a = acknowledge(a, reviewer, notes, at)
	if err := p.putAlert(a); err != nil {
		return model.DealAlert{}, err
	}
	return a, nil
}

// Alerts are not re-derivable, so they are synced.
func (p *PebbleStore) putAlert(a model.DealAlert) error {
	b := p.db.NewBatch()
	defer b.Close()
	if err := setJSON(b, alertPrefix+a.ID, a); err != nil {
		return err
	}
	return errors.Wrap(b.Commit(pebble.Sync), "commit alert")
}

func (p *PebbleStore) RangeAlerts(fn func(a model.DealAlert) error) error {
	return rangePrefix(p, alertPrefix, fn)
}

func (p *PebbleStore) RangeReports(fn func(r model.CMAReport) error) error {
	return rangePrefix(p, reportPrefix, fn)
}

// rangePrefix decodes every value under prefix in key order.
func rangePrefix[T any](p *PebbleStore, prefix string, fn func(T) error) error {
	it, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return errors.Wrap(err, "pebble iter")
	}
	defer it.Close()
	for it.First(); it.Valid(); it.Next() {
		var v T
		if err := json.Unmarshal(it.Value(), &v); err != nil {
			return errors.Wrapf(err, "decode %s", it.Key())
		}
		if err := fn(v); err != nil {
			return errors.Wrap(err, "range callback failed")
		}
	}
	return it.Error()
}

func (p *PebbleStore) Preference(clientID string) (model.PreferenceVector, bool, error) {
	var pv model.PreferenceVector
	ok, err := p.getJSON(prefPrefix+clientID, &pv)
	return pv, ok, err
}

func (p *PebbleStore) PutPreference(pv model.PreferenceVector) error {
	b := p.db.NewBatch()
	defer b.Close()
	if err := setJSON(b, prefPrefix+pv.ClientID, pv); err != nil {
		return err
	}
	return errors.Wrap(b.Commit(pebble.NoSync), "commit preference")
}

func (p *PebbleStore) RangePreferences(fn func(pv model.PreferenceVector) error) error {
	return rangePrefix(p, prefPrefix, fn)
}

// prefixEnd returns the smallest key greater than every key with prefix.
func prefixEnd(prefix string) []byte {
	end := []byte(prefix)
	end[len(end)-1]++
	return end
}
