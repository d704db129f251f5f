package snapshot

import (
	"sort"

	"github.com/cockroachdb/errors"

	"homescore/internal/model"
	"homescore/internal/state"
)

type RestoreResult struct {
	Applied int
	Skipped int
}

// Restore loads snap into st without overwriting newer data. Reports and
// alerts already present are skipped, so a stored acknowledgement survives.
// A cached preference vector is replaced only by a newer one.
func Restore(st state.Store, snap Snapshot) (RestoreResult, error) {
	var res RestoreResult

	reports := append([]model.CMAReport(nil), snap.Reports...)
	sort.SliceStable(reports, func(i, j int) bool {
		if !reports[i].GeneratedAt.Equal(reports[j].GeneratedAt) {
			return reports[i].GeneratedAt.Before(reports[j].GeneratedAt)
		}
		return reports[i].ID < reports[j].ID
	})
	for _, r := range reports {
		_, inserted, err := st.PutIfAbsent(r)
		if err != nil {
			return res, errors.Wrapf(err, "restore report %s", r.ID)
		}
		count(&res, inserted)
	}

	for _, a := range snap.Alerts {
		_, inserted, err := st.PutAlertIfAbsent(a)
		if err != nil {
			return res, errors.Wrapf(err, "restore alert %s", a.ID)
		}
		count(&res, inserted)
	}

	for _, pv := range snap.Preferences {
		cur, ok, err := st.Preference(pv.ClientID)
		if err != nil {
			return res, err
		}
		if ok && !pv.UpdatedAt.After(cur.UpdatedAt) {
			res.Skipped++
			continue
		}
		if err := st.PutPreference(pv); err != nil {
			return res, errors.Wrapf(err, "restore preference %s", pv.ClientID)
		}
		res.Applied++
	}
	return res, nil
}

func count(res *RestoreResult, applied bool) {
	if applied {
		res.Applied++
	} else {
		res.Skipped++
	}
}
