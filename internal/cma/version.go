package cma

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"homescore/internal/model"
)

var reportNamespace = uuid.MustParse("3b6f0d1e-7c52-4a8e-9f13-5d2c8a6b4e70")

type versionInput struct {
	Subject    model.Listing   `json:"subject"`
	Candidates []model.Listing `json:"candidates"`
	Window     model.Window    `json:"window"`
	Policy     Policy          `json:"policy"`
}

// DataVersion fingerprints every input that can change a report: the
// subject, the candidate pool (order-independent), the window and the policy.
func DataVersion(subject model.Listing, candidates []model.Listing, w model.Window, p Policy) (string, error) {
	sorted := make([]model.Listing, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	b, err := json.Marshal(versionInput{Subject: subject, Candidates: sorted, Window: w, Policy: p})
	if err != nil {
		return "", errors.Wrap(err, "encode version input")
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(b)), nil
}

// ReportID is derived from (subject, window, data version, generation time).
// A report regenerated after its TTL with unchanged data gets a new id, so
// it supersedes the expired one instead of colliding with it.
func ReportID(subjectID string, w model.Window, version string, generatedAt time.Time) string {
	key := subjectID + "|" + w.Key() + "|" + version + "|" + generatedAt.UTC().Format(time.RFC3339Nano)
	return uuid.NewSHA1(reportNamespace, []byte(key)).String()
}
