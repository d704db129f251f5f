// Package errs holds the value-level failures the scoring core reports. Every
// failure is scoped to a single computation; callers match them with
// errors.As to render an actionable message.
package errs

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// InsufficientComparablesError reports that fewer comps than the policy
// minimum survived filtering. No report is produced.
type InsufficientComparablesError struct {
	SubjectID string
	Found     int
	Required  int
}

func (e *InsufficientComparablesError) Error() string {
	return fmt.Sprintf("insufficient comparables for %s: found %d, need %d", e.SubjectID, e.Found, e.Required)
}

// MissingFeatureDataError reports a required attribute that has no neutral
// default (price, geolocation).
type MissingFeatureDataError struct {
	ListingID string
	Field     string
}

func (e *MissingFeatureDataError) Error() string {
	return fmt.Sprintf("listing %s: missing required field %q", e.ListingID, e.Field)
}

// NotFoundError reports a referenced listing or client that does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// StaleDataError reports that a stored report was built from an older data
// version than the current comp pool. It is informational: the caller
// recomputes instead of serving the cached report.
type StaleDataError struct {
	ReportID string
	Have     string
	Want     string
}

func (e *StaleDataError) Error() string {
	return fmt.Sprintf("report %s is stale: data version %s, current %s", e.ReportID, e.Have, e.Want)
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsInsufficientComparables reports whether err wraps an InsufficientComparablesError.
func IsInsufficientComparables(err error) bool {
	var ic *InsufficientComparablesError
	return errors.As(err, &ic)
}

// IsStale reports whether err wraps a StaleDataError.
func IsStale(err error) bool {
	var se *StaleDataError
	return errors.As(err, &se)
}

// IsMissingFeatureData reports whether err wraps a MissingFeatureDataError.
func IsMissingFeatureData(err error) bool {
	var mf *MissingFeatureDataError
	return errors.As(err, &mf)
}
