package services

import (
	"errors"
	"fmt"
)

// ErrInvalidInvocation is returned when the caller's mode flags are
// contradictory or absent. The engine requires an explicit choice between
// single-parcel mode and the per-parcel / diff municipality modes.
var ErrInvalidInvocation = errors.New("exactly one of single-parcel mode or the per-parcel/diff municipality modes must be requested")

// MalformedRecordError indicates a feed record is missing a required field.
// The affected parcel is skipped; the run continues.
type MalformedRecordError struct {
	ParcelID string
	Field    string
}

func (e *MalformedRecordError) Error() string {
	if e.ParcelID == "" {
		return fmt.Sprintf("feed record is missing required field %s", e.Field)
	}
	return fmt.Sprintf("feed record for parcel %s is missing required field %s", e.ParcelID, e.Field)
}

// SourceMismatchError indicates the bulk feed and the county portal disagree
// on a field they are expected to always agree on. The engine refuses to
// pick a side: the parcel is abandoned and the run continues.
type SourceMismatchError struct {
	ParcelID    string
	Field       string
	FeedValue   string
	PortalValue string
}

func (e *SourceMismatchError) Error() string {
	return fmt.Sprintf("feed and portal disagree on %s for parcel %s: feed reports %q, portal reports %q",
		e.Field, e.ParcelID, e.FeedValue, e.PortalValue)
}
