package services

import (
	"fmt"
	"strconv"

	"github.com/cogland/parcelsync/internal/models"
)

// trackedField is one snapshot attribute the detector watches, paired with
// the event category emitted when it changes.
type trackedField struct {
	name     string
	category models.EventCategory
	extract  func(*models.Snapshot) string
}

// trackedFields fixes the evaluation order of the change detector. The
// detector stops at the first differing field, so this order decides which
// single event a multi-field change produces.
var trackedFields = []trackedField{
	{"owner", models.CategoryDifferentOwner, func(s *models.Snapshot) string { return s.OwnerRaw }},
	{"street", models.CategoryDifferentStreet, func(s *models.Snapshot) string { return s.Street }},
	{"city/state/zip", models.CategoryDifferentCityStateZip, func(s *models.Snapshot) string { return s.CityStateZip }},
	{"living area", models.CategoryDifferentLivingArea, func(s *models.Snapshot) string { return strconv.Itoa(s.LivingArea) }},
	{"condition", models.CategoryDifferentCondition, func(s *models.Snapshot) string { return strconv.Itoa(s.Condition) }},
}

// DetectChange compares the new snapshot against the previous one and
// returns the event for the first tracked field that differs, or nil when
// nothing changed. A nil previous snapshot is a first observation and never
// yields an event. Values are compared by exact equality and carried into
// the event verbatim; formatting-only differences are deliberately reported
// rather than fuzzily ignored.
func DetectChange(prev, next *models.Snapshot, propertyID, caseID int64) *models.Event {
	if prev == nil {
		return nil
	}

	for _, field := range trackedFields {
		oldValue := field.extract(prev)
		newValue := field.extract(next)
		if oldValue == newValue {
			continue
		}
		return &models.Event{
			Category:    field.category,
			PropertyID:  propertyID,
			CaseID:      caseID,
			OldValue:    oldValue,
			NewValue:    newValue,
			Description: fmt.Sprintf("Parcel %s changed from %q to %q", field.name, oldValue, newValue),
			Active:      field.category.DefaultActive(),
		}
	}
	return nil
}

// municodeChangeEvent builds the event for a parcel that moved to another
// municipality.
func municodeChangeEvent(parcelID string, propertyID, caseID int64, oldMunicode, newMunicode int) *models.Event {
	return &models.Event{
		Category:    models.CategoryDifferentMunicode,
		PropertyID:  propertyID,
		CaseID:      caseID,
		OldValue:    strconv.Itoa(oldMunicode),
		NewValue:    strconv.Itoa(newMunicode),
		Description: fmt.Sprintf("Parcel %s is now listed under municipality %d (was %d)", parcelID, newMunicode, oldMunicode),
		Active:      models.CategoryDifferentMunicode.DefaultActive(),
	}
}

// portalAbsenceEvent builds the event for a parcel that is gone from the
// bulk feed and could not be located on the county portal either.
func portalAbsenceEvent(parcelID string, propertyID, caseID int64, oldMunicode int) *models.Event {
	return &models.Event{
		Category:    models.CategoryNotInRealEstatePortal,
		PropertyID:  propertyID,
		CaseID:      caseID,
		OldValue:    strconv.Itoa(oldMunicode),
		NewValue:    "",
		Description: fmt.Sprintf("Parcel %s no longer appears in the bulk feed and was not found on the real estate portal", parcelID),
		Active:      models.CategoryNotInRealEstatePortal.DefaultActive(),
	}
}
