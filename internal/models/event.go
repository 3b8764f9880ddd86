package models

import "fmt"

// EventCategory is the closed set of domain events the sync engine can emit.
// Each category mirrors a row in the eventcategory registry table; the
// numeric registry ID and the default active flag are fixed here and
// verified against the store's registry by the test suite so the taxonomy
// cannot drift between code and schema.
type EventCategory int

const (
	// CategoryDifferentOwner fires when the owner scraped from the portal
	// differs from the owner recorded in the previous snapshot.
	CategoryDifferentOwner EventCategory = iota + 1
	CategoryDifferentStreet
	CategoryDifferentCityStateZip
	CategoryDifferentLivingArea
	CategoryDifferentCondition
	// CategoryDifferentMunicode fires when an orphaned parcel turns out to
	// have moved to another municipality.
	CategoryDifferentMunicode
	// CategoryNotInRealEstatePortal fires when an orphaned parcel cannot be
	// located on the county portal either.
	CategoryNotInRealEstatePortal
)

type categoryInfo struct {
	registryID int
	title      string
	active     bool
}

// NotInRealEstatePortal events start inactive: a missing portal page needs
// staff confirmation before it should drive any enforcement workflow.
var categoryRegistry = map[EventCategory]categoryInfo{
	CategoryDifferentOwner:        {registryID: 301, title: "DifferentOwner", active: true},
	CategoryDifferentStreet:       {registryID: 302, title: "DifferentStreet", active: true},
	CategoryDifferentCityStateZip: {registryID: 303, title: "DifferentCityStateZip", active: true},
	CategoryDifferentLivingArea:   {registryID: 304, title: "DifferentLivingArea", active: true},
	CategoryDifferentCondition:    {registryID: 305, title: "DifferentCondition", active: true},
	CategoryDifferentMunicode:     {registryID: 306, title: "DifferentMunicode", active: true},
	CategoryNotInRealEstatePortal: {registryID: 307, title: "NotInRealEstatePortal", active: false},
}

// AllEventCategories lists every category in registry order. Tests iterate
// this to check code/schema integrity; the detector relies on the tracked
// subset instead.
func AllEventCategories() []EventCategory {
	return []EventCategory{
		CategoryDifferentOwner,
		CategoryDifferentStreet,
		CategoryDifferentCityStateZip,
		CategoryDifferentLivingArea,
		CategoryDifferentCondition,
		CategoryDifferentMunicode,
		CategoryNotInRealEstatePortal,
	}
}

// RegistryID returns the category's primary key in the eventcategory table.
func (c EventCategory) RegistryID() int {
	return categoryRegistry[c].registryID
}

// DefaultActive returns whether events of this category are created active.
func (c EventCategory) DefaultActive() bool {
	return categoryRegistry[c].active
}

// Valid reports whether c is one of the defined categories.
func (c EventCategory) Valid() bool {
	_, ok := categoryRegistry[c]
	return ok
}

func (c EventCategory) String() string {
	if info, ok := categoryRegistry[c]; ok {
		return info.title
	}
	return fmt.Sprintf("EventCategory(%d)", int(c))
}

// EventCategoryRecord is a row of the eventcategory registry table.
type EventCategoryRecord struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Active bool   `json:"active"`
}

// Event is an append-only fact recording a detected difference between two
// observations of a parcel. Events are never mutated after write.
type Event struct {
	ID          int64         `json:"id"`
	Category    EventCategory `json:"category"`
	PropertyID  int64         `json:"property_id"`
	CaseID      int64         `json:"case_id"`
	OldValue    string        `json:"old_value"`
	NewValue    string        `json:"new_value"`
	Description string        `json:"description"`
	Active      bool          `json:"active"`
}
