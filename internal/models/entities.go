package models

import (
	"time"
)

// Municipality is a town or borough participating in the registry.
// Rows are created out of band; the sync engine only reads them.
type Municipality struct {
	Code int    `json:"municode"`
	Name string `json:"name"`
}

// Property is the registry's record of a parcel. The parcel ID is the
// immutable business key; a parcel maps to at most one property row.
type Property struct {
	ID               int64     `json:"id"`
	ParcelID         string    `json:"parcel_id"`
	MunicipalityCode int       `json:"municode"`
	CreatedAt        time.Time `json:"created_at"`
}

// Unit is a dwelling unit within a property. Every property carries at
// least one unit; when the external feed reports none, a unit with
// DefaultUnitNumber is created.
type Unit struct {
	ID         int64  `json:"id"`
	PropertyID int64  `json:"property_id"`
	UnitNumber string `json:"unit_number"`
}

// DefaultUnitNumber is the sentinel unit number assigned when the external
// source provides no unit information for a parcel.
const DefaultUnitNumber = "-1"

// Case is an enforcement case attached to a property and unit. A property
// accumulates cases over time; the current case is the most recently created.
type Case struct {
	ID         int64     `json:"id"`
	PropertyID int64     `json:"property_id"`
	UnitID     int64     `json:"unit_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Person is a property owner as observed on the assessment portal. The raw
// scraped string is kept verbatim alongside the parsed name parts.
type Person struct {
	ID        int64  `json:"id"`
	RawName   string `json:"raw_name"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}
