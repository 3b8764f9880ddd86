// Package repository provides data access for the property registry. The
// sync engine talks to it exclusively through the Store and Tx interfaces so
// the reconciliation logic can be tested without a database.
package repository

import (
	"context"
	"fmt"

	"github.com/cogland/parcelsync/internal/models"
)

// DuplicateParcelError signals that more than one property row matched a
// parcel id. The parcel id column carries a unique constraint, so this means
// store corruption; callers must abort the whole run.
type DuplicateParcelError struct {
	ParcelID string
	Count    int
}

func (e *DuplicateParcelError) Error() string {
	return fmt.Sprintf("parcel %s matched %d property rows, expected at most one", e.ParcelID, e.Count)
}

// Store opens transactions against the registry database.
type Store interface {
	// Begin starts a transaction. Beginning a transaction on a Tx opens a
	// nested transaction (savepoint) that can be rolled back independently.
	Begin(ctx context.Context) (Tx, error)
}

// Tx is one registry transaction. Read methods return nil (not an error)
// when no row matches; write methods return the generated id.
type Tx interface {
	// Municipality reads. Municipalities are created out of band and are
	// read-only to the engine.
	Municipalities(ctx context.Context) ([]models.Municipality, error)
	MunicipalityByCode(ctx context.Context, code int) (*models.Municipality, error)

	// Entity resolution and creation (the upsert layer's primitives).
	PropertyByParcelID(ctx context.Context, parcelID string) (*models.Property, error)
	CreateProperty(ctx context.Context, property *models.Property) (int64, error)
	UnitByProperty(ctx context.Context, propertyID int64) (*models.Unit, error)
	CreateUnit(ctx context.Context, unit *models.Unit) (int64, error)
	CurrentCase(ctx context.Context, propertyID int64) (*models.Case, error)
	CreateCase(ctx context.Context, c *models.Case) (int64, error)
	CreatePerson(ctx context.Context, person *models.Person) (int64, error)
	LinkPropertyPerson(ctx context.Context, propertyID, personID int64) error

	// Append-only logs.
	InsertTaxStatus(ctx context.Context, status *models.TaxStatus) (int64, error)
	LatestSnapshot(ctx context.Context, propertyID int64) (*models.Snapshot, error)
	InsertSnapshot(ctx context.Context, snapshot *models.Snapshot) (int64, error)
	InsertEvent(ctx context.Context, event *models.Event) (int64, error)

	// Absence reconciliation reads.
	ParcelIDsByMunicipality(ctx context.Context, municode int) ([]string, error)
	LatestMunicodeForParcel(ctx context.Context, parcelID string) (*int, error)

	// EventCategory reads the taxonomy registry row for a category id.
	EventCategory(ctx context.Context, registryID int) (*models.EventCategoryRecord, error)

	// Begin opens a nested transaction (savepoint) within this one.
	Begin(ctx context.Context) (Tx, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
