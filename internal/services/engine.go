package services

import (
	"context"
	"fmt"

	"github.com/cogland/parcelsync/internal/feed"
	"github.com/cogland/parcelsync/internal/logger"
	"github.com/cogland/parcelsync/internal/models"
	"github.com/cogland/parcelsync/internal/portal"
	"github.com/cogland/parcelsync/internal/repository"
)

// Engine reconciles the property registry against the bulk feed and the
// county portal. One engine serves the whole process; each Run opens its own
// transaction scope. The engine itself imposes no timeouts: collaborators
// bound their own I/O, and callers wrap Run's context if they need a
// deadline.
type Engine struct {
	store     repository.Store
	feed      feed.Client
	portal    portal.Client
	directory portal.Directory
	log       *logger.Logger
}

// NewEngine wires the engine's collaborators together.
func NewEngine(store repository.Store, feedClient feed.Client, portalClient portal.Client, directory portal.Directory, log *logger.Logger) *Engine {
	return &Engine{
		store:     store,
		feed:      feedClient,
		portal:    portalClient,
		directory: directory,
		log:       log,
	}
}

// parcelRequest identifies the parcel to reconcile: either a parcel id to
// look up in the feed, or an already-fetched feed record. Exactly one must
// be set.
type parcelRequest struct {
	parcelID string
	record   *feed.Record
}

// parcelResult reports what one reconciliation pass did.
type parcelResult struct {
	parcelID string
	created  bool
	changed  bool
}

// parcelEntities holds the resolved entity ids for one parcel.
type parcelEntities struct {
	propertyID int64
	unitID     int64
	caseID     int64
	created    bool
}

// reconcileParcel runs the full pipeline for one parcel inside the given
// transaction: fetch (if needed) -> scrape -> normalize -> resolve entities
// -> write snapshot -> detect and emit. The caller owns the transaction and
// decides commit/rollback; on error the transaction must be rolled back.
func (e *Engine) reconcileParcel(ctx context.Context, tx repository.Tx, req parcelRequest) (parcelResult, error) {
	var result parcelResult

	record := req.record
	if record != nil && req.parcelID != "" {
		return result, fmt.Errorf("%w: both a parcel id and a feed record were supplied", ErrInvalidInvocation)
	}
	if record == nil && req.parcelID == "" {
		return result, fmt.Errorf("%w: neither a parcel id nor a feed record was supplied", ErrInvalidInvocation)
	}

	if record == nil {
		fetched, err := e.feed.FetchRecordByParcel(ctx, req.parcelID)
		if err != nil {
			return result, err
		}
		if fetched == nil {
			return result, &MalformedRecordError{ParcelID: req.parcelID, Field: "PARID"}
		}
		record = fetched
	}
	result.parcelID = record.ParcelID

	// Scrape the authoritative per-parcel page.
	page, err := e.portal.FetchPage(ctx, record.ParcelID)
	if err != nil {
		return result, fmt.Errorf("portal scrape failed for parcel %s: %w", record.ParcelID, err)
	}
	owner, err := portal.ParseOwner(page)
	if err != nil {
		return result, fmt.Errorf("failed to extract owner for parcel %s: %w", record.ParcelID, err)
	}
	tax, err := portal.ParseTaxStatus(page)
	if err != nil {
		return result, fmt.Errorf("failed to extract tax status for parcel %s: %w", record.ParcelID, err)
	}

	// Normalize before any write so a malformed or mismatched record leaves
	// no trace in the store.
	snapshot, err := Normalize(record, owner, tax)
	if err != nil {
		return result, err
	}

	entities, err := e.resolveEntities(ctx, tx, record, owner)
	if err != nil {
		return result, err
	}
	result.created = entities.created

	if tax != nil {
		taxID, err := tx.InsertTaxStatus(ctx, tax)
		if err != nil {
			return result, err
		}
		snapshot.TaxStatusID = taxID
	}

	previous, err := tx.LatestSnapshot(ctx, entities.propertyID)
	if err != nil {
		return result, err
	}

	snapshot.PropertyID = entities.propertyID
	snapshot.CaseID = entities.caseID
	if _, err := tx.InsertSnapshot(ctx, snapshot); err != nil {
		return result, err
	}

	if event := DetectChange(previous, snapshot, entities.propertyID, entities.caseID); event != nil {
		if _, err := tx.InsertEvent(ctx, event); err != nil {
			return result, err
		}
		result.changed = true
		e.log.Info("Detected parcel change", map[string]interface{}{
			"parcel_id": record.ParcelID,
			"category":  event.Category.String(),
			"old":       event.OldValue,
			"new":       event.NewValue,
		})
	}

	return result, nil
}

// resolveEntities locates or idempotently creates the Property, Unit, Case
// and Owner rows for a record. Retrying it for the same parcel never
// produces duplicates: lookups are by business key and creation only happens
// on a missing row.
func (e *Engine) resolveEntities(ctx context.Context, tx repository.Tx, record *feed.Record, owner portal.OwnerName) (parcelEntities, error) {
	var entities parcelEntities

	property, err := tx.PropertyByParcelID(ctx, record.ParcelID)
	if err != nil {
		return entities, err
	}

	if property == nil {
		entities.created = true
		entities.propertyID, err = tx.CreateProperty(ctx, &models.Property{
			ParcelID:         record.ParcelID,
			MunicipalityCode: record.Municode,
		})
		if err != nil {
			return entities, err
		}

		entities.unitID, err = tx.CreateUnit(ctx, &models.Unit{
			PropertyID: entities.propertyID,
			UnitNumber: unitNumber(record),
		})
		if err != nil {
			return entities, err
		}

		entities.caseID, err = tx.CreateCase(ctx, &models.Case{
			PropertyID: entities.propertyID,
			UnitID:     entities.unitID,
		})
		if err != nil {
			return entities, err
		}

		person := owner.Person()
		personID, err := tx.CreatePerson(ctx, &person)
		if err != nil {
			return entities, err
		}
		if err := tx.LinkPropertyPerson(ctx, entities.propertyID, personID); err != nil {
			return entities, err
		}

		e.log.Info("Created property", map[string]interface{}{
			"parcel_id":   record.ParcelID,
			"property_id": entities.propertyID,
			"municode":    record.Municode,
		})
		return entities, nil
	}

	entities.propertyID = property.ID

	entities.unitID, err = e.resolveUnit(ctx, tx, property.ID)
	if err != nil {
		return entities, err
	}
	entities.caseID, err = e.resolveCase(ctx, tx, property.ID, entities.unitID)
	if err != nil {
		return entities, err
	}
	return entities, nil
}

// resolveUnit returns the property's unit, creating a default one when the
// property has none. A property without a unit is a data-integrity gap that
// is silently repaired, not reported.
func (e *Engine) resolveUnit(ctx context.Context, tx repository.Tx, propertyID int64) (int64, error) {
	unit, err := tx.UnitByProperty(ctx, propertyID)
	if err != nil {
		return 0, err
	}
	if unit != nil {
		return unit.ID, nil
	}
	return tx.CreateUnit(ctx, &models.Unit{
		PropertyID: propertyID,
		UnitNumber: models.DefaultUnitNumber,
	})
}

// resolveCase returns the property's most recent case, creating one when
// none exists.
func (e *Engine) resolveCase(ctx context.Context, tx repository.Tx, propertyID, unitID int64) (int64, error) {
	current, err := tx.CurrentCase(ctx, propertyID)
	if err != nil {
		return 0, err
	}
	if current != nil {
		return current.ID, nil
	}
	return tx.CreateCase(ctx, &models.Case{
		PropertyID: propertyID,
		UnitID:     unitID,
	})
}
