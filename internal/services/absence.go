package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/cogland/parcelsync/internal/feed"
	"github.com/cogland/parcelsync/internal/models"
	"github.com/cogland/parcelsync/internal/portal"
	"github.com/cogland/parcelsync/internal/repository"
)

// reconcileAbsences handles parcels the store knows for a municipality that
// the latest bulk feed no longer lists. Each orphan is classified as either
// relocated (its most recent snapshot, or the portal directory, places it in
// another municipality) or vanished (not found on the portal at all), and
// one event is emitted per orphan per run. Repeated runs with no intervening
// change re-emit the same event; callers needing deduplication suppress on
// their side.
func (e *Engine) reconcileAbsences(ctx context.Context, tx repository.Tx, municode int, records []feed.Record) (int, error) {
	known, err := tx.ParcelIDsByMunicipality(ctx, municode)
	if err != nil {
		return 0, err
	}

	inFeed := make(map[string]struct{}, len(records))
	for _, record := range records {
		inFeed[record.ParcelID] = struct{}{}
	}

	var orphans []string
	for _, parcelID := range known {
		if _, ok := inFeed[parcelID]; !ok {
			orphans = append(orphans, parcelID)
		}
	}
	sort.Strings(orphans)

	for _, parcelID := range orphans {
		if err := e.reconcileOrphan(ctx, tx, municode, parcelID); err != nil {
			return 0, fmt.Errorf("failed to reconcile orphan parcel %s: %w", parcelID, err)
		}
	}
	return len(orphans), nil
}

func (e *Engine) reconcileOrphan(ctx context.Context, tx repository.Tx, municode int, parcelID string) error {
	property, err := tx.PropertyByParcelID(ctx, parcelID)
	if err != nil {
		return err
	}
	if property == nil {
		// The parcel list and the property table moved under us within one
		// transaction scope; nothing sane to do but report it.
		return fmt.Errorf("parcel %s disappeared from the store mid-run", parcelID)
	}

	unitID, err := e.resolveUnit(ctx, tx, property.ID)
	if err != nil {
		return err
	}
	caseID, err := e.resolveCase(ctx, tx, property.ID, unitID)
	if err != nil {
		return err
	}

	event, err := e.classifyOrphan(ctx, tx, municode, parcelID, property.ID, caseID)
	if err != nil {
		return err
	}

	if _, err := tx.InsertEvent(ctx, event); err != nil {
		return err
	}
	e.log.Info("Classified orphan parcel", map[string]interface{}{
		"parcel_id": parcelID,
		"municode":  municode,
		"category":  event.Category.String(),
	})
	return nil
}

// classifyOrphan decides between DifferentMunicode and NotInRealEstatePortal
// for a parcel missing from the feed. The store is consulted first; only
// when it has no newer municode for the parcel is the live portal checked,
// because a feed omission alone is not proof the parcel is gone.
func (e *Engine) classifyOrphan(ctx context.Context, tx repository.Tx, municode int, parcelID string, propertyID, caseID int64) (*models.Event, error) {
	latest, err := tx.LatestMunicodeForParcel(ctx, parcelID)
	if err != nil {
		return nil, err
	}
	if latest != nil && *latest != municode {
		return municodeChangeEvent(parcelID, propertyID, caseID, municode, *latest), nil
	}

	page, err := e.portal.FetchPage(ctx, parcelID)
	if err != nil {
		return nil, err
	}

	if _, err := portal.ParseOwner(page); err != nil {
		if errors.Is(err, portal.ErrOwnerNotFound) {
			return portalAbsenceEvent(parcelID, propertyID, caseID, municode), nil
		}
		return nil, err
	}

	// The parcel still exists on the portal; ask the municipality directory
	// where its address places it now.
	address, err := portal.ParseSitusAddress(page)
	if err != nil {
		return nil, err
	}
	resolved, err := e.directory.ResolveMunicode(ctx, address)
	if err != nil {
		return nil, err
	}
	if resolved != nil && *resolved != municode {
		return municodeChangeEvent(parcelID, propertyID, caseID, municode, *resolved), nil
	}
	return portalAbsenceEvent(parcelID, propertyID, caseID, municode), nil
}
