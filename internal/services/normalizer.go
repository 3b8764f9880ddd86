package services

import (
	"strconv"
	"strings"

	"github.com/cogland/parcelsync/internal/feed"
	"github.com/cogland/parcelsync/internal/models"
	"github.com/cogland/parcelsync/internal/portal"
)

// Normalize turns a raw feed record plus the owner and tax status scraped
// from the portal into the canonical snapshot used everywhere downstream.
// It performs no I/O. The returned snapshot carries no entity ids; the
// orchestrator fills those in after entity resolution.
//
// Normalize cross-validates the tax year reported by both sources and
// returns a SourceMismatchError when they disagree: the two sources always
// agree on this field, so a difference means a scraping bug or a stale
// snapshot, neither of which the engine will silently resolve.
func Normalize(record *feed.Record, owner portal.OwnerName, tax *models.TaxStatus) (*models.Snapshot, error) {
	if record == nil || strings.TrimSpace(record.ParcelID) == "" {
		return nil, &MalformedRecordError{Field: "PARID"}
	}
	if record.Municode == 0 {
		return nil, &MalformedRecordError{ParcelID: record.ParcelID, Field: "MUNICODE"}
	}

	if tax != nil {
		portalYear, err := strconv.Atoi(strings.TrimSpace(tax.Year))
		if err != nil || portalYear != record.TaxYear {
			return nil, &SourceMismatchError{
				ParcelID:    record.ParcelID,
				Field:       "tax year",
				FeedValue:   strconv.Itoa(record.TaxYear),
				PortalValue: tax.Year,
			}
		}
	}

	return &models.Snapshot{
		OwnerRaw:     owner.Raw,
		Street:       joinFields(record.HouseNum, record.Address),
		CityStateZip: joinFields(record.City, record.State, record.Zip),
		LivingArea:   record.LivingArea,
		Condition:    record.Condition,
		Municode:     record.Municode,
		RawRecord:    record.Raw,
	}, nil
}

// unitNumber returns the unit number a record implies, substituting the
// sentinel default when the feed reports none.
func unitNumber(record *feed.Record) string {
	if strings.TrimSpace(record.Unit) == "" {
		return models.DefaultUnitNumber
	}
	return record.Unit
}

// joinFields joins non-blank parts with single spaces.
func joinFields(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	return strings.Join(kept, " ")
}
