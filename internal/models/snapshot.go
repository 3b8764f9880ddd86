package models

import (
	"encoding/json"
	"time"
)

// Snapshot is one observed, timestamped copy of a parcel's external
// attributes: the normalized bulk-feed fields plus the owner and tax status
// scraped from the assessment portal. Snapshots form an append-only history
// log per property; the most recent row is the baseline for change
// detection on the next reconciliation pass.
type Snapshot struct {
	ID           int64           `json:"id"`
	PropertyID   int64           `json:"property_id"`
	CaseID       int64           `json:"case_id"`
	ObservedAt   time.Time       `json:"observed_at"`
	OwnerRaw     string          `json:"owner_raw"`
	Street       string          `json:"street"`
	CityStateZip string          `json:"city_state_zip"`
	LivingArea   int             `json:"living_area"`
	Condition    int             `json:"condition"`
	Municode     int             `json:"municode"`
	TaxStatusID  int64           `json:"tax_status_id"`
	RawRecord    json.RawMessage `json:"raw_record"`
}
