package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/cogland/parcelsync/internal/database"
	"github.com/cogland/parcelsync/internal/models"
)

// registryStore is the pgx-backed implementation of Store.
type registryStore struct {
	db *database.Database
}

// NewRegistryStore creates a Store over the given database.
func NewRegistryStore(db *database.Database) Store {
	return &registryStore{db: db}
}

func (s *registryStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &registryTx{tx: tx}, nil
}

// registryTx implements Tx over a pgx transaction. Nested Begin calls map to
// pgx savepoints, which is what gives the engine per-parcel rollback inside
// a run-level transaction.
type registryTx struct {
	tx pgx.Tx
}

func (t *registryTx) Begin(ctx context.Context) (Tx, error) {
	nested, err := t.tx.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open nested transaction: %w", err)
	}
	return &registryTx{tx: nested}, nil
}

func (t *registryTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *registryTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

func (t *registryTx) Municipalities(ctx context.Context) ([]models.Municipality, error) {
	rows, err := t.tx.Query(ctx, `SELECT municode, muniname FROM municipality ORDER BY municode`)
	if err != nil {
		return nil, fmt.Errorf("failed to query municipalities: %w", err)
	}
	defer rows.Close()

	var munis []models.Municipality
	for rows.Next() {
		var m models.Municipality
		if err := rows.Scan(&m.Code, &m.Name); err != nil {
			return nil, fmt.Errorf("failed to scan municipality row: %w", err)
		}
		munis = append(munis, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating municipality rows: %w", err)
	}
	return munis, nil
}

func (t *registryTx) MunicipalityByCode(ctx context.Context, code int) (*models.Municipality, error) {
	var m models.Municipality
	err := t.tx.QueryRow(ctx,
		`SELECT municode, muniname FROM municipality WHERE municode = $1`, code,
	).Scan(&m.Code, &m.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query municipality %d: %w", code, err)
	}
	return &m, nil
}

// PropertyByParcelID looks a property up by its business key. Finding more
// than one row violates the parcel uniqueness invariant and returns a
// DuplicateParcelError.
func (t *registryTx) PropertyByParcelID(ctx context.Context, parcelID string) (*models.Property, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT propertyid, parid, municipality_municode, createdts
		 FROM property WHERE parid = $1`, parcelID)
	if err != nil {
		return nil, fmt.Errorf("failed to query property for parcel %s: %w", parcelID, err)
	}
	defer rows.Close()

	var matches []models.Property
	for rows.Next() {
		var p models.Property
		if err := rows.Scan(&p.ID, &p.ParcelID, &p.MunicipalityCode, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan property row: %w", err)
		}
		matches = append(matches, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating property rows: %w", err)
	}

	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return &matches[0], nil
	default:
		return nil, &DuplicateParcelError{ParcelID: parcelID, Count: len(matches)}
	}
}

func (t *registryTx) CreateProperty(ctx context.Context, property *models.Property) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO property (parid, municipality_municode, createdts)
		 VALUES ($1, $2, now())
		 RETURNING propertyid`,
		property.ParcelID, property.MunicipalityCode,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert property for parcel %s: %w", property.ParcelID, err)
	}
	return id, nil
}

func (t *registryTx) UnitByProperty(ctx context.Context, propertyID int64) (*models.Unit, error) {
	var u models.Unit
	err := t.tx.QueryRow(ctx,
		`SELECT unitid, property_propertyid, unitnumber
		 FROM propertyunit WHERE property_propertyid = $1
		 ORDER BY unitid LIMIT 1`, propertyID,
	).Scan(&u.ID, &u.PropertyID, &u.UnitNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query unit for property %d: %w", propertyID, err)
	}
	return &u, nil
}

func (t *registryTx) CreateUnit(ctx context.Context, unit *models.Unit) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO propertyunit (property_propertyid, unitnumber)
		 VALUES ($1, $2)
		 RETURNING unitid`,
		unit.PropertyID, unit.UnitNumber,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert unit for property %d: %w", unit.PropertyID, err)
	}
	return id, nil
}

// CurrentCase returns the property's most recently created case.
func (t *registryTx) CurrentCase(ctx context.Context, propertyID int64) (*models.Case, error) {
	var c models.Case
	err := t.tx.QueryRow(ctx,
		`SELECT caseid, property_propertyid, propertyunit_unitid, creationtimestamp
		 FROM cecase WHERE property_propertyid = $1
		 ORDER BY creationtimestamp DESC LIMIT 1`, propertyID,
	).Scan(&c.ID, &c.PropertyID, &c.UnitID, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query case for property %d: %w", propertyID, err)
	}
	return &c, nil
}

func (t *registryTx) CreateCase(ctx context.Context, c *models.Case) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO cecase (property_propertyid, propertyunit_unitid, creationtimestamp)
		 VALUES ($1, $2, now())
		 RETURNING caseid`,
		c.PropertyID, c.UnitID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert case for property %d: %w", c.PropertyID, err)
	}
	return id, nil
}

func (t *registryTx) CreatePerson(ctx context.Context, person *models.Person) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO person (rawname, fname, lname)
		 VALUES ($1, $2, $3)
		 RETURNING personid`,
		person.RawName, person.FirstName, person.LastName,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert person %q: %w", person.RawName, err)
	}
	return id, nil
}

func (t *registryTx) LinkPropertyPerson(ctx context.Context, propertyID, personID int64) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO propertyperson (property_propertyid, person_personid)
		 VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		propertyID, personID)
	if err != nil {
		return fmt.Errorf("failed to link property %d to person %d: %w", propertyID, personID, err)
	}
	return nil
}

func (t *registryTx) InsertTaxStatus(ctx context.Context, status *models.TaxStatus) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO taxstatus (year, paidstatus, tax, penalty, interest, total, datepaid)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING taxstatusid`,
		status.Year, status.PaidStatus, status.Tax, status.Penalty,
		status.Interest, status.Total, status.DatePaid,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert tax status for year %s: %w", status.Year, err)
	}
	return id, nil
}

func (t *registryTx) LatestSnapshot(ctx context.Context, propertyID int64) (*models.Snapshot, error) {
	var s models.Snapshot
	var taxStatusID *int64
	err := t.tx.QueryRow(ctx,
		`SELECT extdataid, property_propertyid, cecase_caseid, observedts, ownername,
		        street, citystatezip, livingarea, condition, municode,
		        taxstatus_taxstatusid, rawrecord
		 FROM propertyexternaldata
		 WHERE property_propertyid = $1
		 ORDER BY observedts DESC, extdataid DESC
		 LIMIT 1`, propertyID,
	).Scan(&s.ID, &s.PropertyID, &s.CaseID, &s.ObservedAt, &s.OwnerRaw,
		&s.Street, &s.CityStateZip, &s.LivingArea, &s.Condition, &s.Municode,
		&taxStatusID, &s.RawRecord)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query latest snapshot for property %d: %w", propertyID, err)
	}
	if taxStatusID != nil {
		s.TaxStatusID = *taxStatusID
	}
	return &s, nil
}

func (t *registryTx) InsertSnapshot(ctx context.Context, snapshot *models.Snapshot) (int64, error) {
	// Not every portal page carries a tax section; a zero TaxStatusID is
	// stored as NULL rather than a dangling reference.
	var taxStatusID *int64
	if snapshot.TaxStatusID != 0 {
		taxStatusID = &snapshot.TaxStatusID
	}

	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO propertyexternaldata
		 (property_propertyid, cecase_caseid, observedts, ownername, street,
		  citystatezip, livingarea, condition, municode, taxstatus_taxstatusid, rawrecord)
		 VALUES ($1, $2, now(), $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING extdataid`,
		snapshot.PropertyID, snapshot.CaseID, snapshot.OwnerRaw, snapshot.Street,
		snapshot.CityStateZip, snapshot.LivingArea, snapshot.Condition,
		snapshot.Municode, taxStatusID, snapshot.RawRecord,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert snapshot for property %d: %w", snapshot.PropertyID, err)
	}
	return id, nil
}

func (t *registryTx) InsertEvent(ctx context.Context, event *models.Event) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO event
		 (category_categoryid, property_propertyid, cecase_caseid,
		  oldvalue, newvalue, description, active, creationts)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		 RETURNING eventid`,
		event.Category.RegistryID(), event.PropertyID, event.CaseID,
		event.OldValue, event.NewValue, event.Description, event.Active,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert %s event for property %d: %w",
			event.Category, event.PropertyID, err)
	}
	return id, nil
}

func (t *registryTx) ParcelIDsByMunicipality(ctx context.Context, municode int) ([]string, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT parid FROM property WHERE municipality_municode = $1`, municode)
	if err != nil {
		return nil, fmt.Errorf("failed to query parcels for municipality %d: %w", municode, err)
	}
	defer rows.Close()

	var parcelIDs []string
	for rows.Next() {
		var parcelID string
		if err := rows.Scan(&parcelID); err != nil {
			return nil, fmt.Errorf("failed to scan parcel id: %w", err)
		}
		parcelIDs = append(parcelIDs, parcelID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating parcel id rows: %w", err)
	}
	return parcelIDs, nil
}

// LatestMunicodeForParcel returns the municode the parcel's most recent
// snapshot reported, across all municipalities in the store.
func (t *registryTx) LatestMunicodeForParcel(ctx context.Context, parcelID string) (*int, error) {
	var municode int
	err := t.tx.QueryRow(ctx,
		`SELECT pe.municode
		 FROM propertyexternaldata pe
		 JOIN property p ON pe.property_propertyid = p.propertyid
		 WHERE p.parid = $1
		 ORDER BY pe.observedts DESC, pe.extdataid DESC
		 LIMIT 1`, parcelID,
	).Scan(&municode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query latest municode for parcel %s: %w", parcelID, err)
	}
	return &municode, nil
}

func (t *registryTx) EventCategory(ctx context.Context, registryID int) (*models.EventCategoryRecord, error) {
	var rec models.EventCategoryRecord
	err := t.tx.QueryRow(ctx,
		`SELECT categoryid, title, active FROM eventcategory WHERE categoryid = $1`, registryID,
	).Scan(&rec.ID, &rec.Title, &rec.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query event category %d: %w", registryID, err)
	}
	return &rec, nil
}
