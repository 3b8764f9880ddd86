package services

import (
	"context"
	"fmt"

	"github.com/stretchr/testify/mock"

	"github.com/cogland/parcelsync/internal/feed"
	"github.com/cogland/parcelsync/internal/models"
	"github.com/cogland/parcelsync/internal/repository"
)

// MockStore is a mock implementation of repository.Store.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Begin(ctx context.Context) (repository.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(repository.Tx), args.Error(1)
}

// MockTx is a mock implementation of repository.Tx.
type MockTx struct {
	mock.Mock
}

func (m *MockTx) Municipalities(ctx context.Context) ([]models.Municipality, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Municipality), args.Error(1)
}

func (m *MockTx) MunicipalityByCode(ctx context.Context, code int) (*models.Municipality, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Municipality), args.Error(1)
}

func (m *MockTx) PropertyByParcelID(ctx context.Context, parcelID string) (*models.Property, error) {
	args := m.Called(ctx, parcelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Property), args.Error(1)
}

func (m *MockTx) CreateProperty(ctx context.Context, property *models.Property) (int64, error) {
	args := m.Called(ctx, property)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTx) UnitByProperty(ctx context.Context, propertyID int64) (*models.Unit, error) {
	args := m.Called(ctx, propertyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Unit), args.Error(1)
}

func (m *MockTx) CreateUnit(ctx context.Context, unit *models.Unit) (int64, error) {
	args := m.Called(ctx, unit)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTx) CurrentCase(ctx context.Context, propertyID int64) (*models.Case, error) {
	args := m.Called(ctx, propertyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Case), args.Error(1)
}

func (m *MockTx) CreateCase(ctx context.Context, c *models.Case) (int64, error) {
	args := m.Called(ctx, c)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTx) CreatePerson(ctx context.Context, person *models.Person) (int64, error) {
	args := m.Called(ctx, person)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTx) LinkPropertyPerson(ctx context.Context, propertyID, personID int64) error {
	args := m.Called(ctx, propertyID, personID)
	return args.Error(0)
}

func (m *MockTx) InsertTaxStatus(ctx context.Context, status *models.TaxStatus) (int64, error) {
	args := m.Called(ctx, status)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTx) LatestSnapshot(ctx context.Context, propertyID int64) (*models.Snapshot, error) {
	args := m.Called(ctx, propertyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Snapshot), args.Error(1)
}

func (m *MockTx) InsertSnapshot(ctx context.Context, snapshot *models.Snapshot) (int64, error) {
	args := m.Called(ctx, snapshot)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTx) InsertEvent(ctx context.Context, event *models.Event) (int64, error) {
	args := m.Called(ctx, event)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTx) ParcelIDsByMunicipality(ctx context.Context, municode int) ([]string, error) {
	args := m.Called(ctx, municode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockTx) LatestMunicodeForParcel(ctx context.Context, parcelID string) (*int, error) {
	args := m.Called(ctx, parcelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*int), args.Error(1)
}

func (m *MockTx) EventCategory(ctx context.Context, registryID int) (*models.EventCategoryRecord, error) {
	args := m.Called(ctx, registryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EventCategoryRecord), args.Error(1)
}

func (m *MockTx) Begin(ctx context.Context) (repository.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(repository.Tx), args.Error(1)
}

func (m *MockTx) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTx) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockFeed is a mock implementation of feed.Client.
type MockFeed struct {
	mock.Mock
}

func (m *MockFeed) FetchRecords(ctx context.Context, municode int) ([]feed.Record, error) {
	args := m.Called(ctx, municode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]feed.Record), args.Error(1)
}

func (m *MockFeed) FetchRecordByParcel(ctx context.Context, parcelID string) (*feed.Record, error) {
	args := m.Called(ctx, parcelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*feed.Record), args.Error(1)
}

// MockPortal is a mock implementation of portal.Client.
type MockPortal struct {
	mock.Mock
}

func (m *MockPortal) FetchPage(ctx context.Context, parcelID string) ([]byte, error) {
	args := m.Called(ctx, parcelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockDirectory is a mock implementation of portal.Directory.
type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) ResolveMunicode(ctx context.Context, address string) (*int, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*int), args.Error(1)
}

// portalPage builds a minimal assessment page the portal parsers accept.
func portalPage(owner, taxYear string) []byte {
	return []byte(fmt.Sprintf(`<html><body>
		<span id="BasicInfo1_lblOwner">%s</span>
		<span id="BasicInfo1_lblAddress1">123 MAIN ST</span>
		<span id="BasicInfo1_lblAddress2">PITTSBURGH, PA 15210</span>
		<span id="lblTaxYear">%s</span>
		<span id="lblTaxPaidStatus">PAID</span>
		<span id="lblTax">$473</span>
		<span id="lblPenalty">$000</span>
		<span id="lblInterest">$000</span>
		<span id="lblTotal">$473</span>
		<span id="lblDatePaid">6/2/2020</span>
	</body></html>`, owner, taxYear))
}

// missingParcelPage is what the portal renders for an unknown parcel: no
// owner label at all.
func missingParcelPage() []byte {
	return []byte(`<html><body><p>No record found.</p></body></html>`)
}
