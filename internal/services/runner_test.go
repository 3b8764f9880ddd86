package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cogland/parcelsync/internal/feed"
	"github.com/cogland/parcelsync/internal/logger"
	"github.com/cogland/parcelsync/internal/models"
	"github.com/cogland/parcelsync/internal/repository"
)

// engineFixture wires an Engine to mocks with the transaction lifecycle
// pre-stubbed: store.Begin yields the run transaction, whose Begin yields
// the nested per-parcel transaction.
type engineFixture struct {
	store     *MockStore
	tx        *MockTx
	nested    *MockTx
	feed      *MockFeed
	portal    *MockPortal
	directory *MockDirectory
	engine    *Engine
}

func newEngineFixture() *engineFixture {
	f := &engineFixture{
		store:     new(MockStore),
		tx:        new(MockTx),
		nested:    new(MockTx),
		feed:      new(MockFeed),
		portal:    new(MockPortal),
		directory: new(MockDirectory),
	}
	f.store.On("Begin", mock.Anything).Return(f.tx, nil).Maybe()
	f.tx.On("Begin", mock.Anything).Return(f.nested, nil).Maybe()
	f.tx.On("Commit", mock.Anything).Return(nil).Maybe()
	f.tx.On("Rollback", mock.Anything).Return(nil).Maybe()
	f.nested.On("Commit", mock.Anything).Return(nil).Maybe()
	f.nested.On("Rollback", mock.Anything).Return(nil).Maybe()
	f.engine = NewEngine(f.store, f.feed, f.portal, f.directory, logger.New("production"))
	return f
}

// expectNewParcel stubs the nested transaction for a parcel the store has
// never seen.
func (f *engineFixture) expectNewParcel(parcelID string) {
	f.nested.On("PropertyByParcelID", mock.Anything, parcelID).Return(nil, nil)
	f.nested.On("CreateProperty", mock.Anything, mock.AnythingOfType("*models.Property")).Return(int64(1), nil)
	f.nested.On("CreateUnit", mock.Anything, mock.AnythingOfType("*models.Unit")).Return(int64(2), nil)
	f.nested.On("CreateCase", mock.Anything, mock.AnythingOfType("*models.Case")).Return(int64(3), nil)
	f.nested.On("CreatePerson", mock.Anything, mock.AnythingOfType("*models.Person")).Return(int64(4), nil)
	f.nested.On("LinkPropertyPerson", mock.Anything, int64(1), int64(4)).Return(nil)
	f.nested.On("InsertTaxStatus", mock.Anything, mock.AnythingOfType("*models.TaxStatus")).Return(int64(5), nil)
	f.nested.On("LatestSnapshot", mock.Anything, int64(1)).Return(nil, nil)
	f.nested.On("InsertSnapshot", mock.Anything, mock.AnythingOfType("*models.Snapshot")).Return(int64(6), nil)
}

// expectMunicipality stubs the run transaction's municipality lookup and
// the feed for it.
func (f *engineFixture) expectMunicipality(municode int, records []feed.Record) {
	f.tx.On("MunicipalityByCode", mock.Anything, municode).Return(&models.Municipality{Code: municode, Name: "Mock Borough"}, nil)
	f.feed.On("FetchRecords", mock.Anything, municode).Return(records, nil)
}

func intPtr(v int) *int { return &v }

func TestRunOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    RunOptions
		wantErr bool
	}{
		{"no mode", RunOptions{}, true},
		{"parcel only", RunOptions{ParcelID: "0001B00001000000"}, false},
		{"each only", RunOptions{EachParcel: true}, false},
		{"diff only", RunOptions{Diff: true}, false},
		{"parcel and diff", RunOptions{ParcelID: "0001B00001000000", Diff: true}, true},
		{"each and diff", RunOptions{EachParcel: true, Diff: true}, true},
		{"all three", RunOptions{ParcelID: "x", EachParcel: true, Diff: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInvocation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRun_InvalidInvocationOpensNoTransaction(t *testing.T) {
	f := newEngineFixture()

	_, err := f.engine.Run(context.Background(), RunOptions{EachParcel: true, Diff: true})

	assert.ErrorIs(t, err, ErrInvalidInvocation)
	f.store.AssertNotCalled(t, "Begin", mock.Anything)
}

func TestRun_DryRunRollsBack(t *testing.T) {
	f := newEngineFixture()
	record := testRecord()
	f.feed.On("FetchRecordByParcel", mock.Anything, record.ParcelID).Return(record, nil)
	f.portal.On("FetchPage", mock.Anything, record.ParcelID).Return(portalPage("DOE JOHN", "2020"), nil)
	f.expectNewParcel(record.ParcelID)

	summary, err := f.engine.Run(context.Background(), RunOptions{ParcelID: record.ParcelID})

	require.NoError(t, err)
	assert.True(t, summary.Success)
	assert.False(t, summary.Committed)
	assert.Equal(t, 1, summary.Tally.Processed)
	assert.Equal(t, 1, summary.Tally.Created)
	f.tx.AssertCalled(t, "Rollback", mock.Anything)
	f.tx.AssertNotCalled(t, "Commit", mock.Anything)
}

func TestRun_CommitPersists(t *testing.T) {
	f := newEngineFixture()
	record := testRecord()
	f.feed.On("FetchRecordByParcel", mock.Anything, record.ParcelID).Return(record, nil)
	f.portal.On("FetchPage", mock.Anything, record.ParcelID).Return(portalPage("DOE JOHN", "2020"), nil)
	f.expectNewParcel(record.ParcelID)

	summary, err := f.engine.Run(context.Background(), RunOptions{ParcelID: record.ParcelID, Commit: true})

	require.NoError(t, err)
	assert.True(t, summary.Committed)
	f.tx.AssertCalled(t, "Commit", mock.Anything)
	f.tx.AssertNotCalled(t, "Rollback", mock.Anything)
}

func TestRun_ParcelNotInFeed(t *testing.T) {
	f := newEngineFixture()
	f.feed.On("FetchRecordByParcel", mock.Anything, "missing").Return(nil, nil)

	summary, err := f.engine.Run(context.Background(), RunOptions{ParcelID: "missing"})

	require.NoError(t, err)
	assert.True(t, summary.Success)
	assert.Equal(t, 1, summary.Tally.Errors)
	f.nested.AssertCalled(t, "Rollback", mock.Anything)
}

func TestRun_MalformedRecordIsIsolated(t *testing.T) {
	f := newEngineFixture()
	good := *testRecord()
	bad := *testRecord()
	bad.ParcelID = "0099X00099000000"
	bad.Municode = 0
	f.expectMunicipality(828, []feed.Record{good, bad})
	f.portal.On("FetchPage", mock.Anything, good.ParcelID).Return(portalPage("DOE JOHN", "2020"), nil)
	f.portal.On("FetchPage", mock.Anything, bad.ParcelID).Return(portalPage("DOE JOHN", "2020"), nil)
	f.expectNewParcel(good.ParcelID)

	summary, err := f.engine.Run(context.Background(), RunOptions{EachParcel: true, Municode: intPtr(828)})

	require.NoError(t, err)
	assert.True(t, summary.Success)
	assert.Equal(t, 2, summary.Tally.Processed)
	assert.Equal(t, 1, summary.Tally.Created)
	assert.Equal(t, 1, summary.Tally.Errors)
	assert.Equal(t, 1, summary.Tally.Municipalities)
	f.nested.AssertCalled(t, "Rollback", mock.Anything)
}

func TestRun_SourceMismatchLeavesNoTrace(t *testing.T) {
	f := newEngineFixture()
	record := *testRecord()
	f.expectMunicipality(828, []feed.Record{record})
	// Portal reports a different tax year than the feed record claims.
	f.portal.On("FetchPage", mock.Anything, record.ParcelID).Return(portalPage("DOE JOHN", "2019"), nil)

	summary, err := f.engine.Run(context.Background(), RunOptions{EachParcel: true, Municode: intPtr(828)})

	require.NoError(t, err)
	assert.True(t, summary.Success)
	assert.Equal(t, 1, summary.Tally.Errors)
	f.nested.AssertNotCalled(t, "InsertSnapshot", mock.Anything, mock.Anything)
	f.nested.AssertNotCalled(t, "CreateProperty", mock.Anything, mock.Anything)
}

func TestRun_DuplicateParcelAbortsRun(t *testing.T) {
	f := newEngineFixture()
	record := *testRecord()
	f.expectMunicipality(828, []feed.Record{record})
	f.portal.On("FetchPage", mock.Anything, record.ParcelID).Return(portalPage("DOE JOHN", "2020"), nil)
	f.nested.On("PropertyByParcelID", mock.Anything, record.ParcelID).
		Return(nil, &repository.DuplicateParcelError{ParcelID: record.ParcelID, Count: 2})

	summary, err := f.engine.Run(context.Background(), RunOptions{EachParcel: true, Municode: intPtr(828), Commit: true})

	var duplicate *repository.DuplicateParcelError
	require.ErrorAs(t, err, &duplicate)
	assert.False(t, summary.Success)
	assert.False(t, summary.Committed)
	f.tx.AssertCalled(t, "Rollback", mock.Anything)
	f.tx.AssertNotCalled(t, "Commit", mock.Anything)
}

func TestRun_EmptyFeedSkipsMunicipality(t *testing.T) {
	f := newEngineFixture()
	f.expectMunicipality(828, []feed.Record{})

	summary, err := f.engine.Run(context.Background(), RunOptions{EachParcel: true, Municode: intPtr(828)})

	require.NoError(t, err)
	assert.True(t, summary.Success)
	assert.Equal(t, Tally{}, summary.Tally)
}

func TestRun_UnknownMunicipality(t *testing.T) {
	f := newEngineFixture()
	f.tx.On("MunicipalityByCode", mock.Anything, 999).Return(nil, nil)

	summary, err := f.engine.Run(context.Background(), RunOptions{EachParcel: true, Municode: intPtr(999)})

	require.Error(t, err)
	assert.False(t, summary.Success)
}

func TestRun_FeedFailureCounted(t *testing.T) {
	f := newEngineFixture()
	f.tx.On("MunicipalityByCode", mock.Anything, 828).Return(&models.Municipality{Code: 828, Name: "Mock Borough"}, nil)
	f.feed.On("FetchRecords", mock.Anything, 828).Return(nil, assert.AnError)

	summary, err := f.engine.Run(context.Background(), RunOptions{EachParcel: true, Municode: intPtr(828)})

	require.NoError(t, err)
	assert.True(t, summary.Success)
	assert.Equal(t, 1, summary.Tally.Errors)
}

func TestRun_AllMunicipalities(t *testing.T) {
	f := newEngineFixture()
	f.tx.On("Municipalities", mock.Anything).Return([]models.Municipality{
		{Code: 828, Name: "Mock Borough"},
		{Code: 952, Name: "Other Borough"},
	}, nil)
	f.expectMunicipality(828, []feed.Record{})
	f.expectMunicipality(952, []feed.Record{})

	summary, err := f.engine.Run(context.Background(), RunOptions{EachParcel: true})

	require.NoError(t, err)
	assert.True(t, summary.Success)
	f.feed.AssertCalled(t, "FetchRecords", mock.Anything, 828)
	f.feed.AssertCalled(t, "FetchRecords", mock.Anything, 952)
}
