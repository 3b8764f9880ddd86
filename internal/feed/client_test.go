package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cogland/parcelsync/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(config.FeedConfig{
		BaseURL:    server.URL,
		ResourceID: "test-resource",
		Timeout:    5 * time.Second,
	})
	return client, server
}

const recordsBody = `{
	"success": true,
	"result": {
		"records": [
			{
				"PARID": "0374R00210000000",
				"MUNICODE": 821,
				"PROPERTYHOUSENUM": "123",
				"PROPERTYADDRESS": "MAIN ST",
				"PROPERTYUNIT": " ",
				"PROPERTYCITY": "PITTSBURGH",
				"PROPERTYSTATE": "PA",
				"PROPERTYZIP": "15210",
				"FINISHEDLIVINGAREA": 1000,
				"CONDITION": "8.0",
				"TAXYEAR": 2020.0
			},
			{
				"PARID": "0374R00220000000",
				"MUNICODE": "821",
				"PROPERTYHOUSENUM": "125",
				"PROPERTYADDRESS": "MAIN ST",
				"PROPERTYUNIT": "2",
				"PROPERTYCITY": "PITTSBURGH",
				"PROPERTYSTATE": "PA",
				"PROPERTYZIP": "15210",
				"FINISHEDLIVINGAREA": null,
				"CONDITION": 3,
				"TAXYEAR": 2020
			}
		]
	}
}`

func TestFetchRecords_Success(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "datastore_search_sql")
		assert.Contains(t, r.URL.Query().Get("sql"), `"MUNICODE" = '821'`)
		w.Write([]byte(recordsBody))
	})

	records, err := client.FetchRecords(context.Background(), 821)
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "0374R00210000000", first.ParcelID)
	assert.Equal(t, 821, first.Municode)
	assert.Equal(t, "123", first.HouseNum)
	assert.Equal(t, "MAIN ST", first.Address)
	assert.Equal(t, " ", first.Unit)
	assert.Equal(t, 1000, first.LivingArea)
	assert.Equal(t, 8, first.Condition)
	assert.Equal(t, 2020, first.TaxYear)
	assert.NotEmpty(t, first.Raw)

	// Quoted numerics and nulls decode without error.
	second := records[1]
	assert.Equal(t, 821, second.Municode)
	assert.Equal(t, 0, second.LivingArea)
	assert.Equal(t, 3, second.Condition)
}

func TestFetchRecords_Empty(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "result": {"records": []}}`))
	})

	records, err := client.FetchRecords(context.Background(), 999)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFetchRecords_ServerError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "datastore unavailable", http.StatusBadGateway)
	})

	_, err := client.FetchRecords(context.Background(), 821)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestFetchRecords_UnsuccessfulEnvelope(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false, "result": {"records": []}}`))
	})

	_, err := client.FetchRecords(context.Background(), 821)
	require.Error(t, err)
}

func TestFetchRecordByParcel_Success(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("sql"), `"PARID" = '0374R00210000000'`)
		w.Write([]byte(`{"success": true, "result": {"records": [
			{"PARID": "0374R00210000000", "MUNICODE": 821, "TAXYEAR": 2020}
		]}}`))
	})

	record, err := client.FetchRecordByParcel(context.Background(), "0374R00210000000")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "0374R00210000000", record.ParcelID)
}

func TestFetchRecordByParcel_NotFound(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "result": {"records": []}}`))
	})

	record, err := client.FetchRecordByParcel(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestFetchRecordByParcel_Ambiguous(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "result": {"records": [
			{"PARID": "dup", "MUNICODE": 821},
			{"PARID": "dup", "MUNICODE": 822}
		]}}`))
	})

	_, err := client.FetchRecordByParcel(context.Background(), "dup")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAmbiguousParcel)
}
