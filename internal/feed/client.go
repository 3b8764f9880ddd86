package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/cogland/parcelsync/internal/config"
)

// ErrAmbiguousParcel is returned when a by-parcel lookup yields more than one
// record. Parcel IDs are assumed to map to a single property; more than one
// match signals a broken assumption upstream, not a condition to work around.
var ErrAmbiguousParcel = errors.New("feed returned multiple records for one parcel id")

// Client fetches parcel records from the bulk open-data feed.
type Client interface {
	// FetchRecords returns every record for a municipality. An empty slice is
	// a valid result (the municipality has no open parcels), not an error.
	FetchRecords(ctx context.Context, municode int) ([]Record, error)

	// FetchRecordByParcel returns the single record for a parcel id, or
	// nil when the feed has no record for it.
	FetchRecordByParcel(ctx context.Context, parcelID string) (*Record, error)
}

// searchResponse mirrors the datastore search envelope.
type searchResponse struct {
	Success bool `json:"success"`
	Result  struct {
		Records []Record `json:"records"`
	} `json:"result"`
}

type httpClient struct {
	baseURL    string
	resourceID string
	client     *http.Client
}

// NewClient creates a feed client backed by the datastore's SQL search API.
func NewClient(cfg config.FeedConfig) Client {
	return &httpClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		resourceID: cfg.ResourceID,
		client:     &http.Client{Timeout: cfg.Timeout},
	}
}

// FetchRecords queries the datastore for all parcels in a municipality.
func (c *httpClient) FetchRecords(ctx context.Context, municode int) ([]Record, error) {
	sql := fmt.Sprintf(`SELECT * FROM "%s" WHERE "MUNICODE" = '%d'`, c.resourceID, municode)
	resp, err := c.search(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch records for municipality %d: %w", municode, err)
	}
	return resp.Result.Records, nil
}

// FetchRecordByParcel queries the datastore for a single parcel.
func (c *httpClient) FetchRecordByParcel(ctx context.Context, parcelID string) (*Record, error) {
	sql := fmt.Sprintf(`SELECT * FROM "%s" WHERE "PARID" = '%s'`, c.resourceID, parcelID)
	resp, err := c.search(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch record for parcel %s: %w", parcelID, err)
	}

	records := resp.Result.Records
	switch len(records) {
	case 0:
		return nil, nil
	case 1:
		return &records[0], nil
	default:
		return nil, fmt.Errorf("%w: parcel %s matched %d records", ErrAmbiguousParcel, parcelID, len(records))
	}
}

func (c *httpClient) search(ctx context.Context, sql string) (*searchResponse, error) {
	endpoint := fmt.Sprintf("%s/api/3/action/datastore_search_sql?sql=%s",
		c.baseURL, url.QueryEscape(sql))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search request returned status %d: %s", resp.StatusCode, string(body))
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	if !decoded.Success {
		return nil, fmt.Errorf("datastore reported an unsuccessful search")
	}
	return &decoded, nil
}
