// Package portal scrapes the county real estate portal, the authoritative
// per-parcel record. It fetches the assessment page for a parcel and extracts
// the owner name and tax status used by the sync engine.
package portal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/cogland/parcelsync/internal/config"
)

// Client fetches pages from the county real estate portal.
type Client interface {
	// FetchPage downloads the assessment page for a parcel. The caller parses
	// the returned markup with ParseOwner / ParseTaxStatus.
	FetchPage(ctx context.Context, parcelID string) ([]byte, error)
}

type httpClient struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a portal client for the configured base URL.
func NewClient(cfg config.PortalConfig) Client {
	return &httpClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *httpClient) FetchPage(ctx context.Context, parcelID string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/GeneralInfo.aspx?ParcelID=%s", c.baseURL, url.QueryEscape(parcelID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build portal request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("portal request for parcel %s failed: %w", parcelID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("portal returned status %d for parcel %s", resp.StatusCode, parcelID)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read portal page for parcel %s: %w", parcelID, err)
	}
	return body, nil
}
