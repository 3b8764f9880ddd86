package portal

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/cogland/parcelsync/internal/config"
)

// Directory resolves a street address to the municipality it falls in. The
// absence reconciler uses it as a last check before declaring a parcel gone.
type Directory interface {
	// ResolveMunicode returns the municode for an address, or nil when the
	// directory has no municipality for it.
	ResolveMunicode(ctx context.Context, address string) (*int, error)
}

type httpDirectory struct {
	baseURL string
	client  *http.Client
}

// NewDirectory creates a Directory backed by the portal's address search.
func NewDirectory(cfg config.PortalConfig) Directory {
	return &httpDirectory{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

func (d *httpDirectory) ResolveMunicode(ctx context.Context, address string) (*int, error) {
	endpoint := fmt.Sprintf("%s/Search.aspx?address=%s", d.baseURL, url.QueryEscape(address))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build directory request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directory lookup for %q failed: %w", address, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directory lookup returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory response: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse directory response: %w", err)
	}

	text := strings.TrimSpace(doc.Find("#lblMuniCode").First().Text())
	if text == "" {
		return nil, nil
	}
	code, err := strconv.Atoi(text)
	if err != nil {
		return nil, fmt.Errorf("directory returned non-numeric municode %q: %w", text, err)
	}
	return &code, nil
}
