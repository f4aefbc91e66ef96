// Package scrape turns an item link into stored article content. The set of
// adapters is closed: readability, raw and browser.
package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxPageSize = 10 << 20

type Scraper interface {
	Scrape(ctx context.Context, pageURL string) (string, error)
}

type page struct {
	body        []byte
	contentType string
}

// httpGetter is the plain HTTP download shared by the static adapters.
type httpGetter struct {
	httpClient *http.Client
	userAgent  string
}

func newHTTPGetter(httpClient *http.Client, userAgent string) httpGetter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return httpGetter{httpClient: httpClient, userAgent: userAgent}
}

func (g httpGetter) get(ctx context.Context, pageURL string) (*page, error) {
	if pageURL == "" {
		return nil, fmt.Errorf("item has no link")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &page{body: data, contentType: strings.ToLower(resp.Header.Get("Content-Type"))}, nil
}
