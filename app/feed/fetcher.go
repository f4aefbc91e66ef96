package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxFeedBodySize caps how much of a feed response is read into memory.
const maxFeedBodySize = 20 << 20

// ErrFeedTooLarge is returned when a feed body exceeds the size cap.
var ErrFeedTooLarge = errors.New("feed too large")

type FetchRequest struct {
	URL          string
	ETag         string
	LastModified string
}

type FetchResponse struct {
	StatusCode   int
	Body         []byte
	ETag         string
	LastModified string
}

// StatusError is returned for any response that is neither 2xx nor 304.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error: %s", e.Status)
}

type Fetcher struct {
	httpClient  *http.Client
	userAgent   string
	maxBodySize int64
}

func NewFetcher(httpClient *http.Client, userAgent string) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        20,
				IdleConnTimeout:     30 * time.Second,
				MaxIdleConnsPerHost: 5,
			},
		}
	}
	return &Fetcher{httpClient: httpClient, userAgent: userAgent, maxBodySize: maxFeedBodySize}
}

// Fetch performs one GET of the feed URL. Deadlines are taken from ctx.
// A 304 is returned as a response, not an error.
func (f *Fetcher) Fetch(ctx context.Context, fetchReq FetchRequest) (*FetchResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchReq.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/feed+json, application/xml, text/xml;q=0.9, */*;q=0.8")
	if fetchReq.ETag != "" {
		req.Header.Set("If-None-Match", fetchReq.ETag)
	}
	if fetchReq.LastModified != "" {
		req.Header.Set("If-Modified-Since", fetchReq.LastModified)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	result := &FetchResponse{
		StatusCode:   resp.StatusCode,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}

	if resp.StatusCode == http.StatusNotModified {
		return result, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return result, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	// one byte past the cap tells an oversized body from one that fits exactly
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return result, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(data)) > f.maxBodySize {
		return result, fmt.Errorf("%w: exceeds %d bytes", ErrFeedTooLarge, f.maxBodySize)
	}
	result.Body = data

	return result, nil
}
