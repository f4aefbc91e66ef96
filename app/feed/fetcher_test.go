package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFetcherFetchOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "Test Agent" {
			t.Errorf("Expected user agent 'Test Agent', got '%s'", r.Header.Get("User-Agent"))
		}
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Last-Modified", "Mon, 03 Jul 2023 10:00:00 GMT")
		w.Write([]byte("<rss></rss>"))
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client(), "Test Agent")
	resp, err := fetcher.Fetch(context.Background(), FetchRequest{URL: server.URL})
	if err != nil {
		t.Fatal(err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if string(resp.Body) != "<rss></rss>" {
		t.Errorf("Expected body '<rss></rss>', got '%s'", resp.Body)
	}
	if resp.ETag != `"v1"` {
		t.Errorf("Expected ETag '\"v1\"', got '%s'", resp.ETag)
	}
}

func TestFetcherConditionalRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Write([]byte("<rss></rss>"))
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client(), "Test Agent")
	resp, err := fetcher.Fetch(context.Background(), FetchRequest{URL: server.URL, ETag: `"v1"`})
	if err != nil {
		t.Fatalf("Expected 304 to be returned without error, got %v", err)
	}
	if resp.StatusCode != http.StatusNotModified {
		t.Errorf("Expected status 304, got %d", resp.StatusCode)
	}
	if len(resp.Body) != 0 {
		t.Errorf("Expected empty body for 304, got %d bytes", len(resp.Body))
	}
}

func TestFetcherStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client(), "Test Agent")
	resp, err := fetcher.Fetch(context.Background(), FetchRequest{URL: server.URL})

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusGone {
		t.Errorf("Expected status code 410, got %d", statusErr.StatusCode)
	}
	if resp == nil || resp.StatusCode != http.StatusGone {
		t.Error("Expected response with status code alongside the error")
	}
}

func TestFetcherHonorsContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	fetcher := NewFetcher(server.Client(), "Test Agent")
	_, err := fetcher.Fetch(ctx, FetchRequest{URL: server.URL})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestFetcherRejectsOversizedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/exact" {
			w.Write([]byte(strings.Repeat("x", 16)))
			return
		}
		w.Write([]byte(strings.Repeat("x", 17)))
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client(), "Test Agent")
	fetcher.maxBodySize = 16

	resp, err := fetcher.Fetch(context.Background(), FetchRequest{URL: server.URL + "/exact"})
	if err != nil {
		t.Fatalf("Expected body at the cap to be accepted, got %v", err)
	}
	if len(resp.Body) != 16 {
		t.Errorf("Expected 16 bytes, got %d", len(resp.Body))
	}

	resp, err = fetcher.Fetch(context.Background(), FetchRequest{URL: server.URL + "/large"})
	if !errors.Is(err, ErrFeedTooLarge) {
		t.Fatalf("Expected ErrFeedTooLarge, got %v", err)
	}
	if resp == nil || resp.StatusCode != http.StatusOK {
		t.Errorf("Expected the response status to be kept, got %+v", resp)
	}
	if resp != nil && resp.Body != nil {
		t.Errorf("Expected no partial body, got %d bytes", len(resp.Body))
	}
}
