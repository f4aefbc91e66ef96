package tasks

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/lysyi3m/feed-warden/app/feed"
)

// FetchExecutor performs one fetch attempt for a source and reconciles the
// parsed items against the store. Expected failures are reported through
// the result status; the returned error is reserved for invalid source
// state, cancellation and store failures.
type FetchExecutor struct {
	store          Store
	fetcher        FeedFetcher
	parser         FeedParser
	defaultTimeout time.Duration
}

// NewFetchExecutor creates an executor. defaultTimeout applies to sources
// without their own timeout.
func NewFetchExecutor(store Store, fetcher FeedFetcher, parser FeedParser, defaultTimeout time.Duration) *FetchExecutor {
	if defaultTimeout <= 0 {
		defaultTimeout = time.Duration(feed.DefaultTimeoutSeconds) * time.Second
	}
	return &FetchExecutor{
		store:          store,
		fetcher:        fetcher,
		parser:         parser,
		defaultTimeout: defaultTimeout,
	}
}

// CheckFetchable returns an InvalidStateError for a source that is inactive
// or paused.
func CheckFetchable(source feed.Source) error {
	if !source.Active {
		return &InvalidStateError{SourceID: source.ID, Reason: "source is inactive"}
	}
	if source.HealthStatus == feed.HealthPaused {
		return &InvalidStateError{SourceID: source.ID, Reason: "source is paused"}
	}
	return nil
}

func (e *FetchExecutor) timeoutFor(source feed.Source) time.Duration {
	if source.TimeoutSeconds > 0 {
		return time.Duration(source.TimeoutSeconds) * time.Second
	}
	return e.defaultTimeout
}

// Run fetches and parses the feed of source, then creates any items not
// already stored. Fetch and parse failures come back as the result status.
// On a store failure the items created so far are kept in the result.
func (e *FetchExecutor) Run(ctx context.Context, source feed.Source) (feed.FetchResult, error) {
	if err := CheckFetchable(source); err != nil {
		return feed.FetchResult{}, err
	}

	timeout := e.timeoutFor(source)
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := e.fetcher.Fetch(fetchCtx, feed.FetchRequest{
		URL:          source.FeedURL,
		ETag:         source.ETag,
		LastModified: source.LastModified,
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return feed.FetchResult{}, ctx.Err()
		}
		return failedResult(source, timeout, resp, err), nil
	}

	if resp.StatusCode == http.StatusNotModified {
		return feed.FetchResult{
			Status:       feed.FetchStatusNotModified,
			HTTPStatus:   resp.StatusCode,
			ETag:         resp.ETag,
			LastModified: resp.LastModified,
		}, nil
	}

	parsed, err := e.parser.Parse(resp.Body)
	if err != nil {
		parseErr := &ParseError{Err: err}
		return feed.FetchResult{
			Status:       feed.FetchStatusParseError,
			HTTPStatus:   resp.StatusCode,
			ErrorMessage: parseErr.Error(),
		}, nil
	}

	result := feed.FetchResult{
		Status:       feed.FetchStatusFetched,
		HTTPStatus:   resp.StatusCode,
		ParsedCount:  len(parsed),
		ETag:         resp.ETag,
		LastModified: resp.LastModified,
	}

	limit := source.MaxItems
	if limit <= 0 {
		limit = feed.DefaultMaxItems
	}
	if len(parsed) > limit {
		parsed = parsed[:limit]
	}

	for _, p := range parsed {
		item, created, err := e.store.FindOrCreateItem(ctx, source.ID, feed.DedupKey(p), p)
		if err != nil {
			return result, fmt.Errorf("failed to reconcile item: %w", err)
		}
		if created {
			result.Items.Created = append(result.Items.Created, *item)
			result.Items.CreatedCount++
		}
	}

	return result, nil
}

func failedResult(source feed.Source, timeout time.Duration, resp *feed.FetchResponse, err error) feed.FetchResult {
	var statusErr *feed.StatusError
	if errors.As(err, &statusErr) {
		transportErr := &TransportError{URL: source.FeedURL, HTTPStatus: statusErr.StatusCode, Err: err}
		return feed.FetchResult{
			Status:       feed.FetchStatusTransportError,
			HTTPStatus:   statusErr.StatusCode,
			ErrorMessage: transportErr.Error(),
		}
	}

	if isTimeout(err) {
		timeoutErr := &TimeoutError{URL: source.FeedURL, Timeout: timeout}
		return feed.FetchResult{
			Status:       feed.FetchStatusTimeout,
			ErrorMessage: timeoutErr.Error(),
		}
	}

	result := feed.FetchResult{
		Status:       feed.FetchStatusTransportError,
		ErrorMessage: (&TransportError{URL: source.FeedURL, Err: err}).Error(),
	}
	if resp != nil {
		result.HTTPStatus = resp.StatusCode
	}
	return result
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
