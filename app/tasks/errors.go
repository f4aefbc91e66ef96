package tasks

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidState   = errors.New("invalid source state")
	ErrSourceBusy     = errors.New("source fetch already in progress")
	ErrSourceNotFound = errors.New("source not found")
)

// InvalidStateError is returned when an operation is requested for a source
// whose state does not allow it. It matches ErrInvalidState.
type InvalidStateError struct {
	SourceID string
	Reason   string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("source %s: %s", e.SourceID, e.Reason)
}

func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

type TransportError struct {
	URL        string
	HTTPStatus int
	Err        error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return e.Err.Error() }

func (e *ParseError) Unwrap() error { return e.Err }

type TimeoutError struct {
	URL     string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("fetch of %s timed out after %s", e.URL, e.Timeout)
}

// EnqueueError records one item that could not be queued for scraping.
type EnqueueError struct {
	ItemID string
	Err    error
}

func (e *EnqueueError) Error() string {
	return fmt.Sprintf("failed to enqueue item %s: %v", e.ItemID, e.Err)
}

func (e *EnqueueError) Unwrap() error { return e.Err }
