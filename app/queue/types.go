// Package queue carries scrape jobs from the fetch pipeline to the scrape
// workers. Both implementations hold at most one in-flight job per item.
package queue

import (
	"errors"
	"time"
)

type Reason string

const (
	ReasonAuto   Reason = "auto"
	ReasonManual Reason = "manual"
)

type Job struct {
	ItemID     string    `json:"item_id"`
	SourceID   string    `json:"source_id"`
	Reason     Reason    `json:"reason"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

type Outcome string

const (
	Enqueued        Outcome = "enqueued"
	AlreadyEnqueued Outcome = "already_enqueued"
)

var (
	ErrQueueFull = errors.New("scrape queue is full")
	ErrClosed    = errors.New("scrape queue is closed")
)
