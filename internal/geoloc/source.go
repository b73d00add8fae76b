package geoloc

import (
	"context"
	"time"
)

type Accuracy int

const (
	AccuracyLow Accuracy = iota
	AccuracyHigh
)

// Fix is a raw reading from the platform location source.
type Fix struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
	Timestamp time.Time
}

// Request tunes one acquisition attempt. MaxAge is the oldest cached
// fix the source may serve instead of a fresh one.
type Request struct {
	Accuracy Accuracy
	Timeout  time.Duration
	MaxAge   time.Duration
}

// WatchRequest tunes a continuous watch.
type WatchRequest struct {
	Accuracy Accuracy
	// MinDistance in meters between reported fixes.
	MinDistance float64
	// Interval between fix reports.
	Interval time.Duration
}

// Source abstracts the platform location API. Implementations must
// honor ctx cancellation on Current and stop delivering on both
// channels once the Watch ctx is done.
type Source interface {
	RequestPermission(ctx context.Context) error
	Current(ctx context.Context, req Request) (Fix, error)
	Watch(ctx context.Context, req WatchRequest) (<-chan Fix, <-chan error, error)
}
