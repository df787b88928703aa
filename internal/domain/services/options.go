// Package services contains the inventory risk pipeline and the action
// lifecycle engine.
package services

import (
	"log/slog"
	"time"
)

// DefaultWorkers bounds parallelism in bulk operations.
const DefaultWorkers = 4

// DefaultStaleMarker is how old an executing or rolling_back marker must be
// before reconcile treats its side effect as abandoned.
const DefaultStaleMarker = 5 * time.Minute

type options struct {
	logger  *slog.Logger
	now     func() time.Time
	workers int

	staleMarker time.Duration
}

// Option configures a service.
type Option func(*options)

// WithLogger sets the structured logger. Services log nothing by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock replaces time.Now, for tests and replays.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithWorkers sets the bulk worker limit.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithStaleMarker sets the age after which reconcile may resolve a marker.
func WithStaleMarker(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.staleMarker = d
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger:  slog.New(slog.DiscardHandler),
		now:     time.Now,
		workers: DefaultWorkers,

		staleMarker: DefaultStaleMarker,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// stamp returns the current time in UTC.
func (o options) stamp() time.Time {
	return o.now().UTC()
}
