package geoloc

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"routebudget-telemetry/internal/location"
)

var (
	ErrPermissionDenied = errors.New("location permission denied")
	ErrUnavailable      = errors.New("location unavailable")
	ErrTimeout          = errors.New("location acquisition timed out")
)

// Acquisition tiers: a quick high-accuracy attempt first, then one
// looser low-accuracy retry before falling back to persisted state.
var tiers = []Request{
	{Accuracy: AccuracyHigh, Timeout: 10 * time.Second, MaxAge: 10 * time.Second},
	{Accuracy: AccuracyLow, Timeout: 15 * time.Second, MaxAge: 30 * time.Second},
}

const (
	watchInterval    = 5 * time.Second
	watchMinDistance = 2 // meters
)

// Provider acquires device position through a tiered strategy and
// keeps the last successful fix persisted.
type Provider struct {
	source   Source
	store    location.PositionStore
	logger   *slog.Logger
	fallback location.Position

	mu          sync.Mutex
	watchGen    uint64
	watchCancel context.CancelFunc
}

func NewProvider(source Source, store location.PositionStore, fallback location.Position, logger *slog.Logger) *Provider {
	return &Provider{
		source:   source,
		store:    store,
		logger:   logger,
		fallback: fallback,
	}
}

// Acquire returns the current device position. Permission is checked
// first; a refusal fails fast. Each tier is attempted once, and if all
// fail the persisted last-known position is returned, then the
// configured default. When a fallback is used the classified error of
// the last attempt is returned alongside the still-usable position so
// callers can alert without losing the session.
func (p *Provider) Acquire(ctx context.Context) (location.Position, error) {
	if err := p.source.RequestPermission(ctx); err != nil {
		return p.fallbackPosition(ctx), ErrPermissionDenied
	}

	var lastErr error
	for _, tier := range tiers {
		attemptCtx, cancel := context.WithTimeout(ctx, tier.Timeout)
		fix, err := p.source.Current(attemptCtx, tier)
		cancel()
		if err == nil {
			pos := positionFromFix(fix)
			p.persist(ctx, pos)
			return pos, nil
		}
		lastErr = classify(err)
		p.logger.Warn("location attempt failed", "accuracy", tier.Accuracy, "error", err)
	}

	return p.fallbackPosition(ctx), lastErr
}

// fallbackPosition prefers the persisted last-known position and only
// then the configured default coordinate.
func (p *Provider) fallbackPosition(ctx context.Context) location.Position {
	last, err := p.store.LastPosition(ctx)
	if err != nil {
		p.logger.Warn("failed to load persisted position", "error", err)
	}
	if last != nil {
		return *last
	}
	return p.fallback
}

// WatchHandle identifies one watch. A handle from a superseded watch
// is inert: stopping it does nothing and its callbacks no longer fire.
type WatchHandle struct {
	gen    uint64
	cancel context.CancelFunc
}

// StartWatching installs a continuous low-accuracy watch. Starting a
// new watch cancels any previous one first so callbacks are never
// duplicated. Updates are persisted best-effort before delivery.
func (p *Provider) StartWatching(ctx context.Context, onUpdate func(location.Position), onError func(error)) (*WatchHandle, error) {
	p.mu.Lock()
	if p.watchCancel != nil {
		p.watchCancel()
	}
	p.watchGen++
	gen := p.watchGen
	watchCtx, cancel := context.WithCancel(ctx)
	p.watchCancel = cancel
	p.mu.Unlock()

	fixes, errs, err := p.source.Watch(watchCtx, WatchRequest{
		Accuracy:    AccuracyLow,
		MinDistance: watchMinDistance,
		Interval:    watchInterval,
	})
	if err != nil {
		cancel()
		return nil, classify(err)
	}

	go func() {
		for {
			select {
			case fix, ok := <-fixes:
				if !ok {
					return
				}
				// The source may keep delivering briefly after a stop;
				// a stale generation makes those fixes no-ops.
				if !p.currentGen(gen) {
					return
				}
				pos := positionFromFix(fix)
				p.persist(watchCtx, pos)
				onUpdate(pos)
			case err, ok := <-errs:
				if !ok {
					return
				}
				if p.currentGen(gen) && onError != nil {
					onError(classify(err))
				}
			case <-watchCtx.Done():
				return
			}
		}
	}()

	return &WatchHandle{gen: gen, cancel: cancel}, nil
}

// StopWatching cancels the watch identified by the handle. Handles
// from superseded watches are ignored.
func (p *Provider) StopWatching(h *WatchHandle) {
	if h == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if h.gen != p.watchGen {
		return
	}
	h.cancel()
	p.watchCancel = nil
}

func (p *Provider) currentGen(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return gen == p.watchGen
}

// persist is best-effort: a storage failure never fails acquisition.
func (p *Provider) persist(ctx context.Context, pos location.Position) {
	if err := p.store.SetLastPosition(ctx, pos); err != nil {
		p.logger.Warn("failed to persist position", "error", err)
	}
}

func positionFromFix(fix Fix) location.Position {
	ts := fix.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return location.Position{
		Latitude:  fix.Latitude,
		Longitude: fix.Longitude,
		Timestamp: ts,
	}
}

func classify(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrTimeout), errors.Is(err, ErrUnavailable):
		return err
	default:
		return ErrUnavailable
	}
}
