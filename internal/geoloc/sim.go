package geoloc

import (
	"context"
	"time"

	"routebudget-telemetry/internal/location"
)

// SimSource is a development stand-in for the platform location API.
// It always grants permission and reports a fixed coordinate with a
// small deterministic drift per watch tick.
type SimSource struct {
	Base location.Position
}

func (s *SimSource) RequestPermission(context.Context) error { return nil }

func (s *SimSource) Current(_ context.Context, _ Request) (Fix, error) {
	return Fix{
		Latitude:  s.Base.Latitude,
		Longitude: s.Base.Longitude,
		Accuracy:  10,
		Timestamp: time.Now(),
	}, nil
}

func (s *SimSource) Watch(ctx context.Context, req WatchRequest) (<-chan Fix, <-chan error, error) {
	fixes := make(chan Fix)
	errs := make(chan error)

	go func() {
		defer close(fixes)
		defer close(errs)

		ticker := time.NewTicker(req.Interval)
		defer ticker.Stop()

		step := 0
		for {
			select {
			case <-ticker.C:
				step++
				fix := Fix{
					Latitude:  s.Base.Latitude + float64(step)*1e-5,
					Longitude: s.Base.Longitude + float64(step)*1e-5,
					Accuracy:  25,
					Timestamp: time.Now(),
				}
				select {
				case fixes <- fix:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return fixes, errs, nil
}
