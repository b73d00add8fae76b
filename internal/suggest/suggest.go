package suggest

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"routebudget-telemetry/internal/gis/geocode"
	"routebudget-telemetry/internal/location"
)

const (
	// minQueryLength short-circuits lookups below this many characters
	// to an empty result without touching cache or network.
	minQueryLength = 2
	// debounceDelay coalesces fast typing into at most one remote
	// request per pause.
	debounceDelay = 300 * time.Millisecond
	maxResults    = 8
	remoteLimit   = 10
)

// Searcher is the remote suggestion source; satisfied by the geocode
// client.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]geocode.Result, error)
}

// Service produces ranked suggestion lists for free-text queries:
// instant matches from the popular-place table first, then a fresh
// TTL-cache hit or a debounced remote search. Each Lookup supersedes
// the previous one, so only the latest keystroke's results are ever
// emitted.
type Service struct {
	searcher Searcher
	store    location.SuggestionStore
	logger   *slog.Logger

	// Overridden in tests.
	debounce time.Duration

	mu         sync.Mutex
	gen        uint64
	cancelPrev context.CancelFunc
}

func NewService(searcher Searcher, store location.SuggestionStore, logger *slog.Logger) *Service {
	return &Service{
		searcher: searcher,
		store:    store,
		logger:   logger,
		debounce: debounceDelay,
	}
}

// Normalize produces the cache key for a raw query.
func Normalize(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// Lookup returns the suggestion sequence for one keystroke: the
// instant popular-place matches immediately, then at most one more
// list (fresh cache hit, or debounced remote results merged with the
// instant ones). The channel closes when the lookup completes or is
// superseded by a newer one.
func (s *Service) Lookup(ctx context.Context, query string) <-chan []location.Suggestion {
	out := make(chan []location.Suggestion, 2)
	normalized := Normalize(query)

	s.mu.Lock()
	s.gen++
	gen := s.gen
	if s.cancelPrev != nil {
		s.cancelPrev()
		s.cancelPrev = nil
	}
	if len(normalized) < minQueryLength {
		s.mu.Unlock()
		out <- nil
		close(out)
		return out
	}
	lookupCtx, cancel := context.WithCancel(ctx)
	s.cancelPrev = cancel
	s.mu.Unlock()

	instant := instantMatches(normalized)
	out <- instant

	go func() {
		defer close(out)

		cached, ok, err := s.store.Suggestions(lookupCtx, normalized)
		if err != nil {
			s.logger.Warn("suggestion cache lookup failed", "query", normalized, "error", err)
		}
		if ok {
			// A fresh cache hit replaces the instant results; no
			// remote request is issued.
			if s.isCurrent(gen) {
				out <- cached
			}
			return
		}

		select {
		case <-time.After(s.debounce):
		case <-lookupCtx.Done():
			return
		}

		results, err := s.searcher.Search(lookupCtx, normalized, remoteLimit)
		if err != nil {
			// Cancellation means a newer keystroke superseded us:
			// silent. Anything else degrades silently to the instant
			// results already emitted.
			if !errors.Is(err, context.Canceled) {
				s.logger.Warn("remote suggestion search failed", "query", normalized, "error", err)
			}
			return
		}

		merged := merge(normalized, instant, results)
		if err := s.store.SetSuggestions(lookupCtx, normalized, merged); err != nil {
			s.logger.Warn("failed to cache suggestions", "query", normalized, "error", err)
		}
		if s.isCurrent(gen) {
			out <- merged
		}
	}()

	return out
}

// Reset cancels any in-flight or debounced lookup, for example when
// the user selects a suggestion. Results of superseded lookups are
// never emitted afterwards.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.cancelPrev != nil {
		s.cancelPrev()
		s.cancelPrev = nil
	}
}

func (s *Service) isCurrent(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.gen
}

// merge filters remote results to those containing the query, ranks
// them by address specificity, de-duplicates against the instant
// results by case-insensitive name equality, and bounds the combined
// list.
func merge(normalized string, instant []location.Suggestion, remote []geocode.Result) []location.Suggestion {
	filtered := make([]geocode.Result, 0, len(remote))
	for _, r := range remote {
		if strings.Contains(strings.ToLower(r.DisplayName), normalized) {
			filtered = append(filtered, r)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Specificity() > filtered[j].Specificity()
	})

	seen := make(map[string]bool, len(instant))
	merged := make([]location.Suggestion, 0, maxResults)
	for _, sug := range instant {
		if len(merged) == maxResults {
			return merged
		}
		seen[strings.ToLower(sug.DisplayName)] = true
		merged = append(merged, sug)
	}
	for _, r := range filtered {
		if len(merged) == maxResults {
			break
		}
		name := strings.ToLower(r.DisplayName)
		if seen[name] {
			continue
		}
		pos, err := r.Position()
		if err != nil {
			continue
		}
		seen[name] = true
		merged = append(merged, location.Suggestion{
			ID:          resultID(r),
			DisplayName: r.DisplayName,
			Latitude:    pos.Latitude,
			Longitude:   pos.Longitude,
		})
	}
	return merged
}

func resultID(r geocode.Result) string {
	if r.PlaceID != 0 {
		return "place:" + strconv.FormatInt(r.PlaceID, 10)
	}
	return uuid.NewString()
}
