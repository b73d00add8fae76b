package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"routebudget-telemetry/internal/location"
)

const (
	lastPositionKey = "driver:last_position"
	savedTripKey    = "driver:saved_trip"

	// SuggestionTTL bounds how long a cached suggestion list may be
	// served; entries older than this are treated as absent.
	SuggestionTTL = 24 * time.Hour
)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) SetLastPosition(ctx context.Context, pos location.Position) error {
	data, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("marshalling position: %w", err)
	}
	return r.client.Set(ctx, lastPositionKey, data, 0).Err()
}

// LastPosition returns the persisted last-known position, or nil if
// none has been stored yet.
func (r *RedisStore) LastPosition(ctx context.Context) (*location.Position, error) {
	val, err := r.client.Get(ctx, lastPositionKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting last position: %w", err)
	}
	var pos location.Position
	if err := json.Unmarshal([]byte(val), &pos); err != nil {
		return nil, fmt.Errorf("unmarshalling last position: %w", err)
	}
	return &pos, nil
}

func (r *RedisStore) SetTrip(ctx context.Context, trip *location.Trip) error {
	data, err := json.Marshal(trip)
	if err != nil {
		return fmt.Errorf("marshalling trip: %w", err)
	}
	return r.client.Set(ctx, savedTripKey, data, 0).Err()
}

func (r *RedisStore) Trip(ctx context.Context) (*location.Trip, error) {
	val, err := r.client.Get(ctx, savedTripKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting trip: %w", err)
	}
	var trip location.Trip
	if err := json.Unmarshal([]byte(val), &trip); err != nil {
		return nil, fmt.Errorf("unmarshalling trip: %w", err)
	}
	return &trip, nil
}

// suggestionEntry is the stored shape of one cached query result.
type suggestionEntry struct {
	Data      []location.Suggestion `json:"data"`
	Timestamp time.Time             `json:"timestamp"`
}

func (r *RedisStore) SetSuggestions(ctx context.Context, key string, suggestions []location.Suggestion) error {
	entry := suggestionEntry{Data: suggestions, Timestamp: time.Now()}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshalling suggestions: %w", err)
	}
	return r.client.Set(ctx, suggestionKey(key), data, SuggestionTTL).Err()
}

// Suggestions returns the cached list for a normalized query. The
// stored timestamp is checked as well as the redis expiry, so an entry
// surviving past its TTL (clock skew, restored dump) is purged lazily
// and reported as a miss.
func (r *RedisStore) Suggestions(ctx context.Context, key string) ([]location.Suggestion, bool, error) {
	val, err := r.client.Get(ctx, suggestionKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("getting suggestions: %w", err)
	}
	data, fresh, err := parseSuggestionEntry([]byte(val), time.Now())
	if err != nil {
		return nil, false, err
	}
	if !fresh {
		if err := r.client.Del(ctx, suggestionKey(key)).Err(); err != nil {
			return nil, false, fmt.Errorf("purging stale suggestions: %w", err)
		}
		return nil, false, nil
	}
	return data, true, nil
}

// parseSuggestionEntry decodes a stored entry and reports whether it
// is still fresh at now. Entries older than SuggestionTTL read as
// stale even when redis has not expired them yet.
func parseSuggestionEntry(raw []byte, now time.Time) ([]location.Suggestion, bool, error) {
	var entry suggestionEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false, fmt.Errorf("unmarshalling suggestions: %w", err)
	}
	if now.Sub(entry.Timestamp) > SuggestionTTL {
		return nil, false, nil
	}
	return entry.Data, true, nil
}

func suggestionKey(normalized string) string {
	return fmt.Sprintf("suggestions:%s", normalized)
}
