package cache

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routebudget-telemetry/internal/location"
)

func encodeEntry(t *testing.T, age time.Duration, now time.Time) []byte {
	t.Helper()
	entry := suggestionEntry{
		Data: []location.Suggestion{
			{ID: "city:mumbai", DisplayName: "Mumbai, Maharashtra", Latitude: 19.0760, Longitude: 72.8777},
		},
		Timestamp: now.Add(-age),
	}
	raw, err := json.Marshal(entry)
	require.NoError(t, err)
	return raw
}

func TestParseSuggestionEntryFresh(t *testing.T) {
	now := time.Now()

	data, fresh, err := parseSuggestionEntry(encodeEntry(t, 23*time.Hour, now), now)
	require.NoError(t, err)
	assert.True(t, fresh)
	require.Len(t, data, 1)
	assert.Equal(t, "city:mumbai", data[0].ID)
}

func TestParseSuggestionEntryStale(t *testing.T) {
	now := time.Now()

	// An entry past the TTL reads as a miss even if redis still holds it.
	data, fresh, err := parseSuggestionEntry(encodeEntry(t, 25*time.Hour, now), now)
	require.NoError(t, err)
	assert.False(t, fresh)
	assert.Nil(t, data)
}

func TestParseSuggestionEntryBoundary(t *testing.T) {
	now := time.Now()

	// Exactly at the TTL is still fresh; staleness is strictly older.
	_, fresh, err := parseSuggestionEntry(encodeEntry(t, SuggestionTTL, now), now)
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestParseSuggestionEntryMalformed(t *testing.T) {
	_, _, err := parseSuggestionEntry([]byte("{not json"), time.Now())
	assert.Error(t, err)
}
