package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routebudget-telemetry/internal/location"
)

type memTripStore struct {
	trip *location.Trip
}

func (m *memTripStore) SetTrip(_ context.Context, trip *location.Trip) error {
	m.trip = trip
	return nil
}

func (m *memTripStore) Trip(context.Context) (*location.Trip, error) {
	return m.trip, nil
}

func TestTripHandlerReturnsPersistedTrip(t *testing.T) {
	saved := &location.Trip{
		Location:  "Andheri - Dadar",
		From:      "Andheri",
		To:        "Dadar",
		FromCoord: location.Position{Latitude: 19.1197, Longitude: 72.8464},
		ToCoord:   location.Position{Latitude: 19.0178, Longitude: 72.8478},
		UpdatedAt: time.Now(),
	}
	s := &Server{trips: &memTripStore{trip: saved}, logger: slog.New(slog.DiscardHandler)}

	rec := httptest.NewRecorder()
	s.tripHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/trip", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got location.Trip
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "Andheri", got.From)
	assert.Equal(t, "Dadar", got.To)
	assert.Equal(t, 19.1197, got.FromCoord.Latitude)
}

func TestTripHandlerWithoutSavedTrip(t *testing.T) {
	s := &Server{trips: &memTripStore{}, logger: slog.New(slog.DiscardHandler)}

	rec := httptest.NewRecorder()
	s.tripHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/trip", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
