package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routebudget-telemetry/internal/dispatch"
	"routebudget-telemetry/internal/geoloc"
	"routebudget-telemetry/internal/gis/routing"
	"routebudget-telemetry/internal/location"
	"routebudget-telemetry/internal/telemetry"
)

type fakeProvider struct {
	pos        location.Position
	acquireErr error
	watchErr   error
	stops      int
}

func (f *fakeProvider) Acquire(context.Context) (location.Position, error) {
	return f.pos, f.acquireErr
}

func (f *fakeProvider) StartWatching(context.Context, func(location.Position), func(error)) (*geoloc.WatchHandle, error) {
	return nil, f.watchErr
}

func (f *fakeProvider) StopWatching(*geoloc.WatchHandle) { f.stops++ }

type fakeChannel struct {
	mu          sync.Mutex
	connected   bool
	driverID    string
	tracking    int
	stopped     int
	disconnects int
}

func (f *fakeChannel) Connect(_ context.Context, driverID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	f.driverID = driverID
}

func (f *fakeChannel) OnServerError(func(string)) {}

func (f *fakeChannel) StartTracking() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracking++
}

func (f *fakeChannel) StopTracking() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
}

func (f *fakeChannel) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
}

func (f *fakeChannel) Session() telemetry.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return telemetry.Session{DriverID: f.driverID, Tracking: f.tracking > f.stopped}
}

type fakeGeocoder struct {
	positions map[string]*location.Position
	err       error
}

func (f *fakeGeocoder) Geocode(_ context.Context, address string) (*location.Position, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.positions[address], nil
}

type fakeRouter struct {
	route location.RouteGeometry
	err   error
}

func (f *fakeRouter) Route(context.Context, location.Position, location.Position) (location.RouteGeometry, *routing.Summary, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.route, &routing.Summary{Distance: 1000, Duration: 120}, nil
}

type fakeTripAPI struct {
	updates []dispatch.TripUpdate
	err     error
}

func (f *fakeTripAPI) UpdateTripLocation(_ context.Context, update dispatch.TripUpdate) error {
	if f.err != nil {
		return f.err
	}
	f.updates = append(f.updates, update)
	return nil
}

type fakeSuggestions struct{ resets int }

func (f *fakeSuggestions) Reset() { f.resets++ }

type memTripStore struct {
	mu   sync.Mutex
	trip *location.Trip
}

func (m *memTripStore) SetTrip(_ context.Context, trip *location.Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trip = trip
	return nil
}

func (m *memTripStore) Trip(context.Context) (*location.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trip, nil
}

type fixture struct {
	provider    *fakeProvider
	channel     *fakeChannel
	geocoder    *fakeGeocoder
	router      *fakeRouter
	tripAPI     *fakeTripAPI
	suggestions *fakeSuggestions
	trips       *memTripStore
	controller  *Controller
}

func newFixture() *fixture {
	f := &fixture{
		provider: &fakeProvider{pos: location.Position{Latitude: 19.0, Longitude: 72.8, Timestamp: time.Now()}},
		channel:  &fakeChannel{},
		geocoder: &fakeGeocoder{positions: map[string]*location.Position{
			"Andheri": {Latitude: 19.1197, Longitude: 72.8464},
			"Dadar":   {Latitude: 19.0178, Longitude: 72.8478},
		}},
		router:      &fakeRouter{route: location.RouteGeometry{{Latitude: 19.1, Longitude: 72.84}, {Latitude: 19.02, Longitude: 72.85}}},
		tripAPI:     &fakeTripAPI{},
		suggestions: &fakeSuggestions{},
		trips:       &memTripStore{},
	}
	f.controller = NewController(Deps{
		Provider:    f.provider,
		Channel:     f.channel,
		Geocoder:    f.geocoder,
		Router:      f.router,
		TripAPI:     f.tripAPI,
		Suggestions: f.suggestions,
		Trips:       f.trips,
		Logger:      slog.New(slog.DiscardHandler),
		DriverID:    "driver-42",
		CabNumber:   "MH01AB1234",
	})
	return f
}

func TestStartAdvancesPhases(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.controller.Start(context.Background()))

	assert.Equal(t, PhaseConnected, f.controller.Phase())
	assert.True(t, f.channel.connected)
	assert.Equal(t, "driver-42", f.channel.driverID)
	require.NotNil(t, f.controller.CurrentPosition())
	assert.Equal(t, 19.0, f.controller.CurrentPosition().Latitude)

	assert.Error(t, f.controller.Start(context.Background()))
}

func TestStartAlertsOnAcquisitionFailureButContinues(t *testing.T) {
	f := newFixture()
	f.provider.pos = location.Position{Latitude: 28.6139, Longitude: 77.2090}
	f.provider.acquireErr = geoloc.ErrTimeout

	var alerts []Alert
	f.controller.OnAlert(func(a Alert) { alerts = append(alerts, a) })

	require.NoError(t, f.controller.Start(context.Background()))
	require.Len(t, alerts, 1)
	assert.Equal(t, "LOCATION_TIMEOUT", alerts[0].Code)
	assert.Equal(t, PhaseConnected, f.controller.Phase())
	assert.True(t, f.channel.connected)
}

func TestConfirmTripRequiresBothAddresses(t *testing.T) {
	f := newFixture()
	f.controller.SetFrom("Andheri")

	_, err := f.controller.ConfirmTrip(context.Background())
	assert.ErrorIs(t, err, ErrAddressesRequired)
	assert.Zero(t, f.channel.tracking)
	assert.Empty(t, f.tripAPI.updates)
}

func TestConfirmTripStartsTracking(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.controller.Start(context.Background()))
	f.controller.SetFrom("Andheri")
	f.controller.SetTo("Dadar")

	trip, err := f.controller.ConfirmTrip(context.Background())
	require.NoError(t, err)

	assert.Equal(t, PhaseTracking, f.controller.Phase())
	assert.Equal(t, 1, f.channel.tracking)

	require.Len(t, f.tripAPI.updates, 1)
	update := f.tripAPI.updates[0]
	assert.Equal(t, "Andheri", update.From)
	assert.Equal(t, "Dadar", update.To)
	assert.Equal(t, "driver-42", update.DriverID)
	assert.Equal(t, "MH01AB1234", update.CabNumber)

	assert.Equal(t, 19.1197, trip.FromCoord.Latitude)
	assert.Len(t, trip.Route, 2)

	persisted, err := f.trips.Trip(context.Background())
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, trip.From, persisted.From)

	// The telemetry supplier now carries the confirmed labels.
	_, rc, ok := f.controller.TelemetryPosition(context.Background())
	require.True(t, ok)
	assert.Equal(t, "Andheri", rc.From)
	assert.Equal(t, "Dadar", rc.To)
}

func TestConfirmTripFailsWhenDispatchRejects(t *testing.T) {
	f := newFixture()
	f.tripAPI.err = errors.New("409 trip already closed")
	f.controller.SetFrom("Andheri")
	f.controller.SetTo("Dadar")

	_, err := f.controller.ConfirmTrip(context.Background())
	assert.Error(t, err)
	assert.Zero(t, f.channel.tracking)
	assert.NotEqual(t, PhaseTracking, f.controller.Phase())
}

func TestConfirmTripUnresolvableAddress(t *testing.T) {
	f := newFixture()
	f.controller.SetFrom("Andheri")
	f.controller.SetTo("Nowhere Special")

	_, err := f.controller.ConfirmTrip(context.Background())
	assert.Error(t, err)
	assert.Empty(t, f.tripAPI.updates)
}

func TestSelectSuggestionSetsCoordinatesAndClearsLookups(t *testing.T) {
	f := newFixture()
	sug := location.Suggestion{ID: "city:mumbai", DisplayName: "Mumbai, Maharashtra", Latitude: 19.0760, Longitude: 72.8777}

	require.NoError(t, f.controller.SelectSuggestion("from", sug))
	assert.Equal(t, 1, f.suggestions.resets)

	f.controller.SetTo("Dadar")
	trip, err := f.controller.ConfirmTrip(context.Background())
	require.NoError(t, err)
	// The selected coordinates are used directly, no geocoding round trip.
	assert.Equal(t, 19.076, trip.FromCoord.Latitude)
	assert.Equal(t, 72.8777, trip.FromCoord.Longitude)
	assert.Equal(t, "Mumbai, Maharashtra", trip.From)

	assert.Error(t, f.controller.SelectSuggestion("sideways", sug))
}

func TestResumeReloadsPersistedTrip(t *testing.T) {
	f := newFixture()
	saved := &location.Trip{
		From:      "Andheri",
		To:        "Dadar",
		FromCoord: location.Position{Latitude: 19.1197, Longitude: 72.8464},
		ToCoord:   location.Position{Latitude: 19.0178, Longitude: 72.8478},
		Route:     location.RouteGeometry{{Latitude: 19.1, Longitude: 72.84}},
		UpdatedAt: time.Now(),
	}
	require.NoError(t, f.trips.SetTrip(context.Background(), saved))

	trip, center, err := f.controller.Resume(context.Background())
	require.NoError(t, err)
	require.NotNil(t, trip)
	assert.Equal(t, "Andheri", trip.From)
	// Not tracking: re-center on the persisted route.
	require.NotNil(t, center)
	assert.Equal(t, 19.1, center.Latitude)
}

func TestResumeWhileTrackingCentersOnLivePosition(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.controller.Start(context.Background()))
	f.controller.SetFrom("Andheri")
	f.controller.SetTo("Dadar")
	_, err := f.controller.ConfirmTrip(context.Background())
	require.NoError(t, err)

	_, center, err := f.controller.Resume(context.Background())
	require.NoError(t, err)
	require.NotNil(t, center)
	assert.Equal(t, 19.0, center.Latitude)
}

func TestStopTrackingReturnsToConnected(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.controller.Start(context.Background()))
	f.controller.SetFrom("Andheri")
	f.controller.SetTo("Dadar")
	_, err := f.controller.ConfirmTrip(context.Background())
	require.NoError(t, err)

	f.controller.StopTracking()
	assert.Equal(t, PhaseConnected, f.controller.Phase())
	assert.Equal(t, 1, f.channel.stopped)
}

func TestTeardownClosesEverything(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.controller.Start(context.Background()))

	f.controller.Teardown()
	assert.Equal(t, PhaseTornDown, f.controller.Phase())
	assert.Equal(t, 1, f.channel.disconnects)

	err := f.controller.Start(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "session not idle")
}

func TestOnRoute(t *testing.T) {
	f := newFixture()
	f.provider.pos = location.Position{Latitude: 19.1, Longitude: 72.84, Timestamp: time.Now()}
	require.NoError(t, f.controller.Start(context.Background()))
	f.controller.SetFrom("Andheri")
	f.controller.SetTo("Dadar")
	_, err := f.controller.ConfirmTrip(context.Background())
	require.NoError(t, err)

	// Live position sits on the first route vertex.
	assert.True(t, f.controller.OnRoute())
}

func TestTelemetryPositionBeforeAcquisition(t *testing.T) {
	f := newFixture()
	_, _, ok := f.controller.TelemetryPosition(context.Background())
	assert.False(t, ok)
}
