package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"routebudget-telemetry/internal/dispatch"
	"routebudget-telemetry/internal/geoloc"
	"routebudget-telemetry/internal/gis"
	"routebudget-telemetry/internal/gis/routing"
	"routebudget-telemetry/internal/location"
	"routebudget-telemetry/internal/telemetry"
)

// routeTolerance is how far (meters) the live position may drift from
// the confirmed route before it is reported off-route.
const routeTolerance = 30

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAcquiring
	PhaseConnected
	PhaseTracking
	PhaseTornDown
)

func (p Phase) String() string {
	switch p {
	case PhaseAcquiring:
		return "acquiring"
	case PhaseConnected:
		return "connected"
	case PhaseTracking:
		return "tracking"
	case PhaseTornDown:
		return "torn_down"
	default:
		return "idle"
	}
}

var ErrAddressesRequired = errors.New("both pickup and drop addresses are required")

// Provider yields device positions.
type Provider interface {
	Acquire(ctx context.Context) (location.Position, error)
	StartWatching(ctx context.Context, onUpdate func(location.Position), onError func(error)) (*geoloc.WatchHandle, error)
	StopWatching(h *geoloc.WatchHandle)
}

// Channel streams positions to the dispatch backend.
type Channel interface {
	Connect(ctx context.Context, driverID string)
	OnServerError(fn func(string))
	StartTracking()
	StopTracking()
	Disconnect()
	Session() telemetry.Session
}

// Geocoder resolves free text to a coordinate.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*location.Position, error)
}

// Router fetches a driving path between two coordinates.
type Router interface {
	Route(ctx context.Context, origin, destination location.Position) (location.RouteGeometry, *routing.Summary, error)
}

// TripAPI is the external trip-update collaborator.
type TripAPI interface {
	UpdateTripLocation(ctx context.Context, update dispatch.TripUpdate) error
}

// Suggestions is the in-flight suggestion state cleared on selection.
type Suggestions interface {
	Reset()
}

// Alert is a user-facing, actionable notification. Errors in this
// subsystem surface as alerts, never as crashes.
type Alert struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Controller orchestrates the location screen session: it reacts to
// the pickup/drop text, drives acquisition, feeds the telemetry
// channel and exposes the resolved trip location. Phases advance
// idle -> acquiring -> connected -> tracking -> torn_down on explicit
// events only.
type Controller struct {
	provider    Provider
	channel     Channel
	geocoder    Geocoder
	router      Router
	tripAPI     TripAPI
	suggestions Suggestions
	trips       location.TripStore
	logger      *slog.Logger

	driverID  string
	cabNumber string

	onAlert func(Alert)

	mu        sync.Mutex
	phase     Phase
	fromText  string
	toText    string
	fromCoord *location.Position
	toCoord   *location.Position
	route     location.RouteGeometry
	current   *location.Position
	watch     *geoloc.WatchHandle
}

type Deps struct {
	Provider    Provider
	Channel     Channel
	Geocoder    Geocoder
	Router      Router
	TripAPI     TripAPI
	Suggestions Suggestions
	Trips       location.TripStore
	Logger      *slog.Logger
	DriverID    string
	CabNumber   string
}

func NewController(deps Deps) *Controller {
	return &Controller{
		provider:    deps.Provider,
		channel:     deps.Channel,
		geocoder:    deps.Geocoder,
		router:      deps.Router,
		tripAPI:     deps.TripAPI,
		suggestions: deps.Suggestions,
		trips:       deps.Trips,
		logger:      deps.Logger,
		driverID:    deps.DriverID,
		cabNumber:   deps.CabNumber,
		phase:       PhaseIdle,
	}
}

// OnAlert registers the user-facing alert sink.
func (c *Controller) OnAlert(fn func(Alert)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onAlert = fn
}

// Start acquires an initial position, opens the telemetry channel and
// installs the continuous watch. Acquisition failures alert but never
// abort: the provider hands back a usable fallback position.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != PhaseIdle {
		c.mu.Unlock()
		return fmt.Errorf("session not idle (phase %s)", c.phase)
	}
	c.phase = PhaseAcquiring
	c.mu.Unlock()

	pos, err := c.provider.Acquire(ctx)
	if err != nil {
		c.alertForLocationError(err)
	}
	c.setCurrent(pos)

	c.channel.OnServerError(func(message string) {
		c.alert(Alert{Code: "SERVER", Message: message})
	})
	c.channel.Connect(ctx, c.driverID)

	watch, err := c.provider.StartWatching(ctx, c.setCurrent, func(err error) {
		c.logger.Warn("watch error", "error", err)
	})
	if err != nil {
		c.alertForLocationError(err)
	}

	c.mu.Lock()
	c.watch = watch
	c.phase = PhaseConnected
	c.mu.Unlock()
	return nil
}

// SetFrom and SetTo record the user-entered address text.
func (c *Controller) SetFrom(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fromText = text
	c.fromCoord = nil
}

func (c *Controller) SetTo(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toText = text
	c.toCoord = nil
}

// SelectSuggestion resolves one field from a chosen suggestion and
// clears any in-flight suggestion state.
func (c *Controller) SelectSuggestion(field string, sug location.Suggestion) error {
	pos := location.Position{Latitude: sug.Latitude, Longitude: sug.Longitude, Timestamp: time.Now()}

	c.mu.Lock()
	switch field {
	case "from":
		c.fromText = sug.DisplayName
		c.fromCoord = &pos
	case "to":
		c.toText = sug.DisplayName
		c.toCoord = &pos
	default:
		c.mu.Unlock()
		return fmt.Errorf("unknown field %q", field)
	}
	c.mu.Unlock()

	c.suggestions.Reset()
	return nil
}

// ConfirmTrip validates the addresses, resolves missing coordinates,
// fetches the route, submits the trip location to dispatch, persists
// the payload for resumption and starts tracking.
func (c *Controller) ConfirmTrip(ctx context.Context) (*location.Trip, error) {
	c.mu.Lock()
	from, to := c.fromText, c.toText
	fromCoord, toCoord := c.fromCoord, c.toCoord
	c.mu.Unlock()

	if from == "" || to == "" {
		return nil, ErrAddressesRequired
	}

	var err error
	if fromCoord == nil {
		if fromCoord, err = c.resolve(ctx, from); err != nil {
			return nil, err
		}
	}
	if toCoord == nil {
		if toCoord, err = c.resolve(ctx, to); err != nil {
			return nil, err
		}
	}

	route, _, err := c.router.Route(ctx, *fromCoord, *toCoord)
	if err != nil {
		// The trip can still be confirmed without geometry; the route
		// is redrawn on the next resume.
		c.logger.Warn("failed to fetch route", "error", err)
	}

	trip := &location.Trip{
		Location:  from + " - " + to,
		From:      from,
		To:        to,
		FromCoord: *fromCoord,
		ToCoord:   *toCoord,
		Route:     route,
		UpdatedAt: time.Now(),
	}

	if err := c.tripAPI.UpdateTripLocation(ctx, dispatch.TripUpdate{
		DriverID:  c.driverID,
		CabNumber: c.cabNumber,
		Location:  trip.Location,
		From:      from,
		To:        to,
	}); err != nil {
		return nil, fmt.Errorf("submitting trip location: %w", err)
	}

	if err := c.trips.SetTrip(ctx, trip); err != nil {
		c.logger.Warn("failed to persist trip", "error", err)
	}

	c.mu.Lock()
	c.fromCoord = fromCoord
	c.toCoord = toCoord
	c.route = route
	c.phase = PhaseTracking
	c.mu.Unlock()

	c.channel.StartTracking()
	return trip, nil
}

func (c *Controller) resolve(ctx context.Context, address string) (*location.Position, error) {
	pos, err := c.geocoder.Geocode(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", address, err)
	}
	if pos == nil {
		return nil, fmt.Errorf("no results for %q", address)
	}
	return pos, nil
}

// Resume reloads the persisted trip on screen re-entry and reports
// the position to re-center on: the live position while tracking,
// otherwise the start of the persisted route.
func (c *Controller) Resume(ctx context.Context) (*location.Trip, *location.Position, error) {
	trip, err := c.trips.Trip(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("loading persisted trip: %w", err)
	}
	if trip == nil {
		return nil, c.CurrentPosition(), nil
	}

	c.mu.Lock()
	c.fromText = trip.From
	c.toText = trip.To
	fc, tc := trip.FromCoord, trip.ToCoord
	c.fromCoord = &fc
	c.toCoord = &tc
	c.route = trip.Route
	tracking := c.phase == PhaseTracking
	current := c.current
	c.mu.Unlock()

	if tracking && current != nil {
		return trip, current, nil
	}
	if len(trip.Route) > 0 {
		center := trip.Route[0]
		return trip, &center, nil
	}
	return trip, &fc, nil
}

// StopTracking halts periodic sends but keeps the session alive.
func (c *Controller) StopTracking() {
	c.channel.StopTracking()
	c.mu.Lock()
	if c.phase == PhaseTracking {
		c.phase = PhaseConnected
	}
	c.mu.Unlock()
}

// Teardown closes the session: the watch, the tracking interval and
// the socket all go with it.
func (c *Controller) Teardown() {
	c.mu.Lock()
	watch := c.watch
	c.watch = nil
	c.phase = PhaseTornDown
	c.mu.Unlock()

	if watch != nil {
		c.provider.StopWatching(watch)
	}
	c.channel.Disconnect()
}

// CurrentPosition returns the latest known position, nil before the
// first acquisition.
func (c *Controller) CurrentPosition() *location.Position {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	pos := *c.current
	return &pos
}

// OnRoute reports whether the live position is still near the
// confirmed route geometry.
func (c *Controller) OnRoute() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || len(c.route) == 0 {
		return false
	}
	return gis.IsPointNearRoute(*c.current, c.route, routeTolerance)
}

// Phase reports the current session phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// TelemetryPosition is the channel's position supplier: the latest
// fix plus the trip's from/to labels.
func (c *Controller) TelemetryPosition(context.Context) (location.Position, telemetry.RouteContext, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return location.Position{}, telemetry.RouteContext{}, false
	}
	return *c.current, telemetry.RouteContext{From: c.fromText, To: c.toText}, true
}

func (c *Controller) setCurrent(pos location.Position) {
	c.mu.Lock()
	c.current = &pos
	c.mu.Unlock()
}

func (c *Controller) alertForLocationError(err error) {
	switch {
	case errors.Is(err, geoloc.ErrPermissionDenied):
		c.alert(Alert{Code: "PERMISSION_DENIED", Message: "Location permission is denied. Enable it in settings to share your live position."})
	case errors.Is(err, geoloc.ErrTimeout):
		c.alert(Alert{Code: "LOCATION_TIMEOUT", Message: "Timed out getting a GPS fix. Using your last known position."})
	case errors.Is(err, geoloc.ErrUnavailable):
		c.alert(Alert{Code: "LOCATION_UNAVAILABLE", Message: "Location is unavailable right now. Using your last known position."})
	default:
		c.alert(Alert{Code: "LOCATION_ERROR", Message: "Could not determine your position."})
	}
}

func (c *Controller) alert(a Alert) {
	c.mu.Lock()
	fn := c.onAlert
	c.mu.Unlock()
	if fn != nil {
		fn(a)
	}
	c.logger.Info("user alert", "code", a.Code, "message", a.Message)
}
