package location

import (
	"context"
	"fmt"
	"time"
)

// Position is a single device fix. Values are never mutated,
// a new Position supersedes the previous one on every update.
type Position struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

func (p Position) Validate() error {
	if p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("invalid latitude: %f", p.Latitude)
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("invalid longitude: %f", p.Longitude)
	}
	return nil
}

// Suggestion is one candidate place for a free-text query. Static
// popular-city entries and remote search results share this shape.
type Suggestion struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// RouteGeometry is an ordered path of positions decoded from an
// encoded polyline.
type RouteGeometry []Position

// Trip is the confirmed trip location persisted for session resumption.
type Trip struct {
	Location  string        `json:"location"`
	From      string        `json:"from"`
	To        string        `json:"to"`
	FromCoord Position      `json:"from_coords"`
	ToCoord   Position      `json:"to_coords"`
	Route     RouteGeometry `json:"route_coordinates"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type PositionStore interface {
	SetLastPosition(ctx context.Context, pos Position) error
	LastPosition(ctx context.Context) (*Position, error)
}

type TripStore interface {
	SetTrip(ctx context.Context, trip *Trip) error
	Trip(ctx context.Context) (*Trip, error)
}

// SuggestionStore caches suggestion lists per normalized query.
// A miss and an expired entry are indistinguishable to callers.
type SuggestionStore interface {
	SetSuggestions(ctx context.Context, key string, suggestions []Suggestion) error
	Suggestions(ctx context.Context, key string) ([]Suggestion, bool, error)
}
