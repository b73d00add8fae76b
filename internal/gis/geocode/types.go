package geocode

import (
	"fmt"
	"strconv"

	"routebudget-telemetry/internal/location"
)

// Result is one place returned by the search endpoint. Coordinates
// arrive as strings on the wire.
type Result struct {
	PlaceID     int64    `json:"place_id"`
	DisplayName string   `json:"display_name"`
	Lat         string   `json:"lat"`
	Lon         string   `json:"lon"`
	Address     *Address `json:"address,omitempty"`
}

// Address carries the structured components used to rank results by
// specificity.
type Address struct {
	HouseNumber   string `json:"house_number,omitempty"`
	Road          string `json:"road,omitempty"`
	Neighbourhood string `json:"neighbourhood,omitempty"`
	Suburb        string `json:"suburb,omitempty"`
	City          string `json:"city,omitempty"`
	State         string `json:"state,omitempty"`
	Postcode      string `json:"postcode,omitempty"`
}

// Specificity scores a result for ranking: a house number beats a
// road, a road beats a neighbourhood.
func (r Result) Specificity() int {
	if r.Address == nil {
		return 0
	}
	score := 0
	if r.Address.HouseNumber != "" {
		score += 4
	}
	if r.Address.Road != "" {
		score += 2
	}
	if r.Address.Neighbourhood != "" {
		score += 1
	}
	return score
}

// Position parses the wire coordinates into a Position.
func (r Result) Position() (location.Position, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return location.Position{}, fmt.Errorf("parsing latitude %q: %w", r.Lat, err)
	}
	lon, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return location.Position{}, fmt.Errorf("parsing longitude %q: %w", r.Lon, err)
	}
	return location.Position{Latitude: lat, Longitude: lon}, nil
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
}
