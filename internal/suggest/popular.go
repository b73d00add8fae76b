package suggest

import (
	"strings"

	"routebudget-telemetry/internal/location"
)

// popularPlaces is the static instant-lookup table: well-known cities
// matched synchronously before any cache or network round trip.
var popularPlaces = []location.Suggestion{
	{ID: "city:mumbai", DisplayName: "Mumbai, Maharashtra", Latitude: 19.0760, Longitude: 72.8777},
	{ID: "city:delhi", DisplayName: "Delhi", Latitude: 28.7041, Longitude: 77.1025},
	{ID: "city:bengaluru", DisplayName: "Bengaluru, Karnataka", Latitude: 12.9716, Longitude: 77.5946},
	{ID: "city:hyderabad", DisplayName: "Hyderabad, Telangana", Latitude: 17.3850, Longitude: 78.4867},
	{ID: "city:ahmedabad", DisplayName: "Ahmedabad, Gujarat", Latitude: 23.0225, Longitude: 72.5714},
	{ID: "city:chennai", DisplayName: "Chennai, Tamil Nadu", Latitude: 13.0827, Longitude: 80.2707},
	{ID: "city:kolkata", DisplayName: "Kolkata, West Bengal", Latitude: 22.5726, Longitude: 88.3639},
	{ID: "city:pune", DisplayName: "Pune, Maharashtra", Latitude: 18.5204, Longitude: 73.8567},
	{ID: "city:jaipur", DisplayName: "Jaipur, Rajasthan", Latitude: 26.9124, Longitude: 75.7873},
	{ID: "city:surat", DisplayName: "Surat, Gujarat", Latitude: 21.1702, Longitude: 72.8311},
	{ID: "city:lucknow", DisplayName: "Lucknow, Uttar Pradesh", Latitude: 26.8467, Longitude: 80.9462},
	{ID: "city:kanpur", DisplayName: "Kanpur, Uttar Pradesh", Latitude: 26.4499, Longitude: 80.3319},
	{ID: "city:nagpur", DisplayName: "Nagpur, Maharashtra", Latitude: 21.1458, Longitude: 79.0882},
	{ID: "city:indore", DisplayName: "Indore, Madhya Pradesh", Latitude: 22.7196, Longitude: 75.8577},
	{ID: "city:bhopal", DisplayName: "Bhopal, Madhya Pradesh", Latitude: 23.2599, Longitude: 77.4126},
}

// instantMatches returns popular places whose display name contains
// the normalized query.
func instantMatches(normalized string) []location.Suggestion {
	var matches []location.Suggestion
	for _, place := range popularPlaces {
		if strings.Contains(strings.ToLower(place.DisplayName), normalized) {
			matches = append(matches, place)
		}
	}
	return matches
}
