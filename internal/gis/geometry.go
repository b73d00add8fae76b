package gis

import (
	"math"

	"routebudget-telemetry/internal/location"
)

// EarthRadius in meters
const EarthRadius = 6378137

// Degrees to radians conversion
const degToRad = math.Pi / 180

// Haversine distance between two positions in meters
func Haversine(a, b location.Position) float64 {
	dLat := (b.Latitude - a.Latitude) * degToRad
	dLon := (b.Longitude - a.Longitude) * degToRad

	lat1 := a.Latitude * degToRad
	lat2 := b.Latitude * degToRad

	sinDlat := math.Sin(dLat / 2)
	sinDlon := math.Sin(dLon / 2)

	aVal := sinDlat*sinDlat + sinDlon*sinDlon*math.Cos(lat1)*math.Cos(lat2)
	c := 2 * math.Atan2(math.Sqrt(aVal), math.Sqrt(1-aVal))
	return EarthRadius * c
}

// IsPointNearRoute returns true if the given position is within
// tolerance distance (in metres) from the route geometry.
func IsPointNearRoute(point location.Position, route location.RouteGeometry, tolerance float64) bool {
	if len(route) == 0 {
		return false
	}
	if len(route) == 1 {
		return Haversine(point, route[0]) <= tolerance
	}

	for i := 0; i < len(route)-1; i++ {
		if distanceToSegment(point, route[i], route[i+1]) <= tolerance {
			return true
		}
	}
	return false
}

// distanceToSegment calculates the minimum distance (in metres) from point P to the segment [A, B].
func distanceToSegment(P, A, B location.Position) float64 {
	lat1 := A.Latitude * degToRad
	lon1 := A.Longitude * degToRad
	lat2 := B.Latitude * degToRad
	lon2 := B.Longitude * degToRad
	latP := P.Latitude * degToRad
	lonP := P.Longitude * degToRad

	// Use a reference latitude for the projection; cross-track distance
	// would be more accurate but we don't need it at these tolerances.
	// https://www.movable-type.co.uk/scripts/latlong.html
	latRef := (lat1 + lat2) / 2
	cosLatRef := math.Cos(latRef)

	// Project points in local Cartesian coordinates (x in east-west, y in north-south)
	xA, yA := lon1*EarthRadius*cosLatRef, lat1*EarthRadius
	xB, yB := lon2*EarthRadius*cosLatRef, lat2*EarthRadius
	xP, yP := lonP*EarthRadius*cosLatRef, latP*EarthRadius

	dx, dy := xB-xA, yB-yA

	// Degenerate segment case (A == B)
	if dx == 0 && dy == 0 {
		return math.Hypot(xP-xA, yP-yA)
	}

	// Orthogonal projection of point P onto segment AB
	t := ((xP-xA)*dx + (yP-yA)*dy) / (dx*dx + dy*dy)
	t = math.Max(0, math.Min(1, t))
	xProj := xA + t*dx
	yProj := yA + t*dy

	return math.Hypot(xP-xProj, yP-yProj)
}
