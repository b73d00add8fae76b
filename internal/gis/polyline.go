package gis

import (
	"fmt"
	"math"
	"strings"

	"routebudget-telemetry/internal/location"
)

// polylineScale is the coordinate precision of the encoding:
// 5 decimal places.
const polylineScale = 1e5

// DecodePolyline reconstructs a coordinate path from the compact
// signed-delta encoding used by directions APIs: each delta is
// zigzag-signed, split into 5-bit chunks (low chunk first), each chunk
// offset by 63 into printable ASCII, with the high bit of a chunk
// marking a continuation. Latitude and longitude deltas alternate and
// accumulate into running totals.
func DecodePolyline(encoded string) (location.RouteGeometry, error) {
	var route location.RouteGeometry
	index, lat, lon := 0, 0, 0

	for index < len(encoded) {
		dLat, next, err := decodeDelta(encoded, index)
		if err != nil {
			return nil, err
		}
		dLon, after, err := decodeDelta(encoded, next)
		if err != nil {
			return nil, err
		}
		index = after

		lat += dLat
		lon += dLon
		route = append(route, location.Position{
			Latitude:  float64(lat) / polylineScale,
			Longitude: float64(lon) / polylineScale,
		})
	}
	return route, nil
}

// decodeDelta reads one varint-style delta starting at index and
// returns the signed delta plus the index of the next unread byte.
func decodeDelta(encoded string, index int) (int, int, error) {
	shift, result := 0, 0
	for {
		if index >= len(encoded) {
			return 0, 0, fmt.Errorf("truncated polyline at byte %d", index)
		}
		b := int(encoded[index]) - 63
		if b < 0 {
			return 0, 0, fmt.Errorf("invalid polyline byte %q at %d", encoded[index], index)
		}
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}
	if result&1 != 0 {
		return ^(result >> 1), index, nil
	}
	return result >> 1, index, nil
}

// EncodePolyline is the inverse of DecodePolyline. The route's
// timestamps are not representable in the encoding and are dropped.
func EncodePolyline(route location.RouteGeometry) string {
	var encoded strings.Builder
	prevLat, prevLon := 0, 0

	for _, pos := range route {
		lat := int(math.Round(pos.Latitude * polylineScale))
		lon := int(math.Round(pos.Longitude * polylineScale))

		encodeDelta(&encoded, lat-prevLat)
		encodeDelta(&encoded, lon-prevLon)

		prevLat, prevLon = lat, lon
	}
	return encoded.String()
}

func encodeDelta(buf *strings.Builder, delta int) {
	if delta < 0 {
		delta = ^(delta << 1)
	} else {
		delta <<= 1
	}

	for delta >= 0x20 {
		buf.WriteByte(byte((delta&0x1f | 0x20) + 63))
		delta >>= 5
	}
	buf.WriteByte(byte(delta + 63))
}
