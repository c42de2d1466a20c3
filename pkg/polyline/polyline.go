// Package polyline implements Google's encoded polyline format, which both
// the directions provider and the route plan payloads use for leg geometry.
// Format reference: https://developers.google.com/maps/documentation/utilities/polylinealgorithm
package polyline

import (
	"math"
)

// Coordinate is a geographic point.
type Coordinate struct {
	Lat float64
	Lon float64
}

// precision is the fixed 5-decimal-place scale of the standard encoding.
const precision = 1e5

// Decode expands an encoded polyline into coordinates. An empty string
// yields nil.
func Decode(encoded string) []Coordinate {
	if encoded == "" {
		return nil
	}

	var coords []Coordinate
	var lat, lon, pos int

	for pos < len(encoded) {
		latDelta, next := decodeValue(encoded, pos)
		lat += latDelta

		lonDelta, next := decodeValue(encoded, next)
		lon += lonDelta
		pos = next

		coords = append(coords, Coordinate{
			Lat: float64(lat) / precision,
			Lon: float64(lon) / precision,
		})
	}

	return coords
}

// decodeValue reads one zigzag-encoded delta starting at pos and returns it
// with the position of the next value.
func decodeValue(encoded string, pos int) (int, int) {
	var result, shift int

	for pos < len(encoded) {
		b := int(encoded[pos]) - 63
		pos++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}

	if result&1 != 0 {
		return ^(result >> 1), pos
	}
	return result >> 1, pos
}

// Encode packs coordinates into the encoded polyline representation.
func Encode(coords []Coordinate) string {
	if len(coords) == 0 {
		return ""
	}

	buf := make([]byte, 0, len(coords)*4)
	var prevLat, prevLon int

	for _, c := range coords {
		lat := int(math.Round(c.Lat * precision))
		lon := int(math.Round(c.Lon * precision))

		buf = encodeValue(buf, lat-prevLat)
		buf = encodeValue(buf, lon-prevLon)

		prevLat, prevLon = lat, lon
	}

	return string(buf)
}

// encodeValue appends one delta in zigzag 5-bit chunks.
func encodeValue(buf []byte, value int) []byte {
	if value < 0 {
		value = ^(value << 1)
	} else {
		value <<= 1
	}

	for value >= 0x20 {
		buf = append(buf, byte((value&0x1f)|0x20)+63)
		value >>= 5
	}
	return append(buf, byte(value)+63)
}

// Length sums the haversine distances along the polyline, in meters.
func Length(coords []Coordinate) float64 {
	if len(coords) < 2 {
		return 0
	}

	var total float64
	for i := 1; i < len(coords); i++ {
		total += haversineDistance(coords[i-1], coords[i])
	}
	return total
}

// Sample returns points spaced roughly intervalMeters apart along the
// polyline, useful for thinning dense route geometry before rendering it on
// a map. The first and last input points are always included. A non-positive
// interval returns the input unchanged.
func Sample(coords []Coordinate, intervalMeters float64) []Coordinate {
	if len(coords) == 0 {
		return nil
	}
	if intervalMeters <= 0 {
		return coords
	}

	sampled := []Coordinate{coords[0]}
	accumulated := 0.0

	for i := 1; i < len(coords); i++ {
		segmentDist := haversineDistance(coords[i-1], coords[i])

		for accumulated+segmentDist >= intervalMeters {
			remaining := intervalMeters - accumulated
			fraction := remaining / segmentDist

			sampled = append(sampled, Coordinate{
				Lat: coords[i-1].Lat + fraction*(coords[i].Lat-coords[i-1].Lat),
				Lon: coords[i-1].Lon + fraction*(coords[i].Lon-coords[i-1].Lon),
			})

			segmentDist -= remaining
			accumulated = 0
		}

		accumulated += segmentDist
	}

	if last := coords[len(coords)-1]; sampled[len(sampled)-1] != last {
		sampled = append(sampled, last)
	}

	return sampled
}

const earthRadiusMeters = 6371000

func haversineDistance(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	sinDLat := math.Sin(dLat / 2)
	sinDLon := math.Sin(dLon / 2)

	h := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLon*sinDLon
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}
