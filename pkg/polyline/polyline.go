// Package polyline decodes and measures encoded route geometry (precision 5, as returned by
// OpenRouteService). See https://developers.google.com/maps/documentation/utilities/polylinealgorithm.
package polyline

import (
	"errors"
	"math"
)

// ErrMalformed is returned when an encoded polyline ends in the middle of a value.
var ErrMalformed = errors.New("malformed polyline")

const (
	precision         = 1e5
	earthRadiusMeters = 6371000
)

// Coordinate is a geographic point.
type Coordinate struct {
	Lat float64
	Lon float64
}

// Decode decodes an encoded polyline. An empty string decodes to nil.
func Decode(encoded string) ([]Coordinate, error) {
	if encoded == "" {
		return nil, nil
	}

	coords := make([]Coordinate, 0, len(encoded)/4)
	var lat, lon, index int

	for index < len(encoded) {
		dLat, next, err := readValue(encoded, index)
		if err != nil {
			return nil, err
		}
		dLon, next, err := readValue(encoded, next)
		if err != nil {
			return nil, err
		}
		index = next

		lat += dLat
		lon += dLon
		coords = append(coords, Coordinate{Lat: float64(lat) / precision, Lon: float64(lon) / precision})
	}

	return coords, nil
}

func readValue(encoded string, index int) (int, int, error) {
	var result, shift int

	for {
		if index >= len(encoded) {
			return 0, index, ErrMalformed
		}
		b := int(encoded[index]) - 63
		index++
		if b < 0 || b > 63 {
			return 0, index, ErrMalformed
		}
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

// Encode encodes coordinates into a polyline string.
func Encode(coords []Coordinate) string {
	if len(coords) == 0 {
		return ""
	}

	buf := make([]byte, 0, len(coords)*6)
	var prevLat, prevLon int

	for _, c := range coords {
		lat := int(math.Round(c.Lat * precision))
		lon := int(math.Round(c.Lon * precision))
		buf = writeValue(buf, lat-prevLat)
		buf = writeValue(buf, lon-prevLon)
		prevLat, prevLon = lat, lon
	}

	return string(buf)
}

func writeValue(buf []byte, value int) []byte {
	v := value << 1
	if value < 0 {
		v = ^v
	}
	for v >= 0x20 {
		buf = append(buf, byte((v&0x1f)|0x20)+63)
		v >>= 5
	}
	return append(buf, byte(v)+63)
}

// Distance is the great-circle distance between two points in meters.
func Distance(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	sinDLat := math.Sin((b.Lat - a.Lat) * math.Pi / 360)
	sinDLon := math.Sin((b.Lon - a.Lon) * math.Pi / 360)

	h := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLon*sinDLon
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

// Length is the total length of the line in meters.
func Length(coords []Coordinate) float64 {
	var total float64
	for i := 1; i < len(coords); i++ {
		total += Distance(coords[i-1], coords[i])
	}
	return total
}

// Midpoint returns the point halfway along the line, interpolated within its segment.
// It returns false for an empty line.
func Midpoint(coords []Coordinate) (Coordinate, bool) {
	switch len(coords) {
	case 0:
		return Coordinate{}, false
	case 1:
		return coords[0], true
	}

	half := Length(coords) / 2
	var walked float64
	for i := 1; i < len(coords); i++ {
		seg := Distance(coords[i-1], coords[i])
		if seg > 0 && walked+seg >= half {
			f := (half - walked) / seg
			return Coordinate{
				Lat: coords[i-1].Lat + f*(coords[i].Lat-coords[i-1].Lat),
				Lon: coords[i-1].Lon + f*(coords[i].Lon-coords[i-1].Lon),
			}, true
		}
		walked += seg
	}
	return coords[len(coords)-1], true
}
