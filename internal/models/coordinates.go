package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrInvalidCoordinates is returned when a coordinate payload cannot be
// interpreted as a latitude/longitude pair.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// Coordinates is a WGS84 position.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// coordinateObject accepts the object spellings clients send.
type coordinateObject struct {
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
	Lon       *float64 `json:"lon"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// ParseCoordinates decodes raw JSON into Coordinates. It accepts
// {"lat":..,"lng":..}, {"latitude":..,"longitude":..}, [lat, lng], and any of
// those wrapped once in a JSON string.
func ParseCoordinates(raw []byte) (Coordinates, error) {
	return parseCoordinates(raw, true)
}

func parseCoordinates(raw []byte, allowString bool) (Coordinates, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Coordinates{}, fmt.Errorf("%w: empty", ErrInvalidCoordinates)
	}

	var c Coordinates
	switch raw[0] {
	case '"':
		if !allowString {
			return Coordinates{}, fmt.Errorf("%w: nested string", ErrInvalidCoordinates)
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Coordinates{}, fmt.Errorf("%w: %v", ErrInvalidCoordinates, err)
		}
		return parseCoordinates([]byte(s), false)
	case '[':
		var pair []float64
		if err := json.Unmarshal(raw, &pair); err != nil {
			return Coordinates{}, fmt.Errorf("%w: %v", ErrInvalidCoordinates, err)
		}
		if len(pair) != 2 {
			return Coordinates{}, fmt.Errorf("%w: expected 2 values, got %d", ErrInvalidCoordinates, len(pair))
		}
		c = Coordinates{Lat: pair[0], Lng: pair[1]}
	case '{':
		var obj coordinateObject
		if err := json.Unmarshal(raw, &obj); err != nil {
			return Coordinates{}, fmt.Errorf("%w: %v", ErrInvalidCoordinates, err)
		}
		lat := firstSet(obj.Lat, obj.Latitude)
		lng := firstSet(obj.Lng, obj.Lon, obj.Longitude)
		if lat == nil || lng == nil {
			return Coordinates{}, fmt.Errorf("%w: latitude and longitude are required", ErrInvalidCoordinates)
		}
		c = Coordinates{Lat: *lat, Lng: *lng}
	default:
		return Coordinates{}, fmt.Errorf("%w: unsupported format", ErrInvalidCoordinates)
	}

	if err := c.Validate(); err != nil {
		return Coordinates{}, err
	}
	return c, nil
}

// Validate checks that the position lies on the globe.
func (c Coordinates) Validate() error {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return fmt.Errorf("%w: not finite", ErrInvalidCoordinates)
	}
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidCoordinates, c.Lat)
	}
	if c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidCoordinates, c.Lng)
	}
	return nil
}

// UnmarshalJSON lets stored and submitted payloads use any accepted spelling.
func (c *Coordinates) UnmarshalJSON(data []byte) error {
	parsed, err := ParseCoordinates(data)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func firstSet(vals ...*float64) *float64 {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}
