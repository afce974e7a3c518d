package geo

import (
	"context"
	"encoding/json"
	"fmt"
)

// Location is either a concrete coordinate pair or the explicit Unknown
// sentinel. The zero value is Unknown; a zero coordinate is never used
// to mean "no fix".
type Location struct {
	known bool
	lat   float64
	lon   float64
}

// NewLocation returns a known fix in decimal degrees.
func NewLocation(lat, lon float64) Location {
	return Location{known: true, lat: lat, lon: lon}
}

// Unknown returns the no-fix sentinel.
func Unknown() Location {
	return Location{}
}

// Known reports whether the location carries a concrete fix.
func (l Location) Known() bool {
	return l.known
}

// Coordinates returns the fix in decimal degrees; only meaningful when
// Known reports true.
func (l Location) Coordinates() (lat, lon float64) {
	return l.lat, l.lon
}

func (l Location) String() string {
	if !l.known {
		return "Unknown"
	}
	return fmt.Sprintf("%.5f,%.5f", l.lat, l.lon)
}

// MapLink returns a map URL for a known fix, or the empty string for
// Unknown.
func (l Location) MapLink() string {
	if !l.known {
		return ""
	}
	return fmt.Sprintf("https://www.google.com/maps?q=%.5f,%.5f", l.lat, l.lon)
}

func (l Location) MarshalJSON() ([]byte, error) {
	if !l.known {
		return []byte("null"), nil
	}
	return json.Marshal(struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}{l.lat, l.lon})
}

// Source yields the rider's position on demand. A missing fix is a
// valid outcome, not an error: sources return Unknown when no position
// is available within the caller's deadline.
type Source interface {
	Read(ctx context.Context) (Location, error)
}

// NoFixSource is the Source for devices without a GPS module; every
// read yields Unknown.
type NoFixSource struct{}

func (NoFixSource) Read(ctx context.Context) (Location, error) {
	return Unknown(), nil
}
