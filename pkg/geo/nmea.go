package geo

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// NMEASource extracts position fixes from $GPGGA sentences on the GPS
// receiver's output stream. Only the freshest unconsumed fix is kept.
type NMEASource struct {
	fixes chan Location
}

func NewNMEASource(r io.Reader) *NMEASource {
	s := &NMEASource{
		fixes: make(chan Location, 1),
	}
	go s.scan(r)
	return s
}

// Read waits for the next fix. When ctx expires before a fix arrives
// the result is Unknown: a missing fix is an expected outcome, never an
// error.
func (s *NMEASource) Read(ctx context.Context) (Location, error) {
	select {
	case <-ctx.Done():
		return Unknown(), nil
	case loc, ok := <-s.fixes:
		if !ok {
			return Unknown(), nil
		}
		return loc, nil
	}
}

func (s *NMEASource) scan(r io.Reader) {
	defer close(s.fixes)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		loc, err := ParseGGA(sc.Text())
		if err != nil {
			continue
		}
		// single producer: after the drain the buffered send cannot block
		select {
		case <-s.fixes:
		default:
		}
		s.fixes <- loc
	}
}

// ParseGGA extracts a fix from one $GPGGA sentence. Sentences of other
// types, sentences without a fix and undecodable coordinates yield an
// error.
func ParseGGA(line string) (Location, error) {
	line = strings.TrimSpace(line)
	if i := strings.IndexByte(line, '*'); i >= 0 {
		line = line[:i]
	}
	parts := strings.Split(line, ",")
	if len(parts) < 7 || !strings.HasSuffix(parts[0], "GGA") {
		return Unknown(), fmt.Errorf("geo: not a GGA sentence")
	}
	if parts[6] == "" || parts[6] == "0" {
		return Unknown(), fmt.Errorf("geo: no fix")
	}
	lat, err := parseCoordinate(parts[2], 2)
	if err != nil {
		return Unknown(), fmt.Errorf("geo: latitude: %w", err)
	}
	lon, err := parseCoordinate(parts[4], 3)
	if err != nil {
		return Unknown(), fmt.Errorf("geo: longitude: %w", err)
	}
	if parts[3] == "S" {
		lat = -lat
	}
	if parts[5] == "W" {
		lon = -lon
	}
	return NewLocation(lat, lon), nil
}

// parseCoordinate converts the NMEA [d]ddmm.mmmm form to decimal
// degrees. degDigits is 2 for latitude and 3 for longitude.
func parseCoordinate(raw string, degDigits int) (float64, error) {
	if len(raw) <= degDigits {
		return 0, fmt.Errorf("coordinate too short: %q", raw)
	}
	deg, err := strconv.ParseFloat(raw[:degDigits], 64)
	if err != nil {
		return 0, fmt.Errorf("degrees: %w", err)
	}
	minutes, err := strconv.ParseFloat(raw[degDigits:], 64)
	if err != nil {
		return 0, fmt.Errorf("minutes: %w", err)
	}
	return deg + minutes/60.0, nil
}
