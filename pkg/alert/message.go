package alert

import (
	"fmt"
	"strings"
	"time"
)

const timeLayout = "2006-01-02 15:04:05"

// FormatMessage renders the human-readable alert text: trip start time,
// fall time, location (or "Unknown", plus a map link for known fixes)
// and the sensor readings that triggered the verdict. Magnitudes keep
// two decimals, coordinates five.
func FormatMessage(e Event, tripStartedAt time.Time) string {
	b := new(strings.Builder)
	b.WriteString("Helmet fall detected!\n")
	fmt.Fprintf(b, "Trip start time: %s\n", tripStartedAt.Format(timeLayout))
	fmt.Fprintf(b, "Fall detected time: %s\n", e.DetectedAt.Format(timeLayout))
	fmt.Fprintf(b, "Location: %s\n", e.Location)
	if link := e.Location.MapLink(); link != "" {
		fmt.Fprintf(b, "Map: %s\n", link)
	}
	fmt.Fprintf(b, "Acceleration: %.2f m/s^2\n", e.Magnitudes.Accel)
	fmt.Fprintf(b, "Gyroscope: %.2f deg/s\n", e.Magnitudes.Gyro)
	fmt.Fprintf(b, "Sound: %d\n", e.Reading.SoundLevel)
	return b.String()
}
