// Package fall holds the fall decision logic: pure threshold
// classification over one sensor reading, no smoothing and no state.
// Debouncing, if any, belongs to the caller.
package fall

import (
	"errors"
	"fmt"

	"github.com/ridersafe/fall-sentinel/pkg/imu"
)

// ErrInvalidReading indicates a malformed sensor frame that cannot be
// classified.
var ErrInvalidReading = errors.New("fall: invalid sensor reading")

// Thresholds is the immutable decision configuration. Accel is in m/s²,
// Gyro in deg/s and Sound in raw ADC counts, matching the units the
// readings carry.
type Thresholds struct {
	Accel float64
	Gyro  float64
	Sound int
}

// Validate reports whether the thresholds are usable for monitoring.
func (t Thresholds) Validate() error {
	if t.Accel <= 0 {
		return fmt.Errorf("acceleration threshold must be positive, got %v", t.Accel)
	}
	if t.Gyro <= 0 {
		return fmt.Errorf("gyro threshold must be positive, got %v", t.Gyro)
	}
	if t.Sound < 0 {
		return fmt.Errorf("sound threshold must not be negative, got %v", t.Sound)
	}
	return nil
}

// Magnitudes are the Euclidean norms derived from one reading.
type Magnitudes struct {
	Accel float64
	Gyro  float64
}

// Verdict is the classification outcome for one reading.
type Verdict struct {
	Fall       bool
	Magnitudes Magnitudes
}

// Derive computes the acceleration and angular rate magnitudes of a
// reading. A reading with non-finite components yields ErrInvalidReading
// instead of a guessed magnitude.
func Derive(r imu.Reading) (Magnitudes, error) {
	if !r.Acceleration.Finite() || !r.AngularRate.Finite() {
		return Magnitudes{}, ErrInvalidReading
	}
	return Magnitudes{
		Accel: r.Acceleration.Magnitude(),
		Gyro:  r.AngularRate.Magnitude(),
	}, nil
}

// Classify decides whether a single reading is a fall. The verdict is
// positive only when all three conditions exceed their thresholds at
// once; the conjunction suppresses false positives from any single noisy
// sensor. Deterministic: identical input always yields the same verdict.
func Classify(r imu.Reading, t Thresholds) (Verdict, error) {
	m, err := Derive(r)
	if err != nil {
		return Verdict{}, err
	}
	return Verdict{
		Fall:       m.Accel > t.Accel && m.Gyro > t.Gyro && r.SoundLevel > t.Sound,
		Magnitudes: m,
	}, nil
}
