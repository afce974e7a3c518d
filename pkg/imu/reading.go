package imu

import (
	"math"
	"time"
)

// Vec3 is one 3-axis sensor sample.
type Vec3 [3]float64

// Magnitude returns the Euclidean norm of the vector.
func (v Vec3) Magnitude() float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// Finite reports whether every component is a finite number.
func (v Vec3) Finite() bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Reading is one timestamped sample from the inertial unit and the
// microphone. Acceleration is in m/s², angular rate in deg/s and the
// sound level in raw ADC counts.
type Reading struct {
	Acceleration Vec3      `json:"acceleration"`
	AngularRate  Vec3      `json:"angular_rate"`
	SoundLevel   int       `json:"sound_level"`
	SampledAt    time.Time `json:"sampled_at"`
}
