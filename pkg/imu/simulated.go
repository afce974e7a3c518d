package imu

import (
	"context"
	"math/rand"
	"time"
)

const gravity = 9.81

// SimulatedSource generates synthetic readings for bench runs without
// the physical sensor bus attached: gravity on the Z axis plus noise,
// quiet ambient sound.
type SimulatedSource struct {
}

func NewSimulatedSource() *SimulatedSource {
	return &SimulatedSource{}
}

func (s *SimulatedSource) Read(ctx context.Context) (Reading, error) {
	return Reading{
		Acceleration: Vec3{jitter(0.5), jitter(0.5), gravity + jitter(0.5)},
		AngularRate:  Vec3{jitter(3), jitter(3), jitter(3)},
		SoundLevel:   rand.Intn(600),
		SampledAt:    time.Now(),
	}, nil
}

func jitter(scale float64) float64 {
	return (rand.Float64()*2 - 1) * scale
}
