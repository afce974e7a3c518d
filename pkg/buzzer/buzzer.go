// Package buzzer drives the local audible alarm line.
package buzzer

import (
	"log/slog"
	"os"
	"time"
)

// Pin abstracts the physical drive line.
type Pin interface {
	Set(on bool) error
}

// FilePin drives a GPIO line through its sysfs value file.
type FilePin struct {
	Path string
}

func (p FilePin) Set(on bool) error {
	v := []byte("0")
	if on {
		v = []byte("1")
	}
	return os.WriteFile(p.Path, v, 0o644)
}

// Buzzer pulses the alarm line. Activation runs asynchronously so the
// monitoring loop keeps sampling while the alarm sounds. Pin write
// errors are logged and absorbed: the annunciator leaf is assumed to
// always succeed.
type Buzzer struct {
	Pin    Pin
	Pulses int
	Period time.Duration
	Logger *slog.Logger
}

func (b *Buzzer) Activate() {
	go b.pulse()
}

func (b *Buzzer) pulse() {
	pulses := b.Pulses
	if pulses <= 0 {
		pulses = 10
	}
	period := b.Period
	if period <= 0 {
		period = 4 * time.Second
	}
	for i := 0; i < pulses; i++ {
		b.set(true)
		time.Sleep(period)
		b.set(false)
		time.Sleep(period)
	}
}

func (b *Buzzer) set(on bool) {
	if err := b.Pin.Set(on); err != nil && b.Logger != nil {
		b.Logger.LogAttrs(nil, slog.LevelWarn, "Buzzer pin write failed", slog.Any("error", err))
	}
}
