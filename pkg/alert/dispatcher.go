// Package alert composes and delivers the one-shot fall alert.
package alert

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ridersafe/fall-sentinel/pkg/fall"
	"github.com/ridersafe/fall-sentinel/pkg/geo"
	"github.com/ridersafe/fall-sentinel/pkg/imu"
)

// Channel delivers the outbound alert message to the remote endpoint.
// Delivery is best effort and may fail transiently.
type Channel interface {
	Send(ctx context.Context, message string) error
}

// Annunciator drives the local audible alarm. Fire and forget: it is
// assumed to always succeed and must not block the caller.
type Annunciator interface {
	Activate()
}

// Event captures the trip state at the moment a fall was detected.
// Built exactly once per trip and never mutated afterwards.
type Event struct {
	DetectedAt time.Time
	Location   geo.Location
	Reading    imu.Reading
	Magnitudes fall.Magnitudes
}

// Result reports the outcome of one dispatch.
type Result struct {
	Delivered bool
	Attempts  int
	Err       error
}

// Dispatcher sounds the local alarm and delivers the alert message with
// bounded retries. The state machine invokes it at most once per trip.
type Dispatcher struct {
	Channel     Channel
	Annunciator Annunciator
	MaxAttempts int
	Backoff     time.Duration
	SendTimeout time.Duration
	Logger      *slog.Logger
}

// Dispatch activates the annunciator, then sends the formatted message
// through the channel. The alarm fires before and independent of remote
// delivery: it protects the rider even when connectivity is down. A
// final delivery failure is reported in the result, never fatal.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event, tripStartedAt time.Time) Result {
	logger := d.logger()
	d.Annunciator.Activate()
	msg := FormatMessage(event, tripStartedAt)
	attempts := d.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := d.send(ctx, msg)
		if err == nil {
			return Result{Delivered: true, Attempts: attempt}
		}
		lastErr = err
		logger.LogAttrs(ctx, slog.LevelWarn, "Alert delivery attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.Any("error", err))
		if attempt < attempts && d.Backoff > 0 {
			select {
			case <-ctx.Done():
				return Result{Attempts: attempt, Err: fmt.Errorf("alert: %w (last attempt: %w)", ctx.Err(), lastErr)}
			case <-time.After(d.Backoff):
			}
		}
	}
	logger.LogAttrs(ctx, slog.LevelError, "Alert delivery failed on final attempt",
		slog.Int("attempts", attempts),
		slog.Any("error", lastErr))
	return Result{Attempts: attempts, Err: lastErr}
}

func (d *Dispatcher) send(ctx context.Context, msg string) error {
	if d.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.SendTimeout)
		defer cancel()
	}
	return d.Channel.Send(ctx, msg)
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
