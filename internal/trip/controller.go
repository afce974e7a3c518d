// Package trip owns the per-power-cycle session state machine: it
// schedules sampling, invokes the classifier and guarantees the alert
// is dispatched at most once.
package trip

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ridersafe/fall-sentinel/pkg/alert"
	"github.com/ridersafe/fall-sentinel/pkg/clock"
	"github.com/ridersafe/fall-sentinel/pkg/fall"
	"github.com/ridersafe/fall-sentinel/pkg/geo"
	"github.com/ridersafe/fall-sentinel/pkg/imu"
)

// State is the controller's position in the trip lifecycle. No
// transition ever leaves StateAlerted.
type State int

const (
	StateInit State = iota
	StateMonitoring
	StateFallDetected
	StateAlerted
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateMonitoring:
		return "MONITORING"
	case StateFallDetected:
		return "FALL_DETECTED"
	case StateAlerted:
		return "ALERTED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Session is the single trip of one power cycle. Mutated only by the
// controller; Alerted moves from false to true at most once and never
// reverts.
type Session struct {
	ID        uuid.UUID
	StartedAt time.Time
	Alerted   bool
}

// Status is one periodic monitoring sample emitted for observability.
type Status struct {
	TripID         string    `json:"trip_id"`
	State          string    `json:"state"`
	AccelMagnitude float64   `json:"accel_magnitude"`
	GyroMagnitude  float64   `json:"gyro_magnitude"`
	SoundLevel     int       `json:"sound_level"`
	SampledAt      time.Time `json:"sampled_at"`
}

// Dispatcher sends the one-shot fall alert.
type Dispatcher interface {
	Dispatch(ctx context.Context, event alert.Event, tripStartedAt time.Time) alert.Result
}

// Sink mirrors controller activity to an external telemetry surface.
// Optional; publish failures are absorbed.
type Sink interface {
	PublishStatus(Status) error
	PublishFall(tripID string, event alert.Event) error
}

// Config bounds the sampling cadence and the per-call timeouts of the
// blocking leaves.
type Config struct {
	Period          time.Duration
	SensorTimeout   time.Duration
	LocationTimeout time.Duration
	Thresholds      fall.Thresholds
}

// Controller runs the single-threaded polling loop. One reading is in
// flight at a time and readings are processed strictly in acquisition
// order.
type Controller struct {
	cfg        Config
	sensors    imu.Source
	locations  geo.Source
	clock      clock.Source
	dispatcher Dispatcher
	sink       Sink
	logger     *slog.Logger

	session Session
	state   State
}

func New(cfg Config, sensors imu.Source, locations geo.Source, clk clock.Source, dispatcher Dispatcher, sink Sink, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Period <= 0 {
		cfg.Period = 500 * time.Millisecond
	}
	if cfg.SensorTimeout <= 0 {
		cfg.SensorTimeout = time.Second
	}
	if cfg.LocationTimeout <= 0 {
		cfg.LocationTimeout = 10 * time.Second
	}
	return &Controller{
		cfg:        cfg,
		sensors:    sensors,
		locations:  locations,
		clock:      clk,
		dispatcher: dispatcher,
		sink:       sink,
		logger:     logger,
		session:    Session{ID: uuid.New()},
		state:      StateInit,
	}
}

// State returns the controller's current state.
func (c *Controller) State() State {
	return c.state
}

// Session returns a snapshot of the trip session.
func (c *Controller) Session() Session {
	return c.session
}

// Run drives the state machine until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	c.Tick(ctx)
	ticker := time.NewTicker(c.cfg.Period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.logger.LogAttrs(ctx, slog.LevelInfo, "Trip ended",
				slog.String("trip_id", c.session.ID.String()),
				slog.String("state", c.state.String()))
			return nil
		case <-ticker.C:
			c.Tick(ctx)
		}
	}
}

// Tick performs one iteration of the loop: at most one sensor read, one
// classification and, once per trip, one alert dispatch.
func (c *Controller) Tick(ctx context.Context) {
	switch c.state {
	case StateInit:
		c.start(ctx)
	case StateMonitoring, StateAlerted:
		c.sample(ctx)
	}
}

func (c *Controller) start(ctx context.Context) {
	now, err := c.clock.Now(ctx)
	if err != nil {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "Wall clock unavailable at trip start, using system time",
			slog.Any("error", err))
		now = time.Now()
	}
	c.session.StartedAt = now
	c.state = StateMonitoring
	c.logger.LogAttrs(ctx, slog.LevelInfo, "Trip started",
		slog.String("trip_id", c.session.ID.String()),
		slog.Time("started_at", now))
}

func (c *Controller) sample(ctx context.Context) {
	readCtx, cancel := context.WithTimeout(ctx, c.cfg.SensorTimeout)
	reading, err := c.sensors.Read(readCtx)
	cancel()
	if err != nil {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "Sensor read failed, skipping frame",
			slog.Any("error", err))
		return
	}
	verdict, err := fall.Classify(reading, c.cfg.Thresholds)
	if err != nil {
		// a malformed frame is not evidence of a fall
		c.logger.LogAttrs(ctx, slog.LevelWarn, "Invalid reading, skipping frame",
			slog.Any("error", err))
		return
	}
	if verdict.Fall && c.state == StateMonitoring {
		c.onFall(ctx, reading, verdict.Magnitudes)
		return
	}
	c.status(ctx, reading, verdict.Magnitudes)
}

// onFall is the one-shot FALL_DETECTED path. The session always ends in
// StateAlerted: the local alarm must sound even when every other
// subsystem is degraded.
func (c *Controller) onFall(ctx context.Context, reading imu.Reading, m fall.Magnitudes) {
	c.state = StateFallDetected
	c.logger.LogAttrs(ctx, slog.LevelWarn, "Fall detected",
		slog.String("trip_id", c.session.ID.String()),
		slog.Float64("accel_magnitude", m.Accel),
		slog.Float64("gyro_magnitude", m.Gyro),
		slog.Int("sound_level", reading.SoundLevel))
	loc := c.locate(ctx)
	detectedAt, err := c.clock.Now(ctx)
	if err != nil {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "Wall clock unavailable at fall detection, using system time",
			slog.Any("error", err))
		detectedAt = time.Now()
	}
	event := alert.Event{
		DetectedAt: detectedAt,
		Location:   loc,
		Reading:    reading,
		Magnitudes: m,
	}
	result := c.dispatcher.Dispatch(ctx, event, c.session.StartedAt)
	c.session.Alerted = true
	c.state = StateAlerted
	if result.Err != nil {
		c.logger.LogAttrs(ctx, slog.LevelError, "Alert delivery failed, local alarm already sounded",
			slog.Int("attempts", result.Attempts),
			slog.Any("error", result.Err))
	} else {
		c.logger.LogAttrs(ctx, slog.LevelInfo, "Alert delivered",
			slog.Int("attempts", result.Attempts))
	}
	if c.sink != nil {
		if err := c.sink.PublishFall(c.session.ID.String(), event); err != nil {
			c.logger.LogAttrs(ctx, slog.LevelWarn, "Fall telemetry publish failed",
				slog.Any("error", err))
		}
	}
}

func (c *Controller) locate(ctx context.Context) geo.Location {
	locCtx, cancel := context.WithTimeout(ctx, c.cfg.LocationTimeout)
	defer cancel()
	loc, err := c.locations.Read(locCtx)
	if err != nil {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "Location unavailable",
			slog.Any("error", err))
		return geo.Unknown()
	}
	return loc
}

func (c *Controller) status(ctx context.Context, reading imu.Reading, m fall.Magnitudes) {
	c.logger.LogAttrs(ctx, slog.LevelInfo, "Status",
		slog.String("state", c.state.String()),
		slog.Float64("accel_magnitude", m.Accel),
		slog.Float64("gyro_magnitude", m.Gyro),
		slog.Int("sound_level", reading.SoundLevel))
	if c.sink == nil {
		return
	}
	s := Status{
		TripID:         c.session.ID.String(),
		State:          c.state.String(),
		AccelMagnitude: m.Accel,
		GyroMagnitude:  m.Gyro,
		SoundLevel:     reading.SoundLevel,
		SampledAt:      reading.SampledAt,
	}
	if err := c.sink.PublishStatus(s); err != nil {
		c.logger.LogAttrs(ctx, slog.LevelDebug, "Status publish failed",
			slog.Any("error", err))
	}
}
