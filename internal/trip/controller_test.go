package trip

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridersafe/fall-sentinel/pkg/alert"
	"github.com/ridersafe/fall-sentinel/pkg/fall"
	"github.com/ridersafe/fall-sentinel/pkg/geo"
	"github.com/ridersafe/fall-sentinel/pkg/imu"
)

var errSensor = errors.New("bus timeout")

type fakeSensor struct {
	readings []imu.Reading
	errs     []error
	calls    int
}

// Read pops queued frames in order and repeats the last one afterwards.
func (f *fakeSensor) Read(ctx context.Context) (imu.Reading, error) {
	i := f.calls
	if i >= len(f.readings) {
		i = len(f.readings) - 1
	}
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return imu.Reading{}, f.errs[i]
	}
	return f.readings[i], nil
}

type fakeLocations struct {
	loc   geo.Location
	block bool
}

func (f *fakeLocations) Read(ctx context.Context) (geo.Location, error) {
	if f.block {
		<-ctx.Done()
		return geo.Unknown(), nil
	}
	return f.loc, nil
}

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now(ctx context.Context) (time.Time, error) {
	return f.now, nil
}

type fakeDispatcher struct {
	calls     int
	lastEvent alert.Event
	lastStart time.Time
	result    alert.Result
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, event alert.Event, tripStartedAt time.Time) alert.Result {
	f.calls++
	f.lastEvent = event
	f.lastStart = tripStartedAt
	return f.result
}

func calmReading() imu.Reading {
	return imu.Reading{
		Acceleration: imu.Vec3{0, 0, 9.8},
		AngularRate:  imu.Vec3{1, 0, 0},
		SoundLevel:   300,
		SampledAt:    time.Now(),
	}
}

func fallingReading() imu.Reading {
	return imu.Reading{
		Acceleration: imu.Vec3{20, 10, 25},
		AngularRate:  imu.Vec3{200, 150, 100},
		SoundLevel:   1500,
		SampledAt:    time.Now(),
	}
}

func testThresholds() fall.Thresholds {
	return fall.Thresholds{Accel: 24.5, Gyro: 240, Sound: 1000}
}

func newTestController(sensors imu.Source, locations geo.Source, dispatcher Dispatcher) *Controller {
	cfg := Config{
		Period:          time.Millisecond,
		SensorTimeout:   50 * time.Millisecond,
		LocationTimeout: 20 * time.Millisecond,
		Thresholds:      testThresholds(),
	}
	clk := &fakeClock{now: time.Date(2025, time.May, 15, 9, 0, 0, 0, time.UTC)}
	return New(cfg, sensors, locations, clk, dispatcher, nil, nil)
}

func TestControllerStart(t *testing.T) {
	t.Parallel()

	c := newTestController(&fakeSensor{readings: []imu.Reading{calmReading()}}, geo.NoFixSource{}, &fakeDispatcher{})
	require.Equal(t, StateInit, c.State())
	c.Tick(context.Background())
	assert.Equal(t, StateMonitoring, c.State())
	assert.Equal(t, time.Date(2025, time.May, 15, 9, 0, 0, 0, time.UTC), c.Session().StartedAt)
	assert.False(t, c.Session().Alerted)
}

func TestControllerDispatchesOnce(t *testing.T) {
	t.Parallel()

	d := &fakeDispatcher{result: alert.Result{Delivered: true, Attempts: 1}}
	sensors := &fakeSensor{readings: []imu.Reading{fallingReading()}}
	c := newTestController(sensors, &fakeLocations{loc: geo.NewLocation(11.0245, 77.00025)}, d)
	ctx := context.Background()
	// conditions keep exceeding thresholds on every subsequent frame
	for i := 0; i < 6; i++ {
		c.Tick(ctx)
	}
	assert.Equal(t, 1, d.calls)
	assert.Equal(t, StateAlerted, c.State())
	assert.True(t, c.Session().Alerted)
	assert.Equal(t, c.Session().StartedAt, d.lastStart)
	assert.True(t, d.lastEvent.Location.Known())
}

func TestControllerSkipsFrameOnReadError(t *testing.T) {
	t.Parallel()

	d := &fakeDispatcher{}
	sensors := &fakeSensor{
		readings: []imu.Reading{{}, calmReading()},
		errs:     []error{errSensor, nil},
	}
	c := newTestController(sensors, geo.NoFixSource{}, d)
	ctx := context.Background()
	c.Tick(ctx) // init
	c.Tick(ctx) // failed read: skip frame
	assert.Equal(t, StateMonitoring, c.State())
	c.Tick(ctx)
	assert.Equal(t, StateMonitoring, c.State())
	assert.Zero(t, d.calls)
}

func TestControllerInvalidReadingIsNotAFall(t *testing.T) {
	t.Parallel()

	d := &fakeDispatcher{}
	malformed := imu.Reading{
		Acceleration: imu.Vec3{math.NaN(), 0, 0},
		AngularRate:  imu.Vec3{500, 500, 500},
		SoundLevel:   2000,
	}
	sensors := &fakeSensor{readings: []imu.Reading{malformed}}
	c := newTestController(sensors, geo.NoFixSource{}, d)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		c.Tick(ctx)
	}
	assert.Zero(t, d.calls)
	assert.Equal(t, StateMonitoring, c.State())
}

func TestControllerUnknownLocationOnTimeout(t *testing.T) {
	t.Parallel()

	d := &fakeDispatcher{}
	sensors := &fakeSensor{readings: []imu.Reading{fallingReading()}}
	c := newTestController(sensors, &fakeLocations{block: true}, d)
	ctx := context.Background()
	c.Tick(ctx)
	c.Tick(ctx)
	require.Equal(t, 1, d.calls)
	assert.False(t, d.lastEvent.Location.Known())
	assert.Equal(t, "Unknown", d.lastEvent.Location.String())
}

func TestControllerAlertedIsTerminal(t *testing.T) {
	t.Parallel()

	d := &fakeDispatcher{result: alert.Result{Err: errors.New("delivery failed")}}
	sensors := &fakeSensor{readings: []imu.Reading{fallingReading()}}
	c := newTestController(sensors, geo.NoFixSource{}, d)
	ctx := context.Background()
	c.Tick(ctx)
	c.Tick(ctx)
	require.Equal(t, StateAlerted, c.State())
	// failed delivery must not reopen the state machine
	for i := 0; i < 5; i++ {
		c.Tick(ctx)
	}
	assert.Equal(t, 1, d.calls)
	assert.Equal(t, StateAlerted, c.State())
	assert.True(t, c.Session().Alerted)
}

func TestControllerAnnunciatorFiresWhenChannelFails(t *testing.T) {
	t.Parallel()

	ch := &failingChannel{}
	ann := &countingAnnunciator{}
	dispatcher := &alert.Dispatcher{
		Channel:     ch,
		Annunciator: ann,
		MaxAttempts: 3,
		Backoff:     time.Millisecond,
	}
	sensors := &fakeSensor{readings: []imu.Reading{fallingReading()}}
	c := newTestController(sensors, geo.NoFixSource{}, dispatcher)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		c.Tick(ctx)
	}
	assert.Equal(t, 3, ch.calls)
	assert.Equal(t, 1, ann.activations)
	assert.Equal(t, StateAlerted, c.State())
}

type failingChannel struct {
	calls int
}

func (c *failingChannel) Send(ctx context.Context, message string) error {
	c.calls++
	return errors.New("link down")
}

type countingAnnunciator struct {
	activations int
}

func (a *countingAnnunciator) Activate() {
	a.activations++
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "INIT", StateInit.String())
	assert.Equal(t, "MONITORING", StateMonitoring.String())
	assert.Equal(t, "FALL_DETECTED", StateFallDetected.String())
	assert.Equal(t, "ALERTED", StateAlerted.String())
}
