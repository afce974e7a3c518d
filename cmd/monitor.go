package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ridersafe/fall-sentinel/internal/trip"
	"github.com/ridersafe/fall-sentinel/pkg/alert"
	"github.com/ridersafe/fall-sentinel/pkg/buzzer"
	"github.com/ridersafe/fall-sentinel/pkg/clock"
	"github.com/ridersafe/fall-sentinel/pkg/fall"
	"github.com/ridersafe/fall-sentinel/pkg/geo"
	"github.com/ridersafe/fall-sentinel/pkg/imu"
	"github.com/ridersafe/fall-sentinel/pkg/telegram"
	"github.com/ridersafe/fall-sentinel/pkg/telemetry"
)

var monitorCmd = &cobra.Command{
	Use:          "monitor",
	Short:        "Start the trip monitoring loop",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			thresholds = fall.Thresholds{
				Accel: viper.GetFloat64("thresholds.accel"),
				Gyro:  viper.GetFloat64("thresholds.gyro"),
				Sound: viper.GetInt("thresholds.sound"),
			}
			period        = viper.GetDuration("monitor.period")
			sensorTimeout = viper.GetDuration("monitor.sensor_timeout")
			sensorSource  = viper.GetString("sensor.source")
			sensorDevice  = viper.GetString("sensor.device")
			gpsDevice     = viper.GetString("gps.device")
			gpsTimeout    = viper.GetDuration("gps.timeout")
			timeSource    = viper.GetString("time.source")
			timeURL       = viper.GetString("time.url")
			botToken      = viper.GetString("telegram.token")
			chatID        = viper.GetInt64("telegram.chat_id")
			maxAttempts   = viper.GetInt("alert.max_attempts")
			backoff       = viper.GetDuration("alert.backoff")
			sendTimeout   = viper.GetDuration("alert.timeout")
			brokerURL     = viper.GetString("mqtt.broker")
			mqttClientID  = viper.GetString("mqtt.client_id")
			pinPath       = viper.GetString("buzzer.pin")
			pulses        = viper.GetInt("buzzer.pulses")
			pulsePeriod   = viper.GetDuration("buzzer.period")
		)
		if err := thresholds.Validate(); err != nil {
			return err
		}
		if botToken == "" {
			return fmt.Errorf("telegram.token is required")
		}
		if chatID == 0 {
			return fmt.Errorf("telegram.chat_id is required")
		}

		sensors, err := newSensorSource(sensorSource, sensorDevice)
		if err != nil {
			return err
		}
		locations, err := newLocationSource(gpsDevice)
		if err != nil {
			return err
		}
		clk, err := newClockSource(timeSource, timeURL)
		if err != nil {
			return err
		}

		logger.LogAttrs(
			nil,
			slog.LevelInfo,
			"Starting trip monitor",
			slog.Float64("accel_threshold", thresholds.Accel),
			slog.Float64("gyro_threshold", thresholds.Gyro),
			slog.Int("sound_threshold", thresholds.Sound),
			slog.Duration("period", period),
			slog.String("sensor_source", sensorSource),
			slog.Int64("chat_id", chatID),
		)

		channel := telegram.New(botToken, chatID, sendTimeout)
		annunciator := &buzzer.Buzzer{
			Pin:    buzzer.FilePin{Path: pinPath},
			Pulses: pulses,
			Period: pulsePeriod,
			Logger: logger,
		}
		dispatcher := &alert.Dispatcher{
			Channel:     channel,
			Annunciator: annunciator,
			MaxAttempts: maxAttempts,
			Backoff:     backoff,
			SendTimeout: sendTimeout,
			Logger:      logger,
		}

		var sink trip.Sink
		if brokerURL != "" {
			publisher, err := telemetry.NewPublisher(brokerURL, mqttClientID)
			if err != nil {
				return err
			}
			defer publisher.Close()
			sink = publisher
		}

		controller := trip.New(trip.Config{
			Period:          period,
			SensorTimeout:   sensorTimeout,
			LocationTimeout: gpsTimeout,
			Thresholds:      thresholds,
		}, sensors, locations, clk, dispatcher, sink, logger)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()
		return controller.Run(ctx)
	},
}

func newSensorSource(kind, device string) (imu.Source, error) {
	switch kind {
	case "simulated":
		return imu.NewSimulatedSource(), nil
	case "stream":
		if device == "" {
			return nil, fmt.Errorf("sensor.device is required for the stream source")
		}
		f, err := os.Open(device)
		if err != nil {
			return nil, fmt.Errorf("open sensor device: %w", err)
		}
		return imu.NewStreamSource(f), nil
	default:
		return nil, fmt.Errorf("unknown sensor source: %s", kind)
	}
}

func newLocationSource(device string) (geo.Source, error) {
	if device == "" {
		return geo.NoFixSource{}, nil
	}
	f, err := os.Open(device)
	if err != nil {
		return nil, fmt.Errorf("open GPS device: %w", err)
	}
	return geo.NewNMEASource(f), nil
}

func newClockSource(kind, url string) (clock.Source, error) {
	switch kind {
	case "system":
		return clock.System{}, nil
	case "http":
		return clock.NewHTTPDate(url, 5*time.Second), nil
	default:
		return nil, fmt.Errorf("unknown time source: %s", kind)
	}
}

func init() {
	monitorCmd.Flags().Float64("thresholds.accel", 24.5, "acceleration magnitude threshold (m/s^2)")
	monitorCmd.Flags().Float64("thresholds.gyro", 240, "angular rate magnitude threshold (deg/s)")
	monitorCmd.Flags().Int("thresholds.sound", 1000, "sound level threshold (raw ADC counts)")
	monitorCmd.Flags().Duration("monitor.period", 500*time.Millisecond, "sampling period")
	monitorCmd.Flags().Duration("monitor.sensor_timeout", time.Second, "per-read sensor timeout")
	monitorCmd.Flags().String("sensor.source", "stream", "sensor source (stream or simulated)")
	monitorCmd.Flags().String("sensor.device", "", "sensor stream device or pipe")
	monitorCmd.Flags().String("gps.device", "", "GPS NMEA device (empty disables GPS)")
	monitorCmd.Flags().Duration("gps.timeout", 10*time.Second, "GPS fix wait at fall detection")
	monitorCmd.Flags().String("time.source", "system", "wall clock source (system or http)")
	monitorCmd.Flags().String("time.url", "https://www.google.com", "URL for the http time source")
	monitorCmd.Flags().String("telegram.token", "", "Telegram bot token")
	monitorCmd.Flags().Int64("telegram.chat_id", 0, "Telegram destination chat")
	monitorCmd.Flags().Int("alert.max_attempts", 3, "alert delivery attempts")
	monitorCmd.Flags().Duration("alert.backoff", 2*time.Second, "delay between delivery attempts")
	monitorCmd.Flags().Duration("alert.timeout", 10*time.Second, "per-attempt delivery timeout")
	monitorCmd.Flags().String("mqtt.broker", "", "MQTT broker URL for status telemetry (optional)")
	monitorCmd.Flags().String("mqtt.client_id", "fall-sentinel", "MQTT client ID")
	monitorCmd.Flags().String("buzzer.pin", "/sys/class/gpio/gpio15/value", "buzzer GPIO value file")
	monitorCmd.Flags().Int("buzzer.pulses", 10, "buzzer pulse count")
	monitorCmd.Flags().Duration("buzzer.period", 4*time.Second, "buzzer pulse period")

	cobra.CheckErr(viper.BindPFlags(monitorCmd.Flags()))

	rootCmd.AddCommand(monitorCmd)
}
