// Package telemetry mirrors controller activity to an MQTT broker for
// external observability.
package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ridersafe/fall-sentinel/internal/trip"
	"github.com/ridersafe/fall-sentinel/pkg/alert"
	"github.com/ridersafe/fall-sentinel/pkg/geo"
)

const (
	topicRoot      = "fall-sentinel"
	connectTimeout = 5 * time.Second
	publishTimeout = 5 * time.Second
)

// Publisher publishes status samples and fall events. It satisfies
// trip.Sink.
type Publisher struct {
	client mqtt.Client
}

func NewPublisher(broker, clientID string) (*Publisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(connectTimeout)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("telemetry: connect to MQTT broker: %w", token.Error())
	}
	return &Publisher{client: client}, nil
}

func (p *Publisher) PublishStatus(s trip.Status) error {
	return p.publish(fmt.Sprintf("%s/%s/status", topicRoot, s.TripID), s)
}

type fallPayload struct {
	TripID         string       `json:"trip_id"`
	DetectedAt     time.Time    `json:"detected_at"`
	Location       geo.Location `json:"location"`
	AccelMagnitude float64      `json:"accel_magnitude"`
	GyroMagnitude  float64      `json:"gyro_magnitude"`
	SoundLevel     int          `json:"sound_level"`
}

func (p *Publisher) PublishFall(tripID string, event alert.Event) error {
	return p.publish(fmt.Sprintf("%s/%s/fall", topicRoot, tripID), fallPayload{
		TripID:         tripID,
		DetectedAt:     event.DetectedAt,
		Location:       event.Location,
		AccelMagnitude: event.Magnitudes.Accel,
		GyroMagnitude:  event.Magnitudes.Gyro,
		SoundLevel:     event.Reading.SoundLevel,
	})
}

func (p *Publisher) publish(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("telemetry: encode payload: %w", err)
	}
	token := p.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("telemetry: publish %s: timed out", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("telemetry: publish %s: %w", topic, token.Error())
	}
	return nil
}

func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
