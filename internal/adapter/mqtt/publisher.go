// Package mqtt triggers alarm actuators (sirens, lights, displays) over MQTT.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/couchcryptid/alarm-display/internal/domain"
)

const publishTimeout = 5 * time.Second

// Trigger is published once per new incident.
type Trigger struct {
	IncidentID string    `json:"incident_id"`
	Number     string    `json:"number,omitempty"`
	Title      string    `json:"title,omitempty"`
	Image      string    `json:"image,omitempty"`
	Test       bool      `json:"test"`
	Source     string    `json:"source"`
	Time       time.Time `json:"time"`
}

// client is the subset of paho.Client the publisher uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// Publisher publishes a Trigger for every update that starts an incident.
type Publisher struct {
	client client
	topic  string
	logger *slog.Logger
}

// DefaultConnectTimeout bounds the initial broker connection.
const DefaultConnectTimeout = 5 * time.Second

// NewPublisher connects to broker and fails unless the broker acknowledges
// the connection within connectTimeout. After that the client reconnects
// automatically.
func NewPublisher(broker, clientID, topic string, connectTimeout time.Duration, logger *slog.Logger) (*Publisher, error) {
	opts := paho.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	})

	c := paho.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(connectTimeout) {
		c.Disconnect(0)
		return nil, fmt.Errorf("connect to mqtt broker %s: timed out after %s", broker, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", broker, err)
	}
	logger.Info("mqtt connected", "broker", broker, "topic", topic)
	return newPublisher(c, topic, logger), nil
}

func newPublisher(c client, topic string, logger *slog.Logger) *Publisher {
	return &Publisher{client: c, topic: topic, logger: logger}
}

// Load publishes a trigger when update started a new incident.
func (p *Publisher) Load(ctx context.Context, update domain.Update) error {
	if !update.New {
		return nil
	}

	payload, err := json.Marshal(Trigger{
		IncidentID: update.Incident.ID,
		Number:     update.Incident.Alarm.Number,
		Title:      update.View.Title,
		Image:      update.View.Image,
		Test:       update.View.Test,
		Source:     string(update.Payload.Kind),
		Time:       update.Incident.Started,
	})
	if err != nil {
		return fmt.Errorf("marshal trigger: %w", err)
	}

	token := p.client.Publish(p.topic, 1, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return fmt.Errorf("publish to %s: timed out", p.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	p.logger.Info("alarm trigger published", "topic", p.topic, "incident", update.Incident.ID)
	return nil
}

// Close disconnects from the broker, waiting briefly for in-flight messages.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
