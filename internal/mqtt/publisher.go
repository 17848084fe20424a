package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"stationmeteo-server/internal/modules/weather/types"
)

// Publisher sends telemetry to the configured topic.
type Publisher struct {
	*conn
}

func NewPublisher(o Options, logger *slog.Logger) *Publisher {
	return &Publisher{conn: newConn(o, logger.With("component", "mqtt.publisher"), nil)}
}

func (p *Publisher) Connect(ctx context.Context) error {
	return p.connect(ctx)
}

// PublishTelemetry publishes t with QoS 1 and waits for the broker ack.
func (p *Publisher) PublishTelemetry(ctx context.Context, t types.Telemetry) error {
	if !p.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal telemetry: %w", err)
	}

	topic := p.opts.Topic
	token := p.client.Publish(topic, 1, false, data)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish telemetry: %w", err)
	}

	p.logger.Debug("published telemetry", "topic", topic, "timestamp", t.Timestamp)
	return nil
}

// Disconnect closes the connection. Idempotent.
func (p *Publisher) Disconnect() {
	p.stop()
	if p.client != nil {
		p.client.Disconnect(250)
	}
	p.setConnected(false)
	p.logger.Info("mqtt publisher disconnected")
}
