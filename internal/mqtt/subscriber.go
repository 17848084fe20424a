package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"stationmeteo-server/internal/modules/weather/types"
)

// TelemetryHandler is called for each valid telemetry message.
type TelemetryHandler func(t types.Telemetry) error

// MQTTSubscriber is the part of Subscriber the weather module depends on.
type MQTTSubscriber interface {
	SetMessageHandler(handler TelemetryHandler)
}

type Subscriber struct {
	*conn
	handler    atomic.Pointer[TelemetryHandler]
	subscribed atomic.Bool
}

func NewSubscriber(o Options, logger *slog.Logger) *Subscriber {
	s := &Subscriber{}
	s.conn = newConn(o, logger.With("component", "mqtt.subscriber"), s.onConnect)
	return s
}

// SetMessageHandler sets the handler for telemetry messages. Safe to call
// while connected.
func (s *Subscriber) SetMessageHandler(handler TelemetryHandler) {
	s.handler.Store(&handler)
}

// Connect connects to the broker and subscribes to the telemetry topic.
func (s *Subscriber) Connect(ctx context.Context) error {
	if err := s.connect(ctx); err != nil {
		return err
	}
	if err := s.subscribe(); err != nil {
		s.client.Disconnect(0)
		return fmt.Errorf("subscribe: %w", err)
	}
	s.subscribed.Store(true)
	return nil
}

// Ready reports whether the telemetry subscription is active.
func (s *Subscriber) Ready() bool {
	return s.subscribed.Load() && s.IsConnected()
}

// onConnect restores the subscription after an automatic reconnect; clean
// sessions drop subscriptions on the broker side.
func (s *Subscriber) onConnect() {
	if !s.subscribed.Load() {
		return
	}
	go func() {
		if err := s.subscribe(); err != nil {
			s.logger.Error("resubscribe after reconnect failed", "topic", s.opts.Topic, "error", err)
		}
	}()
}

func (s *Subscriber) subscribe() error {
	if !s.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	topic := s.opts.Topic
	qos := byte(1)

	token := s.client.Subscribe(topic, qos, func(_ paho.Client, msg paho.Message) {
		s.handleMessage(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout for topic %s", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, token.Error())
	}

	s.logger.Info("subscribed to mqtt topic", "topic", topic, "qos", qos)
	return nil
}

func (s *Subscriber) handleMessage(topic string, payload []byte) {
	s.logger.Debug("received mqtt message", "topic", topic, "size", len(payload))

	var t types.Telemetry
	if err := json.Unmarshal(payload, &t); err != nil {
		s.logger.Warn("failed to parse telemetry message",
			"topic", topic,
			"error", err,
			"payload", string(payload),
		)
		return
	}
	if err := t.Validate(); err != nil {
		s.logger.Warn("invalid telemetry message", "topic", topic, "error", err)
		return
	}

	h := s.handler.Load()
	if h == nil || *h == nil {
		return
	}
	if err := (*h)(t); err != nil {
		s.logger.Error("message handler failed",
			"topic", topic,
			"timestamp", t.Timestamp,
			"error", err,
		)
		return
	}
	s.logger.Debug("processed telemetry message", "timestamp", t.Timestamp)
}

// Disconnect unsubscribes and closes the connection. Idempotent.
func (s *Subscriber) Disconnect() {
	s.stop()
	s.subscribed.Store(false)

	if s.client != nil && s.IsConnected() {
		token := s.client.Unsubscribe(s.opts.Topic)
		token.WaitTimeout(2 * time.Second)
	}
	if s.client != nil {
		s.client.Disconnect(250)
	}

	s.setConnected(false)
	s.logger.Info("mqtt subscriber disconnected")
}
