package mqtt

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"stationmeteo-server/internal/modules/weather/types"
)

// captureHandler records log records for assertion in tests.
type captureHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	return nil
}

func (h *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h *captureHandler) WithGroup(string) slog.Handler { return h }

func (h *captureHandler) has(level slog.Level, msg string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range h.records {
		if r.Level == level && r.Message == msg {
			return true
		}
	}
	return false
}

const validPayload = `{"timestamp":"2024-08-01T12:00:00Z","temperature_c":24.5,"humidity_pct":41,"solar_radiation_wm2":820,"wind_speed_kmh":12,"wind_direction_deg":270,"rainfall_mm":0}`

func newTestSubscriber() (*Subscriber, *captureHandler) {
	h := &captureHandler{}
	s := NewSubscriber(Options{Broker: "localhost", Port: 1883, ClientID: "test", Topic: "stationmeteo/readings"}, slog.New(h))
	return s, h
}

func TestHandleMessage_valid(t *testing.T) {
	s, _ := newTestSubscriber()
	var got []types.Telemetry
	s.SetMessageHandler(func(tm types.Telemetry) error {
		got = append(got, tm)
		return nil
	})

	s.handleMessage("stationmeteo/readings", []byte(validPayload))

	if len(got) != 1 {
		t.Fatalf("handler calls = %d; want 1", len(got))
	}
	r := got[0].Reading()
	if !r.Timestamp.Equal(time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)) || r.Temperature != 24.5 || r.ET0 != nil {
		t.Errorf("reading = %+v", r)
	}
}

func TestHandleMessage_rejected(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantLog string
	}{
		{name: "not json", payload: `{"timestamp":`, wantLog: "failed to parse telemetry message"},
		{name: "humidity above 100", payload: `{"timestamp":"2024-08-01T12:00:00Z","temperature_c":1,"humidity_pct":101,"solar_radiation_wm2":0,"wind_speed_kmh":0,"wind_direction_deg":0,"rainfall_mm":0}`, wantLog: "invalid telemetry message"},
		{name: "negative et0", payload: `{"timestamp":"2024-08-01T12:00:00Z","temperature_c":1,"humidity_pct":10,"solar_radiation_wm2":0,"wind_speed_kmh":0,"wind_direction_deg":0,"rainfall_mm":0,"et0_mm":-0.1}`, wantLog: "invalid telemetry message"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, logs := newTestSubscriber()
			called := false
			s.SetMessageHandler(func(types.Telemetry) error {
				called = true
				return nil
			})

			s.handleMessage("stationmeteo/readings", []byte(tt.payload))

			if called {
				t.Error("handler called for rejected payload")
			}
			if !logs.has(slog.LevelWarn, tt.wantLog) {
				t.Errorf("missing warn log %q", tt.wantLog)
			}
		})
	}
}

func TestHandleMessage_handlerError(t *testing.T) {
	s, logs := newTestSubscriber()
	s.SetMessageHandler(func(types.Telemetry) error { return errors.New("database is locked") })

	s.handleMessage("stationmeteo/readings", []byte(validPayload))

	if !logs.has(slog.LevelError, "message handler failed") {
		t.Error("missing error log for failed handler")
	}
}

func TestHandleMessage_noHandler(t *testing.T) {
	s, _ := newTestSubscriber()
	s.handleMessage("stationmeteo/readings", []byte(validPayload))
}

func TestConnect_afterDisconnect(t *testing.T) {
	s, _ := newTestSubscriber()
	s.Disconnect()
	s.Disconnect()

	if err := s.Connect(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("Connect() after Disconnect = %v; want ErrStopped", err)
	}
}

func TestPublishTelemetry_notConnected(t *testing.T) {
	p := NewPublisher(Options{Broker: "localhost", Port: 1883, ClientID: "pub", Topic: "t"}, slog.New(&captureHandler{}))
	if err := p.PublishTelemetry(context.Background(), types.Telemetry{}); err == nil {
		t.Error("PublishTelemetry() on a disconnected client = nil; want error")
	}
}

func TestBrokerURL(t *testing.T) {
	o := Options{Broker: "mosquitto", Port: 1884}
	if got := o.brokerURL(); got != "tcp://mosquitto:1884" {
		t.Errorf("brokerURL() = %q", got)
	}
}

func TestReady_notConnected(t *testing.T) {
	s, _ := newTestSubscriber()
	if s.Ready() {
		t.Error("Ready() = true before Connect")
	}
}
