// Package mqtt wraps the paho client for the station telemetry topic: a
// Subscriber feeding the service and a Publisher used by the simulator.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// ErrStopped is returned by Connect after Disconnect has been called.
var ErrStopped = errors.New("mqtt client stopped")

type Options struct {
	Broker   string
	Port     int
	ClientID string
	Topic    string
}

func (o Options) brokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", o.Broker, o.Port)
}

// conn holds the connection state shared by Subscriber and Publisher.
type conn struct {
	client    paho.Client
	opts      Options
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

func newConn(o Options, logger *slog.Logger, onConnect func()) *conn {
	c := &conn{
		opts:   o,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	po := paho.NewClientOptions()
	po.AddBroker(o.brokerURL())
	po.SetClientID(o.ClientID)
	po.SetCleanSession(true)

	po.SetAutoReconnect(true)
	po.SetConnectRetry(true)
	po.SetConnectRetryInterval(5 * time.Second)
	po.SetMaxReconnectInterval(60 * time.Second)

	po.SetKeepAlive(30 * time.Second)
	po.SetPingTimeout(10 * time.Second)

	po.SetOnConnectHandler(func(_ paho.Client) {
		c.setConnected(true)
		logger.Info("mqtt connected", "broker", o.Broker, "port", o.Port)
		if onConnect != nil {
			onConnect()
		}
	})
	po.SetConnectionLostHandler(func(_ paho.Client, err error) {
		c.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	c.client = paho.NewClient(po)
	return c
}

// connect waits for the initial connection while honouring ctx and Disconnect.
func (c *conn) connect(ctx context.Context) error {
	select {
	case <-c.stopCh:
		return ErrStopped
	default:
	}

	if c.IsConnected() {
		return nil
	}

	token := c.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			c.client.Disconnect(0)
			return ctx.Err()
		case <-c.stopCh:
			c.client.Disconnect(0)
			return ErrStopped
		default:
		}
	}
}

// IsConnected returns whether the client is connected.
func (c *conn) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

func (c *conn) stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *conn) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}
