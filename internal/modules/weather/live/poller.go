package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sony/gobreaker"

	"stationmeteo-server/internal/modules/weather/types"
)

// LatestReader is the store lookup used by the poll channel.
type LatestReader interface {
	Latest(ctx context.Context) (types.Reading, error)
}

// PollSink receives each poll outcome.
type PollSink interface {
	OnPoll(reading *types.Reading, err error) bool
}

const maxPollTimeout = 30 * time.Second

// Poller reads the newest stored reading on a fixed interval. Store calls go
// through a circuit breaker that only rejects calls made between ticks; an
// open breaker is reported like any other failed poll.
type Poller struct {
	store    LatestReader
	sink     PollSink
	interval time.Duration
	breaker  *gobreaker.CircuitBreaker
	logger   *slog.Logger
}

func NewPoller(store LatestReader, sink PollSink, interval time.Duration, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "live.poller")

	p := &Poller{
		store:    store,
		sink:     sink,
		interval: interval,
		logger:   logger,
	}
	// the open state must expire before the next tick so every scheduled poll
	// gets at least a half-open trial against the store
	openFor := interval / 2
	if openFor <= 0 {
		openFor = time.Nanosecond
	}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "reading-store-poll",
		MaxRequests: 1,
		Timeout:     openFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, types.ErrNoReadings)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("poll circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return p
}

// PollOnce performs a single poll and hands the outcome to the sink. An empty
// store is not an error.
func (p *Poller) PollOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, min(p.interval, maxPollTimeout))
	defer cancel()

	res, err := p.breaker.Execute(func() (interface{}, error) {
		return p.store.Latest(ctx)
	})
	switch {
	case errors.Is(err, types.ErrNoReadings):
		p.sink.OnPoll(nil, nil)
		return nil
	case err != nil:
		err = &types.ReadingStoreError{Op: "latest", Err: err}
		p.sink.OnPoll(nil, err)
		return err
	}

	reading := res.(types.Reading)
	p.sink.OnPoll(&reading, nil)
	return nil
}

// Run polls immediately and then every interval until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	if p.interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", p.interval)
	}

	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	if _, err := s.Every(p.interval).Do(func() {
		if err := p.PollOnce(ctx); err != nil && ctx.Err() == nil {
			p.logger.Debug("poll attempt failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule poll: %w", err)
	}

	s.StartAsync()
	p.logger.Info("live poller started", "interval", p.interval.String())

	<-ctx.Done()
	s.Stop()
	p.logger.Info("live poller stopped")
	return nil
}
