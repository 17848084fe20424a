// Package live keeps the current station reading, merged from a scheduled poll
// of the reading store and the MQTT push feed.
package live

import (
	"log/slog"
	"sync"
	"time"

	"stationmeteo-server/internal/metrics"
	"stationmeteo-server/internal/modules/weather/types"
)

// Snapshot is the reconciler state handed to callers. Current is nil until a
// first reading has been accepted. PollError is the last poll failure, cleared
// by the next successful poll.
type Snapshot struct {
	Current     *types.LiveReading
	PollError   error
	PollErrorAt time.Time
}

// Reconciler holds the latest reading. A reading replaces the held one only if
// its timestamp is strictly newer, whichever channel delivered it.
type Reconciler struct {
	mu        sync.Mutex
	current   *types.LiveReading
	pollErr   error
	pollErrAt time.Time
	listeners map[int]chan types.LiveReading
	nextID    int
	now       func() time.Time
	logger    *slog.Logger
}

func NewReconciler(logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		listeners: make(map[int]chan types.LiveReading),
		now:       time.Now,
		logger:    logger.With("component", "live.reconciler"),
	}
}

// OnPush offers a reading from the push feed.
func (r *Reconciler) OnPush(reading types.Reading) bool {
	return r.offer(reading, types.SourcePush)
}

// OnPoll records the outcome of one poll attempt. A failed poll keeps the held
// reading and is reported through Snapshot until a poll succeeds.
func (r *Reconciler) OnPoll(reading *types.Reading, err error) bool {
	r.mu.Lock()
	if err != nil {
		r.pollErr = err
		r.pollErrAt = r.now().UTC()
		r.mu.Unlock()
		metrics.PollErrors.Inc()
		r.logger.Warn("live poll failed, keeping last reading", "error", err)
		return false
	}
	r.pollErr = nil
	r.pollErrAt = time.Time{}
	r.mu.Unlock()

	if reading == nil {
		return false
	}
	return r.offer(*reading, types.SourcePoll)
}

func (r *Reconciler) offer(reading types.Reading, src types.Source) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil && !reading.Timestamp.After(r.current.Reading.Timestamp) {
		metrics.LiveOffers.WithLabelValues(string(src), "stale").Inc()
		r.logger.Debug("discarded stale reading",
			"source", src,
			"timestamp", reading.Timestamp,
			"current", r.current.Reading.Timestamp,
		)
		return false
	}

	lr := types.LiveReading{Reading: reading, Source: src, ReceivedAt: r.now().UTC()}
	r.current = &lr
	metrics.LiveOffers.WithLabelValues(string(src), "accepted").Inc()

	// Sent under the lock so listeners observe transitions in order.
	for id, ch := range r.listeners {
		select {
		case ch <- lr:
		default:
			r.logger.Debug("live listener lagging, update dropped", "listener", id)
		}
	}
	return true
}

// Snapshot returns a copy of the current state.
func (r *Reconciler) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Snapshot{PollError: r.pollErr, PollErrorAt: r.pollErrAt}
	if r.current != nil {
		cp := *r.current
		s.Current = &cp
	}
	return s
}

// Subscribe registers a listener for accepted transitions. Updates are dropped
// for a listener whose buffer is full. The returned func unregisters and
// closes the channel; it is safe to call more than once.
func (r *Reconciler) Subscribe(buffer int) (<-chan types.LiveReading, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan types.LiveReading, buffer)

	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = ch
	r.mu.Unlock()
	metrics.LiveSubscribers.Inc()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.listeners, id)
			close(ch)
			r.mu.Unlock()
			metrics.LiveSubscribers.Dec()
		})
	}
}
