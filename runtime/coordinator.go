package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"rentchat/contract"
	"rentchat/domain"
	"rentchat/domain/event"
	"rentchat/observability"
	"rentchat/runtime/workers"
)

// Intervals groups the polling cadences. Room-list polling always runs:
// slow while LIVE to catch badge drift, tighter while DEGRADED. The
// room-message poll only fires while DEGRADED. No backoff: a failed tick
// simply retries on the next one.
type Intervals struct {
	RoomListLive     time.Duration
	RoomListDegraded time.Duration
	RoomMessages     time.Duration
	Expiry           time.Duration
	SinkTimeout      time.Duration
}

func DefaultIntervals() Intervals {
	return Intervals{
		RoomListLive:     30 * time.Second,
		RoomListDegraded: 10 * time.Second,
		RoomMessages:     3 * time.Second,
		Expiry:           5 * time.Second,
		SinkTimeout:      2 * time.Second,
	}
}

// Coordinator owns the decision of which channel is live. It wires the
// push client's connection signal to the mode, schedules the polling
// fallback under the supervisor, and fans engine events out to sinks.
//
// Mode transitions: Open puts the surface in DEGRADED until the push
// handshake succeeds (LIVE); every drop falls back to DEGRADED; Close
// returns to DISCONNECTED and stops all polling.
type Coordinator struct {
	log        *slog.Logger
	engine     *Engine
	push       contract.PushTransport
	pushWorker contract.Worker
	supervisor contract.ISupervisor
	registry   contract.IRegistry
	sinks      []contract.EventSink
	intervals  Intervals
	metrics    *observability.Metrics

	mu   sync.RWMutex
	mode domain.TransportMode
}

func NewCoordinator(
	log *slog.Logger,
	engine *Engine,
	push contract.PushTransport,
	pushWorker contract.Worker,
	supervisor contract.ISupervisor,
	registry contract.IRegistry,
	intervals Intervals,
	metrics *observability.Metrics,
) *Coordinator {
	return &Coordinator{
		log:        log,
		engine:     engine,
		push:       push,
		pushWorker: pushWorker,
		supervisor: supervisor,
		registry:   registry,
		intervals:  intervals,
		metrics:    metrics,
		mode:       domain.Disconnected,
	}
}

// AddSinks registers permanent sinks (cache, metrics) receiving every
// engine event. Must be called before Open.
func (c *Coordinator) AddSinks(sinks ...contract.EventSink) {
	c.sinks = append(c.sinks, sinks...)
}

// Mode returns the current transport mode.
func (c *Coordinator) Mode() domain.TransportMode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// Open starts the chat surface: event fanout, poll workers and, when a
// push worker is present, the push session itself, all supervised. The
// surface begins DEGRADED; the handshake callback promotes it to LIVE.
func (c *Coordinator) Open(ctx context.Context) {
	c.setMode(domain.Degraded)
	c.push.OnStateChange(c.onPushState)

	fanout := workers.NewEventFanout(c.log, c.engine.Events(), c.registry, c.sinks, c.intervals.SinkTimeout)
	roomListPoll := workers.NewRoomListPollWorker(
		c.log, c.Mode, c.engine.SyncRoomList, c.engine.RefreshRoom,
		c.intervals.RoomListLive, c.intervals.RoomListDegraded, c.metrics,
	)
	roomPoll := workers.NewRoomPollWorker(
		c.log, c.Mode, c.engine.OpenRoomID, c.engine.RefreshRoom,
		c.intervals.RoomMessages, c.metrics,
	)
	expiry := workers.NewExpiryWorker(c.log, c.engine.Prune, c.intervals.Expiry)

	c.supervisor.Add(fanout, roomListPoll, roomPoll, expiry)
	if c.pushWorker != nil {
		c.supervisor.Add(c.pushWorker)
	}

	c.log.Info("Chat surface opened, starting supervised workers")
	go c.supervisor.Run(ctx)
}

// Close tears the surface down: all polling stops, the push session ends
// with the supervised context, and the mode returns to DISCONNECTED.
func (c *Coordinator) Close() {
	c.log.Info("Chat surface closing")
	c.supervisor.Stop()
	c.setMode(domain.Disconnected)
}

// onPushState reacts to handshake and drop signals from the push client.
func (c *Coordinator) onPushState(connected bool) {
	if connected {
		c.log.Info("Push channel up, transport LIVE")
		c.setMode(domain.Live)
		return
	}
	if c.Mode() == domain.Disconnected {
		return
	}
	c.log.Warn("Push channel down, transport DEGRADED, polling takes over")
	c.setMode(domain.Degraded)
}

func (c *Coordinator) setMode(mode domain.TransportMode) {
	c.mu.Lock()
	changed := c.mode != mode
	c.mode = mode
	c.mu.Unlock()

	if !changed {
		return
	}
	c.metrics.TransportMode.Set(float64(mode))
	c.engine.emit(event.TransportChanged{Mode: mode, At: time.Now()})
}
