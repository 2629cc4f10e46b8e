package queue

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"overlayd/internal/ipc"
	"overlayd/pkg/types"
)

var timeNow = time.Now

// Manager owns the queue table and the worker handles. Messages to a worker
// are queued on its handle while holding mu, so the order of AddToQueue calls
// is the order the worker sees. Sends happen on the handle's writer
// goroutine and never under mu.
type Manager struct {
	mu         sync.Mutex
	queues     map[string]int
	handles    map[string]*handle
	appConfigs map[string]any
	options    []types.WheelOption

	spawner    Spawner
	maxPending int
	publisher  EventPublisher
	log        zerolog.Logger
	startTime  time.Time
}

// SetOptions replaces the option list and creates a queue for every
// destination it derives. Options missing either half are skipped.
func (m *Manager) SetOptions(opts []types.WheelOption) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.options = append([]types.WheelOption(nil), opts...)
	for _, o := range opts {
		if dest, ok := o.Destination(); ok {
			m.ensureLocked(dest)
		}
	}
}

// Options returns a copy of the current option list.
func (m *Manager) Options() []types.WheelOption {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.WheelOption(nil), m.options...)
}

// EnsureQueue creates the destination's queue record if it does not exist.
func (m *Manager) EnsureQueue(dest string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureLocked(dest)
}

func (m *Manager) ensureLocked(dest string) {
	if _, ok := m.queues[dest]; !ok {
		m.queues[dest] = 0
		m.log.Debug().Str("destination", dest).Msg("queue event=queue_created")
	}
}

// SpawnWorker starts the destination's worker unless a handle already
// exists. A spawn failure is logged; the next AddToQueue retries.
func (m *Manager) SpawnWorker(dest string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_ = m.spawnLocked(dest)
}

func (m *Manager) spawnLocked(dest string) *handle {
	if h := m.handles[dest]; h != nil {
		return h
	}
	if m.spawner == nil {
		m.log.Error().Str("destination", dest).Msg("queue event=spawn_failed reason=no_spawner")
		return nil
	}
	w, err := m.spawner.Spawn(dest)
	if err != nil {
		m.log.Error().Err(err).Str("destination", dest).Msg("queue event=spawn_failed")
		m.publisher.Publish(Event{Name: EventSpawnFailed, Destination: dest, Fields: map[string]any{"error": err.Error()}})
		return nil
	}
	h := newHandle(dest, w, m.maxPending+outboxSlack)
	m.handles[dest] = h
	workerSpawnsTotal.Inc()
	m.log.Info().Str("destination", dest).Int("pid", w.PID()).Msg("queue event=worker_spawn")
	m.publisher.Publish(Event{Name: EventSpawnStart, Destination: dest, Fields: map[string]any{"pid": w.PID()}})
	go m.writeLoop(h)
	go m.readLoop(h)
	return h
}

// AddToQueue counts a dispatch to dest and hands item to its worker,
// spawning one if needed. Items for a worker that is still starting are held
// until it reports ready; items for a disconnected worker are dropped.
func (m *Manager) AddToQueue(dest string, item any) {
	dest = strings.TrimSpace(dest)
	if dest == "" {
		m.log.Warn().Msg("queue event=dispatch_drop reason=empty_destination")
		return
	}
	msg, err := ipc.AddItem(item)
	if err != nil {
		m.log.Error().Err(err).Str("destination", dest).Msg("queue event=dispatch_drop reason=encode")
		m.mu.Lock()
		m.drop(dest, dropEncode, 1)
		m.mu.Unlock()
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureLocked(dest)
	m.queues[dest]++
	dispatchTotal.WithLabelValues(dest).Inc()

	h := m.spawnLocked(dest)
	switch {
	case h == nil:
		m.log.Error().Str("destination", dest).Msg("queue event=dispatch_drop reason=spawn_failed")
		m.drop(dest, dropSpawnFailed, 1)
	case !h.connected:
		m.log.Error().Str("destination", dest).Msg("queue event=dispatch_drop reason=disconnected")
		m.drop(dest, dropDisconnected, 1)
	case h.state == StateReady:
		if !h.enqueueLocked(msg) {
			m.log.Error().Str("destination", dest).Msg("queue event=dispatch_drop reason=overflow")
			m.drop(dest, dropOverflow, 1)
		}
	case len(h.pending) >= m.maxPending:
		m.log.Error().Str("destination", dest).Int("max_pending", m.maxPending).Msg("queue event=dispatch_drop reason=overflow")
		m.drop(dest, dropOverflow, 1)
	default:
		h.pending = append(h.pending, msg)
	}
}

// DispatchResult routes a wheel result to its destination. Results without
// both an application and a controller are ignored.
func (m *Manager) DispatchResult(r types.WheelResult) (string, bool) {
	dest, ok := types.Destination(r.Application, r.Controller)
	if !ok {
		m.log.Debug().Str("result", r.Result).Msg("queue event=result_ignored reason=no_destination")
		return "", false
	}
	m.AddToQueue(dest, r)
	return dest, true
}

// SetApplicationConfigs replaces the config snapshot and pushes it to every
// ready worker. Workers still starting receive it during the handshake.
func (m *Manager) SetApplicationConfigs(cfg map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appConfigs = copyConfigs(cfg)
	for dest, h := range m.handles {
		if h.state != StateReady || !h.connected {
			continue
		}
		if !h.enqueueLocked(ipc.SetConfig(copyConfigs(m.appConfigs))) {
			m.log.Error().Str("destination", dest).Msg("queue event=config_send_failed reason=outbox_full")
		}
	}
}

// QueueStats returns the cumulative dispatch count per destination. It is
// not a live depth: nothing decrements it.
func (m *Manager) QueueStats() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.queues))
	for k, v := range m.queues {
		out[k] = v
	}
	return out
}

// Destinations returns every known destination, sorted.
func (m *Manager) Destinations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.queues))
	for k := range m.queues {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// StopQueueWorkers asks every connected worker to shut down and forgets all
// handles at once. Queue records and counts are kept. Workers that ignore
// the request are terminated by their Worker implementation.
func (m *Manager) StopQueueWorkers() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for dest, h := range m.handles {
		if h.connected && !h.enqueueLocked(ipc.Shutdown()) {
			m.log.Warn().Str("destination", dest).Msg("queue event=shutdown_send_failed reason=outbox_full")
		}
		h.closeOutLocked()
		if n := len(h.pending); n > 0 {
			m.drop(dest, dropStopped, n)
			h.pending = nil
		}
		if h.state == StateReady {
			workersReady.Dec()
		}
		h.w.Stop()
		m.log.Info().Str("destination", dest).Int("pid", h.w.PID()).Msg("queue event=worker_stop")
		m.publisher.Publish(Event{Name: EventStop, Destination: dest, Fields: map[string]any{"pid": h.w.PID()}})
	}
	m.handles = make(map[string]*handle)
}

// drop records n lost items. It needs no lock.
func (m *Manager) drop(dest, reason string, n int) {
	droppedTotal.WithLabelValues(dest, reason).Add(float64(n))
	m.publisher.Publish(Event{Name: EventDrop, Destination: dest, Fields: map[string]any{"reason": reason, "count": n}})
}

func copyConfigs(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
