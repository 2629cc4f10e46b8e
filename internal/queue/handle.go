package queue

import (
	"time"

	"overlayd/internal/ipc"
)

// Worker handle states as reported by Workers.
const (
	StateSpawning     = "spawning"
	StateReady        = "ready"
	StateDisconnected = "disconnected"
)

// outboxSlack is the room an outbox keeps beyond MaxPending for config
// pushes and items sent to a ready worker that is still catching up.
const outboxSlack = 256

// handle tracks one destination's worker. All fields except out are guarded
// by the Manager's mutex; out is only sent to and closed under it.
type handle struct {
	dest      string
	w         Worker
	state     string
	connected bool
	pending   []ipc.Message
	startedAt time.Time

	out       chan ipc.Message
	outClosed bool
}

func newHandle(dest string, w Worker, outbox int) *handle {
	return &handle{
		dest:      dest,
		w:         w,
		state:     StateSpawning,
		connected: true,
		startedAt: timeNow(),
		out:       make(chan ipc.Message, outbox),
	}
}

// enqueueLocked hands msg to the writer without blocking. It reports false
// when the outbox is full or closed.
func (h *handle) enqueueLocked(msg ipc.Message) bool {
	if h.outClosed {
		return false
	}
	select {
	case h.out <- msg:
		return true
	default:
		return false
	}
}

func (h *handle) closeOutLocked() {
	if !h.outClosed {
		h.outClosed = true
		close(h.out)
	}
}

// writeLoop is the only caller of the worker's Send. It delivers the outbox
// in order until the outbox is closed and drained, so a worker that stops
// reading stalls its own destination and nothing else.
func (m *Manager) writeLoop(h *handle) {
	for msg := range h.out {
		if err := h.w.Send(msg); err != nil {
			m.log.Error().Err(err).Str("destination", h.dest).Str("type", string(msg.Type)).Msg("queue event=send_failed")
			if msg.Type == ipc.TypeAddItem {
				m.drop(h.dest, dropSendFailed, 1)
			}
		}
	}
}

// readLoop consumes messages from the worker until its channel closes, then
// waits for the process and clears the handle if it is still current.
func (m *Manager) readLoop(h *handle) {
	for {
		msg, err := h.w.Recv()
		if err != nil {
			break
		}
		m.handleMessage(h, msg)
	}

	m.mu.Lock()
	if h.connected {
		h.connected = false
		if n := len(h.pending); n > 0 {
			m.drop(h.dest, dropDisconnected, n)
			h.pending = nil
		}
	}
	h.closeOutLocked()
	m.mu.Unlock()

	err := h.w.Wait()

	m.mu.Lock()
	current := m.handles[h.dest] == h
	if current {
		delete(m.handles, h.dest)
		if h.state == StateReady {
			workersReady.Dec()
		}
	}
	m.mu.Unlock()

	ev := m.log.Info().Str("destination", h.dest).Int("pid", h.w.PID())
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg("queue event=worker_exit")
	fields := map[string]any{"pid": h.w.PID()}
	if err != nil {
		fields["error"] = err.Error()
	}
	m.publisher.Publish(Event{Name: EventExit, Destination: h.dest, Fields: fields})
}

func (m *Manager) handleMessage(h *handle, msg ipc.Message) {
	switch msg.Type {
	case ipc.TypeWorkerReady:
		m.onReady(h)
	case ipc.TypeQueueEmpty:
		m.log.Info().Str("destination", h.dest).Msg("queue event=queue_empty")
		m.publisher.Publish(Event{Name: EventQueueEmpty, Destination: h.dest})
	default:
		m.log.Debug().Str("destination", h.dest).Str("type", string(msg.Type)).Msg("queue event=unexpected_message")
	}
}

// onReady pushes the current config snapshot, then flushes items held while
// the worker was starting.
func (m *Manager) onReady(h *handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handles[h.dest] != h || !h.connected || h.state == StateReady {
		return
	}
	if !h.enqueueLocked(ipc.SetConfig(copyConfigs(m.appConfigs))) {
		m.log.Error().Str("destination", h.dest).Msg("queue event=config_send_failed reason=outbox_full")
	}
	h.state = StateReady
	workersReady.Inc()
	flushed := len(h.pending)
	for i, msg := range h.pending {
		if !h.enqueueLocked(msg) {
			m.log.Error().Str("destination", h.dest).Msg("queue event=dispatch_drop reason=overflow")
			m.drop(h.dest, dropOverflow, len(h.pending)-i)
			break
		}
	}
	h.pending = nil
	m.log.Info().Str("destination", h.dest).Int("pid", h.w.PID()).Int("flushed", flushed).Msg("queue event=worker_ready")
	m.publisher.Publish(Event{Name: EventReady, Destination: h.dest, Fields: map[string]any{"pid": h.w.PID(), "flushed": flushed}})
}
