package queue

import (
	"sort"
	"time"

	"overlayd/pkg/types"
)

// Workers snapshots the live handles sorted by destination.
func (m *Manager) Workers() []types.WorkerStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.WorkerStatus, 0, len(m.handles))
	for dest, h := range m.handles {
		state := h.state
		if !h.connected {
			state = StateDisconnected
		}
		out = append(out, types.WorkerStatus{
			Destination: dest,
			State:       state,
			PID:         h.w.PID(),
			Pending:     len(h.pending),
			StartedUnix: h.startedAt.Unix(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Destination < out[j].Destination })
	return out
}

// Status combines queue stats, worker snapshots and uptime.
func (m *Manager) Status() types.QueuesResponse {
	return types.QueuesResponse{
		Stats:         m.QueueStats(),
		Workers:       m.Workers(),
		UptimeSeconds: int64(time.Since(m.startTime) / time.Second),
	}
}
