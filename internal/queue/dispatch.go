package queue

import (
	"time"

	"github.com/google/uuid"

	"overlayd/pkg/types"
)

// NewResult builds the item record for an option the wheel landed on.
func NewResult(o types.WheelOption, at time.Time) types.WheelResult {
	return types.WheelResult{
		ID:          uuid.NewString(),
		Result:      o.Name,
		Timestamp:   at.UnixMilli(),
		Application: o.Application,
		Controller:  o.Controller,
		Config:      o.Config,
		Command:     o.Command,
	}
}

// DispatchOption records a spin outcome for o and routes it. Options without
// a destination are rejected with a bad-option error.
func (m *Manager) DispatchOption(o types.WheelOption, at time.Time) (types.WheelResult, string, error) {
	if _, ok := o.Destination(); !ok {
		return types.WheelResult{}, "", ErrBadOption("option " + o.Name + " has no application/controller")
	}
	r := NewResult(o, at)
	dest, _ := m.DispatchResult(r)
	return r, dest, nil
}

// DispatchCount returns the cumulative dispatch count for dest.
func (m *Manager) DispatchCount(dest string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.queues[dest]
	if !ok {
		return 0, ErrNotFound(dest)
	}
	return n, nil
}
