package queue

import (
	"github.com/rs/zerolog"

	"overlayd/pkg/types"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultMaxPending = 64
)

// Config encapsulates all tunables for Manager construction.
type Config struct {
	// Options seeds the queue table with every derivable destination.
	Options []types.WheelOption
	// Spawner starts worker processes. Required.
	Spawner Spawner
	// MaxPending bounds the items held for a worker that has not reported
	// ready yet. Overflow is dropped.
	MaxPending int
	// ApplicationConfigs is the initial snapshot pushed to ready workers.
	ApplicationConfigs map[string]any
	Publisher          EventPublisher
	Logger             *zerolog.Logger
}

// New constructs a Manager from Config.
func New(cfg Config) *Manager {
	m := &Manager{
		spawner:    cfg.Spawner,
		maxPending: cfg.MaxPending,
		queues:     make(map[string]int),
		handles:    make(map[string]*handle),
		appConfigs: copyConfigs(cfg.ApplicationConfigs),
		publisher:  cfg.Publisher,
		log:        zerolog.Nop(),
	}
	if m.maxPending <= 0 {
		m.maxPending = defaultMaxPending
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	if cfg.Logger != nil {
		m.log = *cfg.Logger
	}
	m.startTime = timeNow()
	m.SetOptions(cfg.Options)
	return m
}
