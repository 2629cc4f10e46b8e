package queue

import "github.com/prometheus/client_golang/prometheus"

var (
	dispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "overlayd",
			Subsystem: "queue",
			Name:      "dispatch_total",
			Help:      "Items dispatched per destination",
		},
		[]string{"destination"},
	)

	droppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "overlayd",
			Subsystem: "queue",
			Name:      "dropped_total",
			Help:      "Items dropped before reaching a worker",
		},
		[]string{"destination", "reason"},
	)

	workerSpawnsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "overlayd",
			Name:      "worker_spawns_total",
			Help:      "Worker processes started",
		},
	)

	workersReady = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "overlayd",
			Name:      "workers_ready",
			Help:      "Workers that completed the ready handshake",
		},
	)
)

func init() {
	prometheus.MustRegister(dispatchTotal, droppedTotal, workerSpawnsTotal, workersReady)
}

// Drop reasons.
const (
	dropEncode       = "encode"
	dropSpawnFailed  = "spawn_failed"
	dropDisconnected = "disconnected"
	dropOverflow     = "overflow"
	dropSendFailed   = "send_failed"
	dropStopped      = "stopped"
)
