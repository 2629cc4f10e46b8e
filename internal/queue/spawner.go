package queue

import "overlayd/internal/ipc"

// Spawner starts the worker process for a destination.
type Spawner interface {
	Spawn(dest string) (Worker, error)
}

// Worker is a running worker process seen from the host side.
type Worker interface {
	PID() int
	// Send writes one message to the worker. Order is preserved.
	Send(ipc.Message) error
	// Recv blocks for the next message from the worker; it fails once the
	// channel is gone.
	Recv() (ipc.Message, error)
	// Wait blocks until the process has exited.
	Wait() error
	// Stop terminates the process if it has not exited on its own. It does
	// not block.
	Stop()
}

// SpawnerFunc adapts a function to Spawner.
type SpawnerFunc func(dest string) (Worker, error)

func (f SpawnerFunc) Spawn(dest string) (Worker, error) { return f(dest) }
