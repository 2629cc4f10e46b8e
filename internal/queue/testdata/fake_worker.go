//go:build ignore

// fake_worker speaks the worker side of the channel without running any
// controller. Each add-item is acknowledged with queue-empty.
// FAKE_WORKER_IGNORE_SHUTDOWN=1 makes it ignore shutdown so the host has to
// terminate it.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"overlayd/internal/ipc"
)

func main() {
	conn, err := ipc.Inherited()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	ignore := os.Getenv("FAKE_WORKER_IGNORE_SHUTDOWN") == "1"
	if ignore {
		signal.Ignore(syscall.SIGTERM)
	}
	if err := conn.Send(ipc.WorkerReady()); err != nil {
		os.Exit(3)
	}
	for {
		m, err := conn.Recv()
		if err != nil {
			if ignore {
				time.Sleep(time.Hour)
			}
			os.Exit(0)
		}
		switch m.Type {
		case ipc.TypeAddItem:
			_ = conn.Send(ipc.QueueEmpty())
		case ipc.TypeShutdown:
			if !ignore {
				os.Exit(0)
			}
		}
	}
}
