package queue

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"overlayd/internal/ipc"
)

// fakeWorker stands in for a worker process. The test drives the
// worker->host side with ready/empty/exit.
type fakeWorker struct {
	pid int

	mu   sync.Mutex
	sent []ipc.Message

	in       chan ipc.Message
	exited   chan struct{}
	exitOnce sync.Once
	stopped  atomic.Bool
}

func newFakeWorker(pid int) *fakeWorker {
	return &fakeWorker{pid: pid, in: make(chan ipc.Message, 16), exited: make(chan struct{})}
}

func (w *fakeWorker) PID() int { return w.pid }

func (w *fakeWorker) Send(m ipc.Message) error {
	select {
	case <-w.exited:
		return io.ErrClosedPipe
	default:
	}
	w.mu.Lock()
	w.sent = append(w.sent, m)
	w.mu.Unlock()
	return nil
}

func (w *fakeWorker) Recv() (ipc.Message, error) {
	m, ok := <-w.in
	if !ok {
		return ipc.Message{}, io.EOF
	}
	return m, nil
}

func (w *fakeWorker) Wait() error {
	<-w.exited
	return nil
}

func (w *fakeWorker) Stop() { w.stopped.Store(true) }

func (w *fakeWorker) ready()      { w.in <- ipc.WorkerReady() }
func (w *fakeWorker) queueEmpty() { w.in <- ipc.QueueEmpty() }

func (w *fakeWorker) exit() {
	w.exitOnce.Do(func() {
		close(w.in)
		close(w.exited)
	})
}

func (w *fakeWorker) messages() []ipc.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]ipc.Message(nil), w.sent...)
}

func (w *fakeWorker) types() []ipc.MessageType {
	var out []ipc.MessageType
	for _, m := range w.messages() {
		out = append(out, m.Type)
	}
	return out
}

// fakeSpawner records every spawn per destination.
type fakeSpawner struct {
	mu      sync.Mutex
	nextPID int
	workers map[string][]*fakeWorker
	failN   int // fail this many spawns before succeeding
}

func newFakeSpawner() *fakeSpawner {
	return &fakeSpawner{nextPID: 100, workers: map[string][]*fakeWorker{}}
}

func (s *fakeSpawner) Spawn(dest string) (Worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failN > 0 {
		s.failN--
		return nil, spawnFailedError{dest: dest, err: errors.New("exec: not found")}
	}
	s.nextPID++
	w := newFakeWorker(s.nextPID)
	s.workers[dest] = append(s.workers[dest], w)
	return w, nil
}

func (s *fakeSpawner) spawns(dest string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workers[dest])
}

func (s *fakeSpawner) last(dest string) *fakeWorker {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws := s.workers[dest]
	if len(ws) == 0 {
		return nil
	}
	return ws[len(ws)-1]
}
