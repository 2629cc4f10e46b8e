package queue

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"overlayd/internal/ipc"
)

const (
	defaultStopGrace = 3 * time.Second
	killAfterTerm    = 2 * time.Second
)

// ProcessSpawner runs each worker as a child process. The child gets the
// channel on descriptors 3 and 4, inherits stdout/stderr and has no stdin.
type ProcessSpawner struct {
	// Bin is the executable; empty means the current executable.
	Bin string
	// Args precede "--destination <dest>" on the command line.
	Args []string
	// Env is appended to the parent's environment.
	Env []string
	// Grace is how long a stopped worker may take to exit on its own before
	// it is terminated.
	Grace  time.Duration
	Logger *zerolog.Logger
}

// Spawn starts the worker for dest.
func (s *ProcessSpawner) Spawn(dest string) (Worker, error) {
	bin := s.Bin
	if bin == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, spawnFailedError{dest: dest, err: err}
		}
		bin = exe
	}
	// hostR/hostW are the host's ends; childR/childW are inherited.
	childR, hostW, err := os.Pipe()
	if err != nil {
		return nil, spawnFailedError{dest: dest, err: err}
	}
	hostR, childW, err := os.Pipe()
	if err != nil {
		_ = childR.Close()
		_ = hostW.Close()
		return nil, spawnFailedError{dest: dest, err: err}
	}

	args := append(append([]string{}, s.Args...), "--destination", dest)
	cmd := exec.Command(bin, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = []*os.File{childR, childW}
	cmd.Env = append(os.Environ(), s.Env...)
	if err := cmd.Start(); err != nil {
		for _, f := range []*os.File{childR, childW, hostR, hostW} {
			_ = f.Close()
		}
		return nil, spawnFailedError{dest: dest, err: fmt.Errorf("start %s: %w", bin, err)}
	}
	_ = childR.Close()
	_ = childW.Close()

	grace := s.Grace
	if grace <= 0 {
		grace = defaultStopGrace
	}
	log := zerolog.Nop()
	if s.Logger != nil {
		log = *s.Logger
	}
	p := &processWorker{
		dest:  dest,
		cmd:   cmd,
		conn:  ipc.NewConn(hostR, hostW),
		grace: grace,
		done:  make(chan struct{}),
		log:   log,
	}
	go func() {
		p.waitErr = cmd.Wait()
		_ = p.conn.Close()
		close(p.done)
	}()
	return p, nil
}

type processWorker struct {
	dest     string
	cmd      *exec.Cmd
	conn     *ipc.Conn
	grace    time.Duration
	done     chan struct{}
	waitErr  error
	stopOnce sync.Once
	log      zerolog.Logger
}

func (p *processWorker) PID() int                   { return p.cmd.Process.Pid }
func (p *processWorker) Send(m ipc.Message) error   { return p.conn.Send(m) }
func (p *processWorker) Recv() (ipc.Message, error) { return p.conn.Recv() }

func (p *processWorker) Wait() error {
	<-p.done
	return p.waitErr
}

// Stop gives the worker Grace to exit after a shutdown message, then sends
// SIGTERM, then kills it.
func (p *processWorker) Stop() {
	p.stopOnce.Do(func() {
		go func() {
			select {
			case <-p.done:
				return
			case <-time.After(p.grace):
			}
			p.log.Warn().Str("destination", p.dest).Int("pid", p.PID()).Msg("queue event=worker_terminate")
			_ = p.cmd.Process.Signal(syscall.SIGTERM)
			select {
			case <-p.done:
			case <-time.After(killAfterTerm):
				_ = p.cmd.Process.Kill()
			}
		}()
	})
}
