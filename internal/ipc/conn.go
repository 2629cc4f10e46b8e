package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// Inherited descriptor numbers in the worker process. They are the first two
// entries of exec.Cmd.ExtraFiles on the host side.
const (
	HostToWorkerFD = 3
	WorkerToHostFD = 4
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("ipc: connection closed")

// Conn is one end of the channel. Send is safe for concurrent use; Recv must
// be called from a single goroutine.
type Conn struct {
	dec *json.Decoder

	mu      sync.Mutex
	enc     *json.Encoder
	closed  bool
	closers []io.Closer
}

// NewConn reads messages from r and writes them to w. Close closes whichever
// of r and w implement io.Closer.
func NewConn(r io.Reader, w io.Writer) *Conn {
	c := &Conn{dec: json.NewDecoder(r), enc: json.NewEncoder(w)}
	if rc, ok := r.(io.Closer); ok {
		c.closers = append(c.closers, rc)
	}
	if wc, ok := w.(io.Closer); ok {
		c.closers = append(c.closers, wc)
	}
	return c
}

// Inherited opens the worker's end of the channel from its extra descriptors.
func Inherited() (*Conn, error) {
	in := os.NewFile(HostToWorkerFD, "ipc-in")
	out := os.NewFile(WorkerToHostFD, "ipc-out")
	if in == nil || out == nil {
		return nil, fmt.Errorf("ipc descriptors %d/%d not inherited", HostToWorkerFD, WorkerToHostFD)
	}
	return NewConn(in, out), nil
}

// Send writes m as one line.
func (c *Conn) Send(m Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return c.enc.Encode(m)
}

// Recv blocks for the next message. It returns io.EOF once the peer closed
// its end.
func (c *Conn) Recv() (Message, error) {
	var m Message
	if err := c.dec.Decode(&m); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return m, io.EOF
		}
		return m, err
	}
	return m, nil
}

// Close closes the underlying pipes. It is idempotent.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	var errs []error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
