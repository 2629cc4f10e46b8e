// Package worker is the process that serves one destination's queue. It
// talks to the host only through the ipc channel and applies each item by
// running the item's controller executor.
package worker

import (
	"context"
	"errors"
	"io"
	"strconv"

	"github.com/rs/zerolog"

	"overlayd/internal/ipc"
	"overlayd/pkg/types"
)

// Channel is the worker's end of the ipc connection.
type Channel interface {
	Send(ipc.Message) error
	Recv() (ipc.Message, error)
}

// Options configures Run.
type Options struct {
	Destination string
	Executors   ExecutorSource
	Logger      *zerolog.Logger
}

type runner struct {
	dest      string
	ch        Channel
	executors ExecutorSource
	log       zerolog.Logger

	configured bool
	config     map[string]any
	backlog    []types.WheelResult
	seen       map[string]struct{}
}

// Run announces readiness, then serves messages until shutdown, until the
// host closes the channel, or until ctx is done. Items are held until the
// first set-config arrives and are then applied one at a time in arrival
// order. queue-empty is sent each time the backlog drains.
func Run(ctx context.Context, ch Channel, opts Options) error {
	r := &runner{
		dest:      opts.Destination,
		ch:        ch,
		executors: opts.Executors,
		log:       zerolog.Nop(),
		seen:      map[string]struct{}{},
	}
	if opts.Logger != nil {
		r.log = opts.Logger.With().Str("destination", opts.Destination).Logger()
	}

	msgs := make(chan ipc.Message, 64)
	recvErr := make(chan error, 1)
	go func() {
		defer close(msgs)
		for {
			m, err := ch.Recv()
			if err != nil {
				recvErr <- err
				return
			}
			msgs <- m
		}
	}()

	if err := ch.Send(ipc.WorkerReady()); err != nil {
		return err
	}
	r.log.Info().Msg("worker event=ready_sent")

	for {
		if r.configured && len(r.backlog) > 0 {
			// Keep reading between items so shutdown and config
			// changes are not stuck behind a long backlog.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case m, ok := <-msgs:
				if !ok {
					return r.closed(recvErr)
				}
				if done := r.dispatch(m); done {
					return nil
				}
			default:
				r.processNext(ctx)
			}
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-msgs:
			if !ok {
				return r.closed(recvErr)
			}
			if done := r.dispatch(m); done {
				return nil
			}
		}
	}
}

func (r *runner) closed(recvErr <-chan error) error {
	err := <-recvErr
	if errors.Is(err, io.EOF) {
		r.log.Info().Msg("worker event=host_closed")
		return nil
	}
	return err
}

// dispatch applies one host message; it reports true on shutdown.
func (r *runner) dispatch(m ipc.Message) bool {
	switch m.Type {
	case ipc.TypeSetConfig:
		r.config = m.Config
		if r.config == nil {
			r.config = map[string]any{}
		}
		if !r.configured {
			r.log.Info().Int("held", len(r.backlog)).Msg("worker event=configured")
		}
		r.configured = true
	case ipc.TypeAddItem:
		var item types.WheelResult
		if err := m.DecodeItem(&item); err != nil {
			r.log.Error().Err(err).Msg("worker event=item_invalid")
			return false
		}
		r.backlog = append(r.backlog, item)
	case ipc.TypeShutdown:
		r.log.Info().Int("abandoned", len(r.backlog)).Msg("worker event=shutdown")
		return true
	default:
		r.log.Debug().Str("type", string(m.Type)).Msg("worker event=unexpected_message")
	}
	return false
}

func (r *runner) processNext(ctx context.Context) {
	item := r.backlog[0]
	r.backlog = r.backlog[1:]
	r.process(ctx, item)
	if len(r.backlog) == 0 {
		if err := r.ch.Send(ipc.QueueEmpty()); err != nil {
			r.log.Warn().Err(err).Msg("worker event=queue_empty_send_failed")
		}
	}
}

func (r *runner) process(ctx context.Context, item types.WheelResult) {
	key := item.Result + "_" + strconv.FormatInt(item.Timestamp, 10)
	if _, dup := r.seen[key]; dup {
		r.log.Debug().Str("result", item.Result).Int64("timestamp", item.Timestamp).Msg("worker event=duplicate_skipped")
		return
	}
	log := r.log.With().Str("item", item.ID).Str("result", item.Result).Str("controller", item.Controller).Logger()
	if r.executors == nil {
		log.Error().Msg("worker event=item_failed reason=no_executors")
		return
	}
	exec, err := r.executors.Executor(item.Controller)
	if err != nil {
		log.Error().Err(err).Msg("worker event=item_failed")
		return
	}
	if err := exec.Handle(ctx, item, appSettings(r.config, item.Application)); err != nil {
		log.Error().Err(err).Msg("worker event=item_failed")
		return
	}
	r.seen[key] = struct{}{}
	log.Info().Msg("worker event=item_done")
}

// appSettings picks the item's application entry out of the snapshot.
func appSettings(snapshot map[string]any, app string) map[string]any {
	if s, ok := snapshot[app].(map[string]any); ok {
		return s
	}
	return map[string]any{}
}
