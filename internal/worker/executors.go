package worker

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// ExecutorSource hands out the executor for a controller.
type ExecutorSource interface {
	Executor(controller string) (Executor, error)
	Close() error
}

// ExecutorResolver locates a controller's executor script.
type ExecutorResolver interface {
	ResolveExecutorPath(name string) (string, bool)
}

// LuaExecutors loads one LuaExecutor per controller on first use and keeps
// it for the life of the worker.
type LuaExecutors struct {
	resolver ExecutorResolver
	opts     []LuaOption
	log      zerolog.Logger

	mu    sync.Mutex
	cache map[string]Executor
}

// NewLuaExecutors builds a source backed by r.
func NewLuaExecutors(r ExecutorResolver, log zerolog.Logger, opts ...LuaOption) *LuaExecutors {
	return &LuaExecutors{resolver: r, opts: opts, log: log, cache: map[string]Executor{}}
}

func (s *LuaExecutors) Executor(controller string) (Executor, error) {
	key := strings.ToLower(strings.TrimSpace(controller))
	if key == "" {
		return nil, fmt.Errorf("item has no controller")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.cache[key]; ok {
		return e, nil
	}
	script, ok := s.resolver.ResolveExecutorPath(key)
	if !ok {
		return nil, fmt.Errorf("controller %q not found", controller)
	}
	e, err := NewLuaExecutor(script, append([]LuaOption{WithExecLogger(s.log.With().Str("controller", key).Logger())}, s.opts...)...)
	if err != nil {
		return nil, err
	}
	s.log.Debug().Str("controller", key).Str("script", script).Msg("worker event=executor_loaded")
	s.cache[key] = e
	return e, nil
}

func (s *LuaExecutors) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.cache {
		_ = e.Close()
		delete(s.cache, k)
	}
	return nil
}
