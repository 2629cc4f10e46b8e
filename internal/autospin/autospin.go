// Package autospin spins the wheel on a schedule: each tick picks a random
// enabled, dispatchable option and dispatches it like a manual spin.
package autospin

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"overlayd/pkg/types"
)

// ErrNoOptions is returned when no enabled option names both an
// application and a controller.
var ErrNoOptions = errors.New("no dispatchable wheel options")

// Dispatcher is the part of the queue manager a spin needs.
type Dispatcher interface {
	Options() []types.WheelOption
	DispatchOption(o types.WheelOption, at time.Time) (types.WheelResult, string, error)
}

// Spinner owns the cron scheduler behind auto-spin.
type Spinner struct {
	d    Dispatcher
	log  zerolog.Logger
	pick func(n int) int
	now  func() time.Time

	mu       sync.Mutex
	cron     *cron.Cron
	entry    cron.EntryID
	schedule string
}

// Option configures a Spinner.
type Option func(*Spinner)

// WithLogger sets the spinner's logger.
func WithLogger(l zerolog.Logger) Option { return func(s *Spinner) { s.log = l } }

// WithPicker replaces the random index source; pick(n) must return [0,n).
func WithPicker(pick func(n int) int) Option { return func(s *Spinner) { s.pick = pick } }

// WithClock replaces time.Now for result timestamps.
func WithClock(now func() time.Time) Option { return func(s *Spinner) { s.now = now } }

func New(d Dispatcher, opts ...Option) *Spinner {
	s := &Spinner{
		d:    d,
		log:  zerolog.Nop(),
		pick: rand.Intn,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SpinOnce picks a random enabled option that has a destination and
// dispatches it.
func (s *Spinner) SpinOnce() (types.WheelResult, string, error) {
	var candidates []types.WheelOption
	for _, o := range s.d.Options() {
		if _, ok := o.Destination(); o.Enabled && ok {
			candidates = append(candidates, o)
		}
	}
	if len(candidates) == 0 {
		return types.WheelResult{}, "", ErrNoOptions
	}
	o := candidates[s.pick(len(candidates))]
	return s.d.DispatchOption(o, s.now())
}

// Start schedules SpinOnce using a standard cron expression or a descriptor
// such as "@every 5m". Starting again replaces the previous schedule.
func (s *Spinner) Start(schedule string) error {
	sched, err := cron.ParseStandard(schedule)
	if err != nil {
		return fmt.Errorf("auto-spin schedule %q: %w", schedule, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		s.cron = cron.New()
		s.cron.Start()
	} else {
		s.cron.Remove(s.entry)
	}
	s.entry = s.cron.Schedule(sched, cron.FuncJob(s.tick))
	s.schedule = schedule
	s.log.Info().Str("schedule", schedule).Msg("autospin event=scheduled")
	return nil
}

// Schedule returns the active schedule, or "" when stopped.
func (s *Spinner) Schedule() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedule
}

// Stop cancels the schedule and waits for a running spin to finish.
func (s *Spinner) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.schedule = ""
	s.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.log.Info().Msg("autospin event=stopped")
}

func (s *Spinner) tick() {
	r, dest, err := s.SpinOnce()
	if err != nil {
		s.log.Warn().Err(err).Msg("autospin event=spin_failed")
		return
	}
	s.log.Info().Str("result", r.Result).Str("destination", dest).Msg("autospin event=spun")
}
