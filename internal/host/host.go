// Package host ties path resolution, the active application profile and the
// queue manager together. It is the service behind the HTTP control surface.
package host

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"overlayd/internal/appconfig"
	"overlayd/internal/autospin"
	"overlayd/internal/queue"
	"overlayd/internal/resolver"
	"overlayd/pkg/types"
)

// Config wires a Host.
type Config struct {
	Resolver *resolver.Resolver
	Manager  *queue.Manager
	// Spinner defaults to an autospin.Spinner over Manager.
	Spinner *autospin.Spinner
	Logger  *zerolog.Logger
}

// Host is safe for concurrent use.
type Host struct {
	res  *resolver.Resolver
	mgr  *queue.Manager
	spin *autospin.Spinner
	log  zerolog.Logger
	now  func() time.Time

	mu      sync.RWMutex
	profile *appconfig.Profile
}

func New(cfg Config) *Host {
	h := &Host{
		res:  cfg.Resolver,
		mgr:  cfg.Manager,
		spin: cfg.Spinner,
		log:  zerolog.Nop(),
		now:  time.Now,
	}
	if cfg.Logger != nil {
		h.log = *cfg.Logger
	}
	if h.spin == nil {
		h.spin = autospin.New(h.mgr, autospin.WithLogger(h.log))
	}
	return h
}

// LoadProfile makes application the active profile: its options seed the
// queue table and the settings of every application they reference are
// pushed to workers.
func (h *Host) LoadProfile(application string) error {
	p, err := appconfig.Load(h.res, application)
	if err != nil {
		return err
	}
	h.apply(p)
	return nil
}

func (h *Host) apply(p *appconfig.Profile) {
	h.mu.Lock()
	h.profile = p
	h.mu.Unlock()
	h.mgr.SetOptions(p.Options)
	h.mgr.SetApplicationConfigs(h.applicationConfigs(p))
	h.log.Info().Str("application", p.Application).Int("options", len(p.Options)).Msg("host event=profile_loaded")
}

// applicationConfigs collects settings for the active application plus any
// other application its options target. Unresolvable ones are skipped.
func (h *Host) applicationConfigs(p *appconfig.Profile) map[string]any {
	out := p.ApplicationConfigs()
	for _, o := range p.Options {
		app := strings.TrimSpace(o.Application)
		if app == "" {
			continue
		}
		if _, ok := out[app]; ok {
			continue
		}
		dir, ok := h.res.ResolveApplicationPath(app)
		if !ok {
			h.log.Debug().Str("application", app).Msg("host event=settings_skipped reason=unresolved")
			continue
		}
		s, err := appconfig.LoadSettings(dir)
		if err != nil {
			h.log.Warn().Err(err).Str("application", app).Msg("host event=settings_unreadable")
			continue
		}
		out[app] = s
	}
	return out
}

// Watch reloads the active profile whenever its files change, until ctx is
// done.
func (h *Host) Watch(ctx context.Context) error {
	h.mu.RLock()
	p := h.profile
	h.mu.RUnlock()
	if p == nil {
		return errNoProfile
	}
	return appconfig.Watch(ctx, p, h.apply, appconfig.WithWatchLogger(h.log))
}

// StartAutoSpin schedules random spins; an empty schedule is a no-op.
func (h *Host) StartAutoSpin(schedule string) error {
	if strings.TrimSpace(schedule) == "" {
		return nil
	}
	return h.spin.Start(schedule)
}

// Close stops auto-spin and every worker.
func (h *Host) Close() {
	h.spin.Stop()
	h.mgr.StopQueueWorkers()
}

// Ready reports whether a profile is loaded.
func (h *Host) Ready() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.profile != nil
}

func (h *Host) Plugins() types.PluginsResponse {
	reg := h.res.Registry()
	return types.PluginsResponse{
		Views:        reg.Records(types.RoleView),
		Controllers:  reg.Records(types.RoleController),
		Applications: reg.Records(types.RoleApplication),
		ScanEnabled:  h.res.ScanEnabled(),
	}
}

func (h *Host) Resolve(role types.PluginRole, id string) (string, bool) {
	return h.res.Resolve(role, id)
}

func (h *Host) Applications() []string {
	return h.res.ListApplicationNames()
}

// Options returns the active profile's options; empty before a profile loads.
func (h *Host) Options() types.OptionsResponse {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.profile == nil {
		return types.OptionsResponse{Options: []types.WheelOption{}}
	}
	opts := append([]types.WheelOption{}, h.profile.Options...)
	return types.OptionsResponse{Application: h.profile.Application, Options: opts}
}

// SubmitResult dispatches a wheel outcome. A named result is looked up in
// the active options; its config and command may be overridden by req.
func (h *Host) SubmitResult(req types.ResultRequest) (types.DispatchResponse, error) {
	var o types.WheelOption
	if name := strings.TrimSpace(req.Name); name != "" {
		h.mu.RLock()
		p := h.profile
		h.mu.RUnlock()
		if p == nil {
			return types.DispatchResponse{}, errNoProfile
		}
		found, ok := p.Option(name)
		if !ok {
			return types.DispatchResponse{}, errUnknownOption(name)
		}
		o = found
	} else {
		if err := h.checkExplicit(req.Application, req.Controller); err != nil {
			return types.DispatchResponse{}, err
		}
		o.Application = req.Application
		o.Controller = req.Controller
		// Workers dedupe on result name plus timestamp, so an unnamed
		// result is named after its command when it has one.
		o.Name = strings.TrimSpace(req.Command)
		if o.Name == "" {
			o.Name, _ = types.Destination(req.Application, req.Controller)
		}
	}
	if req.Config != nil {
		o.Config = req.Config
	}
	if req.Command != "" {
		o.Command = req.Command
	}
	r, dest, err := h.mgr.DispatchOption(o, h.now())
	if err != nil {
		return types.DispatchResponse{}, err
	}
	return types.DispatchResponse{Destination: dest, Item: r}, nil
}

// checkExplicit admits an unnamed result only when its controller has a
// loadable executor and its application is one the resolver or the active
// options know. Each admitted pair may cost a worker process.
func (h *Host) checkExplicit(app, ctrl string) error {
	if _, ok := types.Destination(app, ctrl); !ok {
		return queue.ErrBadOption("result needs an application and a controller")
	}
	if _, ok := h.res.ResolveExecutorPath(ctrl); !ok {
		return statusError{msg: "unknown controller: " + ctrl, code: http.StatusNotFound}
	}
	if _, ok := h.res.ResolveApplicationPath(app); ok {
		return nil
	}
	h.mu.RLock()
	p := h.profile
	h.mu.RUnlock()
	if p != nil {
		for _, o := range p.Options {
			if strings.EqualFold(strings.TrimSpace(o.Application), strings.TrimSpace(app)) {
				return nil
			}
		}
	}
	return statusError{msg: "unknown application: " + app, code: http.StatusNotFound}
}

// Spin picks a random enabled, dispatchable option and dispatches it.
func (h *Host) Spin() (types.DispatchResponse, error) {
	r, dest, err := h.spin.SpinOnce()
	if err != nil {
		return types.DispatchResponse{}, err
	}
	return types.DispatchResponse{Destination: dest, Item: r}, nil
}

func (h *Host) Queues() types.QueuesResponse {
	return h.mgr.Status()
}

// MissingControllers lists the controllers the active options reference that
// the resolver cannot find.
func (h *Host) MissingControllers() []string {
	h.mu.RLock()
	p := h.profile
	h.mu.RUnlock()
	if p == nil {
		return nil
	}
	var out []string
	for _, c := range p.ControllerScripts() {
		if _, ok := h.res.ResolveExecutorPath(c); !ok {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

// statusError carries the HTTP status the control surface should answer with.
type statusError struct {
	msg  string
	code int
}

func (e statusError) Error() string   { return e.msg }
func (e statusError) StatusCode() int { return e.code }

var errNoProfile = statusError{msg: "no application profile loaded", code: http.StatusServiceUnavailable}

func errUnknownOption(name string) error {
	return statusError{msg: "unknown wheel option: " + name, code: http.StatusNotFound}
}
