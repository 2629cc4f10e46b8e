package appconfig

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce coalesces the burst of events an editor save produces.
const DefaultDebounce = 250 * time.Millisecond

// WatchOption configures Watch.
type WatchOption func(*watchOptions)

type watchOptions struct {
	debounce time.Duration
	log      zerolog.Logger
}

// WithDebounce sets the quiet period before a reload.
func WithDebounce(d time.Duration) WatchOption {
	return func(o *watchOptions) { o.debounce = d }
}

// WithWatchLogger sets the logger for reload failures.
func WithWatchLogger(l zerolog.Logger) WatchOption {
	return func(o *watchOptions) { o.log = l }
}

// Watch reloads p whenever its options or settings file changes and hands
// the fresh profile to onChange. The directory is watched rather than the
// files so that rename-on-save editors keep working. Watch returns once the
// watcher is installed; it stops when ctx is done. A reload that fails is
// logged and the previous profile stays in effect.
func Watch(ctx context.Context, p *Profile, onChange func(*Profile), opts ...WatchOption) error {
	o := watchOptions{debounce: DefaultDebounce, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(p.ConfigDir()); err != nil {
		_ = w.Close()
		return err
	}

	app, dir := p.Application, p.Dir
	watched := map[string]bool{
		filepath.Clean(p.OptionsPath()):  true,
		filepath.Clean(p.SettingsPath()): true,
	}

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	reload := func() {
		np, err := LoadDir(app, dir)
		if err != nil {
			o.log.Warn().Err(err).Str("application", app).Msg("appconfig event=reload_failed")
			return
		}
		o.log.Info().Str("application", app).Int("options", len(np.Options)).Msg("appconfig event=reloaded")
		onChange(np)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				mu.Lock()
				if timer != nil {
					timer.Stop()
				}
				mu.Unlock()
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !watched[filepath.Clean(ev.Name)] {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
					continue
				}
				mu.Lock()
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(o.debounce, reload)
				mu.Unlock()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				o.log.Warn().Err(err).Str("application", app).Msg("appconfig event=watch_error")
			}
		}
	}()
	return nil
}
