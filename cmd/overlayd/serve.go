package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"overlayd/internal/config"
	"overlayd/internal/host"
	"overlayd/internal/httpapi"
	"overlayd/internal/queue"
)

func buildServeCmd(rf *rootFlags) *cobra.Command {
	var (
		addr        string
		application string
		autoSpin    string
		watch       bool
		corsOrigins []string
		maxPending  int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the host: discovery, dispatch and the HTTP control surface",
		Example: "  overlayd serve --base-dir ~/overlay --application skyrim\n" +
			"  overlayd serve --config overlayd.yaml --auto-spin '@every 5m'",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rf.load(cmd)
			if err != nil {
				return err
			}
			f := cmd.Flags()
			if f.Changed("addr") {
				cfg.Addr = addr
			}
			if f.Changed("application") {
				cfg.Application = application
			}
			if f.Changed("auto-spin") {
				cfg.AutoSpin = autoSpin
			}
			if f.Changed("watch") {
				cfg.WatchOptions = watch
			}
			if f.Changed("cors-origin") {
				cfg.CORSOrigins = corsOrigins
			}
			if f.Changed("max-pending") {
				cfg.MaxPending = maxPending
			}
			return serve(cmd.Context(), rf, cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", config.DefaultAddr, "HTTP listen address")
	cmd.Flags().StringVar(&application, "application", "", "Application profile whose wheel options are served")
	cmd.Flags().StringVar(&autoSpin, "auto-spin", "", "Cron schedule for automatic spins, e.g. '@every 5m'")
	cmd.Flags().BoolVar(&watch, "watch", false, "Reload the options file when it changes")
	cmd.Flags().StringSliceVar(&corsOrigins, "cors-origin", nil, "Allowed CORS origin (repeatable); enables CORS")
	cmd.Flags().IntVar(&maxPending, "max-pending", config.DefaultMaxPending, "Items held per worker until it reports ready")
	return cmd
}

func serve(parent context.Context, rf *rootFlags, cfg config.Config) error {
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := newResolver(cfg, log)
	if err != nil {
		return err
	}
	log.Info().Str("base_dir", res.BaseDir()).Bool("scan", res.ScanEnabled()).Int("packages", res.Registry().Len()).Msg("overlayd event=discovery_done")

	workerArgs := []string{"worker", "--base-dir", res.BaseDir(), "--log-level", cfg.LogLevel, "--log-format", cfg.LogFormat}
	if cfg.PackagesDir != "" {
		workerArgs = append(workerArgs, "--packages-dir", cfg.PackagesDir)
	}
	if rf.configPath != "" {
		workerArgs = append(workerArgs, "--config", rf.configPath)
	}
	spawner := &queue.ProcessSpawner{
		Args:   workerArgs,
		Grace:  time.Duration(cfg.ShutdownGraceMS) * time.Millisecond,
		Logger: &log,
	}
	mgr := queue.New(queue.Config{Spawner: spawner, MaxPending: cfg.MaxPending, Logger: &log})
	h := host.New(host.Config{Resolver: res, Manager: mgr, Logger: &log})
	defer h.Close()

	if cfg.Application != "" {
		if err := h.LoadProfile(cfg.Application); err != nil {
			log.Error().Err(err).Str("application", cfg.Application).Msg("overlayd event=profile_failed")
		} else if missing := h.MissingControllers(); len(missing) > 0 {
			log.Warn().Strs("controllers", missing).Msg("overlayd event=controllers_missing")
		}
	} else {
		log.Warn().Msg("overlayd event=no_application; /readyz stays loading until one is configured")
	}
	if cfg.WatchOptions && h.Ready() {
		go func() {
			if err := h.Watch(ctx); err != nil {
				log.Error().Err(err).Msg("overlayd event=watch_failed")
			}
		}()
	}
	if err := h.StartAutoSpin(cfg.AutoSpin); err != nil {
		return err
	}

	httpapi.SetLogger(log)
	if len(cfg.CORSOrigins) > 0 {
		httpapi.SetCORSOptions(true, cfg.CORSOrigins, []string{"GET", "POST", "OPTIONS"}, []string{"Content-Type"})
	}
	srv := &http.Server{Addr: cfg.Addr, Handler: httpapi.NewMux(h), ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("overlayd event=listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("overlayd event=shutdown_error")
	}
	log.Info().Msg("overlayd event=stopped")
	return nil
}
