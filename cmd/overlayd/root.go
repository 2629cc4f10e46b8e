package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"overlayd/internal/config"
	"overlayd/internal/logging"
	"overlayd/internal/resolver"
)

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configPath  string
	baseDir     string
	packagesDir string
	logLevel    string
	logFormat   string
}

func buildRootCmd() *cobra.Command {
	rf := &rootFlags{}
	root := &cobra.Command{
		Use:           "overlayd",
		Short:         "Plugin discovery and wheel-result dispatch for the spin-the-wheel overlay",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&rf.configPath, "config", "", "Config file (.yaml, .yml, .json or .toml)")
	pf.StringVar(&rf.baseDir, "base-dir", "", "Overlay base directory (defaults OVERLAYD_BASE_DIR or the working directory)")
	pf.StringVar(&rf.packagesDir, "packages-dir", "", "Installed-package directory relative to the base (default node_modules)")
	pf.StringVar(&rf.logLevel, "log-level", "", "Log level: debug|info|warn|error")
	pf.StringVar(&rf.logFormat, "log-format", "", "Log format: console|json")

	root.AddCommand(
		buildServeCmd(rf),
		buildWorkerCmd(rf),
		buildPluginsCmd(rf),
		buildResolveCmd(rf),
		buildAppsCmd(rf),
	)
	return root
}

// load merges the config file, OVERLAYD_* variables and explicitly set
// flags, in increasing priority, then fills defaults.
func (rf *rootFlags) load(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	if rf.configPath != "" {
		loaded, err := config.Load(rf.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("base-dir") {
		cfg.BaseDir = rf.baseDir
	}
	if flags.Changed("packages-dir") {
		cfg.PackagesDir = rf.packagesDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = rf.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = rf.logFormat
	}
	return cfg.Defaults(), nil
}

func newLogger(cfg config.Config) (zerolog.Logger, error) {
	return logging.New(cfg.LogLevel, cfg.LogFormat)
}

func newResolver(cfg config.Config, log zerolog.Logger) (*resolver.Resolver, error) {
	opts := []resolver.Option{resolver.WithLogger(log)}
	if cfg.PackagesDir != "" {
		opts = append(opts, resolver.WithPackagesDir(cfg.PackagesDir))
	}
	return resolver.New(cfg.BaseDir, opts...)
}
