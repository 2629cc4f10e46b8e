package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"overlayd/internal/ipc"
	"overlayd/internal/worker"
)

// buildWorkerCmd is what the host spawns per destination. It is not meant to
// be run by hand: the channel arrives on inherited descriptors 3 and 4.
func buildWorkerCmd(rf *rootFlags) *cobra.Command {
	var destination string
	cmd := &cobra.Command{
		Use:    "worker",
		Short:  "Serve one destination's queue (spawned by serve)",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if destination == "" {
				return errors.New("--destination is required")
			}
			cfg, err := rf.load(cmd)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			log = log.With().Int("pid", os.Getpid()).Logger()

			conn, err := ipc.Inherited()
			if err != nil {
				return err
			}
			defer conn.Close()

			res, err := newResolver(cfg, log)
			if err != nil {
				return err
			}
			execs := worker.NewLuaExecutors(res, log, worker.WithExecLogger(log))
			defer execs.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			// The host stops workers with a shutdown message; SIGINT from
			// the terminal reaches the whole process group and is ignored.
			signal.Ignore(os.Interrupt)
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM)
			defer stop()
			err = worker.Run(ctx, conn, worker.Options{Destination: destination, Executors: execs, Logger: &log})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&destination, "destination", "", "Destination this worker serves, <application>-<controller>")
	return cmd
}
