package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"lureingest/internal/pipeline"
)

var daemonFlags struct {
	schedule string
	http     bool
	runNow   bool
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run batches on a schedule until interrupted",
	RunE:  runDaemon,
}

func init() {
	f := daemonCmd.Flags()
	f.StringVar(&daemonFlags.schedule, "schedule", "", "Cron spec (default INGEST_SCHEDULE)")
	f.BoolVar(&daemonFlags.http, "http", false, "Also serve the HTTP API")
	f.BoolVar(&daemonFlags.runNow, "run-now", false, "Start a batch immediately instead of waiting for the first tick")
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	spec := daemonFlags.schedule
	if spec == "" {
		spec = e.cfg.IngestSchedule
	}
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	svc, err := openService(ctx, e)
	if err != nil {
		return err
	}
	defer svc.close()

	batch := func() {
		sum, err := svc.orch.Run(ctx)
		if errors.Is(err, pipeline.ErrRunInProgress) {
			e.logger.Info().Msg("lureingest: tick skipped, a run is active")
			return
		}
		logRunResult(e.logger, sum, err)
	}

	sched, err := newScheduler(spec, e.logger, batch)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sched.Start()
		e.logger.Info().Str("schedule", spec).Msg("lureingest: scheduler started")
		<-gctx.Done()
		<-sched.Stop().Done()
		return nil
	})
	if daemonFlags.runNow {
		g.Go(func() error {
			batch()
			return nil
		})
	}
	if daemonFlags.http {
		g.Go(func() error { return svc.serveHTTP(gctx) })
	}
	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// newScheduler registers job under spec. A tick that fires while the previous
// one is still running is skipped.
func newScheduler(spec string, logger zerolog.Logger, job func()) (*cron.Cron, error) {
	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(spec, job); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return c, nil
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
