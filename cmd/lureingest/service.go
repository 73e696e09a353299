package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	httpapi "lureingest/internal/http"
	"lureingest/internal/http/handlers"
	"lureingest/internal/infra"
	"lureingest/internal/pipeline"
)

const shutdownGrace = 15 * time.Second

// service is everything a long-running command holds open.
type service struct {
	env       *env
	stores    *stores
	parts     *pipelineParts
	orch      *pipeline.Orchestrator
	staticDir string
}

func openService(ctx context.Context, e *env) (*service, error) {
	st, err := openStores(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	objects, staticDir, err := openObjects(e.cfg)
	if err != nil {
		st.close()
		return nil, err
	}
	parts, err := buildPipelineParts(e, objects)
	if err != nil {
		st.close()
		return nil, err
	}
	return &service{
		env:       e,
		stores:    st,
		parts:     parts,
		orch:      newOrchestrator(e, st.queue, st.catalog, parts, 0),
		staticDir: staticDir,
	}, nil
}

func (s *service) close() {
	s.parts.close()
	s.stores.close()
}

// serveHTTP blocks until ctx is cancelled or the listener fails, then until
// any run started over HTTP has stopped.
func (s *service) serveHTTP(ctx context.Context) error {
	app := handlers.NewApp(ctx, s.stores.admin, s.orch, s.parts.sourceIDs(), s.env.logger)
	router := httpapi.NewRouter(app, s.env.logger, httpapi.RouterOptions{
		StaticDir:      s.staticDir,
		RunsPerMinute:  6,
		RequestTimeout: 30 * time.Second,
		AdminToken:     s.env.cfg.AdminToken,
		AllowedOrigins: s.env.cfg.CORSOrigins,
	})
	srv := infra.NewHTTPServer(s.env.cfg, router)
	s.env.logger.Info().Str("addr", srv.Addr()).Msg("lureingest: http listening")
	err := srv.Serve(ctx, shutdownGrace)
	app.Wait()
	return err
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the queue and run API, plus locally stored images",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	svc, err := openService(ctx, e)
	if err != nil {
		return err
	}
	defer svc.close()
	return svc.serveHTTP(ctx)
}

func logRunResult(logger zerolog.Logger, sum pipeline.Summary, err error) {
	if err != nil {
		logger.Error().Err(err).Str("run_id", sum.RunID).Msg("lureingest: run failed")
		return
	}
	logger.Info().
		Str("run_id", sum.RunID).
		Int("succeeded", sum.Succeeded).
		Int("errored", sum.Errored).
		Int("rows_inserted", sum.RowsInserted).
		Msg("lureingest: run complete")
}
