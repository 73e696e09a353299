package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"lureingest/internal/adapter/memstore"
	"lureingest/internal/adapter/repo"
	"lureingest/internal/adapter/sqlite"
	"lureingest/internal/domain"
	"lureingest/internal/extract"
	"lureingest/internal/imaging"
	"lureingest/internal/infra"
	"lureingest/internal/ingest"
	"lureingest/internal/pipeline"
	"lureingest/internal/rebuild"
	"lureingest/internal/retry"
	"lureingest/internal/sqlinline"
	"lureingest/internal/storage"
)

// env is the loaded configuration plus the logger every command shares.
type env struct {
	cfg    *infra.Config
	logger zerolog.Logger
}

func loadEnv() (*env, error) {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: infra.NewLogger(cfg.AppEnv)}, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// stores is the queue and catalog backend selected by DATABASE_URL.
type stores struct {
	driver  string
	queue   domain.TaskQueue
	admin   domain.QueueAdmin
	catalog domain.Catalog
	migrate func(context.Context) error
	close   func()
}

func openStores(ctx context.Context, e *env) (*stores, error) {
	driver, dsn, err := infra.ParseDatabaseURL(e.cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	switch driver {
	case infra.DriverPostgres:
		pool, err := infra.NewDBPool(ctx, e.cfg)
		if err != nil {
			return nil, err
		}
		runner := infra.NewSQLRunner(pool, e.logger)
		queue := repo.NewQueueRepository(runner)
		return &stores{
			driver:  driver,
			queue:   queue,
			admin:   queue,
			catalog: repo.NewCatalogRepository(runner),
			migrate: func(ctx context.Context) error {
				_, err := runner.Exec(ctx, sqlinline.QSchemaPostgres)
				return err
			},
			close: pool.Close,
		}, nil
	case infra.DriverSQLite:
		st, err := sqlite.Open(dsn, e.logger)
		if err != nil {
			return nil, err
		}
		// The schema is idempotent and a fresh file has none.
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
		return &stores{
			driver:  driver,
			queue:   st,
			admin:   st,
			catalog: st,
			migrate: st.Migrate,
			close:   func() { _ = st.Close() },
		}, nil
	default:
		e.logger.Warn().Msg("lureingest: in-memory store, nothing is persisted")
		queue := memstore.NewQueue()
		return &stores{
			driver:  driver,
			queue:   queue,
			admin:   queue,
			catalog: memstore.NewCatalog(),
			migrate: func(context.Context) error { return nil },
			close:   func() {},
		}, nil
	}
}

// openObjects builds the image store. staticDir is set when the store writes
// to the local filesystem so the HTTP server can serve it.
func openObjects(cfg *infra.Config) (objects domain.ObjectStore, staticDir string, err error) {
	switch cfg.StorageDriver {
	case infra.StorageDriverHTTP:
		st, err := storage.NewHTTPStore(storage.HTTPStoreOptions{
			UploadURL: cfg.StorageUploadURL,
			BaseURL:   cfg.StorageBaseURL,
			Token:     cfg.StorageUploadToken,
		})
		if err != nil {
			return nil, "", err
		}
		return st, "", nil
	default:
		storagePath := cfg.StoragePath
		if !filepath.IsAbs(storagePath) {
			if abs, err := filepath.Abs(storagePath); err == nil {
				storagePath = abs
			}
		}
		st, err := storage.NewFileStore(storagePath, cfg.StorageBaseURL)
		if err != nil {
			return nil, "", fmt.Errorf("configure storage: %w", err)
		}
		return st, st.BasePath(), nil
	}
}

// pipelineParts are the long-lived pieces a run needs besides the stores.
type pipelineParts struct {
	sources  []extract.SourceConfig
	registry *extract.Registry
	relocate *imaging.Relocator
	signal   pipeline.Signaler
}

func buildPipelineParts(e *env, objects domain.ObjectStore) (*pipelineParts, error) {
	sources, err := extract.LoadSources(e.cfg.SourcesFile)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: e.cfg.HTTPTimeout}
	registry, err := extract.Build(sources, extract.BuildOptions{
		Client:    client,
		UserAgent: e.cfg.UserAgent,
		Headless:  e.cfg.HeadlessBrowser,
		Logger:    e.logger,
	})
	if err != nil {
		return nil, err
	}

	relocator := imaging.NewRelocator(objects, imaging.Options{
		UserAgent:    e.cfg.UserAgent,
		MaxDimension: e.cfg.ImageMaxDim,
		Quality:      e.cfg.ImageQuality,
		Referers:     extract.Referers(sources),
		Client:       client,
		Retry: retry.Policy{
			MaxAttempts: e.cfg.ImageAttempts,
			Delay:       time.Second,
			MaxDelay:    10 * time.Second,
			Backoff:     retry.Exponential,
		},
	}, e.logger)

	parts := &pipelineParts{sources: sources, registry: registry, relocate: relocator}
	webhook := rebuild.NewWebhook(rebuild.Options{
		URL:         e.cfg.RebuildURL,
		MaxAttempts: e.cfg.RebuildAttempts,
		Backoff:     e.cfg.RebuildBackoff,
	}, e.logger)
	if webhook.Enabled() {
		parts.signal = webhook
	} else {
		e.logger.Info().Msg("lureingest: REBUILD_WEBHOOK_URL not set, rebuild signal disabled")
	}
	return parts, nil
}

func (p *pipelineParts) sourceIDs() []string {
	ids := make([]string, 0, len(p.sources))
	for _, s := range p.sources {
		ids = append(ids, s.ID)
	}
	return ids
}

func (p *pipelineParts) close() {
	_ = p.registry.Close()
}

func newOrchestrator(e *env, queue domain.TaskQueue, catalog domain.Catalog, parts *pipelineParts, maxItems int) *pipeline.Orchestrator {
	if maxItems <= 0 {
		maxItems = e.cfg.MaxItemsPerRun
	}
	return pipeline.New(pipeline.Deps{
		Queue:    queue,
		Adapters: parts.registry,
		Images:   parts.relocate,
		Writer:   ingest.NewWriter(catalog, e.logger),
		Signal:   parts.signal,
		Logger:   e.logger,
	}, pipeline.Options{
		MaxItems:          maxItems,
		ItemDelay:         e.cfg.ItemDelay,
		SourceParallelism: e.cfg.SourceParallel,
		NoteLimit:         e.cfg.NoteMaxLength,
	})
}

// readOnlyQueue lists real pending items but never records a transition.
type readOnlyQueue struct {
	domain.TaskQueue
}

func (readOnlyQueue) SetStatus(context.Context, string, domain.WorkStatus, string) error {
	return nil
}
