package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"lureingest/internal/domain"
	"lureingest/internal/pipeline"
)

// Runner starts batch runs and remembers the last one.
type Runner interface {
	RunWithID(ctx context.Context, runID string) (pipeline.Summary, error)
	LastSummary() (pipeline.Summary, bool)
}

// App carries the dependencies of the HTTP handlers.
type App struct {
	Queue   domain.QueueAdmin
	Runner  Runner
	Sources []string
	Logger  zerolog.Logger
	// BaseCtx bounds background runs started over HTTP.
	BaseCtx context.Context

	running atomic.Bool
	wg      sync.WaitGroup
	runs    chan struct{}
}

func NewApp(ctx context.Context, queue domain.QueueAdmin, runner Runner, sources []string, logger zerolog.Logger) *App {
	return &App{Queue: queue, Runner: runner, Sources: sources, Logger: logger, BaseCtx: ctx}
}

// Wait blocks until every run started over HTTP has returned.
func (a *App) Wait() {
	a.wg.Wait()
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, msg string) {
	a.json(w, code, map[string]string{"error": msg})
}
