package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"lureingest/internal/http/handlers"
	"lureingest/internal/middleware"
)

// RouterOptions configures NewRouter. StaticDir is empty when images are not
// stored on the local filesystem. AdminToken guards the POST endpoints.
type RouterOptions struct {
	StaticDir      string
	RunsPerMinute  int
	RequestTimeout time.Duration
	AdminToken     string
	AllowedOrigins []string
}

func NewRouter(app *handlers.App, logger zerolog.Logger, opts RouterOptions) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimw.RealIP, chimw.Recoverer, middleware.Logger(logger))
	if len(opts.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(opts.AllowedOrigins))
	}

	r.Get("/healthz", app.Health)
	r.Get("/v1/healthz", app.Health)

	r.Route("/v1", func(r chi.Router) {
		if opts.RequestTimeout > 0 {
			r.Use(chimw.Timeout(opts.RequestTimeout))
		}
		admin := middleware.RequireToken(opts.AdminToken)
		r.Get("/queue", app.QueueCounts)
		r.With(admin).Post("/queue", app.Enqueue)
		r.Get("/runs/last", app.LastRun)
		r.With(admin, middleware.RateLimit(max(opts.RunsPerMinute, 1), time.Minute)).Post("/runs", app.StartRun)
	})

	if opts.StaticDir != "" {
		r.Handle("/static/*", handlers.Static("/static/", opts.StaticDir))
	}

	return r
}
