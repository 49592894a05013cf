// Package api serves completed assessment runs to the dashboard over a
// read-only HTTP interface.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/sells-group/readiness-cli/internal/model"
	"github.com/sells-group/readiness-cli/internal/store"
)

// RunReader is the slice of the store the API reads from.
type RunReader interface {
	GetRun(ctx context.Context, runID string) (*model.AssessmentRun, error)
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.RunSummary, error)
	LatestCompletedRun(ctx context.Context, methodologyVersion string) (*model.AssessmentRun, error)
}

// Options configures cross-origin access and request throttling.
type Options struct {
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
}

// Server holds the API's dependencies.
type Server struct {
	runs    RunReader
	opts    Options
	limiter *rate.Limiter
	now     func() time.Time
}

// New returns a Server reading from runs. A non-positive RateLimitRPS
// disables throttling.
func New(runs RunReader, opts Options) *Server {
	s := &Server{
		runs: runs,
		opts: opts,
		now:  func() time.Time { return time.Now().UTC() },
	}
	if opts.RateLimitRPS > 0 {
		burst := opts.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), burst)
	}
	return s
}

// Routes returns the router with middleware and every endpoint mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins(),
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	if s.limiter != nil {
		r.Use(rateLimit(s.limiter))
	}

	r.Get("/health", s.health)
	r.Route("/api/v1/runs", func(r chi.Router) {
		r.Get("/", s.listRuns)
		r.Get("/latest", s.latestRun)
		r.Route("/{runID}", func(r chi.Router) {
			r.Get("/", s.getRun)
			r.Get("/countries/{code}", s.getCountry)
			r.Get("/export.csv", s.exportCSV)
			r.Get("/export.xlsx", s.exportXLSX)
		})
	})
	return r
}

func (s *Server) origins() []string {
	if len(s.opts.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return s.opts.AllowedOrigins
}
