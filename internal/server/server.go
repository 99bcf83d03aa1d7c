// Package server exposes the marketplace views and the intent relay over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rewired-gh/carmarket/internal/intent"
	"github.com/rewired-gh/carmarket/internal/logger"
	"github.com/rewired-gh/carmarket/internal/metrics"
	"github.com/rewired-gh/carmarket/internal/models"
)

// Views is the read side of the snapshot store.
type Views interface {
	GetListings() ([]models.Listing, error)
	GetListing(id string) (*models.Listing, error)
	GetActivity() ([]models.ActivityItem, error)
	GetStats() (models.MarketStats, error)
}

// Owners looks up the cars held by an address.
type Owners interface {
	GetOwnedCars(ctx context.Context, owner, structType string, limit int) ([]models.OwnedCar, error)
}

// Status reports the syncer's progress.
type Status interface {
	Loading() bool
	Refreshes() int64
}

type Options struct {
	Views      Views
	Owners     Owners
	Status     Status
	Tracker    *intent.Tracker
	Metrics    *metrics.Metrics
	Contract   models.Contract
	Limits     intent.Limits
	OwnedLimit int
	Timeout    time.Duration
}

type Server struct {
	views      Views
	owners     Owners
	status     Status
	tracker    *intent.Tracker
	metrics    *metrics.Metrics
	contract   models.Contract
	limits     intent.Limits
	ownedLimit int
	timeout    time.Duration
	now        func() time.Time
}

func New(opts Options) *Server {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.OwnedLimit <= 0 {
		opts.OwnedLimit = 50
	}
	return &Server{
		views:      opts.Views,
		owners:     opts.Owners,
		status:     opts.Status,
		tracker:    opts.Tracker,
		metrics:    opts.Metrics,
		contract:   opts.Contract,
		limits:     opts.Limits,
		ownedLimit: opts.OwnedLimit,
		timeout:    opts.Timeout,
		now:        time.Now,
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(middleware.Timeout(s.timeout))

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/listings", s.handleListings)
		r.Get("/activity", s.handleActivity)
		r.Get("/stats", s.handleStats)
		r.Get("/models", s.handleModels)
		r.Get("/cars", s.handleCars)

		r.Route("/intents", func(r chi.Router) {
			r.Post("/mint", s.handleMint)
			r.Post("/list", s.handleList)
			r.Post("/buy", s.handleBuy)
			r.Get("/{id}", s.handleGetIntent)
			r.Post("/{id}/result", s.handleResult)
		})
	})

	return r
}

// requestLogger logs every request once it completes.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.Debug("%s %s -> %d (%d bytes) in %v",
			r.Method, r.URL.RequestURI(), ww.Status(), ww.BytesWritten(), time.Since(start))
	})
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}
