package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"telemetry-chatbot/internal/handlers"
	"telemetry-chatbot/internal/metrics"
	"telemetry-chatbot/internal/middleware"
)

const defaultMaxBodyBytes = 64 * 1024

type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

func SetupRouter(r *chi.Mux, baseLogger *zap.Logger, queryHandler *handlers.QueryHandler, opts Options) {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 180 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}

	r.Use(metrics.Middleware)

	// base middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Retry-After", chimw.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer())                    // panic recovery
	r.Use(middleware.Timeout(opts.RequestTimeout))   // request timeout
	r.Use(middleware.MaxBodySize(opts.MaxBodyBytes)) // max body

	// routes
	r.Post("/query", queryHandler.Query)
	r.Post("/log", handlers.ClientLog)
	r.Get("/health", handlers.Health)

	r.Handle("/metrics", metrics.Handler())
}
