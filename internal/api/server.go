package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/snarg/whisper-remote/internal/config"
	"github.com/snarg/whisper-remote/internal/metrics"
)

// ServerOptions wires the relay server's collaborators. Optional fields may
// be left nil.
type ServerOptions struct {
	Config      *config.Config
	Transcriber Transcriber
	Tracker     JobTracker
	Live        LiveFeed
	DB          HealthChecker
	MQTT        ConnectionChecker
	Watcher     WatcherStatusFunc
	Version     string
	StartTime   time.Time
	Log         zerolog.Logger
}

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

func NewServer(opts ServerOptions) *Server {
	cfg := opts.Config
	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      NewRouter(opts),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: opts.Log,
	}
}

// NewRouter builds the HTTP handler tree.
func NewRouter(opts ServerOptions) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(opts.Log))
	r.Use(metrics.InstrumentHandler)
	r.Use(CORS)

	// Health and metrics: no auth
	health := NewHealthHandler(opts.DB, opts.MQTT, opts.Watcher, opts.Version, opts.StartTime)
	r.Get("/api/v1/health", health.ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	// Authenticated routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuth(opts.Config.AuthToken))
		NewTranscribeHandler(opts.Transcriber, opts.Tracker, opts.Config, opts.Log).Routes(r)
		NewEventsHandler(opts.Live).Routes(r)
	})

	return r
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
