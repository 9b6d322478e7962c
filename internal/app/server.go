package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel"

	"github.com/goliatone/go-formwizard/components/intake"
	"github.com/goliatone/go-formwizard/internal/config"
	"github.com/goliatone/go-formwizard/pkg/openapi"
	"github.com/goliatone/go-formwizard/pkg/submit"
)

const tracerName = "github.com/goliatone/go-formwizard"

// Server hosts the intake component over HTTP.
type Server struct {
	cfg        config.Config
	logger     *slog.Logger
	component  *intake.Component
	handler    http.Handler
	routes     []string
	closeStore func() error
}

// NewServer opens the configured store and forms and mounts the intake routes
// next to the health and metrics endpoints.
func NewServer(cfg config.Config, logger *slog.Logger, reg *prometheus.Registry) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	forms, err := LoadForms(cfg.Forms.Dir)
	if err != nil {
		return nil, err
	}
	docs, closeStore, err := OpenStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	metrics, err := intake.NewMetrics(reg)
	if err != nil {
		_ = closeStore()
		return nil, err
	}

	router := http.NewServeMux()
	component, routes, err := intake.RegisterRoutes(router, cfg.HTTP.BasePath,
		intake.WithForms(forms),
		intake.WithStore(docs),
		intake.WithLogger(logger),
		intake.WithMetrics(metrics),
		intake.WithSessionTTL(cfg.Sessions.TTL),
		intake.WithSweepSchedule(cfg.Sessions.Sweep),
		intake.WithPipelineOptions(submit.WithTracer(otel.Tracer(tracerName))),
		intake.WithOpenAPI(openapi.Options{Title: "Form Wizard API", Version: "1.0.0"}),
	)
	if err != nil {
		_ = closeStore()
		return nil, err
	}

	router.Handle("GET /healthz", healthz())
	router.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	})

	return &Server{
		cfg:        cfg,
		logger:     logger,
		component:  component,
		handler:    c.Handler(router),
		routes:     routes,
		closeStore: closeStore,
	}, nil
}

// Handler returns the full middleware-wrapped router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Routes lists the registered intake route patterns.
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

// Component exposes the mounted intake component.
func (s *Server) Component() *intake.Component {
	return s.component
}

// Run serves until ctx is cancelled, then drains in-flight requests within
// the configured shutdown timeout and releases the store.
func (s *Server) Run(ctx context.Context) error {
	if err := s.component.StartSweeper(); err != nil {
		return fmt.Errorf("app: start session sweeper: %w", err)
	}
	defer s.component.StopSweeper()

	srv := &http.Server{Addr: s.cfg.HTTP.Addr, Handler: s.handler}
	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.HTTP.Addr, "base_path", s.cfg.HTTP.BasePath, "routes", len(s.routes))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case err := <-serveErr:
		runErr = err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			runErr = fmt.Errorf("app: shutdown: %w", err)
		}
	}

	if err := s.closeStore(); err != nil {
		s.logger.Error("closing store failed", "error", err)
	}
	return runErr
}

func healthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
