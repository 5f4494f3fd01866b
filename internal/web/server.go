// Package web serves the validation HTTP API.
package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/dea-madrid/address-validation/internal/config"
	"github.com/dea-madrid/address-validation/internal/web/handlers"
	"github.com/dea-madrid/address-validation/internal/web/middleware"
)

// Server hosts the validation API.
type Server struct {
	cfg        config.ServerConfig
	log        *zap.Logger
	httpServer *http.Server
}

// NewServer builds the router and HTTP server around the given
// handler set.
func NewServer(cfg config.ServerConfig, h *handlers.Handler, log *zap.Logger) *Server {
	router := mux.NewRouter()
	router.Use(middleware.RequestLogging(log))
	router.Use(middleware.CORS())

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/validate", h.Validate).Methods(http.MethodPost)
	api.HandleFunc("/batches", h.RunBatch).Methods(http.MethodPost)
	api.HandleFunc("/records/{id}/validation", h.GetValidation).Methods(http.MethodGet)
	api.HandleFunc("/stats", h.GetStats).Methods(http.MethodGet)
	api.HandleFunc("/registry/rebuild", h.RebuildRegistry).Methods(http.MethodPost)

	router.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return &Server{
		cfg: cfg,
		log: log,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}
}

// Start serves until the context is cancelled, then drains in-flight
// requests within the configured shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return eris.Wrap(err, "http server")
	case <-ctx.Done():
	}

	s.log.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "http server shutdown")
	}
	return nil
}
