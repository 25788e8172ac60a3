package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	legacy "github.com/DasSecurity-HatLab/roundworm/pkg/logger/legacy"
	"github.com/DasSecurity-HatLab/roundworm/pkg/models"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Server serves the Prometheus metrics over HTTP.
type Server struct {
	server *http.Server
	port   int
	path   string
}

// NewMetricsServer creates a metrics server listening on port.
func NewMetricsServer(port int, path string) *Server {
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return &Server{
		server: server,
		port:   port,
		path:   path,
	}
}

// NewMetricsServerFromConfig creates a metrics server from configuration.
func NewMetricsServerFromConfig(config models.MetricsConfig) *Server {
	server := NewMetricsServer(config.Port, config.Path)

	if config.ReadTimeout > 0 {
		server.server.ReadTimeout = config.ReadTimeout
	}
	if config.WriteTimeout > 0 {
		server.server.WriteTimeout = config.WriteTimeout
	}

	return server
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	legacy.L.WithFields(logrus.Fields{
		"port": s.port,
		"path": s.path,
	}).Info("Starting Prometheus metrics server")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	legacy.L.Info("Stopping Prometheus metrics server")
	return s.server.Shutdown(ctx)
}

// GetAddr returns the listen address.
func (s *Server) GetAddr() string {
	return s.server.Addr
}
