// Copyright 2025 CompliK Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	legacy "github.com/DasSecurity-HatLab/roundworm/pkg/logger/legacy"
	"github.com/sirupsen/logrus"
)

// Server is the status HTTP server.
type Server struct {
	handler    *Handler
	httpServer *http.Server
	port       int
}

// NewServer creates a status server listening on port.
func NewServer(provider StatusProvider, port int) *Server {
	handler := NewHandler(provider)
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", handler.StatusHandler)
	mux.HandleFunc("/health", handler.HealthHandler)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return &Server{
		handler:    handler,
		httpServer: httpServer,
		port:       port,
	}
}

// Start begins serving in the background. It returns an error if the listener
// fails right away.
func (s *Server) Start(ctx context.Context) error {
	legacy.L.WithFields(logrus.Fields{
		"port": s.port,
		"endpoints": []string{
			"/api/status",
			"/health",
		},
	}).Info("Starting API server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("failed to start API server: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(100 * time.Millisecond):
		legacy.L.WithField("port", s.port).Info("API server started successfully")
		return nil
	}
}

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	legacy.L.Info("Stopping API server")
	return s.httpServer.Shutdown(ctx)
}
