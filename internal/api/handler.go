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

// Package api serves the agent's local status endpoints.
package api

import (
	"encoding/json"
	"net/http"

	legacy "github.com/DasSecurity-HatLab/roundworm/pkg/logger/legacy"
	"github.com/sirupsen/logrus"
)

// Status is a point-in-time view of the agent.
type Status struct {
	Channels     map[string]bool `json:"channels"`
	Watches      int             `json:"watches"`
	SnapshotSize int             `json:"snapshot_size"`
	PollInterval string          `json:"poll_interval"`
}

// StatusProvider reports the agent status. It is called from HTTP handler
// goroutines.
type StatusProvider interface {
	Status() Status
}

// Handler serves the status routes.
type Handler struct {
	provider StatusProvider
}

// NewHandler creates a handler backed by provider.
func NewHandler(provider StatusProvider) *Handler {
	return &Handler{
		provider: provider,
	}
}

// StatusHandler returns the current agent status.
func (h *Handler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := h.provider.Status()

	legacy.L.WithFields(logrus.Fields{
		"remote": r.RemoteAddr,
	}).Debug("API: Returning agent status")

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		legacy.L.WithError(err).Error("Failed to encode agent status")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
}

// HealthHandler reports ok while every collector channel is connected and
// 503 otherwise.
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	state, code := "ok", http.StatusOK
	for _, up := range h.provider.Status().Channels {
		if !up {
			state, code = "degraded", http.StatusServiceUnavailable
			break
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": state})
}
