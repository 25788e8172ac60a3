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

// Package config provides defaults, environment overrides and validation for
// the agent configuration.
package config

import (
	"strings"
	"time"

	"github.com/DasSecurity-HatLab/roundworm/pkg/models"
)

// RootSeparator separates watch roots on the command line and in the
// environment.
const RootSeparator = ";"

// Default returns the configuration the agent runs with when nothing else is
// supplied.
func Default() *models.Config {
	return &models.Config{
		Collector: models.CollectorConfig{
			Host:         "127.0.0.1",
			Port:         8023,
			DialTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
		Watcher: models.WatcherConfig{
			Roots:   []string{"/tmp"},
			Timeout: 120 * time.Second,
		},
		Monitor: models.MonitorConfig{
			ProcPath:     "/proc",
			PollInterval: 100 * time.Millisecond,
		},
		Users: models.UsersConfig{
			Path: "/etc/passwd",
		},
		Logging: models.LoggingConfig{
			Level: "info",
		},
		Metrics: models.MetricsConfig{
			Port:         9102,
			Path:         "/metrics",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		API: models.APIConfig{
			Port: 9103,
		},
	}
}

// ParseRoots splits a semicolon-delimited list of directories, dropping
// empty items.
func ParseRoots(value string) []string {
	parts := strings.Split(value, RootSeparator)
	roots := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		roots = append(roots, part)
	}
	return roots
}
