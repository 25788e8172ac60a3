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

package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/DasSecurity-HatLab/roundworm/pkg/models"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// ValidationError describes one invalid configuration field.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
	Code    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field '%s' failed validation: %s (value: %v)", e.Field, e.Message, e.Value)
}

const (
	minPollInterval = time.Millisecond
	maxPollInterval = time.Hour
)

// Validate checks the configuration and returns every problem found, or nil.
func Validate(cfg *models.Config) error {
	var result *multierror.Error

	if cfg.Collector.Host == "" {
		result = multierror.Append(result, &ValidationError{
			Field: "collector.host", Value: cfg.Collector.Host,
			Message: "collector host is required", Code: "REQUIRED",
		})
	}
	if cfg.Collector.Port == 0 {
		result = multierror.Append(result, &ValidationError{
			Field: "collector.port", Value: cfg.Collector.Port,
			Message: "collector port must be between 1 and 65535", Code: "OUT_OF_RANGE",
		})
	}
	if cfg.Collector.DialTimeout < 0 {
		result = multierror.Append(result, &ValidationError{
			Field: "collector.dial_timeout", Value: cfg.Collector.DialTimeout,
			Message: "dial timeout cannot be negative", Code: "OUT_OF_RANGE",
		})
	}
	if cfg.Collector.WriteTimeout < 0 {
		result = multierror.Append(result, &ValidationError{
			Field: "collector.write_timeout", Value: cfg.Collector.WriteTimeout,
			Message: "write timeout cannot be negative", Code: "OUT_OF_RANGE",
		})
	}
	if cfg.Collector.Reconnect.Rate < 0 {
		result = multierror.Append(result, &ValidationError{
			Field: "collector.reconnect.rate", Value: cfg.Collector.Reconnect.Rate,
			Message: "reconnect rate cannot be negative", Code: "OUT_OF_RANGE",
		})
	}
	if cfg.Collector.Reconnect.Rate > 0 && cfg.Collector.Reconnect.Burst < 1 {
		result = multierror.Append(result, &ValidationError{
			Field: "collector.reconnect.burst", Value: cfg.Collector.Reconnect.Burst,
			Message: "burst must be at least 1 when a reconnect rate is set", Code: "OUT_OF_RANGE",
		})
	}

	if len(cfg.Watcher.Roots) == 0 {
		result = multierror.Append(result, &ValidationError{
			Field: "watcher.roots", Value: cfg.Watcher.Roots,
			Message: "at least one watch root is required", Code: "REQUIRED",
		})
	}
	for _, root := range cfg.Watcher.Roots {
		if !filepath.IsAbs(root) {
			result = multierror.Append(result, &ValidationError{
				Field: "watcher.roots", Value: root,
				Message: "watch roots must be absolute paths", Code: "INVALID_PATH",
			})
		}
	}
	if cfg.Watcher.Timeout <= 0 {
		result = multierror.Append(result, &ValidationError{
			Field: "watcher.timeout", Value: cfg.Watcher.Timeout,
			Message: "watch timeout must be positive", Code: "OUT_OF_RANGE",
		})
	}

	if cfg.Monitor.PollInterval < minPollInterval || cfg.Monitor.PollInterval > maxPollInterval {
		result = multierror.Append(result, &ValidationError{
			Field: "monitor.poll_interval", Value: cfg.Monitor.PollInterval,
			Message: fmt.Sprintf("poll interval must be between %v and %v", minPollInterval, maxPollInterval),
			Code:    "OUT_OF_RANGE",
		})
	}
	if cfg.Monitor.ProcPath == "" {
		result = multierror.Append(result, &ValidationError{
			Field: "monitor.proc_path", Value: cfg.Monitor.ProcPath,
			Message: "proc path is required", Code: "REQUIRED",
		})
	}
	if cfg.Users.Path == "" {
		result = multierror.Append(result, &ValidationError{
			Field: "users.path", Value: cfg.Users.Path,
			Message: "user database path is required", Code: "REQUIRED",
		})
	}

	if _, err := logrus.ParseLevel(cfg.Logging.Level); err != nil {
		result = multierror.Append(result, &ValidationError{
			Field: "logging.level", Value: cfg.Logging.Level,
			Message: "unknown log level", Code: "INVALID_ENUM",
		})
	}

	if cfg.Metrics.Enabled && (cfg.Metrics.Port <= 0 || cfg.Metrics.Port > 65535) {
		result = multierror.Append(result, &ValidationError{
			Field: "metrics.port", Value: cfg.Metrics.Port,
			Message: "metrics port must be between 1 and 65535", Code: "OUT_OF_RANGE",
		})
	}
	if cfg.API.Enabled && (cfg.API.Port <= 0 || cfg.API.Port > 65535) {
		result = multierror.Append(result, &ValidationError{
			Field: "api.port", Value: cfg.API.Port,
			Message: "api port must be between 1 and 65535", Code: "OUT_OF_RANGE",
		})
	}

	return result.ErrorOrNil()
}
