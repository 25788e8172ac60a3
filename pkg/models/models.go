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

// Package models holds the configuration model and the domain records that
// travel between the agent's components.
package models

import "time"

// Config is the root configuration of the agent.
type Config struct {
	Collector CollectorConfig `yaml:"collector"`
	Watcher   WatcherConfig   `yaml:"watcher"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Users     UsersConfig     `yaml:"users"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	API       APIConfig       `yaml:"api"`
}

// CollectorConfig describes the remote collector endpoint and the
// reconnection policy of every event channel opened towards it.
type CollectorConfig struct {
	Host        string        `yaml:"host"`
	Port        uint16        `yaml:"port"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	// WriteTimeout bounds one record write; 0 disables the deadline.
	WriteTimeout time.Duration   `yaml:"write_timeout"`
	Reconnect    ReconnectConfig `yaml:"reconnect"`
}

// ReconnectConfig bounds reconnection attempts while a channel is down.
// A zero Rate means no limit: every send attempts one reconnect.
type ReconnectConfig struct {
	Rate  float64 `yaml:"rate"`
	Burst int     `yaml:"burst"`
}

// WatcherConfig configures the filesystem watcher.
type WatcherConfig struct {
	Roots   []string      `yaml:"roots"`
	Timeout time.Duration `yaml:"timeout"`
}

// MonitorConfig configures the process monitor.
type MonitorConfig struct {
	ProcPath     string        `yaml:"proc_path"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// UsersConfig points at the passwd-format user database.
type UsersConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig configures the process-wide logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Syslog bool   `yaml:"syslog"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Port         int           `yaml:"port"`
	Path         string        `yaml:"path"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// APIConfig configures the HTTP status endpoint.
type APIConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// UserRecord is one entry of the user directory.
type UserRecord struct {
	UID      uint32
	GID      uint32
	Username string
}

// ProcessInfo is what one scan learns about a single pid. It lives for one
// scan iteration only.
type ProcessInfo struct {
	PID   uint32
	PPID  uint32
	Name  string
	Cmd   string
	Param string
	User  UserRecord
}
