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

// Package agent assembles the filesystem watcher and the process monitor,
// each with its own collector channel, and runs them side by side.
package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/DasSecurity-HatLab/roundworm/internal/api"
	"github.com/DasSecurity-HatLab/roundworm/internal/core/fswatch"
	"github.com/DasSecurity-HatLab/roundworm/internal/core/procmon"
	"github.com/DasSecurity-HatLab/roundworm/internal/core/sender"
	"github.com/DasSecurity-HatLab/roundworm/internal/core/userdir"
	legacy "github.com/DasSecurity-HatLab/roundworm/pkg/logger/legacy"
	"github.com/DasSecurity-HatLab/roundworm/pkg/metrics"
	"github.com/DasSecurity-HatLab/roundworm/pkg/models"
	"github.com/sirupsen/logrus"
)

// Channel names, used in logs and metric labels.
const (
	FileChannel    = "fswatch"
	ProcessChannel = "procmon"
)

const shutdownTimeout = 5 * time.Second

// Agent owns one instance of every component. The two loops share no
// mutable state; Status only reads atomics.
type Agent struct {
	mu     sync.Mutex
	config *models.Config

	users      *userdir.Directory
	fileSender *sender.Sender
	procSender *sender.Sender
	watcher    *fswatch.Watcher
	monitor    *procmon.Monitor

	metricsSrv *metrics.Server
	apiServer  *api.Server
}

// New builds every component and connects both channels. Any failure here is
// a startup failure; resources acquired so far are released.
func New(config *models.Config) (a *Agent, err error) {
	a = &Agent{config: config}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	a.users, err = userdir.Load(config.Users.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load user directory: %w", err)
	}

	a.fileSender = sender.New(FileChannel, config.Collector)
	if err = a.fileSender.Open(); err != nil {
		return nil, err
	}
	a.procSender = sender.New(ProcessChannel, config.Collector)
	if err = a.procSender.Open(); err != nil {
		return nil, err
	}

	a.monitor, err = procmon.New(config.Monitor, a.users, a.procSender)
	if err != nil {
		return nil, err
	}
	// Last, so that nothing after it can fail with the inotify descriptor open.
	a.watcher, err = fswatch.New(config.Watcher, a.fileSender)
	if err != nil {
		return nil, fmt.Errorf("failed to start filesystem watcher: %w", err)
	}

	if config.Metrics.Enabled {
		a.metricsSrv = metrics.NewMetricsServerFromConfig(config.Metrics)
		legacy.L.WithFields(logrus.Fields{
			"port": config.Metrics.Port,
			"path": config.Metrics.Path,
		}).Info("Metrics server configured")
	} else {
		legacy.L.Info("Metrics server disabled")
	}
	if config.API.Enabled {
		a.apiServer = api.NewServer(a, config.API.Port)
		legacy.L.WithField("port", config.API.Port).Info("API server configured")
	} else {
		legacy.L.Info("API server disabled")
	}
	return a, nil
}

// Run starts both loops and blocks until ctx is cancelled or the watcher
// fails. A watcher failure is returned; the monitor is stopped with it.
func (a *Agent) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.metricsSrv != nil {
		go func() {
			if err := a.metricsSrv.Start(); err != nil {
				legacy.L.WithError(err).Error("Failed to start metrics server")
			}
		}()
	}
	if a.apiServer != nil {
		if err := a.apiServer.Start(ctx); err != nil {
			legacy.L.WithError(err).Error("Failed to start API server")
		}
	}

	a.mu.Lock()
	config := a.config
	a.mu.Unlock()
	legacy.L.WithFields(logrus.Fields{
		"collector": fmt.Sprintf("%s:%d", config.Collector.Host, config.Collector.Port),
		"roots":     config.Watcher.Roots,
		"interval":  a.monitor.Interval().String(),
	}).Info("RoundWorm agent started")

	var (
		wg         sync.WaitGroup
		watcherErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := a.watcher.Run(ctx); err != nil && ctx.Err() == nil {
			legacy.L.WithError(err).Error("Filesystem watcher failed")
			watcherErr = err
			cancel()
		}
	}()
	go func() {
		defer wg.Done()
		_ = a.monitor.Run(ctx)
	}()
	wg.Wait()

	a.stopServers()
	legacy.L.Info("RoundWorm agent stopped")
	return watcherErr
}

// UpdateConfig applies the settings that can change at runtime.
func (a *Agent) UpdateConfig(newConfig *models.Config) {
	a.mu.Lock()
	defer a.mu.Unlock()

	legacy.L.Info("Applying new configuration...")
	oldConfig := a.config
	a.config = newConfig

	if oldConfig.Logging.Level != newConfig.Logging.Level {
		legacy.SetLevel(newConfig.Logging.Level)
	}
	if oldConfig.Monitor.PollInterval != newConfig.Monitor.PollInterval {
		a.monitor.SetInterval(newConfig.Monitor.PollInterval)
	}
	if oldConfig.Collector != newConfig.Collector {
		legacy.L.Warn("Collector settings changed, restart the agent to apply them")
	}
	legacy.L.Info("Configuration hot-reloaded successfully")
}

// Status implements api.StatusProvider.
func (a *Agent) Status() api.Status {
	return api.Status{
		Channels: map[string]bool{
			FileChannel:    a.fileSender.Connected(),
			ProcessChannel: a.procSender.Connected(),
		},
		Watches:      a.watcher.WatchCount(),
		SnapshotSize: a.monitor.SnapshotSize(),
		PollInterval: a.monitor.Interval().String(),
	}
}

// Close releases the watcher and both channels. It must not be called while
// Run is active.
func (a *Agent) Close() {
	if a.watcher != nil {
		_ = a.watcher.Close()
	}
	for _, s := range []*sender.Sender{a.fileSender, a.procSender} {
		if s != nil {
			_ = s.Close()
		}
	}
}

func (a *Agent) stopServers() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if a.metricsSrv != nil {
		if err := a.metricsSrv.Stop(ctx); err != nil {
			legacy.L.WithError(err).Warn("Failed to stop metrics server")
		}
	}
	if a.apiServer != nil {
		if err := a.apiServer.Stop(ctx); err != nil {
			legacy.L.WithError(err).Warn("Failed to stop API server")
		}
	}
}
