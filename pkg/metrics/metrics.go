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

// Package metrics exposes the agent's Prometheus metrics. Every metric is
// written from exactly one loop; the HTTP handler only reads them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons.
const (
	DropDisconnected = "disconnected"
	DropProbeFailed  = "probe_failed"
	DropWriteFailed  = "write_failed"
	DropEncodeFailed = "encode_failed"
)

var (
	// Event channel metrics
	LinesSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roundworm_lines_sent_total",
		Help: "Number of records written to the collector",
	}, []string{"channel"})

	LinesDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roundworm_lines_dropped_total",
		Help: "Number of records lost, by reason",
	}, []string{"channel", "reason"})

	ReconnectAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roundworm_reconnect_attempts_total",
		Help: "Number of reconnect attempts, by result",
	}, []string{"channel", "result"})

	ChannelConnected = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "roundworm_channel_connected",
		Help: "Whether the channel currently holds a live connection (1) or not (0)",
	}, []string{"channel"})

	// Process monitor metrics
	ScanDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "roundworm_scan_duration_seconds",
		Help:    "Time taken to complete a single process scan",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	ScanTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roundworm_scan_total",
		Help: "Total number of process scans performed",
	})

	ScanErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roundworm_scan_errors_total",
		Help: "Total number of process scans that failed to enumerate the process table",
	})

	SnapshotSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "roundworm_snapshot_processes",
		Help: "Number of pids in the latest snapshot",
	})

	NewProcessesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roundworm_new_processes_total",
		Help: "Total number of processes reported as new",
	})

	// Filesystem watcher metrics
	WatchesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "roundworm_watches_active",
		Help: "Number of directories currently watched",
	})

	FileEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roundworm_file_events_total",
		Help: "Total number of file records emitted",
	})

	WatchHeartbeatsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roundworm_watch_heartbeats_total",
		Help: "Number of notification waits that expired without activity",
	})
)
