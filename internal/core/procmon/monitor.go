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

// Package procmon polls the process table and reports processes that were
// not present in the previous scan.
package procmon

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	legacy "github.com/DasSecurity-HatLab/roundworm/pkg/logger/legacy"
	"github.com/DasSecurity-HatLab/roundworm/pkg/events"
	"github.com/DasSecurity-HatLab/roundworm/pkg/metrics"
	"github.com/DasSecurity-HatLab/roundworm/pkg/models"
	"github.com/prometheus/procfs"
	"github.com/sirupsen/logrus"
)

// MaxFieldSize bounds the cmd and param strings of a process record.
const MaxFieldSize = 4096

const channelName = "procmon"

// Sink receives encoded records.
type Sink interface {
	Send(line []byte)
}

// UserLookup resolves uids to account records.
type UserLookup interface {
	Lookup(uid uint32) (models.UserRecord, bool)
}

// Monitor diffs consecutive scans of the process table. PollOnce and Run are
// meant for a single goroutine; SetInterval and SnapshotSize may be called
// from any goroutine.
type Monitor struct {
	fs       procfs.FS
	procPath string
	users    UserLookup
	sink     Sink
	prev     *Snapshot
	interval atomic.Int64
	size     atomic.Int64
}

// New prepares a monitor over the proc filesystem mounted at cfg.ProcPath.
func New(cfg models.MonitorConfig, users UserLookup, sink Sink) (*Monitor, error) {
	fs, err := procfs.NewFS(cfg.ProcPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open proc filesystem at %s: %w", cfg.ProcPath, err)
	}
	m := &Monitor{
		fs:       fs,
		procPath: cfg.ProcPath,
		users:    users,
		sink:     sink,
		prev:     NewSnapshot(),
	}
	m.SetInterval(cfg.PollInterval)
	return m, nil
}

// SetInterval changes the pause before the next scan.
func (m *Monitor) SetInterval(d time.Duration) {
	old := time.Duration(m.interval.Swap(int64(d)))
	if old != 0 && old != d {
		legacy.L.WithFields(logrus.Fields{
			"key":  "monitor.poll_interval",
			"from": old.String(),
			"to":   d.String(),
		}).Info("Configuration changed")
	}
}

// Interval returns the current pause between scans.
func (m *Monitor) Interval() time.Duration {
	return time.Duration(m.interval.Load())
}

// SnapshotSize returns the number of pids seen by the last scan.
func (m *Monitor) SnapshotSize() int {
	return int(m.size.Load())
}

// Run sleeps for the poll interval and then scans, until ctx is cancelled.
// A failed scan is logged and the loop carries on.
func (m *Monitor) Run(ctx context.Context) error {
	legacy.L.WithFields(logrus.Fields{
		"proc":     m.procPath,
		"interval": m.Interval().String(),
	}).Info("Process monitor started")

	for {
		timer := time.NewTimer(m.Interval())
		select {
		case <-ctx.Done():
			timer.Stop()
			legacy.L.Info("Process monitor stopped")
			return ctx.Err()
		case <-timer.C:
		}

		start := time.Now()
		if err := m.PollOnce(); err != nil {
			metrics.ScanErrorsTotal.Inc()
			legacy.L.WithError(err).Error("Failed to scan processes")
			continue
		}
		metrics.ScanDurationSeconds.Observe(time.Since(start).Seconds())
	}
}

// PollOnce scans the process table once. Every pid missing from the previous
// scan is reported as a new process; if there was at least one, the full
// pid list follows. The new scan then replaces the previous one.
func (m *Monitor) PollOnce() error {
	procs, err := m.fs.AllProcs()
	if err != nil {
		return fmt.Errorf("failed to list processes: %w", err)
	}

	next := NewSnapshot()
	reported := 0
	for _, p := range procs {
		pid := uint32(p.PID)
		info, err := m.readProcess(p)
		if err != nil {
			legacy.L.WithField("pid", pid).WithError(err).Debug("Skipping process")
			continue
		}
		if !next.Add(pid) {
			legacy.L.WithField("limit", MaxSnapshot).Warn("Process snapshot full, remaining processes skipped")
			break
		}
		if m.prev.Contains(pid) {
			continue
		}
		m.emit(events.NewProcess(events.NewProcessFromInfo(info)))
		reported++
	}

	m.prev = next
	m.size.Store(int64(next.Len()))
	metrics.ScanTotal.Inc()
	metrics.SnapshotSize.Set(float64(next.Len()))

	if reported > 0 {
		metrics.NewProcessesTotal.Add(float64(reported))
		legacy.L.WithFields(logrus.Fields{
			"new":   reported,
			"total": next.Len(),
		}).Debug("New processes reported")
		m.emit(events.PidList(next.PIDs()))
	}
	return nil
}

func (m *Monitor) readProcess(p procfs.Proc) (*models.ProcessInfo, error) {
	status, err := ReadProcessStatus(m.procPath, uint32(p.PID))
	if err != nil {
		return nil, err
	}
	args, err := p.CmdLine()
	if err != nil {
		return nil, fmt.Errorf("failed to read cmdline: %w", err)
	}

	info := &models.ProcessInfo{
		PID:  status.PID,
		PPID: status.PPID,
		Name: status.Name,
	}
	if len(args) == 0 || args[0] == "" {
		// Kernel threads have no command line.
		info.Cmd = truncate(status.Name, MaxFieldSize)
	} else {
		info.Cmd = truncate(args[0], MaxFieldSize)
		info.Param = joinParams(args[1:], MaxFieldSize)
	}

	// An unknown uid is reported as the zero record.
	info.User, _ = m.users.Lookup(status.UID)
	return info, nil
}

func (m *Monitor) emit(line []byte, err error) {
	if err != nil {
		metrics.LinesDroppedTotal.WithLabelValues(channelName, metrics.DropEncodeFailed).Inc()
		legacy.L.WithError(err).Warn("Dropping process event")
		return
	}
	m.sink.Send(line)
}

// joinParams renders each argument followed by a single space, cut at limit
// bytes.
func joinParams(args []string, limit int) string {
	var b strings.Builder
	for _, arg := range args {
		if b.Len() >= limit {
			break
		}
		b.WriteString(arg)
		b.WriteByte(' ')
	}
	return truncate(b.String(), limit)
}

func truncate(s string, limit int) string {
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
