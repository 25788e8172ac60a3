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

// Package fswatch watches directory trees with inotify and reports file
// mutations to the collector. Directories created or moved into a watched
// tree are added to the watch set; directories moved within it keep their
// watch under the new name.
package fswatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	legacy "github.com/DasSecurity-HatLab/roundworm/pkg/logger/legacy"
	"github.com/DasSecurity-HatLab/roundworm/pkg/events"
	"github.com/DasSecurity-HatLab/roundworm/pkg/metrics"
	"github.com/DasSecurity-HatLab/roundworm/pkg/models"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

var errInterrupted = errors.New("notification wait interrupted")

// Sink receives encoded records.
type Sink interface {
	Send(line []byte)
}

type notification struct {
	wd     int
	mask   uint32
	cookie uint32
	name   string
}

type backend interface {
	AddWatch(path string, mask uint32) (int, error)
	RemoveWatch(wd int) error
	Wait(timeout time.Duration) ([]notification, bool, error)
	Interrupt()
	Close() error
}

// pendingRename is a moved-from directory waiting for its moved-to half.
type pendingRename struct {
	path   string
	cookie uint32
}

// Watcher owns the watch set and the rename state. It is driven by a single
// goroutine through Run.
type Watcher struct {
	backend backend
	table   *watchTable
	pending *pendingRename
	sink    Sink
	timeout time.Duration
	watches atomic.Int64
	closed  sync.Once
}

// New initializes inotify and registers every root recursively. Roots that
// cannot be registered are reported together.
func New(cfg models.WatcherConfig, sink Sink) (*Watcher, error) {
	in, err := newInotify()
	if err != nil {
		return nil, err
	}
	w := newWatcher(in, sink, cfg.Timeout)

	var result *multierror.Error
	for _, root := range cfg.Roots {
		if err := w.addRoot(root); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		in.Close()
		return nil, err
	}

	legacy.L.WithFields(logrus.Fields{
		"roots":   cfg.Roots,
		"watches": w.table.len(),
	}).Info("Filesystem watches registered")
	return w, nil
}

func newWatcher(b backend, sink Sink, timeout time.Duration) *Watcher {
	return &Watcher{
		backend: b,
		table:   newWatchTable(),
		sink:    sink,
		timeout: timeout,
	}
}

func (w *Watcher) addRoot(root string) error {
	dirs, err := walkDirs(root)
	if err != nil {
		return fmt.Errorf("failed to walk watch root %s: %w", root, err)
	}
	if len(dirs) == 0 {
		return fmt.Errorf("watch root %s is not a directory", root)
	}
	if err := w.watch(dirs[0]); err != nil {
		return fmt.Errorf("failed to watch root %s: %w", root, err)
	}
	for _, dir := range dirs[1:] {
		if err := w.watch(dir); err != nil {
			legacy.L.WithFields(logrus.Fields{"path": dir}).WithError(err).Warn("Couldn't watch directory")
		}
	}
	return nil
}

// addTree registers a directory that appeared inside a watched tree.
func (w *Watcher) addTree(dir string) {
	dirs, err := walkDirs(dir)
	if err != nil {
		legacy.L.WithFields(logrus.Fields{"path": dir}).WithError(err).Warn("Couldn't watch new directory")
		return
	}
	for _, d := range dirs {
		if err := w.watch(d); err != nil {
			legacy.L.WithFields(logrus.Fields{"path": d}).WithError(err).Warn("Couldn't watch new directory")
		}
	}
}

func (w *Watcher) watch(dir string) error {
	wd, err := w.backend.AddWatch(dir, watchMask)
	if err != nil {
		return err
	}
	w.table.add(wd, dir)
	w.countWatches()
	return nil
}

// unwatch drops path and everything watched below it.
func (w *Watcher) unwatch(path string) {
	for _, wd := range w.table.subtree(path) {
		if err := w.backend.RemoveWatch(wd); err != nil && !errors.Is(err, unix.EINVAL) {
			legacy.L.WithFields(logrus.Fields{"path": path}).WithError(err).Debug("Error removing watch")
		}
		w.table.removeWD(wd)
	}
	w.countWatches()
}

// Run processes notifications until ctx is cancelled or the notification
// source fails. An idle timeout is only a heartbeat.
func (w *Watcher) Run(ctx context.Context) error {
	stop := make(chan struct{})
	interrupter := make(chan struct{})
	go func() {
		defer close(interrupter)
		select {
		case <-ctx.Done():
			w.backend.Interrupt()
		case <-stop:
		}
	}()
	// The descriptors are closed only once the interrupter is gone.
	defer func() {
		close(stop)
		<-interrupter
		w.Close()
	}()

	legacy.L.WithFields(logrus.Fields{
		"watches": w.table.len(),
		"timeout": w.timeout.String(),
	}).Info("Filesystem watcher started")

	for {
		batch, timedOut, err := w.backend.Wait(w.timeout)
		if err != nil {
			if errors.Is(err, errInterrupted) {
				legacy.L.Info("Filesystem watcher stopped")
				return ctx.Err()
			}
			return err
		}
		if timedOut {
			metrics.WatchHeartbeatsTotal.Inc()
			legacy.L.Debug("inotify event timeout")
			continue
		}
		for _, n := range batch {
			w.handle(n)
		}
	}
}

// handle applies one notification: report it, settle any pending rename,
// then keep the watch set in step with the tree.
func (w *Watcher) handle(n notification) {
	if n.mask&unix.IN_Q_OVERFLOW != 0 {
		legacy.L.Warn("inotify queue overflowed, notifications were lost")
	}
	if n.mask&unix.IN_IGNORED != 0 {
		w.table.removeWD(n.wd)
		w.countWatches()
	}

	path, known := w.resolve(n)

	if known && n.mask&reportedMask != 0 {
		w.report(path, n.mask)
	}

	movedTo := n.mask&unix.IN_MOVED_TO != 0
	if w.pending != nil && !(movedTo && w.completes(n)) {
		w.unwatch(w.pending.path)
		w.pending = nil
	}

	if !known {
		return
	}

	switch {
	case n.mask&unix.IN_CREATE != 0 || (movedTo && w.pending == nil):
		if isDir(path) {
			w.addTree(path)
		}
	case n.mask&unix.IN_MOVED_FROM != 0:
		if _, watched := w.table.wdOf(path); watched {
			w.pending = &pendingRename{path: path, cookie: n.cookie}
		}
	case movedTo:
		w.table.rename(w.pending.path, path)
		legacy.L.WithFields(logrus.Fields{
			"from": w.pending.path,
			"to":   path,
		}).Debug("Watched directory renamed")
		w.pending = nil
	}
}

// completes reports whether a moved-to notification is the other half of
// the pending rename. The kernel pairs the halves by cookie.
func (w *Watcher) completes(n notification) bool {
	return n.cookie == 0 || w.pending.cookie == 0 || n.cookie == w.pending.cookie
}

func (w *Watcher) resolve(n notification) (string, bool) {
	dir, ok := w.table.pathOf(n.wd)
	if !ok {
		return "", false
	}
	if n.name == "" {
		return dir, true
	}
	return filepath.Join(dir, n.name), true
}

func (w *Watcher) report(path string, mask uint32) {
	line, err := events.File(inspect(path, mask))
	if err != nil {
		metrics.LinesDroppedTotal.WithLabelValues("fswatch", metrics.DropEncodeFailed).Inc()
		legacy.L.WithFields(logrus.Fields{"path": path}).WithError(err).Warn("Dropping file event")
		return
	}
	metrics.FileEventsTotal.Inc()
	w.sink.Send(line)
}

// Close releases the notification source. It must not be called while Run
// is active; Run closes it on return.
func (w *Watcher) Close() error {
	var err error
	w.closed.Do(func() { err = w.backend.Close() })
	return err
}

func (w *Watcher) countWatches() {
	n := w.table.len()
	w.watches.Store(int64(n))
	metrics.WatchesActive.Set(float64(n))
}

// WatchCount returns the number of watched directories. Safe to call from
// any goroutine.
func (w *Watcher) WatchCount() int {
	return int(w.watches.Load())
}

func isDir(path string) bool {
	info, err := os.Lstat(path)
	if err != nil {
		if !os.IsNotExist(err) {
			legacy.L.WithFields(logrus.Fields{"path": path}).WithError(err).Debug("Stat failed")
		}
		return false
	}
	return info.IsDir()
}
