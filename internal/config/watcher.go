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
	"context"
	"path/filepath"

	legacy "github.com/DasSecurity-HatLab/roundworm/pkg/logger/legacy"
	"github.com/DasSecurity-HatLab/roundworm/pkg/models"
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// ReloadFunc receives each configuration that was reloaded and validated.
type ReloadFunc func(*models.Config)

// Watcher re-reads the agent's configuration file whenever it is saved and
// hands valid results to a ReloadFunc. An edit that fails to load leaves the
// running configuration in place.
type Watcher struct {
	loader *Loader
	fs     *fsnotify.Watcher
	apply  ReloadFunc
	target string
	done   chan struct{}
}

// NewWatcher prepares a watcher for the loader's file. Nothing is watched
// until Start.
func NewWatcher(loader *Loader, apply ReloadFunc) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		loader: loader,
		fs:     fs,
		apply:  apply,
		target: filepath.Clean(loader.GetConfigPath()),
	}, nil
}

// Start watches the directory holding the configuration file. Editors
// usually replace the file rather than write it in place, so the file
// itself cannot be watched.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.fs.Add(w.loader.GetConfigDir()); err != nil {
		return err
	}
	legacy.L.WithField("path", w.target).Info("Watching configuration file for changes")

	w.done = make(chan struct{})
	go w.loop(ctx)
	return nil
}

// Stop ends watching and waits for any reload in progress.
func (w *Watcher) Stop() error {
	err := w.fs.Close()
	if w.done != nil {
		<-w.done
	}
	return err
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !w.saved(event) {
				continue
			}
			legacy.L.WithFields(logrus.Fields{
				"path": event.Name,
				"op":   event.Op.String(),
			}).Debug("Configuration file touched")
			w.reload()
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			legacy.L.WithError(err).Warn("Configuration watch error")
		}
	}
}

// saved reports whether event left new content at the configuration path.
// A rename away or a removal does not; the replacement shows up as Create.
func (w *Watcher) saved(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.target {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create)
}

func (w *Watcher) reload() {
	changed, err := w.loader.HasChanged()
	if err != nil {
		legacy.L.WithError(err).Warn("Couldn't read configuration file")
		return
	}
	if !changed {
		return
	}

	cfg, err := w.loader.Load()
	if err != nil {
		legacy.L.WithField("path", w.target).WithError(err).Error("Configuration rejected, keeping the running one")
		return
	}
	legacy.L.WithField("path", w.target).Info("Configuration reloaded")
	if w.apply != nil {
		w.apply(cfg)
	}
}
