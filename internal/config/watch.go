// Copyright 2025 Tom Barlow
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
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gatemini/gatemini/internal/controller/filewatcher"
)

// Watch watches the directory containing path for changes and invokes
// onReload with a freshly loaded, expanded, secret-resolved, and
// validated Config whenever the file is rewritten. It watches the
// directory rather than the file itself so editors that save via
// rename-over don't leave the watch pointed at a deleted inode. The
// environment-file stage is intentionally skipped on reload: it runs
// once per process via LoadEnvFiles's sync.Once guard.
func Watch(ctx context.Context, path string, resolver ResolverFunc, onReload func(*Config, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	debouncer := filewatcher.NewDebouncer(300*time.Millisecond, false, func(events []*filewatcher.Context) {
		reloadAndNotify(ctx, path, resolver, onReload)
	})

	go func() {
		defer watcher.Close()
		defer debouncer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				debouncer.Add(filewatcher.NewContext(event.Name, "modified", false, 0, time.Now()))
			case <-watcher.Errors:
				// Surface nothing; the next successful event still fires reloads.
			}
		}
	}()

	return nil
}

// ResolverFunc resolves the secret references in a freshly loaded
// config; passed in rather than constructed internally so tests can
// supply a stub resolver.
type ResolverFunc func(ctx context.Context, cfg *Config) error

func reloadAndNotify(ctx context.Context, path string, resolve ResolverFunc, onReload func(*Config, error)) {
	cfg, err := Load(path)
	if err != nil {
		onReload(nil, err)
		return
	}
	if err := Expand(cfg); err != nil {
		onReload(nil, err)
		return
	}
	if resolve != nil {
		if err := resolve(ctx, cfg); err != nil {
			onReload(nil, err)
			return
		}
	}
	if cfg.Secrets.Strict {
		if err := ValidateNoUnresolvedSecrets(cfg); err != nil {
			onReload(nil, err)
			return
		}
	}
	if err := Validate(cfg); err != nil {
		onReload(nil, err)
		return
	}
	onReload(cfg, nil)
}
