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

package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gatemini/gatemini/internal/controller/filewatcher"
)

const cacheVersion = 2

// CacheFile is the versioned, on-disk sidecar of last-known tools and
// embeddings, loaded on daemon start so discovery meta-tools work before
// any backend finishes its own startup handshake.
type CacheFile struct {
	Version    int                         `json:"version"`
	Backends   map[string][]ToolDescriptor `json:"backends"`
	Embeddings map[string][]float32        `json:"embeddings,omitempty"`
}

// LoadCache reads and parses the cache at path. A missing file is not an
// error: it returns an empty CacheFile.
func LoadCache(path string) (*CacheFile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &CacheFile{Version: cacheVersion, Backends: map[string][]ToolDescriptor{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tool cache: %w", err)
	}

	var cf CacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse tool cache: %w", err)
	}
	if cf.Backends == nil {
		cf.Backends = map[string][]ToolDescriptor{}
	}
	return &cf, nil
}

// WriteCache serializes cf to path via a sibling temp file plus atomic
// rename, so readers never observe a partially written cache.
func WriteCache(path string, cf *CacheFile) error {
	cf.Version = cacheVersion

	data, err := json.MarshalIndent(cf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tool cache: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write tool cache temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename tool cache into place: %w", err)
	}
	return nil
}

// Populate seeds a registry with every backend's tools from a loaded
// cache, so search-based discovery works immediately on daemon start.
func (cf *CacheFile) Populate(r *Registry) {
	for backend, tools := range cf.Backends {
		r.UpsertBackendTools(backend, tools)
	}
}

// snapshotByBackend groups the registry's current tools by backend, for
// writing a fresh cache.
func (r *Registry) snapshotByBackend() map[string][]ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]ToolDescriptor)
	for _, e := range r.entries {
		out[e.tool.Backend] = append(out[e.tool.Backend], e.tool)
	}
	return out
}

// CacheWriter debounces registry mutations and writes a fresh cache file
// at most once per debounce window, reusing the same Debouncer type the
// config pipeline uses for hot-reload.
type CacheWriter struct {
	path      string
	registry  *Registry
	debouncer *filewatcher.Debouncer
}

// NewCacheWriter wires a registry's mutation notifications to a
// debounced cache write at path.
func NewCacheWriter(path string, r *Registry) *CacheWriter {
	cw := &CacheWriter{path: path, registry: r}
	cw.debouncer = filewatcher.NewDebouncer(300*time.Millisecond, false, func(events []*filewatcher.Context) {
		cw.flush()
	})
	r.OnMutate(func() {
		cw.debouncer.Add(filewatcher.NewContext(path, "mutated", false, 0, time.Now()))
	})
	return cw
}

func (cw *CacheWriter) flush() {
	cf := &CacheFile{Version: cacheVersion, Backends: cw.registry.snapshotByBackend()}
	_ = os.MkdirAll(filepath.Dir(cw.path), 0o755)
	_ = WriteCache(cw.path, cf)
}

// Stop flushes any pending write and stops the debouncer.
func (cw *CacheWriter) Stop() {
	cw.debouncer.Stop()
}
