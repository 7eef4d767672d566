// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/talentgraph/pkg/logging"
)

// Registry owns the compiled rule engines for a process.
//
// # Description
//
// Engines are keyed by the sha256 of their rule-set bytes, so identical
// rule sets share one compiled engine and a request can pin the exact rule
// set it was evaluated against. The registry is constructed once at
// startup and passed by reference into request handling; there is no
// hidden package-level engine cache.
//
// # Thread Safety
//
// Safe for concurrent use. Compilation and the active-engine swap are
// guarded by a mutex; readers get a stable engine pointer.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]*Engine
	active  string
	log     *logging.Logger
}

// NewRegistry creates an empty registry. If log is nil a default logger
// is used.
func NewRegistry(log *logging.Logger) *Registry {
	if log == nil {
		log = logging.Default()
	}
	return &Registry{
		engines: make(map[string]*Engine),
		log:     log,
	}
}

// HashRuleSet returns the registry key for a rule-set payload.
func HashRuleSet(data []byte) string {
	return fmt.Sprintf("sha256:%x", sha256.Sum256(data))
}

// Compile parses and compiles a rule set, caches the engine under its
// hash, and marks it active.
//
// # Outputs
//
//   - *Engine: The compiled engine (cached instance on repeat payloads).
//   - string: The rule-set hash.
//   - error: Non-nil if parsing failed; the previous active engine is kept.
func (r *Registry) Compile(data []byte) (*Engine, string, error) {
	hash := HashRuleSet(data)

	r.mu.Lock()
	defer r.mu.Unlock()

	if engine, ok := r.engines[hash]; ok {
		r.active = hash
		return engine, hash, nil
	}

	defs, err := ParseDefinitions(data)
	if err != nil {
		return nil, "", fmt.Errorf("compile rule set: %w", err)
	}
	engine := NewEngine(defs)
	r.engines[hash] = engine
	r.active = hash
	r.log.Info("compiled rule set", "hash", hash, "rules", len(defs))
	return engine, hash, nil
}

// Active returns the active engine and its hash. The second return is
// false when nothing has been compiled yet.
func (r *Registry) Active() (*Engine, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	engine, ok := r.engines[r.active]
	return engine, r.active, ok
}

// Get returns the engine compiled from the rule set with the given hash.
func (r *Registry) Get(hash string) (*Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	engine, ok := r.engines[hash]
	return engine, ok
}

// LoadFile compiles a rule set from a file on disk.
func (r *Registry) LoadFile(path string) (*Engine, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read rules file: %w", err)
	}
	return r.Compile(data)
}

// WatchFile reloads the rule set whenever the file changes, until ctx is
// cancelled. A reload that fails to parse logs a warning and keeps the
// previous active engine, so a bad edit never takes inference down.
//
// The watch is on the parent directory rather than the file itself so
// editors that replace-by-rename keep triggering events.
func (r *Registry) WatchFile(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create rules watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch rules directory: %w", err)
	}

	target := filepath.Clean(path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if _, hash, err := r.LoadFile(path); err != nil {
					r.log.Warn("rules reload failed, keeping previous set", "path", path, "error", err.Error())
				} else {
					r.log.Info("rules reloaded", "path", path, "hash", hash)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				r.log.Warn("rules watcher error", "error", err.Error())
			}
		}
	}()
	return nil
}
