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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/talentgraph/pkg/logging"
)

const validRuleSet = `
rules:
  - id: scaling-requires-distributed
    name: Scaling requires distributed systems
    priority: 90
    conditions:
      all:
        - fact: request
          path: teamFocus
          operator: equal
          value: scaling
    event:
      effect: filter
      targetField: derivedSkills
      targetValue: [skill.distributed-systems]
`

const otherRuleSet = `
rules:
  - id: greenfield-prefers-speed
    name: Greenfield prefers fast starters
    priority: 70
    conditions:
      all:
        - fact: request
          path: teamFocus
          operator: equal
          value: greenfield
    event:
      effect: boost
      targetField: requiredMaxStartTime
      targetValue: two-weeks
      boostStrength: 0.4
`

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(logging.New(logging.Config{Quiet: true}))
}

func TestHashRuleSet(t *testing.T) {
	h := HashRuleSet([]byte(validRuleSet))
	assert.Contains(t, h, "sha256:")
	assert.Equal(t, h, HashRuleSet([]byte(validRuleSet)))
	assert.NotEqual(t, h, HashRuleSet([]byte(otherRuleSet)))
}

func TestRegistry_CompileActivatesAndCaches(t *testing.T) {
	r := testRegistry(t)

	_, _, ok := r.Active()
	assert.False(t, ok, "empty registry must have no active engine")

	engine, hash, err := r.Compile([]byte(validRuleSet))
	require.NoError(t, err)
	require.NotNil(t, engine)

	active, activeHash, ok := r.Active()
	require.True(t, ok)
	assert.Same(t, engine, active)
	assert.Equal(t, hash, activeHash)

	// Recompiling the identical payload reuses the cached engine.
	again, againHash, err := r.Compile([]byte(validRuleSet))
	require.NoError(t, err)
	assert.Same(t, engine, again)
	assert.Equal(t, hash, againHash)

	got, ok := r.Get(hash)
	require.True(t, ok)
	assert.Same(t, engine, got)
}

func TestRegistry_CompileErrorKeepsActive(t *testing.T) {
	r := testRegistry(t)
	_, hash, err := r.Compile([]byte(validRuleSet))
	require.NoError(t, err)

	_, _, err = r.Compile([]byte("rules:\n  - name: no id\n"))
	require.Error(t, err)

	_, activeHash, ok := r.Active()
	require.True(t, ok)
	assert.Equal(t, hash, activeHash)
}

func TestRegistry_CompileSwitchesActive(t *testing.T) {
	r := testRegistry(t)
	_, firstHash, err := r.Compile([]byte(validRuleSet))
	require.NoError(t, err)

	_, secondHash, err := r.Compile([]byte(otherRuleSet))
	require.NoError(t, err)
	require.NotEqual(t, firstHash, secondHash)

	_, activeHash, ok := r.Active()
	require.True(t, ok)
	assert.Equal(t, secondHash, activeHash)

	// Both engines stay addressable by hash.
	_, ok = r.Get(firstHash)
	assert.True(t, ok)
}

func TestRegistry_LoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validRuleSet), 0600))

	r := testRegistry(t)
	engine, hash, err := r.LoadFile(path)
	require.NoError(t, err)
	assert.NotNil(t, engine)
	assert.Equal(t, HashRuleSet([]byte(validRuleSet)), hash)

	_, _, err = r.LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestRegistry_WatchFileReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validRuleSet), 0600))

	r := testRegistry(t)
	_, firstHash, err := r.LoadFile(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, r.WatchFile(ctx, path))

	require.NoError(t, os.WriteFile(path, []byte(otherRuleSet), 0600))

	require.Eventually(t, func() bool {
		_, activeHash, ok := r.Active()
		return ok && activeHash != firstHash
	}, 3*time.Second, 20*time.Millisecond, "watcher did not reload the rule set")
}

func TestRegistry_WatchFileKeepsActiveOnBadEdit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validRuleSet), 0600))

	r := testRegistry(t)
	_, goodHash, err := r.LoadFile(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, r.WatchFile(ctx, path))

	require.NoError(t, os.WriteFile(path, []byte(":::not yaml"), 0600))

	// The bad payload must never displace the good engine. Give the
	// watcher a moment to process the event before asserting.
	time.Sleep(300 * time.Millisecond)
	_, activeHash, ok := r.Active()
	require.True(t, ok)
	assert.Equal(t, goodHash, activeHash)
}

// =============================================================================
// ParseDefinitions Tests
// =============================================================================

func TestParseDefinitions_Valid(t *testing.T) {
	defs, err := ParseDefinitions([]byte(validRuleSet))
	require.NoError(t, err)
	require.Len(t, defs, 1)

	def := defs[0]
	assert.Equal(t, "scaling-requires-distributed", def.ID)
	assert.Equal(t, 90, def.Priority)
	assert.Equal(t, EffectFilter, def.Event.Effect)
	// YAML lists of strings normalize to []string.
	assert.Equal(t, []string{"skill.distributed-systems"}, def.Event.TargetValue)
}

func TestParseDefinitions_BoostStrength(t *testing.T) {
	defs, err := ParseDefinitions([]byte(otherRuleSet))
	require.NoError(t, err)
	require.Len(t, defs, 1)
	require.NotNil(t, defs[0].Event.BoostStrength)
	assert.InDelta(t, 0.4, *defs[0].Event.BoostStrength, 1e-9)
}

func TestParseDefinitions_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing id", "rules:\n  - name: anonymous\n    event:\n      effect: filter\n"},
		{"duplicate id", `
rules:
  - id: twin
    event: {effect: filter}
  - id: twin
    event: {effect: filter}
`},
		{"unknown effect", "rules:\n  - id: r\n    event:\n      effect: mandate\n"},
		{"malformed yaml", ":::"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDefinitions([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestStringList(t *testing.T) {
	got, ok := StringList([]string{"a", "b"})
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, got)

	got, ok = StringList("solo")
	require.True(t, ok)
	assert.Equal(t, []string{"solo"}, got)

	_, ok = StringList(42)
	assert.False(t, ok)
}
