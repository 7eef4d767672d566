// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package hierarchy resolves skill ids to their descendant-inclusive
// expansion. A skill filter is satisfied when the engineer has at least
// one skill from the expanded set (HAS_ANY semantics); the expansion
// itself is a static taxonomy lookup, not part of the inference core.
package hierarchy

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Resolver expands a skill id into its descendant-inclusive id set.
type Resolver interface {
	// Expand returns the skill itself followed by all descendants in
	// deterministic order. Unknown skills expand to themselves.
	Expand(skillID string) []string
}

//go:embed taxonomy.yaml
var defaultTaxonomy []byte

type taxonomyFile struct {
	Skills []struct {
		ID       string   `yaml:"id"`
		Children []string `yaml:"children"`
	} `yaml:"skills"`
}

// StaticResolver is a Resolver backed by an in-memory taxonomy.
//
// # Thread Safety
//
// Safe for concurrent use after construction; the taxonomy is read-only.
type StaticResolver struct {
	children map[string][]string
}

// NewStaticResolver builds a resolver from a YAML taxonomy payload.
func NewStaticResolver(data []byte) (*StaticResolver, error) {
	var file taxonomyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse taxonomy: %w", err)
	}
	children := make(map[string][]string, len(file.Skills))
	for _, s := range file.Skills {
		if s.ID == "" {
			return nil, fmt.Errorf("taxonomy entry with empty id")
		}
		children[s.ID] = s.Children
	}
	return &StaticResolver{children: children}, nil
}

// Default returns a resolver over the embedded taxonomy. The embedded
// file is validated by tests, so a parse failure here is a build defect.
func Default() *StaticResolver {
	r, err := NewStaticResolver(defaultTaxonomy)
	if err != nil {
		panic(fmt.Sprintf("embedded taxonomy is invalid: %v", err))
	}
	return r
}

// Expand returns skillID followed by its transitive descendants, sorted.
// Cycles in a hand-edited taxonomy are tolerated: each id is visited once.
func (r *StaticResolver) Expand(skillID string) []string {
	seen := map[string]bool{skillID: true}
	queue := []string{skillID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range r.children[current] {
			if !seen[child] {
				seen[child] = true
				queue = append(queue, child)
			}
		}
	}

	descendants := make([]string, 0, len(seen)-1)
	for id := range seen {
		if id != skillID {
			descendants = append(descendants, id)
		}
	}
	sort.Strings(descendants)
	return append([]string{skillID}, descendants...)
}
