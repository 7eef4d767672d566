// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rules implements a generic forward-chaining rule evaluator.
//
// A rule is a priority, a condition tree over all/any combinators with
// fact-path-operator-value leaves, and exactly one emitted event. The
// engine has no domain knowledge: callers supply named fact containers and
// interpret the emitted events themselves.
//
// Rules are evaluated in descending priority order within a single pass.
// The caller may fold firings into the working facts, but folds take
// effect only at priority-band boundaries: a rule sees the output of
// strictly higher-priority rules in the same pass, while the output of a
// same-or-lower priority rule cannot trigger it until the next pass. This
// ordering is load-bearing for derivation-chain semantics and must not be
// collapsed into a single-pass fixed point.
package rules

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Effect describes what a rule's event does to the downstream filter set.
type Effect string

const (
	// EffectFilter produces a hard constraint (required fact).
	EffectFilter Effect = "filter"

	// EffectBoost produces a soft preference (preferred fact).
	EffectBoost Effect = "boost"
)

// Supported condition operators.
const (
	OperatorEqual       = "equal"
	OperatorNotEqual    = "notEqual"
	OperatorIn          = "in"
	OperatorContains    = "contains"
	OperatorGreaterThan = "greaterThan"
	OperatorLessThan    = "lessThan"
)

// Facts is a set of named fact containers. Container values are plain Go
// data (maps, slices, scalars); leaves address into them with a dotted
// path. Facts values are treated as immutable by the engine.
type Facts map[string]any

// Condition is one node of a rule's condition tree. A node is either a
// leaf (Fact/Operator set) or a combinator (exactly one of All/Any set).
// A malformed node evaluates to non-match, never to an error, so a
// partially-misconfigured rule set degrades instead of failing inference.
type Condition struct {
	// Fact names the fact container this leaf reads.
	Fact string `yaml:"fact" json:"fact,omitempty"`

	// Path is an optional dotted path into the fact container.
	Path string `yaml:"path" json:"path,omitempty"`

	// Operator is one of the Operator* constants.
	Operator string `yaml:"operator" json:"operator,omitempty"`

	// Value is the comparison value.
	Value any `yaml:"value" json:"value,omitempty"`

	// All matches when every child matches (conjunction).
	All []Condition `yaml:"all" json:"all,omitempty"`

	// Any matches when at least one child matches (disjunction). All
	// children are still evaluated so every satisfied leaf is reported.
	Any []Condition `yaml:"any" json:"any,omitempty"`
}

// isLeaf reports whether the node is a fact leaf rather than a combinator.
func (c *Condition) isLeaf() bool {
	return len(c.All) == 0 && len(c.Any) == 0
}

// Event is the single effect a rule emits when its conditions match.
type Event struct {
	// Effect is filter or boost.
	Effect Effect `yaml:"effect" json:"effect"`

	// TargetField names the fact or property the event targets,
	// e.g. "derivedSkills" or "requiredMaxStartTime".
	TargetField string `yaml:"targetField" json:"targetField"`

	// TargetValue is the emitted value. For skill targets this is a list
	// of skill ids; for property targets a scalar.
	TargetValue any `yaml:"targetValue" json:"targetValue"`

	// BoostStrength is the optional strength of a boost event in (0, 1].
	BoostStrength *float64 `yaml:"boostStrength" json:"boostStrength,omitempty"`
}

// Definition is one inference rule, loaded once at process start.
type Definition struct {
	// ID is the stable rule identifier, unique within a rule set.
	ID string `yaml:"id" json:"id"`

	// Name is the human-readable rule name.
	Name string `yaml:"name" json:"name"`

	// Priority orders evaluation within a pass, descending. Rules with
	// equal priority keep their definition order.
	Priority int `yaml:"priority" json:"priority"`

	// Conditions is the root of the condition tree.
	Conditions Condition `yaml:"conditions" json:"conditions"`

	// Event is emitted when the condition tree matches.
	Event Event `yaml:"event" json:"event"`
}

// MatchedLeaf records one condition leaf that was actually satisfied when
// a rule fired. Downstream provenance extraction inspects these to build
// derivation chains.
type MatchedLeaf struct {
	Fact     string `json:"fact"`
	Path     string `json:"path,omitempty"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// Firing is one rule that matched during a pass, together with the leaves
// that satisfied it.
type Firing struct {
	Rule    *Definition
	Event   Event
	Matched []MatchedLeaf
}

// ruleFile is the on-disk YAML shape of a rule set.
type ruleFile struct {
	Rules []Definition `yaml:"rules"`
}

// ParseDefinitions parses a YAML rule set and validates its structure.
//
// # Outputs
//
//   - []Definition: The parsed rules in definition order.
//   - error: Non-nil if the YAML is malformed, a rule id is missing or
//     duplicated, or an event effect is unknown. Operator typos are NOT
//     load errors; they surface as never-matching leaves at evaluation.
func ParseDefinitions(data []byte) ([]Definition, error) {
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rule set: %w", err)
	}

	seen := make(map[string]bool, len(file.Rules))
	for i := range file.Rules {
		def := &file.Rules[i]
		if def.ID == "" {
			return nil, fmt.Errorf("rule %d: missing id", i)
		}
		if seen[def.ID] {
			return nil, fmt.Errorf("rule %q: duplicate id", def.ID)
		}
		seen[def.ID] = true

		switch def.Event.Effect {
		case EffectFilter, EffectBoost:
		default:
			return nil, fmt.Errorf("rule %q: unknown event effect %q", def.ID, def.Event.Effect)
		}
		def.Event.TargetValue = normalizeValue(def.Event.TargetValue)
	}
	return file.Rules, nil
}

// normalizeValue converts YAML's []interface{} lists into []string when
// every element is a string, so event consumers see a stable shape.
func normalizeValue(v any) any {
	list, ok := v.([]any)
	if !ok {
		return v
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return v
		}
		out = append(out, s)
	}
	return out
}

// StringList coerces an event target value into a string slice. Returns
// ok=false when the value is neither []string nor a lone string.
func StringList(v any) ([]string, bool) {
	switch val := v.(type) {
	case []string:
		return val, true
	case string:
		return []string{val}, true
	default:
		return nil, false
	}
}
