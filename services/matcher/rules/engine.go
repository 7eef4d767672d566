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
	"sort"
	"strings"
)

// Engine evaluates a compiled rule set against fact containers.
//
// # Thread Safety
//
// Safe for concurrent use after construction; the definition slice is
// never mutated and fact containers are caller-owned.
type Engine struct {
	defs []Definition
}

// NewEngine compiles a rule set into an evaluation-ready engine. Rules are
// ordered by descending priority; equal priorities keep definition order.
func NewEngine(defs []Definition) *Engine {
	ordered := make([]Definition, len(defs))
	copy(ordered, defs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})
	return &Engine{defs: ordered}
}

// Definitions returns the compiled rules in evaluation order.
func (e *Engine) Definitions() []Definition {
	out := make([]Definition, len(e.defs))
	copy(out, e.defs)
	return out
}

// ApplyFunc lets the caller fold a firing's effect into the working facts
// before lower-priority rules are evaluated in the same pass. Returning
// the input unchanged keeps the pass isolated.
type ApplyFunc func(f Firing, facts Facts) Facts

// EvaluatePass runs one priority-ordered pass over the rule set.
//
// # Description
//
// Each rule whose condition tree matches the current working facts fires
// exactly once. Rules for which skip returns true are not evaluated at all
// (the caller tracks already-fired ids across passes). When apply is
// non-nil, firings are folded into the working facts per priority band:
// every rule in a band is evaluated against the same facts, and the
// band's firings are applied only before the first strictly-lower
// priority rule. A rule can therefore observe facts produced by
// higher-priority rules in the same pass but never facts produced by a
// same-or-lower priority rule; those become visible on the next pass.
//
// # Inputs
//
//   - facts: Named fact containers for this pass.
//   - skip: Optional predicate over rule ids; skipped rules never fire.
//   - apply: Optional fold of firings into the working facts.
//
// # Outputs
//
//   - []Firing: The rules that fired this pass, in evaluation order.
func (e *Engine) EvaluatePass(facts Facts, skip func(id string) bool, apply ApplyFunc) []Firing {
	var firings []Firing
	working := facts

	var pending []Firing
	fold := func() {
		for _, f := range pending {
			if apply != nil {
				working = apply(f, working)
			}
		}
		pending = pending[:0]
	}

	for i := range e.defs {
		def := &e.defs[i]
		if i > 0 && def.Priority < e.defs[i-1].Priority {
			fold()
		}
		if skip != nil && skip(def.ID) {
			continue
		}
		matched, leaves := evalCondition(&def.Conditions, working)
		if !matched {
			continue
		}
		firing := Firing{Rule: def, Event: def.Event, Matched: leaves}
		firings = append(firings, firing)
		pending = append(pending, firing)
	}
	fold()
	return firings
}

// evalCondition evaluates one condition node and collects the satisfied
// leaves. An `any` node evaluates every child so that parallel derivation
// chains are all reported, not just the first satisfied branch.
func evalCondition(cond *Condition, facts Facts) (bool, []MatchedLeaf) {
	if len(cond.All) > 0 {
		var leaves []MatchedLeaf
		for i := range cond.All {
			ok, sub := evalCondition(&cond.All[i], facts)
			if !ok {
				return false, nil
			}
			leaves = append(leaves, sub...)
		}
		return true, leaves
	}

	if len(cond.Any) > 0 {
		var leaves []MatchedLeaf
		matched := false
		for i := range cond.Any {
			ok, sub := evalCondition(&cond.Any[i], facts)
			if ok {
				matched = true
				leaves = append(leaves, sub...)
			}
		}
		if !matched {
			return false, nil
		}
		return true, leaves
	}

	if !cond.isLeaf() || cond.Fact == "" {
		return false, nil
	}

	target, ok := resolvePath(facts[cond.Fact], cond.Path)
	if !ok {
		return false, nil
	}
	if !applyOperator(cond.Operator, target, cond.Value) {
		return false, nil
	}
	return true, []MatchedLeaf{{
		Fact:     cond.Fact,
		Path:     cond.Path,
		Operator: cond.Operator,
		Value:    cond.Value,
	}}
}

// resolvePath walks a dotted path into a fact container. A missing
// container, a missing key, or a non-map intermediate all resolve to
// not-found rather than an error.
func resolvePath(container any, path string) (any, bool) {
	if container == nil {
		return nil, false
	}
	if path == "" {
		return container, true
	}
	current := container
	for _, segment := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// applyOperator applies one comparison operator. Unknown operators and
// type mismatches evaluate to false, never to an error.
func applyOperator(operator string, target, value any) bool {
	switch operator {
	case OperatorEqual:
		return looseEqual(target, value)
	case OperatorNotEqual:
		return !looseEqual(target, value)
	case OperatorIn:
		// Target scalar must be a member of the condition value list.
		list, ok := asSlice(value)
		if !ok {
			return false
		}
		for _, item := range list {
			if looseEqual(target, item) {
				return true
			}
		}
		return false
	case OperatorContains:
		// Condition value must be a member of the target fact. A non-array
		// or nil target is false, not an error.
		list, ok := asSlice(target)
		if !ok {
			return false
		}
		for _, item := range list {
			if looseEqual(item, value) {
				return true
			}
		}
		return false
	case OperatorGreaterThan:
		a, aok := asFloat(target)
		b, bok := asFloat(value)
		return aok && bok && a > b
	case OperatorLessThan:
		a, aok := asFloat(target)
		b, bok := asFloat(value)
		return aok && bok && a < b
	default:
		return false
	}
}

// looseEqual compares scalars across the numeric types YAML and JSON
// decoding produce, falling back to direct equality for strings and bools.
func looseEqual(a, b any) bool {
	if af, ok := asFloat(a); ok {
		if bf, ok := asFloat(b); ok {
			return af == bf
		}
		return false
	}
	return a == b
}

// asFloat widens any numeric value to float64.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// asSlice widens []string and []any into a []any view.
func asSlice(v any) ([]any, bool) {
	switch list := v.(type) {
	case []any:
		return list, true
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}
