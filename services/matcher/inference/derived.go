// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package inference

import (
	"fmt"
	"sort"
	"strings"

	"github.com/AleutianAI/talentgraph/services/matcher/rules"
)

// OverrideScope says how much of a derived constraint user input supersedes.
type OverrideScope string

const (
	// OverrideScopeFull deactivates the whole constraint.
	OverrideScopeFull OverrideScope = "FULL"
	// OverrideScopePartial deactivates only the overridden skills; the
	// constraint stays active for the remainder.
	OverrideScopePartial OverrideScope = "PARTIAL"
)

// OverrideReason classifies why a constraint was overridden, in
// precedence order: an explicit rule override beats a field override,
// which beats a skill override.
type OverrideReason string

const (
	ReasonExplicitRuleOverride  OverrideReason = "explicit-rule-override"
	ReasonImplicitFieldOverride OverrideReason = "implicit-field-override"
	ReasonImplicitSkillOverride OverrideReason = "implicit-skill-override"
)

// RuleRef identifies the rule a derived constraint came from.
type RuleRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Action is what the constraint asks for: a hard filter or a soft boost
// on a target field.
type Action struct {
	Effect        rules.Effect `json:"effect"`
	TargetField   string       `json:"targetField"`
	TargetValue   any          `json:"targetValue"`
	BoostStrength *float64     `json:"boostStrength,omitempty"`
}

// Provenance records how the constraint was derived.
type Provenance struct {
	DerivationChains []Chain `json:"derivationChains"`
	Explanation      string  `json:"explanation"`
}

// Override annotates a constraint superseded by user input.
type Override struct {
	Scope            OverrideScope  `json:"scope"`
	OverriddenSkills []string       `json:"overriddenSkills,omitempty"`
	ReasonType       OverrideReason `json:"reasonType"`
}

// DerivedConstraint is one rule firing translated into a concrete,
// explainable constraint. Override is nil for fully active constraints.
type DerivedConstraint struct {
	Rule       RuleRef    `json:"rule"`
	Action     Action     `json:"action"`
	Provenance Provenance `json:"provenance"`
	Override   *Override  `json:"override,omitempty"`
}

// Active reports whether the constraint still contributes to search:
// true unless fully overridden.
func (dc DerivedConstraint) Active() bool {
	return dc.Override == nil || dc.Override.Scope == OverrideScopePartial
}

// DerivedRequiredSkills returns the sorted union of skills demanded by
// active filter constraints targeting the derived skill set. Partially
// overridden constraints contribute only their surviving remainder,
// which is already reflected in their target value.
func DerivedRequiredSkills(constraints []DerivedConstraint) []string {
	set := make(map[string]bool)
	for _, dc := range constraints {
		if !dc.Active() || dc.Action.Effect != rules.EffectFilter || dc.Action.TargetField != DerivedSkillsField {
			continue
		}
		skills, ok := rules.StringList(dc.Action.TargetValue)
		if !ok {
			continue
		}
		for _, s := range skills {
			set[s] = true
		}
	}
	return sortedKeys(set)
}

// AggregateSkillBoosts collapses active boost constraints targeting the
// derived skill set into a per-skill strength map. When several rules
// boost the same skill the strongest boost wins.
func AggregateSkillBoosts(constraints []DerivedConstraint) map[string]float64 {
	out := make(map[string]float64)
	for _, dc := range constraints {
		if !dc.Active() || dc.Action.Effect != rules.EffectBoost || dc.Action.TargetField != DerivedSkillsField {
			continue
		}
		if dc.Action.BoostStrength == nil {
			continue
		}
		skills, ok := rules.StringList(dc.Action.TargetValue)
		if !ok {
			continue
		}
		for _, s := range skills {
			if *dc.Action.BoostStrength > out[s] {
				out[s] = *dc.Action.BoostStrength
			}
		}
	}
	return out
}

// explanation renders a one-line human account of how the rule fired.
func explanation(rule RuleRef, chains []Chain) string {
	direct := len(chains) == 1 && len(chains[0]) == 1
	if direct {
		return fmt.Sprintf("Rule %q matched the hiring request directly.", rule.Name)
	}
	rendered := make([]string, 0, len(chains))
	for _, c := range chains {
		rendered = append(rendered, strings.Join(c, " -> "))
	}
	sort.Strings(rendered)
	return fmt.Sprintf("Rule %q fired via %s.", rule.Name, strings.Join(rendered, "; "))
}
