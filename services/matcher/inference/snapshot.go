// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package inference expands manager hiring intent into concrete derived
// constraints by driving the generic rule engine to a fixpoint.
//
// The package models the evolving fact state as immutable Snapshot values:
// every merge produces a new Snapshot, never an in-place mutation, which
// keeps the fixpoint loop free of aliasing concerns. Each derived
// constraint carries full provenance (the rule-id chains that led to it)
// and an override annotation when user-supplied input supersedes it.
package inference

import (
	"sort"
	"strings"

	"github.com/AleutianAI/talentgraph/services/matcher/hierarchy"
	"github.com/AleutianAI/talentgraph/services/matcher/rules"
	"github.com/AleutianAI/talentgraph/services/matcher/schema"
)

// UserInputSentinel marks provenance that originates from the request
// itself rather than from a rule. It only ever appears as a seed marker;
// derivation chains handed to callers never contain it.
const UserInputSentinel = "user-input"

// DerivedSkillsField is the event target field for skill-set effects.
const DerivedSkillsField = "derivedSkills"

// Fact container names exposed to the rule engine.
const (
	FactRequest             = "request"
	FactAllSkills           = "allSkills"
	FactRequiredProperties  = "requiredProperties"
	FactPreferredProperties = "preferredProperties"
)

// Chain is an ordered list of rule ids showing how a derived fact was
// reached, outermost trigger first.
type Chain []string

func (c Chain) key() string {
	return strings.Join(c, "|")
}

// Snapshot is one immutable fact state of an inference run.
//
// Transformations return a new Snapshot; the receiver is never modified.
// This makes a Snapshot safe to hold across iterations and safe to share
// with the rule engine, which treats fact containers as read-only.
type Snapshot struct {
	request             map[string]any
	allSkills           []string
	requiredProperties  map[string]any
	preferredProperties map[string]any

	skillProvenance    map[string][]Chain
	requiredProvenance map[string][]Chain
	preferredProvenance map[string][]Chain

	userExplicitFields map[string]bool
	userExplicitSkills map[string]bool
	overriddenRuleIDs  map[string]bool
}

// NewSnapshot builds the initial fact state from a search request.
//
// Seeding rules:
//
//   - allSkills is seeded from REQUIRED skills only, hierarchy-expanded.
//     Preferred skills mark the skill as user-explicit for override checks
//     but never seed the chaining set.
//   - requiredProperties holds every explicitly-set hard request field,
//     each with provenance [[user-input]].
//   - userExplicitFields contains only fields the caller actually set; an
//     empty slice does not count as explicit.
func NewSnapshot(req schema.SearchRequest, resolver hierarchy.Resolver) *Snapshot {
	s := &Snapshot{
		request:             make(map[string]any),
		requiredProperties:  make(map[string]any),
		preferredProperties: make(map[string]any),
		skillProvenance:     make(map[string][]Chain),
		requiredProvenance:  make(map[string][]Chain),
		preferredProvenance: make(map[string][]Chain),
		userExplicitFields:  req.ExplicitFields(),
		userExplicitSkills:  req.ExplicitSkills(),
		overriddenRuleIDs:   make(map[string]bool),
	}
	for _, id := range req.OverriddenRuleIds {
		s.overriddenRuleIDs[id] = true
	}

	seed := []Chain{{UserInputSentinel}}

	if req.TeamFocus != "" {
		s.request["teamFocus"] = req.TeamFocus
	}
	if req.RequiredSeniorityLevel != "" {
		s.request["requiredSeniorityLevel"] = req.RequiredSeniorityLevel
		s.requiredProperties["requiredSeniorityLevel"] = req.RequiredSeniorityLevel
		s.requiredProvenance["requiredSeniorityLevel"] = seed
	}
	if req.MaxBudget > 0 {
		s.request["maxBudget"] = req.MaxBudget
		s.requiredProperties["maxBudget"] = req.MaxBudget
		s.requiredProvenance["maxBudget"] = seed
	}
	if req.RequiredMaxStartTime != "" {
		s.request["requiredMaxStartTime"] = req.RequiredMaxStartTime
		s.requiredProperties["requiredMaxStartTime"] = req.RequiredMaxStartTime
		s.requiredProvenance["requiredMaxStartTime"] = seed
	}
	if len(req.RequiredTimezone) > 0 {
		zones := append([]string(nil), req.RequiredTimezone...)
		s.request["requiredTimezone"] = zones
		s.requiredProperties["requiredTimezone"] = zones
		s.requiredProvenance["requiredTimezone"] = seed
	}

	skillSet := make(map[string]bool)
	for _, sk := range req.RequiredSkills {
		for _, id := range resolver.Expand(sk.Skill) {
			skillSet[id] = true
			s.skillProvenance[id] = seed
		}
	}
	s.allSkills = sortedKeys(skillSet)
	return s
}

// Facts exposes the snapshot as named fact containers for the rule
// engine. The containers are the snapshot's own maps, not copies; the
// engine only reads them, and merges go through withConstraint, which
// clones before mutating.
func (s *Snapshot) Facts() rules.Facts {
	return rules.Facts{
		FactRequest:             s.request,
		FactAllSkills:           s.allSkills,
		FactRequiredProperties:  s.requiredProperties,
		FactPreferredProperties: s.preferredProperties,
	}
}

// AllSkills returns the current chaining skill set, sorted.
func (s *Snapshot) AllSkills() []string {
	return append([]string(nil), s.allSkills...)
}

// RequiredProperty returns a hard property value by name.
func (s *Snapshot) RequiredProperty(name string) (any, bool) {
	v, ok := s.requiredProperties[name]
	return v, ok
}

// PreferredProperty returns a soft property value by name.
func (s *Snapshot) PreferredProperty(name string) (any, bool) {
	v, ok := s.preferredProperties[name]
	return v, ok
}

// clone copies the snapshot's top-level containers. Chains are shared;
// they are append-only and never mutated in place.
func (s *Snapshot) clone() *Snapshot {
	out := &Snapshot{
		request:             s.request,
		allSkills:           append([]string(nil), s.allSkills...),
		requiredProperties:  copyMap(s.requiredProperties),
		preferredProperties: copyMap(s.preferredProperties),
		skillProvenance:     copyChains(s.skillProvenance),
		requiredProvenance:  copyChains(s.requiredProvenance),
		preferredProvenance: copyChains(s.preferredProvenance),
		userExplicitFields:  s.userExplicitFields,
		userExplicitSkills:  s.userExplicitSkills,
		overriddenRuleIDs:   s.overriddenRuleIDs,
	}
	return out
}

// withConstraint folds one non-fully-overridden derived constraint into a
// new snapshot.
//
// Skill targets (filter AND boost) are hierarchy-expanded and unioned
// into allSkills. Property targets split by effect: a filter rule writes
// a hard fact into requiredProperties, a boost rule writes a soft fact
// into preferredProperties, even when both target the same field name.
func (s *Snapshot) withConstraint(dc DerivedConstraint, resolver hierarchy.Resolver) *Snapshot {
	out := s.clone()

	if dc.Action.TargetField == DerivedSkillsField {
		skills, ok := rules.StringList(dc.Action.TargetValue)
		if !ok {
			return out
		}
		set := make(map[string]bool, len(out.allSkills))
		for _, id := range out.allSkills {
			set[id] = true
		}
		for _, sk := range skills {
			for _, id := range resolver.Expand(sk) {
				set[id] = true
				out.skillProvenance[id] = mergeChains(out.skillProvenance[id], dc.Provenance.DerivationChains)
			}
		}
		out.allSkills = sortedKeys(set)
		return out
	}

	field := dc.Action.TargetField
	switch dc.Action.Effect {
	case rules.EffectBoost:
		out.preferredProperties[field] = dc.Action.TargetValue
		out.preferredProvenance[field] = mergeChains(out.preferredProvenance[field], dc.Provenance.DerivationChains)
	case rules.EffectFilter:
		out.requiredProperties[field] = dc.Action.TargetValue
		out.requiredProvenance[field] = mergeChains(out.requiredProvenance[field], dc.Provenance.DerivationChains)
	}
	return out
}

// chainsFor computes the derivation chains of a firing by inspecting
// which condition leaves the rule actually satisfied.
//
// A leaf reading allSkills.contains(X) contributes the provenance of
// skill X as chain prefixes; a leaf reading requiredProperties.P or
// preferredProperties.P contributes the provenance of P from the matching
// container. Both containers can contribute independently, yielding
// parallel chains when an `any` condition is satisfied by both. A rule
// with no derived-fact-dependent leaves gets the single-element chain
// [ruleID]. Chains are deduplicated; the user-input seed marker is
// filtered out rather than carried.
func (s *Snapshot) chainsFor(f rules.Firing) []Chain {
	var prefixes []Chain
	for _, leaf := range f.Matched {
		switch leaf.Fact {
		case FactAllSkills:
			if leaf.Operator == rules.OperatorContains {
				if skill, ok := leaf.Value.(string); ok {
					prefixes = append(prefixes, s.skillProvenance[skill]...)
				}
			}
		case FactRequiredProperties:
			prefixes = append(prefixes, s.requiredProvenance[leaf.Path]...)
		case FactPreferredProperties:
			prefixes = append(prefixes, s.preferredProvenance[leaf.Path]...)
		}
	}

	ruleID := f.Rule.ID
	var out []Chain
	seen := make(map[string]bool)
	for _, prefix := range prefixes {
		var chain Chain
		if len(prefix) == 1 && prefix[0] == UserInputSentinel {
			chain = Chain{ruleID}
		} else {
			chain = append(append(Chain{}, prefix...), ruleID)
		}
		if !seen[chain.key()] {
			seen[chain.key()] = true
			out = append(out, chain)
		}
	}
	if len(out) == 0 {
		out = []Chain{{ruleID}}
	}
	return out
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyChains(m map[string][]Chain) map[string][]Chain {
	out := make(map[string][]Chain, len(m))
	for k, v := range m {
		out[k] = append([]Chain(nil), v...)
	}
	return out
}

// mergeChains unions two chain lists, preserving order and dropping
// duplicates.
func mergeChains(existing, incoming []Chain) []Chain {
	seen := make(map[string]bool, len(existing))
	out := append([]Chain(nil), existing...)
	for _, c := range existing {
		seen[c.key()] = true
	}
	for _, c := range incoming {
		if !seen[c.key()] {
			seen[c.key()] = true
			out = append(out, c)
		}
	}
	return out
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
