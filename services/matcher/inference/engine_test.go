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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/talentgraph/services/matcher/hierarchy"
	"github.com/AleutianAI/talentgraph/services/matcher/rules"
	"github.com/AleutianAI/talentgraph/services/matcher/rules/builtin"
	"github.com/AleutianAI/talentgraph/services/matcher/schema"
)

func defaultEngine(t *testing.T) *Engine {
	t.Helper()
	defs, err := rules.ParseDefinitions(builtin.DefaultRuleSet)
	require.NoError(t, err)
	return NewEngine(rules.NewEngine(defs), hierarchy.Default(), DefaultEngineConfig(), nil)
}

func customEngine(t *testing.T, ruleYAML string) *Engine {
	t.Helper()
	defs, err := rules.ParseDefinitions([]byte(ruleYAML))
	require.NoError(t, err)
	return NewEngine(rules.NewEngine(defs), hierarchy.Default(), DefaultEngineConfig(), nil)
}

func constraintByRule(t *testing.T, res *Result, ruleID string) DerivedConstraint {
	t.Helper()
	for _, dc := range res.DerivedConstraints {
		if dc.Rule.ID == ruleID {
			return dc
		}
	}
	t.Fatalf("no derived constraint for rule %s", ruleID)
	return DerivedConstraint{}
}

func TestRunNoTriggers(t *testing.T) {
	eng := defaultEngine(t)

	res, err := eng.Run(context.Background(), schema.SearchRequest{TeamFocus: "backend"})
	require.NoError(t, err)

	assert.Empty(t, res.DerivedConstraints)
	assert.Empty(t, res.FiredRules)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, 1, res.IterationCount)
	assert.Empty(t, res.Final.AllSkills())
}

func TestRunScalingChain(t *testing.T) {
	eng := defaultEngine(t)

	res, err := eng.Run(context.Background(), schema.SearchRequest{
		TeamFocus:              "scaling",
		RequiredSeniorityLevel: "senior",
	})
	require.NoError(t, err)

	// Everything chains within one pass thanks to priority staggering;
	// the second pass just confirms quiescence.
	assert.Equal(t, 2, res.IterationCount)
	assert.Equal(t, []string{
		"scaling-requires-distributed",
		"senior-scaling-experience-floor",
		"distributed-requires-observability",
		"distributed-prefers-tracing",
		"observability-requires-incident-response",
	}, res.FiredRules)
	assert.Empty(t, res.OverriddenRules)
	assert.Empty(t, res.Warnings)

	obs := constraintByRule(t, res, "distributed-requires-observability")
	assert.Equal(t, []Chain{{"scaling-requires-distributed", "distributed-requires-observability"}},
		obs.Provenance.DerivationChains)

	incident := constraintByRule(t, res, "observability-requires-incident-response")
	assert.Equal(t, []Chain{{
		"scaling-requires-distributed",
		"distributed-requires-observability",
		"observability-requires-incident-response",
	}}, incident.Provenance.DerivationChains)

	tracing := constraintByRule(t, res, "distributed-prefers-tracing")
	require.NotNil(t, tracing.Action.BoostStrength)
	assert.InDelta(t, 0.6, *tracing.Action.BoostStrength, 1e-9)

	years, ok := res.Final.RequiredProperty("minYearsExperience")
	require.True(t, ok)
	assert.EqualValues(t, 6, years)

	derived := DerivedRequiredSkills(res.DerivedConstraints)
	assert.Contains(t, derived, "skill.distributed-systems")
	assert.Contains(t, derived, "skill.observability")
	assert.Contains(t, derived, "skill.incident-response")

	// Hierarchy descendants land in the chaining set, not in the derived
	// constraint targets.
	all := res.Final.AllSkills()
	assert.Contains(t, all, "skill.kafka")
	assert.Contains(t, all, "skill.tracing")
	assert.NotContains(t, derived, "skill.kafka")
}

func TestRunIdempotent(t *testing.T) {
	eng := defaultEngine(t)
	req := schema.SearchRequest{TeamFocus: "scaling", RequiredSeniorityLevel: "staff"}

	first, err := eng.Run(context.Background(), req)
	require.NoError(t, err)
	second, err := eng.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.DerivedConstraints, second.DerivedConstraints)
	assert.Equal(t, first.FiredRules, second.FiredRules)
	assert.Equal(t, first.IterationCount, second.IterationCount)
	assert.Equal(t, first.Final.AllSkills(), second.Final.AllSkills())
}

func TestExplicitRuleOverride(t *testing.T) {
	eng := defaultEngine(t)

	res, err := eng.Run(context.Background(), schema.SearchRequest{
		TeamFocus:         "scaling",
		OverriddenRuleIds: []string{"scaling-requires-distributed"},
	})
	require.NoError(t, err)

	// The overridden rule still fires and is recorded, but its facts
	// never merge, so nothing downstream of it can chain.
	require.Len(t, res.DerivedConstraints, 1)
	dc := res.DerivedConstraints[0]
	require.NotNil(t, dc.Override)
	assert.Equal(t, OverrideScopeFull, dc.Override.Scope)
	assert.Equal(t, ReasonExplicitRuleOverride, dc.Override.ReasonType)
	assert.False(t, dc.Active())

	assert.Equal(t, []string{"scaling-requires-distributed"}, res.OverriddenRules)
	assert.Empty(t, DerivedRequiredSkills(res.DerivedConstraints))
	assert.Empty(t, res.Final.AllSkills())
}

func TestImplicitFieldOverride(t *testing.T) {
	eng := defaultEngine(t)

	res, err := eng.Run(context.Background(), schema.SearchRequest{
		TeamFocus:            "greenfield",
		RequiredMaxStartTime: "immediate",
	})
	require.NoError(t, err)

	dc := constraintByRule(t, res, "greenfield-prefers-fast-start")
	require.NotNil(t, dc.Override)
	assert.Equal(t, OverrideScopeFull, dc.Override.Scope)
	assert.Equal(t, ReasonImplicitFieldOverride, dc.Override.ReasonType)

	// The user's own start-time constraint stays untouched.
	v, ok := res.Final.RequiredProperty("requiredMaxStartTime")
	require.True(t, ok)
	assert.Equal(t, "immediate", v)
	_, ok = res.Final.PreferredProperty("requiredMaxStartTime")
	assert.False(t, ok)
}

func TestExplicitOverrideBeatsImplicitFieldOverride(t *testing.T) {
	eng := defaultEngine(t)

	// Both override conditions hold at once: the rule id is explicitly
	// overridden and its target field is user-set. Explicit wins.
	res, err := eng.Run(context.Background(), schema.SearchRequest{
		TeamFocus:            "greenfield",
		RequiredMaxStartTime: "immediate",
		OverriddenRuleIds:    []string{"greenfield-prefers-fast-start"},
	})
	require.NoError(t, err)

	dc := constraintByRule(t, res, "greenfield-prefers-fast-start")
	require.NotNil(t, dc.Override)
	assert.Equal(t, OverrideScopeFull, dc.Override.Scope)
	assert.Equal(t, ReasonExplicitRuleOverride, dc.Override.ReasonType)
	assert.False(t, dc.Active())
}

func TestImplicitSkillOverrideFull(t *testing.T) {
	eng := defaultEngine(t)

	res, err := eng.Run(context.Background(), schema.SearchRequest{
		TeamFocus:      "scaling",
		RequiredSkills: []schema.SkillRequirement{{Skill: "skill.distributed-systems"}},
	})
	require.NoError(t, err)

	dc := constraintByRule(t, res, "scaling-requires-distributed")
	require.NotNil(t, dc.Override)
	assert.Equal(t, OverrideScopeFull, dc.Override.Scope)
	assert.Equal(t, ReasonImplicitSkillOverride, dc.Override.ReasonType)
	assert.Equal(t, []string{"skill.distributed-systems"}, dc.Override.OverriddenSkills)

	// The user-supplied skill seeds the chaining set itself, so downstream
	// rules still fire. Their chains start at the downstream rule: the
	// user-input seed is filtered out of chains, never surfaced.
	obs := constraintByRule(t, res, "distributed-requires-observability")
	assert.Nil(t, obs.Override)
	assert.Equal(t, []Chain{{"distributed-requires-observability"}}, obs.Provenance.DerivationChains)
}

func TestImplicitSkillOverridePartial(t *testing.T) {
	eng := customEngine(t, `
rules:
  - id: data-platform-stack
    name: Data platform stack
    priority: 100
    conditions:
      all:
        - fact: request
          path: teamFocus
          operator: equal
          value: data
    event:
      effect: filter
      targetField: derivedSkills
      targetValue: [skill.postgres, skill.kafka]
`)

	res, err := eng.Run(context.Background(), schema.SearchRequest{
		TeamFocus:       "data",
		PreferredSkills: []string{"skill.postgres"},
	})
	require.NoError(t, err)

	dc := constraintByRule(t, res, "data-platform-stack")
	require.NotNil(t, dc.Override)
	assert.Equal(t, OverrideScopePartial, dc.Override.Scope)
	assert.Equal(t, ReasonImplicitSkillOverride, dc.Override.ReasonType)
	assert.Equal(t, []string{"skill.postgres"}, dc.Override.OverriddenSkills)
	assert.True(t, dc.Active())

	// Only the surviving remainder counts as derived-required.
	assert.Equal(t, []string{"skill.kafka"}, DerivedRequiredSkills(res.DerivedConstraints))
	// Preferred skills never seed the chaining set, so only the remainder
	// lands in allSkills.
	assert.Equal(t, []string{"skill.kafka"}, res.Final.AllSkills())
}

func TestParallelDerivationChains(t *testing.T) {
	eng := customEngine(t, `
rules:
  - id: focus-adds-p
    name: Focus adds P
    priority: 100
    conditions:
      all:
        - fact: request
          path: teamFocus
          operator: equal
          value: dual
    event:
      effect: filter
      targetField: derivedSkills
      targetValue: [skill.p]
  - id: focus-adds-q
    name: Focus adds Q
    priority: 100
    conditions:
      all:
        - fact: request
          path: teamFocus
          operator: equal
          value: dual
    event:
      effect: filter
      targetField: derivedSkills
      targetValue: [skill.q]
  - id: either-adds-r
    name: Either adds R
    priority: 50
    conditions:
      any:
        - fact: allSkills
          operator: contains
          value: skill.p
        - fact: allSkills
          operator: contains
          value: skill.q
    event:
      effect: filter
      targetField: derivedSkills
      targetValue: [skill.r]
`)

	res, err := eng.Run(context.Background(), schema.SearchRequest{TeamFocus: "dual"})
	require.NoError(t, err)

	// Both satisfied branches of the any-condition contribute a chain.
	dc := constraintByRule(t, res, "either-adds-r")
	assert.ElementsMatch(t, []Chain{
		{"focus-adds-p", "either-adds-r"},
		{"focus-adds-q", "either-adds-r"},
	}, dc.Provenance.DerivationChains)
}

func TestEqualPriorityChainTakesExtraPass(t *testing.T) {
	ruleYAML := `
rules:
  - id: focus-adds-p
    name: Focus adds P
    priority: 50
    conditions:
      all:
        - fact: request
          path: teamFocus
          operator: equal
          value: dual
    event:
      effect: filter
      targetField: derivedSkills
      targetValue: [skill.p]
  - id: p-adds-r
    name: P adds R
    priority: 50
    conditions:
      all:
        - fact: allSkills
          operator: contains
          value: skill.p
    event:
      effect: filter
      targetField: derivedSkills
      targetValue: [skill.r]
`
	eng := customEngine(t, ruleYAML)

	// The consumer shares the producer's priority, so it cannot see the
	// produced skill until the next pass: one pass per rule plus the
	// quiescent one.
	res, err := eng.Run(context.Background(), schema.SearchRequest{TeamFocus: "dual"})
	require.NoError(t, err)
	assert.Equal(t, []string{"focus-adds-p", "p-adds-r"}, res.FiredRules)
	assert.Equal(t, 3, res.IterationCount)

	dc := constraintByRule(t, res, "p-adds-r")
	assert.Equal(t, []Chain{{"focus-adds-p", "p-adds-r"}}, dc.Provenance.DerivationChains)

	// Capped to a single pass, only the producer gets to fire.
	defs, err := rules.ParseDefinitions([]byte(ruleYAML))
	require.NoError(t, err)
	capped := NewEngine(rules.NewEngine(defs), hierarchy.Default(), EngineConfig{MaxIterations: 1}, nil)
	res, err = capped.Run(context.Background(), schema.SearchRequest{TeamFocus: "dual"})
	require.NoError(t, err)
	assert.Equal(t, []string{"focus-adds-p"}, res.FiredRules)
}

func TestIterationCapWarning(t *testing.T) {
	defs, err := rules.ParseDefinitions(builtin.DefaultRuleSet)
	require.NoError(t, err)
	eng := NewEngine(rules.NewEngine(defs), hierarchy.Default(), EngineConfig{MaxIterations: 1}, nil)

	res, err := eng.Run(context.Background(), schema.SearchRequest{TeamFocus: "scaling"})
	require.NoError(t, err)

	assert.Equal(t, 1, res.IterationCount)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "iteration cap")
}

func TestRunCanceledContext(t *testing.T) {
	eng := defaultEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := eng.Run(ctx, schema.SearchRequest{TeamFocus: "scaling"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAggregateSkillBoosts(t *testing.T) {
	strength := func(v float64) *float64 { return &v }
	constraints := []DerivedConstraint{
		{
			Rule:   RuleRef{ID: "a"},
			Action: Action{Effect: rules.EffectBoost, TargetField: DerivedSkillsField, TargetValue: []string{"skill.x", "skill.y"}, BoostStrength: strength(0.4)},
		},
		{
			Rule:   RuleRef{ID: "b"},
			Action: Action{Effect: rules.EffectBoost, TargetField: DerivedSkillsField, TargetValue: []string{"skill.x"}, BoostStrength: strength(0.9)},
		},
		{
			// Fully overridden boosts contribute nothing.
			Rule:     RuleRef{ID: "c"},
			Action:   Action{Effect: rules.EffectBoost, TargetField: DerivedSkillsField, TargetValue: []string{"skill.z"}, BoostStrength: strength(1.0)},
			Override: &Override{Scope: OverrideScopeFull, ReasonType: ReasonExplicitRuleOverride},
		},
		{
			// Filter constraints are not boosts.
			Rule:   RuleRef{ID: "d"},
			Action: Action{Effect: rules.EffectFilter, TargetField: DerivedSkillsField, TargetValue: []string{"skill.y"}},
		},
	}

	boosts := AggregateSkillBoosts(constraints)
	assert.Equal(t, map[string]float64{"skill.x": 0.9, "skill.y": 0.4}, boosts)
}

func TestAggregateSkillBoostsOrderIndependent(t *testing.T) {
	strength := func(v float64) *float64 { return &v }
	a := DerivedConstraint{Rule: RuleRef{ID: "a"},
		Action: Action{Effect: rules.EffectBoost, TargetField: DerivedSkillsField, TargetValue: []string{"skill.x"}, BoostStrength: strength(0.3)}}
	b := DerivedConstraint{Rule: RuleRef{ID: "b"},
		Action: Action{Effect: rules.EffectBoost, TargetField: DerivedSkillsField, TargetValue: []string{"skill.x"}, BoostStrength: strength(0.8)}}

	assert.Equal(t,
		AggregateSkillBoosts([]DerivedConstraint{a, b}),
		AggregateSkillBoosts([]DerivedConstraint{b, a}))
}
