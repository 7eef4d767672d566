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
	"fmt"

	"github.com/AleutianAI/talentgraph/pkg/logging"
	"github.com/AleutianAI/talentgraph/services/matcher/hierarchy"
	"github.com/AleutianAI/talentgraph/services/matcher/rules"
	"github.com/AleutianAI/talentgraph/services/matcher/schema"
)

// EngineConfig tunes a fixpoint run.
type EngineConfig struct {
	// MaxIterations caps the number of evaluation passes. The cap is a
	// safety net; because each rule fires at most once per run, a run
	// over N rules always converges within N+1 passes.
	MaxIterations int
}

// DefaultEngineConfig returns the standard run limits.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{MaxIterations: 10}
}

// Result is the outcome of one inference run.
type Result struct {
	// DerivedConstraints lists every fired rule as a constraint, fired
	// order, overridden constraints included (annotated, not dropped).
	DerivedConstraints []DerivedConstraint `json:"derivedConstraints"`
	// FiredRules lists rule ids in firing order.
	FiredRules []string `json:"firedRules"`
	// IterationCount is the number of passes executed, including the
	// final quiescent pass that confirmed the fixpoint.
	IterationCount int `json:"iterationCount"`
	// Warnings carries non-fatal anomalies such as hitting the
	// iteration cap.
	Warnings []string `json:"warnings,omitempty"`
	// OverriddenRules lists ids of rules whose constraints carry any
	// override annotation.
	OverriddenRules []string `json:"overriddenRules,omitempty"`

	// Final is the fact state at the fixpoint.
	Final *Snapshot `json:"-"`
}

// Engine runs forward-chaining inference over a compiled rule set.
//
// # Thread Safety
//
// An Engine is immutable after construction and safe for concurrent use;
// each Run builds its own Snapshot chain.
type Engine struct {
	rules    *rules.Engine
	resolver hierarchy.Resolver
	config   EngineConfig
	log      *logging.Logger
}

// NewEngine wires an inference engine over a compiled rule set.
func NewEngine(re *rules.Engine, resolver hierarchy.Resolver, config EngineConfig, log *logging.Logger) *Engine {
	if config.MaxIterations <= 0 {
		config.MaxIterations = DefaultEngineConfig().MaxIterations
	}
	if log == nil {
		log = logging.Default()
	}
	return &Engine{rules: re, resolver: resolver, config: config, log: log}
}

// Run evaluates rules against the request until no rule produces a new
// fact, then returns every derived constraint with provenance.
//
// Within a pass, rules are evaluated in descending priority and each
// firing's facts are visible to strictly lower-priority rules of the
// same pass. A rule fires at most once per run. Fully overridden
// constraints are recorded but their facts never merge, so they cannot
// trigger further chaining.
func (e *Engine) Run(ctx context.Context, req schema.SearchRequest) (*Result, error) {
	working := NewSnapshot(req, e.resolver)

	fired := make(map[string]bool)
	var constraints []DerivedConstraint
	var firedOrder []string
	var overridden []string
	var warnings []string

	iterations := 0
	lastPassFired := 0
	for iterations < e.config.MaxIterations {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("inference run canceled: %w", err)
		}
		iterations++

		firings := e.rules.EvaluatePass(working.Facts(),
			func(id string) bool { return fired[id] },
			func(f rules.Firing, _ rules.Facts) rules.Facts {
				dc := e.constraintFor(working, f)
				constraints = append(constraints, dc)
				fired[f.Rule.ID] = true
				firedOrder = append(firedOrder, f.Rule.ID)
				if dc.Override != nil {
					overridden = append(overridden, f.Rule.ID)
				}
				if dc.Active() {
					working = working.withConstraint(dc, e.resolver)
				}
				return working.Facts()
			})

		lastPassFired = len(firings)
		if lastPassFired == 0 {
			break
		}
	}

	if lastPassFired > 0 {
		warnings = append(warnings,
			fmt.Sprintf("inference stopped at iteration cap %d before reaching a fixpoint", e.config.MaxIterations))
		e.log.Warn("inference iteration cap reached",
			"maxIterations", e.config.MaxIterations,
			"firedRules", len(firedOrder))
	}

	return &Result{
		DerivedConstraints: constraints,
		FiredRules:         firedOrder,
		IterationCount:     iterations,
		Warnings:           warnings,
		OverriddenRules:    overridden,
		Final:              working,
	}, nil
}

// constraintFor translates a firing into a derived constraint, applying
// override precedence: explicit rule override, then implicit field
// override, then implicit skill override.
func (e *Engine) constraintFor(s *Snapshot, f rules.Firing) DerivedConstraint {
	chains := s.chainsFor(f)
	ref := RuleRef{ID: f.Rule.ID, Name: f.Rule.Name}
	dc := DerivedConstraint{
		Rule: ref,
		Action: Action{
			Effect:        f.Event.Effect,
			TargetField:   f.Event.TargetField,
			TargetValue:   f.Event.TargetValue,
			BoostStrength: f.Event.BoostStrength,
		},
		Provenance: Provenance{
			DerivationChains: chains,
			Explanation:      explanation(ref, chains),
		},
	}

	if s.overriddenRuleIDs[f.Rule.ID] {
		dc.Override = &Override{Scope: OverrideScopeFull, ReasonType: ReasonExplicitRuleOverride}
		return dc
	}
	if f.Event.TargetField != DerivedSkillsField && s.userExplicitFields[f.Event.TargetField] {
		dc.Override = &Override{Scope: OverrideScopeFull, ReasonType: ReasonImplicitFieldOverride}
		return dc
	}
	if f.Event.Effect == rules.EffectFilter && f.Event.TargetField == DerivedSkillsField {
		skills, ok := rules.StringList(f.Event.TargetValue)
		if !ok {
			return dc
		}
		var hit, remainder []string
		for _, sk := range skills {
			if s.userExplicitSkills[sk] {
				hit = append(hit, sk)
			} else {
				remainder = append(remainder, sk)
			}
		}
		switch {
		case len(hit) > 0 && len(remainder) == 0:
			dc.Override = &Override{
				Scope:            OverrideScopeFull,
				OverriddenSkills: hit,
				ReasonType:       ReasonImplicitSkillOverride,
			}
		case len(hit) > 0:
			dc.Override = &Override{
				Scope:            OverrideScopePartial,
				OverriddenSkills: hit,
				ReasonType:       ReasonImplicitSkillOverride,
			}
			dc.Action.TargetValue = remainder
		}
	}
	return dc
}
