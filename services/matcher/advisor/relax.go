// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package advisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/AleutianAI/talentgraph/pkg/logging"
	"github.com/AleutianAI/talentgraph/services/matcher/constraints"
	"github.com/AleutianAI/talentgraph/services/matcher/schema"
)

// Numeric step multipliers. Loosening an upper bound steps up; loosening
// a lower bound steps down.
var (
	numericStepsUp   = []float64{1.1, 1.25, 1.5}
	numericStepsDown = []float64{0.9, 0.75, 0.5}
)

// enumMaxExpansion caps how many steps an ordered-enum relaxation may
// advance past the current cutoff.
const enumMaxExpansion = 2

// Relaxer proposes loosened constraints for a sparse result set.
type Relaxer struct {
	tester   *constraints.Tester
	baseline int
	log      *logging.Logger
}

// NewRelaxer wires a relaxation generator. baseline is the match count
// with every constraint applied.
func NewRelaxer(tester *constraints.Tester, baseline int, log *logging.Logger) *Relaxer {
	if log == nil {
		log = logging.Default()
	}
	return &Relaxer{tester: tester, baseline: baseline, log: log}
}

// Suggestions runs every constraint's relaxation strategy and returns
// the verified candidates, biggest relief first.
//
// Each constraint's strategy is isolated: a query failure in one logs a
// warning and yields nothing for that constraint only. Suggestions that
// empty the result or leave the count unchanged are discarded.
func (r *Relaxer) Suggestions(ctx context.Context) []Suggestion {
	var out []Suggestion
	for _, c := range r.tester.Decomposed().Constraints {
		suggestions, err := r.relaxOne(ctx, c)
		if err != nil {
			r.log.Warn("relaxation strategy failed", "constraint", c.ID(), "error", err)
			continue
		}
		for _, s := range suggestions {
			if s.ResultingMatches > 0 && s.ResultingMatches != r.baseline {
				out = append(out, s)
			}
		}
	}
	sortDescending(out)
	return out
}

// relaxOne dispatches one constraint to its field strategy. Both
// switches are exhaustive: a new constraint variant or field must be
// given a strategy here before it compiles cleanly elsewhere.
func (r *Relaxer) relaxOne(ctx context.Context, c constraints.Testable) ([]Suggestion, error) {
	switch cc := c.(type) {
	case *constraints.PropertyConstraint:
		switch cc.Field {
		case schema.FieldSalary:
			return r.numericStep(ctx, cc)
		case schema.FieldStartTimeline:
			return r.enumExpand(ctx, cc)
		case schema.FieldYearsExperience, schema.FieldTimezone:
			// No public-facing numeric handle (experience is expressed
			// through seniority) and no meaningful prefix widening;
			// removal is the only relaxation.
			return r.remove(ctx, cc.CID, cc.Field, cc.Value, "")
		case schema.FieldSkill:
			panic("advisor: skill field on a property constraint")
		default:
			panic(fmt.Sprintf("advisor: unknown field %q", cc.Field))
		}
	case *constraints.SkillConstraint:
		if cc.Origin == constraints.OriginDerived {
			return r.derivedOverride(ctx, cc)
		}
		return r.skillRelaxation(ctx, cc)
	default:
		panic(fmt.Sprintf("advisor: unknown testable constraint type %T", c))
	}
}

// numericStep probes multiplied values of a numeric bound, moving away
// from the excluding direction.
func (r *Relaxer) numericStep(ctx context.Context, c *constraints.PropertyConstraint) ([]Suggestion, error) {
	current, ok := asFloat(c.Value)
	if !ok {
		return nil, fmt.Errorf("non-numeric value %v", c.Value)
	}
	steps := numericStepsDown
	if c.Operator == constraints.OpLte || c.Operator == constraints.OpLt {
		steps = numericStepsUp
	}

	var out []Suggestion
	for _, m := range steps {
		candidate := current * m
		n, err := r.tester.CountWithValue(ctx, c.CID, candidate)
		if err != nil {
			return nil, err
		}
		if n == r.baseline || n == 0 {
			continue
		}
		out = append(out, Suggestion{
			ConstraintID:     c.CID,
			Field:            c.Field,
			Action:           ActionReplaceValue,
			CurrentValue:     c.Value,
			SuggestedValue:   candidate,
			Rationale:        fmt.Sprintf("Adjusting %s from %v to %v raises matches from %d to %d.", c.Field, c.Value, candidate, r.baseline, n),
			ResultingMatches: n,
		})
	}
	return out, nil
}

// enumExpand advances an ordered-enum cutoff forward, testing the
// cumulative allowed-set at each step.
func (r *Relaxer) enumExpand(ctx context.Context, c *constraints.PropertyConstraint) ([]Suggestion, error) {
	allowed, ok := c.Value.([]string)
	if !ok || len(allowed) == 0 {
		return nil, fmt.Errorf("non-enum value %v", c.Value)
	}
	cutoff := -1
	for _, v := range allowed {
		if rank := schema.TimelineRank(v); rank > cutoff {
			cutoff = rank
		}
	}

	var out []Suggestion
	for step := 1; step <= enumMaxExpansion; step++ {
		next := cutoff + step
		if next >= len(schema.TimelineOrder) {
			break
		}
		candidate := schema.TimelineAllowed(schema.TimelineOrder[next])
		n, err := r.tester.CountWithValue(ctx, c.CID, candidate)
		if err != nil {
			return nil, err
		}
		if n == r.baseline || n == 0 {
			continue
		}
		out = append(out, Suggestion{
			ConstraintID:     c.CID,
			Field:            c.Field,
			Action:           ActionReplaceValue,
			CurrentValue:     c.Value,
			SuggestedValue:   candidate,
			Rationale:        fmt.Sprintf("Accepting starts up to %q raises matches from %d to %d.", schema.TimelineOrder[next], r.baseline, n),
			ResultingMatches: n,
		})
	}
	return out, nil
}

// remove probes dropping the constraint entirely.
func (r *Relaxer) remove(ctx context.Context, id string, field schema.Field, current any, rationale string) ([]Suggestion, error) {
	n, err := r.tester.CountWithout(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	if rationale == "" {
		rationale = fmt.Sprintf("Removing the %s constraint raises matches from %d to %d.", field, r.baseline, n)
	}
	return []Suggestion{{
		ConstraintID:     id,
		Field:            field,
		Action:           ActionRemove,
		CurrentValue:     current,
		Rationale:        rationale,
		ResultingMatches: n,
	}}, nil
}

// derivedOverride proposes overriding the rule behind a derived skill
// constraint, recovering the rule name from the display value.
func (r *Relaxer) derivedOverride(ctx context.Context, c *constraints.SkillConstraint) ([]Suggestion, error) {
	ruleName := strings.TrimPrefix(c.DisplayValue, constraints.DerivedDisplayPrefix)
	n, err := r.tester.CountWithout(ctx, c.CID)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return []Suggestion{{
		ConstraintID:     c.CID,
		Field:            schema.FieldSkill,
		Action:           ActionOverrideRule,
		CurrentValue:     c.DisplayValue,
		SuggestedValue:   ruleName,
		Rationale:        fmt.Sprintf("Overriding rule %q raises matches from %d to %d.", ruleName, r.baseline, n),
		ResultingMatches: n,
	}}, nil
}

// skillRelaxation proposes up to three independent edits for a user
// skill constraint: lower the proficiency floor one level, move the
// skill to preferred, or remove it. The latter two eliminate the hard
// filter identically, so they share one removal count on purpose — they
// differ only in the recommended client action.
func (r *Relaxer) skillRelaxation(ctx context.Context, c *constraints.SkillConstraint) ([]Suggestion, error) {
	var out []Suggestion

	if lower, ok := schema.LowerProficiency(c.MinProficiency); ok {
		n, err := r.tester.CountWithValue(ctx, c.CID, lower)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			out = append(out, Suggestion{
				ConstraintID:     c.CID,
				Field:            schema.FieldSkill,
				Action:           ActionLowerLevel,
				CurrentValue:     c.MinProficiency,
				SuggestedValue:   lower,
				Rationale:        fmt.Sprintf("Accepting %s proficiency for %s raises matches from %d to %d.", lower, c.DisplayValue, r.baseline, n),
				ResultingMatches: n,
			})
		}
	}

	removal, err := r.tester.CountWithout(ctx, c.CID)
	if err != nil {
		return nil, err
	}
	if removal > 0 {
		out = append(out,
			Suggestion{
				ConstraintID:     c.CID,
				Field:            schema.FieldSkill,
				Action:           ActionMoveToPreferred,
				CurrentValue:     c.DisplayValue,
				Rationale:        fmt.Sprintf("Treating %s as preferred instead of required raises matches from %d to %d.", c.DisplayValue, r.baseline, removal),
				ResultingMatches: removal,
			},
			Suggestion{
				ConstraintID:     c.CID,
				Field:            schema.FieldSkill,
				Action:           ActionRemove,
				CurrentValue:     c.DisplayValue,
				Rationale:        fmt.Sprintf("Dropping %s raises matches from %d to %d.", c.DisplayValue, r.baseline, removal),
				ResultingMatches: removal,
			})
	}
	return out, nil
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}
