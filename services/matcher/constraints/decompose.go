// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package constraints

import (
	"fmt"

	"github.com/AleutianAI/talentgraph/services/matcher/hierarchy"
	"github.com/AleutianAI/talentgraph/services/matcher/inference"
	"github.com/AleutianAI/talentgraph/services/matcher/rules"
	"github.com/AleutianAI/talentgraph/services/matcher/schema"
)

// BaseMatchClause anchors every generated count query.
const BaseMatchClause = "MATCH (e:Engineer)"

// Decompose turns the applied filter set — the request's hard fields plus
// the inference run's hard derived properties and skills — into atomic
// testable constraints.
//
// Decomposition rules:
//
//   - A seniority level becomes a BETWEEN on years of experience,
//     pre-split into a >= and a < constraint (the top level has no upper
//     bound and yields only the >=).
//   - Multiple timezone prefixes become one STARTS WITH constraint per
//     prefix; the query builder ORs them back together.
//   - Each user-required skill becomes its own constraint, so removing
//     one never affects the others.
//   - Each derived skill rule becomes one grouped constraint covering all
//     of the rule's target skills, since they stand or fall as a unit.
//
// Constraint ids are c1..cN in decomposition order.
func Decompose(req schema.SearchRequest, inf *inference.Result, resolver hierarchy.Resolver) (Decomposed, error) {
	d := Decomposed{BaseMatch: BaseMatchClause}
	next := 0
	id := func() string {
		next++
		return fmt.Sprintf("c%d", next)
	}

	if req.RequiredSeniorityLevel != "" {
		minYears, maxYears, hasMax, err := schema.SeniorityYearsRange(req.RequiredSeniorityLevel)
		if err != nil {
			return Decomposed{}, err
		}
		d.Constraints = append(d.Constraints, &PropertyConstraint{
			CID: id(), Field: schema.FieldYearsExperience, Operator: OpGte, Value: minYears,
		})
		if hasMax {
			d.Constraints = append(d.Constraints, &PropertyConstraint{
				CID: id(), Field: schema.FieldYearsExperience, Operator: OpLt, Value: maxYears,
			})
		}
	}

	// A derived experience floor (e.g. from a seniority-focus rule) lands
	// in requiredProperties; carry it even when it overlaps the seniority
	// band, so it stays independently relaxable.
	if inf != nil && inf.Final != nil {
		if v, ok := inf.Final.RequiredProperty("minYearsExperience"); ok {
			if years, ok := toFloat(v); ok {
				d.Constraints = append(d.Constraints, &PropertyConstraint{
					CID: id(), Field: schema.FieldYearsExperience, Operator: OpGte, Value: years,
				})
			}
		}
	}

	if req.MaxBudget > 0 {
		d.Constraints = append(d.Constraints, &PropertyConstraint{
			CID: id(), Field: schema.FieldSalary, Operator: OpLte, Value: req.MaxBudget,
		})
	}

	if req.RequiredMaxStartTime != "" {
		allowed := schema.TimelineAllowed(req.RequiredMaxStartTime)
		if allowed == nil {
			return Decomposed{}, fmt.Errorf("unknown start timeline %q", req.RequiredMaxStartTime)
		}
		d.Constraints = append(d.Constraints, &PropertyConstraint{
			CID: id(), Field: schema.FieldStartTimeline, Operator: OpIn, Value: allowed,
		})
	}

	for _, prefix := range req.RequiredTimezone {
		d.Constraints = append(d.Constraints, &PropertyConstraint{
			CID: id(), Field: schema.FieldTimezone, Operator: OpStartsWith, Value: prefix,
		})
	}

	for _, sk := range req.RequiredSkills {
		display := sk.Skill
		if sk.MinProficiency != "" {
			display = fmt.Sprintf("%s (%s+)", sk.Skill, sk.MinProficiency)
		}
		d.Constraints = append(d.Constraints, &SkillConstraint{
			CID:            id(),
			SkillIDs:       resolver.Expand(sk.Skill),
			Origin:         OriginUser,
			MinProficiency: sk.MinProficiency,
			DisplayValue:   display,
		})
	}

	if inf != nil {
		for _, dc := range inf.DerivedConstraints {
			if !dc.Active() || dc.Action.Effect != rules.EffectFilter || dc.Action.TargetField != inference.DerivedSkillsField {
				continue
			}
			skills, ok := rules.StringList(dc.Action.TargetValue)
			if !ok || len(skills) == 0 {
				continue
			}
			var expanded []string
			for _, s := range skills {
				expanded = append(expanded, resolver.Expand(s)...)
			}
			d.Constraints = append(d.Constraints, &SkillConstraint{
				CID:          id(),
				SkillIDs:     dedupe(expanded),
				Origin:       OriginDerived,
				DisplayValue: DerivedDisplayPrefix + dc.Rule.Name,
			})
		}
	}

	return d, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func toFloat(v any) (float64, bool) {
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
