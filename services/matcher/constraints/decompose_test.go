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
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/talentgraph/services/matcher/graphstore"
	"github.com/AleutianAI/talentgraph/services/matcher/hierarchy"
	"github.com/AleutianAI/talentgraph/services/matcher/inference"
	"github.com/AleutianAI/talentgraph/services/matcher/rules"
	"github.com/AleutianAI/talentgraph/services/matcher/schema"
)

func TestDecomposeSenioritySplitsBetween(t *testing.T) {
	req := schema.SearchRequest{RequiredSeniorityLevel: "mid"}
	d, err := Decompose(req, nil, hierarchy.Default())
	require.NoError(t, err)
	require.Len(t, d.Constraints, 2)

	lower, ok := d.Constraints[0].(*PropertyConstraint)
	require.True(t, ok)
	assert.Equal(t, "c1", lower.CID)
	assert.Equal(t, schema.FieldYearsExperience, lower.Field)
	assert.Equal(t, OpGte, lower.Operator)
	assert.EqualValues(t, 3, lower.Value)

	upper, ok := d.Constraints[1].(*PropertyConstraint)
	require.True(t, ok)
	assert.Equal(t, OpLt, upper.Operator)
	assert.EqualValues(t, 6, upper.Value)

	// Combining both constraints reproduces an AND of both clauses.
	query, params := BuildCountQuery(d, d.ActiveAll())
	assert.Contains(t, query, "e.yearsExperience >= $c1")
	assert.Contains(t, query, "e.yearsExperience < $c2")
	assert.Contains(t, query, "\n  AND ")
	assert.EqualValues(t, 3, params["c1"])
	assert.EqualValues(t, 6, params["c2"])
}

func TestDecomposeStaffHasNoUpperBound(t *testing.T) {
	d, err := Decompose(schema.SearchRequest{RequiredSeniorityLevel: "staff"}, nil, hierarchy.Default())
	require.NoError(t, err)
	require.Len(t, d.Constraints, 1)
	pc := d.Constraints[0].(*PropertyConstraint)
	assert.Equal(t, OpGte, pc.Operator)
	assert.EqualValues(t, 10, pc.Value)
}

func TestDecomposeTimezonePerPrefix(t *testing.T) {
	d, err := Decompose(schema.SearchRequest{
		RequiredTimezone: []string{"America", "Europe"},
	}, nil, hierarchy.Default())
	require.NoError(t, err)
	require.Len(t, d.Constraints, 2)

	query, params := BuildCountQuery(d, d.ActiveAll())
	assert.Contains(t, query, "(e.timezone STARTS WITH $c1 OR e.timezone STARTS WITH $c2)")
	assert.Equal(t, "America", params["c1"])
	assert.Equal(t, "Europe", params["c2"])
}

func TestDecomposeUserSkillsIndependent(t *testing.T) {
	d, err := Decompose(schema.SearchRequest{
		RequiredSkills: []schema.SkillRequirement{
			{Skill: "skill.kubernetes", MinProficiency: "advanced"},
			{Skill: "skill.postgres"},
		},
	}, nil, hierarchy.Default())
	require.NoError(t, err)
	require.Len(t, d.Constraints, 2)

	k8s := d.Constraints[0].(*SkillConstraint)
	assert.Equal(t, OriginUser, k8s.Origin)
	assert.Equal(t, "advanced", k8s.MinProficiency)
	// Hierarchy expansion is descendant-inclusive.
	assert.Contains(t, k8s.SkillIDs, "skill.kubernetes")
	assert.Contains(t, k8s.SkillIDs, "skill.helm")

	pg := d.Constraints[1].(*SkillConstraint)
	assert.Empty(t, pg.MinProficiency)
	assert.Equal(t, "skill.postgres", pg.DisplayValue)
}

func TestDecomposeDerivedSkillsGroupedPerRule(t *testing.T) {
	inf := &inference.Result{
		DerivedConstraints: []inference.DerivedConstraint{
			{
				Rule: inference.RuleRef{ID: "r1", Name: "Scaling focus requires distributed systems"},
				Action: inference.Action{
					Effect:      rules.EffectFilter,
					TargetField: inference.DerivedSkillsField,
					TargetValue: []string{"skill.distributed-systems"},
				},
			},
			{
				// Fully overridden rules never reach decomposition.
				Rule: inference.RuleRef{ID: "r2", Name: "Overridden"},
				Action: inference.Action{
					Effect:      rules.EffectFilter,
					TargetField: inference.DerivedSkillsField,
					TargetValue: []string{"skill.observability"},
				},
				Override: &inference.Override{
					Scope:      inference.OverrideScopeFull,
					ReasonType: inference.ReasonExplicitRuleOverride,
				},
			},
		},
	}

	d, err := Decompose(schema.SearchRequest{}, inf, hierarchy.Default())
	require.NoError(t, err)
	require.Len(t, d.Constraints, 1)

	sc := d.Constraints[0].(*SkillConstraint)
	assert.Equal(t, OriginDerived, sc.Origin)
	assert.Equal(t, "Derived: Scaling focus requires distributed systems", sc.DisplayValue)
	assert.Contains(t, sc.SkillIDs, "skill.distributed-systems")
	assert.Contains(t, sc.SkillIDs, "skill.kafka")
}

func TestBuildCountQuerySkillProficiencyFloor(t *testing.T) {
	d := Decomposed{
		BaseMatch: BaseMatchClause,
		Constraints: []Testable{
			&SkillConstraint{CID: "c1", SkillIDs: []string{"skill.go"}, Origin: OriginUser, MinProficiency: "advanced", DisplayValue: "skill.go"},
		},
	}
	query, params := BuildCountQuery(d, d.ActiveAll())
	assert.Contains(t, query, "EXISTS { MATCH (e)-[r:HAS_SKILL]->(s:Skill) WHERE s.id IN $c1 AND r.proficiencyRank >= $c1_prof }")
	assert.Contains(t, query, "RETURN count(e) AS matchCount")
	assert.Equal(t, []string{"skill.go"}, params["c1"])
	assert.Equal(t, schema.ProficiencyRank("advanced"), params["c1_prof"])
}

func TestBuildCountQueryNoConstraints(t *testing.T) {
	d := Decomposed{BaseMatch: BaseMatchClause}
	query, params := BuildCountQuery(d, d.ActiveAll())
	assert.Equal(t, "MATCH (e:Engineer)\nRETURN count(e) AS matchCount", query)
	assert.Empty(t, params)
}

// recordingSession fakes the graph with a canned count and captures every
// query it sees.
type recordingSession struct {
	queries []string
	params  []map[string]any
	count   int64
}

func (r *recordingSession) run(_ context.Context, query string, params map[string]any) ([]graphstore.Record, error) {
	r.queries = append(r.queries, query)
	r.params = append(r.params, params)
	return []graphstore.Record{{"matchCount": r.count}}, nil
}

func TestTesterCountVariants(t *testing.T) {
	rec := &recordingSession{count: 7}
	d, err := Decompose(schema.SearchRequest{
		RequiredSeniorityLevel: "senior",
		MaxBudget:              180000,
		RequiredSkills:         []schema.SkillRequirement{{Skill: "skill.postgres", MinProficiency: "advanced"}},
	}, nil, hierarchy.Default())
	require.NoError(t, err)
	tester := NewTester(graphstore.SessionFunc(rec.run), d, nil)

	count, err := tester.CountAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, count)

	// Excluding the budget constraint drops its clause but keeps the rest.
	_, err = tester.CountWithout(context.Background(), "c3")
	require.NoError(t, err)
	assert.NotContains(t, rec.queries[1], "e.salary")
	assert.Contains(t, rec.queries[1], "e.yearsExperience")
	assert.Contains(t, rec.queries[1], "HAS_SKILL")

	// Replacing a value keeps all clauses and swaps the parameter.
	_, err = tester.CountWithValue(context.Background(), "c3", 200000.0)
	require.NoError(t, err)
	assert.Contains(t, rec.queries[2], "e.salary <= $c3")
	assert.EqualValues(t, 200000.0, rec.params[2]["c3"])

	// Replacing a skill constraint's value lowers its proficiency floor.
	_, err = tester.CountWithValue(context.Background(), "c4", "intermediate")
	require.NoError(t, err)
	assert.Equal(t, schema.ProficiencyRank("intermediate"), rec.params[3]["c4_prof"])

	// Adding an ad-hoc constraint extends the full set.
	_, err = tester.CountWithAdded(context.Background(), &PropertyConstraint{
		CID: "tighten", Field: schema.FieldTimezone, Operator: OpStartsWith, Value: "Europe",
	})
	require.NoError(t, err)
	assert.Contains(t, rec.queries[4], "e.timezone STARTS WITH $tighten")
	assert.Contains(t, rec.queries[4], "e.salary <= $c3")
}

func TestTesterSkillFrequencyExcludesSkillConstraints(t *testing.T) {
	rec := &recordingSession{count: 3}
	d, err := Decompose(schema.SearchRequest{
		MaxBudget:      150000,
		RequiredSkills: []schema.SkillRequirement{{Skill: "skill.postgres"}},
	}, nil, hierarchy.Default())
	require.NoError(t, err)
	tester := NewTester(graphstore.SessionFunc(func(ctx context.Context, q string, p map[string]any) ([]graphstore.Record, error) {
		rec.queries = append(rec.queries, q)
		return []graphstore.Record{
			{"skillId": "skill.go", "matchCount": int64(9)},
			{"skillId": "skill.kafka", "matchCount": int64(2)},
		}, nil
	}), d, nil)

	freq, err := tester.SkillFrequency(context.Background(), d.ActiveAll())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"skill.go": 9, "skill.kafka": 2}, freq)
	require.Len(t, rec.queries, 1)
	assert.Contains(t, rec.queries[0], "e.salary <= $c1")
	assert.NotContains(t, strings.Split(rec.queries[0], "RETURN")[0], "EXISTS")
	assert.Contains(t, rec.queries[0], "count(DISTINCT e)")
}
