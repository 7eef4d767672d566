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
	"math"
	"sort"

	"github.com/AleutianAI/talentgraph/pkg/logging"
	"github.com/AleutianAI/talentgraph/services/matcher/constraints"
	"github.com/AleutianAI/talentgraph/services/matcher/schema"
)

// TightenConfig tunes the tightening generator.
type TightenConfig struct {
	// MaxSuggestions truncates the final sorted list.
	MaxSuggestions int

	// BudgetMultipliers are probed against the current budget ceiling.
	BudgetMultipliers []float64

	// SkillCoverageThreshold excludes skills held by less than this
	// share of the currently-matching pool from skill suggestions.
	SkillCoverageThreshold float64
}

// DefaultTightenConfig returns the standard tightening limits.
func DefaultTightenConfig() TightenConfig {
	return TightenConfig{
		MaxSuggestions:         5,
		BudgetMultipliers:      []float64{0.8, 0.7, 0.6},
		SkillCoverageThreshold: 0.2,
	}
}

// Tightener proposes additional or narrowed constraints for an abundant
// result set. Every suggestion is verified: it must strictly reduce the
// baseline without emptying it.
type Tightener struct {
	tester *constraints.Tester
	req    schema.SearchRequest
	config TightenConfig
	log    *logging.Logger
}

func NewTightener(tester *constraints.Tester, req schema.SearchRequest, config TightenConfig, log *logging.Logger) *Tightener {
	if config.MaxSuggestions <= 0 {
		config = DefaultTightenConfig()
	}
	if log == nil {
		log = logging.Default()
	}
	return &Tightener{tester: tester, req: req, config: config, log: log}
}

// Suggestions probes each tightening dimension sequentially and returns
// the kept candidates, most restrictive first, truncated to the
// configured cap.
//
// A failed baseline aborts the whole generator: without one, no
// suggestion is meaningful. Below that, dimensions are isolated: a
// query failure in one yields nothing for that dimension only.
func (t *Tightener) Suggestions(ctx context.Context) []Suggestion {
	baseline, err := t.tester.CountAll(ctx)
	if err != nil || baseline == 0 {
		if err != nil {
			t.log.Warn("tightening baseline failed", "error", err)
		}
		return []Suggestion{}
	}

	var out []Suggestion
	dimensions := []struct {
		name string
		run  func(context.Context, int) ([]Suggestion, error)
	}{
		{"timezone", t.timezone},
		{"seniority", t.seniority},
		{"budget", t.budget},
		{"timeline", t.timeline},
		{"skills", t.skills},
	}
	for _, dim := range dimensions {
		suggestions, err := dim.run(ctx, baseline)
		if err != nil {
			t.log.Warn("tightening dimension failed", "dimension", dim.name, "error", err)
			continue
		}
		for _, s := range suggestions {
			if s.ResultingMatches > 0 && s.ResultingMatches < baseline {
				out = append(out, s)
			}
		}
	}

	sortAscending(out)
	if len(out) > t.config.MaxSuggestions {
		out = out[:t.config.MaxSuggestions]
	}
	return out
}

func (t *Tightener) timezone(ctx context.Context, baseline int) ([]Suggestion, error) {
	// An existing timezone filter is already equal-or-stricter than any
	// single-zone addition; the dimension only applies to unfiltered
	// requests.
	if len(t.req.RequiredTimezone) > 0 {
		return nil, nil
	}

	var out []Suggestion
	for _, region := range schema.TimezoneRegions {
		n, err := t.tester.CountWithAdded(ctx, &constraints.PropertyConstraint{
			CID: "probe_tz", Field: schema.FieldTimezone,
			Operator: constraints.OpStartsWith, Value: region,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, Suggestion{
			Field:            schema.FieldTimezone,
			Action:           ActionAddConstraint,
			SuggestedValue:   region,
			Rationale:        fmt.Sprintf("Limiting to %s timezones narrows matches from %d to %d.", region, baseline, n),
			ResultingMatches: n,
		})
	}
	return out, nil
}

// seniority probes each level strictly stricter than the current one,
// never loosening and never suggesting junior.
func (t *Tightener) seniority(ctx context.Context, baseline int) ([]Suggestion, error) {
	currentRank := schema.SeniorityRank(t.req.RequiredSeniorityLevel)

	floorID, ceilingID := t.yearsBandConstraintIDs()
	var out []Suggestion
	for _, level := range schema.SeniorityOrder {
		if level == schema.SeniorityJunior || schema.SeniorityRank(level) <= currentRank {
			continue
		}
		minYears := schema.SeniorityMinYears[level]

		var n int
		var err error
		if floorID != "" {
			// A seniority level decomposes into a floor and, below staff,
			// a ceiling. A stricter level replaces the whole band: keep
			// only the raised floor, since the old ceiling would cap the
			// range at the current level and exclude everyone above it.
			n, err = t.tester.CountWithValueWithout(ctx, floorID, minYears, ceilingID)
		} else {
			n, err = t.tester.CountWithAdded(ctx, &constraints.PropertyConstraint{
				CID: "probe_seniority", Field: schema.FieldYearsExperience,
				Operator: constraints.OpGte, Value: minYears,
			})
		}
		if err != nil {
			return nil, err
		}
		out = append(out, Suggestion{
			ConstraintID:     floorID,
			Field:            schema.FieldYearsExperience,
			Action:           actionForExisting(floorID),
			CurrentValue:     t.req.RequiredSeniorityLevel,
			SuggestedValue:   level,
			Rationale:        fmt.Sprintf("Requiring %s-level experience (%d+ years) narrows matches from %d to %d.", level, minYears, baseline, n),
			ResultingMatches: n,
		})
	}
	return out, nil
}

func (t *Tightener) budget(ctx context.Context, baseline int) ([]Suggestion, error) {
	var target *constraints.PropertyConstraint
	for _, c := range t.tester.Decomposed().Constraints {
		if pc, ok := c.(*constraints.PropertyConstraint); ok && pc.Field == schema.FieldSalary {
			target = pc
			break
		}
	}
	if target == nil {
		return nil, nil
	}
	current, ok := asFloat(target.Value)
	if !ok {
		return nil, fmt.Errorf("non-numeric budget value %v", target.Value)
	}

	var out []Suggestion
	for _, m := range t.config.BudgetMultipliers {
		candidate := math.Floor(current * m)
		if candidate <= 0 {
			continue
		}
		n, err := t.tester.CountWithValue(ctx, target.CID, candidate)
		if err != nil {
			return nil, err
		}
		out = append(out, Suggestion{
			ConstraintID:     target.CID,
			Field:            schema.FieldSalary,
			Action:           ActionReplaceValue,
			CurrentValue:     target.Value,
			SuggestedValue:   candidate,
			Rationale:        fmt.Sprintf("Capping salary at %.0f narrows matches from %d to %d.", candidate, baseline, n),
			ResultingMatches: n,
		})
	}
	return out, nil
}

func (t *Tightener) timeline(ctx context.Context, baseline int) ([]Suggestion, error) {
	cutoff := len(schema.TimelineOrder) - 1
	if t.req.RequiredMaxStartTime != "" {
		cutoff = schema.TimelineRank(t.req.RequiredMaxStartTime)
	}

	timelineID := ""
	for _, c := range t.tester.Decomposed().Constraints {
		if pc, ok := c.(*constraints.PropertyConstraint); ok && pc.Field == schema.FieldStartTimeline {
			timelineID = pc.CID
			break
		}
	}

	var out []Suggestion
	for rank := 0; rank < cutoff; rank++ {
		stage := schema.TimelineOrder[rank]
		allowed := schema.TimelineAllowed(stage)

		var n int
		var err error
		if timelineID != "" {
			n, err = t.tester.CountWithValue(ctx, timelineID, allowed)
		} else {
			n, err = t.tester.CountWithAdded(ctx, &constraints.PropertyConstraint{
				CID: "probe_timeline", Field: schema.FieldStartTimeline,
				Operator: constraints.OpIn, Value: allowed,
			})
		}
		if err != nil {
			return nil, err
		}
		out = append(out, Suggestion{
			ConstraintID:     timelineID,
			Field:            schema.FieldStartTimeline,
			Action:           actionForExisting(timelineID),
			CurrentValue:     t.req.RequiredMaxStartTime,
			SuggestedValue:   stage,
			Rationale:        fmt.Sprintf("Requiring a start within %q narrows matches from %d to %d.", stage, baseline, n),
			ResultingMatches: n,
		})
	}
	return out, nil
}

// skills probes adding well-covered skills from the current candidate
// pool as existence-only requirements.
func (t *Tightener) skills(ctx context.Context, baseline int) ([]Suggestion, error) {
	freq, err := t.tester.SkillFrequency(ctx, t.tester.Decomposed().ActiveAll())
	if err != nil {
		return nil, err
	}

	required := make(map[string]bool)
	for _, c := range t.tester.Decomposed().Constraints {
		if sc, ok := c.(*constraints.SkillConstraint); ok {
			for _, id := range sc.SkillIDs {
				required[id] = true
			}
		}
	}

	type candidate struct {
		skill string
		count int
	}
	var candidates []candidate
	for skill, n := range freq {
		if required[skill] {
			continue
		}
		if float64(n) < t.config.SkillCoverageThreshold*float64(baseline) {
			continue
		}
		candidates = append(candidates, candidate{skill, n})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].count != candidates[j].count {
			return candidates[i].count > candidates[j].count
		}
		return candidates[i].skill < candidates[j].skill
	})

	var out []Suggestion
	for _, cand := range candidates {
		n, err := t.tester.CountWithAdded(ctx, &constraints.SkillConstraint{
			CID:          "probe_skill",
			SkillIDs:     []string{cand.skill},
			Origin:       constraints.OriginUser,
			DisplayValue: cand.skill,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, Suggestion{
			Field:            schema.FieldSkill,
			Action:           ActionAddConstraint,
			SuggestedValue:   cand.skill,
			Rationale:        fmt.Sprintf("Requiring %s (held by %d of %d current matches) narrows matches to %d.", cand.skill, cand.count, baseline, n),
			ResultingMatches: n,
			DistributionInfo: map[string]int{cand.skill: cand.count},
		})
	}
	return out, nil
}

// yearsBandConstraintIDs finds the years-experience lower and upper
// bounds, if the decomposition carries them. Staff-level requests and
// derived experience floors have no ceiling.
func (t *Tightener) yearsBandConstraintIDs() (floorID, ceilingID string) {
	for _, c := range t.tester.Decomposed().Constraints {
		pc, ok := c.(*constraints.PropertyConstraint)
		if !ok || pc.Field != schema.FieldYearsExperience {
			continue
		}
		switch {
		case pc.Operator == constraints.OpGte && floorID == "":
			floorID = pc.CID
		case pc.Operator == constraints.OpLt && ceilingID == "":
			ceilingID = pc.CID
		}
	}
	return floorID, ceilingID
}

func actionForExisting(id string) Action {
	if id == "" {
		return ActionAddConstraint
	}
	return ActionReplaceValue
}
