// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package advisor diagnoses sparse or oversized match results and
// proposes verified constraint edits: relaxations when the filter set is
// too strict, tightenings when it is too loose.
package advisor

import (
	"context"
	"fmt"

	"github.com/AleutianAI/talentgraph/pkg/logging"
	"github.com/AleutianAI/talentgraph/services/matcher/constraints"
	"github.com/AleutianAI/talentgraph/services/matcher/schema"
)

// FieldStatistics is the diagnosis record for one constraint. Only the
// pointers and maps relevant to the constraint's field are populated.
type FieldStatistics struct {
	ConstraintID string       `json:"constraintId"`
	Field        schema.Field `json:"field"`
	Display      string       `json:"display"`

	// MatchingCount is the solo count: engineers matching this
	// constraint alone.
	MatchingCount int `json:"matchingCount"`

	// Skill constraints with a proficiency floor.
	ExactProficiencyCount *int `json:"exactProficiencyCount,omitempty"`
	LowerProficiencyCount *int `json:"lowerProficiencyCount,omitempty"`

	// Salary constraints: database-wide bounds.
	FieldMin *float64 `json:"fieldMin,omitempty"`
	FieldMax *float64 `json:"fieldMax,omitempty"`

	// Years-experience constraints: counts bucketed by the shared
	// seniority thresholds.
	SeniorityBuckets map[string]int `json:"seniorityBuckets,omitempty"`

	// Timezone / timeline constraints: database-wide category
	// distribution, nulls excluded.
	Distribution map[string]int `json:"distribution,omitempty"`
}

// ConflictAnalysis is the diagnosis result for a sparse match.
type ConflictAnalysis struct {
	// TotalMatches is the combined count with every constraint applied.
	TotalMatches int `json:"totalMatches"`

	// ConstraintStats holds one record per constraint, in decomposition
	// order.
	ConstraintStats []FieldStatistics `json:"constraintStats"`

	// ConflictSets lists candidate conflicting constraint-id subsets,
	// smallest first: impossible singletons, then mutually exclusive
	// pairs, then the full set as a last resort.
	ConflictSets [][]string `json:"conflictSets"`
}

// Diagnoser computes per-constraint statistics and candidate conflict
// sets through a sequential tester.
type Diagnoser struct {
	tester *constraints.Tester
	log    *logging.Logger
}

func NewDiagnoser(tester *constraints.Tester, log *logging.Logger) *Diagnoser {
	if log == nil {
		log = logging.Default()
	}
	return &Diagnoser{tester: tester, log: log}
}

// Diagnose runs the full diagnosis. Individual statistic queries degrade
// softly: a failed query logs a warning and leaves that statistic
// unpopulated rather than aborting the analysis.
func (d *Diagnoser) Diagnose(ctx context.Context) (*ConflictAnalysis, error) {
	dec := d.tester.Decomposed()
	analysis := &ConflictAnalysis{ConflictSets: [][]string{}}

	total, err := d.tester.CountAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("combined count failed: %w", err)
	}
	analysis.TotalMatches = total

	solo := make(map[string]int, len(dec.Constraints))
	for _, c := range dec.Constraints {
		stat, soloN := d.statFor(ctx, c)
		solo[c.ID()] = soloN
		analysis.ConstraintStats = append(analysis.ConstraintStats, stat)
	}

	analysis.ConflictSets = d.conflictSets(ctx, dec, total, solo)
	return analysis, nil
}

// statFor computes one constraint's statistics, returning both the
// record and the strict solo count the conflict search keys on. The type
// switch is exhaustive over the testable constraint sum.
func (d *Diagnoser) statFor(ctx context.Context, c constraints.Testable) (FieldStatistics, int) {
	switch cc := c.(type) {
	case *constraints.PropertyConstraint:
		return d.propertyStat(ctx, cc)
	case *constraints.SkillConstraint:
		return d.skillStat(ctx, cc)
	default:
		panic(fmt.Sprintf("advisor: unknown testable constraint type %T", c))
	}
}

func (d *Diagnoser) propertyStat(ctx context.Context, c *constraints.PropertyConstraint) (FieldStatistics, int) {
	stat := FieldStatistics{ConstraintID: c.CID, Field: c.Field, Display: c.Display()}
	soloN := d.soloCount(ctx, c.CID)
	stat.MatchingCount = soloN

	switch c.Field {
	case schema.FieldSalary:
		lo, hi, ok, err := d.tester.NumericBounds(ctx, schema.FieldSalary)
		if err != nil {
			d.log.Warn("salary bounds query failed", "constraint", c.CID, "error", err)
		} else if ok {
			stat.FieldMin, stat.FieldMax = &lo, &hi
		}
	case schema.FieldYearsExperience:
		// A seniority level decomposes into separate floor and ceiling
		// constraints; the reported count is the requested range with
		// both bounds applied, not one bound in isolation.
		stat.MatchingCount = d.yearsRangeCount(ctx, soloN)
		stat.SeniorityBuckets = d.seniorityBuckets(ctx)
	case schema.FieldTimezone, schema.FieldStartTimeline:
		dist, err := d.tester.Distribution(ctx, c.Field)
		if err != nil {
			d.log.Warn("distribution query failed", "constraint", c.CID, "field", c.Field, "error", err)
		} else {
			stat.Distribution = dist
		}
	case schema.FieldSkill:
		panic("advisor: skill field on a property constraint")
	default:
		panic(fmt.Sprintf("advisor: unknown field %q", c.Field))
	}
	return stat, soloN
}

func (d *Diagnoser) skillStat(ctx context.Context, c *constraints.SkillConstraint) (FieldStatistics, int) {
	stat := FieldStatistics{ConstraintID: c.CID, Field: schema.FieldSkill, Display: c.Display()}
	stat.MatchingCount = d.soloCount(ctx, c.CID)

	if c.MinProficiency == "" {
		return stat, stat.MatchingCount
	}
	exactProbe := *c
	exactProbe.ProficiencyExact = true
	if n, err := d.tester.CountMatching(ctx, &exactProbe); err != nil {
		d.log.Warn("exact proficiency count failed", "constraint", c.CID, "error", err)
	} else {
		stat.ExactProficiencyCount = &n
	}
	if lower, ok := schema.LowerProficiency(c.MinProficiency); ok {
		lowerProbe := *c
		lowerProbe.MinProficiency = lower
		if n, err := d.tester.CountMatching(ctx, &lowerProbe); err != nil {
			d.log.Warn("lower proficiency count failed", "constraint", c.CID, "error", err)
		} else {
			stat.LowerProficiencyCount = &n
		}
	}
	return stat, stat.MatchingCount
}

func (d *Diagnoser) soloCount(ctx context.Context, id string) int {
	n, err := d.tester.CountWithActive(ctx, map[string]bool{id: true})
	if err != nil {
		d.log.Warn("solo count failed", "constraint", id, "error", err)
		return 0
	}
	return n
}

// yearsRangeCount counts engineers inside the full requested experience
// range: every years-experience constraint active at once. With a single
// bound the solo count already is that range.
func (d *Diagnoser) yearsRangeCount(ctx context.Context, soloN int) int {
	active := make(map[string]bool)
	for _, c := range d.tester.Decomposed().Constraints {
		if pc, ok := c.(*constraints.PropertyConstraint); ok && pc.Field == schema.FieldYearsExperience {
			active[pc.CID] = true
		}
	}
	if len(active) < 2 {
		return soloN
	}
	n, err := d.tester.CountWithActive(ctx, active)
	if err != nil {
		d.log.Warn("years range count failed", "error", err)
		return soloN
	}
	return n
}

// seniorityBuckets counts engineers per seniority band, using the same
// year boundaries the rest of the matcher derives seniority from.
func (d *Diagnoser) seniorityBuckets(ctx context.Context) map[string]int {
	out := make(map[string]int, len(schema.SeniorityOrder))
	for _, level := range schema.SeniorityOrder {
		minYears, maxYears, hasMax, err := schema.SeniorityYearsRange(level)
		if err != nil {
			continue
		}
		probes := []constraints.Testable{
			&constraints.PropertyConstraint{
				CID: "bucket_lo", Field: schema.FieldYearsExperience,
				Operator: constraints.OpGte, Value: minYears,
			},
		}
		if hasMax {
			probes = append(probes, &constraints.PropertyConstraint{
				CID: "bucket_hi", Field: schema.FieldYearsExperience,
				Operator: constraints.OpLt, Value: maxYears,
			})
		}
		n, err := d.tester.CountMatching(ctx, probes...)
		if err != nil {
			d.log.Warn("seniority bucket count failed", "level", level, "error", err)
			continue
		}
		out[level] = n
	}
	return out
}

// conflictSets searches greedily for small excluding subsets: any
// constraint with a zero solo count is a conflict on its own; otherwise
// zero-count pairs of individually satisfiable constraints; otherwise,
// when the combined count is still zero, the full set.
func (d *Diagnoser) conflictSets(ctx context.Context, dec constraints.Decomposed, total int, solo map[string]int) [][]string {
	sets := [][]string{}
	for _, c := range dec.Constraints {
		if solo[c.ID()] == 0 {
			sets = append(sets, []string{c.ID()})
		}
	}
	if len(sets) > 0 || total > 0 || len(dec.Constraints) < 2 {
		return sets
	}

	ids := make([]string, 0, len(dec.Constraints))
	for _, c := range dec.Constraints {
		ids = append(ids, c.ID())
	}
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			n, err := d.tester.CountWithActive(ctx, map[string]bool{ids[i]: true, ids[j]: true})
			if err != nil {
				d.log.Warn("pair count failed", "constraints", []string{ids[i], ids[j]}, "error", err)
				continue
			}
			if n == 0 {
				sets = append(sets, []string{ids[i], ids[j]})
			}
		}
	}
	if len(sets) == 0 {
		sets = append(sets, ids)
	}
	return sets
}
