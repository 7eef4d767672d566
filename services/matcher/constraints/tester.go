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
	"fmt"
	"strings"

	"github.com/AleutianAI/talentgraph/pkg/logging"
	"github.com/AleutianAI/talentgraph/services/matcher/graphstore"
	"github.com/AleutianAI/talentgraph/services/matcher/schema"
	"github.com/AleutianAI/talentgraph/services/matcher/telemetry"
)

// Tester runs what-if count queries for one decomposed constraint set.
//
// Every variant keeps "all other constraints still applied" semantics: a
// resulting count always reflects the full current filter context, never
// the tested dimension in isolation.
//
// # Thread Safety
//
// A Tester is NOT safe for concurrent use: it owns a single graph
// session, and sessions require strictly sequential queries. The
// diagnosis and suggestion loops issue their many counts one after
// another through one Tester.
type Tester struct {
	session graphstore.Session
	dec     Decomposed
	log     *logging.Logger
}

// NewTester wires a tester over an open session. The caller keeps
// ownership of the session's lifecycle.
func NewTester(session graphstore.Session, dec Decomposed, log *logging.Logger) *Tester {
	if log == nil {
		log = logging.Default()
	}
	return &Tester{session: session, dec: dec, log: log}
}

// Decomposed returns the constraint set under test.
func (t *Tester) Decomposed() Decomposed { return t.dec }

// CountAll returns the match count with every constraint applied.
func (t *Tester) CountAll(ctx context.Context) (int, error) {
	return t.CountWithActive(ctx, t.dec.ActiveAll())
}

// CountWithActive returns the match count with exactly the selected
// subset of constraints applied.
func (t *Tester) CountWithActive(ctx context.Context, active map[string]bool) (int, error) {
	return t.runCount(ctx, t.dec, active)
}

// CountWithout returns the match count with one constraint excluded and
// all others applied.
func (t *Tester) CountWithout(ctx context.Context, constraintID string) (int, error) {
	active := t.dec.ActiveAll()
	delete(active, constraintID)
	return t.runCount(ctx, t.dec, active)
}

// CountWithValue returns the match count with one constraint's value
// replaced and all constraints applied. For a skill constraint the value
// is a proficiency level.
func (t *Tester) CountWithValue(ctx context.Context, constraintID string, value any) (int, error) {
	modified := t.dec.withValue(constraintID, value)
	return t.runCount(ctx, modified, modified.ActiveAll())
}

// CountWithValueWithout returns the match count with one constraint's
// value replaced and another constraint excluded, in a single query. A
// blank withoutID behaves like CountWithValue.
func (t *Tester) CountWithValueWithout(ctx context.Context, constraintID string, value any, withoutID string) (int, error) {
	modified := t.dec.withValue(constraintID, value)
	active := modified.ActiveAll()
	delete(active, withoutID)
	return t.runCount(ctx, modified, active)
}

// CountWithAdded returns the match count with one ad-hoc constraint
// appended to the full active set.
func (t *Tester) CountWithAdded(ctx context.Context, extra Testable) (int, error) {
	modified := t.dec.withConstraint(extra)
	return t.runCount(ctx, modified, modified.ActiveAll())
}

// CountMatching returns the match count for ONLY the given ad-hoc
// constraints, ignoring the decomposed set entirely. Diagnosis uses it
// for isolated per-field statistics such as seniority buckets.
func (t *Tester) CountMatching(ctx context.Context, cs ...Testable) (int, error) {
	isolated := Decomposed{BaseMatch: t.dec.BaseMatch, Constraints: cs}
	return t.runCount(ctx, isolated, isolated.ActiveAll())
}

func (t *Tester) runCount(ctx context.Context, d Decomposed, active map[string]bool) (int, error) {
	query, params := BuildCountQuery(d, active)
	records, err := t.session.Run(ctx, query, params)
	if err != nil {
		return 0, fmt.Errorf("count query failed: %w", err)
	}
	telemetry.RecordCountQueries(ctx, 1)
	return graphstore.CountValue(records)
}

// Distribution returns the database-wide value distribution of a
// categorical field, nulls excluded. Timezone values are bucketed by
// region prefix.
func (t *Tester) Distribution(ctx context.Context, field schema.Field) (map[string]int, error) {
	valueExpr := fmt.Sprintf("e.%s", field)
	if field == schema.FieldTimezone {
		valueExpr = fmt.Sprintf("split(e.%s, '/')[0]", field)
	}
	query := fmt.Sprintf(
		"%s\nWHERE e.%s IS NOT NULL\nRETURN %s AS value, count(e) AS matchCount",
		t.dec.BaseMatch, field, valueExpr)

	records, err := t.session.Run(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("distribution query failed: %w", err)
	}
	out := make(map[string]int, len(records))
	for _, rec := range records {
		value, ok := rec["value"].(string)
		if !ok {
			continue
		}
		count, err := graphstore.CountValue([]graphstore.Record{rec})
		if err != nil {
			return nil, err
		}
		out[value] = count
	}
	return out, nil
}

// NumericBounds returns the database-wide min and max of a numeric
// field. ok is false when the store holds no non-null values.
func (t *Tester) NumericBounds(ctx context.Context, field schema.Field) (min, max float64, ok bool, err error) {
	query := fmt.Sprintf(
		"%s\nRETURN min(e.%s) AS minValue, max(e.%s) AS maxValue",
		t.dec.BaseMatch, field, field)
	records, err := t.session.Run(ctx, query, nil)
	if err != nil {
		return 0, 0, false, fmt.Errorf("bounds query failed: %w", err)
	}
	if len(records) == 0 {
		return 0, 0, false, nil
	}
	lo, okLo := toFloat(records[0]["minValue"])
	hi, okHi := toFloat(records[0]["maxValue"])
	if !okLo || !okHi {
		return 0, 0, false, nil
	}
	return lo, hi, true, nil
}

// SkillFrequency returns, per skill id, how many engineers matching the
// active PROPERTY constraints hold that skill. Skill constraints are
// deliberately excluded so that the distribution reflects the candidate
// pool, not skills already demanded of it.
func (t *Tester) SkillFrequency(ctx context.Context, active map[string]bool) (map[string]int, error) {
	clauses, params := BuildPropertyConditions(t.dec, active)

	var b strings.Builder
	b.WriteString(t.dec.BaseMatch)
	if len(clauses) > 0 {
		b.WriteString("\nWHERE ")
		b.WriteString(strings.Join(clauses, "\n  AND "))
	}
	b.WriteString("\nMATCH (e)-[:HAS_SKILL]->(s:Skill)")
	b.WriteString("\nRETURN s.id AS skillId, count(DISTINCT e) AS matchCount")

	records, err := t.session.Run(ctx, b.String(), params)
	if err != nil {
		return nil, fmt.Errorf("skill frequency query failed: %w", err)
	}
	out := make(map[string]int, len(records))
	for _, rec := range records {
		id, ok := rec["skillId"].(string)
		if !ok {
			continue
		}
		count, err := graphstore.CountValue([]graphstore.Record{rec})
		if err != nil {
			return nil, err
		}
		out[id] = count
	}
	return out, nil
}
