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
	"strings"

	"github.com/AleutianAI/talentgraph/services/matcher/schema"
)

// BuildPropertyConditions renders the active property constraints as
// WHERE clauses plus named parameters. Timezone prefix constraints are
// grouped under a single OR clause; every other clause is ANDed by the
// caller. Parameter names are the constraint ids.
func BuildPropertyConditions(d Decomposed, active map[string]bool) ([]string, map[string]any) {
	var clauses []string
	var tzClauses []string
	params := make(map[string]any)

	for _, c := range d.Constraints {
		pc, ok := c.(*PropertyConstraint)
		if !ok || !active[pc.CID] {
			continue
		}
		params[pc.CID] = pc.Value
		clause := fmt.Sprintf("e.%s %s $%s", pc.Field, pc.Operator, pc.CID)
		if pc.Field == schema.FieldTimezone && pc.Operator == OpStartsWith {
			tzClauses = append(tzClauses, clause)
			continue
		}
		clauses = append(clauses, clause)
	}

	if len(tzClauses) == 1 {
		clauses = append(clauses, tzClauses[0])
	} else if len(tzClauses) > 1 {
		clauses = append(clauses, "("+strings.Join(tzClauses, " OR ")+")")
	}
	return clauses, params
}

// buildSkillClause renders one skill-traversal constraint as an EXISTS
// relationship pattern, flooring the proficiency rank when the
// constraint carries one.
func buildSkillClause(c *SkillConstraint, params map[string]any) string {
	params[c.CID] = c.SkillIDs
	var b strings.Builder
	fmt.Fprintf(&b, "EXISTS { MATCH (e)-[r:HAS_SKILL]->(s:Skill) WHERE s.id IN $%s", c.CID)
	if c.MinProficiency != "" {
		profParam := c.CID + "_prof"
		params[profParam] = schema.ProficiencyRank(c.MinProficiency)
		op := OpGte
		if c.ProficiencyExact {
			op = OpEqual
		}
		fmt.Fprintf(&b, " AND r.proficiencyRank %s $%s", op, profParam)
	}
	b.WriteString(" }")
	return b.String()
}

// BuildCountQuery assembles the full count query for the active subset:
// base match, ANDed property clauses with timezone prefixes ORed, one
// EXISTS pattern per active skill constraint.
func BuildCountQuery(d Decomposed, active map[string]bool) (string, map[string]any) {
	clauses, params := BuildPropertyConditions(d, active)
	for _, c := range d.Constraints {
		sc, ok := c.(*SkillConstraint)
		if !ok || !active[sc.CID] {
			continue
		}
		clauses = append(clauses, buildSkillClause(sc, params))
	}

	var b strings.Builder
	b.WriteString(d.BaseMatch)
	if len(clauses) > 0 {
		b.WriteString("\nWHERE ")
		b.WriteString(strings.Join(clauses, "\n  AND "))
	}
	b.WriteString("\nRETURN count(e) AS matchCount")
	return b.String(), params
}
