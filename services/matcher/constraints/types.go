// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package constraints decomposes an applied filter set into atomic,
// independently testable units and issues what-if count queries against
// the graph store.
package constraints

import (
	"fmt"

	"github.com/AleutianAI/talentgraph/services/matcher/schema"
)

// Comparison operators emitted into query fragments. The set is fixed;
// values always travel through named parameters, never string
// interpolation.
const (
	OpEqual      = "="
	OpLte        = "<="
	OpGte        = ">="
	OpLt         = "<"
	OpIn         = "IN"
	OpStartsWith = "STARTS WITH"
)

// Origin says whether a skill constraint came from the request or from a
// fired inference rule.
type Origin string

const (
	OriginUser    Origin = "user"
	OriginDerived Origin = "derived"
)

// DerivedDisplayPrefix prefixes the display value of rule-derived skill
// constraints. The relaxation generator parses the rule name back out of
// it when proposing a rule override.
const DerivedDisplayPrefix = "Derived: "

// Testable is one atomic filter unit. The type is a closed sum: exactly
// PropertyConstraint and SkillConstraint implement it, and consumers
// switch exhaustively with a panicking default branch.
type Testable interface {
	// ID is the constraint's stable identifier within one decomposition
	// (c1..cN in decomposition order). IDs double as query parameter
	// names.
	ID() string

	// Display is the human-readable value shown in suggestions.
	Display() string

	isTestable()
}

// PropertyConstraint filters on a node property with one comparison.
type PropertyConstraint struct {
	CID      string       `json:"id"`
	Field    schema.Field `json:"field"`
	Operator string       `json:"operator"`
	Value    any          `json:"value"`
}

func (c *PropertyConstraint) ID() string { return c.CID }

func (c *PropertyConstraint) Display() string {
	return fmt.Sprintf("%s %s %v", c.Field, c.Operator, c.Value)
}

func (c *PropertyConstraint) isTestable() {}

// SkillConstraint filters on HAS_SKILL relationship traversal. SkillIDs
// is hierarchy-expanded: matching any listed id satisfies the
// constraint. MinProficiency, when set, floors the relationship's
// proficiency rank.
type SkillConstraint struct {
	CID            string   `json:"id"`
	SkillIDs       []string `json:"skillIds"`
	Origin         Origin   `json:"origin"`
	MinProficiency string   `json:"minProficiency,omitempty"`

	// ProficiencyExact switches the floor comparison to strict equality.
	// Only diagnosis statistics use it; filters always floor.
	ProficiencyExact bool `json:"proficiencyExact,omitempty"`

	DisplayValue string `json:"displayValue"`
}

func (c *SkillConstraint) ID() string      { return c.CID }
func (c *SkillConstraint) Display() string { return c.DisplayValue }
func (c *SkillConstraint) isTestable()     {}

// Decomposed is the full testable constraint set for one request.
// It is an immutable value object; testers that need a modified set
// build a copy.
type Decomposed struct {
	// Constraints in decomposition order.
	Constraints []Testable

	// BaseMatch anchors every generated query.
	BaseMatch string
}

// ByID returns the constraint with the given id.
func (d Decomposed) ByID(id string) (Testable, bool) {
	for _, c := range d.Constraints {
		if c.ID() == id {
			return c, true
		}
	}
	return nil, false
}

// ActiveAll returns an active-set selecting every constraint.
func (d Decomposed) ActiveAll() map[string]bool {
	out := make(map[string]bool, len(d.Constraints))
	for _, c := range d.Constraints {
		out[c.ID()] = true
	}
	return out
}

// withConstraint returns a copy with one constraint appended.
func (d Decomposed) withConstraint(c Testable) Decomposed {
	out := Decomposed{
		Constraints: append(append([]Testable(nil), d.Constraints...), c),
		BaseMatch:   d.BaseMatch,
	}
	return out
}

// withValue returns a copy with one constraint's tested value replaced.
//
// For a property constraint the comparison value is replaced; for a
// skill constraint the replacement is a proficiency level string. The
// switch is exhaustive over the Testable sum.
func (d Decomposed) withValue(id string, value any) Decomposed {
	out := Decomposed{
		Constraints: make([]Testable, len(d.Constraints)),
		BaseMatch:   d.BaseMatch,
	}
	for i, c := range d.Constraints {
		if c.ID() != id {
			out.Constraints[i] = c
			continue
		}
		switch cc := c.(type) {
		case *PropertyConstraint:
			clone := *cc
			clone.Value = value
			out.Constraints[i] = &clone
		case *SkillConstraint:
			prof, ok := value.(string)
			if !ok {
				panic(fmt.Sprintf("constraints: skill constraint %s replacement value must be a proficiency level, got %T", id, value))
			}
			clone := *cc
			clone.MinProficiency = prof
			out.Constraints[i] = &clone
		default:
			panic(fmt.Sprintf("constraints: unknown testable constraint type %T", c))
		}
	}
	return out
}
