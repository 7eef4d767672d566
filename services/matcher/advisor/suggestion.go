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
	"sort"

	"github.com/AleutianAI/talentgraph/services/matcher/schema"
)

// Action names the concrete edit a suggestion proposes.
type Action string

const (
	ActionReplaceValue    Action = "replace-value"
	ActionRemove          Action = "remove"
	ActionMoveToPreferred Action = "move-to-preferred"
	ActionOverrideRule    Action = "override-rule"
	ActionLowerLevel      Action = "lower-proficiency"
	ActionAddConstraint   Action = "add-constraint"
)

// Suggestion is one proposed, count-verified constraint edit. It is
// ephemeral: returned to the caller, never persisted.
type Suggestion struct {
	ConstraintID string       `json:"constraintId,omitempty"`
	Field        schema.Field `json:"field"`
	Action       Action       `json:"action"`

	CurrentValue   any    `json:"currentValue,omitempty"`
	SuggestedValue any    `json:"suggestedValue,omitempty"`
	Rationale      string `json:"rationale"`

	// ResultingMatches is the verified count with the edit applied and
	// every other constraint still in force.
	ResultingMatches int `json:"resultingMatches"`

	DistributionInfo map[string]int `json:"distributionInfo,omitempty"`
}

// sortDescending orders suggestions biggest-relief-first; ties break on
// constraint id for deterministic output.
func sortDescending(s []Suggestion) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].ResultingMatches != s[j].ResultingMatches {
			return s[i].ResultingMatches > s[j].ResultingMatches
		}
		return s[i].ConstraintID < s[j].ConstraintID
	})
}

// sortAscending orders suggestions most-restrictive-first.
func sortAscending(s []Suggestion) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].ResultingMatches != s[j].ResultingMatches {
			return s[i].ResultingMatches < s[j].ResultingMatches
		}
		return s[i].ConstraintID < s[j].ConstraintID
	})
}
