// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package schema

import (
	"github.com/go-playground/validator/v10"
)

// requestValidate is the validator instance for search requests.
var requestValidate *validator.Validate

func init() {
	requestValidate = validator.New()
}

// SkillRequirement is one requested skill, optionally with a minimum
// proficiency floor. An empty MinProficiency means existence-only: any
// proficiency satisfies the requirement.
type SkillRequirement struct {
	// Skill is the skill id, e.g. "skill.distributed-systems".
	Skill string `json:"skill" validate:"required"`

	// MinProficiency is the optional proficiency floor.
	MinProficiency string `json:"minProficiency,omitempty" validate:"omitempty,oneof=beginner intermediate advanced expert"`
}

// SearchRequest is the manager-facing hiring intent consumed by the
// matcher. Every field is optional; the inference engine expands whatever
// soft intent is present into concrete derived constraints.
//
// # Validation
//
// Uses go-playground/validator. Enumerated fields must carry one of the
// values defined in this package; numeric fields must be non-negative.
// Validation happens at the HTTP boundary via Validate(); the core engine
// assumes a validated request.
type SearchRequest struct {
	// RequiredSeniorityLevel constrains years of experience through the
	// shared seniority bands.
	RequiredSeniorityLevel string `json:"requiredSeniorityLevel,omitempty" validate:"omitempty,oneof=junior mid senior staff"`

	// TeamFocus is the team's engineering focus, the main trigger for
	// first-hop inference rules (e.g. "scaling", "platform", "greenfield").
	TeamFocus string `json:"teamFocus,omitempty"`

	// RequiredSkills are hard skill requirements. Each becomes an
	// independently testable constraint.
	RequiredSkills []SkillRequirement `json:"requiredSkills,omitempty" validate:"omitempty,dive"`

	// PreferredSkills are soft skill preferences. They never filter, but
	// they mark the skill as user-explicit for override checks.
	PreferredSkills []string `json:"preferredSkills,omitempty"`

	// MaxBudget is the salary ceiling.
	MaxBudget float64 `json:"maxBudget,omitempty" validate:"omitempty,gte=0"`

	// StretchBudget is an optional ceiling the caller could reach with
	// approval. Informational for relaxation rationale only.
	StretchBudget float64 `json:"stretchBudget,omitempty" validate:"omitempty,gte=0"`

	// RequiredMaxStartTime is the latest acceptable start stage.
	RequiredMaxStartTime string `json:"requiredMaxStartTime,omitempty" validate:"omitempty,oneof=immediate two-weeks one-month three-months"`

	// RequiredTimezone lists acceptable timezone region prefixes.
	RequiredTimezone []string `json:"requiredTimezone,omitempty" validate:"omitempty,dive,oneof=America Europe Asia Australia"`

	// OverriddenRuleIds suppresses named inference rules entirely.
	// Unknown ids are a silent no-op.
	OverriddenRuleIds []string `json:"overriddenRuleIds,omitempty"`
}

// Validate checks the request against its validation tags.
func (r *SearchRequest) Validate() error {
	return requestValidate.Struct(r)
}

// ExplicitFields returns the set of optional fields the caller set
// explicitly. An empty slice does not count as explicit; a derived rule
// targeting such a field is not overridden by it.
func (r *SearchRequest) ExplicitFields() map[string]bool {
	out := make(map[string]bool)
	if r.RequiredSeniorityLevel != "" {
		out["requiredSeniorityLevel"] = true
	}
	if r.TeamFocus != "" {
		out["teamFocus"] = true
	}
	if r.MaxBudget > 0 {
		out["maxBudget"] = true
	}
	if r.StretchBudget > 0 {
		out["stretchBudget"] = true
	}
	if r.RequiredMaxStartTime != "" {
		out["requiredMaxStartTime"] = true
	}
	if len(r.RequiredTimezone) > 0 {
		out["requiredTimezone"] = true
	}
	return out
}

// ExplicitSkills returns the union of required and preferred skill ids.
// Preferred skills never seed the inference chaining set, but they do count
// as user-explicit for skill override checks.
func (r *SearchRequest) ExplicitSkills() map[string]bool {
	out := make(map[string]bool)
	for _, s := range r.RequiredSkills {
		out[s.Skill] = true
	}
	for _, s := range r.PreferredSkills {
		out[s] = true
	}
	return out
}
