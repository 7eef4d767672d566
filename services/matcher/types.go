// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package matcher

import (
	"github.com/AleutianAI/talentgraph/services/matcher/advisor"
	"github.com/AleutianAI/talentgraph/services/matcher/inference"
	"github.com/AleutianAI/talentgraph/services/matcher/rules"
)

// AdviceResponse is the advise endpoint's payload. The full derived
// constraint list is surfaced for transparency: callers can show the
// user why each filter exists and which rule chain produced it.
type AdviceResponse struct {
	TotalMatches       int                            `json:"totalMatches"`
	Advice             *advisor.Advice                `json:"advice"`
	DerivedConstraints []inference.DerivedConstraint  `json:"derivedConstraints"`
	FiredRules         []string                       `json:"firedRules"`
	IterationCount     int                            `json:"iterationCount"`
	Warnings           []string                       `json:"warnings,omitempty"`
	OverriddenRules    []string                       `json:"overriddenRules,omitempty"`
}

// InferResponse is the infer endpoint's payload: the inference outcome
// without any graph queries.
type InferResponse struct {
	DerivedConstraints []inference.DerivedConstraint `json:"derivedConstraints"`
	FiredRules         []string                      `json:"firedRules"`
	IterationCount     int                           `json:"iterationCount"`
	Warnings           []string                      `json:"warnings,omitempty"`
	OverriddenRules    []string                      `json:"overriddenRules,omitempty"`
	DerivedSkills      []string                      `json:"derivedSkills"`
	SkillBoosts        map[string]float64            `json:"skillBoosts"`
}

// RulesResponse describes the active rule set.
type RulesResponse struct {
	Hash  string             `json:"hash"`
	Count int                `json:"count"`
	Rules []rules.Definition `json:"rules"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}
