// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package schema defines the closed set of filterable fields and the shared
// ordinal configuration (seniority bands, start timelines, proficiency
// levels) used by every component of the matcher service.
//
// The decomposer, diagnoser, relaxation and tightening generators all
// dispatch on Field. Keeping the enum closed means a new filterable field
// fails to compile everywhere it is consumed instead of silently no-op-ing
// at runtime.
package schema

import "fmt"

// Field identifies one filterable dimension of an engineer profile.
//
// The set is closed: every switch over Field must be exhaustive and panic
// in the default branch so that adding a field is a compile-and-review
// obligation, not a silent gap.
type Field string

const (
	// FieldYearsExperience is the internal numeric experience field.
	// It has no public-facing request value of its own; callers express it
	// through a seniority level.
	FieldYearsExperience Field = "yearsExperience"

	// FieldSalary is the expected salary field, constrained by the
	// caller's budget.
	FieldSalary Field = "salary"

	// FieldTimezone is the engineer's timezone region string,
	// e.g. "America/Los_Angeles". Filters match by region prefix.
	FieldTimezone Field = "timezone"

	// FieldStartTimeline is the engineer's earliest start stage.
	FieldStartTimeline Field = "startTimeline"

	// FieldSkill is a skill-traversal constraint (HAS_SKILL relationship),
	// not a node property.
	FieldSkill Field = "skill"
)

// Fields lists every filterable field in canonical order.
var Fields = []Field{
	FieldYearsExperience,
	FieldSalary,
	FieldTimezone,
	FieldStartTimeline,
	FieldSkill,
}

// =============================================================================
// Seniority
// =============================================================================

// Seniority levels in ascending order of experience.
const (
	SeniorityJunior = "junior"
	SeniorityMid    = "mid"
	SenioritySenior = "senior"
	SeniorityStaff  = "staff"
)

// SeniorityOrder lists seniority levels from least to most experienced.
// Bucket boundaries used by the conflict diagnoser must stay in sync with
// SeniorityMinYears; both are defined here so they cannot drift.
var SeniorityOrder = []string{SeniorityJunior, SeniorityMid, SenioritySenior, SeniorityStaff}

// SeniorityMinYears maps each seniority level to its minimum years of
// experience. The upper bound of a level is the next level's minimum
// (exclusive); staff is open-ended.
var SeniorityMinYears = map[string]int{
	SeniorityJunior: 0,
	SeniorityMid:    3,
	SenioritySenior: 6,
	SeniorityStaff:  10,
}

// SeniorityRank returns the ordinal position of a level in SeniorityOrder,
// or -1 if the level is unknown.
func SeniorityRank(level string) int {
	for i, l := range SeniorityOrder {
		if l == level {
			return i
		}
	}
	return -1
}

// SeniorityYearsRange returns the [min, max) experience range for a level.
// The returned hasMax is false for the topmost level.
func SeniorityYearsRange(level string) (min int, max int, hasMax bool, err error) {
	rank := SeniorityRank(level)
	if rank < 0 {
		return 0, 0, false, fmt.Errorf("unknown seniority level %q", level)
	}
	min = SeniorityMinYears[level]
	if rank == len(SeniorityOrder)-1 {
		return min, 0, false, nil
	}
	return min, SeniorityMinYears[SeniorityOrder[rank+1]], true, nil
}

// =============================================================================
// Start Timeline
// =============================================================================

// Start timeline stages in ascending order of delay.
const (
	TimelineImmediate   = "immediate"
	TimelineTwoWeeks    = "two-weeks"
	TimelineOneMonth    = "one-month"
	TimelineThreeMonths = "three-months"
)

// TimelineOrder lists start stages from fastest to slowest. A request's
// requiredMaxStartTime is a cutoff: every stage at or before the cutoff
// index is acceptable.
var TimelineOrder = []string{TimelineImmediate, TimelineTwoWeeks, TimelineOneMonth, TimelineThreeMonths}

// TimelineRank returns the ordinal position of a stage, or -1 if unknown.
func TimelineRank(stage string) int {
	for i, s := range TimelineOrder {
		if s == stage {
			return i
		}
	}
	return -1
}

// TimelineAllowed returns the cumulative allowed-set for a cutoff stage:
// every stage at or faster than the cutoff, in order.
func TimelineAllowed(cutoff string) []string {
	rank := TimelineRank(cutoff)
	if rank < 0 {
		return nil
	}
	out := make([]string, rank+1)
	copy(out, TimelineOrder[:rank+1])
	return out
}

// =============================================================================
// Timezone
// =============================================================================

// TimezoneRegions lists the four region prefixes engineers are bucketed
// into. Profile timezone strings are IANA names ("Europe/Berlin"); filters
// match by region prefix.
var TimezoneRegions = []string{"America", "Europe", "Asia", "Australia"}

// =============================================================================
// Proficiency
// =============================================================================

// Skill proficiency levels in ascending order.
const (
	ProficiencyBeginner     = "beginner"
	ProficiencyIntermediate = "intermediate"
	ProficiencyAdvanced     = "advanced"
	ProficiencyExpert       = "expert"
)

// ProficiencyOrder lists proficiency levels from lowest to highest.
var ProficiencyOrder = []string{ProficiencyBeginner, ProficiencyIntermediate, ProficiencyAdvanced, ProficiencyExpert}

// ProficiencyRank returns the numeric rank of a proficiency level used on
// HAS_SKILL relationships, or -1 if the level is unknown. Rank comparisons
// implement the ">= floor" filter semantics.
func ProficiencyRank(level string) int {
	for i, l := range ProficiencyOrder {
		if l == level {
			return i
		}
	}
	return -1
}

// LowerProficiency returns the level one step below the given level, or
// ok=false when the level is unknown or already the lowest.
func LowerProficiency(level string) (string, bool) {
	rank := ProficiencyRank(level)
	if rank <= 0 {
		return "", false
	}
	return ProficiencyOrder[rank-1], true
}
