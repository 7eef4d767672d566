// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package hierarchy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_EmbeddedTaxonomyParses(t *testing.T) {
	r := Default()
	require.NotNil(t, r)

	// Transitive expansion: distributed-systems reaches kafka through
	// event-streaming.
	got := r.Expand("skill.distributed-systems")
	assert.Equal(t, "skill.distributed-systems", got[0], "expansion starts with the skill itself")
	assert.Contains(t, got, "skill.event-streaming")
	assert.Contains(t, got, "skill.kafka")
	assert.Contains(t, got, "skill.consensus")
}

func TestExpand_UnknownSkillExpandsToItself(t *testing.T) {
	got := Default().Expand("skill.cobol")
	assert.Equal(t, []string{"skill.cobol"}, got)
}

func TestExpand_DescendantsAreSorted(t *testing.T) {
	r, err := NewStaticResolver([]byte(`
skills:
  - id: skill.root
    children: [skill.zeta, skill.alpha]
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"skill.root", "skill.alpha", "skill.zeta"}, r.Expand("skill.root"))
}

func TestExpand_ToleratesCycles(t *testing.T) {
	r, err := NewStaticResolver([]byte(`
skills:
  - id: skill.a
    children: [skill.b]
  - id: skill.b
    children: [skill.a]
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"skill.a", "skill.b"}, r.Expand("skill.a"))
}

func TestNewStaticResolver_Errors(t *testing.T) {
	_, err := NewStaticResolver([]byte(":::"))
	assert.Error(t, err)

	_, err = NewStaticResolver([]byte("skills:\n  - children: [skill.x]\n"))
	assert.Error(t, err, "empty id must be rejected")
}
