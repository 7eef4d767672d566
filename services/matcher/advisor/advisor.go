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

	"github.com/AleutianAI/talentgraph/pkg/logging"
	"github.com/AleutianAI/talentgraph/services/matcher/constraints"
	"github.com/AleutianAI/talentgraph/services/matcher/schema"
)

// Config sets the advisor's dispatch thresholds.
type Config struct {
	// RelaxationThreshold: total counts strictly below it get relaxation
	// advice with conflict analysis.
	RelaxationThreshold int

	// TighteningThreshold: total counts at or above it get tightening
	// advice.
	TighteningThreshold int

	Tighten TightenConfig
}

// DefaultConfig returns the standard dispatch thresholds.
func DefaultConfig() Config {
	return Config{
		RelaxationThreshold: 3,
		TighteningThreshold: 25,
		Tighten:             DefaultTightenConfig(),
	}
}

// RelaxationAdvice pairs the conflict diagnosis with verified loosening
// suggestions.
type RelaxationAdvice struct {
	ConflictAnalysis *ConflictAnalysis `json:"conflictAnalysis,omitempty"`
	Suggestions      []Suggestion      `json:"suggestions"`
}

// TighteningAdvice carries verified narrowing suggestions.
type TighteningAdvice struct {
	BaselineMatches int          `json:"baselineMatches"`
	Suggestions     []Suggestion `json:"suggestions"`
}

// Advice is the advisor output. At most one of Relaxation and Tightening
// is populated; mid-range counts produce neither.
type Advice struct {
	Relaxation *RelaxationAdvice `json:"relaxation,omitempty"`
	Tightening *TighteningAdvice `json:"tightening,omitempty"`
}

// Advisor dispatches on the total match count and composes the
// diagnoser and the two suggestion generators.
type Advisor struct {
	config Config
	log    *logging.Logger
}

func New(config Config, log *logging.Logger) *Advisor {
	if config.RelaxationThreshold <= 0 || config.TighteningThreshold <= 0 {
		config = DefaultConfig()
	}
	if log == nil {
		log = logging.Default()
	}
	return &Advisor{config: config, log: log}
}

// Advise computes the total match count through the tester and
// dispatches to AdviseWithCount.
func (a *Advisor) Advise(ctx context.Context, req schema.SearchRequest, tester *constraints.Tester) (*Advice, int, error) {
	total, err := tester.CountAll(ctx)
	if err != nil {
		return nil, 0, err
	}
	advice := a.AdviseWithCount(ctx, req, tester, total)
	return advice, total, nil
}

// AdviseWithCount is the pure dispatch: sparse counts get relaxation
// advice with conflict analysis, abundant counts get tightening advice,
// anything in between gets an empty advice object.
//
// Within relaxation, a failed diagnosis degrades softly: suggestions
// still run, and the analysis is simply absent.
func (a *Advisor) AdviseWithCount(ctx context.Context, req schema.SearchRequest, tester *constraints.Tester, total int) *Advice {
	switch {
	case total < a.config.RelaxationThreshold:
		relaxation := &RelaxationAdvice{Suggestions: []Suggestion{}}
		analysis, err := NewDiagnoser(tester, a.log).Diagnose(ctx)
		if err != nil {
			a.log.Warn("conflict diagnosis failed", "error", err)
		} else {
			relaxation.ConflictAnalysis = analysis
		}
		relaxation.Suggestions = NewRelaxer(tester, total, a.log).Suggestions(ctx)
		if relaxation.Suggestions == nil {
			relaxation.Suggestions = []Suggestion{}
		}
		return &Advice{Relaxation: relaxation}

	case total >= a.config.TighteningThreshold:
		suggestions := NewTightener(tester, req, a.config.Tighten, a.log).Suggestions(ctx)
		return &Advice{Tightening: &TighteningAdvice{
			BaselineMatches: total,
			Suggestions:     suggestions,
		}}

	default:
		return &Advice{}
	}
}
