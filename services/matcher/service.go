// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package matcher provides the constraint inference and advice HTTP
// service for hiring-manager searches.
//
// The service exposes endpoints for:
//   - Expanding hiring intent into derived constraints with provenance
//   - Diagnosing sparse results and proposing verified relaxations
//   - Proposing verified tightenings for oversized results
//   - Inspecting the active rule set
package matcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/AleutianAI/talentgraph/pkg/logging"
	"github.com/AleutianAI/talentgraph/services/matcher/advisor"
	"github.com/AleutianAI/talentgraph/services/matcher/constraints"
	"github.com/AleutianAI/talentgraph/services/matcher/graphstore"
	"github.com/AleutianAI/talentgraph/services/matcher/hierarchy"
	"github.com/AleutianAI/talentgraph/services/matcher/inference"
	"github.com/AleutianAI/talentgraph/services/matcher/rules"
	"github.com/AleutianAI/talentgraph/services/matcher/rules/builtin"
	"github.com/AleutianAI/talentgraph/services/matcher/schema"
	"github.com/AleutianAI/talentgraph/services/matcher/telemetry"
)

// ServiceConfig configures the matcher service.
type ServiceConfig struct {
	// RulesPath optionally loads the rule set from a YAML file instead
	// of the embedded default.
	RulesPath string `yaml:"rules_path"`

	// WatchRules hot-reloads RulesPath on change.
	WatchRules bool `yaml:"watch_rules"`

	Graph     graphstore.Config      `yaml:"graph"`
	Inference inference.EngineConfig `yaml:"inference"`
	Advisor   advisor.Config         `yaml:"advisor"`
}

// DefaultServiceConfig returns sensible defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Graph:     graphstore.DefaultConfig(),
		Inference: inference.DefaultEngineConfig(),
		Advisor:   advisor.DefaultConfig(),
	}
}

// Service is the matcher service.
//
// Thread Safety:
//
//	Service is safe for concurrent use. Each request gets its own
//	inference snapshots and its own graph session; the only shared
//	state is the read-only compiled-rules registry.
type Service struct {
	config   ServiceConfig
	log      *logging.Logger
	registry *rules.Registry
	store    *graphstore.Store
	resolver hierarchy.Resolver
	advisor  *advisor.Advisor
}

// NewService constructs the service: compiles the rule set, connects the
// graph driver, and initializes telemetry.
func NewService(config ServiceConfig, log *logging.Logger) (*Service, error) {
	if log == nil {
		log = logging.Default()
	}

	registry := rules.NewRegistry(log)
	if config.RulesPath != "" {
		if _, _, err := registry.LoadFile(config.RulesPath); err != nil {
			return nil, fmt.Errorf("load rules from %s: %w", config.RulesPath, err)
		}
	} else {
		if _, _, err := registry.Compile(builtin.DefaultRuleSet); err != nil {
			return nil, fmt.Errorf("compile embedded rules: %w", err)
		}
	}

	store, err := graphstore.NewStore(config.Graph, log)
	if err != nil {
		return nil, err
	}

	if err := telemetry.InitMetrics(); err != nil {
		log.Warn("metrics initialization failed", "error", err)
	}

	return &Service{
		config:   config,
		log:      log,
		registry: registry,
		store:    store,
		resolver: hierarchy.Default(),
		advisor:  advisor.New(config.Advisor, log),
	}, nil
}

// Close releases the graph connection pool.
func (s *Service) Close(ctx context.Context) error {
	return s.store.Close(ctx)
}

// Ready reports whether the graph store is reachable.
func (s *Service) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// WatchRules starts hot-reloading the configured rules file. It returns
// once the watcher is installed; the watch itself runs until ctx is
// canceled.
func (s *Service) WatchRules(ctx context.Context) error {
	if !s.config.WatchRules || s.config.RulesPath == "" {
		return nil
	}
	return s.registry.WatchFile(ctx, s.config.RulesPath)
}

// ActiveRules returns the active rule definitions and their set hash.
func (s *Service) ActiveRules() ([]rules.Definition, string, error) {
	engine, hash, ok := s.registry.Active()
	if !ok {
		return nil, "", errors.New("no active rule set")
	}
	return engine.Definitions(), hash, nil
}

// Infer runs the inference fixpoint for a request.
func (s *Service) Infer(ctx context.Context, req schema.SearchRequest) (*inference.Result, error) {
	engine, _, ok := s.registry.Active()
	if !ok {
		return nil, errors.New("no active rule set")
	}
	res, err := inference.NewEngine(engine, s.resolver, s.config.Inference, s.log).Run(ctx, req)
	if err != nil {
		return nil, err
	}
	telemetry.RecordInference(ctx, res.IterationCount, len(res.FiredRules))
	return res, nil
}

// Advise runs the full pipeline: inference, decomposition, count, and
// mode-dispatched advice.
func (s *Service) Advise(ctx context.Context, req schema.SearchRequest) (*AdviceResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "matcher.advise")
	defer span.End()
	start := time.Now()

	inf, err := s.Infer(ctx, req)
	if err != nil {
		telemetry.RecordAdvise(ctx, "none", time.Since(start), err)
		return nil, err
	}

	dec, err := constraints.Decompose(req, inf, s.resolver)
	if err != nil {
		telemetry.RecordAdvise(ctx, "none", time.Since(start), err)
		return nil, err
	}

	session := s.store.ReadSession(ctx)
	defer func() {
		if cerr := session.Close(ctx); cerr != nil {
			s.log.Warn("session close failed", "error", cerr)
		}
	}()

	tester := constraints.NewTester(session, dec, s.log)
	advice, total, err := s.advisor.Advise(ctx, req, tester)
	if err != nil {
		telemetry.RecordAdvise(ctx, "none", time.Since(start), err)
		return nil, err
	}

	mode := "none"
	switch {
	case advice.Relaxation != nil:
		mode = "relaxation"
	case advice.Tightening != nil:
		mode = "tightening"
	}
	telemetry.RecordAdvise(ctx, mode, time.Since(start), nil)
	s.log.Info("advice computed",
		"totalMatches", total,
		"mode", mode,
		"firedRules", len(inf.FiredRules),
		"iterations", inf.IterationCount)

	return &AdviceResponse{
		TotalMatches:       total,
		Advice:             advice,
		DerivedConstraints: inf.DerivedConstraints,
		FiredRules:         inf.FiredRules,
		IterationCount:     inf.IterationCount,
		Warnings:           inf.Warnings,
		OverriddenRules:    inf.OverriddenRules,
	}, nil
}

// EngineerByID is the fail-fast identity lookup used by the similarity
// anchor endpoint.
func (s *Service) EngineerByID(ctx context.Context, id string) (graphstore.Record, error) {
	return s.store.EngineerByID(ctx, id)
}

// GraphURI returns the configured graph endpoint, for startup logging.
func (s *Service) GraphURI() string {
	return s.config.Graph.URI
}

// RulesFileExists reports whether the configured rules path is readable.
// The serve command checks it before starting the watcher.
func (s *Service) RulesFileExists() bool {
	if s.config.RulesPath == "" {
		return false
	}
	_, err := os.Stat(s.config.RulesPath)
	return err == nil
}
