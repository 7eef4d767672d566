// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/talentgraph/services/matcher"
	"github.com/AleutianAI/talentgraph/services/matcher/inference"
	"github.com/AleutianAI/talentgraph/services/matcher/schema"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	adviseInferOnly bool   // Run inference only, skip graph queries
	adviseRulesPath string // Rule set YAML (empty uses the embedded set)
	adviseNeo4jURI  string // Bolt URI of the engineer graph
	adviseNeo4jUser string // Graph username
	adviseNeo4jPass string // Graph password
	adviseNeo4jDB   string // Graph database name
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// adviseCmd runs one advice request from a file or stdin.
//
// # Description
//
//	Reads a search request as JSON, runs the full advise pipeline
//	against the engineer graph, and prints the advice as JSON. With
//	--infer-only no graph connection is used: only the inference
//	outcome is printed, which is useful for debugging rule sets.
//
// # Examples
//
//	talentgraph advise request.json
//	cat request.json | talentgraph advise -
//	talentgraph advise request.json --infer-only --rules rules.yaml
var adviseCmd = &cobra.Command{
	Use:   "advise [request.json]",
	Short: "Run one advice request from a file or stdin",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdvise,
}

func init() {
	adviseCmd.Flags().BoolVar(&adviseInferOnly, "infer-only", false, "Run inference only, skip graph queries")
	adviseCmd.Flags().StringVar(&adviseRulesPath, "rules", "", "Rule set YAML file (default: embedded rule set)")
	adviseCmd.Flags().StringVar(&adviseNeo4jURI, "neo4j-uri", "", "Bolt URI of the engineer graph")
	adviseCmd.Flags().StringVar(&adviseNeo4jUser, "neo4j-user", "", "Graph username")
	adviseCmd.Flags().StringVar(&adviseNeo4jPass, "neo4j-password", "", "Graph password")
	adviseCmd.Flags().StringVar(&adviseNeo4jDB, "neo4j-database", "", "Graph database name")
}

func runAdvise(cmd *cobra.Command, args []string) error {
	req, err := readRequest(args[0])
	if err != nil {
		return err
	}

	log := newLogger("matcher-cli")
	defer log.Close()

	cfg := matcher.DefaultServiceConfig()
	cfg.RulesPath = adviseRulesPath
	if adviseNeo4jURI != "" {
		cfg.Graph.URI = adviseNeo4jURI
	}
	if adviseNeo4jUser != "" {
		cfg.Graph.Username = adviseNeo4jUser
	}
	if adviseNeo4jPass != "" {
		cfg.Graph.Password = adviseNeo4jPass
	}
	if adviseNeo4jDB != "" {
		cfg.Graph.Database = adviseNeo4jDB
	}

	service, err := matcher.NewService(cfg, log)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	ctx := cmd.Context()
	defer func() {
		if err := service.Close(context.Background()); err != nil {
			log.Warn("service close failed", "error", err)
		}
	}()

	var out any
	if adviseInferOnly {
		res, err := service.Infer(ctx, req)
		if err != nil {
			return fmt.Errorf("inference: %w", err)
		}
		out = matcher.InferResponse{
			DerivedConstraints: res.DerivedConstraints,
			FiredRules:         res.FiredRules,
			IterationCount:     res.IterationCount,
			Warnings:           res.Warnings,
			OverriddenRules:    res.OverriddenRules,
			DerivedSkills:      inference.DerivedRequiredSkills(res.DerivedConstraints),
			SkillBoosts:        inference.AggregateSkillBoosts(res.DerivedConstraints),
		}
	} else {
		res, err := service.Advise(ctx, req)
		if err != nil {
			return fmt.Errorf("advise: %w", err)
		}
		out = res
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// readRequest loads a search request from the named file, or stdin when
// the path is "-".
func readRequest(path string) (schema.SearchRequest, error) {
	var req schema.SearchRequest

	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return req, fmt.Errorf("read request: %w", err)
	}

	if err := json.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("parse request: %w", err)
	}
	if err := req.Validate(); err != nil {
		return req, fmt.Errorf("invalid request: %w", err)
	}
	return req, nil
}
