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
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/talentgraph/services/matcher/rules"
	"github.com/AleutianAI/talentgraph/services/matcher/rules/builtin"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var rulesJSONOutput bool // Output as JSON for scripting

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and verify inference rule sets",
}

// rulesVerifyCmd parses a rule set and reports its content hash.
//
// # Examples
//
//	talentgraph rules verify               # verify the embedded set
//	talentgraph rules verify rules.yaml    # verify a custom file
//	talentgraph rules verify --json        # machine-readable output
var rulesVerifyCmd = &cobra.Command{
	Use:   "verify [file]",
	Short: "Parse a rule set and print its content hash",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRulesVerify,
}

var rulesShowCmd = &cobra.Command{
	Use:   "show [file]",
	Short: "List the rules in a rule set in priority order",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRulesShow,
}

func init() {
	rulesCmd.PersistentFlags().BoolVar(&rulesJSONOutput, "json", false, "Output as JSON")
}

// loadRuleSet reads the named file, or the embedded set when no file is
// given.
func loadRuleSet(args []string) ([]byte, string, error) {
	if len(args) == 0 {
		return builtin.DefaultRuleSet, "embedded", nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, "", fmt.Errorf("read rule set: %w", err)
	}
	return data, args[0], nil
}

func runRulesVerify(cmd *cobra.Command, args []string) error {
	data, source, err := loadRuleSet(args)
	if err != nil {
		return err
	}

	defs, err := rules.ParseDefinitions(data)
	if err != nil {
		return fmt.Errorf("invalid rule set %s: %w", source, err)
	}
	hash := rules.HashRuleSet(data)

	if rulesJSONOutput {
		out := map[string]any{
			"source": source,
			"hash":   hash,
			"count":  len(defs),
			"valid":  true,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("OK: %s\n", source)
	fmt.Printf("  rules: %d\n", len(defs))
	fmt.Printf("  hash:  %s\n", hash)
	return nil
}

func runRulesShow(cmd *cobra.Command, args []string) error {
	data, source, err := loadRuleSet(args)
	if err != nil {
		return err
	}

	defs, err := rules.ParseDefinitions(data)
	if err != nil {
		return fmt.Errorf("invalid rule set %s: %w", source, err)
	}

	if rulesJSONOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(defs)
	}

	fmt.Printf("Rule set %s (%d rules)\n\n", source, len(defs))
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PRIORITY\tID\tEFFECT\tTARGET")
	for _, d := range defs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", d.Priority, d.ID, d.Event.Effect, d.Event.TargetField)
	}
	return w.Flush()
}
