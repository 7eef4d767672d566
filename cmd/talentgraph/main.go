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
	"log"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/talentgraph/pkg/logging"
)

// =============================================================================
// GLOBAL FLAGS
// =============================================================================

var (
	logLevel string // Minimum log level: debug, info, warn, error
	logDir   string // Directory for JSON file logs (empty disables)
	logJSON  bool   // Emit JSON to stderr instead of text
	logQuiet bool   // Suppress stderr logging entirely
)

// =============================================================================
// ROOT COMMAND
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "talentgraph",
	Short: "Constraint inference and matching advisor for engineer search",
	Long: `Talentgraph turns a hiring manager's search request into graph
constraints: it runs the inference rule set, decomposes the result into
independently testable constraints, and advises on relaxations or
tightenings against the engineer graph.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Minimum log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Directory for JSON file logs")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Emit JSON logs to stderr")
	rootCmd.PersistentFlags().BoolVarP(&logQuiet, "quiet", "q", false, "Suppress stderr logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesVerifyCmd)
	rulesCmd.AddCommand(rulesShowCmd)
	rootCmd.AddCommand(adviseCmd)
}

// newLogger builds the process logger from the global flags.
func newLogger(service string) *logging.Logger {
	level := logging.LevelInfo
	switch logLevel {
	case "debug":
		level = logging.LevelDebug
	case "warn":
		level = logging.LevelWarn
	case "error":
		level = logging.LevelError
	}
	return logging.New(logging.Config{
		Level:   level,
		LogDir:  logDir,
		Service: service,
		JSON:    logJSON,
		Quiet:   logQuiet,
	})
}
