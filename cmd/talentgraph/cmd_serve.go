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
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/talentgraph/services/matcher"
	"github.com/AleutianAI/talentgraph/services/matcher/telemetry"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	servePort       int    // HTTP listen port
	serveRulesPath  string // Rule set YAML (empty uses the embedded set)
	serveWatchRules bool   // Hot-reload the rules file on change
	serveNeo4jURI   string // Bolt URI of the engineer graph
	serveNeo4jUser  string // Graph username
	serveNeo4jPass  string // Graph password
	serveNeo4jDB    string // Graph database name
	serveTraces     string // Trace exporter: otlp, stdout, none
	serveMetrics    string // Metric exporter: prometheus, stdout, none
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// serveCmd runs the matcher HTTP service.
//
// # Description
//
//	Starts the advise/infer API against the engineer graph and serves it
//	until SIGINT or SIGTERM. When the prometheus metric exporter is
//	enabled the process also serves /metrics on the same port.
//
// # Examples
//
//	talentgraph serve                              # embedded rules, local graph
//	talentgraph serve --rules rules.yaml --watch   # hot-reloaded custom rules
//	talentgraph serve --port 9090 --traces otlp    # export spans via OTLP
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the matcher HTTP service",
	Long: `Starts the matcher service: POST /v1/matcher/advise and the
supporting inference, rules, and health endpoints.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "HTTP listen port")
	serveCmd.Flags().StringVar(&serveRulesPath, "rules", "", "Rule set YAML file (default: embedded rule set)")
	serveCmd.Flags().BoolVar(&serveWatchRules, "watch", false, "Hot-reload the rules file on change")
	serveCmd.Flags().StringVar(&serveNeo4jURI, "neo4j-uri", "", "Bolt URI of the engineer graph")
	serveCmd.Flags().StringVar(&serveNeo4jUser, "neo4j-user", "", "Graph username")
	serveCmd.Flags().StringVar(&serveNeo4jPass, "neo4j-password", "", "Graph password")
	serveCmd.Flags().StringVar(&serveNeo4jDB, "neo4j-database", "", "Graph database name")
	serveCmd.Flags().StringVar(&serveTraces, "traces", "", "Trace exporter (otlp, stdout, none)")
	serveCmd.Flags().StringVar(&serveMetrics, "metrics", "", "Metric exporter (prometheus, stdout, none)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := newLogger("matcher")
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telCfg := telemetry.DefaultConfig()
	if serveTraces != "" {
		telCfg.TraceExporter = serveTraces
	}
	if serveMetrics != "" {
		telCfg.MetricExporter = serveMetrics
	}
	shutdownTelemetry, err := telemetry.Init(ctx, telCfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			log.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	service, err := matcher.NewService(serviceConfig(), log)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	defer func() {
		if err := service.Close(context.Background()); err != nil {
			log.Warn("service close failed", "error", err)
		}
	}()

	if serveWatchRules {
		if !service.RulesFileExists() {
			return fmt.Errorf("--watch requires a readable --rules file")
		}
		if err := service.WatchRules(ctx); err != nil {
			return fmt.Errorf("watch rules: %w", err)
		}
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(telCfg.ServiceName))

	v1 := router.Group("/v1")
	matcher.RegisterRoutes(v1, matcher.NewHandlers(service, log))

	if h := telemetry.MetricsHandler(); h != nil {
		router.GET("/metrics", gin.WrapH(h))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", servePort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("matcher service listening",
			"port", servePort,
			"rules", ruleSourceLabel(),
			"graph", service.GraphURI())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// serviceConfig merges the serve flags over the service defaults.
func serviceConfig() matcher.ServiceConfig {
	cfg := matcher.DefaultServiceConfig()
	cfg.RulesPath = serveRulesPath
	cfg.WatchRules = serveWatchRules
	if serveNeo4jURI != "" {
		cfg.Graph.URI = serveNeo4jURI
	}
	if serveNeo4jUser != "" {
		cfg.Graph.Username = serveNeo4jUser
	}
	if serveNeo4jPass != "" {
		cfg.Graph.Password = serveNeo4jPass
	}
	if serveNeo4jDB != "" {
		cfg.Graph.Database = serveNeo4jDB
	}
	return cfg
}

func ruleSourceLabel() string {
	if serveRulesPath == "" {
		return "embedded"
	}
	return serveRulesPath
}
