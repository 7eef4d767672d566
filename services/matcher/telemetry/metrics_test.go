// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestInitMetrics(t *testing.T) {
	if err := InitMetrics(); err != nil {
		t.Fatalf("InitMetrics() error = %v", err)
	}
	// Idempotent: a second call must not recreate or fail.
	if err := InitMetrics(); err != nil {
		t.Fatalf("second InitMetrics() error = %v", err)
	}

	if adviseLatency == nil {
		t.Error("adviseLatency is nil")
	}
	if adviseTotal == nil {
		t.Error("adviseTotal is nil")
	}
	if inferenceIterations == nil {
		t.Error("inferenceIterations is nil")
	}
	if rulesFired == nil {
		t.Error("rulesFired is nil")
	}
	if countQueries == nil {
		t.Error("countQueries is nil")
	}
}

func TestRecorders_DoNotPanic(t *testing.T) {
	if err := InitMetrics(); err != nil {
		t.Fatalf("InitMetrics() error = %v", err)
	}
	ctx := context.Background()

	RecordAdvise(ctx, "relaxation", 120*time.Millisecond, nil)
	RecordAdvise(ctx, "none", time.Millisecond, errors.New("boom"))
	RecordInference(ctx, 2, 5)
	RecordCountQueries(ctx, 9)
}

func TestStartSpan(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "matcher.advise")
	if ctx == nil {
		t.Fatal("StartSpan returned nil context")
	}
	if span == nil {
		t.Fatal("StartSpan returned nil span")
	}
	span.End()
}

func TestInit_UnknownExporters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "jaeger-classic"
	cfg.MetricExporter = "none"
	if _, err := Init(context.Background(), cfg); !errors.Is(err, ErrUnknownExporter) {
		t.Errorf("Init() error = %v, want ErrUnknownExporter", err)
	}

	cfg = DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "graphite"
	if _, err := Init(context.Background(), cfg); !errors.Is(err, ErrUnknownExporter) {
		t.Errorf("Init() error = %v, want ErrUnknownExporter", err)
	}
}

func TestInit_PrometheusExposesHandler(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "prometheus"

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer shutdown(context.Background())

	if MetricsHandler() == nil {
		t.Error("MetricsHandler() = nil after prometheus init")
	}
}
