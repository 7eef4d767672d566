// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry holds the matcher's tracer, meter, and metric
// instruments.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for matcher operations.
var (
	tracer = otel.Tracer("talentgraph.matcher")
	meter  = otel.Meter("talentgraph.matcher")
)

// Metrics for advise and inference operations.
var (
	adviseLatency       metric.Float64Histogram
	adviseTotal         metric.Int64Counter
	inferenceIterations metric.Int64Histogram
	rulesFired          metric.Int64Histogram
	countQueries        metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// InitMetrics initializes the metric instruments. Safe to call multiple
// times.
func InitMetrics() error {
	metricsOnce.Do(func() {
		var err error

		adviseLatency, err = meter.Float64Histogram(
			"matcher_advise_duration_seconds",
			metric.WithDescription("Duration of constraint advice requests"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		adviseTotal, err = meter.Int64Counter(
			"matcher_advise_total",
			metric.WithDescription("Total number of constraint advice requests"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		inferenceIterations, err = meter.Int64Histogram(
			"matcher_inference_iterations",
			metric.WithDescription("Rule evaluation passes per inference run"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		rulesFired, err = meter.Int64Histogram(
			"matcher_inference_rules_fired",
			metric.WithDescription("Rules fired per inference run"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		countQueries, err = meter.Int64Counter(
			"matcher_count_queries_total",
			metric.WithDescription("What-if count queries issued against the graph"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// StartSpan starts a matcher span.
func StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

// RecordAdvise records one advice request's outcome. mode is
// "relaxation", "tightening", or "none".
func RecordAdvise(ctx context.Context, mode string, duration time.Duration, err error) {
	if adviseTotal == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.Bool("error", err != nil),
	)
	adviseTotal.Add(ctx, 1, attrs)
	adviseLatency.Record(ctx, duration.Seconds(), attrs)
}

// RecordInference records one inference run's shape.
func RecordInference(ctx context.Context, iterations, fired int) {
	if inferenceIterations == nil {
		return
	}
	inferenceIterations.Record(ctx, int64(iterations))
	rulesFired.Record(ctx, int64(fired))
}

// RecordCountQueries adds to the what-if query counter.
func RecordCountQueries(ctx context.Context, n int) {
	if countQueries == nil {
		return
	}
	countQueries.Add(ctx, int64(n))
}
