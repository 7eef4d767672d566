// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package matcher

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/talentgraph/pkg/logging"
	"github.com/AleutianAI/talentgraph/services/matcher/graphstore"
	"github.com/AleutianAI/talentgraph/services/matcher/inference"
	"github.com/AleutianAI/talentgraph/services/matcher/schema"
)

// Handlers carries the HTTP layer's dependencies.
type Handlers struct {
	service *Service
	log     *logging.Logger
}

// NewHandlers wires the HTTP handlers.
func NewHandlers(service *Service, log *logging.Logger) *Handlers {
	if log == nil {
		log = logging.Default()
	}
	return &Handlers{service: service, log: log}
}

// bindRequest decodes and validates a search request. Validation happens
// here, at the boundary; the core engine assumes a valid request.
func (h *Handlers) bindRequest(c *gin.Context) (schema.SearchRequest, bool) {
	var req schema.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return req, false
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return req, false
	}
	return req, true
}

// HandleAdvise runs the full advise pipeline.
//
// POST /v1/matcher/advise
func (h *Handlers) HandleAdvise(c *gin.Context) {
	req, ok := h.bindRequest(c)
	if !ok {
		return
	}
	requestID := uuid.NewString()
	log := h.log.With("requestId", requestID)

	resp, err := h.service.Advise(c.Request.Context(), req)
	if err != nil {
		log.Error("advise failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "advice computation failed"})
		return
	}
	c.Header("X-Request-Id", requestID)
	c.JSON(http.StatusOK, resp)
}

// HandleInfer runs inference only, without touching the graph.
//
// POST /v1/matcher/infer
func (h *Handlers) HandleInfer(c *gin.Context) {
	req, ok := h.bindRequest(c)
	if !ok {
		return
	}

	res, err := h.service.Infer(c.Request.Context(), req)
	if err != nil {
		h.log.Error("inference failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "inference failed"})
		return
	}
	c.JSON(http.StatusOK, InferResponse{
		DerivedConstraints: res.DerivedConstraints,
		FiredRules:         res.FiredRules,
		IterationCount:     res.IterationCount,
		Warnings:           res.Warnings,
		OverriddenRules:    res.OverriddenRules,
		DerivedSkills:      inference.DerivedRequiredSkills(res.DerivedConstraints),
		SkillBoosts:        inference.AggregateSkillBoosts(res.DerivedConstraints),
	})
}

// HandleRules returns the active rule set and its hash.
//
// GET /v1/matcher/rules
func (h *Handlers) HandleRules(c *gin.Context) {
	defs, hash, err := h.service.ActiveRules()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, RulesResponse{Hash: hash, Count: len(defs), Rules: defs})
}

// HandleEngineer looks up one engineer node. A missing id is a fail-fast
// 404, unlike the soft degradation inside the advisor.
//
// GET /v1/matcher/engineers/:id
func (h *Handlers) HandleEngineer(c *gin.Context) {
	id := c.Param("id")
	rec, err := h.service.EngineerByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, graphstore.ErrEngineerNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
			return
		}
		h.log.Error("engineer lookup failed", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// HandleHealth is a liveness probe.
//
// GET /v1/matcher/health
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleReady is a readiness probe: verifies graph connectivity.
//
// GET /v1/matcher/ready
func (h *Handlers) HandleReady(c *gin.Context) {
	if err := h.service.Ready(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
