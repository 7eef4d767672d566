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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all matcher routes with the router group.
//
// Description:
//
//	Registers all /v1/matcher/* endpoints with the given Gin router
//	group. The group should already carry any required middleware.
//
// Endpoints:
//
//	POST /v1/matcher/advise - Full pipeline: inference, counts, advice
//	POST /v1/matcher/infer - Inference only, no graph queries
//	GET  /v1/matcher/rules - Active rule set and hash
//	GET  /v1/matcher/engineers/:id - Engineer lookup (fail-fast 404)
//	GET  /v1/matcher/health - Liveness probe
//	GET  /v1/matcher/ready - Readiness probe (graph connectivity)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	m := rg.Group("/matcher")
	{
		m.POST("/advise", handlers.HandleAdvise)
		m.POST("/infer", handlers.HandleInfer)
		m.GET("/rules", handlers.HandleRules)
		m.GET("/engineers/:id", handlers.HandleEngineer)
		m.GET("/health", handlers.HandleHealth)
		m.GET("/ready", handlers.HandleReady)
	}
}
