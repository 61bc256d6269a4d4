// Copyright (C) 2026 rosroyros
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rosroyros/citations-sub002/services/validator/handlers"
	"github.com/rosroyros/citations-sub002/services/validator/middleware"
)

// SetupRoutes wires the validator's HTTP surface onto the router.
//
// Validation endpoints sit behind tier resolution and rate limiting;
// health and metrics stay open.
func SetupRoutes(router *gin.Engine, h *handlers.Handler, limiter *middleware.RateLimiter) {
	router.GET("/health", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.Use(limiter.Middleware(), middleware.ResolveTier())
	{
		api.POST("/validate", h.ValidateSync)
		api.POST("/validate/async", h.ValidateAsync)
		api.POST("/validate/inline", h.ValidateInline)
		api.GET("/jobs/:job_id", h.GetJob)
	}
}
