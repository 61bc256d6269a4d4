// Copyright (C) 2026 rosroyros
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rosroyros/citations-sub002/services/validator/jobs"
)

// GetJob handles GET /api/jobs/:job_id.
//
// Returns the current job snapshot. A job that never existed and a job
// already evicted by the sweeper are indistinguishable: both are 404.
func (h *Handler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")

	job, err := h.store.Get(jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read job"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"active_jobs": h.store.Len(),
	})
}
