// Copyright (C) 2026 rosroyros
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the HTTP handlers for the citation
// validator: asynchronous and synchronous validation, job polling, and
// inline citation matching.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/rosroyros/citations-sub002/services/llm"
	"github.com/rosroyros/citations-sub002/services/validator/datatypes"
	"github.com/rosroyros/citations-sub002/services/validator/jobs"
	"github.com/rosroyros/citations-sub002/services/validator/matching"
	"github.com/rosroyros/citations-sub002/services/validator/middleware"
	"github.com/rosroyros/citations-sub002/services/validator/observability"
)

var tracer = otel.Tracer("validator/handlers")

// syncJobTimeout bounds how long the synchronous endpoint waits for a
// terminal state before giving up.
const syncJobTimeout = 120 * time.Second

// syncPollInterval is how often the synchronous endpoint re-reads the job.
const syncPollInterval = 100 * time.Millisecond

// Handler bundles the dependencies the HTTP handlers need.
type Handler struct {
	store   *jobs.Store
	runner  *jobs.Runner
	matcher *matching.Matcher
	llm     llm.LLMClient
}

// NewHandler creates a Handler.
func NewHandler(store *jobs.Store, runner *jobs.Runner, matcher *matching.Matcher, client llm.LLMClient) *Handler {
	return &Handler{
		store:   store,
		runner:  runner,
		matcher: matcher,
		llm:     client,
	}
}

// ValidateAsync handles POST /api/validate/async.
//
// The request is acknowledged immediately with a job id; validation runs
// in a background goroutine and results are fetched via GET /api/jobs/:job_id.
func (h *Handler) ValidateAsync(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "handler.validate_async")
	defer span.End()

	var req datatypes.ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	tc, ok := middleware.GetTierContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tier resolution missing"})
		return
	}

	citations := jobs.SplitCitations(req.Citations)
	if len(citations) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no citations found in request"})
		return
	}

	jobID := h.store.Create()
	observability.RecordJobCreated()
	observability.SetActiveJobs(h.store.Len())

	span.SetAttributes(
		attribute.String("job.id", jobID),
		attribute.Int("citations.count", len(citations)),
		attribute.String("tier", string(tc.Tier)),
	)
	slog.Info("handler: async validation accepted",
		"job_id", jobID,
		"citations", len(citations),
		"style", req.Style,
		"tier", string(tc.Tier),
	)

	// The job outlives the request; detach from the request context but
	// keep the trace linkage.
	runCtx := context.WithoutCancel(ctx)
	go h.runner.Run(runCtx, jobID, citations, req.Style, tc)

	c.JSON(http.StatusOK, datatypes.ValidateAsyncResponse{
		JobID:  jobID,
		Status: datatypes.JobPending,
	})
}

// ValidateSync handles POST /api/validate.
//
// Runs the same pipeline as the asynchronous endpoint but blocks until
// the job reaches a terminal state, then returns the result directly.
func (h *Handler) ValidateSync(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "handler.validate_sync")
	defer span.End()

	var req datatypes.ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	tc, ok := middleware.GetTierContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tier resolution missing"})
		return
	}

	citations := jobs.SplitCitations(req.Citations)
	if len(citations) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no citations found in request"})
		return
	}

	jobID := h.store.Create()
	observability.RecordJobCreated()
	span.SetAttributes(attribute.String("job.id", jobID))

	h.runner.Run(ctx, jobID, citations, req.Style, tc)

	final, err := h.awaitTerminal(ctx, jobID)
	if err != nil {
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "validation timed out"})
		return
	}

	if final.Status == datatypes.JobFailed {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": final.Error})
		return
	}
	c.JSON(http.StatusOK, final.Result)
}

// awaitTerminal polls the store until the job is terminal. The runner
// normally finishes before the first read; polling covers the panic
// recovery path where the terminal write races the return.
func (h *Handler) awaitTerminal(ctx context.Context, jobID string) (datatypes.Job, error) {
	deadline := time.Now().Add(syncJobTimeout)
	for {
		job, err := h.store.Get(jobID)
		if err == nil && job.Status.Terminal() {
			return job, nil
		}
		if time.Now().After(deadline) {
			return datatypes.Job{}, context.DeadlineExceeded
		}
		select {
		case <-ctx.Done():
			return datatypes.Job{}, ctx.Err()
		case <-time.After(syncPollInterval):
		}
	}
}
