// Copyright (C) 2026 rosroyros
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/rosroyros/citations-sub002/services/llm"
	"github.com/rosroyros/citations-sub002/services/validator/datatypes"
	"github.com/rosroyros/citations-sub002/services/validator/jobs"
	"github.com/rosroyros/citations-sub002/services/validator/matching"
)

// ValidateInline handles POST /api/validate/inline.
//
// Matches in-text citations against the supplied reference list. The
// whole request is bounded by the provider call timeout per batch; a
// failing batch degrades to placeholders rather than failing the request.
func (h *Handler) ValidateInline(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "handler.validate_inline")
	defer span.End()

	var req datatypes.InlineMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	span.SetAttributes(
		attribute.Int("inline.count", len(req.InlineCitations)),
		attribute.Int("references.count", len(req.References)),
	)

	report, err := h.matcher.Match(ctx, req.InlineCitations, req.References, req.Style, h.inlineCall)
	if err != nil {
		if errors.Is(err, matching.ErrTooManyCitations) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "inline matching failed"})
		return
	}

	c.JSON(http.StatusOK, report)
}

// inlineCall adapts the LLM client to the matcher's call shape.
func (h *Handler) inlineCall(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, jobs.ProviderCallTimeout)
	defer cancel()

	temp := float32(0.0)
	return h.llm.Generate(ctx, prompt, llm.GenerationParams{
		Temperature: &temp,
	})
}
