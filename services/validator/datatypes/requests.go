// Copyright (C) 2026 rosroyros
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// ValidateRequest is the body of POST /api/validate and
// POST /api/validate/async. Citations is the raw pasted reference list;
// the server splits it into individual citations on paragraph boundaries.
type ValidateRequest struct {
	Citations string `json:"citations" binding:"required"`
	Style     string `json:"style" binding:"required,citationstyle"`
}

// ValidateAsyncResponse acknowledges an accepted asynchronous job.
type ValidateAsyncResponse struct {
	JobID  string    `json:"job_id"`
	Status JobStatus `json:"status"`
}

// InlineMatchRequest is the body of POST /api/validate/inline.
type InlineMatchRequest struct {
	InlineCitations []InlineCitation `json:"inline_citations" binding:"required"`
	References      []string         `json:"references" binding:"required"`
	Style           string           `json:"style" binding:"required,citationstyle"`
}
