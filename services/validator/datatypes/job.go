// Copyright (C) 2026 rosroyros
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes defines the shared data structures for the validator
// service: asynchronous job records, per-citation validation outcomes, and
// the request/response DTOs exchanged with the web frontend.
package datatypes

import "time"

// JobStatus is the lifecycle state of an asynchronous validation job.
//
// Transitions are forward-only: Pending -> Processing -> Completed|Failed.
// A job never re-enters Pending and never holds both a result and an error.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether the status is an end state.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// CitationOutcome is the validation verdict for a single citation, in the
// order the citations were submitted.
type CitationOutcome struct {
	Citation   string   `json:"citation"`
	Valid      bool     `json:"valid"`
	Issues     []string `json:"issues,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// JobResult is the payload of a completed validation job.
//
// Partial results carry enough metadata for the frontend to render
// "N of M citations checked" messaging without inspecting error fields:
// CitationsChecked, CitationsRemaining and FreeUsedTotal are always set.
type JobResult struct {
	Results            []CitationOutcome `json:"results"`
	Partial            bool              `json:"partial"`
	CitationsChecked   int               `json:"citations_checked"`
	CitationsRemaining int               `json:"citations_remaining"`
	FreeUsedTotal      int               `json:"free_used_total"`
}

// Job is one asynchronous validation request tracked in the job store.
//
// Result is non-nil only when Status is JobCompleted; Error is non-empty
// only when Status is JobFailed. CreatedAt drives sweeper eviction.
type Job struct {
	ID        string     `json:"job_id"`
	Status    JobStatus  `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	Result    *JobResult `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
}
