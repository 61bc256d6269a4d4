// Copyright (C) 2026 rosroyros
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package jobs owns the asynchronous validation job lifecycle: the
// in-memory job store, the background runner that drives a job to a
// terminal state, provider retry, and the cleanup sweeper.
package jobs

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rosroyros/citations-sub002/services/validator/datatypes"
)

// RetentionWindow is how long a job record stays pollable after creation.
// The sweeper evicts anything older regardless of status.
const RetentionWindow = 30 * time.Minute

// ErrJobNotFound is returned for unknown or already-swept job ids. The API
// layer surfaces it as a 404.
var ErrJobNotFound = errors.New("job not found")

// Store is a concurrency-safe table of job records shared between the
// HTTP-facing readers and the background runner/sweeper writers.
//
// All mutation happens under a single mutex; readers get a copy of the
// record, so a poller can never observe a half-written job (a Completed
// status is only ever stored together with its result).
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*datatypes.Job
}

// NewStore creates an empty job store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]*datatypes.Job)}
}

// Create inserts a fresh Pending job and returns its id.
func (s *Store) Create() string {
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[id] = &datatypes.Job{
		ID:        id,
		Status:    datatypes.JobPending,
		CreatedAt: time.Now(),
	}
	return id
}

// Get returns a copy of the job record, or ErrJobNotFound when the id is
// unknown or the record has been swept.
func (s *Store) Get(id string) (datatypes.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return datatypes.Job{}, ErrJobNotFound
	}
	return *job, nil
}

// Update overwrites the job's mutable fields in one atomic step.
//
// A missing id is a benign race with the sweeper, not an error: the runner
// may finish after its job was evicted, and nothing is listening anymore,
// so the write is silently dropped.
func (s *Store) Update(id string, status datatypes.JobStatus, result *datatypes.JobResult, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return
	}
	job.Status = status
	job.Result = result
	job.Error = errMsg
}

// DeleteOlderThan evicts every job created more than maxAge ago and
// returns the number removed, for observability.
func (s *Store) DeleteOlderThan(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, job := range s.jobs {
		if job.CreatedAt.Before(cutoff) {
			delete(s.jobs, id)
			deleted++
		}
	}
	return deleted
}

// Len reports the current number of tracked jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
