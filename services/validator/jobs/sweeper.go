// Copyright (C) 2026 rosroyros
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rosroyros/citations-sub002/services/validator/observability"
)

// =============================================================================
// Job Cleanup Sweeper
// =============================================================================

// Sweeper periodically evicts job records older than the retention window.
//
// # Description
//
// Runs a background loop that removes jobs whose creation time has aged
// past RetentionWindow, regardless of status. Swept jobs become invisible
// to polling and late runner updates against them are silent no-ops.
//
// # Thread Safety
//
// Start, Stop, and RunNow are safe to call from multiple goroutines.
//
// # Limitations
//
//   - Eviction is keyed on creation time, not completion time.
//   - A sweep cycle scans the whole table; acceptable for in-memory scale.
type Sweeper struct {
	store    *Store
	interval time.Duration

	mu      sync.Mutex
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewSweeper creates a sweeper over the given store. A non-positive
// interval falls back to one minute.
func NewSweeper(store *Store, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 1 * time.Minute
	}
	return &Sweeper{
		store:    store,
		interval: interval,
	}
}

// Start launches the background sweep loop. Returns an error if the
// sweeper is already running.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("sweeper already running")
	}

	s.done = make(chan struct{})
	s.running = true

	s.wg.Add(1)
	go s.runLoop(ctx)

	slog.Info("sweeper: started", "interval", s.interval.String())
	return nil
}

// Stop halts the background loop and waits for the current cycle to end.
func (s *Sweeper) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("sweeper not running")
	}
	close(s.done)
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	slog.Info("sweeper: stopped")
	return nil
}

// RunNow performs a single sweep cycle immediately and returns the
// number of evicted jobs. Usable whether or not the loop is running.
func (s *Sweeper) RunNow(ctx context.Context) int {
	return s.sweep()
}

func (s *Sweeper) runLoop(ctx context.Context) {
	defer s.wg.Done()

	// Initial sweep so a restart does not wait a full interval.
	s.sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sweeper) sweep() int {
	evicted := s.store.DeleteOlderThan(RetentionWindow)
	if evicted > 0 {
		slog.Info("sweeper: evicted expired jobs",
			"evicted", evicted,
			"remaining", s.store.Len(),
		)
	}
	observability.RecordSwept(evicted)
	observability.SetActiveJobs(s.store.Len())
	return evicted
}
