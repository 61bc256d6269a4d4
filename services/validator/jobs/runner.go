// Copyright (C) 2026 rosroyros
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rosroyros/citations-sub002/services/validator/credits"
	"github.com/rosroyros/citations-sub002/services/validator/datatypes"
	"github.com/rosroyros/citations-sub002/services/validator/observability"
	"github.com/rosroyros/citations-sub002/services/validator/quota"
)

// TierContext carries the caller's tier and accounting state into a run.
type TierContext struct {
	Tier      quota.Tier
	PriorUsed int
	UserToken string
}

// CreditLedger is the balance backend the runner consults for paid callers.
type CreditLedger interface {
	Balance(ctx context.Context, userToken string) (int, error)
	Deduct(ctx context.Context, userToken string, amount int) error
}

// Runner drives a validation job from pending through a terminal state.
//
// # Description
//
// Run executes the full job lifecycle for one job: quota decision,
// provider calls with retry, credit deduction, and the terminal store
// update. Every exit path, including panics, records a terminal status
// exactly once.
type Runner struct {
	store  *Store
	client LLMValidationClient
	ledger CreditLedger
	retry  RetryConfig
}

// NewRunner creates a Runner. The ledger may be nil when no paid tier
// is configured; paid requests then see a zero balance.
func NewRunner(store *Store, client LLMValidationClient, ledger CreditLedger) *Runner {
	return &Runner{
		store:  store,
		client: client,
		ledger: ledger,
		retry:  DefaultRetryConfig(),
	}
}

// SplitCitations splits raw citation text into individual citations.
// Citations are separated by blank lines. Surrounding whitespace is
// trimmed and empty chunks are dropped. Non-empty text with no blank
// line yields a single citation.
func SplitCitations(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	chunks := strings.Split(normalized, "\n\n")
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		c = strings.TrimSpace(c)
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// EstimateCitationCount counts the citations in raw text. Used for
// usage bookkeeping when the provider response carries no per-citation
// outcomes.
func EstimateCitationCount(text string) int {
	return len(SplitCitations(text))
}

// Run executes the job to completion. It is intended to be launched in
// its own goroutine; the passed context bounds the whole run.
func (r *Runner) Run(ctx context.Context, jobID string, citations []string, style string, tc TierContext) {
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("runner: job panicked",
				"job_id", jobID,
				"panic", fmt.Sprintf("%v", rec),
			)
			r.finish(jobID, datatypes.JobFailed, nil, "internal error during validation", start)
		}
	}()

	r.store.Update(jobID, datatypes.JobProcessing, nil, "")

	balance := 0
	if tc.Tier == quota.TierPaid && r.ledger != nil {
		b, err := r.ledger.Balance(ctx, tc.UserToken)
		switch {
		case err == nil:
			balance = b
		case errors.Is(err, credits.ErrUnknownUser):
			balance = 0
		default:
			slog.Error("runner: balance lookup failed", "job_id", jobID, "error", err)
			r.finish(jobID, datatypes.JobFailed, nil, "credit balance unavailable", start)
			return
		}
	}

	decision, err := quota.Decide(tc.Tier, len(citations), tc.PriorUsed, balance, quota.FreeTierLimit)
	if err != nil {
		r.finish(jobID, datatypes.JobFailed, nil, err.Error(), start)
		return
	}

	if decision.ToProcess == 0 {
		result := &datatypes.JobResult{
			Results:            []datatypes.CitationOutcome{},
			Partial:            decision.Partial,
			CitationsChecked:   0,
			CitationsRemaining: decision.Locked,
			FreeUsedTotal:      decision.UsageAfter,
		}
		r.finish(jobID, datatypes.JobCompleted, result, "", start)
		return
	}

	submit := citations[:decision.ToProcess]

	var outcomes []datatypes.CitationOutcome
	res, callErr := Retry(ctx, r.retry, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			observability.RecordProviderRetry()
		}
		batch, err := r.client.ValidateBatch(ctx, submit, style)
		if err != nil {
			return err
		}
		outcomes = batch
		return nil
	})
	if callErr != nil {
		slog.Error("runner: provider call failed",
			"job_id", jobID,
			"attempts", res.Attempts,
			"error", callErr,
		)
		r.finish(jobID, datatypes.JobFailed, nil, "citation validation failed: "+callErr.Error(), start)
		return
	}

	checked := len(outcomes)
	if checked == 0 {
		checked = EstimateCitationCount(strings.Join(submit, "\n\n"))
	}

	if tc.Tier == quota.TierPaid && r.ledger != nil {
		if err := r.ledger.Deduct(ctx, tc.UserToken, decision.ToProcess); err != nil {
			// The job still completes; the discrepancy is surfaced in logs.
			slog.Error("runner: credit deduction failed",
				"job_id", jobID,
				"amount", decision.ToProcess,
				"error", err,
			)
		}
	}

	result := &datatypes.JobResult{
		Results:            outcomes,
		Partial:            decision.Partial,
		CitationsChecked:   checked,
		CitationsRemaining: decision.Locked,
		FreeUsedTotal:      decision.UsageAfter,
	}
	r.finish(jobID, datatypes.JobCompleted, result, "", start)
}

// finish records the terminal transition and emits metrics.
func (r *Runner) finish(jobID string, status datatypes.JobStatus, result *datatypes.JobResult, errMsg string, start time.Time) {
	r.store.Update(jobID, status, result, errMsg)
	observability.RecordJobFinished(string(status), time.Since(start).Seconds())
	observability.SetActiveJobs(r.store.Len())
	slog.Info("runner: job finished",
		"job_id", jobID,
		"status", string(status),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
