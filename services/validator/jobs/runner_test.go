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
	"strings"
	"testing"

	"github.com/rosroyros/citations-sub002/services/llm"
	"github.com/rosroyros/citations-sub002/services/validator/credits"
	"github.com/rosroyros/citations-sub002/services/validator/datatypes"
	"github.com/rosroyros/citations-sub002/services/validator/quota"
)

// mockValidationClient scripts provider responses per call.
type mockValidationClient struct {
	calls     int
	responses []mockResponse
	lastBatch []string
}

type mockResponse struct {
	outcomes []datatypes.CitationOutcome
	err      error
}

func (m *mockValidationClient) ValidateBatch(ctx context.Context, citations []string, style string) ([]datatypes.CitationOutcome, error) {
	m.lastBatch = citations
	idx := m.calls
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	m.calls++
	r := m.responses[idx]
	return r.outcomes, r.err
}

// mockLedger is an in-memory CreditLedger.
type mockLedger struct {
	balance    int
	known      bool
	deductions []int
	deductErr  error
}

func (m *mockLedger) Balance(ctx context.Context, userToken string) (int, error) {
	if !m.known {
		return 0, credits.ErrUnknownUser
	}
	return m.balance, nil
}

func (m *mockLedger) Deduct(ctx context.Context, userToken string, amount int) error {
	if m.deductErr != nil {
		return m.deductErr
	}
	m.deductions = append(m.deductions, amount)
	return nil
}

func okOutcomes(citations ...string) []datatypes.CitationOutcome {
	out := make([]datatypes.CitationOutcome, 0, len(citations))
	for _, c := range citations {
		out = append(out, datatypes.CitationOutcome{Citation: c, Valid: true, Issues: []string{}})
	}
	return out
}

func newTestRunner(client LLMValidationClient, ledger CreditLedger) (*Runner, *Store) {
	store := NewStore()
	r := NewRunner(store, client, ledger)
	r.retry = fastRetryConfig()
	return r, store
}

func TestRunner_PaidSuccessDeductsOnce(t *testing.T) {
	client := &mockValidationClient{responses: []mockResponse{
		{outcomes: okOutcomes("a", "b", "c")},
	}}
	ledger := &mockLedger{balance: 50, known: true}
	r, store := newTestRunner(client, ledger)

	id := store.Create()
	r.Run(context.Background(), id, []string{"a", "b", "c"}, "apa7", TierContext{
		Tier: quota.TierPaid, UserToken: "tok",
	})

	job, err := store.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.Status != datatypes.JobCompleted {
		t.Fatalf("status = %q, error = %q, want completed", job.Status, job.Error)
	}
	if len(ledger.deductions) != 1 || ledger.deductions[0] != 3 {
		t.Errorf("deductions = %v, want a single deduction of 3", ledger.deductions)
	}
	if job.Result == nil || len(job.Result.Results) != 3 || job.Result.Partial {
		t.Errorf("unexpected result: %+v", job.Result)
	}
}

func TestRunner_PaidZeroCreditsFails(t *testing.T) {
	client := &mockValidationClient{responses: []mockResponse{{outcomes: okOutcomes("a")}}}
	ledger := &mockLedger{balance: 0, known: true}
	r, store := newTestRunner(client, ledger)

	id := store.Create()
	r.Run(context.Background(), id, []string{"a"}, "apa7", TierContext{
		Tier: quota.TierPaid, UserToken: "tok",
	})

	job, _ := store.Get(id)
	if job.Status != datatypes.JobFailed {
		t.Fatalf("status = %q, want failed", job.Status)
	}
	if !strings.Contains(job.Error, "0 Citation Credits") {
		t.Errorf("error = %q, want it to mention 0 Citation Credits", job.Error)
	}
	if client.calls != 0 {
		t.Errorf("provider called %d times, want 0", client.calls)
	}
	if len(ledger.deductions) != 0 {
		t.Errorf("deductions = %v, want none", ledger.deductions)
	}
}

func TestRunner_UnknownPaidUserTreatedAsZeroBalance(t *testing.T) {
	client := &mockValidationClient{responses: []mockResponse{{outcomes: okOutcomes("a")}}}
	ledger := &mockLedger{known: false}
	r, store := newTestRunner(client, ledger)

	id := store.Create()
	r.Run(context.Background(), id, []string{"a"}, "apa7", TierContext{
		Tier: quota.TierPaid, UserToken: "tok",
	})

	job, _ := store.Get(id)
	if job.Status != datatypes.JobFailed {
		t.Fatalf("status = %q, want failed", job.Status)
	}
}

func TestRunner_FreePartialClampsSubmission(t *testing.T) {
	client := &mockValidationClient{responses: []mockResponse{
		{outcomes: okOutcomes("c1", "c2")},
	}}
	r, store := newTestRunner(client, nil)

	id := store.Create()
	citations := []string{"c1", "c2", "c3", "c4", "c5"}
	r.Run(context.Background(), id, citations, "apa7", TierContext{
		Tier: quota.TierFree, PriorUsed: 8,
	})

	job, _ := store.Get(id)
	if job.Status != datatypes.JobCompleted {
		t.Fatalf("status = %q, error = %q, want completed", job.Status, job.Error)
	}
	if len(client.lastBatch) != 2 || client.lastBatch[0] != "c1" || client.lastBatch[1] != "c2" {
		t.Errorf("submitted batch = %v, want first two citations", client.lastBatch)
	}
	res := job.Result
	if res == nil {
		t.Fatal("completed job has no result")
	}
	if !res.Partial || res.CitationsChecked != 2 || res.CitationsRemaining != 3 || res.FreeUsedTotal != 10 {
		t.Errorf("result = %+v, want partial 2 checked, 3 remaining, usage 10", res)
	}
}

func TestRunner_FreeAtCapCompletesEmpty(t *testing.T) {
	client := &mockValidationClient{responses: []mockResponse{{outcomes: okOutcomes("x")}}}
	r, store := newTestRunner(client, nil)

	id := store.Create()
	r.Run(context.Background(), id, []string{"a", "b"}, "apa7", TierContext{
		Tier: quota.TierFree, PriorUsed: quota.FreeTierLimit,
	})

	job, _ := store.Get(id)
	if job.Status != datatypes.JobCompleted {
		t.Fatalf("status = %q, want completed", job.Status)
	}
	if client.calls != 0 {
		t.Errorf("provider called %d times, want 0", client.calls)
	}
	res := job.Result
	if res == nil || len(res.Results) != 0 || !res.Partial || res.CitationsRemaining != 2 {
		t.Errorf("result = %+v, want empty partial result locking 2", res)
	}
}

func TestRunner_TransientProviderErrorRetriesThenSucceeds(t *testing.T) {
	client := &mockValidationClient{responses: []mockResponse{
		{err: llm.Transient("test", errors.New("overloaded"))},
		{outcomes: okOutcomes("a")},
	}}
	r, store := newTestRunner(client, nil)

	id := store.Create()
	r.Run(context.Background(), id, []string{"a"}, "apa7", TierContext{Tier: quota.TierFree})

	job, _ := store.Get(id)
	if job.Status != datatypes.JobCompleted {
		t.Fatalf("status = %q, error = %q, want completed", job.Status, job.Error)
	}
	if client.calls != 2 {
		t.Errorf("provider calls = %d, want 2", client.calls)
	}
}

func TestRunner_FatalProviderErrorFailsWithoutRetry(t *testing.T) {
	client := &mockValidationClient{responses: []mockResponse{
		{err: llm.Fatal("test", errors.New("bad request"))},
	}}
	r, store := newTestRunner(client, nil)

	id := store.Create()
	r.Run(context.Background(), id, []string{"a"}, "apa7", TierContext{Tier: quota.TierFree})

	job, _ := store.Get(id)
	if job.Status != datatypes.JobFailed {
		t.Fatalf("status = %q, want failed", job.Status)
	}
	if client.calls != 1 {
		t.Errorf("provider calls = %d, want 1", client.calls)
	}
	if job.Error == "" {
		t.Error("failed job carries no error message")
	}
}

// panicValidationClient always panics, exercising the recovery path.
type panicValidationClient struct{}

func (panicValidationClient) ValidateBatch(ctx context.Context, citations []string, style string) ([]datatypes.CitationOutcome, error) {
	panic("unexpected provider state")
}

func TestRunner_PanicRecordsFailure(t *testing.T) {
	r, store := newTestRunner(panicValidationClient{}, nil)

	id := store.Create()
	r.Run(context.Background(), id, []string{"a"}, "apa7", TierContext{Tier: quota.TierFree})

	job, _ := store.Get(id)
	if job.Status != datatypes.JobFailed {
		t.Fatalf("status = %q, want failed after panic", job.Status)
	}
	if job.Error == "" {
		t.Error("failed job carries no error message")
	}
}

func TestSplitCitations(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "blank line separated",
			input: "Smith, J. (2020). A.\n\nDoe, A. (2021). B.",
			want:  []string{"Smith, J. (2020). A.", "Doe, A. (2021). B."},
		},
		{
			name:  "windows line endings",
			input: "First.\r\n\r\nSecond.",
			want:  []string{"First.", "Second."},
		},
		{
			name:  "single citation without separators",
			input: "Only one citation here.",
			want:  []string{"Only one citation here."},
		},
		{
			name:  "surrounding whitespace trimmed",
			input: "  padded  \n\n\n\n  also padded  ",
			want:  []string{"padded", "also padded"},
		},
		{
			name:  "empty input",
			input: "   \n\n  ",
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitCitations(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("SplitCitations = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("chunk %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
