// Copyright (C) 2026 rosroyros
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package quota

import (
	"errors"
	"testing"
)

func TestDecide_FreeTier(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		priorUsed int
		want      Decision
	}{
		{
			name:      "under the cap processes everything",
			requested: 4,
			priorUsed: 2,
			want:      Decision{ToProcess: 4, Locked: 0, Partial: false, UsageAfter: 6},
		},
		{
			name:      "partial clamp near the cap",
			requested: 5,
			priorUsed: 8,
			want:      Decision{ToProcess: 2, Locked: 3, Partial: true, UsageAfter: 10},
		},
		{
			name:      "exactly at the cap locks everything",
			requested: 3,
			priorUsed: 10,
			want:      Decision{ToProcess: 0, Locked: 3, Partial: true, UsageAfter: 10},
		},
		{
			name:      "over the cap is treated as at the cap",
			requested: 2,
			priorUsed: 14,
			want:      Decision{ToProcess: 0, Locked: 2, Partial: true, UsageAfter: 14},
		},
		{
			name:      "zero requested at zero usage",
			requested: 0,
			priorUsed: 0,
			want:      Decision{ToProcess: 0, Locked: 0, Partial: false, UsageAfter: 0},
		},
		{
			name:      "request filling the cap exactly is not partial",
			requested: 10,
			priorUsed: 0,
			want:      Decision{ToProcess: 10, Locked: 0, Partial: false, UsageAfter: 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decide(TierFree, tt.requested, tt.priorUsed, 0, FreeTierLimit)
			if err != nil {
				t.Fatalf("Decide returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Decide = %+v, want %+v", got, tt.want)
			}
			if got.ToProcess+got.Locked != tt.requested {
				t.Errorf("ToProcess+Locked = %d, want %d", got.ToProcess+got.Locked, tt.requested)
			}
			if got.UsageAfter > FreeTierLimit && got.ToProcess > 0 {
				t.Errorf("UsageAfter %d exceeds cap with work processed", got.UsageAfter)
			}
		})
	}
}

func TestDecide_PaidTier(t *testing.T) {
	t.Run("zero balance with work requested fails", func(t *testing.T) {
		_, err := Decide(TierPaid, 3, 0, 0, FreeTierLimit)
		if !errors.Is(err, ErrInsufficientCredits) {
			t.Fatalf("expected ErrInsufficientCredits, got %v", err)
		}
	})

	t.Run("error message names the credit count", func(t *testing.T) {
		_, err := Decide(TierPaid, 1, 0, 0, FreeTierLimit)
		if err == nil || err.Error() != "0 Citation Credits remaining" {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("zero balance with nothing requested succeeds", func(t *testing.T) {
		got, err := Decide(TierPaid, 0, 0, 0, FreeTierLimit)
		if err != nil {
			t.Fatalf("Decide returned error: %v", err)
		}
		if got.ToProcess != 0 || got.Partial {
			t.Errorf("Decide = %+v, want empty non-partial decision", got)
		}
	})

	t.Run("positive balance processes everything requested", func(t *testing.T) {
		got, err := Decide(TierPaid, 25, 99, 1, FreeTierLimit)
		if err != nil {
			t.Fatalf("Decide returned error: %v", err)
		}
		want := Decision{ToProcess: 25, Locked: 0, Partial: false, UsageAfter: 0}
		if got != want {
			t.Errorf("Decide = %+v, want %+v", got, want)
		}
	})
}

func TestDecide_Purity(t *testing.T) {
	// Identical inputs must always produce identical decisions.
	first, err1 := Decide(TierFree, 7, 6, 0, FreeTierLimit)
	second, err2 := Decide(TierFree, 7, 6, 0, FreeTierLimit)
	if err1 != nil || err2 != nil {
		t.Fatalf("unexpected errors: %v, %v", err1, err2)
	}
	if first != second {
		t.Errorf("repeated calls disagree: %+v vs %+v", first, second)
	}
}
