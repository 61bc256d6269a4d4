// Copyright (C) 2026 rosroyros
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package quota decides how many citations a requester may process on a
// single call. Decisions are pure functions of the supplied counters: no
// I/O, no randomness, identical inputs always yield identical output.
package quota

import "errors"

// Tier identifies the requester's plan. Anonymous users share the free
// tier's semantics.
type Tier string

const (
	TierFree Tier = "free"
	TierPaid Tier = "paid"
)

// FreeTierLimit is the lifetime free-tier citation cap. Fixed product
// constant, not runtime-configurable.
const FreeTierLimit = 10

// ErrInsufficientCredits is returned for paid requesters with a zero
// balance. It is a hard stop: the job fails, no partial result is built.
var ErrInsufficientCredits = errors.New("0 Citation Credits remaining")

// Decision is the ephemeral outcome of a single quota evaluation.
//
// ToProcess + Locked always equals the requested count. UsageAfter is the
// free-tier running total after this request is counted; clients echo it
// back on their next request.
type Decision struct {
	ToProcess  int
	Locked     int
	Partial    bool
	UsageAfter int
}

// Decide computes the quota decision for one request.
//
// For the paid tier priorUsed is ignored and creditBalance governs: a zero
// balance with a non-zero request fails with ErrInsufficientCredits, and
// otherwise everything requested is processed (credits are deducted
// downstream, one per citation). There is no partial-result concept for
// paid requesters.
//
// For the free tier creditBalance is ignored and the request is clamped to
// whatever remains under tierLimit. A requester already at or over the cap
// gets ToProcess == 0 with Partial set; that is a success path, not an
// error.
func Decide(tier Tier, requested, priorUsed, creditBalance, tierLimit int) (Decision, error) {
	if tier == TierPaid {
		if creditBalance == 0 && requested > 0 {
			return Decision{}, ErrInsufficientCredits
		}
		return Decision{
			ToProcess: requested,
			Locked:    0,
			Partial:   false,
		}, nil
	}

	remaining := tierLimit - priorUsed
	if remaining < 0 {
		remaining = 0
	}
	toProcess := requested
	if toProcess > remaining {
		toProcess = remaining
	}
	locked := requested - toProcess

	return Decision{
		ToProcess:  toProcess,
		Locked:     locked,
		Partial:    locked > 0,
		UsageAfter: priorUsed + toProcess,
	}, nil
}
