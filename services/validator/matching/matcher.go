// Copyright (C) 2026 rosroyros
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package matching pairs in-text citations with reference list entries.
package matching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rosroyros/citations-sub002/services/validator/datatypes"
	"github.com/rosroyros/citations-sub002/services/validator/decoder"
	"github.com/rosroyros/citations-sub002/services/validator/observability"
	"github.com/rosroyros/citations-sub002/services/validator/prompts"
)

const (
	// MaxInlineCitations caps a single matching request.
	MaxInlineCitations = 100

	// BatchSize is how many inline citations go to the provider per call.
	BatchSize = 10
)

// ErrTooManyCitations is returned when a request exceeds MaxInlineCitations.
var ErrTooManyCitations = fmt.Errorf("too many inline citations. Maximum allowed is %d", MaxInlineCitations)

// CallFunc sends one rendered prompt to the provider and returns raw text.
type CallFunc func(ctx context.Context, prompt string) (string, error)

// Matcher matches inline citations against a reference list in
// sequential batches, degrading per batch when the provider misbehaves.
type Matcher struct {
	catalog *prompts.Catalog
}

// NewMatcher creates a Matcher using the given prompt catalog.
func NewMatcher(catalog *prompts.Catalog) *Matcher {
	return &Matcher{catalog: catalog}
}

// wireMatch is the provider's per-citation response shape.
type wireMatch struct {
	ID                string  `json:"id"`
	Status            string  `json:"status"`
	MatchedRefIndex   *int    `json:"matched_ref_index"`
	MatchedRefIndices []int   `json:"matched_ref_indices"`
	FormatErrors      []string `json:"format_errors"`
	MismatchReason    string  `json:"mismatch_reason"`
	SuggestedFix      string  `json:"suggested_fix"`
}

// Match validates inline citations against references.
//
// Citations are processed in sequential batches of BatchSize. A batch
// whose provider call or response parsing fails degrades to not_found
// placeholders for that batch only; later batches still run. The report
// groups results by reference index, with ambiguous matches fanned out
// to every candidate bucket.
func (m *Matcher) Match(ctx context.Context, inline []datatypes.InlineCitation, references []string, style string, call CallFunc) (datatypes.InlineMatchReport, error) {
	report := datatypes.InlineMatchReport{
		ResultsByRef: make(map[int][]datatypes.InlineMatchResult),
		Orphans:      []datatypes.InlineMatchResult{},
	}

	if len(inline) > MaxInlineCitations {
		return report, ErrTooManyCitations
	}
	if len(inline) == 0 {
		return report, nil
	}

	for i := range references {
		report.ResultsByRef[i] = []datatypes.InlineMatchResult{}
	}

	var all []datatypes.InlineMatchResult
	for start := 0; start < len(inline); start += BatchSize {
		end := start + BatchSize
		if end > len(inline) {
			end = len(inline)
		}
		batch := inline[start:end]

		results, err := m.matchBatch(ctx, batch, references, style, call)
		if err != nil {
			slog.Warn("matching: batch degraded",
				"batch_start", start,
				"batch_size", len(batch),
				"error", err,
			)
			observability.RecordInlineBatch("degraded")
			results = degradedBatch(batch, err)
		} else {
			observability.RecordInlineBatch("ok")
		}
		all = append(all, results...)
	}

	organize(&report, all)
	report.TotalValidated = len(inline)
	return report, nil
}

func (m *Matcher) matchBatch(ctx context.Context, batch []datatypes.InlineCitation, references []string, style string, call CallFunc) ([]datatypes.InlineMatchResult, error) {
	prompt, err := m.catalog.RenderInlineMatch(style, references, batch)
	if err != nil {
		return nil, fmt.Errorf("failed to render matching prompt: %w", err)
	}

	raw, err := call(ctx, prompt)
	if err != nil {
		return nil, err
	}

	extracted, err := decoder.ExtractJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("unparseable matching response: %w", err)
	}

	var wire []wireMatch
	if err := json.Unmarshal([]byte(extracted), &wire); err != nil {
		return nil, fmt.Errorf("matching response is not an array: %w", err)
	}

	byID := make(map[string]datatypes.InlineCitation, len(batch))
	for _, c := range batch {
		byID[c.ID] = c
	}

	results := make([]datatypes.InlineMatchResult, 0, len(batch))
	seen := make(map[string]bool, len(batch))
	for _, w := range wire {
		cit, ok := byID[w.ID]
		if !ok || w.ID == "" {
			return nil, errors.New("matching response references an unknown citation id")
		}
		if seen[w.ID] {
			continue
		}
		seen[w.ID] = true
		results = append(results, normalize(w, cit))
	}

	// Citations the provider skipped come back as not found.
	for _, c := range batch {
		if !seen[c.ID] {
			results = append(results, notFound(c, "no result returned for citation"))
		}
	}
	return results, nil
}

// normalize builds a result and enforces status field exclusivity:
// matched carries only the single index, ambiguous only the index list,
// not_found neither.
func normalize(w wireMatch, cit datatypes.InlineCitation) datatypes.InlineMatchResult {
	res := datatypes.InlineMatchResult{
		ID:             cit.ID,
		CitationText:   cit.Text,
		FormatErrors:   w.FormatErrors,
		MismatchReason: w.MismatchReason,
		SuggestedFix:   w.SuggestedFix,
	}
	if res.FormatErrors == nil {
		res.FormatErrors = []string{}
	}

	switch datatypes.MatchStatus(w.Status) {
	case datatypes.MatchMatched:
		if w.MatchedRefIndex == nil {
			res.Status = datatypes.MatchNotFound
			res.MismatchReason = "matched result missing reference index"
			return res
		}
		res.Status = datatypes.MatchMatched
		res.MatchedRefIndex = w.MatchedRefIndex
	case datatypes.MatchAmbiguous:
		if len(w.MatchedRefIndices) == 0 {
			res.Status = datatypes.MatchNotFound
			res.MismatchReason = "ambiguous result missing candidate indices"
			return res
		}
		res.Status = datatypes.MatchAmbiguous
		res.MatchedRefIndices = w.MatchedRefIndices
	default:
		res.Status = datatypes.MatchNotFound
	}
	return res
}

// degradedBatch produces not_found placeholders for an entire batch.
func degradedBatch(batch []datatypes.InlineCitation, cause error) []datatypes.InlineMatchResult {
	out := make([]datatypes.InlineMatchResult, 0, len(batch))
	for _, c := range batch {
		out = append(out, notFound(c, cause.Error()))
	}
	return out
}

func notFound(c datatypes.InlineCitation, reason string) datatypes.InlineMatchResult {
	return datatypes.InlineMatchResult{
		ID:             c.ID,
		CitationText:   c.Text,
		Status:         datatypes.MatchNotFound,
		FormatErrors:   []string{},
		MismatchReason: reason,
	}
}

// organize groups results into per-reference buckets and orphans.
// Ambiguous results are fanned out to every candidate bucket, with
// duplicate indices in the candidate list collapsed so a result lands
// in each bucket at most once.
func organize(report *datatypes.InlineMatchReport, results []datatypes.InlineMatchResult) {
	for _, res := range results {
		switch res.Status {
		case datatypes.MatchMatched:
			idx := *res.MatchedRefIndex
			report.ResultsByRef[idx] = append(report.ResultsByRef[idx], res)
			report.TotalFound++
		case datatypes.MatchAmbiguous:
			placed := make(map[int]bool, len(res.MatchedRefIndices))
			for _, idx := range res.MatchedRefIndices {
				if placed[idx] {
					continue
				}
				placed[idx] = true
				report.ResultsByRef[idx] = append(report.ResultsByRef[idx], res)
			}
			report.TotalFound++
		default:
			report.Orphans = append(report.Orphans, res)
		}
	}
}
