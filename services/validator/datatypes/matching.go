// Copyright (C) 2026 rosroyros
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// MatchStatus classifies how an inline citation relates to the reference
// list.
type MatchStatus string

const (
	MatchMatched   MatchStatus = "matched"
	MatchAmbiguous MatchStatus = "ambiguous"
	MatchNotFound  MatchStatus = "not_found"
)

// InlineCitation is one in-text citation occurrence supplied by the caller.
// The ID is caller-assigned and opaque; it is echoed back on the result.
type InlineCitation struct {
	ID   string `json:"id"`
	Text string `json:"citation_text"`
}

// InlineMatchResult is the matching verdict for one inline citation.
//
// Exactly one of the following holds: MatchedRefIndex is non-nil (a single
// unambiguous match), MatchedRefIndices is non-empty (ambiguous candidates),
// or Status is MatchNotFound. A result is never both matched and ambiguous.
type InlineMatchResult struct {
	ID                string      `json:"id"`
	CitationText      string      `json:"citation_text"`
	Status            MatchStatus `json:"match_status"`
	MatchedRefIndex   *int        `json:"matched_ref_index"`
	MatchedRefIndices []int       `json:"matched_ref_indices,omitempty"`
	FormatErrors      []string    `json:"format_errors"`
	MismatchReason    string      `json:"mismatch_reason,omitempty"`
	SuggestedFix      string      `json:"suggested_correction,omitempty"`
}

// InlineMatchReport aggregates a whole document's inline matching run.
//
// ResultsByRef holds a bucket for every reference-list index, including
// indices no citation points at. Ambiguous results appear in every bucket
// they name. TotalValidated counts every inline citation examined,
// placeholder results included.
type InlineMatchReport struct {
	ResultsByRef   map[int][]InlineMatchResult `json:"results_by_ref"`
	Orphans        []InlineMatchResult         `json:"orphans"`
	TotalFound     int                         `json:"total_found"`
	TotalValidated int                         `json:"total_validated"`
}
