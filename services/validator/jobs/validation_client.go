// Copyright (C) 2026 rosroyros
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rosroyros/citations-sub002/services/llm"
	"github.com/rosroyros/citations-sub002/services/validator/datatypes"
	"github.com/rosroyros/citations-sub002/services/validator/decoder"
	"github.com/rosroyros/citations-sub002/services/validator/prompts"
)

// ProviderCallTimeout caps a single LLM call. Expiry surfaces as a
// transient error, eligible for retry.
const ProviderCallTimeout = 85 * time.Second

// LLMValidationClient validates a batch of citation strings, returning one
// outcome per citation in submission order. Failures carry the shared
// llm.ProviderError classification.
type LLMValidationClient interface {
	ValidateBatch(ctx context.Context, citations []string, style string) ([]datatypes.CitationOutcome, error)
}

// providerValidationClient adapts a generic llm.LLMClient into the
// validation capability: render prompt, call, decode.
type providerValidationClient struct {
	client  llm.LLMClient
	catalog *prompts.Catalog
}

// NewProviderValidationClient wires an LLM backend and the prompt catalog
// into an LLMValidationClient.
func NewProviderValidationClient(client llm.LLMClient, catalog *prompts.Catalog) LLMValidationClient {
	return &providerValidationClient{client: client, catalog: catalog}
}

// wireOutcome is the loosely-typed shape the model is asked to emit.
// Pointer fields let missing keys be distinguished from zero values.
type wireOutcome struct {
	Citation   *string  `json:"citation"`
	Valid      *bool    `json:"valid"`
	Issues     []string `json:"issues"`
	Suggestion string   `json:"suggestion"`
}

func (c *providerValidationClient) ValidateBatch(ctx context.Context, citations []string, style string) ([]datatypes.CitationOutcome, error) {
	prompt, err := c.catalog.RenderValidation(style, citations)
	if err != nil {
		return nil, llm.Fatal("validate", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, ProviderCallTimeout)
	defer cancel()

	raw, err := c.client.Generate(callCtx, prompt, llm.GenerationParams{})
	if err != nil {
		return nil, err
	}

	payload, err := decoder.ExtractJSON(raw)
	if err != nil {
		return nil, llm.Fatal("validate", fmt.Errorf("unparseable validation response: %w", err))
	}

	var wire []wireOutcome
	if err := json.Unmarshal([]byte(payload), &wire); err != nil {
		return nil, llm.Fatal("validate", fmt.Errorf("validation response is not an array: %w", err))
	}

	outcomes := make([]datatypes.CitationOutcome, 0, len(wire))
	for i, w := range wire {
		out := datatypes.CitationOutcome{
			Issues:     w.Issues,
			Suggestion: w.Suggestion,
		}
		if w.Citation != nil {
			out.Citation = *w.Citation
		} else if i < len(citations) {
			out.Citation = citations[i]
		}
		if w.Valid != nil {
			out.Valid = *w.Valid
		}
		if out.Issues == nil {
			out.Issues = []string{}
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}
