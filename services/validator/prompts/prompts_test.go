// Copyright (C) 2026 rosroyros
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package prompts

import (
	"strings"
	"testing"

	"github.com/rosroyros/citations-sub002/services/validator/datatypes"
)

func TestLoad(t *testing.T) {
	catalog, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if catalog == nil {
		t.Fatal("Load returned nil catalog")
	}
}

func TestRenderValidation(t *testing.T) {
	catalog, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	citations := []string{
		"Smith, J. (2020). First article. Journal of Tests, 1(2), 3-4.",
		"Doe, A. (2021). Second article. Test Quarterly, 5(6), 7-8.",
	}
	prompt, err := catalog.RenderValidation("apa7", citations)
	if err != nil {
		t.Fatalf("RenderValidation: %v", err)
	}

	if !strings.Contains(prompt, "apa7") {
		t.Error("prompt does not mention the citation style")
	}
	for _, c := range citations {
		if !strings.Contains(prompt, c) {
			t.Errorf("prompt missing citation %q", c)
		}
	}
	if !strings.Contains(prompt, "JSON") {
		t.Error("prompt does not ask for JSON output")
	}
}

func TestRenderInlineMatch(t *testing.T) {
	catalog, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	inline := []datatypes.InlineCitation{
		{ID: "c0", Text: "(Smith, 2020)"},
		{ID: "c1", Text: "(Doe, 2021, p. 7)"},
	}
	references := []string{
		"Smith, J. (2020). First article.",
		"Doe, A. (2021). Second article.",
	}

	prompt, err := catalog.RenderInlineMatch("mla9", references, inline)
	if err != nil {
		t.Fatalf("RenderInlineMatch: %v", err)
	}

	for _, c := range inline {
		if !strings.Contains(prompt, c.ID) || !strings.Contains(prompt, c.Text) {
			t.Errorf("prompt missing inline citation %q", c.ID)
		}
	}
	for _, r := range references {
		if !strings.Contains(prompt, r) {
			t.Errorf("prompt missing reference %q", r)
		}
	}
}
