// Copyright (C) 2026 rosroyros
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package prompts loads the LLM prompt templates from the embedded YAML
// catalog. Templates are parsed once at startup; rendering is pure string
// work and safe for concurrent use.
package prompts

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/rosroyros/citations-sub002/services/validator/datatypes"
	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var templatesYAML []byte

// catalogFile mirrors the structure of templates.yaml.
type catalogFile struct {
	Validation  string `yaml:"validation"`
	InlineMatch string `yaml:"inline_match"`
}

// Catalog holds the parsed prompt templates.
type Catalog struct {
	validation  *template.Template
	inlineMatch *template.Template
}

var funcs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}

// Load parses the embedded template catalog. Fails only on a malformed
// catalog, which is a build defect, so callers treat an error as fatal.
func Load() (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(templatesYAML, &file); err != nil {
		return nil, fmt.Errorf("failed to parse prompt catalog: %w", err)
	}
	if strings.TrimSpace(file.Validation) == "" || strings.TrimSpace(file.InlineMatch) == "" {
		return nil, fmt.Errorf("prompt catalog is missing required templates")
	}

	validation, err := template.New("validation").Funcs(funcs).Parse(file.Validation)
	if err != nil {
		return nil, fmt.Errorf("failed to parse validation template: %w", err)
	}
	inlineMatch, err := template.New("inline_match").Funcs(funcs).Parse(file.InlineMatch)
	if err != nil {
		return nil, fmt.Errorf("failed to parse inline_match template: %w", err)
	}

	return &Catalog{validation: validation, inlineMatch: inlineMatch}, nil
}

// RenderValidation builds the prompt for one batch of citation checks.
func (c *Catalog) RenderValidation(style string, citations []string) (string, error) {
	var sb strings.Builder
	err := c.validation.Execute(&sb, struct {
		Style     string
		Citations []string
	}{Style: style, Citations: citations})
	if err != nil {
		return "", fmt.Errorf("failed to render validation prompt: %w", err)
	}
	return sb.String(), nil
}

// RenderInlineMatch builds the prompt for one inline-matching batch.
func (c *Catalog) RenderInlineMatch(style string, references []string, citations []datatypes.InlineCitation) (string, error) {
	var sb strings.Builder
	err := c.inlineMatch.Execute(&sb, struct {
		Style      string
		References []string
		Citations  []datatypes.InlineCitation
	}{Style: style, References: references, Citations: citations})
	if err != nil {
		return "", fmt.Errorf("failed to render inline_match prompt: %w", err)
	}
	return sb.String(), nil
}
