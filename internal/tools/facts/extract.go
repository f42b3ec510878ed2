// Package facts implements a heuristic structured-fact extractor exposed
// through the tool dispatcher, grounded on the teacher's facts_extract
// tool.
package facts

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/haasonsaas/nexus-core/internal/dispatch"
)

var extractSchema = mustCompileSchema("facts_extract", map[string]any{
	"type": "object",
	"properties": map[string]any{
		"text":      map[string]any{"type": "string", "description": "Input text to extract facts from"},
		"max_facts": map[string]any{"type": "integer", "description": "Maximum number of facts to return"},
	},
	"required": []string{"text"},
})

func mustCompileSchema(name string, raw map[string]any) *jsonschema.Schema {
	schema, err := dispatch.CompileSchema(name, raw)
	if err != nil {
		panic(fmt.Sprintf("facts: compile %s schema: %v", name, err))
	}
	return schema
}

// Fact represents a structured fact extracted from text.
type Fact struct {
	Type       string  `json:"type"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source,omitempty"`
}

// ExtractParams is facts_extract's argument shape.
type ExtractParams struct {
	Text        string `json:"text"`
	MaxFacts    int    `json:"max_facts,omitempty"`
	HouseholdID string `json:"-"`
	UserID      string `json:"-"`
}

// ExtractTool extracts simple structured facts from text using heuristics.
type ExtractTool struct {
	maxFacts int
}

// NewExtractTool creates a new fact extraction tool.
func NewExtractTool(maxFacts int) *ExtractTool {
	if maxFacts <= 0 {
		maxFacts = 10
	}
	return &ExtractTool{maxFacts: maxFacts}
}

func (t *ExtractTool) Name() string { return "facts_extract" }

func (t *ExtractTool) Description() string {
	return "Extracts structured facts (emails, URLs, phone numbers) from text."
}

func (t *ExtractTool) Schema() *jsonschema.Schema { return extractSchema }

func (t *ExtractTool) NewParams() any { return &ExtractParams{} }

func (t *ExtractTool) Execute(_ context.Context, _ string, params any) (map[string]any, error) {
	p, ok := params.(*ExtractParams)
	if !ok {
		return nil, fmt.Errorf("facts_extract: unexpected params type %T", params)
	}

	text := strings.TrimSpace(p.Text)
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}

	limit := t.maxFacts
	if p.MaxFacts > 0 {
		limit = p.MaxFacts
	}

	facts := extractFacts(text, limit)
	out := make([]map[string]any, 0, len(facts))
	for _, f := range facts {
		out = append(out, map[string]any{
			"type":       f.Type,
			"value":      f.Value,
			"confidence": f.Confidence,
			"source":     f.Source,
		})
	}
	return map[string]any{"facts": out}, nil
}

var (
	emailRegex = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	urlRegex   = regexp.MustCompile(`https?://[^\s]+`)
	phoneRegex = regexp.MustCompile(`\+?[0-9][0-9()\-\s.]{6,}[0-9]`)
)

func extractFacts(text string, limit int) []Fact {
	seen := map[string]struct{}{}
	out := make([]Fact, 0, 8)

	add := func(f Fact) {
		if limit > 0 && len(out) >= limit {
			return
		}
		key := f.Type + ":" + f.Value
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, f)
	}

	for _, match := range emailRegex.FindAllString(text, -1) {
		add(Fact{Type: "email", Value: match, Confidence: 0.9, Source: "regex"})
	}
	for _, match := range urlRegex.FindAllString(text, -1) {
		add(Fact{Type: "url", Value: match, Confidence: 0.8, Source: "regex"})
	}
	for _, match := range phoneRegex.FindAllString(text, -1) {
		clean := strings.TrimSpace(match)
		add(Fact{Type: "phone", Value: clean, Confidence: 0.6, Source: "regex"})
	}

	return out
}
