package advisor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"spendmind/internal/core"
)

type recommendationPayload struct {
	ID       string   `json:"id"`
	Priority Priority `json:"priority"`
	Type     Type     `json:"type"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Action   string   `json:"action"`
	Color    string   `json:"color"`
}

type planPayload struct {
	Recommendations       *[]recommendationPayload `json:"recommendations"`
	TotalPotentialSavings *decimal.Decimal         `json:"totalPotentialSavings"`
}

// ParseStrict decodes raw as exactly one plan object. Unknown fields,
// trailing data, unknown enum values and blank titles or messages are
// rejected with an error wrapping core.ErrMalformedResponse.
func ParseStrict(raw string) (Plan, error) {
	var p planPayload
	if err := decodeStrict(raw, &p); err != nil {
		return Plan{}, err
	}
	if p.Recommendations == nil {
		return Plan{}, malformed("missing recommendations")
	}
	if p.TotalPotentialSavings == nil {
		return Plan{}, malformed("missing totalPotentialSavings")
	}
	if p.TotalPotentialSavings.IsNegative() {
		return Plan{}, malformed("negative totalPotentialSavings")
	}

	plan := Plan{
		Recommendations:       make([]Recommendation, 0, len(*p.Recommendations)),
		TotalPotentialSavings: *p.TotalPotentialSavings,
		Source:                SourceModel,
	}
	for i, r := range *p.Recommendations {
		switch r.Priority {
		case PriorityHigh, PriorityMedium, PriorityLow:
		default:
			return Plan{}, malformed(fmt.Sprintf("recommendation %d: unknown priority %q", i, r.Priority))
		}
		switch r.Type {
		case TypeWarning, TypeSuccess, TypeOptimization:
		default:
			return Plan{}, malformed(fmt.Sprintf("recommendation %d: unknown type %q", i, r.Type))
		}
		if strings.TrimSpace(r.Title) == "" || strings.TrimSpace(r.Message) == "" {
			return Plan{}, malformed(fmt.Sprintf("recommendation %d: blank title or message", i))
		}
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if r.Color == "" {
			r.Color = ColorFor(r.Priority)
		}
		plan.Recommendations = append(plan.Recommendations, Recommendation(r))
	}
	return plan, nil
}

// ExtractJSON finds the span from the first '{' to the last '}' in raw.
// It is a recovery step for answers wrapped in prose or code fences and does
// not check that the span is valid JSON.
func ExtractJSON(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return "", false
	}
	return raw[start : end+1], true
}

// parseLenient tries ParseStrict on raw, then on the extracted object.
func parseLenient(raw string) (Plan, error) {
	plan, err := ParseStrict(raw)
	if err == nil {
		return plan, nil
	}
	obj, ok := ExtractJSON(raw)
	if !ok || obj == strings.TrimSpace(raw) {
		return Plan{}, err
	}
	return ParseStrict(obj)
}

func decodeStrict(raw string, v any) error {
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(raw)))
	dec.DisallowUnknownFields()
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", core.ErrMalformedResponse, err)
	}
	if err := dec.Decode(&json.RawMessage{}); !errors.Is(err, io.EOF) {
		return malformed("trailing data after object")
	}
	return nil
}

func malformed(reason string) error {
	return fmt.Errorf("%w: %s", core.ErrMalformedResponse, reason)
}

// compactJSON renders v on one line for prompts.
func compactJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "null"
	}
	return strings.TrimSpace(buf.String())
}
