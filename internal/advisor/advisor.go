// Package advisor turns an owner's snapshot into a prioritized savings plan,
// runs the conversational assistant and extracts expense fields from receipts.
//
// The language model is a collaborator behind LLM. Its answers are decoded
// strictly; a text scan for a JSON object is the last resort before the
// deterministic fallback plan takes over.
package advisor

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"spendmind/internal/core"
)

// Priority ranks a recommendation.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Type says what kind of insight a recommendation carries.
type Type string

const (
	TypeWarning      Type = "warning"
	TypeSuccess      Type = "success"
	TypeOptimization Type = "optimization"
)

// Source tells where a plan came from.
type Source string

const (
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
)

// Display classes per priority.
const (
	ColorHigh    = "text-red-500 bg-red-500/10 border-red-500/20"
	ColorMedium  = "text-amber-500 bg-amber-500/10 border-amber-500/20"
	ColorLow     = "text-emerald-500 bg-emerald-500/10 border-emerald-500/20"
	ColorGeneric = "text-indigo-500 bg-indigo-500/10 border-indigo-500/20"
)

// ColorFor returns the display classes for p.
func ColorFor(p Priority) string {
	switch p {
	case PriorityHigh:
		return ColorHigh
	case PriorityMedium:
		return ColorMedium
	case PriorityLow:
		return ColorLow
	}
	return ColorGeneric
}

type Recommendation struct {
	ID       string   `json:"id"`
	Priority Priority `json:"priority"`
	Type     Type     `json:"type"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Action   string   `json:"action"`
	Color    string   `json:"color"`
}

// Plan is the advisor's answer.
type Plan struct {
	Recommendations       []Recommendation `json:"recommendations"`
	TotalPotentialSavings decimal.Decimal  `json:"totalPotentialSavings"`
	Source                Source           `json:"source"`
}

// RecentExpenses is how many of the newest expenses go into a request.
const RecentExpenses = 20

// Request is the context sent to the model.
type Request struct {
	Goals                []core.Goal     `json:"goals"`
	Expenses             []core.Expense  `json:"expenses"`
	Categories           []string        `json:"categories"`
	ReductionRatePercent decimal.Decimal `json:"reductionRatePercent"`
}

// NewRequest builds a request from snap. Expenses are expected newest first,
// as the store keeps them.
func NewRequest(snap core.Snapshot, rate decimal.Decimal) Request {
	exps := snap.Expenses
	if len(exps) > RecentExpenses {
		exps = exps[:RecentExpenses]
	}
	return Request{
		Goals:                append([]core.Goal{}, snap.Goals...),
		Expenses:             append([]core.Expense{}, exps...),
		Categories:           snap.CategoryNames(),
		ReductionRatePercent: rate,
	}
}

// Role of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of a conversation sent to the model.
type Turn struct {
	Role    Role
	Content string
}

// Attachment is binary content sent alongside the prompt.
type Attachment struct {
	MimeType string
	Data     []byte
}

// Prompt is everything the model receives for one call.
type Prompt struct {
	System     string
	Turns      []Turn
	Attachment *Attachment
	// JSON asks the model for a JSON-only answer.
	JSON bool
}

// LLM generates text for a prompt.
type LLM interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// LLMFunc adapts a function to LLM.
type LLMFunc func(ctx context.Context, p Prompt) (string, error)

func (f LLMFunc) Generate(ctx context.Context, p Prompt) (string, error) { return f(ctx, p) }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
