package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"spendmind/internal/core"
	"spendmind/internal/log"
)

// ReceiptCategories are the categories a receipt can be classified into.
var ReceiptCategories = []string{"Food", "Transport", "Utilities", "Entertainment", "Health", "Education", "Shopping", "Other"}

// ErrUnsupportedDocument is returned for documents the extractor cannot send.
var ErrUnsupportedDocument = errors.New("unsupported document type")

// ReceiptFields are the values read off a receipt. Nil means undetermined.
type ReceiptFields struct {
	Amount      *decimal.Decimal `json:"amount"`
	Date        *core.Date       `json:"date"`
	Description *string          `json:"description"`
	Category    *string          `json:"category"`
}

// Empty reports whether nothing could be extracted.
func (f ReceiptFields) Empty() bool {
	return f.Amount == nil && f.Date == nil && f.Description == nil && f.Category == nil
}

type receiptPayload struct {
	Amount      *json.Number `json:"amount"`
	Date        *string      `json:"date"`
	Description *string      `json:"description"`
	Category    *string      `json:"category"`
}

const receiptPrompt = `Analyze the provided document and extract the following information in JSON format:
{
  "amount": number,
  "date": string (YYYY-MM-DD),
  "description": string,
  "category": string (one of: %s)
}
If a field cannot be determined, return null for that field. Ensure the output is valid JSON.`

// ExtractReceipt asks llm to read an image, PDF or plain-text receipt. An
// answer without a JSON object yields empty fields and no error.
func ExtractReceipt(ctx context.Context, llm LLM, doc Attachment, opts Options) (ReceiptFields, error) {
	opts = opts.withDefaults()
	if llm == nil {
		return ReceiptFields{}, core.Advisor(log.OpExtract, errors.New("no model configured"))
	}
	prompt := Prompt{
		Turns: []Turn{{Role: RoleUser, Content: fmt.Sprintf(receiptPrompt, strings.Join(ReceiptCategories, ", "))}},
		JSON:  true,
	}
	mime := strings.ToLower(strings.TrimSpace(doc.MimeType))
	switch {
	case strings.HasPrefix(mime, "image/"), mime == "application/pdf":
		prompt.Attachment = &Attachment{MimeType: mime, Data: doc.Data}
	case mime == "text/csv", mime == "text/plain":
		prompt.Turns[0].Content += "\n\nHere is the document content:\n" + string(doc.Data)
	default:
		return ReceiptFields{}, core.Validation(log.OpExtract, fmt.Errorf("%w: %q", ErrUnsupportedDocument, doc.MimeType))
	}
	if len(doc.Data) == 0 {
		return ReceiptFields{}, core.Validation(log.OpExtract, ErrUnsupportedDocument)
	}

	raw, err := generate(ctx, llm, opts.Timeout, prompt)
	if err != nil {
		opts.Logger.Failure(ctx, "receipt extraction failed", log.OpExtract, log.ErrorTypeAdvisor, err)
		return ReceiptFields{}, err
	}
	fields, ok := ParseReceipt(raw)
	if !ok {
		opts.Logger.Warn("no JSON found in receipt answer", log.FieldOperation, log.OpExtract)
	}
	return fields, nil
}

// ParseReceipt reads receipt fields from a model answer. Values that do not
// make sense are dropped: non-positive amounts, unparsable dates and blank
// text. Unknown categories become "Other". ok is false when the answer holds
// no JSON object.
func ParseReceipt(raw string) (fields ReceiptFields, ok bool) {
	var p receiptPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &p); err != nil {
		obj, found := ExtractJSON(raw)
		if !found || json.Unmarshal([]byte(obj), &p) != nil {
			return ReceiptFields{}, false
		}
	}

	if p.Amount != nil {
		if amt, err := decimal.NewFromString(p.Amount.String()); err == nil && amt.IsPositive() {
			fields.Amount = &amt
		}
	}
	if p.Date != nil {
		if d, err := core.ParseDate(*p.Date); err == nil {
			fields.Date = &d
		}
	}
	if p.Description != nil {
		if desc := strings.TrimSpace(*p.Description); desc != "" {
			if r := []rune(desc); len(r) > core.MaxDescriptionLen {
				desc = string(r[:core.MaxDescriptionLen])
			}
			fields.Description = &desc
		}
	}
	if p.Category != nil && strings.TrimSpace(*p.Category) != "" {
		cat := normalizeCategory(*p.Category)
		fields.Category = &cat
	}
	return fields, true
}

func normalizeCategory(s string) string {
	s = strings.TrimSpace(s)
	for _, c := range ReceiptCategories {
		if strings.EqualFold(c, s) {
			return c
		}
	}
	return "Other"
}
