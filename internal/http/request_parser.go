package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"spendmind/internal/core"
	"spendmind/internal/report"
)

const maxBodyBytes = 1 << 20

var (
	ErrEmptyBody     = errors.New("request body is empty")
	ErrTrailingData  = errors.New("request body must hold a single JSON object")
	ErrNotJSONString = errors.New("expected a string or a number")
)

// decodeJSON reads one JSON object from r into dst. Unknown fields are
// rejected. Every failure is a validation error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	const op = "decode request"
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return core.Validation(op, ErrEmptyBody)
		}
		return core.Validation(op, err)
	}
	if dec.More() {
		return core.Validation(op, ErrTrailingData)
	}
	return nil
}

// Text accepts a JSON string or number and keeps it as text, so amounts
// can be sent either way without going through float64.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*t = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return ErrNotJSONString
		}
		*t = Text(n.String())
	}
	return nil
}

func (t Text) String() string { return sanitizeInput(string(t)) }

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}

// parseFilter reads a report filter from period, start, end and
// category_id query or body values.
func parseFilter(q url.Values) (report.Filter, error) {
	const op = "parse filter"
	f := report.Filter{
		Period:     report.Period(sanitizeInput(q.Get("period"))),
		CategoryID: sanitizeInput(q.Get("category_id")),
	}
	for name, dst := range map[string]*core.Date{"start": &f.Start, "end": &f.End} {
		v := sanitizeInput(q.Get(name))
		if v == "" {
			continue
		}
		d, err := core.ParseDate(v)
		if err != nil {
			return report.Filter{}, core.Validation(op, fmt.Errorf("%s: %w", name, err))
		}
		*dst = d
	}
	return f, nil
}

// filterBody is the JSON shape of a report filter.
type filterBody struct {
	Period     string `json:"period"`
	Start      string `json:"start"`
	End        string `json:"end"`
	CategoryID string `json:"category_id"`
}

func (b filterBody) filter() (report.Filter, error) {
	return parseFilter(url.Values{
		"period":      {b.Period},
		"start":       {b.Start},
		"end":         {b.End},
		"category_id": {b.CategoryID},
	})
}

// parseRate reads a reduction target in percent, defaulting to def.
func parseRate(s string, def int) (int, error) {
	s = sanitizeInput(s)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 100 {
		return 0, core.Validation("parse rate", fmt.Errorf("reduction rate must be a whole percent between 0 and 100, got %q", s))
	}
	return n, nil
}

func errUnknownPeriod(p string) error {
	return fmt.Errorf("%w: %q", report.ErrUnknownPeriod, sanitizeInput(p))
}
