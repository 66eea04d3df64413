// Package format renders amounts as locale-aware currency strings.
//
// Formatting never fails from the caller's point of view: when the currency
// or locale cannot be handled the amount is rendered as a plain number.
package format

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"spendmind/internal/core"
	"spendmind/internal/log"
)

// Supported lists the currencies offered in settings, each with its display locale.
var Supported = []core.Currency{
	{Code: "USD", Symbol: "$", Locale: "en-US"},
	{Code: "EUR", Symbol: "€", Locale: "de-DE"},
	{Code: "GBP", Symbol: "£", Locale: "en-GB"},
	{Code: "INR", Symbol: "₹", Locale: "en-IN"},
	{Code: "JPY", Symbol: "¥", Locale: "ja-JP"},
	{Code: "CAD", Symbol: "$", Locale: "en-CA"},
	{Code: "AUD", Symbol: "$", Locale: "en-AU"},
}

// USD is the default display currency.
var USD = Supported[0]

// Lookup returns the supported currency with the given ISO code.
func Lookup(code string) (core.Currency, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, c := range Supported {
		if c.Code == code {
			return c, true
		}
	}
	return core.Currency{}, false
}

// Formatter renders amounts for a currency descriptor.
type Formatter struct {
	logger *log.Logger
}

// New returns a Formatter logging fallbacks to logger (may be nil).
func New(logger *log.Logger) *Formatter {
	if logger == nil {
		logger = log.Default(log.ComponentFormat)
	}
	return &Formatter{logger: logger}
}

var std = New(nil)

// Format renders amount with the package formatter.
func Format(amount decimal.Decimal, cur core.Currency) string {
	return std.Format(amount, cur)
}

// Format renders amount in cur. It tries locale-aware formatting first, then
// the currency's native layout, and finally a plain fixed-point number.
func (f *Formatter) Format(amount decimal.Decimal, cur core.Currency) (out string) {
	defer func() {
		if r := recover(); r != nil {
			f.fallback(cur, fmt.Errorf("panic: %v", r))
			out = Plain(amount)
		}
	}()

	s, err := localized(amount, cur)
	if err == nil {
		return s
	}
	f.fallback(cur, err)
	if s, err := native(amount, cur.Code); err == nil {
		return s
	}
	return Plain(amount)
}

func (f *Formatter) fallback(cur core.Currency, err error) {
	f.logger.DebugContext(context.Background(), "Currency formatting degraded",
		log.FieldCurrency, cur.Code,
		log.FieldLocale, cur.Locale,
		log.FieldErrorType, log.ErrorTypeFormat,
		log.FieldError, core.Format(log.OpFormat, err).Error())
}

// Plain renders amount with two decimals and no grouping or symbol.
func Plain(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

func lookupMoney(code string) (*money.Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, fmt.Errorf("empty currency code")
	}
	mc := money.GetCurrency(code)
	if mc == nil {
		return nil, fmt.Errorf("unsupported currency %q", code)
	}
	return mc, nil
}

func localized(amount decimal.Decimal, cur core.Currency) (string, error) {
	mc, err := lookupMoney(cur.Code)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(cur.Locale) == "" {
		return "", fmt.Errorf("empty locale")
	}
	tag, err := language.Parse(cur.Locale)
	if err != nil {
		return "", fmt.Errorf("parse locale %q: %w", cur.Locale, err)
	}

	sep, err := separatorsFor(tag)
	if err != nil {
		return "", err
	}
	rounded := amount.Round(int32(mc.Fraction))
	digits := sep.apply(rounded.Abs().StringFixed(int32(mc.Fraction)))

	symbol := cur.Symbol
	if symbol == "" {
		symbol = mc.Grapheme
	}
	s := symbol + digits
	if symbolTrails(mc.Template) {
		s = digits + " " + symbol
	}
	if rounded.IsNegative() {
		s = "-" + s
	}
	return s, nil
}

// native uses go-money's own layout for the currency, ignoring locale.
func native(amount decimal.Decimal, code string) (string, error) {
	mc, err := lookupMoney(code)
	if err != nil {
		return "", err
	}
	shifted := amount.Shift(int32(mc.Fraction)).Round(0)
	if !shifted.BigInt().IsInt64() {
		return "", fmt.Errorf("amount %s out of range for %s", amount, mc.Code)
	}
	return money.New(shifted.IntPart(), mc.Code).Display(), nil
}

// separators is a locale's number layout: the grouping and decimal marks
// and the group sizes (primary is the rightmost group).
type separators struct {
	group     string
	decimal   string
	primary   int
	secondary int
}

// separatorsFor learns the layout by printing a sample through x/text, so
// the digits themselves never pass through a float.
func separatorsFor(tag language.Tag) (separators, error) {
	const want = "12345675"
	sample := []rune(message.NewPrinter(tag).Sprint(number.Decimal(1234567.5, number.Scale(1))))

	var (
		runs  []string // digit runs of the integer part
		marks []string // marks between the runs
		cur   []rune
		mark  []rune
	)
	for _, r := range sample {
		if r >= '0' && r <= '9' {
			if len(mark) > 0 {
				marks = append(marks, string(mark))
				mark = mark[:0]
			}
			cur = append(cur, r)
			continue
		}
		if unicode.IsDigit(r) {
			return separators{}, fmt.Errorf("locale %s does not use ASCII digits", tag)
		}
		if len(cur) > 0 {
			runs = append(runs, string(cur))
			cur = cur[:0]
		}
		mark = append(mark, r)
	}
	if len(cur) > 0 {
		runs = append(runs, string(cur))
	}
	if strings.Join(runs, "") != want || len(runs) < 2 || len(marks) != len(runs)-1 {
		return separators{}, fmt.Errorf("unexpected number layout %q for %s", string(sample), tag)
	}

	sep := separators{decimal: marks[len(marks)-1]}
	intRuns := runs[:len(runs)-1]
	if len(intRuns) > 1 {
		sep.group = marks[0]
		sep.primary = len(intRuns[len(intRuns)-1])
		sep.secondary = len(intRuns[len(intRuns)-2])
	}
	return sep, nil
}

// apply lays out a plain "1234.56" string.
func (s separators) apply(plain string) string {
	intPart, frac, hasFrac := strings.Cut(plain, ".")
	if s.group != "" && len(intPart) > s.primary {
		head, tail := intPart[:len(intPart)-s.primary], intPart[len(intPart)-s.primary:]
		var groups []string
		for len(head) > s.secondary {
			groups = append([]string{head[len(head)-s.secondary:]}, groups...)
			head = head[:len(head)-s.secondary]
		}
		groups = append([]string{head}, groups...)
		intPart = strings.Join(append(groups, tail), s.group)
	}
	if hasFrac {
		return intPart + s.decimal + frac
	}
	return intPart
}

// go-money templates put "1" where the number goes and "$" for the symbol.
func symbolTrails(template string) bool {
	return strings.Index(template, "1") < strings.Index(template, "$")
}
