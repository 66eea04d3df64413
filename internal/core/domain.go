package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// MaxDescriptionLen bounds expense descriptions.
const MaxDescriptionLen = 200

const dateLayout = "2006-01-02"

type (
	// Date is a calendar date without time-of-day semantics.
	Date struct {
		time.Time
	}

	// Currency describes how amounts are displayed for an owner.
	Currency struct {
		Code   string `json:"code" yaml:"code"`
		Symbol string `json:"symbol" yaml:"symbol"`
		Locale string `json:"locale" yaml:"locale"`
	}

	Expense struct {
		ID           string          `json:"id"`
		OwnerID      string          `json:"owner_id"`
		Amount       decimal.Decimal `json:"amount"`
		CategoryID   string          `json:"category_id"`
		CategoryName string          `json:"category_name"` // resolved from CategoryID
		Date         Date            `json:"date"`
		Description  string          `json:"description"`
		CreatedAt    time.Time       `json:"created_at"`
	}

	Category struct {
		ID          string          `json:"id"`
		OwnerID     string          `json:"owner_id"`
		Name        string          `json:"name"`
		BudgetLimit decimal.Decimal `json:"budget_limit"`
		CreatedAt   time.Time       `json:"created_at"`
	}

	Goal struct {
		ID            string          `json:"id"`
		OwnerID       string          `json:"owner_id"`
		Title         string          `json:"title"`
		TargetAmount  decimal.Decimal `json:"target_amount"`
		HorizonMonths int             `json:"months"`
		CreatedAt     time.Time       `json:"created_at"`
	}

	Settings struct {
		OwnerID     string   `json:"owner_id"`
		Currency    Currency `json:"currency"`
		CountryCode string   `json:"country_code"`
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrLongDescription  = errors.New("description too long (max 200 characters)")
	ErrEmptyCategory    = errors.New("empty category")
	ErrNegativeLimit    = errors.New("budget limit cannot be negative")
	ErrEmptyTitle       = errors.New("empty goal title")
	ErrInvalidHorizon   = errors.New("goal horizon must be at least one month")
	ErrInvalidCurrency  = errors.New("invalid currency")
	ErrEmptyOwner       = errors.New("empty owner")
)

// DefaultSettings mirrors what a new owner sees before saving anything.
func DefaultSettings(owner string) Settings {
	return Settings{
		OwnerID:     owner,
		Currency:    Currency{Code: "USD", Symbol: "$", Locale: "en-US"},
		CountryCode: "US",
	}
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Before reports whether d is strictly before o.
func (d Date) Before(o Date) bool {
	return d.Time.Before(o.Time)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (e Expense) Validate() error {
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(e.Description) == "" {
		return ErrEmptyDescription
	}
	if utf8.RuneCountInString(e.Description) > MaxDescriptionLen {
		return ErrLongDescription
	}
	if strings.TrimSpace(e.CategoryID) == "" && strings.TrimSpace(e.CategoryName) == "" {
		return ErrEmptyCategory
	}
	return e.Date.Validate()
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyCategory
	}
	if c.BudgetLimit.IsNegative() {
		return ErrNegativeLimit
	}
	return nil
}

// Monitored reports whether the category has a budget limit to check against.
func (c Category) Monitored() bool {
	return c.BudgetLimit.IsPositive()
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.Title) == "" {
		return ErrEmptyTitle
	}
	if !g.TargetAmount.IsPositive() {
		return ErrInvalidAmount
	}
	if g.HorizonMonths < 1 {
		return ErrInvalidHorizon
	}
	return nil
}

// RequiredMonthly is the monthly saving needed to reach the goal in time.
func (g Goal) RequiredMonthly() decimal.Decimal {
	if g.HorizonMonths < 1 {
		return g.TargetAmount
	}
	return g.TargetAmount.Div(decimal.NewFromInt(int64(g.HorizonMonths)))
}

func (c Currency) Validate() error {
	if len(strings.TrimSpace(c.Code)) != 3 || strings.TrimSpace(c.Locale) == "" {
		return ErrInvalidCurrency
	}
	return nil
}

func (s Settings) Validate() error {
	return s.Currency.Validate()
}
