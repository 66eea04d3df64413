// Package memory keeps written reports in process, for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"spendmind/internal/report"
	"spendmind/internal/sheets"
)

type Store struct {
	mu    sync.Mutex
	tabs  map[string][][]any
	order []string
}

func New() *Store {
	return &Store{tabs: make(map[string][][]any)}
}

var _ sheets.ReportWriter = (*Store)(nil)

// WriteReport stores the report rows under a new tab. Writing the same tab
// twice appends a counter to its title.
func (s *Store) WriteReport(ctx context.Context, rep report.Report) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	title := sheets.SheetTitle(rep)
	base := title
	for n := 2; s.tabs[title] != nil; n++ {
		title = fmt.Sprintf("%s (%d)", base, n)
	}
	values := sheets.Values(rep)
	s.tabs[title] = values
	s.order = append(s.order, title)
	return fmt.Sprintf("mem:%s!A1:D%d", title, len(values)), nil
}

// Tabs lists tab titles in write order.
func (s *Store) Tabs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Tab returns the rows written under title.
func (s *Store) Tab(title string) ([][]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.tabs[title]
	return v, ok
}
