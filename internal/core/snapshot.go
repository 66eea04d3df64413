package core

// Snapshot is an immutable read of an owner's collections at a point in time.
type Snapshot struct {
	Expenses   []Expense
	Categories []Category
	Goals      []Goal
	Settings   Settings
}

// Clone returns a deep copy of the collections.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Expenses:   append([]Expense(nil), s.Expenses...),
		Categories: append([]Category(nil), s.Categories...),
		Goals:      append([]Goal(nil), s.Goals...),
		Settings:   s.Settings,
	}
}

// CategoryByID returns the category with the given id.
func (s Snapshot) CategoryByID(id string) (Category, bool) {
	for _, c := range s.Categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// CategoryByName returns the first category with the given (case-sensitive) name.
func (s Snapshot) CategoryByName(name string) (Category, bool) {
	for _, c := range s.Categories {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}

// CategoryNames lists category names in collection order.
func (s Snapshot) CategoryNames() []string {
	names := make([]string, len(s.Categories))
	for i, c := range s.Categories {
		names[i] = c.Name
	}
	return names
}

// ResolveNames refreshes each expense's CategoryName from its CategoryID.
// Expenses whose category is unknown keep the name they were stored with.
func ResolveNames(exps []Expense, cats []Category) []Expense {
	byID := make(map[string]string, len(cats))
	for _, c := range cats {
		byID[c.ID] = c.Name
	}
	out := make([]Expense, len(exps))
	for i, e := range exps {
		if name, ok := byID[e.CategoryID]; ok {
			e.CategoryName = name
		}
		out[i] = e
	}
	return out
}

// CategoryKey is the grouping key for an expense: its category id when set,
// otherwise its stored name.
func CategoryKey(e Expense) string {
	if e.CategoryID != "" {
		return e.CategoryID
	}
	return "name:" + e.CategoryName
}
