package metrics

import (
	"testing"

	"spendmind/internal/core"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		spent, limit string
		want         Level
	}{
		{"0", "100", LevelOK},
		{"90", "100", LevelOK},
		{"90.01", "100", LevelWarning},
		{"100", "100", LevelWarning},
		{"100.01", "100", LevelExceeded},
		{"0", "0", LevelNone},
		{"1000", "0", LevelNone},
	}
	for _, tc := range cases {
		t.Run(tc.spent+"/"+tc.limit, func(t *testing.T) {
			if got := Classify(dec(tc.spent), dec(tc.limit)); got != tc.want {
				t.Fatalf("Classify(%s, %s) = %s, want %s", tc.spent, tc.limit, got, tc.want)
			}
		})
	}
}

func TestCategoryStatusExceeded(t *testing.T) {
	st := CategoryStatus(core.Category{ID: "f", Name: "Food", BudgetLimit: dec("500")}, dec("600"))
	if !st.Spent.Equal(dec("600")) || !st.Remaining.Equal(dec("-100")) {
		t.Fatalf("unexpected amounts: %+v", st)
	}
	if !st.Percentage.Valid || !st.Percentage.Decimal.Equal(dec("120")) {
		t.Fatalf("percentage = %+v", st.Percentage)
	}
	if st.Level != LevelExceeded {
		t.Fatalf("level = %s", st.Level)
	}
}

func TestCategoryStatusUnmonitored(t *testing.T) {
	st := CategoryStatus(core.Category{ID: "f", Name: "Food"}, dec("42"))
	if st.Percentage.Valid {
		t.Fatal("percentage must be absent without a limit")
	}
	if st.Level != LevelNone {
		t.Fatalf("level = %s", st.Level)
	}
}

func TestAlerts(t *testing.T) {
	cats := []core.Category{
		{ID: "a", Name: "A", BudgetLimit: dec("100")},
		{ID: "b", Name: "B", BudgetLimit: dec("100")},
		{ID: "c", Name: "C"},
		{ID: "d", Name: "D", BudgetLimit: dec("100")},
	}
	exps := []core.Expense{
		exp("1", "a", "95", core.NewDate(2025, 3, 1)),
		exp("2", "b", "150", core.NewDate(2025, 3, 1)),
		exp("3", "c", "900", core.NewDate(2025, 3, 1)),
		exp("4", "d", "10", core.NewDate(2025, 3, 1)),
	}
	got := Alerts(cats, exps)
	if len(got) != 2 {
		t.Fatalf("got %d alerts: %+v", len(got), got)
	}
	if got[0].Name != "A" || got[0].Level != LevelWarning {
		t.Fatalf("first alert = %+v", got[0])
	}
	if got[1].Name != "B" || got[1].Level != LevelExceeded {
		t.Fatalf("second alert = %+v", got[1])
	}
}
