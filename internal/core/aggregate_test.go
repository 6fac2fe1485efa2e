package core

import (
	"testing"
	"time"
)

func TestSumByCategory_PreservesTotalAndOrder(t *testing.T) {
	items := []CategoryAmount{
		{Category: "Energia", Amount: Money{Cents: 12000}},
		{Category: "Água", Amount: Money{Cents: 4500}},
		{Category: "Energia", Amount: Money{Cents: 3000}},
		{Category: "", Amount: Money{Cents: 990}},
		{Category: "Água", Amount: Money{Cents: 500}},
	}

	got := SumByCategory(items)

	wantOrder := []string{"Energia", "Água", CategoryOther}
	if len(got) != len(wantOrder) {
		t.Fatalf("expected %d buckets, got %d", len(wantOrder), len(got))
	}
	for i, cat := range wantOrder {
		if got[i].Category != cat {
			t.Errorf("bucket %d: expected category %q, got %q", i, cat, got[i].Category)
		}
	}

	var inputTotal, bucketTotal int64
	for _, it := range items {
		inputTotal += it.Amount.Cents
	}
	for _, b := range got {
		bucketTotal += b.Total.Cents
	}
	if inputTotal != bucketTotal {
		t.Errorf("aggregation lost cents: input %d, buckets %d", inputTotal, bucketTotal)
	}

	if got[0].Total.Cents != 15000 {
		t.Errorf("expected Energia total 15000, got %d", got[0].Total.Cents)
	}
	if got[2].Total.Cents != 990 {
		t.Errorf("expected fallback bucket total 990, got %d", got[2].Total.Cents)
	}
}

func TestSumByCategory_EmptyInput(t *testing.T) {
	if got := SumByCategory(nil); len(got) != 0 {
		t.Errorf("expected empty result for empty input, got %v", got)
	}
}

func TestSplitExpenses(t *testing.T) {
	items := []SplitItem{
		{ID: "a", Name: "Energia", Amount: Money{Cents: 10000}},
		{ID: "b", Name: "Internet", Amount: Money{Cents: 5000}, Exclude: true},
	}

	res := SplitExpenses(items, 2)

	if res.TotalToSplit.Cents != 10000 {
		t.Errorf("expected total to split 10000, got %d", res.TotalToSplit.Cents)
	}
	if res.PerPerson.Cents != 5000 {
		t.Errorf("expected per person 5000, got %d", res.PerPerson.Cents)
	}
	if len(res.Included) != 1 || res.Included[0].ID != "a" {
		t.Errorf("expected included [a], got %v", res.Included)
	}
	if len(res.Excluded) != 1 || res.Excluded[0].Amount.Cents != 5000 {
		t.Errorf("expected excluded entry of 5000 cents, got %v", res.Excluded)
	}
}

func TestSplitExpenses_PerPersonTimesPeopleApproximatesTotal(t *testing.T) {
	items := []SplitItem{
		{Amount: Money{Cents: 10001}},
		{Amount: Money{Cents: 3333}},
		{Amount: Money{Cents: 77}},
	}
	for people := 1; people <= 7; people++ {
		res := SplitExpenses(items, people)
		diff := res.PerPerson.Cents*int64(people) - res.TotalToSplit.Cents
		if diff < 0 {
			diff = -diff
		}
		if diff > int64(people)/2+1 {
			t.Errorf("people=%d: per-person %d drifts %d cents from total %d",
				people, res.PerPerson.Cents, diff, res.TotalToSplit.Cents)
		}
	}
}

func TestSplitExpenses_GuardsDivisionByZero(t *testing.T) {
	items := []SplitItem{{Amount: Money{Cents: 10000}}}
	for _, people := range []int{0, -1, -10} {
		res := SplitExpenses(items, people)
		if res.PerPerson.Cents != 0 {
			t.Errorf("people=%d: expected per person 0, got %d", people, res.PerPerson.Cents)
		}
		if res.TotalToSplit.Cents != 10000 {
			t.Errorf("people=%d: total should still be computed, got %d", people, res.TotalToSplit.Cents)
		}
	}
}

func TestCompareToPrevious(t *testing.T) {
	prev := func(cents int64) *Money { m := Money{Cents: cents}; return &m }

	tests := []struct {
		name          string
		current       int64
		previous      *Money
		wantOK        bool
		wantDirection DeltaDirection
		wantPercent   float64
	}{
		{
			name:     "no previous amount",
			current:  15000,
			previous: nil,
			wantOK:   false,
		},
		{
			name:     "previous is zero",
			current:  15000,
			previous: prev(0),
			wantOK:   false,
		},
		{
			name:          "increase of fifty percent",
			current:       15000,
			previous:      prev(10000),
			wantOK:        true,
			wantDirection: DeltaIncrease,
			wantPercent:   50.0,
		},
		{
			name:          "decrease of twenty percent",
			current:       8000,
			previous:      prev(10000),
			wantOK:        true,
			wantDirection: DeltaDecrease,
			wantPercent:   20.0,
		},
		{
			name:          "equal amounts count as zero decrease",
			current:       10000,
			previous:      prev(10000),
			wantOK:        true,
			wantDirection: DeltaDecrease,
			wantPercent:   0.0,
		},
		{
			name:          "percent is rounded to one decimal",
			current:       10012,
			previous:      prev(10000),
			wantOK:        true,
			wantDirection: DeltaIncrease,
			wantPercent:   0.1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CompareToPrevious(Money{Cents: tt.current}, tt.previous)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if !ok {
				return
			}
			if got.Direction != tt.wantDirection {
				t.Errorf("expected direction %q, got %q", tt.wantDirection, got.Direction)
			}
			if got.Percent != tt.wantPercent {
				t.Errorf("expected percent %.1f, got %.1f", tt.wantPercent, got.Percent)
			}
		})
	}
}

func TestMonthWindow(t *testing.T) {
	now := time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)

	got := MonthWindow(now, 3)

	want := []MonthKey{"2025-01", "2025-02", "2025-03"}
	if len(got) != len(want) {
		t.Fatalf("expected %d months, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("month %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestMonthWindow_CrossesYearBoundary(t *testing.T) {
	now := time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC)

	got := MonthWindow(now, 4)

	want := []MonthKey{"2024-10", "2024-11", "2024-12", "2025-01"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("month %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestBuildMonthlySeries_ZeroFillsMissingMonths(t *testing.T) {
	window := []MonthKey{"2025-01", "2025-02", "2025-03"}
	totals := map[MonthKey]Money{
		"2025-01": {Cents: 10000},
		"2025-03": {Cents: 25000},
	}

	got := BuildMonthlySeries(window, totals)

	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[0].Month != "2025-01" || got[0].Total.Cents != 10000 {
		t.Errorf("unexpected first entry: %+v", got[0])
	}
	if got[1].Month != "2025-02" || got[1].Total.Cents != 0 {
		t.Errorf("february must be present with zero, got %+v", got[1])
	}
	if got[2].Month != "2025-03" || got[2].Total.Cents != 25000 {
		t.Errorf("unexpected last entry: %+v", got[2])
	}
}

func TestUtilitySplitItems_EndToEnd(t *testing.T) {
	utilities := []Utility{
		{ID: "u1", Name: "Energia", Category: "Energia", Amount: Money{Cents: 10000}},
		{ID: "u2", Name: "Streaming", Category: CategoryOther, Amount: Money{Cents: 5000}, ExcludeFromSplit: true},
	}

	res := SplitExpenses(UtilitySplitItems(utilities), 2)

	if res.TotalToSplit.Cents != 10000 {
		t.Errorf("expected total to split 10000, got %d", res.TotalToSplit.Cents)
	}
	if res.PerPerson.Cents != 5000 {
		t.Errorf("expected per person 5000, got %d", res.PerPerson.Cents)
	}
	if len(res.Excluded) != 1 || res.Excluded[0].ID != "u2" {
		t.Errorf("expected excluded [u2], got %v", res.Excluded)
	}
}
