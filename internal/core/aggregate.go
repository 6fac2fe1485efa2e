package core

import (
	"math"
	"time"
)

// CategoryAmount is the minimal view the category aggregator needs.
type CategoryAmount struct {
	Category string
	Amount   Money
}

// CategoryTotal is one bucket of a category aggregation.
type CategoryTotal struct {
	Category string
	Total    Money
}

// SumByCategory groups amounts by category, preserving first-seen order.
// Records without a category land in the CategoryOther bucket. The result
// is total-preserving: the bucket totals always add up to the input total.
func SumByCategory(items []CategoryAmount) []CategoryTotal {
	var out []CategoryTotal
	index := make(map[string]int)
	for _, it := range items {
		cat := it.Category
		if cat == "" {
			cat = CategoryOther
		}
		i, ok := index[cat]
		if !ok {
			i = len(out)
			index[cat] = i
			out = append(out, CategoryTotal{Category: cat})
		}
		out[i].Total.Cents += it.Amount.Cents
	}
	return out
}

// SplitItem is the minimal view the split calculator needs.
type SplitItem struct {
	ID      string
	Name    string
	Amount  Money
	Exclude bool
}

// SplitResult partitions items into the shared pot and the excluded list.
type SplitResult struct {
	Included     []SplitItem
	Excluded     []SplitItem
	TotalToSplit Money
	PerPerson    Money
}

// SplitExpenses sums the non-excluded items and divides by the number of
// participants, rounding half-up to the cent. people <= 0 yields a zero
// per-person share instead of a division by zero.
func SplitExpenses(items []SplitItem, people int) SplitResult {
	res := SplitResult{
		Included: []SplitItem{},
		Excluded: []SplitItem{},
	}
	for _, it := range items {
		if it.Exclude {
			res.Excluded = append(res.Excluded, it)
			continue
		}
		res.Included = append(res.Included, it)
		res.TotalToSplit.Cents += it.Amount.Cents
	}
	if people > 0 {
		n := int64(people)
		res.PerPerson = Money{Cents: (res.TotalToSplit.Cents + n/2) / n}
	}
	return res
}

// DeltaDirection tags a period-over-period change for icon/color selection.
type DeltaDirection string

const (
	DeltaIncrease DeltaDirection = "increase"
	DeltaDecrease DeltaDirection = "decrease"
)

// Delta is a period-over-period change, Percent rounded to one decimal.
type Delta struct {
	Direction DeltaDirection
	Percent   float64
}

// CompareToPrevious computes the percentage change from previous to
// current. When previous is absent or zero there is nothing to compare
// against and ok is false; callers must omit the trend indicator.
//
// Equal amounts report a decrease of 0.0%.
func CompareToPrevious(current Money, previous *Money) (Delta, bool) {
	if previous == nil || previous.Cents == 0 {
		return Delta{}, false
	}
	cur := float64(current.Cents)
	prev := float64(previous.Cents)
	d := Delta{Direction: DeltaDecrease}
	if current.Cents > previous.Cents {
		d.Direction = DeltaIncrease
		d.Percent = (cur/prev - 1) * 100
	} else {
		d.Percent = (1 - cur/prev) * 100
	}
	d.Percent = math.Round(d.Percent*10) / 10
	return d, true
}

// MonthWindow returns the n month keys ending at the month containing
// now, in chronological order.
func MonthWindow(now time.Time, n int) []MonthKey {
	if n <= 0 {
		return nil
	}
	out := make([]MonthKey, n)
	year, month, _ := now.Date()
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		out[n-1-i] = MonthKeyOf(first.AddDate(0, -i, 0))
	}
	return out
}

// MonthTotal is one point of a monthly series.
type MonthTotal struct {
	Month MonthKey
	Total Money
}

// BuildMonthlySeries maps each month of the window to its supplied total,
// in window order. Months without a total are present with zero rather
// than omitted, so charts keep a fixed-width axis.
func BuildMonthlySeries(window []MonthKey, totals map[MonthKey]Money) []MonthTotal {
	out := make([]MonthTotal, len(window))
	for i, m := range window {
		out[i] = MonthTotal{Month: m, Total: totals[m]}
	}
	return out
}

// View adapters from record types to the aggregation inputs.

// PlannedExpenseAmounts projects planned expenses for category grouping.
func PlannedExpenseAmounts(items []PlannedExpense) []CategoryAmount {
	out := make([]CategoryAmount, len(items))
	for i, p := range items {
		out[i] = CategoryAmount{Category: p.Category, Amount: p.Amount}
	}
	return out
}

// UtilityAmounts projects utilities for category grouping.
func UtilityAmounts(items []Utility) []CategoryAmount {
	out := make([]CategoryAmount, len(items))
	for i, u := range items {
		out[i] = CategoryAmount{Category: u.Category, Amount: u.Amount}
	}
	return out
}

// StatementBankAmounts projects card statements for grouping by bank.
func StatementBankAmounts(items []CreditCardStatement) []CategoryAmount {
	out := make([]CategoryAmount, len(items))
	for i, c := range items {
		out[i] = CategoryAmount{Category: c.Bank, Amount: c.Amount}
	}
	return out
}

// UtilitySplitItems projects utilities for the split calculator.
func UtilitySplitItems(items []Utility) []SplitItem {
	out := make([]SplitItem, len(items))
	for i, u := range items {
		out[i] = SplitItem{ID: u.ID, Name: u.Name, Amount: u.Amount, Exclude: u.ExcludeFromSplit}
	}
	return out
}

// SumAmounts totals a list of projected amounts.
func SumAmounts(items []CategoryAmount) Money {
	var total Money
	for _, it := range items {
		total.Cents += it.Amount.Cents
	}
	return total
}

// IncomeTotal sums all income amounts.
func IncomeTotal(items []Income) Money {
	var total Money
	for _, i := range items {
		total.Cents += i.Amount.Cents
	}
	return total
}
