package http

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"financas/internal/auth"
	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/storage"
)

// summaryView is the month overview: every section total the dashboard
// header needs, computed server-side so clients only render.
type summaryView struct {
	Month               string              `json:"month"`
	Salary              *amountJSON         `json:"salary,omitempty"`
	IncomeTotal         amountJSON          `json:"income_total"`
	PlannedTotal        amountJSON          `json:"planned_total"`
	PlannedByCategory   []categoryTotalJSON `json:"planned_by_category"`
	CreditCardTotal     amountJSON          `json:"credit_card_total"`
	CreditCardsByBank   []categoryTotalJSON `json:"credit_cards_by_bank"`
	UtilityTotal        amountJSON          `json:"utility_total"`
	UtilitiesByCategory []categoryTotalJSON `json:"utilities_by_category"`
	ExpenseTotal        amountJSON          `json:"expense_total"`
	Balance             amountJSON          `json:"balance"`
	SpentPercent        *float64            `json:"spent_percent,omitempty"`
}

func (s *Server) handleDashboardSummary(w http.ResponseWriter, r *http.Request, ident auth.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	month, err := queryMonth(r, time.Now())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	view, err := s.summaryFor(r.Context(), ident.AccountID, month)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) summaryFor(ctx context.Context, accountID string, month core.MonthKey) (summaryView, error) {
	key := accountID + ":summary:" + string(month)
	if view, ok := s.summaryCache.Get(key); ok {
		s.logger.DebugContext(ctx, "Summary cache hit", log.FieldAccountID, accountID, log.FieldMonth, string(month))
		return view, nil
	}

	// Collapse concurrent rebuilds of the same view into one. The build
	// runs detached from the first caller's context so its cancellation
	// cannot fail the coalesced waiters.
	out, err, _ := s.group.Do(key, func() (any, error) {
		view, err := s.buildSummary(context.WithoutCancel(ctx), accountID, month)
		if err != nil {
			return summaryView{}, err
		}
		s.summaryCache.Set(key, view)
		return view, nil
	})
	if err != nil {
		return summaryView{}, err
	}
	return out.(summaryView), nil
}

func (s *Server) buildSummary(ctx context.Context, accountID string, month core.MonthKey) (summaryView, error) {
	view := summaryView{Month: string(month)}

	salary, err := s.records.GetSalary(ctx, accountID)
	switch {
	case err == nil:
		a := encodeAmount(salary.Amount)
		view.Salary = &a
	case errors.Is(err, storage.ErrNotFound):
		// No salary recorded yet; the section stays empty.
	default:
		return summaryView{}, err
	}

	incomes, err := s.records.ListIncomes(ctx, accountID)
	if err != nil {
		return summaryView{}, err
	}
	incomeTotal := core.IncomeTotal(incomes)
	view.IncomeTotal = encodeAmount(incomeTotal)

	planned, err := s.records.ListPlannedExpenses(ctx, accountID)
	if err != nil {
		return summaryView{}, err
	}
	plannedAmounts := core.PlannedExpenseAmounts(planned)
	plannedTotal := core.SumAmounts(plannedAmounts)
	view.PlannedTotal = encodeAmount(plannedTotal)
	view.PlannedByCategory = encodeCategoryTotals(core.SumByCategory(plannedAmounts))

	cards, err := s.records.ListCreditCards(ctx, accountID, month)
	if err != nil {
		return summaryView{}, err
	}
	cardAmounts := core.StatementBankAmounts(cards)
	cardTotal := core.SumAmounts(cardAmounts)
	view.CreditCardTotal = encodeAmount(cardTotal)
	view.CreditCardsByBank = encodeCategoryTotals(core.SumByCategory(cardAmounts))

	utilities, err := s.records.ListUtilities(ctx, accountID)
	if err != nil {
		return summaryView{}, err
	}
	utilityAmounts := core.UtilityAmounts(utilities)
	utilityTotal := core.SumAmounts(utilityAmounts)
	view.UtilityTotal = encodeAmount(utilityTotal)
	view.UtilitiesByCategory = encodeCategoryTotals(core.SumByCategory(utilityAmounts))

	expenseTotal := core.Money{Cents: plannedTotal.Cents + cardTotal.Cents + utilityTotal.Cents}
	view.ExpenseTotal = encodeAmount(expenseTotal)

	balance := core.Money{Cents: incomeTotal.Cents - expenseTotal.Cents}
	if view.Salary != nil {
		balance.Cents += view.Salary.Cents
	}
	view.Balance = encodeAmount(balance)

	if view.Salary != nil && view.Salary.Cents > 0 {
		pct := math.Round(float64(expenseTotal.Cents)/float64(view.Salary.Cents)*1000) / 10
		view.SpentPercent = &pct
	}

	return view, nil
}

// comparisonView is the card-spend-per-month chart, oldest month first.
type comparisonView struct {
	Months []monthPointJSON `json:"months"`
}

type monthPointJSON struct {
	Month string     `json:"month"`
	Total amountJSON `json:"total"`
	Delta *deltaJSON `json:"delta,omitempty"`
}

const (
	defaultComparisonMonths = 7
	maxComparisonMonths     = 24
)

func (s *Server) handleDashboardComparison(w http.ResponseWriter, r *http.Request, ident auth.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	months := queryInt(r, "months", defaultComparisonMonths, maxComparisonMonths)

	view, err := s.comparisonFor(r.Context(), ident.AccountID, months)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) comparisonFor(ctx context.Context, accountID string, months int) (comparisonView, error) {
	key := accountID + ":comparison:" + string(core.MonthKeyOf(time.Now())) + ":" + strconv.Itoa(months)
	if view, ok := s.comparisonCache.Get(key); ok {
		return view, nil
	}

	out, err, _ := s.group.Do(key, func() (any, error) {
		view, err := s.buildComparison(context.WithoutCancel(ctx), accountID, months)
		if err != nil {
			return comparisonView{}, err
		}
		s.comparisonCache.Set(key, view)
		return view, nil
	})
	if err != nil {
		return comparisonView{}, err
	}
	return out.(comparisonView), nil
}

func (s *Server) buildComparison(ctx context.Context, accountID string, months int) (comparisonView, error) {
	window := core.MonthWindow(time.Now(), months)
	totals, err := s.repo.GetCreditCardMonthTotals(ctx, accountID, window)
	if err != nil {
		return comparisonView{}, err
	}

	series := core.BuildMonthlySeries(window, totals)
	view := comparisonView{Months: make([]monthPointJSON, len(series))}
	for i, pt := range series {
		point := monthPointJSON{Month: string(pt.Month), Total: encodeAmount(pt.Total)}
		if i > 0 {
			prev := series[i-1].Total
			point.Delta = encodeDelta(pt.Total, &prev)
		}
		view.Months[i] = point
	}
	return view, nil
}
