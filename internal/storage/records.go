package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"financas/internal/core"
)

const createIncomeSQL = `
INSERT INTO incomes (id, account_id, description, amount_cents, date, category)
VALUES (?, ?, ?, ?, ?, ?)`

func (r *SQLiteRepository) CreateIncome(ctx context.Context, accountID string, in core.Income) error {
	_, err := r.db.ExecContext(ctx, createIncomeSQL,
		in.ID, accountID, in.Description, in.Amount.Cents, in.Date.String(), in.Category)
	if err != nil {
		return fmt.Errorf("create income: %w", err)
	}

	slog.InfoContext(ctx, "Income saved",
		"record_id", in.ID,
		"account_id", accountID,
		"amount_cents", in.Amount.Cents,
		"category", in.Category)
	return nil
}

const updateIncomeSQL = `
UPDATE incomes
SET description = ?, amount_cents = ?, date = ?, category = ?,
    sync_status = 'pending', version = version + 1, updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND account_id = ?`

func (r *SQLiteRepository) UpdateIncome(ctx context.Context, accountID string, in core.Income) error {
	res, err := r.db.ExecContext(ctx, updateIncomeSQL,
		in.Description, in.Amount.Cents, in.Date.String(), in.Category, in.ID, accountID)
	if err != nil {
		return fmt.Errorf("update income: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteIncome(ctx context.Context, accountID, id string) error {
	return r.deleteRecord(ctx, "incomes", accountID, id)
}

const getIncomeSQL = `
SELECT id, description, amount_cents, date, category
FROM incomes WHERE id = ? AND account_id = ?`

func (r *SQLiteRepository) GetIncome(ctx context.Context, accountID, id string) (core.Income, error) {
	var in core.Income
	var date string
	err := r.db.QueryRowContext(ctx, getIncomeSQL, id, accountID).
		Scan(&in.ID, &in.Description, &in.Amount.Cents, &date, &in.Category)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Income{}, ErrNotFound
	}
	if err != nil {
		return core.Income{}, fmt.Errorf("get income: %w", err)
	}
	in.Date, _ = core.ParseDate(date)
	return in, nil
}

const listIncomesSQL = `
SELECT id, description, amount_cents, date, category
FROM incomes WHERE account_id = ?
ORDER BY date DESC, created_at DESC`

func (r *SQLiteRepository) ListIncomes(ctx context.Context, accountID string) ([]core.Income, error) {
	rows, err := r.db.QueryContext(ctx, listIncomesSQL, accountID)
	if err != nil {
		return nil, fmt.Errorf("list incomes: %w", err)
	}
	defer rows.Close()

	incomes := []core.Income{}
	for rows.Next() {
		var in core.Income
		var date string
		if err := rows.Scan(&in.ID, &in.Description, &in.Amount.Cents, &date, &in.Category); err != nil {
			return nil, fmt.Errorf("scan income: %w", err)
		}
		in.Date, _ = core.ParseDate(date)
		incomes = append(incomes, in)
	}
	return incomes, rows.Err()
}

const createPlannedExpenseSQL = `
INSERT INTO planned_expenses (id, account_id, name, category, amount_cents, due_date)
VALUES (?, ?, ?, ?, ?, ?)`

func (r *SQLiteRepository) CreatePlannedExpense(ctx context.Context, accountID string, p core.PlannedExpense) error {
	_, err := r.db.ExecContext(ctx, createPlannedExpenseSQL,
		p.ID, accountID, p.Name, p.Category, p.Amount.Cents, p.DueDate)
	if err != nil {
		return fmt.Errorf("create planned expense: %w", err)
	}

	slog.InfoContext(ctx, "Planned expense saved",
		"record_id", p.ID,
		"account_id", accountID,
		"amount_cents", p.Amount.Cents,
		"category", p.Category)
	return nil
}

const updatePlannedExpenseSQL = `
UPDATE planned_expenses
SET name = ?, category = ?, amount_cents = ?, due_date = ?,
    sync_status = 'pending', version = version + 1, updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND account_id = ?`

func (r *SQLiteRepository) UpdatePlannedExpense(ctx context.Context, accountID string, p core.PlannedExpense) error {
	res, err := r.db.ExecContext(ctx, updatePlannedExpenseSQL,
		p.Name, p.Category, p.Amount.Cents, p.DueDate, p.ID, accountID)
	if err != nil {
		return fmt.Errorf("update planned expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeletePlannedExpense(ctx context.Context, accountID, id string) error {
	return r.deleteRecord(ctx, "planned_expenses", accountID, id)
}

const getPlannedExpenseSQL = `
SELECT id, name, category, amount_cents, due_date
FROM planned_expenses WHERE id = ? AND account_id = ?`

func (r *SQLiteRepository) GetPlannedExpense(ctx context.Context, accountID, id string) (core.PlannedExpense, error) {
	var p core.PlannedExpense
	err := r.db.QueryRowContext(ctx, getPlannedExpenseSQL, id, accountID).
		Scan(&p.ID, &p.Name, &p.Category, &p.Amount.Cents, &p.DueDate)
	if errors.Is(err, sql.ErrNoRows) {
		return core.PlannedExpense{}, ErrNotFound
	}
	if err != nil {
		return core.PlannedExpense{}, fmt.Errorf("get planned expense: %w", err)
	}
	return p, nil
}

const listPlannedExpensesSQL = `
SELECT id, name, category, amount_cents, due_date
FROM planned_expenses WHERE account_id = ?
ORDER BY category, name`

func (r *SQLiteRepository) ListPlannedExpenses(ctx context.Context, accountID string) ([]core.PlannedExpense, error) {
	rows, err := r.db.QueryContext(ctx, listPlannedExpensesSQL, accountID)
	if err != nil {
		return nil, fmt.Errorf("list planned expenses: %w", err)
	}
	defer rows.Close()

	expenses := []core.PlannedExpense{}
	for rows.Next() {
		var p core.PlannedExpense
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Amount.Cents, &p.DueDate); err != nil {
			return nil, fmt.Errorf("scan planned expense: %w", err)
		}
		expenses = append(expenses, p)
	}
	return expenses, rows.Err()
}

const createCreditCardSQL = `
INSERT INTO credit_cards (id, account_id, card_name, bank, amount_cents, month, previous_month_cents)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (r *SQLiteRepository) CreateCreditCard(ctx context.Context, accountID string, c core.CreditCardStatement) error {
	_, err := r.db.ExecContext(ctx, createCreditCardSQL,
		c.ID, accountID, c.CardName, c.Bank, c.Amount.Cents, string(c.Month), prevCents(c.PreviousMonthAmount))
	if err != nil {
		return fmt.Errorf("create credit card statement: %w", err)
	}

	slog.InfoContext(ctx, "Credit card statement saved",
		"record_id", c.ID,
		"account_id", accountID,
		"amount_cents", c.Amount.Cents,
		"month", string(c.Month))
	return nil
}

const updateCreditCardSQL = `
UPDATE credit_cards
SET card_name = ?, bank = ?, amount_cents = ?, month = ?, previous_month_cents = ?,
    sync_status = 'pending', version = version + 1, updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND account_id = ?`

func (r *SQLiteRepository) UpdateCreditCard(ctx context.Context, accountID string, c core.CreditCardStatement) error {
	res, err := r.db.ExecContext(ctx, updateCreditCardSQL,
		c.CardName, c.Bank, c.Amount.Cents, string(c.Month), prevCents(c.PreviousMonthAmount), c.ID, accountID)
	if err != nil {
		return fmt.Errorf("update credit card statement: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteCreditCard(ctx context.Context, accountID, id string) error {
	return r.deleteRecord(ctx, "credit_cards", accountID, id)
}

const getCreditCardSQL = `
SELECT id, card_name, bank, amount_cents, month, previous_month_cents
FROM credit_cards WHERE id = ? AND account_id = ?`

func (r *SQLiteRepository) GetCreditCard(ctx context.Context, accountID, id string) (core.CreditCardStatement, error) {
	var c core.CreditCardStatement
	var month string
	var prev sql.NullInt64
	err := r.db.QueryRowContext(ctx, getCreditCardSQL, id, accountID).
		Scan(&c.ID, &c.CardName, &c.Bank, &c.Amount.Cents, &month, &prev)
	if errors.Is(err, sql.ErrNoRows) {
		return core.CreditCardStatement{}, ErrNotFound
	}
	if err != nil {
		return core.CreditCardStatement{}, fmt.Errorf("get credit card statement: %w", err)
	}
	c.Month = core.MonthKey(month)
	c.PreviousMonthAmount = prevMoney(prev)
	return c, nil
}

const listCreditCardsSQL = `
SELECT id, card_name, bank, amount_cents, month, previous_month_cents
FROM credit_cards WHERE account_id = ?
ORDER BY month DESC, bank, card_name`

const listCreditCardsByMonthSQL = `
SELECT id, card_name, bank, amount_cents, month, previous_month_cents
FROM credit_cards WHERE account_id = ? AND month = ?
ORDER BY bank, card_name`

func (r *SQLiteRepository) ListCreditCards(ctx context.Context, accountID string, month core.MonthKey) ([]core.CreditCardStatement, error) {
	var rows *sql.Rows
	var err error
	if month == "" {
		rows, err = r.db.QueryContext(ctx, listCreditCardsSQL, accountID)
	} else {
		rows, err = r.db.QueryContext(ctx, listCreditCardsByMonthSQL, accountID, string(month))
	}
	if err != nil {
		return nil, fmt.Errorf("list credit card statements: %w", err)
	}
	defer rows.Close()

	statements := []core.CreditCardStatement{}
	for rows.Next() {
		var c core.CreditCardStatement
		var m string
		var prev sql.NullInt64
		if err := rows.Scan(&c.ID, &c.CardName, &c.Bank, &c.Amount.Cents, &m, &prev); err != nil {
			return nil, fmt.Errorf("scan credit card statement: %w", err)
		}
		c.Month = core.MonthKey(m)
		c.PreviousMonthAmount = prevMoney(prev)
		statements = append(statements, c)
	}
	return statements, rows.Err()
}

// GetCreditCardMonthTotals sums statement amounts per month for the given window.
func (r *SQLiteRepository) GetCreditCardMonthTotals(ctx context.Context, accountID string, months []core.MonthKey) (map[core.MonthKey]core.Money, error) {
	totals := make(map[core.MonthKey]core.Money, len(months))
	if len(months) == 0 {
		return totals, nil
	}

	placeholders := strings.Repeat("?,", len(months))
	placeholders = placeholders[:len(placeholders)-1]
	query := fmt.Sprintf(`
SELECT month, SUM(amount_cents)
FROM credit_cards
WHERE account_id = ? AND month IN (%s)
GROUP BY month`, placeholders)

	args := make([]any, 0, len(months)+1)
	args = append(args, accountID)
	for _, m := range months {
		args = append(args, string(m))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get credit card month totals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var month string
		var cents int64
		if err := rows.Scan(&month, &cents); err != nil {
			return nil, fmt.Errorf("scan month total: %w", err)
		}
		totals[core.MonthKey(month)] = core.Money{Cents: cents}
	}
	return totals, rows.Err()
}

const createUtilitySQL = `
INSERT INTO utilities (id, account_id, name, category, amount_cents, due_date, previous_cents, exclude_from_split)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func (r *SQLiteRepository) CreateUtility(ctx context.Context, accountID string, u core.Utility) error {
	_, err := r.db.ExecContext(ctx, createUtilitySQL,
		u.ID, accountID, u.Name, u.Category, u.Amount.Cents, u.DueDate,
		prevCents(u.PreviousAmount), boolToInt(u.ExcludeFromSplit))
	if err != nil {
		return fmt.Errorf("create utility: %w", err)
	}

	slog.InfoContext(ctx, "Utility saved",
		"record_id", u.ID,
		"account_id", accountID,
		"amount_cents", u.Amount.Cents,
		"category", u.Category)
	return nil
}

const updateUtilitySQL = `
UPDATE utilities
SET name = ?, category = ?, amount_cents = ?, due_date = ?, previous_cents = ?, exclude_from_split = ?,
    sync_status = 'pending', version = version + 1, updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND account_id = ?`

func (r *SQLiteRepository) UpdateUtility(ctx context.Context, accountID string, u core.Utility) error {
	res, err := r.db.ExecContext(ctx, updateUtilitySQL,
		u.Name, u.Category, u.Amount.Cents, u.DueDate,
		prevCents(u.PreviousAmount), boolToInt(u.ExcludeFromSplit), u.ID, accountID)
	if err != nil {
		return fmt.Errorf("update utility: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteUtility(ctx context.Context, accountID, id string) error {
	return r.deleteRecord(ctx, "utilities", accountID, id)
}

const getUtilitySQL = `
SELECT id, name, category, amount_cents, due_date, previous_cents, exclude_from_split
FROM utilities WHERE id = ? AND account_id = ?`

func (r *SQLiteRepository) GetUtility(ctx context.Context, accountID, id string) (core.Utility, error) {
	var u core.Utility
	var prev sql.NullInt64
	var excluded int
	err := r.db.QueryRowContext(ctx, getUtilitySQL, id, accountID).
		Scan(&u.ID, &u.Name, &u.Category, &u.Amount.Cents, &u.DueDate, &prev, &excluded)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Utility{}, ErrNotFound
	}
	if err != nil {
		return core.Utility{}, fmt.Errorf("get utility: %w", err)
	}
	u.PreviousAmount = prevMoney(prev)
	u.ExcludeFromSplit = excluded != 0
	return u, nil
}

const listUtilitiesSQL = `
SELECT id, name, category, amount_cents, due_date, previous_cents, exclude_from_split
FROM utilities WHERE account_id = ?
ORDER BY category, name`

func (r *SQLiteRepository) ListUtilities(ctx context.Context, accountID string) ([]core.Utility, error) {
	rows, err := r.db.QueryContext(ctx, listUtilitiesSQL, accountID)
	if err != nil {
		return nil, fmt.Errorf("list utilities: %w", err)
	}
	defer rows.Close()

	utilities := []core.Utility{}
	for rows.Next() {
		var u core.Utility
		var prev sql.NullInt64
		var excluded int
		if err := rows.Scan(&u.ID, &u.Name, &u.Category, &u.Amount.Cents, &u.DueDate, &prev, &excluded); err != nil {
			return nil, fmt.Errorf("scan utility: %w", err)
		}
		u.PreviousAmount = prevMoney(prev)
		u.ExcludeFromSplit = excluded != 0
		utilities = append(utilities, u)
	}
	return utilities, rows.Err()
}

const upsertSalarySQL = `
INSERT INTO salaries (account_id, amount_cents, month)
VALUES (?, ?, ?)
ON CONFLICT(account_id) DO UPDATE SET
    amount_cents = excluded.amount_cents,
    month = excluded.month,
    sync_status = 'pending',
    version = version + 1,
    updated_at = CURRENT_TIMESTAMP`

func (r *SQLiteRepository) UpsertSalary(ctx context.Context, accountID string, s core.Salary) error {
	_, err := r.db.ExecContext(ctx, upsertSalarySQL, accountID, s.Amount.Cents, string(s.Month))
	if err != nil {
		return fmt.Errorf("upsert salary: %w", err)
	}

	slog.InfoContext(ctx, "Salary saved",
		"account_id", accountID,
		"amount_cents", s.Amount.Cents,
		"month", string(s.Month))
	return nil
}

const getSalarySQL = `
SELECT amount_cents, month FROM salaries WHERE account_id = ?`

func (r *SQLiteRepository) GetSalary(ctx context.Context, accountID string) (core.Salary, error) {
	var s core.Salary
	var month string
	err := r.db.QueryRowContext(ctx, getSalarySQL, accountID).
		Scan(&s.Amount.Cents, &month)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Salary{}, ErrNotFound
	}
	if err != nil {
		return core.Salary{}, fmt.Errorf("get salary: %w", err)
	}
	s.Month = core.MonthKey(month)
	return s, nil
}

// deleteRecord removes a row scoped to an account. The table name always
// comes from the fixed collection mapping, never from user input.
func (r *SQLiteRepository) deleteRecord(ctx context.Context, table, accountID, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ? AND account_id = ?", table)
	res, err := r.db.ExecContext(ctx, query, id, accountID)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func prevCents(m *core.Money) any {
	if m == nil {
		return nil
	}
	return m.Cents
}

func prevMoney(v sql.NullInt64) *core.Money {
	if !v.Valid {
		return nil
	}
	return &core.Money{Cents: v.Int64}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
