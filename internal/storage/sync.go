package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"financas/internal/core"
)

// collectionTables maps external collection names to their tables.
var collectionTables = map[string]string{
	core.CollectionIncomes:         "incomes",
	core.CollectionPlannedExpenses: "planned_expenses",
	core.CollectionCreditCards:     "credit_cards",
	core.CollectionUtilities:       "utilities",
	core.CollectionSalary:          "salaries",
}

func tableFor(collection string) (string, error) {
	table, ok := collectionTables[collection]
	if !ok {
		return "", fmt.Errorf("unknown collection: %s", collection)
	}
	return table, nil
}

// PendingRecord identifies a row waiting to be mirrored to the backup sheet.
type PendingRecord struct {
	Collection string
	ID         string
	Version    int64
	CreatedAt  time.Time
}

const pendingByTableSQL = `
SELECT %s, version, created_at
FROM %s
WHERE sync_status = 'pending'
ORDER BY created_at
LIMIT ?`

// ListPendingBackups returns up to limit rows still waiting for backup,
// oldest first, across all collections.
func (r *SQLiteRepository) ListPendingBackups(ctx context.Context, limit int) ([]PendingRecord, error) {
	var pending []PendingRecord

	for _, collection := range []string{
		core.CollectionIncomes,
		core.CollectionPlannedExpenses,
		core.CollectionCreditCards,
		core.CollectionUtilities,
		core.CollectionSalary,
	} {
		if len(pending) >= limit {
			break
		}

		table := collectionTables[collection]
		idColumn := "id"
		if collection == core.CollectionSalary {
			idColumn = "account_id"
		}

		query := fmt.Sprintf(pendingByTableSQL, idColumn, table)
		rows, err := r.db.QueryContext(ctx, query, limit-len(pending))
		if err != nil {
			return nil, fmt.Errorf("list pending %s: %w", collection, err)
		}

		for rows.Next() {
			p := PendingRecord{Collection: collection}
			if err := rows.Scan(&p.ID, &p.Version, &p.CreatedAt); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan pending %s: %w", collection, err)
			}
			pending = append(pending, p)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("iterate pending %s: %w", collection, err)
		}
		rows.Close()
	}

	return pending, nil
}

// MarkBackedUp marks a record as successfully mirrored.
func (r *SQLiteRepository) MarkBackedUp(ctx context.Context, collection, id string) error {
	if err := r.setSyncStatus(ctx, collection, id, "synced"); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Record marked as backed up", "collection", collection, "record_id", id)
	return nil
}

// MarkBackupError marks a record whose mirror attempt failed.
func (r *SQLiteRepository) MarkBackupError(ctx context.Context, collection, id string) error {
	if err := r.setSyncStatus(ctx, collection, id, "error"); err != nil {
		return err
	}
	slog.WarnContext(ctx, "Record marked with backup error", "collection", collection, "record_id", id)
	return nil
}

func (r *SQLiteRepository) setSyncStatus(ctx context.Context, collection, id, status string) error {
	table, err := tableFor(collection)
	if err != nil {
		return err
	}

	idColumn := "id"
	if collection == core.CollectionSalary {
		idColumn = "account_id"
	}

	query := fmt.Sprintf("UPDATE %s SET sync_status = ? WHERE %s = ?", table, idColumn)
	res, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("set sync status on %s: %w", table, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// BackupRow is a flattened record ready to be written to the mirror sheet.
type BackupRow struct {
	Collection string
	ID         string
	AccountID  string
	Values     []any
}

// GetBackupRow loads a record by collection and id and flattens it for
// the backup writer. For the salary collection the id is the account id.
func (r *SQLiteRepository) GetBackupRow(ctx context.Context, collection, id string) (BackupRow, error) {
	row := BackupRow{Collection: collection, ID: id}

	switch collection {
	case core.CollectionIncomes:
		var in core.Income
		var date string
		err := r.db.QueryRowContext(ctx, `
SELECT id, account_id, description, amount_cents, date, category
FROM incomes WHERE id = ?`, id).
			Scan(&in.ID, &row.AccountID, &in.Description, &in.Amount.Cents, &date, &in.Category)
		if err != nil {
			return BackupRow{}, backupRowErr(collection, err)
		}
		row.Values = []any{in.ID, row.AccountID, in.Description, in.Amount.Cents, date, in.Category}

	case core.CollectionPlannedExpenses:
		var p core.PlannedExpense
		err := r.db.QueryRowContext(ctx, `
SELECT id, account_id, name, category, amount_cents, due_date
FROM planned_expenses WHERE id = ?`, id).
			Scan(&p.ID, &row.AccountID, &p.Name, &p.Category, &p.Amount.Cents, &p.DueDate)
		if err != nil {
			return BackupRow{}, backupRowErr(collection, err)
		}
		row.Values = []any{p.ID, row.AccountID, p.Name, p.Category, p.Amount.Cents, p.DueDate}

	case core.CollectionCreditCards:
		var c core.CreditCardStatement
		var month string
		var prev sql.NullInt64
		err := r.db.QueryRowContext(ctx, `
SELECT id, account_id, card_name, bank, amount_cents, month, previous_month_cents
FROM credit_cards WHERE id = ?`, id).
			Scan(&c.ID, &row.AccountID, &c.CardName, &c.Bank, &c.Amount.Cents, &month, &prev)
		if err != nil {
			return BackupRow{}, backupRowErr(collection, err)
		}
		row.Values = []any{c.ID, row.AccountID, c.CardName, c.Bank, c.Amount.Cents, month, nullableCents(prev)}

	case core.CollectionUtilities:
		var u core.Utility
		var prev sql.NullInt64
		var excluded int
		err := r.db.QueryRowContext(ctx, `
SELECT id, account_id, name, category, amount_cents, due_date, previous_cents, exclude_from_split
FROM utilities WHERE id = ?`, id).
			Scan(&u.ID, &row.AccountID, &u.Name, &u.Category, &u.Amount.Cents, &u.DueDate, &prev, &excluded)
		if err != nil {
			return BackupRow{}, backupRowErr(collection, err)
		}
		row.Values = []any{u.ID, row.AccountID, u.Name, u.Category, u.Amount.Cents, u.DueDate, nullableCents(prev), excluded != 0}

	case core.CollectionSalary:
		var cents int64
		var month string
		err := r.db.QueryRowContext(ctx, `
SELECT account_id, amount_cents, month FROM salaries WHERE account_id = ?`, id).
			Scan(&row.AccountID, &cents, &month)
		if err != nil {
			return BackupRow{}, backupRowErr(collection, err)
		}
		row.Values = []any{row.AccountID, cents, month}

	default:
		return BackupRow{}, fmt.Errorf("unknown collection: %s", collection)
	}

	return row, nil
}

func backupRowErr(collection string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("load %s backup row: %w", collection, err)
}

func nullableCents(v sql.NullInt64) any {
	if !v.Valid {
		return ""
	}
	return v.Int64
}
