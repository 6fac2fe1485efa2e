package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"financas/internal/amqp"
	"financas/internal/backup"
	"financas/internal/backup/memory"
	"financas/internal/core"
	"financas/internal/storage"
)

func newTestRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func createTestAccount(t *testing.T, repo *storage.SQLiteRepository) string {
	t.Helper()
	acct := storage.Account{
		ID:           "acct-worker",
		Email:        "worker@example.com",
		PasswordHash: "x",
		DisplayName:  "Worker",
	}
	if err := repo.CreateAccount(context.Background(), acct); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	return acct.ID
}

func createTestIncome(t *testing.T, repo *storage.SQLiteRepository, accountID string) core.Income {
	t.Helper()
	inc := core.Income{
		ID:          "inc-1",
		Description: "Consultoria",
		Amount:      core.Money{Cents: 250000},
		Date:        core.NewDate(2025, 3, 10),
		Category:    "Freelance",
	}
	if err := repo.CreateIncome(context.Background(), accountID, inc); err != nil {
		t.Fatalf("CreateIncome() error = %v", err)
	}
	return inc
}

func TestHandleRecordEvent_SyncMirrorsAndMarks(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	accountID := createTestAccount(t, repo)
	inc := createTestIncome(t, repo, accountID)

	store := memory.New()
	w := NewBackupWorker(repo, store, store, 10)

	event := amqp.NewSyncEvent(core.CollectionIncomes, inc.ID, 1)
	if err := w.HandleRecordEvent(ctx, event); err != nil {
		t.Fatalf("HandleRecordEvent() error = %v", err)
	}

	rows := store.Records(core.CollectionIncomes)
	if len(rows) != 1 {
		t.Fatalf("mirrored rows = %d, want 1", len(rows))
	}
	if rows[0].ID != inc.ID {
		t.Errorf("mirrored record ID = %q, want %q", rows[0].ID, inc.ID)
	}

	pending, err := repo.ListPendingBackups(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingBackups() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after sync = %d, want 0", len(pending))
	}
}

func TestHandleRecordEvent_SyncSkipsVanishedRecord(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	createTestAccount(t, repo)

	store := memory.New()
	w := NewBackupWorker(repo, store, store, 10)

	event := amqp.NewSyncEvent(core.CollectionIncomes, "gone", 1)
	if err := w.HandleRecordEvent(ctx, event); err != nil {
		t.Fatalf("HandleRecordEvent() error = %v, want nil for vanished record", err)
	}
	if got := len(store.Records(core.CollectionIncomes)); got != 0 {
		t.Errorf("mirrored rows = %d, want 0", got)
	}
}

type failingWriter struct{}

func (failingWriter) AppendRecord(ctx context.Context, rec backup.Record) (string, error) {
	return "", errors.New("mirror unavailable")
}

func TestHandleRecordEvent_WriterFailureMarksError(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	accountID := createTestAccount(t, repo)
	inc := createTestIncome(t, repo, accountID)

	w := NewBackupWorker(repo, failingWriter{}, nil, 10)

	event := amqp.NewSyncEvent(core.CollectionIncomes, inc.ID, 1)
	if err := w.HandleRecordEvent(ctx, event); err == nil {
		t.Fatal("HandleRecordEvent() error = nil, want error so the event is requeued")
	}

	// Marked as errored, no longer listed as pending.
	pending, err := repo.ListPendingBackups(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingBackups() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after writer failure = %d, want 0", len(pending))
	}
}

func TestHandleRecordEvent_Delete(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	accountID := createTestAccount(t, repo)
	inc := createTestIncome(t, repo, accountID)

	store := memory.New()
	w := NewBackupWorker(repo, store, store, 10)

	if err := w.HandleRecordEvent(ctx, amqp.NewSyncEvent(core.CollectionIncomes, inc.ID, 1)); err != nil {
		t.Fatalf("sync event error = %v", err)
	}
	if err := w.HandleRecordEvent(ctx, amqp.NewDeleteEvent(core.CollectionIncomes, inc.ID)); err != nil {
		t.Fatalf("delete event error = %v", err)
	}
	if got := len(store.Records(core.CollectionIncomes)); got != 0 {
		t.Errorf("mirrored rows after delete = %d, want 0", got)
	}
}

func TestHandleRecordEvent_DeleteWithoutDeleterIsSkipped(t *testing.T) {
	repo := newTestRepo(t)
	store := memory.New()
	w := NewBackupWorker(repo, store, nil, 10)

	if err := w.HandleRecordEvent(context.Background(), amqp.NewDeleteEvent(core.CollectionIncomes, "x")); err != nil {
		t.Fatalf("HandleRecordEvent() error = %v, want nil when no deleter configured", err)
	}
}

func TestProcessPending(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	accountID := createTestAccount(t, repo)
	createTestIncome(t, repo, accountID)
	if err := repo.UpsertSalary(ctx, accountID, core.Salary{
		Amount: core.Money{Cents: 500000},
		Month:  core.MonthKey("2025-03"),
	}); err != nil {
		t.Fatalf("UpsertSalary() error = %v", err)
	}

	store := memory.New()
	w := NewBackupWorker(repo, store, store, 10)

	if err := w.ProcessPending(ctx); err != nil {
		t.Fatalf("ProcessPending() error = %v", err)
	}

	if got := len(store.Records(core.CollectionIncomes)); got != 1 {
		t.Errorf("mirrored incomes = %d, want 1", got)
	}
	if got := len(store.Records(core.CollectionSalary)); got != 1 {
		t.Errorf("mirrored salaries = %d, want 1", got)
	}

	pending, err := repo.ListPendingBackups(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingBackups() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after ProcessPending = %d, want 0", len(pending))
	}
}

func TestStartupCheck(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	accountID := createTestAccount(t, repo)
	createTestIncome(t, repo, accountID)

	store := memory.New()
	w := NewBackupWorker(repo, store, store, 2)

	if err := w.StartupCheck(ctx); err != nil {
		t.Fatalf("StartupCheck() error = %v", err)
	}
	if got := len(store.Records(core.CollectionIncomes)); got != 1 {
		t.Errorf("mirrored incomes = %d, want 1", got)
	}
}
