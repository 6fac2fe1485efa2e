package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"financas/internal/amqp"
	"financas/internal/backup"
	"financas/internal/storage"
)

// Storage is the subset of the repository the worker needs.
type Storage interface {
	GetBackupRow(ctx context.Context, collection, id string) (storage.BackupRow, error)
	ListPendingBackups(ctx context.Context, limit int) ([]storage.PendingRecord, error)
	MarkBackedUp(ctx context.Context, collection, id string) error
	MarkBackupError(ctx context.Context, collection, id string) error
}

// BackupWorker mirrors local records to the off-site spreadsheet.
type BackupWorker struct {
	storage   Storage
	writer    backup.RecordWriter
	deleter   backup.RecordDeleter
	batchSize int
}

func NewBackupWorker(storage Storage, writer backup.RecordWriter, deleter backup.RecordDeleter, batchSize int) *BackupWorker {
	return &BackupWorker{
		storage:   storage,
		writer:    writer,
		deleter:   deleter,
		batchSize: batchSize,
	}
}

// HandleRecordEvent processes a single backup event from AMQP.
func (w *BackupWorker) HandleRecordEvent(ctx context.Context, msg *amqp.RecordEvent) error {
	slog.InfoContext(ctx, "Processing record event",
		"event_type", string(msg.Type),
		"collection", msg.Collection,
		"record_id", msg.ID)

	switch msg.Type {
	case amqp.EventSync:
		return w.mirrorRecord(ctx, msg.Collection, msg.ID)
	case amqp.EventDelete:
		return w.dropRecord(ctx, msg.Collection, msg.ID)
	default:
		// Unknown types are dropped rather than requeued forever
		slog.WarnContext(ctx, "Unknown record event type, skipping",
			"event_type", string(msg.Type))
		return nil
	}
}

func (w *BackupWorker) mirrorRecord(ctx context.Context, collection, id string) error {
	row, err := w.storage.GetBackupRow(ctx, collection, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Deleted before the event was consumed; nothing to mirror
			slog.InfoContext(ctx, "Record vanished before backup, skipping",
				"collection", collection, "record_id", id)
			return nil
		}
		return fmt.Errorf("load record for backup: %w", err)
	}

	ref, err := w.writer.AppendRecord(ctx, backup.Record{
		Collection: row.Collection,
		ID:         row.ID,
		AccountID:  row.AccountID,
		Values:     row.Values,
	})
	if err != nil {
		if markErr := w.storage.MarkBackupError(ctx, collection, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark backup error",
				"collection", collection, "record_id", id, "error", markErr)
		}
		return fmt.Errorf("append record to mirror: %w", err)
	}

	if err := w.storage.MarkBackedUp(ctx, collection, id); err != nil {
		// The mirror write worked; don't requeue
		slog.ErrorContext(ctx, "Failed to mark record as backed up",
			"collection", collection, "record_id", id, "error", err)
	}

	slog.InfoContext(ctx, "Record mirrored",
		"collection", collection,
		"record_id", id,
		"sheets_ref", ref)

	return nil
}

func (w *BackupWorker) dropRecord(ctx context.Context, collection, id string) error {
	if w.deleter == nil {
		slog.WarnContext(ctx, "No record deleter configured, skipping mirror deletion",
			"collection", collection, "record_id", id)
		return nil
	}

	if err := w.deleter.DeleteRecord(ctx, collection, id); err != nil {
		return fmt.Errorf("delete record from mirror: %w", err)
	}

	slog.InfoContext(ctx, "Record removed from mirror",
		"collection", collection, "record_id", id)
	return nil
}

// ProcessPending mirrors records still marked pending. This is the safety
// net for lost AMQP messages.
func (w *BackupWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.storage.ListPendingBackups(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list pending backups: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending backups", "count", len(pending))

	for _, p := range pending {
		if err := w.mirrorRecord(ctx, p.Collection, p.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror pending record",
				"collection", p.Collection, "record_id", p.ID, "error", err)
		}
	}

	return nil
}

// StartupCheck drains the pending queue at worker startup, fanning out a
// few workers over a larger batch to recover quickly from downtime.
func (w *BackupWorker) StartupCheck(ctx context.Context) error {
	pending, err := w.storage.ListPendingBackups(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("list pending backups for startup check: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending backups found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending backups on startup, processing...",
		"count", len(pending))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for _, p := range pending {
		g.Go(func() error {
			if err := w.mirrorRecord(gctx, p.Collection, p.ID); err != nil {
				slog.ErrorContext(gctx, "Failed to mirror record during startup",
					"collection", p.Collection, "record_id", p.ID, "error", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("startup backup check: %w", err)
	}

	slog.InfoContext(ctx, "Startup backup check completed", "total", len(pending))
	return nil
}
