package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"financas/internal/amqp"
	"financas/internal/backup"
	"financas/internal/backup/google"
	"financas/internal/backup/memory"
	"financas/internal/config"
	"financas/internal/log"
	"financas/internal/storage"
	"financas/internal/worker"
)

func main() {
	_ = godotenv.Load()

	loggerCfg := log.DefaultConfig()
	loggerCfg.Component = log.ComponentWorker
	logger := log.New(loggerCfg)
	log.SetDefault(logger)

	logger.Info("Starting financas-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err.Error(), "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Without a spreadsheet the in-memory mirror keeps the worker loop
	// exercised in local runs.
	var (
		writer  backup.RecordWriter
		deleter backup.RecordDeleter
	)
	if cfg.BackupEnabled() {
		client, err := google.NewClient(ctx, google.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			CredentialsFile: cfg.GoogleCredentialsFile,
			CredentialsJSON: cfg.GoogleCredentialsJSON,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err.Error())
			os.Exit(1)
		}
		writer, deleter = client, client
		logger.Info("Google Sheets mirror initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		store := memory.New()
		writer, deleter = store, store
		logger.Info("Sheets mirror disabled - no GOOGLE_SPREADSHEET_ID provided, using in-memory mirror")
	}

	backupWorker := worker.NewBackupWorker(repo, writer, deleter, cfg.BackupBatchSize)

	logger.Info("Performing startup backup check...")
	if err := backupWorker.StartupCheck(ctx); err != nil {
		logger.Error("Startup backup check failed", log.FieldError, err.Error())
		// Keep running; the periodic pass retries
	}

	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
			os.Exit(1)
		}
		defer amqpClient.Close()

		go func() {
			handler := func(msg *amqp.RecordEvent) error {
				return backupWorker.HandleRecordEvent(ctx, msg)
			}
			if err := amqpClient.ConsumeRecordEvents(ctx, handler); err != nil {
				if err != context.Canceled {
					logger.Error("Event consumption failed", log.FieldError, err.Error())
				}
				cancel()
			}
		}()
	} else {
		logger.Info("AMQP disabled - relying on the periodic backup pass only")
	}

	// Safety net for events lost while the worker was down.
	go func() {
		ticker := time.NewTicker(cfg.BackupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := backupWorker.ProcessPending(ctx); err != nil {
					logger.Error("Periodic backup pass failed", log.FieldError, err.Error())
				}
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	cancel()
	logger.Info("Worker shutdown complete")
}
