package main

import (
	"context"
	"errors"
	"os"

	"fintrack/internal/cli"
	"fintrack/internal/export/sheets"
	"fintrack/internal/log"
	"fintrack/internal/notify"
	"fintrack/internal/services"
	"fintrack/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting fintrack-sync", log.FieldOperation, log.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)

	mirror := cli.InitMirror(logger, cfg.SQLiteDBPath)
	defer mirror.Close()

	client, err := cli.NewAPIClient(logger, cfg, func() {
		logger.Error("Session expired; log in with the fintrack CLI and restart the worker")
	})
	if err != nil {
		logger.Error("Failed to initialize API client", log.FieldError, err)
		os.Exit(1)
	}
	if !client.Authenticated() {
		logger.Error("No stored credentials; log in with the fintrack CLI first")
		os.Exit(1)
	}

	// AMQP publishing is optional: without a broker the worker still mirrors.
	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := notify.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to connect to AMQP, continuing without events", log.FieldError, err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			logger.Info("AMQP publisher initialized",
				"exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	ctx, cancel := cli.GracefulShutdown(logger)
	defer cancel()

	// Google Sheets export is optional too; when configured, every sync is
	// followed by a full export.
	var exporter *sheets.Exporter
	if cfg.GoogleSpreadsheetID != "" {
		exporter, err = sheets.NewFromEnv(ctx)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets exporter", log.FieldError, err)
			os.Exit(1)
		}
		logger.Info("Google Sheets exporter initialized",
			"spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	syncService := services.NewSyncService(client, mirror, publisher)

	var syncer worker.Syncer = syncService
	if exporter != nil {
		syncer = &exportingSyncer{
			sync:     syncService,
			mirror:   mirror,
			exporter: exporter,
			logger:   logger,
		}
	}

	w := worker.NewSyncWorker(syncer, cfg.SyncInterval)
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped", log.FieldError, err)
		os.Exit(1)
	}

	logger.Info("Worker stopped gracefully", log.FieldOperation, log.OpShutdown)
}

// exportingSyncer mirrors first, then pushes the fresh mirror to Google
// Sheets. An export failure does not fail the sync.
type exportingSyncer struct {
	sync     *services.SyncService
	mirror   services.MirrorStore
	exporter *sheets.Exporter
	logger   *log.Logger
}

func (s *exportingSyncer) Sync(ctx context.Context) error {
	if err := s.sync.Sync(ctx); err != nil {
		return err
	}
	transactions, err := s.mirror.ListTransactions(ctx)
	if err != nil {
		return err
	}
	if err := s.exporter.Export(ctx, transactions); err != nil {
		s.logger.Warn("Google Sheets export failed", log.FieldError, err)
	}
	return nil
}
