// Package worker runs the periodic dataset sync in the background binary.
package worker

import (
	"context"
	"time"

	"fintrack/internal/log"
)

// Syncer pulls the remote datasets into the local mirror once.
type Syncer interface {
	Sync(ctx context.Context) error
}

// SyncWorker runs an initial sync on startup and then one per interval until
// the context is cancelled. Individual sync failures are logged and the loop
// keeps going; a flaky network must not kill the worker.
type SyncWorker struct {
	syncer   Syncer
	interval time.Duration
	logger   *log.Logger
}

func NewSyncWorker(syncer Syncer, interval time.Duration) *SyncWorker {
	return &SyncWorker{
		syncer:   syncer,
		interval: interval,
		logger:   log.New(log.DefaultConfig()).WithComponent(log.ComponentWorker),
	}
}

// Run blocks until ctx is cancelled.
func (w *SyncWorker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Sync worker started",
		log.FieldOperation, log.OpStartup,
		"interval", w.interval.String())

	w.syncOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "Sync worker stopping",
				log.FieldOperation, log.OpShutdown)
			return ctx.Err()
		case <-ticker.C:
			w.syncOnce(ctx)
		}
	}
}

func (w *SyncWorker) syncOnce(ctx context.Context) {
	if err := w.syncer.Sync(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		w.logger.ErrorContext(ctx, "Sync failed", log.FieldError, err)
		return
	}
	w.logger.DebugContext(ctx, "Sync completed", log.FieldOperation, log.OpSync)
}
