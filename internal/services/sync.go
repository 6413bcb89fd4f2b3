// Package services wires the API client, the local mirror and the derivation
// engine into the operations the UI and the sync worker actually call.
package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/api"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/notify"
)

// RemoteData is the slice of the API client the services need.
type RemoteData interface {
	ListTransactions(ctx context.Context, filter api.TransactionFilter) ([]core.Transaction, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
	ListGoals(ctx context.Context) ([]core.SavingGoal, error)
	Stats(ctx context.Context, from, to *core.Date) (api.Stats, error)
}

// MirrorStore is the slice of the SQLite mirror the services need.
type MirrorStore interface {
	ReplaceTransactions(ctx context.Context, transactions []core.Transaction) error
	ReplaceCategories(ctx context.Context, categories []core.Category) error
	ReplaceGoals(ctx context.Context, goals []core.SavingGoal) error
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
	ListGoals(ctx context.Context) ([]core.SavingGoal, error)
	SetLastSyncedAt(ctx context.Context, at time.Time) error
	LastSyncedAt(ctx context.Context) (time.Time, error)
}

// EventPublisher announces completed syncs. May be nil (publishing disabled).
type EventPublisher interface {
	PublishDatasetSynced(ctx context.Context, msg *notify.DatasetSyncedMessage) error
}

// SyncService pulls the full remote datasets into the local mirror.
type SyncService struct {
	remote    RemoteData
	mirror    MirrorStore
	publisher EventPublisher
	logger    *log.Logger
}

func NewSyncService(remote RemoteData, mirror MirrorStore, publisher EventPublisher) *SyncService {
	return &SyncService{
		remote:    remote,
		mirror:    mirror,
		publisher: publisher,
		logger:    log.New(log.DefaultConfig()).WithComponent(log.ComponentSync),
	}
}

// Sync fetches transactions, categories and goals concurrently, replaces the
// mirror wholesale and publishes a dataset-synced event. A failed fetch of
// any dataset aborts the whole sync; the mirror is only written when all
// three pulls succeeded.
func (s *SyncService) Sync(ctx context.Context) error {
	var (
		transactions []core.Transaction
		categories   []core.Category
		goals        []core.SavingGoal
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		transactions, err = s.remote.ListTransactions(gctx, api.TransactionFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = s.remote.ListCategories(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		goals, err = s.remote.ListGoals(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("fetch remote datasets: %w", err)
	}

	if err := s.mirror.ReplaceTransactions(ctx, transactions); err != nil {
		return fmt.Errorf("mirror transactions: %w", err)
	}
	if err := s.mirror.ReplaceCategories(ctx, categories); err != nil {
		return fmt.Errorf("mirror categories: %w", err)
	}
	if err := s.mirror.ReplaceGoals(ctx, goals); err != nil {
		return fmt.Errorf("mirror goals: %w", err)
	}
	if err := s.mirror.SetLastSyncedAt(ctx, time.Now()); err != nil {
		return fmt.Errorf("record sync time: %w", err)
	}

	s.logger.InfoContext(ctx, "Datasets synced",
		log.FieldOperation, log.OpSync,
		"transactions", len(transactions),
		"categories", len(categories),
		"goals", len(goals))

	if s.publisher == nil {
		s.logger.DebugContext(ctx, "Event publisher not configured, skipping sync event")
		return nil
	}
	msg := notify.NewDatasetSyncedMessage(len(transactions), len(categories), len(goals))
	if err := s.publisher.PublishDatasetSynced(ctx, msg); err != nil {
		// The mirror is already consistent; a lost event is not worth failing
		// the sync over.
		s.logger.WarnContext(ctx, "Failed to publish sync event", log.FieldError, err)
	}
	return nil
}
