// Package storage keeps a local SQLite mirror of the remote datasets so the
// app can show transactions, goals and locally computed stats while offline.
// The mirror is replaced wholesale on each successful sync; the server stays
// the source of truth.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fintrack/internal/core"

	_ "modernc.org/sqlite"
)

const lastSyncedKey = "last_synced_at"

type Mirror struct {
	db *sql.DB
}

func NewMirror(dbPath string) (*Mirror, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Mirror{db: db}, nil
}

func (m *Mirror) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

// ReplaceTransactions swaps the mirrored transaction set atomically.
func (m *Mirror) ReplaceTransactions(ctx context.Context, transactions []core.Transaction) error {
	return m.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
			return fmt.Errorf("clear transactions: %w", err)
		}
		const q = `INSERT INTO transactions
			(id, flow, amount_cents, category_id, category_name, date, description, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
		for _, t := range transactions {
			created := ""
			if !t.CreatedAt.IsZero() {
				created = t.CreatedAt.UTC().Format(time.RFC3339)
			}
			_, err := tx.ExecContext(ctx, q,
				t.ID, string(t.Flow), t.Amount.Cents, t.CategoryID, t.CategoryName,
				t.Date.Format("2006-01-02"), t.Description, created)
			if err != nil {
				return fmt.Errorf("insert transaction %d: %w", t.ID, err)
			}
		}
		return nil
	})
}

// ListTransactions returns the mirrored transactions, newest first, matching
// the server's ordering.
func (m *Mirror) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	const q = `SELECT id, flow, amount_cents, category_id, category_name, date, description, created_at
		FROM transactions ORDER BY date DESC, id DESC`
	rows, err := m.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			t          core.Transaction
			flow       string
			date       string
			created    string
			amountCent int64
		)
		if err := rows.Scan(&t.ID, &flow, &amountCent, &t.CategoryID, &t.CategoryName,
			&date, &t.Description, &created); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Flow = core.Flow(flow)
		t.Amount = core.Money{Cents: amountCent}
		parsed, err := time.ParseInLocation("2006-01-02", date, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse transaction date %q: %w", date, err)
		}
		t.Date = core.Date{Time: parsed}
		if created != "" {
			t.CreatedAt, _ = time.Parse(time.RFC3339, created)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ReplaceCategories swaps the mirrored category set atomically.
func (m *Mirror) ReplaceCategories(ctx context.Context, categories []core.Category) error {
	return m.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM categories`); err != nil {
			return fmt.Errorf("clear categories: %w", err)
		}
		for _, c := range categories {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO categories (id, name, flow) VALUES (?, ?, ?)`,
				c.ID, c.Name, string(c.Flow))
			if err != nil {
				return fmt.Errorf("insert category %d: %w", c.ID, err)
			}
		}
		return nil
	})
}

func (m *Mirror) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT id, name, flow FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		var flow string
		if err := rows.Scan(&c.ID, &c.Name, &flow); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Flow = core.Flow(flow)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ReplaceGoals swaps the mirrored saving-goal set atomically.
func (m *Mirror) ReplaceGoals(ctx context.Context, goals []core.SavingGoal) error {
	return m.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM saving_goals`); err != nil {
			return fmt.Errorf("clear saving goals: %w", err)
		}
		const q = `INSERT INTO saving_goals
			(id, title, description, target_cents, current_saved_cents, is_active, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`
		for _, g := range goals {
			created := ""
			if !g.CreatedAt.IsZero() {
				created = g.CreatedAt.UTC().Format(time.RFC3339)
			}
			active := 0
			if g.IsActive {
				active = 1
			}
			_, err := tx.ExecContext(ctx, q,
				g.ID, g.Title, g.Description, g.TargetAmount.Cents,
				g.CurrentSaved.Cents, active, created)
			if err != nil {
				return fmt.Errorf("insert saving goal %d: %w", g.ID, err)
			}
		}
		return nil
	})
}

// ListGoals returns the mirrored goals, active ones first.
func (m *Mirror) ListGoals(ctx context.Context) ([]core.SavingGoal, error) {
	const q = `SELECT id, title, description, target_cents, current_saved_cents, is_active, created_at
		FROM saving_goals ORDER BY is_active DESC, id`
	rows, err := m.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list saving goals: %w", err)
	}
	defer rows.Close()

	var out []core.SavingGoal
	for rows.Next() {
		var (
			g       core.SavingGoal
			target  int64
			saved   int64
			active  int
			created string
		)
		if err := rows.Scan(&g.ID, &g.Title, &g.Description, &target, &saved, &active, &created); err != nil {
			return nil, fmt.Errorf("scan saving goal: %w", err)
		}
		g.TargetAmount = core.Money{Cents: target}
		g.CurrentSaved = core.Money{Cents: saved}
		g.IsActive = active != 0
		if created != "" {
			g.CreatedAt, _ = time.Parse(time.RFC3339, created)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// SetLastSyncedAt records when the last full sync completed.
func (m *Mirror) SetLastSyncedAt(ctx context.Context, at time.Time) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO sync_state (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		lastSyncedKey, at.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("set last synced at: %w", err)
	}
	return nil
}

// LastSyncedAt returns the completion time of the last full sync, or zero
// when no sync has happened yet.
func (m *Mirror) LastSyncedAt(ctx context.Context) (time.Time, error) {
	var value string
	err := m.db.QueryRowContext(ctx,
		`SELECT value FROM sync_state WHERE key = ?`, lastSyncedKey).Scan(&value)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get last synced at: %w", err)
	}
	at, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse last synced at %q: %w", value, err)
	}
	return at, nil
}

func (m *Mirror) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
