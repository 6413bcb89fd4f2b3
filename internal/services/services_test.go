package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"fintrack/internal/api"
	"fintrack/internal/core"
	"fintrack/internal/notify"
	"fintrack/internal/session"
	"fintrack/internal/stats"
)

type fakeRemote struct {
	transactions []core.Transaction
	categories   []core.Category
	goals        []core.SavingGoal
	stats        api.Stats

	txErr    error
	catErr   error
	goalsErr error
	statsErr error

	statsCalls int
	catCalls   int
}

func (f *fakeRemote) ListTransactions(_ context.Context, _ api.TransactionFilter) ([]core.Transaction, error) {
	return f.transactions, f.txErr
}

func (f *fakeRemote) ListCategories(_ context.Context) ([]core.Category, error) {
	f.catCalls++
	return f.categories, f.catErr
}

func (f *fakeRemote) ListGoals(_ context.Context) ([]core.SavingGoal, error) {
	return f.goals, f.goalsErr
}

func (f *fakeRemote) Stats(_ context.Context, _, _ *core.Date) (api.Stats, error) {
	f.statsCalls++
	return f.stats, f.statsErr
}

type fakeMirror struct {
	transactions []core.Transaction
	categories   []core.Category
	goals        []core.SavingGoal
	syncedAt     time.Time

	replacedTx bool
}

func (f *fakeMirror) ReplaceTransactions(_ context.Context, transactions []core.Transaction) error {
	f.transactions = transactions
	f.replacedTx = true
	return nil
}

func (f *fakeMirror) ReplaceCategories(_ context.Context, categories []core.Category) error {
	f.categories = categories
	return nil
}

func (f *fakeMirror) ReplaceGoals(_ context.Context, goals []core.SavingGoal) error {
	f.goals = goals
	return nil
}

func (f *fakeMirror) ListTransactions(_ context.Context) ([]core.Transaction, error) {
	return f.transactions, nil
}

func (f *fakeMirror) ListCategories(_ context.Context) ([]core.Category, error) {
	return f.categories, nil
}

func (f *fakeMirror) ListGoals(_ context.Context) ([]core.SavingGoal, error) {
	return f.goals, nil
}

func (f *fakeMirror) SetLastSyncedAt(_ context.Context, at time.Time) error {
	f.syncedAt = at
	return nil
}

func (f *fakeMirror) LastSyncedAt(_ context.Context) (time.Time, error) {
	return f.syncedAt, nil
}

type fakePublisher struct {
	published []*notify.DatasetSyncedMessage
	err       error
}

func (f *fakePublisher) PublishDatasetSynced(_ context.Context, msg *notify.DatasetSyncedMessage) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, msg)
	return nil
}

func tx(flow core.Flow, cents int64, category string, y, m, d int) core.Transaction {
	return core.Transaction{
		Flow:         flow,
		Amount:       core.Money{Cents: cents},
		CategoryName: category,
		Date:         core.NewDate(y, m, d),
	}
}

func TestSyncReplacesMirrorAndPublishes(t *testing.T) {
	remote := &fakeRemote{
		transactions: []core.Transaction{tx(core.Expense, 5000, "Food", 2024, 3, 1)},
		categories:   []core.Category{{ID: 1, Name: "Food", Flow: core.Expense}},
		goals:        []core.SavingGoal{{ID: 1, Title: "Vacation", TargetAmount: core.Money{Cents: 100000}}},
	}
	mirror := &fakeMirror{}
	publisher := &fakePublisher{}

	svc := NewSyncService(remote, mirror, publisher)
	if err := svc.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if len(mirror.transactions) != 1 || len(mirror.categories) != 1 || len(mirror.goals) != 1 {
		t.Fatalf("mirror not replaced: %d tx, %d cat, %d goals",
			len(mirror.transactions), len(mirror.categories), len(mirror.goals))
	}
	if mirror.syncedAt.IsZero() {
		t.Fatal("last synced timestamp not recorded")
	}
	if len(publisher.published) != 1 {
		t.Fatalf("published %d events, want 1", len(publisher.published))
	}
	msg := publisher.published[0]
	if msg.Transactions != 1 || msg.Categories != 1 || msg.Goals != 1 {
		t.Fatalf("event counts = %+v", msg)
	}
}

func TestSyncAbortsBeforeMirrorWriteOnFetchFailure(t *testing.T) {
	remote := &fakeRemote{
		transactions: []core.Transaction{tx(core.Expense, 5000, "Food", 2024, 3, 1)},
		goalsErr:     errors.New("boom"),
	}
	mirror := &fakeMirror{}

	svc := NewSyncService(remote, mirror, nil)
	if err := svc.Sync(context.Background()); err == nil {
		t.Fatal("expected error when a dataset fetch fails")
	}
	if mirror.replacedTx {
		t.Fatal("mirror was written despite a failed fetch")
	}
	if !mirror.syncedAt.IsZero() {
		t.Fatal("sync time recorded despite a failed fetch")
	}
}

func TestSyncToleratesPublishFailure(t *testing.T) {
	remote := &fakeRemote{}
	mirror := &fakeMirror{}
	publisher := &fakePublisher{err: errors.New("broker down")}

	svc := NewSyncService(remote, mirror, publisher)
	if err := svc.Sync(context.Background()); err != nil {
		t.Fatalf("Sync should not fail on publish error, got %v", err)
	}
	if mirror.syncedAt.IsZero() {
		t.Fatal("sync time should be recorded even when publishing fails")
	}
}

func TestSyncWithoutPublisher(t *testing.T) {
	svc := NewSyncService(&fakeRemote{}, &fakeMirror{}, nil)
	if err := svc.Sync(context.Background()); err != nil {
		t.Fatalf("Sync with nil publisher: %v", err)
	}
}

func TestDashboardLoadOnline(t *testing.T) {
	remote := &fakeRemote{
		stats: api.Stats{
			Summary: stats.Summary{
				TotalIncome:  core.Money{Cents: 1500000},
				TotalExpense: core.Money{Cents: 1200000},
				Balance:      core.Money{Cents: 300000},
			},
			ExpensePie: []stats.PieSlice{
				{CategoryName: "Housing", Value: core.Money{Cents: 720000}},
				{CategoryName: "Food", Value: core.Money{Cents: 480000}},
			},
		},
		goals: []core.SavingGoal{
			{ID: 1, Title: "Vacation", TargetAmount: core.Money{Cents: 100000}, CurrentSaved: core.Money{Cents: 33300}},
		},
	}

	dash := NewDashboard(remote, &fakeMirror{})
	view, err := dash.Load(context.Background(), core.NewDate(2024, 3, 1), core.NewDate(2024, 3, 31))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if view.Offline {
		t.Fatal("view should not be offline")
	}
	if view.Habits == nil {
		t.Fatal("expected a habit verdict")
	}
	if view.Habits.DominantCategory != "Housing" || view.Habits.DominantPercent != 60 {
		t.Fatalf("verdict = %+v", view.Habits)
	}
	if view.Habits.Tier != stats.TierConcentrated {
		t.Fatalf("tier = %q, want %q", view.Habits.Tier, stats.TierConcentrated)
	}
	// 20% of 7200.00 is 1440.00.
	if view.PotentialSaving.Cents != 144000 {
		t.Fatalf("potential saving = %d cents, want 144000", view.PotentialSaving.Cents)
	}
	if len(view.Goals) != 1 {
		t.Fatalf("got %d goals, want 1", len(view.Goals))
	}
	if view.Goals[0].Progress.Percent != 33 || view.Goals[0].Progress.Complete {
		t.Fatalf("goal progress = %+v", view.Goals[0].Progress)
	}
}

func TestDashboardLoadPropagatesSessionExpired(t *testing.T) {
	remote := &fakeRemote{statsErr: session.ErrSessionExpired}
	dash := NewDashboard(remote, &fakeMirror{})

	_, err := dash.Load(context.Background(), core.NewDate(2024, 3, 1), core.NewDate(2024, 3, 31))
	if !errors.Is(err, session.ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}
}

func TestDashboardFallsBackToMirrorOnNetworkFailure(t *testing.T) {
	netErr := &session.NetworkError{Err: errors.New("connection refused")}
	remote := &fakeRemote{statsErr: netErr, goalsErr: netErr}
	syncedAt := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	mirror := &fakeMirror{
		transactions: []core.Transaction{
			tx(core.Income, 1500000, "Salary", 2024, 3, 5),
			tx(core.Expense, 720000, "Housing", 2024, 3, 10),
		},
		categories: []core.Category{
			{ID: 1, Name: "Salary", Flow: core.Income},
			{ID: 2, Name: "Housing", Flow: core.Expense},
		},
		goals:    []core.SavingGoal{{ID: 1, Title: "Vacation", TargetAmount: core.Money{Cents: 100000}}},
		syncedAt: syncedAt,
	}

	dash := NewDashboard(remote, mirror)
	view, err := dash.Load(context.Background(), core.NewDate(2024, 3, 1), core.NewDate(2024, 3, 31))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !view.Offline {
		t.Fatal("view should be offline")
	}
	if !view.LastSyncedAt.Equal(syncedAt) {
		t.Fatalf("LastSyncedAt = %v, want %v", view.LastSyncedAt, syncedAt)
	}
	if view.Summary.TotalIncome.Cents != 1500000 || view.Summary.TotalExpense.Cents != 720000 {
		t.Fatalf("summary = %+v", view.Summary)
	}
	if view.Summary.Balance.Cents != 780000 {
		t.Fatalf("balance = %d", view.Summary.Balance.Cents)
	}
	if len(view.ExpensePie) != 1 || view.ExpensePie[0].CategoryName != "Housing" {
		t.Fatalf("expense pie = %+v", view.ExpensePie)
	}
	if len(view.Goals) != 1 {
		t.Fatalf("got %d goals, want 1", len(view.Goals))
	}
}

func TestDashboardCachesStatsPerRange(t *testing.T) {
	remote := &fakeRemote{}
	dash := NewDashboard(remote, &fakeMirror{})
	from, to := core.NewDate(2024, 3, 1), core.NewDate(2024, 3, 31)

	for i := 0; i < 3; i++ {
		if _, err := dash.Load(context.Background(), from, to); err != nil {
			t.Fatalf("Load %d: %v", i, err)
		}
	}
	if remote.statsCalls != 1 {
		t.Fatalf("stats fetched %d times, want 1", remote.statsCalls)
	}

	dash.Invalidate()
	if _, err := dash.Load(context.Background(), from, to); err != nil {
		t.Fatalf("Load after invalidate: %v", err)
	}
	if remote.statsCalls != 2 {
		t.Fatalf("stats fetched %d times after invalidate, want 2", remote.statsCalls)
	}
}

func TestDashboardCategoriesCachedAndFallsBack(t *testing.T) {
	remote := &fakeRemote{categories: []core.Category{{ID: 1, Name: "Food", Flow: core.Expense}}}
	dash := NewDashboard(remote, &fakeMirror{})

	for i := 0; i < 2; i++ {
		got, err := dash.Categories(context.Background())
		if err != nil {
			t.Fatalf("Categories: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("got %d categories", len(got))
		}
	}
	if remote.catCalls != 1 {
		t.Fatalf("categories fetched %d times, want 1", remote.catCalls)
	}

	offlineRemote := &fakeRemote{catErr: &session.NetworkError{Err: errors.New("timeout")}}
	mirror := &fakeMirror{categories: []core.Category{{ID: 2, Name: "Rent", Flow: core.Expense}}}
	dash = NewDashboard(offlineRemote, mirror)

	got, err := dash.Categories(context.Background())
	if err != nil {
		t.Fatalf("Categories offline: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Rent" {
		t.Fatalf("offline categories = %+v", got)
	}
}
