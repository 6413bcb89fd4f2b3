package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/api"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/session"
	"fintrack/internal/stats"
)

const (
	statsCacheSize = 16
	statsCacheTTL  = time.Minute
)

// GoalView pairs a saving goal with its derived progress.
type GoalView struct {
	Goal     core.SavingGoal
	Progress stats.GoalProgress
}

// View is everything the dashboard screen renders in one shot.
type View struct {
	Summary         stats.Summary
	Chart           []stats.ChartPoint
	IncomePie       []stats.PieSlice
	ExpensePie      []stats.PieSlice
	Habits          *stats.HabitVerdict
	PotentialSaving core.Money
	Goals           []GoalView

	// Offline is set when the server was unreachable and everything above
	// was derived locally from the mirror.
	Offline      bool
	LastSyncedAt time.Time
}

// Dashboard assembles the stats view, preferring the server's numbers and
// falling back to locally derived ones when the network is down.
type Dashboard struct {
	remote     RemoteData
	mirror     MirrorStore
	statsCache *cache.LRU[api.Stats]
	catCache   *cache.LRU[[]core.Category]
	logger     *log.Logger
}

func NewDashboard(remote RemoteData, mirror MirrorStore) *Dashboard {
	return &Dashboard{
		remote:     remote,
		mirror:     mirror,
		statsCache: cache.New[api.Stats](statsCacheSize, statsCacheTTL),
		catCache:   cache.New[[]core.Category](1, statsCacheTTL),
		logger:     log.New(log.DefaultConfig()).WithComponent(log.ComponentAPI),
	}
}

// Load fetches the stats and goals for the given range. Network failures fall
// back to the mirror; an expired session is propagated as-is so the caller can
// prompt for a new login.
func (d *Dashboard) Load(ctx context.Context, from, to core.Date) (*View, error) {
	var (
		remoteStats api.Stats
		goals       []core.SavingGoal
	)

	cacheKey := from.Format("2006-01-02") + "|" + to.Format("2006-01-02")
	cached, haveCached := d.statsCache.Get(cacheKey)

	g, gctx := errgroup.WithContext(ctx)
	if !haveCached {
		g.Go(func() error {
			var err error
			remoteStats, err = d.remote.Stats(gctx, &from, &to)
			return err
		})
	}
	g.Go(func() error {
		var err error
		goals, err = d.remote.ListGoals(gctx)
		return err
	})

	err := g.Wait()
	switch {
	case err == nil:
		if haveCached {
			remoteStats = cached
		} else {
			d.statsCache.Set(cacheKey, remoteStats)
		}
		return d.buildView(remoteStats, goals, false, time.Time{}), nil
	case errors.Is(err, session.ErrSessionExpired):
		return nil, err
	case session.IsNetwork(err):
		d.logger.WarnContext(ctx, "Server unreachable, deriving stats from local mirror",
			log.FieldError, err)
		return d.loadOffline(ctx, from, to)
	default:
		return nil, err
	}
}

func (d *Dashboard) loadOffline(ctx context.Context, from, to core.Date) (*View, error) {
	transactions, err := d.mirror.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("read mirrored transactions: %w", err)
	}
	categories, err := d.mirror.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("read mirrored categories: %w", err)
	}
	goals, err := d.mirror.ListGoals(ctx)
	if err != nil {
		return nil, fmt.Errorf("read mirrored goals: %w", err)
	}
	syncedAt, err := d.mirror.LastSyncedAt(ctx)
	if err != nil {
		return nil, fmt.Errorf("read last sync time: %w", err)
	}

	local := api.Stats{
		Summary:    stats.Summarize(transactions, from, to),
		Chart:      stats.Bucketize(transactions, from, to, stats.ByDay),
		IncomePie:  stats.Breakdown(transactions, categories, core.Income),
		ExpensePie: stats.Breakdown(transactions, categories, core.Expense),
	}
	return d.buildView(local, goals, true, syncedAt), nil
}

func (d *Dashboard) buildView(s api.Stats, goals []core.SavingGoal, offline bool, syncedAt time.Time) *View {
	view := &View{
		Summary:      s.Summary,
		Chart:        s.Chart,
		IncomePie:    s.IncomePie,
		ExpensePie:   s.ExpensePie,
		Offline:      offline,
		LastSyncedAt: syncedAt,
	}

	if verdict, err := stats.Analyze(s.ExpensePie); err == nil {
		view.Habits = &verdict
		view.PotentialSaving = stats.PotentialSaving(s.ExpensePie[0], stats.DefaultCutPercent)
	}

	for _, goal := range goals {
		progress, err := stats.Progress(goal)
		if err != nil {
			// A goal with a non-positive target renders without a bar.
			progress = stats.GoalProgress{}
		}
		view.Goals = append(view.Goals, GoalView{Goal: goal, Progress: progress})
	}
	return view
}

// Categories returns the category list, cached for a minute.
func (d *Dashboard) Categories(ctx context.Context) ([]core.Category, error) {
	if cached, ok := d.catCache.Get("categories"); ok {
		return cached, nil
	}
	categories, err := d.remote.ListCategories(ctx)
	if err != nil {
		if session.IsNetwork(err) {
			return d.mirror.ListCategories(ctx)
		}
		return nil, err
	}
	d.catCache.Set("categories", categories)
	return categories, nil
}

// Invalidate drops cached stats and categories. Called after any write that
// changes the underlying data.
func (d *Dashboard) Invalidate() {
	d.statsCache.Purge()
	d.catCache.Purge()
}
