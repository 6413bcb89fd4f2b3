// Package stats derives display-ready figures from raw transaction, category
// and saving-goal records.
//
// Every function here is pure: the remote /stats/ endpoint computes the same
// figures server-side and stays the source of truth, these functions exist for
// local previews and the offline fallback, so their semantics must match the
// server exactly.
package stats

import "fintrack/internal/core"

// Bucketing selects the period width for Bucketize.
type Bucketing int

const (
	ByDay Bucketing = iota
	ByWeek
	ByMonth
)

// Tier classifies how concentrated spending is in the dominant category.
type Tier string

const (
	TierBalanced     Tier = "balanced"
	TierWatch        Tier = "watch"
	TierConcentrated Tier = "concentrated"
)

type (
	// Summary is the headline balance for a date range.
	Summary struct {
		TotalIncome  core.Money
		TotalExpense core.Money
		Balance      core.Money
	}

	// ChartPoint is one time bucket of an income/expense series.
	ChartPoint struct {
		Label   string
		Income  core.Money
		Expense core.Money
	}

	// PieSlice is one category's share of a flow-filtered breakdown.
	PieSlice struct {
		CategoryName string
		Value        core.Money
	}

	// GoalProgress is the bounded completion state of a saving goal.
	GoalProgress struct {
		Percent  int // always in [0,100]
		Complete bool
	}

	// HabitVerdict is the spending-concentration classification plus the
	// templated recommendations shown to the user.
	HabitVerdict struct {
		DominantCategory string
		DominantPercent  int
		Tier             Tier
		Recommendations  []string
	}
)

// roundPercent computes round(num/den*100) with half-up rounding.
// Both arguments must be non-negative and den must be positive.
func roundPercent(num, den int64) int {
	return int((num*100*2 + den) / (2 * den))
}
