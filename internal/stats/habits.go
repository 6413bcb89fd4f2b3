package stats

import (
	"fmt"

	"fintrack/internal/core"
)

// DefaultCutPercent is the reduction applied by the potential-saving card.
const DefaultCutPercent = 20

// Analyze classifies how concentrated spending is in the dominant category of
// an expense breakdown. The slices must already be sorted descending by value
// (the order Breakdown and the server both produce).
//
// Tier thresholds: a dominant share above 50% is concentrated, above 30% is
// worth watching, anything else is balanced. Exact boundary values fall into
// the lower tier.
func Analyze(slices []PieSlice) (HabitVerdict, error) {
	if len(slices) == 0 {
		return HabitVerdict{}, core.ErrInsufficientData
	}
	var total int64
	for _, s := range slices {
		total += s.Value.Cents
	}
	if total <= 0 {
		return HabitVerdict{}, core.ErrInsufficientData
	}

	top := slices[0]
	percent := roundPercent(top.Value.Cents, total)

	verdict := HabitVerdict{
		DominantCategory: top.CategoryName,
		DominantPercent:  percent,
	}
	switch {
	case percent > 50:
		verdict.Tier = TierConcentrated
		verdict.Recommendations = []string{
			fmt.Sprintf("Spending on %q makes up more than half of all your expenses.", top.CategoryName),
			"Try setting a monthly limit for this category.",
			"Consider alternatives that could bring this spending down.",
		}
	case percent > 30:
		verdict.Tier = TierWatch
		verdict.Recommendations = []string{
			fmt.Sprintf("The %q category stands out noticeably among your expenses.", top.CategoryName),
			"It is worth reviewing the individual transactions in this category.",
			"Even a small reduction can have a noticeable effect.",
		}
	default:
		verdict.Tier = TierBalanced
		verdict.Recommendations = []string{
			"Your spending is spread fairly evenly.",
			"Keep following your current financial model.",
			"You could focus on savings or investments.",
		}
	}
	return verdict, nil
}

// PotentialSaving returns the amount freed by cutting the dominant category's
// spend by cutPercent, half-up rounded to whole cents.
func PotentialSaving(top PieSlice, cutPercent int) core.Money {
	if cutPercent <= 0 || top.Value.Cents <= 0 {
		return core.Money{}
	}
	cents := (top.Value.Cents*int64(cutPercent)*2 + 100) / 200
	return core.Money{Cents: cents}
}
