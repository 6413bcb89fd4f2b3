package stats

import "fintrack/internal/core"

// Progress computes the bounded completion state of a saving goal.
// The percentage is half-up rounded and clamped to 100; a goal stays complete
// even when contributions push the saved amount past the target.
func Progress(goal core.SavingGoal) (GoalProgress, error) {
	if goal.TargetAmount.Cents <= 0 {
		return GoalProgress{}, core.ErrInvalidGoal
	}
	saved := goal.CurrentSaved.Cents
	if saved < 0 {
		saved = 0
	}
	percent := roundPercent(saved, goal.TargetAmount.Cents)
	if percent > 100 {
		percent = 100
	}
	return GoalProgress{
		Percent:  percent,
		Complete: goal.CurrentSaved.Cents >= goal.TargetAmount.Cents,
	}, nil
}

// Contribute returns a copy of the goal with the amount added to the saved
// total. It performs no I/O; the caller persists the result via the API.
func Contribute(goal core.SavingGoal, amount core.Money) (core.SavingGoal, error) {
	if amount.Cents <= 0 {
		return goal, core.ErrInvalidAmount
	}
	goal.CurrentSaved = goal.CurrentSaved.Add(amount)
	return goal, nil
}
