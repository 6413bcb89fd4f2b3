package stats

import (
	"fmt"
	"time"

	"fintrack/internal/core"
)

// Summarize sums transactions by flow over the inclusive [from, to] date range.
// TotalIncome and TotalExpense are non-negative; Balance may be negative.
func Summarize(transactions []core.Transaction, from, to core.Date) Summary {
	var income, expense core.Money
	for _, tx := range transactions {
		if !inRange(tx.Date, from, to) {
			continue
		}
		switch tx.Flow {
		case core.Income:
			income = income.Add(tx.Amount)
		case core.Expense:
			expense = expense.Add(tx.Amount)
		}
	}
	return Summary{
		TotalIncome:  income,
		TotalExpense: expense,
		Balance:      income.Sub(expense),
	}
}

// Bucketize groups transactions into contiguous chronological buckets covering
// the inclusive [from, to] range. Buckets with no transactions still appear
// with zero values; transactions outside the range are excluded.
//
// Labels follow the server's chart format: days as "25.05", weeks as the
// "25.05" of the Monday the week starts on, months as "05.2025".
func Bucketize(transactions []core.Transaction, from, to core.Date, by Bucketing) []ChartPoint {
	if to.Time.Before(from.Time) {
		return nil
	}

	starts := bucketStarts(from, to, by)
	points := make([]ChartPoint, len(starts))
	index := make(map[time.Time]int, len(starts))
	for i, start := range starts {
		points[i] = ChartPoint{Label: bucketLabel(start, by)}
		index[start] = i
	}

	for _, tx := range transactions {
		if !inRange(tx.Date, from, to) {
			continue
		}
		i, ok := index[truncateToBucket(tx.Date.Time, from, by)]
		if !ok {
			continue
		}
		switch tx.Flow {
		case core.Income:
			points[i].Income = points[i].Income.Add(tx.Amount)
		case core.Expense:
			points[i].Expense = points[i].Expense.Add(tx.Amount)
		}
	}
	return points
}

func inRange(d, from, to core.Date) bool {
	return !d.Time.Before(from.Time) && !d.Time.After(to.Time)
}

// bucketStarts enumerates the start of every bucket touching [from, to].
func bucketStarts(from, to core.Date, by Bucketing) []time.Time {
	var starts []time.Time
	cur := truncateToBucket(from.Time, from, by)
	end := to.Time
	for !cur.After(end) {
		starts = append(starts, cur)
		cur = advance(cur, by)
	}
	return starts
}

func truncateToBucket(t time.Time, from core.Date, by Bucketing) time.Time {
	switch by {
	case ByWeek:
		// Weeks start on Monday.
		monday := t
		for monday.Weekday() != time.Monday {
			monday = monday.AddDate(0, 0, -1)
		}
		// The first bucket is anchored at the range start even mid-week.
		if monday.Before(from.Time) {
			return from.Time
		}
		return monday
	case ByMonth:
		first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
		if first.Before(from.Time) {
			return from.Time
		}
		return first
	default:
		return t
	}
}

func advance(t time.Time, by Bucketing) time.Time {
	switch by {
	case ByWeek:
		// Snap a partial first week to the following Monday.
		next := t.AddDate(0, 0, 1)
		for next.Weekday() != time.Monday {
			next = next.AddDate(0, 0, 1)
		}
		return next
	case ByMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, 1, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

func bucketLabel(start time.Time, by Bucketing) string {
	if by == ByMonth {
		return fmt.Sprintf("%02d.%d", int(start.Month()), start.Year())
	}
	return fmt.Sprintf("%02d.%02d", start.Day(), int(start.Month()))
}
