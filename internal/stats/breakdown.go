package stats

import (
	"sort"

	"fintrack/internal/core"
)

// UncategorizedLabel names transactions whose category is missing from the
// category set, mirroring the server's pie output.
const UncategorizedLabel = "Uncategorized"

// Breakdown groups transactions of the given flow by category into slices
// sorted descending by value, ties broken by category name ascending.
// Categories with no matching transactions are omitted.
func Breakdown(transactions []core.Transaction, categories []core.Category, flow core.Flow) []PieSlice {
	names := make(map[int64]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	totals := make(map[string]core.Money)
	for _, tx := range transactions {
		if tx.Flow != flow || tx.Amount.Cents == 0 {
			continue
		}
		name, ok := names[tx.CategoryID]
		if !ok {
			name = tx.CategoryName
		}
		if name == "" {
			name = UncategorizedLabel
		}
		totals[name] = totals[name].Add(tx.Amount)
	}

	slices := make([]PieSlice, 0, len(totals))
	for name, value := range totals {
		slices = append(slices, PieSlice{CategoryName: name, Value: value})
	}
	sort.Slice(slices, func(i, j int) bool {
		if slices[i].Value.Cents != slices[j].Value.Cents {
			return slices[i].Value.Cents > slices[j].Value.Cents
		}
		return slices[i].CategoryName < slices[j].CategoryName
	})
	return slices
}
