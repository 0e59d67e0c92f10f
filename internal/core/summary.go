package core

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// MonthOverview is a compact summary for a specific year+month.
type MonthOverview struct {
	Year       int
	Month      int // 1-12
	Total      Money
	ByCategory []CategoryAmount
}

// SummarizeMonth totals expenses for year/month, grouped by category in
// first-seen order.
func SummarizeMonth(expenses []Expense, year, month int) MonthOverview {
	ov := MonthOverview{Year: year, Month: month}
	index := map[string]int{}
	for _, e := range expenses {
		if !e.Date.InMonth(year, month) {
			continue
		}
		ov.Total = ov.Total.Add(e.Amount)
		i, ok := index[e.Category]
		if !ok {
			i = len(ov.ByCategory)
			index[e.Category] = i
			ov.ByCategory = append(ov.ByCategory, CategoryAmount{Name: e.Category})
		}
		ov.ByCategory[i].Amount = ov.ByCategory[i].Amount.Add(e.Amount)
	}
	return ov
}

// Spent returns the amount recorded for category, or zero.
func (ov MonthOverview) Spent(category string) Money {
	for _, c := range ov.ByCategory {
		if c.Name == category {
			return c.Amount
		}
	}
	return Money{}
}
