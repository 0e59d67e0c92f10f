package google

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"tesoretto/internal/core"
)

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

// parseAmountCell reads a money cell as returned by the Sheets API: either a
// number or a formatted string such as "€ 1.234,50" or "12.5".
func parseAmountCell(v any) (core.Money, error) {
	switch n := v.(type) {
	case float64:
		m := core.FromDecimal(decimal.NewFromFloat(n))
		if m.Cents <= 0 {
			return core.Money{}, core.ErrInvalidAmount
		}
		return m, nil
	case string:
		return core.ParseAmount(normalizeAmount(n))
	default:
		return core.ParseAmount(normalizeAmount(fmt.Sprint(v)))
	}
}

// normalizeAmount strips currency symbols and thousands separators. When both
// separators appear, the last one is the decimal separator.
func normalizeAmount(s string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("€", "", "$", "", " ", "", "\u00a0", "").Replace(s)
	dot, comma := strings.LastIndex(s, "."), strings.LastIndex(s, ",")
	switch {
	case dot >= 0 && comma >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
	case dot >= 0 && comma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	}
	return s
}

func isHeader(row []string) bool {
	return len(row) > 0 && strings.EqualFold(row[0], "ID")
}

func parseExpenseRows(values [][]any) ([]core.Expense, int) {
	var (
		out     []core.Expense
		skipped int
	)
	for _, raw := range values {
		row := toStrings(raw)
		if len(row) == 0 || isHeader(row) {
			continue
		}
		if len(raw) < 4 {
			skipped++
			continue
		}
		date, err := core.ParseDate(safeGet(row, 1))
		if err != nil {
			skipped++
			continue
		}
		amount, err := parseAmountCell(raw[3])
		if err != nil {
			skipped++
			continue
		}
		out = append(out, core.Expense{
			ID:          safeGet(row, 0),
			Date:        date,
			Description: safeGet(row, 2),
			Amount:      amount,
			Category:    safeGet(row, 4),
			WalletID:    safeGet(row, 5),
		})
	}
	return out, skipped
}

func parseIncomeRows(values [][]any) ([]core.Income, int) {
	var (
		out     []core.Income
		skipped int
	)
	for _, raw := range values {
		row := toStrings(raw)
		if len(row) == 0 || isHeader(row) {
			continue
		}
		if len(raw) < 4 {
			skipped++
			continue
		}
		date, err := core.ParseDate(safeGet(row, 1))
		if err != nil {
			skipped++
			continue
		}
		amount, err := parseAmountCell(raw[3])
		if err != nil {
			skipped++
			continue
		}
		out = append(out, core.Income{
			ID:       safeGet(row, 0),
			Date:     date,
			Source:   safeGet(row, 2),
			Amount:   amount,
			WalletID: safeGet(row, 4),
		})
	}
	return out, skipped
}

func parseBudgetRows(values [][]any) ([]core.BudgetGoal, int) {
	var (
		out     []core.BudgetGoal
		skipped int
	)
	for _, raw := range values {
		row := toStrings(raw)
		if len(row) == 0 || isHeader(row) {
			continue
		}
		if len(raw) < 3 {
			skipped++
			continue
		}
		limit, err := parseAmountCell(raw[2])
		if err != nil {
			skipped++
			continue
		}
		out = append(out, core.BudgetGoal{ID: safeGet(row, 0), Category: safeGet(row, 1), Limit: limit})
	}
	return out, skipped
}
