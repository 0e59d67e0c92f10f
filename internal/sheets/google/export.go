package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	gsheet "google.golang.org/api/sheets/v4"

	"tesoretto/internal/achievements"
	"tesoretto/internal/core"
)

// Tab kinds, appended to the configured sheet base name.
const (
	TabExpenses     = "Expenses"
	TabIncome       = "Income"
	TabBudgets      = "Budgets"
	TabIous         = "IOUs"
	TabWishlist     = "Wishlist"
	TabWallets      = "Wallets"
	TabAchievements = "Achievements"
)

type table struct {
	kind string
	rows [][]any
}

func amountCell(m core.Money) any {
	return m.Decimal().InexactFloat64()
}

func dateCell(d core.Date) any {
	if d.IsZero() {
		return ""
	}
	return d.String()
}

// bundleTables lays out a bundle as header-first rows per tab.
func bundleTables(b core.DataBundle) []table {
	expenses := [][]any{{"ID", "Date", "Description", "Amount", "Category", "Wallet"}}
	for _, e := range b.Expenses {
		expenses = append(expenses, []any{e.ID, dateCell(e.Date), e.Description, amountCell(e.Amount), e.Category, e.WalletID})
	}
	income := [][]any{{"ID", "Date", "Source", "Amount", "Wallet"}}
	for _, in := range b.Income {
		income = append(income, []any{in.ID, dateCell(in.Date), in.Source, amountCell(in.Amount), in.WalletID})
	}
	budgets := [][]any{{"ID", "Category", "Limit"}}
	for _, bg := range b.Budgets {
		budgets = append(budgets, []any{bg.ID, bg.Category, amountCell(bg.Limit)})
	}
	ious := [][]any{{"ID", "Counterparty", "Amount", "Direction", "Paid", "Due date"}}
	for _, o := range b.Ious {
		ious = append(ious, []any{o.ID, o.Counterparty, amountCell(o.Amount), string(o.Direction), o.Paid, dateCell(o.DueDate)})
	}
	wishlist := [][]any{{"ID", "Name", "Target", "Saved"}}
	for _, w := range b.Wishlist {
		wishlist = append(wishlist, []any{w.ID, w.Name, amountCell(w.Target), amountCell(w.Saved)})
	}
	wallets := [][]any{{"ID", "Name", "Balance"}}
	for _, w := range b.Wallets {
		wallets = append(wallets, []any{w.ID, w.Name, amountCell(w.Balance)})
	}
	unlocked := [][]any{{"ID", "Title", "Unlocked at"}}
	for _, a := range b.Achievements {
		title := a.ID
		if d, ok := achievements.Lookup(a.ID); ok {
			title = d.Title
		}
		unlocked = append(unlocked, []any{a.ID, title, a.UnlockedAt.UTC().Format("2006-01-02 15:04:05")})
	}
	return []table{
		{TabExpenses, expenses},
		{TabIncome, income},
		{TabBudgets, budgets},
		{TabIous, ious},
		{TabWishlist, wishlist},
		{TabWallets, wallets},
		{TabAchievements, unlocked},
	}
}

// ExportBundle replaces the contents of every tab with b and returns the
// spreadsheet id. Missing tabs are created first.
func (e *Exporter) ExportBundle(ctx context.Context, userID string, b core.DataBundle) (string, error) {
	if e.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	tables := bundleTables(b)
	if err := e.ensureTabs(ctx, tables); err != nil {
		return "", err
	}

	clearReq := &gsheet.BatchClearValuesRequest{}
	update := &gsheet.BatchUpdateValuesRequest{ValueInputOption: "USER_ENTERED"}
	for _, t := range tables {
		tab := e.tabName(t.kind)
		clearReq.Ranges = append(clearReq.Ranges, a1(tab, "A:Z"))
		update.Data = append(update.Data, &gsheet.ValueRange{Range: a1(tab, "A1"), Values: t.rows})
	}

	if _, err := e.svc.Spreadsheets.Values.BatchClear(e.spreadsheetID, clearReq).Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear tabs: %w", err)
	}
	resp, err := e.svc.Spreadsheets.Values.BatchUpdate(e.spreadsheetID, update).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("write tabs: %w", err)
	}
	slog.InfoContext(ctx, "Bundle written to spreadsheet",
		"component", "sheets", "user_id", userID, "rows", resp.TotalUpdatedRows)
	return e.spreadsheetID, nil
}

func (e *Exporter) ensureTabs(ctx context.Context, tables []table) error {
	ss, err := e.svc.Spreadsheets.Get(e.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	have := map[string]bool{}
	for _, s := range ss.Sheets {
		if s.Properties != nil {
			have[s.Properties.Title] = true
		}
	}
	var reqs []*gsheet.Request
	for _, t := range tables {
		tab := e.tabName(t.kind)
		if have[tab] {
			continue
		}
		reqs = append(reqs, &gsheet.Request{AddSheet: &gsheet.AddSheetRequest{
			Properties: &gsheet.SheetProperties{Title: tab},
		}})
	}
	if len(reqs) == 0 {
		return nil
	}
	_, err = e.svc.Spreadsheets.BatchUpdate(e.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{Requests: reqs}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("create tabs: %w", err)
	}
	return nil
}

// ReadBundle reads the expense, income and budget tabs back into a bundle.
// Rows that do not parse are skipped and logged.
func (e *Exporter) ReadBundle(ctx context.Context) (core.DataBundle, error) {
	if e.svc == nil {
		return core.DataBundle{}, errors.New("sheets service not initialized")
	}
	ranges := []string{
		a1(e.tabName(TabExpenses), "A:F"),
		a1(e.tabName(TabIncome), "A:E"),
		a1(e.tabName(TabBudgets), "A:C"),
	}
	resp, err := e.svc.Spreadsheets.Values.BatchGet(e.spreadsheetID).Ranges(ranges...).Context(ctx).Do()
	if err != nil {
		return core.DataBundle{}, fmt.Errorf("read tabs: %w", err)
	}
	b := core.DataBundle{Version: core.BundleVersion}
	for i, vr := range resp.ValueRanges {
		if i >= len(ranges) {
			break
		}
		var skipped int
		switch i {
		case 0:
			b.Expenses, skipped = parseExpenseRows(vr.Values)
		case 1:
			b.Income, skipped = parseIncomeRows(vr.Values)
		case 2:
			b.Budgets, skipped = parseBudgetRows(vr.Values)
		}
		if skipped > 0 {
			slog.WarnContext(ctx, "Skipped unreadable spreadsheet rows", "component", "sheets", "range", ranges[i], "count", skipped)
		}
	}
	return b, nil
}
