package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	portfolio "position_engine/internal/modules/portfolio/service"
)

func (c *ctl) journal() (*portfolio.Portfolio, error) {
	p := portfolio.NewPortfolio(c.cfg.Portfolio.JournalPath, nil)
	if err := p.Load(); err != nil {
		return nil, errors.Wrap(err, "load trade journal")
	}
	return p, nil
}

func (c *ctl) report(days int) error {
	p, err := c.journal()
	if err != nil {
		return err
	}
	sum := p.Summary()
	if sum.Trades == 0 {
		fmt.Fprintln(c.out, "trade journal is empty")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(c.out)
	t.SetTitle("PERFORMANCE")
	t.SetStyle(table.StyleRounded)
	t.AppendRows([]table.Row{
		{"Trades", sum.Trades},
		{"Winners / Losers", fmt.Sprintf("%d / %d", sum.Winners, sum.Losers)},
		{"Win rate", fmt.Sprintf("%.1f%%", sum.WinRate)},
		{"Total P&L", fmt.Sprintf("%.2f", sum.TotalPnL)},
		{"Avg trade", fmt.Sprintf("%.2f", sum.AvgTrade)},
		{"Avg win / loss", fmt.Sprintf("%.2f / %.2f", sum.AvgWin, sum.AvgLoss)},
		{"Profit factor", sum.ProfitFactorString()},
		{"Best / worst", fmt.Sprintf("%.2f / %.2f", sum.Best, sum.Worst)},
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 14, Align: text.AlignRight},
	})
	t.Render()

	daily := table.NewWriter()
	daily.SetOutputMirror(c.out)
	daily.SetTitle(fmt.Sprintf("LAST %d DAYS", days))
	daily.SetStyle(table.StyleRounded)
	daily.AppendHeader(table.Row{"Day", "Trades", "Win rate", "P&L", "PF"})
	for _, d := range p.DailyPerformance(c.now(), days) {
		daily.AppendRow(table.Row{d.Day, d.Trades, fmt.Sprintf("%.1f%%", d.WinRate), fmt.Sprintf("%.2f", d.TotalPnL), d.ProfitFactorString()})
	}
	daily.Render()

	bySym := table.NewWriter()
	bySym.SetOutputMirror(c.out)
	bySym.SetTitle("BY SYMBOL")
	bySym.SetStyle(table.StyleRounded)
	bySym.AppendHeader(table.Row{"Symbol", "Trades", "Win rate", "P&L", "Best", "Worst"})
	for _, s := range p.SymbolPerformance() {
		bySym.AppendRow(table.Row{s.Symbol, s.Trades, fmt.Sprintf("%.1f%%", s.WinRate), fmt.Sprintf("%.2f", s.TotalPnL), fmt.Sprintf("%.2f", s.Best), fmt.Sprintf("%.2f", s.Worst)})
	}
	bySym.Render()
	return nil
}

const (
	tradesSheet  = "Trades"
	summarySheet = "Summary"
)

// export пишет журнал в xlsx: лист сделок и лист сводки по символам.
func (c *ctl) export(path string) error {
	p, err := c.journal()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create %s", dir)
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), tradesSheet); err != nil {
		return errors.Wrap(err, "rename sheet")
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return errors.Wrap(err, "add sheet")
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"305496"}, Pattern: 1},
	})
	if err != nil {
		return errors.Wrap(err, "header style")
	}

	tradeCols := []any{"Closed (UTC)", "Symbol", "Side", "Entry", "Exit", "Size", "Reason", "Class", "Duration (h)", "P&L", "P&L %", "Winner", "Paper"}
	if err := writeRow(f, tradesSheet, 1, tradeCols); err != nil {
		return err
	}
	trades := p.Trades()
	for i, tr := range trades {
		row := []any{
			tr.ClosedAt.UTC().Format("2006-01-02 15:04:05"), tr.Symbol, string(tr.Direction),
			tr.EntryPrice, tr.ExitPrice, tr.Size, string(tr.ExitReason), string(tr.SignalClass),
			round2(tr.Duration.Hours()), round2(tr.PnL), round2(tr.PnLPct), tr.Winner, tr.Paper,
		}
		if err := writeRow(f, tradesSheet, i+2, row); err != nil {
			return err
		}
	}
	if err := styleHeader(f, tradesSheet, len(tradeCols), header); err != nil {
		return err
	}

	sumCols := []any{"Symbol", "Trades", "Winners", "Losers", "Win rate %", "P&L", "Avg trade", "Profit factor", "Best", "Worst"}
	if err := writeRow(f, summarySheet, 1, sumCols); err != nil {
		return err
	}
	perf := p.SymbolPerformance()
	for i, s := range perf {
		row := []any{s.Symbol, s.Trades, s.Winners, s.Losers, round2(s.WinRate), round2(s.TotalPnL), round2(s.AvgTrade), s.ProfitFactorString(), round2(s.Best), round2(s.Worst)}
		if err := writeRow(f, summarySheet, i+2, row); err != nil {
			return err
		}
	}
	total := p.Summary()
	totalRow := []any{"TOTAL", total.Trades, total.Winners, total.Losers, round2(total.WinRate), round2(total.TotalPnL), round2(total.AvgTrade), total.ProfitFactorString(), round2(total.Best), round2(total.Worst)}
	if err := writeRow(f, summarySheet, len(perf)+2, totalRow); err != nil {
		return err
	}
	if err := styleHeader(f, summarySheet, len(sumCols), header); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return errors.Wrapf(err, "save %s", path)
	}
	fmt.Fprintf(c.out, "exported %d trades to %s\n", len(trades), path)
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return errors.Wrapf(err, "write %s row %d", sheet, row)
	}
	return nil
}

func styleHeader(f *excelize.File, sheet string, cols, style int) error {
	last, err := excelize.CoordinatesToCellName(cols, 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return errors.Wrapf(err, "style %s header", sheet)
	}
	lastCol, _, _ := excelize.SplitCellName(last)
	return f.SetColWidth(sheet, "A", lastCol, 14)
}

func round2(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}
	return math.Round(v*100) / 100
}
