// Package reporting renders optimization runs as markdown, for terminals and
// API clients.
package reporting

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/aristath/previ-optimizer/internal/modules/allocation"
	"github.com/aristath/previ-optimizer/internal/modules/dataset"
	"github.com/aristath/previ-optimizer/internal/modules/optimization"
	"github.com/aristath/previ-optimizer/internal/modules/runs"
	"github.com/charmbracelet/glamour"
)

// FormatSharpe prints a Sharpe ratio with 2 decimals, or "n/a" when it is
// undefined or not finite.
func FormatSharpe(sharpe float64, defined bool) string {
	if !defined || math.IsInf(sharpe, 0) || math.IsNaN(sharpe) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", sharpe)
}

// Markdown renders the metrics and the allocation table of a run.
func Markdown(rec *runs.Record) string {
	var b strings.Builder

	b.WriteString("# Portfolio Metrics\n\n")
	fmt.Fprintf(&b, "- Compound Return: %.2f%% (%d years)\n", rec.CompoundReturn*100, rec.Years)
	fmt.Fprintf(&b, "- Sharpe Ratio: %s\n", FormatSharpe(rec.SharpeRatio, rec.SharpeDefined))
	fmt.Fprintf(&b, "- Max Position Size: %.0f%%\n", rec.MaxPositionSize*100)
	fmt.Fprintf(&b, "- Risk-Free Rate: %.2f%%\n", rec.RiskFreeRate*100)
	if !rec.Converged {
		fmt.Fprintf(&b, "- Solver: stopped before convergence (%s), best point kept\n", rec.Status)
	}
	b.WriteString("\n")

	writeAllocation(&b, rec.Payload.Allocation)

	if groups := allocation.ByCategory(rec.Payload.Allocation); len(groups) > 1 {
		b.WriteString("\n## By Category\n\n")
		b.WriteString("| Category | Weight (%) | Positions |\n")
		b.WriteString("|---|---:|---:|\n")
		for _, g := range groups {
			fmt.Fprintf(&b, "| %s | %.1f | %d |\n", cell(g.Category), g.WeightPct, g.Positions)
		}
	}
	return b.String()
}

func writeAllocation(w io.Writer, rows []allocation.Row) {
	fmt.Fprint(w, "## Asset Allocation\n\n")
	if len(rows) == 0 {
		fmt.Fprint(w, "_No position above the display threshold._\n")
		return
	}
	fmt.Fprint(w, "| Asset | ISIN | Weight (%) | Sharpe | Volatility (%) | Return (%) | Category |\n")
	fmt.Fprint(w, "|---|---|---:|---:|---:|---:|---|\n")
	for _, r := range rows {
		fmt.Fprintf(w, "| %s | %s | %.1f | %.2f | %.2f | %.2f | %s |\n",
			cell(r.Asset), r.ISIN, r.WeightPct, r.Sharpe, r.VolatilityPct, r.ReturnPct, cell(r.Category))
	}
}

// CategoriesMarkdown renders the category aggregate table.
func CategoriesMarkdown(categories []dataset.CategoryAggregate, years []int) string {
	var b strings.Builder

	b.WriteString("# Categories\n\n| Category |")
	for _, y := range years {
		fmt.Fprintf(&b, " %d |", y)
	}
	b.WriteString(" Volatility 3 years | Average Return | Instruments |\n|---|")
	for range years {
		b.WriteString("---:|")
	}
	b.WriteString("---:|---:|---:|\n")

	for _, c := range categories {
		fmt.Fprintf(&b, "| %s |", cell(c.Category))
		for _, m := range c.YearlyMeans {
			fmt.Fprintf(&b, " %.4f |", m)
		}
		fmt.Fprintf(&b, " %.4f | %.4f | %d |\n", c.Volatility, c.AverageReturn, c.Instruments)
	}
	return b.String()
}

// SweepMarkdown renders one line per position cap of a sweep.
func SweepMarkdown(entries []optimization.SweepEntry) string {
	var b strings.Builder

	b.WriteString("# Position Cap Sweep\n\n")
	b.WriteString("| Max Position (%) | Compound Return (%) | Sharpe | Positions | Status |\n")
	b.WriteString("|---:|---:|---:|---:|---|\n")
	for _, e := range entries {
		if e.Err != nil {
			fmt.Fprintf(&b, "| %.0f | | | | %s |\n", e.MaxPositionSize*100, cell(e.Err.Error()))
			continue
		}
		p := e.Portfolio
		status := "converged"
		if !p.Solve().Converged {
			status = "best effort (" + p.Solve().Status + ")"
		}
		fmt.Fprintf(&b, "| %.0f | %.2f | %s | %d | %s |\n",
			e.MaxPositionSize*100,
			p.CompoundReturn()*100,
			FormatSharpe(p.SharpeRatio(), p.SharpeDefined()),
			p.ActivePositions(),
			status,
		)
	}
	return b.String()
}

// RunsMarkdown renders the run history, newest first.
func RunsMarkdown(records []runs.Record) string {
	var b strings.Builder

	b.WriteString("# Optimization Runs\n\n")
	if len(records) == 0 {
		b.WriteString("_No run stored yet._\n")
		return b.String()
	}
	b.WriteString("| ID | Created | Max Position (%) | Compound Return (%) | Sharpe | Positions | Converged |\n")
	b.WriteString("|---|---|---:|---:|---:|---:|---|\n")
	for _, rec := range records {
		converged := "yes"
		if !rec.Converged {
			converged = "no"
		}
		fmt.Fprintf(&b, "| %s | %s | %.0f | %.2f | %s | %d | %s |\n",
			rec.ID,
			rec.CreatedAt.UTC().Format("2006-01-02 15:04"),
			rec.MaxPositionSize*100,
			rec.CompoundReturn*100,
			FormatSharpe(rec.SharpeRatio, rec.SharpeDefined),
			len(rec.Payload.Allocation),
			converged,
		)
	}
	return b.String()
}

// Render formats markdown for the terminal.
func Render(md string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(120),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return out, nil
}

// cell escapes table separators.
func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
