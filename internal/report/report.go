// Package report renders history summaries for the terminal.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/caevv/trendkeeper/internal/history"
	"github.com/caevv/trendkeeper/internal/metrics"
	"github.com/caevv/trendkeeper/internal/retention"
	"github.com/caevv/trendkeeper/internal/trend"
)

const msgNoSummary = "No summary available"

// Options controls rendering.
type Options struct {
	// Color forces colored trend directions on or off.
	Color bool

	// Retention, when set, is printed below the table.
	Retention *retention.Stats

	// Now is the reference for the relative "last updated" time. Zero
	// omits it.
	Now time.Time
}

// Render writes the summary of h as a table.
func Render(w io.Writer, fam metrics.Family, h *history.History, opts Options) error {
	var b strings.Builder

	fmt.Fprintf(&b, "=== %s ===\n", strings.ToUpper(fam.Name))
	fmt.Fprintf(&b, "%s snapshots", humanize.Comma(int64(len(h.Snapshots))))
	if h.LastUpdated != "" {
		fmt.Fprintf(&b, ", last updated %s", h.LastUpdated)
		if updated, err := history.ParseTimestamp(h.LastUpdated); err == nil && !opts.Now.IsZero() {
			fmt.Fprintf(&b, " (%s)", humanize.RelTime(updated, opts.Now, "ago", "from now"))
		}
	}
	b.WriteString("\n\n")

	if len(h.Summary) == 0 {
		b.WriteString(msgNoSummary + "\n")
	} else {
		b.WriteString(summaryTable(fam, h.Summary, opts.Color))
		b.WriteString("\n")
	}

	if opts.Retention != nil {
		b.WriteString("\n" + RetentionLine(*opts.Retention) + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RetentionLine formats the outcome of a retention pass on one line.
func RetentionLine(s retention.Stats) string {
	return fmt.Sprintf("retention: kept %d, removed %d (full %d, weekly %d, monthly %d, quarterly %d), malformed %d",
		s.Kept, s.Removed,
		s.Breakdown.Full, s.Breakdown.Weekly, s.Breakdown.Monthly, s.Breakdown.Quarterly,
		s.Malformed)
}

func summaryTable(fam metrics.Family, summaries map[string]history.Summary, colored bool) string {
	names := make([]string, 0, len(summaries))
	for name := range summaries {
		names = append(names, name)
	}
	sort.Strings(names)

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.DrawBorder = false

	tbl.AppendHeader(table.Row{"Metric", "Latest", "Trend", "Change", "Best", "Worst", "Average"})
	for _, name := range names {
		sum := summaries[name]
		policy := fam.Policy(name)
		tbl.AppendRow(table.Row{
			name,
			formatMeasurement(sum.Latest, policy),
			formatDirection(sum.Trend, colored),
			formatChange(sum.Trend, policy),
			formatOptional(sum.Best),
			formatOptional(sum.Worst),
			formatOptional(sum.Average),
		})
	}
	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d metrics", len(names))})

	return tbl.Render()
}

func formatMeasurement(m history.Measurement, policy trend.Policy) string {
	if m.Timing != nil {
		return formatTiming(m.Timing.Mean, m.Timing.Unit)
	}
	switch policy {
	case trend.Count:
		return humanize.Comma(int64(m.Value))
	case trend.HigherIsBetter:
		return fmt.Sprintf("%.2f%%", m.Value)
	default:
		return humanize.FtoaWithDigits(m.Value, 2)
	}
}

// unitScale converts a timing unit to seconds.
var unitScale = map[string]float64{
	"ns": 1e-9,
	"us": 1e-6,
	"µs": 1e-6,
	"ms": 1e-3,
	"s":  1,
}

func formatTiming(v float64, unit string) string {
	scale, ok := unitScale[unit]
	if !ok {
		return fmt.Sprintf("%s %s", humanize.FtoaWithDigits(v, 2), unit)
	}
	return humanize.SIWithDigits(v*scale, 2, "s")
}

func formatDirection(t *history.Trend, colored bool) string {
	if t == nil {
		return "-"
	}

	var c *color.Color
	switch t.Direction {
	case history.Improving, history.Growing:
		c = color.New(color.FgGreen)
	case history.Degrading, history.Shrinking:
		c = color.New(color.FgRed)
	case history.NoData:
		c = color.New(color.Faint)
	default:
		c = color.New(color.FgYellow)
	}
	if colored {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.Sprint(string(t.Direction))
}

func formatChange(t *history.Trend, policy trend.Policy) string {
	if t == nil || t.Direction == history.NoData {
		return "-"
	}
	switch policy {
	case trend.LowerIsBetter:
		return fmt.Sprintf("%+.2f%%", t.Change)
	case trend.HigherIsBetter:
		return fmt.Sprintf("%+.2f pts", t.Change)
	default:
		s := fmt.Sprintf("%+d", int64(t.Change))
		if t.GrowthRate != nil {
			s += fmt.Sprintf(" (%+.2f%%)", *t.GrowthRate)
		}
		return s
	}
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *v)
}
