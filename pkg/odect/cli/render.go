package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/odect/odect/internal/common"
	"github.com/odect/odect/pkg/emissions"
	"github.com/odect/odect/pkg/psr"
	"github.com/odect/odect/pkg/store"
	"gonum.org/v1/gonum/floats"
)

// Output views.
const (
	viewAEF        = "aef"
	viewGeneration = "generation"
	viewEmissions  = "emissions"
	viewSummary    = "summary"
)

// Output formats.
const (
	formatTable    = "table"
	formatCSV      = "csv"
	formatMarkdown = "markdown"
	formatHTML     = "html"
	formatNone     = "none"
)

const timestampLayout = "2006-01-02 15:04"

// newTable returns a table writer with the app style.
func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()

	style := table.Style{
		Name:    "OdectStyleLight",
		Box:     table.StyleBoxLight,
		Color:   table.ColorOptionsDefault,
		HTML:    table.DefaultHTMLOptions,
		Options: table.OptionsDefault,
		Size:    table.SizeOptionsDefault,
		Title:   table.TitleOptionsDefault,
		Format: table.FormatOptions{
			Footer: text.FormatDefault,
			Header: text.FormatUpper,
			Row:    text.FormatDefault,
		},
	}

	t.SuppressTrailingSpaces()
	t.SetStyle(style)
	t.SetOutputMirror(w)

	return t
}

// aefTable returns the hourly total generation, emissions and AEF.
func aefTable(w io.Writer, r *emissions.Result) table.Writer {
	t := newTable(w)
	t.AppendHeader(table.Row{"Timestamp (UTC)", "Generation (MW)", "Emissions (t)", "AEF (kg/MWh)"})

	var gen, em float64

	for i, ts := range r.Timestamps {
		g, e := floats.Sum(r.Generation[i]), floats.Sum(r.Emissions[i])
		gen += g
		em += e

		t.AppendRow(table.Row{
			ts.Format(timestampLayout),
			fmt.Sprintf("%.1f", g),
			fmt.Sprintf("%.3f", e/1000),
			fmt.Sprintf("%.1f", r.AEF[i]),
		})
	}

	t.AppendFooter(table.Row{
		fmt.Sprintf("%d hours", r.Len()),
		fmt.Sprintf("%.1f MWh", gen),
		fmt.Sprintf("%.3f", em/1000),
		fmt.Sprintf("%.1f", r.MeanAEF()),
	})

	return t
}

// groupedTable returns values grouped into display groups per hour.
func groupedTable(w io.Writer, r *emissions.Result, values [][]float64, scale float64, format string) table.Writer {
	groups, grouped := r.Grouped(values)

	t := newTable(w)

	header := table.Row{"Timestamp (UTC)"}
	for _, g := range groups {
		header = append(header, g)
	}

	t.AppendHeader(header)

	totals := make([]float64, len(groups))

	for i, ts := range r.Timestamps {
		row := table.Row{ts.Format(timestampLayout)}
		for j, v := range grouped[i] {
			row = append(row, fmt.Sprintf(format, v/scale))
			totals[j] += v / scale
		}

		t.AppendRow(row)
	}

	footer := table.Row{"Total"}
	for _, v := range totals {
		footer = append(footer, fmt.Sprintf(format, v))
	}

	t.AppendFooter(footer)

	return t
}

// summaryTable returns the statistics of the stored series.
func summaryTable(w io.Writer, summaries []store.SeriesSummary) table.Writer {
	t := newTable(w)
	t.AppendHeader(table.Row{"Series", "Type", "Zone", "Mean (MW)", "Max (MW)", "Energy (MWh)", "Hours"})

	for _, s := range summaries {
		ticker, zone := psr.SplitColumn(s.Series)
		t.AppendRow(table.Row{
			s.Series,
			psr.DisplayName(ticker),
			zone,
			fmt.Sprintf("%.1f", s.Mean),
			fmt.Sprintf("%.1f", s.Max),
			fmt.Sprintf("%.1f", s.Energy),
			s.Hours,
		})
	}

	return t
}

// render writes the table in the requested format.
func render(t table.Writer, format string) {
	switch format {
	case formatCSV:
		t.RenderCSV()
	case formatMarkdown:
		t.RenderMarkdown()
	case formatHTML:
		t.RenderHTML()
	case formatNone:
	default:
		t.Render()
	}
}

// output renders view of the run.
func output(w io.Writer, view, format string, r *emissions.Result, summaries []store.SeriesSummary) {
	var t table.Writer

	switch view {
	case viewGeneration:
		t = groupedTable(w, r, r.Generation, 1, "%.1f")
	case viewEmissions:
		t = groupedTable(w, r, r.Emissions, 1000, "%.3f")
	case viewSummary:
		t = summaryTable(w, summaries)
	default:
		t = aefTable(w, r)
	}

	render(t, format)
}

// dayRange returns the range of days to process. Without explicit dates it
// is the last n days up to yesterday.
func dayRange(start, end string, n int, now time.Time) (time.Time, time.Time, error) {
	yesterday := now.UTC().Truncate(24*time.Hour).AddDate(0, 0, -1)

	to := yesterday

	if end != "" {
		d, err := parseDate(end)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}

		to = d
	}

	from := to.AddDate(0, 0, -(max(n, 1) - 1))

	if start != "" {
		d, err := parseDate(start)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}

		from = d
	}

	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s - %s", common.ErrInvalidRange, from.Format(time.DateOnly), to.Format(time.DateOnly))
	}

	return from, to, nil
}

// parseDate parses YYYYMMDD or YYYY-MM-DD dates.
func parseDate(s string) (time.Time, error) {
	if d, err := common.ParseDate(s); err == nil {
		return d, nil
	}

	return time.ParseInLocation(time.DateOnly, s, time.UTC)
}
