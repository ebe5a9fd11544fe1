package grid

import (
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/odect/odect/pkg/psr"
	"github.com/odect/odect/pkg/segment"
)

// column is a fixed size grid column with a presence mask.
type column struct {
	values []float64
	seen   []bool
}

func newColumn(slots int) *column {
	return &column{values: make([]float64, slots), seen: make([]bool, slots)}
}

// add sums points into the column. Positions are 1-based.
func (c *column) add(points []segment.Point) {
	for _, p := range points {
		idx := p.Position - 1
		if idx < 0 || idx >= len(c.values) {
			continue
		}

		c.values[idx] += float64(p.Quantity)
		c.seen[idx] = true
	}
}

// merge sums another column into c.
func (c *column) merge(o *column) {
	for i := range c.values {
		if o.seen[i] {
			c.values[i] += o.values[i]
			c.seen[i] = true
		}
	}
}

// fill returns the number of positions that were never seen. Unseen values
// are already zero.
func (c *column) fill() int {
	var gaps int

	for _, s := range c.seen {
		if !s {
			gaps++
		}
	}

	return gaps
}

// Builder builds grids from parsed sub-series.
type Builder struct {
	logger *slog.Logger
}

// NewBuilder returns a new Builder.
func NewBuilder(logger *slog.Logger) *Builder {
	return &Builder{logger: logger}
}

// Build merges the parsed sub-series of a zone-day into a grid. Sub-series of
// the same type and role are summed per position. Positions never reported
// for a type are zero filled and counted in Grid.Gaps or
// Grid.ConsumptionGaps.
func (b *Builder) Build(zone string, day time.Time, resolution time.Duration, parsed *segment.Parsed) *Grid {
	g := New(zone, day, resolution, parsed.Slots)

	prod := make(map[psr.Type]*column)
	cons := make(map[psr.Type]*column)

	for _, sub := range parsed.Series {
		cols := prod
		if sub.Role == segment.RoleConsumption {
			cols = cons
		}

		col, ok := cols[sub.Type]
		if !ok {
			col = newColumn(parsed.Slots)
			cols[sub.Type] = col
		}

		col.add(sub.Points)
	}

	prod = coalesce(prod)
	cons = coalesce(cons)

	for _, t := range slices.Sorted(maps.Keys(prod)) {
		col := prod[t]
		if gaps := col.fill(); gaps > 0 {
			g.Gaps[t] = gaps
			b.logger.Warn(
				"Incomplete generation column, missing positions are zero filled",
				"zone", zone, "day", day.Format(time.DateOnly), "type", t, "missing", gaps, "slots", parsed.Slots,
			)
		}

		g.Production[t] = col.values
	}

	for t, col := range cons {
		if gaps := col.fill(); gaps > 0 {
			g.ConsumptionGaps[t] = gaps
			b.logger.Debug(
				"Incomplete consumption column, missing positions are zero filled",
				"zone", zone, "day", day.Format(time.DateOnly), "type", t, "missing", gaps, "slots", parsed.Slots,
			)
		}

		g.Consumption[t] = col.values
	}

	return g
}

// coalesce merges columns of alias codes into the column of their canonical
// code.
func coalesce(cols map[psr.Type]*column) map[psr.Type]*column {
	out := make(map[psr.Type]*column, len(cols))

	// Sorted to keep merges deterministic
	for _, t := range slices.Sorted(maps.Keys(cols)) {
		c := psr.Canonical(t)
		if existing, ok := out[c]; ok {
			existing.merge(cols[t])

			continue
		}

		out[c] = cols[t]
	}

	return out
}
