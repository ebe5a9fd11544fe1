// Package attribution allocates the electricity imported from a neighbour
// zone to generation types based on the neighbour's own generation mix.
package attribution

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/odect/odect/internal/common"
	"github.com/odect/odect/pkg/grid"
	"github.com/odect/odect/pkg/psr"
	"gonum.org/v1/gonum/floats"
)

// Custom errors.
var (
	ErrDivisionUndefined = errors.New("total generation is zero")
	ErrNoGeneration      = errors.New("neighbour grid has no generation")
	ErrVolumeLength      = errors.New("import volume does not cover the day")
)

// Volume is the import from one neighbour into the target zone, one value
// per slot of a day.
type Volume struct {
	Resolution time.Duration
	Values     []float64
}

// Stats counts the recovered conditions of one attribution.
type Stats struct {
	// UndefinedShares is the number of slots with zero total generation.
	UndefinedShares int
	// Exports is the number of slots with a negative import volume.
	Exports int
}

// Engine attributes import volumes.
type Engine struct {
	logger *slog.Logger
}

// New returns a new Engine.
func New(logger *slog.Logger) *Engine {
	return &Engine{logger: logger}
}

// Shares returns, per production type, the fractional share of that type in
// the total generation of each slot. Slots with zero total generation have a
// share of zero for every type.
func Shares(g *grid.Grid) (map[psr.Type][]float64, int) {
	total := g.Total()
	shares := make(map[psr.Type][]float64, len(g.Production))

	var undefined int

	for _, tot := range total {
		if tot == 0 {
			undefined++
		}
	}

	for t, values := range g.Production {
		share := make([]float64, g.Slots)

		for i, v := range values {
			if total[i] == 0 {
				continue
			}

			share[i] = common.SanitizeFloat(v / total[i])
		}

		shares[t] = share
	}

	return shares, undefined
}

// Attribute returns a grid of the neighbour's zone whose production columns
// hold the part of the import volume attributed to each type. Both inputs are
// aligned to the coarser of their resolutions first.
func (e *Engine) Attribute(neighbour *grid.Grid, vol Volume) (*grid.Grid, Stats, error) {
	var stats Stats

	if neighbour == nil || len(neighbour.Production) == 0 {
		return nil, stats, ErrNoGeneration
	}

	resolution := max(neighbour.Resolution, vol.Resolution)

	g, err := neighbour.Resample(resolution)
	if err != nil {
		return nil, stats, err
	}

	imports, err := grid.ResampleValues(vol.Values, vol.Resolution, resolution)
	if err != nil {
		return nil, stats, err
	}

	if len(imports) != g.Slots {
		return nil, stats, fmt.Errorf("%w: %d values for %d slots", ErrVolumeLength, len(imports), g.Slots)
	}

	// Net exports are not attributed
	for i, v := range imports {
		if v < 0 {
			imports[i] = 0
			stats.Exports++
		}
	}

	shares, undefined := Shares(g)
	stats.UndefinedShares = undefined

	out := grid.New(g.Zone, g.Day, resolution, g.Slots)
	for t, share := range shares {
		contribution := make([]float64, g.Slots)
		floats.MulTo(contribution, share, imports)
		out.Production[t] = contribution
	}

	if stats.UndefinedShares > 0 {
		e.logger.Warn(
			"Import attribution undefined for slots without generation, attributed zero",
			"zone", g.Zone, "day", g.Day.Format(time.DateOnly), "slots", stats.UndefinedShares,
			"err", ErrDivisionUndefined,
		)
	}

	if stats.Exports > 0 {
		e.logger.Debug("Net export slots are not attributed", "zone", g.Zone, "slots", stats.Exports)
	}

	return out, stats, nil
}
