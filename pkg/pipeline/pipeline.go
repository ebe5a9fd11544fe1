package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/odect/odect/internal/common"
	"github.com/odect/odect/pkg/attribution"
	"github.com/odect/odect/pkg/grid"
	"github.com/odect/odect/pkg/models"
	"github.com/odect/odect/pkg/psr"
	"github.com/odect/odect/pkg/segment"
	"gonum.org/v1/gonum/floats"
)

const hoursPerDay = 24

// Reconstructor builds one day of the generation matrix at a time.
type Reconstructor struct {
	logger  *slog.Logger
	config  *Config
	source  Source
	parser  *segment.Parser
	builder *grid.Builder
	engine  *attribution.Engine
	mixes   map[string]*CSVMix
}

// New returns a new Reconstructor.
func New(c *Config, source Source) (*Reconstructor, error) {
	if err := c.Target.Validate(); err != nil {
		return nil, err
	}

	mixes := make(map[string]*CSVMix)

	for _, n := range c.Neighbours {
		if err := n.Validate(); err != nil {
			return nil, err
		}

		if n.MixFile != "" {
			mixes[n.Name] = NewCSVMix(n.MixFile)
		}
	}

	return &Reconstructor{
		logger:  c.Logger,
		config:  c,
		source:  source,
		parser:  segment.NewParser(c.Logger),
		builder: grid.NewBuilder(c.Logger),
		engine:  attribution.New(c.Logger),
		mixes:   mixes,
	}, nil
}

// Fetch returns the 24 hourly rows of day. Zones and models whose data is
// unavailable contribute nothing. An error wrapping ErrFetchUnavailable is
// returned only when no data at all could be obtained.
func (r *Reconstructor) Fetch(ctx context.Context, day time.Time) (*models.Matrix, error) {
	day = common.Day(day)
	logger := r.logger.With("day", day.Format(time.DateOnly))

	defer common.TimeTrack(time.Now(), "Reconstruct day "+day.Format(time.DateOnly), logger)

	columns := make(map[string][]float64)
	add := func(col string, values []float64) {
		if existing, ok := columns[col]; ok {
			floats.Add(existing, values)

			return
		}

		columns[col] = values
	}

	var errs []error

	// Target zone generation
	target := r.config.Target
	if g, err := r.zoneGrid(ctx, target, day); err != nil {
		errs = append(errs, r.unavailable(logger, target.Name, err))
	} else {
		g.Drop(r.config.DropTypes...)

		for t, values := range g.Production {
			add(psr.Column(t.Ticker(), target.Name), values)
		}
	}

	// Imports attributed to the generation mix of each neighbour
	for _, n := range r.config.Neighbours {
		if !n.Active(day) {
			logger.Debug("Neighbour not tracked on this day", "zone", n.Name, "since", n.Since)

			continue
		}

		g, err := r.imports(ctx, n, day)
		if err != nil {
			errs = append(errs, r.unavailable(logger, n.Name, err))

			continue
		}

		for t, values := range g.Production {
			add(psr.Column(t.Ticker(), n.Name), values)
		}
	}

	// Modelled series
	for _, m := range r.config.Models {
		values, err := m.Hourly(ctx, day)
		if err != nil {
			errs = append(errs, r.unavailable(logger, m.Column(), err))

			continue
		}

		add(m.Column(), values)
	}

	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetchUnavailable, day.Format(time.DateOnly), errors.Join(errs...))
	}

	matrix := &models.Matrix{Rows: make([]models.Row, hoursPerDay)}
	for i := range hoursPerDay {
		row := models.Row{Timestamp: day.Add(time.Duration(i) * time.Hour), Values: make(map[string]float64, len(columns))}
		for col, values := range columns {
			row.Values[col] = values[i]
		}

		matrix.Rows[i] = row
	}

	return matrix, nil
}

// build fetches, parses and grids the generation of a zone at the
// resolution of its report.
func (r *Reconstructor) build(ctx context.Context, z Zone, day time.Time) (*grid.Grid, error) {
	report, err := r.source.Generation(ctx, z.Name, z.CodeOn(day), day)
	if err != nil {
		return nil, err
	}

	if !report.Start.IsZero() && !report.Start.Equal(day) {
		r.logger.Warn("Report does not start at the beginning of the day", "zone", z.Name, "start", report.Start, "day", day)
	}

	parsed, err := r.parser.Parse(report)
	if err != nil {
		return nil, err
	}

	g := r.builder.Build(z.Name, day, report.Resolution, parsed)
	for t, n := range g.Gaps {
		r.config.Metrics.Gaps(z.Name, string(t), n)
	}

	if r.config.NetGeneration {
		g = g.Net()
	}

	return g, nil
}

// zoneGrid returns the generation of a zone at hourly resolution.
func (r *Reconstructor) zoneGrid(ctx context.Context, z Zone, day time.Time) (*grid.Grid, error) {
	g, err := r.build(ctx, z, day)
	if err != nil {
		return nil, err
	}

	return g.Resample(time.Hour)
}

// imports returns the import from n attributed to the types of its
// generation mix, at hourly resolution. Neighbours with a mix file use it
// in place of their generation report.
func (r *Reconstructor) imports(ctx context.Context, n Zone, day time.Time) (*grid.Grid, error) {
	var (
		g   *grid.Grid
		err error
	)

	if mix, ok := r.mixes[n.Name]; ok {
		g, err = mix.Grid(ctx, n.Name, day)
	} else {
		g, err = r.build(ctx, n, day)
	}

	if err != nil {
		return nil, err
	}

	vol, err := r.source.Flows(ctx, r.config.Target.CodeOn(day), n.CodeOn(day), day)
	if err != nil {
		return nil, err
	}

	contribution, _, err := r.engine.Attribute(g, vol)
	if err != nil {
		return nil, err
	}

	return contribution.Resample(time.Hour)
}

func (r *Reconstructor) unavailable(logger *slog.Logger, zone string, err error) error {
	r.config.Metrics.ZoneFailed(zone)
	logger.Warn("Upstream data unavailable, contribution is zero filled", "zone", zone, "err", err)

	return fmt.Errorf("%w: %s: %w", ErrFetchUnavailable, zone, err)
}
