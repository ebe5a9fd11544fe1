// Package grid merges typed sub-series of one zone and one day onto a fixed
// length position grid.
package grid

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/odect/odect/pkg/psr"
	"gonum.org/v1/gonum/floats"
)

// Custom errors.
var (
	ErrInvalidResampling = errors.New("resolutions are not multiples of each other")
	ErrSlotMismatch      = errors.New("column length does not match grid slots")
)

// Grid is the generation of one zone during one day. Every column holds
// exactly Slots values, the value of position p being at index p-1.
type Grid struct {
	Zone        string
	Day         time.Time
	Resolution  time.Duration
	Slots       int
	Production  map[psr.Type][]float64
	Consumption map[psr.Type][]float64
	// Gaps is the number of zero filled positions per production type.
	Gaps map[psr.Type]int
	// ConsumptionGaps is the same per consumption type.
	ConsumptionGaps map[psr.Type]int
}

// New returns an empty grid.
func New(zone string, day time.Time, resolution time.Duration, slots int) *Grid {
	return &Grid{
		Zone:            zone,
		Day:             day,
		Resolution:      resolution,
		Slots:           slots,
		Production:      make(map[psr.Type][]float64),
		Consumption:     make(map[psr.Type][]float64),
		Gaps:            make(map[psr.Type]int),
		ConsumptionGaps: make(map[psr.Type]int),
	}
}

// Types returns production types in ascending order.
func (g *Grid) Types() []psr.Type {
	return slices.Sorted(maps.Keys(g.Production))
}

// Timestamp returns the start time of the slot at index i.
func (g *Grid) Timestamp(i int) time.Time {
	return g.Day.Add(time.Duration(i) * g.Resolution)
}

// Total returns the sum of production over all types per slot.
func (g *Grid) Total() []float64 {
	total := make([]float64, g.Slots)
	for _, values := range g.Production {
		floats.Add(total, values)
	}

	return total
}

// Set sets the production column of type t.
func (g *Grid) Set(t psr.Type, values []float64) error {
	if len(values) != g.Slots {
		return fmt.Errorf("%w: type %s has %d values for %d slots", ErrSlotMismatch, t, len(values), g.Slots)
	}

	g.Production[t] = values

	return nil
}

// Drop removes the production and consumption columns of the given types.
func (g *Grid) Drop(types ...psr.Type) {
	for _, t := range types {
		t = psr.Canonical(t)
		delete(g.Production, t)
		delete(g.Consumption, t)
		delete(g.Gaps, t)
		delete(g.ConsumptionGaps, t)
	}
}

// Net returns a new grid whose production is the production minus the
// consumption of the same type.
func (g *Grid) Net() *Grid {
	net := g.clone()

	for t, cons := range g.Consumption {
		prod, ok := net.Production[t]
		if !ok {
			continue
		}

		floats.Sub(prod, cons)
	}

	net.Consumption = make(map[psr.Type][]float64)
	net.ConsumptionGaps = make(map[psr.Type]int)

	return net
}

// Resample returns a new grid at the given resolution. Down sampling
// averages consecutive slots and up sampling repeats them.
func (g *Grid) Resample(resolution time.Duration) (*Grid, error) {
	if resolution == g.Resolution {
		return g.clone(), nil
	}

	out := New(g.Zone, g.Day, resolution, 0)
	maps.Copy(out.Gaps, g.Gaps)
	maps.Copy(out.ConsumptionGaps, g.ConsumptionGaps)

	for t, values := range g.Production {
		v, err := ResampleValues(values, g.Resolution, resolution)
		if err != nil {
			return nil, err
		}

		out.Production[t] = v
		out.Slots = len(v)
	}

	for t, values := range g.Consumption {
		v, err := ResampleValues(values, g.Resolution, resolution)
		if err != nil {
			return nil, err
		}

		out.Consumption[t] = v
	}

	if out.Slots == 0 {
		out.Slots = int(time.Duration(g.Slots) * g.Resolution / resolution)
	}

	return out, nil
}

func (g *Grid) clone() *Grid {
	c := New(g.Zone, g.Day, g.Resolution, g.Slots)

	for t, v := range g.Production {
		c.Production[t] = slices.Clone(v)
	}

	for t, v := range g.Consumption {
		c.Consumption[t] = slices.Clone(v)
	}

	maps.Copy(c.Gaps, g.Gaps)
	maps.Copy(c.ConsumptionGaps, g.ConsumptionGaps)

	return c
}

// ResampleValues converts values sampled every from into values sampled
// every to. Down sampling averages, up sampling repeats.
func ResampleValues(values []float64, from, to time.Duration) ([]float64, error) {
	if from <= 0 || to <= 0 {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidResampling, from, to)
	}

	switch {
	case from == to:
		return slices.Clone(values), nil
	case to > from:
		if to%from != 0 {
			return nil, fmt.Errorf("%w: %s to %s", ErrInvalidResampling, from, to)
		}

		factor := int(to / from)
		out := make([]float64, len(values)/factor)

		for i := range out {
			out[i] = floats.Sum(values[i*factor:(i+1)*factor]) / float64(factor)
		}

		return out, nil
	default:
		if from%to != 0 {
			return nil, fmt.Errorf("%w: %s to %s", ErrInvalidResampling, from, to)
		}

		factor := int(from / to)
		out := make([]float64, len(values)*factor)

		for i, v := range values {
			for j := range factor {
				out[i*factor+j] = v
			}
		}

		return out, nil
	}
}
