// Package emissions computes per type emissions and the generation weighted
// average emission factor (AEF) of a generation matrix.
package emissions

import (
	"fmt"
	"slices"
	"time"

	"github.com/odect/odect/internal/common"
	"github.com/odect/odect/pkg/models"
	"github.com/odect/odect/pkg/psr"
	"gonum.org/v1/gonum/floats"
)

// Aggregator computes emission series.
type Aggregator struct {
	config *Config
}

// New returns a new Aggregator.
func New(c *Config) (*Aggregator, error) {
	switch c.Policy {
	case "":
		c.Policy = PolicySkip
	case PolicySkip, PolicyAbort:
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidPolicy, c.Policy)
	}

	if c.Factors == nil {
		factors, err := DefaultFactors()
		if err != nil {
			return nil, err
		}

		c.Factors = factors
	}

	return &Aggregator{config: c}, nil
}

// columnTypes groups matrix columns by generation type. Columns of the same
// ticker from different zones feed the same type.
func columnTypes(columns []string) (map[string][]string, []string) {
	groups := make(map[string][]string)

	for _, col := range columns {
		ticker, _ := psr.SplitColumn(col)
		groups[ticker] = append(groups[ticker], col)
	}

	types := make([]string, 0, len(groups))
	for t := range groups {
		types = append(types, t)
	}

	slices.Sort(types)

	return groups, types
}

// Compute returns the emission series of every hour in [from, to). Hours
// missing from the matrix have no generation and an AEF of zero.
func (a *Aggregator) Compute(m *models.Matrix, from, to time.Time) (*Result, error) {
	groups, allTypes := columnTypes(m.Columns())

	var types, skipped []string

	for _, t := range allTypes {
		if _, ok := a.config.Factors.Factor(t); ok {
			types = append(types, t)

			continue
		}

		skipped = append(skipped, t)
	}

	if len(skipped) > 0 {
		err := &UnknownTypeError{Types: skipped}
		if a.config.Policy == PolicyAbort {
			return nil, err
		}

		a.config.Logger.Warn("Generation types without emission factor are left out", "types", skipped, "err", err)
	}

	factors := make([]float64, len(types))
	for i, t := range types {
		factors[i], _ = a.config.Factors.Factor(t)
	}

	rows := make(map[int64]models.Row, m.Len())
	for _, r := range m.Rows {
		rows[r.Timestamp.Unix()] = r
	}

	res := &Result{Types: types, Skipped: skipped}

	for ts := from.UTC().Truncate(time.Hour); ts.Before(to); ts = ts.Add(time.Hour) {
		gen := make([]float64, len(types))

		if row, ok := rows[ts.Unix()]; ok {
			for i, t := range types {
				for _, col := range groups[t] {
					gen[i] += row.Values[col]
				}
			}
		}

		em := make([]float64, len(types))
		floats.MulTo(em, gen, factors)

		var aef float64
		if total := floats.Sum(gen); total != 0 {
			aef = common.SanitizeFloat(floats.Sum(em) / total)
		} else {
			res.Undefined++
		}

		res.Timestamps = append(res.Timestamps, ts)
		res.Generation = append(res.Generation, gen)
		res.Emissions = append(res.Emissions, em)
		res.AEF = append(res.AEF, aef)
	}

	if res.Undefined > 0 {
		a.config.Logger.Warn(
			"Hours without generation have an AEF of zero",
			"hours", res.Undefined, "err", ErrDivisionUndefined,
		)
	}

	return res, nil
}
