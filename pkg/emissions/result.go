package emissions

import (
	"slices"

	"github.com/odect/odect/internal/common"
	"github.com/odect/odect/pkg/psr"
	"gonum.org/v1/gonum/floats"
)

// Len returns the number of hours in the result.
func (r *Result) Len() int {
	return len(r.Timestamps)
}

// MeanAEF returns the AEF of the whole span, i.e. total emissions divided by
// total generation.
func (r *Result) MeanAEF() float64 {
	var gen, em float64

	for i := range r.Timestamps {
		gen += floats.Sum(r.Generation[i])
		em += floats.Sum(r.Emissions[i])
	}

	if gen == 0 {
		return 0
	}

	return common.SanitizeFloat(em / gen)
}

// Grouped sums the columns of values ([row][type] in the order of Types)
// into display groups such as PV or Hydropower. Groups are returned in
// ascending order.
func (r *Result) Grouped(values [][]float64) ([]string, [][]float64) {
	index := make(map[string]int)

	var groups []string

	for _, t := range r.Types {
		g := psr.DisplayGroup(t)
		if _, ok := index[g]; !ok {
			index[g] = 0
			groups = append(groups, g)
		}
	}

	slices.Sort(groups)

	for i, g := range groups {
		index[g] = i
	}

	out := make([][]float64, len(values))
	for i, row := range values {
		out[i] = make([]float64, len(groups))

		for j, v := range row {
			out[i][index[psr.DisplayGroup(r.Types[j])]] += v
		}
	}

	return groups, out
}
