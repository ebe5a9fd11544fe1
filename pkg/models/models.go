// Package models defines the generation matrix shared by the store, the
// reconstruction pipeline and the emission aggregator.
package models

import (
	"maps"
	"slices"
	"time"
)

// Row is the generation of one hour, keyed by column name such as CCGT_NL.
type Row struct {
	Timestamp time.Time          `json:"timestamp"`
	Values    map[string]float64 `json:"values"`
}

// Matrix is a wide, timestamp indexed generation table.
type Matrix struct {
	Rows []Row `json:"rows"`
}

// Len returns the number of rows.
func (m *Matrix) Len() int {
	return len(m.Rows)
}

// Columns returns the sorted union of the column names of all rows.
func (m *Matrix) Columns() []string {
	cols := make(map[string]struct{})

	for _, r := range m.Rows {
		for c := range r.Values {
			cols[c] = struct{}{}
		}
	}

	return slices.Sorted(maps.Keys(cols))
}

// Timestamps returns the row timestamps.
func (m *Matrix) Timestamps() []time.Time {
	ts := make([]time.Time, len(m.Rows))
	for i, r := range m.Rows {
		ts[i] = r.Timestamp
	}

	return ts
}

// Sort orders rows by ascending timestamp.
func (m *Matrix) Sort() {
	slices.SortStableFunc(m.Rows, func(a, b Row) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
}

// Merge appends the rows of o whose timestamps are not in m yet and sorts
// the result.
func (m *Matrix) Merge(o *Matrix) {
	if o == nil {
		return
	}

	existing := make(map[int64]struct{}, len(m.Rows))
	for _, r := range m.Rows {
		existing[r.Timestamp.Unix()] = struct{}{}
	}

	for _, r := range o.Rows {
		if _, ok := existing[r.Timestamp.Unix()]; ok {
			continue
		}

		existing[r.Timestamp.Unix()] = struct{}{}
		m.Rows = append(m.Rows, r)
	}

	m.Sort()
}

// Between returns the rows with from <= timestamp < to.
func (m *Matrix) Between(from, to time.Time) *Matrix {
	out := &Matrix{}

	for _, r := range m.Rows {
		if !r.Timestamp.Before(from) && r.Timestamp.Before(to) {
			out.Rows = append(out.Rows, r)
		}
	}

	return out
}
