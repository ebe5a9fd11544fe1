package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05-07",
	"2006-01-02 15:04",
}

// CSVModel is a modelled series stored as datetime,value rows. Rows within
// the same hour are averaged.
type CSVModel struct {
	column string
	path   string

	once    sync.Once
	hours   map[int64]float64
	loadErr error
}

// NewCSVModel returns a model source reading path lazily.
func NewCSVModel(column, path string) *CSVModel {
	return &CSVModel{column: column, path: path}
}

// Column returns the matrix column of the series.
func (m *CSVModel) Column() string {
	return m.column
}

// Hourly returns the 24 hourly values of day. Hours without rows are zero.
func (m *CSVModel) Hourly(_ context.Context, day time.Time) ([]float64, error) {
	m.once.Do(func() {
		m.hours, m.loadErr = m.load()
	})

	if m.loadErr != nil {
		return nil, m.loadErr
	}

	values := make([]float64, 24)

	var found bool

	for i := range values {
		if v, ok := m.hours[day.Add(time.Duration(i)*time.Hour).Unix()]; ok {
			values[i] = v
			found = true
		}
	}

	if !found {
		return nil, fmt.Errorf("%w: %s has no rows for %s", ErrFetchUnavailable, m.column, day.Format(time.DateOnly))
	}

	return values, nil
}

func (m *CSVModel) load() (map[int64]float64, error) {
	f, err := os.Open(m.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 2
	reader.TrimLeadingSpace = true

	sums := make(map[int64]float64)
	counts := make(map[int64]int)

	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, err
		}

		ts, err := parseTime(record[0])
		if err != nil {
			// Header
			if line == 1 {
				continue
			}

			return nil, fmt.Errorf("%s: line %d: %w", m.path, line, err)
		}

		v, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: line %d: %w", m.path, line, err)
		}

		hour := ts.UTC().Truncate(time.Hour).Unix()
		sums[hour] += v
		counts[hour]++
	}

	for h, n := range counts {
		sums[h] /= float64(n)
	}

	return sums, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)

	var err error

	for _, layout := range timeLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, err
}
