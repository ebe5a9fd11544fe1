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

	"github.com/odect/odect/pkg/grid"
	"github.com/odect/odect/pkg/psr"
)

const percSuffix = "_PERC"

// fuelTypes maps the fuel names of national grid mix files onto PSR types.
var fuelTypes = map[string]psr.Type{
	"GAS":     psr.FossilGas,
	"COAL":    psr.HardCoal,
	"NUCLEAR": psr.Nuclear,
	"WIND":    psr.WindOnshore,
	"HYDRO":   psr.HydroReservoir,
	"BIOMASS": psr.Biomass,
	"OTHER":   psr.OtherRenewable,
	"SOLAR":   psr.Solar,
}

// CSVMix is the generation mix of a zone stored as percentages per type,
// for zones that do not publish generation per type to ENTSO-E. The file
// has a header with a datetime column and one <FUEL>_perc or <TICKER>_perc
// column per type. Other columns are ignored and rows within the same hour
// are averaged.
type CSVMix struct {
	path string

	once    sync.Once
	hours   map[int64]map[psr.Type]float64
	loadErr error
}

// NewCSVMix returns a mix source reading path lazily.
func NewCSVMix(path string) *CSVMix {
	return &CSVMix{path: path}
}

// Grid returns the hourly mix of day as fractions per type. Hours without
// rows are zero.
func (m *CSVMix) Grid(_ context.Context, zone string, day time.Time) (*grid.Grid, error) {
	m.once.Do(func() {
		m.hours, m.loadErr = m.load()
	})

	if m.loadErr != nil {
		return nil, m.loadErr
	}

	columns := make(map[psr.Type][]float64)

	for i := range hoursPerDay {
		for t, v := range m.hours[day.Add(time.Duration(i)*time.Hour).Unix()] {
			if _, ok := columns[t]; !ok {
				columns[t] = make([]float64, hoursPerDay)
			}

			columns[t][i] = v
		}
	}

	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: %s mix has no rows for %s", ErrFetchUnavailable, zone, day.Format(time.DateOnly))
	}

	g := grid.New(zone, day, time.Hour, hoursPerDay)
	for t, values := range columns {
		if err := g.Set(t, values); err != nil {
			return nil, err
		}
	}

	return g, nil
}

// mixColumn returns the type of a percentage column.
func mixColumn(name string) (psr.Type, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if !strings.HasSuffix(name, percSuffix) {
		return "", false
	}

	name = strings.TrimSuffix(name, percSuffix)
	if t, ok := fuelTypes[name]; ok {
		return t, true
	}

	return psr.FromTicker(name)
}

func (m *CSVMix) load() (map[int64]map[psr.Type]float64, error) {
	f, err := os.Open(m.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%s: header: %w", m.path, err)
	}

	timeIdx := -1
	types := make(map[int]psr.Type)

	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), "datetime") {
			timeIdx = i

			continue
		}

		if t, ok := mixColumn(name); ok {
			types[i] = t
		}
	}

	if timeIdx < 0 || len(types) == 0 {
		return nil, fmt.Errorf("%w: %s: datetime and percentage columns are required", ErrInvalidMix, m.path)
	}

	sums := make(map[int64]map[psr.Type]float64)
	counts := make(map[int64]int)

	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, err
		}

		ts, err := parseTime(record[timeIdx])
		if err != nil {
			return nil, fmt.Errorf("%s: line %d: %w", m.path, line, err)
		}

		hour := ts.UTC().Truncate(time.Hour).Unix()
		if _, ok := sums[hour]; !ok {
			sums[hour] = make(map[psr.Type]float64)
		}

		for i, t := range types {
			s := strings.TrimSpace(record[i])
			if s == "" {
				continue
			}

			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: line %d: %w", m.path, line, err)
			}

			sums[hour][t] += v / 100
		}

		counts[hour]++
	}

	for h, n := range counts {
		for t := range sums[h] {
			sums[h][t] /= float64(n)
		}
	}

	return sums, nil
}
