package emissions

import (
	"embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"maps"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
)

//go:embed data
var dataDir embed.FS

// FactorTable maps generation tickers to emission factors in kg CO2-eq/MWh.
type FactorTable map[string]float64

// Factor returns the factor of a ticker.
func (f FactorTable) Factor(ticker string) (float64, bool) {
	v, ok := f[ticker]

	return v, ok
}

// Tickers returns the tickers of the table in ascending order.
func (f FactorTable) Tickers() []string {
	return slices.Sorted(maps.Keys(f))
}

// DefaultFactors returns the factor table shipped with the binary.
func DefaultFactors() (FactorTable, error) {
	f, err := dataDir.Open("data/factors.csv")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadFactors(f)
}

// LoadFactors reads a factor table from a CSV file. The default table is
// returned when path is empty.
func LoadFactors(path string) (FactorTable, error) {
	if path == "" {
		return DefaultFactors()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadFactors(f)
}

// ReadFactors parses ticker,factor CSV records. A header row is allowed.
func ReadFactors(r io.Reader) (FactorTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2
	reader.TrimLeadingSpace = true

	table := make(FactorTable)

	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, err
		}

		ticker := strings.TrimSpace(record[0])

		value, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil {
			// Header
			if line == 1 {
				continue
			}

			return nil, fmt.Errorf("%w: line %d: %w", ErrInvalidFactor, line, err)
		}

		if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
			return nil, fmt.Errorf("%w: line %d: %s=%v", ErrInvalidFactor, line, ticker, value)
		}

		table[ticker] = value
	}

	return table, nil
}
