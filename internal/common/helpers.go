// Package common provides general utility helper functions and types
package common

import (
	"errors"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zeebo/xxh3"
	"gopkg.in/yaml.v3"
)

// DateLayout is the layout used for dates on the CLI and in config files.
const DateLayout = "20060102"

// ErrInvalidRange is returned when the end of a date range is before its start.
var ErrInvalidRange = errors.New("end date is before start date")

// TimeTrack tracks execution time of each function.
func TimeTrack(start time.Time, name string, logger *slog.Logger) {
	elapsed := time.Since(start)
	logger.Debug(name, "elapsed_time", elapsed)
}

// SanitizeFloat replaces +/-Inf and NaN with zero.
func SanitizeFloat(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}

	return v
}

// RoundTo rounds v half away from zero to the given number of decimals.
func RoundTo(v float64, places int32) float64 {
	r, _ := decimal.NewFromFloat(SanitizeFloat(v)).Round(places).Float64()

	return r
}

// GetUUIDFromString returns a UUID built from the xxh3 hash of the given
// strings. Equal inputs give equal UUIDs.
func GetUUIDFromString(stringSlice []string) (string, error) {
	s := strings.Join(stringSlice, ",")
	h := xxh3.HashString128(s).Bytes()
	uuid, err := uuid.FromBytes(h[:])

	return uuid.String(), err
}

// Day truncates t to the start of its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()

	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Days returns all UTC days between from and to, both included.
func Days(from, to time.Time) ([]time.Time, error) {
	start, end := Day(from), Day(to)
	if end.Before(start) {
		return nil, ErrInvalidRange
	}

	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}

	return days, nil
}

// ParseDate parses a YYYYMMDD date as a UTC day.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// MakeConfig reads config file, merges with passed default config and returns updated
// config instance.
func MakeConfig[T any](filePath string) (*T, error) {
	// Create a new pointer to config instance
	config := new(T)

	// If no config file path provided, return default config
	if filePath == "" {
		return config, errors.New("config file path missing")
	}

	// Read config file
	configFile, err := os.ReadFile(filePath)
	if err != nil {
		return config, err
	}

	err = yaml.Unmarshal(configFile, config)
	if err != nil {
		return config, err
	}

	return config, nil
}
