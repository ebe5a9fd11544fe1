// Package pipeline reconstructs the generation matrix of one day from
// upstream reports of the target zone, its neighbours and modelled series.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/odect/odect/pkg/attribution"
	"github.com/odect/odect/pkg/odect/metrics"
	"github.com/odect/odect/pkg/psr"
	"github.com/odect/odect/pkg/segment"
)

// Custom errors.
var (
	ErrFetchUnavailable = errors.New("upstream data unavailable")
	ErrInvalidZone      = errors.New("invalid zone")
	ErrInvalidMix       = errors.New("invalid generation mix file")
)

// Source provides the upstream reports.
type Source interface {
	// Generation returns the generation per type report of a zone-day.
	Generation(ctx context.Context, name, code string, day time.Time) (*segment.Report, error)
	// Flows returns the physical flows from out into in during a day.
	Flows(ctx context.Context, in, out string, day time.Time) (attribution.Volume, error)
}

// ModelSource provides an hourly modelled generation series, e.g. from a
// physical wind or solar model.
type ModelSource interface {
	Column() string
	Hourly(ctx context.Context, day time.Time) ([]float64, error)
}

// Zone is a bidding zone.
type Zone struct {
	// Name is the short name used in column names, e.g. NL.
	Name string `yaml:"name"`
	// Code is the EIC code of the zone.
	Code string `yaml:"code"`
	// LegacyCode replaces Code for days before LegacyUntil.
	LegacyCode  string    `yaml:"legacy_code"`
	LegacyUntil time.Time `yaml:"legacy_until"`
	// Since is the first day the zone is tracked. Zero means always.
	Since time.Time `yaml:"since"`
	// MixFile is a percentage mix CSV file used instead of the ENTSO-E
	// generation per type of a neighbour.
	MixFile string `yaml:"mix_file"`
}

// CodeOn returns the EIC code valid on day.
func (z Zone) CodeOn(day time.Time) string {
	if z.LegacyCode != "" && day.Before(z.LegacyUntil) {
		return z.LegacyCode
	}

	return z.Code
}

// Active returns true if the zone is tracked on day.
func (z Zone) Active(day time.Time) bool {
	return z.Since.IsZero() || !day.Before(z.Since)
}

// Validate checks the zone.
func (z Zone) Validate() error {
	if z.Name == "" || z.Code == "" {
		return fmt.Errorf("%w: name and code are required: %+v", ErrInvalidZone, z)
	}

	if z.LegacyCode != "" && z.LegacyUntil.IsZero() {
		return fmt.Errorf("%w: %s: legacy_code needs legacy_until", ErrInvalidZone, z.Name)
	}

	return nil
}

// ModelSeries is a modelled series read from a CSV file.
type ModelSeries struct {
	Column string `yaml:"column"`
	File   string `yaml:"file"`
}

// Config contains the reconstruction configuration.
type Config struct {
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Target     Zone
	Neighbours []Zone
	// DropTypes are left out of the target zone, typically because a
	// modelled series replaces them.
	DropTypes []psr.Type
	// NetGeneration subtracts consumption from production.
	NetGeneration bool
	Models        []ModelSource
}
