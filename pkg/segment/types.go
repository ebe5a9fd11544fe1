// Package segment turns a provider report made of labelled interval segments
// into typed sub-series with explicit, continuous position ranges.
package segment

import (
	"errors"
	"fmt"
	"time"

	"github.com/odect/odect/pkg/psr"
)

// Custom errors.
var (
	ErrIncompleteSegment  = errors.New("incomplete segment")
	ErrInvalidResolution  = errors.New("invalid report resolution")
	ErrPositionOutOfRange = errors.New("position out of range")
	ErrNilReport          = errors.New("nil report")
	ErrOverlongSegment    = errors.New("segment longer than the day grid")
)

// Role tells if a sub-series is a production or a consumption series.
type Role int

// Roles.
const (
	RoleUnknown Role = iota
	RoleProduction
	RoleConsumption
)

// String implements Stringer interface.
func (r Role) String() string {
	switch r {
	case RoleProduction:
		return "prod"
	case RoleConsumption:
		return "cons"
	default:
		return "unknown"
	}
}

// Completeness tells if a sub-series covers the whole day grid.
type Completeness int

// Completeness values.
const (
	Partial Completeness = iota
	Full
)

// String implements Stringer interface.
func (c Completeness) String() string {
	if c == Full {
		return "full"
	}

	return "partial"
}

// Point is a single (position, quantity) entry of a segment. Positions are
// 1-based and relative to the start of the segment.
type Point struct {
	Position int
	Quantity int64
}

// Segment is one labelled interval series of a report.
type Segment struct {
	Type psr.Type
	// RoleHint is the role declared by the provider, if any.
	RoleHint Role
	Points   []Point
}

// Report is a provider report for one zone and one day.
type Report struct {
	Zone       string
	Start      time.Time
	Resolution time.Duration
	Segments   []Segment
}

// SubSeries is a typed and tagged series produced from one report segment.
type SubSeries struct {
	Type         psr.Type
	Role         Role
	Completeness Completeness
	// Segment is the index of the report segment the series was built from.
	Segment  int
	Label    string
	RoleHint Role
	Points   []Point
}

// Parsed is the outcome of parsing a report.
type Parsed struct {
	Slots    int
	Series   []SubSeries
	Warnings []error
}

// IncompleteSegmentError is a non fatal error for segments that do not
// cover the whole day grid.
type IncompleteSegmentError struct {
	Zone    string
	Type    psr.Type
	Segment int
	Points  int
	Slots   int
}

func (e *IncompleteSegmentError) Error() string {
	return fmt.Sprintf(
		"%s: zone %s, type %s, segment %d has %d of %d points",
		ErrIncompleteSegment, e.Zone, e.Type, e.Segment, e.Points, e.Slots,
	)
}

// Unwrap returns the sentinel error.
func (e *IncompleteSegmentError) Unwrap() error {
	return ErrIncompleteSegment
}

// Slots returns the number of positions in a day at the given resolution.
func Slots(resolution time.Duration) (int, error) {
	day := 24 * time.Hour
	if resolution <= 0 || resolution > day || day%resolution != 0 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidResolution, resolution)
	}

	return int(day / resolution), nil
}
