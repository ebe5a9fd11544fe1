package segment

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/odect/odect/pkg/psr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var noOpLogger = slog.New(slog.DiscardHandler)

// points returns n points with positions 1..n and constant quantity q.
func points(n int, q int64) []Point {
	p := make([]Point, n)
	for i := range n {
		p[i] = Point{Position: i + 1, Quantity: q}
	}

	return p
}

func hourlyReport(segments ...Segment) *Report {
	return &Report{
		Zone:       "NL",
		Start:      time.Date(2023, 7, 18, 0, 0, 0, 0, time.UTC),
		Resolution: time.Hour,
		Segments:   segments,
	}
}

func TestSlots(t *testing.T) {
	n, err := Slots(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 24, n)

	n, err = Slots(15 * time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 96, n)

	for _, res := range []time.Duration{0, -time.Hour, 7 * time.Minute, 48 * time.Hour} {
		_, err = Slots(res)
		require.ErrorIs(t, err, ErrInvalidResolution, "resolution %s", res)
	}
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		name     string
		state    state
		typ      psr.Type
		n        int
		expected action
		role     Role
	}{
		{
			name:     "first full segment",
			state:    state{slots: 24},
			typ:      psr.FossilGas,
			n:        24,
			expected: actionFinalizeFull,
			role:     RoleProduction,
		},
		{
			name:     "first partial segment",
			state:    state{slots: 24},
			typ:      psr.FossilGas,
			n:        10,
			expected: actionNewSeries,
			role:     RoleProduction,
		},
		{
			name:     "same type after full is consumption",
			state:    state{slots: 24, started: true, lastType: psr.FossilGas, lastPosition: 24, complete: true, role: RoleProduction},
			typ:      psr.FossilGas,
			n:        24,
			expected: actionFinalizeFull,
			role:     RoleConsumption,
		},
		{
			name:     "same type after partial continues",
			state:    state{slots: 24, started: true, lastType: psr.FossilGas, lastPosition: 10, role: RoleProduction},
			typ:      psr.FossilGas,
			n:        14,
			expected: actionContinuePartial,
			role:     RoleProduction,
		},
		{
			name:     "overflowing partial starts a new series",
			state:    state{slots: 24, started: true, lastType: psr.FossilGas, lastPosition: 20, role: RoleProduction},
			typ:      psr.FossilGas,
			n:        10,
			expected: actionNewSeries,
			role:     RoleConsumption,
		},
		{
			name:     "type change after partial",
			state:    state{slots: 24, started: true, lastType: psr.FossilGas, lastPosition: 10, role: RoleProduction},
			typ:      psr.Nuclear,
			n:        5,
			expected: actionNewSeries,
			role:     RoleProduction,
		},
	}

	for _, test := range tests {
		s := test.state
		got := s.transition(test.typ, test.n)
		assert.Equal(t, test.expected, got, test.name)
		assert.Equal(t, test.role, s.role, test.name)
	}
}

func TestParseFullSeries(t *testing.T) {
	p := NewParser(noOpLogger)

	parsed, err := p.Parse(hourlyReport(
		Segment{Type: psr.FossilGas, Points: points(24, 100)},
		Segment{Type: psr.FossilGas, Points: points(24, 5)},
		Segment{Type: psr.Nuclear, Points: points(24, 480)},
	))
	require.NoError(t, err)
	require.Len(t, parsed.Series, 3)
	assert.Empty(t, parsed.Warnings)
	assert.Equal(t, 24, parsed.Slots)

	assert.Equal(t, RoleProduction, parsed.Series[0].Role)
	assert.Equal(t, Full, parsed.Series[0].Completeness)
	assert.Equal(t, RoleConsumption, parsed.Series[1].Role)
	assert.Equal(t, RoleProduction, parsed.Series[2].Role)

	// Labels are unique
	seen := make(map[string]bool)
	for _, s := range parsed.Series {
		assert.False(t, seen[s.Label], s.Label)
		seen[s.Label] = true
	}
}

func TestParsePartialFragments(t *testing.T) {
	p := NewParser(noOpLogger)

	parsed, err := p.Parse(hourlyReport(
		Segment{Type: psr.FossilGas, Points: points(10, 100)},
		Segment{Type: psr.FossilGas, Points: points(14, 200)},
	))
	require.NoError(t, err)
	require.Len(t, parsed.Series, 2)

	first, second := parsed.Series[0], parsed.Series[1]
	assert.Equal(t, RoleProduction, first.Role)
	assert.Equal(t, RoleProduction, second.Role)
	assert.Equal(t, Partial, first.Completeness)
	assert.Equal(t, Partial, second.Completeness)
	assert.NotEqual(t, first.Label, second.Label)

	// Second fragment is shifted behind the first one
	assert.Equal(t, 1, first.Points[0].Position)
	assert.Equal(t, 10, first.Points[9].Position)
	assert.Equal(t, 11, second.Points[0].Position)
	assert.Equal(t, 24, second.Points[13].Position)

	// Both fragments are reported as incomplete
	require.Len(t, parsed.Warnings, 2)

	var incomplete *IncompleteSegmentError
	require.ErrorAs(t, parsed.Warnings[0], &incomplete)
	assert.Equal(t, 10, incomplete.Points)
	assert.True(t, errors.Is(parsed.Warnings[1], ErrIncompleteSegment))
}

func TestParseCompletedPartialThenConsumption(t *testing.T) {
	p := NewParser(noOpLogger)

	parsed, err := p.Parse(hourlyReport(
		Segment{Type: psr.FossilGas, Points: points(10, 100)},
		Segment{Type: psr.FossilGas, Points: points(14, 100)},
		Segment{Type: psr.FossilGas, Points: points(24, 3)},
	))
	require.NoError(t, err)
	require.Len(t, parsed.Series, 3)

	assert.Equal(t, RoleConsumption, parsed.Series[2].Role)
	assert.Equal(t, Full, parsed.Series[2].Completeness)
}

func TestParseDropsOutOfRangePoints(t *testing.T) {
	p := NewParser(noOpLogger)

	pts := append(points(24, 1), Point{Position: 25, Quantity: 1})

	parsed, err := p.Parse(hourlyReport(Segment{Type: psr.Nuclear, Points: pts[1:]}))
	require.NoError(t, err)
	require.Len(t, parsed.Series, 1)

	for _, pt := range parsed.Series[0].Points {
		assert.LessOrEqual(t, pt.Position, 24)
	}

	var found bool
	for _, w := range parsed.Warnings {
		if errors.Is(w, ErrPositionOutOfRange) {
			found = true
		}
	}

	assert.True(t, found)
}

func TestParseOverlongSegmentIsFull(t *testing.T) {
	p := NewParser(noOpLogger)

	parsed, err := p.Parse(hourlyReport(
		Segment{Type: psr.FossilGas, Points: points(25, 3)},
		Segment{Type: psr.Nuclear, Points: points(24, 1)},
	))
	require.NoError(t, err)
	require.Len(t, parsed.Series, 2)

	gas := parsed.Series[0]
	assert.Equal(t, Full, gas.Completeness)
	assert.Equal(t, "B04_prod_full_0", gas.Label)
	assert.Len(t, gas.Points, 24)
	assert.Equal(t, RoleProduction, parsed.Series[1].Role)

	var overlong, incomplete bool
	for _, w := range parsed.Warnings {
		overlong = overlong || errors.Is(w, ErrOverlongSegment)
		incomplete = incomplete || errors.Is(w, ErrIncompleteSegment)
	}

	assert.True(t, overlong)
	assert.False(t, incomplete)
}

func TestParseUnorderedAndEmpty(t *testing.T) {
	p := NewParser(noOpLogger)

	pts := points(24, 7)
	pts[0], pts[23] = pts[23], pts[0]

	parsed, err := p.Parse(hourlyReport(
		Segment{Type: psr.Solar},
		Segment{Type: psr.Solar, Points: pts},
	))
	require.NoError(t, err)
	require.Len(t, parsed.Series, 1)
	assert.Equal(t, 1, parsed.Series[0].Points[0].Position)
	assert.Equal(t, 24, parsed.Series[0].Points[23].Position)

	// Input is not mutated
	assert.Equal(t, 24, pts[0].Position)
}

func TestParseErrors(t *testing.T) {
	p := NewParser(noOpLogger)

	_, err := p.Parse(nil)
	require.ErrorIs(t, err, ErrNilReport)

	_, err = p.Parse(&Report{Zone: "NL"})
	require.ErrorIs(t, err, ErrInvalidResolution)
}
