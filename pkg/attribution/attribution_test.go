package attribution

import (
	"log/slog"
	"testing"
	"time"

	"github.com/odect/odect/pkg/grid"
	"github.com/odect/odect/pkg/psr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	noOpLogger = slog.New(slog.DiscardHandler)
	testDay    = time.Date(2022, 1, 5, 0, 0, 0, 0, time.UTC)
)

func constant(n int, v float64) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = v
	}

	return values
}

func neighbourGrid(t *testing.T, resolution time.Duration, slots int) *grid.Grid {
	t.Helper()

	g := grid.New("BE", testDay, resolution, slots)
	require.NoError(t, g.Set(psr.Nuclear, constant(slots, 300)))
	require.NoError(t, g.Set(psr.FossilGas, constant(slots, 100)))
	require.NoError(t, g.Set(psr.WindOnshore, constant(slots, 0)))

	// No generation at all in the last slot
	for _, values := range g.Production {
		values[slots-1] = 0
	}

	return g
}

func TestSharesSumToOneOrZero(t *testing.T) {
	g := neighbourGrid(t, time.Hour, 24)
	g.Production[psr.WindOnshore][3] = 42

	shares, undefined := Shares(g)
	assert.Equal(t, 1, undefined)

	for i := range 24 {
		var sum float64
		for _, share := range shares {
			sum += share[i]
		}

		if i == 23 {
			assert.InDelta(t, 0, sum, 1e-12, "slot %d", i)
		} else {
			assert.InDelta(t, 1, sum, 1e-12, "slot %d", i)
		}
	}

	assert.InDelta(t, 0.75, shares[psr.Nuclear][0], 1e-12)
}

func TestAttribute(t *testing.T) {
	g := neighbourGrid(t, time.Hour, 24)
	vol := Volume{Resolution: time.Hour, Values: constant(24, 200)}
	vol.Values[5] = -50

	out, stats, err := New(noOpLogger).Attribute(g, vol)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.UndefinedShares)
	assert.Equal(t, 1, stats.Exports)

	assert.InDelta(t, 150, out.Production[psr.Nuclear][0], 1e-9)
	assert.InDelta(t, 50, out.Production[psr.FossilGas][0], 1e-9)
	assert.InDelta(t, 0, out.Production[psr.WindOnshore][0], 1e-9)

	// Exports and slots without generation attribute nothing
	assert.InDelta(t, 0, out.Production[psr.Nuclear][5], 1e-9)
	assert.InDelta(t, 0, out.Production[psr.Nuclear][23], 1e-9)

	for _, values := range out.Production {
		assert.Len(t, values, 24)
	}
}

func TestAttributeAlignsToCoarserResolution(t *testing.T) {
	// Quarter hourly neighbour with hourly imports
	g := neighbourGrid(t, 15*time.Minute, 96)

	out, _, err := New(noOpLogger).Attribute(g, Volume{Resolution: time.Hour, Values: constant(24, 100)})
	require.NoError(t, err)
	assert.Equal(t, time.Hour, out.Resolution)
	assert.Equal(t, 24, out.Slots)
	assert.InDelta(t, 75, out.Production[psr.Nuclear][0], 1e-9)

	// Hourly neighbour with quarter hourly imports
	g = neighbourGrid(t, time.Hour, 24)

	out, _, err = New(noOpLogger).Attribute(g, Volume{Resolution: 15 * time.Minute, Values: constant(96, 40)})
	require.NoError(t, err)
	assert.Equal(t, 24, out.Slots)
	assert.InDelta(t, 10, out.Production[psr.FossilGas][1], 1e-9)
}

func TestAttributeErrors(t *testing.T) {
	e := New(noOpLogger)

	_, _, err := e.Attribute(grid.New("BE", testDay, time.Hour, 24), Volume{Resolution: time.Hour})
	require.ErrorIs(t, err, ErrNoGeneration)

	_, _, err = e.Attribute(neighbourGrid(t, time.Hour, 24), Volume{Resolution: time.Hour, Values: constant(10, 1)})
	require.ErrorIs(t, err, ErrVolumeLength)
}
