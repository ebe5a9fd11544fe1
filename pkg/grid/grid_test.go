package grid

import (
	"log/slog"
	"testing"
	"time"

	"github.com/odect/odect/pkg/psr"
	"github.com/odect/odect/pkg/segment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	noOpLogger = slog.New(slog.DiscardHandler)
	testDay    = time.Date(2023, 7, 18, 0, 0, 0, 0, time.UTC)
)

func span(from, to int, q int64) []segment.Point {
	p := make([]segment.Point, 0, to-from+1)
	for pos := from; pos <= to; pos++ {
		p = append(p, segment.Point{Position: pos, Quantity: q})
	}

	return p
}

func parse(t *testing.T, resolution time.Duration, segments ...segment.Segment) *segment.Parsed {
	t.Helper()

	parsed, err := segment.NewParser(noOpLogger).Parse(&segment.Report{
		Zone:       "NL",
		Start:      testDay,
		Resolution: resolution,
		Segments:   segments,
	})
	require.NoError(t, err)

	return parsed
}

func TestBuildEveryColumnHasAllSlots(t *testing.T) {
	tests := []struct {
		name       string
		resolution time.Duration
		slots      int
	}{
		{name: "hourly zone", resolution: time.Hour, slots: 24},
		{name: "quarter hourly zone", resolution: 15 * time.Minute, slots: 96},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			parsed := parse(t, test.resolution,
				segment.Segment{Type: psr.Nuclear, Points: span(1, test.slots, 480)},
				segment.Segment{Type: psr.Solar, Points: span(1, test.slots/2, 10)},
				segment.Segment{Type: psr.WindOnshore, Points: span(3, 7, 1)},
			)

			g := NewBuilder(noOpLogger).Build("NL", testDay, test.resolution, parsed)
			require.Len(t, g.Production, 3)

			for typ, values := range g.Production {
				assert.Len(t, values, test.slots, typ)
			}

			assert.Equal(t, test.slots/2, g.Gaps[psr.Solar])
			assert.Zero(t, g.Gaps[psr.Nuclear])
			assert.InDelta(t, 0, g.Production[psr.Solar][test.slots-1], 1e-9)
		})
	}
}

func TestBuildSplicesPartialFragments(t *testing.T) {
	parsed := parse(t, time.Hour,
		segment.Segment{Type: psr.FossilGas, Points: span(1, 10, 100)},
		segment.Segment{Type: psr.FossilGas, Points: span(1, 14, 200)},
	)

	g := NewBuilder(noOpLogger).Build("NL", testDay, time.Hour, parsed)

	gas := g.Production[psr.FossilGas]
	require.Len(t, gas, 24)
	assert.Empty(t, g.Consumption)
	assert.Zero(t, g.Gaps[psr.FossilGas])

	for i := range 10 {
		assert.InDelta(t, 100, gas[i], 1e-9, "slot %d", i)
	}

	for i := 10; i < 24; i++ {
		assert.InDelta(t, 200, gas[i], 1e-9, "slot %d", i)
	}
}

func TestBuildSeparatesConsumption(t *testing.T) {
	parsed := parse(t, time.Hour,
		segment.Segment{Type: psr.HydroPumped, Points: span(1, 24, 50)},
		segment.Segment{Type: psr.HydroPumped, Points: span(1, 24, 20)},
	)

	g := NewBuilder(noOpLogger).Build("NL", testDay, time.Hour, parsed)
	assert.InDelta(t, 50, g.Production[psr.HydroPumped][0], 1e-9)
	assert.InDelta(t, 20, g.Consumption[psr.HydroPumped][0], 1e-9)

	net := g.Net()
	assert.InDelta(t, 30, net.Production[psr.HydroPumped][5], 1e-9)
	assert.Empty(t, net.Consumption)

	// Original grid is untouched
	assert.InDelta(t, 50, g.Production[psr.HydroPumped][5], 1e-9)
}

func TestBuildCountsConsumptionGaps(t *testing.T) {
	parsed := parse(t, time.Hour,
		segment.Segment{Type: psr.HydroPumped, Points: span(1, 24, 50)},
		segment.Segment{Type: psr.HydroPumped, Points: span(1, 12, 20)},
	)

	g := NewBuilder(noOpLogger).Build("NL", testDay, time.Hour, parsed)
	require.Len(t, g.Consumption[psr.HydroPumped], 24)
	assert.Zero(t, g.Gaps[psr.HydroPumped])
	assert.Equal(t, 12, g.ConsumptionGaps[psr.HydroPumped])
	assert.InDelta(t, 0, g.Consumption[psr.HydroPumped][12], 1e-9)

	hourly, err := g.Resample(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 12, hourly.ConsumptionGaps[psr.HydroPumped])

	assert.Empty(t, g.Net().ConsumptionGaps)
}

func TestBuildCoalescesAliases(t *testing.T) {
	parsed := parse(t, time.Hour,
		segment.Segment{Type: psr.GasifiedCoal, Points: span(1, 24, 10)},
		segment.Segment{Type: "BO3", Points: span(1, 24, 5)},
	)

	g := NewBuilder(noOpLogger).Build("NL", testDay, time.Hour, parsed)
	require.Len(t, g.Production, 1)
	assert.InDelta(t, 15, g.Production[psr.GasifiedCoal][12], 1e-9)
}

func TestResample(t *testing.T) {
	g := New("DE", testDay, 15*time.Minute, 96)

	values := make([]float64, 96)
	for i := range values {
		values[i] = float64(i % 4)
	}

	require.NoError(t, g.Set(psr.Nuclear, values))
	require.ErrorIs(t, g.Set(psr.Solar, values[:10]), ErrSlotMismatch)

	hourly, err := g.Resample(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 24, hourly.Slots)
	require.Len(t, hourly.Production[psr.Nuclear], 24)
	assert.InDelta(t, 1.5, hourly.Production[psr.Nuclear][0], 1e-9)

	back, err := hourly.Resample(15 * time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 96, back.Slots)
	assert.InDelta(t, 1.5, back.Production[psr.Nuclear][3], 1e-9)

	_, err = g.Resample(25 * time.Minute)
	require.ErrorIs(t, err, ErrInvalidResampling)
}

func TestGridHelpers(t *testing.T) {
	g := New("BE", testDay, time.Hour, 24)
	require.NoError(t, g.Set(psr.Nuclear, make([]float64, 24)))
	require.NoError(t, g.Set(psr.FossilGas, make([]float64, 24)))
	g.Production[psr.Nuclear][2] = 3
	g.Production[psr.FossilGas][2] = 4

	assert.Equal(t, []psr.Type{psr.FossilGas, psr.Nuclear}, g.Types())
	assert.InDelta(t, 7, g.Total()[2], 1e-9)
	assert.Equal(t, testDay.Add(2*time.Hour), g.Timestamp(2))

	g.Drop(psr.FossilGas)
	assert.Equal(t, []psr.Type{psr.Nuclear}, g.Types())
}
