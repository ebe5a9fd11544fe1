package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/odect/odect/pkg/attribution"
	"github.com/odect/odect/pkg/psr"
	"github.com/odect/odect/pkg/segment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	noOpLogger = slog.New(slog.DiscardHandler)
	testDay    = time.Date(2023, 7, 18, 0, 0, 0, 0, time.UTC)
	errOutage  = errors.New("outage")
)

const (
	nlCode = "10YNL----------L"
	beCode = "10YBE----------2"
	deCode = "10Y1001A1001A82H"
	deOld  = "10Y1001A1001A63L"
	dkCode = "10YDK-1--------W"
	gbCode = "10YGB----------A"
)

func span(n int, q int64) []segment.Point {
	p := make([]segment.Point, n)
	for i := range p {
		p[i] = segment.Point{Position: i + 1, Quantity: q}
	}

	return p
}

// mockSource serves canned reports keyed by EIC code.
type mockSource struct {
	reports map[string]*segment.Report
	flows   map[string]attribution.Volume
	codes   []string
}

func (s *mockSource) Generation(_ context.Context, name, code string, day time.Time) (*segment.Report, error) {
	s.codes = append(s.codes, code)

	r, ok := s.reports[code]
	if !ok {
		return nil, errOutage
	}

	out := *r
	out.Zone = name
	out.Start = day

	return &out, nil
}

func (s *mockSource) Flows(_ context.Context, in, out string, _ time.Time) (attribution.Volume, error) {
	v, ok := s.flows[in+">"+out]
	if !ok {
		return attribution.Volume{}, errOutage
	}

	return v, nil
}

func constant(n int, v float64) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = v
	}

	return values
}

func newSource() *mockSource {
	return &mockSource{
		reports: map[string]*segment.Report{
			// Quarter hourly target zone
			nlCode: {
				Resolution: 15 * time.Minute,
				Segments: []segment.Segment{
					{Type: psr.FossilGas, Points: span(96, 4000)},
					{Type: psr.Solar, Points: span(96, 100)},
					{Type: psr.WindOnshore, Points: span(96, 300)},
				},
			},
			beCode: {
				Resolution: time.Hour,
				Segments: []segment.Segment{
					{Type: psr.Nuclear, Points: span(24, 3000)},
					{Type: psr.FossilGas, Points: span(24, 1000)},
				},
			},
		},
		flows: map[string]attribution.Volume{
			nlCode + ">" + beCode: {Resolution: time.Hour, Values: constant(24, 800)},
		},
	}
}

func TestFetch(t *testing.T) {
	source := newSource()

	r, err := New(&Config{
		Logger:     noOpLogger,
		Target:     Zone{Name: "NL", Code: nlCode},
		Neighbours: []Zone{{Name: "BE", Code: beCode}, {Name: "DE", Code: deCode}},
		DropTypes:  []psr.Type{psr.WindOnshore, psr.Solar},
	}, source)
	require.NoError(t, err)

	m, err := r.Fetch(t.Context(), testDay.Add(5*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 24, m.Len())
	assert.Equal(t, testDay, m.Rows[0].Timestamp)
	assert.Equal(t, testDay.Add(23*time.Hour), m.Rows[23].Timestamp)

	// Dropped types are replaced by models and DE is unavailable
	assert.Equal(t, []string{"CCGT_BE", "CCGT_NL", "NUCL_BE"}, m.Columns())

	row := m.Rows[10].Values
	assert.InDelta(t, 4000, row["CCGT_NL"], 1e-9)
	assert.InDelta(t, 600, row["NUCL_BE"], 1e-9)
	assert.InDelta(t, 200, row["CCGT_BE"], 1e-9)
}

func TestFetchLegacyCodesAndSince(t *testing.T) {
	source := newSource()
	source.reports[deOld] = source.reports[beCode]
	source.flows[nlCode+">"+deOld] = attribution.Volume{Resolution: time.Hour, Values: constant(24, 100)}

	r, err := New(&Config{
		Logger: noOpLogger,
		Target: Zone{Name: "NL", Code: nlCode},
		Neighbours: []Zone{
			{
				Name:        "DE",
				Code:        deCode,
				LegacyCode:  deOld,
				LegacyUntil: time.Date(2018, 10, 1, 0, 0, 0, 0, time.UTC),
			},
			{Name: "DK", Code: dkCode, Since: time.Date(2019, 9, 9, 0, 0, 0, 0, time.UTC)},
		},
	}, source)
	require.NoError(t, err)

	day := time.Date(2018, 5, 1, 0, 0, 0, 0, time.UTC)

	m, err := r.Fetch(t.Context(), day)
	require.NoError(t, err)
	assert.Contains(t, m.Columns(), "NUCL_DE")
	assert.Contains(t, source.codes, deOld)
	assert.NotContains(t, source.codes, dkCode)
}

func TestFetchUnavailable(t *testing.T) {
	r, err := New(&Config{
		Logger: noOpLogger,
		Target: Zone{Name: "NL", Code: nlCode},
	}, &mockSource{})
	require.NoError(t, err)

	_, err = r.Fetch(t.Context(), testDay)
	require.ErrorIs(t, err, ErrFetchUnavailable)
	require.ErrorIs(t, err, errOutage)
}

func TestFetchNetGeneration(t *testing.T) {
	source := &mockSource{reports: map[string]*segment.Report{
		nlCode: {
			Resolution: time.Hour,
			Segments: []segment.Segment{
				{Type: psr.HydroPumped, Points: span(24, 50)},
				{Type: psr.HydroPumped, Points: span(24, 20)},
			},
		},
	}}

	for _, net := range []bool{false, true} {
		r, err := New(&Config{Logger: noOpLogger, Target: Zone{Name: "NL", Code: nlCode}, NetGeneration: net}, source)
		require.NoError(t, err)

		m, err := r.Fetch(t.Context(), testDay)
		require.NoError(t, err)

		expected := 50.0
		if net {
			expected = 30
		}

		assert.InDelta(t, expected, m.Rows[0].Values["HYPS_NL"], 1e-9, fmt.Sprintf("net=%v", net))
	}
}

func TestFetchModels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wind.csv")

	var b strings.Builder
	b.WriteString("datetime,value\n")

	for i := range 24 {
		ts := testDay.Add(time.Duration(i) * time.Hour)
		fmt.Fprintf(&b, "%s,%d\n", ts.Format("2006-01-02 15:04"), 100)
		fmt.Fprintf(&b, "%s,%d\n", ts.Add(30*time.Minute).Format(time.RFC3339), 200)
	}

	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))

	r, err := New(&Config{
		Logger: noOpLogger,
		Target: Zone{Name: "NL", Code: nlCode},
		Models: []ModelSource{NewCSVModel("WDNS_NL", path), NewCSVModel("PVRO_NL", filepath.Join(dir, "missing.csv"))},
	}, &mockSource{})
	require.NoError(t, err)

	// Target is down but the model still provides data
	m, err := r.Fetch(t.Context(), testDay)
	require.NoError(t, err)
	assert.Equal(t, []string{"WDNS_NL"}, m.Columns())
	assert.InDelta(t, 150, m.Rows[3].Values["WDNS_NL"], 1e-9)

	// Days outside of the file are unavailable
	_, err = r.Fetch(t.Context(), testDay.AddDate(0, 0, 10))
	require.ErrorIs(t, err, ErrFetchUnavailable)
}

func writeGBMix(t *testing.T, dir string) string {
	t.Helper()

	var b strings.Builder
	b.WriteString("DATETIME,GAS,GAS_perc,NUCLEAR_perc,WIND_perc,IMPORTS_perc,WDOF_perc\n")

	for i := range 24 {
		ts := testDay.Add(time.Duration(i) * time.Hour)
		fmt.Fprintf(&b, "%s,5000,50,20,25,5,\n", ts.Format("2006-01-02T15:04:05"))
		fmt.Fprintf(&b, "%s,7000,70,10,15,5,\n", ts.Add(30*time.Minute).Format("2006-01-02 15:04:05+00:00"))
	}

	path := filepath.Join(dir, "gb.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))

	return path
}

func TestFetchMixFile(t *testing.T) {
	source := newSource()
	source.flows[nlCode+">"+gbCode] = attribution.Volume{Resolution: time.Hour, Values: constant(24, 400)}

	r, err := New(&Config{
		Logger:     noOpLogger,
		Target:     Zone{Name: "NL", Code: nlCode},
		Neighbours: []Zone{{Name: "GB", Code: gbCode, MixFile: writeGBMix(t, t.TempDir())}},
		DropTypes:  []psr.Type{psr.WindOnshore, psr.Solar},
	}, source)
	require.NoError(t, err)

	m, err := r.Fetch(t.Context(), testDay)
	require.NoError(t, err)

	// Generation per type of GB is never requested
	assert.NotContains(t, source.codes, gbCode)
	assert.Equal(t, []string{"CCGT_GB", "CCGT_NL", "NUCL_GB", "WDON_GB"}, m.Columns())

	// Hourly mix is 60% gas, 15% nuclear and 20% wind of the 95% covered
	row := m.Rows[7].Values
	assert.InDelta(t, 400*60.0/95, row["CCGT_GB"], 1e-9)
	assert.InDelta(t, 400*15.0/95, row["NUCL_GB"], 1e-9)
	assert.InDelta(t, 400*20.0/95, row["WDON_GB"], 1e-9)
	assert.InDelta(t, 400, row["CCGT_GB"]+row["NUCL_GB"]+row["WDON_GB"], 1e-9)
}

func TestFetchMixFileUnavailable(t *testing.T) {
	source := newSource()
	source.flows[nlCode+">"+gbCode] = attribution.Volume{Resolution: time.Hour, Values: constant(24, 400)}

	dir := t.TempDir()
	path := writeGBMix(t, dir)

	r, err := New(&Config{
		Logger: noOpLogger,
		Target: Zone{Name: "NL", Code: nlCode},
		Neighbours: []Zone{
			{Name: "GB", Code: gbCode, MixFile: path},
			{Name: "IE", Code: "10Y1001A1001A59C", MixFile: filepath.Join(dir, "missing.csv")},
		},
	}, source)
	require.NoError(t, err)

	// Days outside of the file contribute nothing
	m, err := r.Fetch(t.Context(), testDay.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.NotContains(t, m.Columns(), "CCGT_GB")
	assert.NotContains(t, m.Columns(), "CCGT_IE")
	assert.Contains(t, m.Columns(), "CCGT_NL")
}

func TestCSVMix(t *testing.T) {
	dir := t.TempDir()

	g, err := NewCSVMix(writeGBMix(t, dir)).Grid(t.Context(), "GB", testDay)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, g.Resolution)
	assert.Equal(t, []psr.Type{psr.FossilGas, psr.Nuclear, psr.WindOnshore}, g.Types())
	assert.InDelta(t, 0.6, g.Production[psr.FossilGas][23], 1e-9)
	assert.InDelta(t, 0.15, g.Production[psr.Nuclear][0], 1e-9)

	bad := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("DATETIME,GAS\n2023-07-18T00:00:00,10\n"), 0o600))

	_, err = NewCSVMix(bad).Grid(t.Context(), "GB", testDay)
	require.ErrorIs(t, err, ErrInvalidMix)
}

func TestZone(t *testing.T) {
	z := Zone{Name: "DE", Code: deCode, LegacyCode: deOld, LegacyUntil: time.Date(2018, 10, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, z.Validate())
	assert.Equal(t, deOld, z.CodeOn(time.Date(2018, 9, 30, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, deCode, z.CodeOn(time.Date(2018, 10, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, z.Active(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)))

	require.ErrorIs(t, Zone{Name: "X"}.Validate(), ErrInvalidZone)
	require.ErrorIs(t, Zone{Name: "X", Code: "Y", LegacyCode: "Z"}.Validate(), ErrInvalidZone)
}
