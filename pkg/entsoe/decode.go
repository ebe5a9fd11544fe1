package entsoe

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"time"

	"github.com/odect/odect/pkg/attribution"
	"github.com/odect/odect/pkg/psr"
	"github.com/odect/odect/pkg/segment"
)

// Reason code of acknowledgements for empty results.
const reasonNoData = "999"

var resolutionRegex = regexp.MustCompile(`^PT(\d+)([MH])$`)

// parseResolution parses the ISO 8601 durations used by the API, e.g. PT15M
// or PT60M.
func parseResolution(s string) (time.Duration, error) {
	m := resolutionRegex.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidResolution, s)
	}

	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidResolution, s)
	}

	if m[2] == "H" {
		return time.Duration(n) * time.Hour, nil
	}

	return time.Duration(n) * time.Minute, nil
}

// rootName returns the local name of the root element.
func rootName(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	for {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}

		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}

// acknowledgement converts an acknowledgement document into an error.
func acknowledgement(data []byte) error {
	var ack acknowledgementDocument
	if err := xml.Unmarshal(data, &ack); err != nil {
		return err
	}

	if ack.Reason.Code == reasonNoData {
		return fmt.Errorf("%w: %s", ErrNoData, ack.Reason.Text)
	}

	return fmt.Errorf("%w: code %s: %s", ErrRequestFailed, ack.Reason.Code, ack.Reason.Text)
}

// read reads a document and checks its root element.
func read(r io.Reader, expected string) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	name, err := rootName(data)
	if err != nil {
		return nil, err
	}

	switch name {
	case expected:
		return data, nil
	case "Acknowledgement_MarketDocument":
		return nil, acknowledgement(data)
	default:
		return nil, fmt.Errorf("%w: %s, expected %s", ErrUnexpectedDocument, name, expected)
	}
}

// DecodeGeneration decodes an actual generation per type document into a
// report for zone. Every period becomes one segment, in document order.
func DecodeGeneration(r io.Reader, zone string) (*segment.Report, error) {
	data, err := read(r, "GL_MarketDocument")
	if err != nil {
		return nil, err
	}

	var doc generationDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	report := &segment.Report{Zone: zone}

	for _, ts := range doc.TimeSeries {
		hint := segment.RoleProduction
		if ts.InZone == "" && ts.OutZone != "" {
			hint = segment.RoleConsumption
		}

		for _, p := range ts.Periods {
			if err := setPeriod(report, p); err != nil {
				return nil, err
			}

			seg := segment.Segment{
				Type:     psr.Type(ts.MktPSRType.PSRType),
				RoleHint: hint,
				Points:   make([]segment.Point, len(p.Points)),
			}

			for i, pt := range p.Points {
				seg.Points[i] = segment.Point{Position: pt.Position, Quantity: pt.Quantity}
			}

			report.Segments = append(report.Segments, seg)
		}
	}

	if len(report.Segments) == 0 {
		return nil, ErrNoData
	}

	return report, nil
}

// DecodeFlows decodes a physical flows document into the volume flowing
// during day. Points of all series are summed per slot and absent points
// are zero.
func DecodeFlows(r io.Reader, day time.Time) (attribution.Volume, error) {
	var vol attribution.Volume

	data, err := read(r, "Publication_MarketDocument")
	if err != nil {
		return vol, err
	}

	var doc flowDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return vol, err
	}

	for _, ts := range doc.TimeSeries {
		for _, p := range ts.Periods {
			res, err := parseResolution(p.Resolution)
			if err != nil {
				return vol, err
			}

			if vol.Resolution == 0 {
				slots, err := segment.Slots(res)
				if err != nil {
					return vol, err
				}

				vol.Resolution = res
				vol.Values = make([]float64, slots)
			} else if vol.Resolution != res {
				return vol, fmt.Errorf("%w: %s and %s", ErrMixedResolution, vol.Resolution, res)
			}

			start, err := time.Parse(timeLayout, p.TimeInterval.Start)
			if err != nil {
				return vol, err
			}

			offset := int(start.Sub(day) / res)

			for _, pt := range p.Points {
				idx := offset + pt.Position - 1
				if idx < 0 || idx >= len(vol.Values) {
					continue
				}

				vol.Values[idx] += float64(pt.Quantity)
			}
		}
	}

	if vol.Resolution == 0 {
		return vol, ErrNoData
	}

	return vol, nil
}

// setPeriod sets the start and resolution of the report from its first
// period and checks that later periods share the resolution.
func setPeriod(report *segment.Report, p period) error {
	res, err := parseResolution(p.Resolution)
	if err != nil {
		return err
	}

	if report.Resolution == 0 {
		start, err := time.Parse(timeLayout, p.TimeInterval.Start)
		if err != nil {
			return err
		}

		report.Start = start.UTC()
		report.Resolution = res

		return nil
	}

	if report.Resolution != res {
		return fmt.Errorf("%w: %s and %s", ErrMixedResolution, report.Resolution, res)
	}

	return nil
}
