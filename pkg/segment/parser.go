package segment

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"

	"github.com/odect/odect/pkg/psr"
)

// action is the transition taken for a segment.
type action int

const (
	actionFinalizeFull action = iota
	actionNewSeries
	actionContinuePartial
)

func (a action) String() string {
	switch a {
	case actionFinalizeFull:
		return "full"
	case actionNewSeries:
		return "base"
	default:
		return "part"
	}
}

// state carries the parser state across the segments of a single report.
type state struct {
	slots        int
	started      bool
	lastType     psr.Type
	lastPosition int
	complete     bool
	role         Role
}

// transition decides what to do with a segment of type t having n points
// and updates the role of the current logical series.
//
// A new logical series starts when the type changes, when the previous
// series is complete or when appending n points would overflow the day. A
// new series of the same type as the previous one is a consumption series.
// A new series with at least as many points as slots is full; extra points
// are clipped later.
func (s *state) transition(t psr.Type, n int) action {
	typeChanged := !s.started || t != s.lastType

	if typeChanged || s.complete || n+s.lastPosition > s.slots {
		if typeChanged {
			s.role = RoleProduction
		} else {
			s.role = RoleConsumption
		}

		if n >= s.slots {
			return actionFinalizeFull
		}

		return actionNewSeries
	}

	return actionContinuePartial
}

// Parser converts reports into typed sub-series.
type Parser struct {
	logger *slog.Logger
}

// NewParser returns a new Parser.
func NewParser(logger *slog.Logger) *Parser {
	return &Parser{logger: logger}
}

// Parse parses all segments of the report in order. Partial segments are
// reported as warnings and still returned so that the grid builder can
// splice them.
func (p *Parser) Parse(r *Report) (*Parsed, error) {
	if r == nil {
		return nil, ErrNilReport
	}

	slots, err := Slots(r.Resolution)
	if err != nil {
		return nil, err
	}

	parsed := &Parsed{Slots: slots}
	s := &state{slots: slots}

	for idx, seg := range r.Segments {
		if len(seg.Points) == 0 {
			p.logger.Warn("Skipping empty segment", "zone", r.Zone, "type", seg.Type, "segment", idx)

			continue
		}

		// Work on a copy ordered by position
		points := slices.Clone(seg.Points)
		slices.SortFunc(points, func(a, b Point) int { return cmp.Compare(a.Position, b.Position) })

		n := len(points)
		act := s.transition(seg.Type, n)

		sub := SubSeries{
			Type:     seg.Type,
			Role:     s.role,
			Segment:  idx,
			Label:    fmt.Sprintf("%s_%s_%s_%d", seg.Type, s.role, act, idx),
			RoleHint: seg.RoleHint,
		}

		if n > slots {
			parsed.Warnings = append(parsed.Warnings, fmt.Errorf(
				"%w: zone %s, type %s, segment %d has %d of %d points", ErrOverlongSegment, r.Zone, seg.Type, idx, n, slots,
			))
			p.logger.Warn(
				"Segment has more points than the day grid, extra points are dropped",
				"zone", r.Zone, "type", seg.Type, "segment", idx, "points", n, "slots", slots,
			)
		}

		lastRaw := points[n-1].Position

		switch act {
		case actionFinalizeFull:
			sub.Completeness = Full
			sub.Points = points
			s.lastPosition = lastRaw
			s.complete = true
		case actionNewSeries:
			sub.Points = points
			s.lastPosition = lastRaw
			s.complete = false
		case actionContinuePartial:
			offset := s.lastPosition
			for i := range points {
				points[i].Position += offset
			}

			sub.Points = points
			s.lastPosition = lastRaw + offset
			s.complete = s.lastPosition == slots
		}

		s.started = true
		s.lastType = seg.Type

		if sub.Completeness == Partial {
			warn := &IncompleteSegmentError{Zone: r.Zone, Type: seg.Type, Segment: idx, Points: n, Slots: slots}
			parsed.Warnings = append(parsed.Warnings, warn)
			p.logger.Warn(
				"Missing data found, missing positions will be zero filled",
				"zone", r.Zone, "type", seg.Type, "segment", idx, "points", n, "slots", slots, "fragment", act,
			)
		}

		if seg.RoleHint != RoleUnknown && seg.RoleHint != sub.Role {
			p.logger.Debug(
				"Provider role hint disagrees with segment ordering",
				"zone", r.Zone, "type", seg.Type, "segment", idx, "hint", seg.RoleHint, "role", sub.Role,
			)
		}

		sub.Points = p.clip(r.Zone, sub, slots, parsed)
		parsed.Series = append(parsed.Series, sub)
	}

	return parsed, nil
}

// clip drops points that fall outside of the day grid.
func (p *Parser) clip(zone string, sub SubSeries, slots int, parsed *Parsed) []Point {
	kept := sub.Points[:0]

	for _, pt := range sub.Points {
		if pt.Position < 1 || pt.Position > slots {
			parsed.Warnings = append(
				parsed.Warnings,
				fmt.Errorf("%w: zone %s, series %s, position %d", ErrPositionOutOfRange, zone, sub.Label, pt.Position),
			)
			p.logger.Warn("Dropping point outside of day grid", "zone", zone, "series", sub.Label, "position", pt.Position)

			continue
		}

		kept = append(kept, pt)
	}

	return kept
}
