package separation

import "fmt"

// Stitcher copies the effective part of each window into the output buffer.
//
// The overlap between two neighbouring windows is split at its midpoint: a
// window gives up the first overlap/2 samples (unless it starts at 0) and
// the last overlap-overlap/2 samples (unless it reaches the end). A cursor
// tracks the first unwritten sample so that no position is written twice,
// even when the playhead advances by something other than the stride.
type Stitcher struct {
	total   int
	overlap int
	log     Logger

	cursor int
	gaps   []Region
}

func NewStitcher(total, overlap int, log Logger) *Stitcher {
	return &Stitcher{total: total, overlap: overlap, log: log}
}

// Trims returns the lead and trail trim for seg.
func (s *Stitcher) Trims(seg Segment) (lead, trail int) {
	if seg.Start > 0 {
		lead = s.overlap / 2
	}
	if seg.End < s.total {
		trail = s.overlap - s.overlap/2
	}
	return lead, trail
}

// Effective returns the nominal effective range of seg, ignoring what has
// already been written.
func (s *Stitcher) Effective(seg Segment) Region {
	lead, trail := s.Trims(seg)
	return Region{Start: seg.Start + lead, End: seg.End - trail}
}

// Cursor is the first output position no window has written yet.
func (s *Stitcher) Cursor() int { return s.cursor }

// Commit writes the effective range of res into out and returns the range
// actually written. A degenerate range yields ErrDegenerateRegion and a shape
// mismatch a *StitchBoundsError; in both cases out is left untouched.
func (s *Stitcher) Commit(seg Segment, res *ChunkResult, out *OutputBuffer) (Region, error) {
	_, trail := s.Trims(seg)
	eff := s.Effective(seg)
	if eff.Start < s.cursor {
		eff.Start = s.cursor
	}
	if eff.End <= eff.Start {
		s.log.Warnf("window %s: effective range [%d,%d) is empty, nothing committed", seg, eff.Start, eff.End)
		return eff, ErrDegenerateRegion
	}

	srcOff := eff.Start - seg.Start
	length := min(seg.Len()-srcOff-trail, eff.Len())
	region := Region{Start: eff.Start, End: eff.Start + length}

	if err := s.check(seg, res, out, srcOff, region); err != nil {
		s.log.Warnf("%v; region [%d,%d) left unwritten", err, region.Start, region.End)
		return region, err
	}

	n := min(len(res.Sources), len(out.Sources))
	for src := 0; src < n; src++ {
		for c := range out.Sources[src] {
			copy(out.Sources[src][c][region.Start:region.End], res.Sources[src][c][srcOff:srcOff+length])
		}
	}

	if region.Start > s.cursor {
		s.gaps = append(s.gaps, Region{Start: s.cursor, End: region.Start})
	}
	s.cursor = region.End
	return region, nil
}

func (s *Stitcher) check(seg Segment, res *ChunkResult, out *OutputBuffer, srcOff int, region Region) error {
	fail := func(format string, args ...any) error {
		return &StitchBoundsError{SegmentIndex: seg.Index, Detail: fmt.Sprintf(format, args...)}
	}
	if region.Start < 0 || region.End > out.Len() {
		return fail("region [%d,%d) outside output of %d samples", region.Start, region.End, out.Len())
	}
	n := min(len(res.Sources), len(out.Sources))
	if n == 0 {
		return fail("no sources to copy")
	}
	for src := 0; src < n; src++ {
		if len(res.Sources[src]) != len(out.Sources[src]) {
			return fail("source %d has %d channels, output has %d", src, len(res.Sources[src]), len(out.Sources[src]))
		}
		for c, ch := range res.Sources[src] {
			if len(ch) < srcOff+region.Len() {
				return fail("source %d channel %d has %d samples, need %d", src, c, len(ch), srcOff+region.Len())
			}
		}
	}
	return nil
}

// Finish closes the trailing gap, if any, and returns every unwritten range.
func (s *Stitcher) Finish() []Region {
	if s.cursor < s.total {
		s.gaps = append(s.gaps, Region{Start: s.cursor, End: s.total})
		s.cursor = s.total
	}
	return s.gaps
}
