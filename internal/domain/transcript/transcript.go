// Package transcript holds the pure operations over word-timed transcripts:
// range extraction, normalization and filler-word editing.
package transcript

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/forPelevin/clipforge/internal/types"
)

// Range is the part of a transcript overlapping a time window. Times stay on
// the source timeline.
type Range struct {
	Words    []types.Word    `json:"words"`
	Segments []types.Segment `json:"segments"`
}

// SubRange returns the words and segments that overlap [start, end).
func SubRange(tr types.Transcript, start, end float64) Range {
	var out Range
	for _, s := range tr.Segments {
		if s.End <= start || s.Start >= end {
			continue
		}
		seg := types.Segment{Start: s.Start, End: s.End, Text: s.Text}
		for _, w := range s.Words {
			if w.End <= start || w.Start >= end {
				continue
			}
			if strings.TrimSpace(w.Word) == "" {
				continue
			}
			seg.Words = append(seg.Words, w)
			out.Words = append(out.Words, w)
		}
		if len(s.Words) > 0 && len(seg.Words) > 0 {
			seg.Text = joinWords(seg.Words)
		}
		out.Segments = append(out.Segments, seg)
	}
	return out
}

// TextInRange is the space-joined text of the window, from word timings when
// available and whole segment text otherwise.
func TextInRange(tr types.Transcript, start, end float64) string {
	r := SubRange(tr, start, end)
	if len(r.Words) > 0 {
		return joinWords(r.Words)
	}
	parts := make([]string, 0, len(r.Segments))
	for _, s := range r.Segments {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// Covers reports whether the transcript has any timed content in [start, end).
func Covers(tr types.Transcript, start, end float64) bool {
	r := SubRange(tr, start, end)
	return len(r.Words) > 0 || len(r.Segments) > 0
}

// Normalize trims text and repairs timing so that every segment and word has
// start <= end and words within a segment do not overlap. Segments are
// ordered by start.
func Normalize(tr types.Transcript) types.Transcript {
	out := types.Transcript{Segments: make([]types.Segment, 0, len(tr.Segments))}
	for _, s := range tr.Segments {
		s.Text = strings.TrimSpace(s.Text)
		if s.End < s.Start {
			s.End = s.Start
		}
		words := make([]types.Word, 0, len(s.Words))
		for _, w := range s.Words {
			w.Word = strings.TrimSpace(w.Word)
			if w.Word == "" {
				continue
			}
			if n := len(words); n > 0 && w.Start < words[n-1].End {
				w.Start = words[n-1].End
			}
			if w.End < w.Start {
				w.End = w.Start
			}
			words = append(words, w)
		}
		s.Words = words
		if s.Text == "" && len(words) > 0 {
			s.Text = joinWords(words)
		}
		if s.Text == "" {
			continue
		}
		out.Segments = append(out.Segments, s)
	}
	sort.SliceStable(out.Segments, func(i, j int) bool { return out.Segments[i].Start < out.Segments[j].Start })
	return out
}

// Validate checks the ordering invariants Normalize establishes.
func Validate(tr types.Transcript) error {
	for i, s := range tr.Segments {
		if !validTime(s.Start) || !validTime(s.End) {
			return fmt.Errorf("segment %d: times must be finite and non-negative", i)
		}
		if s.Start > s.End {
			return fmt.Errorf("segment %d: start %.3f > end %.3f", i, s.Start, s.End)
		}
		for j, w := range s.Words {
			if !validTime(w.Start) || !validTime(w.End) {
				return fmt.Errorf("segment %d word %d: times must be finite and non-negative", i, j)
			}
			if w.Start > w.End {
				return fmt.Errorf("segment %d word %d: start %.3f > end %.3f", i, j, w.Start, w.End)
			}
			if j > 0 && s.Words[j-1].End > w.Start {
				return fmt.Errorf("segment %d word %d: overlaps previous word", i, j)
			}
		}
	}
	return nil
}

func validTime(t float64) bool {
	return t >= 0 && !math.IsInf(t, 0)
}

// FromSegments builds a transcript from client-supplied segments, deriving
// segment bounds from words when they are missing.
func FromSegments(segs []types.Segment) types.Transcript {
	out := types.Transcript{Segments: make([]types.Segment, 0, len(segs))}
	for _, s := range segs {
		if len(s.Words) > 0 && s.Start == 0 && s.End == 0 {
			s.Start = s.Words[0].Start
			s.End = s.Words[len(s.Words)-1].End
		}
		out.Segments = append(out.Segments, s)
	}
	return Normalize(out)
}

func joinWords(ws []types.Word) string {
	parts := make([]string, 0, len(ws))
	for _, w := range ws {
		if t := strings.TrimSpace(w.Word); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
