package subtitles

import (
	"strings"

	"github.com/forPelevin/clipforge/internal/types"
)

const (
	DefaultWordsPerLine = 4
	MaxWordsPerLine     = 12
)

// Event is one caption event on the clip-local timeline.
type Event struct {
	Start float64
	End   float64
	Words []types.Word
}

func (e Event) Text() string {
	parts := make([]string, 0, len(e.Words))
	for _, w := range e.Words {
		parts = append(parts, w.Word)
	}
	return strings.Join(parts, " ")
}

// GroupWords shifts words from the source timeline onto the clip window
// [start, end), drops words outside it, and packs the rest into events of
// perLine words.
func GroupWords(words []types.Word, start, end float64, perLine int) []Event {
	if perLine <= 0 {
		perLine = DefaultWordsPerLine
	}
	span := end - start
	local := make([]types.Word, 0, len(words))
	for _, w := range words {
		if w.End <= start || w.Start >= end {
			continue
		}
		text := strings.TrimSpace(w.Word)
		if text == "" {
			continue
		}
		ws := clampf(w.Start-start, 0, span)
		we := clampf(w.End-start, ws, span)
		local = append(local, types.Word{Start: ws, End: we, Word: text})
	}

	out := make([]Event, 0, (len(local)+perLine-1)/perLine)
	for i := 0; i < len(local); i += perLine {
		j := i + perLine
		if j > len(local) {
			j = len(local)
		}
		grp := local[i:j:j]
		out = append(out, Event{Start: grp[0].Start, End: grp[len(grp)-1].End, Words: grp})
	}
	return out
}

func clampf(x, a, b float64) float64 {
	if x < a {
		return a
	}
	if x > b {
		return b
	}
	return x
}
