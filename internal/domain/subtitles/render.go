package subtitles

import (
	"fmt"
	"strings"

	"github.com/forPelevin/clipforge/internal/apperr"
	"github.com/forPelevin/clipforge/internal/types"
)

type Spec = types.StyleSpec

type Format string

const (
	FormatASS Format = "ass"
	FormatSRT Format = "srt"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatASS:
		return FormatASS, nil
	case FormatSRT:
		return FormatSRT, nil
	}
	return "", apperr.New(apperr.ErrInvalidInput, "unknown subtitle format %q (want ass or srt)", s)
}

type Options struct {
	Format       Format
	Style        types.CaptionStyle
	WordsPerLine int
	Width        int
	Height       int
}

// Input is the caption source for one clip window [Start, End) on the source
// timeline. FallbackText is used when Words is empty.
type Input struct {
	Words        []types.Word
	FallbackText string
	Start        float64
	End          float64
}

// Render produces the subtitle track for a clip window.
func Render(in Input, opts Options) (string, error) {
	if in.End <= in.Start {
		return "", apperr.New(apperr.ErrInvalidRange, "caption window [%.3f, %.3f) is empty", in.Start, in.End)
	}
	if opts.WordsPerLine < 0 || opts.WordsPerLine > MaxWordsPerLine {
		return "", apperr.New(apperr.ErrInvalidInput, "words per line must be in [1,%d], got %d", MaxWordsPerLine, opts.WordsPerLine)
	}
	format := opts.Format
	if format == "" {
		format = FormatASS
	}
	events := GroupWords(in.Words, in.Start, in.End, opts.WordsPerLine)

	switch format {
	case FormatSRT:
		if len(events) == 0 && strings.TrimSpace(in.FallbackText) != "" {
			events = []Event{textEvent(in.FallbackText, in.End-in.Start)}
		}
		return RenderSRT(events), nil
	case FormatASS:
		spec, err := Resolve(opts.Style)
		if err != nil {
			return "", err
		}
		if len(events) == 0 && strings.TrimSpace(in.FallbackText) != "" {
			return RenderASSText(in.FallbackText, in.End-in.Start, spec, opts.Width, opts.Height), nil
		}
		return RenderASS(events, spec, opts.Width, opts.Height), nil
	}
	return "", fmt.Errorf("unsupported subtitle format %q", format)
}

func textEvent(text string, dur float64) Event {
	fields := strings.Fields(text)
	ws := make([]types.Word, 0, len(fields))
	for _, f := range fields {
		ws = append(ws, types.Word{Start: 0, End: dur, Word: f})
	}
	return Event{Start: 0, End: dur, Words: ws}
}
