package openrouter

import (
	"context"
	"fmt"
	"strings"

	"github.com/forPelevin/clipforge/internal/apperr"
	"github.com/forPelevin/clipforge/internal/ports"
	"github.com/forPelevin/clipforge/internal/types"
)

const maxTranscriptPromptChars = 120_000

// TranscriptDetector asks a language model to read a timestamped transcript
// and propose 5-10 ranges of 15-60 seconds.
type TranscriptDetector struct {
	c     *Client
	model string
}

func NewTranscriptDetector(c *Client, model string) *TranscriptDetector {
	if model == "" {
		model = "anthropic/claude-3.5-sonnet"
	}
	return &TranscriptDetector{c: c, model: model}
}

func (d *TranscriptDetector) Name() string { return string(types.SourceTranscriptModel) }

func (d *TranscriptDetector) Detect(ctx context.Context, in ports.DetectInput) ([]types.Candidate, error) {
	if in.Transcript == nil || len(in.Transcript.Segments) == 0 {
		return nil, apperr.New(apperr.ErrNoTranscriptAvailable, "video %s has no transcript", in.VideoID)
	}
	msgs := []message{{Role: "user", Content: buildTranscriptPrompt(*in.Transcript, in.Duration)}}
	content, err := d.c.complete(ctx, d.model, msgs, "clip_candidates", rangesSchema(false))
	if err != nil {
		return nil, err
	}
	return decodeRanges(content, types.SourceTranscriptModel)
}

func buildTranscriptPrompt(tr types.Transcript, duration float64) string {
	var b strings.Builder
	b.WriteString("You are a short-form video editor. Read the timestamped transcript below and pick the 5 to 10 moments " +
		"most likely to go viral as standalone vertical clips. Each clip must be 15 to 60 seconds long, " +
		"start cleanly and end on a complete thought. start_time and end_time are seconds on the transcript's " +
		"timeline and must fall inside the transcript; do not invent timestamps. " +
		"Tag each clip with emotional_content and hook_strength from the allowed values, quote its transcript, " +
		"and write a one-line social caption. Return strictly valid JSON (no markdown, no code fences) matching the schema.")
	if duration > 0 {
		fmt.Fprintf(&b, "\n\nVideo duration: %.1f seconds.", duration)
	}
	b.WriteString("\n\nTranscript:\n")
	for _, s := range tr.Segments {
		line := fmt.Sprintf("[%.2f-%.2f] %s\n", s.Start, s.End, strings.TrimSpace(s.Text))
		if b.Len()+len(line) > maxTranscriptPromptChars {
			break
		}
		b.WriteString(line)
	}
	return b.String()
}
