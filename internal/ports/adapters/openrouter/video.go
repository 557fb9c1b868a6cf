package openrouter

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/forPelevin/clipforge/internal/ports"
	"github.com/forPelevin/clipforge/internal/types"
)

const defaultMaxFrames = 24

// VideoDetector shows a multimodal model frames sampled across the raw video
// and asks for 3-8 ranges with visual and audio justification.
type VideoDetector struct {
	c         *Client
	model     string
	sampler   ports.FrameSampler
	cacheDir  string
	maxFrames int
}

func NewVideoDetector(c *Client, model string, sampler ports.FrameSampler, cacheDir string) *VideoDetector {
	if model == "" {
		model = "google/gemini-2.0-flash-001"
	}
	return &VideoDetector{c: c, model: model, sampler: sampler, cacheDir: cacheDir, maxFrames: defaultMaxFrames}
}

func (d *VideoDetector) Name() string { return string(types.SourceVideoModel) }

func (d *VideoDetector) Detect(ctx context.Context, in ports.DetectInput) ([]types.Candidate, error) {
	if in.VideoPath == "" || in.Duration <= 0 {
		return nil, fmt.Errorf("video detector needs a probed video file")
	}
	if err := os.MkdirAll(d.cacheDir, 0o755); err != nil {
		return nil, err
	}
	dir, err := os.MkdirTemp(d.cacheDir, "frames-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	frames, err := d.sampler.SampleFrames(ctx, in.VideoPath, in.Duration, d.maxFrames, dir)
	if err != nil {
		return nil, fmt.Errorf("sample frames: %w", err)
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames sampled from %s", in.VideoPath)
	}

	parts := []contentPart{{Type: "text", Text: videoPrompt(in)}}
	for _, f := range frames {
		b, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, err
		}
		parts = append(parts,
			contentPart{Type: "text", Text: fmt.Sprintf("Frame at %.1fs:", f.At)},
			contentPart{Type: "image_url", ImageURL: &imageURL{URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(b)}},
		)
	}

	content, err := d.c.complete(ctx, d.model, []message{{Role: "user", Content: parts}}, "video_clip_candidates", rangesSchema(true))
	if err != nil {
		return nil, err
	}
	return decodeRanges(content, types.SourceVideoModel)
}

func videoPrompt(in ports.DetectInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a short-form video editor watching a %.1f second video, shown as timestamped frames. ", in.Duration)
	b.WriteString("Propose 3 to 8 moments that would work as standalone viral clips. start_time and end_time are seconds " +
		"within the video. For each clip explain the visual_hook (what on screen grabs attention), the audio_cue " +
		"(speech, music or sound that carries it) and a short justification. Tag emotional_content and hook_strength " +
		"from the allowed values. Return strictly valid JSON (no markdown, no code fences) matching the schema.")
	if in.Transcript != nil && len(in.Transcript.Segments) > 0 {
		b.WriteString("\n\nSpeech transcript for context:\n")
		for _, s := range in.Transcript.Segments {
			line := fmt.Sprintf("[%.2f-%.2f] %s\n", s.Start, s.End, strings.TrimSpace(s.Text))
			if b.Len()+len(line) > maxTranscriptPromptChars/4 {
				break
			}
			b.WriteString(line)
		}
	}
	return b.String()
}
