package openrouter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/forPelevin/clipforge/internal/types"
)

// proposedRange is one clip range as the model returns it.
type proposedRange struct {
	StartTime        float64 `json:"start_time"`
	EndTime          float64 `json:"end_time"`
	Title            string  `json:"title"`
	Description      string  `json:"description"`
	EmotionalContent string  `json:"emotional_content"`
	HookStrength     string  `json:"hook_strength"`
	Transcript       string  `json:"transcript"`
	Caption          string  `json:"caption"`
	VisualHook       string  `json:"visual_hook,omitempty"`
	AudioCue         string  `json:"audio_cue,omitempty"`
	Justification    string  `json:"justification,omitempty"`
}

var (
	emotionTags = []string{"humor", "surprise", "inspiration", "controversy", "motivation", "story", "education", "fear"}
	hookTags    = []string{"very_weak", "weak", "moderate", "strong", "very_strong"}
)

func rangesSchema(visual bool) map[string]any {
	str := map[string]any{"type": "string"}
	props := map[string]any{
		"start_time":        map[string]any{"type": "number"},
		"end_time":          map[string]any{"type": "number"},
		"title":             str,
		"description":       str,
		"emotional_content": map[string]any{"type": "string", "enum": emotionTags},
		"hook_strength":     map[string]any{"type": "string", "enum": hookTags},
		"transcript":        str,
		"caption":           str,
	}
	required := []string{"start_time", "end_time", "title", "description", "emotional_content", "hook_strength", "transcript", "caption"}
	if visual {
		props["visual_hook"] = str
		props["audio_cue"] = str
		props["justification"] = str
		required = append(required, "visual_hook", "audio_cue", "justification")
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"clips": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":       "object",
					"properties": props,
					"required":   required,
				},
			},
		},
		"required": []string{"clips"},
	}
}

// decodeRanges parses the model's JSON object. An empty list is an error so
// the caller can fall back.
func decodeRanges(content string, source types.CandidateSource) ([]types.Candidate, error) {
	var out struct {
		Clips []proposedRange `json:"clips"`
	}
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("decode clips: %w", err)
	}
	if len(out.Clips) == 0 {
		return nil, fmt.Errorf("model proposed no clips")
	}
	cands := make([]types.Candidate, 0, len(out.Clips))
	for _, r := range out.Clips {
		title := strings.TrimSpace(r.Title)
		if title == "" {
			title = "Highlight"
		}
		caption := strings.TrimSpace(r.Caption)
		if caption == "" {
			caption = title
		}
		cands = append(cands, types.Candidate{
			StartTime:        r.StartTime,
			EndTime:          r.EndTime,
			Title:            title,
			Description:      strings.TrimSpace(r.Description),
			EmotionalContent: r.EmotionalContent,
			HookStrength:     r.HookStrength,
			Transcript:       strings.TrimSpace(r.Transcript),
			Caption:          caption,
			Justification:    joinJustification(r),
			Source:           source,
		})
	}
	return cands, nil
}

func joinJustification(r proposedRange) string {
	var parts []string
	if v := strings.TrimSpace(r.VisualHook); v != "" {
		parts = append(parts, "visual: "+v)
	}
	if v := strings.TrimSpace(r.AudioCue); v != "" {
		parts = append(parts, "audio: "+v)
	}
	if v := strings.TrimSpace(r.Justification); v != "" {
		parts = append(parts, v)
	}
	return strings.Join(parts, "; ")
}
