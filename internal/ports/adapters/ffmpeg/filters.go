package ffmpeg

import (
	"fmt"
	"strings"

	"github.com/forPelevin/clipforge/internal/ports"
)

// FilterBuilder assembles one comma-joined filter chain.
type FilterBuilder struct {
	filters []string
}

func NewFilterBuilder() *FilterBuilder {
	return &FilterBuilder{}
}

func (fb *FilterBuilder) Trim(start, end float64) *FilterBuilder {
	fb.filters = append(fb.filters, fmt.Sprintf("trim=start=%s:end=%s", fmtSeconds(start), fmtSeconds(end)), "setpts=PTS-STARTPTS")
	return fb
}

func (fb *FilterBuilder) ATrim(start, end float64) *FilterBuilder {
	fb.filters = append(fb.filters, fmt.Sprintf("atrim=start=%s:end=%s", fmtSeconds(start), fmtSeconds(end)), "asetpts=PTS-STARTPTS")
	return fb
}

// Fill scales to cover width x height and center-crops the overflow.
func (fb *FilterBuilder) Fill(width, height int) *FilterBuilder {
	if width <= 0 || height <= 0 {
		return fb
	}
	fb.filters = append(fb.filters,
		fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase", width, height),
		fmt.Sprintf("crop=%d:%d", width, height),
	)
	return fb
}

// Fit scales to fit inside width x height and letterboxes the rest.
func (fb *FilterBuilder) Fit(width, height int) *FilterBuilder {
	if width <= 0 || height <= 0 {
		return fb
	}
	fb.filters = append(fb.filters,
		fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", width, height),
		fmt.Sprintf("pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black", width, height),
	)
	return fb
}

func (fb *FilterBuilder) Subtitles(path string) *FilterBuilder {
	if path == "" {
		return fb
	}
	fb.filters = append(fb.filters, "subtitles="+escapeFilterPath(path))
	return fb
}

func (fb *FilterBuilder) Custom(filter string) *FilterBuilder {
	fb.filters = append(fb.filters, filter)
	return fb
}

func (fb *FilterBuilder) Build() string {
	return strings.Join(fb.filters, ",")
}

// BuildExportGraph trims video and audio to [Start, End] with timestamps
// reset, reframes to the exact target size (crop for portrait and square
// targets, pad for landscape), and burns in the subtitle track.
func BuildExportGraph(spec ports.ExportSpec) string {
	v := NewFilterBuilder().Trim(spec.Start, spec.End)
	if spec.Width > spec.Height {
		v.Fit(spec.Width, spec.Height)
	} else {
		v.Fill(spec.Width, spec.Height)
	}
	v.Custom("setsar=1").Subtitles(spec.SubtitlePath)

	graph := "[0:v]" + v.Build() + "[v]"
	if spec.HasAudio {
		a := NewFilterBuilder().ATrim(spec.Start, spec.End)
		graph += ";[0:a]" + a.Build() + "[a]"
	}
	return graph
}
