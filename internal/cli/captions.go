package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/forPelevin/clipforge/internal/domain/subtitles"
	"github.com/forPelevin/clipforge/internal/domain/transcript"
	"github.com/forPelevin/clipforge/internal/types"
)

type captionsFlags struct {
	start        float64
	end          float64
	style        string
	styleFile    string
	format       string
	wordsPerLine int
	aspect       string
	out          string
}

func newCaptionsCmd() *cobra.Command {
	var f captionsFlags
	cmd := &cobra.Command{
		Use:   "captions <transcript.json>",
		Short: "Render a caption track for a window of a word-timed transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := renderCaptionsFile(args[0], f)
			if err != nil {
				return err
			}
			if f.out == "" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), body)
				return err
			}
			return os.WriteFile(f.out, []byte(body), 0o644)
		},
	}
	cmd.Flags().Float64Var(&f.start, "start", 0, "Window start in seconds")
	cmd.Flags().Float64Var(&f.end, "end", 0, "Window end in seconds (default: end of transcript)")
	cmd.Flags().StringVar(&f.style, "style", subtitles.DefaultPreset, "Caption style preset")
	cmd.Flags().StringVar(&f.styleFile, "style-file", "", "YAML file with a custom caption style (overrides --style)")
	cmd.Flags().StringVar(&f.format, "format", "ass", "Output format: ass or srt")
	cmd.Flags().IntVar(&f.wordsPerLine, "words-per-line", subtitles.DefaultWordsPerLine, "Words per caption line (1-12)")
	cmd.Flags().StringVar(&f.aspect, "aspect", string(types.Aspect9x16), "Frame aspect ratio used for layout")
	cmd.Flags().StringVar(&f.out, "out", "", "Write to this file instead of stdout")
	return cmd
}

func renderCaptionsFile(path string, f captionsFlags) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var tr types.Transcript
	if err := json.Unmarshal(b, &tr); err != nil {
		return "", fmt.Errorf("parse transcript %s: %w", path, err)
	}
	tr = transcript.Normalize(tr)

	end := f.end
	if end == 0 {
		_, e, ok := tr.Bounds()
		if !ok {
			return "", errors.New("transcript is empty")
		}
		end = e
	}

	format, err := subtitles.ParseFormat(f.format)
	if err != nil {
		return "", err
	}
	w, h, ok := types.AspectRatio(f.aspect).Resolution()
	if !ok {
		return "", fmt.Errorf("unsupported aspect ratio %q", f.aspect)
	}
	style, err := loadStyle(f.style, f.styleFile)
	if err != nil {
		return "", err
	}

	r := transcript.SubRange(tr, f.start, end)
	return subtitles.Render(subtitles.Input{
		Words:        r.Words,
		FallbackText: transcript.TextInRange(tr, f.start, end),
		Start:        f.start,
		End:          end,
	}, subtitles.Options{
		Format:       format,
		Style:        style,
		WordsPerLine: f.wordsPerLine,
		Width:        w,
		Height:       h,
	})
}

// loadStyle reads a custom StyleSpec from YAML, starting from the named
// preset so the file only needs the fields it changes.
func loadStyle(preset, file string) (types.CaptionStyle, error) {
	cs := types.CaptionStyle{Preset: preset}
	if file == "" {
		return cs, nil
	}
	base, err := subtitles.Resolve(cs)
	if err != nil {
		return cs, err
	}
	b, err := os.ReadFile(file)
	if err != nil {
		return cs, err
	}
	if err := yaml.Unmarshal(b, &base); err != nil {
		return cs, fmt.Errorf("parse style file %s: %w", file, err)
	}
	if err := validator.New().Struct(base); err != nil {
		return cs, fmt.Errorf("invalid style file %s: %w", file, err)
	}
	return types.CaptionStyle{Custom: &base}, nil
}
