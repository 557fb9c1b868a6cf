package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/forPelevin/clipforge/internal/apperr"
	"github.com/forPelevin/clipforge/internal/ports"
)

const (
	capabilityTimeout = 10 * time.Second
	stderrTail        = 4000
)

type Adapter struct {
	ffmpeg  string
	ffprobe string
	preset  string
	crf     int
}

type Option func(*Adapter)

func WithEncoding(preset string, crf int) Option {
	return func(a *Adapter) {
		if preset != "" {
			a.preset = preset
		}
		if crf > 0 {
			a.crf = crf
		}
	}
}

func New(ffmpegPath, ffprobePath string, opts ...Option) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	a := &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath, preset: "veryfast", crf: 18}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *Adapter) ExtractAudioMono16k(ctx context.Context, in, outWav string) error {
	return a.run(ctx, "extract audio",
		"-y",
		"-hide_banner",
		"-i", in,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		outWav,
	)
}

func (a *Adapter) Thumbnail(ctx context.Context, in string, at float64, outJPG string) error {
	if at < 0 {
		at = 0
	}
	return a.run(ctx, "thumbnail",
		"-y",
		"-hide_banner",
		"-ss", fmtSeconds(at),
		"-i", in,
		"-frames:v", "1",
		"-q:v", "2",
		outJPG,
	)
}

// SampleFrames writes up to max evenly spaced JPEG frames of in into outDir.
func (a *Adapter) SampleFrames(ctx context.Context, in string, duration float64, max int, outDir string) ([]ports.Frame, error) {
	if duration <= 0 || max <= 0 {
		return nil, fmt.Errorf("sample frames: duration and max must be > 0")
	}
	every := duration / float64(max)
	if every < 1 {
		every = 1
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	pattern := filepath.Join(outDir, "frame_%03d.jpg")
	err := a.run(ctx, "sample frames",
		"-y",
		"-hide_banner",
		"-i", in,
		"-vf", fmt.Sprintf("fps=1/%s,scale=512:-2", strconv.FormatFloat(every, 'f', 3, 64)),
		"-frames:v", strconv.Itoa(max),
		"-q:v", "4",
		pattern,
	)
	if err != nil {
		return nil, err
	}
	matches, err := filepath.Glob(filepath.Join(outDir, "frame_*.jpg"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	out := make([]ports.Frame, 0, len(matches))
	for i, p := range matches {
		// fps=1/N emits the first frame at t=0 and one every N seconds after.
		out = append(out, ports.Frame{Path: p, At: float64(i) * every})
	}
	return out, nil
}

// Available checks that ffmpeg runs and provides the libx264 encoder and the
// subtitles filter that exports depend on.
func (a *Adapter) Available(ctx context.Context) error {
	if _, err := exec.LookPath(a.ffmpeg); err != nil {
		return apperr.Wrap(apperr.ErrEncoderUnavailable, err, "ffmpeg binary %q not found", a.ffmpeg)
	}
	ctx, cancel := context.WithTimeout(ctx, capabilityTimeout)
	defer cancel()

	enc, err := exec.CommandContext(ctx, a.ffmpeg, "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		return apperr.Wrap(apperr.ErrEncoderUnavailable, err, "ffmpeg -encoders failed")
	}
	if !bytes.Contains(enc, []byte("libx264")) {
		return apperr.New(apperr.ErrEncoderUnavailable, "ffmpeg at %q lacks the libx264 encoder", a.ffmpeg)
	}
	flt, err := exec.CommandContext(ctx, a.ffmpeg, "-hide_banner", "-filters").CombinedOutput()
	if err != nil {
		return apperr.Wrap(apperr.ErrEncoderUnavailable, err, "ffmpeg -filters failed")
	}
	if !bytes.Contains(flt, []byte(" subtitles ")) {
		return apperr.New(apperr.ErrEncoderUnavailable, "ffmpeg at %q lacks the subtitles filter (libass)", a.ffmpeg)
	}
	return nil
}

// Export renders spec. A non-zero exit comes back as a SubprocessError
// carrying the tail of ffmpeg's stderr.
func (a *Adapter) Export(ctx context.Context, spec ports.ExportSpec) error {
	if spec.End <= spec.Start {
		return apperr.New(apperr.ErrInvalidRange, "export range [%.3f, %.3f] is empty", spec.Start, spec.End)
	}
	if err := os.MkdirAll(filepath.Dir(spec.Output), 0o755); err != nil {
		return err
	}
	return a.run(ctx, "export", exportArgs(spec, a.preset, a.crf)...)
}

func exportArgs(spec ports.ExportSpec, preset string, crf int) []string {
	args := []string{
		"-y",
		"-hide_banner",
		"-nostdin",
		"-i", spec.Input,
		"-filter_complex", BuildExportGraph(spec),
		"-map", "[v]",
	}
	if spec.HasAudio {
		args = append(args, "-map", "[a]", "-c:a", "aac", "-b:a", "192k")
	}
	args = append(args,
		"-c:v", "libx264",
		"-preset", preset,
		"-crf", strconv.Itoa(crf),
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		spec.Output,
	)
	return args
}

func (a *Adapter) run(ctx context.Context, what string, args ...string) error {
	cmd := exec.CommandContext(ctx, a.ffmpeg, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return apperr.Wrap(apperr.ErrSubprocess, ctx.Err(), "ffmpeg %s interrupted", what)
		}
		return apperr.Wrap(apperr.ErrSubprocess, err, "ffmpeg %s failed: %s", what, tail(stderr.String(), stderrTail))
	}
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "…" + s[len(s)-n:]
}

func fmtSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

// escapeFilterPath escapes a file path for use as a filter option value
// inside a filtergraph.
func escapeFilterPath(p string) string {
	r := strings.NewReplacer(
		`\`, `\\\\`,
		`:`, `\\:`,
		`'`, `\\\'`,
		`,`, `\,`,
		`;`, `\;`,
		`[`, `\[`,
		`]`, `\]`,
	)
	return r.Replace(p)
}
