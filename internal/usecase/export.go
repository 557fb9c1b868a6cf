package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/forPelevin/clipforge/internal/apperr"
	"github.com/forPelevin/clipforge/internal/domain/subtitles"
	"github.com/forPelevin/clipforge/internal/domain/transcript"
	"github.com/forPelevin/clipforge/internal/ports"
	"github.com/forPelevin/clipforge/internal/types"
	"github.com/forPelevin/clipforge/internal/worker"
)

const stageExport = "export"

// ExportOptions override the clip's own settings for one export. Zero values
// keep the clip's settings.
type ExportOptions struct {
	CaptionStyle *types.CaptionStyle
	AspectRatio  types.AspectRatio
	WordsPerLine int
}

type ExportResult struct {
	ExportPath string      `json:"export_path"`
	Duration   float64     `json:"duration"`
	Resolution string      `json:"resolution"`
	Clip       *types.Clip `json:"clip"`
}

// TriggerExport checks every precondition synchronously, claims the clip and
// queues the render. No subprocess runs before the transcript check passes.
func (s *Service) TriggerExport(ctx context.Context, clipID string, opts ExportOptions) (ExportResult, error) {
	clip, err := s.d.Repo.GetClip(ctx, clipID)
	if err != nil {
		return ExportResult{}, err
	}
	if clip.Status != types.ClipApproved {
		return ExportResult{}, apperr.New(apperr.ErrNotApproved, "clip %s is %s, approve it before export", clip.ID, clip.Status)
	}
	v, err := s.d.Repo.GetVideo(ctx, clip.VideoID)
	if err != nil {
		return ExportResult{}, err
	}
	if !fileExists(v.FilePath) {
		return ExportResult{}, apperr.New(apperr.ErrVideoFileMissing, "video file %q for %s does not exist", v.FilePath, v.ID)
	}
	tr, err := s.d.Repo.GetTranscript(ctx, v.ID)
	if err != nil {
		return ExportResult{}, err
	}
	if tr == nil || !transcript.Covers(*tr, clip.StartTime, clip.EndTime) {
		return ExportResult{}, apperr.New(apperr.ErrNoTranscriptAvailable,
			"no transcript covers clip %s [%.3f, %.3f]", clip.ID, clip.StartTime, clip.EndTime)
	}

	plan, err := s.planExport(clip, opts)
	if err != nil {
		return ExportResult{}, err
	}
	if err := s.EncoderStatus(ctx); err != nil {
		return ExportResult{}, err
	}

	var prev types.ExportStatus
	claimed, err := s.d.Repo.UpdateClip(ctx, clipID, func(c *types.Clip) error {
		if c.ExportStatus == types.ExportRunning && !s.stale(c.ExportChangedAt) {
			return apperr.New(apperr.ErrStageInProgress, "clip %s is already being exported", c.ID)
		}
		if c.Status != types.ClipApproved {
			return apperr.New(apperr.ErrNotApproved, "clip %s is %s, approve it before export", c.ID, c.Status)
		}
		prev = c.ExportStatus
		c.SetExportStatus(types.ExportRunning, s.d.Now())
		delete(c.Metadata, "export_error")
		setMeta(&c.Metadata, "export", map[string]any{
			"aspect_ratio":   string(plan.aspect),
			"caption_style":  styleLabel(plan.style),
			"words_per_line": plan.wordsPerLine,
			"output":         plan.output,
		})
		return nil
	})
	if err != nil {
		return ExportResult{}, err
	}

	snapshot := claimed.Clone()
	video := v.Clone()
	job := worker.JobFunc{Key: jobKey(stageExport, clipID), Fn: func(ctx context.Context) error {
		return s.runExport(ctx, snapshot, video, plan)
	}}
	if err := s.d.Pool.Submit(job, s.o.ExportTimeout); err != nil {
		_, rerr := s.d.Repo.UpdateClip(ctx, clipID, func(c *types.Clip) error {
			if c.ExportStatus == types.ExportRunning && c.ExportChangedAt.Equal(snapshot.ExportChangedAt) {
				c.SetExportStatus(prev, s.d.Now())
			}
			return nil
		})
		if rerr != nil {
			s.log.WithError(rerr).WithField("clip_id", clipID).Error("revert export claim")
		}
		return ExportResult{}, err
	}

	return ExportResult{
		ExportPath: plan.output,
		Duration:   claimed.Duration,
		Resolution: fmt.Sprintf("%dx%d", plan.width, plan.height),
		Clip:       claimed,
	}, nil
}

type exportPlan struct {
	aspect        types.AspectRatio
	style         types.CaptionStyle
	wordsPerLine  int
	width, height int
	output        string
}

func (s *Service) planExport(c *types.Clip, opts ExportOptions) (exportPlan, error) {
	p := exportPlan{aspect: c.AspectRatio, style: c.CaptionStyle, wordsPerLine: opts.WordsPerLine}
	if opts.AspectRatio != "" {
		p.aspect = opts.AspectRatio
	}
	w, h, ok := p.aspect.Resolution()
	if !ok {
		return p, apperr.New(apperr.ErrUnsupportedAspectRatio, "aspect ratio %q is not one of 9:16, 1:1, 4:5, 16:9", p.aspect)
	}
	p.width, p.height = w, h

	if opts.CaptionStyle != nil {
		st, err := s.checkStyle(*opts.CaptionStyle)
		if err != nil {
			return p, err
		}
		p.style = st
	} else if _, err := subtitles.Resolve(p.style); err != nil {
		return p, err
	}

	if p.wordsPerLine == 0 {
		p.wordsPerLine = s.o.WordsPerLine
	}
	if p.wordsPerLine < 1 || p.wordsPerLine > subtitles.MaxWordsPerLine {
		return p, apperr.New(apperr.ErrInvalidInput, "words per line must be in [1,%d], got %d", subtitles.MaxWordsPerLine, p.wordsPerLine)
	}
	p.output = ExportPath(s.o.ExportDir, c, p.aspect)
	return p, nil
}

func styleLabel(cs types.CaptionStyle) string {
	if cs.Custom != nil {
		return "custom"
	}
	if cs.Preset == "" {
		return subtitles.DefaultPreset
	}
	return cs.Preset
}

// ExportPath is <dir>/<clip id>/<title slug>-<ratio>.mp4.
func ExportPath(dir string, c *types.Clip, ratio types.AspectRatio) string {
	slug := normalizePathSegment(c.Title)
	if slug == "" {
		slug = "clip"
	}
	if len(slug) > 60 {
		slug = strings.Trim(slug[:60], "-")
	}
	name := fmt.Sprintf("%s-%s.mp4", slug, strings.ReplaceAll(string(ratio), ":", "x"))
	return filepath.Join(dir, c.ID, name)
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func (s *Service) runExport(ctx context.Context, c *types.Clip, v *types.Video, plan exportPlan) error {
	log := s.log.WithFields(logrus.Fields{"clip_id": c.ID, "video_id": v.ID, "stage": stageExport})

	words := c.Words
	if len(words) == 0 {
		if tr, err := s.d.Repo.GetTranscript(ctx, v.ID); err == nil && tr != nil {
			words = transcript.SubRange(*tr, c.StartTime, c.EndTime).Words
		}
	}
	ass, err := subtitles.Render(subtitles.Input{
		Words:        words,
		FallbackText: c.Transcript,
		Start:        c.StartTime,
		End:          c.EndTime,
	}, subtitles.Options{
		Format:       subtitles.FormatASS,
		Style:        plan.style,
		WordsPerLine: plan.wordsPerLine,
		Width:        plan.width,
		Height:       plan.height,
	})
	if err != nil {
		return s.failExport(ctx, c.ID, err)
	}

	subPath, err := writeTempSubtitles(filepath.Join(s.o.CacheDir, "subtitles"), c.ID, ass)
	if err != nil {
		return s.failExport(ctx, c.ID, err)
	}
	defer func() {
		if err := os.Remove(subPath); err != nil && !os.IsNotExist(err) {
			log.WithError(err).WithField("path", subPath).Warn("remove subtitle file")
		}
	}()

	log.WithField("output", plan.output).Info("rendering export")
	err = s.d.Video.Export(ctx, ports.ExportSpec{
		Input:        v.FilePath,
		Output:       plan.output,
		SubtitlePath: subPath,
		Start:        c.StartTime,
		End:          c.EndTime,
		Width:        plan.width,
		Height:       plan.height,
		HasAudio:     hasAudio(v),
	})
	if err != nil {
		return s.failExport(ctx, c.ID, err)
	}

	s.updateClipAfterJob(ctx, c.ID, func(cur *types.Clip) {
		cur.SetExportStatus(types.ExportDone, s.d.Now())
		cur.ExportedPath = plan.output
		delete(cur.Metadata, "export_error")
	})
	log.Info("export finished")
	return nil
}

func writeTempSubtitles(dir, clipID, body string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(dir, clipID+"-*.ass")
	if err != nil {
		return "", err
	}
	if _, err := f.WriteString(body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// failExport marks the clip export_error with the diagnostic text. Partial
// output files are left in place.
func (s *Service) failExport(ctx context.Context, clipID string, err error) error {
	s.updateClipAfterJob(ctx, clipID, func(c *types.Clip) {
		c.SetExportStatus(types.ExportFailed, s.d.Now())
		setMeta(&c.Metadata, "export_error", truncate(err.Error(), maxErrorText))
	})
	return err
}

func (s *Service) updateClipAfterJob(ctx context.Context, id string, fn func(c *types.Clip)) {
	pctx, cancel := persistCtx(ctx)
	defer cancel()
	_, err := s.d.Repo.UpdateClip(pctx, id, func(c *types.Clip) error {
		fn(c)
		return nil
	})
	if err != nil {
		s.log.WithError(err).WithField("clip_id", id).Error("persist export result")
	}
}
