package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/forPelevin/clipforge/internal/apperr"
	"github.com/forPelevin/clipforge/internal/domain/subtitles"
	"github.com/forPelevin/clipforge/internal/domain/transcript"
	"github.com/forPelevin/clipforge/internal/types"
)

func (s *Service) GetClip(ctx context.Context, id string) (*types.Clip, error) {
	return s.d.Repo.GetClip(ctx, id)
}

// ListClips returns the clips of a video by descending virality score.
func (s *Service) ListClips(ctx context.Context, videoID string) ([]*types.Clip, error) {
	if _, err := s.d.Repo.GetVideo(ctx, videoID); err != nil {
		return nil, err
	}
	return s.d.Repo.ListClips(ctx, videoID)
}

// editClip applies a render-affecting edit. It refuses clips that are being
// exported and invalidates a finished export, whose file no longer matches.
func (s *Service) editClip(ctx context.Context, id string, fn func(c *types.Clip) error) (*types.Clip, error) {
	return s.d.Repo.UpdateClip(ctx, id, func(c *types.Clip) error {
		if c.ExportStatus == types.ExportRunning && !s.stale(c.ExportChangedAt) {
			return apperr.New(apperr.ErrStageInProgress, "clip %s is being exported", c.ID)
		}
		if err := fn(c); err != nil {
			return err
		}
		if c.ExportStatus != types.ExportNone {
			c.SetExportStatus(types.ExportNone, s.d.Now())
			c.ExportedPath = ""
			delete(c.Metadata, "export_error")
		}
		c.UpdatedAt = s.d.Now()
		return nil
	})
}

// UpdateTimeline moves the clip to [start, end] and re-derives its
// sub-transcript from the master transcript.
func (s *Service) UpdateTimeline(ctx context.Context, clipID string, start, end float64) (*types.Clip, error) {
	clip, err := s.d.Repo.GetClip(ctx, clipID)
	if err != nil {
		return nil, err
	}
	v, err := s.d.Repo.GetVideo(ctx, clip.VideoID)
	if err != nil {
		return nil, err
	}
	if v.Duration == nil {
		return nil, apperr.New(apperr.ErrDurationUnknown, "video %s has not been probed", v.ID)
	}
	if err := validateRange(start, end, *v.Duration); err != nil {
		return nil, err
	}
	// Rounding may push end past the duration or collapse the range.
	start, end = round3(start), math.Min(round3(end), *v.Duration)
	if start >= end {
		return nil, apperr.New(apperr.ErrInvalidRange, "range [%.3f, %.3f] is empty at millisecond precision", start, end)
	}
	tr, err := s.d.Repo.GetTranscript(ctx, v.ID)
	if err != nil {
		return nil, err
	}
	return s.editClip(ctx, clipID, func(c *types.Clip) error {
		c.StartTime = start
		c.EndTime = end
		c.Duration = round3(c.EndTime - c.StartTime)
		c.Words = nil
		c.Transcript = ""
		if tr != nil {
			c.Words = transcript.SubRange(*tr, c.StartTime, c.EndTime).Words
			c.Transcript = transcript.TextInRange(*tr, c.StartTime, c.EndTime)
		}
		return nil
	})
}

func validateRange(start, end, duration float64) error {
	switch {
	case math.IsNaN(start) || math.IsNaN(end) || math.IsInf(start, 0) || math.IsInf(end, 0):
		return apperr.New(apperr.ErrInvalidRange, "start and end must be finite numbers")
	case start >= end:
		return apperr.New(apperr.ErrInvalidRange, "start %.3f must be < end %.3f", start, end)
	case start < 0 || end > duration:
		return apperr.New(apperr.ErrInvalidRange, "range [%.3f, %.3f] is outside [0, %.3f]", start, end, duration)
	}
	return nil
}

// UpdateTranscript replaces the clip-local transcript. Without segments the
// word timings are re-sliced from the master transcript.
func (s *Service) UpdateTranscript(ctx context.Context, clipID, text string, segments []types.Segment) (*types.Clip, error) {
	clip, err := s.d.Repo.GetClip(ctx, clipID)
	if err != nil {
		return nil, err
	}
	var words []types.Word
	derived := ""
	if segments != nil {
		// FromSegments repairs overlaps, so client timings are checked first.
		if err := transcript.Validate(types.Transcript{Segments: segments}); err != nil {
			return nil, apperr.Wrap(apperr.ErrInvalidInput, err, "invalid segments")
		}
		local := transcript.FromSegments(segments)
		words = local.Words()
		parts := make([]string, 0, len(local.Segments))
		for _, seg := range local.Segments {
			parts = append(parts, seg.Text)
		}
		derived = strings.Join(parts, " ")
	} else {
		tr, err := s.d.Repo.GetTranscript(ctx, clip.VideoID)
		if err != nil {
			return nil, err
		}
		if tr == nil {
			if strings.TrimSpace(text) == "" {
				return nil, apperr.New(apperr.ErrNoTranscriptAvailable, "video %s has no transcript to derive from", clip.VideoID)
			}
		} else {
			words = transcript.SubRange(*tr, clip.StartTime, clip.EndTime).Words
			derived = transcript.TextInRange(*tr, clip.StartTime, clip.EndTime)
		}
	}
	if t := strings.TrimSpace(text); t != "" {
		derived = t
	}
	return s.editClip(ctx, clipID, func(c *types.Clip) error {
		c.Transcript = derived
		c.Words = words
		return nil
	})
}

// SetCaptionStyle accepts a preset name or a custom style.
func (s *Service) SetCaptionStyle(ctx context.Context, clipID string, style types.CaptionStyle) (*types.Clip, error) {
	style, err := s.checkStyle(style)
	if err != nil {
		return nil, err
	}
	return s.editClip(ctx, clipID, func(c *types.Clip) error {
		c.CaptionStyle = style.Clone()
		return nil
	})
}

func (s *Service) checkStyle(style types.CaptionStyle) (types.CaptionStyle, error) {
	if style.Custom != nil {
		if err := s.validate.Struct(style.Custom); err != nil {
			return style, apperr.Wrap(apperr.ErrInvalidInput, err, "invalid custom caption style: %s", describeValidation(err))
		}
		return types.CaptionStyle{Custom: style.Custom}, nil
	}
	name := strings.ToLower(strings.TrimSpace(style.Preset))
	if !subtitles.IsPreset(name) {
		return style, apperr.New(apperr.ErrUnknownStylePreset,
			"unknown caption style %q (want one of %s)", style.Preset, strings.Join(subtitles.PresetNames(), ", "))
	}
	return types.CaptionStyle{Preset: name}, nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

func (s *Service) SetAspectRatio(ctx context.Context, clipID string, ratio types.AspectRatio) (*types.Clip, error) {
	if _, _, ok := ratio.Resolution(); !ok {
		return nil, apperr.New(apperr.ErrUnsupportedAspectRatio, "aspect ratio %q is not one of 9:16, 1:1, 4:5, 16:9", ratio)
	}
	return s.editClip(ctx, clipID, func(c *types.Clip) error {
		c.AspectRatio = ratio
		return nil
	})
}

// DetectFillers lists the filler words in the clip's transcript.
func (s *Service) DetectFillers(ctx context.Context, clipID string) ([]transcript.Filler, error) {
	c, err := s.d.Repo.GetClip(ctx, clipID)
	if err != nil {
		return nil, err
	}
	return transcript.DetectFillerWords(c.Transcript), nil
}

// RemoveFillers cuts the selected fillers from the clip's transcript text and
// the matching word timings. A nil fillers list removes every detected
// filler; an empty one removes nothing.
func (s *Service) RemoveFillers(ctx context.Context, clipID string, fillers []transcript.Filler) (*types.Clip, int, error) {
	removed := 0
	c, err := s.editClip(ctx, clipID, func(c *types.Clip) error {
		fs := fillers
		if fs == nil {
			fs = transcript.DetectFillerWords(c.Transcript)
		}
		c.Words = transcript.RemoveFillerWordTimings(c.Words, c.Transcript, fs)
		c.Transcript, removed = transcript.RemoveFillerWords(c.Transcript, fs)
		setMeta(&c.Metadata, "fillers_removed", metaInt(c.Metadata, "fillers_removed")+removed)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return c, removed, nil
}

// Duplicate copies a clip under a new identity for A/B variants. The copy is
// pending and carries no export state.
func (s *Service) Duplicate(ctx context.Context, clipID, newTitle string) (*types.Clip, error) {
	src, err := s.d.Repo.GetClip(ctx, clipID)
	if err != nil {
		return nil, err
	}
	now := s.d.Now()
	dup := src.Clone()
	dup.ID = s.d.NewID()
	dup.Title = strings.TrimSpace(newTitle)
	if dup.Title == "" {
		dup.Title = src.Title + " (Copy)"
	}
	dup.Status = types.ClipPending
	dup.ExportStatus = types.ExportNone
	dup.ExportedPath = ""
	dup.ExportChangedAt = time.Time{}
	delete(dup.Metadata, "export_error")
	delete(dup.Metadata, "export")
	setMeta(&dup.Metadata, "duplicated_from", src.ID)
	dup.CreatedAt = now
	dup.UpdatedAt = now
	if err := s.d.Repo.InsertClips(ctx, []*types.Clip{dup}); err != nil {
		return nil, err
	}
	return dup, nil
}

func (s *Service) Approve(ctx context.Context, clipID string) (*types.Clip, error) {
	return s.setReview(ctx, clipID, types.ClipApproved)
}

func (s *Service) Reject(ctx context.Context, clipID string) (*types.Clip, error) {
	return s.setReview(ctx, clipID, types.ClipRejected)
}

func (s *Service) setReview(ctx context.Context, clipID string, st types.ReviewStatus) (*types.Clip, error) {
	return s.d.Repo.UpdateClip(ctx, clipID, func(c *types.Clip) error {
		c.Status = st
		c.UpdatedAt = s.d.Now()
		return nil
	})
}

// RenderCaptions renders the clip's caption track without exporting.
func (s *Service) RenderCaptions(ctx context.Context, clipID string, format subtitles.Format, wordsPerLine int) (string, error) {
	c, err := s.d.Repo.GetClip(ctx, clipID)
	if err != nil {
		return "", err
	}
	if wordsPerLine == 0 {
		wordsPerLine = s.o.WordsPerLine
	}
	w, h, ok := c.AspectRatio.Resolution()
	if !ok {
		w, h, _ = types.Aspect9x16.Resolution()
	}
	return subtitles.Render(subtitles.Input{
		Words:        c.Words,
		FallbackText: c.Transcript,
		Start:        c.StartTime,
		End:          c.EndTime,
	}, subtitles.Options{
		Format:       format,
		Style:        c.CaptionStyle,
		WordsPerLine: wordsPerLine,
		Width:        w,
		Height:       h,
	})
}
