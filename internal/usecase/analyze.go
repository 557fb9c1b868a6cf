package usecase

import (
	"context"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/forPelevin/clipforge/internal/apperr"
	"github.com/forPelevin/clipforge/internal/domain/highlights"
	"github.com/forPelevin/clipforge/internal/domain/subtitles"
	"github.com/forPelevin/clipforge/internal/domain/transcript"
	"github.com/forPelevin/clipforge/internal/ports"
	"github.com/forPelevin/clipforge/internal/types"
)

const stageAnalyze = "analyze"

// TriggerAnalyze detects and scores clips for a video. A video that is
// already analyzed and has clips is returned as is with started false. Clips
// are never deleted here: a video that has clips in any other status is
// rejected with ErrClipsExist and must go through TriggerRegenerate.
func (s *Service) TriggerAnalyze(ctx context.Context, id string) (*types.Video, bool, error) {
	v, err := s.d.Repo.GetVideo(ctx, id)
	if err != nil {
		return nil, false, err
	}
	clips, err := s.d.Repo.ListClips(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if len(clips) > 0 {
		if v.Status == types.VideoAnalyzed {
			return v, false, nil
		}
		return nil, false, apperr.New(apperr.ErrClipsExist,
			"video %s already has %d clips; use regenerate to replace them", id, len(clips))
	}
	v, err = s.startAnalyze(ctx, id, false)
	return v, err == nil, err
}

// TriggerRegenerate discards every clip of the video and detects again.
func (s *Service) TriggerRegenerate(ctx context.Context, id string) (*types.Video, error) {
	return s.startAnalyze(ctx, id, true)
}

func (s *Service) startAnalyze(ctx context.Context, id string, replace bool) (*types.Video, error) {
	v, prev, err := s.claimVideo(ctx, id, types.VideoAnalyzing, func(v *types.Video) error {
		if v.Duration == nil || *v.Duration <= 0 {
			return apperr.New(apperr.ErrDurationUnknown, "video %s has not been probed", v.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	run := func(ctx context.Context, v *types.Video) error {
		return s.runAnalyze(ctx, v, replace)
	}
	if err := s.submitVideoStage(ctx, v, prev, stageAnalyze, s.o.AnalyzeTimeout, run); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Service) runAnalyze(ctx context.Context, v *types.Video, replace bool) error {
	log := s.log.WithFields(logrus.Fields{"video_id": v.ID, "stage": stageAnalyze})
	tr, err := s.d.Repo.GetTranscript(ctx, v.ID)
	if err != nil {
		return s.failVideo(ctx, v.ID, stageAnalyze, types.VideoAnalysisError, err)
	}

	cands, source := s.detect(ctx, log, v, tr)
	ranked := highlights.Rank(cands, highlights.MaxClipsPerVideo)
	clips := s.buildClips(v, tr, ranked)

	pctx, cancel := persistCtx(ctx)
	defer cancel()
	if replace {
		err = s.d.Repo.ReplaceClips(pctx, v.ID, clips)
	} else {
		err = s.d.Repo.InsertClips(pctx, clips)
	}
	if err != nil {
		return s.failVideo(ctx, v.ID, stageAnalyze, types.VideoAnalysisError, err)
	}
	s.updateVideoAfterJob(ctx, v.ID, func(cur *types.Video) {
		setMeta(&cur.Metadata, "clip_count", len(clips))
		setMeta(&cur.Metadata, "detector", source)
		cur.SetStatus(types.VideoAnalyzed, s.d.Now())
	})
	log.WithFields(logrus.Fields{"clips": len(clips), "detector": source}).Info("analysis finished")
	return nil
}

// detect runs the configured detector and drops candidates outside the
// covered range. Any detector failure, or no valid candidate, falls back to
// the deterministic partitioner.
func (s *Service) detect(ctx context.Context, log logrus.FieldLogger, v *types.Video, tr *types.Transcript) ([]types.Candidate, string) {
	duration := *v.Duration
	if s.d.Detector != nil {
		name := s.d.Detector.Name()
		got, err := s.d.Detector.Detect(ctx, ports.DetectInput{
			VideoID:    v.ID,
			VideoPath:  v.FilePath,
			Duration:   duration,
			Transcript: tr,
			Metadata:   v.Metadata,
		})
		if err != nil {
			log.WithError(err).WithField("detector", name).Warn("detector failed, using fallback")
		} else {
			valid := s.validCandidates(log, got, tr, v.Duration)
			if len(valid) > 0 {
				return valid, name
			}
			log.WithField("detector", name).Warn("detector returned no valid candidates, using fallback")
		}
	}
	return highlights.Fallback(v.ID, duration, tr), string(types.SourceFallback)
}

func (s *Service) validCandidates(log logrus.FieldLogger, cands []types.Candidate, tr *types.Transcript, duration *float64) []types.Candidate {
	b, ok := highlights.CoveredBounds(tr, duration)
	if !ok {
		return nil
	}
	out := make([]types.Candidate, 0, len(cands))
	for _, c := range cands {
		if err := highlights.Validate(c, b); err != nil {
			log.WithError(err).WithField("kind", apperr.KindOf(err).String()).Warn("dropping candidate")
			continue
		}
		out = append(out, c)
	}
	return out
}

func (s *Service) buildClips(v *types.Video, tr *types.Transcript, ranked []highlights.Ranked) []*types.Clip {
	now := s.d.Now()
	out := make([]*types.Clip, 0, len(ranked))
	for _, r := range ranked {
		c := r.Candidate
		start, end := round3(c.StartTime), round3(c.EndTime)
		if end > *v.Duration {
			end = *v.Duration
		}
		if start < 0 {
			start = 0
		}
		if start >= end {
			continue
		}
		text := c.Transcript
		var words []types.Word
		if tr != nil {
			words = transcript.SubRange(*tr, start, end).Words
			if t := transcript.TextInRange(*tr, start, end); t != "" {
				text = t
			}
		}
		caption := c.Caption
		if caption == "" {
			caption = c.Title
		}
		meta := map[string]any{
			"emotional_content": c.EmotionalContent,
			"hook_strength":     c.HookStrength,
		}
		if c.Justification != "" {
			meta["justification"] = c.Justification
		}
		out = append(out, &types.Clip{
			ID:               s.d.NewID(),
			VideoID:          v.ID,
			CompanyID:        v.CompanyID,
			Title:            c.Title,
			Description:      c.Description,
			StartTime:        start,
			EndTime:          end,
			Duration:         round3(end - start),
			ViralityScore:    r.Score.Total,
			Scores:           r.Score.SubScores,
			Transcript:       text,
			Words:            words,
			SuggestedCaption: caption,
			CaptionStyle:     types.CaptionStyle{Preset: subtitles.DefaultPreset},
			AspectRatio:      types.Aspect9x16,
			Status:           types.ClipPending,
			Source:           c.Source,
			Metadata:         meta,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
	}
	return out
}

func round3(x float64) float64 { return math.Round(x*1000) / 1000 }
