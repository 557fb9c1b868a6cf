package usecase

import (
	"context"
	"math"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/forPelevin/clipforge/internal/apperr"
	"github.com/forPelevin/clipforge/internal/domain/transcript"
	"github.com/forPelevin/clipforge/internal/types"
)

const stageTranscribe = "transcribe"

func (s *Service) TriggerTranscribe(ctx context.Context, id string) (*types.Video, error) {
	if s.d.ASR == nil {
		return nil, apperr.New(apperr.ErrProviderNotConfigured, "transcription is not configured")
	}
	v, prev, err := s.claimVideo(ctx, id, types.VideoTranscribing, func(v *types.Video) error {
		if v.Duration == nil {
			return apperr.New(apperr.ErrDurationUnknown, "video %s has not been probed", v.ID)
		}
		if !fileExists(v.FilePath) {
			return apperr.New(apperr.ErrVideoFileMissing, "video file %q for %s does not exist", v.FilePath, v.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.submitVideoStage(ctx, v, prev, stageTranscribe, s.o.TranscribeTimeout, s.runTranscribe); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Service) runTranscribe(ctx context.Context, v *types.Video) error {
	log := s.log.WithFields(logrus.Fields{"video_id": v.ID, "stage": stageTranscribe})
	dir := filepath.Join(s.o.CacheDir, "videos", v.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return s.failVideo(ctx, v.ID, stageTranscribe, types.VideoTranscriptionError, err)
	}
	wav := filepath.Join(dir, "audio.wav")
	defer func() {
		if err := os.Remove(wav); err != nil && !os.IsNotExist(err) {
			log.WithError(err).Warn("remove extracted audio")
		}
	}()

	log.Info("extracting audio")
	if err := s.d.Video.ExtractAudioMono16k(ctx, v.FilePath, wav); err != nil {
		return s.failVideo(ctx, v.ID, stageTranscribe, types.VideoTranscriptionError, err)
	}
	log.Info("transcribing")
	raw, err := s.d.ASR.Transcribe(ctx, wav, dir)
	if err != nil {
		return s.failVideo(ctx, v.ID, stageTranscribe, types.VideoTranscriptionError, err)
	}
	tr := transcript.Normalize(raw)
	if err := transcript.Validate(tr); err != nil {
		return s.failVideo(ctx, v.ID, stageTranscribe, types.VideoTranscriptionError, err)
	}

	pctx, cancel := persistCtx(ctx)
	defer cancel()
	if err := s.d.Repo.SaveTranscript(pctx, v.ID, tr); err != nil {
		return s.failVideo(ctx, v.ID, stageTranscribe, types.VideoTranscriptionError, err)
	}
	s.updateVideoAfterJob(ctx, v.ID, func(cur *types.Video) {
		setMeta(&cur.Metadata, "transcript_segments", len(tr.Segments))
		setMeta(&cur.Metadata, "transcript_words", len(tr.Words()))
		cur.SetStatus(types.VideoTranscribed, s.d.Now())
	})
	log.WithField("segments", len(tr.Segments)).Info("transcript saved")
	return nil
}

// GetTranscript returns the master transcript of a video.
func (s *Service) GetTranscript(ctx context.Context, videoID string) (*types.Transcript, error) {
	if _, err := s.d.Repo.GetVideo(ctx, videoID); err != nil {
		return nil, err
	}
	tr, err := s.d.Repo.GetTranscript(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if tr == nil {
		return nil, apperr.New(apperr.ErrNoTranscriptAvailable, "video %s has no transcript", videoID)
	}
	return tr, nil
}

// GetTranscriptRange returns the words and segments overlapping [start, end).
func (s *Service) GetTranscriptRange(ctx context.Context, videoID string, start, end float64) (transcript.Range, error) {
	if math.IsNaN(start) || math.IsNaN(end) || start < 0 || start >= end {
		return transcript.Range{}, apperr.New(apperr.ErrInvalidRange, "range [%.3f, %.3f) is invalid", start, end)
	}
	tr, err := s.GetTranscript(ctx, videoID)
	if err != nil {
		return transcript.Range{}, err
	}
	return transcript.SubRange(*tr, start, end), nil
}
