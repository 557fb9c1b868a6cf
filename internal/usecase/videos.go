package usecase

import (
	"context"
	"math"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/forPelevin/clipforge/internal/apperr"
	"github.com/forPelevin/clipforge/internal/ports"
	"github.com/forPelevin/clipforge/internal/types"
)

const stageProbe = "probe"

// CreateUpload registers an uploaded file as a new video and starts probing
// it.
func (s *Service) CreateUpload(ctx context.Context, companyID, path, originalName string) (*types.Video, error) {
	if !fileExists(path) {
		return nil, apperr.New(apperr.ErrVideoFileMissing, "uploaded file %s does not exist", path)
	}
	v := s.newVideo(companyID, types.SourceUpload)
	v.FilePath = path
	if originalName != "" {
		v.Metadata["original_filename"] = originalName
	}
	return s.createAndProbe(ctx, v)
}

// CreateImport registers a remote video. The probe stage downloads it first.
func (s *Service) CreateImport(ctx context.Context, companyID, url string) (*types.Video, error) {
	if s.d.Downloader == nil {
		return nil, apperr.New(apperr.ErrProviderNotConfigured, "video import is not configured")
	}
	if err := s.d.Downloader.Validate(url); err != nil {
		return nil, err
	}
	v := s.newVideo(companyID, types.SourceYouTube)
	v.SourceURL = url
	return s.createAndProbe(ctx, v)
}

func (s *Service) newVideo(companyID string, src types.VideoSource) *types.Video {
	now := s.d.Now()
	return &types.Video{
		ID:              s.d.NewID(),
		CompanyID:       companyID,
		Source:          src,
		Status:          types.VideoProcessing,
		Metadata:        map[string]any{},
		StatusChangedAt: now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (s *Service) createAndProbe(ctx context.Context, v *types.Video) (*types.Video, error) {
	if err := s.d.Repo.CreateVideo(ctx, v); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"video_id": v.ID, "source": v.Source}).Info("video created")
	if err := s.submitVideoStage(ctx, v, types.VideoError, stageProbe, s.o.ProbeTimeout, s.runProbe); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Service) GetVideo(ctx context.Context, id string) (*types.Video, error) {
	return s.d.Repo.GetVideo(ctx, id)
}

// TriggerProbe re-runs probing, e.g. after a failed upload probe.
func (s *Service) TriggerProbe(ctx context.Context, id string) (*types.Video, error) {
	v, prev, err := s.claimVideo(ctx, id, types.VideoProcessing, func(v *types.Video) error {
		if fileExists(v.FilePath) {
			return nil
		}
		if v.Source == types.SourceYouTube {
			if s.d.Downloader == nil {
				return apperr.New(apperr.ErrProviderNotConfigured, "video import is not configured")
			}
			return nil
		}
		return apperr.New(apperr.ErrVideoFileMissing, "video file %q for %s does not exist", v.FilePath, v.ID)
	})
	if err != nil {
		return nil, err
	}
	if err := s.submitVideoStage(ctx, v, prev, stageProbe, s.o.ProbeTimeout, s.runProbe); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Service) runProbe(ctx context.Context, v *types.Video) error {
	log := s.log.WithFields(logrus.Fields{"video_id": v.ID, "stage": stageProbe})
	path := v.FilePath
	if v.Source == types.SourceYouTube && !fileExists(path) {
		if s.d.Downloader == nil {
			return s.failVideo(ctx, v.ID, stageProbe, types.VideoError,
				apperr.New(apperr.ErrProviderNotConfigured, "video import is not configured"))
		}
		log.WithField("url", v.SourceURL).Info("downloading video")
		p, err := s.d.Downloader.Download(ctx, v.SourceURL, filepath.Join(s.o.UploadDir, v.ID))
		if err != nil {
			return s.failVideo(ctx, v.ID, stageProbe, types.VideoError, err)
		}
		path = p
	}

	info, err := s.d.Video.Probe(ctx, path)
	if err != nil {
		return s.failVideo(ctx, v.ID, stageProbe, types.VideoError, err)
	}

	thumb := filepath.Join(s.o.UploadDir, "thumbnails", v.ID+".jpg")
	if err := os.MkdirAll(filepath.Dir(thumb), 0o755); err != nil {
		log.WithError(err).Warn("create thumbnail dir")
		thumb = ""
	} else if err := s.d.Video.Thumbnail(ctx, path, math.Min(1, info.Duration/2), thumb); err != nil {
		log.WithError(err).Warn("thumbnail failed")
		thumb = ""
	}

	s.updateVideoAfterJob(ctx, v.ID, func(cur *types.Video) {
		d := info.Duration
		cur.FilePath = path
		cur.Duration = &d
		cur.ThumbnailPath = thumb
		setMeta(&cur.Metadata, "media", mediaMeta(info))
		cur.SetStatus(types.VideoReady, s.d.Now())
	})
	log.WithField("duration", info.Duration).Info("probe finished")
	return nil
}

func mediaMeta(info ports.MediaInfo) map[string]any {
	return map[string]any{
		"width":       info.Width,
		"height":      info.Height,
		"fps":         info.FPS,
		"video_codec": info.VideoCodec,
		"audio_codec": info.AudioCodec,
		"has_audio":   info.HasAudio,
		"bitrate":     info.Bitrate,
		"format_name": info.FormatName,
		"size":        info.Size,
	}
}

// hasAudio reads the probe result; unknown counts as true.
func hasAudio(v *types.Video) bool {
	media, ok := v.Metadata["media"].(map[string]any)
	if !ok {
		return true
	}
	b, ok := media["has_audio"].(bool)
	return !ok || b
}
