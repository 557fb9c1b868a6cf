package usecase

import (
	"context"
	"os"
	"time"
	"unicode/utf8"

	"github.com/forPelevin/clipforge/internal/apperr"
	"github.com/forPelevin/clipforge/internal/types"
	"github.com/forPelevin/clipforge/internal/worker"
)

const maxErrorText = 4000

// claimVideo moves the video into status under the in-progress guard. check
// runs against the locked row first and can veto the claim.
func (s *Service) claimVideo(ctx context.Context, id string, status types.VideoStatus, check func(v *types.Video) error) (*types.Video, types.VideoStatus, error) {
	var prev types.VideoStatus
	v, err := s.d.Repo.UpdateVideo(ctx, id, func(v *types.Video) error {
		if v.Status.InProgress() && !s.stale(v.StatusChangedAt) {
			return apperr.New(apperr.ErrStageInProgress, "video %s is %s since %s",
				id, v.Status, v.StatusChangedAt.Format(time.RFC3339))
		}
		if check != nil {
			if err := check(v); err != nil {
				return err
			}
		}
		prev = v.Status
		v.SetStatus(status, s.d.Now())
		delete(v.Metadata, "error")
		delete(v.Metadata, "error_stage")
		return nil
	})
	return v, prev, err
}

// submitVideoStage queues fn for the claimed video. When the pool refuses the
// job the claim is reverted to prev.
func (s *Service) submitVideoStage(ctx context.Context, v *types.Video, prev types.VideoStatus, stage string, timeout time.Duration, fn func(ctx context.Context, v *types.Video) error) error {
	snapshot := v.Clone()
	job := worker.JobFunc{Key: jobKey(stage, v.ID), Fn: func(ctx context.Context) error {
		return fn(ctx, snapshot.Clone())
	}}
	err := s.d.Pool.Submit(job, timeout)
	if err == nil {
		return nil
	}
	_, rerr := s.d.Repo.UpdateVideo(ctx, v.ID, func(cur *types.Video) error {
		if cur.Status != snapshot.Status || !cur.StatusChangedAt.Equal(snapshot.StatusChangedAt) {
			return nil
		}
		cur.SetStatus(prev, s.d.Now())
		if prev == types.VideoError {
			setMeta(&cur.Metadata, "error", err.Error())
			setMeta(&cur.Metadata, "error_stage", stage)
		}
		return nil
	})
	if rerr != nil {
		s.log.WithError(rerr).WithField("video_id", v.ID).Error("revert stage claim")
	}
	return err
}

func (s *Service) updateVideoAfterJob(ctx context.Context, id string, fn func(v *types.Video)) {
	pctx, cancel := persistCtx(ctx)
	defer cancel()
	_, err := s.d.Repo.UpdateVideo(pctx, id, func(v *types.Video) error {
		fn(v)
		return nil
	})
	if err != nil {
		s.log.WithError(err).WithField("video_id", id).Error("persist stage result")
	}
}

// failVideo records a background failure on the video and returns err for the
// worker log.
func (s *Service) failVideo(ctx context.Context, id, stage string, status types.VideoStatus, err error) error {
	s.updateVideoAfterJob(ctx, id, func(v *types.Video) {
		v.SetStatus(status, s.d.Now())
		setMeta(&v.Metadata, "error", truncate(err.Error(), maxErrorText))
		setMeta(&v.Metadata, "error_stage", stage)
	})
	return err
}

func setMeta(m *map[string]any, k string, v any) {
	if *m == nil {
		*m = map[string]any{}
	}
	(*m)[k] = v
}

// metaInt reads a counter that may have round-tripped through JSON.
func metaInt(m map[string]any, k string) int {
	switch n := m[k].(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}

// truncate keeps at most n bytes of s without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
