// Package usecase orchestrates the clip pipeline stages and the clip editor on
// top of the ports. Stages claim their entity synchronously and run on the
// worker pool; failures are recorded on the entity.
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/forPelevin/clipforge/internal/apperr"
	"github.com/forPelevin/clipforge/internal/ports"
	"github.com/forPelevin/clipforge/internal/worker"
)

// Submitter is the part of the worker pool the stages need.
type Submitter interface {
	Submit(job worker.Job, timeout time.Duration) error
}

type Deps struct {
	Repo  ports.Repository
	Video ports.VideoTool
	Pool  Submitter
	Log   logrus.FieldLogger

	// Optional collaborators. A nil ASR or Downloader makes the matching
	// stage fail with ProviderNotConfigured; a nil Detector means the
	// deterministic fallback is the only detector.
	ASR        ports.ASR
	Detector   ports.Detector
	Downloader ports.Downloader

	Now   func() time.Time
	NewID func() string
}

type Options struct {
	UploadDir string
	ExportDir string
	CacheDir  string

	// StaleAfter is how long an in-progress claim blocks a retry.
	StaleAfter time.Duration

	ProbeTimeout      time.Duration
	TranscribeTimeout time.Duration
	AnalyzeTimeout    time.Duration
	ExportTimeout     time.Duration

	WordsPerLine int
}

func DefaultOptions() Options {
	return Options{
		UploadDir:         "data/uploads",
		ExportDir:         "data/exports",
		CacheDir:          ".cache",
		StaleAfter:        30 * time.Minute,
		ProbeTimeout:      2 * time.Minute,
		TranscribeTimeout: 20 * time.Minute,
		AnalyzeTimeout:    5 * time.Minute,
		ExportTimeout:     15 * time.Minute,
		WordsPerLine:      4,
	}
}

type Service struct {
	d        Deps
	o        Options
	log      logrus.FieldLogger
	validate *validator.Validate
}

func New(d Deps, o Options) *Service {
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }
	}
	if d.NewID == nil {
		d.NewID = func() string { return uuid.NewString() }
	}
	if d.Log == nil {
		l := logrus.New()
		d.Log = l
	}
	return &Service{d: d, o: o, log: d.Log.WithField("component", "usecase"), validate: validator.New()}
}

// stale reports whether an in-progress claim stamped at t may be taken over.
func (s *Service) stale(t time.Time) bool {
	if s.o.StaleAfter <= 0 || t.IsZero() {
		return false
	}
	return s.d.Now().Sub(t) > s.o.StaleAfter
}

// persistCtx detaches final writes from a job context that may already be
// cancelled or past its deadline.
func persistCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
}

func jobKey(stage, id string) string { return fmt.Sprintf("%s:%s", stage, id) }

// Ping checks the repository.
func (s *Service) Ping(ctx context.Context) error { return s.d.Repo.Ping(ctx) }

// EncoderStatus runs the encoder capability probe.
func (s *Service) EncoderStatus(ctx context.Context) error {
	if err := s.d.Video.Available(ctx); err != nil {
		return asUnavailable(err)
	}
	return nil
}

func asUnavailable(err error) error {
	if apperr.KindOf(err) == apperr.KindUnavailable {
		return err
	}
	return apperr.Wrap(apperr.ErrEncoderUnavailable, err, "encoder capability probe failed")
}
