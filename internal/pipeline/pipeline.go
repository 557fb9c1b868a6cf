// Package pipeline wires configuration to adapters, the repository, the worker
// pool and the use-case service.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/forPelevin/clipforge/internal/config"
	"github.com/forPelevin/clipforge/internal/httpapi"
	"github.com/forPelevin/clipforge/internal/ports"
	"github.com/forPelevin/clipforge/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/clipforge/internal/ports/adapters/memstore"
	"github.com/forPelevin/clipforge/internal/ports/adapters/openrouter"
	"github.com/forPelevin/clipforge/internal/ports/adapters/postgres"
	"github.com/forPelevin/clipforge/internal/ports/adapters/whispercpp"
	"github.com/forPelevin/clipforge/internal/ports/adapters/ytdlp"
	"github.com/forPelevin/clipforge/internal/usecase"
	"github.com/forPelevin/clipforge/internal/worker"
)

type App struct {
	Service *usecase.Service
	Pool    *worker.Pool
	Video   *ffmpeg.Adapter
	Repo    ports.Repository

	closeRepo func() error
}

// Build validates cfg and assembles the application. Optional providers that
// are not usable (no whisper model, no yt-dlp, no OpenRouter key) are left
// nil; the stages that need them answer ProviderNotConfigured.
func Build(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	for _, dir := range []string{cfg.UploadDir, cfg.ExportDir, cfg.CacheDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	app := &App{closeRepo: func() error { return nil }}
	switch cfg.Store {
	case config.StoreMemory:
		log.Warn("using the in-memory store, data is lost on restart")
		app.Repo = memstore.New()
	default:
		pg, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		app.Repo = pg
		app.closeRepo = pg.Close
	}

	// adapters
	app.Video = ffmpeg.New(cfg.FFmpeg.Path, cfg.FFmpeg.ProbePath, ffmpeg.WithEncoding(cfg.FFmpeg.Preset, cfg.FFmpeg.CRF))
	llm := openrouter.New(cfg.OpenRouter.APIKey, cfg.OpenRouter.BaseURL, cfg.OpenRouter.Timeout)

	deps := usecase.Deps{
		Repo:       app.Repo,
		Video:      app.Video,
		Log:        log,
		ASR:        buildASR(cfg, log),
		Detector:   buildDetector(cfg, llm, app.Video, log),
		Downloader: buildDownloader(cfg, log),
	}

	app.Pool = worker.NewPool(cfg.Workers, cfg.QueueSize, log)
	deps.Pool = app.Pool

	opts := usecase.DefaultOptions()
	opts.UploadDir = cfg.UploadDir
	opts.ExportDir = cfg.ExportDir
	opts.CacheDir = cfg.CacheDir
	opts.StaleAfter = cfg.StaleAfter
	opts.ProbeTimeout = cfg.Timeouts.Probe
	opts.TranscribeTimeout = cfg.Timeouts.Transcribe
	opts.AnalyzeTimeout = cfg.Timeouts.Analyze
	opts.ExportTimeout = cfg.Timeouts.Export
	opts.WordsPerLine = cfg.WordsPerLine

	app.Service = usecase.New(deps, opts)
	return app, nil
}

func buildASR(cfg config.Config, log logrus.FieldLogger) ports.ASR {
	if _, err := os.Stat(cfg.Whisper.Model); err != nil {
		log.WithField("model", cfg.Whisper.Model).Warn("whisper model not found, transcription disabled")
		return nil
	}
	return whispercpp.New(cfg.Whisper.Bin, cfg.Whisper.Model, cfg.Whisper.Language, cfg.Whisper.Threads)
}

func buildDownloader(cfg config.Config, log logrus.FieldLogger) ports.Downloader {
	if _, err := exec.LookPath(cfg.YtDlp.Path); err != nil {
		log.WithField("path", cfg.YtDlp.Path).Warn("yt-dlp not found, video import disabled")
		return nil
	}
	return ytdlp.New(cfg.YtDlp.Path)
}

// buildDetector picks the candidate detector. A nil detector leaves the
// deterministic fallback as the only source of clips.
func buildDetector(cfg config.Config, llm *openrouter.Client, sampler ports.FrameSampler, log logrus.FieldLogger) ports.Detector {
	if cfg.Detector == config.DetectorFallback {
		return nil
	}
	if !llm.Configured() {
		log.Warn("OPENROUTER_API_KEY is not set, clips come from the fallback detector")
		return nil
	}
	if cfg.Detector == config.DetectorVideo {
		return openrouter.NewVideoDetector(llm, cfg.OpenRouter.VisionModel, sampler, filepath.Join(cfg.CacheDir, "frames"))
	}
	return openrouter.NewTranscriptDetector(llm, cfg.OpenRouter.Model)
}

// HTTPOptions derives the API options from cfg.
func HTTPOptions(cfg config.Config) httpapi.Options {
	return httpapi.Options{
		UploadDir:      cfg.UploadDir,
		MaxUploadBytes: cfg.MaxUploadMB << 20,
	}
}

func (a *App) Start() { a.Pool.Start() }

// Close drains the worker pool within ctx and then closes the repository.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Pool.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop workers: %w", err))
	}
	if err := a.closeRepo(); err != nil {
		errs = append(errs, fmt.Errorf("close repository: %w", err))
	}
	return errors.Join(errs...)
}

// ensure adapters implement ports
var _ ports.VideoTool = (*ffmpeg.Adapter)(nil)
var _ ports.FrameSampler = (*ffmpeg.Adapter)(nil)
var _ ports.ASR = (*whispercpp.Adapter)(nil)
var _ ports.Detector = (*openrouter.TranscriptDetector)(nil)
var _ ports.Detector = (*openrouter.VideoDetector)(nil)
var _ ports.Downloader = (*ytdlp.Adapter)(nil)
var _ ports.Repository = (*postgres.Store)(nil)
var _ ports.Repository = (*memstore.Store)(nil)
var _ usecase.Submitter = (*worker.Pool)(nil)
