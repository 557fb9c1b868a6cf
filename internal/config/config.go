// Package config loads service configuration: defaults, then an optional YAML
// file, then environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/forPelevin/clipforge/internal/domain/subtitles"
	"github.com/forPelevin/clipforge/internal/ports/adapters/openrouter"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	DetectorTranscript = "transcript"
	DetectorVideo      = "video"
	DetectorFallback   = "fallback"
)

type Config struct {
	Addr        string `yaml:"addr"`
	Store       string `yaml:"store"`
	DatabaseURL string `yaml:"database_url"`

	UploadDir   string `yaml:"upload_dir"`
	ExportDir   string `yaml:"export_dir"`
	CacheDir    string `yaml:"cache_dir"`
	MaxUploadMB int64  `yaml:"max_upload_mb"`

	Workers    int           `yaml:"workers"`
	QueueSize  int           `yaml:"queue_size"`
	StaleAfter time.Duration `yaml:"stale_after"`
	Timeouts   Timeouts      `yaml:"timeouts"`

	WordsPerLine int    `yaml:"words_per_line"`
	Detector     string `yaml:"detector"`

	FFmpeg     FFmpegConfig     `yaml:"ffmpeg"`
	Whisper    WhisperConfig    `yaml:"whisper"`
	YtDlp      YtDlpConfig      `yaml:"ytdlp"`
	OpenRouter OpenRouterConfig `yaml:"openrouter"`
	Log        LogConfig        `yaml:"log"`
}

type Timeouts struct {
	Probe      time.Duration `yaml:"probe"`
	Transcribe time.Duration `yaml:"transcribe"`
	Analyze    time.Duration `yaml:"analyze"`
	Export     time.Duration `yaml:"export"`
}

func (t Timeouts) max() time.Duration {
	m := t.Probe
	for _, d := range []time.Duration{t.Transcribe, t.Analyze, t.Export} {
		if d > m {
			m = d
		}
	}
	return m
}

type FFmpegConfig struct {
	Path      string `yaml:"path"`
	ProbePath string `yaml:"probe_path"`
	Preset    string `yaml:"preset"`
	CRF       int    `yaml:"crf"`
}

type WhisperConfig struct {
	Bin      string `yaml:"bin"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
	Threads  int    `yaml:"threads"`
}

type YtDlpConfig struct {
	Path string `yaml:"path"`
}

type OpenRouterConfig struct {
	APIKey       string        `yaml:"api_key"`
	Model        string        `yaml:"model"`
	VisionModel  string        `yaml:"vision_model"`
	BaseURL      string        `yaml:"base_url"`
	AllowedHosts []string      `yaml:"allowed_hosts"`
	Timeout      time.Duration `yaml:"timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() Config {
	return Config{
		Addr:        ":8080",
		Store:       StorePostgres,
		UploadDir:   "data/uploads",
		ExportDir:   "data/exports",
		CacheDir:    ".cache",
		MaxUploadMB: 2048,
		Workers:     2,
		QueueSize:   64,
		StaleAfter:  30 * time.Minute,
		Timeouts: Timeouts{
			Probe:      2 * time.Minute,
			Transcribe: 20 * time.Minute,
			Analyze:    5 * time.Minute,
			Export:     15 * time.Minute,
		},
		WordsPerLine: subtitles.DefaultWordsPerLine,
		Detector:     DetectorTranscript,
		FFmpeg:       FFmpegConfig{Path: "ffmpeg", ProbePath: "ffprobe", Preset: "veryfast", CRF: 18},
		Whisper:      WhisperConfig{Bin: ".cache/bin/whisper.cpp", Model: ".cache/models/ggml-base.bin"},
		YtDlp:        YtDlpConfig{Path: "yt-dlp"},
		OpenRouter: OpenRouterConfig{
			Model:       "z-ai/glm-4.5-air:free",
			VisionModel: "google/gemini-2.0-flash-001",
			BaseURL:     "https://openrouter.ai",
			Timeout:     90 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Load builds the configuration. An empty path searches the default
// locations; a missing default file is not an error, a missing explicit one
// is.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = findConfigFile()
	}
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		case explicit || !errors.Is(err, os.ErrNotExist):
			return cfg, fmt.Errorf("read config: %w", err)
		}
	}
	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func findConfigFile() string {
	candidates := []string{"./clipforge.yaml", "./config.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".clipforge", "config.yaml"))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("CLIPFORGE_ADDR", &cfg.Addr)
	str("DATABASE_URL", &cfg.DatabaseURL)
	str("CLIPFORGE_STORE", &cfg.Store)
	str("CLIPFORGE_UPLOAD_DIR", &cfg.UploadDir)
	str("CLIPFORGE_EXPORT_DIR", &cfg.ExportDir)
	str("CLIPFORGE_CACHE_DIR", &cfg.CacheDir)
	str("CLIPFORGE_DETECTOR", &cfg.Detector)
	str("FFMPEG_PATH", &cfg.FFmpeg.Path)
	str("FFPROBE_PATH", &cfg.FFmpeg.ProbePath)
	str("YTDLP_PATH", &cfg.YtDlp.Path)
	str("WHISPER_BIN", &cfg.Whisper.Bin)
	str("WHISPER_MODEL", &cfg.Whisper.Model)
	str("OPENROUTER_API_KEY", &cfg.OpenRouter.APIKey)
	str("OPENROUTER_MODEL", &cfg.OpenRouter.Model)
	str("OPENROUTER_VISION_MODEL", &cfg.OpenRouter.VisionModel)
	str("OPENROUTER_BASE_URL", &cfg.OpenRouter.BaseURL)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)

	if v := strings.TrimSpace(getenv("OPENROUTER_ALLOWED_HOSTS")); v != "" {
		cfg.OpenRouter.AllowedHosts = splitList(v)
	}
	if err := num("CLIPFORGE_WORKERS", &cfg.Workers); err != nil {
		return err
	}
	if err := num("CLIPFORGE_QUEUE_SIZE", &cfg.QueueSize); err != nil {
		return err
	}
	if v := strings.TrimSpace(getenv("CLIPFORGE_STALE_AFTER")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CLIPFORGE_STALE_AFTER: %w", err)
		}
		cfg.StaleAfter = d
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return errors.New("addr is empty")
	}
	switch c.Store {
	case StorePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return errors.New("DATABASE_URL is required for the postgres store (or set CLIPFORGE_STORE=memory)")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown store %q (want postgres or memory)", c.Store)
	}
	if c.UploadDir == "" || c.ExportDir == "" || c.CacheDir == "" {
		return errors.New("upload_dir, export_dir and cache_dir are required")
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("max_upload_mb must be > 0, got %d", c.MaxUploadMB)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be > 0, got %d", c.Workers)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be > 0, got %d", c.QueueSize)
	}
	for name, d := range map[string]time.Duration{
		"probe": c.Timeouts.Probe, "transcribe": c.Timeouts.Transcribe,
		"analyze": c.Timeouts.Analyze, "export": c.Timeouts.Export,
	} {
		if d <= 0 {
			return fmt.Errorf("timeouts.%s must be > 0", name)
		}
	}
	if c.StaleAfter <= c.Timeouts.max() {
		return fmt.Errorf("stale_after (%s) must exceed the longest stage timeout (%s)", c.StaleAfter, c.Timeouts.max())
	}
	if c.WordsPerLine < 1 || c.WordsPerLine > subtitles.MaxWordsPerLine {
		return fmt.Errorf("words_per_line must be in [1,%d], got %d", subtitles.MaxWordsPerLine, c.WordsPerLine)
	}
	switch c.Detector {
	case DetectorTranscript, DetectorVideo, DetectorFallback:
	default:
		return fmt.Errorf("unknown detector %q (want transcript, video or fallback)", c.Detector)
	}
	if c.FFmpeg.CRF < 0 || c.FFmpeg.CRF > 51 {
		return fmt.Errorf("ffmpeg.crf must be in [0,51], got %d", c.FFmpeg.CRF)
	}
	return openrouter.ValidateBaseURL(c.OpenRouter.BaseURL, c.OpenRouter.AllowedHosts)
}
