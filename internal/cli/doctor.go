package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/forPelevin/clipforge/internal/config"
	"github.com/forPelevin/clipforge/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/clipforge/internal/ports/adapters/postgres"
)

type check struct {
	name     string
	required bool
	run      func(ctx context.Context) error
}

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and external tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			return runChecks(ctx, cmd.OutOrStdout(), doctorChecks(cfg))
		},
	}
}

func doctorChecks(cfg config.Config) []check {
	v := ffmpeg.New(cfg.FFmpeg.Path, cfg.FFmpeg.ProbePath)
	checks := []check{
		{name: "config", required: true, run: func(context.Context) error { return cfg.Validate() }},
		{name: "ffmpeg encoder (libx264 + subtitles)", required: true, run: v.Available},
		{name: "ffprobe", required: true, run: lookPath(cfg.FFmpeg.ProbePath)},
		{name: "whisper.cpp binary", run: lookPath(cfg.Whisper.Bin)},
		{name: "whisper model", run: func(context.Context) error {
			_, err := os.Stat(cfg.Whisper.Model)
			return err
		}},
		{name: "yt-dlp", run: lookPath(cfg.YtDlp.Path)},
		{name: "openrouter api key", run: func(context.Context) error {
			if cfg.OpenRouter.APIKey == "" && cfg.Detector != config.DetectorFallback {
				return fmt.Errorf("OPENROUTER_API_KEY is not set, the %s detector will fall back", cfg.Detector)
			}
			return nil
		}},
	}
	if cfg.Store == config.StorePostgres {
		checks = append(checks, check{name: "postgres", required: true, run: func(ctx context.Context) error {
			s, err := postgres.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			return s.Close()
		}})
	}
	return checks
}

func lookPath(bin string) func(context.Context) error {
	return func(context.Context) error {
		_, err := exec.LookPath(bin)
		return err
	}
}

// runChecks prints one line per check and fails if a required one failed.
func runChecks(ctx context.Context, w io.Writer, checks []check) error {
	failed := 0
	for _, c := range checks {
		err := c.run(ctx)
		switch {
		case err == nil:
			fmt.Fprintf(w, "ok    %s\n", c.name)
		case c.required:
			failed++
			fmt.Fprintf(w, "FAIL  %s: %v\n", c.name, err)
		default:
			fmt.Fprintf(w, "warn  %s: %v\n", c.name, err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("doctor: %d required check(s) failed", failed)
	}
	return nil
}
