package ytdlp

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/forPelevin/clipforge/internal/apperr"
)

var youtubeHosts = map[string]struct{}{
	"youtube.com":       {},
	"www.youtube.com":   {},
	"m.youtube.com":     {},
	"music.youtube.com": {},
	"youtu.be":          {},
}

type Adapter struct {
	bin string
}

func New(binPath string) *Adapter {
	if binPath == "" {
		binPath = "yt-dlp"
	}
	return &Adapter{bin: binPath}
}

// ValidateURL accepts http(s) YouTube watch, shorts and youtu.be links.
func ValidateURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return apperr.Wrap(apperr.ErrInvalidInput, err, "invalid video url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return apperr.New(apperr.ErrInvalidInput, "video url %q must be http(s)", raw)
	}
	if _, ok := youtubeHosts[strings.ToLower(u.Hostname())]; !ok {
		return apperr.New(apperr.ErrInvalidInput, "video url host %q is not a YouTube host", u.Hostname())
	}
	return nil
}

func (a *Adapter) Validate(rawURL string) error { return ValidateURL(rawURL) }

// Download fetches a single video as mp4 into outDir and returns its path.
func (a *Adapter) Download(ctx context.Context, rawURL, outDir string) (string, error) {
	if err := ValidateURL(rawURL); err != nil {
		return "", err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	cmd := exec.CommandContext(ctx, a.bin, downloadArgs(rawURL, outDir)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", apperr.Wrap(apperr.ErrSubprocess, err, "yt-dlp failed: %s", strings.TrimSpace(stderr.String()))
	}
	path := lastLine(stdout.String())
	if path == "" {
		return "", fmt.Errorf("yt-dlp did not report an output file")
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("yt-dlp output %s: %w", path, err)
	}
	return path, nil
}

func downloadArgs(rawURL, outDir string) []string {
	return []string{
		"--no-playlist",
		"--no-progress",
		"--restrict-filenames",
		"-f", "bv*[ext=mp4]+ba[ext=m4a]/b[ext=mp4]/bv*+ba/b",
		"--merge-output-format", "mp4",
		"-o", filepath.Join(outDir, "%(id)s.%(ext)s"),
		"--print", "after_move:filepath",
		rawURL,
	}
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
