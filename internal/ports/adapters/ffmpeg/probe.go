package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/forPelevin/clipforge/internal/ports"
)

// Probe reads container and stream metadata with ffprobe.
func (a *Adapter) Probe(ctx context.Context, path string) (ports.MediaInfo, error) {
	if path == "" {
		return ports.MediaInfo{}, fmt.Errorf("ffprobe: path is required")
	}
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	b, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return ports.MediaInfo{}, fmt.Errorf("ffprobe: %w\n%s", err, strings.TrimSpace(string(ee.Stderr)))
		}
		return ports.MediaInfo{}, fmt.Errorf("ffprobe: %w", err)
	}
	return parseProbe(b)
}

type probeResult struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		BitRate    string `json:"bit_rate"`
		Size       string `json:"size"`
	} `json:"format"`
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		Duration     string `json:"duration"`
	} `json:"streams"`
}

func parseProbe(b []byte) (ports.MediaInfo, error) {
	var pr probeResult
	if err := json.Unmarshal(b, &pr); err != nil {
		return ports.MediaInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	var info ports.MediaInfo
	info.FormatName = pr.Format.FormatName
	info.Duration, _ = strconv.ParseFloat(pr.Format.Duration, 64)
	info.Bitrate, _ = strconv.ParseInt(pr.Format.BitRate, 10, 64)
	info.Size, _ = strconv.ParseInt(pr.Format.Size, 10, 64)

	hasVideo := false
	for _, s := range pr.Streams {
		switch s.CodecType {
		case "video":
			if hasVideo {
				continue
			}
			hasVideo = true
			info.Width = s.Width
			info.Height = s.Height
			info.VideoCodec = s.CodecName
			info.FPS = parseFrameRate(s.AvgFrameRate)
			if info.FPS == 0 {
				info.FPS = parseFrameRate(s.RFrameRate)
			}
			if info.Duration == 0 {
				info.Duration, _ = strconv.ParseFloat(s.Duration, 64)
			}
		case "audio":
			if !info.HasAudio {
				info.HasAudio = true
				info.AudioCodec = s.CodecName
			}
		}
	}
	if !hasVideo {
		return info, fmt.Errorf("ffprobe: no video stream")
	}
	if info.Duration <= 0 {
		return info, fmt.Errorf("ffprobe: unknown duration")
	}
	return info, nil
}

// parseFrameRate parses ffprobe rates like "30000/1001".
func parseFrameRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		f, _ := strconv.ParseFloat(s, 64)
		return f
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}
