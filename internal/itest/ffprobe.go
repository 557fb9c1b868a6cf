//go:build integration

package itest

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

type probed struct {
	width    int
	height   int
	duration float64
}

// probeOutput reads the first video stream size and the container duration.
func probeOutput(mp4Path string) (probed, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height:format=duration",
		"-of", "default=noprint_wrappers=1",
		mp4Path,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return probed{}, fmt.Errorf("ffprobe: %w\n%s", err, string(b))
	}
	var p probed
	for _, line := range strings.Split(strings.TrimSpace(string(b)), "\n") {
		k, v, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		switch k {
		case "width":
			p.width, err = strconv.Atoi(v)
		case "height":
			p.height, err = strconv.Atoi(v)
		case "duration":
			p.duration, err = strconv.ParseFloat(v, 64)
		}
		if err != nil {
			return probed{}, fmt.Errorf("parse %s %q: %w", k, v, err)
		}
	}
	return p, nil
}
