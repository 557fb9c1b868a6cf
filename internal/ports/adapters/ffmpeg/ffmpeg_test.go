package ffmpeg

import (
	"strings"
	"testing"

	"github.com/forPelevin/clipforge/internal/ports"
)

func TestBuildExportGraph(t *testing.T) {
	tests := []struct {
		name string
		spec ports.ExportSpec
		want string
	}{
		{
			name: "portrait crops",
			spec: ports.ExportSpec{Start: 45.5, End: 75.2, Width: 1080, Height: 1920, SubtitlePath: "/tmp/c.ass", HasAudio: true},
			want: "[0:v]trim=start=45.500:end=75.200,setpts=PTS-STARTPTS," +
				"scale=1080:1920:force_original_aspect_ratio=increase,crop=1080:1920,setsar=1,subtitles=/tmp/c.ass[v];" +
				"[0:a]atrim=start=45.500:end=75.200,asetpts=PTS-STARTPTS[a]",
		},
		{
			name: "landscape pads",
			spec: ports.ExportSpec{Start: 0, End: 10, Width: 1920, Height: 1080, SubtitlePath: "/tmp/c.ass", HasAudio: true},
			want: "[0:v]trim=start=0.000:end=10.000,setpts=PTS-STARTPTS," +
				"scale=1920:1080:force_original_aspect_ratio=decrease,pad=1920:1080:(ow-iw)/2:(oh-ih)/2:color=black,setsar=1,subtitles=/tmp/c.ass[v];" +
				"[0:a]atrim=start=0.000:end=10.000,asetpts=PTS-STARTPTS[a]",
		},
		{
			name: "silent source has no audio chain",
			spec: ports.ExportSpec{Start: 1, End: 2, Width: 1080, Height: 1080, SubtitlePath: "/tmp/c.ass"},
			want: "[0:v]trim=start=1.000:end=2.000,setpts=PTS-STARTPTS," +
				"scale=1080:1080:force_original_aspect_ratio=increase,crop=1080:1080,setsar=1,subtitles=/tmp/c.ass[v]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildExportGraph(tt.spec); got != tt.want {
				t.Fatalf("unexpected graph:\n got: %s\nwant: %s", got, tt.want)
			}
		})
	}
}

func TestExportArgs(t *testing.T) {
	spec := ports.ExportSpec{Input: "in.mp4", Output: "out.mp4", Start: 1, End: 3, Width: 1080, Height: 1920, HasAudio: true}
	args := strings.Join(exportArgs(spec, "veryfast", 18), " ")
	for _, want := range []string{"-map [v]", "-map [a]", "-c:v libx264", "-preset veryfast", "-crf 18", "-c:a aac", "-b:a 192k", "-movflags +faststart"} {
		if !strings.Contains(args, want) {
			t.Fatalf("expected %q in args: %s", want, args)
		}
	}
	if !strings.HasSuffix(args, "out.mp4") {
		t.Fatalf("output must be last: %s", args)
	}

	spec.HasAudio = false
	args = strings.Join(exportArgs(spec, "veryfast", 18), " ")
	if strings.Contains(args, "[a]") || strings.Contains(args, "aac") {
		t.Fatalf("silent export must not map audio: %s", args)
	}
}

func TestEscapeFilterPath(t *testing.T) {
	got := escapeFilterPath(`C:\subs\it's,a[1];b.ass`)
	want := `C\\:\\\\subs\\\\it\\\'s\,a\[1\]\;b.ass`
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestParseProbe(t *testing.T) {
	raw := []byte(`{
		"streams": [
			{"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080, "avg_frame_rate": "30000/1001", "r_frame_rate": "30/1"},
			{"codec_type": "audio", "codec_name": "aac"}
		],
		"format": {"format_name": "mov,mp4,m4a,3gp,3g2,mj2", "duration": "120.500000", "bit_rate": "5000000", "size": "75312500"}
	}`)
	info, err := parseProbe(raw)
	if err != nil {
		t.Fatalf("parseProbe: %v", err)
	}
	if info.Duration != 120.5 || info.Width != 1920 || info.Height != 1080 {
		t.Fatalf("unexpected info: %+v", info)
	}
	if !info.HasAudio || info.AudioCodec != "aac" || info.VideoCodec != "h264" {
		t.Fatalf("unexpected codecs: %+v", info)
	}
	if info.FPS < 29.96 || info.FPS > 29.98 {
		t.Fatalf("unexpected fps %.3f", info.FPS)
	}
	if info.Bitrate != 5000000 || info.Size != 75312500 {
		t.Fatalf("unexpected bitrate/size: %+v", info)
	}
}

func TestParseProbe_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"garbage", `not json`},
		{"audio only", `{"streams":[{"codec_type":"audio","codec_name":"mp3"}],"format":{"duration":"10"}}`},
		{"no duration", `{"streams":[{"codec_type":"video","codec_name":"h264","width":10,"height":10}],"format":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseProbe([]byte(tt.raw)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
