package ports

import (
	"context"

	"github.com/forPelevin/clipforge/internal/types"
)

type MediaInfo struct {
	Duration   float64 `json:"duration"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FPS        float64 `json:"fps"`
	VideoCodec string  `json:"video_codec"`
	AudioCodec string  `json:"audio_codec,omitempty"`
	HasAudio   bool    `json:"has_audio"`
	Bitrate    int64   `json:"bitrate"`
	FormatName string  `json:"format_name"`
	Size       int64   `json:"size"`
}

// ExportSpec describes one export render. Start and End are on the source
// timeline; Width and Height are the exact output frame size.
type ExportSpec struct {
	Input        string
	Output       string
	SubtitlePath string
	Start        float64
	End          float64
	Width        int
	Height       int
	HasAudio     bool
}

type VideoTool interface {
	Probe(ctx context.Context, path string) (MediaInfo, error)
	Thumbnail(ctx context.Context, in string, at float64, outJPG string) error
	ExtractAudioMono16k(ctx context.Context, in, outWav string) error
	Export(ctx context.Context, spec ExportSpec) error
	// Available reports whether the encoder can run at all.
	Available(ctx context.Context) error
}

// Frame is one still image sampled from a video at At seconds.
type Frame struct {
	Path string
	At   float64
}

type FrameSampler interface {
	SampleFrames(ctx context.Context, in string, duration float64, max int, outDir string) ([]Frame, error)
}

type ASR interface {
	Transcribe(ctx context.Context, wavPath, cacheDir string) (types.Transcript, error)
}

type DetectInput struct {
	VideoID    string
	VideoPath  string
	Duration   float64
	Transcript *types.Transcript
	Metadata   map[string]any
}

// Detector proposes candidate ranges for a video.
type Detector interface {
	Name() string
	Detect(ctx context.Context, in DetectInput) ([]types.Candidate, error)
}

type Downloader interface {
	// Validate rejects URLs the downloader cannot fetch, without network access.
	Validate(url string) error
	Download(ctx context.Context, url, outDir string) (string, error)
}

type VideoRepository interface {
	CreateVideo(ctx context.Context, v *types.Video) error
	GetVideo(ctx context.Context, id string) (*types.Video, error)
	// UpdateVideo applies fn to the current row and persists the result in
	// one atomic step. An error from fn aborts the update and is returned.
	UpdateVideo(ctx context.Context, id string, fn func(v *types.Video) error) (*types.Video, error)
}

type ClipRepository interface {
	InsertClips(ctx context.Context, clips []*types.Clip) error
	// ReplaceClips deletes every clip of videoID and inserts clips atomically.
	ReplaceClips(ctx context.Context, videoID string, clips []*types.Clip) error
	GetClip(ctx context.Context, id string) (*types.Clip, error)
	// ListClips orders by virality score descending, then insertion order.
	ListClips(ctx context.Context, videoID string) ([]*types.Clip, error)
	UpdateClip(ctx context.Context, id string, fn func(c *types.Clip) error) (*types.Clip, error)
}

type TranscriptRepository interface {
	// SaveTranscript fully replaces the video's transcript.
	SaveTranscript(ctx context.Context, videoID string, tr types.Transcript) error
	// GetTranscript returns nil, nil when the video has no transcript.
	GetTranscript(ctx context.Context, videoID string) (*types.Transcript, error)
}

type Repository interface {
	VideoRepository
	ClipRepository
	TranscriptRepository
	Ping(ctx context.Context) error
}
