package types

import "time"

type Transcript struct {
	Segments []Segment `json:"segments"`
}

type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

type Word struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Word  string  `json:"word"`
}

// Bounds returns the covered time range of the transcript. ok is false for an
// empty transcript.
func (t Transcript) Bounds() (start, end float64, ok bool) {
	for _, s := range t.Segments {
		lo, hi := s.Start, s.End
		if len(s.Words) > 0 {
			if s.Words[0].Start < lo {
				lo = s.Words[0].Start
			}
			if w := s.Words[len(s.Words)-1]; w.End > hi {
				hi = w.End
			}
		}
		if !ok || lo < start {
			start = lo
		}
		if !ok || hi > end {
			end = hi
		}
		ok = true
	}
	return start, end, ok
}

// Words flattens all word timings in order.
func (t Transcript) Words() []Word {
	var out []Word
	for _, s := range t.Segments {
		out = append(out, s.Words...)
	}
	return out
}

func (t Transcript) Clone() Transcript {
	out := Transcript{Segments: make([]Segment, len(t.Segments))}
	for i, s := range t.Segments {
		s.Words = append([]Word(nil), s.Words...)
		out.Segments[i] = s
	}
	return out
}

type VideoSource string

const (
	SourceUpload  VideoSource = "upload"
	SourceYouTube VideoSource = "youtube"
)

type VideoStatus string

const (
	VideoProcessing         VideoStatus = "processing"
	VideoReady              VideoStatus = "ready"
	VideoTranscribing       VideoStatus = "transcribing"
	VideoTranscribed        VideoStatus = "transcribed"
	VideoTranscriptionError VideoStatus = "transcription_error"
	VideoAnalyzing          VideoStatus = "analyzing"
	VideoAnalyzed           VideoStatus = "analyzed"
	VideoAnalysisError      VideoStatus = "analysis_error"
	VideoError              VideoStatus = "error"
)

// InProgress reports whether a stage currently owns the video.
func (s VideoStatus) InProgress() bool {
	switch s {
	case VideoProcessing, VideoTranscribing, VideoAnalyzing:
		return true
	}
	return false
}

type Video struct {
	ID              string         `json:"id"`
	CompanyID       string         `json:"company_id"`
	Source          VideoSource    `json:"source"`
	SourceURL       string         `json:"source_url,omitempty"`
	FilePath        string         `json:"file_path"`
	ThumbnailPath   string         `json:"thumbnail_path,omitempty"`
	Duration        *float64       `json:"duration"`
	Status          VideoStatus    `json:"status"`
	Metadata        map[string]any `json:"metadata"`
	StatusChangedAt time.Time      `json:"status_changed_at"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func (v *Video) Clone() *Video {
	if v == nil {
		return nil
	}
	out := *v
	if v.Duration != nil {
		d := *v.Duration
		out.Duration = &d
	}
	out.Metadata = cloneMap(v.Metadata)
	return &out
}

// SetStatus moves the video to s and stamps the transition time.
func (v *Video) SetStatus(s VideoStatus, now time.Time) {
	v.Status = s
	v.StatusChangedAt = now
	v.UpdatedAt = now
}

type ReviewStatus string

const (
	ClipPending  ReviewStatus = "pending"
	ClipApproved ReviewStatus = "approved"
	ClipRejected ReviewStatus = "rejected"
)

type ExportStatus string

const (
	ExportNone    ExportStatus = ""
	ExportRunning ExportStatus = "exporting"
	ExportDone    ExportStatus = "exported"
	ExportFailed  ExportStatus = "export_error"
)

type CandidateSource string

const (
	SourceTranscriptModel CandidateSource = "transcript"
	SourceVideoModel      CandidateSource = "video"
	SourceFallback        CandidateSource = "fallback"
)

type AspectRatio string

const (
	Aspect9x16 AspectRatio = "9:16"
	Aspect1x1  AspectRatio = "1:1"
	Aspect4x5  AspectRatio = "4:5"
	Aspect16x9 AspectRatio = "16:9"
)

// Resolution maps a supported aspect ratio to its export frame size.
func (a AspectRatio) Resolution() (w, h int, ok bool) {
	switch a {
	case Aspect9x16:
		return 1080, 1920, true
	case Aspect16x9:
		return 1920, 1080, true
	case Aspect1x1:
		return 1080, 1080, true
	case Aspect4x5:
		return 1080, 1350, true
	}
	return 0, 0, false
}

// StyleSpec is the attribute bundle of one caption style. Colors are #RRGGBB;
// BackAlpha is the ASS transparency of the box/shadow (0 opaque, 255 clear).
type StyleSpec struct {
	FontName     string  `json:"font_name" yaml:"font_name" validate:"required,max=64,excludesall=0x2C"`
	FontSize     int     `json:"font_size" yaml:"font_size" validate:"min=8,max=200"`
	PrimaryColor string  `json:"primary_color" yaml:"primary_color" validate:"required,hexcolor"`
	AccentColor  string  `json:"accent_color,omitempty" yaml:"accent_color" validate:"omitempty,hexcolor"`
	OutlineColor string  `json:"outline_color" yaml:"outline_color" validate:"required,hexcolor"`
	BackColor    string  `json:"back_color,omitempty" yaml:"back_color" validate:"omitempty,hexcolor"`
	BackAlpha    int     `json:"back_alpha" yaml:"back_alpha" validate:"min=0,max=255"`
	Bold         bool    `json:"bold" yaml:"bold"`
	Italic       bool    `json:"italic" yaml:"italic"`
	Outline      float64 `json:"outline" yaml:"outline" validate:"min=0,max=20"`
	Shadow       float64 `json:"shadow" yaml:"shadow" validate:"min=0,max=20"`
	BorderStyle  int     `json:"border_style" yaml:"border_style" validate:"oneof=1 3"`
	Alignment    int     `json:"alignment" yaml:"alignment" validate:"min=1,max=9"`
	MarginV      int     `json:"margin_v" yaml:"margin_v" validate:"min=0,max=2000"`
	Karaoke      bool    `json:"karaoke" yaml:"karaoke"`
	PopIn        bool    `json:"pop_in" yaml:"pop_in"`
	Uppercase    bool    `json:"uppercase" yaml:"uppercase"`
}

// CaptionStyle is either a named preset or a custom StyleSpec.
type CaptionStyle struct {
	Preset string     `json:"preset,omitempty"`
	Custom *StyleSpec `json:"custom,omitempty"`
}

func (c CaptionStyle) Clone() CaptionStyle {
	if c.Custom != nil {
		s := *c.Custom
		c.Custom = &s
	}
	return c
}

type SubScores struct {
	Hook    int `json:"hook"`
	Emotion int `json:"emotion"`
	Insight int `json:"insight"`
	CTA     int `json:"cta"`
	Quality int `json:"quality"`
}

type Score struct {
	SubScores
	Total int `json:"total"`
}

// Candidate is a detector-proposed range before scoring and persistence.
type Candidate struct {
	StartTime        float64         `json:"start_time"`
	EndTime          float64         `json:"end_time"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	EmotionalContent string          `json:"emotional_content"`
	HookStrength     string          `json:"hook_strength"`
	Transcript       string          `json:"transcript"`
	Caption          string          `json:"caption,omitempty"`
	Justification    string          `json:"justification,omitempty"`
	Source           CandidateSource `json:"source"`
}

func (c Candidate) Duration() float64 { return c.EndTime - c.StartTime }

type Clip struct {
	ID               string          `json:"id"`
	VideoID          string          `json:"video_id"`
	CompanyID        string          `json:"company_id"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	StartTime        float64         `json:"start_time"`
	EndTime          float64         `json:"end_time"`
	Duration         float64         `json:"duration"`
	ViralityScore    int             `json:"virality_score"`
	Scores           SubScores       `json:"scores"`
	Transcript       string          `json:"transcript"`
	Words            []Word          `json:"words,omitempty"`
	SuggestedCaption string          `json:"suggested_caption"`
	CaptionStyle     CaptionStyle    `json:"caption_style"`
	AspectRatio      AspectRatio     `json:"aspect_ratio"`
	Status           ReviewStatus    `json:"status"`
	ExportStatus     ExportStatus    `json:"export_status,omitempty"`
	ExportedPath     string          `json:"exported_path,omitempty"`
	Source           CandidateSource `json:"source"`
	Metadata         map[string]any  `json:"metadata"`
	ExportChangedAt  time.Time       `json:"export_changed_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Clone returns a deep copy sharing no mutable state with c.
func (c *Clip) Clone() *Clip {
	if c == nil {
		return nil
	}
	out := *c
	if c.Words != nil {
		out.Words = append([]Word(nil), c.Words...)
	}
	out.CaptionStyle = c.CaptionStyle.Clone()
	out.Metadata = cloneMap(c.Metadata)
	return &out
}

// SetExportStatus moves the clip's export state and stamps the transition time.
func (c *Clip) SetExportStatus(s ExportStatus, now time.Time) {
	c.ExportStatus = s
	c.ExportChangedAt = now
	c.UpdatedAt = now
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch x := v.(type) {
		case map[string]any:
			out[k] = cloneMap(x)
		case []any:
			out[k] = append([]any(nil), x...)
		default:
			out[k] = v
		}
	}
	return out
}
