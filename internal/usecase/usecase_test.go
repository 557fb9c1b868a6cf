package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/forPelevin/clipforge/internal/apperr"
	"github.com/forPelevin/clipforge/internal/domain/subtitles"
	"github.com/forPelevin/clipforge/internal/domain/transcript"
	"github.com/forPelevin/clipforge/internal/ports"
	"github.com/forPelevin/clipforge/internal/ports/adapters/memstore"
	"github.com/forPelevin/clipforge/internal/types"
	"github.com/forPelevin/clipforge/internal/worker"
)

type fakePool struct {
	mu   sync.Mutex
	jobs []worker.Job
	err  error
}

func (p *fakePool) Submit(job worker.Job, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.jobs = append(p.jobs, job)
	return nil
}

// runAll executes queued jobs in order, including jobs queued while running.
func (p *fakePool) runAll(t *testing.T) []error {
	t.Helper()
	var errs []error
	for {
		p.mu.Lock()
		if len(p.jobs) == 0 {
			p.mu.Unlock()
			return errs
		}
		j := p.jobs[0]
		p.jobs = p.jobs[1:]
		p.mu.Unlock()
		errs = append(errs, j.Execute(context.Background()))
	}
}

type fakeVideoTool struct {
	mu           sync.Mutex
	info         ports.MediaInfo
	probeErr     error
	availableErr error
	exportErr    error

	availableCalls int
	exports        []ports.ExportSpec
	subtitleSeen   bool
}

func (f *fakeVideoTool) Probe(context.Context, string) (ports.MediaInfo, error) {
	return f.info, f.probeErr
}

func (f *fakeVideoTool) Thumbnail(_ context.Context, _ string, _ float64, out string) error {
	return os.WriteFile(out, []byte("jpg"), 0o644)
}

func (f *fakeVideoTool) ExtractAudioMono16k(_ context.Context, _, out string) error {
	return os.WriteFile(out, []byte("wav"), 0o644)
}

func (f *fakeVideoTool) Export(_ context.Context, spec ports.ExportSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exports = append(f.exports, spec)
	if _, err := os.Stat(spec.SubtitlePath); err == nil {
		f.subtitleSeen = true
	}
	if f.exportErr != nil {
		return f.exportErr
	}
	if err := os.MkdirAll(filepath.Dir(spec.Output), 0o755); err != nil {
		return err
	}
	return os.WriteFile(spec.Output, []byte("mp4"), 0o644)
}

func (f *fakeVideoTool) Available(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.availableCalls++
	return f.availableErr
}

type fakeASR struct {
	tr  types.Transcript
	err error
}

func (a fakeASR) Transcribe(context.Context, string, string) (types.Transcript, error) {
	return a.tr, a.err
}

type fakeDetector struct {
	cands []types.Candidate
	err   error
	calls int
}

func (d *fakeDetector) Name() string { return "fake" }

func (d *fakeDetector) Detect(context.Context, ports.DetectInput) ([]types.Candidate, error) {
	d.calls++
	return d.cands, d.err
}

type harness struct {
	svc   *Service
	store *memstore.Store
	pool  *fakePool
	tool  *fakeVideoTool
	opts  Options
	now   time.Time
	ids   int
}

func newHarness(t *testing.T, mutate func(d *Deps)) *harness {
	t.Helper()
	root := t.TempDir()
	h := &harness{
		store: memstore.New(),
		pool:  &fakePool{},
		tool:  &fakeVideoTool{info: ports.MediaInfo{Duration: 120, Width: 1920, Height: 1080, HasAudio: true}},
		now:   time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	h.opts = DefaultOptions()
	h.opts.UploadDir = filepath.Join(root, "uploads")
	h.opts.ExportDir = filepath.Join(root, "exports")
	h.opts.CacheDir = filepath.Join(root, "cache")

	log := logrus.New()
	log.SetOutput(io.Discard)
	d := Deps{
		Repo:  h.store,
		Video: h.tool,
		Pool:  h.pool,
		Log:   log,
		Now:   func() time.Time { return h.now },
		NewID: func() string {
			h.ids++
			return fmt.Sprintf("id-%d", h.ids)
		},
	}
	if mutate != nil {
		mutate(&d)
	}
	h.svc = New(d, h.opts)
	return h
}

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("video"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

// seedVideo stores a probed video of the given duration with a real file.
func (h *harness) seedVideo(t *testing.T, id string, duration float64, status types.VideoStatus) *types.Video {
	t.Helper()
	d := duration
	v := &types.Video{
		ID:              id,
		CompanyID:       "acme",
		Source:          types.SourceUpload,
		FilePath:        writeFile(t, h.opts.UploadDir, id+".mp4"),
		Duration:        &d,
		Status:          status,
		Metadata:        map[string]any{},
		StatusChangedAt: h.now,
		CreatedAt:       h.now,
		UpdatedAt:       h.now,
	}
	if err := h.store.CreateVideo(context.Background(), v); err != nil {
		t.Fatalf("CreateVideo: %v", err)
	}
	return v
}

func (h *harness) seedClip(t *testing.T, id, videoID string, start, end float64, status types.ReviewStatus) *types.Clip {
	t.Helper()
	c := &types.Clip{
		ID:           id,
		VideoID:      videoID,
		CompanyID:    "acme",
		Title:        "Big Moment!",
		StartTime:    start,
		EndTime:      end,
		Duration:     end - start,
		Transcript:   "hello there",
		CaptionStyle: types.CaptionStyle{Preset: "animated"},
		AspectRatio:  types.Aspect9x16,
		Status:       status,
		Metadata:     map[string]any{},
		CreatedAt:    h.now,
		UpdatedAt:    h.now,
	}
	if err := h.store.InsertClips(context.Background(), []*types.Clip{c}); err != nil {
		t.Fatalf("InsertClips: %v", err)
	}
	return c
}

func spokenTranscript(from, to float64) types.Transcript {
	var tr types.Transcript
	for s := from; s < to; s += 5 {
		tr.Segments = append(tr.Segments, types.Segment{
			Start: s, End: s + 5, Text: "um this is really amazing",
			Words: []types.Word{
				{Start: s, End: s + 1, Word: "um"},
				{Start: s + 1, End: s + 2, Word: "this"},
				{Start: s + 2, End: s + 3, Word: "is"},
				{Start: s + 3, End: s + 4, Word: "really"},
				{Start: s + 4, End: s + 5, Word: "amazing"},
			},
		})
	}
	return tr
}

func (h *harness) seedTranscript(t *testing.T, videoID string, tr types.Transcript) {
	t.Helper()
	if err := h.store.SaveTranscript(context.Background(), videoID, tr); err != nil {
		t.Fatalf("SaveTranscript: %v", err)
	}
}

func TestCreateUpload_ProbesAndMarksReady(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	path := writeFile(t, h.opts.UploadDir, "in.mp4")

	v, err := h.svc.CreateUpload(ctx, "acme", path, "holiday.mp4")
	if err != nil {
		t.Fatalf("CreateUpload: %v", err)
	}
	if v.Status != types.VideoProcessing {
		t.Fatalf("status=%s, want processing", v.Status)
	}
	if errs := h.pool.runAll(t); errs[0] != nil {
		t.Fatalf("probe job: %v", errs[0])
	}
	got, _ := h.svc.GetVideo(ctx, v.ID)
	if got.Status != types.VideoReady {
		t.Fatalf("status=%s, want ready", got.Status)
	}
	if got.Duration == nil || *got.Duration != 120 {
		t.Fatalf("duration=%v, want 120", got.Duration)
	}
	if got.ThumbnailPath == "" {
		t.Fatalf("expected thumbnail path")
	}
	if got.Metadata["original_filename"] != "holiday.mp4" {
		t.Fatalf("metadata=%v", got.Metadata)
	}
}

func TestCreateUpload_ProbeFailureRecordsError(t *testing.T) {
	h := newHarness(t, nil)
	h.tool.probeErr = apperr.New(apperr.ErrSubprocess, "ffprobe exploded")
	ctx := context.Background()
	v, err := h.svc.CreateUpload(ctx, "acme", writeFile(t, h.opts.UploadDir, "in.mp4"), "")
	if err != nil {
		t.Fatalf("CreateUpload: %v", err)
	}
	h.pool.runAll(t)
	got, _ := h.svc.GetVideo(ctx, v.ID)
	if got.Status != types.VideoError {
		t.Fatalf("status=%s, want error", got.Status)
	}
	if got.Metadata["error_stage"] != stageProbe || !strings.Contains(fmt.Sprint(got.Metadata["error"]), "ffprobe exploded") {
		t.Fatalf("metadata=%v", got.Metadata)
	}
}

func TestCreateUpload_MissingFile(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.svc.CreateUpload(context.Background(), "acme", filepath.Join(t.TempDir(), "nope.mp4"), "")
	if !errors.Is(err, apperr.ErrVideoFileMissing) {
		t.Fatalf("err=%v, want VideoFileMissing", err)
	}
}

func TestCreateImport_WithoutDownloader(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.svc.CreateImport(context.Background(), "acme", "https://youtu.be/abc")
	if !errors.Is(err, apperr.ErrProviderNotConfigured) {
		t.Fatalf("err=%v, want ProviderNotConfigured", err)
	}
}

func TestTranscribe_SavesNormalizedTranscript(t *testing.T) {
	raw := types.Transcript{Segments: []types.Segment{
		{Start: 3, End: 4, Text: " second "},
		{Start: 0, End: 2, Text: "", Words: []types.Word{{Start: 0, End: 1.2, Word: "first"}, {Start: 1, End: 2, Word: "words"}}},
	}}
	h := newHarness(t, func(d *Deps) { d.ASR = fakeASR{tr: raw} })
	ctx := context.Background()
	h.seedVideo(t, "v1", 60, types.VideoReady)

	if _, err := h.svc.TriggerTranscribe(ctx, "v1"); err != nil {
		t.Fatalf("TriggerTranscribe: %v", err)
	}
	if errs := h.pool.runAll(t); errs[0] != nil {
		t.Fatalf("job: %v", errs[0])
	}
	v, _ := h.svc.GetVideo(ctx, "v1")
	if v.Status != types.VideoTranscribed {
		t.Fatalf("status=%s", v.Status)
	}
	tr, err := h.svc.GetTranscript(ctx, "v1")
	if err != nil {
		t.Fatalf("GetTranscript: %v", err)
	}
	if len(tr.Segments) != 2 || tr.Segments[0].Text != "first words" {
		t.Fatalf("segments=%+v", tr.Segments)
	}
	if w := tr.Segments[0].Words[1]; w.Start != 1.2 {
		t.Fatalf("overlapping word not repaired: %+v", w)
	}
	if _, err := os.Stat(filepath.Join(h.opts.CacheDir, "videos", "v1", "audio.wav")); !os.IsNotExist(err) {
		t.Fatalf("extracted audio left behind: %v", err)
	}
}

func TestTranscribe_Preconditions(t *testing.T) {
	ctx := context.Background()

	h := newHarness(t, nil)
	h.seedVideo(t, "v1", 60, types.VideoReady)
	if _, err := h.svc.TriggerTranscribe(ctx, "v1"); !errors.Is(err, apperr.ErrProviderNotConfigured) {
		t.Fatalf("no asr: err=%v", err)
	}

	h = newHarness(t, func(d *Deps) { d.ASR = fakeASR{} })
	v := h.seedVideo(t, "v1", 60, types.VideoReady)
	if err := os.Remove(v.FilePath); err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.TriggerTranscribe(ctx, "v1"); !errors.Is(err, apperr.ErrVideoFileMissing) {
		t.Fatalf("missing file: err=%v", err)
	}
	got, _ := h.svc.GetVideo(ctx, "v1")
	if got.Status != types.VideoReady {
		t.Fatalf("failed precondition changed status to %s", got.Status)
	}
}

func TestTranscribe_FailureRecordsError(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.ASR = fakeASR{err: errors.New("model crashed")} })
	ctx := context.Background()
	h.seedVideo(t, "v1", 60, types.VideoReady)
	if _, err := h.svc.TriggerTranscribe(ctx, "v1"); err != nil {
		t.Fatal(err)
	}
	h.pool.runAll(t)
	v, _ := h.svc.GetVideo(ctx, "v1")
	if v.Status != types.VideoTranscriptionError || v.Metadata["error_stage"] != stageTranscribe {
		t.Fatalf("video=%+v", v)
	}
}

func TestStageGuard_ConflictAndStale(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.ASR = fakeASR{} })
	ctx := context.Background()
	h.seedVideo(t, "v1", 60, types.VideoReady)

	if _, err := h.svc.TriggerTranscribe(ctx, "v1"); err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.TriggerTranscribe(ctx, "v1"); !errors.Is(err, apperr.ErrStageInProgress) {
		t.Fatalf("second transcribe: err=%v, want StageInProgress", err)
	}
	if _, _, err := h.svc.TriggerAnalyze(ctx, "v1"); !errors.Is(err, apperr.ErrStageInProgress) {
		t.Fatalf("analyze during transcribe: err=%v, want StageInProgress", err)
	}

	h.now = h.now.Add(h.opts.StaleAfter + time.Minute)
	if _, err := h.svc.TriggerTranscribe(ctx, "v1"); err != nil {
		t.Fatalf("stale claim should be taken over: %v", err)
	}
}

func TestStageGuard_QueueFullRevertsClaim(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.ASR = fakeASR{} })
	ctx := context.Background()
	h.seedVideo(t, "v1", 60, types.VideoTranscribed)
	h.pool.err = apperr.New(apperr.ErrQueueFull, "full")

	if _, err := h.svc.TriggerTranscribe(ctx, "v1"); !errors.Is(err, apperr.ErrQueueFull) {
		t.Fatalf("err=%v, want QueueFull", err)
	}
	v, _ := h.svc.GetVideo(ctx, "v1")
	if v.Status != types.VideoTranscribed {
		t.Fatalf("status=%s, want claim reverted to transcribed", v.Status)
	}
}

func TestAnalyze_FallbackWithoutDetector(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.seedVideo(t, "v1", 180, types.VideoReady)

	v, started, err := h.svc.TriggerAnalyze(ctx, "v1")
	if err != nil || !started {
		t.Fatalf("TriggerAnalyze: started=%v err=%v", started, err)
	}
	if v.Status != types.VideoAnalyzing {
		t.Fatalf("status=%s", v.Status)
	}
	h.pool.runAll(t)

	clips, err := h.svc.ListClips(ctx, "v1")
	if err != nil {
		t.Fatal(err)
	}
	if len(clips) != 5 {
		t.Fatalf("got %d clips, want 5", len(clips))
	}
	for i, c := range clips {
		if c.Source != types.SourceFallback || c.Status != types.ClipPending || c.AspectRatio != types.Aspect9x16 {
			t.Fatalf("clip %d=%+v", i, c)
		}
		if c.StartTime < 0 || c.EndTime > 180 || c.StartTime >= c.EndTime {
			t.Fatalf("clip %d out of range: [%v,%v]", i, c.StartTime, c.EndTime)
		}
		if i > 0 && clips[i-1].ViralityScore < c.ViralityScore {
			t.Fatalf("clips not ordered by score")
		}
	}
	got, _ := h.svc.GetVideo(ctx, "v1")
	if got.Status != types.VideoAnalyzed || got.Metadata["detector"] != string(types.SourceFallback) {
		t.Fatalf("video=%+v", got)
	}

	_, started, err = h.svc.TriggerAnalyze(ctx, "v1")
	if err != nil || started {
		t.Fatalf("second analyze should be a no-op: started=%v err=%v", started, err)
	}
}

func TestAnalyze_DropsInvalidCandidatesAndFallsBack(t *testing.T) {
	tests := []struct {
		name       string
		det        *fakeDetector
		wantSource string
		wantClips  int
	}{
		{
			name: "mixed candidates keep valid ones",
			det: &fakeDetector{cands: []types.Candidate{
				{StartTime: 10, EndTime: 40, Title: "good", HookStrength: "strong", Source: types.SourceTranscriptModel},
				{StartTime: 50, EndTime: 500, Title: "past end", Source: types.SourceTranscriptModel},
				{StartTime: 30, EndTime: 20, Title: "reversed", Source: types.SourceTranscriptModel},
			}},
			wantSource: "fake",
			wantClips:  1,
		},
		{
			name:       "detector error",
			det:        &fakeDetector{err: apperr.New(apperr.ErrProvider, "502")},
			wantSource: string(types.SourceFallback),
			wantClips:  3,
		},
		{
			name: "no valid candidates",
			det: &fakeDetector{cands: []types.Candidate{
				{StartTime: 100, EndTime: 130, Title: "beyond transcript"},
			}},
			wantSource: string(types.SourceFallback),
			wantClips:  3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(d *Deps) { d.Detector = tt.det })
			ctx := context.Background()
			h.seedVideo(t, "v1", 90, types.VideoTranscribed)
			h.seedTranscript(t, "v1", spokenTranscript(0, 60))

			if _, _, err := h.svc.TriggerAnalyze(ctx, "v1"); err != nil {
				t.Fatal(err)
			}
			h.pool.runAll(t)
			clips, _ := h.svc.ListClips(ctx, "v1")
			if len(clips) != tt.wantClips {
				t.Fatalf("got %d clips, want %d", len(clips), tt.wantClips)
			}
			v, _ := h.svc.GetVideo(ctx, "v1")
			if v.Metadata["detector"] != tt.wantSource {
				t.Fatalf("detector=%v, want %s", v.Metadata["detector"], tt.wantSource)
			}
			if tt.wantSource == "fake" && (len(clips[0].Words) == 0 || clips[0].Transcript == "") {
				t.Fatalf("clip missing transcript slice: %+v", clips[0])
			}
		})
	}
}

func TestRegenerate_ReplacesClips(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.seedVideo(t, "v1", 60, types.VideoAnalyzed)
	h.seedClip(t, "old-1", "v1", 0, 10, types.ClipApproved)
	h.seedClip(t, "old-2", "v1", 10, 20, types.ClipPending)

	if _, err := h.svc.TriggerRegenerate(ctx, "v1"); err != nil {
		t.Fatal(err)
	}
	h.pool.runAll(t)
	clips, _ := h.svc.ListClips(ctx, "v1")
	if len(clips) != 2 {
		t.Fatalf("got %d clips, want 2 fallback windows", len(clips))
	}
	for _, c := range clips {
		if strings.HasPrefix(c.ID, "old-") {
			t.Fatalf("old clip %s survived regenerate", c.ID)
		}
	}
	if _, err := h.svc.GetClip(ctx, "old-1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("old clip lookup: err=%v", err)
	}
}

func TestAnalyze_KeepsExistingClips(t *testing.T) {
	tests := []struct {
		name        string
		status      types.VideoStatus
		wantErr     error
		wantStarted bool
	}{
		{name: "transcribed video with clips", status: types.VideoTranscribed, wantErr: apperr.ErrClipsExist},
		{name: "failed analysis with clips", status: types.VideoAnalysisError, wantErr: apperr.ErrClipsExist},
		{name: "analyzed video is a no-op", status: types.VideoAnalyzed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			ctx := context.Background()
			h.seedVideo(t, "v1", 60, tt.status)
			h.seedClip(t, "keep", "v1", 0, 10, types.ClipApproved)

			_, started, err := h.svc.TriggerAnalyze(ctx, "v1")
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("err=%v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if started != tt.wantStarted {
				t.Fatalf("started=%v, want %v", started, tt.wantStarted)
			}
			h.pool.runAll(t)

			clips, _ := h.svc.ListClips(ctx, "v1")
			if len(clips) != 1 || clips[0].ID != "keep" || clips[0].Status != types.ClipApproved {
				t.Fatalf("clips=%+v, want the approved clip untouched", clips)
			}
			v, _ := h.svc.GetVideo(ctx, "v1")
			if v.Status != tt.status {
				t.Fatalf("status=%s, want %s", v.Status, tt.status)
			}
		})
	}
}

func TestUpdateTimeline(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.seedVideo(t, "v1", 120, types.VideoAnalyzed)
	h.seedTranscript(t, "v1", spokenTranscript(0, 120))
	h.seedClip(t, "c1", "v1", 0, 30, types.ClipPending)

	c, err := h.svc.UpdateTimeline(ctx, "c1", 45.5, 75.2)
	if err != nil {
		t.Fatalf("UpdateTimeline: %v", err)
	}
	if c.Duration != 29.7 || c.StartTime != 45.5 || c.EndTime != 75.2 {
		t.Fatalf("clip=[%v,%v] dur=%v", c.StartTime, c.EndTime, c.Duration)
	}
	for _, w := range c.Words {
		if w.End <= 45.5 || w.Start >= 75.2 {
			t.Fatalf("word %+v outside new range", w)
		}
	}

	for _, r := range [][2]float64{{10, 5}, {-1, 5}, {100, 121}, {5, 5}} {
		if _, err := h.svc.UpdateTimeline(ctx, "c1", r[0], r[1]); !errors.Is(err, apperr.ErrInvalidRange) {
			t.Fatalf("range %v: err=%v, want InvalidRange", r, err)
		}
	}
	got, _ := h.svc.GetClip(ctx, "c1")
	if got.StartTime != 45.5 {
		t.Fatalf("rejected edit changed the clip")
	}
}

func TestUpdateTimeline_RoundingStaysInRange(t *testing.T) {
	tests := []struct {
		name      string
		start     float64
		end       float64
		wantStart float64
		wantEnd   float64
		wantErr   error
	}{
		{name: "end at unrounded duration", start: 2, end: 12.345678, wantStart: 2, wantEnd: 12.345678},
		{name: "end rounds up past duration", start: 2.0004, end: 12.3456, wantStart: 2, wantEnd: 12.345678},
		{name: "end rounds down", start: 1.23449, end: 5.6781, wantStart: 1.234, wantEnd: 5.678},
		{name: "range collapses after rounding", start: 3.0001, end: 3.0004, wantErr: apperr.ErrInvalidRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			ctx := context.Background()
			h.seedVideo(t, "v1", 12.345678, types.VideoAnalyzed)
			h.seedClip(t, "c1", "v1", 0, 10, types.ClipPending)

			c, err := h.svc.UpdateTimeline(ctx, "c1", tt.start, tt.end)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err=%v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("UpdateTimeline: %v", err)
			}
			if c.StartTime != tt.wantStart || c.EndTime != tt.wantEnd {
				t.Fatalf("clip=[%v,%v], want [%v,%v]", c.StartTime, c.EndTime, tt.wantStart, tt.wantEnd)
			}
			if c.EndTime > 12.345678 || c.Duration <= 0 {
				t.Fatalf("clip=[%v,%v] dur=%v escapes the video", c.StartTime, c.EndTime, c.Duration)
			}
		})
	}
}

func TestEditor_StyleAspectAndReview(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.seedVideo(t, "v1", 60, types.VideoAnalyzed)
	h.seedClip(t, "c1", "v1", 0, 30, types.ClipPending)

	if _, err := h.svc.SetCaptionStyle(ctx, "c1", types.CaptionStyle{Preset: "Neon"}); !errors.Is(err, apperr.ErrUnknownStylePreset) {
		t.Fatalf("unknown preset: err=%v", err)
	}
	bad := &types.StyleSpec{FontName: "Inter", FontSize: 2, PrimaryColor: "white", OutlineColor: "#000", BorderStyle: 1, Alignment: 2}
	if _, err := h.svc.SetCaptionStyle(ctx, "c1", types.CaptionStyle{Custom: bad}); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("bad custom style: err=%v", err)
	}
	c, err := h.svc.SetCaptionStyle(ctx, "c1", types.CaptionStyle{Preset: " Bold "})
	if err != nil || c.CaptionStyle.Preset != "bold" {
		t.Fatalf("SetCaptionStyle: %+v %v", c, err)
	}
	if _, err := h.svc.SetAspectRatio(ctx, "c1", "21:9"); !errors.Is(err, apperr.ErrUnsupportedAspectRatio) {
		t.Fatalf("aspect: err=%v", err)
	}
	if c, err = h.svc.SetAspectRatio(ctx, "c1", types.Aspect1x1); err != nil || c.AspectRatio != types.Aspect1x1 {
		t.Fatalf("SetAspectRatio: %+v %v", c, err)
	}
	if c, err = h.svc.Approve(ctx, "c1"); err != nil || c.Status != types.ClipApproved {
		t.Fatalf("Approve: %v", err)
	}
	if c, err = h.svc.Reject(ctx, "c1"); err != nil || c.Status != types.ClipRejected {
		t.Fatalf("Reject: %v", err)
	}
}

func TestSetCaptionStyle_CustomSpecRules(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *types.StyleSpec)
		wantErr error
	}{
		{name: "plain spec", mutate: func(*types.StyleSpec) {}},
		{name: "8-digit colors", mutate: func(s *types.StyleSpec) { s.PrimaryColor, s.BackColor = "#FFFFFF80", "#000000CC" }},
		{name: "4-digit color", mutate: func(s *types.StyleSpec) { s.OutlineColor = "#0008" }},
		{name: "comma in font name", mutate: func(s *types.StyleSpec) { s.FontName = "Inter,99" }, wantErr: apperr.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			ctx := context.Background()
			h.seedVideo(t, "v1", 60, types.VideoAnalyzed)
			h.seedClip(t, "c1", "v1", 0, 30, types.ClipPending)

			spec := &types.StyleSpec{FontName: "Inter", FontSize: 48, PrimaryColor: "#FFFFFF", OutlineColor: "#000000", BorderStyle: 1, Alignment: 2}
			tt.mutate(spec)
			c, err := h.svc.SetCaptionStyle(ctx, "c1", types.CaptionStyle{Custom: spec})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err=%v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil || c.CaptionStyle.Custom == nil {
				t.Fatalf("SetCaptionStyle: %+v %v", c, err)
			}
		})
	}
}

func TestUpdateTranscript_Segments(t *testing.T) {
	tests := []struct {
		name     string
		segments []types.Segment
		wantText string
		wantErr  error
	}{
		{
			name: "ordered words",
			segments: []types.Segment{{Words: []types.Word{
				{Start: 0, End: 0.5, Word: "so"},
				{Start: 0.5, End: 1, Word: "anyway"},
			}}},
			wantText: "so anyway",
		},
		{
			name: "overlapping words",
			segments: []types.Segment{{Words: []types.Word{
				{Start: 0, End: 1, Word: "so"},
				{Start: 0.5, End: 1.5, Word: "anyway"},
			}}},
			wantErr: apperr.ErrInvalidInput,
		},
		{
			name:     "reversed segment",
			segments: []types.Segment{{Start: 3, End: 2, Text: "late"}},
			wantErr:  apperr.ErrInvalidInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			ctx := context.Background()
			h.seedVideo(t, "v1", 60, types.VideoAnalyzed)
			h.seedClip(t, "c1", "v1", 0, 10, types.ClipPending)

			c, err := h.svc.UpdateTranscript(ctx, "c1", "", tt.segments)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err=%v, want %v", err, tt.wantErr)
				}
				got, _ := h.svc.GetClip(ctx, "c1")
				if got.Transcript != "hello there" {
					t.Fatalf("rejected edit changed the clip: %q", got.Transcript)
				}
				return
			}
			if err != nil {
				t.Fatalf("UpdateTranscript: %v", err)
			}
			if c.Transcript != tt.wantText || len(c.Words) != 2 {
				t.Fatalf("transcript=%q words=%+v", c.Transcript, c.Words)
			}
		})
	}
}

func TestRemoveFillers(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.seedVideo(t, "v1", 60, types.VideoAnalyzed)
	h.seedTranscript(t, "v1", spokenTranscript(0, 60))
	h.seedClip(t, "c1", "v1", 0, 10, types.ClipPending)
	if _, err := h.svc.UpdateTranscript(ctx, "c1", "", nil); err != nil {
		t.Fatalf("UpdateTranscript: %v", err)
	}

	fillers, err := h.svc.DetectFillers(ctx, "c1")
	if err != nil || len(fillers) != 2 {
		t.Fatalf("DetectFillers: %+v %v", fillers, err)
	}
	c, n, err := h.svc.RemoveFillers(ctx, "c1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || strings.Contains(c.Transcript, "um") {
		t.Fatalf("removed=%d transcript=%q", n, c.Transcript)
	}
	for _, w := range c.Words {
		if w.Word == "um" {
			t.Fatalf("filler timing kept: %+v", c.Words)
		}
	}
	if metaInt(c.Metadata, "fillers_removed") != 2 {
		t.Fatalf("metadata=%v", c.Metadata)
	}
}

func TestRemoveFillers_Selection(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.seedVideo(t, "v1", 60, types.VideoAnalyzed)
	h.seedClip(t, "c1", "v1", 0, 4, types.ClipPending)
	_, _ = h.store.UpdateClip(ctx, "c1", func(c *types.Clip) error {
		c.Transcript = "um I like this"
		c.Words = []types.Word{
			{Start: 0, End: 1, Word: "um"},
			{Start: 1, End: 2, Word: "I"},
			{Start: 2, End: 3, Word: "like"},
			{Start: 3, End: 4, Word: "this"},
		}
		return nil
	})

	c, n, err := h.svc.RemoveFillers(ctx, "c1", []transcript.Filler{})
	if err != nil || n != 0 || c.Transcript != "um I like this" || len(c.Words) != 4 {
		t.Fatalf("empty selection changed the clip: n=%d %q %+v %v", n, c.Transcript, c.Words, err)
	}

	stale := transcript.Filler{Word: "um", Start: 9, End: 11}
	c, n, err = h.svc.RemoveFillers(ctx, "c1", []transcript.Filler{stale})
	if err != nil || n != 0 || len(c.Words) != 4 {
		t.Fatalf("stale filler: n=%d %+v %v", n, c.Words, err)
	}

	fillers, _ := h.svc.DetectFillers(ctx, "c1")
	if len(fillers) != 2 {
		t.Fatalf("DetectFillers: %+v", fillers)
	}
	c, n, err = h.svc.RemoveFillers(ctx, "c1", fillers[:1])
	if err != nil {
		t.Fatalf("RemoveFillers: %v", err)
	}
	if n != 1 || c.Transcript != "I like this" {
		t.Fatalf("removed=%d transcript=%q", n, c.Transcript)
	}
	if len(c.Words) != 3 || c.Words[1].Word != "like" {
		t.Fatalf("word timings out of step with text: %+v", c.Words)
	}
	srt, err := h.svc.RenderCaptions(ctx, "c1", subtitles.FormatSRT, 4)
	if err != nil || !strings.Contains(srt, "I like this") {
		t.Fatalf("captions %q, %v", srt, err)
	}
	if metaInt(c.Metadata, "fillers_removed") != 1 {
		t.Fatalf("metadata=%v", c.Metadata)
	}
}

func TestDuplicate_SharesNoState(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.seedVideo(t, "v1", 60, types.VideoAnalyzed)
	src := h.seedClip(t, "c1", "v1", 0, 30, types.ClipApproved)
	_, _ = h.store.UpdateClip(ctx, src.ID, func(c *types.Clip) error {
		c.Words = []types.Word{{Start: 1, End: 2, Word: "hi"}}
		c.SetExportStatus(types.ExportDone, h.now)
		c.ExportedPath = "/out/c1.mp4"
		return nil
	})

	dup, err := h.svc.Duplicate(ctx, "c1", "")
	if err != nil {
		t.Fatal(err)
	}
	if dup.ID == "c1" || dup.Title != "Big Moment! (Copy)" || dup.Status != types.ClipPending {
		t.Fatalf("dup=%+v", dup)
	}
	if dup.ExportStatus != types.ExportNone || dup.ExportedPath != "" {
		t.Fatalf("dup carries export state: %+v", dup)
	}
	if _, err := h.svc.UpdateTimeline(ctx, dup.ID, 5, 15); err != nil {
		t.Fatal(err)
	}
	orig, _ := h.svc.GetClip(ctx, "c1")
	if orig.StartTime != 0 || orig.EndTime != 30 || len(orig.Words) != 1 {
		t.Fatalf("original changed: %+v", orig)
	}
}

func TestExport_Preconditions(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		setup func(t *testing.T, h *harness)
		want  *apperr.Error
	}{
		{
			name: "not approved",
			setup: func(t *testing.T, h *harness) {
				h.seedTranscript(t, "v1", spokenTranscript(0, 60))
				_, _ = h.svc.Reject(ctx, "c1")
			},
			want: apperr.ErrNotApproved,
		},
		{
			name:  "no transcript",
			setup: func(*testing.T, *harness) {},
			want:  apperr.ErrNoTranscriptAvailable,
		},
		{
			name: "transcript does not cover clip",
			setup: func(t *testing.T, h *harness) {
				h.seedTranscript(t, "v1", spokenTranscript(40, 60))
			},
			want: apperr.ErrNoTranscriptAvailable,
		},
		{
			name: "encoder unavailable",
			setup: func(t *testing.T, h *harness) {
				h.seedTranscript(t, "v1", spokenTranscript(0, 60))
				h.tool.availableErr = errors.New("libx264 missing")
			},
			want: apperr.ErrEncoderUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.seedVideo(t, "v1", 60, types.VideoAnalyzed)
			h.seedClip(t, "c1", "v1", 0, 30, types.ClipApproved)
			tt.setup(t, h)

			_, err := h.svc.TriggerExport(ctx, "c1", ExportOptions{})
			if !errors.Is(err, tt.want) {
				t.Fatalf("err=%v, want %s", err, tt.want.Code)
			}
			if len(h.pool.jobs) != 0 || len(h.tool.exports) != 0 {
				t.Fatalf("export queued despite failed precondition")
			}
			if tt.want != apperr.ErrEncoderUnavailable && h.tool.availableCalls != 0 {
				t.Fatalf("encoder probed before cheaper precondition failed")
			}
			c, _ := h.svc.GetClip(ctx, "c1")
			if c.ExportStatus != types.ExportNone {
				t.Fatalf("export status=%s", c.ExportStatus)
			}
		})
	}
}

func TestExport_Success(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.seedVideo(t, "v1", 60, types.VideoAnalyzed)
	h.seedTranscript(t, "v1", spokenTranscript(0, 60))
	h.seedClip(t, "c1", "v1", 10, 30, types.ClipApproved)

	res, err := h.svc.TriggerExport(ctx, "c1", ExportOptions{AspectRatio: types.Aspect16x9})
	if err != nil {
		t.Fatalf("TriggerExport: %v", err)
	}
	if res.Resolution != "1920x1080" || res.Duration != 20 {
		t.Fatalf("result=%+v", res)
	}
	want := filepath.Join(h.opts.ExportDir, "c1", "big-moment-16x9.mp4")
	if res.ExportPath != want {
		t.Fatalf("path=%s, want %s", res.ExportPath, want)
	}
	if res.Clip.ExportStatus != types.ExportRunning {
		t.Fatalf("claimed status=%s", res.Clip.ExportStatus)
	}
	if _, err := h.svc.TriggerExport(ctx, "c1", ExportOptions{}); !errors.Is(err, apperr.ErrStageInProgress) {
		t.Fatalf("second export: err=%v", err)
	}
	if _, err := h.svc.SetAspectRatio(ctx, "c1", types.Aspect1x1); !errors.Is(err, apperr.ErrStageInProgress) {
		t.Fatalf("edit during export: err=%v", err)
	}

	if errs := h.pool.runAll(t); errs[0] != nil {
		t.Fatalf("export job: %v", errs[0])
	}
	spec := h.tool.exports[0]
	if spec.Start != 10 || spec.End != 30 || spec.Width != 1920 || spec.Height != 1080 || !spec.HasAudio {
		t.Fatalf("spec=%+v", spec)
	}
	if !h.tool.subtitleSeen {
		t.Fatalf("subtitle file did not exist during encode")
	}
	if _, err := os.Stat(spec.SubtitlePath); !os.IsNotExist(err) {
		t.Fatalf("subtitle file left behind: %v", err)
	}
	c, _ := h.svc.GetClip(ctx, "c1")
	if c.ExportStatus != types.ExportDone || c.ExportedPath != want {
		t.Fatalf("clip=%+v", c)
	}

	c, err = h.svc.SetAspectRatio(ctx, "c1", types.Aspect1x1)
	if err != nil {
		t.Fatal(err)
	}
	if c.ExportStatus != types.ExportNone || c.ExportedPath != "" {
		t.Fatalf("edit kept stale export: %+v", c)
	}
}

func TestExport_FailureRecordsError(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.seedVideo(t, "v1", 60, types.VideoAnalyzed)
	h.seedTranscript(t, "v1", spokenTranscript(0, 60))
	h.seedClip(t, "c1", "v1", 0, 20, types.ClipApproved)
	h.tool.exportErr = apperr.New(apperr.ErrSubprocess, "ffmpeg exited 1: bad filter")

	if _, err := h.svc.TriggerExport(ctx, "c1", ExportOptions{}); err != nil {
		t.Fatal(err)
	}
	errs := h.pool.runAll(t)
	if !errors.Is(errs[0], apperr.ErrSubprocess) {
		t.Fatalf("job err=%v", errs[0])
	}
	c, _ := h.svc.GetClip(ctx, "c1")
	if c.ExportStatus != types.ExportFailed {
		t.Fatalf("status=%s", c.ExportStatus)
	}
	if !strings.Contains(fmt.Sprint(c.Metadata["export_error"]), "bad filter") {
		t.Fatalf("metadata=%v", c.Metadata)
	}
	if _, err := os.Stat(h.tool.exports[0].SubtitlePath); !os.IsNotExist(err) {
		t.Fatalf("subtitle file left behind after failure")
	}

	h.tool.exportErr = nil
	if _, err := h.svc.TriggerExport(ctx, "c1", ExportOptions{}); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	h.pool.runAll(t)
	c, _ = h.svc.GetClip(ctx, "c1")
	if c.ExportStatus != types.ExportDone {
		t.Fatalf("retry status=%s", c.ExportStatus)
	}
	if _, ok := c.Metadata["export_error"]; ok {
		t.Fatalf("stale export_error kept: %v", c.Metadata)
	}
}

func TestExport_QueueFullRevertsClaim(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.seedVideo(t, "v1", 60, types.VideoAnalyzed)
	h.seedTranscript(t, "v1", spokenTranscript(0, 60))
	h.seedClip(t, "c1", "v1", 0, 20, types.ClipApproved)
	h.pool.err = apperr.New(apperr.ErrQueueFull, "full")

	if _, err := h.svc.TriggerExport(ctx, "c1", ExportOptions{}); !errors.Is(err, apperr.ErrQueueFull) {
		t.Fatalf("err=%v", err)
	}
	c, _ := h.svc.GetClip(ctx, "c1")
	if c.ExportStatus != types.ExportNone {
		t.Fatalf("status=%s, want claim reverted", c.ExportStatus)
	}
}

func TestExportPath(t *testing.T) {
	tests := []struct {
		title string
		ratio types.AspectRatio
		want  string
	}{
		{title: "Big Moment!", ratio: types.Aspect9x16, want: "big-moment-9x16.mp4"},
		{title: "  ", ratio: types.Aspect1x1, want: "clip-1x1.mp4"},
		{title: "Ünïcode // path", ratio: types.Aspect4x5, want: "n-code-path-4x5.mp4"},
	}
	for _, tt := range tests {
		got := ExportPath("/out", &types.Clip{ID: "c1", Title: tt.title}, tt.ratio)
		if got != filepath.Join("/out", "c1", tt.want) {
			t.Fatalf("ExportPath(%q)=%s, want %s", tt.title, got, tt.want)
		}
	}
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{name: "short", in: "ffmpeg failed", n: 20, want: "ffmpeg failed"},
		{name: "ascii cut", in: "ffmpeg failed", n: 6, want: "ffmpeg…"},
		{name: "inside two-byte rune", in: "café au lait", n: 4, want: "caf…"},
		{name: "after two-byte rune", in: "café au lait", n: 5, want: "café…"},
		{name: "inside four-byte rune", in: "ok 🎬 done", n: 5, want: "ok …"},
		{name: "leading multibyte", in: "日本語", n: 2, want: "…"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.n)
			if got != tt.want {
				t.Fatalf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Fatalf("truncate(%q, %d) produced invalid UTF-8 %q", tt.in, tt.n, got)
			}
		})
	}
}
