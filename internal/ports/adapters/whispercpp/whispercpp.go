package whispercpp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/forPelevin/clipforge/internal/apperr"
	"github.com/forPelevin/clipforge/internal/domain/transcript"
	"github.com/forPelevin/clipforge/internal/types"
)

type Adapter struct {
	bin      string
	model    string
	language string
	threads  int
}

func New(binPath, modelPath, language string, threads int) *Adapter {
	if binPath == "" {
		binPath = "whisper-cli"
	}
	return &Adapter{bin: binPath, model: modelPath, language: language, threads: threads}
}

func (a *Adapter) Transcribe(ctx context.Context, wavPath, cacheDir string) (types.Transcript, error) {
	if a.model == "" {
		return types.Transcript{}, apperr.New(apperr.ErrProviderNotConfigured, "whisper model path is not set")
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return types.Transcript{}, err
	}
	outPrefix := filepath.Join(cacheDir, "whisper")
	args := []string{
		"-m", a.model,
		"-f", wavPath,
		"-ojf",
		"-of", outPrefix,
		"-np",
	}
	if a.language != "" {
		args = append(args, "-l", a.language)
	}
	if a.threads > 0 {
		args = append(args, "-t", fmt.Sprint(a.threads))
	}
	cmd := exec.CommandContext(ctx, a.bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return types.Transcript{}, apperr.Wrap(apperr.ErrSubprocess, err, "whisper.cpp failed: %s", strings.TrimSpace(stderr.String()))
	}

	jb, err := os.ReadFile(outPrefix + ".json")
	if err != nil {
		return types.Transcript{}, err
	}
	return parseOutput(jb)
}

type whisperOutput struct {
	Transcription []struct {
		Offsets offsets `json:"offsets"`
		Text    string  `json:"text"`
		Tokens  []struct {
			Text    string  `json:"text"`
			Offsets offsets `json:"offsets"`
		} `json:"tokens"`
	} `json:"transcription"`
}

// offsets are milliseconds from the start of the audio.
type offsets struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// parseOutput converts whisper.cpp's full JSON into a transcript. Tokens are
// sub-word pieces: a token with a leading space starts a new word, anything
// else is glued onto the previous one. Control tokens like [_BEG_] are dropped.
func parseOutput(b []byte) (types.Transcript, error) {
	var out whisperOutput
	if err := json.Unmarshal(b, &out); err != nil {
		return types.Transcript{}, fmt.Errorf("parse whisper output: %w", err)
	}
	tr := types.Transcript{Segments: make([]types.Segment, 0, len(out.Transcription))}
	for _, seg := range out.Transcription {
		s := types.Segment{
			Start: ms(seg.Offsets.From),
			End:   ms(seg.Offsets.To),
			Text:  strings.TrimSpace(seg.Text),
		}
		for _, tok := range seg.Tokens {
			if strings.HasPrefix(tok.Text, "[_") || strings.TrimSpace(tok.Text) == "" {
				continue
			}
			n := len(s.Words)
			if n > 0 && !strings.HasPrefix(tok.Text, " ") {
				s.Words[n-1].Word += tok.Text
				if e := ms(tok.Offsets.To); e > s.Words[n-1].End {
					s.Words[n-1].End = e
				}
				continue
			}
			s.Words = append(s.Words, types.Word{
				Start: ms(tok.Offsets.From),
				End:   ms(tok.Offsets.To),
				Word:  strings.TrimSpace(tok.Text),
			})
		}
		tr.Segments = append(tr.Segments, s)
	}
	return transcript.Normalize(tr), nil
}

func ms(v int64) float64 { return float64(v) / 1000 }
