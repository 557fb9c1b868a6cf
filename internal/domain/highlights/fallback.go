package highlights

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"

	"github.com/forPelevin/clipforge/internal/domain/transcript"
	"github.com/forPelevin/clipforge/internal/types"
)

const (
	fallbackMaxWindows = 5
	fallbackWindowSpan = 30.0
	fallbackMaxWindow  = 45.0
)

var (
	fallbackHooks    = []string{"weak", "moderate", "strong", "very_strong"}
	fallbackEmotions = []string{"humor", "surprise", "inspiration", "story", "motivation", "education"}
)

// Fallback partitions a video into min(5, floor(duration/30)) equal windows of
// at most 45s. Tags are drawn from a generator seeded by seed, so a given
// video always yields the same candidates. Videos shorter than 30s get one
// window.
func Fallback(seed string, duration float64, tr *types.Transcript) []types.Candidate {
	if duration <= 0 || math.IsNaN(duration) {
		return nil
	}
	n := int(math.Floor(duration / fallbackWindowSpan))
	if n > fallbackMaxWindows {
		n = fallbackMaxWindows
	}
	if n < 1 {
		n = 1
	}
	span := duration / float64(n)
	win := math.Min(span, fallbackMaxWindow)

	h := fnv.New64a()
	_, _ = h.Write([]byte(seed))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	out := make([]types.Candidate, 0, n)
	for i := 0; i < n; i++ {
		st := round3(float64(i) * span)
		en := round3(st + win)
		if en > duration {
			en = duration
		}
		c := types.Candidate{
			StartTime:        st,
			EndTime:          en,
			Title:            fmt.Sprintf("Highlight %d", i+1),
			Description:      fmt.Sprintf("Auto-selected segment at %s", clockLabel(st)),
			HookStrength:     fallbackHooks[rng.Intn(len(fallbackHooks))],
			EmotionalContent: fallbackEmotions[rng.Intn(len(fallbackEmotions))],
			Source:           types.SourceFallback,
		}
		if tr != nil {
			c.Transcript = transcript.TextInRange(*tr, st, en)
		}
		out = append(out, c)
	}
	return out
}

func clockLabel(sec float64) string {
	s := int(sec)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

func round3(x float64) float64 { return math.Round(x*1000) / 1000 }
