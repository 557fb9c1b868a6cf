package highlights

import (
	"regexp"
	"strings"

	"github.com/forPelevin/clipforge/internal/types"
)

// Weights of the aggregate score. They sum to 100.
const (
	WeightHook    = 25
	WeightEmotion = 25
	WeightInsight = 20
	WeightCTA     = 15
	WeightQuality = 15
)

var hookStrength = map[string]int{
	"very_weak":   30,
	"weak":        50,
	"moderate":    70,
	"strong":      85,
	"very_strong": 95,
}

const defaultHookStrength = 70

var emotionScore = map[string]int{
	"humor":       90,
	"surprise":    88,
	"inspiration": 85,
	"controversy": 82,
	"motivation":  80,
	"story":       78,
	"education":   75,
	"fear":        70,
}

const defaultEmotion = 65

// Lexicons match as case-insensitive substrings.
var (
	reHookWords    = regexp.MustCompile(`(?i)(secret|never|why|how to|mistake|truth|nobody|stop)`)
	reActionWords  = regexp.MustCompile(`(?i)(step|tip|trick|hack|method|strategy|secret)`)
	reDigit        = regexp.MustCompile(`\d`)
	reShareWords   = regexp.MustCompile(`(?i)(share|tag|comment|send this|follow|save this)`)
	reDebateWords  = regexp.MustCompile(`(?i)(controvers|debate|disagree|unpopular|hot take|myth)`)
	reRelateWords  = regexp.MustCompile(`(?i)(relatable|we all|everyone|you know when|can relate|same here)`)
	reTerminalPunc = regexp.MustCompile(`[.!?]["')\]]*$`)
)

// Score computes the five sub-scores and the weighted aggregate of c. It is
// pure: equal candidates always score equally.
func Score(c types.Candidate) types.Score {
	sub := types.SubScores{
		Hook:    hookScore(c),
		Emotion: emotionScoreOf(c),
		Insight: insightScore(c),
		CTA:     ctaScore(c),
		Quality: qualityScore(c),
	}
	return types.Score{SubScores: sub, Total: Aggregate(sub)}
}

// Aggregate is round(Σ sub×weight/100). Sub-scores are non-negative integers,
// so integer rounding is exact.
func Aggregate(s types.SubScores) int {
	sum := s.Hook*WeightHook +
		s.Emotion*WeightEmotion +
		s.Insight*WeightInsight +
		s.CTA*WeightCTA +
		s.Quality*WeightQuality
	return clamp((sum+50)/100, 0, 100)
}

func hookScore(c types.Candidate) int {
	base, ok := hookStrength[normalizeTag(c.HookStrength)]
	if !ok {
		base = defaultHookStrength
	}
	if reHookWords.MatchString(c.Title) {
		base += 10
	}
	return clamp(base, 0, 100)
}

func emotionScoreOf(c types.Candidate) int {
	if v, ok := emotionScore[normalizeTag(c.EmotionalContent)]; ok {
		return v
	}
	return defaultEmotion
}

func insightScore(c types.Candidate) int {
	s := 60
	if reActionWords.MatchString(c.Description) || reActionWords.MatchString(c.Transcript) {
		s += 20
	}
	if reDigit.MatchString(c.Transcript) {
		s += 10
	}
	if d := c.Duration(); d >= 20 && d <= 45 {
		s += 10
	}
	return clamp(s, 0, 100)
}

func ctaScore(c types.Candidate) int {
	s := 60
	if reShareWords.MatchString(c.Description) {
		s += 15
	}
	if reDebateWords.MatchString(c.Description) {
		s += 20
	}
	if reRelateWords.MatchString(c.Description) {
		s += 15
	}
	return clamp(s, 0, 100)
}

func qualityScore(c types.Candidate) int {
	s := 70
	d := c.Duration()
	switch {
	case d >= 15 && d <= 60:
		s += 15
	case d < 10 || d > 90:
		s -= 20
	}
	if reTerminalPunc.MatchString(strings.TrimSpace(c.Transcript)) {
		s += 10
	}
	if n := len(strings.Fields(c.Transcript)); n >= 30 && n <= 150 {
		s += 5
	}
	return clamp(s, 0, 100)
}

func normalizeTag(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	return strings.ReplaceAll(s, " ", "_")
}

func clamp(x, a, b int) int {
	if x < a {
		return a
	}
	if x > b {
		return b
	}
	return x
}
