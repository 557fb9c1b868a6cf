package highlights

import (
	"math"
	"testing"

	"github.com/forPelevin/clipforge/internal/types"
)

func TestScore_Table(t *testing.T) {
	tests := []struct {
		name string
		c    types.Candidate
		want types.Score
	}{
		{
			name: "strong hook with action and share words",
			c: types.Candidate{
				StartTime:        0,
				EndTime:          30,
				Title:            "The secret to focus",
				Description:      "Three tips. Share this with a friend",
				EmotionalContent: "humor",
				HookStrength:     "strong",
				Transcript:       "Step 1 is simple. Do it daily.",
			},
			want: types.Score{SubScores: types.SubScores{Hook: 95, Emotion: 90, Insight: 100, CTA: 75, Quality: 95}, Total: 92},
		},
		{
			name: "defaults on a very short clip",
			c:    types.Candidate{StartTime: 0, EndTime: 5},
			want: types.Score{SubScores: types.SubScores{Hook: 70, Emotion: 65, Insight: 60, CTA: 60, Quality: 50}, Total: 62},
		},
		{
			name: "cta saturates at 100",
			c: types.Candidate{
				StartTime:    10,
				EndTime:      100,
				Description:  "Hot take everyone argues about: comment below",
				HookStrength: "very_weak",
			},
			want: types.Score{SubScores: types.SubScores{Hook: 30, Emotion: 65, Insight: 60, CTA: 100, Quality: 70}, Total: 61},
		},
		{
			name: "unknown tags fall back to defaults",
			c: types.Candidate{
				StartTime:        0,
				EndTime:          12,
				HookStrength:     "galactic",
				EmotionalContent: "nostalgia",
			},
			want: types.Score{SubScores: types.SubScores{Hook: 70, Emotion: 65, Insight: 60, CTA: 60, Quality: 70}, Total: 65},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.c)
			if got != tt.want {
				t.Fatalf("Score() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestScore_Deterministic(t *testing.T) {
	c := types.Candidate{StartTime: 3, EndTime: 40, Title: "Why you never finish", EmotionalContent: "story", Transcript: "It took 3 years."}
	first := Score(c)
	for i := 0; i < 50; i++ {
		if got := Score(c); got != first {
			t.Fatalf("score changed between calls: %+v vs %+v", got, first)
		}
	}
}

func TestAggregate_IsRoundedWeightedSum(t *testing.T) {
	values := []int{0, 1, 33, 49, 50, 51, 67, 99, 100}
	for _, h := range values {
		for _, e := range values {
			for _, i := range values {
				for _, c := range []int{0, 55, 100} {
					for _, q := range []int{0, 71, 100} {
						s := types.SubScores{Hook: h, Emotion: e, Insight: i, CTA: c, Quality: q}
						got := Aggregate(s)
						weighted := float64(h)*0.25 + float64(e)*0.25 + float64(i)*0.20 + float64(c)*0.15 + float64(q)*0.15
						if math.Abs(float64(got)-weighted) > 0.5+1e-9 {
							t.Fatalf("Aggregate(%+v) = %d, weighted sum %.4f", s, got, weighted)
						}
						if got < 0 || got > 100 {
							t.Fatalf("Aggregate(%+v) = %d out of range", s, got)
						}
					}
				}
			}
		}
	}
}

func TestWeights_SumTo100(t *testing.T) {
	if WeightHook+WeightEmotion+WeightInsight+WeightCTA+WeightQuality != 100 {
		t.Fatalf("weights must sum to 100")
	}
}
