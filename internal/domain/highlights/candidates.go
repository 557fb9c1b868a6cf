package highlights

import (
	"math"
	"sort"

	"github.com/forPelevin/clipforge/internal/apperr"
	"github.com/forPelevin/clipforge/internal/types"
)

// MaxClipsPerVideo caps how many ranked candidates are persisted per video.
const MaxClipsPerVideo = 10

// boundsEpsilon absorbs float noise from model-emitted timestamps.
const boundsEpsilon = 0.05

type Bounds struct {
	Start float64
	End   float64
}

// CoveredBounds is the range a candidate must fall into: the transcript's
// covered range when one exists, clipped to the known video duration.
func CoveredBounds(tr *types.Transcript, duration *float64) (Bounds, bool) {
	var b Bounds
	ok := false
	if tr != nil {
		b.Start, b.End, ok = tr.Bounds()
	}
	if duration != nil && *duration > 0 {
		if !ok {
			return Bounds{Start: 0, End: *duration}, true
		}
		if b.End > *duration {
			b.End = *duration
		}
	}
	if b.Start < 0 {
		b.Start = 0
	}
	return b, ok || (duration != nil && *duration > 0)
}

// Validate rejects candidates outside b. Out-of-range candidates are dropped,
// never clamped.
func Validate(c types.Candidate, b Bounds) error {
	if math.IsNaN(c.StartTime) || math.IsNaN(c.EndTime) {
		return apperr.New(apperr.ErrCandidateInvalid, "candidate %q has non-numeric times", c.Title)
	}
	if c.StartTime >= c.EndTime {
		return apperr.New(apperr.ErrCandidateInvalid, "candidate %q: start %.2f >= end %.2f", c.Title, c.StartTime, c.EndTime)
	}
	if c.StartTime < b.Start-boundsEpsilon || c.EndTime > b.End+boundsEpsilon {
		return apperr.New(apperr.ErrCandidateInvalid,
			"candidate %q [%.2f, %.2f] outside covered range [%.2f, %.2f]",
			c.Title, c.StartTime, c.EndTime, b.Start, b.End)
	}
	return nil
}

type Ranked struct {
	Candidate types.Candidate
	Score     types.Score
}

// Rank scores every candidate and returns at most limit of them ordered by
// descending total. Ties keep detection order.
func Rank(cands []types.Candidate, limit int) []Ranked {
	out := make([]Ranked, 0, len(cands))
	for _, c := range cands {
		out = append(out, Ranked{Candidate: c, Score: Score(c)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score.Total > out[j].Score.Total
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
