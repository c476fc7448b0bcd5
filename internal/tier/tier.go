// Package tier implements activity-based tier progression. A user's
// counted activity produces a score, the score maps onto a tier, and
// brands at or below that tier can be unlocked.
package tier

import "soulfra/api/internal/store"

// Activity weights. Publishing carries the most, passive scanning the least.
const (
	postWeight         = 10
	commentWeight      = 3
	contributionWeight = 2
	scanWeight         = 1
)

// thresholds[i] is the minimum score for tier i+1.
var thresholds = []int{0, 25, 75, 200, 500}

// MaxTier is the highest reachable tier.
const MaxTier = 5

// Progress describes where a user stands in the progression.
type Progress struct {
	Counts        store.ActivityCounts `json:"counts"`
	Score         int                  `json:"score"`
	Tier          int                  `json:"tier"`
	NextTier      int                  `json:"nextTier,omitempty"`
	NextThreshold int                  `json:"nextThreshold,omitempty"`
	Remaining     int                  `json:"remaining,omitempty"`
}

// Score computes the weighted activity score.
func Score(c store.ActivityCounts) int {
	return c.Posts*postWeight +
		c.Comments*commentWeight +
		c.Contributions*contributionWeight +
		c.Scans*scanWeight
}

// ForScore maps a score onto a tier in [1, MaxTier].
func ForScore(score int) int {
	t := 1
	for i, min := range thresholds {
		if score >= min {
			t = i + 1
		}
	}
	return t
}

// Compute builds the full progression view for a user's activity.
func Compute(c store.ActivityCounts) Progress {
	score := Score(c)
	current := ForScore(score)

	p := Progress{
		Counts: c,
		Score:  score,
		Tier:   current,
	}
	if current < MaxTier {
		next := thresholds[current]
		p.NextTier = current + 1
		p.NextThreshold = next
		p.Remaining = next - score
	}
	return p
}

// CanUnlock reports whether a user at the given progression may unlock
// a brand of the given tier.
func CanUnlock(p Progress, brandTier int) bool {
	if brandTier < 1 {
		brandTier = 1
	}
	return p.Tier >= brandTier
}
