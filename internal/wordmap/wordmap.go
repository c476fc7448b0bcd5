// Package wordmap implements keyword maps for domains: contribution
// normalization, ownership scoring, and text classification.
package wordmap

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"soulfra/api/internal/store"
)

var wordPattern = regexp.MustCompile(`[a-z0-9][a-z0-9'-]*`)

// stopwords are never counted as keywords.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "for": true, "from": true, "has": true,
	"have": true, "in": true, "is": true, "it": true, "its": true, "of": true,
	"on": true, "or": true, "that": true, "the": true, "this": true, "to": true,
	"was": true, "were": true, "will": true, "with": true, "you": true, "your": true,
}

// Normalize lowercases keywords, trims whitespace, and drops empty keys
// and non-positive counts. Counts for keys that collapse to the same
// normalized form are summed.
func Normalize(keywords map[string]int) map[string]int {
	out := make(map[string]int, len(keywords))
	for k, n := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || n <= 0 {
			continue
		}
		out[k] += n
	}
	return out
}

// Extract tokenizes free text into keyword counts. Stopwords and
// one- or two-letter tokens are skipped.
func Extract(text string) map[string]int {
	counts := make(map[string]int)
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if len(w) < 3 || stopwords[w] {
			continue
		}
		counts[w]++
	}
	return counts
}

// ComputeOwnership converts per-user contribution totals into an
// ownership table. Percentages are proportional to contribution score,
// rounded to two decimals, sorted by score descending with ties broken
// by user ID for stable output.
func ComputeOwnership(totals map[string]int) []store.Ownership {
	var sum int
	for _, n := range totals {
		if n > 0 {
			sum += n
		}
	}

	owners := make([]store.Ownership, 0, len(totals))
	for userID, n := range totals {
		if n <= 0 {
			continue
		}
		owners = append(owners, store.Ownership{
			UserID:  userID,
			Score:   n,
			Percent: round2(float64(n) / float64(sum) * 100),
		})
	}

	sort.Slice(owners, func(i, j int) bool {
		if owners[i].Score != owners[j].Score {
			return owners[i].Score > owners[j].Score
		}
		return owners[i].UserID < owners[j].UserID
	})
	return owners
}

// Score measures how strongly a text matches a domain wordmap: the sum
// over shared keywords of text count times map weight.
func Score(wm map[string]int, textCounts map[string]int) int {
	var score int
	for word, n := range textCounts {
		if weight, ok := wm[word]; ok {
			score += n * weight
		}
	}
	return score
}

// Match is one classification result.
type Match struct {
	DomainID string
	Score    int
}

// Classify scores a text against every domain wordmap and returns
// matches with score > 0, best first.
func Classify(text string, wordmaps map[string]map[string]int) []Match {
	counts := Extract(text)

	matches := make([]Match, 0)
	for domainID, wm := range wordmaps {
		if s := Score(wm, counts); s > 0 {
			matches = append(matches, Match{DomainID: domainID, Score: s})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].DomainID < matches[j].DomainID
	})
	return matches
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
