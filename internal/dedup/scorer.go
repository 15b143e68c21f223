package dedup

import (
	"strings"
	"time"

	"github.com/dxbevents/lifecycle/internal/storage"
	"github.com/dxbevents/lifecycle/internal/types"
)

// Weighted score components. Title dominates because cross-source
// duplicates almost always share a near-identical title, while venue
// and time disambiguate recurring events at the same place.
const (
	titleWeight       = 0.50
	venueWeight       = 0.20
	timeWeight        = 0.15
	descriptionWeight = 0.10
	originWeight      = 0.05

	// titleBonusFloor is the title similarity above which the title
	// component gets a 1.2x bonus multiplier
	titleBonusFloor = 0.9
	titleBonus      = 1.2
)

// stopWords are excluded from keyword extraction. Domain words like
// "festival" appear in most listings and carry no discriminating power.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {},
	"with": {}, "by": {}, "from": {}, "up": {}, "about": {}, "into": {},
	"through": {}, "during": {}, "before": {}, "after": {}, "above": {},
	"below": {}, "between": {}, "among": {}, "within": {},
	"event": {}, "show": {}, "experience": {}, "festival": {},
	"concert": {}, "exhibition": {},
}

// Scorer computes weighted similarity between two events. It is pure:
// no storage access, no clock, deterministic for a given input pair.
type Scorer struct {
	maxKeywords int
}

// NewScorer creates a scorer that extracts at most maxKeywords title keywords
func NewScorer(maxKeywords int) *Scorer {
	if maxKeywords <= 0 {
		maxKeywords = DefaultConfig().MaxKeywords
	}
	return &Scorer{maxKeywords: maxKeywords}
}

// Score returns the weighted similarity of two events in [0.0, 1.0].
// Symmetric: Score(a, b) == Score(b, a).
func (s *Scorer) Score(a, b *types.Event) float64 {
	titleScore := TextSimilarity(a.Title, b.Title)
	titleComponent := titleScore * titleWeight
	if titleScore > titleBonusFloor {
		titleComponent = min1(titleComponent * titleBonus)
	}

	venueComponent := TextSimilarity(a.Venue.Name, b.Venue.Name) * venueWeight
	timeComponent := TimeProximity(a.StartDate, b.StartDate) * timeWeight
	descComponent := TextSimilarity(a.Description, b.Description) * descriptionWeight

	originComponent := 0.0
	if a.SourceName == b.SourceName && a.SourceID == b.SourceID {
		originComponent = originWeight
	}

	return min1(titleComponent + venueComponent + timeComponent + descComponent + originComponent)
}

// TextSimilarity blends character-level sequence similarity with
// word-set overlap. The sequence ratio catches rewordings that keep
// most characters; the Jaccard term catches reorderings that keep most
// words.
func TextSimilarity(a, b string) float64 {
	a = storage.Normalize(a)
	b = storage.Normalize(b)
	if a == "" || b == "" {
		return 0.0
	}

	basic := sequenceRatio(a, b)

	wordsA := wordSet(a)
	wordsB := wordSet(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return basic
	}

	intersection := 0
	for w := range wordsA {
		if _, ok := wordsB[w]; ok {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection
	jaccard := 0.0
	if union > 0 {
		jaccard = float64(intersection) / float64(union)
	}

	return basic*0.6 + jaccard*0.4
}

// TimeProximity maps the gap between two start times onto [0.1, 1.0].
// Within an hour counts as simultaneous; the score decays linearly to
// 0.5 at six hours and to 0.1 at twenty-four, then floors.
func TimeProximity(a, b time.Time) float64 {
	if a.IsZero() || b.IsZero() {
		return 0.0
	}
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	hours := diff.Hours()
	switch {
	case hours <= 1:
		return 1.0
	case hours <= 6:
		return 1.0 - (hours-1)/5*0.5
	case hours <= 24:
		return 0.5 - (hours-6)/18*0.4
	default:
		return 0.1
	}
}

// Keywords extracts discriminating title words for candidate search:
// normalized, stop words removed, short words removed, capped.
func (s *Scorer) Keywords(text string) []string {
	if text == "" {
		return nil
	}
	var keywords []string
	for _, word := range strings.Fields(storage.Normalize(text)) {
		if len(word) <= 2 {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		keywords = append(keywords, word)
		if len(keywords) == s.maxKeywords {
			break
		}
	}
	return keywords
}

func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(text) {
		set[w] = struct{}{}
	}
	return set
}

// sequenceRatio is the Ratcliff/Obershelp similarity of two strings:
// twice the number of matching characters over the total length, where
// matches are counted recursively around the longest common substring.
func sequenceRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 0.0
	}
	return 2.0 * float64(matchingChars(ra, rb)) / float64(total)
}

func matchingChars(a, b []rune) int {
	ai, bi, size := longestCommonSubstring(a, b)
	if size == 0 {
		return 0
	}
	return size +
		matchingChars(a[:ai], b[:bi]) +
		matchingChars(a[ai+size:], b[bi+size:])
}

func longestCommonSubstring(a, b []rune) (ai, bi, size int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}
	// lengths[j] holds the common-suffix length ending at a[i-1], b[j-1]
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > size {
					size = curr[j]
					ai = i - size
					bi = j - size
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
	}
	return ai, bi, size
}

func min1(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	return v
}
