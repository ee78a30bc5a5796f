package sync

import (
	"strings"

	"github.com/rohit-purandare/shelfbridge/internal/models"
)

// Confidence buckets for a scored candidate.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	ConfidenceNone   Confidence = "none"
)

// Scoring weights and thresholds. Title and author similarity dominate;
// series, year and popularity only break ties between plausible candidates.
const (
	titleWeight      = 35.0
	authorWeight     = 25.0
	yearWeight       = 10.0
	seriesBonus      = 5.0
	popularityWeight = 10.0
	popularityCap    = 5000

	// shortTitleFloor: titles with fewer normalized characters than this are
	// penalized to reduce false positives on common short titles.
	shortTitleFloor   = 4
	shortTitlePenalty = 15.0

	// authorMismatchPenalty applies when the title matches almost exactly but
	// the author is clearly someone else.
	authorMismatchPenalty = 25.0

	confidenceHighFloor   = 75.0
	confidenceMediumFloor = 60.0
)

// ScoreTarget is what the scorer compares a candidate against: the library
// item's metadata.
type ScoreTarget struct {
	Title  string
	Author string
	Series string
	Year   int
}

// MatchScore is the result of scoring one candidate, a value in [0,100] plus
// its confidence bucket.
type MatchScore struct {
	Score       float64
	Confidence  Confidence
	IsBookMatch bool
}

// ScoreCandidate ranks a candidate search result against the target. A nil
// candidate scores zero with confidence "none".
func ScoreCandidate(candidate *models.BookSearchResult, target ScoreTarget) MatchScore {
	if candidate == nil {
		return MatchScore{Score: 0, Confidence: ConfidenceNone, IsBookMatch: false}
	}

	titleSim := titleSimilarity(candidate.Title, target.Title)
	authorSim := textSimilarity(candidate.Author, target.Author)

	score := titleWeight*titleSim + authorWeight*authorSim

	if target.Year > 0 && candidate.Year > 0 {
		score += yearWeight * yearProximity(candidate.Year, target.Year)
	}

	if target.Series != "" && candidate.Series != "" &&
		normalizeText(target.Series) == normalizeText(candidate.Series) {
		score += seriesBonus
	}

	if candidate.UsersCount > 0 {
		users := candidate.UsersCount
		if users > popularityCap {
			users = popularityCap
		}
		score += popularityWeight * float64(users) / float64(popularityCap)
	}

	if len(normalizeText(target.Title)) < shortTitleFloor {
		score -= shortTitlePenalty
	}
	if titleSim >= 0.9 && authorSim < 0.3 && target.Author != "" && candidate.Author != "" {
		score -= authorMismatchPenalty
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return MatchScore{
		Score:       score,
		Confidence:  bucketFor(score),
		IsBookMatch: true,
	}
}

func bucketFor(score float64) Confidence {
	switch {
	case score >= confidenceHighFloor:
		return ConfidenceHigh
	case score >= confidenceMediumFloor:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// yearProximity is 1.0 for an exact year and decays with distance.
func yearProximity(a, b int) float64 {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	p := 1.0 - 0.2*float64(diff)
	if p < 0 {
		return 0
	}
	return p
}

// titleSimilarity compares titles after dropping leading articles and any
// subtitle following a colon.
func titleSimilarity(a, b string) float64 {
	return textSimilarity(stripTitleNoise(a), stripTitleNoise(b))
}

func stripTitleNoise(s string) string {
	if i := strings.IndexByte(s, ':'); i > 0 {
		s = s[:i]
	}
	lower := strings.ToLower(strings.TrimSpace(s))
	for _, article := range []string{"the ", "a ", "an "} {
		if strings.HasPrefix(lower, article) {
			return lower[len(article):]
		}
	}
	return lower
}

// textSimilarity is a symmetric similarity in [0,1]: exact normalized match,
// containment, then token-set overlap.
func textSimilarity(a, b string) float64 {
	na, nb := normalizeText(a), normalizeText(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return 0.9
	}

	ta, tb := tokenSet(na), tokenSet(nb)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

// normalizeText lower-cases and strips everything outside [a-z0-9 ],
// collapsing runs of removed characters into single spaces.
func normalizeText(s string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		set[tok] = struct{}{}
	}
	return set
}
