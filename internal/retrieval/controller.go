// Package retrieval sizes, filters, and orders similarity search
// results. K and the relevance threshold adapt to the query and to the
// score distribution of each batch of matches.
package retrieval

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/scrybe-app/scrybe/internal/config"
	"github.com/scrybe-app/scrybe/pkg/models"
)

// highComplexityKeywords signal explanation, comparison, enumeration,
// or summary intent; any hit pulls the largest K.
var highComplexityKeywords = []string{
	"explain", "analyze", "break down", "describe", "elaborate",
	"compare", "contrast", "difference", "similarities", "relationship",
	"all", "everything", "list", "multiple", "various", "every",
	"how", "why", "what causes", "process", "steps", "method",
	"summarize", "summarise", "overview", "summary", "recap", "main points",
	"complete", "full", "entire", "comprehensive", "thorough",
}

var mediumComplexityKeywords = []string{
	"what", "tell me", "give me", "show me", "examples", "instances", "cases",
}

// stopWords are dropped before keyword coverage is computed.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "has": {}, "he": {}, "in": {}, "is": {},
	"it": {}, "its": {}, "of": {}, "on": {}, "that": {}, "the": {}, "to": {},
	"was": {}, "were": {}, "will": {}, "with": {}, "about": {}, "can": {},
	"could": {}, "do": {}, "does": {}, "did": {}, "have": {}, "had": {},
	"how": {}, "i": {}, "if": {}, "into": {}, "may": {}, "might": {},
	"should": {}, "this": {}, "what": {}, "when": {}, "where": {},
	"which": {}, "who": {}, "why": {}, "would": {}, "you": {}, "your": {},
	"me": {}, "my": {}, "or": {}, "but": {},
}

var punctuation = regexp.MustCompile(`[^\w\s]`)

// Controller applies the adaptive retrieval rules.
type Controller struct {
	cfg config.RetrievalSpecification
}

func NewController(cfg config.RetrievalSpecification) *Controller {
	return &Controller{cfg: cfg}
}

// KForQuery sizes the retrieval set from the query's complexity cues.
// Zero means the query is unanswerable (empty or not a real question)
// and the caller should stop.
func (c *Controller) KForQuery(query string) int {
	if strings.TrimSpace(query) == "" {
		return 0
	}
	lower := strings.ToLower(query)

	k := c.cfg.DefaultK
	if containsAny(lower, highComplexityKeywords) {
		k = c.cfg.HighK
	} else if containsAny(lower, mediumComplexityKeywords) {
		k = c.cfg.MediumK
	}

	// long questions get the wide net no matter what they contain
	if len(strings.Split(query, " ")) > c.cfg.LongQueryTokens {
		k = c.cfg.LongQueryK
	}
	return k
}

// KForSummary scales K with the video's chunk count so short and long
// videos both get proportionate coverage.
func (c *Controller) KForSummary(totalChunks int, depth models.SummaryDepth) int {
	pct, minK, maxK := c.cfg.BriefPct, c.cfg.BriefMinK, c.cfg.BriefMaxK
	if depth == models.DepthInDepth {
		pct, minK, maxK = c.cfg.InDepthPct, c.cfg.InDepthMinK, c.cfg.InDepthMaxK
	}

	k := int(math.Ceil(float64(totalChunks) * pct))
	if k < minK {
		k = minK
	}
	if k > maxK {
		k = maxK
	}
	return k
}

// Threshold picks the relevance cutoff from the batch's best score:
// strong batches are filtered strictly, weak ones leniently, so some
// context survives either way.
func (c *Controller) Threshold(maxScore float64) float64 {
	switch {
	case maxScore > c.cfg.HighScoreCut:
		return c.cfg.StrictThreshold
	case maxScore >= c.cfg.MidScoreCut:
		return c.cfg.ModerateThreshold
	case maxScore >= c.cfg.LowScoreCut:
		return c.cfg.LenientThreshold
	default:
		return c.cfg.MinimalThreshold
	}
}

// Filter keeps matches at or above the adaptive threshold.
func (c *Controller) Filter(matches []models.Match) []models.Match {
	if len(matches) == 0 {
		return nil
	}
	threshold := c.Threshold(MaxScore(matches))

	kept := make([]models.Match, 0, len(matches))
	for _, m := range matches {
		if m.Score >= threshold {
			kept = append(kept, m)
		}
	}
	return kept
}

func MaxScore(matches []models.Match) float64 {
	var maxScore float64
	for _, m := range matches {
		if m.Score > maxScore {
			maxScore = m.Score
		}
	}
	return maxScore
}

// SortChronological orders matches by video offset so the assembled
// context reads in narrative order rather than relevance order.
func SortChronological(matches []models.Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Chunk.OffsetMs < matches[j].Chunk.OffsetMs
	})
}

// BuildContext renders matches as a prompt context block: whitespace
// collapsed, each chunk suffixed with its start timestamp, blank line
// between chunks.
func BuildContext(matches []models.Match) string {
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		text := strings.Join(strings.Fields(m.Chunk.Text), " ")
		if m.Chunk.OffsetMs > 0 {
			parts = append(parts, fmt.Sprintf("%s %s", text, Timestamp(m.Chunk.OffsetMs)))
		} else {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Timestamp formats a millisecond offset as "(mm:ss)".
func Timestamp(offsetMs int64) string {
	totalSeconds := offsetMs / 1000
	return fmt.Sprintf("(%02d:%02d)", totalSeconds/60, totalSeconds%60)
}

// ExtractKeywords lowercases the query, strips punctuation, and drops
// stop words and words of two characters or fewer.
func ExtractKeywords(query string) []string {
	cleaned := punctuation.ReplaceAllString(strings.ToLower(query), "")

	var keywords []string
	for _, word := range strings.Fields(cleaned) {
		if len(word) <= 2 {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		keywords = append(keywords, word)
	}
	return keywords
}

// KeywordCoverage is the fraction of query keywords appearing in the
// context. A query with no content words scores a neutral 0.5.
func KeywordCoverage(query, context string) float64 {
	keywords := ExtractKeywords(query)
	if len(keywords) == 0 {
		return 0.5
	}

	contextLower := strings.ToLower(context)
	matched := 0
	for _, kw := range keywords {
		if strings.Contains(contextLower, kw) {
			matched++
		}
	}
	return float64(matched) / float64(len(keywords))
}

// Metrics summarises a filtered, sorted batch for the sufficiency
// classifier.
func Metrics(query string, matches []models.Match, context string) models.RetrievalMetrics {
	var totalWords int
	var totalScore float64
	for _, m := range matches {
		totalWords += len(strings.Fields(m.Chunk.Text))
		totalScore += m.Score
	}

	metrics := models.RetrievalMetrics{
		ChunkCount:      len(matches),
		TotalWords:      totalWords,
		MaxScore:        MaxScore(matches),
		KeywordCoverage: KeywordCoverage(query, context),
	}
	if len(matches) > 0 {
		metrics.AvgScore = totalScore / float64(len(matches))
	}
	return metrics
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
