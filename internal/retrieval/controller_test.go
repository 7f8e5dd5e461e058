package retrieval

import (
	"math"
	"strings"
	"testing"

	"github.com/scrybe-app/scrybe/internal/config"
	"github.com/scrybe-app/scrybe/pkg/models"
)

func testRetrievalConfig() config.RetrievalSpecification {
	return config.RetrievalSpecification{
		HighK:           10,
		MediumK:         7,
		DefaultK:        5,
		LongQueryK:      10,
		LongQueryTokens: 20,

		HighScoreCut:      0.7,
		MidScoreCut:       0.5,
		LowScoreCut:       0.3,
		StrictThreshold:   0.6,
		ModerateThreshold: 0.4,
		LenientThreshold:  0.3,
		MinimalThreshold:  0.2,

		BriefPct:    0.08,
		BriefMinK:   6,
		BriefMaxK:   20,
		InDepthPct:  0.15,
		InDepthMinK: 10,
		InDepthMaxK: 35,
	}
}

func TestKForQuery(t *testing.T) {
	c := NewController(testRetrievalConfig())

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"empty", "", 0},
		{"whitespace only", "   ", 0},
		{"simple", "who won the race", 5},
		{"high complexity", "explain the main argument", 10},
		{"high beats medium", "explain what happened", 10},
		{"medium complexity", "what did they build", 7},
		{"long query overrides", "is this one of those videos where the presenter spends the whole time talking about a single tiny detail nobody cares much for", 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.KForQuery(tt.query); got != tt.want {
				t.Errorf("KForQuery(%q) = %d, want %d", tt.query, got, tt.want)
			}
		})
	}
}

func TestKForQueryMonotonicOnComplexity(t *testing.T) {
	c := NewController(testRetrievalConfig())
	simple := c.KForQuery("who won")
	medium := c.KForQuery("what did they say")
	high := c.KForQuery("explain the argument")

	if !(simple <= medium && medium <= high) {
		t.Errorf("K not monotonic: simple=%d medium=%d high=%d", simple, medium, high)
	}
}

func TestKForSummary(t *testing.T) {
	c := NewController(testRetrievalConfig())

	tests := []struct {
		name  string
		total int
		depth models.SummaryDepth
		want  int
	}{
		{"brief short video clamps to min", 10, models.DepthBrief, 6},
		{"brief scales", 150, models.DepthBrief, 12},
		{"brief long video clamps to max", 1000, models.DepthBrief, 20},
		{"in depth short video clamps to min", 10, models.DepthInDepth, 10},
		{"in depth scales", 150, models.DepthInDepth, 23},
		{"in depth long video clamps to max", 1000, models.DepthInDepth, 35},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.KForSummary(tt.total, tt.depth); got != tt.want {
				t.Errorf("KForSummary(%d, %s) = %d, want %d", tt.total, tt.depth, got, tt.want)
			}
		})
	}
}

func TestThreshold(t *testing.T) {
	c := NewController(testRetrievalConfig())

	tests := []struct {
		maxScore float64
		want     float64
	}{
		{0.9, 0.6},
		{0.71, 0.6},
		{0.7, 0.4}, // boundary: high tier is strictly greater than
		{0.5, 0.4},
		{0.49, 0.3},
		{0.3, 0.3},
		{0.29, 0.2},
		{0.0, 0.2},
	}

	for _, tt := range tests {
		if got := c.Threshold(tt.maxScore); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Threshold(%v) = %v, want %v", tt.maxScore, got, tt.want)
		}
	}
}

func match(text string, score float64, offsetMs int64) models.Match {
	return models.Match{
		Score: score,
		Chunk: models.Chunk{Text: text, OffsetMs: offsetMs},
	}
}

func TestFilterAdaptsToScoreDistribution(t *testing.T) {
	c := NewController(testRetrievalConfig())

	// strong batch: 0.6 cutoff drops the weak tail
	strong := []models.Match{
		match("a", 0.9, 0),
		match("b", 0.65, 0),
		match("c", 0.4, 0),
	}
	if got := c.Filter(strong); len(got) != 2 {
		t.Errorf("strong batch kept %d matches, want 2", len(got))
	}

	// weak batch: lenient cutoff keeps what little there is
	weak := []models.Match{
		match("a", 0.28, 0),
		match("b", 0.22, 0),
		match("c", 0.1, 0),
	}
	if got := c.Filter(weak); len(got) != 2 {
		t.Errorf("weak batch kept %d matches, want 2", len(got))
	}

	if got := c.Filter(nil); got != nil {
		t.Errorf("empty batch returned %v, want nil", got)
	}
}

func TestSortChronological(t *testing.T) {
	matches := []models.Match{
		match("late", 0.9, 300000),
		match("early", 0.5, 10000),
		match("middle", 0.7, 120000),
	}
	SortChronological(matches)

	var order []string
	for _, m := range matches {
		order = append(order, m.Chunk.Text)
	}
	if got := strings.Join(order, ","); got != "early,middle,late" {
		t.Errorf("chronological order = %s", got)
	}
}

func TestBuildContext(t *testing.T) {
	matches := []models.Match{
		match("first  chunk\nwith   noise", 0.9, 65000),
		match("opening chunk", 0.8, 0),
	}
	got := BuildContext(matches)

	want := "first chunk with noise (01:05)\n\nopening chunk"
	if got != want {
		t.Errorf("BuildContext = %q, want %q", got, want)
	}
}

func TestTimestamp(t *testing.T) {
	tests := []struct {
		offsetMs int64
		want     string
	}{
		{0, "(00:00)"},
		{5000, "(00:05)"},
		{65000, "(01:05)"},
		{3725000, "(62:05)"},
	}
	for _, tt := range tests {
		if got := Timestamp(tt.offsetMs); got != tt.want {
			t.Errorf("Timestamp(%d) = %s, want %s", tt.offsetMs, got, tt.want)
		}
	}
}

func TestExtractKeywords(t *testing.T) {
	got := ExtractKeywords("What is the main point of the video?!")
	want := []string{"main", "point", "video"}

	if len(got) != len(want) {
		t.Fatalf("ExtractKeywords = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("keyword %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestKeywordCoverage(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		context string
		want    float64
	}{
		{"full coverage", "neural networks training", "training deep neural networks takes time", 1.0},
		{"partial coverage", "neural networks pricing", "training deep neural networks takes time", 2.0 / 3.0},
		{"no content words", "is it the", "anything at all", 0.5},
		{"no overlap", "quantum chemistry", "cooking pasta at home", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KeywordCoverage(tt.query, tt.context); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("KeywordCoverage = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMetrics(t *testing.T) {
	matches := []models.Match{
		match("one two three four", 0.8, 0),
		match("five six", 0.6, 5000),
	}
	context := BuildContext(matches)
	m := Metrics("three five", matches, context)

	if m.ChunkCount != 2 {
		t.Errorf("ChunkCount = %d, want 2", m.ChunkCount)
	}
	if m.TotalWords != 6 {
		t.Errorf("TotalWords = %d, want 6", m.TotalWords)
	}
	if math.Abs(m.AvgScore-0.7) > 1e-9 {
		t.Errorf("AvgScore = %v, want 0.7", m.AvgScore)
	}
	if math.Abs(m.MaxScore-0.8) > 1e-9 {
		t.Errorf("MaxScore = %v, want 0.8", m.MaxScore)
	}
	if math.Abs(m.KeywordCoverage-1.0) > 1e-9 {
		t.Errorf("KeywordCoverage = %v, want 1.0", m.KeywordCoverage)
	}
}
