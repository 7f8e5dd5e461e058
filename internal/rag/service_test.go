package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/scrybe-app/scrybe/internal/config"
	"github.com/scrybe-app/scrybe/pkg/models"
)

// fakeClient is a hand-rolled ai.Client double.
type fakeClient struct {
	mu              sync.Mutex
	invokeResponse  string
	invokeErr       error
	invoked         bool
	streamFragments []string
	streamErr       error
	embedErr        error
}

func (f *fakeClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (f *fakeClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (f *fakeClient) Invoke(ctx context.Context, prompt string, temperature float32) (string, error) {
	f.mu.Lock()
	f.invoked = true
	f.mu.Unlock()
	return f.invokeResponse, f.invokeErr
}

func (f *fakeClient) Stream(ctx context.Context, prompt string, temperature float32, fn func(string) error) error {
	for _, fragment := range f.streamFragments {
		if err := fn(fragment); err != nil {
			return err
		}
	}
	return f.streamErr
}

func (f *fakeClient) Dim() int { return 3 }

// fakeStore records upserts and serves canned matches.
type fakeStore struct {
	mu          sync.Mutex
	matches     []models.Match
	queryErr    error
	upsertCalls int
	upserted    map[string][]models.Chunk
	lastTopK    int
}

func newFakeStore(matches []models.Match) *fakeStore {
	return &fakeStore{matches: matches, upserted: make(map[string][]models.Chunk)}
}

func (f *fakeStore) Upsert(ctx context.Context, namespace string, chunks []models.Chunk, vectors [][]float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertCalls++
	f.upserted[namespace] = append(f.upserted[namespace], chunks...)
	return nil
}

func (f *fakeStore) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]models.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastTopK = topK
	return f.matches, f.queryErr
}

func (f *fakeStore) Count(ctx context.Context, namespace string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.upserted[namespace]), nil
}

func (f *fakeStore) Close() error { return nil }

// fakeFetcher returns canned segments.
type fakeFetcher struct {
	segments []models.Segment
	title    string
	err      error
}

func (f *fakeFetcher) Fetch(ctx context.Context, videoURL string) ([]models.Segment, string, error) {
	return f.segments, f.title, f.err
}

func testConfig() config.Specification {
	return config.Specification{
		Chunking: config.ChunkingSpecification{ChunkSize: 200, ChunkOverlap: 40, BatchSize: 2},
		Retrieval: config.RetrievalSpecification{
			HighK: 10, MediumK: 7, DefaultK: 5, LongQueryK: 10, LongQueryTokens: 20,
			HighScoreCut: 0.7, MidScoreCut: 0.5, LowScoreCut: 0.3,
			StrictThreshold: 0.6, ModerateThreshold: 0.4, LenientThreshold: 0.3, MinimalThreshold: 0.2,
			BriefPct: 0.08, BriefMinK: 6, BriefMaxK: 20,
			InDepthPct: 0.15, InDepthMinK: 10, InDepthMaxK: 35,
		},
		Sufficiency: config.SufficiencySpecification{
			MinChunks: 2, MinWords: 100, MinAvgScore: 0.2, MinCoverage: 0.2,
			StrongChunks: 5, StrongWords: 300, StrongAvgScore: 0.65,
			StrongCoverage: 0.7, StrongMaxScore: 0.7,
		},
	}
}

func newTestService(client *fakeClient, st *fakeStore, fetcher *fakeFetcher) *Service {
	if fetcher == nil {
		fetcher = &fakeFetcher{}
	}
	return NewService(client, st, fetcher, testConfig())
}

func strongMatches(n int, score float64) []models.Match {
	matches := make([]models.Match, n)
	for i := 0; i < n; i++ {
		matches[i] = models.Match{
			ID:    fmt.Sprintf("vid-chunk-%d", i),
			Score: score,
			Chunk: models.Chunk{
				Text:     strings.TrimSpace(strings.Repeat("neural networks training data word ", 14)),
				Index:    i,
				OffsetMs: int64(n-i) * 10000, // reversed so sorting is observable
				VideoID:  "vid",
			},
		}
	}
	return matches
}

func TestAnswerInvalidQuery(t *testing.T) {
	svc := newTestService(&fakeClient{}, newFakeStore(nil), nil)

	answer, err := svc.Answer(context.Background(), "   ", "vid")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer.Terminal == nil || answer.Terminal.Answer != "Invalid query" {
		t.Fatalf("expected invalid-query terminal, got %+v", answer)
	}
	if answer.Terminal.Metadata.Strategy != "error" {
		t.Errorf("strategy = %s", answer.Terminal.Metadata.Strategy)
	}
}

func TestAnswerNoMatches(t *testing.T) {
	svc := newTestService(&fakeClient{}, newFakeStore(nil), nil)

	answer, err := svc.Answer(context.Background(), "neural networks", "vid")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer.Terminal == nil || answer.Terminal.Answer != "No relevant chunks found" {
		t.Fatalf("expected no-matches terminal, got %+v", answer)
	}
	if answer.Terminal.Metadata.Suggestion == "" {
		t.Error("terminal response should carry a suggestion")
	}
}

func TestAnswerNothingAboveThreshold(t *testing.T) {
	// a lone 0.15 match sits below even the minimal 0.2 cutoff
	st := newFakeStore([]models.Match{{Score: 0.15, Chunk: models.Chunk{Text: "only"}}})
	svc := newTestService(&fakeClient{}, st, nil)

	answer, err := svc.Answer(context.Background(), "neural networks", "vid")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer.Terminal == nil {
		t.Fatal("expected terminal response")
	}
	if !strings.Contains(answer.Terminal.Answer, "couldn't find any relevant information") {
		t.Errorf("answer = %s", answer.Terminal.Answer)
	}
}

func TestAnswerSufficientStreamsStrict(t *testing.T) {
	client := &fakeClient{}
	st := newFakeStore(strongMatches(6, 0.8))
	svc := newTestService(client, st, nil)

	answer, err := svc.Answer(context.Background(), "neural networks training", "vid")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer.Terminal != nil {
		t.Fatalf("expected a streamable answer, got terminal %+v", answer.Terminal)
	}
	if answer.Strategy != "strict_rag" || answer.Quality != "sufficient" {
		t.Errorf("strategy/quality = %s/%s", answer.Strategy, answer.Quality)
	}
	if !strings.Contains(answer.Prompt, "Use ONLY the following context") {
		t.Error("sufficient verdict should build the strict prompt")
	}
	if client.invoked {
		t.Error("clear sufficient case must not consult the arbiter")
	}
	if st.lastTopK != 5 {
		t.Errorf("topK = %d, want default 5", st.lastTopK)
	}
}

func TestAnswerInsufficientMetrics(t *testing.T) {
	// two chunks of ten words fail the word-count gate
	matches := []models.Match{
		{Score: 0.8, Chunk: models.Chunk{Text: "one two three four five six seven eight nine ten"}},
		{Score: 0.7, Chunk: models.Chunk{Text: "one two three four five six seven eight nine ten"}},
	}
	svc := newTestService(&fakeClient{}, newFakeStore(matches), nil)

	answer, err := svc.Answer(context.Background(), "one two", "vid")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer.Terminal == nil {
		t.Fatal("expected terminal response")
	}
	if !strings.Contains(answer.Terminal.Answer, "found limited detail on this topic") {
		t.Errorf("answer = %s", answer.Terminal.Answer)
	}
	if answer.Terminal.Metadata.Metrics == nil || answer.Terminal.Metadata.Metrics.ChunkCount != 2 {
		t.Errorf("metrics = %+v", answer.Terminal.Metadata.Metrics)
	}
	if !strings.Contains(answer.Terminal.Metadata.Suggestion, "touches on this briefly") {
		t.Errorf("suggestion = %s", answer.Terminal.Metadata.Suggestion)
	}
}

func TestAnswerAmbiguousHybrid(t *testing.T) {
	client := &fakeClient{
		invokeResponse: `{"sufficient": false, "coverage": 40, "depth": "shallow", "reasoning": "partial"}`,
	}
	// three mid-score chunks land between the gates
	svc := newTestService(client, newFakeStore(strongMatches(3, 0.5)), nil)

	answer, err := svc.Answer(context.Background(), "neural networks training", "vid")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer.Terminal != nil {
		t.Fatalf("expected a streamable answer, got terminal %+v", answer.Terminal)
	}
	if answer.Strategy != "hybrid" || answer.Quality != "ambiguous" {
		t.Errorf("strategy/quality = %s/%s", answer.Strategy, answer.Quality)
	}
	if !strings.Contains(answer.Prompt, "You can use external knowledge") {
		t.Error("hybrid verdict should build the hybrid prompt")
	}
	if !client.invoked {
		t.Error("ambiguous case must consult the arbiter")
	}
}

func TestAnswerAmbiguousResolvedSufficient(t *testing.T) {
	client := &fakeClient{
		invokeResponse: `{"sufficient": true, "coverage": 80, "depth": "moderate", "reasoning": "fine"}`,
	}
	svc := newTestService(client, newFakeStore(strongMatches(3, 0.5)), nil)

	answer, err := svc.Answer(context.Background(), "neural networks training", "vid")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer.Strategy != "strict_rag" || answer.Quality != "ambiguous" {
		t.Errorf("strategy/quality = %s/%s", answer.Strategy, answer.Quality)
	}
}

func TestAnswerContextIsChronological(t *testing.T) {
	matches := strongMatches(6, 0.8)
	svc := newTestService(&fakeClient{}, newFakeStore(matches), nil)

	answer, err := svc.Answer(context.Background(), "neural networks training", "vid")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// offsets were reversed in strongMatches; the prompt must carry
	// them in ascending order
	first := strings.Index(answer.Prompt, "(00:10)")
	last := strings.Index(answer.Prompt, "(01:00)")
	if first < 0 || last < 0 || first > last {
		t.Errorf("context not chronological: first=%d last=%d", first, last)
	}
}

func TestAnswerEmbedFailure(t *testing.T) {
	svc := newTestService(&fakeClient{embedErr: errors.New("boom")}, newFakeStore(nil), nil)

	if _, err := svc.Answer(context.Background(), "neural networks", "vid"); err == nil {
		t.Fatal("expected embedding failure to propagate")
	}
}

func TestIngestChunksAndBatches(t *testing.T) {
	var segments []models.Segment
	for i := 0; i < 40; i++ {
		segments = append(segments, models.Segment{
			Text:       strings.TrimSpace(strings.Repeat("caption words here ", 5)),
			OffsetMs:   int64(i) * 2000,
			DurationMs: 2000,
		})
	}
	st := newFakeStore(nil)
	fetcher := &fakeFetcher{segments: segments, title: "A Talk"}
	svc := newTestService(&fakeClient{}, st, fetcher)

	videoID, title, count, err := svc.Ingest(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if videoID != "dQw4w9WgXcQ" || title != "A Talk" {
		t.Errorf("videoID=%s title=%s", videoID, title)
	}
	if count < 2 {
		t.Fatalf("chunk count = %d, want several", count)
	}

	stored := st.upserted["youtube-dQw4w9WgXcQ"]
	if len(stored) != count {
		t.Errorf("stored %d chunks, reported %d", len(stored), count)
	}
	// batch size 2 forces multiple upsert calls
	wantCalls := (count + 1) / 2
	if st.upsertCalls != wantCalls {
		t.Errorf("upsert calls = %d, want %d", st.upsertCalls, wantCalls)
	}
	for _, chunk := range stored {
		if chunk.VideoID != "dQw4w9WgXcQ" || chunk.VideoTitle != "A Talk" {
			t.Errorf("chunk metadata not carried: %+v", chunk)
			break
		}
	}
}

func TestIngestInvalidURL(t *testing.T) {
	svc := newTestService(&fakeClient{}, newFakeStore(nil), &fakeFetcher{})

	if _, _, _, err := svc.Ingest(context.Background(), "https://example.com/notyoutube"); err == nil {
		t.Fatal("expected invalid URL error")
	}
}

func TestPrepareSummary(t *testing.T) {
	st := newFakeStore(strongMatches(6, 0.8))
	fetcher := &fakeFetcher{
		segments: []models.Segment{{Text: strings.Repeat("talk content ", 100), OffsetMs: 0, DurationMs: 60000}},
		title:    "Deep Dive",
	}
	svc := newTestService(&fakeClient{}, st, fetcher)

	summary, err := svc.PrepareSummary(context.Background(), models.SummaryRequest{
		URL:               "https://youtu.be/dQw4w9WgXcQ",
		Depth:             models.DepthBrief,
		Style:             models.StyleBulletPoints,
		IncludeTimestamps: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.VideoID != "dQw4w9WgXcQ" {
		t.Errorf("videoID = %s", summary.VideoID)
	}
	if !strings.Contains(summary.Prompt, "Deep Dive") {
		t.Error("summary prompt should name the video title")
	}
	if !strings.Contains(summary.Prompt, "(00:") {
		t.Error("includeTimestamps should surface timestamps in the notes")
	}
	// brief depth on a short video clamps K to the minimum
	if st.lastTopK != 6 {
		t.Errorf("topK = %d, want 6", st.lastTopK)
	}
}

func TestPrepareSummaryOmitsTimestampsWhenDisabled(t *testing.T) {
	st := newFakeStore(strongMatches(3, 0.8))
	fetcher := &fakeFetcher{
		segments: []models.Segment{{Text: strings.Repeat("talk content ", 50), OffsetMs: 0, DurationMs: 60000}},
		title:    "Deep Dive",
	}
	svc := newTestService(&fakeClient{}, st, fetcher)

	summary, err := svc.PrepareSummary(context.Background(), models.SummaryRequest{
		URL:   "https://youtu.be/dQw4w9WgXcQ",
		Depth: models.DepthBrief,
		Style: models.StyleParagraph,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(summary.Prompt, "(00:10)") {
		t.Error("notes should not carry timestamps when disabled")
	}
}
