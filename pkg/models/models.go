package models

import "fmt"

// Segment is a single caption cue after normalization. Offsets and
// durations are milliseconds from the start of the video.
type Segment struct {
	Text       string `json:"text"`
	OffsetMs   int64  `json:"offset"`
	DurationMs int64  `json:"duration"`
}

// EndMs is the moment the cue stops being shown.
func (s Segment) EndMs() int64 { return s.OffsetMs + s.DurationMs }

// SegmentRange is a Segment projected into the flattened transcript
// buffer. Ranges are produced in non-decreasing StartChar order and
// never overlap; exactly one separating character sits between them.
type SegmentRange struct {
	StartChar int
	EndChar   int
	OffsetMs  int64
	EndMs     int64
}

// Chunk is the unit of retrieval: an overlap-padded span of transcript
// text with its projected time window.
type Chunk struct {
	Text       string `json:"text"`
	Index      int    `json:"chunkIndex"`
	OffsetMs   int64  `json:"offset"`
	DurationMs int64  `json:"duration"`
	VideoID    string `json:"videoId"`
	VideoTitle string `json:"videoTitle,omitempty"`
}

// ID is the synthetic identifier a chunk keeps for the life of its
// namespace. Re-ingesting a video overwrites the same IDs.
func (c Chunk) ID() string { return fmt.Sprintf("%s-chunk-%d", c.VideoID, c.Index) }

// Match is a chunk returned from the vector index for one query, with
// a cosine-similarity-like score in [0,1]. Never persisted.
type Match struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
	Chunk Chunk   `json:"chunk"`
}

// RetrievalMetrics are the quantitative signals derived from the
// filtered match set, recomputed on every query.
type RetrievalMetrics struct {
	ChunkCount      int     `json:"chunkCount"`
	TotalWords      int     `json:"totalWords"`
	AvgScore        float64 `json:"avgScore"`
	MaxScore        float64 `json:"maxScore"`
	KeywordCoverage float64 `json:"keywordCoverage"`
}

type SummaryDepth string

const (
	DepthBrief   SummaryDepth = "brief"
	DepthInDepth SummaryDepth = "in_depth"
)

type SummaryStyle string

const (
	StyleBulletPoints  SummaryStyle = "bullet-points"
	StyleAcademic      SummaryStyle = "academic"
	StyleCasual        SummaryStyle = "casual"
	StyleRevisionNotes SummaryStyle = "revision-notes"
	StyleParagraph     SummaryStyle = "paragraph"
)

type SummaryRequest struct {
	URL               string       `json:"url"`
	Depth             SummaryDepth `json:"depth"`
	Style             SummaryStyle `json:"style"`
	IncludeTimestamps bool         `json:"includeTimestamps"`
}

type QueryRequest struct {
	Query   string `json:"query"`
	VideoID string `json:"videoId"`
}

// QueryResponse is the JSON body for terminal query outcomes; answers
// that stream never produce one.
type QueryResponse struct {
	Answer   string        `json:"answer"`
	Metadata QueryMetadata `json:"metadata"`
}

type QueryMetadata struct {
	ContextQuality string            `json:"contextQuality"`
	Strategy       string            `json:"strategy"`
	Metrics        *RetrievalMetrics `json:"metrics,omitempty"`
	Suggestion     string            `json:"suggestion,omitempty"`
}
