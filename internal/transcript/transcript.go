// Package transcript turns raw caption data into clean, timed segments.
package transcript

import (
	"errors"
	"html"
	"regexp"
	"strings"

	"github.com/scrybe-app/scrybe/pkg/models"
)

// ErrNotFound is returned when a video has no usable transcript. The
// pipeline must stop here; there is nothing to chunk.
var ErrNotFound = errors.New("transcript not found")

// ErrInvalidURL is returned when no video ID can be extracted from the
// given URL.
var ErrInvalidURL = errors.New("invalid video URL")

// decodePasses bounds DeepDecode. Two passes neutralize the double
// encoding seen in the wild (&amp;amp;) without looping on clean text.
const decodePasses = 2

// DeepDecode undoes repeated HTML-entity encoding. Decoding stops early
// once it reaches a fixed point, so already-clean text passes through
// unchanged and DeepDecode is idempotent.
func DeepDecode(s string) string {
	prev := s
	for i := 0; i < decodePasses; i++ {
		next := html.UnescapeString(prev)
		if next == prev {
			break
		}
		prev = next
	}
	return prev
}

// Normalize decodes and cleans raw caption segments. Segments that end
// up empty after cleaning are dropped. An empty transcript fails closed
// with ErrNotFound.
func Normalize(raw []models.Segment) ([]models.Segment, error) {
	if len(raw) == 0 {
		return nil, ErrNotFound
	}

	out := make([]models.Segment, 0, len(raw))
	for _, seg := range raw {
		text := collapseWhitespace(DeepDecode(seg.Text))
		if text == "" {
			continue
		}
		out = append(out, models.Segment{
			Text:       text,
			OffsetMs:   seg.OffsetMs,
			DurationMs: seg.DurationMs,
		})
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// collapseWhitespace trims and squashes internal runs of whitespace to
// single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/)([^&\n?#]+)`),
	regexp.MustCompile(`^([a-zA-Z0-9_-]{11})$`), // bare video ID
}

// ExtractVideoID pulls the video identifier out of the common YouTube
// URL shapes, or accepts a bare 11-character ID.
func ExtractVideoID(url string) (string, error) {
	for _, p := range videoIDPatterns {
		if m := p.FindStringSubmatch(url); len(m) > 1 && m[1] != "" {
			return m[1], nil
		}
	}
	return "", ErrInvalidURL
}
