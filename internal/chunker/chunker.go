// Package chunker splits a transcript into overlapping, embedding-sized
// chunks and projects caption timing onto each one.
package chunker

import (
	"errors"
	"strings"

	"github.com/scrybe-app/scrybe/pkg/models"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
)

// separators in preference order: paragraph breaks, then lines, then
// spaces. A window with none of these gets a hard character cut.
var separators = []string{"\n\n", "\n", " "}

type Chunker struct {
	size    int
	overlap int
}

func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = defaultChunkOverlap
		if overlap >= size {
			overlap = size / 5
		}
	}
	return &Chunker{size: size, overlap: overlap}
}

// span is a half-open character range into the flattened buffer. The
// splitter works entirely in spans so a chunk's position is known
// exactly; it is never re-located by text search, which would collide
// on repeated phrases.
type span struct {
	start, end int
}

// Flatten joins segment texts with single separating spaces and records
// each segment's character range: startChar of segment i is endChar of
// segment i-1 plus one.
func Flatten(segments []models.Segment) (string, []models.SegmentRange) {
	var (
		b      strings.Builder
		ranges = make([]models.SegmentRange, 0, len(segments))
		cursor int
	)
	for i, seg := range segments {
		if i > 0 {
			b.WriteByte(' ')
			cursor++
		}
		start := cursor
		b.WriteString(seg.Text)
		cursor += len(seg.Text)
		ranges = append(ranges, models.SegmentRange{
			StartChar: start,
			EndChar:   cursor,
			OffsetMs:  seg.OffsetMs,
			EndMs:     seg.EndMs(),
		})
	}
	return b.String(), ranges
}

// Chunk flattens the segments, splits the buffer, and returns chunks
// with projected time windows and stable synthetic IDs.
func (c *Chunker) Chunk(segments []models.Segment, videoID, videoTitle string) ([]models.Chunk, error) {
	if len(segments) == 0 {
		return nil, errors.New("no segments to chunk")
	}

	buf, ranges := Flatten(segments)
	spans := c.split(buf, span{0, len(buf)}, separators)

	chunks := make([]models.Chunk, 0, len(spans))
	for i, sp := range spans {
		offsetMs, durationMs := project(ranges, sp)
		chunks = append(chunks, models.Chunk{
			Text:       buf[sp.start:sp.end],
			Index:      i,
			OffsetMs:   offsetMs,
			DurationMs: durationMs,
			VideoID:    videoID,
			VideoTitle: videoTitle,
		})
	}
	return chunks, nil
}

// split recursively divides sp into spans no longer than c.size,
// preferring the earliest separator in seps that occurs in the window.
func (c *Chunker) split(buf string, sp span, seps []string) []span {
	if sp.end-sp.start <= c.size {
		if sp.end == sp.start {
			return nil
		}
		return []span{sp}
	}

	sep, rest := pickSeparator(buf[sp.start:sp.end], seps)
	if sep == "" {
		return c.hardCut(sp)
	}

	parts := cutAt(buf, sp, sep)
	return c.merge(buf, parts, sep, rest)
}

// merge packs adjacent parts into chunks up to c.size, carrying
// c.overlap characters across each boundary. Oversized parts recurse on
// the remaining separators.
func (c *Chunker) merge(buf string, parts []span, sep string, rest []string) []span {
	var out []span
	var win []span

	flush := func() {
		if len(win) > 0 {
			out = append(out, span{win[0].start, win[len(win)-1].end})
		}
	}
	winLen := func() int {
		if len(win) == 0 {
			return 0
		}
		return win[len(win)-1].end - win[0].start
	}

	for _, p := range parts {
		if p.end-p.start > c.size {
			flush()
			win = nil
			out = append(out, c.split(buf, p, rest)...)
			continue
		}

		if len(win) > 0 && p.end-win[0].start > c.size {
			flush()
			// keep a tail of at most c.overlap characters, and always
			// make room for p
			for len(win) > 0 && (winLen() > c.overlap || p.end-win[0].start > c.size) {
				win = win[1:]
			}
		}
		win = append(win, p)
	}
	flush()
	return out
}

// hardCut chops a window with no separators into fixed-size pieces with
// the configured overlap.
func (c *Chunker) hardCut(sp span) []span {
	step := c.size - c.overlap
	if step <= 0 {
		step = c.size
	}
	var out []span
	for s := sp.start; s < sp.end; s += step {
		e := min(s+c.size, sp.end)
		out = append(out, span{s, e})
		if e == sp.end {
			break
		}
	}
	return out
}

// pickSeparator returns the first separator present in text and the
// lower-preference separators left for recursion. Empty string means
// hard cut.
func pickSeparator(text string, seps []string) (string, []string) {
	for i, sep := range seps {
		if strings.Contains(text, sep) {
			return sep, seps[i+1:]
		}
	}
	return "", nil
}

// cutAt splits sp at every occurrence of sep. Parts exclude the
// separator itself; empty parts from adjacent separators are dropped.
func cutAt(buf string, sp span, sep string) []span {
	var parts []span
	start := sp.start
	for start < sp.end {
		i := strings.Index(buf[start:sp.end], sep)
		if i < 0 {
			break
		}
		if i > 0 {
			parts = append(parts, span{start, start + i})
		}
		start += i + len(sep)
	}
	if start < sp.end {
		parts = append(parts, span{start, sp.end})
	}
	return parts
}

// project aggregates the time window of every segment whose character
// range overlaps the chunk's span (open-interval overlap). The result
// is a superset bound: chunk start is the earliest overlapping
// segment's offset, chunk end the latest segment's end.
func project(ranges []models.SegmentRange, sp span) (offsetMs, durationMs int64) {
	var (
		minOff int64
		maxEnd int64
		found  bool
	)
	for _, r := range ranges {
		if sp.start >= r.EndChar {
			continue
		}
		if sp.end <= r.StartChar {
			break
		}
		if !found {
			minOff, maxEnd = r.OffsetMs, r.EndMs
			found = true
			continue
		}
		if r.OffsetMs < minOff {
			minOff = r.OffsetMs
		}
		if r.EndMs > maxEnd {
			maxEnd = r.EndMs
		}
	}
	if !found {
		return 0, 0
	}
	return minOff, maxEnd - minOff
}
