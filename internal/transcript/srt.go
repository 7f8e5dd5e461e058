package transcript

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/scrybe-app/scrybe/pkg/models"
)

// ParseSRT parses SubRip caption text into raw segments, one per cue.
// Multi-line cue text is joined with spaces. The result still needs
// Normalize before chunking.
//
//	1
//	00:00:00,000 --> 00:00:01,830
//	I'm happy to
//	have you here today.
func ParseSRT(text string) ([]models.Segment, error) {
	var (
		segments  []models.Segment
		startMs   int64
		endMs     int64
		haveTimes bool
		cueText   strings.Builder
	)

	flush := func() {
		if haveTimes && cueText.Len() > 0 {
			segments = append(segments, models.Segment{
				Text:       cueText.String(),
				OffsetMs:   startMs,
				DurationMs: endMs - startMs,
			})
		}
		cueText.Reset()
		haveTimes = false
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)

		if line == "" {
			flush()
			continue
		}

		// Sequence numbers separate cues but carry no content.
		if isDigitOnly(line) && !haveTimes {
			continue
		}

		if strings.Contains(line, "-->") {
			parts := strings.SplitN(line, "-->", 2)
			s, err := parseSRTTime(strings.TrimSpace(parts[0]))
			if err != nil {
				return nil, fmt.Errorf("bad cue start %q: %w", parts[0], err)
			}
			e, err := parseSRTTime(strings.TrimSpace(parts[1]))
			if err != nil {
				return nil, fmt.Errorf("bad cue end %q: %w", parts[1], err)
			}
			startMs, endMs = s, e
			haveTimes = true
			continue
		}

		if cueText.Len() > 0 {
			cueText.WriteByte(' ')
		}
		cueText.WriteString(line)
	}
	flush()

	if len(segments) == 0 {
		return nil, ErrNotFound
	}
	return segments, nil
}

// parseSRTTime converts "HH:MM:SS,mmm" to milliseconds.
func parseSRTTime(s string) (int64, error) {
	s = strings.ReplaceAll(s, ",", ".")
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("expected HH:MM:SS,mmm")
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, err
	}
	sec, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, err
	}
	return int64(h)*3_600_000 + int64(m)*60_000 + int64(sec*1000), nil
}

// isDigitOnly checks if a string contains only digits.
func isDigitOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
