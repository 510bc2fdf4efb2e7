package captions

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Cue is a single caption entry from a caption track: fractional start/end
// times in seconds, the original display stamps, and the raw text (possibly
// multi-line).
type Cue struct {
	Start      float64
	End        float64
	StartStamp string
	EndStamp   string
	Text       string
}

// timingRe matches VTT timing lines like "00:00:01.234 --> 00:00:03.456",
// with or without the hours field and with optional cue settings after the
// second timestamp.
var timingRe = regexp.MustCompile(`^(?:\d{1,2}:)?\d{2}:\d{2}\.\d{3}\s*-->\s*(?:\d{1,2}:)?\d{2}:\d{2}\.\d{3}`)

// tagRe matches inline markup found in auto-generated tracks (<c>, <i>,
// karaoke timestamps like <00:00:01.500>).
var tagRe = regexp.MustCompile(`<[^>]*>`)

// ParseWebVTT reads a WebVTT caption track and returns its cues in order.
// Header and metadata lines (WEBVTT, Kind:, Language:), NOTE/STYLE blocks,
// and standalone cue identifiers are skipped; inline tags are stripped from
// cue text. Multi-line cue text is preserved joined with "\n".
func ParseWebVTT(r io.Reader) ([]Cue, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var cues []Cue
	var cur *Cue
	var text []string
	inNote := false

	flush := func() {
		if cur == nil {
			return
		}
		cur.Text = strings.Join(text, "\n")
		cues = append(cues, *cur)
		cur = nil
		text = nil
	}

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			flush()
			inNote = false
			continue
		}
		if inNote {
			continue
		}
		if strings.HasPrefix(trimmed, "WEBVTT") ||
			strings.HasPrefix(trimmed, "Kind:") ||
			strings.HasPrefix(trimmed, "Language:") {
			continue
		}
		if strings.HasPrefix(trimmed, "NOTE") || strings.HasPrefix(trimmed, "STYLE") {
			inNote = true
			continue
		}

		if timingRe.MatchString(trimmed) {
			flush()
			parts := strings.SplitN(trimmed, "-->", 2)
			startStamp := strings.TrimSpace(parts[0])
			// Cue settings (align:start position:0%) follow the end stamp.
			endFields := strings.Fields(strings.TrimSpace(parts[1]))
			endStamp := endFields[0]

			start, err := parseTimestamp(startStamp)
			if err != nil {
				return nil, fmt.Errorf("webvtt: bad start timestamp %q: %w", startStamp, err)
			}
			end, err := parseTimestamp(endStamp)
			if err != nil {
				return nil, fmt.Errorf("webvtt: bad end timestamp %q: %w", endStamp, err)
			}

			cur = &Cue{Start: start, End: end, StartStamp: startStamp, EndStamp: endStamp}
			continue
		}

		// A line before any timing line is a cue identifier; skip it.
		if cur == nil {
			continue
		}

		cleaned := strings.TrimSpace(tagRe.ReplaceAllString(line, ""))
		if cleaned != "" {
			text = append(text, cleaned)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("webvtt: read: %w", err)
	}
	flush()

	return cues, nil
}

// ParseWebVTTFile parses the WebVTT track at path.
func ParseWebVTTFile(path string) ([]Cue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("webvtt: open %s: %w", path, err)
	}
	defer f.Close()
	return ParseWebVTT(f)
}

// parseTimestamp converts "HH:MM:SS.mmm" or "MM:SS.mmm" into seconds.
func parseTimestamp(ts string) (float64, error) {
	parts := strings.Split(ts, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("expected MM:SS.mmm or HH:MM:SS.mmm")
	}

	var total float64
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0, err
		}
		total = total*60 + v
	}
	return total, nil
}
