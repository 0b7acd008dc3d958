// Package parse turns transcription files into searchable segments and a
// word index.
package parse

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// Cue is one normalized caption: lowercased text with annotations removed,
// bounded by start/end offsets in seconds.
type Cue struct {
	Start float64
	End   float64
	Text  string
}

var (
	timingRe     = regexp.MustCompile(`^(\S+)\s+-->\s+(\S+)`)
	annotationRe = regexp.MustCompile(`\[.*?\]`)
)

// ParseVTT reads a WebVTT document and returns its cues, normalized and
// deduplicated. Multi-line cues and cues that are empty after stripping
// annotations are dropped, as are cues repeating the previous cue's text
// (rolling captions repeat lines as they scroll).
func ParseVTT(r io.Reader) ([]Cue, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var cues []Cue
	var previous string

	for scanner.Scan() {
		m := timingRe.FindStringSubmatch(strings.TrimSpace(scanner.Text()))
		if m == nil {
			continue
		}

		start, err := parseTimestamp(m[1])
		if err != nil {
			return nil, fmt.Errorf("parsing cue start: %w", err)
		}
		end, err := parseTimestamp(m[2])
		if err != nil {
			return nil, fmt.Errorf("parsing cue end: %w", err)
		}

		var lines []string
		for scanner.Scan() {
			line := scanner.Text()
			if strings.TrimSpace(line) == "" {
				break
			}
			lines = append(lines, line)
		}
		if len(lines) != 1 {
			continue
		}

		text := NormalizeText(lines[0])
		if text == "" || text == previous {
			continue
		}

		cues = append(cues, Cue{Start: start, End: end, Text: text})
		previous = text
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading vtt: %w", err)
	}
	return cues, nil
}

// NormalizeText strips bracketed annotations such as [music], trims, and
// lowercases caption text.
func NormalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(annotationRe.ReplaceAllString(s, "")))
}

// parseTimestamp handles both HH:MM:SS.mmm and MM:SS.mmm forms.
func parseTimestamp(ts string) (float64, error) {
	parts := strings.Split(ts, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("malformed timestamp %q", ts)
	}

	var total float64
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0, fmt.Errorf("malformed timestamp %q", ts)
		}
		total = total*60 + v
	}
	return total, nil
}
