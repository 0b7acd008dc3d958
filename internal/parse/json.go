package parse

import (
	"encoding/json"
	"fmt"
	"io"

	"vodscribe.tv/vodscribe/internal/transcriber"
)

// ParseJSON reads a transcription result document produced by the
// transcription service and returns its segments as normalized cues, applying
// the same empty/duplicate filtering as the VTT path.
func ParseJSON(r io.Reader) ([]Cue, error) {
	var result transcriber.Result
	if err := json.NewDecoder(r).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding transcription json: %w", err)
	}

	var cues []Cue
	var previous string
	for _, seg := range result.Segments {
		text := NormalizeText(seg.Text)
		if text == "" || text == previous {
			continue
		}
		cues = append(cues, Cue{Start: seg.Start, End: seg.End, Text: text})
		previous = text
	}
	return cues, nil
}
