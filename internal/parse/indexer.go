package parse

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"vodscribe.tv/vodscribe/internal/db"
)

// Store is the slice of the queries layer the indexer needs.
type Store interface {
	CountSegments(ctx context.Context, transcriptionID int64) (int64, error)
	DeleteSegments(ctx context.Context, transcriptionID int64) error
	InsertSegment(ctx context.Context, params *db.InsertSegmentParams) (int64, error)
	UpsertWordMap(ctx context.Context, transcriptionID int64, word string, segmentIDs []int64) error
}

// Indexer persists a transcription's cues as segments and builds the
// per-transcription word index over them.
type Indexer struct {
	store Store
}

func NewIndexer(store Store) *Indexer {
	return &Indexer{store: store}
}

// IndexTranscription parses a transcription's content and stores the result.
// A transcription that already has segments is skipped unless force is set,
// in which case the prior segments and word index are replaced.
func (ix *Indexer) IndexTranscription(ctx context.Context, tr *db.Transcription, force bool) error {
	n, err := ix.store.CountSegments(ctx, tr.ID)
	if err != nil {
		return err
	}
	if n > 0 {
		if !force {
			slog.Info("transcription already indexed, skipping", "transcription_id", tr.ID, "segments", n)
			return nil
		}
		if err := ix.store.DeleteSegments(ctx, tr.ID); err != nil {
			return err
		}
	}

	cues, err := ix.parse(tr)
	if err != nil {
		return fmt.Errorf("parsing transcription %d: %w", tr.ID, err)
	}

	wordMap := make(map[string][]int64)
	for _, cue := range cues {
		id, err := ix.store.InsertSegment(ctx, &db.InsertSegmentParams{
			TranscriptionID: tr.ID,
			StartSec:        cue.Start,
			EndSec:          cue.End,
			Text:            cue.Text,
		})
		if err != nil {
			return err
		}

		for _, word := range strings.Fields(cue.Text) {
			if IsStopword(word) {
				continue
			}
			wordMap[word] = append(wordMap[word], id)
		}
	}

	for word, ids := range wordMap {
		if err := ix.store.UpsertWordMap(ctx, tr.ID, word, ids); err != nil {
			return err
		}
	}

	slog.Info("indexed transcription",
		"transcription_id", tr.ID, "segments", len(cues), "words", len(wordMap))
	return nil
}

func (ix *Indexer) parse(tr *db.Transcription) ([]Cue, error) {
	switch strings.TrimPrefix(strings.ToLower(tr.FileExtension), ".") {
	case "vtt":
		return ParseVTT(bytes.NewReader(tr.Content))
	case "json":
		return ParseJSON(bytes.NewReader(tr.Content))
	default:
		return nil, fmt.Errorf("unsupported transcription format %q", tr.FileExtension)
	}
}
