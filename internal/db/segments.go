package db

import (
	"context"
	"fmt"
)

type InsertSegmentParams struct {
	TranscriptionID int64
	StartSec        float64
	EndSec          float64
	Text            string
}

func (q *Queries) InsertSegment(ctx context.Context, params *InsertSegmentParams) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx,
		`INSERT INTO segments (transcription_id, start_sec, end_sec, text)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		params.TranscriptionID, params.StartSec, params.EndSec, params.Text).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert segment for transcription %d: %w", params.TranscriptionID, err)
	}
	return id, nil
}

// UpsertWordMap appends segment ids to the word's posting list, creating the
// row on first sight of the word.
func (q *Queries) UpsertWordMap(ctx context.Context, transcriptionID int64, word string, segmentIDs []int64) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO word_maps (transcription_id, word, segment_ids)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (transcription_id, word)
		 DO UPDATE SET segment_ids = word_maps.segment_ids || EXCLUDED.segment_ids`,
		transcriptionID, word, segmentIDs)
	if err != nil {
		return fmt.Errorf("upsert word map %q for transcription %d: %w", word, transcriptionID, err)
	}
	return nil
}

// DeleteSegments removes a transcription's segments and its word index,
// used before a forced re-parse.
func (q *Queries) DeleteSegments(ctx context.Context, transcriptionID int64) error {
	if _, err := q.db.Exec(ctx,
		`DELETE FROM word_maps WHERE transcription_id = $1`, transcriptionID); err != nil {
		return fmt.Errorf("delete word maps for transcription %d: %w", transcriptionID, err)
	}
	if _, err := q.db.Exec(ctx,
		`DELETE FROM segments WHERE transcription_id = $1`, transcriptionID); err != nil {
		return fmt.Errorf("delete segments for transcription %d: %w", transcriptionID, err)
	}
	return nil
}

func (q *Queries) CountSegments(ctx context.Context, transcriptionID int64) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx,
		`SELECT count(*) FROM segments WHERE transcription_id = $1`, transcriptionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count segments for transcription %d: %w", transcriptionID, err)
	}
	return n, nil
}
