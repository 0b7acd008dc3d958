package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const transcriptionColumns = `id, video_id, source, language, file_extension, content, created_at, last_updated`

func scanTranscription(row pgx.Row) (*Transcription, error) {
	var t Transcription
	if err := row.Scan(&t.ID, &t.VideoID, &t.Source, &t.Language, &t.FileExtension, &t.Content, &t.CreatedAt, &t.LastUpdated); err != nil {
		return nil, err
	}
	return &t, nil
}

func (q *Queries) GetTranscription(ctx context.Context, id int64) (*Transcription, error) {
	row := q.db.QueryRow(ctx, `SELECT `+transcriptionColumns+` FROM transcriptions WHERE id = $1`, id)
	t, err := scanTranscription(row)
	if err != nil {
		return nil, fmt.Errorf("get transcription %d: %w", id, err)
	}
	return t, nil
}

func (q *Queries) ListTranscriptionsByVideo(ctx context.Context, videoID int64) ([]*Transcription, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+transcriptionColumns+` FROM transcriptions WHERE video_id = $1 ORDER BY id`, videoID)
	if err != nil {
		return nil, fmt.Errorf("list transcriptions for video %d: %w", videoID, err)
	}
	defer rows.Close()

	var transcriptions []*Transcription
	for rows.Next() {
		t, err := scanTranscription(rows)
		if err != nil {
			return nil, err
		}
		transcriptions = append(transcriptions, t)
	}
	return transcriptions, rows.Err()
}

type InsertTranscriptionParams struct {
	VideoID       int64
	Source        TranscriptionSource
	Language      string
	FileExtension string
	Content       []byte
}

func (q *Queries) InsertTranscription(ctx context.Context, params *InsertTranscriptionParams) (*Transcription, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO transcriptions (video_id, source, language, file_extension, content)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+transcriptionColumns,
		params.VideoID, params.Source, params.Language, params.FileExtension, params.Content)
	t, err := scanTranscription(row)
	if err != nil {
		return nil, fmt.Errorf("insert transcription for video %d: %w", params.VideoID, err)
	}
	return t, nil
}

// DeleteTranscription removes the record and its derived search index rows.
func (q *Queries) DeleteTranscription(ctx context.Context, id int64) error {
	if _, err := q.db.Exec(ctx, `DELETE FROM word_maps WHERE transcription_id = $1`, id); err != nil {
		return fmt.Errorf("delete word maps for transcription %d: %w", id, err)
	}
	if _, err := q.db.Exec(ctx, `DELETE FROM segments WHERE transcription_id = $1`, id); err != nil {
		return fmt.Errorf("delete segments for transcription %d: %w", id, err)
	}
	if _, err := q.db.Exec(ctx, `DELETE FROM transcriptions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete transcription %d: %w", id, err)
	}
	return nil
}
