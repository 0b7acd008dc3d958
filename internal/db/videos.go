package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const videoColumns = `id, channel_id, title, platform_ref, duration, uploaded, audio_path`

func scanVideo(row pgx.Row) (*Video, error) {
	var v Video
	if err := row.Scan(&v.ID, &v.ChannelID, &v.Title, &v.PlatformRef, &v.Duration, &v.Uploaded, &v.AudioPath); err != nil {
		return nil, err
	}
	return &v, nil
}

func (q *Queries) GetVideo(ctx context.Context, id int64) (*Video, error) {
	row := q.db.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id)
	v, err := scanVideo(row)
	if err != nil {
		return nil, fmt.Errorf("get video %d: %w", id, err)
	}
	return v, nil
}

func (q *Queries) GetVideoByPlatformRef(ctx context.Context, platformRef string) (*Video, error) {
	row := q.db.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE platform_ref = $1`, platformRef)
	return scanVideo(row)
}

func (q *Queries) ListVideosByChannel(ctx context.Context, channelID int64) ([]*Video, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+videoColumns+` FROM videos WHERE channel_id = $1 ORDER BY uploaded DESC`, channelID)
	if err != nil {
		return nil, fmt.Errorf("list videos for channel %d: %w", channelID, err)
	}
	defer rows.Close()

	var videos []*Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

type InsertVideoParams struct {
	ChannelID   int64
	Title       string
	PlatformRef string
	Duration    float64
	Uploaded    time.Time
}

func (q *Queries) InsertVideo(ctx context.Context, params *InsertVideoParams) (*Video, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO videos (channel_id, title, platform_ref, duration, uploaded)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+videoColumns,
		params.ChannelID, params.Title, params.PlatformRef, params.Duration, params.Uploaded)
	v, err := scanVideo(row)
	if err != nil {
		return nil, fmt.Errorf("insert video %q: %w", params.PlatformRef, err)
	}
	return v, nil
}

func (q *Queries) UpdateVideoDetails(ctx context.Context, id int64, title string, duration float64) error {
	_, err := q.db.Exec(ctx, `UPDATE videos SET title = $2, duration = $3 WHERE id = $1`, id, title, duration)
	if err != nil {
		return fmt.Errorf("update video %d details: %w", id, err)
	}
	return nil
}

// SetVideoAudio attaches the extracted audio blob path to the video. Only the
// fetch stage writes this field.
func (q *Queries) SetVideoAudio(ctx context.Context, id int64, audioPath string) error {
	_, err := q.db.Exec(ctx, `UPDATE videos SET audio_path = $2 WHERE id = $1`, id, audioPath)
	if err != nil {
		return fmt.Errorf("set video %d audio: %w", id, err)
	}
	return nil
}
