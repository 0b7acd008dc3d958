package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const channelColumns = `id, name, platform_name, platform_ref, platform_channel_id, last_active`

func scanChannel(row pgx.Row) (*Channel, error) {
	var c Channel
	var lastActive pgtype.Timestamptz
	if err := row.Scan(&c.ID, &c.Name, &c.PlatformName, &c.PlatformRef, &c.PlatformChannelID, &lastActive); err != nil {
		return nil, err
	}
	c.LastActive = NilTimePtr(lastActive)
	return &c, nil
}

func (q *Queries) GetChannel(ctx context.Context, id int64) (*Channel, error) {
	row := q.db.QueryRow(ctx, `SELECT `+channelColumns+` FROM channels WHERE id = $1`, id)
	c, err := scanChannel(row)
	if err != nil {
		return nil, fmt.Errorf("get channel %d: %w", id, err)
	}
	return c, nil
}

// ListChannelsByPlatform returns all channels on a platform, ordered by id so
// scheduler registration is stable across restarts.
func (q *Queries) ListChannelsByPlatform(ctx context.Context, platformName string) ([]*Channel, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+channelColumns+` FROM channels WHERE lower(platform_name) = lower($1) ORDER BY id`, platformName)
	if err != nil {
		return nil, fmt.Errorf("list channels for platform %q: %w", platformName, err)
	}
	defer rows.Close()

	var channels []*Channel
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, c)
	}
	return channels, rows.Err()
}

type InsertChannelParams struct {
	Name              string
	PlatformName      string
	PlatformRef       string
	PlatformChannelID string
}

func (q *Queries) InsertChannel(ctx context.Context, params *InsertChannelParams) (*Channel, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO channels (name, platform_name, platform_ref, platform_channel_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+channelColumns,
		params.Name, params.PlatformName, params.PlatformRef, params.PlatformChannelID)
	c, err := scanChannel(row)
	if err != nil {
		return nil, fmt.Errorf("insert channel %q: %w", params.Name, err)
	}
	return c, nil
}

// TouchChannelLastActive records that the channel was observed live at the
// given instant. Only the liveness task and the discovery gate write this.
func (q *Queries) TouchChannelLastActive(ctx context.Context, id int64, at time.Time) error {
	_, err := q.db.Exec(ctx, `UPDATE channels SET last_active = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("touch channel %d last_active: %w", id, err)
	}
	return nil
}
