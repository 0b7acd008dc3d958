package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"vodscribe.tv/vodscribe/internal/db"
	"vodscribe.tv/vodscribe/internal/platform"
	"vodscribe.tv/vodscribe/internal/tasks"
	"vodscribe.tv/vodscribe/pkg/utils/format"
)

// fetchVideosTask discovers new videos on one channel and submits the
// transcription chain for each of them.
type fetchVideosTask struct {
	d *Deps
}

func (t *fetchVideosTask) Name() string                 { return tasks.TypeFetchVideos }
func (t *fetchVideosTask) Queue(r tasks.Routing) string { return r.QueueFor(tasks.TypeFetchVideos) }

func (t *fetchVideosTask) Execute(ctx context.Context, payload []byte) ([]byte, error) {
	var p tasks.ChannelPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decoding channel payload: %w", err)
	}

	ch, err := t.d.Store.GetChannel(ctx, p.ChannelID)
	if err != nil {
		return nil, err
	}

	// A channel active within the gate window was scanned by a recent cycle
	// (or is streaming right now); skip it with no side effects.
	if ch.LastActive != nil {
		if since := t.d.clock().Sub(*ch.LastActive); since < discoveryGate {
			slog.Info("channel recently active, skipping discovery",
				"channel_id", ch.ID, "last_active", ch.LastActive)
			return nil, nil
		}
	}

	url, err := platform.ChannelVideosURL(ch.PlatformName, ch.PlatformRef)
	if err != nil {
		return nil, err
	}

	entries, err := t.d.Media.ListChannelVideos(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("listing videos for channel %d: %w", ch.ID, err)
	}

	var created int
	for _, entry := range entries {
		existing, err := t.d.Store.GetVideoByPlatformRef(ctx, entry.ID)
		switch {
		case err == nil:
			if err := t.d.Store.UpdateVideoDetails(ctx, existing.ID, entry.Title, entry.Duration); err != nil {
				return nil, err
			}
		case errors.Is(err, pgx.ErrNoRows):
			uploaded := time.Unix(entry.Timestamp, 0).UTC()
			if entry.Timestamp == 0 {
				uploaded = t.d.clock().UTC()
			}
			video, err := t.d.Store.InsertVideo(ctx, &db.InsertVideoParams{
				ChannelID:   ch.ID,
				Title:       entry.Title,
				PlatformRef: entry.ID,
				Duration:    entry.Duration,
				Uploaded:    uploaded,
			})
			if err != nil {
				return nil, err
			}
			created++
			slog.Debug("discovered video", "ref", entry.ID, "title", entry.Title,
				"duration", format.Duration(entry.Duration))

			input := tasks.VideoPayload{VideoID: video.ID}
			if err := t.d.Broker.EnqueueChain(ctx, TranscriptionChain(), input); err != nil {
				return nil, fmt.Errorf("enqueueing pipeline for video %d: %w", video.ID, err)
			}
		default:
			return nil, fmt.Errorf("looking up video %q: %w", entry.ID, err)
		}
	}

	slog.Info("channel discovery complete",
		"channel_id", ch.ID, "videos", len(entries), "new", created)
	return nil, nil
}

// updateLastActiveTask refreshes last_active for every channel of a platform
// that is currently live.
type updateLastActiveTask struct {
	d *Deps
}

func (t *updateLastActiveTask) Name() string { return tasks.TypeUpdateLastActive }
func (t *updateLastActiveTask) Queue(r tasks.Routing) string {
	return r.QueueFor(tasks.TypeUpdateLastActive)
}

func (t *updateLastActiveTask) Execute(ctx context.Context, payload []byte) ([]byte, error) {
	var p tasks.PlatformPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decoding platform payload: %w", err)
	}

	channels, err := t.d.Store.ListChannelsByPlatform(ctx, p.Platform)
	if err != nil {
		return nil, err
	}
	if len(channels) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(channels))
	byPlatformID := make(map[string]*db.Channel, len(channels))
	for _, ch := range channels {
		ids = append(ids, ch.PlatformChannelID)
		byPlatformID[ch.PlatformChannelID] = ch
	}

	live, err := t.d.Live.LiveChannelIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("checking live status: %w", err)
	}

	now := t.d.clock()
	for _, id := range live {
		ch, ok := byPlatformID[id]
		if !ok {
			continue
		}
		if err := t.d.Store.TouchChannelLastActive(ctx, ch.ID, now); err != nil {
			return nil, err
		}
	}

	slog.Info("liveness refresh complete", "platform", p.Platform,
		"channels", len(channels), "live", len(live))
	return nil, nil
}
