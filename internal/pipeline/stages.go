package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"

	"vodscribe.tv/vodscribe/internal/db"
	"vodscribe.tv/vodscribe/internal/platform"
	"vodscribe.tv/vodscribe/internal/tasks"
	"vodscribe.tv/vodscribe/internal/transcriber"
	"vodscribe.tv/vodscribe/pkg/utils/language"
)

func decodeVideoPayload(payload []byte) (tasks.VideoPayload, error) {
	var p tasks.VideoPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return p, fmt.Errorf("decoding video payload: %w", err)
	}
	return p, nil
}

// fetchAudioTask extracts a video's audio track and attaches it to the video
// record. Already-attached audio makes it a no-op.
type fetchAudioTask struct {
	d *Deps
}

func (t *fetchAudioTask) Name() string                 { return tasks.TypeFetchAudio }
func (t *fetchAudioTask) Queue(r tasks.Routing) string { return r.QueueFor(tasks.TypeFetchAudio) }

func (t *fetchAudioTask) Execute(ctx context.Context, payload []byte) ([]byte, error) {
	p, err := decodeVideoPayload(payload)
	if err != nil {
		return nil, err
	}

	video, err := t.d.Store.GetVideo(ctx, p.VideoID)
	if err != nil {
		return nil, err
	}
	if video.HasAudio() {
		slog.Info("video already has audio, skipping fetch", "video_id", video.ID)
		return nil, nil
	}

	ch, err := t.d.Store.GetChannel(ctx, video.ChannelID)
	if err != nil {
		return nil, err
	}
	url, err := platform.VideoURL(ch.PlatformName, video.PlatformRef)
	if err != nil {
		return nil, err
	}

	audioPath, err := t.d.Media.ExtractAudio(ctx, url, filepath.Join(t.d.CacheDir, "audio"))
	if err != nil {
		return nil, fmt.Errorf("extracting audio for video %d: %w", video.ID, err)
	}

	if err := t.d.Store.SetVideoAudio(ctx, video.ID, audioPath); err != nil {
		return nil, err
	}

	slog.Info("fetched audio", "video_id", video.ID, "path", audioPath)
	return nil, nil
}

// transcribeAudioTask runs the external transcription model over a video's
// audio, streaming through the internal API on both sides.
type transcribeAudioTask struct {
	d *Deps
}

func (t *transcribeAudioTask) Name() string { return tasks.TypeTranscribeAudio }
func (t *transcribeAudioTask) Queue(r tasks.Routing) string {
	return r.QueueFor(tasks.TypeTranscribeAudio)
}

func (t *transcribeAudioTask) Execute(ctx context.Context, payload []byte) ([]byte, error) {
	p, err := decodeVideoPayload(payload)
	if err != nil {
		return nil, err
	}

	existing, err := t.defaultTranscription(ctx, p.VideoID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if !p.Force {
			slog.Info("video already transcribed, skipping",
				"video_id", p.VideoID, "transcription_id", existing.ID)
			return nil, nil
		}
		if err := t.d.Store.DeleteTranscription(ctx, existing.ID); err != nil {
			return nil, err
		}
		slog.Info("replacing transcription", "video_id", p.VideoID, "old_id", existing.ID)
	}

	video, err := t.d.Store.GetVideo(ctx, p.VideoID)
	if err != nil {
		return nil, err
	}
	if !video.HasAudio() {
		slog.Warn("video has no audio to transcribe", "video_id", video.ID)
		return nil, nil
	}

	tmpPath, err := t.d.Internal.DownloadVideoAudio(ctx, video.ID)
	if err != nil {
		return nil, fmt.Errorf("downloading audio for video %d: %w", video.ID, err)
	}
	defer transcriber.Cleanup(tmpPath)

	result, err := t.d.Speech.Transcribe(ctx, tmpPath)
	if err != nil {
		return nil, fmt.Errorf("transcribing video %d: %w", video.ID, err)
	}
	result.Language = language.Normalize(result.Language)

	if err := t.d.Internal.UploadVideoTranscription(ctx, video.ID, result); err != nil {
		return nil, fmt.Errorf("uploading transcription for video %d: %w", video.ID, err)
	}

	slog.Info("transcribed video", "video_id", video.ID,
		"segments", len(result.Segments), "language", result.Language)
	return nil, nil
}

// defaultTranscription finds the video's transcription with the default
// source tag, if one exists. Platform-provided transcriptions never block the
// model pipeline.
func (t *transcribeAudioTask) defaultTranscription(ctx context.Context, videoID int64) (*db.Transcription, error) {
	trs, err := t.d.Store.ListTranscriptionsByVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	for _, tr := range trs {
		if tr.Source == db.TranscriptionSourceUnknown {
			return tr, nil
		}
	}
	return nil, nil
}

// parseTranscriptionsTask indexes every transcription of a video into
// searchable segments.
type parseTranscriptionsTask struct {
	d *Deps
}

func (t *parseTranscriptionsTask) Name() string { return tasks.TypeParseTranscriptions }
func (t *parseTranscriptionsTask) Queue(r tasks.Routing) string {
	return r.QueueFor(tasks.TypeParseTranscriptions)
}

func (t *parseTranscriptionsTask) Execute(ctx context.Context, payload []byte) ([]byte, error) {
	p, err := decodeVideoPayload(payload)
	if err != nil {
		return nil, err
	}

	trs, err := t.d.Store.ListTranscriptionsByVideo(ctx, p.VideoID)
	if err != nil {
		return nil, err
	}

	for _, tr := range trs {
		if err := t.d.Indexer.IndexTranscription(ctx, tr, p.Force); err != nil {
			return nil, err
		}
	}

	slog.Info("parsed video transcriptions", "video_id", p.VideoID, "count", len(trs))
	return nil, nil
}
