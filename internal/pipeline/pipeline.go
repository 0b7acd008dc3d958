// Package pipeline implements the background tasks that take a video from
// discovery through fetched audio, transcription, and a searchable index, plus
// the ad-hoc single-file variant and the periodic maintenance work.
package pipeline

import (
	"context"
	"time"

	"vodscribe.tv/vodscribe/internal/db"
	"vodscribe.tv/vodscribe/internal/jobstore"
	"vodscribe.tv/vodscribe/internal/tasks"
	"vodscribe.tv/vodscribe/internal/transcriber"
	"vodscribe.tv/vodscribe/pkg/ytdlp"
)

// Channels whose last_active is within this window are skipped by discovery;
// a channel streaming continuously would otherwise be re-scanned every cycle.
const discoveryGate = 15 * time.Minute

// Store is the slice of the queries layer the pipeline mutates.
type Store interface {
	GetChannel(ctx context.Context, id int64) (*db.Channel, error)
	ListChannelsByPlatform(ctx context.Context, platformName string) ([]*db.Channel, error)
	TouchChannelLastActive(ctx context.Context, id int64, at time.Time) error

	GetVideo(ctx context.Context, id int64) (*db.Video, error)
	GetVideoByPlatformRef(ctx context.Context, platformRef string) (*db.Video, error)
	InsertVideo(ctx context.Context, params *db.InsertVideoParams) (*db.Video, error)
	UpdateVideoDetails(ctx context.Context, id int64, title string, duration float64) error
	SetVideoAudio(ctx context.Context, id int64, audioPath string) error

	ListTranscriptionsByVideo(ctx context.Context, videoID int64) ([]*db.Transcription, error)
	DeleteTranscription(ctx context.Context, id int64) error
}

// MediaClient shells out to yt-dlp.
type MediaClient interface {
	ListChannelVideos(ctx context.Context, channelURL string) ([]ytdlp.VideoInfo, error)
	ExtractAudio(ctx context.Context, url, destDir string) (string, error)
}

// InternalAPI is the authenticated internal HTTP surface the worker streams
// audio and transcriptions through.
type InternalAPI interface {
	DownloadVideoAudio(ctx context.Context, videoID int64) (string, error)
	DownloadJobAudio(ctx context.Context, jobID string) (string, error)
	UploadVideoTranscription(ctx context.Context, videoID int64, result *transcriber.Result) error
	UploadJobTranscription(ctx context.Context, jobID string, result *transcriber.Result) error
}

// SpeechClient is the external transcription model service.
type SpeechClient interface {
	Transcribe(ctx context.Context, audioPath string) (*transcriber.Result, error)
}

// TranscriptionIndexer turns stored transcriptions into segments.
type TranscriptionIndexer interface {
	IndexTranscription(ctx context.Context, tr *db.Transcription, force bool) error
}

// JobStore tracks ad-hoc upload jobs.
type JobStore interface {
	Get(jobID string) (*jobstore.Metadata, error)
	SetStatus(jobID string, status jobstore.Status, jobErr string) error
	PruneOlderThan(retention time.Duration) (int, error)
}

// LiveStatus answers which platform channel ids are currently broadcasting.
type LiveStatus interface {
	LiveChannelIDs(ctx context.Context, channelIDs []string) ([]string, error)
}

// Enqueuer submits tasks and chains to the broker.
type Enqueuer interface {
	Enqueue(ctx context.Context, name string, input any) error
	EnqueueChain(ctx context.Context, names []string, input any) error
}

// Deps bundles the collaborators shared by every pipeline task.
type Deps struct {
	Store        Store
	Media        MediaClient
	Internal     InternalAPI
	Speech       SpeechClient
	Indexer      TranscriptionIndexer
	Jobs         JobStore
	Live         LiveStatus
	Broker       Enqueuer
	CacheDir     string
	JobRetention time.Duration

	// now is a test seam; nil means time.Now.
	now func() time.Time
}

func (d *Deps) clock() time.Time {
	if d.now != nil {
		return d.now()
	}
	return time.Now()
}

// TranscriptionChain is the ordered stage list for processing one video.
// Stage n+1 is enqueued only after stage n returns successfully, which is what
// guarantees audio exists before transcription and a transcription exists
// before parsing.
func TranscriptionChain() []string {
	return []string{tasks.TypeFetchAudio, tasks.TypeTranscribeAudio, tasks.TypeParseTranscriptions}
}

// Tasks returns every pipeline task, ready for registry registration.
func (d *Deps) Tasks() []tasks.Task {
	return []tasks.Task{
		&fetchVideosTask{d},
		&updateLastActiveTask{d},
		&fetchAudioTask{d},
		&transcribeAudioTask{d},
		&parseTranscriptionsTask{d},
		&transcribeFileTask{d},
		&pruneJobsTask{d},
	}
}
