package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the minimal query surface shared by pools and transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// TranscriptionSource tags where a transcription came from. Unknown is the
// default tag applied to transcriptions produced by our own model pipeline;
// Platform marks ones imported from the video's hosting platform.
type TranscriptionSource string

const (
	TranscriptionSourceUnknown  TranscriptionSource = "unknown"
	TranscriptionSourcePlatform TranscriptionSource = "platform"
)

type Channel struct {
	ID                int64
	Name              string
	PlatformName      string
	PlatformRef       string
	PlatformChannelID string
	LastActive        *time.Time
}

type Video struct {
	ID          int64
	ChannelID   int64
	Title       string
	PlatformRef string
	Duration    float64
	Uploaded    time.Time
	AudioPath   *string
}

// HasAudio reports whether the fetch stage already attached an audio blob.
func (v *Video) HasAudio() bool {
	return v.AudioPath != nil && *v.AudioPath != ""
}

type Transcription struct {
	ID            int64
	VideoID       int64
	Source        TranscriptionSource
	Language      string
	FileExtension string
	Content       []byte
	CreatedAt     time.Time
	LastUpdated   time.Time
}

type Segment struct {
	ID              int64
	TranscriptionID int64
	StartSec        float64
	EndSec          float64
	Text            string
}
