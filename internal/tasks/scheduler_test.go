package tasks

import (
	"encoding/json"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"vodscribe.tv/vodscribe/internal/db"
)

func TestBuildScheduler(t *testing.T) {
	channels := []*db.Channel{
		{ID: 1, Name: "streamer_one", PlatformName: "twitch"},
		{ID: 2, Name: "streamer_two", PlatformName: "twitch"},
	}

	s, err := BuildScheduler(asynq.RedisClientOpt{Addr: "localhost:6379"},
		DefaultRouting(), "twitch", channels)
	require.NoError(t, err)
	require.NotNil(t, s)
}

func TestBuildSchedulerNoChannels(t *testing.T) {
	s, err := BuildScheduler(asynq.RedisClientOpt{Addr: "localhost:6379"},
		DefaultRouting(), "twitch", nil)
	require.NoError(t, err, "liveness and maintenance register even with zero channels")
	require.NotNil(t, s)
}

func TestNewEnvelopeTask(t *testing.T) {
	task, err := newEnvelopeTask(TypeFetchAudio, VideoPayload{VideoID: 7},
		TypeTranscribeAudio, TypeParseTranscriptions)
	require.NoError(t, err)
	require.Equal(t, TypeFetchAudio, task.Type())

	var env Envelope
	require.NoError(t, json.Unmarshal(task.Payload(), &env))
	require.Equal(t, []string{TypeTranscribeAudio, TypeParseTranscriptions}, env.Chain)

	var p VideoPayload
	require.NoError(t, json.Unmarshal(env.Input, &p))
	require.Equal(t, int64(7), p.VideoID)
}
