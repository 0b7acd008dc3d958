package jobstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCreateGetAudioPath(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	jobID, err := store.Create("meeting.mp3", "user-1", strings.NewReader("audio-bytes"))
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	meta, err := store.Get(jobID)
	require.NoError(t, err)
	require.Equal(t, "meeting.mp3", meta.OriginalFilename)
	require.Equal(t, StatusPending, meta.Status)
	require.Equal(t, "user-1", meta.UserID)
	require.Nil(t, meta.CompletedAt)

	audioPath, err := store.AudioPath(jobID)
	require.NoError(t, err)
	require.Equal(t, jobID+".mp3", filepath.Base(audioPath))

	content, err := os.ReadFile(audioPath)
	require.NoError(t, err)
	require.Equal(t, "audio-bytes", string(content))
}

func TestSetStatus_RecordsCompletion(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	jobID, err := store.Create("a.wav", "u", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, store.SetStatus(jobID, StatusProcessing, ""))
	meta, err := store.Get(jobID)
	require.NoError(t, err)
	require.Equal(t, StatusProcessing, meta.Status)
	require.Nil(t, meta.CompletedAt)

	require.NoError(t, store.SetStatus(jobID, StatusFailed, "model exploded"))
	meta, err = store.Get(jobID)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, meta.Status)
	require.Equal(t, "model exploded", meta.Error)
	require.NotNil(t, meta.CompletedAt)
}

func TestAudioPath_IgnoresSidecars(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	jobID, err := store.Create("a.ogg", "u", strings.NewReader("x"))
	require.NoError(t, err)
	require.NoError(t, store.SaveResult(jobID, []byte(`{"segments":[]}`)))

	audioPath, err := store.AudioPath(jobID)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(audioPath, ".ogg"))
}

func TestGet_Missing(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get("nope")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = store.AudioPath("nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPruneOlderThan(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	oldJob, err := store.Create("old.mp3", "u", strings.NewReader("x"))
	require.NoError(t, err)
	freshJob, err := store.Create("fresh.mp3", "u", strings.NewReader("y"))
	require.NoError(t, err)

	// Age the first job's metadata past the retention window.
	meta, err := store.Get(oldJob)
	require.NoError(t, err)
	meta.CreatedAt = time.Now().Add(-48 * time.Hour)
	require.NoError(t, store.writeMetadata(oldJob, meta))

	pruned, err := store.PruneOlderThan(24 * time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, pruned)

	_, err = store.Get(oldJob)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = store.AudioPath(oldJob)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = store.Get(freshJob)
	require.NoError(t, err)
}
