package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"vodscribe.tv/vodscribe/internal/db"
	"vodscribe.tv/vodscribe/internal/jobstore"
	"vodscribe.tv/vodscribe/internal/pipeline"
	"vodscribe.tv/vodscribe/internal/tasks"
)

const testKey = "test-api-key"

type fakeStore struct {
	videos         map[int64]*db.Video
	transcriptions []*db.Transcription
}

func (f *fakeStore) GetVideo(_ context.Context, id int64) (*db.Video, error) {
	v, ok := f.videos[id]
	if !ok {
		return nil, fmt.Errorf("get video %d: %w", id, pgx.ErrNoRows)
	}
	return v, nil
}

func (f *fakeStore) ListVideosByChannel(_ context.Context, channelID int64) ([]*db.Video, error) {
	var out []*db.Video
	for _, v := range f.videos {
		if v.ChannelID == channelID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertTranscription(_ context.Context, p *db.InsertTranscriptionParams) (*db.Transcription, error) {
	tr := &db.Transcription{
		ID: int64(len(f.transcriptions) + 1), VideoID: p.VideoID,
		Source: p.Source, Language: p.Language,
		FileExtension: p.FileExtension, Content: p.Content,
	}
	f.transcriptions = append(f.transcriptions, tr)
	return tr, nil
}

type fakeBroker struct {
	single []string
	chains [][]string
}

func (f *fakeBroker) Enqueue(_ context.Context, name string, _ any) error {
	f.single = append(f.single, name)
	return nil
}

func (f *fakeBroker) EnqueueChain(_ context.Context, names []string, _ any) error {
	f.chains = append(f.chains, names)
	return nil
}

type fakeClips struct {
	ids   []string
	fail  bool
	count int
}

func (f *fakeClips) Enqueue(_ context.Context, broadcasterID string) string {
	if f.fail {
		return ""
	}
	f.count++
	id := fmt.Sprintf("task-%d", f.count)
	f.ids = append(f.ids, broadcasterID)
	return id
}

func newTestServer(t *testing.T) (*Server, *fakeStore, *fakeBroker, *fakeClips, *jobstore.Store) {
	t.Helper()
	store := &fakeStore{videos: make(map[int64]*db.Video)}
	broker := &fakeBroker{}
	clips := &fakeClips{}
	jobs, err := jobstore.New(t.TempDir())
	require.NoError(t, err)

	return NewServer(store, jobs, broker, clips, testKey), store, broker, clips, jobs
}

func do(e http.Handler, method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("X-API-Key", testKey)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAuthRequired(t *testing.T) {
	s, _, _, _, _ := newTestServer(t)
	e := s.Router()

	req := httptest.NewRequest(http.MethodGet, "/video/1/download_audio", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req.Header.Set("X-API-Key", "wrong-key")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDownloadVideoAudio(t *testing.T) {
	s, store, _, _, _ := newTestServer(t)

	dir := t.TempDir()
	audioPath := filepath.Join(dir, "stream.m4a")
	require.NoError(t, os.WriteFile(audioPath, []byte("audio-bytes"), 0o644))
	store.videos[1] = &db.Video{ID: 1, AudioPath: &audioPath}
	store.videos[2] = &db.Video{ID: 2}

	rec := do(s.Router(), http.MethodGet, "/video/1/download_audio", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "audio-bytes", rec.Body.String())
	require.Contains(t, rec.Header().Get("Content-Disposition"), "stream.m4a")

	rec = do(s.Router(), http.MethodGet, "/video/2/download_audio", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(s.Router(), http.MethodGet, "/video/999/download_audio", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadVideoTranscription(t *testing.T) {
	s, store, _, _, _ := newTestServer(t)

	body := `{"language":"en","segments":[{"start":0,"end":2,"text":"hello"}]}`
	rec := do(s.Router(), http.MethodPost, "/video/5/upload_transcription",
		strings.NewReader(body), map[string]string{"Content-Type": "application/json"})
	require.Equal(t, http.StatusCreated, rec.Code)

	require.Len(t, store.transcriptions, 1)
	tr := store.transcriptions[0]
	require.Equal(t, int64(5), tr.VideoID)
	require.Equal(t, db.TranscriptionSourceUnknown, tr.Source)
	require.Equal(t, "en", tr.Language)
	require.JSONEq(t, body, string(tr.Content))
}

func TestUploadVideoTranscriptionRejectsGarbage(t *testing.T) {
	s, _, _, _, _ := newTestServer(t)
	rec := do(s.Router(), http.MethodPost, "/video/5/upload_transcription",
		strings.NewReader("not json"), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadAudioCreatesJobAndEnqueues(t *testing.T) {
	s, _, broker, _, jobs := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "meeting.mp3")
	require.NoError(t, err)
	_, err = fw.Write([]byte("mp3-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("user_id", "u-7"))
	require.NoError(t, mw.Close())

	rec := do(s.Router(), http.MethodPost, "/utils/upload_audio", &buf,
		map[string]string{"Content-Type": mw.FormDataContentType()})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	jobID := resp["job_id"]
	require.NotEmpty(t, jobID)

	meta, err := jobs.Get(jobID)
	require.NoError(t, err)
	require.Equal(t, "meeting.mp3", meta.OriginalFilename)
	require.Equal(t, "u-7", meta.UserID)
	require.Equal(t, jobstore.StatusPending, meta.Status)

	require.Equal(t, []string{tasks.TypeTranscribeFile}, broker.single)
}

func TestJobAudioRoundTrip(t *testing.T) {
	s, _, _, _, jobs := newTestServer(t)

	jobID, err := jobs.Create("x.wav", "u-1", strings.NewReader("wav-bytes"))
	require.NoError(t, err)

	rec := do(s.Router(), http.MethodGet, "/utils/download_audio/"+jobID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "wav-bytes", rec.Body.String())

	result := `{"language":"en","segments":[]}`
	rec = do(s.Router(), http.MethodPost, "/utils/upload_transcription/"+jobID,
		strings.NewReader(result), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	saved, err := os.ReadFile(jobs.ResultPath(jobID))
	require.NoError(t, err)
	require.JSONEq(t, result, string(saved))
}

func TestJobAudioNotFound(t *testing.T) {
	s, _, _, _, _ := newTestServer(t)
	rec := do(s.Router(), http.MethodGet, "/utils/download_audio/nope", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateClip(t *testing.T) {
	s, _, _, clips, _ := newTestServer(t)

	rec := do(s.Router(), http.MethodPost, "/broadcaster/42/create_clip", nil, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, []string{"42"}, clips.ids)

	clips.fail = true
	rec = do(s.Router(), http.MethodPost, "/broadcaster/42/create_clip", nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestFetchChannelTranscriptions(t *testing.T) {
	s, store, broker, _, _ := newTestServer(t)
	store.videos[1] = &db.Video{ID: 1, ChannelID: 9}
	store.videos[2] = &db.Video{ID: 2, ChannelID: 9}
	store.videos[3] = &db.Video{ID: 3, ChannelID: 8}

	rec := do(s.Router(), http.MethodGet, "/channel/9/fetch_transcriptions", nil, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Len(t, broker.chains, 2)
	require.Equal(t, pipeline.TranscriptionChain(), broker.chains[0])

	var resp map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp["queued"])
}
