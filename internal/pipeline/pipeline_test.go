package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"vodscribe.tv/vodscribe/internal/db"
	"vodscribe.tv/vodscribe/internal/jobstore"
	"vodscribe.tv/vodscribe/internal/tasks"
	"vodscribe.tv/vodscribe/internal/transcriber"
	"vodscribe.tv/vodscribe/pkg/ytdlp"
)

type fakeStore struct {
	channels       map[int64]*db.Channel
	videos         map[int64]*db.Video
	transcriptions []*db.Transcription
	nextVideoID    int64
	nextTrID       int64
	events         *[]string
	touched        []int64
}

func newFakeStore(events *[]string) *fakeStore {
	return &fakeStore{
		channels: make(map[int64]*db.Channel),
		videos:   make(map[int64]*db.Video),
		events:   events,
	}
}

func (f *fakeStore) record(ev string) {
	if f.events != nil {
		*f.events = append(*f.events, ev)
	}
}

func (f *fakeStore) GetChannel(_ context.Context, id int64) (*db.Channel, error) {
	ch, ok := f.channels[id]
	if !ok {
		return nil, fmt.Errorf("get channel %d: %w", id, pgx.ErrNoRows)
	}
	return ch, nil
}

func (f *fakeStore) ListChannelsByPlatform(_ context.Context, platformName string) ([]*db.Channel, error) {
	var out []*db.Channel
	for _, ch := range f.channels {
		if ch.PlatformName == platformName {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (f *fakeStore) TouchChannelLastActive(_ context.Context, id int64, at time.Time) error {
	ch, ok := f.channels[id]
	if !ok {
		return pgx.ErrNoRows
	}
	ch.LastActive = &at
	f.touched = append(f.touched, id)
	return nil
}

func (f *fakeStore) GetVideo(_ context.Context, id int64) (*db.Video, error) {
	v, ok := f.videos[id]
	if !ok {
		return nil, fmt.Errorf("get video %d: %w", id, pgx.ErrNoRows)
	}
	return v, nil
}

func (f *fakeStore) GetVideoByPlatformRef(_ context.Context, ref string) (*db.Video, error) {
	for _, v := range f.videos {
		if v.PlatformRef == ref {
			return v, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeStore) InsertVideo(_ context.Context, p *db.InsertVideoParams) (*db.Video, error) {
	f.nextVideoID++
	v := &db.Video{
		ID:          f.nextVideoID,
		ChannelID:   p.ChannelID,
		Title:       p.Title,
		PlatformRef: p.PlatformRef,
		Duration:    p.Duration,
		Uploaded:    p.Uploaded,
	}
	f.videos[v.ID] = v
	return v, nil
}

func (f *fakeStore) UpdateVideoDetails(_ context.Context, id int64, title string, duration float64) error {
	v, ok := f.videos[id]
	if !ok {
		return pgx.ErrNoRows
	}
	v.Title, v.Duration = title, duration
	return nil
}

func (f *fakeStore) SetVideoAudio(_ context.Context, id int64, audioPath string) error {
	v, ok := f.videos[id]
	if !ok {
		return pgx.ErrNoRows
	}
	v.AudioPath = &audioPath
	f.record("audio_set")
	return nil
}

func (f *fakeStore) ListTranscriptionsByVideo(_ context.Context, videoID int64) ([]*db.Transcription, error) {
	var out []*db.Transcription
	for _, tr := range f.transcriptions {
		if tr.VideoID == videoID {
			out = append(out, tr)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteTranscription(_ context.Context, id int64) error {
	for i, tr := range f.transcriptions {
		if tr.ID == id {
			f.transcriptions = append(f.transcriptions[:i], f.transcriptions[i+1:]...)
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (f *fakeStore) addTranscription(videoID int64, source db.TranscriptionSource) *db.Transcription {
	f.nextTrID++
	tr := &db.Transcription{
		ID: f.nextTrID, VideoID: videoID, Source: source,
		Language: "en", FileExtension: "json", Content: []byte(`{"segments":[]}`),
	}
	f.transcriptions = append(f.transcriptions, tr)
	return tr
}

func (f *fakeStore) defaultTranscriptions(videoID int64) []*db.Transcription {
	var out []*db.Transcription
	for _, tr := range f.transcriptions {
		if tr.VideoID == videoID && tr.Source == db.TranscriptionSourceUnknown {
			out = append(out, tr)
		}
	}
	return out
}

type fakeMedia struct {
	entries   []ytdlp.VideoInfo
	listCalls int
	audioPath string
}

func (f *fakeMedia) ListChannelVideos(context.Context, string) ([]ytdlp.VideoInfo, error) {
	f.listCalls++
	return f.entries, nil
}

func (f *fakeMedia) ExtractAudio(context.Context, string, string) (string, error) {
	return f.audioPath, nil
}

// fakeInternal stands in for the internal API, writing real temp files on
// download so cleanup behavior is observable.
type fakeInternal struct {
	store     *fakeStore
	dir       string
	downloads int
	lastTemp  string
}

func (f *fakeInternal) download() (string, error) {
	f.downloads++
	path := filepath.Join(f.dir, fmt.Sprintf("audio_%d.m4a", f.downloads))
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		return "", err
	}
	f.lastTemp = path
	return path, nil
}

func (f *fakeInternal) DownloadVideoAudio(context.Context, int64) (string, error) {
	return f.download()
}

func (f *fakeInternal) DownloadJobAudio(context.Context, string) (string, error) {
	return f.download()
}

func (f *fakeInternal) UploadVideoTranscription(_ context.Context, videoID int64, _ *transcriber.Result) error {
	f.store.addTranscription(videoID, db.TranscriptionSourceUnknown)
	f.store.record("transcription_created")
	return nil
}

func (f *fakeInternal) UploadJobTranscription(context.Context, string, *transcriber.Result) error {
	return nil
}

type fakeSpeech struct {
	calls int
	err   error
}

func (f *fakeSpeech) Transcribe(context.Context, string) (*transcriber.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &transcriber.Result{
		Language: "en-US",
		Segments: []transcriber.Segment{{Start: 0, End: 2, Text: "hello"}},
	}, nil
}

type fakeIndexer struct {
	store *fakeStore
	calls int
}

func (f *fakeIndexer) IndexTranscription(context.Context, *db.Transcription, bool) error {
	f.calls++
	f.store.record("parse_invoked")
	return nil
}

type fakeJobs struct {
	meta     map[string]*jobstore.Metadata
	statuses []jobstore.Status
	lastErr  string
	pruned   time.Duration
}

func newFakeJobs(ids ...string) *fakeJobs {
	f := &fakeJobs{meta: make(map[string]*jobstore.Metadata)}
	for _, id := range ids {
		f.meta[id] = &jobstore.Metadata{Status: jobstore.StatusPending, CreatedAt: time.Now()}
	}
	return f
}

func (f *fakeJobs) Get(jobID string) (*jobstore.Metadata, error) {
	m, ok := f.meta[jobID]
	if !ok {
		return nil, jobstore.ErrNotFound
	}
	return m, nil
}

func (f *fakeJobs) SetStatus(jobID string, status jobstore.Status, jobErr string) error {
	m, ok := f.meta[jobID]
	if !ok {
		return jobstore.ErrNotFound
	}
	m.Status = status
	f.statuses = append(f.statuses, status)
	f.lastErr = jobErr
	return nil
}

func (f *fakeJobs) PruneOlderThan(retention time.Duration) (int, error) {
	f.pruned = retention
	return 2, nil
}

type fakeLive struct {
	live []string
}

func (f *fakeLive) LiveChannelIDs(context.Context, []string) ([]string, error) {
	return f.live, nil
}

// chainEnqueuer executes enqueued chains synchronously through the registered
// tasks, standing in for the broker.
type chainEnqueuer struct {
	deps   *Deps
	chains [][]string
}

func (e *chainEnqueuer) Enqueue(ctx context.Context, name string, input any) error {
	return e.EnqueueChain(ctx, []string{name}, input)
}

func (e *chainEnqueuer) EnqueueChain(ctx context.Context, names []string, input any) error {
	e.chains = append(e.chains, names)
	byName := make(map[string]tasks.Task)
	for _, t := range e.deps.Tasks() {
		byName[t.Name()] = t
	}

	payload := tasks.MustMarshal(input)
	for _, name := range names {
		task, ok := byName[name]
		if !ok {
			return fmt.Errorf("unknown task %q", name)
		}
		out, err := task.Execute(ctx, payload)
		if err != nil {
			return err
		}
		if out != nil {
			payload = out
		}
	}
	return nil
}

func testDeps(t *testing.T, events *[]string) (*Deps, *fakeStore, *fakeMedia, *fakeInternal, *fakeSpeech, *fakeIndexer) {
	t.Helper()
	store := newFakeStore(events)
	media := &fakeMedia{audioPath: "/cache/audio/extracted.m4a"}
	internal := &fakeInternal{store: store, dir: t.TempDir()}
	speech := &fakeSpeech{}
	indexer := &fakeIndexer{store: store}

	d := &Deps{
		Store:        store,
		Media:        media,
		Internal:     internal,
		Speech:       speech,
		Indexer:      indexer,
		Jobs:         newFakeJobs(),
		Live:         &fakeLive{},
		CacheDir:     t.TempDir(),
		JobRetention: 7 * 24 * time.Hour,
	}
	d.Broker = &chainEnqueuer{deps: d}
	return d, store, media, internal, speech, indexer
}

func runTask(t *testing.T, d *Deps, name string, input any) error {
	t.Helper()
	for _, task := range d.Tasks() {
		if task.Name() == name {
			_, err := task.Execute(context.Background(), tasks.MustMarshal(input))
			return err
		}
	}
	t.Fatalf("task %q not found", name)
	return nil
}

func TestTranscribeIdempotent(t *testing.T) {
	d, store, _, internal, speech, _ := testDeps(t, nil)

	audio := "/cache/audio/v1.m4a"
	store.videos[1] = &db.Video{ID: 1, ChannelID: 1, AudioPath: &audio}
	store.addTranscription(1, db.TranscriptionSourceUnknown)

	input := tasks.VideoPayload{VideoID: 1}
	require.NoError(t, runTask(t, d, tasks.TypeTranscribeAudio, input))
	require.NoError(t, runTask(t, d, tasks.TypeTranscribeAudio, input))

	require.Zero(t, internal.downloads, "no external calls when already transcribed")
	require.Zero(t, speech.calls)
	require.Len(t, store.defaultTranscriptions(1), 1)
}

func TestTranscribeForcedReplacement(t *testing.T) {
	d, store, _, _, speech, _ := testDeps(t, nil)

	audio := "/cache/audio/v1.m4a"
	store.videos[1] = &db.Video{ID: 1, ChannelID: 1, AudioPath: &audio}
	old := store.addTranscription(1, db.TranscriptionSourceUnknown)

	err := runTask(t, d, tasks.TypeTranscribeAudio, tasks.VideoPayload{VideoID: 1, Force: true})
	require.NoError(t, err)

	require.Equal(t, 1, speech.calls)
	remaining := store.defaultTranscriptions(1)
	require.Len(t, remaining, 1, "old removed, new added, never two")
	require.NotEqual(t, old.ID, remaining[0].ID)
}

func TestTranscribeNoAudioIsNoop(t *testing.T) {
	d, store, _, _, speech, _ := testDeps(t, nil)
	store.videos[1] = &db.Video{ID: 1, ChannelID: 1}

	err := runTask(t, d, tasks.TypeTranscribeAudio, tasks.VideoPayload{VideoID: 1})
	require.NoError(t, err, "missing audio is a legitimate terminal outcome")
	require.Zero(t, speech.calls)
}

func TestChainOrdering(t *testing.T) {
	var events []string
	d, store, _, _, _, _ := testDeps(t, &events)

	store.channels[1] = &db.Channel{ID: 1, PlatformName: "twitch", PlatformRef: "streamer"}
	store.videos[1] = &db.Video{ID: 1, ChannelID: 1, PlatformRef: "v1"}

	err := d.Broker.EnqueueChain(context.Background(), TranscriptionChain(), tasks.VideoPayload{VideoID: 1})
	require.NoError(t, err)

	require.Equal(t, []string{"audio_set", "transcription_created", "parse_invoked"}, events)
	require.True(t, store.videos[1].HasAudio())
}

func TestDiscoveryGating(t *testing.T) {
	recent := time.Now().Add(-2 * time.Minute)
	stale := time.Now().Add(-20 * time.Minute)

	tests := []struct {
		name       string
		lastActive *time.Time
		wantScan   bool
	}{
		{"recently active skipped", &recent, false},
		{"stale processed", &stale, true},
		{"never active processed", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, store, media, _, _, _ := testDeps(t, nil)
			store.channels[1] = &db.Channel{
				ID: 1, PlatformName: "twitch", PlatformRef: "streamer",
				LastActive: tt.lastActive,
			}

			err := runTask(t, d, tasks.TypeFetchVideos, tasks.ChannelPayload{ChannelID: 1})
			require.NoError(t, err)

			if tt.wantScan {
				require.Equal(t, 1, media.listCalls)
			} else {
				require.Zero(t, media.listCalls, "gated channel must have no side effects")
			}
		})
	}
}

func TestDiscoveryEnqueuesChainForNewVideos(t *testing.T) {
	d, store, media, _, _, _ := testDeps(t, nil)
	store.channels[1] = &db.Channel{ID: 1, PlatformName: "twitch", PlatformRef: "streamer"}
	media.entries = []ytdlp.VideoInfo{
		{ID: "v1", Title: "first", Duration: 100},
		{ID: "v2", Title: "second", Duration: 200},
	}

	require.NoError(t, runTask(t, d, tasks.TypeFetchVideos, tasks.ChannelPayload{ChannelID: 1}))

	require.Len(t, store.videos, 2)
	enq := d.Broker.(*chainEnqueuer)
	require.Len(t, enq.chains, 2)
	require.Equal(t, TranscriptionChain(), enq.chains[0])

	// second discovery finds nothing new
	require.NoError(t, runTask(t, d, tasks.TypeFetchVideos, tasks.ChannelPayload{ChannelID: 1}))
	require.Len(t, store.videos, 2)
	require.Len(t, enq.chains, 2, "existing videos updated, not re-enqueued")
}

func TestCleanupOnTranscribeFailure(t *testing.T) {
	d, store, _, internal, speech, _ := testDeps(t, nil)

	audio := "/cache/audio/v1.m4a"
	store.videos[1] = &db.Video{ID: 1, ChannelID: 1, AudioPath: &audio}
	speech.err = errors.New("model server crashed")

	err := runTask(t, d, tasks.TypeTranscribeAudio, tasks.VideoPayload{VideoID: 1})
	require.ErrorContains(t, err, "model server crashed")

	_, statErr := os.Stat(internal.lastTemp)
	require.True(t, os.IsNotExist(statErr), "temp file must be removed on the error path")
}

func TestUpdateLastActive(t *testing.T) {
	d, store, _, _, _, _ := testDeps(t, nil)
	store.channels[1] = &db.Channel{ID: 1, PlatformName: "twitch", PlatformChannelID: "111"}
	store.channels[2] = &db.Channel{ID: 2, PlatformName: "twitch", PlatformChannelID: "222"}
	store.channels[3] = &db.Channel{ID: 3, PlatformName: "youtube", PlatformChannelID: "333"}
	d.Live = &fakeLive{live: []string{"222"}}

	err := runTask(t, d, tasks.TypeUpdateLastActive, tasks.PlatformPayload{Platform: "twitch"})
	require.NoError(t, err)

	require.Equal(t, []int64{2}, store.touched)
	require.Nil(t, store.channels[1].LastActive)
	require.NotNil(t, store.channels[2].LastActive)
}

func TestTranscribeFileStatusTransitions(t *testing.T) {
	d, _, _, _, _, _ := testDeps(t, nil)
	jobs := newFakeJobs("job-1")
	d.Jobs = jobs

	err := runTask(t, d, tasks.TypeTranscribeFile, tasks.FilePayload{JobID: "job-1"})
	require.NoError(t, err)
	require.Equal(t, []jobstore.Status{jobstore.StatusProcessing, jobstore.StatusCompleted}, jobs.statuses)
}

func TestTranscribeFileFailureMarksJob(t *testing.T) {
	d, _, _, internal, speech, _ := testDeps(t, nil)
	jobs := newFakeJobs("job-1")
	d.Jobs = jobs
	speech.err = errors.New("gpu on fire")

	err := runTask(t, d, tasks.TypeTranscribeFile, tasks.FilePayload{JobID: "job-1"})
	require.ErrorContains(t, err, "gpu on fire")
	require.Equal(t, jobstore.StatusFailed, jobs.meta["job-1"].Status)
	require.Contains(t, jobs.lastErr, "gpu on fire")

	_, statErr := os.Stat(internal.lastTemp)
	require.True(t, os.IsNotExist(statErr))
}

func TestPruneJobs(t *testing.T) {
	d, _, _, _, _, _ := testDeps(t, nil)
	jobs := newFakeJobs()
	d.Jobs = jobs

	require.NoError(t, runTask(t, d, tasks.TypePruneJobs, struct{}{}))
	require.Equal(t, 7*24*time.Hour, jobs.pruned)
}
