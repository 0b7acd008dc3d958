package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"vodscribe.tv/vodscribe/internal/jobstore"
	"vodscribe.tv/vodscribe/internal/tasks"
	"vodscribe.tv/vodscribe/internal/transcriber"
	"vodscribe.tv/vodscribe/pkg/utils/language"
)

// transcribeFileTask runs the transcribe/upload portion of the pipeline
// against a pre-uploaded file, bypassing the video/channel model.
type transcribeFileTask struct {
	d *Deps
}

func (t *transcribeFileTask) Name() string                 { return tasks.TypeTranscribeFile }
func (t *transcribeFileTask) Queue(r tasks.Routing) string { return r.QueueFor(tasks.TypeTranscribeFile) }

func (t *transcribeFileTask) Execute(ctx context.Context, payload []byte) ([]byte, error) {
	var p tasks.FilePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decoding file payload: %w", err)
	}

	if _, err := t.d.Jobs.Get(p.JobID); err != nil {
		return nil, fmt.Errorf("looking up job %s: %w", p.JobID, err)
	}
	if err := t.d.Jobs.SetStatus(p.JobID, jobstore.StatusProcessing, ""); err != nil {
		return nil, err
	}

	if err := t.transcribe(ctx, p.JobID); err != nil {
		if statusErr := t.d.Jobs.SetStatus(p.JobID, jobstore.StatusFailed, err.Error()); statusErr != nil {
			slog.Error("failed to record job failure", "job_id", p.JobID, "error", statusErr)
		}
		return nil, err
	}

	if err := t.d.Jobs.SetStatus(p.JobID, jobstore.StatusCompleted, ""); err != nil {
		return nil, err
	}
	slog.Info("transcribed upload job", "job_id", p.JobID)
	return nil, nil
}

func (t *transcribeFileTask) transcribe(ctx context.Context, jobID string) error {
	tmpPath, err := t.d.Internal.DownloadJobAudio(ctx, jobID)
	if err != nil {
		return fmt.Errorf("downloading audio for job %s: %w", jobID, err)
	}
	defer transcriber.Cleanup(tmpPath)

	result, err := t.d.Speech.Transcribe(ctx, tmpPath)
	if err != nil {
		return fmt.Errorf("transcribing job %s: %w", jobID, err)
	}
	result.Language = language.Normalize(result.Language)

	if err := t.d.Internal.UploadJobTranscription(ctx, jobID, result); err != nil {
		return fmt.Errorf("uploading transcription for job %s: %w", jobID, err)
	}
	return nil
}

// pruneJobsTask sweeps expired ad-hoc jobs out of the cache directory.
type pruneJobsTask struct {
	d *Deps
}

func (t *pruneJobsTask) Name() string                 { return tasks.TypePruneJobs }
func (t *pruneJobsTask) Queue(r tasks.Routing) string { return r.QueueFor(tasks.TypePruneJobs) }

func (t *pruneJobsTask) Execute(ctx context.Context, payload []byte) ([]byte, error) {
	n, err := t.d.Jobs.PruneOlderThan(t.d.JobRetention)
	if err != nil {
		return nil, fmt.Errorf("pruning jobs: %w", err)
	}
	if n > 0 {
		slog.Info("pruned expired jobs", "count", n, "retention", t.d.JobRetention)
	}
	return nil, nil
}
