// Package jobstore keeps metadata for ad-hoc transcription jobs: uploads that
// bypass the channel/video model entirely. Each job is an audio file plus a
// JSON sidecar under {cache}/transcription_jobs, keyed by a generated job id.
package jobstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const jobsSubdir = "transcription_jobs"

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

type Metadata struct {
	OriginalFilename string     `json:"original_filename"`
	Status           Status     `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
	UserID           string     `json:"user_id"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	Error            string     `json:"error,omitempty"`
}

var ErrNotFound = errors.New("job not found")

type Store struct {
	dir string
}

func New(cacheDir string) (*Store, error) {
	dir := filepath.Join(cacheDir, jobsSubdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create jobs dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Create stores the uploaded audio under a fresh job id and writes the
// metadata sidecar. The audio keeps the original file's extension so the
// transcriber can hand it to the model service unmodified.
func (s *Store) Create(originalFilename, userID string, audio io.Reader) (string, error) {
	jobID := uuid.NewString()
	ext := filepath.Ext(originalFilename)

	f, err := os.Create(s.audioPath(jobID, ext))
	if err != nil {
		return "", fmt.Errorf("create job audio file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, audio); err != nil {
		return "", fmt.Errorf("write job audio file: %w", err)
	}

	meta := Metadata{
		OriginalFilename: originalFilename,
		Status:           StatusPending,
		CreatedAt:        time.Now().UTC(),
		UserID:           userID,
	}
	if err := s.writeMetadata(jobID, &meta); err != nil {
		return "", err
	}
	return jobID, nil
}

func (s *Store) Get(jobID string) (*Metadata, error) {
	data, err := os.ReadFile(s.metadataPath(jobID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read job %s metadata: %w", jobID, err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode job %s metadata: %w", jobID, err)
	}
	return &meta, nil
}

// SetStatus updates the sidecar; completed and failed also record the finish
// time.
func (s *Store) SetStatus(jobID string, status Status, jobErr string) error {
	meta, err := s.Get(jobID)
	if err != nil {
		return err
	}
	meta.Status = status
	meta.Error = jobErr
	if status == StatusCompleted || status == StatusFailed {
		now := time.Now().UTC()
		meta.CompletedAt = &now
	}
	return s.writeMetadata(jobID, meta)
}

// AudioPath locates the job's audio file. The extension is whatever the
// upload carried, so this scans the job's file set.
func (s *Store) AudioPath(jobID string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, jobID+"*"))
	if err != nil {
		return "", fmt.Errorf("glob job %s files: %w", jobID, err)
	}
	for _, m := range matches {
		name := filepath.Base(m)
		if name == jobID+".json" || name == jobID+"_result.json" {
			continue
		}
		return m, nil
	}
	return "", ErrNotFound
}

// SaveResult stores the transcription result next to the job files, mirroring
// what the upload endpoint writes.
func (s *Store) SaveResult(jobID string, result []byte) error {
	if err := os.WriteFile(s.resultPath(jobID), result, 0o644); err != nil {
		return fmt.Errorf("write job %s result: %w", jobID, err)
	}
	return nil
}

func (s *Store) ResultPath(jobID string) string {
	return s.resultPath(jobID)
}

// PruneOlderThan removes jobs whose metadata is older than the retention
// window, returning how many jobs were removed. Jobs with unreadable
// sidecars are left alone.
func (s *Store) PruneOlderThan(retention time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read jobs dir: %w", err)
	}

	cutoff := time.Now().Add(-retention)
	pruned := 0
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") || strings.HasSuffix(name, "_result.json") {
			continue
		}
		jobID := strings.TrimSuffix(name, ".json")

		meta, err := s.Get(jobID)
		if err != nil {
			slog.Warn("skipping job with unreadable metadata", "job_id", jobID, "error", err)
			continue
		}
		if meta.CreatedAt.After(cutoff) {
			continue
		}

		matches, err := filepath.Glob(filepath.Join(s.dir, jobID+"*"))
		if err != nil {
			return pruned, fmt.Errorf("glob job %s files: %w", jobID, err)
		}
		for _, m := range matches {
			if err := os.Remove(m); err != nil {
				slog.Warn("failed to remove job file", "path", m, "error", err)
			}
		}
		slog.Info("pruned stale transcription job", "job_id", jobID, "created_at", meta.CreatedAt)
		pruned++
	}
	return pruned, nil
}

func (s *Store) audioPath(jobID, ext string) string {
	return filepath.Join(s.dir, jobID+ext)
}

func (s *Store) metadataPath(jobID string) string {
	return filepath.Join(s.dir, jobID+".json")
}

func (s *Store) resultPath(jobID string) string {
	return filepath.Join(s.dir, jobID+"_result.json")
}

func (s *Store) writeMetadata(jobID string, meta *Metadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode job %s metadata: %w", jobID, err)
	}
	if err := os.WriteFile(s.metadataPath(jobID), data, 0o644); err != nil {
		return fmt.Errorf("write job %s metadata: %w", jobID, err)
	}
	return nil
}
