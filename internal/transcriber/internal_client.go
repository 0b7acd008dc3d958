// Package transcriber holds the HTTP clients the transcribe stage is built
// from: the internal authenticated endpoints that stream audio in and accept
// results back, and the external model service that does the actual work.
package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

const apiKeyHeader = "X-API-Key"

// Audio blobs for long VODs run to gigabytes; the transfer is LAN-internal
// but still needs a bound so a dead peer cannot pin a GPU worker forever.
const internalTimeout = 10 * time.Minute

// fallbackExt is used when neither the content-disposition filename nor the
// MIME type yields an extension.
const fallbackExt = ".audio"

// InternalClient talks to the application's own authenticated endpoints.
type InternalClient struct {
	baseURL  string
	apiKey   string
	cacheDir string
	http     *http.Client
}

func NewInternalClient(baseURL, apiKey, cacheDir string) *InternalClient {
	return &InternalClient{
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:   apiKey,
		cacheDir: cacheDir,
		http: &http.Client{
			Timeout: internalTimeout,
		},
	}
}

// DownloadVideoAudio streams the video's audio into a uniquely named file
// under the cache dir and returns its path. The caller owns the file and must
// remove it with Cleanup on every exit path.
func (c *InternalClient) DownloadVideoAudio(ctx context.Context, videoID int64) (string, error) {
	return c.download(ctx, fmt.Sprintf("%s/video/%d/download_audio", c.baseURL, videoID))
}

// DownloadJobAudio is the ad-hoc job variant of DownloadVideoAudio.
func (c *InternalClient) DownloadJobAudio(ctx context.Context, jobID string) (string, error) {
	return c.download(ctx, fmt.Sprintf("%s/utils/download_audio/%s", c.baseURL, jobID))
}

func (c *InternalClient) download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("download audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
		return "", fmt.Errorf("download audio: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	ext := inferExtension(resp.Header.Get("Content-Disposition"), resp.Header.Get("Content-Type"))
	path := filepath.Join(c.cacheDir, fmt.Sprintf("audio_%s%s", uuid.NewString(), ext))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create temp audio file: %w", err)
	}

	written, err := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if err != nil {
		Cleanup(path)
		return "", fmt.Errorf("write temp audio file: %w", err)
	}
	if closeErr != nil {
		Cleanup(path)
		return "", fmt.Errorf("close temp audio file: %w", closeErr)
	}

	slog.Info("downloaded audio", "url", url, "path", path, "size", humanize.Bytes(uint64(written)))
	return path, nil
}

// UploadVideoTranscription posts the model result for a video.
func (c *InternalClient) UploadVideoTranscription(ctx context.Context, videoID int64, result *Result) error {
	return c.upload(ctx, fmt.Sprintf("%s/video/%d/upload_transcription", c.baseURL, videoID), result)
}

// UploadJobTranscription posts the model result for an ad-hoc job.
func (c *InternalClient) UploadJobTranscription(ctx context.Context, jobID string, result *Result) error {
	return c.upload(ctx, fmt.Sprintf("%s/utils/upload_transcription/%s", c.baseURL, jobID), result)
}

func (c *InternalClient) upload(ctx context.Context, url string, result *Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal transcription result: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload transcription: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
		return fmt.Errorf("upload transcription: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// Cleanup removes a temp audio file. It runs on every stage exit path;
// failure is logged, never escalated, and never blocks the primary result.
func Cleanup(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove temp audio file", "path", path, "error", err)
	}
}

// inferExtension picks the temp file extension from the content-disposition
// filename, then the MIME type, then a generic fallback.
func inferExtension(contentDisposition, contentType string) string {
	if contentDisposition != "" {
		if _, params, err := mime.ParseMediaType(contentDisposition); err == nil {
			if ext := filepath.Ext(params["filename"]); ext != "" {
				return ext
			}
		}
	}
	if contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err == nil {
			if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
				return exts[0]
			}
		}
	}
	return fallbackExt
}
