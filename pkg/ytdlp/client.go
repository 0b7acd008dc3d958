// Package ytdlp wraps the yt-dlp command line tool for the small set of
// operations the pipeline needs: probing video metadata, listing the videos
// of a channel, and extracting audio tracks.
package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

const defaultBinary = "yt-dlp"

// execFn abstracts command execution so tests can stub the binary.
type execFn func(ctx context.Context, name string, args ...string) ([]byte, []byte, error)

// Client invokes yt-dlp as a subprocess. The zero value is usable and looks
// up the binary on PATH.
type Client struct {
	// Path overrides the yt-dlp binary location.
	Path string
	// ExtraArgs are appended to every invocation, after the built-in args.
	ExtraArgs []string

	execFn execFn
}

// ExecError carries the exit status and captured stderr of a failed
// yt-dlp invocation.
type ExecError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExecError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("yt-dlp exited with code %d: %s", e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("yt-dlp exited with code %d: %v", e.ExitCode, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

func (c *Client) binary() string {
	if c.Path != "" {
		return c.Path
	}
	return defaultBinary
}

func (c *Client) run(ctx context.Context, args ...string) ([]byte, []byte, error) {
	args = append(args, c.ExtraArgs...)
	if c.execFn != nil {
		return c.execFn(ctx, c.binary(), args...)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.binary(), args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

func wrapExecError(err error, stderr []byte) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExecError{
			ExitCode: exitErr.ExitCode(),
			Stderr:   strings.TrimSpace(string(stderr)),
			Err:      err,
		}
	}
	return fmt.Errorf("running yt-dlp: %w", err)
}

// Version returns the version string of the installed yt-dlp binary.
func (c *Client) Version(ctx context.Context) (string, error) {
	stdout, stderr, err := c.run(ctx, "--version")
	if err != nil {
		return "", wrapExecError(err, stderr)
	}
	return strings.TrimSpace(string(stdout)), nil
}

// Update asks yt-dlp to self-update. Platform extractors break often enough
// that workers refresh the binary at startup.
func (c *Client) Update(ctx context.Context) error {
	_, stderr, err := c.run(ctx, "--update")
	return wrapExecError(err, stderr)
}

// VideoInfo is the subset of yt-dlp's --dump-single-json output the
// pipeline consumes.
type VideoInfo struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	WebpageURL string  `json:"webpage_url"`
	Duration   float64 `json:"duration"`
	Timestamp  int64   `json:"timestamp"`
	Uploader   string  `json:"uploader"`
	UploaderID string  `json:"uploader_id"`
	ChannelID  string  `json:"channel_id"`
	IsLive     bool    `json:"is_live"`

	Entries []VideoInfo `json:"entries"`
}

// GetInfo probes a URL without downloading anything.
func (c *Client) GetInfo(ctx context.Context, url string) (*VideoInfo, error) {
	stdout, stderr, err := c.run(ctx,
		"--dump-single-json",
		"--no-download",
		"--no-progress",
		url,
	)
	if err != nil {
		return nil, wrapExecError(err, stderr)
	}

	var info VideoInfo
	if err := json.Unmarshal(stdout, &info); err != nil {
		return nil, fmt.Errorf("parsing yt-dlp output: %w", err)
	}
	return &info, nil
}

// ListChannelVideos lists the videos of a channel or playlist URL using flat
// extraction, so no per-video metadata fetch happens. Entries are returned in
// the order yt-dlp reports them, newest first for channel pages.
func (c *Client) ListChannelVideos(ctx context.Context, channelURL string) ([]VideoInfo, error) {
	stdout, stderr, err := c.run(ctx,
		"--dump-single-json",
		"--flat-playlist",
		"--no-download",
		"--no-progress",
		channelURL,
	)
	if err != nil {
		return nil, wrapExecError(err, stderr)
	}

	var info VideoInfo
	if err := json.Unmarshal(stdout, &info); err != nil {
		return nil, fmt.Errorf("parsing yt-dlp output: %w", err)
	}

	slog.Debug("listed channel videos", "url", channelURL, "count", len(info.Entries))
	return info.Entries, nil
}
