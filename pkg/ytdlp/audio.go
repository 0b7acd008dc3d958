package ytdlp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ExtractAudio downloads the audio track of a video into destDir and returns
// the path of the produced file. The container is whatever yt-dlp picks as
// the best audio-only format, remuxed to m4a when possible.
func (c *Client) ExtractAudio(ctx context.Context, url, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("creating audio dir: %w", err)
	}

	template := filepath.Join(destDir, "%(id)s.%(ext)s")
	stdout, stderr, err := c.run(ctx,
		"--extract-audio",
		"--audio-format", "m4a",
		"--no-progress",
		"--no-playlist",
		"--print", "after_move:filepath",
		"-o", template,
		url,
	)
	if err != nil {
		return "", wrapExecError(err, stderr)
	}

	// yt-dlp prints the final path last, after any postprocessor chatter.
	lines := strings.Split(strings.TrimSpace(string(stdout)), "\n")
	path := strings.TrimSpace(lines[len(lines)-1])
	if path == "" {
		return "", fmt.Errorf("yt-dlp did not report an output file for %s", url)
	}

	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("checking extracted audio: %w", err)
	}

	slog.Info("extracted audio", "url", url, "path", path)
	return path, nil
}
