// Package api serves the authenticated internal HTTP surface: audio
// streaming for workers, transcription upload, ad-hoc job submission, and the
// clip-creation entry point.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"vodscribe.tv/vodscribe/internal/db"
	"vodscribe.tv/vodscribe/internal/jobstore"
	"vodscribe.tv/vodscribe/internal/pipeline"
	"vodscribe.tv/vodscribe/internal/tasks"
	"vodscribe.tv/vodscribe/internal/transcriber"
)

// Store is the queries surface the API reads and writes.
type Store interface {
	GetVideo(ctx context.Context, id int64) (*db.Video, error)
	ListVideosByChannel(ctx context.Context, channelID int64) ([]*db.Video, error)
	InsertTranscription(ctx context.Context, params *db.InsertTranscriptionParams) (*db.Transcription, error)
}

// Enqueuer submits work to the broker.
type Enqueuer interface {
	Enqueue(ctx context.Context, name string, input any) error
	EnqueueChain(ctx context.Context, names []string, input any) error
}

// ClipQueue is the auxiliary FIFO for clip-creation requests.
type ClipQueue interface {
	Enqueue(ctx context.Context, broadcasterID string) string
}

type Server struct {
	store  Store
	jobs   *jobstore.Store
	broker Enqueuer
	clips  ClipQueue
	apiKey string
}

func NewServer(store Store, jobs *jobstore.Store, broker Enqueuer, clips ClipQueue, apiKey string) *Server {
	return &Server{store: store, jobs: jobs, broker: broker, clips: clips, apiKey: apiKey}
}

// Router builds the echo instance with the API-key gate applied to every
// route.
func (s *Server) Router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup: "header:X-API-Key",
		Validator: func(key string, c echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(key), []byte(s.apiKey)) == 1, nil
		},
	}))

	e.GET("/video/:id/download_audio", s.downloadVideoAudio)
	e.POST("/video/:id/upload_transcription", s.uploadVideoTranscription)
	e.POST("/utils/upload_audio", s.uploadAudio)
	e.GET("/utils/download_audio/:job_id", s.downloadJobAudio)
	e.POST("/utils/upload_transcription/:job_id", s.uploadJobTranscription)
	e.POST("/broadcaster/:id/create_clip", s.createClip)
	e.GET("/channel/:id/fetch_transcriptions", s.fetchChannelTranscriptions)

	return e
}

func parseID(c echo.Context, name string) (int64, error) {
	var id int64
	if err := echo.PathParamsBinder(c).Int64(name, &id).BindError(); err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid %s", name))
	}
	return id, nil
}

func (s *Server) downloadVideoAudio(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	video, err := s.store.GetVideo(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "video not found")
	}
	if !video.HasAudio() {
		return echo.NewHTTPError(http.StatusNotFound, "video has no audio")
	}

	return c.Attachment(*video.AudioPath, filepath.Base(*video.AudioPath))
}

func (s *Server) uploadVideoTranscription(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "reading body")
	}

	var result transcriber.Result
	if err := json.Unmarshal(body, &result); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed transcription result")
	}

	tr, err := s.store.InsertTranscription(c.Request().Context(), &db.InsertTranscriptionParams{
		VideoID:       id,
		Source:        db.TranscriptionSourceUnknown,
		Language:      result.Language,
		FileExtension: "json",
		Content:       body,
	})
	if err != nil {
		slog.Error("failed to store transcription", "video_id", id, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "storing transcription")
	}

	slog.Info("stored transcription", "video_id", id, "transcription_id", tr.ID,
		"segments", len(result.Segments))
	return c.JSON(http.StatusCreated, map[string]any{"transcription_id": tr.ID})
}

func (s *Server) uploadAudio(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing file field")
	}

	src, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "opening upload")
	}
	defer src.Close()

	jobID, err := s.jobs.Create(fileHeader.Filename, c.FormValue("user_id"), src)
	if err != nil {
		slog.Error("failed to create upload job", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "creating job")
	}

	if err := s.broker.Enqueue(c.Request().Context(), tasks.TypeTranscribeFile, tasks.FilePayload{JobID: jobID}); err != nil {
		slog.Error("failed to enqueue upload job", "job_id", jobID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "enqueueing job")
	}

	return c.JSON(http.StatusAccepted, map[string]string{"job_id": jobID})
}

func (s *Server) downloadJobAudio(c echo.Context) error {
	jobID := c.Param("job_id")

	path, err := s.jobs.AudioPath(jobID)
	if err != nil {
		if errors.Is(err, jobstore.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "job not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "locating audio")
	}

	return c.Attachment(path, filepath.Base(path))
}

func (s *Server) uploadJobTranscription(c echo.Context) error {
	jobID := c.Param("job_id")

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "reading body")
	}
	var result transcriber.Result
	if err := json.Unmarshal(body, &result); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed transcription result")
	}

	if err := s.jobs.SaveResult(jobID, body); err != nil {
		if errors.Is(err, jobstore.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "job not found")
		}
		slog.Error("failed to save job result", "job_id", jobID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "saving result")
	}

	return c.NoContent(http.StatusNoContent)
}

func (s *Server) createClip(c echo.Context) error {
	broadcasterID := c.Param("id")

	taskID := s.clips.Enqueue(c.Request().Context(), broadcasterID)
	if taskID == "" {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "clip queue unavailable")
	}

	return c.JSON(http.StatusAccepted, map[string]string{"task_id": taskID})
}

func (s *Server) fetchChannelTranscriptions(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	force := c.QueryParam("force") == "true"

	videos, err := s.store.ListVideosByChannel(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "listing videos")
	}

	var queued int
	for _, v := range videos {
		input := tasks.VideoPayload{VideoID: v.ID, Force: force}
		if err := s.broker.EnqueueChain(c.Request().Context(), pipeline.TranscriptionChain(), input); err != nil {
			slog.Error("failed to enqueue pipeline", "video_id", v.ID, "error", err)
			continue
		}
		queued++
	}

	return c.JSON(http.StatusAccepted, map[string]int{"queued": queued})
}
