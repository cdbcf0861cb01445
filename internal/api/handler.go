package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"manifest-relay/internal/config"
	"manifest-relay/internal/logger"
	"manifest-relay/internal/model"
	"manifest-relay/internal/storage"
	apperrors "manifest-relay/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// multipartOverhead covers form boundaries and part headers on top of the
// workbook itself.
const multipartOverhead = 64 << 10

type RunQueue interface {
	EnqueueRun(ctx context.Context, job model.RunJob) error
}

type RunStore interface {
	Save(ctx context.Context, run model.Run) error
	Get(ctx context.Context, id string) (*model.Run, error)
}

// RunHistory lists finished runs, newest first.
type RunHistory interface {
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)
}

type Handler struct {
	storage  storage.Storage
	producer RunQueue
	runs     RunStore
	history  RunHistory
	cfg      *config.Config
	now      func() time.Time
	log      zerolog.Logger
}

func NewHandler(
	storage storage.Storage,
	producer RunQueue,
	runs RunStore,
	cfg *config.Config,
) *Handler {
	return &Handler{
		storage:  storage,
		producer: producer,
		runs:     runs,
		cfg:      cfg,
		now:      time.Now,
		log:      logger.Component("api"),
	}
}

// WithHistory enables GET /api/v1/runs.
func (h *Handler) WithHistory(history RunHistory) *Handler {
	h.history = history
	return h
}

// UploadManifest stores the workbook and queues a relay run for it.
// ?day=tomorrow targets the next-day sheets.
func (h *Handler) UploadManifest(c *gin.Context) {
	nextDay, err := parseDay(c.DefaultQuery("day", "today"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	limit := h.cfg.Server.MaxUploadBytes + multipartOverhead
	if c.Request.ContentLength > limit {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Manifest is too large"})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Manifest is too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Select the file first"})
		return
	}
	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".xlsx") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Manifest must be an .xlsx workbook"})
		return
	}
	if fileHeader.Size > h.cfg.Server.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Manifest is too large"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to open uploaded file")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read the selected file"})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil || len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read the selected file"})
		return
	}

	ctx := c.Request.Context()
	now := h.now()
	run := model.Run{
		ID:        uuid.NewString(),
		FileName:  fileHeader.Filename,
		NextDay:   nextDay,
		Status:    model.RunStatusQueued,
		CreatedAt: now.UTC(),
	}
	key := storage.ManifestKey(h.cfg.Storage.S3.Prefix, run.ID, now)

	log := h.log.With().Str("run_id", run.ID).Str("file", run.FileName).Logger()

	if err := h.storage.Upload(ctx, key, bytes.NewReader(data)); err != nil {
		log.Error().Err(err).Msg("Failed to store manifest")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store manifest"})
		return
	}

	if err := h.runs.Save(ctx, run); err != nil {
		log.Error().Err(err).Msg("Failed to record run")
		h.discard(ctx, key)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue run"})
		return
	}

	job := model.RunJob{RunID: run.ID, S3Path: key, FileName: run.FileName, NextDay: nextDay}
	if err := h.producer.EnqueueRun(ctx, job); err != nil {
		log.Error().Err(err).Msg("Failed to enqueue run")
		run.Status = model.RunStatusFailed
		run.ErrorMessage = "failed to queue run"
		if err := h.runs.Save(ctx, run); err != nil {
			log.Warn().Err(err).Msg("Failed to record run failure")
		}
		h.discard(ctx, key)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue run"})
		return
	}

	log.Info().Bool("next_day", nextDay).Int("bytes", len(data)).Msg("Run queued")

	c.JSON(http.StatusAccepted, model.UploadResponse{
		RunID:   run.ID,
		Status:  string(run.Status),
		NextDay: nextDay,
	})
}

func (h *Handler) GetRun(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid run ID"})
		return
	}

	run, err := h.runs.Get(c.Request.Context(), id)
	if errors.Is(err, apperrors.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("run_id", id).Msg("Failed to load run")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, run)
}

func (h *Handler) ListRuns(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run history is not enabled"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
		return
	}

	runs, err := h.history.ListRuns(c.Request.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": h.cfg.App.Name,
		"version": h.cfg.App.Version,
	})
}

func (h *Handler) discard(ctx context.Context, key string) {
	if err := h.storage.Delete(ctx, key); err != nil {
		h.log.Warn().Err(err).Str("key", key).Msg("Failed to remove orphaned manifest")
	}
}

func parseDay(day string) (bool, error) {
	switch strings.ToLower(day) {
	case "today", "":
		return false, nil
	case "tomorrow":
		return true, nil
	}
	return false, fmt.Errorf("day must be today or tomorrow, got %q", day)
}
