package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"webreplay/internal/models"
	"webreplay/internal/services"
	"webreplay/internal/store"
	"webreplay/pkg/response"
)

// Handler serves the HTTP API over the recording store and the run services.
type Handler struct {
	store           store.Store
	runs            *services.RunManager
	scheduler       *services.SchedulerService
	captureDuration time.Duration
	log             zerolog.Logger
}

func New(st store.Store, runs *services.RunManager, scheduler *services.SchedulerService, captureDuration time.Duration, log zerolog.Logger) *Handler {
	return &Handler{
		store:           st,
		runs:            runs,
		scheduler:       scheduler,
		captureDuration: captureDuration,
		log:             log,
	}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	response.Success(c, gin.H{
		"status":  "ok",
		"running": h.runs.Running(),
		"time":    time.Now(),
	})
}

// fail maps domain errors onto HTTP replies.
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, services.ErrRunNotFound),
		errors.Is(err, services.ErrScheduleNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, services.ErrTooManyRuns):
		response.TooManyRequests(c, err.Error())
	case errors.Is(err, services.ErrShutdown):
		response.ServiceUnavailable(c, err.Error())
	case errors.Is(err, models.ErrEmptySession),
		errors.Is(err, models.ErrNoStartURL):
		response.Conflict(c, err.Error())
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		response.InternalServerError(c, err.Error())
	}
}
