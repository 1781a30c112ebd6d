package handlers

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"webreplay/internal/services"
	"webreplay/pkg/response"
)

type StartRecordingRequest struct {
	URL             string `json:"url" binding:"required"`
	Name            string `json:"name" binding:"max=200"`
	DurationSeconds int    `json:"duration_seconds" binding:"min=0,max=3600"`
}

func (h *Handler) StartRecording(c *gin.Context) {
	var req StartRecordingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if u, err := url.Parse(req.URL); err != nil || u.Scheme == "" || u.Host == "" {
		response.BadRequest(c, "url must be absolute")
		return
	}

	duration := h.captureDuration
	if req.DurationSeconds > 0 {
		duration = time.Duration(req.DurationSeconds) * time.Second
	}

	run, err := h.runs.StartCapture(req.URL, req.Name, duration)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Accepted(c, "Recording started", run)
}

// GetRecordingStatus reports the capture run that produces recording id.
func (h *Handler) GetRecordingStatus(c *gin.Context) {
	run, err := h.runs.Get(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if run.Kind != services.KindCapture {
		response.NotFound(c, "recording session not found")
		return
	}
	response.Success(c, gin.H{
		"is_recording": !run.Finished(),
		"status":       run.Status,
		"captured":     run.Events,
		"error":        run.Error,
	})
}

func (h *Handler) GetRecordings(c *gin.Context) {
	recordings, err := h.store.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.List(c, recordings, len(recordings))
}

func (h *Handler) GetRecording(c *gin.Context) {
	rec, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	session, err := rec.GetSession()
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{
		"recording": rec,
		"counts":    session.Counts(),
	})
}

// GetRecordingLog returns the raw session log, ready for the replay command.
func (h *Handler) GetRecordingLog(c *gin.Context) {
	rec, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+rec.ID+`.json"`)
	c.Data(http.StatusOK, "application/json", []byte(rec.Log))
}

func (h *Handler) DeleteRecording(c *gin.Context) {
	id := c.Param("id")
	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	// a schedule of a deleted recording has nothing left to replay
	_ = h.scheduler.RemoveSchedule(id)
	response.SuccessWithMessage(c, "Recording deleted", nil)
}

func (h *Handler) ReplayRecording(c *gin.Context) {
	run, err := h.runs.StartReplay(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Accepted(c, "Replay started", run)
}
