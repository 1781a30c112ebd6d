package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"webreplay/internal/store"
	"webreplay/pkg/response"
)

type CreateScheduleRequest struct {
	RecordingID string `json:"recording_id" binding:"required"`
	Cron        string `json:"cron" binding:"required"`
}

func (h *Handler) GetSchedules(c *gin.Context) {
	schedules := h.scheduler.List()
	response.List(c, schedules, len(schedules))
}

func (h *Handler) CreateSchedule(c *gin.Context) {
	var req CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	schedule, err := h.scheduler.AddSchedule(c.Request.Context(), req.RecordingID, req.Cron)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.fail(c, err)
			return
		}
		response.BadRequest(c, err.Error())
		return
	}
	response.SuccessWithMessage(c, "Schedule created", schedule)
}

func (h *Handler) DeleteSchedule(c *gin.Context) {
	if err := h.scheduler.RemoveSchedule(c.Param("recording_id")); err != nil {
		h.fail(c, err)
		return
	}
	response.SuccessWithMessage(c, "Schedule removed", nil)
}
