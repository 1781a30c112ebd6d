package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"webreplay/pkg/response"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const wsWriteTimeout = 10 * time.Second

func (h *Handler) GetRuns(c *gin.Context) {
	runs := h.runs.List()
	response.List(c, runs, len(runs))
}

func (h *Handler) GetRun(c *gin.Context) {
	run, err := h.runs.Get(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, run)
}

func (h *Handler) CancelRun(c *gin.Context) {
	if err := h.runs.Cancel(c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	response.SuccessWithMessage(c, "Run cancelled", nil)
}

// EventsWebSocket streams the progress of one run until it ends or the client
// goes away.
func (h *Handler) EventsWebSocket(c *gin.Context) {
	runID := c.Query("run_id")
	if runID == "" {
		response.BadRequest(c, "run_id is required")
		return
	}

	updates, unsubscribe, err := h.runs.Subscribe(runID)
	if err != nil {
		h.fail(c, err)
		return
	}
	defer unsubscribe()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	// The client never sends anything; reading only notices when it leaves.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case p, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"),
					time.Now().Add(wsWriteTimeout))
				select {
				case <-gone:
				case <-time.After(wsWriteTimeout):
				}
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(p); err != nil {
				h.log.Debug().Err(err).Str("run", runID).Msg("WebSocket write failed")
				return
			}
		}
	}
}
