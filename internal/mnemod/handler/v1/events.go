package v1

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mnemora/mnemora/internal/mnemod/service/runtime"
)

// EventsHandler serves the event history.
type EventsHandler struct {
	runtime *runtime.Runtime
}

// NewEventsHandler creates the handler.
func NewEventsHandler(rt *runtime.Runtime) *EventsHandler {
	return &EventsHandler{runtime: rt}
}

// History lists retained events. Supported query parameters: name, limit
// and since (RFC3339).
func (h *EventsHandler) History(c *gin.Context) {
	name := c.Query("name")

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = parsed
	}

	var since time.Time
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be an RFC3339 timestamp"})
			return
		}
		since = parsed
	}

	events := h.runtime.Bus().History(name, limit, since)
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}
