package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/quickbite/backend/internal/realtime"
)

type StreamHandler struct {
	hub *realtime.Hub
}

// Counters streams counter updates as server-sent events. ?recipe_id=N
// restricts the stream to one recipe.
func (h *StreamHandler) Counters(c *gin.Context) {
	if h.hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Realtime updates unavailable"})
		return
	}

	only := 0
	if raw := c.Query("recipe_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid recipe ID"})
			return
		}
		only = id
	}

	updates, cancel := h.hub.Subscribe()
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case u, ok := <-updates:
			if !ok {
				return false
			}
			if only == 0 || u.RecipeID == only {
				c.SSEvent("counters", u)
			}
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
