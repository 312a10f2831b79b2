package api

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/nutrilog/backend/internal/service"
)

// EventsHandler streams meal lifecycle events to connected clients over
// server-sent events. The home screen uses this to refresh its daily
// totals the moment a capture lands.
type EventsHandler struct {
	notifier *service.Notifier
}

func NewEventsHandler(notifier *service.Notifier) *EventsHandler {
	return &EventsHandler{notifier: notifier}
}

func (h *EventsHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/events", h.Stream)
}

func (h *EventsHandler) Stream(c *gin.Context) {
	sub := h.notifier.Subscribe()
	defer sub.Close()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-sub.C:
			if !ok {
				return false
			}
			c.SSEvent("message", event)
			return true
		case <-ctx.Done():
			return false
		}
	})
}
