package http

import (
	"io"
	"net/http"
	"time"

	"course-content-service/internal/app"
	"course-content-service/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type feedMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

// autoEventRequest has no required rule: a blank auto-event is ignored, not
// rejected.
type autoEventRequest struct {
	Message string `json:"message"`
}

// FeedHandler serves the feed REST endpoints and the SSE stream.
type FeedHandler struct {
	feed         *app.FeedService
	autoEvents   app.AutoEventSink
	pingInterval time.Duration
	log          zerolog.Logger
}

// NewFeedHandler creates a handler. autoEvents receives materials-collaborator
// events; pingInterval <= 0 disables SSE keep-alive comments.
func NewFeedHandler(feed *app.FeedService, autoEvents app.AutoEventSink, pingInterval time.Duration, log zerolog.Logger) *FeedHandler {
	return &FeedHandler{
		feed:         feed,
		autoEvents:   autoEvents,
		pingInterval: pingInterval,
		log:          log.With().Str("component", "feed_handler").Logger(),
	}
}

// List handles GET /api/courses/:courseId/feed.
func (h *FeedHandler) List(c *gin.Context) {
	items, err := h.feed.List(c.Request.Context(), c.Param("courseId"))
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	success(c, http.StatusOK, gin.H{"items": items})
}

// Create handles POST /api/courses/:courseId/feed.
func (h *FeedHandler) Create(c *gin.Context) {
	var req feedMessageRequest
	if !bind(c, &req) {
		return
	}
	item, err := h.feed.CreatePost(c.Request.Context(), c.Param("courseId"), req.Message)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	success(c, http.StatusCreated, gin.H{"item": item})
}

// Update handles PUT /api/courses/:courseId/feed/:id.
func (h *FeedHandler) Update(c *gin.Context) {
	var req feedMessageRequest
	if !bind(c, &req) {
		return
	}
	item, err := h.feed.UpdatePost(c.Request.Context(), c.Param("courseId"), c.Param("id"), req.Message)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	success(c, http.StatusOK, gin.H{"item": item})
}

// Delete handles DELETE /api/courses/:courseId/feed/:id.
func (h *FeedHandler) Delete(c *gin.Context) {
	if err := h.feed.DeletePost(c.Request.Context(), c.Param("courseId"), c.Param("id")); err != nil {
		failWithError(c, h.log, err)
		return
	}
	success(c, http.StatusOK, gin.H{"deleted": true})
}

// AutoEvent handles POST /api/courses/:courseId/feed/events, the entry point
// for other services (e.g. material uploads) to announce something.
func (h *FeedHandler) AutoEvent(c *gin.Context) {
	var req autoEventRequest
	if !bind(c, &req) {
		return
	}
	if err := h.autoEvents.Emit(c.Request.Context(), c.Param("courseId"), req.Message); err != nil {
		failWithError(c, h.log, err)
		return
	}
	success(c, http.StatusAccepted, gin.H{"accepted": true})
}

// Stream handles GET /api/courses/:courseId/feed/stream as Server-Sent
// Events: a "hello" event first, then one "feed" event per change.
func (h *FeedHandler) Stream(c *gin.Context) {
	courseID := c.Param("courseId")
	sub := h.feed.Subscribe(c.Request.Context(), courseID)
	defer sub.Cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	var ping <-chan time.Time
	if h.pingInterval > 0 {
		ticker := time.NewTicker(h.pingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				// Dropped for falling behind; the client reconnects.
				return false
			}
			name := "feed"
			if ev.Type == domain.FeedEventHello {
				name = "hello"
			}
			c.SSEvent(name, ev)
			return len(c.Errors) == 0
		case <-ping:
			_, err := io.WriteString(w, ": ping\n\n")
			return err == nil
		case <-c.Request.Context().Done():
			return false
		}
	})
}
