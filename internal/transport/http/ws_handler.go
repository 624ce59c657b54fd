package http

import (
	"net/http"
	"strings"
	"time"

	"course-content-service/internal/app"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// buildUpgrader accepts any origin when allowedOrigins is empty.
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler pushes course feed envelopes over a websocket.
type WSHandler struct {
	feed     *app.FeedService
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewWSHandler(feed *app.FeedService, allowedOrigins []string, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		feed:     feed,
		upgrader: buildUpgrader(allowedOrigins),
		log:      log.With().Str("component", "ws_handler").Logger(),
	}
}

// ServeFeed handles GET /api/courses/:courseId/feed/ws. The connection is
// push-only; inbound frames are read and discarded to observe closes.
func (h *WSHandler) ServeFeed(c *gin.Context) {
	courseID := c.Param("courseId")

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("course_id", courseID).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Str("course_id", courseID).Logger()
	sub := h.feed.Subscribe(c.Request.Context(), courseID)
	defer sub.Cancel()

	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case ev, ok := <-sub.Events():
				if !ok {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscriber too slow"),
						time.Now().Add(writeWait))
					_ = conn.Close()
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(ev); err != nil {
					wsLog.Debug().Err(err).Msg("ws write error")
					sub.Cancel()
					_ = conn.Close()
					return
				}
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					sub.Cancel()
					_ = conn.Close()
					return
				}
			case <-c.Request.Context().Done():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(writeWait))
				_ = conn.Close()
				return
			case <-closeSignals:
				return
			}
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Debug().Err(err).Msg("Unexpected close")
			}
			break
		}
	}

	close(closeSignals)
	<-writerDone
}
