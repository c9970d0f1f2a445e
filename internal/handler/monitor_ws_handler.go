package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/seatwatch/seatwatch-backend/internal/middleware"
	"github.com/seatwatch/seatwatch-backend/internal/monitor"
	"github.com/seatwatch/seatwatch-backend/internal/response"
)

const wsWriteTimeout = 10 * time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
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

// MonitorWSHandler streams live scheduler events to staff clients.
type MonitorWSHandler struct {
	hub      *monitor.EventHub
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewMonitorWSHandler creates a new MonitorWSHandler.
func NewMonitorWSHandler(hub *monitor.EventHub, log zerolog.Logger, allowedOrigins []string) *MonitorWSHandler {
	return &MonitorWSHandler{
		hub:      hub,
		log:      log.With().Str("component", "monitor_ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// Stream godoc
// WS /ws/v1/monitor/stream
// Upgrades to WebSocket and forwards scheduler events as JSON frames until
// the client disconnects. Staff enforcement lives in the route's middleware.
func (h *MonitorWSHandler) Stream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	events, cancel := h.hub.Subscribe()
	defer cancel()

	wsLog := h.log.With().Int64("user_id", claims.UserID).Logger()
	wsLog.Info().Msg("Staff monitor stream connected")

	// Reader goroutine drains client frames so pings and close frames are
	// processed; its exit signals disconnect.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(evt); err != nil {
				wsLog.Debug().Err(err).Msg("Monitor stream write failed")
				return
			}
		case <-done:
			wsLog.Info().Msg("Staff monitor stream disconnected")
			return
		}
	}
}
