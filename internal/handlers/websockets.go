package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMsgSize       = 1 << 12 // 4 KB
	defaultInterval  = 2 * time.Second
	maxInterval      = 10 * time.Second
	maxIntervalMilli = 10_000

	frameSnapshot = "snapshot"
	msgRefresh    = "refresh"
)

// wsEnvelope wraps every frame in both directions.
type wsEnvelope struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// The dashboard UI may be served from another origin.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsSession is one connected dashboard. Only run writes to conn.
type wsSession struct {
	h        *Handler
	conn     *websocket.Conn
	interval time.Duration
	refresh  chan struct{}
	done     chan struct{}
}

// @Summary      Dashboard stream
// @Description  WebSocket. Pushes {"type":"snapshot","data":...} every interval (?interval=2s or ?interval_ms=2000, max 10s). Send {"type":"refresh"} for an immediate frame. Authenticate with ?token= or the Authorization header.
// @Tags         dashboard
// @Param        token  query  string  false  "Session token"
// @Failure      401  {object}  map[string]string
// @Router       /ws [get]
// @Security     BearerAuth
func (h *Handler) wsConnect(c *gin.Context) {
	interval := h.parseInterval(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	s := &wsSession{
		h:        h,
		conn:     conn,
		interval: interval,
		refresh:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go s.read()
	s.run(c.Request.Context())
}

// parseInterval reads ?interval=2s or ?interval_ms=2000; out-of-range values use the default.
func (h *Handler) parseInterval(c *gin.Context) time.Duration {
	if s := c.Query("interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 && d <= maxInterval {
			return d
		}
	}
	if ms := c.Query("interval_ms"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 && v <= maxIntervalMilli {
			return time.Duration(v) * time.Millisecond
		}
	}
	return defaultInterval
}

func (s *wsSession) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ping.Stop()
	}()

	if err := s.sendSnapshot(ctx); err != nil {
		s.logInfo("ws_write_failed_initial", err)
		return
	}

	for {
		var err error
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err = s.conn.WriteMessage(websocket.PingMessage, nil)
		case <-ticker.C:
			err = s.sendSnapshot(ctx)
		case <-s.refresh:
			err = s.sendSnapshot(ctx)
		}
		if err != nil {
			s.logInfo("ws_write_failed", err)
			return
		}
	}
}

// read handles control frames and client requests until the peer goes away.
func (s *wsSession) read() {
	defer close(s.done)

	s.conn.SetReadLimit(maxMsgSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg wsEnvelope
		if err := s.conn.ReadJSON(&msg); err != nil {
			// a frame that is not an envelope; keep the connection
			if isJSONError(err) {
				continue
			}
			s.logInfo("ws_read_closed", err)
			return
		}
		if msg.Type == msgRefresh {
			select {
			case s.refresh <- struct{}{}:
			default:
			}
		}
	}
}

func (s *wsSession) sendSnapshot(ctx context.Context) error {
	snap := s.h.services.Monitoring.Snapshot(ctx)
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(wsEnvelope{Type: frameSnapshot, Data: snap})
}

func (s *wsSession) logInfo(key string, err error) {
	if s.h.log != nil {
		s.h.log.Infow(key, "err", err)
	}
}

func isJSONError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}
