package chi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	dommsg "github.com/kailas-cloud/rendezvous/internal/domain/message"
	"github.com/kailas-cloud/rendezvous/internal/logger"
)

// StreamConfig holds websocket push settings.
type StreamConfig struct {
	PingInterval time.Duration
	PongWait     time.Duration
	WriteTimeout time.Duration
	// CheckOrigin defaults to accepting every origin; callers are authenticated by header.
	CheckOrigin func(r *http.Request) bool
}

func (c *StreamConfig) applyDefaults() {
	if c.PingInterval <= 0 {
		c.PingInterval = 25 * time.Second
	}
	if c.PongWait <= c.PingInterval {
		c.PongWait = c.PingInterval * 2
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.CheckOrigin == nil {
		c.CheckOrigin = func(*http.Request) bool { return true }
	}
}

// StreamSession handles GET /v1/sessions/{id}/stream.
// Events are pushed as JSON text frames; the connection closes after session_ended.
func (s *Server) StreamSession(w http.ResponseWriter, r *http.Request, id SessionID, params CallerParams) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, err := s.svc.Messages.Subscribe(ctx, id, params.CallerID)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.stream.CheckOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error.
		s.logger.Warn("websocket upgrade failed", zap.String("session_id", id), zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	log := logger.FromContextOr(r.Context(), s.logger).With(zap.String("session_id", id))
	log.Debug("stream opened")

	go s.readPump(conn, cancel)
	s.writePump(ctx, conn, events, log)

	log.Debug("stream closed")
}

// readPump drains client frames and keeps the read deadline alive on pong.
func (s *Server) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(s.stream.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.stream.PongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(
	ctx context.Context, conn *websocket.Conn, events <-chan dommsg.Event, log *zap.Logger,
) {
	ticker := time.NewTicker(s.stream.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.writeClose(conn, websocket.CloseGoingAway, "")
			return

		case ev, ok := <-events:
			if !ok {
				s.writeClose(conn, websocket.CloseGoingAway, "")
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(s.stream.WriteTimeout))
			if err := conn.WriteJSON(eventToDTO(ev)); err != nil {
				log.Warn("stream write failed", zap.Error(err))
				return
			}
			if ev.Type == dommsg.EventSessionEnded {
				s.writeClose(conn, websocket.CloseNormalClosure, string(dommsg.EventSessionEnded))
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(s.stream.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeClose(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text), time.Now().Add(s.stream.WriteTimeout))
}

func eventToDTO(ev dommsg.Event) StreamEvent {
	out := StreamEvent{Type: string(ev.Type), SessionID: ev.SessionID, At: ev.At.UTC()}
	if ev.Message != nil {
		m := messageToDTO(*ev.Message)
		out.Message = &m
	}
	return out
}
