package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/terra-clan/humanarch/internal/events"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamMessage is a frame sent to websocket clients
type StreamMessage struct {
	Type  string        `json:"type"`
	Data  string        `json:"data,omitempty"`
	Event *events.Event `json:"event,omitempty"`
}

func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.registry.Get(r.Context(), id); err != nil {
		respondDomainError(w, err, "load session")
		return
	}
	s.streamTopic(w, r, id)
}

func (s *Server) handleCommunityEvents(w http.ResponseWriter, r *http.Request) {
	s.streamTopic(w, r, events.CommunityTopic)
}

// streamTopic upgrades the connection and forwards every event published
// on topic until either side goes away. Client frames are ignored.
func (s *Server) streamTopic(w http.ResponseWriter, r *http.Request, topic string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	ch, unsubscribe := s.bus.Subscribe(topic)
	defer unsubscribe()

	slog.Info("event stream connected", "topic", topic)

	if err := s.sendStreamMessage(conn, StreamMessage{Type: "connected", Data: topic}); err != nil {
		return
	}

	// Reader: detect close and keep the read deadline fresh
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("websocket read error", "error", err)
				}
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			slog.Info("event stream disconnected", "topic", topic)
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				s.sendStreamMessage(conn, StreamMessage{Type: "closed"})
				return
			}
			if err := s.sendStreamMessage(conn, StreamMessage{Type: "event", Event: &ev}); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) sendStreamMessage(conn *websocket.Conn, msg StreamMessage) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		slog.Debug("failed to send stream message", "error", err)
		return err
	}
	return nil
}
