package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chatbot/internal/engine"
	"chatbot/internal/metrics"
)

// WSMessage is the optional JSON framing on /ws/chat. Plain text frames are
// answered with plain text.
type WSMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	UserID  string `json:"user_id,omitempty"`
}

type chatHub struct {
	engine   *engine.Engine
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func newChatHub(e *engine.Engine, log zerolog.Logger) *chatHub {
	return &chatHub{
		engine: e,
		log:    log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// serve answers each inbound frame before reading the next, so replies on
// one connection keep arrival order.
func (h *chatHub) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	id := uuid.NewString()
	log := h.log.With().Str("conn_id", id).Logger()

	metrics.WSConnections.Inc()
	log.Info().Str("remote", r.RemoteAddr).Msg("websocket connected")

	defer func() {
		metrics.WSConnections.Dec()
		conn.Close()
		log.Info().Msg("websocket disconnected")
	}()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("websocket read error")
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		if err := h.reply(r, conn, data); err != nil {
			log.Warn().Err(err).Msg("websocket write error")
			return
		}
	}
}

func (h *chatHub) reply(r *http.Request, conn *websocket.Conn, data []byte) error {
	var msg WSMessage
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") && json.Unmarshal(data, &msg) == nil && msg.Type != "" {
		if msg.Type != "message" {
			return conn.WriteJSON(WSMessage{Type: "error", Content: "unsupported message type: " + msg.Type})
		}
		out := h.engine.SubmitMessage(r.Context(), msg.Content)
		return conn.WriteJSON(WSMessage{Type: "message", Content: out, UserID: msg.UserID})
	}
	out := h.engine.SubmitMessage(r.Context(), string(data))
	return conn.WriteMessage(websocket.TextMessage, []byte(out))
}
