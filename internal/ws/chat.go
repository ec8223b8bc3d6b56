// Package ws carries the normalized chunk protocol over a WebSocket
// connection: the client sends one chat request per text message and
// receives the same chunk sequence the HTTP endpoint would stream.
package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/chatopsmvp/chatops-be/internal/api/middleware"
	"github.com/chatopsmvp/chatops-be/internal/relay"
	"github.com/chatopsmvp/chatops-be/pkg/llm"
)

// ChatHandler handles WebSocket chat connections
type ChatHandler struct {
	selection     relay.Selection
	apiTimeout    time.Duration
	streamTimeout time.Duration
	msgPerMinute  int
	upgrader      websocket.Upgrader
	log           *zap.SugaredLogger
}

// errorFrame is sent when an exchange fails before or during streaming.
// A connection that received an errorFrame has seen no done:true chunk for
// that exchange; its accumulation must be discarded.
type errorFrame struct {
	Error string `json:"error"`
}

// NewChatHandler creates a new chat handler
func NewChatHandler(sel relay.Selection, apiTimeout, streamTimeout time.Duration, msgPerMinute int, allowOrigins []string, log *zap.SugaredLogger) *ChatHandler {
	allowed := make(map[string]bool, len(allowOrigins))
	wildcard := false
	for _, o := range allowOrigins {
		if o == "*" {
			wildcard = true
		}
		allowed[o] = true
	}

	return &ChatHandler{
		selection:     sel,
		apiTimeout:    apiTimeout,
		streamTimeout: streamTimeout,
		msgPerMinute:  msgPerMinute,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Non-browser clients send no Origin header.
				return origin == "" || wildcard || allowed[origin]
			},
		},
		log: log,
	}
}

// HandleChat handles GET /ws/chat.
func (h *ChatHandler) HandleChat(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warnw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	limiter := middleware.NewMessageLimiter(h.msgPerMinute)

	for {
		var req relay.ChatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.Warnw("websocket read failed", "error", err)
			}
			return
		}

		if !limiter.Allow() {
			if err := conn.WriteJSON(errorFrame{Error: "Rate limit exceeded. Please slow down."}); err != nil {
				return
			}
			continue
		}

		if err := h.handleExchange(c, conn, req); err != nil {
			return
		}
	}
}

// handleExchange runs one request/stream exchange. A returned error means
// the connection is unusable and should be dropped.
func (h *ChatHandler) handleExchange(c *gin.Context, conn *websocket.Conn, req relay.ChatRequest) error {
	if err := req.Validate(); err != nil {
		return conn.WriteJSON(errorFrame{Error: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.streamTimeout)
	defer cancel()

	chunks, err := h.selection.Client.StreamChatCompletion(ctx, llm.ChatRequest{
		Messages: req.Messages,
		Stream:   true,
	})
	if err != nil {
		h.log.Errorw("stream open failed", "provider", h.selection.Name, "error", err)
		return conn.WriteJSON(errorFrame{Error: "provider request failed"})
	}

	err = relay.Pump(ctx, chunks, h.apiTimeout, func(chunk relay.StreamChunk) error {
		return conn.WriteJSON(chunk)
	})
	if err != nil {
		cancel()
		h.log.Warnw("stream aborted", "provider", h.selection.Name, "error", err)
		// Write errors mean the peer is gone; anything else is reported
		// on the still-usable connection.
		if writeErr := conn.WriteJSON(errorFrame{Error: "stream interrupted"}); writeErr != nil {
			return writeErr
		}
	}
	return nil
}
