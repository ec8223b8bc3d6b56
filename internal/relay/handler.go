package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chatopsmvp/chatops-be/internal/circuitbreaker"
	"github.com/chatopsmvp/chatops-be/pkg/llm"
)

// Handler serves the chat endpoint. Each request is handled independently;
// the only state shared across requests is the load-once provider selection
// and the circuit breaker.
type Handler struct {
	selection     Selection
	breaker       *circuitbreaker.CircuitBreaker
	apiTimeout    time.Duration
	streamTimeout time.Duration
	log           *zap.SugaredLogger
}

// NewHandler creates a chat handler for the selected provider.
func NewHandler(sel Selection, apiTimeout, streamTimeout time.Duration, log *zap.SugaredLogger) *Handler {
	return &Handler{
		selection:     sel,
		breaker:       circuitbreaker.New(5, time.Minute),
		apiTimeout:    apiTimeout,
		streamTimeout: streamTimeout,
		log:           log,
	}
}

// Provider returns the name of the selected provider.
func (h *Handler) Provider() string {
	return h.selection.Name
}

// HandleChat handles POST /api/v1/chat.
func (h *Handler) HandleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Stream {
		h.streamChat(c, req)
		return
	}
	h.completeChat(c, req)
}

// completeChat serves stream:false requests with a single JSON body.
func (h *Handler) completeChat(c *gin.Context, req ChatRequest) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.apiTimeout)
	defer cancel()

	var resp *llm.ChatResponse
	err := h.breaker.Call(func() error {
		var callErr error
		resp, callErr = h.selection.Client.ChatCompletion(ctx, llm.ChatRequest{
			Messages: req.Messages,
		})
		return callErr
	})

	if err != nil {
		h.log.Errorw("completion failed", "provider", h.selection.Name, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": h.upstreamMessage(err)})
		return
	}
	if len(resp.Choices) == 0 {
		c.JSON(http.StatusBadGateway, gin.H{"error": "empty response from provider"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": llm.ChatMessage{
			Role:    "assistant",
			Content: resp.Choices[0].Message.Content,
		},
	})
}

// streamChat serves stream:true requests as newline-delimited JSON. Once
// streaming has begun, a provider failure terminates the response without
// a done:true chunk; clients treat that as an incomplete stream.
func (h *Handler) streamChat(c *gin.Context, req ChatRequest) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.streamTimeout)
	defer cancel()

	var chunks <-chan llm.ChatChunk
	err := h.breaker.Call(func() error {
		var callErr error
		chunks, callErr = h.selection.Client.StreamChatCompletion(ctx, llm.ChatRequest{
			Messages: req.Messages,
			Stream:   true,
		})
		return callErr
	})

	if err != nil {
		h.log.Errorw("stream open failed", "provider", h.selection.Name, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": h.upstreamMessage(err)})
		return
	}

	c.Writer.Header().Set("Content-Type", "application/x-ndjson")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	enc := json.NewEncoder(c.Writer)
	start := time.Now()
	sent := 0

	err = Pump(ctx, chunks, h.apiTimeout, func(chunk StreamChunk) error {
		// Encode writes the trailing newline that frames each chunk.
		if err := enc.Encode(chunk); err != nil {
			return err
		}
		c.Writer.Flush()
		sent++
		return nil
	})

	if err != nil {
		// Cancel the upstream call so the provider goroutine stops; the
		// response ends here without a terminal chunk.
		cancel()
		h.log.Warnw("stream aborted",
			"provider", h.selection.Name,
			"error", err,
			"chunks_sent", sent,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return
	}

	h.log.Infow("stream completed",
		"provider", h.selection.Name,
		"chunks_sent", sent,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// upstreamMessage keeps provider errors terse for clients while the full
// error goes to the log.
func (h *Handler) upstreamMessage(err error) string {
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return "provider temporarily unavailable"
	}
	return fmt.Sprintf("provider request failed: %v", err)
}
