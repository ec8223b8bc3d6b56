// Package relay turns provider-native completion streams into the
// normalized chunk stream clients consume.
package relay

import "github.com/chatopsmvp/chatops-be/pkg/llm"

// StreamChunk is the unit of the wire protocol. Exactly one chunk per
// stream has Done=true and it is the last one; a stream that ends without
// it is incomplete.
type StreamChunk struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`
}

// ChatRequest is the request body accepted by the chat endpoints.
type ChatRequest struct {
	Messages []llm.ChatMessage `json:"messages"`
	Stream   bool              `json:"stream"`
}

// Validate checks the request invariants: messages must be non-empty and
// the last entry must come from the user.
func (r ChatRequest) Validate() error {
	if len(r.Messages) == 0 {
		return errEmptyMessages
	}
	if r.Messages[len(r.Messages)-1].Role != "user" {
		return errLastNotUser
	}
	return nil
}
