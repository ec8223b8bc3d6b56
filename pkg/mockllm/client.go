// Package mockllm provides an llm.Client that needs no credentials or
// network. It stands in for a real provider when none is configured, and its
// stream is indistinguishable from a real one by protocol shape.
package mockllm

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/chatopsmvp/chatops-be/pkg/llm"
)

var responses = []string{
	"This is a mock response.",
	"I am a test LLM model.",
	"This response is for testing purposes.",
	"Mock mode is active.",
}

// Client implements the llm.Client interface without external dependencies
type Client struct {
	delay time.Duration

	mu          sync.Mutex
	streamCalls int
}

// Ensure Client implements llm.Client
var _ llm.Client = (*Client)(nil)

// Config holds configuration for the mock client
type Config struct {
	// Delay is the pause between emitted fragments. Zero means no pause,
	// which keeps tests fast.
	Delay time.Duration
}

// NewClient creates a new mock client
func NewClient(config Config) *Client {
	return &Client{delay: config.Delay}
}

// pick selects the canned response for a request. The choice hashes the last
// user message, so identical requests always produce identical streams.
func pick(req llm.ChatRequest) string {
	var last string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			last = req.Messages[i].Content
			break
		}
	}

	h := fnv.New32a()
	h.Write([]byte(last))
	return responses[h.Sum32()%uint32(len(responses))]
}

// fragments splits a response into word-sized pieces whose concatenation
// reproduces the response exactly.
func fragments(response string) []string {
	words := strings.Split(response, " ")
	out := make([]string, 0, len(words))
	for i, w := range words {
		if i < len(words)-1 {
			out = append(out, w+" ")
		} else {
			out = append(out, w)
		}
	}
	return out
}

// StreamChatCompletion implements llm.Client.StreamChatCompletion
func (c *Client) StreamChatCompletion(ctx context.Context, req llm.ChatRequest) (<-chan llm.ChatChunk, error) {
	c.mu.Lock()
	c.streamCalls++
	c.mu.Unlock()

	response := pick(req)
	parts := fragments(response)

	ch := make(chan llm.ChatChunk, len(parts)+1)

	go func() {
		defer close(ch)

		for _, part := range parts {
			if c.delay > 0 {
				select {
				case <-time.After(c.delay):
				case <-ctx.Done():
					return
				}
			}

			select {
			case ch <- llm.ChatChunk{
				Object:  "chat.completion.chunk",
				Created: time.Now().Unix(),
				Model:   "mock-model",
				Choices: []llm.Choice{{Delta: llm.Delta{Content: part}}},
			}:
			case <-ctx.Done():
				return
			}
		}

		reason := "stop"
		select {
		case ch <- llm.ChatChunk{
			Object:  "chat.completion.chunk",
			Created: time.Now().Unix(),
			Model:   "mock-model",
			Choices: []llm.Choice{{FinishReason: &reason}},
		}:
		case <-ctx.Done():
		}
	}()

	return ch, nil
}

// ChatCompletion implements llm.Client.ChatCompletion
func (c *Client) ChatCompletion(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	resp := &llm.ChatResponse{
		ID:      "mock-response",
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   "mock-model",
		Choices: []llm.ResponseChoice{{FinishReason: "stop"}},
	}
	resp.Choices[0].Message.Role = "assistant"
	resp.Choices[0].Message.Content = pick(req)
	return resp, nil
}

// StreamCallCount returns how many streaming requests were made
func (c *Client) StreamCallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streamCalls
}
