package mockllm

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/chatopsmvp/chatops-be/pkg/llm"
)

func collect(t *testing.T, ch <-chan llm.ChatChunk) ([]string, bool) {
	t.Helper()

	var parts []string
	finished := false
	for chunk := range ch {
		if chunk.Finished() {
			finished = true
			continue
		}
		parts = append(parts, chunk.Content())
	}
	return parts, finished
}

func TestStreamDeterminism(t *testing.T) {
	client := NewClient(Config{})
	req := llm.ChatRequest{
		Messages: []llm.ChatMessage{{Role: "user", Content: "hello"}},
	}

	ch1, err := client.StreamChatCompletion(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first, _ := collect(t, ch1)

	ch2, err := client.StreamChatCompletion(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _ := collect(t, ch2)

	if len(first) == 0 {
		t.Fatal("no fragments emitted")
	}
	if len(first) != len(second) {
		t.Fatalf("fragment counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("fragment %d differs: %q vs %q", i, first[i], second[i])
		}
	}
}

func TestStreamTerminatesWithFinishChunk(t *testing.T) {
	client := NewClient(Config{})

	ch, err := client.StreamChatCompletion(context.Background(), llm.ChatRequest{
		Messages: []llm.ChatMessage{{Role: "user", Content: "anything"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	parts, finished := collect(t, ch)
	if !finished {
		t.Error("stream closed without a finish chunk")
	}

	full := strings.Join(parts, "")
	found := false
	for _, r := range responses {
		if full == r {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("accumulated text %q is not one of the canned responses", full)
	}
}

func TestStreamFragmentsAreWordSized(t *testing.T) {
	client := NewClient(Config{})

	ch, err := client.StreamChatCompletion(context.Background(), llm.ChatRequest{
		Messages: []llm.ChatMessage{{Role: "user", Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	parts, _ := collect(t, ch)
	if len(parts) < 2 {
		t.Fatalf("expected multiple word fragments, got %d", len(parts))
	}
	for i, p := range parts[:len(parts)-1] {
		if !strings.HasSuffix(p, " ") {
			t.Errorf("fragment %d = %q, want trailing space", i, p)
		}
	}
}

func TestStreamRespectsCancellation(t *testing.T) {
	client := NewClient(Config{Delay: 50 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := client.StreamChatCompletion(ctx, llm.ChatRequest{
		Messages: []llm.ChatMessage{{Role: "user", Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	<-ch
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream channel did not close after cancellation")
		}
	}
}

func TestChatCompletion(t *testing.T) {
	client := NewClient(Config{})

	resp, err := client.ChatCompletion(context.Background(), llm.ChatRequest{
		Messages: []llm.ChatMessage{{Role: "user", Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Choices[0].Message.Role != "assistant" {
		t.Errorf("role = %q, want assistant", resp.Choices[0].Message.Role)
	}
	if resp.Choices[0].Message.Content == "" {
		t.Error("empty content")
	}

	// Non-streaming and streaming paths agree on the chosen response.
	ch, _ := client.StreamChatCompletion(context.Background(), llm.ChatRequest{
		Messages: []llm.ChatMessage{{Role: "user", Content: "hello"}},
	})
	parts, _ := collect(t, ch)
	if got := strings.Join(parts, ""); got != resp.Choices[0].Message.Content {
		t.Errorf("stream text %q != completion text %q", got, resp.Choices[0].Message.Content)
	}
}
