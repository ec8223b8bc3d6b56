package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func streamingServer(t *testing.T, write func(w http.ResponseWriter, flush func())) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/api/v1/chat" {
			http.NotFound(w, r)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("response writer does not support flushing")
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.WriteHeader(http.StatusOK)
		write(w, flusher.Flush)
	}))
}

func writeChunk(w http.ResponseWriter, flush func(), content string, done bool) {
	json.NewEncoder(w).Encode(streamChunk{Content: content, Done: done})
	flush()
}

func newTestClient(url string) *Client {
	return New(Config{BaseURL: url, ReadTimeout: 2 * time.Second}, NewStore())
}

func TestSubmitAccumulatesFragments(t *testing.T) {
	server := streamingServer(t, func(w http.ResponseWriter, flush func()) {
		writeChunk(w, flush, "Hel", false)
		writeChunk(w, flush, "lo", false)
		writeChunk(w, flush, "", true)
	})
	defer server.Close()

	client := newTestClient(server.URL)
	if err := client.Submit(context.Background(), "hi"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	messages := client.Store().Messages()
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Role != RoleUser || messages[0].Content != "hi" {
		t.Errorf("unexpected user message: %+v", messages[0])
	}
	if messages[1].Role != RoleAssistant || messages[1].Content != "Hello" {
		t.Errorf("expected assistant message 'Hello', got %+v", messages[1])
	}
	if client.Store().Busy() {
		t.Error("client should not be busy after completion")
	}
}

func TestSubmitSendsFullHistory(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		writeChunk(w, func() {}, "ok", false)
		writeChunk(w, func() {}, "", true)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	client.Store().AppendMessage(Message{Role: RoleUser, Content: "earlier"})
	client.Store().AppendMessage(Message{Role: RoleAssistant, Content: "reply"})

	if err := client.Submit(context.Background(), "next"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if !got.Stream {
		t.Error("expected stream:true")
	}
	if len(got.Messages) != 3 {
		t.Fatalf("expected 3 messages in request, got %d", len(got.Messages))
	}
	if got.Messages[2].Content != "next" || got.Messages[2].Role != RoleUser {
		t.Errorf("unexpected last request message: %+v", got.Messages[2])
	}
}

func TestSubmitServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "rate limited")
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.Submit(context.Background(), "hi")
	if err == nil {
		t.Fatal("expected error")
	}

	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected *RequestError, got %T", err)
	}
	if want := "Failed to send message: 500 rate limited"; err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}

	state := client.Store().Snapshot()
	if len(state.Messages) != 1 {
		t.Errorf("expected only the user message, got %d messages", len(state.Messages))
	}
	if state.Loading || state.Streaming {
		t.Error("loading and streaming should be reset after failure")
	}
	if state.Err == nil {
		t.Error("store should record the error")
	}
}

func TestSubmitIncompleteStream(t *testing.T) {
	server := streamingServer(t, func(w http.ResponseWriter, flush func()) {
		writeChunk(w, flush, "partial", false)
		// connection closes without a done chunk
	})
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.Submit(context.Background(), "hi")
	if !errors.Is(err, ErrIncompleteStream) {
		t.Fatalf("expected ErrIncompleteStream, got %v", err)
	}

	messages := client.Store().Messages()
	if len(messages) != 1 {
		t.Errorf("partial content must not be committed, got %d messages", len(messages))
	}
	if client.Store().Busy() {
		t.Error("client should be ready for another submission")
	}
}

func TestSubmitMalformedChunk(t *testing.T) {
	server := streamingServer(t, func(w http.ResponseWriter, flush func()) {
		fmt.Fprintln(w, "{not json")
		flush()
	})
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.Submit(context.Background(), "hi")

	var malformed *MalformedChunkError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected *MalformedChunkError, got %v", err)
	}
	if malformed.Line != "{not json" {
		t.Errorf("unexpected offending line %q", malformed.Line)
	}
}

func TestSubmitRejectsConcurrent(t *testing.T) {
	release := make(chan struct{})
	server := streamingServer(t, func(w http.ResponseWriter, flush func()) {
		writeChunk(w, flush, "slow", false)
		<-release
		writeChunk(w, flush, "", true)
	})
	defer server.Close()

	client := newTestClient(server.URL)

	var wg sync.WaitGroup
	wg.Add(1)
	firstErr := make(chan error, 1)
	go func() {
		defer wg.Done()
		firstErr <- client.Submit(context.Background(), "first")
	}()

	// Wait for the first submission to be mid-stream.
	deadline := time.Now().Add(time.Second)
	for !client.Store().Busy() {
		if time.Now().After(deadline) {
			t.Fatal("first submission never started streaming")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := client.Submit(context.Background(), "second"); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}

	close(release)
	wg.Wait()
	if err := <-firstErr; err != nil {
		t.Errorf("first submission failed: %v", err)
	}

	// The rejected submission must not have touched the history.
	for _, m := range client.Store().Messages() {
		if m.Content == "second" {
			t.Error("rejected submission leaked into history")
		}
	}
}

func TestSubmitReadTimeout(t *testing.T) {
	server := streamingServer(t, func(w http.ResponseWriter, flush func()) {
		writeChunk(w, flush, "start", false)
		time.Sleep(500 * time.Millisecond)
		writeChunk(w, flush, "", true)
	})
	defer server.Close()

	client := New(Config{BaseURL: server.URL, ReadTimeout: 50 * time.Millisecond}, NewStore())
	err := client.Submit(context.Background(), "hi")
	if !errors.Is(err, ErrIncompleteStream) {
		t.Fatalf("expected ErrIncompleteStream after stalled stream, got %v", err)
	}
	if client.Store().Busy() {
		t.Error("client should recover after a timeout")
	}
}

func TestSubmitRecoversAfterError(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			fmt.Fprint(w, "upstream failed")
			return
		}
		w.WriteHeader(http.StatusOK)
		writeChunk(w, func() {}, "recovered", false)
		writeChunk(w, func() {}, "", true)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	if err := client.Submit(context.Background(), "first"); err == nil {
		t.Fatal("expected first submission to fail")
	}
	if client.Store().Snapshot().Err == nil {
		t.Fatal("store should hold the error")
	}

	if err := client.Submit(context.Background(), "second"); err != nil {
		t.Fatalf("second submission failed: %v", err)
	}

	state := client.Store().Snapshot()
	if state.Err != nil {
		t.Errorf("error should be cleared on resubmission, got %v", state.Err)
	}
	last := state.Messages[len(state.Messages)-1]
	if last.Role != RoleAssistant || last.Content != "recovered" {
		t.Errorf("unexpected final message: %+v", last)
	}
}

func TestOnFragmentCallback(t *testing.T) {
	server := streamingServer(t, func(w http.ResponseWriter, flush func()) {
		writeChunk(w, flush, "a", false)
		writeChunk(w, flush, "b", false)
		writeChunk(w, flush, "c", false)
		writeChunk(w, flush, "", true)
	})
	defer server.Close()

	var fragments []string
	client := New(Config{
		BaseURL:     server.URL,
		ReadTimeout: 2 * time.Second,
		OnFragment:  func(f string) { fragments = append(fragments, f) },
	}, NewStore())

	if err := client.Submit(context.Background(), "hi"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if got := strings.Join(fragments, ""); got != "abc" {
		t.Errorf("expected fragments to concatenate to 'abc', got %q", got)
	}
}
