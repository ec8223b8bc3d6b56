package chatclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// streamChunk mirrors the relay's wire unit.
type streamChunk struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`
}

type chatRequest struct {
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// Config holds configuration for the chat client
type Config struct {
	// BaseURL is the relay root, e.g. http://localhost:8080
	BaseURL string

	// HTTPClient defaults to a client without an overall timeout;
	// streams are bounded by ReadTimeout instead.
	HTTPClient *http.Client

	// ReadTimeout cancels the exchange when no chunk arrives within the
	// window. Default: 30s.
	ReadTimeout time.Duration

	// OnFragment, when set, is called with each fragment as it arrives,
	// before the message is finalized. Useful for incremental rendering.
	OnFragment func(fragment string)
}

// Client submits chat messages and consumes the relay's chunk stream. One
// exchange may be in flight at a time; Submit returns ErrBusy otherwise.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	readTimeout time.Duration
	onFragment  func(string)
	store       *Store

	mu       sync.Mutex
	inFlight bool
}

// New creates a client writing its state into store
func New(config Config, store *Store) *Client {
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = 30 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		httpClient:  config.HTTPClient,
		readTimeout: config.ReadTimeout,
		onFragment:  config.OnFragment,
		store:       store,
	}
}

// Store returns the state container the client writes into
func (c *Client) Store() *Store {
	return c.store
}

// Submit sends content as a user message and blocks until the exchange
// reaches a terminal outcome. On success exactly one assistant message has
// been appended; on error the history holds only the optimistic user
// message and the error is recorded in the store. Either way the client is
// immediately ready for another submission.
func (c *Client) Submit(ctx context.Context, content string) error {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return ErrBusy
	}
	c.inFlight = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
		c.store.SetLoading(false)
		c.store.SetStreaming(false)
	}()

	// Optimistic append before any network activity.
	c.store.AppendMessage(Message{Role: RoleUser, Content: content})
	c.store.SetLoading(true)
	c.store.ClearError()

	err := c.exchange(ctx)
	if err != nil {
		c.store.SetError(err)
	}
	return err
}

func (c *Client) exchange(ctx context.Context) error {
	body, err := json.Marshal(chatRequest{
		Messages: c.store.Messages(),
		Stream:   true,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	// The watchdog cancels the request when no chunk arrives in time; it
	// is re-armed on every read below.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	watchdog := time.AfterFunc(c.readTimeout, cancel)
	defer watchdog.Stop()

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/chat", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &RequestError{Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	c.store.SetStreaming(true)

	// The line scanner buffers partial reads, so wire block boundaries
	// need not align with chunk boundaries.
	var accumulated strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		watchdog.Reset(c.readTimeout)

		var chunk streamChunk
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			cancel()
			return &MalformedChunkError{Line: line, Err: err}
		}

		if chunk.Done {
			c.store.AppendMessage(Message{
				Role:    RoleAssistant,
				Content: accumulated.String(),
			})
			return nil
		}

		accumulated.WriteString(chunk.Content)
		if c.onFragment != nil && chunk.Content != "" {
			c.onFragment(chunk.Content)
		}
	}

	// End of stream without a terminal chunk: the accumulation is
	// discarded, whatever the cause of the truncation.
	return ErrIncompleteStream
}
