// Package chatclient consumes a relay chunk stream and maintains the chat
// state for a front-end: message history, loading and streaming flags, and
// the last error.
package chatclient

import "sync"

// Message roles as they appear on the wire.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one finalized conversation entry. Immutable once appended.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// State is a point-in-time copy of the store contents.
type State struct {
	Messages  []Message
	Loading   bool
	Streaming bool
	Err       error
}

// Store is an explicit chat state container passed to whoever renders the
// conversation. There is no package-level singleton; each chat surface owns
// its own Store. Safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	messages  []Message
	loading   bool
	streaming bool
	err       error
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{}
}

// AppendMessage adds a finalized message to the history
func (s *Store) AppendMessage(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

// Messages returns a copy of the history
func (s *Store) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// SetLoading marks a request as in flight
func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = loading
}

// SetStreaming marks a response stream as open
func (s *Store) SetStreaming(streaming bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streaming = streaming
}

// SetError records the failure of the current exchange
func (s *Store) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// ClearError discards any recorded error
func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = nil
}

// Busy reports whether an exchange is in progress. Front-ends disable
// input while this is true.
func (s *Store) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading || s.streaming
}

// Snapshot returns a consistent copy of the full state
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make([]Message, len(s.messages))
	copy(msgs, s.messages)
	return State{
		Messages:  msgs,
		Loading:   s.loading,
		Streaming: s.streaming,
		Err:       s.err,
	}
}
