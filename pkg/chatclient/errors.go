package chatclient

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when Submit is called while an exchange is in
	// flight. The protocol allows one request per client instance.
	ErrBusy = errors.New("a message is already in flight")

	// ErrIncompleteStream is returned when the response stream ends
	// before a done:true chunk arrives. Nothing is committed to history.
	ErrIncompleteStream = errors.New("stream ended before completion")
)

// RequestError reports a non-success HTTP response from the relay. Status
// and body are surfaced verbatim.
type RequestError struct {
	Status int
	Body   string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("Failed to send message: %d %s", e.Status, e.Body)
}

// MalformedChunkError reports a stream unit that failed to parse. It is
// fatal for the exchange; malformed chunks are never skipped.
type MalformedChunkError struct {
	Line string
	Err  error
}

func (e *MalformedChunkError) Error() string {
	return fmt.Sprintf("malformed stream chunk %q: %v", e.Line, e.Err)
}

func (e *MalformedChunkError) Unwrap() error {
	return e.Err
}
