package relay

import (
	"context"
	"errors"
	"time"

	"github.com/chatopsmvp/chatops-be/pkg/llm"
)

var (
	errEmptyMessages = errors.New("messages must not be empty")
	errLastNotUser   = errors.New("last message must have role \"user\"")

	// ErrIdleTimeout reports that the provider made no progress within the
	// configured interval.
	ErrIdleTimeout = errors.New("no provider progress within timeout")

	// ErrStreamIncomplete reports that the provider stream closed without
	// signaling completion.
	ErrStreamIncomplete = errors.New("provider stream ended without completion")
)

// Pump drains a provider chunk stream, forwarding one normalized chunk per
// non-empty fragment through send, and finishes with the terminal
// {content:"", done:true} chunk once the provider signals completion.
//
// It returns nil only for a complete stream. On idle timeout, provider
// failure, cancellation or send failure it returns without emitting the
// terminal chunk — the transport then closes abruptly, which clients read
// as an incomplete stream.
func Pump(ctx context.Context, chunks <-chan llm.ChatChunk, idle time.Duration, send func(StreamChunk) error) error {
	timer := time.NewTimer(idle)
	defer timer.Stop()

	completed := false
	for !completed {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				return ErrStreamIncomplete
			}

			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(idle)

			if chunk.Finished() {
				completed = true
				break
			}

			if content := chunk.Content(); content != "" {
				if err := send(StreamChunk{Content: content}); err != nil {
					return err
				}
			}

		case <-timer.C:
			return ErrIdleTimeout

		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return send(StreamChunk{Content: "", Done: true})
}
