package link

import (
	"context"
	"time"
)

// Result is what a protocol handler yields for one inbound chunk.
type Result struct {
	// Response holds the bytes to write back to the instrument immediately
	// (ACK, NAK, MLLP acknowledgements). Empty means no response.
	Response []byte
	// Messages lists the messages completed and offloaded while processing the chunk.
	Messages []Message
	// Accepted counts frames or blocks accepted in this chunk.
	Accepted int
	// Rejections lists the reasons for every frame or block rejected in this chunk.
	Rejections []error
}

// HasResponse reports whether r carries bytes to send.
func (r *Result) HasResponse() bool {
	return len(r.Response) > 0
}

// Handler is a protocol state machine bound to one instrument link.
//
// A Handler owns its session exclusively and is not safe for concurrent use;
// the supervisor calls it from the single goroutine that reads the channel.
type Handler interface {
	// Protocol returns the protocol implemented by the handler.
	Protocol() Protocol
	// Process consumes one chunk of inbound bytes. The returned error reports
	// failures that are not answered on the wire, such as MessageSink errors;
	// the Result is valid even when the error is non-nil.
	Process(ctx context.Context, data []byte) (Result, error)
	// Expire closes a session that has stayed open longer than allowed at
	// time now and returns an error wrapping ErrSessionTimeout when it did.
	Expire(now time.Time) error
	// Reset discards any session and buffered bytes, as after a disconnect.
	Reset()
}
