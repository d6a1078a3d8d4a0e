package link

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Message is one completed instrument message.
type Message struct {
	// ID uniquely identifies the message inside the LIS.
	ID           string
	InstrumentID string
	Protocol     Protocol
	// Text is the decoded message content.
	Text string
	// Raw holds the bytes exactly as assembled from the wire.
	Raw []byte
	// ControlID is the HL7 message control id (MSH-10), empty for ASTM.
	ControlID  string
	ReceivedAt time.Time
}

// NewMessage builds a Message from assembled raw bytes, decoding the text
// with DecodeText.
func NewMessage(instrumentID string, p Protocol, raw []byte) Message {
	buf := make([]byte, len(raw))
	copy(buf, raw)

	return Message{
		ID:           uuid.NewString(),
		InstrumentID: instrumentID,
		Protocol:     p,
		Text:         DecodeText(buf),
		Raw:          buf,
		ReceivedAt:   time.Now(),
	}
}

// MessageSink persists completed instrument messages.
//
// Offload must return every failure to the caller; the protocol handlers rely
// on the error to answer the instrument with a negative acknowledgement.
type MessageSink interface {
	Offload(ctx context.Context, instrumentID string, msgs ...Message) error
}

// SinkFunc adapts a function to the MessageSink interface.
type SinkFunc func(ctx context.Context, instrumentID string, msgs ...Message) error

func (f SinkFunc) Offload(ctx context.Context, instrumentID string, msgs ...Message) error {
	return f(ctx, instrumentID, msgs...)
}
