package link

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig indicates a missing or malformed instrument configuration.
	ErrInvalidConfig = errors.New("link: invalid instrument configuration")

	// ErrUnknownInstrument indicates the ConfigProvider has no entry for an instrument.
	ErrUnknownInstrument = errors.New("link: unknown instrument")

	// ErrInstrumentInactive indicates the instrument is flagged inactive.
	ErrInstrumentInactive = errors.New("link: instrument is inactive")

	// ErrRetriesExhausted indicates the reconnect policy gave up.
	ErrRetriesExhausted = errors.New("link: reconnect attempts exhausted")
)

var (
	// ErrSessionTimeout indicates a transfer stayed open longer than allowed.
	ErrSessionTimeout = errors.New("link: session timeout")

	// ErrMessageTooLarge indicates a message grew beyond the configured maximum size.
	ErrMessageTooLarge = errors.New("link: message size exceeded")

	// ErrOffload indicates the MessageSink refused a completed message.
	ErrOffload = errors.New("link: message offload failed")
)

// LinkError carries the identity of the instrument whose link failed.
type LinkError struct {
	InstrumentID string
	Op           string
	Err          error
}

// NewLinkError wraps err with the instrument identity and the failed operation.
func NewLinkError(instrumentID, op string, err error) *LinkError {
	return &LinkError{InstrumentID: instrumentID, Op: op, Err: err}
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("link %s: %s: %v", e.InstrumentID, e.Op, e.Err)
}

func (e *LinkError) Unwrap() error {
	return e.Err
}
