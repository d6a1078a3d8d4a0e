package astm

import "errors"

// Frame-level errors. They are answered with NAK and never abort a session.
var (
	ErrMalformedFrame     = errors.New("astm: malformed frame")
	ErrInvalidFrameNumber = errors.New("astm: invalid frame number")
	ErrTerminator         = errors.New("astm: frame must contain exactly one ETB or ETX")
	ErrChecksumMismatch   = errors.New("astm: checksum mismatch")
	ErrSequence           = errors.New("astm: frame sequence violation")
	ErrFrameInterrupted   = errors.New("astm: frame interrupted by control character")
)

// Session-level errors.
var (
	ErrBusy                 = errors.New("astm: session already active")
	ErrNoSession            = errors.New("astm: frame received outside of a session")
	ErrInvalidCustomMessage = errors.New("astm: invalid unframed message")
)
