package hl7

import "errors"

var (
	ErrMissingMSH   = errors.New("hl7: message does not start with an MSH segment")
	ErrShortHeader  = errors.New("hl7: MSH segment too short")
	ErrDiscarded    = errors.New("hl7: partial message discarded by a new start block")
	ErrNoStartBlock = errors.New("hl7: data received outside of a start block")
)
