package link

import (
	"bytes"
	"fmt"
	"strings"
)

// Protocol identifies the wire protocol spoken on an instrument link.
type Protocol uint8

const (
	// ProtocolAuto means the protocol is detected from the first inbound payload.
	ProtocolAuto Protocol = iota
	// ProtocolASTM is ASTM E1381 framing carrying E1394 records.
	ProtocolASTM
	// ProtocolHL7 is HL7 v2.x carried in MLLP blocks.
	ProtocolHL7
)

// String returns the lower-case protocol name.
func (p Protocol) String() string {
	switch p {
	case ProtocolAuto:
		return "auto"
	case ProtocolASTM:
		return "astm"
	case ProtocolHL7:
		return "hl7"
	default:
		return "unknown"
	}
}

// ParseProtocol parses a protocol name. An empty name means ProtocolAuto.
func ParseProtocol(name string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return ProtocolAuto, nil
	case "astm":
		return ProtocolASTM, nil
	case "hl7":
		return ProtocolHL7, nil
	default:
		return ProtocolAuto, fmt.Errorf("%w: unknown protocol %q", ErrInvalidConfig, name)
	}
}

// Wire bytes inspected by the detector.
const (
	detectSTX        byte = 0x02
	detectEOT        byte = 0x04
	detectENQ        byte = 0x05
	detectStartBlock byte = 0x0B
)

// DetectProtocol inspects the first inbound payload of a connection and
// selects the protocol to use for the rest of it.
//
// Presence of ENQ, STX or EOT bytes, or text starting with an ASTM header
// record ("H|"), selects ASTM. Presence of the MLLP start block or text
// starting with "MSH" selects HL7. Anything else falls back to HL7; matched
// reports whether the choice came from an actual match rather than the fallback.
func DetectProtocol(data []byte) (p Protocol, matched bool) {
	if bytes.IndexByte(data, detectENQ) >= 0 ||
		bytes.IndexByte(data, detectSTX) >= 0 ||
		bytes.IndexByte(data, detectEOT) >= 0 {
		return ProtocolASTM, true
	}

	if bytes.IndexByte(data, detectStartBlock) >= 0 {
		return ProtocolHL7, true
	}

	text := bytes.TrimLeft(data, " \r\n\t")
	switch {
	case bytes.HasPrefix(text, []byte("MSH")):
		return ProtocolHL7, true
	case bytes.HasPrefix(text, []byte("H|")):
		return ProtocolASTM, true
	}

	return ProtocolHL7, false
}
