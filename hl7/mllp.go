package hl7

import "bytes"

// MLLP framing characters.
const (
	SB byte = 0x0B // start block
	EB byte = 0x1C // end block
	CR byte = 0x0D // segment terminator, also trails EB
	FF byte = 0x0C // end block alternative used by some analyzers
)

// Wrap encloses msg in an MLLP block: SB msg EB CR.
func Wrap(msg []byte) []byte {
	out := make([]byte, 0, len(msg)+3)
	out = append(out, SB)
	out = append(out, msg...)

	return append(out, EB, CR)
}

// Unwrap strips the MLLP framing from a single block. Surrounding CR and LF
// characters are removed as well. ok is false when block carries no SB.
func Unwrap(block []byte) (msg []byte, ok bool) {
	b := trimLineEnds(block)
	if len(b) == 0 || b[0] != SB {
		return b, false
	}
	b = b[1:]

	if n := len(b); n > 0 && (b[n-1] == EB || b[n-1] == FF) {
		b = b[:n-1]
	}

	return trimLineEnds(b), true
}

// endBlockOf returns the byte that terminates messages in chunk: EB when
// the chunk holds one, otherwise FF.
func endBlockOf(chunk []byte) byte {
	if bytes.IndexByte(chunk, EB) >= 0 {
		return EB
	}

	return FF
}

func trimLineEnds(b []byte) []byte {
	for len(b) > 0 && (b[0] == CR || b[0] == '\n') {
		b = b[1:]
	}
	for len(b) > 0 && (b[len(b)-1] == CR || b[len(b)-1] == '\n') {
		b = b[:len(b)-1]
	}

	return b
}
