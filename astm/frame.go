package astm

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// ASTM E1381 control characters.
const (
	STX byte = 0x02
	ETX byte = 0x03
	EOT byte = 0x04
	ENQ byte = 0x05
	ACK byte = 0x06
	NAK byte = 0x15
	ETB byte = 0x17
	LF  byte = 0x0A
	CR  byte = 0x0D
)

// ASTM E1394 delimiters used by record helpers.
const (
	FieldDelimiter     byte = '|'
	RepeatDelimiter    byte = '\\'
	ComponentDelimiter byte = '^'
	EscapeDelimiter    byte = '&'
	RecordSeparator    byte = CR
)

// MinFrameLength is the shortest byte sequence considered for frame validation.
const MinFrameLength = 5

// MaxFramePayload is the largest text carried by one frame (E1381 allows
// 247 characters per frame including the 7 framing characters).
const MaxFramePayload = 240

// frameOverhead is STX, FN, terminator, two checksum characters, CR and LF.
const frameOverhead = 7

// Frame is one validated ASTM transmission unit.
type Frame struct {
	Number     uint8
	Payload    []byte
	Terminator byte
	// Checksum is the two-character checksum as received (or computed by Pack).
	Checksum string
}

// IsFinal reports whether the frame ends a record (ETX) rather than
// continuing it (ETB).
func (f *Frame) IsFinal() bool {
	return f.Terminator == ETX
}

// ComputeChecksum returns the checksum of the frame: the sum of the frame
// number character, the payload and the terminator, modulo 256.
func (f *Frame) ComputeChecksum() byte {
	sum := uint(frameNumberChar(f.Number)) + uint(f.Terminator)
	for _, b := range f.Payload {
		sum += uint(b)
	}

	return byte(sum & 0xFF)
}

// Verify compares the received checksum with the computed one. Hex digits
// are accepted in either case.
func (f *Frame) Verify() error {
	got, err := parseChecksum(f.Checksum)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrChecksumMismatch, err)
	}

	want := f.ComputeChecksum()
	if got != want {
		return fmt.Errorf("%w: wire=%s, computed=%s", ErrChecksumMismatch, f.Checksum, FormatChecksum(want))
	}

	return nil
}

// Pack serializes the frame to its wire format with a freshly computed checksum:
//
//	STX FN <payload> ETB|ETX C1 C2 CR LF
func (f *Frame) Pack() []byte {
	buf := make([]byte, 0, len(f.Payload)+frameOverhead)
	buf = append(buf, STX, frameNumberChar(f.Number))
	buf = append(buf, f.Payload...)
	buf = append(buf, f.Terminator)
	buf = append(buf, FormatChecksum(f.ComputeChecksum())...)
	buf = append(buf, CR, LF)

	return buf
}

// Checksum computes the ASTM checksum over data: the byte sum modulo 256.
// data must span the frame number through the terminator inclusive.
func Checksum(data []byte) byte {
	var sum uint
	for _, b := range data {
		sum += uint(b)
	}

	return byte(sum & 0xFF)
}

// FormatChecksum renders a checksum as two uppercase hex digits.
func FormatChecksum(cs byte) string {
	const digits = "0123456789ABCDEF"

	return string([]byte{digits[cs>>4], digits[cs&0x0F]})
}

// ParseFrame validates the structure of a raw frame and extracts its fields.
//
// raw must start with STX, end with CR LF, carry an ASCII frame number
// 0–7 right after STX and contain exactly one of ETB or ETX followed by the
// two checksum characters. ParseFrame does not verify the checksum; use
// Frame.Verify for that.
func ParseFrame(raw []byte) (*Frame, error) {
	if len(raw) < MinFrameLength {
		return nil, fmt.Errorf("%w: length %d below minimum %d", ErrMalformedFrame, len(raw), MinFrameLength)
	}

	if raw[0] != STX {
		return nil, fmt.Errorf("%w: missing STX, got 0x%02X", ErrMalformedFrame, raw[0])
	}

	if !bytes.HasSuffix(raw, []byte{CR, LF}) {
		return nil, fmt.Errorf("%w: missing CR LF trailer", ErrMalformedFrame)
	}

	fn := raw[1]
	if fn < '0' || fn > '7' {
		return nil, fmt.Errorf("%w: 0x%02X", ErrInvalidFrameNumber, fn)
	}

	etx := bytes.Count(raw, []byte{ETX})
	etb := bytes.Count(raw, []byte{ETB})
	if etx+etb != 1 {
		return nil, fmt.Errorf("%w: found %d ETX and %d ETB", ErrTerminator, etx, etb)
	}

	term := bytes.IndexByte(raw, ETX)
	if term < 0 {
		term = bytes.IndexByte(raw, ETB)
	}

	if term < 2 {
		return nil, fmt.Errorf("%w: terminator before frame number", ErrMalformedFrame)
	}

	// terminator + 2 checksum characters + CR LF must close the frame.
	if len(raw) != term+5 {
		return nil, fmt.Errorf("%w: expected 2 checksum characters and CR LF after terminator, got %d bytes",
			ErrMalformedFrame, len(raw)-term-1)
	}

	payload := make([]byte, term-2)
	copy(payload, raw[2:term])

	return &Frame{
		Number:     fn - '0',
		Payload:    payload,
		Terminator: raw[term],
		Checksum:   string(raw[term+1 : term+3]),
	}, nil
}

// BuildFrames splits text into wire frames of at most MaxFramePayload bytes,
// numbering them from first modulo 8. Every frame but the last ends with
// ETB; the last ends with ETX.
func BuildFrames(first uint8, text []byte) [][]byte {
	var frames [][]byte

	num := first % 8
	for offset := 0; ; offset += MaxFramePayload {
		end := min(offset+MaxFramePayload, len(text))

		f := &Frame{Number: num, Payload: text[offset:end], Terminator: ETB}
		if end == len(text) {
			f.Terminator = ETX
		}

		frames = append(frames, f.Pack())
		num = (num + 1) % 8

		if end == len(text) {
			return frames
		}
	}
}

func frameNumberChar(n uint8) byte {
	return '0' + n%8
}

func parseChecksum(s string) (byte, error) {
	if len(s) != 2 {
		return 0, fmt.Errorf("checksum %q must be 2 hex characters", s)
	}

	var out [1]byte
	if _, err := hex.Decode(out[:], []byte(s)); err != nil {
		return 0, fmt.Errorf("checksum %q is not hex", s)
	}

	return out[0], nil
}
