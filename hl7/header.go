package hl7

import (
	"bytes"
	"fmt"
)

// Separators are the delimiters declared by an MSH segment.
type Separators struct {
	Field        byte
	Component    byte
	Repeat       byte
	Escape       byte
	SubComponent byte
}

// DefaultSeparators are the HL7 recommended delimiters "|^~\&".
var DefaultSeparators = Separators{
	Field:        '|',
	Component:    '^',
	Repeat:       '~',
	Escape:       '\\',
	SubComponent: '&',
}

// EncodingCharacters returns MSH-2 for s.
func (s Separators) EncodingCharacters() string {
	return string([]byte{s.Component, s.Repeat, s.Escape, s.SubComponent})
}

// ParseSeparators reads the separators declared by msg: the field separator
// at offset 3 and the encoding characters at offsets 4 to 7. Any delimiter
// msg is too short to declare keeps its default.
func ParseSeparators(msg []byte) Separators {
	s := DefaultSeparators
	targets := []*byte{&s.Field, &s.Component, &s.Repeat, &s.Escape, &s.SubComponent}

	for i, p := range targets {
		off := 3 + i
		if off >= len(msg) {
			break
		}
		if i > 0 && msg[off] == s.Field {
			// fewer than four encoding characters declared
			break
		}
		*p = msg[off]
	}

	return s
}

// Header holds the MSH fields the link layer needs.
type Header struct {
	Separators           Separators
	SendingApplication   string
	SendingFacility      string
	ReceivingApplication string
	ReceivingFacility    string
	Timestamp            string
	MessageType          string
	ControlID            string
	ProcessingID         string
	Version              string
}

// ParseHeader parses the MSH segment at the start of msg.
//
// Fields are indexed the way a split on the field separator yields them, so
// the control id (MSH-10) is index 9. Missing trailing fields are left empty.
func ParseHeader(msg []byte) (Header, error) {
	msg = trimLineEnds(msg)
	if !bytes.HasPrefix(msg, []byte("MSH")) {
		return Header{}, ErrMissingMSH
	}

	if len(msg) < 4 {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrShortHeader, len(msg))
	}

	seg := msg
	if i := bytes.IndexAny(msg, "\r\n"); i >= 0 {
		seg = msg[:i]
	}

	sep := ParseSeparators(seg)
	fields := bytes.Split(seg, []byte{sep.Field})
	field := func(i int) string {
		if i < len(fields) {
			return string(fields[i])
		}

		return ""
	}

	return Header{
		Separators:           sep,
		SendingApplication:   field(2),
		SendingFacility:      field(3),
		ReceivingApplication: field(4),
		ReceivingFacility:    field(5),
		Timestamp:            field(6),
		MessageType:          field(8),
		ControlID:            field(9),
		ProcessingID:         field(10),
		Version:              field(11),
	}, nil
}

// ControlID returns the message control id (MSH-10) of msg. ok is false when
// msg has no MSH segment or the segment has fewer than ten fields.
func ControlID(msg []byte) (id string, ok bool) {
	hdr, err := ParseHeader(msg)
	if err != nil || hdr.ControlID == "" {
		return "", false
	}

	return hdr.ControlID, true
}

// Segments splits msg into its CR-terminated segments, dropping empty ones.
func Segments(msg []byte) [][]byte {
	var out [][]byte

	for _, seg := range bytes.Split(msg, []byte{CR}) {
		seg = bytes.Trim(seg, "\n")
		if len(seg) == 0 {
			continue
		}
		out = append(out, seg)
	}

	return out
}
