package hl7

import (
	"strings"
	"time"
)

// AckCode is the MSA-1 acknowledgment code.
type AckCode string

const (
	// AckAccept means the message was stored.
	AckAccept AckCode = "AA"
	// AckError means the message was received but could not be processed.
	AckError AckCode = "AE"
	// AckReject means the message was rejected.
	AckReject AckCode = "AR"
)

// ackTimeLayout is the HL7 DTM format used for MSH-7.
const ackTimeLayout = "20060102150405"

// Application identifies the receiving side in acknowledgements.
type Application struct {
	Name     string
	Facility string
}

// BuildACK builds the acknowledgement of the message described by hdr:
//
//	MSH|^~\&|<local app>|<local facility>|<sender app>|<sender facility>|<ts>||ACK|<ctl>|P|<version>
//	MSA|<code>|<ctl>
//
// Segments end with CR. The result is not MLLP-wrapped.
func BuildACK(hdr Header, local Application, code AckCode, ts time.Time, defaultVersion string) []byte {
	sep := DefaultSeparators
	f := string(sep.Field)

	version := hdr.Version
	if version == "" {
		version = defaultVersion
	}

	var sb strings.Builder
	sb.WriteString(strings.Join([]string{
		"MSH",
		sep.EncodingCharacters(),
		local.Name,
		local.Facility,
		hdr.SendingApplication,
		hdr.SendingFacility,
		ts.Format(ackTimeLayout),
		"",
		"ACK",
		hdr.ControlID,
		"P",
		version,
	}, f))
	sb.WriteByte(CR)
	sb.WriteString(strings.Join([]string{"MSA", string(code), hdr.ControlID}, f))
	sb.WriteByte(CR)

	return []byte(sb.String())
}
