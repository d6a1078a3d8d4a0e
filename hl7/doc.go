// Package hl7 implements the receiving side of HL7 v2.x over the Minimal
// Lower Layer Protocol (MLLP).
//
// Each message is enclosed in a start block and an end block:
//
//	SB <segments> EB CR
//
// where SB is 0x0B, EB is 0x1C and every segment ends with CR. Some analyzers
// close blocks with a form feed (0x0C) instead of EB; both are accepted.
//
// The [Handler] reassembles messages split across reads, offloads each one to
// a [link.MessageSink] and answers it with an MLLP-wrapped ACK: AA when the
// message was stored, AR when storing failed or the block carried no MSH
// segment.
package hl7
