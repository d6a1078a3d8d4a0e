// Package link defines the contracts shared by the go-lislink protocol engine.
//
// An instrument link connects one laboratory analyzer to the laboratory
// information system over a serial line or a TCP socket. Bytes received on the
// link are fed to a protocol [Handler] (ASTM E1381/E1394 or HL7 v2 over MLLP),
// which answers with ACK/NAK responses and hands completed messages to a
// [MessageSink].
//
// The package holds the pieces every link component agrees on:
//
//   - [Protocol] and [DetectProtocol], which selects ASTM or HL7 from the first
//     inbound bytes when the instrument configuration leaves it unset.
//   - [InstrumentLinkConfig], the per-instrument transport and protocol
//     parameters supplied by a [ConfigProvider].
//   - [Message], [MessageSink] and [EventPublisher], the external collaborators.
//   - [Handler] and [Result], implemented by the astm and hl7 packages.
//   - [DecodeText], the best-effort text decoder applied to every message.
//
// Concrete transports live in the transport package and the per-instrument
// read/respond loop lives in the supervisor package.
package link
