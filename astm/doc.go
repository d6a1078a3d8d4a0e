// Package astm implements the receiving side of the ASTM E1381 low-level
// protocol used by laboratory analyzers, carrying ASTM E1394 records.
//
// # Protocol Overview
//
// ASTM E1381 is a half-duplex, frame-oriented protocol with single-byte
// handshake characters:
//
//   - ENQ (0x05): the analyzer requests the line
//   - ACK (0x06): the frame (or ENQ) was accepted
//   - NAK (0x15): the frame was rejected and must be retransmitted
//   - EOT (0x04): the analyzer releases the line, ending the transfer
//
// A frame on the wire is:
//
//	STX FN <text> ETB|ETX C1 C2 CR LF
//
// FN is the ASCII frame number 0–7, incremented modulo 8 for every accepted
// frame. ETB marks an intermediate frame and ETX the last frame of a record.
// C1 C2 are the two uppercase hex digits of the sum of all bytes from FN
// through the terminator, modulo 256.
//
// # Sessions
//
// The link moves NEUTRAL → ESTABLISHMENT (ENQ accepted) → TRANSFER (first frame
// accepted) → NEUTRAL (EOT). Frame-level errors are answered with NAK and leave
// the session untouched so the analyzer can retransmit; exceeding the maximum
// message size or transfer duration aborts the session.
//
// # Unframed messages
//
// Some analyzers skip the framing entirely and stream raw records starting
// with "H|" and ending with the terminator record "L|1|N\r". The [Handler]
// accepts such messages when no framed transfer is active.
package astm
