// Package transport provides the byte channels that connect the link engine
// to analyzers: RS-232 serial ports, TCP client sockets and TCP server
// sockets.
//
// Every variant implements [Channel]. Reads block up to the configured read
// timeout and report an idle line with [ErrReadTimeout], which callers treat
// as non-fatal; a peer close is reported with [ErrPeerClosed]. Status changes
// are published to a [link.EventPublisher] as connection events.
//
// A [TCPServer] keeps its listener open across connections: Close ends the
// current connection only and the next Open accepts a new one. Connection
// attempts made while a connection is active are closed immediately.
package transport
