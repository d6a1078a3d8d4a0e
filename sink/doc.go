// Package sink provides link.MessageSink implementations.
//
//   - FileSink appends one JSON record per message to a JSONL file.
//   - MemorySink keeps messages in memory, keyed by instrument.
//
// Every Offload call is atomic from the caller's point of view: either all
// messages of the call are persisted or an error wrapping link.ErrOffload is
// returned and the protocol handler answers the instrument negatively.
package sink
