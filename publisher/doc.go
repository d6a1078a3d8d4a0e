// Package publisher provides link.EventPublisher implementations.
//
// NATSPublisher encodes events as JSON on "<prefix>.<instrument id>",
// LogPublisher writes them to a logger and Multi fans an event out to
// several publishers. Async decouples a slow publisher from the link
// goroutines through a bounded lock-free queue.
package publisher
