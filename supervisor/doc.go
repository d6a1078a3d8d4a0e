// Package supervisor runs instrument links.
//
// A [Supervisor] owns one instrument: it loads the instrument configuration,
// opens the transport channel, detects the protocol on the first chunk,
// feeds every chunk to the protocol handler and writes the handler response
// back immediately. Disconnects are retried with a fixed delay up to a
// bounded number of consecutive attempts; inactive instruments are polled
// until they are activated.
//
// A [Manager] runs one Supervisor per active catalog entry and reconciles
// the running set when the catalog changes.
package supervisor
