package link

import "time"

// EventType classifies operational events.
type EventType string

const (
	EventConnection   EventType = "connection"
	EventTransmission EventType = "transmission"
	EventError        EventType = "error"
)

// ConnStatus is the connection state reported in events.
type ConnStatus string

const (
	ConnStatusUnknown      ConnStatus = ""
	ConnStatusConnecting   ConnStatus = "connecting"
	ConnStatusConnected    ConnStatus = "connected"
	ConnStatusDisconnected ConnStatus = "disconnected"
	ConnStatusInactive     ConnStatus = "inactive"
	ConnStatusDown         ConnStatus = "down"
)

// TransmissionStatus is the message transfer state reported in events.
type TransmissionStatus string

const (
	TransmissionNone      TransmissionStatus = ""
	TransmissionReceiving TransmissionStatus = "receiving"
	TransmissionReceived  TransmissionStatus = "received"
	TransmissionRejected  TransmissionStatus = "rejected"
	TransmissionFailed    TransmissionStatus = "failed"
)

// Event is an operational notification about one instrument link.
type Event struct {
	Type               EventType          `json:"type"`
	InstrumentID       string             `json:"instrument_id"`
	ConnStatus         ConnStatus         `json:"connection_status,omitempty"`
	TransmissionStatus TransmissionStatus `json:"transmission_status,omitempty"`
	Detail             string             `json:"detail,omitempty"`
	Time               time.Time          `json:"time"`
}

// EventPublisher delivers operational events.
//
// Publish is best effort: it must not block the link and never reports errors
// to the caller.
type EventPublisher interface {
	Publish(ev Event)
}

// PublisherFunc adapts a function to the EventPublisher interface.
type PublisherFunc func(ev Event)

func (f PublisherFunc) Publish(ev Event) { f(ev) }

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}

// ConnectionEvent builds a connection status event stamped with the current time.
func ConnectionEvent(instrumentID string, status ConnStatus, detail string) Event {
	return Event{
		Type:         EventConnection,
		InstrumentID: instrumentID,
		ConnStatus:   status,
		Detail:       detail,
		Time:         time.Now(),
	}
}

// TransmissionEvent builds a transmission status event stamped with the current time.
func TransmissionEvent(instrumentID string, status TransmissionStatus, detail string) Event {
	return Event{
		Type:               EventTransmission,
		InstrumentID:       instrumentID,
		TransmissionStatus: status,
		Detail:             detail,
		Time:               time.Now(),
	}
}

// ErrorEvent builds an error event for a user-visible failure.
func ErrorEvent(instrumentID string, err error) Event {
	detail := ""
	if err != nil {
		detail = err.Error()
	}

	return Event{
		Type:         EventError,
		InstrumentID: instrumentID,
		Detail:       detail,
		Time:         time.Now(),
	}
}
