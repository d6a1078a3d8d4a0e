package sink

import (
	"time"

	"github.com/arloliu/go-lislink/link"
)

// Record is the persisted form of one message.
type Record struct {
	ID           string    `json:"id"`
	BatchID      string    `json:"batch_id"`
	InstrumentID string    `json:"instrument_id"`
	Protocol     string    `json:"protocol"`
	ControlID    string    `json:"control_id,omitempty"`
	ReceivedAt   time.Time `json:"received_at"`
	Text         string    `json:"text"`
}

func newRecord(batchID, instrumentID string, msg link.Message) Record {
	id := msg.InstrumentID
	if id == "" {
		id = instrumentID
	}

	return Record{
		ID:           msg.ID,
		BatchID:      batchID,
		InstrumentID: id,
		Protocol:     msg.Protocol.String(),
		ControlID:    msg.ControlID,
		ReceivedAt:   msg.ReceivedAt,
		Text:         msg.Text,
	}
}
