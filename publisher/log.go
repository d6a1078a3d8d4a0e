package publisher

import (
	"github.com/arloliu/go-lislink/link"
	"github.com/arloliu/go-lislink/logger"
)

// LogPublisher writes events to a logger. Error events are logged at
// ErrorLevel, disconnects at WarnLevel and the rest at InfoLevel.
type LogPublisher struct {
	logger logger.Logger
}

var _ link.EventPublisher = (*LogPublisher)(nil)

// NewLog creates a LogPublisher; a nil logger selects the default one.
func NewLog(l logger.Logger) *LogPublisher {
	if l == nil {
		l = logger.GetLogger()
	}

	return &LogPublisher{logger: l}
}

func (p *LogPublisher) Publish(ev link.Event) {
	kv := []any{"instrument", ev.InstrumentID, "type", string(ev.Type)}
	if ev.ConnStatus != link.ConnStatusUnknown {
		kv = append(kv, "status", string(ev.ConnStatus))
	}
	if ev.TransmissionStatus != link.TransmissionNone {
		kv = append(kv, "transmission", string(ev.TransmissionStatus))
	}
	if ev.Detail != "" {
		kv = append(kv, "detail", ev.Detail)
	}

	switch {
	case ev.Type == link.EventError:
		p.logger.Error("link event", kv...)
	case ev.ConnStatus == link.ConnStatusDisconnected || ev.ConnStatus == link.ConnStatusDown:
		p.logger.Warn("link event", kv...)
	default:
		p.logger.Info("link event", kv...)
	}
}
