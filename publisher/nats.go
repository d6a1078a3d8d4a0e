package publisher

import (
	"encoding/json"
	"errors"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/arloliu/go-lislink/link"
	"github.com/arloliu/go-lislink/logger"
)

// DefaultSubjectPrefix is the subject prefix events are published under.
const DefaultSubjectPrefix = "lislink.events"

// Conn is the part of *nats.Conn used by NATSPublisher.
type Conn interface {
	Publish(subject string, data []byte) error
}

var _ Conn = (*nats.Conn)(nil)

// NATSPublisher publishes events as JSON messages on a NATS connection.
type NATSPublisher struct {
	conn   Conn
	prefix string
	logger logger.Logger
	failed atomic.Uint64
}

var _ link.EventPublisher = (*NATSPublisher)(nil)

// NATSOption configures a NATSPublisher.
type NATSOption func(*NATSPublisher)

// WithSubjectPrefix replaces DefaultSubjectPrefix.
func WithSubjectPrefix(prefix string) NATSOption {
	return func(p *NATSPublisher) {
		if prefix = strings.Trim(prefix, "."); prefix != "" {
			p.prefix = prefix
		}
	}
}

// WithNATSLogger sets the logger used to report publish failures.
func WithNATSLogger(l logger.Logger) NATSOption {
	return func(p *NATSPublisher) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewNATS creates a publisher on conn.
func NewNATS(conn Conn, opts ...NATSOption) (*NATSPublisher, error) {
	if conn == nil {
		return nil, errors.New("publisher: nats connection is nil")
	}

	p := &NATSPublisher{
		conn:   conn,
		prefix: DefaultSubjectPrefix,
		logger: logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Subject returns the subject events of instrumentID are published on.
func (p *NATSPublisher) Subject(instrumentID string) string {
	return p.prefix + "." + subjectToken(instrumentID)
}

// Failed returns how many events could not be published.
func (p *NATSPublisher) Failed() uint64 {
	return p.failed.Load()
}

func (p *NATSPublisher) Publish(ev link.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		p.failed.Add(1)
		p.logger.Warn("failed to encode event", "instrument", ev.InstrumentID, "error", err)

		return
	}

	subject := p.Subject(ev.InstrumentID)
	if err := p.conn.Publish(subject, data); err != nil {
		p.failed.Add(1)
		p.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}

// subjectToken maps an instrument id to a single NATS subject token.
func subjectToken(id string) string {
	if id == "" {
		return "_"
	}

	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		default:
			return r
		}
	}, id)
}

// Connect dials a NATS server with reconnect settings suited to a long
// running link daemon. Connection state changes are logged to l.
func Connect(url, name string, l logger.Logger) (*nats.Conn, error) {
	if l == nil {
		l = logger.GetLogger()
	}
	l = l.With("nats", url)

	return nats.Connect(url,
		nats.Name(name),
		nats.Timeout(10*time.Second),
		nats.PingInterval(2*time.Minute),
		nats.MaxPingsOutstanding(5),
		nats.ReconnectBufSize(5*1024*1024),
		nats.SetCustomDialer(&net.Dialer{KeepAlive: -1}),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			var subject string
			if sub != nil {
				subject = sub.Subject
			}
			l.Error("nats client error", "subject", subject, "error", err)
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			l.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			l.Info("nats reconnected")
		}),
		nats.ConnectHandler(func(_ *nats.Conn) {
			l.Info("nats connected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			l.Info("nats connection closed")
		}),
	)
}
