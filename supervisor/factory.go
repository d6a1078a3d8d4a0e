package supervisor

import (
	"fmt"

	"github.com/arloliu/go-lislink/astm"
	"github.com/arloliu/go-lislink/hl7"
	"github.com/arloliu/go-lislink/link"
	"github.com/arloliu/go-lislink/logger"
	"github.com/arloliu/go-lislink/transport"
)

// ChannelFactory creates the transport channel of an instrument.
type ChannelFactory func(cfg link.InstrumentLinkConfig, opts ...transport.Option) (transport.Channel, error)

// HandlerFactory creates the protocol handler of an instrument once its
// protocol is known.
type HandlerFactory func(cfg link.InstrumentLinkConfig, p link.Protocol, sink link.MessageSink, l logger.Logger) (link.Handler, error)

// DefaultHandlerFactory builds astm.Handler or hl7.Handler with the tunables
// of cfg.
func DefaultHandlerFactory(cfg link.InstrumentLinkConfig, p link.Protocol, sink link.MessageSink, l logger.Logger) (link.Handler, error) {
	switch p {
	case link.ProtocolASTM:
		return astm.NewHandler(cfg.InstrumentID, sink,
			astm.WithMaxMessageSize(cfg.MaxMessageSize),
			astm.WithMaxTransferDuration(cfg.MaxTransferDuration),
			astm.WithVerifyChecksum(!cfg.SkipChecksum),
			astm.WithLogger(l),
		)

	case link.ProtocolHL7:
		return hl7.NewHandler(cfg.InstrumentID, sink,
			hl7.WithMaxMessageSize(cfg.MaxMessageSize),
			hl7.WithMaxTransferDuration(cfg.MaxTransferDuration),
			hl7.WithLogger(l),
		)

	default:
		return nil, fmt.Errorf("%w: no handler for protocol %q", link.ErrInvalidConfig, p)
	}
}
