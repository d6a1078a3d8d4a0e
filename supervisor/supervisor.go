package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-lislink/internal/pool"
	"github.com/arloliu/go-lislink/link"
	"github.com/arloliu/go-lislink/transport"
)

// Supervisor drives the link of one instrument.
type Supervisor struct {
	instrumentID string
	provider     link.ConfigProvider
	sink         link.MessageSink
	cfg          *config
	metrics      Metrics

	running atomic.Bool

	mu       sync.Mutex
	status   link.ConnStatus
	protocol link.Protocol
	channel  transport.Channel
	endpoint string
	cancel   context.CancelFunc
	stopped  bool
}

// New creates a supervisor for instrumentID. The instrument configuration is
// read from provider at every connection attempt.
func New(instrumentID string, provider link.ConfigProvider, sink link.MessageSink, opts ...Option) (*Supervisor, error) {
	if instrumentID == "" {
		return nil, fmt.Errorf("%w: instrument id is empty", link.ErrInvalidConfig)
	}
	if provider == nil {
		return nil, errors.New("supervisor: config provider is nil")
	}
	if sink == nil {
		return nil, errors.New("supervisor: message sink is nil")
	}

	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}

	return &Supervisor{
		instrumentID: instrumentID,
		provider:     provider,
		sink:         sink,
		cfg:          cfg,
		status:       link.ConnStatusUnknown,
	}, nil
}

// InstrumentID returns the supervised instrument.
func (s *Supervisor) InstrumentID() string { return s.instrumentID }

// Metrics returns the link counters.
func (s *Supervisor) Metrics() *Metrics { return &s.metrics }

// Status returns the current connection status.
func (s *Supervisor) Status() link.ConnStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.status
}

// Protocol returns the protocol of the current connection, ProtocolAuto
// until it has been configured or detected.
func (s *Supervisor) Protocol() link.Protocol {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.protocol
}

// Run supervises the link until ctx is cancelled, Stop is called or the link
// fails permanently.
//
// Run returns nil when stopped. Permanent failures are *link.LinkError: an
// invalid or removed configuration, a disconnect without AutoReconnect, or
// link.ErrRetriesExhausted after the maximum number of consecutive failed
// attempts.
func (s *Supervisor) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.cancel = cancel
	s.mu.Unlock()

	defer s.releaseChannel()

	log := s.cfg.logger
	failures := 0

	for {
		if ctx.Err() != nil {
			return nil
		}

		lcfg, err := s.loadConfig(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, link.ErrInvalidConfig) || errors.Is(err, link.ErrUnknownInstrument) {
				s.fail(err)
				return link.NewLinkError(s.instrumentID, "config", err)
			}
		}

		if err == nil && !lcfg.Active {
			s.inactive()
			failures = 0
			s.metrics.resetConnRetryGauge()

			if pool.Sleep(ctx, s.cfg.inactiveDelay) != nil {
				return nil
			}

			continue
		}

		connected := false
		if err == nil {
			connected, err = s.connect(ctx, lcfg)
		}

		if ctx.Err() != nil {
			return nil
		}

		if connected {
			failures = 0
			s.metrics.resetConnRetryGauge()
		}

		if err == nil {
			err = transport.ErrPeerClosed
		}

		// A server link keeps its listener and accepts the next analyzer
		// connection; the reconnect policy covers listen and accept failures.
		if connected && lcfg.ConnType == link.ConnTCPServer && errors.Is(err, transport.ErrPeerClosed) {
			log.Debug("supervisor: analyzer disconnected, accepting next connection",
				"instrument", s.instrumentID, "endpoint", lcfg.Endpoint())

			continue
		}

		if !lcfg.AutoReconnect && lcfg.InstrumentID != "" {
			s.fail(err)
			return link.NewLinkError(s.instrumentID, "run", err)
		}

		failures++
		if failures > s.cfg.maxRetries {
			err = fmt.Errorf("%w after %d attempts: %w", link.ErrRetriesExhausted, failures, err)
			s.fail(err)

			return link.NewLinkError(s.instrumentID, "reconnect", err)
		}

		s.metrics.incConnRetryGauge()
		log.Warn("supervisor: link lost, reconnecting",
			"instrument", s.instrumentID,
			"attempt", failures,
			"maxRetries", s.cfg.maxRetries,
			"delay", s.cfg.retryDelay,
			"error", err)

		if pool.Sleep(ctx, s.cfg.retryDelay) != nil {
			return nil
		}
	}
}

// Stop ends Run and closes the channel, unblocking any pending read. Stop
// before Run makes Run return immediately.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	s.stopped = true
	cancel := s.cancel
	ch := s.channel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if ch != nil {
		_ = ch.Close()
	}
}

func (s *Supervisor) loadConfig(ctx context.Context) (link.InstrumentLinkConfig, error) {
	lcfg, err := s.provider.InstrumentConfig(ctx, s.instrumentID)
	if err != nil {
		s.cfg.logger.Error("supervisor: failed to load instrument config", "instrument", s.instrumentID, "error", err)

		return link.InstrumentLinkConfig{}, err
	}

	lcfg = lcfg.WithDefaults()
	if err := lcfg.Validate(); err != nil {
		return link.InstrumentLinkConfig{}, err
	}

	return lcfg, nil
}

// connect opens the channel and serves it until it fails. connected reports
// whether the channel was opened.
func (s *Supervisor) connect(ctx context.Context, lcfg link.InstrumentLinkConfig) (connected bool, err error) {
	ch, err := s.channelFor(lcfg)
	if err != nil {
		return false, err
	}

	s.setStatus(link.ConnStatusConnecting, lcfg.Protocol)

	if err := ch.Open(ctx); err != nil {
		s.setStatus(link.ConnStatusDisconnected, lcfg.Protocol)
		s.cfg.logger.Warn("supervisor: failed to open channel",
			"instrument", s.instrumentID, "endpoint", lcfg.Endpoint(), "error", err)

		return false, err
	}

	s.metrics.incConnectCount()
	s.setStatus(link.ConnStatusConnected, lcfg.Protocol)
	s.cfg.logger.Info("supervisor: link connected",
		"instrument", s.instrumentID, "endpoint", lcfg.Endpoint(), "remoteAddr", ch.RemoteAddr())

	err = s.serve(ctx, ch, lcfg)

	_ = ch.Close()
	s.setStatus(link.ConnStatusDisconnected, s.Protocol())

	return true, err
}

// channelFor returns the channel for lcfg. A TCP server channel is reused
// while its endpoint is unchanged so that the listener survives reconnects.
func (s *Supervisor) channelFor(lcfg link.InstrumentLinkConfig) (transport.Channel, error) {
	s.mu.Lock()
	prev := s.channel
	prevEndpoint := s.endpoint
	s.mu.Unlock()

	if prev != nil && prev.Kind() == link.ConnTCPServer &&
		lcfg.ConnType == link.ConnTCPServer && prevEndpoint == lcfg.Endpoint() {
		return prev, nil
	}

	s.releaseChannel()

	opts := append([]transport.Option{
		transport.WithPublisher(s.cfg.publisher),
		transport.WithLogger(s.cfg.logger),
	}, s.cfg.channelOpts...)

	ch, err := s.cfg.newChannel(lcfg, opts...)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.channel = ch
	s.endpoint = lcfg.Endpoint()
	stopped := s.stopped
	s.mu.Unlock()

	if stopped {
		return nil, ErrStopped
	}

	return ch, nil
}

func (s *Supervisor) releaseChannel() {
	s.mu.Lock()
	ch := s.channel
	s.channel = nil
	s.endpoint = ""
	s.mu.Unlock()

	if ch == nil {
		return
	}

	_ = ch.Close()
	if sd, ok := ch.(transport.Shutdowner); ok {
		_ = sd.Shutdown()
	}
}

// serve reads chunks and answers them until the channel fails or ctx ends.
func (s *Supervisor) serve(ctx context.Context, ch transport.Channel, lcfg link.InstrumentLinkConfig) error {
	var (
		handler link.Handler
		err     error
	)

	if lcfg.Protocol != link.ProtocolAuto {
		handler, err = s.cfg.newHandler(lcfg, lcfg.Protocol, s.sink, s.cfg.logger)
		if err != nil {
			return err
		}
	}

	buf := make([]byte, s.cfg.readBufferSize)

	for {
		n, err := ch.Read(ctx, buf)
		if err != nil {
			if !transport.IsFatal(err) {
				s.expire(handler)
				continue
			}

			if ctx.Err() != nil {
				return nil
			}

			if handler != nil {
				handler.Reset()
			}

			s.cfg.logger.Info("supervisor: channel closed", "instrument", s.instrumentID, "reason", err)

			return err
		}

		if n == 0 {
			continue
		}

		chunk := buf[:n]
		s.metrics.addBytesRecv(n)

		if handler == nil {
			handler, err = s.detect(lcfg, chunk)
			if err != nil {
				return err
			}
		}

		res, perr := handler.Process(ctx, chunk)

		if res.HasResponse() {
			if err := ch.Write(ctx, res.Response); err != nil {
				s.cfg.logger.Error("supervisor: failed to write response", "instrument", s.instrumentID, "error", err)
				handler.Reset()

				return err
			}
			s.metrics.addBytesSend(len(res.Response))
		}

		s.record(res, perr)
	}
}

func (s *Supervisor) detect(lcfg link.InstrumentLinkConfig, chunk []byte) (link.Handler, error) {
	p, matched := link.DetectProtocol(chunk)
	if matched {
		s.cfg.logger.Info("supervisor: protocol detected", "instrument", s.instrumentID, "protocol", p)
	} else {
		s.cfg.logger.Warn("supervisor: protocol not recognized, assuming HL7",
			"instrument", s.instrumentID, "firstByte", fmt.Sprintf("0x%02X", chunk[0]))
	}

	s.mu.Lock()
	s.protocol = p
	s.mu.Unlock()

	return s.cfg.newHandler(lcfg, p, s.sink, s.cfg.logger)
}

func (s *Supervisor) expire(handler link.Handler) {
	if handler == nil {
		return
	}

	if err := handler.Expire(s.cfg.now()); err != nil {
		s.metrics.incSessionTimeoutCount()
		s.cfg.publisher.Publish(link.TransmissionEvent(s.instrumentID, link.TransmissionFailed, err.Error()))
	}
}

func (s *Supervisor) record(res link.Result, perr error) {
	s.metrics.addFrames(res.Accepted, len(res.Rejections))
	s.metrics.addMsgOffload(len(res.Messages))

	for _, msg := range res.Messages {
		s.cfg.publisher.Publish(link.TransmissionEvent(s.instrumentID, link.TransmissionReceived, msg.ID))
	}

	for _, reason := range res.Rejections {
		s.cfg.publisher.Publish(link.TransmissionEvent(s.instrumentID, link.TransmissionRejected, reason.Error()))
	}

	if perr != nil {
		s.metrics.incOffloadErrCount()
		s.cfg.logger.Error("supervisor: failed to offload message", "instrument", s.instrumentID, "error", perr)
		s.cfg.publisher.Publish(link.ErrorEvent(s.instrumentID, perr))
	}
}

func (s *Supervisor) setStatus(status link.ConnStatus, p link.Protocol) {
	s.mu.Lock()
	s.status = status
	s.protocol = p
	s.mu.Unlock()
}

func (s *Supervisor) inactive() {
	s.mu.Lock()
	changed := s.status != link.ConnStatusInactive
	s.status = link.ConnStatusInactive
	s.mu.Unlock()

	s.releaseChannel()

	if changed {
		s.cfg.logger.Info("supervisor: instrument inactive", "instrument", s.instrumentID, "recheck", s.cfg.inactiveDelay)
		s.cfg.publisher.Publish(link.ConnectionEvent(s.instrumentID, link.ConnStatusInactive, link.ErrInstrumentInactive.Error()))
	}
}

func (s *Supervisor) fail(err error) {
	s.mu.Lock()
	s.status = link.ConnStatusDown
	s.mu.Unlock()

	s.cfg.logger.Error("supervisor: link down", "instrument", s.instrumentID, "error", err)
	s.cfg.publisher.Publish(link.ConnectionEvent(s.instrumentID, link.ConnStatusDown, err.Error()))
	s.cfg.publisher.Publish(link.ErrorEvent(s.instrumentID, err))
}
