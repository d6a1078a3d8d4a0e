package astm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-lislink/link"
	"github.com/arloliu/go-lislink/logger"
)

var (
	customPrefix = []byte("H|")
	customSuffix = []byte("L|1|N\r")
)

// MinCustomMessageLength is the shortest unframed message accepted: the
// header prefix, the terminator record and at least one byte between them.
var MinCustomMessageLength = len(customPrefix) + len(customSuffix) + 1

// OutcomeKind classifies the result of processing one frame.
type OutcomeKind uint8

const (
	// Accepted means the frame was valid and its payload was stored.
	Accepted OutcomeKind = iota
	// Rejected means the frame was invalid; the session is unchanged.
	Rejected
	// Aborted means a session limit was exceeded and the session was closed.
	Aborted
)

func (k OutcomeKind) String() string {
	switch k {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// FrameOutcome is the result of ProcessFrame.
type FrameOutcome struct {
	Kind   OutcomeKind
	Frame  *Frame // nil unless Accepted
	Reason error  // nil when Accepted
}

// Response returns the handshake byte answering the frame: ACK when accepted,
// NAK otherwise.
func (o FrameOutcome) Response() byte {
	if o.Kind == Accepted {
		return ACK
	}

	return NAK
}

// Handler is the ASTM E1381 receiver state machine of one instrument link.
//
// It implements [link.Handler]. Handler is NOT goroutine-safe; the caller must
// feed it from a single goroutine.
type Handler struct {
	instrumentID string
	sink         link.MessageSink
	logger       logger.Logger
	now          func() time.Time

	maxSize        int
	maxDuration    time.Duration
	verifyChecksum bool

	session *Session

	// Unframed "H|...L|1|N\r" message state.
	custom        []byte
	customActive  bool
	customStarted time.Time

	// carry holds a trailing 'H' until the next chunk tells whether it starts
	// an unframed message.
	carry []byte
	// skipping discards a frame that arrived outside of a session, up to its
	// LF, which is answered NAK.
	skipping bool
}

var _ link.Handler = (*Handler)(nil)

// NewHandler creates an ASTM handler delivering completed messages of
// instrumentID to sink.
func NewHandler(instrumentID string, sink link.MessageSink, opts ...Option) (*Handler, error) {
	if sink == nil {
		return nil, errors.New("astm: message sink is nil")
	}

	h := &Handler{
		instrumentID:   instrumentID,
		sink:           sink,
		logger:         logger.GetLogger(),
		now:            time.Now,
		maxSize:        link.DefaultMaxMessageSize,
		maxDuration:    link.DefaultMaxTransferDuration,
		verifyChecksum: true,
	}

	for _, opt := range opts {
		if err := opt.apply(h); err != nil {
			return nil, err
		}
	}

	return h, nil
}

// Protocol returns link.ProtocolASTM.
func (h *Handler) Protocol() link.Protocol { return link.ProtocolASTM }

// State returns the current link state.
func (h *Handler) State() State {
	if h.session == nil {
		return StateNeutral
	}

	return h.session.state
}

// Session returns the active session, or nil in the neutral state.
func (h *Handler) Session() *Session { return h.session }

// HandleENQ answers a request for the line. A new session is started and
// ACK returned when the link is neutral; NAK is returned when busy.
func (h *Handler) HandleENQ() byte {
	if h.session != nil {
		h.logger.Warn("astm: ENQ during active session, answering NAK",
			"instrument", h.instrumentID, "state", h.session.state)

		return NAK
	}

	h.session = newSession(h.now())
	h.logger.Debug("astm: session established", "instrument", h.instrumentID)

	return ACK
}

// ProcessFrame validates one complete frame (STX through CR LF) against the
// active session.
//
// Structural, checksum and sequence failures return Rejected without touching
// the session. Exceeding the maximum message size or transfer duration
// returns Aborted and closes the session.
func (h *Handler) ProcessFrame(raw []byte) FrameOutcome {
	s := h.session
	if s == nil {
		return FrameOutcome{Kind: Rejected, Reason: ErrNoSession}
	}

	now := h.now()
	if s.expired(now, h.maxDuration) {
		h.session = nil

		return FrameOutcome{
			Kind:   Aborted,
			Reason: fmt.Errorf("%w: transfer open for %v", link.ErrSessionTimeout, now.Sub(s.startedAt)),
		}
	}

	f, err := ParseFrame(raw)
	if err != nil {
		return FrameOutcome{Kind: Rejected, Reason: err}
	}

	if h.verifyChecksum {
		if err := f.Verify(); err != nil {
			return FrameOutcome{Kind: Rejected, Reason: err}
		}
	}

	if err := s.checkSequence(f.Number); err != nil {
		return FrameOutcome{Kind: Rejected, Reason: err}
	}

	if s.size+len(f.Payload) > h.maxSize {
		h.session = nil

		return FrameOutcome{
			Kind:   Aborted,
			Reason: fmt.Errorf("%w: %d bytes exceeds %d", link.ErrMessageTooLarge, s.size+len(f.Payload), h.maxSize),
		}
	}

	s.accept(f)

	return FrameOutcome{Kind: Accepted, Frame: f}
}

// HandleEOT ends the transfer. The accumulated fragments are concatenated and
// offloaded to the sink as one message; an empty session offloads nothing.
// The link returns to the neutral state in every case.
func (h *Handler) HandleEOT(ctx context.Context) ([]link.Message, error) {
	s := h.session
	h.session = nil

	if s == nil || len(s.fragments) == 0 {
		h.logger.Debug("astm: EOT without data", "instrument", h.instrumentID)

		return nil, nil
	}

	s.state = StateTermination
	msg := link.NewMessage(h.instrumentID, link.ProtocolASTM, s.message())

	if err := h.sink.Offload(ctx, h.instrumentID, msg); err != nil {
		return nil, fmt.Errorf("%w: %w", link.ErrOffload, err)
	}

	h.logger.Info("astm: message received",
		"instrument", h.instrumentID,
		"frames", len(s.fragments),
		"size", s.size,
		"records", len(SplitRecords(msg.Text)))

	return []link.Message{msg}, nil
}

// Process consumes one chunk of inbound bytes, which may hold any mix of
// handshake characters, complete frames, partial frames and unframed text.
// Responses are concatenated in arrival order.
func (h *Handler) Process(ctx context.Context, data []byte) (link.Result, error) {
	var (
		res  link.Result
		errs error
	)

	if len(h.carry) > 0 {
		data = append(h.carry, data...)
		h.carry = nil
	}

	for i := 0; i < len(data); {
		switch {
		case h.session != nil && h.session.partial != nil:
			i += h.continueFrame(data[i:], &res)

		case h.customActive:
			n, err := h.continueCustom(ctx, data[i:], &res)
			i += n
			errs = errors.Join(errs, err)

		case h.skipping:
			j := bytes.IndexByte(data[i:], LF)
			if j < 0 {
				i = len(data)
				continue
			}
			h.skipping = false
			i += j + 1
			res.Response = append(res.Response, NAK)

		default:
			n, err := h.handleByte(ctx, data[i:], &res)
			i += n
			errs = errors.Join(errs, err)
		}
	}

	return res, errs
}

// Expire closes a session or unframed message that has been open longer than
// the maximum transfer duration.
func (h *Handler) Expire(now time.Time) error {
	var err error

	if h.session != nil && h.session.expired(now, h.maxDuration) {
		age := now.Sub(h.session.startedAt)
		h.session = nil
		err = fmt.Errorf("%w: astm transfer open for %v", link.ErrSessionTimeout, age)

		h.logger.Warn("astm: session timeout, closing session", "instrument", h.instrumentID, "age", age)
	}

	if h.customActive && h.maxDuration > 0 && now.Sub(h.customStarted) > h.maxDuration {
		age := now.Sub(h.customStarted)
		h.resetCustom()
		err = errors.Join(err, fmt.Errorf("%w: unframed message open for %v", link.ErrSessionTimeout, age))

		h.logger.Warn("astm: unframed message timeout", "instrument", h.instrumentID, "age", age)
	}

	return err
}

// Reset discards the session and all buffered bytes.
func (h *Handler) Reset() {
	h.session = nil
	h.resetCustom()
	h.carry = nil
	h.skipping = false
}

// handleByte processes the byte at data[0] while no frame or unframed
// message is being collected, and returns the number of bytes consumed.
func (h *Handler) handleByte(ctx context.Context, data []byte, res *link.Result) (int, error) {
	b := data[0]

	switch b {
	case ENQ:
		resp := h.HandleENQ()
		res.Response = append(res.Response, resp)
		if resp == NAK {
			res.Rejections = append(res.Rejections, ErrBusy)
		}

		return 1, nil

	case EOT:
		msgs, err := h.HandleEOT(ctx)
		res.Messages = append(res.Messages, msgs...)

		return 1, err

	case STX:
		if h.session == nil {
			h.skipping = true
			res.Rejections = append(res.Rejections, ErrNoSession)
			h.logger.Debug("astm: discarding frame outside of session", "instrument", h.instrumentID)

			return 1, nil
		}

		h.session.partial = []byte{STX}

		return 1, nil

	case customPrefix[0]:
		if h.session != nil {
			break
		}

		if len(data) == 1 {
			h.carry = []byte{b}

			return 1, nil
		}

		if data[1] == customPrefix[1] {
			h.customActive = true
			h.custom = nil
			h.customStarted = h.now()

			return 0, nil
		}
	}

	// Line noise between frames.
	return 1, nil
}

// continueFrame collects the bytes of a partially received frame. It returns
// the number of bytes consumed.
func (h *Handler) continueFrame(data []byte, res *link.Result) int {
	s := h.session

	idx := indexFrameControl(data)
	if idx < 0 {
		s.partial = append(s.partial, data...)
		if len(s.partial) > h.maxSize+frameOverhead {
			s.partial = nil
			res.Rejections = append(res.Rejections, fmt.Errorf("%w: frame exceeds %d bytes", ErrMalformedFrame, h.maxSize))
		}

		return len(data)
	}

	if data[idx] != LF {
		s.partial = nil
		err := fmt.Errorf("%w: 0x%02X", ErrFrameInterrupted, data[idx])
		res.Rejections = append(res.Rejections, err)
		h.logger.Debug("astm: partial frame discarded", "instrument", h.instrumentID, "reason", err)

		return idx
	}

	raw := append(s.partial, data[:idx+1]...)
	s.partial = nil

	h.recordOutcome(h.ProcessFrame(raw), res)

	return idx + 1
}

func (h *Handler) recordOutcome(out FrameOutcome, res *link.Result) {
	res.Response = append(res.Response, out.Response())

	switch out.Kind {
	case Accepted:
		res.Accepted++
		h.logger.Debug("astm: frame accepted",
			"instrument", h.instrumentID,
			"frameNumber", out.Frame.Number,
			"final", out.Frame.IsFinal(),
			"size", len(out.Frame.Payload))

	case Rejected:
		res.Rejections = append(res.Rejections, out.Reason)
		h.logger.Warn("astm: frame rejected", "instrument", h.instrumentID, "reason", out.Reason)

	case Aborted:
		res.Rejections = append(res.Rejections, out.Reason)
		h.logger.Warn("astm: session aborted", "instrument", h.instrumentID, "reason", out.Reason)
	}
}

// continueCustom collects an unframed message until its terminator record
// arrives. It returns the number of bytes consumed.
func (h *Handler) continueCustom(ctx context.Context, data []byte, res *link.Result) (int, error) {
	prev := len(h.custom)
	h.custom = append(h.custom, data...)

	k := bytes.Index(h.custom, customSuffix)
	if k < 0 {
		if len(h.custom) > h.maxSize {
			size := len(h.custom)
			h.resetCustom()
			res.Rejections = append(res.Rejections,
				fmt.Errorf("%w: unframed message of %d bytes exceeds %d", link.ErrMessageTooLarge, size, h.maxSize))
		}

		return len(data), nil
	}

	end := k + len(customSuffix)
	raw := h.custom[:end]
	h.customActive = false
	h.custom = nil

	return end - prev, h.completeCustom(ctx, raw, res)
}

func (h *Handler) completeCustom(ctx context.Context, raw []byte, res *link.Result) error {
	if len(raw) < MinCustomMessageLength ||
		!bytes.HasPrefix(raw, customPrefix) ||
		!bytes.HasSuffix(raw, customSuffix) {
		err := fmt.Errorf("%w: %d bytes", ErrInvalidCustomMessage, len(raw))
		res.Rejections = append(res.Rejections, err)
		h.logger.Warn("astm: unframed message rejected", "instrument", h.instrumentID, "reason", err)

		return nil
	}

	msg := link.NewMessage(h.instrumentID, link.ProtocolASTM, raw)
	if err := h.sink.Offload(ctx, h.instrumentID, msg); err != nil {
		return fmt.Errorf("%w: %w", link.ErrOffload, err)
	}

	res.Messages = append(res.Messages, msg)
	h.logger.Info("astm: unframed message received", "instrument", h.instrumentID, "size", len(raw))

	return nil
}

func (h *Handler) resetCustom() {
	h.custom = nil
	h.customActive = false
	h.customStarted = time.Time{}
}

// indexFrameControl returns the index of the first byte that ends or
// interrupts a frame, or -1.
func indexFrameControl(data []byte) int {
	for i, b := range data {
		switch b {
		case LF, STX, ENQ, EOT:
			return i
		}
	}

	return -1
}
