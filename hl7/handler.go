package hl7

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-lislink/link"
	"github.com/arloliu/go-lislink/logger"
)

// Session is an MLLP transfer in progress: a start block was received and
// the bytes after it are buffered until an end block arrives.
type Session struct {
	buf       []byte
	startedAt time.Time
}

// Size returns the number of buffered bytes.
func (s *Session) Size() int { return len(s.buf) }

// StartedAt returns the time the buffered message started.
func (s *Session) StartedAt() time.Time { return s.startedAt }

func (s *Session) pending() bool {
	return len(trimLineEnds(s.buf)) > 0
}

// Handler is the MLLP receiver state machine of one instrument link.
//
// It implements [link.Handler] and is not safe for concurrent use.
type Handler struct {
	instrumentID string
	sink         link.MessageSink
	logger       logger.Logger
	now          func() time.Time

	maxSize     int
	maxDuration time.Duration
	local       Application
	version     string

	session *Session
}

var _ link.Handler = (*Handler)(nil)

// NewHandler creates an HL7 handler delivering completed messages of
// instrumentID to sink.
func NewHandler(instrumentID string, sink link.MessageSink, opts ...Option) (*Handler, error) {
	if sink == nil {
		return nil, errors.New("hl7: message sink is nil")
	}

	h := &Handler{
		instrumentID: instrumentID,
		sink:         sink,
		logger:       logger.GetLogger(),
		now:          time.Now,
		maxSize:      link.DefaultMaxMessageSize,
		maxDuration:  link.DefaultMaxTransferDuration,
		local:        Application{Name: DefaultApplication, Facility: DefaultFacility},
		version:      DefaultVersion,
	}

	for _, opt := range opts {
		if err := opt.apply(h); err != nil {
			return nil, err
		}
	}

	return h, nil
}

// Protocol returns link.ProtocolHL7.
func (h *Handler) Protocol() link.Protocol { return link.ProtocolHL7 }

// Active reports whether a start block was received and the transfer is open.
func (h *Handler) Active() bool { return h.session != nil }

// Session returns the open transfer, or nil.
func (h *Handler) Session() *Session { return h.session }

// Process consumes one chunk of inbound bytes. Every message completed by the
// chunk is offloaded and acknowledged individually, in arrival order.
//
// After an end block the transfer stays open: bytes up to the next end block
// form the next message even when the sender omits its start block.
//
// A chunk carrying EB splits on EB only, so FF inside a message body is kept.
// FF ends a message only in chunks without any EB.
func (h *Handler) Process(ctx context.Context, data []byte) (link.Result, error) {
	var (
		res  link.Result
		errs error
	)

	end := endBlockOf(data)

	for len(data) > 0 {
		if h.session == nil {
			i := bytes.IndexByte(data, SB)
			if i < 0 {
				h.noise(data, &res)
				break
			}

			h.noise(data[:i], &res)
			h.session = &Session{startedAt: h.now()}
			data = data[i+1:]

			continue
		}

		i := indexBlockControl(data, end)
		if i < 0 {
			h.buffer(data, &res)
			break
		}

		h.buffer(data[:i], &res)
		if h.session == nil {
			// buffer overflowed; resynchronize on the next start block
			data = data[i:]
			continue
		}

		if data[i] == SB {
			if h.session.pending() {
				res.Rejections = append(res.Rejections, ErrDiscarded)
				h.logger.Warn("hl7: start block before end block, discarding partial message",
					"instrument", h.instrumentID, "size", h.session.Size())
			}
			h.session = &Session{startedAt: h.now()}
			data = data[i+1:]

			continue
		}

		raw := h.session.buf
		h.session = &Session{startedAt: h.now()}
		data = data[i+1:]

		errs = errors.Join(errs, h.complete(ctx, raw, &res))
	}

	return res, errs
}

// Expire discards a partially received message older than the maximum
// transfer duration.
func (h *Handler) Expire(now time.Time) error {
	s := h.session
	if s == nil || !s.pending() || h.maxDuration <= 0 {
		return nil
	}

	age := now.Sub(s.startedAt)
	if age <= h.maxDuration {
		return nil
	}

	h.session = nil
	h.logger.Warn("hl7: transfer timeout, discarding partial message",
		"instrument", h.instrumentID, "age", age, "size", s.Size())

	return fmt.Errorf("%w: hl7 transfer open for %v", link.ErrSessionTimeout, age)
}

// Reset discards the open transfer.
func (h *Handler) Reset() {
	h.session = nil
}

func (h *Handler) buffer(data []byte, res *link.Result) {
	s := h.session
	if len(data) == 0 {
		return
	}

	if !s.pending() {
		s.startedAt = h.now()
	}
	s.buf = append(s.buf, data...)

	if len(s.buf) > h.maxSize {
		err := fmt.Errorf("%w: %d bytes buffered, limit %d", link.ErrMessageTooLarge, len(s.buf), h.maxSize)
		res.Rejections = append(res.Rejections, err)
		h.logger.Warn("hl7: message too large, discarding buffer", "instrument", h.instrumentID, "error", err)
		h.session = nil
	}
}

func (h *Handler) noise(data []byte, res *link.Result) {
	if len(trimLineEnds(data)) == 0 {
		return
	}

	res.Rejections = append(res.Rejections, fmt.Errorf("%w: %d bytes", ErrNoStartBlock, len(data)))
	h.logger.Debug("hl7: discarding bytes outside of a block", "instrument", h.instrumentID, "size", len(data))
}

// complete offloads one message and appends its acknowledgement to res.
func (h *Handler) complete(ctx context.Context, raw []byte, res *link.Result) error {
	body := trimLineEnds(raw)
	if len(body) == 0 {
		return nil
	}

	hdr, err := ParseHeader(body)
	if err != nil {
		res.Rejections = append(res.Rejections, err)
		h.acknowledge(Header{}, AckReject, res)
		h.logger.Warn("hl7: message rejected", "instrument", h.instrumentID, "error", err)

		return nil
	}

	msg := link.NewMessage(h.instrumentID, link.ProtocolHL7, body)
	msg.ControlID = hdr.ControlID

	if err := h.sink.Offload(ctx, h.instrumentID, msg); err != nil {
		h.acknowledge(hdr, AckReject, res)

		return fmt.Errorf("%w: control id %q: %w", link.ErrOffload, hdr.ControlID, err)
	}

	res.Messages = append(res.Messages, msg)
	res.Accepted++
	h.acknowledge(hdr, AckAccept, res)

	h.logger.Info("hl7: message received",
		"instrument", h.instrumentID,
		"controlID", hdr.ControlID,
		"type", hdr.MessageType,
		"segments", len(Segments(body)))

	return nil
}

func (h *Handler) acknowledge(hdr Header, code AckCode, res *link.Result) {
	ack := BuildACK(hdr, h.local, code, h.now(), h.version)
	res.Response = append(res.Response, Wrap(ack)...)
}

// indexBlockControl returns the index of the first start block or end byte, or -1.
func indexBlockControl(data []byte, end byte) int {
	for i, b := range data {
		if b == SB || b == end {
			return i
		}
	}

	return -1
}
