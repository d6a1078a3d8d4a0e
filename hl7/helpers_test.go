package hl7

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/arloliu/go-lislink/link"
)

type recordingSink struct {
	mu   sync.Mutex
	msgs []link.Message
	err  error
}

func (s *recordingSink) Offload(_ context.Context, _ string, msgs ...link.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	s.msgs = append(s.msgs, msgs...)

	return nil
}

func (s *recordingSink) messages() []link.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]link.Message(nil), s.msgs...)
}

var errSinkDown = errors.New("sink down")

var testTime = time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)

// newTestHandler creates a Handler with a recording sink and a clock that
// advances only when told to.
func newTestHandler(t *testing.T, opts ...Option) (*Handler, *recordingSink, *time.Time) {
	t.Helper()

	sink := &recordingSink{}
	now := testTime
	clock := func() time.Time { return now }

	h, err := NewHandler("hl7-analyzer", sink, append([]Option{WithClock(clock)}, opts...)...)
	if err != nil {
		t.Fatalf("newTestHandler: %v", err)
	}

	return h, sink, &now
}

// oru builds a minimal ORU^R01 message with the given control id.
func oru(controlID string) string {
	return "MSH|^~\\&|ANALYZER|LAB1|LIS|HOSP|20240501083000||ORU^R01|" + controlID + "|P|2.3.1\r" +
		"PID|1||P0001\r" +
		"OBX|1|NM|GLU^Glucose||5.4|mmol/L\r"
}

// unwrapAll splits a response into its MLLP blocks.
func unwrapAll(t *testing.T, resp []byte) []string {
	t.Helper()

	var out []string
	for len(resp) > 0 {
		end := -1
		for i, b := range resp {
			if b == EB {
				end = i
				break
			}
		}
		if end < 0 {
			t.Fatalf("unterminated block in %q", resp)
		}

		stop := end + 1
		if stop < len(resp) && resp[stop] == CR {
			stop++
		}

		msg, ok := Unwrap(resp[:stop])
		if !ok {
			t.Fatalf("block without start block: %q", resp[:stop])
		}
		out = append(out, string(msg))
		resp = resp[stop:]
	}

	return out
}
