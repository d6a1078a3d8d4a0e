package astm

import (
	"fmt"
	"time"
)

// State is the ASTM link state.
type State uint8

const (
	// StateNeutral means no transfer is in progress.
	StateNeutral State = iota
	// StateEstablishment means ENQ was accepted and no frame has arrived yet.
	StateEstablishment
	// StateTransfer means at least one frame of the transfer was accepted.
	StateTransfer
	// StateTermination means EOT arrived and the message is being offloaded.
	StateTermination
)

func (s State) String() string {
	switch s {
	case StateNeutral:
		return "neutral"
	case StateEstablishment:
		return "establishment"
	case StateTransfer:
		return "transfer"
	case StateTermination:
		return "termination"
	default:
		return "unknown"
	}
}

// Session is the state of one ENQ-to-EOT transfer. It is exclusively owned by
// a Handler.
type Session struct {
	state        State
	lastAccepted uint8
	hasLast      bool
	fragments    [][]byte
	size         int
	startedAt    time.Time

	// partial holds the bytes of a frame whose CR LF has not arrived yet.
	partial []byte
}

func newSession(now time.Time) *Session {
	return &Session{state: StateEstablishment, startedAt: now}
}

// State returns the session state.
func (s *Session) State() State { return s.state }

// LastAccepted returns the number of the last accepted frame; ok is false
// until the first frame is accepted.
func (s *Session) LastAccepted() (n uint8, ok bool) { return s.lastAccepted, s.hasLast }

// Size returns the accumulated payload size in bytes.
func (s *Session) Size() int { return s.size }

// StartedAt returns the time the ENQ was accepted.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// FragmentCount returns the number of accepted frames.
func (s *Session) FragmentCount() int { return len(s.fragments) }

// InTransfer reports whether the session holds the line (ESTABLISHMENT or TRANSFER).
func (s *Session) InTransfer() bool {
	return s.state == StateEstablishment || s.state == StateTransfer
}

// checkSequence validates the frame number against the last accepted one.
// The first frame of a session establishes the baseline and accepts any number.
func (s *Session) checkSequence(n uint8) error {
	if !s.hasLast {
		return nil
	}

	want := (s.lastAccepted + 1) % 8
	if n != want {
		return fmt.Errorf("%w: got %d, want %d", ErrSequence, n, want)
	}

	return nil
}

func (s *Session) accept(f *Frame) {
	s.fragments = append(s.fragments, f.Payload)
	s.size += len(f.Payload)
	s.lastAccepted = f.Number
	s.hasLast = true
	s.state = StateTransfer
}

// message concatenates every accepted fragment in arrival order.
func (s *Session) message() []byte {
	out := make([]byte, 0, s.size)
	for _, frag := range s.fragments {
		out = append(out, frag...)
	}

	return out
}

func (s *Session) expired(now time.Time, limit time.Duration) bool {
	return limit > 0 && now.Sub(s.startedAt) > limit
}
