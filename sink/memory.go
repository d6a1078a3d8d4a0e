package sink

import (
	"context"
	"fmt"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-lislink/link"
)

type memBucket struct {
	mu   sync.Mutex
	msgs []link.Message
}

// MemorySink keeps offloaded messages in memory.
//
// Fail, when set, makes every Offload return its error; it is used to
// exercise negative acknowledgements.
type MemorySink struct {
	buckets *xsync.MapOf[string, *memBucket]

	mu   sync.RWMutex
	fail error
}

var _ link.MessageSink = (*MemorySink)(nil)

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{buckets: xsync.NewMapOf[string, *memBucket]()}
}

// SetFailure makes subsequent Offload calls fail with err; nil restores normal operation.
func (s *MemorySink) SetFailure(err error) {
	s.mu.Lock()
	s.fail = err
	s.mu.Unlock()
}

func (s *MemorySink) Offload(ctx context.Context, instrumentID string, msgs ...link.Message) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", link.ErrOffload, err)
	}

	s.mu.RLock()
	fail := s.fail
	s.mu.RUnlock()
	if fail != nil {
		return fmt.Errorf("%w: %w", link.ErrOffload, fail)
	}

	b, _ := s.buckets.LoadOrCompute(instrumentID, func() *memBucket { return &memBucket{} })
	b.mu.Lock()
	b.msgs = append(b.msgs, msgs...)
	b.mu.Unlock()

	return nil
}

// Messages returns a copy of the messages offloaded for instrumentID.
func (s *MemorySink) Messages(instrumentID string) []link.Message {
	b, ok := s.buckets.Load(instrumentID)
	if !ok {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]link.Message, len(b.msgs))
	copy(out, b.msgs)

	return out
}

// Len returns the number of messages held across every instrument.
func (s *MemorySink) Len() int {
	n := 0
	s.buckets.Range(func(_ string, b *memBucket) bool {
		b.mu.Lock()
		n += len(b.msgs)
		b.mu.Unlock()

		return true
	})

	return n
}
