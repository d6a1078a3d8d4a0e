package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/arloliu/go-lislink/link"
	"github.com/arloliu/go-lislink/logger"
)

// FileSink appends messages to a JSONL file.
type FileSink struct {
	path   string
	sync   bool
	logger logger.Logger

	mu   sync.Mutex
	file *os.File
}

var _ link.MessageSink = (*FileSink)(nil)

// FileOption configures a FileSink.
type FileOption func(*FileSink)

// WithSync makes every Offload fsync the file before returning.
func WithSync(enabled bool) FileOption {
	return func(s *FileSink) { s.sync = enabled }
}

// WithFileLogger sets the logger.
func WithFileLogger(l logger.Logger) FileOption {
	return func(s *FileSink) {
		if l != nil {
			s.logger = l
		}
	}
}

// OpenFile opens path for appending, creating it when missing.
func OpenFile(path string, opts ...FileOption) (*FileSink, error) {
	s := &FileSink{path: path, logger: logger.GetLogger()}
	for _, opt := range opts {
		opt(s)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, fmt.Errorf("sink: open %s: %w", path, err)
	}
	s.file = f

	return s, nil
}

// Offload writes msgs as a single append so that a batch never interleaves
// with another one.
func (s *FileSink) Offload(ctx context.Context, instrumentID string, msgs ...link.Message) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", link.ErrOffload, err)
	}
	if len(msgs) == 0 {
		return nil
	}

	batchID := uuid.NewString()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, msg := range msgs {
		if err := enc.Encode(newRecord(batchID, instrumentID, msg)); err != nil {
			return fmt.Errorf("%w: encode: %w", link.ErrOffload, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return fmt.Errorf("%w: %s is closed", link.ErrOffload, s.path)
	}

	if _, err := s.file.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("%w: write %s: %w", link.ErrOffload, s.path, err)
	}

	if s.sync {
		if err := s.file.Sync(); err != nil {
			return fmt.Errorf("%w: sync %s: %w", link.ErrOffload, s.path, err)
		}
	}

	s.logger.Debug("messages appended", "instrument", instrumentID, "batch", batchID, "count", len(msgs))

	return nil
}

// Close closes the file. Later Offload calls fail.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}

	err := s.file.Close()
	s.file = nil

	return err
}

// ReadRecords reads every record of a JSONL file written by FileSink.
func ReadRecords(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sink: open %s: %w", path, err)
	}
	defer f.Close()

	var out []Record
	dec := json.NewDecoder(f)
	for {
		var rec Record
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("sink: decode %s: %w", path, err)
		}
		out = append(out, rec)
	}
}
