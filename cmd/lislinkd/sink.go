package main

import (
	"context"
	"io"
	"strings"

	"github.com/arloliu/go-lislink/link"
	"github.com/arloliu/go-lislink/logger"
	"github.com/arloliu/go-lislink/sink"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openSink selects the message store from the -sink value.
func openSink(_ context.Context, o options, l logger.Logger) (link.MessageSink, io.Closer, error) {
	if strings.EqualFold(o.sink, "memory") {
		return sink.NewMemorySink(), nopCloser{}, nil
	}

	s, err := sink.OpenFile(o.sink, sink.WithSync(o.sync), sink.WithFileLogger(l))
	if err != nil {
		return nil, nil, err
	}

	return s, s, nil
}
