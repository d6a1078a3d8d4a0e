package transport

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-lislink/link"
)

func TestNewTCPClient_Validation(t *testing.T) {
	_, err := NewTCPClient("", 1000)
	assert.ErrorIs(t, err, link.ErrInvalidConfig)

	_, err = NewTCPClient("localhost", 70000)
	assert.ErrorIs(t, err, link.ErrInvalidConfig)

	_, err = NewTCPClient("localhost", 1000, WithReadTimeout(time.Hour))
	require.Error(t, err)

	_, err = NewTCPClient("localhost", 1000, WithPublisher(nil))
	require.Error(t, err)
}

func TestTCPClient_ReadWrite(t *testing.T) {
	ln, port := listenLoopback(t)
	events := &eventRecorder{}

	accepted := acceptAsync(ln)

	c, err := NewTCPClient("127.0.0.1", port, append(shortTimeouts(), WithPublisher(events), WithInstrumentID("cobas"))...)
	require.NoError(t, err)
	assert.Equal(t, link.ConnTCPClient, c.Kind())
	assert.Empty(t, c.RemoteAddr())

	ctx := context.Background()
	require.NoError(t, c.Open(ctx))
	assert.NotEmpty(t, c.RemoteAddr())

	peer := waitPeer(t, accepted)

	_, err = peer.Write([]byte{0x05})
	require.NoError(t, err)

	buf := make([]byte, 16)
	n, err := c.Read(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x05}, buf[:n])

	require.NoError(t, c.Write(ctx, []byte{0x06}))
	got := make([]byte, 1)
	_, err = io.ReadFull(peer, got)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x06}, got)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "close is idempotent")

	assert.Equal(t,
		[]link.ConnStatus{link.ConnStatusConnecting, link.ConnStatusConnected, link.ConnStatusDisconnected},
		events.statuses())
	for _, ev := range events.events {
		assert.Equal(t, "cobas", ev.InstrumentID)
	}
}

func TestTCPClient_ReadTimeoutIsNotFatal(t *testing.T) {
	ln, port := listenLoopback(t)
	accepted := acceptAsync(ln)

	c, err := NewTCPClient("127.0.0.1", port, shortTimeouts()...)
	require.NoError(t, err)
	require.NoError(t, c.Open(context.Background()))
	defer c.Close()
	waitPeer(t, accepted)

	_, err = c.Read(context.Background(), make([]byte, 8))
	require.ErrorIs(t, err, ErrReadTimeout)
	assert.False(t, IsFatal(err))
}

func TestTCPClient_PeerCloseIsFatal(t *testing.T) {
	ln, port := listenLoopback(t)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			_ = conn.Close()
		}
	}()

	c, err := NewTCPClient("127.0.0.1", port, shortTimeouts()...)
	require.NoError(t, err)
	require.NoError(t, c.Open(context.Background()))
	defer c.Close()

	buf := make([]byte, 8)
	var readErr error
	for i := 0; i < 20; i++ {
		_, readErr = c.Read(context.Background(), buf)
		if !errors.Is(readErr, ErrReadTimeout) {
			break
		}
	}

	require.ErrorIs(t, readErr, ErrPeerClosed)
	assert.True(t, IsFatal(readErr))
}

func TestTCPClient_ContextCancelUnblocksRead(t *testing.T) {
	ln, port := listenLoopback(t)
	accepted := acceptAsync(ln)

	c, err := NewTCPClient("127.0.0.1", port, WithReadTimeout(10*time.Second))
	require.NoError(t, err)
	require.NoError(t, c.Open(context.Background()))
	defer c.Close()
	waitPeer(t, accepted)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	_, err = c.Read(ctx, make([]byte, 8))
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestTCPClient_DialFailure(t *testing.T) {
	ln, port := listenLoopback(t)
	require.NoError(t, ln.Close())

	events := &eventRecorder{}
	c, err := NewTCPClient("127.0.0.1", port, append(shortTimeouts(), WithPublisher(events))...)
	require.NoError(t, err)

	err = c.Open(context.Background())
	require.Error(t, err)

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "dial", connErr.Op)
	assert.Equal(t, []link.ConnStatus{link.ConnStatusConnecting, link.ConnStatusDisconnected}, events.statuses())

	_, err = c.Read(context.Background(), make([]byte, 1))
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestTCPServer_AcceptsOneConnectionAtATime(t *testing.T) {
	s, err := NewTCPServer("127.0.0.1", 0, shortTimeouts()...)
	require.NoError(t, err)
	defer s.Shutdown()

	require.NoError(t, s.Listen())
	assert.Equal(t, link.ConnTCPServer, s.Kind())

	first := dialServer(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Open(ctx))

	// A second analyzer connection is closed by the server.
	second := dialServer(t, s)
	_ = second.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = second.Read(make([]byte, 1))
	require.Error(t, err)
	assert.Equal(t, uint64(1), s.Rejected())

	_, err = first.Write([]byte("MSH"))
	require.NoError(t, err)

	buf := make([]byte, 8)
	n, err := s.Read(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, "MSH", string(buf[:n]))
}

func TestTCPServer_ListenerSurvivesClose(t *testing.T) {
	events := &eventRecorder{}
	s, err := NewTCPServer("127.0.0.1", 0, append(shortTimeouts(), WithPublisher(events))...)
	require.NoError(t, err)
	defer s.Shutdown()
	require.NoError(t, s.Listen())

	addr := s.Addr().String()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	for i := 0; i < 2; i++ {
		conn := dialServer(t, s)
		require.NoError(t, s.Open(ctx), "connection %d", i)
		assert.Equal(t, addr, s.Addr().String())

		require.NoError(t, conn.Close())

		buf := make([]byte, 8)
		var readErr error
		for j := 0; j < 40; j++ {
			_, readErr = s.Read(ctx, buf)
			if !errors.Is(readErr, ErrReadTimeout) {
				break
			}
		}
		require.ErrorIs(t, readErr, ErrPeerClosed)
		require.NoError(t, s.Close())
	}

	assert.Equal(t, []link.ConnStatus{
		link.ConnStatusConnecting, link.ConnStatusConnected, link.ConnStatusDisconnected,
		link.ConnStatusConnecting, link.ConnStatusConnected, link.ConnStatusDisconnected,
	}, events.statuses())
}

func TestTCPServer_OpenHonorsContextAndShutdown(t *testing.T) {
	s, err := NewTCPServer("127.0.0.1", 0, shortTimeouts()...)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, s.Open(ctx), context.DeadlineExceeded)

	done := make(chan error, 1)
	go func() { done <- s.Open(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, s.Shutdown())
	require.NoError(t, s.Shutdown())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Open was not unblocked by Shutdown")
	}

	assert.ErrorIs(t, s.Listen(), ErrClosed)
}

func TestTCPServer_PortInUse(t *testing.T) {
	ln, port := listenLoopback(t)
	_ = ln

	s, err := NewTCPServer("127.0.0.1", port, shortTimeouts()...)
	require.NoError(t, err)
	defer s.Shutdown()

	err = s.Listen()
	if err == nil {
		// SO_REUSEPORT lets some platforms share the port.
		t.Skip("platform allows binding a port in use")
	}

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "listen", connErr.Op)
}

func TestNew_Dispatch(t *testing.T) {
	base := link.InstrumentLinkConfig{InstrumentID: "i1", Host: "127.0.0.1", Port: 5000, SerialPath: "/dev/ttyUSB0"}

	cfg := base
	cfg.ConnType = link.ConnTCPClient
	ch, err := New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &TCPClient{}, ch)

	cfg.ConnType = link.ConnTCPServer
	ch, err = New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &TCPServer{}, ch)

	cfg.ConnType = link.ConnSerial
	ch, err = New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &SerialChannel{}, ch)

	cfg.ConnType = "carrier-pigeon"
	_, err = New(cfg)
	assert.ErrorIs(t, err, link.ErrInvalidConfig)
}
