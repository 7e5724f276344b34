package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/mcp-wire/protocol"
)

// TCPState describes the lifecycle of a TCP transport. Transitions happen
// only inside Serve: Created -> Listening on startup, Listening -> Stopped
// on context cancellation or a fatal listener error. A stopped transport is
// not reusable.
type TCPState int32

const (
	TCPStateCreated TCPState = iota
	TCPStateListening
	TCPStateStopped
)

// String returns the state name.
func (s TCPState) String() string {
	switch s {
	case TCPStateCreated:
		return "created"
	case TCPStateListening:
		return "listening"
	case TCPStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ErrServeDone is returned when Serve is called on a transport that has
// already served once.
var ErrServeDone = errors.New("transport: tcp transport already served")

// TCP implements MCP transport over plain TCP connections carrying
// newline-delimited JSON-RPC frames. Each accepted connection is served by
// its own goroutine with its own frame buffer; connections share nothing
// but the handler, which must be safe for concurrent use.
type TCP struct {
	addr     string
	listener net.Listener

	maxFrameSize    int
	shutdownTimeout time.Duration
	onConn          func(id string, remote net.Addr)

	state atomic.Int32
	sm    *ShutdownManager

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// TCPOption configures a TCP transport.
type TCPOption func(*TCP)

// WithTCPListener uses a pre-bound listener instead of binding addr.
// Useful for tests and for callers that want to report bind failures
// themselves before serving.
func WithTCPListener(l net.Listener) TCPOption {
	return func(t *TCP) {
		t.listener = l
	}
}

// WithTCPMaxFrameSize bounds the bytes buffered per connection without a
// complete frame; a connection exceeding it is dropped. Zero, the default,
// means unbounded.
func WithTCPMaxFrameSize(n int) TCPOption {
	return func(t *TCP) {
		t.maxFrameSize = n
	}
}

// WithTCPShutdownTimeout sets how long Serve waits for in-flight requests
// when the context is canceled.
func WithTCPShutdownTimeout(d time.Duration) TCPOption {
	return func(t *TCP) {
		t.shutdownTimeout = d
	}
}

// WithTCPConnObserver registers a callback invoked for every accepted
// connection with its assigned id and remote address.
func WithTCPConnObserver(fn func(id string, remote net.Addr)) TCPOption {
	return func(t *TCP) {
		t.onConn = fn
	}
}

// NewTCP creates a new TCP transport that will listen on addr.
func NewTCP(addr string, opts ...TCPOption) *TCP {
	t := &TCP{
		addr:            addr,
		shutdownTimeout: 5 * time.Second,
		conns:           make(map[net.Conn]struct{}),
	}

	for _, opt := range opts {
		opt(t)
	}

	t.sm = NewShutdownManager(ShutdownConfig{Timeout: t.shutdownTimeout})

	return t
}

// Addr returns the bound address once listening, the configured address
// before that.
func (t *TCP) Addr() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener != nil {
		return t.listener.Addr().String()
	}
	return t.addr
}

// State returns the current lifecycle state.
func (t *TCP) State() TCPState {
	return TCPState(t.state.Load())
}

// Serve binds the listener if needed and accepts connections until ctx is
// canceled or the listener fails. A bind failure is returned immediately
// with the transport stopped. Cancellation drains in-flight requests up to
// the shutdown timeout and returns nil.
func (t *TCP) Serve(ctx context.Context, handler Handler) error {
	if !t.state.CompareAndSwap(int32(TCPStateCreated), int32(TCPStateListening)) {
		return ErrServeDone
	}
	defer t.state.Store(int32(TCPStateStopped))

	t.mu.Lock()
	ln := t.listener
	t.mu.Unlock()

	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", t.addr)
		if err != nil {
			return err
		}
		t.mu.Lock()
		t.listener = ln
		t.mu.Unlock()
	}

	// Unblock Accept on cancellation.
	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})
	defer stop()

	// Handler wrapper that refuses work once draining starts.
	tracked := HandlerFunc(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
		if !t.sm.TrackRequest() {
			return nil, protocol.NewInternalError("server is shutting down")
		}
		defer t.sm.CompleteRequest()
		return handler.HandleRequest(ctx, req)
	})

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				// Graceful path: wait for in-flight work, then
				// drop whatever connections remain.
				_ = t.sm.Shutdown(context.Background())
				t.closeAllConns()
				wg.Wait()
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				wg.Wait()
				return nil
			}
			return err
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			t.serveConn(ctx, conn, tracked)
		}()
	}
}

func (t *TCP) serveConn(ctx context.Context, conn net.Conn, handler Handler) {
	t.mu.Lock()
	t.conns[conn] = struct{}{}
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.conns, conn)
		t.mu.Unlock()
		_ = conn.Close()
	}()

	if t.onConn != nil {
		t.onConn(uuid.NewString(), conn.RemoteAddr())
	}

	// Read failures and oversized frames terminate only this connection.
	s := newStream(conn, conn, t.maxFrameSize)
	_ = s.run(ctx, handler)
}

func (t *TCP) closeAllConns() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for conn := range t.conns {
		_ = conn.Close()
	}
}
