package transport

import (
	"context"
	"io"
	"os"
)

// Stdio implements MCP transport over stdin/stdout. It is the subprocess
// flavor of the same newline-delimited stream protocol the TCP transport
// speaks.
type Stdio struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	maxFrameSize int
}

// StdioOption configures a Stdio transport.
type StdioOption func(*Stdio)

// WithStdin sets a custom stdin reader.
func WithStdin(r io.Reader) StdioOption {
	return func(s *Stdio) {
		s.in = r
	}
}

// WithStdout sets a custom stdout writer.
func WithStdout(w io.Writer) StdioOption {
	return func(s *Stdio) {
		s.out = w
	}
}

// WithStderr sets a custom stderr writer.
func WithStderr(w io.Writer) StdioOption {
	return func(s *Stdio) {
		s.errOut = w
	}
}

// WithStdioMaxFrameSize bounds the bytes buffered without a complete frame.
// Zero, the default, means unbounded.
func WithStdioMaxFrameSize(n int) StdioOption {
	return func(s *Stdio) {
		s.maxFrameSize = n
	}
}

// NewStdio creates a new stdio transport.
func NewStdio(opts ...StdioOption) *Stdio {
	s := &Stdio{
		in:     os.Stdin,
		out:    os.Stdout,
		errOut: os.Stderr,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Addr returns the transport address.
func (s *Stdio) Addr() string {
	return "stdio"
}

// Serve processes requests from stdin until EOF or ctx cancellation.
func (s *Stdio) Serve(ctx context.Context, handler Handler) error {
	st := newStream(s.in, s.out, s.maxFrameSize)

	done := make(chan error, 1)
	go func() {
		done <- st.run(ctx, handler)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
