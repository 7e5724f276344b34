package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/felixgeelhaar/mcp-wire/protocol"
)

// StdioTransport connects to an MCP server spawned as a subprocess,
// speaking the same newline-delimited frames over its stdin/stdout.
type StdioTransport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	mu       sync.Mutex
	respChan map[int64]chan *protocol.Response
	closed   bool

	readWG sync.WaitGroup
}

// NewStdioTransport creates a transport that spawns a subprocess.
func NewStdioTransport(command string, args ...string) (*StdioTransport, error) {
	cmd := exec.Command(command, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start command: %w", err)
	}

	t := &StdioTransport{
		cmd:      cmd,
		stdin:    stdin,
		stdout:   stdout,
		stderr:   stderr,
		respChan: make(map[int64]chan *protocol.Response),
	}

	t.readWG.Add(1)
	go t.readResponses()

	return t, nil
}

// Send sends a request and waits for the response with the matching id.
func (t *StdioTransport) Send(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, fmt.Errorf("transport closed")
	}

	var id int64
	if err := json.Unmarshal(req.ID, &id); err != nil {
		t.mu.Unlock()
		return nil, fmt.Errorf("invalid request ID: %w", err)
	}

	respCh := make(chan *protocol.Response, 1)
	t.respChan[id] = respCh
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.respChan, id)
		t.mu.Unlock()
	}()

	if err := t.writeFrame(req); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case resp := <-respCh:
		return resp, nil
	}
}

// Notify sends a notification; nothing is awaited.
func (t *StdioTransport) Notify(_ context.Context, req *protocol.Request) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return fmt.Errorf("transport closed")
	}
	return t.writeFrame(req)
}

// Close closes the transport and terminates the subprocess.
func (t *StdioTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	// Closing stdin signals EOF to the server.
	_ = t.stdin.Close()

	t.readWG.Wait()

	if t.cmd.Process != nil {
		_ = t.cmd.Process.Kill() //nolint:errcheck // process may have already exited
	}

	return t.cmd.Wait()
}

func (t *StdioTransport) writeFrame(req *protocol.Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.stdin.Write(append(data, protocol.FrameDelimiter)); err != nil {
		return fmt.Errorf("write request: %w", err)
	}
	return nil
}

func (t *StdioTransport) readResponses() {
	defer t.readWG.Done()
	dispatchResponses(t.stdout, func(id int64, resp *protocol.Response) {
		t.mu.Lock()
		if ch, ok := t.respChan[id]; ok {
			ch <- resp
		}
		t.mu.Unlock()
	})
}

// Stderr returns the stderr reader for the subprocess.
func (t *StdioTransport) Stderr() io.Reader {
	return t.stderr
}
