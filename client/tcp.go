package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/felixgeelhaar/mcp-wire/protocol"
)

// TCPTransport connects to an MCP server over a TCP socket carrying
// newline-delimited JSON-RPC frames. Responses are correlated to in-flight
// requests by id, so calls may be issued from several goroutines.
type TCPTransport struct {
	conn net.Conn

	mu       sync.Mutex
	respChan map[int64]chan *protocol.Response
	closed   bool

	readWG sync.WaitGroup
}

// DialTCP connects to the server at addr ("host:port").
func DialTCP(addr string) (*TCPTransport, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	t := &TCPTransport{
		conn:     conn,
		respChan: make(map[int64]chan *protocol.Response),
	}

	t.readWG.Add(1)
	go t.readResponses()

	return t, nil
}

// Send sends a request and waits for the response with the matching id.
func (t *TCPTransport) Send(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
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
func (t *TCPTransport) Notify(_ context.Context, req *protocol.Request) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return fmt.Errorf("transport closed")
	}
	return t.writeFrame(req)
}

// Close closes the connection and stops the read loop.
func (t *TCPTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	err := t.conn.Close()
	t.readWG.Wait()
	return err
}

func (t *TCPTransport) writeFrame(req *protocol.Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.conn.Write(append(data, protocol.FrameDelimiter)); err != nil {
		return fmt.Errorf("write request: %w", err)
	}
	return nil
}

func (t *TCPTransport) readResponses() {
	defer t.readWG.Done()
	dispatchResponses(t.conn, func(id int64, resp *protocol.Response) {
		t.mu.Lock()
		if ch, ok := t.respChan[id]; ok {
			ch <- resp
		}
		t.mu.Unlock()
	})
}

// dispatchResponses reads newline-delimited frames from r until it fails,
// decoding responses and handing them to dispatch. Malformed frames and
// server notifications (no id) are skipped.
func dispatchResponses(r io.Reader, dispatch func(id int64, resp *protocol.Response)) {
	var framer protocol.Framer
	buf := make([]byte, 4096)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			if ferr := framer.Feed(buf[:n]); ferr != nil {
				return
			}
			for {
				frame, ok := framer.Next()
				if !ok {
					break
				}

				var resp protocol.Response
				if err := json.Unmarshal(frame, &resp); err != nil {
					continue
				}

				var id int64
				if err := json.Unmarshal(resp.ID, &id); err != nil {
					continue
				}

				dispatch(id, &resp)
			}
		}
		if err != nil {
			return
		}
	}
}
