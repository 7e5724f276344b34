package transport

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"

	"github.com/felixgeelhaar/mcp-wire/protocol"
)

// readChunkSize is the read buffer size for stream transports.
const readChunkSize = 4096

// stream pumps frames between one byte-stream connection and a handler.
// It owns the connection's Framer and read loop, so each connection gets
// its own stream; the write side is serialized by a mutex so notification
// sends never interleave with responses.
type stream struct {
	r io.Reader
	w io.Writer

	framer protocol.Framer

	writeMu sync.Mutex
	dropped atomic.Int64
}

func newStream(r io.Reader, w io.Writer, maxFrameSize int) *stream {
	s := &stream{r: r, w: w}
	s.framer.MaxFrameSize = maxFrameSize
	return s
}

// run reads the stream until EOF, a read failure, or an oversized frame,
// dispatching every complete frame in arrival order. Each frame is fully
// processed and answered before the next one is taken, so responses on one
// connection never reorder.
func (s *stream) run(ctx context.Context, handler Handler) error {
	ctx = ContextWithNotificationSender(ctx, s)

	buf := make([]byte, readChunkSize)
	for {
		n, err := s.r.Read(buf)
		if n > 0 {
			if ferr := s.framer.Feed(buf[:n]); ferr != nil {
				return ferr
			}
			for {
				frame, ok := s.framer.Next()
				if !ok {
					break
				}
				s.handleFrame(ctx, handler, frame)
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

func (s *stream) handleFrame(ctx context.Context, handler Handler, frame []byte) {
	resp, droppedFrame := processFrame(ctx, handler, frame)
	if droppedFrame {
		s.dropped.Add(1)
		return
	}
	if resp != nil {
		s.writeResponse(resp)
	}
}

// Dropped reports how many frames were discarded for carrying a missing or
// mismatched jsonrpc version. The drop itself is silent on the wire.
func (s *stream) Dropped() int64 {
	return s.dropped.Load()
}

// writeResponse frames and writes one response. Write failures are
// swallowed: the peer is gone and the read side will notice shortly.
func (s *stream) writeResponse(resp *protocol.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, _ = s.w.Write(data)
	_, _ = s.w.Write([]byte{protocol.FrameDelimiter})
}

// SendNotification sends a JSON-RPC notification to the peer.
func (s *stream) SendNotification(method string, params any) error {
	paramsData, err := json.Marshal(params)
	if err != nil {
		return err
	}

	notif := Notification{
		JSONRPC: protocol.JSONRPCVersion,
		Method:  method,
		Params:  paramsData,
	}

	data, err := json.Marshal(notif)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.w.Write(data); err != nil {
		return err
	}
	_, err = s.w.Write([]byte{protocol.FrameDelimiter})
	return err
}
