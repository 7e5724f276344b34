// Package transport provides the byte-stream transports an mcp-wire server
// can run on: TCP, stdio, and WebSocket.
//
// The wire format is identical everywhere: JSON-RPC 2.0 envelopes, one per
// line, UTF-8, terminated by a single '\n'. TCP and stdio share a stream
// core built on protocol.Framer, so a frame may arrive in any number of
// chunks and several frames may arrive in one read. WebSocket messages are
// already delimited and skip the framer.
//
// Every transport accepts a Handler and drives the same per-frame pipeline:
// malformed JSON is answered with a -32700 response carrying a null id,
// frames without jsonrpc "2.0" are silently dropped, notifications are
// executed but never answered, and handler failures become error responses
// rather than connection faults.
//
// The TCP transport serves each accepted connection from its own goroutine:
//
//	t := transport.NewTCP(":8080")
//	err := t.Serve(ctx, handler)
//
// Serve blocks until the context is canceled, draining in-flight requests
// before returning. A bind failure is returned immediately.
package transport
