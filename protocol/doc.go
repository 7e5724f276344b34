// Package protocol defines the JSON-RPC 2.0 message envelope, error codes,
// and the newline-delimited frame reader used by every mcp-wire transport.
//
// # Envelope
//
// A Request carries jsonrpc, an optional id, a method, and raw params. A
// request without an id is a notification and never produces a response.
// A Response echoes the request id and carries exactly one of result or
// error; Response.MarshalJSON enforces that invariant on the wire.
//
// # Framing
//
// Messages travel one per line, UTF-8, each terminated by a single '\n'.
// Framer converts an arbitrarily chunked byte stream into complete frames:
//
//	var f protocol.Framer
//	f.Feed(chunk)
//	for frame, ok := f.Next(); ok; frame, ok = f.Next() {
//	    // frame holds exactly one envelope
//	}
//
// The extracted frame sequence is independent of how the stream was chunked.
//
// # Error codes
//
// Standard JSON-RPC 2.0 codes are defined as constants, with constructors
// that produce the message formats peers expect:
//
//	protocol.NewParseError(msg)        // -32700
//	protocol.NewMethodNotFound(method) // -32601, "method not found: <method>"
//	protocol.NewToolNotFound(name)     // -32601, "tool not found: <name>"
package protocol
