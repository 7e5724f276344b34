// Package transport provides byte-stream transports for mcp-wire servers.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/mcp-wire/protocol"
)

// Handler processes incoming MCP requests.
type Handler interface {
	HandleRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error)
}

// HandlerFunc is an adapter to allow ordinary functions as handlers.
type HandlerFunc func(ctx context.Context, req *protocol.Request) (*protocol.Response, error)

// HandleRequest calls f(ctx, req).
func (f HandlerFunc) HandleRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	return f(ctx, req)
}

// Transport defines the communication layer interface.
type Transport interface {
	// Serve starts the transport, blocking until ctx is canceled or an error occurs.
	Serve(ctx context.Context, handler Handler) error

	// Addr returns the transport's address description.
	Addr() string
}

// NotificationSender can send JSON-RPC notifications to clients.
type NotificationSender interface {
	SendNotification(method string, params any) error
}

// notificationSenderKey is the context key for the notification sender.
type notificationSenderKey struct{}

// ContextWithNotificationSender returns a context with the notification sender attached.
func ContextWithNotificationSender(ctx context.Context, sender NotificationSender) context.Context {
	return context.WithValue(ctx, notificationSenderKey{}, sender)
}

// NotificationSenderFromContext returns the notification sender from context, or nil if none.
func NotificationSenderFromContext(ctx context.Context) NotificationSender {
	sender, _ := ctx.Value(notificationSenderKey{}).(NotificationSender)
	return sender
}

// Notification represents a JSON-RPC notification (no ID, no response expected).
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// processFrame runs the per-frame dispatch pipeline shared by all
// transports: decode, version check, handler invocation, response shaping.
//
// It returns the response to write back, or nil when the frame produces
// nothing: notifications, silently dropped frames, and nil handler results.
// The second return reports whether the frame was dropped for a missing or
// mismatched jsonrpc version; that drop is deliberately invisible on the
// wire but transports may count it.
func processFrame(ctx context.Context, handler Handler, frame []byte) (*protocol.Response, bool) {
	var req protocol.Request
	if err := json.Unmarshal(frame, &req); err != nil {
		// The id is unknowable here, so it goes out as null.
		return protocol.NewErrorResponse(nil, protocol.NewParseError("parse error: "+err.Error())), false
	}

	if req.JSONRPC != protocol.JSONRPCVersion {
		return nil, true
	}

	resp, err := safeHandle(ctx, handler, &req)

	// Notifications never produce a response, not even a failed one.
	if req.IsNotification() {
		return nil, false
	}

	if err != nil {
		var mcpErr *protocol.Error
		if errors.As(err, &mcpErr) {
			return protocol.NewErrorResponse(req.ID, mcpErr), false
		}
		return protocol.NewErrorResponse(req.ID, protocol.NewInternalError(err.Error())), false
	}

	return resp, false
}

// safeHandle invokes the handler with a recover barrier: a panic becomes
// an internal error instead of killing the connection's serving goroutine.
func safeHandle(ctx context.Context, handler Handler, req *protocol.Request) (resp *protocol.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp = nil
			err = protocol.NewInternalError(fmt.Sprintf("panic: %v", r))
		}
	}()
	return handler.HandleRequest(ctx, req)
}
