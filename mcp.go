// Package mcp provides a framework for serving MCP (Model Context Protocol)
// endpoints over newline-delimited JSON-RPC 2.0 byte streams.
//
// Servers register tools and resources once at startup; requests are routed
// through an immutable method table, so any number of concurrent
// connections can be served without locking. Transports are pluggable: TCP,
// stdio, and WebSocket ship in the transport package, all speaking the same
// wire protocol.
//
// Basic usage:
//
//	srv := mcp.NewServer(mcp.ServerInfo{
//	    Name:    "my-server",
//	    Version: "1.0.0",
//	    Capabilities: mcp.Capabilities{Tools: true},
//	})
//
//	type EchoInput struct {
//	    Text string `json:"text" jsonschema:"required"`
//	}
//
//	srv.Tool("echo").
//	    Description("Echo the input text back").
//	    Handler(func(ctx context.Context, input EchoInput) (string, error) {
//	        return "Echo: " + input.Text, nil
//	    })
//
//	mcp.ServeTCP(ctx, srv, ":8080")
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/felixgeelhaar/mcp-wire/middleware"
	"github.com/felixgeelhaar/mcp-wire/protocol"
	"github.com/felixgeelhaar/mcp-wire/server"
	"github.com/felixgeelhaar/mcp-wire/transport"
)

// Re-export core types for convenience

// ServerInfo contains server metadata exposed to clients.
type ServerInfo = server.Info

// Capabilities declares what features the server supports.
type Capabilities = server.Capabilities

// Server is the MCP server instance.
type Server = server.Server

// Option configures a Server.
type Option = server.Option

// Resource types
type ResourceContent = server.ResourceContent
type ResourceInfo = server.ResourceInfo

// Wire envelope types, for custom method handlers.
type Request = protocol.Request
type Response = protocol.Response

// NewResponse creates a successful response echoing the given request id.
func NewResponse(id json.RawMessage, result any) *Response {
	return protocol.NewResponse(id, result)
}

// Middleware types
type Middleware = middleware.Middleware
type MiddlewareHandlerFunc = middleware.HandlerFunc
type Logger = middleware.Logger
type LogField = middleware.Field
type RateLimitOption = middleware.RateLimitOption

// RateLimit re-exports for convenience.
var (
	RateLimit            = middleware.RateLimit
	RateLimitByMethod    = middleware.RateLimitByMethod
	RateLimitByClient    = middleware.RateLimitByClient
	WithRateLimitKeyFunc = middleware.WithRateLimitKeyFunc
	WithRateLimitLogger  = middleware.WithRateLimitLogger
)

// SizeLimit re-exports for convenience.
type SizeLimitOption = middleware.SizeLimitOption

var (
	SizeLimit           = middleware.SizeLimit
	WithSizeLimitLogger = middleware.WithSizeLimitLogger
)

// Size limit presets.
const (
	KB = middleware.KB
	MB = middleware.MB
)

// ServeOption configures how the server is run.
type ServeOption func(*serveOptions)

type serveOptions struct {
	middleware []Middleware
	methods    map[string]server.HandlerFunc
}

// WithMiddleware adds middleware to the request handling chain.
func WithMiddleware(m ...Middleware) ServeOption {
	return func(o *serveOptions) {
		o.middleware = append(o.middleware, m...)
	}
}

// WithMethod registers an extra method on top of the built-in MCP surface.
// Registration happens before serving begins; the resulting method table is
// immutable afterward.
func WithMethod(name string, h server.HandlerFunc) ServeOption {
	return func(o *serveOptions) {
		if o.methods == nil {
			o.methods = make(map[string]server.HandlerFunc)
		}
		o.methods[name] = h
	}
}

// NewServer creates a new MCP server with the given info and options.
func NewServer(info ServerInfo, opts ...Option) *Server {
	return server.New(info, opts...)
}

// TCPOption configures the TCP transport.
type TCPOption = transport.TCPOption

// ServeTCP runs the server on a TCP listener, one goroutine per accepted
// connection. It blocks until the context is canceled or the listener
// fails; a bind failure is returned immediately.
func ServeTCP(ctx context.Context, srv *Server, addr string, opts ...TCPOption) error {
	t := transport.NewTCP(addr, opts...)
	return t.Serve(ctx, NewHandler(srv))
}

// ServeTCPWithMiddleware runs the server over TCP with middleware support.
func ServeTCPWithMiddleware(ctx context.Context, srv *Server, addr string, tcpOpts []TCPOption, serveOpts ...ServeOption) error {
	t := transport.NewTCP(addr, tcpOpts...)
	return t.Serve(ctx, NewHandler(srv, serveOpts...))
}

// ServeStdio runs the server using stdio transport.
// This blocks until the context is canceled or stdin reaches EOF.
func ServeStdio(ctx context.Context, srv *Server, opts ...ServeOption) error {
	t := transport.NewStdio()
	return t.Serve(ctx, NewHandler(srv, opts...))
}

// WebSocketOption configures the WebSocket transport.
type WebSocketOption = transport.WebSocketOption

// ServeWebSocket runs the server using WebSocket transport.
// This blocks until the context is canceled or an error occurs.
func ServeWebSocket(ctx context.Context, srv *Server, addr string, opts ...WebSocketOption) error {
	t := transport.NewWebSocket(addr, opts...)
	return t.Serve(ctx, NewHandler(srv))
}

// ServeWebSocketWithMiddleware runs the server over WebSocket with middleware support.
func ServeWebSocketWithMiddleware(ctx context.Context, srv *Server, addr string, wsOpts []WebSocketOption, serveOpts ...ServeOption) error {
	t := transport.NewWebSocket(addr, wsOpts...)
	return t.Serve(ctx, NewHandler(srv, serveOpts...))
}

// Middleware re-exports

// Chain composes multiple middleware into a single middleware.
func Chain(middlewares ...Middleware) Middleware {
	return middleware.Chain(middlewares...)
}

// Recover returns middleware that catches panics and converts them to internal errors.
func Recover() Middleware {
	return middleware.Recover()
}

// RecoverWithHandler returns middleware that catches panics and calls the provided handler.
func RecoverWithHandler(handler func(ctx context.Context, req *protocol.Request, panicVal any) (*protocol.Response, error)) Middleware {
	return middleware.RecoverWithHandler(handler)
}

// Timeout returns middleware that enforces a request deadline.
func Timeout(d time.Duration) Middleware {
	return middleware.Timeout(d)
}

// RequestID returns middleware that injects a unique request ID into the context.
func RequestID() Middleware {
	return middleware.RequestID()
}

// RequestIDFromContext returns the request ID from the context, or empty string if not set.
func RequestIDFromContext(ctx context.Context) string {
	return middleware.RequestIDFromContext(ctx)
}

// Logging returns middleware that logs request details.
func Logging(logger Logger) Middleware {
	return middleware.Logging(logger)
}

// DefaultMiddleware returns the recommended production middleware stack.
func DefaultMiddleware(logger Logger) []Middleware {
	return middleware.DefaultStack(logger)
}

// DefaultMiddlewareWithTimeout returns the default stack with a timeout middleware.
func DefaultMiddlewareWithTimeout(logger Logger, timeout time.Duration) []Middleware {
	return middleware.DefaultStackWithTimeout(logger, timeout)
}

// LogF creates a new log field with the given key and value.
func LogF(key string, value any) LogField {
	return middleware.F(key, value)
}

// NewHandler builds the transport handler for a server: the method table
// for the MCP surface plus any extra methods, wrapped in the configured
// middleware chain. The table is frozen before serving, so it can be read
// concurrently by every connection.
func NewHandler(srv *Server, opts ...ServeOption) transport.Handler {
	options := &serveOptions{}
	for _, opt := range opts {
		opt(options)
	}

	d := &dispatcher{srv: srv}

	router := server.NewRouter()
	router.Register(protocol.MethodInitialize, d.handleInitialize)
	router.Register(protocol.MethodInitialized, d.handleInitialized)
	router.Register(protocol.MethodInitializedAlias, d.handleInitialized)
	router.Register(protocol.MethodPing, d.handlePing)
	router.Register(protocol.MethodToolsList, d.handleToolsList)
	router.Register(protocol.MethodToolsCall, d.handleToolsCall)
	router.Register(protocol.MethodResourcesList, d.handleResourcesList)
	router.Register(protocol.MethodResourcesRead, d.handleResourcesRead)
	for name, h := range options.methods {
		router.Register(name, h)
	}
	router.Freeze()

	// Recover sits innermost, always: a panicking handler must surface as
	// a -32603 response, never as a fault on the serving goroutine.
	handle := middleware.Recover()(middleware.HandlerFunc(router.HandleRequest))
	if len(options.middleware) > 0 {
		handle = middleware.Chain(options.middleware...)(handle)
	}

	return transport.HandlerFunc(handle)
}

// dispatcher implements the built-in MCP methods against a Server's
// registries.
type dispatcher struct {
	srv *Server
}

func (d *dispatcher) handleInitialize(_ context.Context, req *protocol.Request) (*protocol.Response, error) {
	manifest := d.srv.Manifest()

	capabilities := make(map[string]any)
	if manifest.Capabilities.Tools {
		capabilities["tools"] = map[string]any{}
	}
	if manifest.Capabilities.Resources {
		capabilities["resources"] = map[string]any{}
	}

	result := map[string]any{
		"protocolVersion": manifest.ProtocolVersion,
		"serverInfo": map[string]any{
			"name":    manifest.Name,
			"version": manifest.Version,
		},
		"capabilities": capabilities,
	}

	return protocol.NewResponse(req.ID, result), nil
}

// handleInitialized acknowledges the initialized notification. It never
// produces a response, even when a client mistakenly sends it with an id.
func (d *dispatcher) handleInitialized(_ context.Context, _ *protocol.Request) (*protocol.Response, error) {
	return nil, nil
}

func (d *dispatcher) handlePing(_ context.Context, req *protocol.Request) (*protocol.Response, error) {
	return protocol.NewResponse(req.ID, map[string]any{}), nil
}

func (d *dispatcher) handleToolsList(_ context.Context, req *protocol.Request) (*protocol.Response, error) {
	tools := d.srv.Tools()

	toolList := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		toolList = append(toolList, map[string]any{
			"name":        t.Name,
			"description": t.Description,
			"inputSchema": t.InputSchema,
		})
	}

	return protocol.NewResponse(req.ID, map[string]any{"tools": toolList}), nil
}

func (d *dispatcher) handleToolsCall(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, protocol.NewInvalidParams(err.Error())
	}

	tool, ok := d.srv.GetTool(params.Name)
	if !ok {
		// Same code as an unknown method; clients expect the tool
		// name in the message.
		return nil, protocol.NewToolNotFound(params.Name)
	}

	result, err := tool.Execute(ctx, params.Arguments)
	if err != nil {
		var mcpErr *protocol.Error
		if errors.As(err, &mcpErr) {
			return nil, mcpErr
		}
		return nil, protocol.NewInternalError(err.Error())
	}

	response := map[string]any{
		"content": []map[string]any{
			{
				"type": "text",
				"text": toolText(result),
			},
		},
	}

	return protocol.NewResponse(req.ID, response), nil
}

// toolText renders a tool result as the text content item clients expect.
// String results pass through untouched; anything else is JSON-encoded.
func toolText(result any) string {
	if s, ok := result.(string); ok {
		return s
	}
	data, err := json.Marshal(result)
	if err != nil {
		return ""
	}
	return string(data)
}

func (d *dispatcher) handleResourcesList(_ context.Context, req *protocol.Request) (*protocol.Response, error) {
	resources := d.srv.Resources()

	resourceList := make([]map[string]any, 0, len(resources))
	for _, r := range resources {
		item := map[string]any{
			"uri":  r.URITemplate,
			"name": r.Name,
		}
		if r.Description != "" {
			item["description"] = r.Description
		}
		if r.MimeType != "" {
			item["mimeType"] = r.MimeType
		}
		resourceList = append(resourceList, item)
	}

	return protocol.NewResponse(req.ID, map[string]any{"resources": resourceList}), nil
}

func (d *dispatcher) handleResourcesRead(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	var params struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, protocol.NewInvalidParams(err.Error())
	}

	resource, ok := d.srv.FindResourceForURI(params.URI)
	if !ok {
		return nil, protocol.NewNotFound("resource not found: " + params.URI)
	}

	content, err := resource.Read(ctx, params.URI)
	if err != nil {
		var mcpErr *protocol.Error
		if errors.As(err, &mcpErr) {
			return nil, mcpErr
		}
		return nil, protocol.NewInternalError(err.Error())
	}

	item := map[string]any{
		"uri":      content.URI,
		"mimeType": content.MimeType,
		"text":     content.Text,
	}
	if content.Blob != "" {
		item["blob"] = content.Blob
	}

	return protocol.NewResponse(req.ID, map[string]any{
		"contents": []map[string]any{item},
	}), nil
}
