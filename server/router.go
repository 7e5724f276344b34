package server

import (
	"context"
	"sort"

	"github.com/felixgeelhaar/mcp-wire/protocol"
)

// Router is the method table: a mapping from JSON-RPC method names to
// handlers, built once before serving begins. After Freeze it is read-only
// and therefore safe for concurrent use by every connection without
// locking.
type Router struct {
	methods map[string]HandlerFunc
	frozen  bool
}

// NewRouter creates an empty method table.
func NewRouter() *Router {
	return &Router{
		methods: make(map[string]HandlerFunc),
	}
}

// Register binds a method name to a handler. Register panics when called
// after Freeze or with a duplicate name; both are programmer errors in the
// startup path, not runtime conditions.
func (r *Router) Register(method string, h HandlerFunc) {
	if r.frozen {
		panic("server: Register after Freeze")
	}
	if _, dup := r.methods[method]; dup {
		panic("server: duplicate method " + method)
	}
	r.methods[method] = h
}

// Freeze marks the table complete. Serving a router before freezing it is
// permitted but registration must have finished.
func (r *Router) Freeze() *Router {
	r.frozen = true
	return r
}

// Methods returns the registered method names, sorted.
func (r *Router) Methods() []string {
	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HandleRequest routes a request by method name. An unknown method yields a
// -32601 error naming the method; the transport turns it into an error
// response, or into nothing when the request was a notification.
func (r *Router) HandleRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	h, ok := r.methods[req.Method]
	if !ok {
		return nil, protocol.NewMethodNotFound(req.Method)
	}
	return h(ctx, req)
}
