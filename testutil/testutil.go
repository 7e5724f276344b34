// Package testutil provides testing utilities for MCP servers.
//
// This package helps developers write tests for their MCP servers by providing
// an in-memory test client, mock transports, and assertion helpers.
//
// Example usage:
//
//	func TestMyServer(t *testing.T) {
//	    srv := mcp.NewServer(mcp.ServerInfo{Name: "test", Version: "1.0.0"})
//	    srv.Tool("greet").Handler(func(ctx context.Context, input GreetInput) (string, error) {
//	        return "Hello, " + input.Name, nil
//	    })
//
//	    tc := testutil.NewTestClient(t, srv)
//	    defer tc.Close()
//
//	    result, err := tc.CallTool("greet", map[string]any{"name": "World"})
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	}
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"testing"

	mcp "github.com/felixgeelhaar/mcp-wire"
	"github.com/felixgeelhaar/mcp-wire/protocol"
	"github.com/felixgeelhaar/mcp-wire/server"
	"github.com/felixgeelhaar/mcp-wire/transport"
)

// TestClient drives an MCP server in-memory, without a transport. Requests
// go through the same method table and handler chain a real connection
// would use.
type TestClient struct {
	t       testing.TB
	handler transport.Handler

	mu    sync.Mutex
	reqID int64
}

// NewTestClient creates a test client for the given server and performs
// the initialize handshake.
func NewTestClient(t testing.TB, srv *server.Server, opts ...mcp.ServeOption) *TestClient {
	t.Helper()

	tc := &TestClient{
		t:       t,
		handler: mcp.NewHandler(srv, opts...),
	}

	if _, err := tc.Initialize(); err != nil {
		t.Fatalf("failed to initialize server: %v", err)
	}

	return tc
}

// NewTestClientWithHandler creates a test client with a custom handler.
// This is useful for testing middleware.
func NewTestClientWithHandler(t testing.TB, handler transport.Handler) *TestClient {
	t.Helper()
	return &TestClient{
		t:       t,
		handler: handler,
	}
}

// Close releases the client. The in-memory client holds nothing, but
// callers should still defer it for symmetry with real transports.
func (tc *TestClient) Close() {}

func (tc *TestClient) nextID() json.RawMessage {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.reqID++
	return json.RawMessage(fmt.Sprintf("%d", tc.reqID))
}

// SendRequest sends a raw request and returns the response. Handler errors
// come back as the error return, typically a *protocol.Error.
func (tc *TestClient) SendRequest(method string, params any) (*protocol.Response, error) {
	tc.t.Helper()

	var paramsData json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		paramsData = data
	}

	req := &protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		ID:      tc.nextID(),
		Method:  method,
		Params:  paramsData,
	}

	return tc.handler.HandleRequest(context.Background(), req)
}

// SendNotification sends a notification; its response, if any, is
// discarded the way a transport would discard it.
func (tc *TestClient) SendNotification(method string, params any) error {
	tc.t.Helper()

	var paramsData json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("failed to marshal params: %w", err)
		}
		paramsData = data
	}

	req := &protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		Method:  method,
		Params:  paramsData,
	}

	_, err := tc.handler.HandleRequest(context.Background(), req)
	return err
}

// Initialize sends an initialize request to the server.
func (tc *TestClient) Initialize() (map[string]any, error) {
	tc.t.Helper()

	resp, err := tc.SendRequest(protocol.MethodInitialize, map[string]any{
		"protocolVersion": protocol.MCPVersion,
		"clientInfo": map[string]any{
			"name":    "test-client",
			"version": "1.0.0",
		},
	})
	if err != nil {
		return nil, err
	}

	result, ok := resp.Result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected result type: %T", resp.Result)
	}

	return result, nil
}

// ListTools lists all available tools.
func (tc *TestClient) ListTools() ([]map[string]any, error) {
	tc.t.Helper()

	resp, err := tc.SendRequest(protocol.MethodToolsList, nil)
	if err != nil {
		return nil, err
	}

	result, ok := resp.Result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected result type: %T", resp.Result)
	}

	// Handle both []any (from JSON) and []map[string]any (from direct call)
	var toolMaps []map[string]any
	switch v := result["tools"].(type) {
	case []any:
		toolMaps = make([]map[string]any, len(v))
		for i, t := range v {
			toolMaps[i], _ = t.(map[string]any)
		}
	case []map[string]any:
		toolMaps = v
	default:
		return nil, fmt.Errorf("unexpected tools type: %T", result["tools"])
	}

	return toolMaps, nil
}

// CallTool calls a tool with the given arguments and returns the text result.
func (tc *TestClient) CallTool(name string, args any) (string, error) {
	tc.t.Helper()

	resp, err := tc.SendRequest(protocol.MethodToolsCall, map[string]any{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return "", err
	}

	result, ok := resp.Result.(map[string]any)
	if !ok {
		return "", fmt.Errorf("unexpected result type: %T", resp.Result)
	}

	// Handle both []any (from JSON) and []map[string]any (from direct call)
	var first map[string]any
	switch v := result["content"].(type) {
	case []any:
		if len(v) == 0 {
			return "", fmt.Errorf("empty content array")
		}
		first, _ = v[0].(map[string]any)
	case []map[string]any:
		if len(v) == 0 {
			return "", fmt.Errorf("empty content array")
		}
		first = v[0]
	default:
		return "", fmt.Errorf("unexpected content type: %T", result["content"])
	}

	if first == nil {
		return "", fmt.Errorf("nil content item")
	}

	text, _ := first["text"].(string)
	return text, nil
}

// CallToolRaw calls a tool and returns the raw response.
func (tc *TestClient) CallToolRaw(name string, args any) (*protocol.Response, error) {
	tc.t.Helper()

	return tc.SendRequest(protocol.MethodToolsCall, map[string]any{
		"name":      name,
		"arguments": args,
	})
}

// ListResources lists all available resources.
func (tc *TestClient) ListResources() ([]map[string]any, error) {
	tc.t.Helper()

	resp, err := tc.SendRequest(protocol.MethodResourcesList, nil)
	if err != nil {
		return nil, err
	}

	result, ok := resp.Result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected result type: %T", resp.Result)
	}

	// Handle both []any (from JSON) and []map[string]any (from direct call)
	var resourceMaps []map[string]any
	switch v := result["resources"].(type) {
	case []any:
		resourceMaps = make([]map[string]any, len(v))
		for i, r := range v {
			resourceMaps[i], _ = r.(map[string]any)
		}
	case []map[string]any:
		resourceMaps = v
	default:
		return nil, fmt.Errorf("unexpected resources type: %T", result["resources"])
	}

	return resourceMaps, nil
}

// ReadResource reads a resource by URI.
func (tc *TestClient) ReadResource(uri string) (string, error) {
	tc.t.Helper()

	resp, err := tc.SendRequest(protocol.MethodResourcesRead, map[string]any{
		"uri": uri,
	})
	if err != nil {
		return "", err
	}

	result, ok := resp.Result.(map[string]any)
	if !ok {
		return "", fmt.Errorf("unexpected result type: %T", resp.Result)
	}

	// Handle both []any (from JSON) and []map[string]any (from direct call)
	var first map[string]any
	switch v := result["contents"].(type) {
	case []any:
		if len(v) == 0 {
			return "", fmt.Errorf("empty contents array")
		}
		first, _ = v[0].(map[string]any)
	case []map[string]any:
		if len(v) == 0 {
			return "", fmt.Errorf("empty contents array")
		}
		first = v[0]
	default:
		return "", fmt.Errorf("unexpected contents type: %T", result["contents"])
	}

	if first == nil {
		return "", fmt.Errorf("nil contents item")
	}

	text, _ := first["text"].(string)
	return text, nil
}

// Ping sends a ping request.
func (tc *TestClient) Ping() error {
	tc.t.Helper()

	_, err := tc.SendRequest(protocol.MethodPing, nil)
	return err
}

// AssertToolExists asserts that a tool with the given name exists.
func (tc *TestClient) AssertToolExists(name string) {
	tc.t.Helper()

	tools, err := tc.ListTools()
	if err != nil {
		tc.t.Fatalf("ListTools failed: %v", err)
	}

	for _, tool := range tools {
		if tool["name"] == name {
			return
		}
	}
	tc.t.Errorf("tool %q not found", name)
}

// AssertResourceExists asserts that a resource matching the given URI pattern exists.
func (tc *TestClient) AssertResourceExists(uriPattern string) {
	tc.t.Helper()

	resources, err := tc.ListResources()
	if err != nil {
		tc.t.Fatalf("ListResources failed: %v", err)
	}

	for _, res := range resources {
		if res["uri"] == uriPattern {
			return
		}
	}
	tc.t.Errorf("resource %q not found", uriPattern)
}

// MockTransport is an in-memory pair of frame buffers for testing code
// that reads and writes the wire format directly.
type MockTransport struct {
	in  *bytes.Buffer
	out *bytes.Buffer
	mu  sync.Mutex
}

// NewMockTransport creates a new mock transport.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		in:  &bytes.Buffer{},
		out: &bytes.Buffer{},
	}
}

// Write writes a request frame to the mock transport input.
func (m *MockTransport) Write(req *protocol.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.Marshal(req)
	if err != nil {
		return err
	}

	if _, err := m.in.Write(data); err != nil {
		return err
	}
	_, err = m.in.WriteString("\n")
	return err
}

// ReadResponse reads a response frame from the mock transport output.
func (m *MockTransport) ReadResponse() (*protocol.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	line, err := m.out.ReadBytes('\n')
	if err != nil && err != io.EOF {
		return nil, err
	}
	if len(line) == 0 {
		return nil, io.EOF
	}

	var resp protocol.Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// Input returns the input reader.
func (m *MockTransport) Input() io.Reader {
	return m.in
}

// Output returns the output writer.
func (m *MockTransport) Output() io.Writer {
	return m.out
}

// SendRequest sends a request to the mock transport and returns immediately.
// Use ReadResponse to get the response.
func (m *MockTransport) SendRequest(method string, params any) error {
	var paramsData json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return err
		}
		paramsData = data
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	req := &protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		ID:      json.RawMessage(`1`),
		Method:  method,
		Params:  paramsData,
	}

	data, err := json.Marshal(req)
	if err != nil {
		return err
	}

	if _, err := m.in.Write(data); err != nil {
		return err
	}
	_, err = m.in.WriteString("\n")
	return err
}

// ReadRequest reads a request from the mock transport input.
func (m *MockTransport) ReadRequest() (*protocol.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	line, err := m.in.ReadBytes('\n')
	if err != nil && err != io.EOF {
		return nil, err
	}
	if len(line) == 0 {
		return nil, io.EOF
	}

	var req protocol.Request
	if err := json.Unmarshal(line, &req); err != nil {
		return nil, err
	}

	return &req, nil
}

// WriteResponse writes a response to the mock transport output.
func (m *MockTransport) WriteResponse(result any, err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var resp protocol.Response
	resp.JSONRPC = protocol.JSONRPCVersion
	resp.ID = json.RawMessage(`1`)

	if err != nil {
		resp.Error = &protocol.Error{
			Code:    protocol.CodeInternalError,
			Message: err.Error(),
		}
	} else {
		resp.Result = result
	}

	data, marshalErr := json.Marshal(&resp)
	if marshalErr != nil {
		return marshalErr
	}

	if _, writeErr := m.out.Write(data); writeErr != nil {
		return writeErr
	}
	_, writeErr := m.out.WriteString("\n")
	return writeErr
}

// recorded tracks sent requests for assertions
type recorded struct {
	requests []*protocol.Request
	mu       sync.Mutex
}

// MockTransportRecorder wraps a MockTransport and records all requests.
type MockTransportRecorder struct {
	*MockTransport
	recorded recorded
}

// NewMockTransportRecorder creates a new mock transport that records requests.
func NewMockTransportRecorder() *MockTransportRecorder {
	return &MockTransportRecorder{
		MockTransport: NewMockTransport(),
	}
}

// SendRequest sends a request and records it.
func (m *MockTransportRecorder) SendRequest(method string, params any) error {
	var paramsData json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return err
		}
		paramsData = data
	}

	req := &protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		ID:      json.RawMessage(`1`),
		Method:  method,
		Params:  paramsData,
	}

	m.recorded.mu.Lock()
	m.recorded.requests = append(m.recorded.requests, req)
	m.recorded.mu.Unlock()

	return m.MockTransport.Write(req)
}

// RecordedRequests returns all recorded requests.
func (m *MockTransportRecorder) RecordedRequests() []*protocol.Request {
	m.recorded.mu.Lock()
	defer m.recorded.mu.Unlock()

	out := make([]*protocol.Request, len(m.recorded.requests))
	copy(out, m.recorded.requests)
	return out
}

// Reset clears the mock transport state.
func (m *MockTransportRecorder) Reset() {
	m.mu.Lock()
	m.in.Reset()
	m.out.Reset()
	m.mu.Unlock()

	m.recorded.mu.Lock()
	m.recorded.requests = nil
	m.recorded.mu.Unlock()
}
