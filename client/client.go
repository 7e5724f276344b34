// Package client provides an MCP client for connecting to mcp-wire servers.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/mcp-wire/protocol"
)

// Transport defines the interface for client-side transport.
type Transport interface {
	// Send sends a request and waits for the matching response.
	Send(ctx context.Context, req *protocol.Request) (*protocol.Response, error)
	// Notify sends a notification; no response is expected.
	Notify(ctx context.Context, req *protocol.Request) error
	// Close closes the transport connection.
	Close() error
}

// Client is an MCP client that communicates with an MCP server.
type Client struct {
	transport Transport
	opts      clientOptions

	mu         sync.RWMutex
	serverInfo *ServerInfo
	requestID  atomic.Int64
}

// ServerInfo contains information about the connected server.
type ServerInfo struct {
	Name            string
	Version         string
	ProtocolVersion string
	Capabilities    Capabilities
}

// Capabilities describes what features the server supports.
type Capabilities struct {
	Tools     bool
	Resources bool
}

// Tool represents a tool exposed by the server.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"inputSchema"`
}

// ToolResult is the result of calling a tool.
type ToolResult struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// Text returns the text of the first text content item, or empty string.
func (r *ToolResult) Text() string {
	for _, item := range r.Content {
		if item.Type == "text" {
			return item.Text
		}
	}
	return ""
}

// ContentItem represents a content item in a tool result.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Data string `json:"data,omitempty"`
}

// Resource represents a resource exposed by the server.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ResourceContent is the content of a resource.
type ResourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	timeout     time.Duration
	clientName  string
	clientVer   string
	protocolVer string
}

// WithTimeout sets the default timeout for requests.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

// WithClientInfo sets the client name and version for initialization.
func WithClientInfo(name, version string) Option {
	return func(o *clientOptions) {
		o.clientName = name
		o.clientVer = version
	}
}

// WithProtocolVersion sets the protocol version to use.
func WithProtocolVersion(version string) Option {
	return func(o *clientOptions) {
		o.protocolVer = version
	}
}

// New creates a new MCP client with the given transport.
func New(transport Transport, opts ...Option) *Client {
	options := clientOptions{
		timeout:     30 * time.Second,
		clientName:  "mcp-wire-client",
		clientVer:   "1.0.0",
		protocolVer: protocol.MCPVersion,
	}

	for _, opt := range opts {
		opt(&options)
	}

	return &Client{
		transport: transport,
		opts:      options,
	}
}

// Initialize performs the MCP handshake: the initialize request followed by
// the initialized notification.
func (c *Client) Initialize(ctx context.Context) (*ServerInfo, error) {
	params := map[string]any{
		"protocolVersion": c.opts.protocolVer,
		"clientInfo": map[string]any{
			"name":    c.opts.clientName,
			"version": c.opts.clientVer,
		},
		"capabilities": map[string]any{},
	}

	resp, err := c.call(ctx, protocol.MethodInitialize, params)
	if err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}

	result, ok := resp.Result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("initialize: invalid result type")
	}

	info := &ServerInfo{}

	if pv, ok := result["protocolVersion"].(string); ok {
		info.ProtocolVersion = pv
	}

	if si, ok := result["serverInfo"].(map[string]any); ok {
		if name, ok := si["name"].(string); ok {
			info.Name = name
		}
		if ver, ok := si["version"].(string); ok {
			info.Version = ver
		}
	}

	if caps, ok := result["capabilities"].(map[string]any); ok {
		if _, ok := caps["tools"]; ok {
			info.Capabilities.Tools = true
		}
		if _, ok := caps["resources"]; ok {
			info.Capabilities.Resources = true
		}
	}

	if err := c.notify(ctx, protocol.MethodInitialized, nil); err != nil {
		return nil, fmt.Errorf("initialized notification: %w", err)
	}

	c.mu.Lock()
	c.serverInfo = info
	c.mu.Unlock()

	return info, nil
}

// Ping sends a ping to the server.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.call(ctx, protocol.MethodPing, nil)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// ListTools returns the list of tools available on the server.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	resp, err := c.call(ctx, protocol.MethodToolsList, nil)
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}

	result, ok := resp.Result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("list tools: invalid result type")
	}

	toolsRaw, ok := result["tools"].([]any)
	if !ok {
		return nil, fmt.Errorf("list tools: invalid tools type")
	}

	tools := make([]Tool, 0, len(toolsRaw))
	for _, tr := range toolsRaw {
		tm, ok := tr.(map[string]any)
		if !ok {
			continue
		}

		tool := Tool{}
		if name, ok := tm["name"].(string); ok {
			tool.Name = name
		}
		if desc, ok := tm["description"].(string); ok {
			tool.Description = desc
		}
		if schema, ok := tm["inputSchema"]; ok {
			tool.InputSchema = schema
		}
		tools = append(tools, tool)
	}

	return tools, nil
}

// CallTool calls a tool on the server with the given arguments.
func (c *Client) CallTool(ctx context.Context, name string, arguments any) (*ToolResult, error) {
	params := map[string]any{
		"name": name,
	}
	if arguments != nil {
		params["arguments"] = arguments
	}

	resp, err := c.call(ctx, protocol.MethodToolsCall, params)
	if err != nil {
		return nil, fmt.Errorf("call tool %q: %w", name, err)
	}

	result, ok := resp.Result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("call tool %q: invalid result type", name)
	}

	toolResult := &ToolResult{}

	if isErr, ok := result["isError"].(bool); ok {
		toolResult.IsError = isErr
	}

	if content, ok := result["content"].([]any); ok {
		for _, cr := range content {
			cm, ok := cr.(map[string]any)
			if !ok {
				continue
			}

			item := ContentItem{}
			if t, ok := cm["type"].(string); ok {
				item.Type = t
			}
			if text, ok := cm["text"].(string); ok {
				item.Text = text
			}
			if data, ok := cm["data"].(string); ok {
				item.Data = data
			}
			toolResult.Content = append(toolResult.Content, item)
		}
	}

	return toolResult, nil
}

// ListResources returns the list of resources available on the server.
func (c *Client) ListResources(ctx context.Context) ([]Resource, error) {
	resp, err := c.call(ctx, protocol.MethodResourcesList, nil)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}

	result, ok := resp.Result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("list resources: invalid result type")
	}

	resourcesRaw, ok := result["resources"].([]any)
	if !ok {
		return nil, fmt.Errorf("list resources: invalid resources type")
	}

	resources := make([]Resource, 0, len(resourcesRaw))
	for _, rr := range resourcesRaw {
		rm, ok := rr.(map[string]any)
		if !ok {
			continue
		}

		resource := Resource{}
		if uri, ok := rm["uri"].(string); ok {
			resource.URI = uri
		}
		if name, ok := rm["name"].(string); ok {
			resource.Name = name
		}
		if desc, ok := rm["description"].(string); ok {
			resource.Description = desc
		}
		if mime, ok := rm["mimeType"].(string); ok {
			resource.MimeType = mime
		}
		resources = append(resources, resource)
	}

	return resources, nil
}

// ReadResource reads a resource from the server.
func (c *Client) ReadResource(ctx context.Context, uri string) (*ResourceContent, error) {
	params := map[string]any{
		"uri": uri,
	}

	resp, err := c.call(ctx, protocol.MethodResourcesRead, params)
	if err != nil {
		return nil, fmt.Errorf("read resource %q: %w", uri, err)
	}

	result, ok := resp.Result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("read resource %q: invalid result type", uri)
	}

	contents, ok := result["contents"].([]any)
	if !ok || len(contents) == 0 {
		return nil, fmt.Errorf("read resource %q: no content", uri)
	}

	cm, ok := contents[0].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("read resource %q: invalid content type", uri)
	}

	content := &ResourceContent{}
	if u, ok := cm["uri"].(string); ok {
		content.URI = u
	}
	if mime, ok := cm["mimeType"].(string); ok {
		content.MimeType = mime
	}
	if text, ok := cm["text"].(string); ok {
		content.Text = text
	}
	if blob, ok := cm["blob"].(string); ok {
		content.Blob = blob
	}

	return content, nil
}

// ServerInfo returns the cached server info from initialization.
func (c *Client) ServerInfo() *ServerInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverInfo
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.transport.Close()
}

// call makes a JSON-RPC call to the server.
func (c *Client) call(ctx context.Context, method string, params any) (*protocol.Response, error) {
	id := c.requestID.Add(1)

	var paramsRaw json.RawMessage
	if params != nil {
		var err error
		paramsRaw, err = json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
	}

	idRaw, err := json.Marshal(id)
	if err != nil {
		return nil, fmt.Errorf("marshal request ID: %w", err)
	}
	req := &protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		ID:      idRaw,
		Method:  method,
		Params:  paramsRaw,
	}

	if c.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.timeout)
		defer cancel()
	}

	resp, err := c.transport.Send(ctx, req)
	if err != nil {
		return nil, err
	}

	if resp.Error != nil {
		return nil, resp.Error
	}

	return resp, nil
}

// notify sends a notification to the server.
func (c *Client) notify(ctx context.Context, method string, params any) error {
	var paramsRaw json.RawMessage
	if params != nil {
		var err error
		paramsRaw, err = json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}
	}

	req := &protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		Method:  method,
		Params:  paramsRaw,
	}

	return c.transport.Notify(ctx, req)
}
