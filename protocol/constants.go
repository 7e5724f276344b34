package protocol

// MCPVersion is the MCP protocol version advertised during initialize.
const MCPVersion = "2024-11-05"

// MCP method names.
const (
	MethodInitialize    = "initialize"
	MethodInitialized   = "initialized"
	MethodPing          = "ping"
	MethodToolsList     = "tools/list"
	MethodToolsCall     = "tools/call"
	MethodResourcesList = "resources/list"
	MethodResourcesRead = "resources/read"
)

// MethodInitializedAlias is the namespaced spelling of the initialized
// notification some clients send; it is treated identically to
// MethodInitialized.
const MethodInitializedAlias = "notifications/initialized"
