package protocol

import "encoding/json"

// JSONRPCVersion is the JSON-RPC protocol version.
const JSONRPCVersion = "2.0"

// Request represents a JSON-RPC 2.0 request.
//
// The ID is kept as raw JSON because JSON-RPC permits string, number, and
// null ids; the server only ever echoes it back verbatim.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification returns true if this request has no ID (is a notification).
// Notifications never elicit a response.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Response represents a JSON-RPC 2.0 response.
//
// A well-formed response carries exactly one of Result or Error; the custom
// marshaler below enforces that on the wire. The ID echoes the triggering
// request's id and is always serialized, as null when the id could not be
// recovered (parse errors).
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// NewResponse creates a successful response echoing the given request id.
func NewResponse(id json.RawMessage, result any) *Response {
	return &Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  result,
	}
}

// NewErrorResponse creates an error response echoing the given request id.
// Pass a nil id for failures where the request id is unknowable, such as
// parse errors; it is serialized as null.
func NewErrorResponse(id json.RawMessage, err *Error) *Response {
	return &Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error:   err,
	}
}

// MarshalJSON serializes the response with exactly one of result/error
// present. An empty result still appears on the wire (encoding/json's
// omitempty would drop an empty object, which peers reject), and the id
// field is always emitted, defaulting to null.
func (r *Response) MarshalJSON() ([]byte, error) {
	version := r.JSONRPC
	if version == "" {
		version = JSONRPCVersion
	}

	id := r.ID
	if len(id) == 0 {
		id = json.RawMessage("null")
	}

	if r.Error != nil {
		return json.Marshal(struct {
			JSONRPC string          `json:"jsonrpc"`
			ID      json.RawMessage `json:"id"`
			Error   *Error          `json:"error"`
		}{version, id, r.Error})
	}

	return json.Marshal(struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Result  any             `json:"result"`
	}{version, id, r.Result})
}
