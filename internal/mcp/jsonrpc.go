package mcp

import "encoding/json"

// JSON-RPC 2.0 error codes used by the stdio session.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
)

const jsonrpcVersion = "2.0"

// envelope is the part of an incoming message the session inspects before
// handing it to mcp-go.
type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

// isNotification reports whether the message carries no id.
func (e envelope) isNotification() bool {
	return len(e.ID) == 0
}

// isResponse reports whether the message is a client's reply to a
// server-initiated request.
func (e envelope) isResponse() bool {
	return e.Method == "" && len(e.ID) > 0 && (len(e.Result) > 0 || len(e.Error) > 0)
}

// validID reports whether id is a string, a number or null.
func validID(id json.RawMessage) bool {
	if len(id) == 0 {
		return true
	}
	switch id[0] {
	case '"', '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return true
	}
	return string(id) == "null"
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcErrorResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Error   rpcError        `json:"error"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result"`
}

func newErrorResponse(id json.RawMessage, code int, message string) rpcErrorResponse {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	return rpcErrorResponse{
		JSONRPC: jsonrpcVersion,
		ID:      id,
		Error:   rpcError{Code: code, Message: message},
	}
}

func newResponse(id json.RawMessage, result any) rpcResponse {
	return rpcResponse{JSONRPC: jsonrpcVersion, ID: id, Result: result}
}
