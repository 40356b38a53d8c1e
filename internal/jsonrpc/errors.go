package jsonrpc

// ErrorCode is a JSON-RPC 2.0 error code.
type ErrorCode int

const (
	// ErrorCodeParseError indicates invalid JSON was received by the server.
	ErrorCodeParseError ErrorCode = -32700
	// ErrorCodeInvalidRequest indicates the JSON sent is not a valid Request object.
	ErrorCodeInvalidRequest ErrorCode = -32600
	// ErrorCodeMethodNotFound indicates the method does not exist / is not available.
	ErrorCodeMethodNotFound ErrorCode = -32601
	// ErrorCodeInvalidParams indicates invalid method parameters.
	ErrorCodeInvalidParams ErrorCode = -32602
	// ErrorCodeInternalError indicates an internal JSON-RPC error.
	ErrorCodeInternalError ErrorCode = -32603

	// Implementation-defined codes in the server-reserved range.

	// ErrorCodeNotFound indicates a referenced entity (tool, resource, prompt)
	// does not exist.
	ErrorCodeNotFound ErrorCode = -32001
	// ErrorCodeServerNotInitialized indicates the session has not completed the
	// initialize handshake.
	ErrorCodeServerNotInitialized ErrorCode = -32002
)
