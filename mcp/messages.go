package mcp

import "encoding/json"

// Method is an MCP method identifier used in JSON-RPC messages.
type Method string

// Method names and notifications.
const (
	// Initialization and session management
	InitializeMethod   Method = "initialize"
	AuthenticateMethod Method = "authenticate"
	PingMethod         Method = "ping"
	ShutdownMethod     Method = "shutdown"

	// Tools
	ToolsListMethod                    Method = "tools/list"
	ToolsCallMethod                    Method = "tools/call"
	ToolsRegisterMethod                Method = "tools/register"
	ToolsRemoveMethod                  Method = "tools/remove"
	ToolsListChangedNotificationMethod Method = "notifications/tools/list_changed"

	// Resources
	ResourcesListMethod                    Method = "resources/list"
	ResourcesReadMethod                    Method = "resources/read"
	ResourcesListChangedNotificationMethod Method = "notifications/resources/list_changed"

	// Prompts
	PromptsListMethod                    Method = "prompts/list"
	PromptsGetMethod                     Method = "prompts/get"
	PromptsListChangedNotificationMethod Method = "notifications/prompts/list_changed"
)

// PaginatedRequest carries a cursor for paginated list requests.
type PaginatedRequest struct {
	Cursor string `json:"cursor,omitzero"`
}

// PaginatedResult carries a cursor for continuing pagination.
type PaginatedResult struct {
	NextCursor string `json:"nextCursor,omitzero"`
}

// InitializeRequest starts the protocol handshake.
type InitializeRequest struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      ImplementationInfo `json:"clientInfo"`
}

// InitializeResult returns negotiated capabilities and server info.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      ImplementationInfo `json:"serverInfo"`
}

// AuthenticateRequest binds a bearer token to the current session.
type AuthenticateRequest struct {
	Token string `json:"token"`
}

// AuthenticatedUser is the identity echoed back by a successful authenticate.
type AuthenticatedUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// AuthenticateResult reports the outcome of an authenticate call.
type AuthenticateResult struct {
	Status string            `json:"status"`
	User   AuthenticatedUser `json:"user"`
}

// PingResult answers a ping with the server's clock.
type PingResult struct {
	Timestamp int64 `json:"timestamp"`
}

// Tools
// ListToolsRequest requests the set of available tools.
type ListToolsRequest struct {
	PaginatedRequest
}

// ListToolsResult returns a page of tools.
type ListToolsResult struct {
	Tools []Tool `json:"tools"`
	PaginatedResult
}

// CallToolRequest is the server-received representation for a tool call.
type CallToolRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// CallToolResult represents a tool invocation result. Tool-level failures are
// reported as data via IsError, not as JSON-RPC errors.
type CallToolResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError"`
}

// RegisterToolRequest adds or replaces a tool definition (admin only).
type RegisterToolRequest struct {
	Name       string          `json:"name"`
	Definition json.RawMessage `json:"definition"`
}

// RegisterToolResult echoes the stored descriptor.
type RegisterToolResult struct {
	Tool Tool `json:"tool"`
}

// RemoveToolRequest removes a tool by name (admin only).
type RemoveToolRequest struct {
	Name string `json:"name"`
}

// RemoveToolResult reports whether the tool existed.
type RemoveToolResult struct {
	Success bool `json:"success"`
}

// Resources
// ListResourcesRequest requests a paginated list of resources.
type ListResourcesRequest struct {
	PaginatedRequest
}

// ListResourcesResult returns a page of resources.
type ListResourcesResult struct {
	Resources []Resource `json:"resources"`
	PaginatedResult
}

// ReadResourceRequest requests the contents of a resource by URI.
type ReadResourceRequest struct {
	URI string `json:"uri"`
}

// ReadResourceResult returns resource contents.
type ReadResourceResult struct {
	Contents []ResourceContents `json:"contents"`
}

// Prompts
// ListPromptsRequest requests available prompts.
type ListPromptsRequest struct {
	PaginatedRequest
}

// ListPromptsResult returns a page of prompts.
type ListPromptsResult struct {
	Prompts []Prompt `json:"prompts"`
	PaginatedResult
}

// GetPromptRequest requests a prompt definition by name.
type GetPromptRequest struct {
	Name string `json:"name"`
}

// GetPromptResult returns a prompt's description and messages.
type GetPromptResult struct {
	Description string          `json:"description,omitzero"`
	Messages    []PromptMessage `json:"messages"`
}
