package mcp

import "encoding/json"

// Method is an MCP method identifier used in JSON-RPC messages.
type Method string

// Methods served by the echo demo.
const (
	InitializeMethod Method = "initialize"
	PingMethod       Method = "ping"
	ToolsListMethod  Method = "tools/list"
	ToolsCallMethod  Method = "tools/call"
)

// ResultMeta is the optional _meta member shared by every result.
type ResultMeta struct {
	Meta map[string]any `json:"_meta,omitempty"`
}

// InitializeRequest is the params of an initialize request.
type InitializeRequest struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      ImplementationInfo `json:"clientInfo"`
}

// InitializeResult answers initialize with the negotiated version.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      ImplementationInfo `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitzero"`
	ResultMeta
}

// ListToolsResult answers tools/list. The echo tool set fits in one page, so
// NextCursor is always empty there.
type ListToolsResult struct {
	Tools      []Tool `json:"tools"`
	NextCursor string `json:"nextCursor,omitzero"`
	ResultMeta
}

// CallToolRequestReceived holds tools/call params with the arguments left raw
// for the tool to decode.
type CallToolRequestReceived struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type CallToolResult struct {
	Content []ContentBlock `json:"content,omitempty"`
	IsError bool           `json:"isError,omitzero"`
	ResultMeta
}

// EmptyResult answers ping.
type EmptyResult struct {
	ResultMeta
}
