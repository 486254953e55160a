package mcp

import "slices"

// LatestProtocolVersion is the newest protocol revision understood here.
const LatestProtocolVersion = "2025-06-18"

// SupportedProtocolVersions lists accepted revisions, newest first.
var SupportedProtocolVersions = []string{
	LatestProtocolVersion,
	"2025-03-26",
	"2024-11-05",
}

// NegotiateVersion returns requested if supported, else LatestProtocolVersion.
func NegotiateVersion(requested string) string {
	if slices.Contains(SupportedProtocolVersions, requested) {
		return requested
	}
	return LatestProtocolVersion
}

// Capabilities
// ClientCapabilities advertises client features.
type ClientCapabilities struct {
	Roots *struct {
		ListChanged bool `json:"listChanged"`
	} `json:"roots,omitempty"`
	Sampling    *struct{} `json:"sampling,omitempty"`
	Elicitation *struct{} `json:"elicitation,omitempty"`
}

// ServerCapabilities advertises server features.
type ServerCapabilities struct {
	Logging *struct{} `json:"logging,omitempty"`
	Tools   *struct {
		ListChanged bool `json:"listChanged"`
	} `json:"tools,omitempty"`
}

// ImplementationInfo describes the implementation name and version.
type ImplementationInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Title   string `json:"title,omitzero"`
}

// Content types
// ContentBlock is a typed content part of a message. Only text content is
// produced here.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitzero"`
}

// TextContent builds a text content block.
func TextContent(text string) ContentBlock {
	return ContentBlock{Type: "text", Text: text}
}

// Tools
// Tool describes a callable tool and its input schema.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema ToolInputSchema `json:"inputSchema"`
}

// ToolInputSchema is a JSON-schema-like description of tool input.
type ToolInputSchema struct {
	Type                 string                    `json:"type"`
	Properties           map[string]SchemaProperty `json:"properties,omitempty"`
	Required             []string                  `json:"required,omitempty"`
	AdditionalProperties bool                      `json:"additionalProperties,omitzero"`
}

// SchemaProperty is a simplified schema node used in tool schemas.
type SchemaProperty struct {
	Type        string                    `json:"type,omitempty"`
	Description string                    `json:"description,omitzero"`
	Items       *SchemaProperty           `json:"items,omitempty"`
	Properties  map[string]SchemaProperty `json:"properties,omitempty"`
	Enum        []any                     `json:"enum,omitempty"`
}
