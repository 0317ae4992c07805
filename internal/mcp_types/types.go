// Package mcptypes defines the protocol data structures shared by the client
// session, the server loop and the tool registry.
// file: internal/mcp_types/types.go
package mcptypes

import (
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
)

// ProtocolVersion is the MCP revision spoken by both ends.
const ProtocolVersion = "2024-11-05"

// Method names used on the wire.
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"
	MethodPing        = "ping"
	MethodToolsList   = "tools/list"
	MethodToolsCall   = "tools/call"
)

// Content types.
const (
	ContentTypeText  = "text"
	ContentTypeImage = "image"
)

// ErrNoTextContent is returned by FirstText when a result carries no text item.
var ErrNoTextContent = errors.New("result contains no text content")

// Implementation describes the name and version of an MCP client or server.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ClientCapabilities describes features supported by the client.
type ClientCapabilities struct {
	Experimental map[string]any `json:"experimental,omitempty"`
}

// ServerCapabilities describes features supported by the server.
type ServerCapabilities struct {
	Tools *ToolsCapability `json:"tools,omitempty"`
}

// ToolsCapability indicates server support for tools.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// InitializeRequest represents the parameters for the 'initialize' request.
type InitializeRequest struct {
	ProtocolVersion string             `json:"protocolVersion"`
	ClientInfo      Implementation     `json:"clientInfo"`
	Capabilities    ClientCapabilities `json:"capabilities"`
}

// InitializeResult represents the successful result of an 'initialize' request.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	ServerInfo      Implementation     `json:"serverInfo"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	Instructions    string             `json:"instructions,omitempty"`
}

// Tool describes one server-side capability: its unique name, what it does
// and the JSON Schema of the arguments it accepts.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ListToolsResult represents the successful result of a 'tools/list' request.
type ListToolsResult struct {
	Tools      []Tool `json:"tools"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// CallToolRequest represents the parameters for the 'tools/call' request.
// Arguments stay raw; each handler decodes its own shape.
type CallToolRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Content is one tagged item of a tool result. Text items use Text;
// other media use Data and MimeType.
type Content struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// MarshalJSON always writes "text" for text items, including empty ones.
func (c Content) MarshalJSON() ([]byte, error) {
	if c.Type != ContentTypeText {
		type media Content
		return json.Marshal(media(c))
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{c.Type, c.Text})
}

// NewTextContent returns a text content item.
func NewTextContent(text string) Content {
	return Content{Type: ContentTypeText, Text: text}
}

// CallToolResult is the outcome of a tool call. IsError marks a delivered
// result that represents a logical failure of the tool.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// TextResult builds a successful single-text result.
func TextResult(text string) *CallToolResult {
	return &CallToolResult{Content: []Content{NewTextContent(text)}}
}

// ErrorResult builds an error-flagged single-text result.
func ErrorResult(text string) *CallToolResult {
	return &CallToolResult{Content: []Content{NewTextContent(text)}, IsError: true}
}

// FirstText returns the text of the first text content item.
func (r *CallToolResult) FirstText() (string, error) {
	if r == nil {
		return "", ErrNoTextContent
	}
	for _, c := range r.Content {
		if c.Type == ContentTypeText {
			return c.Text, nil
		}
	}
	return "", ErrNoTextContent
}

// Text joins every text item with newlines. Handy for display.
func (r *CallToolResult) Text() string {
	if r == nil {
		return ""
	}
	parts := make([]string, 0, len(r.Content))
	for _, c := range r.Content {
		if c.Type == ContentTypeText {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n")
}
