package protocol

import (
	"encoding/json"
	"strings"
)

// Tool represents a tool in the MCP protocol
type Tool struct {
	Name        string          `json:"name"`
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// ListToolsParams defines parameters for listing tools
type ListToolsParams struct {
	PaginatedParams
}

// ListToolsResult defines the response for listing tools
type ListToolsResult struct {
	Tools []Tool `json:"tools"`
	PaginatedResult
}

// CallToolParams defines parameters for calling a tool.
// Stream and Poll are only set by the streaming invoker.
type CallToolParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
	Stream    bool                   `json:"stream,omitempty"`
	Poll      bool                   `json:"poll,omitempty"`
	Meta      *Meta                  `json:"_meta,omitempty"`
}

// Content is a single item of tool or prompt output
type Content struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	Data     string          `json:"data,omitempty"`
	MimeType string          `json:"mimeType,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
}

// CallToolResult defines the response for tool calls. Complete and
// Progress are reported by servers that honor the stream flag.
type CallToolResult struct {
	Content           []Content       `json:"content"`
	StructuredContent json.RawMessage `json:"structuredContent,omitempty"`
	IsError           bool            `json:"isError,omitempty"`
	Complete          *bool           `json:"complete,omitempty"`
	Progress          *float64        `json:"progress,omitempty"`
}

// Text concatenates the text items of the result in order
func (r *CallToolResult) Text() string {
	var b strings.Builder
	for _, c := range r.Content {
		if c.Type == "text" {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}
