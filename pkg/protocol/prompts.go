package protocol

// Prompt represents a prompt template in the MCP protocol
type Prompt struct {
	Name        string           `json:"name"`
	Title       string           `json:"title,omitempty"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

// PromptArgument describes one templated argument of a prompt
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// PromptMessage is one message of a rendered prompt
type PromptMessage struct {
	Role    string  `json:"role"`
	Content Content `json:"content"`
}

// ListPromptsParams defines parameters for listing prompts
type ListPromptsParams struct {
	PaginatedParams
}

// ListPromptsResult defines the response for listing prompts
type ListPromptsResult struct {
	Prompts []Prompt `json:"prompts"`
	PaginatedResult
}

// GetPromptParams defines parameters for rendering a prompt
type GetPromptParams struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments,omitempty"`
}

// GetPromptResult defines the response for prompts/get
type GetPromptResult struct {
	Description string          `json:"description,omitempty"`
	Messages    []PromptMessage `json:"messages"`
}
