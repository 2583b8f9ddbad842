package protocol

import (
	"fmt"

	"github.com/yosida95/uritemplate/v3"
)

// Resource represents a readable resource in the MCP protocol
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

// ResourceTemplate is a parameterized family of resources (RFC 6570)
type ResourceTemplate struct {
	URITemplate string `json:"uriTemplate"`
	Name        string `json:"name"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// Expand substitutes vars into the template and returns a concrete URI
func (t ResourceTemplate) Expand(vars map[string]string) (string, error) {
	return ExpandURITemplate(t.URITemplate, vars)
}

// ExpandURITemplate expands an RFC 6570 URI template
func ExpandURITemplate(template string, vars map[string]string) (string, error) {
	tmpl, err := uritemplate.New(template)
	if err != nil {
		return "", fmt.Errorf("invalid uri template %q: %w", template, err)
	}

	values := uritemplate.Values{}
	for k, v := range vars {
		values.Set(k, uritemplate.String(v))
	}

	return tmpl.Expand(values)
}

// ResourceContents is one item returned by resources/read
type ResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

// ListResourcesParams defines parameters for listing resources
type ListResourcesParams struct {
	PaginatedParams
}

// ListResourcesResult defines the response for listing resources
type ListResourcesResult struct {
	Resources []Resource `json:"resources"`
	PaginatedResult
}

// ListResourceTemplatesResult defines the response for resources/templates/list
type ListResourceTemplatesResult struct {
	ResourceTemplates []ResourceTemplate `json:"resourceTemplates"`
	PaginatedResult
}

// ReadResourceParams defines parameters for reading a resource
type ReadResourceParams struct {
	URI string `json:"uri"`
}

// ReadResourceResult defines the response for resources/read
type ReadResourceResult struct {
	Contents []ResourceContents `json:"contents"`
}
