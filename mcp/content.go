package mcp

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/tidwall/sjson"
)

// Content is one block of a tool result or prompt message: text, an
// inline image, or an embedded resource. Concrete types implement
// MarshalJSON by splicing their "type" discriminator into the struct's
// own marshaled form with sjson, the same trick
// ToolResponseContent.MarshalJSON uses, rather than a parallel wire
// struct per variant.
type Content interface {
	contentType() string
}

func spliceType(data []byte, err error, kind string) ([]byte, error) {
	if err != nil {
		return nil, errors.Wrap(err, "marshal content block")
	}
	out, err := sjson.SetBytes(data, "type", kind)
	if err != nil {
		return nil, errors.Wrap(err, "splice content type")
	}
	return out, nil
}

// TextContent is a plain-text content block.
type TextContent struct {
	Text string `json:"text"`
}

func (TextContent) contentType() string { return "text" }

func (c TextContent) MarshalJSON() ([]byte, error) {
	type wire TextContent
	data, err := json.Marshal(wire(c))
	return spliceType(data, err, c.contentType())
}

// ImageContent is a base64-encoded inline image block.
type ImageContent struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

func (ImageContent) contentType() string { return "image" }

func (c ImageContent) MarshalJSON() ([]byte, error) {
	type wire ImageContent
	data, err := json.Marshal(wire(c))
	return spliceType(data, err, c.contentType())
}

// ResourceContents is the body of one resource read, either text or
// base64-encoded binary, never both.
type ResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

// EmbeddedResource wraps a ResourceContents as a tool/prompt content block.
type EmbeddedResource struct {
	Resource ResourceContents `json:"resource"`
}

func (EmbeddedResource) contentType() string { return "resource" }

func (c EmbeddedResource) MarshalJSON() ([]byte, error) {
	type wire EmbeddedResource
	data, err := json.Marshal(wire(c))
	return spliceType(data, err, c.contentType())
}

// ToolResult is the result body of a tools/call. IsError marks a
// recoverable tool-level failure: the envelope is still a successful
// Response, so a caller can tell a tool that ran and reported failure
// (IsError: true) apart from a protocol
// error is IsError, not the envelope kind.
type ToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// UnmarshalJSON decodes each content block by its "type" discriminator
// into the matching concrete type, the inverse of each type's
// MarshalJSON splice.
func (t *ToolResult) UnmarshalJSON(data []byte) error {
	var wire struct {
		Content []json.RawMessage `json:"content"`
		IsError bool              `json:"isError,omitempty"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	content := make([]Content, 0, len(wire.Content))
	for _, raw := range wire.Content {
		c, err := unmarshalContent(raw)
		if err != nil {
			return err
		}
		content = append(content, c)
	}
	t.Content = content
	t.IsError = wire.IsError
	return nil
}

// unmarshalContent decodes one content block by peeking its "type" field.
func unmarshalContent(raw json.RawMessage) (Content, error) {
	var disc struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &disc); err != nil {
		return nil, err
	}
	switch disc.Type {
	case "text":
		var c TextContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		return c, nil
	case "image":
		var c ImageContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		return c, nil
	case "resource":
		var c EmbeddedResource
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, errors.Errorf("mcp: unknown content type %q", disc.Type)
	}
}

// Tool describes one callable tool as returned by tools/list.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ResourceTemplate describes a parameterized resource URI with
// {name}-style placeholders.
type ResourceTemplate struct {
	URITemplate string `json:"uriTemplate"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// Resource describes one concrete addressable resource.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// Role distinguishes who authored a PromptMessage.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PromptArgument describes one named input a prompt accepts.
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// Prompt describes one renderable prompt template.
type Prompt struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

// PromptMessage is one rendered message in a prompts/get result.
type PromptMessage struct {
	Role    Role    `json:"role"`
	Content Content `json:"content"`
}

// UnmarshalJSON decodes Content by its "type" discriminator, same as
// ToolResult.
func (m *PromptMessage) UnmarshalJSON(data []byte) error {
	var wire struct {
		Role    Role            `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	c, err := unmarshalContent(wire.Content)
	if err != nil {
		return err
	}
	m.Role = wire.Role
	m.Content = c
	return nil
}

// LogLevel is the RFC-5424-style severity accepted by logging/setLevel.
type LogLevel string

const (
	LogDebug     LogLevel = "debug"
	LogInfo      LogLevel = "info"
	LogNotice    LogLevel = "notice"
	LogWarning   LogLevel = "warning"
	LogError     LogLevel = "error"
	LogCritical  LogLevel = "critical"
	LogAlert     LogLevel = "alert"
	LogEmergency LogLevel = "emergency"
)
