package mcp

import "encoding/json"

// SamplingMessage is one turn of conversation context forwarded to the
// client's LLM in a sampling/createMessage request.
type SamplingMessage struct {
	Role    Role    `json:"role"`
	Content Content `json:"content"`
}

// UnmarshalJSON decodes Content by its "type" discriminator, same as
// ToolResult and PromptMessage.
func (m *SamplingMessage) UnmarshalJSON(data []byte) error {
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

// SamplingRequest is the params body of an outbound sampling/createMessage
// request the server issues to its peer via Context.Peer().Request.
type SamplingRequest struct {
	Messages     []SamplingMessage `json:"messages"`
	SystemPrompt string            `json:"systemPrompt,omitempty"`
	MaxTokens    int               `json:"maxTokens,omitempty"`
}

// SamplingResult is the client's reply to a sampling/createMessage request.
type SamplingResult struct {
	Role       Role    `json:"role"`
	Content    Content `json:"content"`
	Model      string  `json:"model,omitempty"`
	StopReason string  `json:"stopReason,omitempty"`
}

// UnmarshalJSON decodes Content by its "type" discriminator.
func (r *SamplingResult) UnmarshalJSON(data []byte) error {
	var wire struct {
		Role       Role            `json:"role"`
		Content    json.RawMessage `json:"content"`
		Model      string          `json:"model,omitempty"`
		StopReason string          `json:"stopReason,omitempty"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	c, err := unmarshalContent(wire.Content)
	if err != nil {
		return err
	}
	r.Role = wire.Role
	r.Content = c
	r.Model = wire.Model
	r.StopReason = wire.StopReason
	return nil
}

// ElicitationRequest asks the end user (via the client) to supply
// structured input matching Schema.
type ElicitationRequest struct {
	Message string          `json:"message"`
	Schema  json.RawMessage `json:"requestedSchema"`
}

// ElicitationAction is the user's disposition toward an elicitation.
type ElicitationAction string

const (
	ElicitAccept  ElicitationAction = "accept"
	ElicitDecline ElicitationAction = "decline"
	ElicitCancel  ElicitationAction = "cancel"
)

// ElicitationResult is the client's reply to an elicitation/create request.
type ElicitationResult struct {
	Action  ElicitationAction `json:"action"`
	Content json.RawMessage   `json:"content,omitempty"`
}
