package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Role represents the role of a message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Content part types understood by OpenAI-compatible servers
const (
	PartTypeText     = "text"
	PartTypeImageURL = "image_url"
)

// ContentPart is one block of a multi-part user turn: an image reference or a text instruction.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// MarshalJSON always emits "text" on text parts so empty instructions are forwarded as-is
func (p ContentPart) MarshalJSON() ([]byte, error) {
	if p.Type == PartTypeText {
		return json.Marshal(struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{p.Type, p.Text})
	}
	type alias ContentPart
	return json.Marshal(alias(p))
}

// ImageURL holds either a remote URL or a data URI
type ImageURL struct {
	URL string `json:"url"`
}

// TextPart builds a text content block carrying s verbatim (empty strings included).
func TextPart(s string) ContentPart {
	return ContentPart{Type: PartTypeText, Text: s}
}

// ImagePart builds a media content block from a media type and base64 payload.
func ImagePart(mediaType, data string) ContentPart {
	return ContentPart{
		Type:     PartTypeImageURL,
		ImageURL: &ImageURL{URL: DataURI(mediaType, data)},
	}
}

// DataURI formats data:<media-type>;base64,<data>
func DataURI(mediaType, data string) string {
	return "data:" + mediaType + ";base64," + data
}

// Message represents a chat message. Content is sent as a plain string unless Parts is set.
type Message struct {
	Role    Role
	Content *string
	Parts   []ContentPart
}

// MarshalJSON emits content either as a string or as an array of parts
func (m Message) MarshalJSON() ([]byte, error) {
	out := struct {
		Role    Role        `json:"role"`
		Content interface{} `json:"content"`
	}{Role: m.Role}

	switch {
	case len(m.Parts) > 0:
		out.Content = m.Parts
	case m.Content != nil:
		out.Content = *m.Content
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts content as a string, an array of parts, or null
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    Role            `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Role = raw.Role
	m.Content = nil
	m.Parts = nil

	if len(raw.Content) == 0 || string(raw.Content) == "null" {
		return nil
	}
	if raw.Content[0] == '[' {
		return json.Unmarshal(raw.Content, &m.Parts)
	}
	var s string
	if err := json.Unmarshal(raw.Content, &s); err != nil {
		return fmt.Errorf("unsupported message content: %w", err)
	}
	m.Content = &s
	return nil
}

// UserParts builds a single user turn from ordered content blocks
func UserParts(parts ...ContentPart) Message {
	return Message{Role: RoleUser, Parts: parts}
}

// ChatRequest represents a chat completion request
type ChatRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
	Stream    bool      `json:"stream,omitempty"`
}

// ChatResponse keeps only what callers consume: the first choice's text
type ChatResponse struct {
	ID      string `json:"id,omitempty"`
	Model   string `json:"model,omitempty"`
	Content string `json:"content"`
}

// StreamEvent is one decoded chat.completion.chunk. The last event on a stream
// carries Done (the server sent [DONE]) or Err (the stream broke off); neither
// has a payload.
type StreamEvent struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Model   string         `json:"model"`
	Choices []StreamChoice `json:"choices"`

	Done bool  `json:"-"`
	Err  error `json:"-"`
}

// ChunkObject is the object type of streamed completion events
const ChunkObject = "chat.completion.chunk"

// ErrStreamTruncated is reported when a stream ends without [DONE]
var ErrStreamTruncated = errors.New("stream ended without [DONE]")

// StreamChoice carries the incremental delta of a streamed choice
type StreamChoice struct {
	Index int `json:"index"`
	Delta struct {
		Content string `json:"content"`
	} `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// Model represents an entry of GET /models
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
	Root    string `json:"root,omitempty"`
	MaxLen  int    `json:"max_model_len,omitempty"`
}

var (
	// ErrEndpointNotConfigured is returned before any I/O when no base URL is set
	ErrEndpointNotConfigured = errors.New("VLM endpoint is not configured (set VLM_ENDPOINT)")

	// ErrMalformedResponse is returned when the reply lacks choices[0].message.content
	ErrMalformedResponse = errors.New("malformed chat completion response")
)

// APIError is a non-success HTTP status from the remote service
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("remote API error: status %d, body: %s", e.StatusCode, e.Body)
}

// ClientOptions contains options for creating an LLM client
type ClientOptions struct {
	BaseURL      string
	HealthURL    string
	Timeout      time.Duration
	DefaultModel string
	MaxTokens    int
	Headers      map[string]string
}

// ClientOption is a functional option for configuring clients
type ClientOption func(*ClientOptions)

// WithBaseURL sets the base URL (the part before /chat/completions)
func WithBaseURL(url string) ClientOption {
	return func(o *ClientOptions) {
		o.BaseURL = url
	}
}

// WithHealthURL overrides the health probe URL
func WithHealthURL(url string) ClientOption {
	return func(o *ClientOptions) {
		o.HealthURL = url
	}
}

// WithTimeout sets the request timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(o *ClientOptions) {
		o.Timeout = timeout
	}
}

// WithModel sets the default model
func WithModel(model string) ClientOption {
	return func(o *ClientOptions) {
		o.DefaultModel = model
	}
}

// WithMaxTokens sets the default output-length bound
func WithMaxTokens(n int) ClientOption {
	return func(o *ClientOptions) {
		o.MaxTokens = n
	}
}

// WithHeaders sets additional headers
func WithHeaders(headers map[string]string) ClientOption {
	return func(o *ClientOptions) {
		if o.Headers == nil {
			o.Headers = make(map[string]string)
		}
		for k, v := range headers {
			o.Headers[k] = v
		}
	}
}

// StringPtr is a helper function to get a pointer to a string
func StringPtr(s string) *string {
	return &s
}

// GetStringValue safely gets string value from pointer
func GetStringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
