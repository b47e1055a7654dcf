package tools

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/nachoal/coding-agent-server/llm"
	"github.com/nachoal/coding-agent-server/vision"
)

// Tool defines the interface that all tools must implement
type Tool interface {
	// Name returns the unique name of the tool
	Name() string

	// Description returns a brief description of what the tool does
	Description() string

	// Execute runs the tool with the given parameters
	Execute(ctx context.Context, params json.RawMessage) (string, error)

	// Parameters returns a struct that defines the tool's parameters
	// This struct will be used for schema generation
	Parameters() interface{}
}

// ImageAnalyzer is what the vision tools delegate to
type ImageAnalyzer interface {
	AnalyzeImage(ctx context.Context, imagePath, prompt string) (string, error)
	CompareImages(ctx context.Context, imagePaths []string, prompt string) (string, error)
}

// Error codes reported by tools
const (
	CodeInvalidParams    = "INVALID_PARAMS"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeConfigError      = "CONFIG_ERROR"
	CodeFileNotFound     = "FILE_NOT_FOUND"
	CodeTooFewImages     = "TOO_FEW_IMAGES"
	CodeTooManyImages    = "TOO_MANY_IMAGES"
	CodeRemoteError      = "REMOTE_ERROR"
)

// ToolError represents a structured error from a tool
type ToolError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`

	cause error
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// Unwrap exposes the underlying error to errors.Is / errors.As
func (e *ToolError) Unwrap() error {
	return e.cause
}

// NewToolError creates a new tool error
func NewToolError(code, message string) *ToolError {
	return &ToolError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WithDetail adds a detail to the error
func (e *ToolError) WithDetail(key string, value interface{}) *ToolError {
	e.Details[key] = value
	return e
}

// WithCause records the error this one was derived from
func (e *ToolError) WithCause(err error) *ToolError {
	e.cause = err
	return e
}

// FromError classifies an analyzer failure. The message is kept verbatim.
func FromError(err error) *ToolError {
	var te *ToolError
	if errors.As(err, &te) {
		return te
	}

	code := CodeRemoteError
	var apiErr *llm.APIError
	switch {
	case errors.Is(err, llm.ErrEndpointNotConfigured):
		code = CodeConfigError
	case errors.Is(err, vision.ErrImageNotFound):
		code = CodeFileNotFound
	case errors.Is(err, vision.ErrTooFewImages):
		code = CodeTooFewImages
	case errors.Is(err, vision.ErrTooManyImages):
		code = CodeTooManyImages
	case errors.As(err, &apiErr):
		return NewToolError(CodeRemoteError, err.Error()).
			WithDetail("status", apiErr.StatusCode).
			WithCause(err)
	}
	return NewToolError(code, err.Error()).WithCause(err)
}
