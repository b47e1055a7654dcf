package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"k8s.io/klog/v2"

	"github.com/nachoal/coding-agent-server/llm"
)

const (
	defaultTimeout   = 300 * time.Second
	defaultModel     = "Qwen/Qwen3-VL-32B-Thinking-FP8"
	defaultMaxTokens = 2048

	// maxErrorBody bounds how much of a failed response is echoed back to the caller
	maxErrorBody = 4096
)

// Client talks to any OpenAI-compatible chat-completions server (vLLM in our deployments).
// One Client is safe for concurrent use; requests share the underlying connection pool.
type Client struct {
	options    llm.ClientOptions
	httpClient *http.Client
}

// NewClient creates a client. An empty base URL is accepted here and reported by each
// call instead, so tools can be listed before the endpoint is configured.
func NewClient(opts ...llm.ClientOption) *Client {
	options := llm.ClientOptions{
		Timeout:      defaultTimeout,
		DefaultModel: defaultModel,
		MaxTokens:    defaultMaxTokens,
		Headers:      make(map[string]string),
	}

	for _, opt := range opts {
		opt(&options)
	}
	options.BaseURL = NormalizeBaseURL(options.BaseURL)

	return &Client{
		options: options,
		httpClient: &http.Client{
			Timeout: options.Timeout,
		},
	}
}

// NormalizeBaseURL trims a trailing slash and a pasted /chat/completions suffix
func NormalizeBaseURL(base string) string {
	base = strings.TrimSpace(base)
	base = strings.TrimRight(base, "/")
	base = strings.TrimSuffix(base, "/chat/completions")
	return strings.TrimRight(base, "/")
}

// BaseURL returns the normalized base URL
func (c *Client) BaseURL() string {
	return c.options.BaseURL
}

// Chat sends one non-streaming request. No retries: a non-2xx status surfaces as *llm.APIError.
func (c *Client) Chat(ctx context.Context, request *llm.ChatRequest) (*llm.ChatResponse, error) {
	if c.options.BaseURL == "" {
		return nil, llm.ErrEndpointNotConfigured
	}

	c.applyDefaults(request)
	request.Stream = false

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.options.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	requestID := c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	logger := klog.FromContext(ctx).WithValues("requestID", requestID, "model", request.Model)
	logger.V(2).Info("Sending chat completion", "url", req.URL.String(), "bytes", len(body))
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Info("Chat completion failed", "status", resp.StatusCode, "elapsed", time.Since(start))
		return nil, &llm.APIError{StatusCode: resp.StatusCode, Body: truncate(string(respBody), maxErrorBody)}
	}

	content, err := ExtractContent(respBody)
	if err != nil {
		return nil, err
	}
	logger.V(2).Info("Chat completion done", "elapsed", time.Since(start), "chars", len(content))

	return &llm.ChatResponse{
		ID:      gjson.GetBytes(respBody, "id").String(),
		Model:   gjson.GetBytes(respBody, "model").String(),
		Content: content,
	}, nil
}

// ExtractContent returns choices[0].message.content or wraps llm.ErrMalformedResponse
func ExtractContent(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("%w: body is not valid JSON", llm.ErrMalformedResponse)
	}
	content := gjson.GetBytes(body, "choices.0.message.content")
	if !content.Exists() {
		return "", fmt.Errorf("%w: missing choices[0].message.content", llm.ErrMalformedResponse)
	}
	if content.Type != gjson.String {
		return "", fmt.Errorf("%w: choices[0].message.content is %s, not a string", llm.ErrMalformedResponse, content.Type)
	}
	return content.String(), nil
}

// ChatStream sends a streaming chat request and decodes SSE chunks until [DONE].
// The channel always ends with a Done or Err event unless ctx is cancelled first.
func (c *Client) ChatStream(ctx context.Context, request *llm.ChatRequest) (<-chan llm.StreamEvent, error) {
	if c.options.BaseURL == "" {
		return nil, llm.ErrEndpointNotConfigured
	}

	c.applyDefaults(request)
	request.Stream = true

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.options.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &llm.APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	events := make(chan llm.StreamEvent)

	go func() {
		defer close(events)
		defer resp.Body.Close()

		send := func(event llm.StreamEvent) bool {
			select {
			case events <- event:
				return true
			case <-ctx.Done():
				return false
			}
		}

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}

			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				send(llm.StreamEvent{Done: true})
				return
			}

			var event llm.StreamEvent
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				continue // Skip invalid events
			}
			if !send(event) {
				return
			}
		}

		err := scanner.Err()
		if err == nil {
			err = llm.ErrStreamTruncated
		} else {
			err = fmt.Errorf("%w: %w", llm.ErrStreamTruncated, err)
		}
		send(llm.StreamEvent{Err: err})
	}()

	return events, nil
}

// ListModels returns the models served by the endpoint
func (c *Client) ListModels(ctx context.Context) ([]llm.Model, error) {
	if c.options.BaseURL == "" {
		return nil, llm.ErrEndpointNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.options.BaseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &llm.APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var response struct {
		Data []llm.Model `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return response.Data, nil
}

// Health probes GET /health on the server root
func (c *Client) Health(ctx context.Context) error {
	url := c.healthURL()
	if url == "" {
		return llm.ErrEndpointNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &llm.APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return nil
}

// Close releases idle connections
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) healthURL() string {
	if c.options.HealthURL != "" {
		return c.options.HealthURL
	}
	if c.options.BaseURL == "" {
		return ""
	}
	return strings.TrimSuffix(c.options.BaseURL, "/v1") + "/health"
}

func (c *Client) applyDefaults(request *llm.ChatRequest) {
	if request.Model == "" {
		request.Model = c.options.DefaultModel
	}
	if request.MaxTokens <= 0 {
		request.MaxTokens = c.options.MaxTokens
	}
}

// setHeaders sets common headers and returns the request ID it attached
func (c *Client) setHeaders(req *http.Request) string {
	requestID := uuid.NewString()
	req.Header.Set("User-Agent", "coding-agent-server/1.0")
	req.Header.Set("X-Request-ID", requestID)

	for k, v := range c.options.Headers {
		req.Header.Set(k, v)
	}
	return requestID
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}
