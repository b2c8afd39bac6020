// Package llm answers assistant requests with an OpenAI-compatible chat
// model that may call the analytics tools before replying.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Config holds the chat completions settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// DefaultConfig returns the standard model settings.
func DefaultConfig() Config {
	return Config{
		BaseURL:     "https://api.openai.com/v1",
		Model:       "gpt-4o",
		Temperature: 0.7,
		MaxTokens:   500,
		Timeout:     30 * time.Second,
	}
}

const maxCompletionBytes = 256 * 1024

// APIError is a non-2xx reply from the completions endpoint.
type APIError struct {
	Phase   string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("chat completions (%s): status %d", e.Phase, e.Status)
	}
	return fmt.Sprintf("chat completions (%s): status %d: %s", e.Phase, e.Status, e.Message)
}

// Client calls POST {BaseURL}/chat/completions.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient validates cfg and returns a client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultConfig().BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultConfig().Model
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}, nil
}

// message is one chat turn. Assistant turns that requested tools are replayed
// verbatim as json.RawMessage.
type message struct {
	Role       string `json:"role"`
	Content    string `json:"content"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

type completionRequest struct {
	Model       string           `json:"model"`
	Messages    []any            `json:"messages"`
	Tools       []map[string]any `json:"tools,omitempty"`
	ToolChoice  string           `json:"tool_choice,omitempty"`
	Temperature float64          `json:"temperature"`
	MaxTokens   int              `json:"max_tokens"`
}

type toolCall struct {
	ID        string
	Name      string
	Arguments string
}

type completion struct {
	Content   string
	ToolCalls []toolCall
	// Raw is the assistant message as returned, for replay in the next turn.
	Raw json.RawMessage
}

func (c *Client) complete(ctx context.Context, phase string, messages []any, tools []map[string]any) (*completion, error) {
	reqBody := completionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}
	if len(tools) > 0 {
		reqBody.Tools = tools
		reqBody.ToolChoice = "auto"
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat completions (%s): %w", phase, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCompletionBytes))
	if err != nil {
		return nil, fmt.Errorf("read completion response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			Phase:   phase,
			Status:  resp.StatusCode,
			Message: gjson.GetBytes(body, "error.message").String(),
		}
	}
	return parseCompletion(body)
}

func parseCompletion(body []byte) (*completion, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("completion response is not JSON")
	}
	msg := gjson.GetBytes(body, "choices.0.message")
	if !msg.Exists() {
		return nil, fmt.Errorf("completion response has no choices")
	}

	out := &completion{
		Content: msg.Get("content").String(),
		Raw:     json.RawMessage(msg.Raw),
	}
	msg.Get("tool_calls").ForEach(func(_, call gjson.Result) bool {
		out.ToolCalls = append(out.ToolCalls, toolCall{
			ID:        call.Get("id").String(),
			Name:      call.Get("function.name").String(),
			Arguments: call.Get("function.arguments").String(),
		})
		return true
	})
	return out, nil
}
