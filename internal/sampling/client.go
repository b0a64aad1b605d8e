// internal/sampling/client.go
package sampling

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"calorie-chat/internal/config"
	"calorie-chat/internal/logger"
)

// ErrEmptyCompletion is returned when the model answered with no text.
var ErrEmptyCompletion = errors.New("empty completion from model")

// Client sends one single-turn completion request per call. It never retries.
type Client struct {
	httpClient *http.Client
	cfg        config.LLMConfig
	log        *logger.Logger
}

func NewClient(cfg config.LLMConfig, log *logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		cfg:        cfg,
		log:        log,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Temperature is sent even when zero so the endpoint never falls back to its default.
type completionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

// Complete returns the raw text produced by the model for prompt.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	req := completionRequest{
		Model:       c.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}

	start := time.Now()
	var (
		text string
		err  error
	)
	switch c.cfg.Backend {
	case config.BackendGateway:
		text, err = c.callGateway(ctx, "create_completion", req)
	default:
		text, err = c.callChatCompletions(ctx, req)
	}
	if err != nil {
		c.log.Warn("completion failed", "backend", c.cfg.Backend, "model", c.cfg.Model, "error", err)
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyCompletion
	}
	c.log.Debug("completion done", "backend", c.cfg.Backend, "model", c.cfg.Model,
		"elapsed_ms", time.Since(start).Milliseconds(), "chars", len(text))
	return text, nil
}

func (c *Client) callChatCompletions(ctx context.Context, req completionRequest) (string, error) {
	body, err := c.post(ctx, c.cfg.BaseURL+"/v1/chat/completions", c.cfg.APIKey, req)
	if err != nil {
		return "", err
	}
	content := gjson.GetBytes(body, "choices.0.message.content")
	if !content.Exists() {
		return "", fmt.Errorf("unexpected response format")
	}
	return content.String(), nil
}

// callGateway routes the completion through an MCP proxy as a tools/call request.
func (c *Client) callGateway(ctx context.Context, toolName string, req completionRequest) (string, error) {
	rpc := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]interface{}{
			"name":      toolName,
			"arguments": req,
		},
	}
	body, err := c.post(ctx, c.cfg.ProxyURL+"/openrouter-gateway", c.cfg.ProxyAPIKey, rpc)
	if err != nil {
		return "", err
	}

	text := gjson.GetBytes(body, "result.content.0.text")
	if !text.Exists() {
		return "", fmt.Errorf("unexpected response format")
	}
	// The gateway wraps the completion in its own JSON envelope.
	if gjson.Valid(text.String()) {
		if inner := gjson.Get(text.String(), "content"); inner.Exists() {
			return inner.String(), nil
		}
	}
	return text.String(), nil
}

func (c *Client) post(ctx context.Context, url, apiKey string, payload interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, truncate(string(bodyBytes), 512))
	}
	return bodyBytes, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
