package synthesizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/viant/scy/cred/secret"
)

const systemPrompt = `You translate user intent into a single POSIX shell command.
Respond with the command only: no markdown fences, no commentary, no substitution syntax.`

// ClientConfig configures the HTTP synthesizer client.
type ClientConfig struct {
	BaseURL     string  `json:"baseURL" yaml:"baseURL"`
	Model       string  `json:"model" yaml:"model"`
	APIKeyEnv   string  `json:"apiKeyEnv,omitempty" yaml:"apiKeyEnv,omitempty"`
	Secret      string  `json:"secret,omitempty" yaml:"secret,omitempty"` // scy secret resource holding the API key
	TimeoutMs   int     `json:"timeoutMs,omitempty" yaml:"timeoutMs,omitempty"`
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   int     `json:"maxTokens,omitempty" yaml:"maxTokens,omitempty"`
}

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	config     ClientConfig
	apiKey     string
	httpClient *http.Client
}

// NewClient builds a Client, resolving the API key from the configured
// environment variable first and a scy secret resource second.
func NewClient(ctx context.Context, config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("synthesizer baseURL is required")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("synthesizer model is required")
	}
	key, err := resolveAPIKey(ctx, config)
	if err != nil {
		return nil, err
	}
	timeout := time.Duration(config.TimeoutMs) * time.Millisecond
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		config:     config,
		apiKey:     key,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func resolveAPIKey(ctx context.Context, config ClientConfig) (string, error) {
	if config.APIKeyEnv != "" {
		if value := os.Getenv(config.APIKeyEnv); value != "" {
			return value, nil
		}
	}
	if config.Secret != "" {
		secrets := secret.New()
		generic, err := secrets.GetCredentials(ctx, config.Secret)
		if err != nil {
			return "", fmt.Errorf("failed to resolve synthesizer secret: %w", err)
		}
		if generic.Password != "" {
			return generic.Password, nil
		}
	}
	return "", nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Synthesize implements Synthesizer over the chat-completions API.
func (c *Client) Synthesize(ctx context.Context, userIntent string, failure *FailureContext) (string, error) {
	user := userIntent
	if failure != nil {
		user = userIntent + "\n\n" + failure.Prompt()
	}
	payload := &chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: user},
		},
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	endpoint := strings.TrimRight(c.config.BaseURL, "/") + "/chat/completions"
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	request.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		request.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	response, err := c.httpClient.Do(request)
	if err != nil {
		return "", err
	}
	defer response.Body.Close()
	body, err := io.ReadAll(response.Body)
	if err != nil {
		return "", err
	}
	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("synthesizer returned %d: %s", response.StatusCode, strings.TrimSpace(string(body)))
	}
	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode synthesizer response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", nil
	}
	return parsed.Choices[0].Message.Content, nil
}
