// Package chat provides an OpenAI-compatible chat-completions client and a
// script refiner built on it, for deployments that refine scripts with a
// chat model instead of Gemini.
package chat

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

	"github.com/hammamikhairi/voicestudio/internal/domain"
	"github.com/hammamikhairi/voicestudio/internal/logger"
)

// Role constants.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat-completion message.
type Message struct {
	Role    string    `json:"role"`
	Content []Content `json:"content"`
}

// TextMessage is a convenience constructor for a plain-text message.
func TextMessage(role, text string) Message {
	return Message{
		Role:    role,
		Content: []Content{{Type: "text", Text: text}},
	}
}

// Content is a content block. Only text is used here.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type payload struct {
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	TopP        float64   `json:"top_p"`
	MaxTokens   int       `json:"max_tokens"`
	Model       string    `json:"model,omitempty"`
}

type apiResponse struct {
	Choices []choice `json:"choices"`
}

type choice struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithModel sets the model name. Azure deployments leave it empty.
func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) ClientOption {
	return func(c *Client) { c.temperature = t }
}

// WithMaxTokens sets the response token limit.
func WithMaxTokens(n int) ClientOption {
	return func(c *Client) { c.maxTokens = n }
}

// WithHTTPTimeout sets the HTTP client timeout.
func WithHTTPTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.http.Timeout = d }
}

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	endpoint    string
	apiKey      string
	model       string
	temperature float64
	topP        float64
	maxTokens   int
	http        *http.Client
	log         *logger.Logger
}

// NewClient creates a chat client.
//   - endpoint: full URL of the chat/completions resource
//   - apiKey:   sent both as "api-key" (Azure) and as a bearer token
func NewClient(endpoint, apiKey string, log *logger.Logger, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:    endpoint,
		apiKey:      apiKey,
		temperature: 0.4,
		topP:        0.95,
		maxTokens:   1200,
		http:        &http.Client{Timeout: 30 * time.Second},
		log:         log,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Chat sends a chat-completion request and returns the assistant's reply.
func (c *Client) Chat(ctx context.Context, messages []Message) (string, error) {
	body := payload{
		Messages:    messages,
		Temperature: c.temperature,
		TopP:        c.topP,
		MaxTokens:   c.maxTokens,
		Model:       c.model,
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("chat: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("chat: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.log.Debug("chat: POST %s (%d bytes)", c.endpoint, len(jsonData))

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("chat: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return "", &domain.ServiceError{Service: "chat", Message: apiErr.Error.Message, Err: fmt.Errorf("chat: API %s", resp.Status)}
		}
		return "", fmt.Errorf("chat: API %s: %s", resp.Status, truncate(string(respBody), 200))
	}

	var result apiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("chat: unmarshal response: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", errors.New("chat: empty response (no choices)")
	}

	reply := result.Choices[0].Message.Content
	c.log.Debug("chat: reply (%d chars): %s", len(reply), truncate(reply, 120))
	return reply, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// Refiner rewrites scripts through a chat model.
type Refiner struct {
	client *Client
}

// NewRefiner wraps a chat client as a domain.Refiner.
func NewRefiner(client *Client) *Refiner {
	return &Refiner{client: client}
}

const refineSystemPrompt = "You prepare scripts for a speech synthesizer. " +
	"Rewrite the user's text so it sounds natural when read aloud in the requested language. " +
	"Keep every bracketed delivery tag such as [calm] exactly where it is. Reply with the script only."

// Refine implements domain.Refiner.
func (r *Refiner) Refine(ctx context.Context, text string, lang domain.Language) (string, error) {
	reply, err := r.client.Chat(ctx, []Message{
		TextMessage(RoleSystem, refineSystemPrompt),
		TextMessage(RoleUser, fmt.Sprintf("Language: %s (%s)\n\n%s", lang.Label(), lang, text)),
	})
	if err != nil {
		var svc *domain.ServiceError
		if errors.As(err, &svc) {
			return "", err
		}
		return "", &domain.ServiceError{Service: "chat", Err: err}
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", &domain.ServiceError{Service: "chat", Err: errors.New("empty refinement")}
	}
	return reply, nil
}
