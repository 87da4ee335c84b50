// Package openai is a small client for the OpenAI-compatible embeddings and
// chat completions endpoints.
package openai

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

	"golang.org/x/time/rate"

	"github.com/starford/marginalia/internal/metrics"
)

// Default configuration values.
const (
	DefaultBaseURL        = "https://api.openai.com/v1"
	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultChatModel      = "gpt-4o-mini"
	DefaultTimeout        = 60 * time.Second
)

// ErrEmptyEmbedding is returned when the API answers without a vector.
var ErrEmptyEmbedding = errors.New("openai: empty embedding in response")

// Config holds client configuration.
type Config struct {
	APIKey         string
	BaseURL        string
	EmbeddingModel string
	ChatModel      string
	Timeout        time.Duration
	// RequestsPerSecond throttles outbound calls; zero disables throttling.
	RequestsPerSecond float64
	Burst             int
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	Op     string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openai: %s API error: %d %s", e.Op, e.Status, e.Body)
}

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client talks to the API.
type Client struct {
	http           *http.Client
	baseURL        string
	apiKey         string
	embeddingModel string
	chatModel      string
	limiter        *rate.Limiter
}

// New creates a Client. An API key is required.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := &Client{
		http:           &http.Client{Timeout: cfg.Timeout},
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKey,
		embeddingModel: cfg.EmbeddingModel,
		chatModel:      cfg.ChatModel,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c, nil
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the embedding of text.
func (c *Client) Embed(ctx context.Context, text string) (_ []float32, err error) {
	done := metrics.TimeCall("embed")
	defer func() { done(err == nil) }()

	var out embeddingResponse
	if err := c.post(ctx, "embeddings", "/embeddings", embeddingRequest{Model: c.embeddingModel, Input: text}, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}

	vec := make([]float32, len(out.Data[0].Embedding))
	for i, f := range out.Data[0].Embedding {
		vec[i] = float32(f)
	}
	return vec, nil
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Chat runs a chat completion and returns the first choice's content, or
// an empty string when the model returned no choices.
func (c *Client) Chat(ctx context.Context, messages []Message, temperature float64) (_ string, err error) {
	done := metrics.TimeCall("chat")
	defer func() { done(err == nil) }()

	var out chatResponse
	req := chatRequest{Model: c.chatModel, Messages: messages, Temperature: temperature}
	if err := c.post(ctx, "chat", "/chat/completions", req, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", nil
	}
	return out.Choices[0].Message.Content, nil
}

func (c *Client) post(ctx context.Context, op, path string, in, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("openai: %s: wait for rate limiter: %w", op, err)
		}
	}

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("openai: %s: marshal request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("openai: %s: create request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("openai: %s: send request: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("openai: %s: read response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("openai: %s: decode response: %w", op, err)
	}
	return nil
}
