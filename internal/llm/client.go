// Package llm is the boundary to an optional external hosted language
// model. Every failure mode (transport error, timeout, non-2xx status,
// malformed body) surfaces as *Error so the pipeline can treat them
// identically and fall back to the local generator.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/assessli/companion/internal/model"
)

// Error marks any failure of the external language-model boundary.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("external model: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("external model: %s", e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Completer is the interface the pipeline consumes; it lets tests
// substitute a scripted boundary.
type Completer interface {
	Complete(ctx context.Context, apiKey string, profile *model.Profile, input string) (string, error)
}

const systemPrompt = "You are Assessli Companion. Keep replies concise and helpful."

// Client calls an OpenAI-compatible chat completions endpoint.
type Client struct {
	client *resty.Client
	model  string
}

// NewClient creates a Client against baseURL with a fixed per-call timeout.
// The bearer credential is supplied per call and never stored.
func NewClient(baseURL, modelName string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)

	return &Client{client: c, model: modelName}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete requests assistant text for the input, personalized with a
// serialized summary of the profile's meta.
func (c *Client) Complete(ctx context.Context, apiKey string, profile *model.Profile, input string) (string, error) {
	meta, _ := json.Marshal(profileMeta(profile))
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf("User profile: %s\n\nUser message: %s", meta, input)},
		},
		MaxTokens:   300,
		Temperature: 0.7,
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(apiKey).
		SetBody(&reqBody).
		Post("/v1/chat/completions")
	if err != nil {
		return "", &Error{Reason: "request failed", Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return "", &Error{Reason: fmt.Sprintf("status %d: %s", resp.StatusCode(), resp.String())}
	}

	var cr chatResponse
	if err := json.Unmarshal(resp.Body(), &cr); err != nil {
		return "", &Error{Reason: "decode response", Err: err}
	}
	if len(cr.Choices) == 0 || cr.Choices[0].Message.Content == "" {
		return "", &Error{Reason: "empty completion"}
	}
	return strings.TrimSpace(cr.Choices[0].Message.Content), nil
}

func profileMeta(p *model.Profile) model.ProfileMeta {
	if p == nil {
		return model.ProfileMeta{}
	}
	return p.Meta
}
