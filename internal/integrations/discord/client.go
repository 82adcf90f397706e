package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://discord.com/api/v10"

// TokenSource yields the bot token. *paramstore.TokenSource satisfies it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type createMessageRequest struct {
	Content         string          `json:"content"`
	AllowedMentions allowedMentions `json:"allowed_mentions"`
}

// allowedMentions lets role and channel mentions in content ping.
type allowedMentions struct {
	Parse []string `json:"parse"`
}

type messageResponse struct {
	ID string `json:"id"`
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("discord: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client posts bot messages through the Discord REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(tokens TokenSource, opts ...Option) (*Client, error) {
	if tokens == nil {
		return nil, errors.New("discord: token source must not be nil")
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		tokens:     tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func messagesURL(baseURL, channelID string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	if !strings.HasSuffix(base, "/api/v10") {
		base += "/api/v10"
	}
	return base + "/channels/" + url.PathEscape(channelID) + "/messages"
}

// SendMessage posts content to channelID and returns the new message id.
func (c *Client) SendMessage(ctx context.Context, channelID, content string) (string, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return "", errors.New("discord: channel id is required")
	}
	if strings.TrimSpace(content) == "" {
		return "", errors.New("discord: content is required")
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("discord: resolve token: %w", err)
	}

	body, err := json.Marshal(createMessageRequest{
		Content:         content,
		AllowedMentions: allowedMentions{Parse: []string{"roles"}},
	})
	if err != nil {
		return "", fmt.Errorf("discord: marshal request: %w", err)
	}

	endpoint := messagesURL(c.baseURL, channelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("discord: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bot "+token)

	httpClient := c.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	res, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("discord: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return "", fmt.Errorf("discord: request failed: %w", &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        endpoint,
			Body:       string(buf),
		})
	}

	var msg messageResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&msg); err != nil {
		return "", fmt.Errorf("discord: decode response: %w", err)
	}
	return msg.ID, nil
}
