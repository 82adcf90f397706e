package notion

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

	"analytics-intake/internal/domain"
)

const (
	defaultBaseURL = "https://api.notion.com"
	apiVersion     = "2022-06-28"
)

// TokenSource yields the integration token. *paramstore.TokenSource satisfies it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// createPageRequest is the minimal body of POST /v1/pages.
type createPageRequest struct {
	Parent     parent              `json:"parent"`
	Properties map[string]property `json:"properties"`
}

type parent struct {
	DatabaseID string `json:"database_id"`
}

type property struct {
	Title  []richText `json:"title,omitempty"`
	Number *int       `json:"number,omitempty"`
	Date   *dateValue `json:"date,omitempty"`
}

type richText struct {
	Text textContent `json:"text"`
}

type textContent struct {
	Content string `json:"content"`
}

type dateValue struct {
	Start string `json:"start"`
}

type pageResponse struct {
	Object string `json:"object"`
	ID     string `json:"id"`
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("notion: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client creates one database page per completed submission.
type Client struct {
	baseURL    string
	databaseID string
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

func NewClient(tokens TokenSource, databaseID string, opts ...Option) (*Client, error) {
	if tokens == nil {
		return nil, errors.New("notion: token source must not be nil")
	}
	databaseID = strings.TrimSpace(databaseID)
	if databaseID == "" {
		return nil, errors.New("notion: database id must not be empty")
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		databaseID: databaseID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		tokens:     tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func pagesURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	if strings.HasSuffix(base, "/v1") {
		return base + "/pages"
	}
	return base + "/v1/pages"
}

// PageTitle is the Channel title of a submission page.
func PageTitle(s domain.Submission) string {
	return fmt.Sprintf("%s Analytics - %s", s.Format, s.Submitter)
}

func pageProperties(s domain.Submission) map[string]property {
	num := func(n int) property { return property{Number: &n} }
	return map[string]property{
		"Channel":    {Title: []richText{{Text: textContent{Content: PageTitle(s)}}}},
		"Post Views": num(s.Metrics.Views),
		"Likes":      num(s.Metrics.Likes),
		"Comments":   num(s.Metrics.Comments),
		"Shares":     num(s.Metrics.Shares),
		"Date":       {Date: &dateValue{Start: s.SubmittedAt.Format(time.RFC3339)}},
	}
}

// Record creates a page for s in the configured database.
func (c *Client) Record(ctx context.Context, s domain.Submission) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("notion: resolve token: %w", err)
	}

	body, err := json.Marshal(createPageRequest{
		Parent:     parent{DatabaseID: c.databaseID},
		Properties: pageProperties(s),
	})
	if err != nil {
		return fmt.Errorf("notion: marshal request: %w", err)
	}

	url := pagesURL(c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notion: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Notion-Version", apiVersion)

	raw, err := c.doJSONRequest(req, url)
	if err != nil {
		return fmt.Errorf("notion: request failed: %w", err)
	}

	var page pageResponse
	if err := json.Unmarshal(raw, &page); err != nil {
		return fmt.Errorf("notion: decode response: %w", err)
	}
	if page.ID == "" {
		return errors.New("notion: response has no page id")
	}
	return nil
}

func (c *Client) doJSONRequest(req *http.Request, url string) ([]byte, error) {
	httpClient := c.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	res, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}
