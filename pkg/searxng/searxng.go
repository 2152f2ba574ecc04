// Package searxng is a client for the SearXNG metasearch JSON API.
package searxng

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Shreyas9400/Discord-Agentic-Bot/agent/contract"
)

const maxResponseSizeBytes = 2 << 20

type Config struct {
	InstanceURL string        `envconfig:"INSTANCE_URL" split_words:"true" default:"https://searx.be"`
	MaxResults  int           `envconfig:"MAX_RESULTS" split_words:"true" default:"10"`
	Timeout     time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"15s"`
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// Client implements contract.SearchProvider against one SearXNG instance.
// It performs no retries; tolerance decisions belong to the caller.
type Client struct {
	endpoint   string
	maxResults int
	httpClient *http.Client
}

var _ contract.SearchProvider = (*Client)(nil)

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	instance := strings.TrimRight(strings.TrimSpace(cfg.InstanceURL), "/")
	if instance == "" {
		return nil, fmt.Errorf("%w: searxng instance url is required", contract.ErrValidation)
	}
	if _, err := url.ParseRequestURI(instance); err != nil {
		return nil, fmt.Errorf("%w: invalid searxng instance url: %v", contract.ErrValidation, err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		endpoint:   instance + "/search",
		maxResults: maxResults,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

type searchResponse struct {
	Query   string `json:"query"`
	Results []struct {
		URL     string `json:"url"`
		Title   string `json:"title"`
		Content string `json:"content"`
		Engine  string `json:"engine"`
	} `json:"results"`
}

// Search runs one query and returns ranked results.
func (c *Client) Search(ctx context.Context, query string) ([]contract.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", contract.ErrValidation)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("categories", "general")
	params.Set("language", "en")
	params.Set("safesearch", "1")
	params.Set("pageno", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("searxng: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: searxng query %q: %v", contract.ErrTimeout, query, err)
		}
		return nil, fmt.Errorf("%w: searxng query %q: %v", contract.ErrServiceUnavailable, query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: searxng http %s", contract.ErrServiceUnavailable, strconv.Itoa(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: searxng read response: %v", contract.ErrServiceUnavailable, err)
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: searxng decode response: %v", contract.ErrServiceUnavailable, err)
	}

	results := make([]contract.SearchResult, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if strings.TrimSpace(r.URL) == "" {
			continue
		}
		results = append(results, contract.SearchResult{
			SourceURL: r.URL,
			Title:     r.Title,
			Snippet:   r.Content,
			Rank:      len(results) + 1,
		})
		if len(results) >= c.maxResults {
			break
		}
	}

	return results, nil
}
