package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultPageSize       = 50
	defaultMaxPages       = 10
	defaultRequestTimeout = 10 * time.Second
	maxResponseBytes      = 16 << 20
)

// feedResponse is one page of an OTX-style pulses endpoint.
type feedResponse struct {
	Results []feedPulse `json:"results"`
	Next    string      `json:"next"`
}

type feedPulse struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Created    string          `json:"created"`
	Modified   string          `json:"modified"`
	Severity   string          `json:"severity"`
	Tags       []string        `json:"tags"`
	Indicators []feedIndicator `json:"indicators"`
}

type feedIndicator struct {
	Indicator string `json:"indicator"`
	Type      string `json:"type"`
	Created   string `json:"created"`
	Severity  string `json:"severity"`
}

// PullResult carries the parsed pulses of one pull plus the raw page bodies
// for optional archival.
type PullResult struct {
	Pulses   []feedPulse
	RawPages [][]byte
}

// Client pulls indicator pages from upstream feeds.
type Client struct {
	httpClient *http.Client
	maxPages   int
}

// NewClient constructs a feed client. Zero values select the defaults.
func NewClient(timeout time.Duration, maxPages int) *Client {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		maxPages:   maxPages,
	}
}

// Pull requests the feed's recent-indicators endpoint, following pagination
// links up to the page cap. A feed returning zero results is not an error.
func (c *Client) Pull(ctx context.Context, feed Feed) (*PullResult, error) {
	pageURL, err := withPageSize(feed.URL, feed.PageSize)
	if err != nil {
		return nil, fmt.Errorf("feed %q: %w", feed.Name, err)
	}

	result := &PullResult{}
	for page := 0; pageURL != "" && page < c.maxPages; page++ {
		body, parsed, err := c.fetchPage(ctx, feed, pageURL)
		if err != nil {
			return nil, fmt.Errorf("feed %q page %d: %w", feed.Name, page+1, err)
		}

		result.Pulses = append(result.Pulses, parsed.Results...)
		result.RawPages = append(result.RawPages, body)
		pageURL = parsed.Next
	}

	return result, nil
}

func (c *Client) fetchPage(ctx context.Context, feed Feed, pageURL string) ([]byte, *feedResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if key := feed.APIKey(); key != "" {
		req.Header.Set(feed.AuthHeader, key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, nil, err
	}

	var parsed feedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, nil, fmt.Errorf("decode payload: %w", err)
	}

	return body, &parsed, nil
}

func withPageSize(rawURL string, pageSize int) (string, error) {
	if rawURL == "" {
		return "", errors.New("url is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if pageSize > 0 {
		q := parsed.Query()
		if q.Get("limit") == "" {
			q.Set("limit", strconv.Itoa(pageSize))
			parsed.RawQuery = q.Encode()
		}
	}
	return parsed.String(), nil
}
