package fam

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/tagreview/internal/retry"
)

// Client talks to the FAM facility asset management API, the source of truth
// for tag data.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	retryCfg   retry.Config
}

// NewClient creates a new FAM API client
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(1*time.Second), 2), // 2 requests per second
		retryCfg:   retry.DefaultConfig(),
	}
}

// FetchTags pulls every tag record FAM holds for the project identified by
// its external key. Transient upstream failures are retried with backoff;
// the caller only runs in background sync, never in a request.
func (c *Client) FetchTags(ctx context.Context, projectKey string) ([]Record, error) {
	var tags []Record
	err := retry.Do(ctx, c.retryCfg, "fam_fetch_tags", func() error {
		fetched, err := c.fetchTagsOnce(ctx, projectKey)
		if err != nil {
			return err
		}
		tags = fetched
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tags, nil
}

func (c *Client) fetchTagsOnce(ctx context.Context, projectKey string) ([]Record, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	apiURL := fmt.Sprintf("%s/api/projects/%s/tags", c.baseURL, url.PathEscape(projectKey))
	req, err := http.NewRequestWithContext(ctx, "GET", apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tags: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("FAM tag fetch failed: %s, response: %s", resp.Status, string(body))
	}

	var result struct {
		Tags []Record `json:"tags"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode FAM response: %w", err)
	}

	return result.Tags, nil
}
