package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DirectoryClient queries the corporate directory service for user display
// names.
type DirectoryClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewDirectoryClient creates a new directory client
func NewDirectoryClient(baseURL, token string) *DirectoryClient {
	return &DirectoryClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(1*time.Second), 5), // 5 requests per second
	}
}

// LookupNames resolves the given ids in one call. Ids the directory does not
// know are simply absent from the result.
func (c *DirectoryClient) LookupNames(ctx context.Context, userIDs []int64) (map[int64]string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	payload, err := json.Marshal(map[string][]int64{"userIds": userIDs})
	if err != nil {
		return nil, fmt.Errorf("failed to encode lookup request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/users/names", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query directory: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("directory lookup failed: %s, response: %s", resp.Status, string(body))
	}

	var result struct {
		Names map[string]string `json:"names"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode directory response: %w", err)
	}

	names := make(map[int64]string, len(result.Names))
	for key, name := range result.Names {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		names[id] = name
	}
	return names, nil
}
