package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/cdematcher/backend/internal/domain"
)

const maxAttempts = 3

// BucketConfig holds configuration for the bucket client
type BucketConfig struct {
	BaseURL     string
	Bucket      string
	AccessToken string
	// Prefixes maps each collection to its object prefix; collections
	// missing here use their own name.
	Prefixes          map[string]string
	RequestsPerMinute int
}

// BucketClient reads tables from a storage bucket through its JSON API
type BucketClient struct {
	httpClient  *http.Client
	baseURL     string
	bucket      string
	accessToken string
	prefixes    map[string]string
	rateLimiter *rate.Limiter
	backoff     func(attempt int) time.Duration
	debug       bool
}

// NewBucketClient creates a new bucket client
func NewBucketClient(cfg BucketConfig) *BucketClient {
	perMinute := cfg.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = 600
	}
	// rate.Limit is requests per second
	limiter := rate.NewLimiter(rate.Limit(float64(perMinute)/60), 10)

	prefixes := make(map[string]string, len(domain.Collections()))
	for _, c := range domain.Collections() {
		prefixes[c] = c
	}
	for c, p := range cfg.Prefixes {
		prefixes[c] = strings.Trim(p, "/")
	}

	return &BucketClient{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		bucket:      cfg.Bucket,
		accessToken: cfg.AccessToken,
		prefixes:    prefixes,
		rateLimiter: limiter,
		backoff:     exponentialBackoff,
	}
}

// SetDebug toggles request logging.
func (c *BucketClient) SetDebug(debug bool) {
	c.debug = debug
}

// exponentialBackoff returns 500ms, 1s, 2s, ... for attempts 1, 2, 3, ...
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(500*(1<<(attempt-1))) * time.Millisecond
}

type objectList struct {
	Items []struct {
		Name string `json:"name"`
	} `json:"items"`
	NextPageToken string `json:"nextPageToken"`
}

// List returns the CSV object names of a collection without their prefix, sorted.
func (c *BucketClient) List(ctx context.Context, collection string) ([]string, error) {
	prefix, ok := c.prefix(collection)
	if !ok {
		return nil, fmt.Errorf("%w: unknown collection %q", domain.ErrInvalidRequest, collection)
	}

	var names []string
	pageToken := ""
	for {
		params := url.Values{}
		params.Set("prefix", prefix+"/")
		params.Set("fields", "items(name),nextPageToken")
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}
		reqURL := fmt.Sprintf("%s/storage/v1/b/%s/o?%s", c.baseURL, url.PathEscape(c.bucket), params.Encode())

		body, err := c.get(ctx, reqURL)
		if err != nil {
			return nil, err
		}
		var page objectList
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("%w: failed to decode object list: %v", domain.ErrStorageFailure, err)
		}
		for _, item := range page.Items {
			name := strings.TrimPrefix(item.Name, prefix+"/")
			if name == "" || strings.Contains(name, "/") || !isCSV(name) {
				continue
			}
			names = append(names, name)
		}
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	if c.debug {
		log.Printf("[BUCKET] Listed %d objects under %s/%s", len(names), c.bucket, prefix)
	}
	sort.Strings(names)
	return names, nil
}

// Load downloads and parses one CSV object of a collection.
func (c *BucketClient) Load(ctx context.Context, collection, name string) (*domain.Table, error) {
	prefix, ok := c.prefix(collection)
	if !ok {
		return nil, fmt.Errorf("%w: unknown collection %q", domain.ErrInvalidRequest, collection)
	}
	if err := checkName(name); err != nil {
		return nil, err
	}

	object := prefix + "/" + name
	reqURL := fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media", c.baseURL, url.PathEscape(c.bucket), url.PathEscape(object))
	body, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	if c.debug {
		log.Printf("[BUCKET] Downloaded %s (%d bytes)", object, len(body))
	}
	return ParseTable(name, bytes.NewReader(body))
}

func (c *BucketClient) prefix(collection string) (string, bool) {
	if !knownCollection(collection) {
		return "", false
	}
	return c.prefixes[collection], true
}

// get fetches a URL, retrying transport errors, 429 and 5xx responses.
func (c *BucketClient) get(ctx context.Context, reqURL string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		// Wait for rate limiter
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		resp, err := c.doRequest(ctx, reqURL)
		if err != nil {
			log.Printf("[BUCKET] Request error (attempt %d): %v", attempt, err)
			lastErr = err
			if attempt < maxAttempts {
				if err := c.wait(ctx, attempt); err != nil {
					return nil, err
				}
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK && readErr == nil:
			return body, nil
		case resp.StatusCode == http.StatusNotFound:
			return nil, domain.ErrDatasetNotFound
		case resp.StatusCode == http.StatusOK:
			lastErr = fmt.Errorf("%w: read body: %v", domain.ErrStorageFailure, readErr)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			log.Printf("[BUCKET] API error (attempt %d) - Status: %d", attempt, resp.StatusCode)
			lastErr = fmt.Errorf("%w: status %d", domain.ErrStorageFailure, resp.StatusCode)
		default:
			// other 4xx responses will not improve on retry
			return nil, fmt.Errorf("%w: status %d, body: %s", domain.ErrStorageFailure, resp.StatusCode, truncate(body, 200))
		}

		if attempt < maxAttempts {
			if err := c.wait(ctx, attempt); err != nil {
				return nil, err
			}
		}
	}

	log.Printf("[BUCKET] All retries failed for %s", reqURL)
	return nil, lastErr
}

// doRequest executes an HTTP GET request with proper headers and error handling
func (c *BucketClient) doRequest(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "CDEMatcher/1.0")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	if c.debug {
		log.Printf("[BUCKET] GET %s", reqURL)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageFailure, err)
	}
	return resp, nil
}

func (c *BucketClient) wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(c.backoff(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	return string(body[:n]) + "..."
}
