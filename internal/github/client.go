package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL   = "https://api.github.com"
	acceptHeader     = "application/vnd.github+json"
	apiVersionHeader = "2022-11-28"
	maxErrorBody     = 64 * 1024
)

// Options configures a Client. Zero values fall back to sane defaults.
type Options struct {
	BaseURL           string
	Token             string
	UserAgent         string
	Timeout           time.Duration
	DownloadTimeout   time.Duration
	RequestsPerSecond float64
}

// Client talks to the GitHub REST API. Requests share one rate limiter.
type Client struct {
	baseURL    string
	token      string
	userAgent  string
	api        *http.Client
	downloader *http.Client
	limiter    *rate.Limiter
}

func NewClient(o Options) *Client {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.UserAgent == "" {
		o.UserAgent = "nqrust-installer"
	}
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	if o.DownloadTimeout <= 0 {
		o.DownloadTimeout = 60 * time.Second
	}
	limit := rate.Inf
	if o.RequestsPerSecond > 0 {
		limit = rate.Limit(o.RequestsPerSecond)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = o.DownloadTimeout

	return &Client{
		baseURL:   strings.TrimRight(o.BaseURL, "/"),
		token:     strings.TrimSpace(o.Token),
		userAgent: o.UserAgent,
		api:       &http.Client{Timeout: o.Timeout},
		// Bodies can take longer than any fixed timeout; only the wait for
		// response headers is bounded.
		downloader: &http.Client{Transport: transport},
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// WithToken returns a copy of c that authenticates with token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = strings.TrimSpace(token)
	return &cp
}

// APIError is a non-2xx response. Body is kept verbatim.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s: %s: %s", e.Method, e.URL, e.Status, body)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func (c *Client) newRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("X-GitHub-Api-Version", apiVersionHeader)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	url := c.baseURL + path
	req, err := c.newRequest(ctx, url)
	if err != nil {
		return err
	}
	resp, err := c.api.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(req, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

func newAPIError(req *http.Request, resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{
		Method:     req.Method,
		URL:        req.URL.String(),
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(body),
	}
}
