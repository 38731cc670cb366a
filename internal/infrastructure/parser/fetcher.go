package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"

	"HotlistTracker/internal/scanner"
)

const maxBodySize = 8 << 20

// FetcherConfig tunes the outbound HTTP behaviour shared by HTTP scanners.
type FetcherConfig struct {
	UserAgent string
	// RateLimit is the sustained request rate per second; zero disables throttling.
	RateLimit     float64
	Burst         int
	MaxRetries    uint
	RetryInterval time.Duration
}

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d %s", e.URL, e.Status, http.StatusText(e.Status))
}

// Fetcher performs throttled GET requests with exponential backoff on transient failures.
type Fetcher struct {
	client        *http.Client
	limiter       *rate.Limiter
	userAgent     string
	maxRetries    uint
	retryInterval time.Duration
}

// NewFetcher wires an HTTP client; a nil client gets a 10 second timeout.
func NewFetcher(client *http.Client, cfg FetcherConfig) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "HotlistTracker/1.0"
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 500 * time.Millisecond
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Fetcher{
		client:        client,
		limiter:       limiter,
		userAgent:     cfg.UserAgent,
		maxRetries:    cfg.MaxRetries,
		retryInterval: cfg.RetryInterval,
	}
}

// Get fetches rawURL with query merged into its query string and returns the body.
// Client errors other than 429 are not retried.
func (f *Fetcher) Get(ctx context.Context, rawURL string, query url.Values, accept string) ([]byte, error) {
	target, err := buildPageURL(rawURL, query)
	if err != nil {
		return nil, err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = f.retryInterval

	body, err := backoff.Retry(ctx, func() ([]byte, error) {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("rate limiter: %w", err))
		}
		return f.do(ctx, target, accept)
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(f.maxRetries+1))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	return body, nil
}

func (f *Fetcher) do(ctx context.Context, target, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", f.userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, backoff.Permanent(err)
		}
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		statusErr := &StatusError{URL: target, Status: resp.StatusCode}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, statusErr
		}
		return nil, backoff.Permanent(statusErr)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// pageQuery assembles the query string of a page request: static params, then the
// page and size parameters and an optional cache-busting timestamp named by options.
func pageQuery(req scanner.PageRequest, now time.Time) url.Values {
	query := url.Values{}
	for k, v := range req.Params {
		query.Set(k, v)
	}
	if name := req.Option("page_param", ""); name != "" {
		query.Set(name, strconv.Itoa(req.Page))
	}
	if name := req.Option("size_param", ""); name != "" && req.PageSize > 0 {
		query.Set(name, strconv.Itoa(req.PageSize))
	}
	if name := req.Option("offset_param", ""); name != "" && req.PageSize > 0 {
		query.Set(name, strconv.Itoa((req.Page-req.StartPage)*req.PageSize))
	}
	if name := req.Option("cache_buster", ""); name != "" {
		query.Set(name, strconv.FormatInt(now.UnixMilli(), 10))
	}
	return query
}

func buildPageURL(base string, query url.Values) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %s: %w", base, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("invalid endpoint %s: absolute url required", base)
	}

	merged := parsed.Query()
	for k, vs := range query {
		merged.Del(k)
		for _, v := range vs {
			merged.Add(k, v)
		}
	}
	parsed.RawQuery = merged.Encode()
	return parsed.String(), nil
}
