package extractor

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// retryableStatusCodes mirrors the distillation's _is_retryable_http_error
// table: server errors, rate limiting, and Cloudflare's 52x band (SPEC_FULL §4).
var retryableStatusCodes = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
	520:                            true,
	521:                            true,
	522:                            true,
	523:                            true,
	524:                            true,
}

// retryableErrorSubstrings classifies a transport error as transient when
// no HTTP status is available at all (_is_retryable_error).
var retryableErrorSubstrings = []string{
	"timeout",
	"connection reset",
	"connection aborted",
	"connection broken",
	"connection refused",
	"temporary failure",
	"no such host",
	"network is unreachable",
	"host is unreachable",
}

// Fetcher performs the HTTP GET with the §4.6 retry/backoff policy.
type Fetcher struct {
	Client    *http.Client
	UserAgent string
	MaxRetries int
}

// NewFetcher builds a Fetcher with a shared, connection-pooling client
// (§5: "a single shared instance with connection pooling is fine").
func NewFetcher(userAgent string, timeout time.Duration) *Fetcher {
	return &Fetcher{
		Client:     &http.Client{Timeout: timeout},
		UserAgent:  userAgent,
		MaxRetries: 3,
	}
}

// FetchResult is the outcome of a successful fetch.
type FetchResult struct {
	HTML          string
	FinalURL      string
	RedirectCount int
}

// Fetch retrieves rawURL, retrying transient failures up to MaxRetries times
// with exponential backoff and jitter. 4xx other than 429 are terminal
// (§4.6 fetch policy).
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	if !isValidURL(rawURL) {
		return nil, newError(CodeFetchPermanent, "invalid url", fmt.Errorf("%q", rawURL))
	}

	var lastErr error
	for attempt := 0; attempt <= f.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := backoffWithJitter(attempt)
			select {
			case <-ctx.Done():
				return nil, newError(CodeCancelled, "cancelled during retry backoff", ctx.Err())
			case <-time.After(wait):
			}
		}

		result, err := f.doOnce(ctx, rawURL)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, newError(CodeCancelled, "context cancelled", ctx.Err())
		}

		extractErr, ok := err.(*Error)
		if !ok {
			return nil, err
		}
		if extractErr.Code != CodeFetchTransient {
			return nil, extractErr
		}
		// transient: loop and retry
	}

	return nil, newError(CodeFetchTransient, "exhausted retries", lastErr)
}

func (f *Fetcher) doOnce(ctx context.Context, rawURL string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, newError(CodeFetchPermanent, "building request", err)
	}
	req.Header.Set("User-Agent", f.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.Client.Do(req)
	if err != nil {
		if isRetryableTransportError(err) {
			return nil, newError(CodeFetchTransient, "transport error", err)
		}
		return nil, newError(CodeFetchPermanent, "transport error", err)
	}
	defer resp.Body.Close()

	redirectCount := countRedirects(resp)

	if resp.StatusCode >= 400 {
		if retryableStatusCodes[resp.StatusCode] {
			return nil, newError(CodeFetchTransient, fmt.Sprintf("http %d", resp.StatusCode), nil)
		}
		return nil, newError(CodeFetchPermanent, fmt.Sprintf("http %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(CodeFetchTransient, "reading body", err)
	}

	return &FetchResult{
		HTML:          string(body),
		FinalURL:      resp.Request.URL.String(),
		RedirectCount: redirectCount,
	}, nil
}

// countRedirects returns how many redirects were followed to reach the
// final response, using the chain of *http.Request.Response pointers the
// standard client keeps (SPEC_FULL §4: redirect diagnostics for triage).
func countRedirects(resp *http.Response) int {
	n := 0
	r := resp.Request
	for r != nil && r.Response != nil {
		n++
		r = r.Response.Request
	}
	return n
}

func isValidURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

func isRetryableTransportError(err error) bool {
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return true
	}
	lower := strings.ToLower(err.Error())
	for _, substr := range retryableErrorSubstrings {
		if strings.Contains(lower, substr) {
			return true
		}
	}
	return false
}

// backoffWithJitter mirrors the distillation's 1s/2s/4s + random(0.1,0.5)
// schedule.
func backoffWithJitter(attempt int) time.Duration {
	base := time.Duration(1<<(attempt-1)) * time.Second
	jitter := time.Duration(rand.Intn(400)+100) * time.Millisecond
	return base + jitter
}
