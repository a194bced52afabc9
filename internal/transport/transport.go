package transport

import (
	"log"
	"net/http"
	"strconv"
)

// MediaTypeGitHubJSON is the media type GitHub recommends for both its REST and GraphQL APIs
const MediaTypeGitHubJSON = "application/vnd.github+json"

type GitHubHeadersTransport struct {
	base http.RoundTripper
}

// WithGitHubHeaders wraps base so that every request carries the GitHub Accept header, replacing whatever Accept
// value the client library chose
func WithGitHubHeaders(base http.RoundTripper) *GitHubHeadersTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &GitHubHeadersTransport{base: base}
}

func (t *GitHubHeadersTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request
	req = req.Clone(req.Context())
	req.Header.Set("Accept", MediaTypeGitHubJSON)
	return t.base.RoundTrip(req)
}

// RateLimit is the rate limit state reported by a single response
type RateLimit struct {
	Remaining int
	Limit     int
}

// ParseRateLimit reads the X-RateLimit headers from h. Absent or unparseable values are reported as 0
func ParseRateLimit(h http.Header) RateLimit {
	return RateLimit{
		Remaining: headerInt(h, "X-RateLimit-Remaining"),
		Limit:     headerInt(h, "X-RateLimit-Limit"),
	}
}

func headerInt(h http.Header, key string) int {
	n, err := strconv.Atoi(h.Get(key))
	if err != nil {
		return 0
	}
	return n
}

type RateLimitObserverTransport struct {
	base      http.RoundTripper
	threshold int
	logger    *log.Logger
}

// WithRateLimitObserver wraps base so that every received response has its rate limit headers inspected. A warning
// is logged when fewer than threshold requests remain. The observer never delays or retries a request
func WithRateLimitObserver(base http.RoundTripper, threshold int, logger *log.Logger) *RateLimitObserverTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	if logger == nil {
		logger = log.Default()
	}
	return &RateLimitObserverTransport{base: base, threshold: threshold, logger: logger}
}

func (t *RateLimitObserverTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return resp, err
	}

	rate := ParseRateLimit(resp.Header)
	if rate.Remaining < t.threshold {
		t.logger.Printf("[transport] Warning: Low API rate limit remaining: %d/%d", rate.Remaining, rate.Limit)
	}

	return resp, nil
}
