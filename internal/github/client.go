// Package github is the API client core shared by every job: authenticated REST and GraphQL calls against a single
// repository, pagination, and typed failures.
package github

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v72/github"
	"golang.org/x/oauth2"

	"github.com/ktaey129/weekboard/internal/transport"
)

// Options configures a Client
type Options struct {
	Token string
	Owner string
	Repo  string

	APIURL     string // REST base URL; defaults to go-github's public API URL
	GraphQLURL string

	Timeout            time.Duration // Applies to every request, including reading the response body
	RateLimitThreshold int
	PageDelay          time.Duration // Pause between page fetches of a paginated listing

	Debug  bool // Log GraphQL traffic
	Logger *log.Logger
}

// Client talks to GitHub on behalf of one repository. It is not safe for concurrent use
type Client struct {
	owner string
	repo  string

	rest        *github.Client
	graphqlURL  string
	graphqlHTTP *http.Client

	// Shared by the REST and GraphQL clients so both reuse the same connections
	base *http.Transport

	pageDelay time.Duration
	debug     bool
	logger    *log.Logger
}

// NewClient creates a client. REST requests are authorized with the "token" scheme and GraphQL requests with the
// "Bearer" scheme, which is what GitHub's GraphQL endpoint requires
func NewClient(opts Options) (*Client, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	shared := transport.WithGitHubHeaders(transport.WithRateLimitObserver(base, opts.RateLimitThreshold, logger))

	restHTTP := &http.Client{
		Transport: &oauth2.Transport{Source: staticToken(opts.Token, "token"), Base: shared},
		Timeout:   opts.Timeout,
	}
	graphqlHTTP := &http.Client{
		Transport: &oauth2.Transport{Source: staticToken(opts.Token, "Bearer"), Base: shared},
		Timeout:   opts.Timeout,
	}

	rest := github.NewClient(restHTTP)
	if opts.APIURL != "" {
		apiURL := opts.APIURL
		if !strings.HasSuffix(apiURL, "/") {
			apiURL += "/"
		}
		baseURL, err := url.Parse(apiURL)
		if err != nil {
			return nil, fmt.Errorf("invalid API URL '%s': %w", opts.APIURL, err)
		}
		rest.BaseURL = baseURL
	}

	graphqlURL := opts.GraphQLURL
	if graphqlURL == "" {
		graphqlURL = "https://api.github.com/graphql"
	}

	return &Client{
		owner:       opts.Owner,
		repo:        opts.Repo,
		rest:        rest,
		graphqlURL:  graphqlURL,
		graphqlHTTP: graphqlHTTP,
		base:        base,
		pageDelay:   opts.PageDelay,
		debug:       opts.Debug,
		logger:      logger,
	}, nil
}

// Close releases the connections held by the client. It is safe to call more than once
func (c *Client) Close() {
	c.base.CloseIdleConnections()
}

func staticToken(token string, tokenType string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: tokenType})
}

// classify converts an error returned by go-github into one of this package's failure types
func classify(op string, resp *github.Response, err error) error {
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	var errResp *github.ErrorResponse

	switch {
	case errors.As(err, &rateErr):
		return &APIError{Op: op, StatusCode: statusCode(rateErr.Response), Message: rateErr.Message}
	case errors.As(err, &abuseErr):
		return &APIError{Op: op, StatusCode: statusCode(abuseErr.Response), Message: abuseErr.Message}
	case errors.As(err, &errResp):
		return &APIError{Op: op, StatusCode: statusCode(errResp.Response), Message: errorResponseMessage(errResp)}
	case resp == nil || resp.Response == nil:
		return &NetworkError{Op: op, Err: err}
	default:
		// A success status whose body could not be decoded
		return &MalformedResponseError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
}

func statusCode(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

func errorResponseMessage(errResp *github.ErrorResponse) string {
	msg := errResp.Message
	if msg == "" {
		msg = http.StatusText(statusCode(errResp.Response))
	}
	if len(errResp.Errors) > 0 && errResp.Errors[0].Message != "" {
		msg = fmt.Sprintf("%s - %s", msg, errResp.Errors[0].Message)
	}
	return msg
}
