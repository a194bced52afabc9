package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/machinebox/graphql"
)

// GraphQL runs a query or mutation and decodes its data into resp. The returned status is 0 when no response was
// received. A response carrying an errors array is a *GraphQLError even if some data was returned, so callers can
// tell a rejected operation apart from a *NetworkError
func (c *Client) GraphQL(ctx context.Context, op string, query string, vars map[string]any, resp any) (int, error) {
	rec := &responseRecorder{base: c.graphqlHTTP.Transport}
	gql := graphql.NewClient(c.graphqlURL, graphql.WithHTTPClient(&http.Client{
		Transport: rec,
		Timeout:   c.graphqlHTTP.Timeout,
	}))
	if c.debug {
		gql.Log = func(s string) { c.logger.Printf("[graphql] %s", s) }
	}

	req := graphql.NewRequest(query)
	for k, v := range vars {
		req.Var(k, v)
	}

	err := gql.Run(ctx, req, resp)

	if !rec.received {
		if err == nil {
			err = fmt.Errorf("no response received")
		}
		return 0, &NetworkError{Op: op, Err: err}
	}
	if rec.status < 200 || rec.status >= 300 {
		return rec.status, &APIError{Op: op, StatusCode: rec.status, Message: strings.TrimSpace(string(rec.body))}
	}
	if messages := graphQLErrorMessages(rec.body); len(messages) > 0 {
		return rec.status, &GraphQLError{Op: op, Messages: messages}
	}
	if err != nil {
		return rec.status, &MalformedResponseError{Op: op, StatusCode: rec.status, Err: err}
	}

	return rec.status, nil
}

func graphQLErrorMessages(body []byte) []string {
	var payload struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}

	messages := make([]string, 0, len(payload.Errors))
	for _, e := range payload.Errors {
		messages = append(messages, e.Message)
	}
	return messages
}

// responseRecorder keeps the status and body of the response to a single GraphQL request. The GraphQL library only
// surfaces the first error message and ignores the status code of JSON responses, both of which are needed to
// classify failures
type responseRecorder struct {
	base http.RoundTripper

	received bool
	status   int
	body     []byte
}

func (r *responseRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := r.base.RoundTrip(req)
	if err != nil {
		return resp, err
	}

	body, err := io.ReadAll(resp.Body)
	closeErr := resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("failed to close response body: %w", closeErr)
	}

	r.received = true
	r.status = resp.StatusCode
	r.body = body

	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}
