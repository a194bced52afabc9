package github

import (
	"errors"
	"fmt"
	"strings"
)

// ErrOwnerNotFound is returned when a GraphQL lookup resolves no user or organization for a login
var ErrOwnerNotFound = errors.New("owner not found")

// NetworkError means the request did not complete: timeout, refused connection, DNS failure and the like. No
// response was received
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// APIError means a response was received with a non-success status
type APIError struct {
	Op         string
	StatusCode int
	Message    string // Response text, or GitHub's error message when it could be parsed
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, e.Message)
}

// GraphQLError means the GraphQL request completed but the server rejected the operation
type GraphQLError struct {
	Op       string
	Messages []string
}

func (e *GraphQLError) Error() string {
	return fmt.Sprintf("%s: graphql errors: %s", e.Op, strings.Join(e.Messages, "; "))
}

// MalformedResponseError means a success response did not carry the expected JSON
type MalformedResponseError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed response (HTTP %d): %v", e.Op, e.StatusCode, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// PaginationError means one page of a paginated listing failed. Pages fetched before the failure are discarded
type PaginationError struct {
	Page         int
	PagesFetched int
	Err          error
}

func (e *PaginationError) Error() string {
	return fmt.Sprintf("failed to fetch page %d (after %d complete pages): %v", e.Page, e.PagesFetched, e.Err)
}

func (e *PaginationError) Unwrap() error { return e.Err }

// IsNetworkError reports whether err, or any error it wraps, is a NetworkError
func IsNetworkError(err error) bool {
	var target *NetworkError
	return errors.As(err, &target)
}

// IsRejected reports whether err is a GraphQL rejection, as opposed to a request that did not complete
func IsRejected(err error) bool {
	var target *GraphQLError
	return errors.As(err, &target)
}
