// Package githubtest provides an in-process fake of the parts of the GitHub REST and GraphQL APIs the jobs use.
package githubtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Issue is an issue or pull request stored by the fake
type Issue struct {
	Number        int    `json:"number"`
	Title         string `json:"title"`
	Body          string `json:"body"`
	NodeID        string `json:"node_id"`
	HTMLURL       string `json:"html_url"`
	State         string `json:"state"`
	IsPullRequest bool   `json:"-"`
}

// Project is a Projects (v2) board returned by the fake's GraphQL endpoint
type Project struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Number int    `json:"number"`
}

// Request is a request received by the fake
type Request struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	Accept        string
	Body          []byte
}

// Link is a project item added through addProjectV2ItemById
type Link struct {
	ProjectID string
	ContentID string
	ItemID    string
}

// Server is a fake GitHub. Configure it before issuing requests; inspect it afterwards
type Server struct {
	*httptest.Server

	Owner string
	Repo  string

	// PageSize overrides the per_page requested by clients when positive
	PageSize int

	// RateLimitRemaining and RateLimitLimit are reported on every response
	RateLimitRemaining int
	RateLimitLimit     int

	// UserProjects and OrgProjects are keyed by login. A login missing from a map resolves to null with a NOT_FOUND
	// error, like GitHub does
	UserProjects map[string][]Project
	OrgProjects  map[string][]Project

	// Intercept, when set, may answer a request in place of the fake. Returning handled=false falls through
	Intercept func(w http.ResponseWriter, r *http.Request, body []byte) (handled bool)

	mu         sync.Mutex
	issues     []*Issue
	nextNumber int
	requests   []Request
	links      []Link
}

// NewServer starts a fake serving owner/repo. It is closed when the test ends
func NewServer(t testing.TB, owner string, repo string) *Server {
	s := &Server{
		Owner:              owner,
		Repo:               repo,
		RateLimitRemaining: 5000,
		RateLimitLimit:     5000,
		UserProjects:       map[string][]Project{},
		OrgProjects:        map[string][]Project{},
		nextNumber:         1,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/{owner}/{repo}/issues", s.handleListIssues)
	mux.HandleFunc("POST /repos/{owner}/{repo}/issues", s.handleCreateIssue)
	mux.HandleFunc("PATCH /repos/{owner}/{repo}/issues/{number}", s.handleEditIssue)
	mux.HandleFunc("POST /graphql", s.handleGraphQL)

	s.Server = httptest.NewServer(s.record(mux))
	t.Cleanup(s.Close)
	return s
}

// APIURL is the REST base URL of the fake
func (s *Server) APIURL() string {
	return s.URL + "/"
}

// GraphQLURL is the GraphQL endpoint of the fake
func (s *Server) GraphQLURL() string {
	return s.URL + "/graphql"
}

// AddIssue stores an issue and returns its number
func (s *Server) AddIssue(title string, body string) int {
	return s.add(title, body, false)
}

// AddPullRequest stores a pull request, which shares the issue number space, and returns its number
func (s *Server) AddPullRequest(title string) int {
	return s.add(title, "", true)
}

func (s *Server) add(title string, body string, pr bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.nextNumber
	s.nextNumber++
	s.issues = append(s.issues, &Issue{
		Number:        n,
		Title:         title,
		Body:          body,
		NodeID:        fmt.Sprintf("I_node%d", n),
		HTMLURL:       fmt.Sprintf("https://github.com/%s/%s/issues/%d", s.Owner, s.Repo, n),
		State:         "open",
		IsPullRequest: pr,
	})
	return n
}

// Issues returns a copy of every stored issue and pull request, in creation order
func (s *Server) Issues() []Issue {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Issue, 0, len(s.issues))
	for _, issue := range s.issues {
		out = append(out, *issue)
	}
	return out
}

// Requests returns every request received so far
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// CountRequests counts received requests with the given method whose path ends with pathSuffix
func (s *Server) CountRequests(method string, pathSuffix string) int {
	n := 0
	for _, req := range s.Requests() {
		if req.Method == method && strings.HasSuffix(req.Path, pathSuffix) {
			n++
		}
	}
	return n
}

// GraphQLQueries returns the query text of every GraphQL request received so far
func (s *Server) GraphQLQueries() []string {
	var queries []string
	for _, req := range s.Requests() {
		if req.Path != "/graphql" {
			continue
		}
		var payload struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal(req.Body, &payload); err == nil {
			queries = append(queries, payload.Query)
		}
	}
	return queries
}

// Links returns every project item added so far
func (s *Server) Links() []Link {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Link(nil), s.links...)
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.RawQuery,
			Authorization: r.Header.Get("Authorization"),
			Accept:        r.Header.Get("Accept"),
			Body:          body,
		})
		remaining, limit := s.RateLimitRemaining, s.RateLimitLimit
		s.mu.Unlock()

		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))

		if s.Intercept != nil && s.Intercept(w, r, body) {
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkRepo(w http.ResponseWriter, r *http.Request) bool {
	if r.PathValue("owner") != s.Owner || r.PathValue("repo") != s.Repo {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return false
	}
	return true
}

func (s *Server) handleListIssues(w http.ResponseWriter, r *http.Request) {
	if !s.checkRepo(w, r) {
		return
	}

	query := r.URL.Query()
	page := atoiDefault(query.Get("page"), 1)
	perPage := atoiDefault(query.Get("per_page"), 30)
	if s.PageSize > 0 {
		perPage = s.PageSize
	}

	s.mu.Lock()
	all := make([]map[string]any, 0, len(s.issues))
	for _, issue := range s.issues {
		all = append(all, issueJSON(issue))
	}
	s.mu.Unlock()

	start := min((page-1)*perPage, len(all))
	end := min(start+perPage, len(all))

	if end < len(all) {
		next := fmt.Sprintf("%s/repos/%s/%s/issues?page=%d&per_page=%d&state=%s", s.URL, s.Owner, s.Repo, page+1, perPage, query.Get("state"))
		w.Header().Set("Link", fmt.Sprintf(`<%s>; rel="next"`, next))
	}
	writeJSON(w, http.StatusOK, all[start:end])
}

func (s *Server) handleCreateIssue(w http.ResponseWriter, r *http.Request) {
	if !s.checkRepo(w, r) {
		return
	}

	var req struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "Validation Failed"})
		return
	}

	n := s.add(req.Title, req.Body, false)
	s.mu.Lock()
	// Numbers are assigned sequentially from 1, so number n is stored at index n-1
	created := issueJSON(s.issues[n-1])
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleEditIssue(w http.ResponseWriter, r *http.Request) {
	if !s.checkRepo(w, r) {
		return
	}

	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}

	var req struct {
		Title *string `json:"title"`
		Body  *string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Problems parsing JSON"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, issue := range s.issues {
		if issue.Number != number {
			continue
		}
		if req.Title != nil {
			issue.Title = *req.Title
		}
		if req.Body != nil {
			issue.Body = *req.Body
		}
		writeJSON(w, http.StatusOK, issueJSON(issue))
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
}

func (s *Server) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Problems parsing JSON"})
		return
	}

	switch {
	case strings.Contains(req.Query, "addProjectV2ItemById"):
		s.handleAddProjectItem(w, req.Variables)
	case strings.Contains(req.Query, "user(login"):
		s.handleProjects(w, "user", "User", s.UserProjects, req.Variables)
	case strings.Contains(req.Query, "organization(login"):
		s.handleProjects(w, "organization", "Organization", s.OrgProjects, req.Variables)
	default:
		writeGraphQLError(w, nil, "unsupported query")
	}
}

func (s *Server) handleProjects(w http.ResponseWriter, field string, kind string, projects map[string][]Project, vars map[string]any) {
	login, _ := vars["login"].(string)

	s.mu.Lock()
	owned, ok := projects[login]
	s.mu.Unlock()

	if !ok {
		writeGraphQLError(w, map[string]any{field: nil}, fmt.Sprintf("Could not resolve to a %s with the login of '%s'.", kind, login))
		return
	}
	if owned == nil {
		owned = []Project{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			field: map[string]any{
				"projectsV2": map[string]any{"nodes": owned},
			},
		},
	})
}

func (s *Server) handleAddProjectItem(w http.ResponseWriter, vars map[string]any) {
	projectID, _ := vars["projectId"].(string)
	contentID, _ := vars["contentId"].(string)

	s.mu.Lock()
	known := false
	for _, issue := range s.issues {
		if issue.NodeID == contentID {
			known = true
			break
		}
	}
	var itemID string
	if known {
		itemID = fmt.Sprintf("PVTI_item%d", len(s.links)+1)
		s.links = append(s.links, Link{ProjectID: projectID, ContentID: contentID, ItemID: itemID})
	}
	s.mu.Unlock()

	if !known {
		writeGraphQLError(w, map[string]any{"addProjectV2ItemById": nil}, fmt.Sprintf("Could not resolve to a node with the global id of '%s'", contentID))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"addProjectV2ItemById": map[string]any{
				"item": map[string]string{"id": itemID},
			},
		},
	})
}

func issueJSON(issue *Issue) map[string]any {
	m := map[string]any{
		"number":   issue.Number,
		"title":    issue.Title,
		"body":     issue.Body,
		"node_id":  issue.NodeID,
		"html_url": issue.HTMLURL,
		"state":    issue.State,
	}
	if issue.IsPullRequest {
		m["pull_request"] = map[string]string{"url": strings.Replace(issue.HTMLURL, "/issues/", "/pull/", 1)}
	}
	return m
}

func writeGraphQLError(w http.ResponseWriter, data any, message string) {
	writeJSON(w, http.StatusOK, map[string]any{
		"data":   data,
		"errors": []map[string]any{{"type": "NOT_FOUND", "message": message}},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
