package jobs

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ktaey129/weekboard/internal/github"
	"github.com/ktaey129/weekboard/internal/github/githubtest"
)

const (
	e2eOwner = "KTaey129"
	e2eRepo  = "52weeks-dataengineer"
)

func newGitHubClient(t *testing.T, srv *githubtest.Server) *github.Client {
	return newPacedGitHubClient(t, srv, 0)
}

func newPacedGitHubClient(t *testing.T, srv *githubtest.Server, pageDelay time.Duration) *github.Client {
	client, err := github.NewClient(github.Options{
		Token:              "test-token",
		Owner:              e2eOwner,
		Repo:               e2eRepo,
		APIURL:             srv.APIURL(),
		GraphQLURL:         srv.GraphQLURL(),
		Timeout:            5 * time.Second,
		RateLimitThreshold: 50,
		PageDelay:          pageDelay,
		Logger:             log.New(io.Discard, "", 0),
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestCreateWeeklyIssues_AgainstGitHub(t *testing.T) {
	srv := githubtest.NewServer(t, e2eOwner, e2eRepo)
	client := newGitHubClient(t, srv)
	rt, _ := testRuntime()

	job := &CreateWeeklyIssues{Issues: client, Runtime: rt}
	_, err := job.Run(context.Background())
	require.NoError(t, err)

	issues := srv.Issues()
	require.Len(t, issues, 52)
	for i, issue := range issues {
		assert.Equal(t, fmt.Sprintf("Week %02d", i+1), issue.Title)
	}

	// A second run does not look for existing issues
	_, err = job.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, srv.Issues(), 104)
	assert.Equal(t, 104, srv.CountRequests(http.MethodPost, "/issues"))
}

func TestDiscoverProjectID_AgainstGitHub(t *testing.T) {
	srv := githubtest.NewServer(t, e2eOwner, e2eRepo)
	srv.OrgProjects["acme"] = []githubtest.Project{{ID: "PVT_kwDOroadmap", Title: "Roadmap", Number: 1}}
	client := newGitHubClient(t, srv)
	rt, logs := testRuntime()

	job := &DiscoverProjectID{Projects: client, Owner: "acme", Runtime: rt}
	summary, err := job.Run(context.Background())
	require.NoError(t, err)

	queries := srv.GraphQLQueries()
	require.Len(t, queries, 2)
	assert.Contains(t, queries[0], "user(login")
	assert.Contains(t, queries[1], "organization(login")

	assert.Equal(t, Summary{Processed: 1, Succeeded: 1}, summary)
	assert.Contains(t, logs.String(), "Title: Roadmap, ID: PVT_kwDOroadmap, Number: 1")
}

func TestLinkIssuesToProject_AgainstGitHub(t *testing.T) {
	srv := githubtest.NewServer(t, e2eOwner, e2eRepo)
	srv.PageSize = 4
	for i := 1; i <= 13; i++ {
		if i%4 == 0 {
			srv.AddPullRequest(fmt.Sprintf("PR %d", i))
			continue
		}
		srv.AddIssue(fmt.Sprintf("Issue %d", i), "")
	}
	client := newGitHubClient(t, srv)
	rt, _ := testRuntime()

	job := &LinkIssuesToProject{Issues: client, Projects: client, ProjectID: "PVT_kwDOweeks", Repository: e2eOwner + "/" + e2eRepo, Runtime: rt}
	summary, err := job.Run(context.Background())
	require.NoError(t, err)

	// 10 issues and 3 pull requests: only the issues are linked
	assert.Equal(t, Summary{Processed: 10, Succeeded: 10}, summary)
	links := srv.Links()
	require.Len(t, links, 10)
	for _, link := range links {
		assert.Equal(t, "PVT_kwDOweeks", link.ProjectID)
	}
	assert.Len(t, srv.GraphQLQueries(), 10)
}

func TestLinkIssuesToProject_PageFailureLinksNothing(t *testing.T) {
	srv := githubtest.NewServer(t, e2eOwner, e2eRepo)
	srv.PageSize = 2
	for i := 1; i <= 5; i++ {
		srv.AddIssue(fmt.Sprintf("Issue %d", i), "")
	}
	srv.Intercept = func(w http.ResponseWriter, r *http.Request, body []byte) bool {
		if r.Method == http.MethodGet && r.URL.Query().Get("page") == "2" {
			w.WriteHeader(http.StatusBadGateway)
			return true
		}
		return false
	}
	client := newGitHubClient(t, srv)
	rt, _ := testRuntime()

	job := &LinkIssuesToProject{Issues: client, Projects: client, ProjectID: "PVT_kwDOweeks", Runtime: rt}
	_, err := job.Run(context.Background())
	require.Error(t, err)

	var pageErr *github.PaginationError
	require.ErrorAs(t, err, &pageErr)
	assert.Equal(t, 2, pageErr.Page)
	assert.Empty(t, srv.Links())
	assert.Empty(t, srv.GraphQLQueries())
}

func TestRetitleWeeklyIssues_AgainstGitHub(t *testing.T) {
	srv := githubtest.NewServer(t, e2eOwner, e2eRepo)
	srv.PageSize = 30
	for week := 1; week <= 52; week++ {
		srv.AddIssue(fmt.Sprintf("Week %02d", week), "old body")
	}
	srv.AddIssue("Retrospective", "keep me")
	srv.AddPullRequest("Week 53")
	client := newGitHubClient(t, srv)
	rt, _ := testRuntime()

	job := &RetitleWeeklyIssues{Issues: client, Repository: e2eOwner + "/" + e2eRepo, Runtime: rt}
	summary, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Summary{Processed: 53, Succeeded: 52, Skipped: 1}, summary)
	assert.Equal(t, 52, srv.CountRequests(http.MethodPatch, ""))

	for _, issue := range srv.Issues() {
		switch {
		case issue.IsPullRequest:
			assert.Empty(t, issue.Body)
		case issue.Title == "Retrospective":
			assert.Equal(t, "keep me", issue.Body)
		default:
			assert.True(t, strings.Contains(issue.Body, "Enhancing DE skill Roadmap"), "issue #%d body: %s", issue.Number, issue.Body)
		}
	}
}

func TestRetitleWeeklyIssues_InterruptDuringListing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := githubtest.NewServer(t, e2eOwner, e2eRepo)
	srv.PageSize = 1
	for week := 1; week <= 3; week++ {
		srv.AddIssue(fmt.Sprintf("Week %02d", week), "")
	}
	srv.Intercept = func(w http.ResponseWriter, r *http.Request, body []byte) bool {
		if r.Method == http.MethodGet {
			cancel()
		}
		return false
	}
	client := newPacedGitHubClient(t, srv, time.Hour)
	rt, logs := testRuntime()

	job := &RetitleWeeklyIssues{Issues: client, Runtime: rt}
	done := make(chan error, 1)
	go func() {
		_, err := job.Run(ctx)
		done <- err
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("listing did not stop between pages")
	}

	// The first page completes; the remaining pages and every update are abandoned
	assert.Equal(t, 1, srv.CountRequests(http.MethodGet, "/issues"))
	assert.Zero(t, srv.CountRequests(http.MethodPatch, ""))
	assert.Contains(t, logs.String(), "Interrupted after 0 items")
}
