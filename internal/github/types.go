package github

// Issue is an issue as consumed by the jobs. Pull requests never appear as an Issue
type Issue struct {
	Number int
	Title  string
	Body   string
	NodeID string // GraphQL node ID, needed to add the issue to a project
	URL    string
}

// Project is a Projects (v2) board
type Project struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Number int    `json:"number"`
}

// OwnerType selects the GraphQL scope in which projects are looked up
type OwnerType string

const (
	OwnerUser         OwnerType = "user"
	OwnerOrganization OwnerType = "organization"
)
