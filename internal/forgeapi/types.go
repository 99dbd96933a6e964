package forgeapi

import "time"

// User is the account shape the forge returns.
type User struct {
	ID       int64  `json:"id"`
	UserName string `json:"login"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// Repository is the subset of the forge's repository object the suite reads.
type Repository struct {
	ID            int64     `json:"id"`
	Owner         *User     `json:"owner"`
	Name          string    `json:"name"`
	FullName      string    `json:"full_name"`
	Description   string    `json:"description"`
	Empty         bool      `json:"empty"`
	Private       bool      `json:"private"`
	HTMLURL       string    `json:"html_url"`
	CloneURL      string    `json:"clone_url"`
	DefaultBranch string    `json:"default_branch"`
	Created       time.Time `json:"created_at"`
}

// CreateRepoOption is the body of POST /user/repos.
type CreateRepoOption struct {
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	Private       bool   `json:"private"`
	AutoInit      bool   `json:"auto_init,omitempty"`
	DefaultBranch string `json:"default_branch,omitempty"`
}

// ErrorBody is the JSON error document the forge sends with non-2xx statuses.
type ErrorBody struct {
	Message string `json:"message"`
	URL     string `json:"url,omitempty"`
}
