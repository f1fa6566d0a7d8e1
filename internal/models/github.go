package models

// GitHubUser mirrors the subset of the GitHub user payload the page needs.
type GitHubUser struct {
	Login     string `bson:"login" json:"login"`
	Name      string `bson:"name" json:"name"`
	AvatarURL string `bson:"avatarUrl" json:"avatar_url"`
	Bio       string `bson:"bio" json:"bio"`
	Location  string `bson:"location" json:"location"`
	Followers int    `bson:"followers" json:"followers"`
	Following int    `bson:"following" json:"following"`
	HTMLURL   string `bson:"htmlUrl" json:"html_url"`
}

type GitHubRepo struct {
	Name        string   `bson:"name" json:"name"`
	Description string   `bson:"description" json:"description"`
	Language    string   `bson:"language" json:"language"`
	Stars       int      `bson:"stars" json:"stargazers_count"`
	Forks       int      `bson:"forks" json:"forks_count"`
	HTMLURL     string   `bson:"htmlUrl" json:"html_url"`
	Topics      []string `bson:"topics" json:"topics"`
}

// GitHubProfile bundles a user with their repositories, the unit the profile
// source returns.
type GitHubProfile struct {
	User  GitHubUser   `json:"user"`
	Repos []GitHubRepo `json:"repositories"`
}
