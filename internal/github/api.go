package github

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

type User struct {
	Login string `json:"login"`
}

// Scope selects the org or user flavour of the packages API.
type Scope string

const (
	ScopeOrg  Scope = "orgs"
	ScopeUser Scope = "users"
)

type PackageVersion struct {
	ID        int64            `json:"id"`
	Name      string           `json:"name"`
	CreatedAt *time.Time       `json:"created_at"`
	UpdatedAt *time.Time       `json:"updated_at"`
	Metadata  *PackageMetadata `json:"metadata"`
}

type PackageMetadata struct {
	Container *ContainerMetadata `json:"container"`
}

type ContainerMetadata struct {
	Tags []string `json:"tags"`
}

func (v PackageVersion) Tags() []string {
	if v.Metadata == nil || v.Metadata.Container == nil {
		return nil
	}
	return v.Metadata.Container.Tags
}

// Timestamp prefers updated_at over created_at.
func (v PackageVersion) Timestamp() *time.Time {
	if v.UpdatedAt != nil {
		return v.UpdatedAt
	}
	return v.CreatedAt
}

type Release struct {
	TagName     string     `json:"tag_name"`
	Name        string     `json:"name"`
	HTMLURL     string     `json:"html_url"`
	PublishedAt *time.Time `json:"published_at"`
	Assets      []Asset    `json:"assets"`
}

type Asset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Size               int64  `json:"size"`
}

// User resolves the login owning the client's token.
func (c *Client) User(ctx context.Context) (User, error) {
	var u User
	if err := c.getJSON(ctx, "/user", &u); err != nil {
		return User{}, err
	}
	return u, nil
}

// PackageVersions lists up to 100 versions of a container package.
func (c *Client) PackageVersions(ctx context.Context, scope Scope, owner, pkg string) ([]PackageVersion, error) {
	path := fmt.Sprintf("/%s/%s/packages/container/%s/versions?per_page=100", scope, url.PathEscape(owner), url.PathEscape(pkg))
	var versions []PackageVersion
	if err := c.getJSON(ctx, path, &versions); err != nil {
		return nil, err
	}
	return versions, nil
}

func (c *Client) LatestRelease(ctx context.Context, owner, repo string) (Release, error) {
	path := fmt.Sprintf("/repos/%s/%s/releases/latest", url.PathEscape(owner), url.PathEscape(repo))
	var r Release
	if err := c.getJSON(ctx, path, &r); err != nil {
		return Release{}, err
	}
	return r, nil
}
