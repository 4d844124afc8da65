// Package github talks to the GitHub REST API and commit diff endpoints.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/codelore/internal/apperr"
)

const (
	defaultAPIBase = "https://api.github.com"
	defaultWebBase = "https://github.com"
)

// CommitInfo is the subset of a listed commit that is persisted.
type CommitInfo struct {
	Hash         string
	Message      string
	AuthorName   string
	AuthorAvatar string
	Date         time.Time
}

// Repo is an owner/name pair parsed from a repository URL.
type Repo struct {
	Owner string
	Name  string
}

// ParseRepoURL extracts owner and repository from a URL such as
// https://github.com/owner/repo(.git). Only https github.com URLs are
// accepted since credentials are attached to requests built from them.
func ParseRepoURL(raw string) (Repo, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme != "https" || u.User != nil {
		return Repo{}, apperr.Invalid("invalid github url %q", raw)
	}
	if host := strings.ToLower(u.Host); host != "github.com" && host != "www.github.com" {
		return Repo{}, apperr.Invalid("only github.com repositories are supported, got %q", u.Host)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 2 {
		return Repo{}, apperr.Invalid("invalid github url %q", raw)
	}
	owner := parts[0]
	name := strings.TrimSuffix(parts[1], ".git")
	if owner == "" || name == "" {
		return Repo{}, apperr.Invalid("invalid github url %q", raw)
	}
	return Repo{Owner: owner, Name: name}, nil
}

// Client is a minimal GitHub REST client.
type Client struct {
	token   string
	apiBase string
	webBase string
	http    *http.Client
}

// NewClient returns a client authenticated with token when it is non-empty.
func NewClient(token string) *Client {
	return &Client{
		token:   token,
		apiBase: defaultAPIBase,
		webBase: defaultWebBase,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// WithAPIBase points the client at another API root.
func (c *Client) WithAPIBase(base string) *Client {
	c.apiBase = strings.TrimRight(base, "/")
	return c
}

// WithWebBase points diff downloads at another web root.
func (c *Client) WithWebBase(base string) *Client {
	c.webBase = strings.TrimRight(base, "/")
	return c
}

type listedCommit struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
		Author  struct {
			Name string    `json:"name"`
			Date time.Time `json:"date"`
		} `json:"author"`
	} `json:"commit"`
	Author *struct {
		AvatarURL string `json:"avatar_url"`
	} `json:"author"`
}

// ListCommits returns the first page of commits of the default branch in
// the order GitHub reports them.
func (c *Client) ListCommits(ctx context.Context, repo Repo) ([]CommitInfo, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/commits", c.apiBase, url.PathEscape(repo.Owner), url.PathEscape(repo.Name))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeUnavailable, "github request failed")
	}
	defer closeBody(resp)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperr.NotFound("repository %s/%s not found", repo.Owner, repo.Name)
	case resp.StatusCode != http.StatusOK:
		return nil, apperr.New(apperr.CodeUnavailable, fmt.Sprintf("GitHub API returned status %d", resp.StatusCode))
	}

	var listed []listedCommit
	if err := json.NewDecoder(resp.Body).Decode(&listed); err != nil {
		return nil, fmt.Errorf("decode commits: %w", err)
	}

	out := make([]CommitInfo, 0, len(listed))
	for _, l := range listed {
		ci := CommitInfo{
			Hash:       l.SHA,
			Message:    l.Commit.Message,
			AuthorName: l.Commit.Author.Name,
			Date:       l.Commit.Author.Date,
		}
		if l.Author != nil {
			ci.AuthorAvatar = l.Author.AvatarURL
		}
		out = append(out, ci)
	}
	return out, nil
}

// CommitDiff fetches the unified diff of a commit from
// github.com/{owner}/{repo}/commit/{hash}.diff. The request is anonymous.
func (c *Client) CommitDiff(ctx context.Context, repoURL, hash string) (string, error) {
	repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return "", err
	}
	endpoint := fmt.Sprintf("%s/%s/%s/commit/%s.diff", c.webBase, url.PathEscape(repo.Owner), url.PathEscape(repo.Name), url.PathEscape(hash))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/vnd.github.v3.diff")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch diff %s: %w", hash, err)
	}
	defer closeBody(resp)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch diff %s: status %d", hash, resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read diff %s: %w", hash, err)
	}
	return string(b), nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close response body")
	}
}
