package forge

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gitvault/gitvault/internal/config"
	"github.com/gitvault/gitvault/internal/httpx"
	"github.com/pkg/errors"
)

// gitlabMinRequestInterval throttles enumeration requests to stay well
// under GitLab's default per-minute rate limit.
const gitlabMinRequestInterval = 150 * time.Millisecond

// GitLabClient enumerates projects owned by an authenticated GitLab user
// via the REST v4 API.
type GitLabClient struct {
	client  httpx.BasicClient
	baseURL string
}

// NewGitLabClient returns a GitLabClient against the public API.
func NewGitLabClient() *GitLabClient {
	rateLimited := &httpx.RateLimitedClient{
		BasicClient: http.DefaultClient,
		Ticker:      time.NewTicker(gitlabMinRequestInterval),
	}
	return &GitLabClient{
		client:  &httpx.WithUserAgent{BasicClient: rateLimited, UserAgent: "gitvault"},
		baseURL: "https://gitlab.com/api/v4",
	}
}

type gitlabProject struct {
	HTTPURLToRepo string `json:"http_url_to_repo"`
	WebURL        string `json:"web_url"`
}

func (c *GitLabClient) ListOwnedRepositories(ctx context.Context, credential config.Credential) ([]Repository, error) {
	var out []Repository
	for page := 1; ; page++ {
		url := fmt.Sprintf("%s/projects?owned=true&per_page=100&page=%d", c.baseURL, page)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, errors.Wrap(err, "building request")
		}
		req.Header.Set("PRIVATE-TOKEN", credential.APIKey)
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, errors.Wrap(err, "listing projects")
		}
		var projects []gitlabProject
		if err := decodeAndClose(resp, &projects); err != nil {
			return nil, err
		}
		if len(projects) == 0 {
			break
		}
		for _, p := range projects {
			out = append(out, Repository{CloneURL: p.HTTPURLToRepo, WebURL: p.WebURL})
		}
	}
	return out, nil
}
