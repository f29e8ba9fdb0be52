package forge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gitvault/gitvault/internal/config"
	"github.com/gitvault/gitvault/internal/httpx"
	"github.com/pkg/errors"
)

// githubMinRequestInterval keeps enumeration well under GitHub's REST rate
// limit (5000/hour authenticated) even for accounts with many repository
// pages.
const githubMinRequestInterval = 150 * time.Millisecond

// GitHubClient enumerates repositories owned by an authenticated GitHub
// user via the REST v3 API, modeled on the teacher's registry clients
// (pkg/registry/npm) layered over internal/httpx.BasicClient.
type GitHubClient struct {
	client  httpx.BasicClient
	baseURL string
}

// NewGitHubClient returns a GitHubClient against the public API.
func NewGitHubClient() *GitHubClient {
	rateLimited := &httpx.RateLimitedClient{
		BasicClient: http.DefaultClient,
		Ticker:      time.NewTicker(githubMinRequestInterval),
	}
	return &GitHubClient{
		client:  &httpx.WithUserAgent{BasicClient: rateLimited, UserAgent: "gitvault"},
		baseURL: "https://api.github.com",
	}
}

type githubRepo struct {
	CloneURL string `json:"clone_url"`
	HTMLURL  string `json:"html_url"`
}

func (c *GitHubClient) ListOwnedRepositories(ctx context.Context, credential config.Credential) ([]Repository, error) {
	var out []Repository
	for page := 1; ; page++ {
		url := fmt.Sprintf("%s/user/repos?per_page=100&page=%d&affiliation=owner", c.baseURL, page)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, errors.Wrap(err, "building request")
		}
		req.SetBasicAuth(credential.Username, credential.APIKey)
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, errors.Wrap(err, "listing repositories")
		}
		var repos []githubRepo
		err = decodeAndClose(resp, &repos)
		if err != nil {
			return nil, err
		}
		if len(repos) == 0 {
			break
		}
		for _, r := range repos {
			out = append(out, Repository{CloneURL: r.CloneURL, WebURL: r.HTMLURL})
		}
	}
	return out, nil
}

func decodeAndClose(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("unexpected status %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func unsupportedProviderError(provider config.Provider) error {
	return errors.Errorf("unsupported provider %q", provider)
}
