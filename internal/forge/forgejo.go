package forge

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gitvault/gitvault/internal/config"
	"github.com/gitvault/gitvault/internal/httpx"
	"github.com/pkg/errors"
)

// ForgejoClient enumerates repositories owned by an authenticated user via
// a Forgejo (Gitea-compatible) instance's REST API. baseURL is required:
// unlike GitHub/GitLab, Forgejo is always self-hosted.
type ForgejoClient struct {
	client  httpx.BasicClient
	baseURL string
}

// NewForgejoClient returns a ForgejoClient against baseURL (e.g.
// "https://git.example.com").
func NewForgejoClient(baseURL string) *ForgejoClient {
	return &ForgejoClient{
		client:  &httpx.WithUserAgent{BasicClient: http.DefaultClient, UserAgent: "gitvault"},
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

type forgejoRepo struct {
	CloneURL string `json:"clone_url"`
	HTMLURL  string `json:"html_url"`
}

func (c *ForgejoClient) ListOwnedRepositories(ctx context.Context, credential config.Credential) ([]Repository, error) {
	if c.baseURL == "" {
		return nil, errors.New("forgejo requires a base URL")
	}
	var out []Repository
	for page := 1; ; page++ {
		url := fmt.Sprintf("%s/api/v1/user/repos?limit=50&page=%d", c.baseURL, page)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, errors.Wrap(err, "building request")
		}
		req.SetBasicAuth(credential.Username, credential.APIKey)
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, errors.Wrap(err, "listing repositories")
		}
		var repos []forgejoRepo
		if err := decodeAndClose(resp, &repos); err != nil {
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
