// Package forge implements the forge client interface (spec §6:
// ListOwnedRepositories) for the three supported providers. Each client is
// a thin REST wrapper, modeled on the teacher's registry package clients
// (pkg/registry/*) which likewise wrap a single upstream JSON API behind a
// narrow interface and a shared *http.Client.
package forge

import (
	"context"

	"github.com/gitvault/gitvault/internal/config"
)

// Repository is one entry returned by a forge's repository-listing API.
type Repository struct {
	CloneURL string
	WebURL   string
}

// Client enumerates repositories owned by the credential's account.
type Client interface {
	ListOwnedRepositories(ctx context.Context, credential config.Credential) ([]Repository, error)
}

// ForClient returns the Client for the named provider. baseURL is only
// consulted (and required) for ProviderForgejo, which has no fixed
// public endpoint.
func ForClient(provider config.Provider, baseURL string) (Client, error) {
	switch provider {
	case config.ProviderGitHub:
		return NewGitHubClient(), nil
	case config.ProviderGitLab:
		return NewGitLabClient(), nil
	case config.ProviderForgejo:
		return NewForgejoClient(baseURL), nil
	default:
		return nil, unsupportedProviderError(provider)
	}
}
