// Package config loads and validates the YAML settings file (spec §6) and
// watches it for changes, matching the teacher's convention of wrapping
// configuration errors with github.com/pkg/errors and using
// gopkg.in/yaml.v3 for decoding (pack grounding: ia-eknorr-stoker-operator,
// storj-storj, vjache-cie all carry yaml.v3 for operator/node
// configuration).
package config

import (
	"net/url"
	"strings"

	"github.com/gitvault/gitvault/internal/objstore"
	"github.com/gitvault/gitvault/internal/reposync/keys"
)

// LogLevel is one of the four levels the settings file accepts.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Logging configures the process-wide logger.
type Logging struct {
	LogLevel LogLevel `yaml:"logLevel"`
}

// Storage configures the S3-compatible backend and the retention policy
// (retention is read here because it is a property of the bucket, not of
// any one repository).
type Storage struct {
	Endpoint                  string                        `yaml:"endpoint"`
	Region                    string                        `yaml:"region"`
	AccessKeyID               string                        `yaml:"accessKeyId"`
	SecretAccessKey           string                        `yaml:"secretAccessKey"`
	Bucket                    string                        `yaml:"bucket"`
	ForcePathStyle            bool                          `yaml:"forcePathStyle"`
	PayloadSignatureMode      objstore.PayloadSignatureMode `yaml:"payloadSignatureMode"`
	AlwaysCalculateContentMd5 bool                          `yaml:"alwaysCalculateContentMd5"`
	Retention                 *int                          `yaml:"retention"`
	RetentionMinimum          *int                          `yaml:"retentionMinimum"`
}

// Credential is one named entry under the top-level `credentials` map.
type Credential struct {
	Username string `yaml:"username"`
	APIKey   string `yaml:"apiKey"`
}

// Provider identifies a forge API this agent knows how to enumerate
// repositories from.
type Provider string

const (
	ProviderGitHub  Provider = "github"
	ProviderGitLab  Provider = "gitlab"
	ProviderForgejo Provider = "forgejo"
)

// RepositoryJob is one entry in the top-level `repositories` list.
type RepositoryJob struct {
	Mode       keys.JobMode `yaml:"mode"`
	Provider   Provider     `yaml:"provider,omitempty"`
	BaseURL    string       `yaml:"baseUrl,omitempty"`
	Credential string       `yaml:"credential,omitempty"`
	URL        string       `yaml:"url,omitempty"`
	LFS        bool         `yaml:"lfs"`
	Enabled    *bool        `yaml:"enabled"`
}

// IsEnabled defaults to true when unset.
func (j RepositoryJob) IsEnabled() bool {
	return j.Enabled == nil || *j.Enabled
}

// Schedule configures the cron expression for the single `repositories`
// job family the core implements.
type Schedule struct {
	Repositories struct {
		Cron string `yaml:"cron"`
	} `yaml:"repositories"`

	// Deprecated nested keys: presence alone is a hard validation error.
	DeprecatedBackups any `yaml:"backups"`
	DeprecatedMirrors any `yaml:"mirrors"`
}

// Settings is the fully parsed, not-yet-validated settings document.
type Settings struct {
	Logging      Logging               `yaml:"logging"`
	Storage      Storage               `yaml:"storage"`
	Credentials  map[string]Credential `yaml:"credentials"`
	Repositories []RepositoryJob       `yaml:"repositories"`
	Schedule     Schedule              `yaml:"schedule"`

	// Deprecated top-level keys: presence alone is a hard validation error.
	DeprecatedBackups any `yaml:"backups"`
	DeprecatedMirrors any `yaml:"mirrors"`
}

// RetentionDays returns the configured retention window, or false if
// retention is disabled.
func (s Settings) RetentionDays() (int, bool) {
	if s.Storage.Retention == nil || *s.Storage.Retention <= 0 {
		return 0, false
	}
	return *s.Storage.Retention, true
}

// RetentionMinimum returns max(0, configured ?? 1), per spec §4.4 step 2.
func (s Settings) RetentionMinimum() int {
	if s.Storage.RetentionMinimum == nil {
		return 1
	}
	if *s.Storage.RetentionMinimum < 0 {
		return 0
	}
	return *s.Storage.RetentionMinimum
}

// CredentialFor looks up a named credential case-insensitively.
func (s Settings) CredentialFor(name string) (Credential, bool) {
	for k, v := range s.Credentials {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return Credential{}, false
}

func isAbsoluteHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
