package config

import (
	"os"

	"github.com/gitvault/gitvault/internal/reposync/errs"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultCandidates is the ordered list of settings paths probed when the
// CLI is invoked without a positional argument (spec §6, CLI surface).
var DefaultCandidates = []string{
	"gitvault.yaml",
	"gitvault.yml",
	"/etc/gitvault/gitvault.yaml",
}

// Load reads and validates the settings file at path, returning a
// *errs.Error with Kind ConfigInvalid on any failure.
func Load(path string) (Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, errs.Wrapf(errs.ConfigInvalid, err, "reading settings file %s", path)
	}
	var s Settings
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return Settings{}, errs.Wrapf(errs.ConfigInvalid, err, "parsing settings file %s", path)
	}
	if err := Validate(s); err != nil {
		return Settings{}, errs.New(errs.ConfigInvalid, err)
	}
	return s, nil
}

// LoadFirstCandidate tries path if non-empty, otherwise each of
// DefaultCandidates in order, returning the first that exists.
func LoadFirstCandidate(path string) (Settings, string, error) {
	if path != "" {
		s, err := Load(path)
		return s, path, err
	}
	for _, candidate := range DefaultCandidates {
		if _, err := os.Stat(candidate); err == nil {
			s, err := Load(candidate)
			return s, candidate, err
		}
	}
	return Settings{}, "", errs.New(errs.ConfigInvalid, errors.Errorf("no settings file found among %v", DefaultCandidates))
}
