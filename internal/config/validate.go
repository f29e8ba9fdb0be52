package config

import (
	"github.com/gitvault/gitvault/internal/reposync/keys"
	"github.com/pkg/errors"
)

// Validate enforces the constraints of spec §6. It returns a plain error;
// callers needing the ConfigInvalid Kind wrap it themselves (Load does).
func Validate(s Settings) error {
	if s.DeprecatedBackups != nil || s.DeprecatedMirrors != nil ||
		s.Schedule.DeprecatedBackups != nil || s.Schedule.DeprecatedMirrors != nil {
		return errors.New("settings use deprecated keys `backups`/`mirrors`/`schedule.backups`/`schedule.mirrors`; migrate to `repositories`/`schedule.repositories`")
	}

	switch s.Logging.LogLevel {
	case "", LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return errors.Errorf("logging.logLevel: unsupported value %q", s.Logging.LogLevel)
	}

	if err := validateStorage(s.Storage); err != nil {
		return errors.Wrap(err, "storage")
	}

	for i, job := range s.Repositories {
		if err := validateRepositoryJob(job); err != nil {
			return errors.Wrapf(err, "repositories[%d]", i)
		}
	}

	if s.Schedule.Repositories.Cron == "" {
		return errors.New("schedule.repositories.cron is required")
	}

	return nil
}

func validateStorage(s Storage) error {
	if s.Endpoint == "" || !isAbsoluteHTTPURL(s.Endpoint) {
		return errors.New("endpoint must be an absolute http(s) URL")
	}
	if s.Region == "" {
		return errors.New("region is required")
	}
	if s.AccessKeyID == "" {
		return errors.New("accessKeyId is required")
	}
	if s.SecretAccessKey == "" {
		return errors.New("secretAccessKey is required")
	}
	if s.Bucket == "" {
		return errors.New("bucket is required")
	}
	switch s.PayloadSignatureMode {
	case "", "full", "streaming", "unsigned":
	default:
		return errors.Errorf("payloadSignatureMode: unsupported value %q", s.PayloadSignatureMode)
	}
	if s.RetentionMinimum != nil && *s.RetentionMinimum < 0 {
		return errors.New("retentionMinimum must be non-negative")
	}
	return nil
}

func validateRepositoryJob(j RepositoryJob) error {
	switch j.Mode {
	case keys.ModeProvider:
		if j.Provider != ProviderGitHub && j.Provider != ProviderGitLab && j.Provider != ProviderForgejo {
			return errors.Errorf("mode=provider requires provider in {github,gitlab,forgejo}, got %q", j.Provider)
		}
		if j.Credential == "" {
			return errors.New("mode=provider requires credential")
		}
		if j.URL != "" {
			return errors.New("mode=provider forbids url")
		}
	case keys.ModeURL:
		if j.URL == "" || !isAbsoluteHTTPURL(j.URL) {
			return errors.New("mode=url requires an absolute http(s) url")
		}
		if j.Provider != "" {
			return errors.New("mode=url forbids provider")
		}
		if j.BaseURL != "" {
			return errors.New("mode=url forbids baseUrl")
		}
	default:
		return errors.Errorf("unsupported mode %q", j.Mode)
	}
	return nil
}
