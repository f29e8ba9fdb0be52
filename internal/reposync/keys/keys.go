package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
)

// JobMode distinguishes provider-enumerated jobs from single-URL jobs.
type JobMode string

// Job modes recognized by the repository settings.
const (
	ModeProvider JobMode = "provider"
	ModeURL      JobMode = "url"
)

// EnsurePrefix normalizes a storage prefix: blank input yields "", otherwise
// the input is trimmed of leading/trailing '/' and a single trailing '/' is
// appended.
func EnsurePrefix(x string) string {
	x = strings.Trim(x, "/")
	if x == "" {
		return ""
	}
	return x + "/"
}

// join builds a '/'-separated key from parts, never producing a trailing
// slash, and a leading slash only when the first part starts with one
// (storage-key builders pass relative parts, so their keys are free of
// surrounding '/'; LocalPath keeps an absolute workingRoot absolute).
func join(parts ...string) string {
	return path.Join(parts...)
}

// RepositoryPrefix returns the object-key prefix under which a repository's
// archives and marker live (its index lives under IndexKey instead).
//
//	provider mode: repositories/provider/<provider>/<hierarchy>
//	url mode:      repositories/url/<fullDomain>/<hierarchy>
func RepositoryPrefix(mode JobMode, provider string, info RepositoryPathInfo) string {
	switch mode {
	case ModeProvider:
		return join(append([]string{"repositories", "provider", provider}, info.Hierarchy()...)...)
	default:
		return join(append([]string{"repositories", "url", info.FullDomain}, info.Hierarchy()...)...)
	}
}

// Identity returns the stable identity string used both as the per-repository
// index key's discriminator and as the document's repositoryIdentity field.
//
//	provider/<provider>/<baseDomain>/<hierarchy>
//	url/<fullDomain>/<hierarchy>
//
// Two URLs that normalize to the same identity intentionally collide (same
// repository re-published under a scheme/case/trailing-slash variant).
func Identity(mode JobMode, provider string, info RepositoryPathInfo) string {
	switch mode {
	case ModeProvider:
		return join(append([]string{"provider", provider, info.BaseDomain}, info.Hierarchy()...)...)
	default:
		return join(append([]string{"url", info.FullDomain}, info.Hierarchy()...)...)
	}
}

// RegistryKey returns the fixed object key for the repository registry
// document.
func RegistryKey() string {
	return "indexes/repositories/registry.json"
}

// IndexKey returns the object key for a per-repository index document given
// its identity string.
func IndexKey(identity string) string {
	return join("indexes", "repositories", identity, "index.json")
}

// ArchiveKey returns the object key for a snapshot archive taken at
// unixSeconds under the given repository prefix.
func ArchiveKey(repositoryPrefix string, unixSeconds int64) string {
	return join(repositoryPrefix, fmt.Sprintf("%d_repo.tar.gz", unixSeconds))
}

// MarkerKey returns the object key for the `.repository-root` marker that
// lives one level above the archive, at the repository prefix.
func MarkerKey(repositoryPrefix string) string {
	return join(repositoryPrefix, ".repository-root")
}

// LocalPath returns the local working-directory path for a repository's bare
// mirror, rooted at workingRoot.
//
//	provider mode: <workingRoot>/repositories/provider/<sha256(provider+":"+url) hex>
//	url mode:      <workingRoot>/<storage prefix>
func LocalPath(workingRoot string, mode JobMode, provider, cloneURL, repositoryPrefix string) string {
	if mode == ModeProvider {
		sum := sha256.Sum256([]byte(provider + ":" + cloneURL))
		return join(workingRoot, "repositories", "provider", hex.EncodeToString(sum[:]))
	}
	return join(workingRoot, repositoryPrefix)
}
