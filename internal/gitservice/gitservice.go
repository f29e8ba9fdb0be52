// Package gitservice implements the Git collaborator interface the sync
// pipeline depends on (spec §6: SyncBareRepository), adapted from the
// teacher's native-git-first, go-git-fallback approach in
// internal/gitx/clone.go: prefer the `git` binary on PATH for the actual
// clone/fetch, then open the result with go-git to confirm it is a valid
// repository before handing control back.
package gitservice

import (
	"context"
	"encoding/base64"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"github.com/pkg/errors"
)

// Credential is injected as an HTTP basic-auth header on the native git
// invocation, never written to disk or to the repository's own config.
type Credential struct {
	Username string
	APIKey   string
}

// Service ensures a local bare mirror of a remote repository is up to
// date, by clone, or by URL-update-then-fetch when one already exists.
type Service struct{}

// New returns a Git service.
func New() *Service { return &Service{} }

// SyncBareRepository ensures a bare mirror of remoteURL exists and is
// current at localPath (spec §4.3 step 4): if no bare repo exists, create
// the parent directory and perform a mirror clone; if force, delete the
// directory first; otherwise point the existing remote at remoteURL and
// fetch all refs with prune. If includeLfs, additionally fetch LFS
// objects.
func (s *Service) SyncBareRepository(ctx context.Context, remoteURL, localPath string, credential *Credential, force, includeLfs bool) error {
	if force {
		if err := os.RemoveAll(localPath); err != nil {
			return errors.Wrap(err, "removing existing mirror for forced resync")
		}
	}

	exists, err := isBareRepo(localPath)
	if err != nil {
		return errors.Wrap(err, "checking for existing mirror")
	}

	if !exists {
		if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
			return errors.Wrap(err, "creating working root")
		}
		if err := s.cloneMirror(ctx, remoteURL, localPath, credential); err != nil {
			return errors.Wrap(err, "mirror clone")
		}
	} else {
		if err := s.setRemoteURL(ctx, localPath, remoteURL); err != nil {
			return errors.Wrap(err, "updating remote url")
		}
		if err := s.fetchAllPrune(ctx, localPath, credential); err != nil {
			return errors.Wrap(err, "fetch --all --prune")
		}
	}

	if includeLfs {
		if err := s.fetchLFS(ctx, localPath, credential); err != nil {
			return errors.Wrap(err, "lfs fetch")
		}
	}

	if _, err := openForInspection(localPath); err != nil {
		return errors.Wrap(err, "opening synced mirror for verification")
	}
	return nil
}

func (s *Service) cloneMirror(ctx context.Context, remoteURL, localPath string, credential *Credential) error {
	args := []string{"clone", "--mirror", remoteURL, localPath}
	return s.run(ctx, "", args, credential)
}

func (s *Service) setRemoteURL(ctx context.Context, localPath, remoteURL string) error {
	return s.run(ctx, localPath, []string{"remote", "set-url", "origin", remoteURL}, nil)
}

func (s *Service) fetchAllPrune(ctx context.Context, localPath string, credential *Credential) error {
	return s.run(ctx, localPath, []string{"fetch", "--all", "--prune"}, credential)
}

func (s *Service) fetchLFS(ctx context.Context, localPath string, credential *Credential) error {
	return s.run(ctx, localPath, []string{"lfs", "fetch", "--all"}, credential)
}

// run invokes the native git binary with terminal prompting disabled and,
// when a credential is supplied, an HTTP basic-auth header injected via
// -c http.extraHeader rather than embedding it in the remote URL (the
// teacher's NativeClone likewise never mutates opt.URL to carry auth).
func (s *Service) run(ctx context.Context, dir string, args []string, credential *Credential) error {
	if !NativeGitAvailable() {
		return errors.New("git binary not found in PATH")
	}
	full := make([]string, 0, len(args)+2)
	if credential != nil {
		full = append(full, "-c", "http.extraHeader="+basicAuthHeader(*credential))
	}
	full = append(full, args...)
	cmd := exec.CommandContext(ctx, "git", full...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return errors.Errorf("git %v failed: %s", args, string(output))
	}
	return nil
}

func basicAuthHeader(c Credential) string {
	token := c.Username + ":" + c.APIKey
	return "Authorization: Basic " + base64.StdEncoding.EncodeToString([]byte(token))
}

var (
	nativeGitAvailable     bool
	nativeGitAvailableOnce sync.Once
)

// NativeGitAvailable reports whether the `git` binary is present on PATH.
func NativeGitAvailable() bool {
	nativeGitAvailableOnce.Do(func() {
		_, err := exec.LookPath("git")
		nativeGitAvailable = err == nil
	})
	return nativeGitAvailable
}

func isBareRepo(localPath string) (bool, error) {
	info, err := os.Stat(filepath.Join(localPath, "HEAD"))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !info.IsDir(), nil
}

// openForInspection opens an existing bare mirror with go-git, mirroring
// the teacher's pattern of falling back to go-git once the native binary
// has done the network-heavy work, here used only to confirm the result
// is a well-formed repository before the sync pipeline archives it.
func openForInspection(localPath string) (*git.Repository, error) {
	fs := osfs.New(localPath)
	storer := filesystem.NewStorage(fs, cache.NewObjectLRUDefault())
	return git.Open(storer, nil)
}
