package sync

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gitvault/gitvault/internal/config"
	"github.com/gitvault/gitvault/internal/gitservice"
	"github.com/gitvault/gitvault/internal/objstore"
	"github.com/gitvault/gitvault/internal/reposync/keys"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeGit is a hand-rolled test double for GitService, mirroring the
// teacher's internal/gitx/gitxtest convention of faking the git layer in
// tests rather than shelling out to a real binary.
type fakeGit struct {
	calls int
}

func (f *fakeGit) SyncBareRepository(ctx context.Context, remoteURL, localPath string, credential *gitservice.Credential, force, includeLfs bool) error {
	f.calls++
	if err := os.MkdirAll(localPath, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(localPath, "HEAD"), []byte("ref: refs/heads/main\n"), 0o644)
}

func settingsWithOneURLJob(url string) config.Settings {
	s := config.Settings{
		Repositories: []config.RepositoryJob{{Mode: keys.ModeURL, URL: url}},
	}
	return s
}

func TestPipelineRunSyncsSingleRepositoryAndWritesIndexAndRegistry(t *testing.T) {
	store := objstore.NewMemory()
	git := &fakeGit{}
	tick := 1000
	clock := func() int64 { tick++; return int64(tick) }

	p := New(store, git, t.TempDir(), clock, zap.NewNop().Sugar())
	settings := settingsWithOneURLJob("https://git.example.com/owner/repo.git")

	require.NoError(t, p.Run(context.Background(), settings))
	require.Equal(t, 1, git.calls)

	registryContent, ok, err := store.GetTextIfExists(context.Background(), keys.RegistryKey())
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, registryContent, "indexKeys")

	info, err := keys.ParseRepositoryURL("https://git.example.com/owner/repo.git")
	require.NoError(t, err)
	identity := keys.Identity(keys.ModeURL, "", info)
	indexContent, ok, err := store.GetTextIfExists(context.Background(), keys.IndexKey(identity))
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, indexContent, "rootPrefix")
}

func TestPipelineRunSkipsDisabledRepository(t *testing.T) {
	store := objstore.NewMemory()
	git := &fakeGit{}
	p := New(store, git, t.TempDir(), nil, zap.NewNop().Sugar())

	disabled := false
	settings := config.Settings{
		Repositories: []config.RepositoryJob{{
			Mode: keys.ModeURL, URL: "https://git.example.com/o/r", Enabled: &disabled,
		}},
	}
	require.NoError(t, p.Run(context.Background(), settings))
	require.Equal(t, 0, git.calls)
}

func TestPipelineRunContinuesAfterOneRepositoryFails(t *testing.T) {
	store := objstore.NewMemory()
	settings := config.Settings{
		Repositories: []config.RepositoryJob{
			{Mode: keys.ModeURL, URL: "not-a-url"},
			{Mode: keys.ModeURL, URL: "https://git.example.com/owner/repo.git"},
		},
	}
	git := &fakeGit{}
	p := New(store, git, t.TempDir(), func() int64 { return 42 }, zap.NewNop().Sugar())

	require.NoError(t, p.Run(context.Background(), settings))
	require.Equal(t, 1, git.calls, "the second, valid repository must still be synced")
}

func TestPipelineRunWritesUnconditionalMarker(t *testing.T) {
	store := objstore.NewMemory()
	git := &fakeGit{}
	p := New(store, git, t.TempDir(), func() int64 { return 99 }, zap.NewNop().Sugar())
	settings := settingsWithOneURLJob("https://git.example.com/owner/repo.git")

	require.NoError(t, p.Run(context.Background(), settings))

	info, err := keys.ParseRepositoryURL("https://git.example.com/owner/repo.git")
	require.NoError(t, err)
	prefix := keys.RepositoryPrefix(keys.ModeURL, "", info)
	_, ok, err := store.GetTextIfExists(context.Background(), keys.MarkerKey(prefix))
	require.NoError(t, err)
	require.True(t, ok)
}
