// Package sync implements the per-repository Sync Pipeline (spec §4.3):
// discover, ensure bare mirror, archive, conditionally upload, update the
// index and registry.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/gitvault/gitvault/internal/config"
	"github.com/gitvault/gitvault/internal/forge"
	"github.com/gitvault/gitvault/internal/gitservice"
	"github.com/gitvault/gitvault/internal/objstore"
	"github.com/gitvault/gitvault/internal/reposync/errs"
	"github.com/gitvault/gitvault/internal/reposync/index"
	"github.com/gitvault/gitvault/internal/reposync/keys"
	"go.uber.org/zap"
)

// Clock abstracts time.Now so tests can drive deterministic timestamps,
// matching the teacher's pattern (internal/timewarp) of injecting time
// rather than calling time.Now directly in domain logic.
type Clock func() int64

// GitService is the collaborator described in spec §6.
type GitService interface {
	SyncBareRepository(ctx context.Context, remoteURL, localPath string, credential *gitservice.Credential, force, includeLfs bool) error
}

// Pipeline runs the Sync Pipeline across all enabled repository jobs of a
// settings snapshot.
type Pipeline struct {
	Store       objstore.Store
	Git         GitService
	WorkingRoot string
	Now         Clock
	Log         *zap.SugaredLogger
}

// New returns a Pipeline. now defaults to the wall clock if nil.
func New(store objstore.Store, git GitService, workingRoot string, now Clock, log *zap.SugaredLogger) *Pipeline {
	return &Pipeline{Store: store, Git: git, WorkingRoot: workingRoot, Now: now, Log: log}
}

// Run executes the pipeline across settings.Repositories (spec §4.3,
// §4.5 Run state). Per-repository failures are logged and do not abort
// the run; a ForgeEnumerationFailed error aborts only the offending
// provider job.
func (p *Pipeline) Run(ctx context.Context, settings config.Settings) error {
	idx := index.New(p.Store, p.Log)
	registry, err := idx.LoadRegistry(ctx)
	if err != nil {
		return err
	}
	registryDirty := false

	for _, job := range settings.Repositories {
		if !job.IsEnabled() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		urls, err := p.discoverCloneURLs(ctx, settings, job)
		if err != nil {
			p.Log.Warnw("provider job enumeration failed, skipping job", "provider", job.Provider, "error", err)
			continue
		}
		for _, cloneURL := range urls {
			if err := ctx.Err(); err != nil {
				return err
			}
			dirty, err := p.syncOne(ctx, idx, registry, settings, job, cloneURL)
			registryDirty = registryDirty || dirty
			if err != nil {
				p.Log.Errorw("repository sync failed, continuing with next repository", "url", cloneURL, "error", err)
				continue
			}
		}
	}

	if registryDirty {
		registry.Doc = registry.Doc.Normalized()
		if err := idx.SaveRegistry(ctx, registry); err != nil {
			return err
		}
	}
	return nil
}

// discoverCloneURLs resolves a job entry to its clone URLs: the single URL
// for url-mode jobs, or the forge enumeration for provider-mode jobs (spec
// §4.3 step 1).
func (p *Pipeline) discoverCloneURLs(ctx context.Context, settings config.Settings, job config.RepositoryJob) ([]string, error) {
	switch job.Mode {
	case keys.ModeURL:
		if job.URL == "" {
			p.Log.Warnw("url-mode job has a blank url, skipping")
			return nil, nil
		}
		return []string{job.URL}, nil
	case keys.ModeProvider:
		cred, ok := settings.CredentialFor(job.Credential)
		if !ok {
			p.Log.Warnw("provider job references an unknown credential, skipping", "credential", job.Credential)
			return nil, nil
		}
		client, err := forge.ForClient(job.Provider, job.BaseURL)
		if err != nil {
			return nil, errs.Wrapf(errs.ForgeEnumerationFailed, err, "resolving forge client for provider %s", job.Provider)
		}
		repos, err := client.ListOwnedRepositories(ctx, cred)
		if err != nil {
			return nil, errs.Wrapf(errs.ForgeEnumerationFailed, err, "enumerating repositories for provider %s", job.Provider)
		}
		urls := make([]string, 0, len(repos))
		for _, r := range repos {
			urls = append(urls, r.CloneURL)
		}
		return urls, nil
	default:
		p.Log.Warnw("repository job has an unsupported mode, skipping", "mode", job.Mode)
		return nil, nil
	}
}

// syncOne runs steps 2-8 of spec §4.3 for a single discovered clone URL,
// returning whether the registry's known-index set changed.
func (p *Pipeline) syncOne(ctx context.Context, idx *index.Store, registry *index.LoadedRegistry, settings config.Settings, job config.RepositoryJob, cloneURL string) (bool, error) {
	info, err := keys.ParseRepositoryURL(cloneURL)
	if err != nil {
		return false, errs.Wrapf(errs.InvalidRepositoryURL, err, "parsing %s", cloneURL)
	}

	repositoryPrefix := keys.RepositoryPrefix(job.Mode, string(job.Provider), info)
	repositoryIdentity := keys.Identity(job.Mode, string(job.Provider), info)
	indexObjectKey := keys.IndexKey(repositoryIdentity)
	localPath := keys.LocalPath(p.WorkingRoot, job.Mode, string(job.Provider), cloneURL, repositoryPrefix)

	loadedIndex, err := idx.LoadIndex(ctx, indexObjectKey)
	if err != nil {
		return false, errs.New(errs.StorageTransient, err)
	}
	if loadedIndex.Doc.RepositoryIdentity == "" {
		loadedIndex.Doc.Mode = job.Mode
		loadedIndex.Doc.RepositoryIdentity = repositoryIdentity
	}

	var credential *gitservice.Credential
	if job.Mode == keys.ModeProvider {
		cred, ok := settings.CredentialFor(job.Credential)
		if !ok {
			return false, errs.New(errs.CredentialResolutionFailed, fmt.Errorf("unknown credential %q", job.Credential))
		}
		credential = &gitservice.Credential{Username: cred.Username, APIKey: cred.APIKey}
	}
	force := job.Mode == keys.ModeProvider
	if err := p.Git.SyncBareRepository(ctx, cloneURL, localPath, credential, force, job.LFS); err != nil {
		return false, errs.Wrapf(errs.GitSyncFailed, err, "syncing %s", cloneURL)
	}

	timestamp := p.now()
	archiveObjectKey := keys.ArchiveKey(repositoryPrefix, timestamp)
	if err := p.Store.UploadDirectoryAsTarGz(ctx, localPath, archiveObjectKey); err != nil {
		return false, errs.New(errs.StorageTransient, err)
	}

	loadedIndex.Doc = loadedIndex.Doc.WithSnapshotAppended(index.Snapshot{
		RootPrefix:           archiveObjectKey,
		TimestampUnixSeconds: timestamp,
	})
	if err := idx.SaveIndex(ctx, indexObjectKey, loadedIndex); err != nil {
		return false, errs.New(errs.StorageTransient, err)
	}

	var registryChanged bool
	registry.Doc, registryChanged = registry.Doc.WithKey(indexObjectKey)

	markerKey := keys.MarkerKey(repositoryPrefix)
	markerText := fmt.Sprintf("mode=%s\nrepository=%s\nupdatedAt=%s\n",
		job.Mode, cloneURL, time.Unix(timestamp, 0).UTC().Format(time.RFC3339))
	if err := p.Store.UploadText(ctx, markerKey, markerText); err != nil {
		return registryChanged, errs.New(errs.StorageTransient, err)
	}

	return registryChanged, nil
}

func (p *Pipeline) now() int64 {
	if p.Now != nil {
		return p.Now()
	}
	return wallClockNow()
}

func wallClockNow() int64 {
	return time.Now().Unix()
}
