package main

import (
	"fmt"
	"path"

	"github.com/gitvault/gitvault/internal/config"
	"github.com/gitvault/gitvault/internal/logging"
	"github.com/gitvault/gitvault/internal/objstore"
	"github.com/gitvault/gitvault/internal/reposync/index"
	"github.com/gitvault/gitvault/internal/reposync/keys"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// registryCmd groups administrative operations on the repository registry
// that are deliberately kept out of the Sync/Retention hot paths (spec §6:
// "a list-keys operation exists for administrative cleanup but is
// forbidden in Sync and Retention").
var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Administrative operations on the repository registry",
}

var gcDryRun bool

var registryGCCmd = &cobra.Command{
	Use:   "gc [settings-file]",
	Short: "Delete archive objects no longer referenced by any snapshot index",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRegistryGC,
}

func init() {
	registryGCCmd.Flags().BoolVar(&gcDryRun, "dry-run", false, "report what would be deleted without deleting it")
	registryCmd.AddCommand(registryGCCmd)
	rootCmd.AddCommand(registryCmd)
}

// runRegistryGC walks the registry's known indexes, diffs each repository's
// live objects against the snapshots its index still references, and
// deletes the orphans: archive uploads left behind by a sync run that
// crashed after UploadDirectoryAsTarGz but before SaveIndex. This is the
// one code path in the binary permitted to hold an objstore.AdminStore.
func runRegistryGC(cmd *cobra.Command, args []string) error {
	var settingsArg string
	if len(args) == 1 {
		settingsArg = args[0]
	}
	settingsPath, err := resolveSettingsPath(settingsArg)
	if err != nil {
		return err
	}
	settings, err := config.Load(settingsPath)
	if err != nil {
		return err
	}

	log, err := logging.New(settings.Logging.LogLevel)
	if err != nil {
		return errors.Wrap(err, "constructing logger")
	}
	defer log.Sync()
	sugar := log.Sugar()

	ctx := cmd.Context()
	store, err := objstore.NewS3(ctx, storageConfig(settings), sugar)
	if err != nil {
		return errors.Wrap(err, "constructing object storage client")
	}

	idx := index.New(store, sugar)
	registry, err := idx.LoadRegistry(ctx)
	if err != nil {
		return err
	}

	var totalOrphans int
	for _, indexKey := range registry.Doc.IndexKeys {
		loaded, err := idx.LoadIndex(ctx, indexKey)
		if err != nil {
			return err
		}
		if loaded.Missing || loaded.Corrupt || len(loaded.Doc.Snapshots) == 0 {
			continue
		}

		repositoryPrefix := path.Dir(loaded.Doc.Snapshots[0].RootPrefix)
		referenced := make(map[string]bool, len(loaded.Doc.Snapshots))
		for _, snap := range loaded.Doc.Snapshots {
			referenced[snap.RootPrefix] = true
		}

		objects, err := store.ListKeys(ctx, repositoryPrefix)
		if err != nil {
			return errors.Wrapf(err, "listing objects under %s", repositoryPrefix)
		}
		var orphans []string
		markerKey := keys.MarkerKey(repositoryPrefix)
		for _, key := range objects {
			// The listing is a plain string-prefix match, so it also returns
			// objects of sibling and nested repositories; keep only the
			// objects that sit directly at this repository's prefix.
			if path.Dir(key) != repositoryPrefix {
				continue
			}
			if key == markerKey || referenced[key] {
				continue
			}
			orphans = append(orphans, key)
		}
		if len(orphans) == 0 {
			continue
		}

		totalOrphans += len(orphans)
		for _, key := range orphans {
			fmt.Println(key)
		}
		sugar.Infow("orphaned archives found", "repositoryPrefix", repositoryPrefix, "count", len(orphans))
		if !gcDryRun {
			if err := store.DeleteObjects(ctx, orphans); err != nil {
				return errors.Wrapf(err, "deleting orphans under %s", repositoryPrefix)
			}
		}
	}

	sugar.Infow("registry gc complete", "orphansFound", totalOrphans, "dryRun", gcDryRun)
	return nil
}
