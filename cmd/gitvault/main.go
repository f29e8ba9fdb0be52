package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	stdsync "sync"
	"syscall"

	"github.com/gitvault/gitvault/internal/config"
	"github.com/gitvault/gitvault/internal/gitservice"
	"github.com/gitvault/gitvault/internal/logging"
	"github.com/gitvault/gitvault/internal/objstore"
	"github.com/gitvault/gitvault/internal/reposync/retention"
	"github.com/gitvault/gitvault/internal/reposync/scheduler"
	"github.com/gitvault/gitvault/internal/reposync/sync"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// GitTag and GitHash are informational build metadata (spec §6,
// "Environment"), overridden at link time with
// -ldflags "-X main.GitTag=... -X main.GitHash=...".
var (
	GitTag  = "dev"
	GitHash = "unknown"
)

var rootCmd = &cobra.Command{
	Use:     "gitvault [settings-file]",
	Short:   "Snapshot remote Git repositories into S3-compatible object storage on a schedule",
	Version: fmt.Sprintf("%s (%s)", GitTag, GitHash),
	Args:    cobra.MaximumNArgs(1),
	RunE:    run,
}

func main() {
	rootCmd.SetVersionTemplate("gitvault {{.Version}}\n")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	var path string
	if len(args) == 1 {
		path = args[0]
	}

	settingsPath, err := resolveSettingsPath(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	initial, err := config.Load(settingsPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}

	log, err := logging.New(initial.Logging.LogLevel)
	if err != nil {
		return errors.Wrap(err, "constructing logger")
	}
	defer log.Sync()
	sugar := log.Sugar()
	sugar.Infow("settings loaded", "path", settingsPath)
	logStartupSummary(sugar, initial)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	watcher, _, err := config.NewWatcher(settingsPath, sugar)
	if err != nil {
		return err
	}

	store, err := objstore.NewS3(ctx, storageConfig(initial), sugar)
	if err != nil {
		return errors.Wrap(err, "constructing object storage client")
	}

	workingRoot, err := workingRootDir()
	if err != nil {
		return err
	}

	syncPipeline := sync.New(store, gitservice.New(), workingRoot, nil, sugar)
	retentionEngine := retention.New(store, nil, sugar)
	sched := scheduler.New(syncPipeline, retentionEngine, sugar)

	live := newLiveSettings(initial)
	go func() {
		for s := range watcher.Snapshots() {
			logStartupSummary(sugar, s)
			live.set(s)
		}
	}()
	go func() {
		if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
			sugar.Warnw("settings watcher stopped", "error", err)
		}
	}()

	if err := sched.Run(ctx, live.get); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	sugar.Infow("shutdown complete")
	return nil
}

// resolveSettingsPath implements the CLI surface's default-candidate
// probing (spec §6): use the positional argument if given, otherwise the
// first of config.DefaultCandidates that exists on disk.
func resolveSettingsPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	for _, candidate := range config.DefaultCandidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", errors.Errorf("no settings file found among %v", config.DefaultCandidates)
}

func storageConfig(s config.Settings) objstore.Config {
	return objstore.Config{
		Endpoint:                  s.Storage.Endpoint,
		Region:                    s.Storage.Region,
		AccessKeyID:               s.Storage.AccessKeyID,
		SecretAccessKey:           s.Storage.SecretAccessKey,
		Bucket:                    s.Storage.Bucket,
		ForcePathStyle:            s.Storage.ForcePathStyle,
		PayloadSignatureMode:      s.Storage.PayloadSignatureMode,
		AlwaysCalculateContentMd5: s.Storage.AlwaysCalculateContentMd5,
	}
}

func workingRootDir() (string, error) {
	dir := os.Getenv("GITVAULT_WORKING_ROOT")
	if dir == "" {
		dir = "/var/lib/gitvault/repos"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "creating working root %s", dir)
	}
	return dir, nil
}

func logStartupSummary(log interface {
	Infow(string, ...any)
}, s config.Settings) {
	modes := map[string]int{}
	for _, job := range s.Repositories {
		if job.IsEnabled() {
			modes[string(job.Mode)]++
		}
	}
	days, retentionEnabled := s.RetentionDays()
	log.Infow("configuration summary",
		"repositoriesByMode", modes,
		"cron", s.Schedule.Repositories.Cron,
		"retentionEnabled", retentionEnabled,
		"retentionDays", days,
		"retentionMinimum", s.RetentionMinimum(),
	)
}

// liveSettings publishes the most recently validated settings snapshot for
// the Scheduler to read at the start of each loop state (spec §5: "the
// live settings snapshot is read-mostly; each loop iteration captures it
// fresh").
type liveSettings struct {
	mu stdsync.RWMutex
	s  config.Settings
}

func newLiveSettings(initial config.Settings) *liveSettings {
	return &liveSettings{s: initial}
}

func (l *liveSettings) get() config.Settings {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.s
}

func (l *liveSettings) set(s config.Settings) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.s = s
}
