// Package retention implements the Retention Engine (spec §4.4): walks
// the registry, normalizes each per-repository index, deletes expired
// snapshots subject to a minimum-kept floor, and rewrites changed
// documents.
package retention

import (
	"context"
	"sort"
	"time"

	"github.com/gitvault/gitvault/internal/config"
	"github.com/gitvault/gitvault/internal/objstore"
	"github.com/gitvault/gitvault/internal/reposync/index"
	"go.uber.org/zap"
)

// Clock abstracts time.Now, matching sync.Clock so both components can be
// driven by the same deterministic test clock.
type Clock func() int64

// Engine runs one retention pass across a settings snapshot.
type Engine struct {
	Store  objstore.Store
	Now    Clock
	Log    *zap.SugaredLogger
	DryRun bool

	warnedZeroMinimum bool
}

// New returns a retention Engine.
func New(store objstore.Store, now Clock, log *zap.SugaredLogger) *Engine {
	return &Engine{Store: store, Now: now, Log: log}
}

// Result summarizes one pass, mainly for DryRun reporting (spec-full
// supplemented feature).
type Result struct {
	IndexesVisited   int
	SnapshotsDeleted int
	IndexesRewritten int
	RegistryRewritten bool
}

// Run executes one retention pass (spec §4.4).
func (e *Engine) Run(ctx context.Context, settings config.Settings) (Result, error) {
	var result Result

	days, enabled := settings.RetentionDays()
	if !enabled {
		e.Log.Infow("retention disabled")
		return result, nil
	}
	minimum := settings.RetentionMinimum()
	if minimum == 0 && !e.warnedZeroMinimum {
		e.Log.Warnw("retentionMinimum is 0: repositories removed from configuration can have all snapshots purged")
	}
	e.warnedZeroMinimum = minimum == 0
	cutoff := e.now() - int64(days)*86400

	idx := index.New(e.Store, e.Log)
	registry, err := idx.LoadRegistry(ctx)
	if err != nil {
		return result, err
	}

	registryDirty := false
	for _, indexKey := range append([]string{}, registry.Doc.IndexKeys...) {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.IndexesVisited++

		loaded, err := idx.LoadIndex(ctx, indexKey)
		if err != nil {
			return result, err
		}
		if loaded.Missing {
			var changed bool
			registry.Doc, changed = registry.Doc.WithoutKey(indexKey)
			registryDirty = registryDirty || changed
			continue
		}
		if loaded.Corrupt {
			e.Log.Warnw("index document is corrupt; preserving for operator triage", "key", indexKey)
			continue
		}

		normalized := index.Normalize(loaded.Doc.Snapshots)
		if len(normalized) == 0 {
			var changed bool
			registry.Doc, changed = registry.Doc.WithoutKey(indexKey)
			registryDirty = registryDirty || changed
			continue
		}

		protectedCount := minimum
		if protectedCount > len(normalized) {
			protectedCount = len(normalized)
		}

		var expired []index.Snapshot
		retained := append([]index.Snapshot{}, normalized[:protectedCount]...)
		for _, snap := range normalized[protectedCount:] {
			if snap.TimestampUnixSeconds < cutoff {
				expired = append(expired, snap)
			} else {
				retained = append(retained, snap)
			}
		}
		sortDescending(retained)

		if len(expired) > 0 && !e.DryRun {
			keys := make([]string, len(expired))
			for i, s := range expired {
				keys[i] = s.RootPrefix
			}
			if err := e.Store.DeleteObjects(ctx, keys); err != nil {
				return result, err
			}
		}
		result.SnapshotsDeleted += len(expired)

		if !sameSnapshots(loaded.Doc.Snapshots, retained) {
			if !e.DryRun {
				loaded.Doc.Snapshots = retained
				if err := idx.SaveIndex(ctx, indexKey, loaded); err != nil {
					return result, err
				}
			}
			result.IndexesRewritten++
		}
	}

	if registryDirty {
		result.RegistryRewritten = true
		if !e.DryRun {
			registry.Doc = registry.Doc.Normalized()
			if err := idx.SaveRegistry(ctx, registry); err != nil {
				return result, err
			}
		}
	}

	return result, nil
}

func (e *Engine) now() int64 {
	if e.Now != nil {
		return e.Now()
	}
	return wallClockNow()
}

func wallClockNow() int64 {
	return time.Now().Unix()
}

func sortDescending(snaps []index.Snapshot) {
	sort.SliceStable(snaps, func(i, j int) bool {
		return snaps[i].TimestampUnixSeconds > snaps[j].TimestampUnixSeconds
	})
}

// sameSnapshots reports position-wise equality of RootPrefix and
// TimestampUnixSeconds between the document's pre-read snapshots and the
// retained list, per spec §4.4 step 4i.
func sameSnapshots(before, after []index.Snapshot) bool {
	if len(before) != len(after) {
		return false
	}
	for i := range before {
		if before[i].RootPrefix != after[i].RootPrefix || before[i].TimestampUnixSeconds != after[i].TimestampUnixSeconds {
			return false
		}
	}
	return true
}
