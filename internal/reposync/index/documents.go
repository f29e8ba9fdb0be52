// Package index models the registry and per-repository index documents and
// reads/writes them through the object-storage interface, tolerating
// malformed content (spec §3, §4.2).
package index

import (
	"encoding/json"
	"sort"

	"github.com/gitvault/gitvault/internal/reposync/keys"
)

// Snapshot is one entry in a RepositoryIndex's ordered snapshot list.
type Snapshot struct {
	RootPrefix           string `json:"rootPrefix"`
	TimestampUnixSeconds  int64  `json:"timestampUnixSeconds"`
}

func (s Snapshot) valid() bool {
	return s.RootPrefix != "" && s.TimestampUnixSeconds > 0
}

// RepositoryIndex is the per-repository document: its job mode, stable
// identity, and the ordered (descending-timestamp) list of snapshots.
type RepositoryIndex struct {
	Mode               keys.JobMode `json:"mode"`
	RepositoryIdentity string       `json:"repositoryIdentity"`
	Snapshots          []Snapshot   `json:"snapshots"`
}

// filterValid drops snapshots with an empty rootPrefix or non-positive
// timestamp. Called on every read per spec §3.
func filterValid(snaps []Snapshot) []Snapshot {
	out := make([]Snapshot, 0, len(snaps))
	for _, s := range snaps {
		if s.valid() {
			out = append(out, s)
		}
	}
	return out
}

// sortDescending sorts snapshots by TimestampUnixSeconds, newest first.
func sortDescending(snaps []Snapshot) {
	sort.SliceStable(snaps, func(i, j int) bool {
		return snaps[i].TimestampUnixSeconds > snaps[j].TimestampUnixSeconds
	})
}

// Normalize filters invalid entries, deduplicates by RootPrefix (keeping the
// entry with the largest timestamp for each), and sorts the result
// descending by timestamp. Used by the Retention Engine (spec §4.4 step 4c)
// and safe to call anywhere a canonical view of the snapshot list is needed.
func Normalize(snaps []Snapshot) []Snapshot {
	valid := filterValid(snaps)
	byPrefix := make(map[string]Snapshot, len(valid))
	for _, s := range valid {
		if existing, ok := byPrefix[s.RootPrefix]; !ok || s.TimestampUnixSeconds > existing.TimestampUnixSeconds {
			byPrefix[s.RootPrefix] = s
		}
	}
	out := make([]Snapshot, 0, len(byPrefix))
	for _, s := range byPrefix {
		out = append(out, s)
	}
	sortDescending(out)
	return out
}

// WithSnapshotAppended returns a copy of the index with newSnap appended: any
// prior entry sharing newSnap's RootPrefix is removed, invalid entries are
// filtered, and the result is kept in descending-timestamp order (spec §4.3
// step 7).
func (idx RepositoryIndex) WithSnapshotAppended(newSnap Snapshot) RepositoryIndex {
	filtered := filterValid(idx.Snapshots)
	kept := filtered[:0:0]
	for _, s := range filtered {
		if s.RootPrefix != newSnap.RootPrefix {
			kept = append(kept, s)
		}
	}
	kept = append(kept, newSnap)
	sortDescending(kept)
	idx.Snapshots = kept
	return idx
}

// RepositoryRegistry is the bucket-wide document enumerating every known
// per-repository index key.
type RepositoryRegistry struct {
	IndexKeys []string `json:"indexKeys"`
}

// WithKey returns a copy of the registry with key added, and whether the set
// actually changed (the registry should only be rewritten when dirty).
func (r RepositoryRegistry) WithKey(key string) (RepositoryRegistry, bool) {
	for _, k := range r.IndexKeys {
		if k == key {
			return r, false
		}
	}
	r.IndexKeys = append(append([]string{}, r.IndexKeys...), key)
	return r, true
}

// WithoutKey returns a copy of the registry with key removed, and whether
// the set actually changed.
func (r RepositoryRegistry) WithoutKey(key string) (RepositoryRegistry, bool) {
	out := make([]string, 0, len(r.IndexKeys))
	changed := false
	for _, k := range r.IndexKeys {
		if k == key {
			changed = true
			continue
		}
		out = append(out, k)
	}
	r.IndexKeys = out
	return r, changed
}

// Normalized returns a copy of the registry with index keys sorted,
// deduplicated, and free of leading/trailing slashes (spec §4.3, written
// "sorted, unique, leading/trailing '/' stripped").
func (r RepositoryRegistry) Normalized() RepositoryRegistry {
	seen := make(map[string]struct{}, len(r.IndexKeys))
	out := make([]string, 0, len(r.IndexKeys))
	for _, k := range r.IndexKeys {
		k = keys.EnsurePrefix(k)
		k = trimSlashes(k)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	r.IndexKeys = out
	return r
}

func trimSlashes(s string) string {
	for len(s) > 0 && s[0] == '/' {
		s = s[1:]
	}
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

// parseIndex tolerantly decodes a RepositoryIndex: invalid JSON yields a
// fresh empty document (caller logs the warning); a null/missing snapshot
// list is treated as empty; invalid snapshot entries are dropped.
func parseIndex(content string) (RepositoryIndex, bool) {
	var doc RepositoryIndex
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return RepositoryIndex{}, false
	}
	doc.Snapshots = filterValid(doc.Snapshots)
	return doc, true
}

// parseRegistry tolerantly decodes a RepositoryRegistry: invalid JSON yields
// an empty document.
func parseRegistry(content string) (RepositoryRegistry, bool) {
	var doc RepositoryRegistry
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return RepositoryRegistry{}, false
	}
	return doc, true
}

// serialize renders v as compact camelCase JSON, matching the object format
// written to storage.
func serialize(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
