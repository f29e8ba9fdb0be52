// Package objstore defines the object-storage contract the reposync engine
// consumes (spec §6) and provides an in-memory fake plus a concrete
// S3-compatible adapter.
package objstore

import "context"

// Store is the narrow object-storage surface available on the Sync and
// Retention hot paths. It deliberately omits any listing operation: per
// spec, discovery is driven entirely by the registry document, never by
// enumerating the bucket.
type Store interface {
	// GetTextIfExists returns the object's UTF-8 content, or ok=false if the
	// object does not exist.
	GetTextIfExists(ctx context.Context, key string) (content string, ok bool, err error)
	// UploadText uploads UTF-8 text, overwriting any existing object.
	UploadText(ctx context.Context, key, content string) error
	// UploadDirectoryAsTarGz archives localPath as a tar.gz stream and
	// uploads it to key. Implementations may suppress the upload when the
	// remote object already holds matching content (by content hash) but
	// must still report success in that case.
	UploadDirectoryAsTarGz(ctx context.Context, localPath, key string) error
	// DeleteObjects deletes the named objects. Implementations may batch up
	// to 1000 keys per underlying request; single-key deletions are always
	// acceptable.
	DeleteObjects(ctx context.Context, keys []string) error
}

// AdminStore extends Store with operations reserved for explicit
// administrative cleanup paths (never the Sync or Retention hot paths).
type AdminStore interface {
	Store
	// ListKeys enumerates every object key under prefix. Forbidden outside
	// administrative cleanup.
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	// DeletePrefix deletes every object under prefix. Forbidden outside
	// administrative cleanup.
	DeletePrefix(ctx context.Context, prefix string) error
}
