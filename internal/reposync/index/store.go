package index

import (
	"context"

	"github.com/gitvault/gitvault/internal/objstore"
	"github.com/gitvault/gitvault/internal/reposync/keys"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Store reads and writes registry and per-repository index documents through
// an object-storage backend, issuing a PUT only when the serialized content
// actually changed from what was last read (spec §4.2, property P5).
type Store struct {
	backend objstore.Store
	log     *zap.SugaredLogger
}

// New returns an index Store backed by the given object storage.
func New(backend objstore.Store, log *zap.SugaredLogger) *Store {
	return &Store{backend: backend, log: log}
}

// LoadedRegistry pairs a registry document with the raw content it was
// parsed from, so a later SaveRegistry can detect a no-op write.
type LoadedRegistry struct {
	Doc     RepositoryRegistry
	rawSeen string
}

// LoadedIndex pairs an index document with the raw content it was parsed
// from. Missing distinguishes "no such object" from a present-but-corrupt
// document (Corrupt): callers that must preserve corrupt documents for
// operator triage (the Retention Engine) branch on Corrupt; callers that
// rebuild from scratch (the Sync Pipeline) can treat Corrupt the same as
// Missing.
type LoadedIndex struct {
	Doc     RepositoryIndex
	Missing bool
	Corrupt bool
	rawSeen string
}

// LoadRegistry reads the registry document, tolerating absence (empty
// document) and malformed JSON (empty document, logged warning).
func (s *Store) LoadRegistry(ctx context.Context) (*LoadedRegistry, error) {
	content, ok, err := s.backend.GetTextIfExists(ctx, keys.RegistryKey())
	if err != nil {
		return nil, errors.Wrap(err, "loading registry")
	}
	if !ok {
		return &LoadedRegistry{}, nil
	}
	doc, valid := parseRegistry(content)
	if !valid {
		s.log.Warnw("registry document is not valid JSON; rebuilding from empty", "key", keys.RegistryKey())
		return &LoadedRegistry{}, nil
	}
	return &LoadedRegistry{Doc: doc, rawSeen: content}, nil
}

// SaveRegistry writes the registry if its serialized form differs from what
// was originally read.
func (s *Store) SaveRegistry(ctx context.Context, loaded *LoadedRegistry) error {
	serialized, err := serialize(loaded.Doc)
	if err != nil {
		return errors.Wrap(err, "serializing registry")
	}
	if serialized == loaded.rawSeen {
		return nil
	}
	if err := s.backend.UploadText(ctx, keys.RegistryKey(), serialized); err != nil {
		return errors.Wrap(err, "writing registry")
	}
	loaded.rawSeen = serialized
	return nil
}

// LoadIndex reads a per-repository index document, tolerating absence
// (empty document, with Snapshots left nil) and malformed JSON (empty
// document, logged warning — the caller is expected to rebuild it, spec
// IndexCorrupt semantics during sync).
func (s *Store) LoadIndex(ctx context.Context, key string) (*LoadedIndex, error) {
	content, ok, err := s.backend.GetTextIfExists(ctx, key)
	if err != nil {
		return nil, errors.Wrap(err, "loading index")
	}
	if !ok {
		return &LoadedIndex{Missing: true}, nil
	}
	doc, valid := parseIndex(content)
	if !valid {
		s.log.Warnw("index document is not valid JSON", "key", key)
		return &LoadedIndex{Corrupt: true}, nil
	}
	return &LoadedIndex{Doc: doc, rawSeen: content}, nil
}

// SaveIndex writes the index if its serialized form differs from what was
// originally read.
func (s *Store) SaveIndex(ctx context.Context, key string, loaded *LoadedIndex) error {
	serialized, err := serialize(loaded.Doc)
	if err != nil {
		return errors.Wrap(err, "serializing index")
	}
	if serialized == loaded.rawSeen {
		return nil
	}
	if err := s.backend.UploadText(ctx, key, serialized); err != nil {
		return errors.Wrap(err, "writing index")
	}
	loaded.rawSeen = serialized
	return nil
}
