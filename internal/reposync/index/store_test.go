package index

import (
	"context"
	"testing"

	"github.com/gitvault/gitvault/internal/objstore"
	"github.com/gitvault/gitvault/internal/reposync/keys"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadRegistryAbsentYieldsEmptyDocument(t *testing.T) {
	s := New(objstore.NewMemory(), zap.NewNop().Sugar())
	loaded, err := s.LoadRegistry(context.Background())
	require.NoError(t, err)
	require.Empty(t, loaded.Doc.IndexKeys)
}

func TestLoadRegistryMalformedYieldsEmptyDocumentAndWarns(t *testing.T) {
	backend := objstore.NewMemory()
	backend.Seed(keys.RegistryKey(), "{not json")
	s := New(backend, zap.NewNop().Sugar())
	loaded, err := s.LoadRegistry(context.Background())
	require.NoError(t, err)
	require.Empty(t, loaded.Doc.IndexKeys)
}

func TestSaveRegistryIsConditional(t *testing.T) {
	backend := objstore.NewMemory()
	s := New(backend, zap.NewNop().Sugar())
	loaded, err := s.LoadRegistry(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.SaveRegistry(context.Background(), loaded))
	require.Equal(t, 0, backend.PutCount(), "no-op write must not PUT (property P5)")

	loaded.Doc.IndexKeys = []string{"a"}
	require.NoError(t, s.SaveRegistry(context.Background(), loaded))
	require.Equal(t, 1, backend.PutCount())

	require.NoError(t, s.SaveRegistry(context.Background(), loaded))
	require.Equal(t, 1, backend.PutCount(), "re-saving identical content must not PUT again")
}

func TestLoadIndexDistinguishesMissingFromCorrupt(t *testing.T) {
	backend := objstore.NewMemory()
	s := New(backend, zap.NewNop().Sugar())

	missing, err := s.LoadIndex(context.Background(), "indexes/repositories/ghost/index.json")
	require.NoError(t, err)
	require.True(t, missing.Missing)
	require.False(t, missing.Corrupt)

	backend.Seed("indexes/repositories/bad/index.json", "{not json")
	corrupt, err := s.LoadIndex(context.Background(), "indexes/repositories/bad/index.json")
	require.NoError(t, err)
	require.False(t, corrupt.Missing)
	require.True(t, corrupt.Corrupt)
}

func TestSaveIndexIsConditional(t *testing.T) {
	backend := objstore.NewMemory()
	s := New(backend, zap.NewNop().Sugar())
	key := "indexes/repositories/r1/index.json"

	loaded, err := s.LoadIndex(context.Background(), key)
	require.NoError(t, err)
	loaded.Doc = loaded.Doc.WithSnapshotAppended(Snapshot{RootPrefix: "a", TimestampUnixSeconds: 1})

	require.NoError(t, s.SaveIndex(context.Background(), key, loaded))
	require.Equal(t, 1, backend.PutCount())

	require.NoError(t, s.SaveIndex(context.Background(), key, loaded))
	require.Equal(t, 1, backend.PutCount(), "re-saving identical content must not PUT again")
}
