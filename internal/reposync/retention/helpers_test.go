package retention

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/gitvault/gitvault/internal/objstore"
	"github.com/gitvault/gitvault/internal/reposync/index"
	"github.com/stretchr/testify/require"
)

func jsonMarshal(v any) (string, error) {
	b, err := json.Marshal(v)
	return string(b), err
}

func seedRegistry(t *testing.T, store *objstore.Memory, keys []string) {
	t.Helper()
	doc := index.RepositoryRegistry{IndexKeys: keys}
	b, err := jsonMarshal(doc)
	require.NoError(t, err)
	store.Seed("indexes/repositories/registry.json", b)
}

func loadIndex(t *testing.T, store *objstore.Memory, key string) index.RepositoryIndex {
	t.Helper()
	content, ok, err := store.GetTextIfExists(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok)
	var doc index.RepositoryIndex
	require.NoError(t, json.Unmarshal([]byte(content), &doc))
	return doc
}
