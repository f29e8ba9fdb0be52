package objstore

import (
	"context"
	"encoding/hex"
	"sort"
	"strings"
	"sync"

	"github.com/gitvault/gitvault/internal/archive"
	"github.com/pkg/errors"
)

// Memory is an in-memory Store/AdminStore fake for tests, modeled on the
// teacher's hand-rolled test doubles (internal/gitx/gitxtest): no network,
// deterministic, inspectable.
type Memory struct {
	mu sync.Mutex

	text    map[string]string
	hash    map[string]string // key -> content hash of the archived directory
	puts    int
	deletes int

	// FailGet, when set, is returned by GetTextIfExists for the given key.
	FailGet map[string]error
	// FailUpload, when set, is returned by UploadText/UploadDirectoryAsTarGz
	// for the given key.
	FailUpload map[string]error
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{text: map[string]string{}, hash: map[string]string{}}
}

// PutCount returns the number of UploadText/UploadDirectoryAsTarGz calls that
// actually wrote (used by tests asserting property P5 no-op writes).
func (m *Memory) PutCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

// DeleteCount returns the number of keys deleted across all DeleteObjects
// calls.
func (m *Memory) DeleteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deletes
}

// Seed directly sets an object's content, bypassing PutCount tracking.
func (m *Memory) Seed(key, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text[key] = content
}

func (m *Memory) GetTextIfExists(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.FailGet[key]; ok {
		return "", false, err
	}
	v, ok := m.text[key]
	return v, ok, nil
}

func (m *Memory) UploadText(ctx context.Context, key, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.FailUpload[key]; ok {
		return err
	}
	m.text[key] = content
	m.puts++
	return nil
}

// UploadDirectoryAsTarGz archives localPath and uploads it, suppressing the
// write when the remote object already holds an archive of the same
// directory content (by hash) — see internal/archive for hashing.
func (m *Memory) UploadDirectoryAsTarGz(ctx context.Context, localPath, key string) error {
	m.mu.Lock()
	if err, ok := m.FailUpload[key]; ok {
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	data, sum, err := archive.TarGzDirectory(localPath)
	if err != nil {
		return errors.Wrap(err, "archiving directory")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.hash[key]; ok && existing == sum {
		return nil
	}
	m.text[key] = "<binary tar.gz: " + hex.EncodeToString([]byte(data[:min(8, len(data))])) + ">"
	m.hash[key] = sum
	m.puts++
	return nil
}

func (m *Memory) DeleteObjects(ctx context.Context, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		if _, ok := m.text[k]; ok {
			delete(m.text, k)
			delete(m.hash, k)
			m.deletes++
		}
	}
	return nil
}

func (m *Memory) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.text {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) DeletePrefix(ctx context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.text {
		if strings.HasPrefix(k, prefix) {
			delete(m.text, k)
			delete(m.hash, k)
			m.deletes++
		}
	}
	return nil
}

var _ Store = (*Memory)(nil)
var _ AdminStore = (*Memory)(nil)
