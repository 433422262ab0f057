package snapshot

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openct/openct-cms/internal/cms"
	"github.com/openct/openct-cms/internal/r2client"
	"github.com/openct/openct-cms/internal/storage"
)

// memStore is an in-memory ObjectStore.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (s *memStore) Upload(_ context.Context, key string, body io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	s.types[key] = contentType
	return "etag-" + key, nil
}

func (s *memStore) Download(_ context.Context, key string) (io.ReadCloser, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, "", r2client.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), "etag-" + key, nil
}

func (s *memStore) ListKeys(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *memStore) DeleteObject(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func openDB(t *testing.T, path string) *storage.DB {
	t.Helper()
	db, err := storage.New(context.Background(), path)
	require.NoError(t, err)
	return db
}

func TestBackupAndRestore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	store := newMemStore()
	m := New(store, Config{Prefix: "/snapshots/", TempDir: dir}, nil)

	// Source database with one stored schedule
	src := openDB(t, filepath.Join(dir, "src", "openct.db"))
	classes := []cms.ClassInfo{{Raw: "高等数学", Name: "高等数学"}}
	require.NoError(t, src.ReplaceClasses(ctx, "zfsoft", classes))

	res, err := m.Backup(ctx, src)
	require.NoError(t, err)
	require.NoError(t, src.Close())

	assert.True(t, strings.HasPrefix(res.Key, "snapshots/"), res.Key)
	assert.True(t, strings.HasSuffix(res.Key, ".db.zst"), res.Key)
	assert.Positive(t, res.Size)
	assert.Equal(t, r2client.ContentType, store.types[res.Key])

	// Only the uploaded object remains; temp files are cleaned up
	leftovers, err := filepath.Glob(filepath.Join(dir, "openct-snapshot-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)

	// Restore over an existing, different database
	dst := filepath.Join(dir, "dst", "openct.db")
	other := openDB(t, dst)
	require.NoError(t, other.ReplaceClasses(ctx, "zfsoft", []cms.ClassInfo{{Name: "stale"}}))
	require.NoError(t, other.Close())

	key, err := m.Restore(ctx, dst)
	require.NoError(t, err)
	assert.Equal(t, res.Key, key)

	restored := openDB(t, dst)
	defer func() { _ = restored.Close() }()
	got, err := restored.GetClasses(ctx, "zfsoft")
	require.NoError(t, err)
	assert.Equal(t, classes, got)
}

func TestRestore_NoSnapshot(t *testing.T) {
	t.Parallel()
	m := New(newMemStore(), Config{Prefix: "snapshots", TempDir: t.TempDir()}, nil)

	_, err := m.Restore(context.Background(), filepath.Join(t.TempDir(), "openct.db"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRestore_CorruptSnapshotKeepsDatabase(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	store := newMemStore()
	_, err := store.Upload(ctx, "snapshots/100-x.db.zst", strings.NewReader("not zstd"), "")
	require.NoError(t, err)

	dst := filepath.Join(dir, "openct.db")
	require.NoError(t, os.WriteFile(dst, []byte("original"), 0o600))

	_, err = New(store, Config{Prefix: "snapshots", TempDir: dir}, nil).Restore(ctx, dst)
	require.Error(t, err)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
}

func TestLatestAndPrune(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newMemStore()
	for _, k := range []string{
		"snapshots/999-a.db.zst",
		"snapshots/1000-b.db.zst", // numerically newer, lexically older
		"snapshots/1700000000-c.db.zst",
		"snapshots/readme.txt",
		"snapshots/notatime-d.db.zst",
	} {
		_, err := store.Upload(ctx, k, strings.NewReader("x"), "")
		require.NoError(t, err)
	}
	m := New(store, Config{Prefix: "snapshots"}, nil)

	keys, err := m.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"snapshots/999-a.db.zst",
		"snapshots/1000-b.db.zst",
		"snapshots/1700000000-c.db.zst",
	}, keys)

	latest, err := m.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "snapshots/1700000000-c.db.zst", latest)

	deleted, err := m.Prune(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"snapshots/999-a.db.zst", "snapshots/1000-b.db.zst"}, deleted)

	deleted, err = m.Prune(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, deleted)

	_, err = m.Prune(ctx, 0)
	assert.Error(t, err)
}

func TestKeyFormat(t *testing.T) {
	t.Parallel()
	m := New(newMemStore(), Config{Prefix: "backups"}, nil)
	key := m.key(time.Unix(1700000000, 0), "id")
	assert.Equal(t, "backups/1700000000-id.db.zst", key)

	ts, ok := keyTime(key)
	assert.True(t, ok)
	assert.EqualValues(t, 1700000000, ts)

	_, ok = keyTime("backups/latest.db.zst")
	assert.False(t, ok)
}

type failingSource struct{}

func (failingSource) BackupTo(context.Context, string) error { return errors.New("disk full") }

func TestBackup_SourceFailure(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	_, err := New(store, Config{Prefix: "snapshots", TempDir: t.TempDir()}, nil).Backup(context.Background(), failingSource{})
	assert.ErrorContains(t, err, "disk full")
	assert.Empty(t, store.objects)
}
