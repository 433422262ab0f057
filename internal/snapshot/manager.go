// Package snapshot backs up the local SQLite database to R2 and restores it.
// Snapshots are immutable objects named <prefix>/<unix>-<uuid>.db.zst; the
// newest name wins on restore.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	domerrors "github.com/openct/openct-cms/internal/errors"
	"github.com/openct/openct-cms/internal/logger"
	"github.com/openct/openct-cms/internal/r2client"
	"github.com/openct/openct-cms/internal/storage"
)

const keySuffix = ".db.zst"

// ObjectStore is the object storage a Manager writes to. *r2client.Client
// implements it.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Download(ctx context.Context, key string) (io.ReadCloser, string, error)
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	DeleteObject(ctx context.Context, key string) error
}

// Source produces a consistent copy of a database at a path.
type Source interface {
	BackupTo(ctx context.Context, dest string) error
}

// Config holds snapshot manager configuration.
type Config struct {
	Prefix  string // Key prefix, e.g. "snapshots"
	TempDir string // Directory for temporary files
}

// Manager handles SQLite snapshot backup and restore.
type Manager struct {
	store  ObjectStore
	config Config
	logger *logger.Logger
	now    func() time.Time
}

// Result describes an uploaded snapshot.
type Result struct {
	Key  string `json:"key"`
	ETag string `json:"etag"`
	Size int64  `json:"size"`
}

// New creates a new snapshot manager.
func New(store ObjectStore, cfg Config, log *logger.Logger) *Manager {
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")
	if log == nil {
		log = logger.Discard()
	}
	return &Manager{
		store:  store,
		config: cfg,
		logger: log.WithModule("snapshot"),
		now:    time.Now,
	}
}

// Backup writes a consistent copy of src, compresses it and uploads it
// under a fresh key.
func (m *Manager) Backup(ctx context.Context, src Source) (Result, error) {
	id := uuid.NewString()
	snapshotPath := filepath.Join(m.config.TempDir, "openct-snapshot-"+id+".db")
	if err := src.BackupTo(ctx, snapshotPath); err != nil {
		return Result{}, fmt.Errorf("create snapshot: %w", err)
	}
	defer os.Remove(snapshotPath)

	compressedPath := snapshotPath + ".zst"
	if err := r2client.CompressFile(snapshotPath, compressedPath); err != nil {
		return Result{}, fmt.Errorf("compress database: %w", err)
	}
	defer os.Remove(compressedPath)

	compressedFile, err := os.Open(compressedPath)
	if err != nil {
		return Result{}, fmt.Errorf("open compressed file: %w", err)
	}
	defer compressedFile.Close()

	info, err := compressedFile.Stat()
	if err != nil {
		return Result{}, fmt.Errorf("stat compressed file: %w", err)
	}

	key := m.key(m.now(), id)
	etag, err := m.store.Upload(ctx, key, compressedFile, r2client.ContentType)
	if err != nil {
		return Result{}, fmt.Errorf("upload snapshot: %w", err)
	}

	m.logger.InfoContext(ctx, "Snapshot uploaded",
		"key", key,
		"size", info.Size())
	return Result{Key: key, ETag: etag, Size: info.Size()}, nil
}

// List returns snapshot keys, oldest first.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	keys, err := m.store.ListKeys(ctx, m.config.Prefix+"/")
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	snapshots := keys[:0]
	for _, k := range keys {
		if _, ok := keyTime(k); ok {
			snapshots = append(snapshots, k)
		}
	}
	sort.SliceStable(snapshots, func(i, j int) bool {
		ti, _ := keyTime(snapshots[i])
		tj, _ := keyTime(snapshots[j])
		if ti != tj {
			return ti < tj
		}
		return snapshots[i] < snapshots[j]
	})
	return snapshots, nil
}

// Latest returns the newest snapshot key or ErrNotFound.
func (m *Manager) Latest(ctx context.Context) (string, error) {
	keys, err := m.List(ctx)
	if err != nil {
		return "", err
	}
	if len(keys) == 0 {
		return "", ErrNotFound
	}
	return keys[len(keys)-1], nil
}

// Restore downloads the newest snapshot and atomically replaces dbPath with
// it. The database at dbPath must not be open. Returns the restored key.
func (m *Manager) Restore(ctx context.Context, dbPath string) (string, error) {
	key, err := m.Latest(ctx)
	if err != nil {
		return "", err
	}

	body, _, err := m.store.Download(ctx, key)
	if err != nil {
		if errors.Is(err, r2client.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("download snapshot: %w", err)
	}
	defer body.Close()

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return "", fmt.Errorf("create database directory: %w", err)
	}

	// Decompress next to the target so the final rename stays on one filesystem
	tmpPath := fmt.Sprintf("%s.restore-%d", dbPath, m.now().UnixNano())
	if err := r2client.DecompressStream(body, tmpPath); err != nil {
		return "", fmt.Errorf("decompress snapshot: %w", err)
	}
	defer removeDatabase(tmpPath)

	if err := validate(ctx, tmpPath); err != nil {
		return "", fmt.Errorf("snapshot %s is not a usable database: %w", key, err)
	}

	removeDatabase(dbPath)
	if err := os.Rename(tmpPath, dbPath); err != nil {
		return "", fmt.Errorf("replace database: %w", err)
	}

	m.logger.InfoContext(ctx, "Snapshot restored", "key", key, "path", dbPath)
	return key, nil
}

// Prune deletes all but the newest keep snapshots and returns the deleted keys.
func (m *Manager) Prune(ctx context.Context, keep int) ([]string, error) {
	if keep < 1 {
		return nil, fmt.Errorf("keep must be at least 1, got %d", keep)
	}

	keys, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(keys) <= keep {
		return nil, nil
	}

	stale := keys[:len(keys)-keep]
	deleted := make([]string, 0, len(stale))
	for _, k := range stale {
		if err := m.store.DeleteObject(ctx, k); err != nil {
			return deleted, fmt.Errorf("prune snapshot: %w", err)
		}
		deleted = append(deleted, k)
	}
	return deleted, nil
}

func (m *Manager) key(t time.Time, id string) string {
	name := fmt.Sprintf("%d-%s%s", t.Unix(), id, keySuffix)
	if m.config.Prefix == "" {
		return name
	}
	return m.config.Prefix + "/" + name
}

// keyTime extracts the unix timestamp from a snapshot key.
func keyTime(key string) (int64, bool) {
	name := key[strings.LastIndex(key, "/")+1:]
	if !strings.HasSuffix(name, keySuffix) {
		return 0, false
	}
	stamp, _, ok := strings.Cut(name, "-")
	if !ok {
		return 0, false
	}
	ts, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}

func validate(ctx context.Context, path string) error {
	db, err := storage.New(ctx, path)
	if err != nil {
		return err
	}
	return db.Close()
}

func removeDatabase(path string) {
	_ = os.Remove(path)
	_ = os.Remove(path + "-wal")
	_ = os.Remove(path + "-shm")
}

// ErrNotFound indicates no snapshot exists in R2.
var ErrNotFound = fmt.Errorf("snapshot: %w", domerrors.ErrNotFound)
