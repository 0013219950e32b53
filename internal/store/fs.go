package store

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FS is a filesystem-backed Store rooted at a single directory. Keys map to
// relative slash-separated paths. It is the default backend for local runs
// and mirrors the bucket layout one-to-one.
type FS struct {
	root   string
	logger *slog.Logger
}

// NewFS creates a filesystem store rooted at dir, creating it if needed.
func NewFS(dir string, logger *slog.Logger) (*FS, error) {
	if dir == "" {
		return nil, fmt.Errorf("store: root directory is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create root %s: %w", dir, err)
	}
	return &FS{root: dir, logger: logger}, nil
}

func (s *FS) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func (s *FS) List(ctx context.Context, prefix string, fn func(key string) error) error {
	dir := s.path(strings.TrimSuffix(prefix, "/"))
	var keys []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: list %s: %w", prefix, err)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(key); err != nil {
			return err
		}
	}
	return nil
}

func (s *FS) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("store: get %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", key, err)
	}
	return data, nil
}

func (s *FS) Put(ctx context.Context, key string, data []byte) error {
	p := s.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("store: put %s: %w", key, err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("store: put %s: %w", key, err)
	}
	return nil
}

// Move relocates src under dstPrefix via rename, which doubles as the
// mutual-exclusion point for concurrent claimers: exactly one rename of a
// given source succeeds, the losers observe ErrNotFound. If rename is
// unavailable (e.g. the destination crosses a filesystem boundary) it falls
// back to copy-then-delete; a failed delete after a successful copy leaves
// a duplicate behind, which is logged and treated as success since the
// lifecycle manager tolerates duplicates.
func (s *FS) Move(ctx context.Context, srcKey, dstPrefix string) (string, error) {
	dstKey := Rekey(srcKey, dstPrefix)
	dstPath := s.path(dstKey)
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return "", fmt.Errorf("store: move %s: %w", srcKey, err)
	}
	err := os.Rename(s.path(srcKey), dstPath)
	if err == nil {
		return dstKey, nil
	}
	if os.IsNotExist(err) {
		return "", fmt.Errorf("store: move %s: %w", srcKey, ErrNotFound)
	}

	data, gerr := s.Get(ctx, srcKey)
	if gerr != nil {
		return "", gerr
	}
	if perr := s.Put(ctx, dstKey, data); perr != nil {
		return "", fmt.Errorf("store: move %s -> %s: %w", srcKey, dstKey, perr)
	}
	if rerr := os.Remove(s.path(srcKey)); rerr != nil && !os.IsNotExist(rerr) {
		s.logger.Warn("duplicate object left behind after move",
			"src", srcKey, "dst", dstKey, "error", rerr)
	}
	return dstKey, nil
}
