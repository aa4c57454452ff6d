/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// FilesystemStore implements ObjectStore on the local filesystem.
type FilesystemStore struct {
	rootDir string
	logger  zerolog.Logger
}

// NewFilesystemStore creates a filesystem-backed archive store.
func NewFilesystemStore(rootDir string, logger zerolog.Logger) *FilesystemStore {
	return &FilesystemStore{
		rootDir: rootDir,
		logger:  logger.With().Str("component", "fs_store").Logger(),
	}
}

// Put writes an object under the root directory. The content type is
// ignored; the key's extension carries it.
func (f *FilesystemStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	fullPath := filepath.Join(f.rootDir, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}

	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	f.logger.Debug().Str("path", fullPath).Int("bytes", len(data)).Msg("object stored")
	return nil
}

// Get reads an object.
func (f *FilesystemStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(f.rootDir, filepath.FromSlash(key)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

// List returns the keys under a prefix, sorted.
func (f *FilesystemStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	err := filepath.WalkDir(f.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(f.rootDir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk export dir: %w", err)
	}

	sort.Strings(keys)
	return keys, nil
}

// Delete removes an object. Missing objects are not an error.
func (f *FilesystemStore) Delete(ctx context.Context, key string) error {
	err := os.Remove(filepath.Join(f.rootDir, filepath.FromSlash(key)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

// URL returns the local path for a key.
func (f *FilesystemStore) URL(key string) string {
	return filepath.Join(f.rootDir, filepath.FromSlash(key))
}

// CheckAccess verifies the root directory exists or can be created.
func (f *FilesystemStore) CheckAccess(ctx context.Context) error {
	if err := os.MkdirAll(f.rootDir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	info, err := os.Stat(f.rootDir)
	if err != nil {
		return fmt.Errorf("access export dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("export path is not a directory: %s", f.rootDir)
	}
	return nil
}
