/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package storage persists export archives on S3-compatible object
// storage or the local filesystem.
package storage

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_player/internal/config"
)

// ErrObjectNotFound indicates the requested object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore abstracts archive storage operations.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
	CheckAccess(ctx context.Context) error
}

// NewObjectStore creates an archive store from config: S3 when a bucket
// is configured, local filesystem otherwise.
func NewObjectStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (ObjectStore, error) {
	if cfg.S3Bucket != "" {
		s3cfg := S3Config{
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			Endpoint:        cfg.S3Endpoint,
			PublicBaseURL:   cfg.S3PublicBaseURL,
			UsePathStyle:    cfg.S3UsePathStyle,
		}

		if s3cfg.AccessKeyID == "" || s3cfg.SecretAccessKey == "" {
			logger.Warn().Msg("S3 credentials not configured, falling back to the default credential chain")
		}

		return NewS3Store(ctx, s3cfg, logger)
	}

	return NewFilesystemStore(cfg.ExportDir, logger), nil
}
