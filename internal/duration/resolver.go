/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package duration computes the playable length of a schedule's
// playlist chain from catalog-reported sequence lengths.
package duration

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_player/internal/models"
)

// Catalog supplies sequence lengths and playlist contents. The reported
// ok flag distinguishes a dangling reference from a lookup failure.
type Catalog interface {
	SequenceLength(ctx context.Context, sequenceID string) (lengthMs int64, ok bool, err error)
	PlaylistItems(ctx context.Context, playlistID string) ([]string, error)
}

// Result is one resolved duration. Missing lists dangling sequence ids
// in order of first sighting; their contribution is zero and resolution
// carries on rather than aborting scheduling.
type Result struct {
	TotalMs int64
	Missing []string
}

// Diagnostics converts the missing-sequence list to wire diagnostics.
func (r Result) Diagnostics() []models.Diagnostic {
	if len(r.Missing) == 0 {
		return nil
	}
	diags := make([]models.Diagnostic, 0, len(r.Missing))
	for _, id := range r.Missing {
		diags = append(diags, models.Diagnostic{
			Code:    models.DiagMissingSequence,
			Ref:     id,
			Message: fmt.Sprintf("sequence %s not in catalog, counted as zero length", id),
		})
	}
	return diags
}

// Resolver sums playlist durations against a catalog.
type Resolver struct {
	catalog Catalog
	logger  zerolog.Logger
}

// NewResolver creates a duration resolver.
func NewResolver(catalog Catalog, logger zerolog.Logger) *Resolver {
	return &Resolver{
		catalog: catalog,
		logger:  logger.With().Str("component", "duration_resolver").Logger(),
	}
}

// Resolve computes the one-pass playable length of a playlist plus
// optional intro/outro playlists, in item order. Loop never changes the
// resolved duration: it extends playback at runtime, not the plan.
func (r *Resolver) Resolve(ctx context.Context, playlistID string, pre, post *string) (Result, error) {
	var res Result
	seen := make(map[string]bool)

	if pre != nil {
		if err := r.sum(ctx, *pre, &res, seen); err != nil {
			return Result{}, fmt.Errorf("pre playlist %s: %w", *pre, err)
		}
	}
	if err := r.sum(ctx, playlistID, &res, seen); err != nil {
		return Result{}, fmt.Errorf("playlist %s: %w", playlistID, err)
	}
	if post != nil {
		if err := r.sum(ctx, *post, &res, seen); err != nil {
			return Result{}, fmt.Errorf("post playlist %s: %w", *post, err)
		}
	}
	return res, nil
}

// ItemLengths returns each item's length in playlist order, zero for
// dangling references. End-policy boundary computation consumes this.
func (r *Resolver) ItemLengths(ctx context.Context, playlistID string) ([]int64, error) {
	items, err := r.catalog.PlaylistItems(ctx, playlistID)
	if err != nil {
		return nil, fmt.Errorf("playlist %s: %w", playlistID, err)
	}
	lengths := make([]int64, 0, len(items))
	for _, seqID := range items {
		ms, ok, err := r.catalog.SequenceLength(ctx, seqID)
		if err != nil {
			return nil, fmt.Errorf("sequence %s: %w", seqID, err)
		}
		if !ok {
			ms = 0
		}
		lengths = append(lengths, ms)
	}
	return lengths, nil
}

func (r *Resolver) sum(ctx context.Context, playlistID string, res *Result, seen map[string]bool) error {
	items, err := r.catalog.PlaylistItems(ctx, playlistID)
	if err != nil {
		return err
	}
	for _, seqID := range items {
		ms, ok, err := r.catalog.SequenceLength(ctx, seqID)
		if err != nil {
			return fmt.Errorf("sequence %s: %w", seqID, err)
		}
		if !ok {
			if !seen[seqID] {
				seen[seqID] = true
				res.Missing = append(res.Missing, seqID)
			}
			r.logger.Warn().
				Str("playlist_id", playlistID).
				Str("sequence_id", seqID).
				Msg("sequence missing from catalog, counting zero length")
			continue
		}
		res.TotalMs += ms
	}
	return nil
}
