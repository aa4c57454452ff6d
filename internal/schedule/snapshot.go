/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_player/internal/duration"
	"github.com/friendsincode/grimnir_player/internal/endpolicy"
	"github.com/friendsincode/grimnir_player/internal/events"
	"github.com/friendsincode/grimnir_player/internal/models"
	"github.com/friendsincode/grimnir_player/internal/recurrence"
	"github.com/friendsincode/grimnir_player/internal/telemetry"
)

// snapshotLookback is how far behind now the expansion window starts. A
// window can extend at most 168 hours past its anchor day, so anything
// anchored earlier can no longer be active.
const snapshotLookback = 7 * 24 * time.Hour

// Snapshot is one immutable materialization of the definition set:
// every occurrence inside the expansion window, exclusions already
// filtered, durations annotated, sorted by start then id. Readers share
// it without locks; a rebuild swaps in a fresh one.
type Snapshot struct {
	Version     int64               `json:"version"`
	BuiltAt     time.Time           `json:"builtAt"`
	WindowStart time.Time           `json:"windowStart"`
	WindowEnd   time.Time           `json:"windowEnd"`
	Occurrences []models.Occurrence `json:"occurrences"`
	Diagnostics []models.Diagnostic `json:"diagnostics,omitempty"`
}

// ForTrack returns the snapshot's occurrences on one track.
func (s *Snapshot) ForTrack(track models.Track) []models.Occurrence {
	var out []models.Occurrence
	for _, occ := range s.Occurrences {
		if occ.ScheduleType == track {
			out = append(out, occ)
		}
	}
	return out
}

// Between returns occurrences whose window intersects [from, to).
func (s *Snapshot) Between(from, to time.Time) []models.Occurrence {
	var out []models.Occurrence
	for _, occ := range s.Occurrences {
		if occ.StartAt().Before(to) && occ.EndAt().After(from) {
			out = append(out, occ)
		}
	}
	return out
}

// Find returns the occurrence with the given id, or nil.
func (s *Snapshot) Find(id string) *models.Occurrence {
	for i := range s.Occurrences {
		if s.Occurrences[i].ID == id {
			return &s.Occurrences[i]
		}
	}
	return nil
}

// Builder expands the definition set into snapshots. Rebuild is safe to
// call from multiple goroutines; readers always see either the previous
// or the new snapshot, never a partial one.
type Builder struct {
	store    *Store
	expander *recurrence.Expander
	resolver *duration.Resolver
	bus      Publisher
	logger   zerolog.Logger
	horizon  time.Duration
	now      func() time.Time

	version atomic.Int64
	current atomic.Pointer[Snapshot]
}

// NewBuilder creates a snapshot builder expanding horizon ahead of now.
func NewBuilder(store *Store, resolver *duration.Resolver, bus Publisher, horizon time.Duration, logger zerolog.Logger) *Builder {
	return &Builder{
		store:    store,
		expander: recurrence.NewExpander(logger),
		resolver: resolver,
		bus:      bus,
		logger:   logger.With().Str("component", "snapshot_builder").Logger(),
		horizon:  horizon,
		now:      time.Now,
	}
}

// SetClock overrides the time source anchoring expansion windows.
// Deterministic evaluation needs a fixed instant, so the clock is
// injected rather than read globally.
func (b *Builder) SetClock(now func() time.Time) {
	b.now = now
}

// Current returns the latest snapshot, nil before the first rebuild.
func (b *Builder) Current() *Snapshot {
	return b.current.Load()
}

// Rebuild expands all live definitions into a fresh snapshot and makes
// it current. A definition that fails to expand is skipped with a log
// line; one bad record must not take down scheduling for the rest.
func (b *Builder) Rebuild(ctx context.Context) (*Snapshot, error) {
	ctx, span := telemetry.StartSpan(ctx, "schedule", "snapshot.rebuild")
	defer span.End()

	start := b.now()
	window := recurrence.NewWindow(start.Add(-snapshotLookback), start.Add(b.horizon))

	defs, err := b.store.ListDefinitions(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("list definitions: %w", err)
	}

	exclusions, err := b.store.ListExclusions(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("list exclusions: %w", err)
	}
	excluded := make(map[string]bool, len(exclusions))
	for _, excl := range exclusions {
		excluded[excl.OccurrenceID] = true
	}

	var (
		occs  []models.Occurrence
		diags []models.Diagnostic
	)
	durations := make(map[string]duration.Result)

	for i := range defs {
		def := &defs[i]

		expanded, defDiags, err := b.expander.Expand(def, window)
		if err != nil {
			b.logger.Error().Err(err).Str("definition_id", def.ID).Msg("definition failed to expand, skipping")
			continue
		}
		diags = append(diags, defDiags...)

		res, err := b.resolveDuration(ctx, def, durations)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}

		for _, occ := range expanded {
			if excluded[occ.ID] {
				continue
			}
			occ.DurationMs = res.TotalMs
			occs = append(occs, occ)
		}
	}

	// Duration diagnostics are per playlist chain, deduplicated across
	// the definitions sharing it.
	seenMissing := make(map[string]bool)
	for _, res := range durations {
		for _, diag := range res.Diagnostics() {
			if seenMissing[diag.Ref] {
				continue
			}
			seenMissing[diag.Ref] = true
			diags = append(diags, diag)
		}
	}

	sort.Slice(occs, func(i, j int) bool {
		si, sj := occs[i].StartAt(), occs[j].StartAt()
		if !si.Equal(sj) {
			return si.Before(sj)
		}
		return occs[i].ID < occs[j].ID
	})

	snap := &Snapshot{
		Version:     b.version.Add(1),
		BuiltAt:     start,
		WindowStart: window.Start,
		WindowEnd:   window.End,
		Occurrences: occs,
		Diagnostics: diags,
	}
	b.current.Store(snap)

	b.observe(snap, b.now().Sub(start))
	telemetry.AddSpanAttributes(span, map[string]any{
		"snapshot.version":     snap.Version,
		"snapshot.occurrences": len(occs),
		"snapshot.definitions": len(defs),
	})

	b.bus.Publish(events.EventSnapshotRebuilt, events.Payload{
		"version":      snap.Version,
		"occurrences":  len(occs),
		"diagnostics":  len(diags),
		"window_start": window.Start.Format(models.DateOnly),
		"window_end":   window.End.Format(models.DateOnly),
	})

	b.logger.Info().
		Int64("version", snap.Version).
		Int("definitions", len(defs)).
		Int("occurrences", len(occs)).
		Int("diagnostics", len(diags)).
		Msg("snapshot rebuilt")

	return snap, nil
}

// resolveDuration resolves one definition's playlist chain, memoized on
// the chain key so sibling definitions share the lookup.
func (b *Builder) resolveDuration(ctx context.Context, def *models.ScheduleDefinition, memo map[string]duration.Result) (duration.Result, error) {
	key := chainKey(def)
	if res, ok := memo[key]; ok {
		return res, nil
	}

	res, err := b.resolver.Resolve(ctx, def.PlaylistID, def.PrePlaylistID, def.PostPlaylistID)
	if err != nil {
		return duration.Result{}, fmt.Errorf("resolve duration for definition %s: %w", def.ID, err)
	}
	memo[key] = res
	return res, nil
}

func chainKey(def *models.ScheduleDefinition) string {
	key := def.PlaylistID
	if def.PrePlaylistID != nil {
		key = *def.PrePlaylistID + "|" + key
	}
	if def.PostPlaylistID != nil {
		key = key + "|" + *def.PostPlaylistID
	}
	return key
}

// ResolveWindowFor computes an occurrence's end-policy output: planned
// end from the schedule window, actual end snapped to item boundaries.
func (b *Builder) ResolveWindowFor(ctx context.Context, occ *models.Occurrence) (models.ResolvedWindow, error) {
	itemsMs, err := b.chainItemLengths(ctx, occ)
	if err != nil {
		return models.ResolvedWindow{}, err
	}
	return endpolicy.ResolveWindow(occ.EndPolicy, occ.StartAt(), occ.EndAt(), itemsMs), nil
}

// chainItemLengths concatenates the item lengths of the occurrence's
// pre, main, and post playlists in play order.
func (b *Builder) chainItemLengths(ctx context.Context, occ *models.Occurrence) ([]int64, error) {
	var itemsMs []int64

	ids := make([]string, 0, 3)
	if occ.PrePlaylistID != nil {
		ids = append(ids, *occ.PrePlaylistID)
	}
	ids = append(ids, occ.PlaylistID)
	if occ.PostPlaylistID != nil {
		ids = append(ids, *occ.PostPlaylistID)
	}

	for _, id := range ids {
		lengths, err := b.resolver.ItemLengths(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("occurrence %s: %w", occ.ID, err)
		}
		itemsMs = append(itemsMs, lengths...)
	}
	return itemsMs, nil
}

func (b *Builder) observe(snap *Snapshot, took time.Duration) {
	telemetry.SnapshotBuildDuration.Observe(took.Seconds())
	telemetry.SnapshotVersion.Set(float64(snap.Version))
	telemetry.SnapshotLastBuildTimestamp.Set(float64(snap.BuiltAt.Unix()))

	perTrack := make(map[models.Track]int)
	for _, occ := range snap.Occurrences {
		perTrack[occ.ScheduleType]++
	}
	for _, track := range models.Tracks() {
		telemetry.SnapshotOccurrences.WithLabelValues(string(track)).Set(float64(perTrack[track]))
	}

	for _, diag := range snap.Diagnostics {
		telemetry.ExpansionDiagnosticsTotal.WithLabelValues(string(diag.Code)).Inc()
	}
}
