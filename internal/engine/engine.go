/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package engine runs the playback decision loop: a periodic tick
// arbitrates the current snapshot into one active decision per track and
// emits events when a track's occupant changes. The poll model is
// deliberate; definitions can change underfoot at any time, so the loop
// re-derives the decision instead of trusting scheduled transitions.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_player/internal/arbiter"
	"github.com/friendsincode/grimnir_player/internal/cache"
	"github.com/friendsincode/grimnir_player/internal/events"
	"github.com/friendsincode/grimnir_player/internal/models"
	"github.com/friendsincode/grimnir_player/internal/schedule"
	"github.com/friendsincode/grimnir_player/internal/telemetry"
)

// snapshotMaxAge bounds how stale a snapshot may get before a tick
// forces a rebuild. Rebuilds normally ride on change events; this keeps
// the rolling expansion window moving when nothing changes for hours.
const snapshotMaxAge = time.Hour

// ErrNoSnapshot indicates no schedule snapshot has been built yet.
var ErrNoSnapshot = errors.New("no schedule snapshot available")

// Bus is the event surface the engine needs: subscribing to schedule
// changes and publishing decision transitions. The in-process bus and
// the NATS bridge both satisfy it.
type Bus interface {
	Subscribe(eventType events.EventType) events.Subscriber
	Unsubscribe(eventType events.EventType, sub events.Subscriber)
	Publish(eventType events.EventType, payload events.Payload)
}

// Engine evaluates playback decisions on a fixed tick.
type Engine struct {
	builder  *schedule.Builder
	arbiter  *arbiter.Arbiter
	bus      Bus
	cache    *cache.Cache // nil when caching is off
	logger   zerolog.Logger
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last map[models.Track]models.ActiveDecision
	seen map[models.Track]bool
}

// New creates a playback engine ticking at the given interval.
func New(builder *schedule.Builder, bus Bus, c *cache.Cache, interval time.Duration, logger zerolog.Logger) *Engine {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Engine{
		builder:  builder,
		arbiter:  arbiter.New(logger),
		bus:      bus,
		cache:    c,
		logger:   logger.With().Str("component", "engine").Logger(),
		interval: interval,
		now:      time.Now,
		last:     make(map[models.Track]models.ActiveDecision),
		seen:     make(map[models.Track]bool),
	}
}

// SetClock overrides the evaluation time source. Deterministic
// evaluation needs a fixed instant, so the clock is injected rather
// than read globally.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Run executes the decision loop until the context is cancelled. The
// snapshot is rebuilt up front, on every definition change event, and
// whenever it outlives snapshotMaxAge.
func (e *Engine) Run(ctx context.Context) error {
	if _, err := e.builder.Rebuild(ctx); err != nil {
		return fmt.Errorf("initial snapshot: %w", err)
	}

	defCreated := e.bus.Subscribe(events.EventDefinitionCreated)
	defUpdated := e.bus.Subscribe(events.EventDefinitionUpdated)
	defDeleted := e.bus.Subscribe(events.EventDefinitionDeleted)
	seriesEdited := e.bus.Subscribe(events.EventSeriesEdited)
	importDone := e.bus.Subscribe(events.EventImportCompleted)
	defer func() {
		e.bus.Unsubscribe(events.EventDefinitionCreated, defCreated)
		e.bus.Unsubscribe(events.EventDefinitionUpdated, defUpdated)
		e.bus.Unsubscribe(events.EventDefinitionDeleted, defDeleted)
		e.bus.Unsubscribe(events.EventSeriesEdited, seriesEdited)
		e.bus.Unsubscribe(events.EventImportCompleted, importDone)
	}()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.logger.Info().Dur("interval", e.interval).Msg("playback engine started")
	e.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("playback engine stopped")
			return ctx.Err()

		case <-ticker.C:
			e.Tick(ctx)

		case <-defCreated:
			e.refresh(ctx)
		case <-defUpdated:
			e.refresh(ctx)
		case <-defDeleted:
			e.refresh(ctx)
		case <-seriesEdited:
			e.refresh(ctx)
		case <-importDone:
			e.refresh(ctx)
		}
	}
}

// refresh rebuilds the snapshot after a definition change and
// re-evaluates immediately so edits take effect within the same tick
// interval they were made in.
func (e *Engine) refresh(ctx context.Context) {
	if _, err := e.builder.Rebuild(ctx); err != nil {
		e.logger.Error().Err(err).Msg("snapshot rebuild failed")
		return
	}
	e.Tick(ctx)
}

// Tick evaluates both tracks once against the current snapshot.
func (e *Engine) Tick(ctx context.Context) {
	telemetry.EngineTicksTotal.Inc()
	began := time.Now()
	at := e.now()

	snap := e.builder.Current()
	if snap == nil || at.Sub(snap.BuiltAt) > snapshotMaxAge {
		rebuilt, err := e.builder.Rebuild(ctx)
		if err != nil {
			e.logger.Error().Err(err).Msg("snapshot rebuild failed")
			if snap == nil {
				return
			}
			// Keep arbitrating the stale snapshot over going dark.
		} else {
			snap = rebuilt
		}
	}

	for _, track := range models.Tracks() {
		decision := e.arbiter.ActiveAt(at, snap.Occurrences, track)
		e.observe(ctx, decision)
	}

	telemetry.EngineTickDuration.Observe(time.Since(began).Seconds())
}

// observe records the decision and emits the transition events when the
// track's occupant changed since the previous evaluation.
func (e *Engine) observe(ctx context.Context, decision models.ActiveDecision) {
	e.mu.Lock()
	prev := e.last[decision.Track]
	seen := e.seen[decision.Track]
	e.last[decision.Track] = decision
	e.seen[decision.Track] = true
	e.mu.Unlock()

	if seen && prev.OccupantID() == decision.OccupantID() {
		return
	}
	if !seen && !decision.Active() {
		// Nothing scheduled at startup; an idle event without a prior
		// occupant would be noise.
		return
	}

	if e.cache != nil {
		_ = e.cache.SetDecision(ctx, &decision)
	}
	telemetry.EngineDecisionChangesTotal.WithLabelValues(string(decision.Track)).Inc()
	e.publishTransition(prev, decision, seen)
}

// publishTransition classifies an occupant change and emits the matching
// event. Occupant comparison between ticks is the only preemption
// signal; there is no separate cancellation path.
func (e *Engine) publishTransition(prev, cur models.ActiveDecision, seen bool) {
	payload := decisionPayload(cur)

	switch {
	case !cur.Active():
		e.bus.Publish(events.EventDecisionIdle, payload)
		e.logger.Info().
			Str("track", string(cur.Track)).
			Str("previous", prev.OccupantID()).
			Msg("track went idle")

	case cur.Preempted != nil && seen && cur.Preempted.ID == prev.OccupantID():
		telemetry.EnginePreemptionsTotal.WithLabelValues(string(cur.Track)).Inc()
		e.bus.Publish(events.EventDecisionPreempted, payload)
		e.logger.Info().
			Str("track", string(cur.Track)).
			Str("occurrence", cur.OccupantID()).
			Str("preempted", cur.Preempted.ID).
			Bool("resume_after", cur.ResumeAfterPreemption).
			Msg("occurrence preempted")

	case seen && prev.Preempted != nil && prev.Preempted.ID == cur.OccupantID():
		e.bus.Publish(events.EventDecisionResumed, payload)
		e.logger.Info().
			Str("track", string(cur.Track)).
			Str("occurrence", cur.OccupantID()).
			Msg("occurrence resumed after preemption")

	default:
		e.bus.Publish(events.EventDecisionChanged, payload)
		e.logger.Info().
			Str("track", string(cur.Track)).
			Str("occurrence", cur.OccupantID()).
			Str("previous", prev.OccupantID()).
			Msg("active occurrence changed")
	}
}

func decisionPayload(d models.ActiveDecision) events.Payload {
	payload := events.Payload{
		"track": string(d.Track),
		"at":    d.At.Format(time.RFC3339),
	}
	if d.Occurrence != nil {
		payload["occurrence_id"] = d.Occurrence.ID
		payload["title"] = d.Occurrence.Title
		payload["playlist_id"] = d.Occurrence.PlaylistID
		payload["ends_at"] = d.Occurrence.EndAt().Format(time.RFC3339)
	}
	if d.Preempted != nil {
		payload["preempted_id"] = d.Preempted.ID
		payload["resume_after_preemption"] = d.ResumeAfterPreemption
	}
	return payload
}

// ActiveAt arbitrates one track at an explicit instant against the
// current snapshot. Preview and what-if queries use this; it never
// touches the decision cache.
func (e *Engine) ActiveAt(at time.Time, track models.Track) (models.ActiveDecision, error) {
	snap := e.builder.Current()
	if snap == nil {
		return models.ActiveDecision{}, ErrNoSnapshot
	}
	return e.arbiter.ActiveAt(at, snap.Occurrences, track), nil
}

// ActiveNow returns the current decision for a track, served from the
// decision cache when fresh.
func (e *Engine) ActiveNow(ctx context.Context, track models.Track) (models.ActiveDecision, error) {
	if e.cache != nil {
		if cached, found := e.cache.GetDecision(ctx, track); found {
			return *cached, nil
		}
	}

	decision, err := e.ActiveAt(e.now(), track)
	if err != nil {
		return models.ActiveDecision{}, err
	}

	if e.cache != nil {
		_ = e.cache.SetDecision(ctx, &decision)
	}
	return decision, nil
}

// LastDecision returns the most recent tick result for a track. Stream
// handlers use it to prime new subscribers with current state.
func (e *Engine) LastDecision(track models.Track) (models.ActiveDecision, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last[track], e.seen[track]
}
