/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package arbiter narrows the set of occurrences whose windows cover an
// instant down to the single active occurrence per track.
//
// Selection is a total order: priority descending, then earlier start,
// then id. Two boolean override channels sit on top of it. hardCutIn
// lets a later-starting occurrence take the track from an equal-priority
// incumbent; it never outranks a strictly higher priority. An occupant
// with preferHardCutIn yields the instant the next occurrence starts,
// even a lower-priority one; from that hand-off on the usual rules
// apply to the new occupant.
package arbiter

import (
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_player/internal/models"
)

// Arbiter decides which occurrence owns a track at an instant. It is
// stateless: every call works purely on the snapshot it is handed.
type Arbiter struct {
	logger zerolog.Logger
}

// New creates an arbiter.
func New(logger zerolog.Logger) *Arbiter {
	return &Arbiter{logger: logger.With().Str("component", "arbiter").Logger()}
}

// ActiveAt returns the active decision for one track at one instant. A
// decision with no occurrence is the valid "nothing scheduled" outcome.
// The result is independent of the input ordering.
func (a *Arbiter) ActiveAt(at time.Time, occs []models.Occurrence, track models.Track) models.ActiveDecision {
	decision := models.ActiveDecision{Track: track, At: at}

	cands := candidates(at, occs, track)
	if len(cands) == 0 {
		return decision
	}

	winner := selectWinner(cands)
	w := cands[winner]
	decision.Occurrence = &w

	// The displaced incumbent is whoever held the track the instant
	// before the winner started, as long as its own window still covers
	// the query instant; once that window lapses it can no longer
	// resume and stops being reported.
	rest := make([]models.Occurrence, 0, len(cands)-1)
	rest = append(rest, cands[:winner]...)
	rest = append(rest, cands[winner+1:]...)
	if prior := candidates(w.StartAt().Add(-time.Nanosecond), rest, track); len(prior) > 0 {
		p := prior[selectWinner(prior)]
		if p.Contains(at) {
			decision.Preempted = &p
			decision.ResumeAfterPreemption = p.KeepToScheduleWhenPreempted
		}
	}
	return decision
}

// candidates filters to the track's occurrences whose half-open window
// [start, end) contains the instant, sorted into the base total order.
func candidates(at time.Time, occs []models.Occurrence, track models.Track) []models.Occurrence {
	var cands []models.Occurrence
	for _, occ := range occs {
		if occ.ScheduleType != track || !occ.Contains(at) {
			continue
		}
		cands = append(cands, occ)
	}
	sort.Slice(cands, func(i, j int) bool { return baseLess(&cands[i], &cands[j]) })
	return cands
}

// baseLess is the arbitration total order: priority descending, earlier
// start, id ascending.
func baseLess(a, b *models.Occurrence) bool {
	if ar, br := a.Priority.Rank(), b.Priority.Rank(); ar != br {
		return ar > br
	}
	as, bs := a.StartAt(), b.StartAt()
	if !as.Equal(bs) {
		return as.Before(bs)
	}
	return a.ID < b.ID
}

// selectWinner replays the succession on top of the base order and
// returns the winning index into cands. cands must be sorted by
// baseLess and non-empty.
func selectWinner(cands []models.Occurrence) int {
	// The base-order head held the track first. A takeover happens the
	// instant the challenger starts, so succession walks forward one
	// start at a time. Start times strictly increase per step, so the
	// loop terminates.
	winner := 0
	for {
		next := successor(cands, winner)
		if next < 0 {
			return winner
		}
		winner = next
	}
}

// successor finds the earliest-starting candidate that takes the track
// from the incumbent, or -1 when the incumbent keeps it.
func successor(cands []models.Occurrence, incumbent int) int {
	inc := &cands[incumbent]
	best := -1
	for i := range cands {
		c := &cands[i]
		if i == incumbent || !c.StartAt().After(inc.StartAt()) {
			continue
		}
		if !takesOver(c, inc) {
			continue
		}
		if best < 0 || earlierStart(c, &cands[best]) {
			best = i
		}
	}
	return best
}

// takesOver reports whether a later-starting challenger displaces the
// incumbent at the challenger's start. A preferHardCutIn incumbent
// yields to anyone; otherwise the challenger needs strictly higher
// priority, or equal priority and hardCutIn.
func takesOver(c, inc *models.Occurrence) bool {
	if inc.PreferHardCutIn {
		return true
	}
	if cr, ir := c.Priority.Rank(), inc.Priority.Rank(); cr != ir {
		return cr > ir
	}
	return c.HardCutIn
}

// earlierStart orders challengers: earlier start first, then higher
// priority, then id.
func earlierStart(a, b *models.Occurrence) bool {
	as, bs := a.StartAt(), b.StartAt()
	if !as.Equal(bs) {
		return as.Before(bs)
	}
	if ar, br := a.Priority.Rank(), b.Priority.Rank(); ar != br {
		return ar > br
	}
	return a.ID < b.ID
}
