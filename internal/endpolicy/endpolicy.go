/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package endpolicy snaps a schedule's nominal end instant to the item
// boundaries of the playing content.
package endpolicy

import (
	"time"

	"github.com/friendsincode/grimnir_player/internal/models"
)

// Resolve computes the actual end instant for a nominal end under the
// given policy. boundaries must be ascending instants, one per completed
// item. With no boundaries, or no boundary on the side a policy needs,
// every policy degrades to hardcut.
func Resolve(policy models.EndPolicy, nominalEnd time.Time, boundaries []time.Time) time.Time {
	if policy == models.EndPolicyHardCut || len(boundaries) == 0 {
		return nominalEnd
	}

	early, hasEarly := latestAtOrBefore(boundaries, nominalEnd)
	late, hasLate := earliestAtOrAfter(boundaries, nominalEnd)

	switch policy {
	case models.EndPolicySeqBoundEarly:
		if hasEarly {
			return early
		}
	case models.EndPolicySeqBoundLate:
		if hasLate {
			return late
		}
	case models.EndPolicySeqBoundNearest:
		switch {
		case hasEarly && hasLate:
			// Ties go to the later boundary: finish the item in
			// progress rather than cutting it.
			if nominalEnd.Sub(early) < late.Sub(nominalEnd) {
				return early
			}
			return late
		case hasEarly:
			return early
		case hasLate:
			return late
		}
	}
	return nominalEnd
}

// ResolveWindow bundles duration and end-policy output for one
// occurrence evaluation: the planned end from the schedule window and
// the actual end after boundary snapping.
func ResolveWindow(policy models.EndPolicy, start, plannedEnd time.Time, itemsMs []int64) models.ResolvedWindow {
	var total int64
	for _, ms := range itemsMs {
		total += ms
	}
	return models.ResolvedWindow{
		PlannedEnd:      plannedEnd,
		ActualEnd:       Resolve(policy, plannedEnd, Boundaries(start, itemsMs)),
		TotalDurationMs: total,
	}
}

// Boundaries builds the cumulative item-end instants for content that
// starts playing at start.
func Boundaries(start time.Time, itemsMs []int64) []time.Time {
	out := make([]time.Time, 0, len(itemsMs))
	at := start
	for _, ms := range itemsMs {
		at = at.Add(time.Duration(ms) * time.Millisecond)
		out = append(out, at)
	}
	return out
}

func latestAtOrBefore(boundaries []time.Time, at time.Time) (time.Time, bool) {
	var (
		best  time.Time
		found bool
	)
	for _, b := range boundaries {
		if b.After(at) {
			continue
		}
		if !found || b.After(best) {
			best, found = b, true
		}
	}
	return best, found
}

func earliestAtOrAfter(boundaries []time.Time, at time.Time) (time.Time, bool) {
	var (
		best  time.Time
		found bool
	)
	for _, b := range boundaries {
		if b.Before(at) {
			continue
		}
		if !found || b.Before(best) {
			best, found = b, true
		}
	}
	return best, found
}
