package conflict

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"calmux/internal/models"
)

// Actor is someone a conflicting meeting could be delegated to.
type Actor struct {
	Email     string
	Name      string
	Available bool
}

// Resolver generates resolution candidates for conflicts and selects the
// best one. Scoring is a fixed deterministic policy, not a learned one.
type Resolver struct {
	now func() time.Time
}

// NewResolver creates a resolver using the wall clock.
func NewResolver() *Resolver {
	return &Resolver{now: time.Now}
}

var impactRank = map[models.ResolutionImpact]int{
	models.ImpactLow:    0,
	models.ImpactMedium: 1,
	models.ImpactHigh:   2,
}

// Resolve generates the three fixed candidates for the conflict, selects
// by confidence descending with ties broken by impact descending, marks
// the conflict resolved, and returns the winner. The nil return only
// happens if candidate generation ever produces nothing; callers handle
// it defensively.
func (r *Resolver) Resolve(conflict *models.SchedulingConflict, availableActors []Actor) *models.ConflictResolution {
	candidates := r.candidates(conflict, availableActors)
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return impactRank[candidates[i].Impact] > impactRank[candidates[j].Impact]
	})

	best := candidates[0]
	conflict.Resolved = true
	conflict.ResolvedBy = string(best.Type)
	conflict.ResolvedAt = r.now().UTC()
	return &best
}

// candidates builds the reschedule, delegate and merge strategies. All
// three are always generated; availability only moves the delegate
// confidence.
func (r *Resolver) candidates(conflict *models.SchedulingConflict, actors []Actor) []models.ConflictResolution {
	affected := conflict.EventIDs[:]

	reschedule := models.ConflictResolution{
		ID:               uuid.New().String(),
		Type:             models.ResolutionReschedule,
		Description:      "Move the lower-priority event to the next free slot",
		Impact:           models.ImpactMedium,
		AffectedEventIDs: affected,
		Confidence:       0.8,
		Reasoning:        "Rescheduling preserves both meetings at the cost of one calendar change",
	}

	delegate := models.ConflictResolution{
		ID:               uuid.New().String(),
		Type:             models.ResolutionDelegate,
		Impact:           models.ImpactLow,
		AffectedEventIDs: affected,
	}
	if actor, ok := firstAvailable(actors); ok {
		delegate.Confidence = 0.9
		delegate.Description = fmt.Sprintf("Delegate attendance to %s", actor.Email)
		delegate.Reasoning = fmt.Sprintf("%s is free during the conflict window", actor.Email)
	} else {
		delegate.Confidence = 0.3
		delegate.Description = "Delegate attendance to a deputy"
		delegate.Reasoning = "No deputy is currently free; delegation would need manual coordination"
	}

	merge := models.ConflictResolution{
		ID:               uuid.New().String(),
		Type:             models.ResolutionMerge,
		Description:      "Combine both meetings into a single session",
		Impact:           models.ImpactHigh,
		AffectedEventIDs: affected,
		Confidence:       0.7,
		Reasoning:        "Merging removes the overlap but changes both meetings' agendas",
	}

	return []models.ConflictResolution{reschedule, delegate, merge}
}

func firstAvailable(actors []Actor) (Actor, bool) {
	for _, actor := range actors {
		if actor.Available {
			return actor, true
		}
	}
	return Actor{}, false
}
