// Package timeline implements the temporal versioning shared by node power,
// node uptime and energy-rate history: per-owner sequences of non-overlapping
// effective periods with a single open-ended "current" entry, auto-closing of
// predecessors on open insertion, and lazy point-in-time projection.
package timeline

import (
	"context"
	"time"

	"github.com/nodevault/custody-service/internal/apperr"
)

// closeGap is the distance between a superseded entry's new end and its
// successor's start, matching the stored millisecond precision.
const closeGap = time.Millisecond

// Period is the effective range of an entry. A nil EffectiveTo means the
// entry is still current. Both bounds are inclusive.
type Period struct {
	EffectiveFrom time.Time  `json:"effectiveFrom" db:"effective_from"`
	EffectiveTo   *time.Time `json:"effectiveTo" db:"effective_to"`
}

// Open reports whether the period has no end yet.
func (p Period) Open() bool { return p.EffectiveTo == nil }

// Contains reports whether t falls within the period.
func (p Period) Contains(t time.Time) bool {
	if t.Before(p.EffectiveFrom) {
		return false
	}
	return p.EffectiveTo == nil || !p.EffectiveTo.Before(t)
}

// Overlaps reports whether the period intersects [from, to). A nil to is
// unbounded, and because both stored bounds are inclusive the unbounded
// check counts a period ending exactly at from as overlapping.
func (p Period) Overlaps(from time.Time, to *time.Time) bool {
	if to == nil {
		return p.EffectiveTo == nil || !p.EffectiveTo.Before(from)
	}
	if !p.EffectiveFrom.Before(*to) {
		return false
	}
	return p.EffectiveTo == nil || p.EffectiveTo.After(from)
}

// Validate rejects periods whose start is not strictly before their end.
func (p Period) Validate() error {
	if p.EffectiveTo != nil && !p.EffectiveFrom.Before(*p.EffectiveTo) {
		return apperr.InvalidRange("effectiveTo must be after effectiveFrom")
	}
	return nil
}

// Entry is a value bound to an owner and an effective period. The concrete
// payload (watt-hours, uptime seconds, energy rate) is opaque to this
// package.
type Entry interface {
	EntryID() int64
	OwnerID() int64
	EntryPeriod() Period
}

// Page selects a slice of an ordered listing.
type Page struct {
	Offset int
	Limit  int
}

// NewPage validates page/perPage as supplied by callers: both must be given
// together and both must be positive.
func NewPage(page, perPage int) (*Page, error) {
	if page <= 0 || perPage <= 0 {
		return nil, apperr.InvalidArgument("page and perPage must be positive integers")
	}
	return &Page{Offset: (page - 1) * perPage, Limit: perPage}, nil
}

// Store persists one kind of timeline entry. Implementations exist for the
// in-memory store and Postgres.
type Store[E Entry] interface {
	// FindAt returns the entry whose period contains at, preferring the
	// latest effectiveFrom, excluding excludeID when non-zero.
	FindAt(ctx context.Context, ownerID int64, at time.Time, excludeID int64) (E, bool, error)

	// FindOverlap returns the entry intersecting [from, to) with the latest
	// effectiveFrom, excluding excludeID when non-zero. A nil to is
	// unbounded.
	FindOverlap(ctx context.Context, ownerID int64, from time.Time, to *time.Time, excludeID int64) (E, bool, error)

	// Create inserts the entry and returns it with its assigned id.
	Create(ctx context.Context, entry E) (E, error)

	// Update rewrites the entry's payload and period.
	Update(ctx context.Context, entry E) (E, error)

	// Close sets the entry's effectiveTo.
	Close(ctx context.Context, id int64, closeAt time.Time) error

	// WithOwnerLock runs fn while holding an exclusive lock scoped to the
	// owner, so concurrent mutations of one timeline cannot interleave.
	// Everything fn does through the passed store happens atomically:
	// either all writes commit or none do.
	WithOwnerLock(ctx context.Context, ownerID int64, fn func(ctx context.Context, s Store[E]) error) error
}

// Insert adds an entry to its owner's timeline under the non-overlap rules.
//
// An open-ended entry closes its conflicting predecessor at one millisecond
// before the new start; it is rejected when any conflicting entry starts at
// or after the new start, since such an entry cannot be shortened into the
// past. A closed range must not intersect any existing entry at all.
func Insert[E Entry](ctx context.Context, store Store[E], entry E) (E, error) {
	var created E
	period := entry.EntryPeriod()
	if err := period.Validate(); err != nil {
		return created, err
	}

	err := store.WithOwnerLock(ctx, entry.OwnerID(), func(ctx context.Context, s Store[E]) error {
		if period.Open() {
			conflict, ok, err := s.FindOverlap(ctx, entry.OwnerID(), period.EffectiveFrom, nil, 0)
			if err != nil {
				return err
			}
			if !ok {
				created, err = s.Create(ctx, entry)
				return err
			}
			if !period.EffectiveFrom.After(conflict.EntryPeriod().EffectiveFrom) {
				return apperr.OverlapConflict("an open-ended entry cannot start at or before an entry it would engulf")
			}
			// The conflict starts before the new entry and is the latest
			// overlap, so by the non-overlap invariant it is the only one
			// and contains the new start.
			if err := s.Close(ctx, conflict.EntryID(), period.EffectiveFrom.Add(-closeGap)); err != nil {
				return err
			}
			created, err = s.Create(ctx, entry)
			return err
		}

		_, ok, err := s.FindOverlap(ctx, entry.OwnerID(), period.EffectiveFrom, period.EffectiveTo, 0)
		if err != nil {
			return err
		}
		if ok {
			return apperr.OverlapConflict("an entry already exists for the provided time range")
		}
		created, err = s.Create(ctx, entry)
		return err
	})
	if err != nil {
		var zero E
		return zero, err
	}
	return created, nil
}

// Update rewrites an existing entry after re-running the overlap check
// against every other entry of the same owner.
func Update[E Entry](ctx context.Context, store Store[E], entry E) (E, error) {
	var updated E
	period := entry.EntryPeriod()
	if err := period.Validate(); err != nil {
		return updated, err
	}

	err := store.WithOwnerLock(ctx, entry.OwnerID(), func(ctx context.Context, s Store[E]) error {
		_, ok, err := s.FindOverlap(ctx, entry.OwnerID(), period.EffectiveFrom, period.EffectiveTo, entry.EntryID())
		if err != nil {
			return err
		}
		if ok {
			return apperr.OverlapConflict("an entry already exists for the provided time range")
		}
		updated, err = s.Update(ctx, entry)
		return err
	})
	if err != nil {
		var zero E
		return zero, err
	}
	return updated, nil
}

// CurrentAt projects the value in effect at the given instant without
// materializing anything: at most one entry can contain it by the
// non-overlap invariant.
func CurrentAt[E Entry](ctx context.Context, store Store[E], ownerID int64, at time.Time) (E, bool, error) {
	return store.FindAt(ctx, ownerID, at, 0)
}
