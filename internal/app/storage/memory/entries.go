package memory

import (
	"context"
	"sort"
	"time"

	"github.com/nodevault/custody-service/internal/apperr"
	"github.com/nodevault/custody-service/internal/app/storage"
	"github.com/nodevault/custody-service/internal/app/timeline"
)

// entryTable backs one timeline kind. Mutation of the generic entry type
// goes through the withID/withPeriod hooks supplied per kind.
type entryTable[E timeline.Entry] struct {
	parent  *Store
	entries map[int64]E
	label   string

	withID     func(e E, id int64, now time.Time) E
	withPeriod func(e E, p timeline.Period) E
}

var _ storage.EntryStore[timeline.Entry] = (*entryTable[timeline.Entry])(nil)

func (t *entryTable[E]) FindAt(ctx context.Context, ownerID int64, at time.Time, excludeID int64) (E, bool, error) {
	t.parent.mu.Lock()
	defer t.parent.mu.Unlock()
	return t.findAtLocked(ownerID, at, excludeID)
}

func (t *entryTable[E]) findAtLocked(ownerID int64, at time.Time, excludeID int64) (E, bool, error) {
	var (
		best  E
		found bool
	)
	for _, e := range t.entries {
		if e.OwnerID() != ownerID || e.EntryID() == excludeID {
			continue
		}
		if !e.EntryPeriod().Contains(at) {
			continue
		}
		if !found || e.EntryPeriod().EffectiveFrom.After(best.EntryPeriod().EffectiveFrom) {
			best, found = e, true
		}
	}
	return best, found, nil
}

func (t *entryTable[E]) FindOverlap(ctx context.Context, ownerID int64, from time.Time, to *time.Time, excludeID int64) (E, bool, error) {
	t.parent.mu.Lock()
	defer t.parent.mu.Unlock()
	return t.findOverlapLocked(ownerID, from, to, excludeID)
}

func (t *entryTable[E]) findOverlapLocked(ownerID int64, from time.Time, to *time.Time, excludeID int64) (E, bool, error) {
	var (
		best  E
		found bool
	)
	for _, e := range t.entries {
		if e.OwnerID() != ownerID || e.EntryID() == excludeID {
			continue
		}
		if !e.EntryPeriod().Overlaps(from, to) {
			continue
		}
		if !found || e.EntryPeriod().EffectiveFrom.After(best.EntryPeriod().EffectiveFrom) {
			best, found = e, true
		}
	}
	return best, found, nil
}

func (t *entryTable[E]) Create(ctx context.Context, entry E) (E, error) {
	t.parent.mu.Lock()
	defer t.parent.mu.Unlock()
	return t.createLocked(entry)
}

func (t *entryTable[E]) createLocked(entry E) (E, error) {
	entry = t.withID(entry, t.parent.nextIDLocked(), time.Now().UTC())
	t.entries[entry.EntryID()] = entry
	return entry, nil
}

func (t *entryTable[E]) Update(ctx context.Context, entry E) (E, error) {
	t.parent.mu.Lock()
	defer t.parent.mu.Unlock()
	return t.updateLocked(entry)
}

func (t *entryTable[E]) updateLocked(entry E) (E, error) {
	var zero E
	if _, ok := t.entries[entry.EntryID()]; !ok {
		return zero, apperr.NotFound(t.label + " not found")
	}
	t.entries[entry.EntryID()] = entry
	return entry, nil
}

func (t *entryTable[E]) Close(ctx context.Context, id int64, closeAt time.Time) error {
	t.parent.mu.Lock()
	defer t.parent.mu.Unlock()
	return t.closeLocked(id, closeAt)
}

func (t *entryTable[E]) closeLocked(id int64, closeAt time.Time) error {
	e, ok := t.entries[id]
	if !ok {
		return apperr.NotFound(t.label + " not found")
	}
	p := e.EntryPeriod()
	at := closeAt
	p.EffectiveTo = &at
	t.entries[id] = t.withPeriod(e, p)
	return nil
}

// WithOwnerLock runs fn under the store mutex. The owner node must exist
// and be undeleted, mirroring the row lock the postgres store takes. The
// callback receives a view whose operations skip locking so the timeline
// algorithms can compose find/close/create without deadlocking.
func (t *entryTable[E]) WithOwnerLock(ctx context.Context, ownerID int64, fn func(ctx context.Context, s timeline.Store[E]) error) error {
	t.parent.mu.Lock()
	defer t.parent.mu.Unlock()
	if n, ok := t.parent.nodes[ownerID]; !ok || n.Deleted() {
		return apperr.NotFound("server node not found")
	}
	return fn(ctx, unlockedTable[E]{t})
}

func (t *entryTable[E]) Get(ctx context.Context, id, userID int64) (E, error) {
	t.parent.mu.Lock()
	defer t.parent.mu.Unlock()

	var zero E
	e, ok := t.entries[id]
	if !ok {
		return zero, apperr.NotFound(t.label + " not found")
	}
	if _, ok := t.parent.ownedNodeLocked(e.OwnerID(), userID, false); !ok {
		return zero, apperr.NotFound(t.label + " not found")
	}
	return e, nil
}

func (t *entryTable[E]) List(ctx context.Context, userID, ownerID int64, page *timeline.Page) ([]E, error) {
	t.parent.mu.Lock()
	defer t.parent.mu.Unlock()

	var result []E
	for _, e := range t.entries {
		if ownerID != 0 && e.OwnerID() != ownerID {
			continue
		}
		if _, ok := t.parent.ownedNodeLocked(e.OwnerID(), userID, false); !ok {
			continue
		}
		result = append(result, e)
	}
	sortEntries(result)
	if page != nil {
		if page.Offset >= len(result) {
			return []E{}, nil
		}
		result = result[page.Offset:]
		if page.Limit < len(result) {
			result = result[:page.Limit]
		}
	}
	return result, nil
}

func (t *entryTable[E]) Delete(ctx context.Context, id int64) error {
	t.parent.mu.Lock()
	defer t.parent.mu.Unlock()

	if _, ok := t.entries[id]; !ok {
		return apperr.NotFound(t.label + " not found")
	}
	delete(t.entries, id)
	return nil
}

func (t *entryTable[E]) CurrentFor(ctx context.Context, ownerIDs []int64, at time.Time) (map[int64]E, error) {
	t.parent.mu.Lock()
	defer t.parent.mu.Unlock()

	result := make(map[int64]E, len(ownerIDs))
	for _, ownerID := range ownerIDs {
		if e, ok, _ := t.findAtLocked(ownerID, at, 0); ok {
			result[ownerID] = e
		}
	}
	return result, nil
}

func (t *entryTable[E]) ListFor(ctx context.Context, ownerIDs []int64) (map[int64][]E, error) {
	t.parent.mu.Lock()
	defer t.parent.mu.Unlock()

	wanted := make(map[int64]bool, len(ownerIDs))
	for _, id := range ownerIDs {
		wanted[id] = true
	}
	result := make(map[int64][]E, len(ownerIDs))
	for _, e := range t.entries {
		if wanted[e.OwnerID()] {
			result[e.OwnerID()] = append(result[e.OwnerID()], e)
		}
	}
	for ownerID := range result {
		sortEntries(result[ownerID])
	}
	return result, nil
}

// sortEntries orders open periods first, then by effectiveTo descending,
// then by effectiveFrom descending.
func sortEntries[E timeline.Entry](entries []E) {
	sort.Slice(entries, func(i, j int) bool {
		pi, pj := entries[i].EntryPeriod(), entries[j].EntryPeriod()
		switch {
		case pi.Open() && !pj.Open():
			return true
		case !pi.Open() && pj.Open():
			return false
		case pi.Open() && pj.Open():
			return pi.EffectiveFrom.After(pj.EffectiveFrom)
		case !pi.EffectiveTo.Equal(*pj.EffectiveTo):
			return pi.EffectiveTo.After(*pj.EffectiveTo)
		default:
			return pi.EffectiveFrom.After(pj.EffectiveFrom)
		}
	})
}

// unlockedTable is the view handed to WithOwnerLock callbacks. The mutex is
// already held, so every operation goes straight to the *Locked methods.
type unlockedTable[E timeline.Entry] struct {
	t *entryTable[E]
}

var _ timeline.Store[timeline.Entry] = unlockedTable[timeline.Entry]{}

func (u unlockedTable[E]) FindAt(_ context.Context, ownerID int64, at time.Time, excludeID int64) (E, bool, error) {
	return u.t.findAtLocked(ownerID, at, excludeID)
}

func (u unlockedTable[E]) FindOverlap(_ context.Context, ownerID int64, from time.Time, to *time.Time, excludeID int64) (E, bool, error) {
	return u.t.findOverlapLocked(ownerID, from, to, excludeID)
}

func (u unlockedTable[E]) Create(_ context.Context, entry E) (E, error) {
	return u.t.createLocked(entry)
}

func (u unlockedTable[E]) Update(_ context.Context, entry E) (E, error) {
	return u.t.updateLocked(entry)
}

func (u unlockedTable[E]) Close(_ context.Context, id int64, closeAt time.Time) error {
	return u.t.closeLocked(id, closeAt)
}

func (u unlockedTable[E]) WithOwnerLock(ctx context.Context, _ int64, fn func(ctx context.Context, s timeline.Store[E]) error) error {
	return fn(ctx, u)
}
