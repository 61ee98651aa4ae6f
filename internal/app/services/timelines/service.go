// Package timelines exposes the CRUD surface shared by the three
// time-versioned entry kinds. One generic service handles ownership
// checks, pagination and the non-overlap insertion rules; the per-kind
// request shapes live in the HTTP layer.
package timelines

import (
	"context"
	"time"

	"github.com/nodevault/custody-service/internal/apperr"
	"github.com/nodevault/custody-service/internal/app/storage"
	"github.com/nodevault/custody-service/internal/app/timeline"
	"github.com/nodevault/custody-service/pkg/logger"
)

// Service manages one kind of timeline entry.
type Service[E timeline.Entry] struct {
	entries storage.EntryStore[E]
	nodes   storage.NodeStore
	log     *logger.Logger
}

// New creates a service over the given entry store. Ownership of entries is
// resolved through the node store.
func New[E timeline.Entry](entries storage.EntryStore[E], nodes storage.NodeStore, log *logger.Logger) *Service[E] {
	return &Service[E]{entries: entries, nodes: nodes, log: log}
}

// Create inserts a new entry after verifying the caller owns the target
// node. Open-ended entries supersede the current one; closed ranges must
// not collide with anything.
func (s *Service[E]) Create(ctx context.Context, userID int64, entry E) (E, error) {
	var zero E
	if _, err := s.nodes.GetNode(ctx, entry.OwnerID(), userID, false); err != nil {
		return zero, err
	}
	created, err := timeline.Insert(ctx, s.entries, entry)
	if err != nil {
		return zero, err
	}
	s.log.WithFields(map[string]interface{}{
		"id":           created.EntryID(),
		"serverNodeId": created.OwnerID(),
	}).Debug("timeline entry created")
	return created, nil
}

// Get returns one entry scoped to the caller.
func (s *Service[E]) Get(ctx context.Context, userID, id int64) (E, error) {
	return s.entries.Get(ctx, id, userID)
}

// List returns the caller's entries, optionally filtered to one node,
// newest period first. page and perPage are optional but must be positive
// when either is present.
func (s *Service[E]) List(ctx context.Context, userID, ownerID int64, page, perPage int) ([]E, error) {
	var p *timeline.Page
	if page != 0 || perPage != 0 {
		var err error
		if p, err = timeline.NewPage(page, perPage); err != nil {
			return nil, err
		}
	}
	if ownerID != 0 {
		if _, err := s.nodes.GetNode(ctx, ownerID, userID, false); err != nil {
			return nil, err
		}
	}
	return s.entries.List(ctx, userID, ownerID, p)
}

// Update rewrites an entry's payload and period. The owning node cannot
// change; the new period is re-checked against every other entry.
func (s *Service[E]) Update(ctx context.Context, userID int64, entry E) (E, error) {
	var zero E
	existing, err := s.entries.Get(ctx, entry.EntryID(), userID)
	if err != nil {
		return zero, err
	}
	if entry.OwnerID() != existing.OwnerID() {
		return zero, apperr.InvalidArgument("serverNodeId cannot be changed")
	}
	return timeline.Update(ctx, s.entries, entry)
}

// Delete removes an entry scoped to the caller.
func (s *Service[E]) Delete(ctx context.Context, userID, id int64) error {
	if _, err := s.entries.Get(ctx, id, userID); err != nil {
		return err
	}
	return s.entries.Delete(ctx, id)
}

// CurrentAt projects the entry in effect for the node at the given instant.
func (s *Service[E]) CurrentAt(ctx context.Context, userID, ownerID int64, at time.Time) (E, bool, error) {
	var zero E
	if _, err := s.nodes.GetNode(ctx, ownerID, userID, false); err != nil {
		return zero, false, err
	}
	return timeline.CurrentAt(ctx, s.entries, ownerID, at)
}
