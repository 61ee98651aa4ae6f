package timelines

import (
	"context"
	"testing"
	"time"

	"github.com/nodevault/custody-service/internal/apperr"
	"github.com/nodevault/custody-service/internal/app/domain/node"
	"github.com/nodevault/custody-service/internal/app/storage/memory"
	"github.com/nodevault/custody-service/internal/app/timeline"
	"github.com/nodevault/custody-service/pkg/logger"
)

func newPowerService(t *testing.T) (*Service[node.PowerEntry], *memory.Store, node.ServerNode) {
	t.Helper()
	mem := memory.New()
	n, err := mem.CreateNode(context.Background(), node.ServerNode{UserID: 1, Name: "rig"})
	if err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	return New(mem.Powers(), mem, logger.NewDefault("timelines-test")), mem, n
}

func powerEntry(owner int64, wh float64, from time.Time, to *time.Time) node.PowerEntry {
	return node.PowerEntry{
		ServerNodeID: owner,
		Wh:           wh,
		Period:       timeline.Period{EffectiveFrom: from, EffectiveTo: to},
	}
}

func TestCreateChecksNodeOwnership(t *testing.T) {
	svc, _, n := newPowerService(t)
	ctx := context.Background()
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	if _, err := svc.Create(ctx, 1, powerEntry(n.ID, 500, from, nil)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create(ctx, 2, powerEntry(n.ID, 500, from.Add(time.Hour), nil)); !apperr.Is(err, apperr.CodeNotFound) {
		t.Fatalf("expected not_found for foreign node, got %v", err)
	}
	if _, err := svc.Create(ctx, 1, powerEntry(999, 500, from, nil)); !apperr.Is(err, apperr.CodeNotFound) {
		t.Fatalf("expected not_found for unknown node, got %v", err)
	}
}

func TestListPaginationValidation(t *testing.T) {
	svc, _, n := newPowerService(t)
	ctx := context.Background()

	// page without perPage (and vice versa) is rejected.
	if _, err := svc.List(ctx, 1, n.ID, 1, 0); !apperr.Is(err, apperr.CodeInvalidArgument) {
		t.Fatalf("expected invalid_argument for page without perPage, got %v", err)
	}
	if _, err := svc.List(ctx, 1, n.ID, 0, 10); !apperr.Is(err, apperr.CodeInvalidArgument) {
		t.Fatalf("expected invalid_argument for perPage without page, got %v", err)
	}
	if _, err := svc.List(ctx, 1, n.ID, -1, 10); !apperr.Is(err, apperr.CodeInvalidArgument) {
		t.Fatalf("expected invalid_argument for negative page, got %v", err)
	}
	// No pagination at all is fine.
	if _, err := svc.List(ctx, 1, n.ID, 0, 0); err != nil {
		t.Fatalf("List without pagination: %v", err)
	}
}

func TestUpdateKeepsOwner(t *testing.T) {
	svc, mem, n := newPowerService(t)
	ctx := context.Background()
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	created, err := svc.Create(ctx, 1, powerEntry(n.ID, 500, from, nil))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	other, err := mem.CreateNode(ctx, node.ServerNode{UserID: 1, Name: "rig-2"})
	if err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	moved := created
	moved.ServerNodeID = other.ID
	if _, err := svc.Update(ctx, 1, moved); !apperr.Is(err, apperr.CodeInvalidArgument) {
		t.Fatalf("expected invalid_argument moving entry between nodes, got %v", err)
	}

	created.Wh = 600
	updated, err := svc.Update(ctx, 1, created)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Wh != 600 {
		t.Fatalf("expected updated Wh 600, got %v", updated.Wh)
	}
}

func TestDeleteScopedToCaller(t *testing.T) {
	svc, _, n := newPowerService(t)
	ctx := context.Background()
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	created, err := svc.Create(ctx, 1, powerEntry(n.ID, 500, from, nil))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Delete(ctx, 2, created.ID); !apperr.Is(err, apperr.CodeNotFound) {
		t.Fatalf("expected not_found deleting foreign entry, got %v", err)
	}
	if err := svc.Delete(ctx, 1, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, 1, created.ID); !apperr.Is(err, apperr.CodeNotFound) {
		t.Fatalf("expected not_found after delete, got %v", err)
	}
}
