package timeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodevault/custody-service/internal/apperr"
	"github.com/nodevault/custody-service/internal/app/domain/node"
	"github.com/nodevault/custody-service/internal/app/storage/memory"
	"github.com/nodevault/custody-service/internal/app/timeline"
)

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func tsp(s string) *time.Time {
	t := ts(s)
	return &t
}

func powerStore(t *testing.T) timeline.Store[node.PowerEntry] {
	t.Helper()
	mem := memory.New()
	// Owner ids 1 and 2, matching the entries the tests insert.
	for _, name := range []string{"rig-1", "rig-2"} {
		if _, err := mem.CreateNode(context.Background(), node.ServerNode{UserID: 1, Name: name}); err != nil {
			t.Fatalf("CreateNode: %v", err)
		}
	}
	return mem.Powers()
}

func entry(owner int64, wh float64, from string, to *time.Time) node.PowerEntry {
	return node.PowerEntry{
		ServerNodeID: owner,
		Wh:           wh,
		Period:       timeline.Period{EffectiveFrom: ts(from), EffectiveTo: to},
	}
}

func TestPeriodContains(t *testing.T) {
	open := timeline.Period{EffectiveFrom: ts("2024-01-01T00:00:00Z")}
	assert.True(t, open.Contains(ts("2024-01-01T00:00:00Z")))
	assert.True(t, open.Contains(ts("2030-06-01T00:00:00Z")))
	assert.False(t, open.Contains(ts("2023-12-31T23:59:59Z")))

	closed := timeline.Period{
		EffectiveFrom: ts("2024-01-01T00:00:00Z"),
		EffectiveTo:   tsp("2024-02-01T00:00:00Z"),
	}
	assert.True(t, closed.Contains(ts("2024-01-15T00:00:00Z")))
	assert.True(t, closed.Contains(ts("2024-02-01T00:00:00Z")))
	assert.False(t, closed.Contains(ts("2024-02-01T00:00:00.001Z")))
}

func TestPeriodValidate(t *testing.T) {
	bad := timeline.Period{
		EffectiveFrom: ts("2024-02-01T00:00:00Z"),
		EffectiveTo:   tsp("2024-01-01T00:00:00Z"),
	}
	err := bad.Validate()
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidRange))

	equal := timeline.Period{
		EffectiveFrom: ts("2024-01-01T00:00:00Z"),
		EffectiveTo:   tsp("2024-01-01T00:00:00Z"),
	}
	assert.Error(t, equal.Validate())

	assert.NoError(t, timeline.Period{EffectiveFrom: ts("2024-01-01T00:00:00Z")}.Validate())
}

func TestNewPage(t *testing.T) {
	p, err := timeline.NewPage(2, 25)
	require.NoError(t, err)
	assert.Equal(t, 25, p.Offset)
	assert.Equal(t, 25, p.Limit)

	for _, pair := range [][2]int{{0, 10}, {1, 0}, {-1, 10}, {1, -5}} {
		_, err := timeline.NewPage(pair[0], pair[1])
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))
	}
}

func TestInsertOpenAutoClosesPredecessor(t *testing.T) {
	ctx := context.Background()
	store := powerStore(t)

	first, err := timeline.Insert(ctx, store, entry(1, 500, "2024-01-01T00:00:00Z", nil))
	require.NoError(t, err)
	require.True(t, first.Open())

	second, err := timeline.Insert(ctx, store, entry(1, 750, "2024-03-01T00:00:00Z", nil))
	require.NoError(t, err)
	assert.True(t, second.Open())

	prev, found, err := store.FindAt(ctx, 1, ts("2024-02-01T00:00:00Z"), 0)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, first.ID, prev.ID)
	require.NotNil(t, prev.EffectiveTo)
	assert.Equal(t, ts("2024-03-01T00:00:00Z").Add(-time.Millisecond), prev.EffectiveTo.UTC())

	current, found, err := timeline.CurrentAt(ctx, store, 1, ts("2024-03-02T00:00:00Z"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, second.ID, current.ID)
}

func TestInsertOpenRejectsNonAdvancingStart(t *testing.T) {
	ctx := context.Background()
	store := powerStore(t)

	_, err := timeline.Insert(ctx, store, entry(1, 500, "2024-03-01T00:00:00Z", nil))
	require.NoError(t, err)

	// Same start as the open period.
	_, err = timeline.Insert(ctx, store, entry(1, 750, "2024-03-01T00:00:00Z", nil))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeOverlapConflict))

	// Start before the open period's start.
	_, err = timeline.Insert(ctx, store, entry(1, 750, "2024-02-01T00:00:00Z", nil))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeOverlapConflict))
}

func TestInsertOpenRejectsEngulfingClosedEntry(t *testing.T) {
	ctx := context.Background()
	store := powerStore(t)

	_, err := timeline.Insert(ctx, store,
		entry(1, 500, "2024-03-01T00:00:00Z", tsp("2024-04-01T00:00:00Z")))
	require.NoError(t, err)

	// Open insert starting before the closed entry would swallow it.
	_, err = timeline.Insert(ctx, store, entry(1, 750, "2024-01-01T00:00:00Z", nil))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeOverlapConflict))
}

func TestInsertOpenClosesPredecessorEndingAtStart(t *testing.T) {
	ctx := context.Background()
	store := powerStore(t)

	first, err := timeline.Insert(ctx, store,
		entry(1, 500, "2024-01-01T00:00:00Z", tsp("2024-02-01T00:00:00Z")))
	require.NoError(t, err)

	// Both bounds are inclusive, so a predecessor ending exactly at the new
	// start shares that instant and must be pulled back.
	second, err := timeline.Insert(ctx, store, entry(1, 750, "2024-02-01T00:00:00Z", nil))
	require.NoError(t, err)

	prev, found, err := store.FindAt(ctx, 1, ts("2024-01-15T00:00:00Z"), 0)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, first.ID, prev.ID)
	require.NotNil(t, prev.EffectiveTo)
	assert.Equal(t, ts("2024-02-01T00:00:00Z").Add(-time.Millisecond), prev.EffectiveTo.UTC())

	current, found, err := store.FindAt(ctx, 1, ts("2024-02-01T00:00:00Z"), 0)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, second.ID, current.ID)
}

func TestInsertClosedRejectsAnyCollision(t *testing.T) {
	ctx := context.Background()
	store := powerStore(t)

	_, err := timeline.Insert(ctx, store,
		entry(1, 500, "2024-01-01T00:00:00Z", tsp("2024-02-01T00:00:00Z")))
	require.NoError(t, err)

	// Overlapping closed range.
	_, err = timeline.Insert(ctx, store,
		entry(1, 600, "2024-01-15T00:00:00Z", tsp("2024-03-01T00:00:00Z")))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeOverlapConflict))

	// Disjoint closed range is fine.
	_, err = timeline.Insert(ctx, store,
		entry(1, 600, "2024-02-02T00:00:00Z", tsp("2024-03-01T00:00:00Z")))
	require.NoError(t, err)
}

func TestInsertIsolatesOwners(t *testing.T) {
	ctx := context.Background()
	store := powerStore(t)

	_, err := timeline.Insert(ctx, store, entry(1, 500, "2024-01-01T00:00:00Z", nil))
	require.NoError(t, err)

	// Identical period on another node must not conflict.
	other, err := timeline.Insert(ctx, store, entry(2, 900, "2024-01-01T00:00:00Z", nil))
	require.NoError(t, err)
	assert.True(t, other.Open())

	current, found, err := timeline.CurrentAt(ctx, store, 1, ts("2024-06-01T00:00:00Z"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, float64(500), current.Wh)
}

func TestInsertRejectsInvalidRange(t *testing.T) {
	ctx := context.Background()
	store := powerStore(t)

	_, err := timeline.Insert(ctx, store,
		entry(1, 500, "2024-02-01T00:00:00Z", tsp("2024-01-01T00:00:00Z")))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidRange))
}

func TestUpdateExcludesSelfFromOverlapCheck(t *testing.T) {
	ctx := context.Background()
	store := powerStore(t)

	created, err := timeline.Insert(ctx, store,
		entry(1, 500, "2024-01-01T00:00:00Z", tsp("2024-02-01T00:00:00Z")))
	require.NoError(t, err)

	// Widening the entry over its own footprint must succeed.
	created.Wh = 550
	created.EffectiveTo = tsp("2024-02-15T00:00:00Z")
	updated, err := timeline.Update(ctx, store, created)
	require.NoError(t, err)
	assert.Equal(t, float64(550), updated.Wh)
	assert.Equal(t, ts("2024-02-15T00:00:00Z"), updated.EffectiveTo.UTC())
}

func TestUpdateRejectsCollisionWithOtherEntry(t *testing.T) {
	ctx := context.Background()
	store := powerStore(t)

	first, err := timeline.Insert(ctx, store,
		entry(1, 500, "2024-01-01T00:00:00Z", tsp("2024-02-01T00:00:00Z")))
	require.NoError(t, err)
	_, err = timeline.Insert(ctx, store,
		entry(1, 600, "2024-03-01T00:00:00Z", tsp("2024-04-01T00:00:00Z")))
	require.NoError(t, err)

	first.EffectiveTo = tsp("2024-03-15T00:00:00Z")
	_, err = timeline.Update(ctx, store, first)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeOverlapConflict))
}

func TestCurrentAtBetweenPeriods(t *testing.T) {
	ctx := context.Background()
	store := powerStore(t)

	_, err := timeline.Insert(ctx, store,
		entry(1, 500, "2024-01-01T00:00:00Z", tsp("2024-02-01T00:00:00Z")))
	require.NoError(t, err)
	_, err = timeline.Insert(ctx, store,
		entry(1, 600, "2024-03-01T00:00:00Z", nil))
	require.NoError(t, err)

	// Gap between the two periods: nothing in effect.
	_, found, err := timeline.CurrentAt(ctx, store, 1, ts("2024-02-15T00:00:00Z"))
	require.NoError(t, err)
	assert.False(t, found)

	// Unknown owner: nothing in effect, no error.
	_, found, err = timeline.CurrentAt(ctx, store, 99, ts("2024-02-15T00:00:00Z"))
	require.NoError(t, err)
	assert.False(t, found)
}
