package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nodevault/custody-service/internal/apperr"
	"github.com/nodevault/custody-service/internal/app/domain/custody"
	"github.com/nodevault/custody-service/internal/app/domain/node"
	"github.com/nodevault/custody-service/internal/app/domain/user"
	"github.com/nodevault/custody-service/internal/app/timeline"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return parsed
}

func seedNode(t *testing.T, s *Store, userID int64) node.ServerNode {
	t.Helper()
	n, err := s.CreateNode(context.Background(), node.ServerNode{UserID: userID, Name: "rig"})
	if err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	return n
}

func TestUserUniqueEmail(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.CreateUser(ctx, user.User{Name: "a", Email: "A@example.com"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	_, err := s.CreateUser(ctx, user.User{Name: "b", Email: "a@example.com"})
	if !apperr.Is(err, apperr.CodeConflict) {
		t.Fatalf("expected conflict for duplicate email, got %v", err)
	}
}

func TestPurgeExpiredTokens(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	expired := now.Add(-time.Hour)
	valid := now.Add(time.Hour)
	token := "tok"

	u1, _ := s.CreateUser(ctx, user.User{Name: "a", Email: "a@example.com"})
	u1.VerificationToken, u1.VerificationExpires = &token, &expired
	if _, err := s.UpdateUser(ctx, u1); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	u2, _ := s.CreateUser(ctx, user.User{Name: "b", Email: "b@example.com"})
	u2.ResetToken, u2.ResetExpires = &token, &valid
	if _, err := s.UpdateUser(ctx, u2); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}

	purged, err := s.PurgeExpiredTokens(ctx, now)
	if err != nil {
		t.Fatalf("PurgeExpiredTokens: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged, got %d", purged)
	}
	got, _ := s.GetUser(ctx, u1.ID)
	if got.VerificationToken != nil {
		t.Fatal("expired verification token not cleared")
	}
	kept, _ := s.GetUser(ctx, u2.ID)
	if kept.ResetToken == nil {
		t.Fatal("valid reset token was cleared")
	}
}

func TestEntryGetScopedToOwnerAndDeletion(t *testing.T) {
	s := New()
	ctx := context.Background()
	n := seedNode(t, s, 1)

	created, err := s.Powers().Create(ctx, node.PowerEntry{
		ServerNodeID: n.ID,
		Wh:           500,
		Period:       timeline.Period{EffectiveFrom: mustTime(t, "2024-01-01T00:00:00Z")},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := s.Powers().Get(ctx, created.ID, 1); err != nil {
		t.Fatalf("owner Get: %v", err)
	}
	if _, err := s.Powers().Get(ctx, created.ID, 2); !apperr.Is(err, apperr.CodeNotFound) {
		t.Fatalf("expected not_found for other user, got %v", err)
	}

	deletedAt := time.Now().UTC()
	if err := s.SetNodeDeleted(ctx, n.ID, &deletedAt); err != nil {
		t.Fatalf("SetNodeDeleted: %v", err)
	}
	if _, err := s.Powers().Get(ctx, created.ID, 1); !apperr.Is(err, apperr.CodeNotFound) {
		t.Fatalf("expected not_found after soft delete, got %v", err)
	}
}

func TestEntryListOrderingAndPagination(t *testing.T) {
	s := New()
	ctx := context.Background()
	n := seedNode(t, s, 1)

	mk := func(from string, to *time.Time) {
		_, err := s.Powers().Create(ctx, node.PowerEntry{
			ServerNodeID: n.ID,
			Wh:           1,
			Period:       timeline.Period{EffectiveFrom: mustTime(t, from), EffectiveTo: to},
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	jan := mustTime(t, "2024-01-31T00:00:00Z")
	mar := mustTime(t, "2024-03-31T00:00:00Z")
	mk("2024-01-01T00:00:00Z", &jan)
	mk("2024-04-01T00:00:00Z", nil) // open entry sorts first
	mk("2024-03-01T00:00:00Z", &mar)

	all, err := s.Powers().List(ctx, 1, n.ID, nil)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	if !all[0].Open() {
		t.Fatal("open entry should sort first")
	}
	if !all[1].EffectiveTo.After(*all[2].EffectiveTo) {
		t.Fatal("closed entries should sort by effectiveTo descending")
	}

	page := &timeline.Page{Offset: 1, Limit: 1}
	paged, err := s.Powers().List(ctx, 1, n.ID, page)
	if err != nil {
		t.Fatalf("List paged: %v", err)
	}
	if len(paged) != 1 || paged[0].ID != all[1].ID {
		t.Fatalf("unexpected page slice: %+v", paged)
	}

	empty, err := s.Powers().List(ctx, 1, n.ID, &timeline.Page{Offset: 10, Limit: 5})
	if err != nil {
		t.Fatalf("List beyond end: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty page, got %d entries", len(empty))
	}
}

func TestEntryCurrentForAndListFor(t *testing.T) {
	s := New()
	ctx := context.Background()
	n1 := seedNode(t, s, 1)
	n2 := seedNode(t, s, 1)

	_, err := s.Rates().Create(ctx, node.EnergyRate{
		ServerNodeID: n1.ID,
		CostPerKwh:   decimal.NewFromFloat(0.25),
		Currency:     "EUR",
		Period:       timeline.Period{EffectiveFrom: mustTime(t, "2024-01-01T00:00:00Z")},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	current, err := s.Rates().CurrentFor(ctx, []int64{n1.ID, n2.ID}, mustTime(t, "2024-06-01T00:00:00Z"))
	if err != nil {
		t.Fatalf("CurrentFor: %v", err)
	}
	if _, ok := current[n1.ID]; !ok {
		t.Fatal("expected current rate for first node")
	}
	if _, ok := current[n2.ID]; ok {
		t.Fatal("second node has no rates")
	}

	lists, err := s.Rates().ListFor(ctx, []int64{n1.ID, n2.ID})
	if err != nil {
		t.Fatalf("ListFor: %v", err)
	}
	if len(lists[n1.ID]) != 1 {
		t.Fatalf("expected 1 rate for first node, got %d", len(lists[n1.ID]))
	}
}

func TestAddressAndInflowUniqueness(t *testing.T) {
	s := New()
	ctx := context.Background()

	c, err := s.CreateCrypto(ctx, custody.Crypto{Name: "Bitcoin", Symbol: "BTC"})
	if err != nil {
		t.Fatalf("CreateCrypto: %v", err)
	}
	a, err := s.CreateAddress(ctx, custody.Address{UserID: 1, CryptoID: c.ID, Address: "bc1qxyz"})
	if err != nil {
		t.Fatalf("CreateAddress: %v", err)
	}
	if a.Crypto == nil || a.Crypto.Symbol != "BTC" {
		t.Fatalf("expected hydrated crypto, got %+v", a.Crypto)
	}

	if _, err := s.CreateAddress(ctx, custody.Address{UserID: 1, CryptoID: c.ID, Address: "bc1qxyz"}); !apperr.Is(err, apperr.CodeConflict) {
		t.Fatalf("expected conflict for duplicate (user, address), got %v", err)
	}
	// Same address under another user is fine.
	if _, err := s.CreateAddress(ctx, custody.Address{UserID: 2, CryptoID: c.ID, Address: "bc1qxyz"}); err != nil {
		t.Fatalf("CreateAddress other user: %v", err)
	}

	in, err := s.CreateInflow(ctx, custody.Inflow{
		AddressID: a.ID,
		TxHash:    "0xabc",
		Amount:    decimal.NewFromInt(1),
	})
	if err != nil {
		t.Fatalf("CreateInflow: %v", err)
	}
	if in.Address == nil || in.Address.ID != a.ID {
		t.Fatalf("expected hydrated address, got %+v", in.Address)
	}
	if _, err := s.CreateInflow(ctx, custody.Inflow{AddressID: a.ID, TxHash: "0xabc", Amount: decimal.NewFromInt(2)}); !apperr.Is(err, apperr.CodeConflict) {
		t.Fatalf("expected conflict for duplicate txHash, got %v", err)
	}

	// Inflow reads are scoped through the owning address.
	if _, err := s.GetInflow(ctx, in.ID, 2); !apperr.Is(err, apperr.CodeNotFound) {
		t.Fatalf("expected not_found for other user, got %v", err)
	}
}

func TestWithOwnerLockRequiresLiveNode(t *testing.T) {
	s := New()
	ctx := context.Background()
	n := seedNode(t, s, 1)

	callback := func(ctx context.Context, view timeline.Store[node.PowerEntry]) error {
		return nil
	}

	if err := s.Powers().WithOwnerLock(ctx, n.ID, callback); err != nil {
		t.Fatalf("WithOwnerLock: %v", err)
	}
	if err := s.Powers().WithOwnerLock(ctx, n.ID+1, callback); !apperr.Is(err, apperr.CodeNotFound) {
		t.Fatalf("expected not_found for unknown node, got %v", err)
	}

	deletedAt := time.Now().UTC()
	if err := s.SetNodeDeleted(ctx, n.ID, &deletedAt); err != nil {
		t.Fatalf("SetNodeDeleted: %v", err)
	}
	if err := s.Powers().WithOwnerLock(ctx, n.ID, callback); !apperr.Is(err, apperr.CodeNotFound) {
		t.Fatalf("expected not_found for deleted node, got %v", err)
	}
}
