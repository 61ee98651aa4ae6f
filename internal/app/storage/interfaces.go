// Package storage declares the persistence interfaces consumed by the
// domain services. Implementations translate their backend failures into the
// apperr taxonomy: missing or unowned records surface as not_found,
// uniqueness violations as conflict, anything unexpected as storage_error.
package storage

import (
	"context"
	"time"

	"github.com/nodevault/custody-service/internal/app/domain/custody"
	"github.com/nodevault/custody-service/internal/app/domain/node"
	"github.com/nodevault/custody-service/internal/app/domain/user"
	"github.com/nodevault/custody-service/internal/app/timeline"
)

// UserStore persists accounts and their verification/reset tokens.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id int64) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	GetUserByVerificationToken(ctx context.Context, token string) (user.User, error)
	GetUserByResetToken(ctx context.Context, token string) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	DeleteUser(ctx context.Context, id int64) error
	PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// NodeStore persists server nodes. GetNode performs the ownership capability
// check: a node belonging to another user is indistinguishable from a
// missing one.
type NodeStore interface {
	CreateNode(ctx context.Context, n node.ServerNode) (node.ServerNode, error)
	GetNode(ctx context.Context, id, userID int64, includeDeleted bool) (node.ServerNode, error)
	ListNodes(ctx context.Context, userID int64, deleted bool) ([]node.ServerNode, error)
	UpdateNode(ctx context.Context, n node.ServerNode) (node.ServerNode, error)
	SetNodeDeleted(ctx context.Context, id int64, deletedAt *time.Time) error
}

// EntryStore persists one kind of timeline entry on top of the core
// timeline.Store contract. Reads are scoped to the owning user through the
// node relation; entries of soft-deleted nodes stay hidden.
type EntryStore[E timeline.Entry] interface {
	timeline.Store[E]

	Get(ctx context.Context, id, userID int64) (E, error)
	List(ctx context.Context, userID, ownerID int64, page *timeline.Page) ([]E, error)
	Delete(ctx context.Context, id int64) error

	// CurrentFor batch-resolves the entry in effect at the given instant
	// for each owner; owners without one are absent from the result.
	CurrentFor(ctx context.Context, ownerIDs []int64, at time.Time) (map[int64]E, error)

	// ListFor returns each owner's full timeline, newest period first.
	ListFor(ctx context.Context, ownerIDs []int64) (map[int64][]E, error)
}

// CryptoStore persists the global cryptocurrency catalog.
type CryptoStore interface {
	CreateCrypto(ctx context.Context, c custody.Crypto) (custody.Crypto, error)
	GetCrypto(ctx context.Context, id int64) (custody.Crypto, error)
	ListCryptos(ctx context.Context) ([]custody.Crypto, error)
	UpdateCrypto(ctx context.Context, c custody.Crypto) (custody.Crypto, error)
	DeleteCrypto(ctx context.Context, id int64) error
}

// AddressStore persists user wallet addresses.
type AddressStore interface {
	CreateAddress(ctx context.Context, a custody.Address) (custody.Address, error)
	GetAddress(ctx context.Context, id, userID int64) (custody.Address, error)
	ListAddresses(ctx context.Context, userID int64) ([]custody.Address, error)
	UpdateAddress(ctx context.Context, a custody.Address) (custody.Address, error)
	DeleteAddress(ctx context.Context, id int64) error
}

// InflowStore persists detected inflow transactions, scoped to the caller
// through the owning address.
type InflowStore interface {
	CreateInflow(ctx context.Context, in custody.Inflow) (custody.Inflow, error)
	GetInflow(ctx context.Context, id, userID int64) (custody.Inflow, error)
	ListInflows(ctx context.Context, userID, addressID int64) ([]custody.Inflow, error)
	UpdateInflow(ctx context.Context, in custody.Inflow) (custody.Inflow, error)
	DeleteInflow(ctx context.Context, id int64) error
}

// Stores bundles every persistence dependency the application needs.
type Stores struct {
	Users     UserStore
	Nodes     NodeStore
	Powers    EntryStore[node.PowerEntry]
	Uptimes   EntryStore[node.UptimeEntry]
	Rates     EntryStore[node.EnergyRate]
	Cryptos   CryptoStore
	Addresses AddressStore
	Inflows   InflowStore
}
