// Package memory is an in-memory implementation of the storage interfaces.
// It is safe for concurrent use and is primarily intended for tests and
// local development.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nodevault/custody-service/internal/apperr"
	"github.com/nodevault/custody-service/internal/app/domain/custody"
	"github.com/nodevault/custody-service/internal/app/domain/node"
	"github.com/nodevault/custody-service/internal/app/domain/user"
	"github.com/nodevault/custody-service/internal/app/storage"
	"github.com/nodevault/custody-service/internal/app/timeline"
)

// Store holds every aggregate behind one mutex. Per-owner locking degrades
// to whole-store locking here, which trivially satisfies the timeline
// atomicity contract.
type Store struct {
	mu     sync.Mutex
	nextID int64

	users     map[int64]user.User
	nodes     map[int64]node.ServerNode
	cryptos   map[int64]custody.Crypto
	addresses map[int64]custody.Address
	inflows   map[int64]custody.Inflow

	powers  *entryTable[node.PowerEntry]
	uptimes *entryTable[node.UptimeEntry]
	rates   *entryTable[node.EnergyRate]
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.NodeStore = (*Store)(nil)
var _ storage.CryptoStore = (*Store)(nil)
var _ storage.AddressStore = (*Store)(nil)
var _ storage.InflowStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	s := &Store{
		nextID:    1,
		users:     make(map[int64]user.User),
		nodes:     make(map[int64]node.ServerNode),
		cryptos:   make(map[int64]custody.Crypto),
		addresses: make(map[int64]custody.Address),
		inflows:   make(map[int64]custody.Inflow),
	}
	s.powers = &entryTable[node.PowerEntry]{
		parent:  s,
		entries: make(map[int64]node.PowerEntry),
		label:   "power entry",
		withID: func(e node.PowerEntry, id int64, now time.Time) node.PowerEntry {
			e.ID, e.CreatedAt = id, now
			return e
		},
		withPeriod: func(e node.PowerEntry, p timeline.Period) node.PowerEntry {
			e.Period = p
			return e
		},
	}
	s.uptimes = &entryTable[node.UptimeEntry]{
		parent:  s,
		entries: make(map[int64]node.UptimeEntry),
		label:   "uptime entry",
		withID: func(e node.UptimeEntry, id int64, now time.Time) node.UptimeEntry {
			e.ID, e.CreatedAt = id, now
			return e
		},
		withPeriod: func(e node.UptimeEntry, p timeline.Period) node.UptimeEntry {
			e.Period = p
			return e
		},
	}
	s.rates = &entryTable[node.EnergyRate]{
		parent:  s,
		entries: make(map[int64]node.EnergyRate),
		label:   "energy rate",
		withID: func(e node.EnergyRate, id int64, now time.Time) node.EnergyRate {
			e.ID, e.CreatedAt = id, now
			return e
		},
		withPeriod: func(e node.EnergyRate, p timeline.Period) node.EnergyRate {
			e.Period = p
			return e
		},
	}
	return s
}

// Powers returns the power timeline store.
func (s *Store) Powers() storage.EntryStore[node.PowerEntry] { return s.powers }

// Uptimes returns the uptime timeline store.
func (s *Store) Uptimes() storage.EntryStore[node.UptimeEntry] { return s.uptimes }

// Rates returns the energy-rate timeline store.
func (s *Store) Rates() storage.EntryStore[node.EnergyRate] { return s.rates }

// Stores bundles this store into the application's dependency set.
func (s *Store) Stores() storage.Stores {
	return storage.Stores{
		Users:     s,
		Nodes:     s,
		Powers:    s.powers,
		Uptimes:   s.uptimes,
		Rates:     s.rates,
		Cryptos:   s,
		Addresses: s,
		Inflows:   s,
	}
}

func (s *Store) nextIDLocked() int64 {
	id := s.nextID
	s.nextID++
	return id
}

// ownedNodeLocked resolves a node by id scoped to userID, hiding
// soft-deleted nodes unless asked otherwise.
func (s *Store) ownedNodeLocked(id, userID int64, includeDeleted bool) (node.ServerNode, bool) {
	n, ok := s.nodes[id]
	if !ok || n.UserID != userID {
		return node.ServerNode{}, false
	}
	if n.Deleted() && !includeDeleted {
		return node.ServerNode{}, false
	}
	return n, true
}

// UserStore --------------------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return user.User{}, apperr.Conflict("email already registered")
		}
	}
	u.ID = s.nextIDLocked()
	u.CreatedAt = time.Now().UTC()
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, apperr.NotFound("user not found")
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return user.User{}, apperr.NotFound("user not found")
}

func (s *Store) GetUserByVerificationToken(_ context.Context, token string) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.VerificationToken != nil && *u.VerificationToken == token {
			return u, nil
		}
	}
	return user.User{}, apperr.NotFound("user not found")
}

func (s *Store) GetUserByResetToken(_ context.Context, token string) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.ResetToken != nil && *u.ResetToken == token {
			return u, nil
		}
	}
	return user.User{}, apperr.NotFound("user not found")
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[u.ID]
	if !ok {
		return user.User{}, apperr.NotFound("user not found")
	}
	u.CreatedAt = existing.CreatedAt
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return apperr.NotFound("user not found")
	}
	delete(s.users, id)
	return nil
}

func (s *Store) PurgeExpiredTokens(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	for id, u := range s.users {
		changed := false
		if u.VerificationExpires != nil && u.VerificationExpires.Before(now) {
			u.VerificationToken, u.VerificationExpires = nil, nil
			changed = true
		}
		if u.ResetExpires != nil && u.ResetExpires.Before(now) {
			u.ResetToken, u.ResetExpires = nil, nil
			changed = true
		}
		if changed {
			s.users[id] = u
			purged++
		}
	}
	return purged, nil
}

// NodeStore --------------------------------------------------------------

func (s *Store) CreateNode(_ context.Context, n node.ServerNode) (node.ServerNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n.ID = s.nextIDLocked()
	n.CreatedAt = time.Now().UTC()
	n.DeletedAt = nil
	s.nodes[n.ID] = n
	return n, nil
}

func (s *Store) GetNode(_ context.Context, id, userID int64, includeDeleted bool) (node.ServerNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.ownedNodeLocked(id, userID, includeDeleted)
	if !ok {
		return node.ServerNode{}, apperr.NotFound("server node not found")
	}
	return n, nil
}

func (s *Store) ListNodes(_ context.Context, userID int64, deleted bool) ([]node.ServerNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []node.ServerNode
	for _, n := range s.nodes {
		if n.UserID == userID && n.Deleted() == deleted {
			result = append(result, n)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Store) UpdateNode(_ context.Context, n node.ServerNode) (node.ServerNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.nodes[n.ID]
	if !ok {
		return node.ServerNode{}, apperr.NotFound("server node not found")
	}
	n.UserID = existing.UserID
	n.CreatedAt = existing.CreatedAt
	n.DeletedAt = existing.DeletedAt
	s.nodes[n.ID] = n
	return n, nil
}

func (s *Store) SetNodeDeleted(_ context.Context, id int64, deletedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return apperr.NotFound("server node not found")
	}
	n.DeletedAt = deletedAt
	s.nodes[id] = n
	return nil
}

// CryptoStore ------------------------------------------------------------

func (s *Store) CreateCrypto(_ context.Context, c custody.Crypto) (custody.Crypto, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.ID = s.nextIDLocked()
	c.CreatedAt = time.Now().UTC()
	s.cryptos[c.ID] = c
	return c, nil
}

func (s *Store) GetCrypto(_ context.Context, id int64) (custody.Crypto, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cryptos[id]
	if !ok {
		return custody.Crypto{}, apperr.NotFound("crypto not found")
	}
	return c, nil
}

func (s *Store) ListCryptos(_ context.Context) ([]custody.Crypto, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]custody.Crypto, 0, len(s.cryptos))
	for _, c := range s.cryptos {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		return strings.ToLower(result[i].Name) < strings.ToLower(result[j].Name)
	})
	return result, nil
}

func (s *Store) UpdateCrypto(_ context.Context, c custody.Crypto) (custody.Crypto, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.cryptos[c.ID]
	if !ok {
		return custody.Crypto{}, apperr.NotFound("crypto not found")
	}
	c.CreatedAt = existing.CreatedAt
	s.cryptos[c.ID] = c
	return c, nil
}

func (s *Store) DeleteCrypto(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cryptos[id]; !ok {
		return apperr.NotFound("crypto not found")
	}
	delete(s.cryptos, id)
	return nil
}

// AddressStore -----------------------------------------------------------

func (s *Store) CreateAddress(_ context.Context, a custody.Address) (custody.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.addresses {
		if existing.UserID == a.UserID && existing.Address == a.Address {
			return custody.Address{}, apperr.Conflict("address already exists")
		}
	}
	a.ID = s.nextIDLocked()
	a.CreatedAt = time.Now().UTC()
	a.Crypto = nil
	s.addresses[a.ID] = a
	return s.hydrateAddressLocked(a), nil
}

func (s *Store) GetAddress(_ context.Context, id, userID int64) (custody.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.addresses[id]
	if !ok || a.UserID != userID {
		return custody.Address{}, apperr.NotFound("address not found")
	}
	return s.hydrateAddressLocked(a), nil
}

func (s *Store) ListAddresses(_ context.Context, userID int64) ([]custody.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []custody.Address
	for _, a := range s.addresses {
		if a.UserID == userID {
			result = append(result, s.hydrateAddressLocked(a))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Store) UpdateAddress(_ context.Context, a custody.Address) (custody.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.addresses[a.ID]
	if !ok {
		return custody.Address{}, apperr.NotFound("address not found")
	}
	a.UserID = existing.UserID
	a.CryptoID = existing.CryptoID
	a.Address = existing.Address
	a.CreatedAt = existing.CreatedAt
	a.Crypto = nil
	s.addresses[a.ID] = a
	return s.hydrateAddressLocked(a), nil
}

func (s *Store) DeleteAddress(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.addresses[id]; !ok {
		return apperr.NotFound("address not found")
	}
	delete(s.addresses, id)
	return nil
}

func (s *Store) hydrateAddressLocked(a custody.Address) custody.Address {
	if c, ok := s.cryptos[a.CryptoID]; ok {
		crypto := c
		a.Crypto = &crypto
	}
	return a
}

// InflowStore ------------------------------------------------------------

func (s *Store) CreateInflow(_ context.Context, in custody.Inflow) (custody.Inflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if in.TxHash != "" {
		for _, existing := range s.inflows {
			if existing.TxHash == in.TxHash {
				return custody.Inflow{}, apperr.Conflict("inflow with this txHash already exists")
			}
		}
	}
	in.ID = s.nextIDLocked()
	now := time.Now().UTC()
	in.CreatedAt = now
	if in.DetectedAt.IsZero() {
		in.DetectedAt = now
	}
	in.Address = nil
	s.inflows[in.ID] = in
	return s.hydrateInflowLocked(in), nil
}

func (s *Store) GetInflow(_ context.Context, id, userID int64) (custody.Inflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	in, ok := s.inflows[id]
	if !ok {
		return custody.Inflow{}, apperr.NotFound("inflow not found")
	}
	if a, ok := s.addresses[in.AddressID]; !ok || a.UserID != userID {
		return custody.Inflow{}, apperr.NotFound("inflow not found")
	}
	return s.hydrateInflowLocked(in), nil
}

func (s *Store) ListInflows(_ context.Context, userID, addressID int64) ([]custody.Inflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []custody.Inflow
	for _, in := range s.inflows {
		a, ok := s.addresses[in.AddressID]
		if !ok || a.UserID != userID {
			continue
		}
		if addressID != 0 && in.AddressID != addressID {
			continue
		}
		result = append(result, s.hydrateInflowLocked(in))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].DetectedAt.After(result[j].DetectedAt)
	})
	return result, nil
}

func (s *Store) UpdateInflow(_ context.Context, in custody.Inflow) (custody.Inflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.inflows[in.ID]
	if !ok {
		return custody.Inflow{}, apperr.NotFound("inflow not found")
	}
	in.AddressID = existing.AddressID
	in.TxHash = existing.TxHash
	in.CreatedAt = existing.CreatedAt
	in.Address = nil
	s.inflows[in.ID] = in
	return s.hydrateInflowLocked(in), nil
}

func (s *Store) DeleteInflow(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.inflows[id]; !ok {
		return apperr.NotFound("inflow not found")
	}
	delete(s.inflows, id)
	return nil
}

func (s *Store) hydrateInflowLocked(in custody.Inflow) custody.Inflow {
	if a, ok := s.addresses[in.AddressID]; ok {
		addr := s.hydrateAddressLocked(a)
		in.Address = &addr
	}
	return in
}
