// Package postgres implements the storage interfaces on PostgreSQL through
// sqlx. Timeline writes run inside a transaction that locks the owning
// server node row, which serializes concurrent inserts per node.
package postgres

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/nodevault/custody-service/internal/apperr"
	"github.com/nodevault/custody-service/internal/app/domain/node"
	"github.com/nodevault/custody-service/internal/app/storage"
)

const uniqueViolation = "23505"

// Store implements every storage interface against one database handle.
type Store struct {
	db *sqlx.DB

	powers  *entryStore[node.PowerEntry]
	uptimes *entryStore[node.UptimeEntry]
	rates   *entryStore[node.EnergyRate]
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.NodeStore = (*Store)(nil)
var _ storage.CryptoStore = (*Store)(nil)
var _ storage.AddressStore = (*Store)(nil)
var _ storage.InflowStore = (*Store)(nil)

// New wraps an open database handle.
func New(db *sqlx.DB) *Store {
	return &Store{
		db: db,
		powers: &entryStore[node.PowerEntry]{
			db:    db,
			q:     db,
			table: "server_node_powers",
			cols:  "server_node_id, wh, effective_from, effective_to",
			vals:  ":server_node_id, :wh, :effective_from, :effective_to",
			set:   "wh = :wh, effective_from = :effective_from, effective_to = :effective_to",
			label: "power entry",
		},
		uptimes: &entryStore[node.UptimeEntry]{
			db:    db,
			q:     db,
			table: "server_node_uptimes",
			cols:  "server_node_id, daily_uptime_seconds, effective_from, effective_to",
			vals:  ":server_node_id, :daily_uptime_seconds, :effective_from, :effective_to",
			set:   "daily_uptime_seconds = :daily_uptime_seconds, effective_from = :effective_from, effective_to = :effective_to",
			label: "uptime entry",
		},
		rates: &entryStore[node.EnergyRate]{
			db:    db,
			q:     db,
			table: "energy_rates",
			cols:  "server_node_id, cost_per_kwh, currency, effective_from, effective_to",
			vals:  ":server_node_id, :cost_per_kwh, :currency, :effective_from, :effective_to",
			set:   "cost_per_kwh = :cost_per_kwh, currency = :currency, effective_from = :effective_from, effective_to = :effective_to",
			label: "energy rate",
		},
	}
}

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

// wrapErr maps backend failures into the apperr taxonomy. notFound is used
// for sql.ErrNoRows, conflict for unique violations.
func wrapErr(err error, notFound, conflict string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(notFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return apperr.Conflict(conflict)
	}
	return apperr.Storage("database query failed", err)
}
