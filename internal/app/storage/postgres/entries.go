package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/nodevault/custody-service/internal/apperr"
	"github.com/nodevault/custody-service/internal/app/storage"
	"github.com/nodevault/custody-service/internal/app/timeline"
)

// entryStore backs one timeline table. The three tables share the owner
// column and the period columns, so the queries are templated over the
// table name and the per-kind value columns.
type entryStore[E timeline.Entry] struct {
	db *sqlx.DB
	q  sqlx.ExtContext

	table string
	cols  string
	vals  string
	set   string
	label string
}

var _ storage.EntryStore[timeline.Entry] = (*entryStore[timeline.Entry])(nil)

func (t *entryStore[E]) FindAt(ctx context.Context, ownerID int64, at time.Time, excludeID int64) (E, bool, error) {
	var entry E
	query := fmt.Sprintf(`
		SELECT * FROM %s
		WHERE server_node_id = $1
		  AND effective_from <= $2
		  AND (effective_to IS NULL OR effective_to >= $2)
		  AND id <> $3
		ORDER BY effective_from DESC
		LIMIT 1`, t.table)
	err := sqlx.GetContext(ctx, t.q, &entry, query, ownerID, at, excludeID)
	if errors.Is(err, sql.ErrNoRows) {
		return entry, false, nil
	}
	if err != nil {
		return entry, false, apperr.Storage("database query failed", err)
	}
	return entry, true, nil
}

func (t *entryStore[E]) FindOverlap(ctx context.Context, ownerID int64, from time.Time, to *time.Time, excludeID int64) (E, bool, error) {
	var (
		entry E
		query string
		args  []any
	)
	if to == nil {
		query = fmt.Sprintf(`
			SELECT * FROM %s
			WHERE server_node_id = $1
			  AND (effective_to IS NULL OR effective_to >= $2)
			  AND id <> $3
			ORDER BY effective_from DESC
			LIMIT 1`, t.table)
		args = []any{ownerID, from, excludeID}
	} else {
		query = fmt.Sprintf(`
			SELECT * FROM %s
			WHERE server_node_id = $1
			  AND effective_from < $2
			  AND (effective_to IS NULL OR effective_to > $3)
			  AND id <> $4
			ORDER BY effective_from DESC
			LIMIT 1`, t.table)
		args = []any{ownerID, *to, from, excludeID}
	}
	err := sqlx.GetContext(ctx, t.q, &entry, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entry, false, nil
	}
	if err != nil {
		return entry, false, apperr.Storage("database query failed", err)
	}
	return entry, true, nil
}

func (t *entryStore[E]) Create(ctx context.Context, entry E) (E, error) {
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *", t.table, t.cols, t.vals)
	return t.namedReturning(ctx, query, entry)
}

func (t *entryStore[E]) Update(ctx context.Context, entry E) (E, error) {
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = :id RETURNING *", t.table, t.set)
	return t.namedReturning(ctx, query, entry)
}

func (t *entryStore[E]) namedReturning(ctx context.Context, query string, entry E) (E, error) {
	var out E
	rows, err := sqlx.NamedQueryContext(ctx, t.q, query, entry)
	if err != nil {
		return out, wrapErr(err, t.label+" not found", t.label+" overlaps an existing period")
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return out, apperr.Storage("database query failed", err)
		}
		return out, apperr.NotFound(t.label + " not found")
	}
	if err := rows.StructScan(&out); err != nil {
		return out, apperr.Storage("database query failed", err)
	}
	return out, nil
}

func (t *entryStore[E]) Close(ctx context.Context, id int64, closeAt time.Time) error {
	query := fmt.Sprintf("UPDATE %s SET effective_to = $1 WHERE id = $2", t.table)
	res, err := t.q.ExecContext(ctx, query, closeAt, id)
	if err != nil {
		return apperr.Storage("database query failed", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return apperr.Storage("database query failed", err)
	} else if n == 0 {
		return apperr.NotFound(t.label + " not found")
	}
	return nil
}

// WithOwnerLock opens a transaction and takes a row lock on the owning
// server node before running fn against the transaction-bound store. The
// lock also proves the node exists.
func (t *entryStore[E]) WithOwnerLock(ctx context.Context, ownerID int64, fn func(ctx context.Context, s timeline.Store[E]) error) error {
	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperr.Storage("failed to begin transaction", err)
	}
	defer tx.Rollback()

	var lockedID int64
	err = tx.GetContext(ctx, &lockedID,
		"SELECT id FROM server_nodes WHERE id = $1 AND deleted_at IS NULL FOR UPDATE", ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("server node not found")
	}
	if err != nil {
		return apperr.Storage("database query failed", err)
	}

	txStore := &entryStore[E]{
		db:    t.db,
		q:     tx,
		table: t.table,
		cols:  t.cols,
		vals:  t.vals,
		set:   t.set,
		label: t.label,
	}
	if err := fn(ctx, txStore); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.Storage("failed to commit transaction", err)
	}
	return nil
}

func (t *entryStore[E]) Get(ctx context.Context, id, userID int64) (E, error) {
	var entry E
	query := fmt.Sprintf(`
		SELECT e.* FROM %s e
		JOIN server_nodes n ON n.id = e.server_node_id
		WHERE e.id = $1 AND n.user_id = $2 AND n.deleted_at IS NULL`, t.table)
	if err := sqlx.GetContext(ctx, t.q, &entry, query, id, userID); err != nil {
		return entry, wrapErr(err, t.label+" not found", "")
	}
	return entry, nil
}

func (t *entryStore[E]) List(ctx context.Context, userID, ownerID int64, page *timeline.Page) ([]E, error) {
	query := fmt.Sprintf(`
		SELECT e.* FROM %s e
		JOIN server_nodes n ON n.id = e.server_node_id
		WHERE n.user_id = $1 AND n.deleted_at IS NULL`, t.table)
	args := []any{userID}
	if ownerID != 0 {
		query += " AND e.server_node_id = $2"
		args = append(args, ownerID)
	}
	query += " ORDER BY e.effective_to DESC NULLS FIRST, e.effective_from DESC"
	if page != nil {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, page.Limit, page.Offset)
	}

	entries := []E{}
	if err := sqlx.SelectContext(ctx, t.q, &entries, query, args...); err != nil {
		return nil, apperr.Storage("database query failed", err)
	}
	return entries, nil
}

func (t *entryStore[E]) Delete(ctx context.Context, id int64) error {
	res, err := t.q.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", t.table), id)
	if err != nil {
		return apperr.Storage("database query failed", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return apperr.Storage("database query failed", err)
	} else if n == 0 {
		return apperr.NotFound(t.label + " not found")
	}
	return nil
}

func (t *entryStore[E]) CurrentFor(ctx context.Context, ownerIDs []int64, at time.Time) (map[int64]E, error) {
	if len(ownerIDs) == 0 {
		return map[int64]E{}, nil
	}
	query := fmt.Sprintf(`
		SELECT DISTINCT ON (server_node_id) * FROM %s
		WHERE server_node_id = ANY($1)
		  AND effective_from <= $2
		  AND (effective_to IS NULL OR effective_to >= $2)
		ORDER BY server_node_id, effective_from DESC`, t.table)

	var entries []E
	if err := sqlx.SelectContext(ctx, t.q, &entries, query, pq.Array(ownerIDs), at); err != nil {
		return nil, apperr.Storage("database query failed", err)
	}
	result := make(map[int64]E, len(entries))
	for _, e := range entries {
		result[e.OwnerID()] = e
	}
	return result, nil
}

func (t *entryStore[E]) ListFor(ctx context.Context, ownerIDs []int64) (map[int64][]E, error) {
	if len(ownerIDs) == 0 {
		return map[int64][]E{}, nil
	}
	query := fmt.Sprintf(`
		SELECT * FROM %s
		WHERE server_node_id = ANY($1)
		ORDER BY server_node_id, effective_to DESC NULLS FIRST, effective_from DESC`, t.table)

	var entries []E
	if err := sqlx.SelectContext(ctx, t.q, &entries, query, pq.Array(ownerIDs)); err != nil {
		return nil, apperr.Storage("database query failed", err)
	}
	result := make(map[int64][]E)
	for _, e := range entries {
		result[e.OwnerID()] = append(result[e.OwnerID()], e)
	}
	return result, nil
}
