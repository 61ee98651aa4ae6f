package postgres

import (
	"context"
	"time"

	"github.com/nodevault/custody-service/internal/apperr"
	"github.com/nodevault/custody-service/internal/app/domain/node"
)

func (s *Store) CreateNode(ctx context.Context, n node.ServerNode) (node.ServerNode, error) {
	var out node.ServerNode
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO server_nodes (user_id, name)
		VALUES ($1, $2)
		RETURNING id, user_id, name, created_at, deleted_at`,
		n.UserID, n.Name,
	).StructScan(&out)
	if err != nil {
		return node.ServerNode{}, apperr.Storage("database query failed", err)
	}
	return out, nil
}

func (s *Store) GetNode(ctx context.Context, id, userID int64, includeDeleted bool) (node.ServerNode, error) {
	query := `
		SELECT id, user_id, name, created_at, deleted_at FROM server_nodes
		WHERE id = $1 AND user_id = $2`
	if !includeDeleted {
		query += " AND deleted_at IS NULL"
	}
	var n node.ServerNode
	if err := s.db.GetContext(ctx, &n, query, id, userID); err != nil {
		return node.ServerNode{}, wrapErr(err, "server node not found", "")
	}
	return n, nil
}

func (s *Store) ListNodes(ctx context.Context, userID int64, deleted bool) ([]node.ServerNode, error) {
	query := `
		SELECT id, user_id, name, created_at, deleted_at FROM server_nodes
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC`
	if deleted {
		query = `
		SELECT id, user_id, name, created_at, deleted_at FROM server_nodes
		WHERE user_id = $1 AND deleted_at IS NOT NULL
		ORDER BY created_at DESC`
	}
	nodes := []node.ServerNode{}
	if err := s.db.SelectContext(ctx, &nodes, query, userID); err != nil {
		return nil, apperr.Storage("database query failed", err)
	}
	return nodes, nil
}

func (s *Store) UpdateNode(ctx context.Context, n node.ServerNode) (node.ServerNode, error) {
	var out node.ServerNode
	err := s.db.QueryRowxContext(ctx, `
		UPDATE server_nodes SET name = $1
		WHERE id = $2
		RETURNING id, user_id, name, created_at, deleted_at`,
		n.Name, n.ID,
	).StructScan(&out)
	if err != nil {
		return node.ServerNode{}, wrapErr(err, "server node not found", "")
	}
	return out, nil
}

func (s *Store) SetNodeDeleted(ctx context.Context, id int64, deletedAt *time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE server_nodes SET deleted_at = $1 WHERE id = $2", deletedAt, id)
	if err != nil {
		return apperr.Storage("database query failed", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return apperr.Storage("database query failed", err)
	} else if n == 0 {
		return apperr.NotFound("server node not found")
	}
	return nil
}
