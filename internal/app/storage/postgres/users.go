package postgres

import (
	"context"
	"time"

	"github.com/nodevault/custody-service/internal/apperr"
	"github.com/nodevault/custody-service/internal/app/domain/user"
)

const userColumns = `id, name, email, password_hash, email_verified,
	verification_token, verification_expires, reset_token, reset_expires, created_at`

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	var out user.User
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO users (name, email, password_hash, email_verified,
			verification_token, verification_expires, reset_token, reset_expires)
		VALUES ($1, lower($2), $3, $4, $5, $6, $7, $8)
		RETURNING `+userColumns,
		u.Name, u.Email, u.PasswordHash, u.EmailVerified,
		u.VerificationToken, u.VerificationExpires, u.ResetToken, u.ResetExpires,
	).StructScan(&out)
	if err != nil {
		return user.User{}, wrapErr(err, "user not found", "email already registered")
	}
	return out, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (user.User, error) {
	var u user.User
	err := s.db.GetContext(ctx, &u,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id)
	if err != nil {
		return user.User{}, wrapErr(err, "user not found", "")
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User
	err := s.db.GetContext(ctx, &u,
		"SELECT "+userColumns+" FROM users WHERE email = lower($1)", email)
	if err != nil {
		return user.User{}, wrapErr(err, "user not found", "")
	}
	return u, nil
}

func (s *Store) GetUserByVerificationToken(ctx context.Context, token string) (user.User, error) {
	var u user.User
	err := s.db.GetContext(ctx, &u,
		"SELECT "+userColumns+" FROM users WHERE verification_token = $1", token)
	if err != nil {
		return user.User{}, wrapErr(err, "user not found", "")
	}
	return u, nil
}

func (s *Store) GetUserByResetToken(ctx context.Context, token string) (user.User, error) {
	var u user.User
	err := s.db.GetContext(ctx, &u,
		"SELECT "+userColumns+" FROM users WHERE reset_token = $1", token)
	if err != nil {
		return user.User{}, wrapErr(err, "user not found", "")
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	var out user.User
	err := s.db.QueryRowxContext(ctx, `
		UPDATE users
		SET name = $1, email = lower($2), password_hash = $3, email_verified = $4,
			verification_token = $5, verification_expires = $6,
			reset_token = $7, reset_expires = $8
		WHERE id = $9
		RETURNING `+userColumns,
		u.Name, u.Email, u.PasswordHash, u.EmailVerified,
		u.VerificationToken, u.VerificationExpires, u.ResetToken, u.ResetExpires, u.ID,
	).StructScan(&out)
	if err != nil {
		return user.User{}, wrapErr(err, "user not found", "email already registered")
	}
	return out, nil
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return apperr.Storage("database query failed", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return apperr.Storage("database query failed", err)
	} else if n == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}

// PurgeExpiredTokens clears verification and reset tokens whose expiry has
// passed. Returns the number of affected users.
func (s *Store) PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET verification_token = CASE WHEN verification_expires < $1 THEN NULL ELSE verification_token END,
			verification_expires = CASE WHEN verification_expires < $1 THEN NULL ELSE verification_expires END,
			reset_token = CASE WHEN reset_expires < $1 THEN NULL ELSE reset_token END,
			reset_expires = CASE WHEN reset_expires < $1 THEN NULL ELSE reset_expires END
		WHERE verification_expires < $1 OR reset_expires < $1`, now)
	if err != nil {
		return 0, apperr.Storage("database query failed", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.Storage("database query failed", err)
	}
	return n, nil
}
