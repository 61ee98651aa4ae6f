// Package user defines the account identity owning nodes and addresses.
package user

import "time"

// User is a registered account. PasswordHash and the token fields never
// appear in API responses.
type User struct {
	ID            int64      `json:"id" db:"id"`
	Name          string     `json:"name" db:"name"`
	Email         string     `json:"email" db:"email"`
	PasswordHash  string     `json:"-" db:"password_hash"`
	EmailVerified bool       `json:"emailVerified" db:"email_verified"`

	VerificationToken   *string    `json:"-" db:"verification_token"`
	VerificationExpires *time.Time `json:"-" db:"verification_expires"`
	ResetToken          *string    `json:"-" db:"reset_token"`
	ResetExpires        *time.Time `json:"-" db:"reset_expires"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
