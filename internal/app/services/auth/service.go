// Package auth implements registration, login and the email verification
// and password reset flows.
package auth

import (
	"context"
	"net/mail"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/nodevault/custody-service/internal/apperr"
	"github.com/nodevault/custody-service/internal/app/domain/user"
	"github.com/nodevault/custody-service/internal/app/storage"
	sendermail "github.com/nodevault/custody-service/internal/mail"
	"github.com/nodevault/custody-service/pkg/logger"
)

const (
	tokenTTL        = 24 * time.Hour
	verificationTTL = 24 * time.Hour
	resetTTL        = time.Hour
	minPasswordLen  = 8
)

// Service implements the account flows.
type Service struct {
	users  storage.UserStore
	sender sendermail.Sender
	log    *logger.Logger
	secret []byte
	now    func() time.Time
}

// New creates the auth service. secret signs the session tokens.
func New(users storage.UserStore, sender sendermail.Sender, secret string, log *logger.Logger) *Service {
	return &Service{
		users:  users,
		sender: sender,
		log:    log,
		secret: []byte(secret),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Session is the login result: the signed token plus the account it
// belongs to.
type Session struct {
	Token string    `json:"token"`
	User  user.User `json:"user"`
}

// Register creates an account and sends the verification mail. When the
// mail cannot be sent the account is rolled back so the address can retry.
func (s *Service) Register(ctx context.Context, name, email, password string) (user.User, error) {
	if name == "" {
		return user.User{}, apperr.InvalidArgument("name is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return user.User{}, apperr.InvalidArgument("a valid email is required")
	}
	if len(password) < minPasswordLen {
		return user.User{}, apperr.InvalidArgument("password must be at least 8 characters")
	}
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return user.User{}, apperr.InvalidArgument("email already registered")
	} else if !apperr.Is(err, apperr.CodeNotFound) {
		return user.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, apperr.Storage("failed to hash password", err)
	}

	token := uuid.NewString()
	expires := s.now().Add(verificationTTL)
	created, err := s.users.CreateUser(ctx, user.User{
		Name:                name,
		Email:               email,
		PasswordHash:        string(hash),
		VerificationToken:   &token,
		VerificationExpires: &expires,
	})
	if err != nil {
		return user.User{}, err
	}

	if err := s.sender.SendVerification(created.Email, created.Name, token); err != nil {
		s.log.WithError(err).WithField("userId", created.ID).
			Error("verification mail failed, rolling back registration")
		if delErr := s.users.DeleteUser(ctx, created.ID); delErr != nil {
			s.log.WithError(delErr).WithField("userId", created.ID).
				Error("registration rollback failed")
		}
		return user.User{}, apperr.Storage("failed to send verification email", err)
	}

	s.log.WithField("userId", created.ID).Info("user registered")
	return created, nil
}

// Login checks the credentials and issues a signed session token. An
// account that has not verified its email cannot log in.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if apperr.Is(err, apperr.CodeNotFound) {
			return Session{}, apperr.Unauthorized("invalid email or password")
		}
		return Session{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return Session{}, apperr.Unauthorized("invalid email or password")
	}
	if !u.EmailVerified {
		return Session{}, apperr.Forbidden("email not verified")
	}

	token, err := s.signToken(u.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, User: u}, nil
}

func (s *Service) signToken(userID int64) (string, error) {
	claims := jwt.MapClaims{
		"userId": userID,
		"iat":    s.now().Unix(),
		"exp":    s.now().Add(tokenTTL).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", apperr.Storage("failed to sign token", err)
	}
	return signed, nil
}

// VerifyEmail consumes a verification token.
func (s *Service) VerifyEmail(ctx context.Context, token string) (user.User, error) {
	if token == "" {
		return user.User{}, apperr.InvalidArgument("token is required")
	}
	u, err := s.users.GetUserByVerificationToken(ctx, token)
	if err != nil {
		if apperr.Is(err, apperr.CodeNotFound) {
			return user.User{}, apperr.InvalidArgument("invalid or expired verification token")
		}
		return user.User{}, err
	}
	if u.VerificationExpires == nil || u.VerificationExpires.Before(s.now()) {
		return user.User{}, apperr.InvalidArgument("invalid or expired verification token")
	}

	u.EmailVerified = true
	u.VerificationToken = nil
	u.VerificationExpires = nil
	updated, err := s.users.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, err
	}
	s.log.WithField("userId", updated.ID).Info("email verified")
	return updated, nil
}

// ForgotPassword issues a reset token and mails it. An unknown email is
// not an error: the response never reveals whether an account exists.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if apperr.Is(err, apperr.CodeNotFound) {
			return nil
		}
		return err
	}

	token := uuid.NewString()
	expires := s.now().Add(resetTTL)
	u.ResetToken = &token
	u.ResetExpires = &expires
	if _, err := s.users.UpdateUser(ctx, u); err != nil {
		return err
	}
	if err := s.sender.SendPasswordReset(u.Email, u.Name, token); err != nil {
		s.log.WithError(err).WithField("userId", u.ID).Error("password reset mail failed")
		return apperr.Storage("failed to send password reset email", err)
	}
	return nil
}

// ResetPassword consumes a reset token and replaces the password.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	if token == "" {
		return apperr.InvalidArgument("token is required")
	}
	if len(password) < minPasswordLen {
		return apperr.InvalidArgument("password must be at least 8 characters")
	}
	u, err := s.users.GetUserByResetToken(ctx, token)
	if err != nil {
		if apperr.Is(err, apperr.CodeNotFound) {
			return apperr.InvalidArgument("invalid or expired reset token")
		}
		return err
	}
	if u.ResetExpires == nil || u.ResetExpires.Before(s.now()) {
		return apperr.InvalidArgument("invalid or expired reset token")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return apperr.Storage("failed to hash password", err)
	}
	u.PasswordHash = string(hash)
	u.ResetToken = nil
	u.ResetExpires = nil
	if _, err := s.users.UpdateUser(ctx, u); err != nil {
		return err
	}
	s.log.WithField("userId", u.ID).Info("password reset")
	return nil
}
