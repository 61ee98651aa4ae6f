// Package maintenance runs the scheduled housekeeping jobs. Currently that
// is the hourly purge of expired verification and reset tokens.
package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nodevault/custody-service/internal/app/storage"
	"github.com/nodevault/custody-service/pkg/logger"
)

// Service is the cron-backed housekeeping runner. It implements
// system.Service.
type Service struct {
	users storage.UserStore
	log   *logger.Logger
	cron  *cron.Cron
}

// New creates the maintenance service.
func New(users storage.UserStore, log *logger.Logger) *Service {
	return &Service{users: users, log: log}
}

// Name implements system.Service.
func (s *Service) Name() string { return "maintenance" }

// Start schedules the hourly token purge.
func (s *Service) Start(ctx context.Context) error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc("@hourly", s.purgeTokens); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("maintenance jobs scheduled")
	return nil
}

// Stop waits for a running job to finish.
func (s *Service) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (s *Service) purgeTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	purged, err := s.users.PurgeExpiredTokens(ctx, time.Now().UTC())
	if err != nil {
		s.log.WithError(err).Error("token purge failed")
		return
	}
	if purged > 0 {
		s.log.WithField("users", purged).Info("expired tokens purged")
	}
}
