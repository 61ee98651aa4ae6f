// Package addresses manages user wallet addresses.
package addresses

import (
	"context"

	"github.com/nodevault/custody-service/internal/apperr"
	"github.com/nodevault/custody-service/internal/app/domain/custody"
	"github.com/nodevault/custody-service/internal/app/storage"
	"github.com/nodevault/custody-service/pkg/logger"
)

// Service manages address CRUD scoped to the calling user.
type Service struct {
	addresses storage.AddressStore
	cryptos   storage.CryptoStore
	log       *logger.Logger
}

// New creates the address service.
func New(addresses storage.AddressStore, cryptos storage.CryptoStore, log *logger.Logger) *Service {
	return &Service{addresses: addresses, cryptos: cryptos, log: log}
}

// Create registers an address for the caller. The referenced crypto must
// exist and the (user, address) pair must be unique.
func (s *Service) Create(ctx context.Context, userID int64, a custody.Address) (custody.Address, error) {
	if a.Address == "" {
		return custody.Address{}, apperr.InvalidArgument("address is required")
	}
	if a.CryptoID == 0 {
		return custody.Address{}, apperr.InvalidArgument("cryptoId is required")
	}
	if _, err := s.cryptos.GetCrypto(ctx, a.CryptoID); err != nil {
		if apperr.Is(err, apperr.CodeNotFound) {
			return custody.Address{}, apperr.InvalidArgument("cryptoId does not exist")
		}
		return custody.Address{}, err
	}
	a.UserID = userID
	created, err := s.addresses.CreateAddress(ctx, a)
	if err != nil {
		return custody.Address{}, err
	}
	s.log.WithFields(map[string]interface{}{"id": created.ID, "userId": userID}).
		Info("address created")
	return created, nil
}

// Get returns one of the caller's addresses.
func (s *Service) Get(ctx context.Context, userID, id int64) (custody.Address, error) {
	return s.addresses.GetAddress(ctx, id, userID)
}

// List returns the caller's addresses, newest first.
func (s *Service) List(ctx context.Context, userID int64) ([]custody.Address, error) {
	return s.addresses.ListAddresses(ctx, userID)
}

// Update changes an address label. The address string and the referenced
// crypto are immutable.
func (s *Service) Update(ctx context.Context, userID, id int64, label string) (custody.Address, error) {
	existing, err := s.addresses.GetAddress(ctx, id, userID)
	if err != nil {
		return custody.Address{}, err
	}
	existing.Label = label
	return s.addresses.UpdateAddress(ctx, existing)
}

// Delete removes one of the caller's addresses and, through the schema,
// its inflows.
func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	if _, err := s.addresses.GetAddress(ctx, id, userID); err != nil {
		return err
	}
	return s.addresses.DeleteAddress(ctx, id)
}
