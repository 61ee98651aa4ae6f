// Package inflows manages detected inflow transactions.
package inflows

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/nodevault/custody-service/internal/apperr"
	"github.com/nodevault/custody-service/internal/app/domain/custody"
	"github.com/nodevault/custody-service/internal/app/storage"
	"github.com/nodevault/custody-service/pkg/logger"
)

// Service manages inflow CRUD scoped to the calling user through the
// owning address.
type Service struct {
	inflows   storage.InflowStore
	addresses storage.AddressStore
	log       *logger.Logger
}

// New creates the inflow service.
func New(inflows storage.InflowStore, addresses storage.AddressStore, log *logger.Logger) *Service {
	return &Service{inflows: inflows, addresses: addresses, log: log}
}

// Create records an inflow on one of the caller's addresses. TxHash is
// globally unique.
func (s *Service) Create(ctx context.Context, userID int64, in custody.Inflow) (custody.Inflow, error) {
	if in.TxHash == "" {
		return custody.Inflow{}, apperr.InvalidArgument("txHash is required")
	}
	if in.Amount.LessThanOrEqual(decimal.Zero) {
		return custody.Inflow{}, apperr.InvalidArgument("amount must be positive")
	}
	if _, err := s.addresses.GetAddress(ctx, in.AddressID, userID); err != nil {
		return custody.Inflow{}, err
	}
	created, err := s.inflows.CreateInflow(ctx, in)
	if err != nil {
		return custody.Inflow{}, err
	}
	s.log.WithFields(map[string]interface{}{"id": created.ID, "txHash": created.TxHash}).
		Info("inflow recorded")
	return created, nil
}

// Get returns one of the caller's inflows.
func (s *Service) Get(ctx context.Context, userID, id int64) (custody.Inflow, error) {
	return s.inflows.GetInflow(ctx, id, userID)
}

// List returns the caller's inflows, optionally filtered to one address,
// newest first.
func (s *Service) List(ctx context.Context, userID, addressID int64) ([]custody.Inflow, error) {
	if addressID != 0 {
		if _, err := s.addresses.GetAddress(ctx, addressID, userID); err != nil {
			return nil, err
		}
	}
	return s.inflows.ListInflows(ctx, userID, addressID)
}

// Update rewrites an inflow's valuation fields. The address and txHash are
// immutable.
func (s *Service) Update(ctx context.Context, userID int64, in custody.Inflow) (custody.Inflow, error) {
	existing, err := s.inflows.GetInflow(ctx, in.ID, userID)
	if err != nil {
		return custody.Inflow{}, err
	}
	if in.Amount.LessThanOrEqual(decimal.Zero) {
		return custody.Inflow{}, apperr.InvalidArgument("amount must be positive")
	}
	in.AddressID = existing.AddressID
	in.TxHash = existing.TxHash
	return s.inflows.UpdateInflow(ctx, in)
}

// Delete removes one of the caller's inflows.
func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	if _, err := s.inflows.GetInflow(ctx, id, userID); err != nil {
		return err
	}
	return s.inflows.DeleteInflow(ctx, id)
}
