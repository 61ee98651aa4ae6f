// Package cryptos manages the global cryptocurrency catalog.
package cryptos

import (
	"context"
	"strconv"
	"strings"

	"github.com/nodevault/custody-service/internal/apperr"
	"github.com/nodevault/custody-service/internal/app/domain/custody"
	"github.com/nodevault/custody-service/internal/app/storage"
	"github.com/nodevault/custody-service/pkg/logger"
)

// Service manages catalog CRUD. The catalog is shared across users.
type Service struct {
	cryptos storage.CryptoStore
	log     *logger.Logger
}

// New creates the catalog service.
func New(cryptos storage.CryptoStore, log *logger.Logger) *Service {
	return &Service{cryptos: cryptos, log: log}
}

// ParseReadyFlag accepts the lenient isReady encodings seen in the wild:
// booleans, numbers (non-zero is true) and the strings "true"/"false"/"1"/"0".
func ParseReadyFlag(v interface{}) (bool, error) {
	switch value := v.(type) {
	case nil:
		return false, nil
	case bool:
		return value, nil
	case float64:
		return value != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "1":
			return true, nil
		case "false", "0", "":
			return false, nil
		}
		if n, err := strconv.ParseFloat(value, 64); err == nil {
			return n != 0, nil
		}
		return false, apperr.InvalidArgument("isReady must be a boolean")
	default:
		return false, apperr.InvalidArgument("isReady must be a boolean")
	}
}

// Create adds a catalog entry.
func (s *Service) Create(ctx context.Context, c custody.Crypto) (custody.Crypto, error) {
	if c.Name == "" || c.Symbol == "" {
		return custody.Crypto{}, apperr.InvalidArgument("name and symbol are required")
	}
	created, err := s.cryptos.CreateCrypto(ctx, c)
	if err != nil {
		return custody.Crypto{}, err
	}
	s.log.WithField("symbol", created.Symbol).Info("crypto created")
	return created, nil
}

// Get returns one catalog entry.
func (s *Service) Get(ctx context.Context, id int64) (custody.Crypto, error) {
	return s.cryptos.GetCrypto(ctx, id)
}

// List returns the whole catalog ordered by name.
func (s *Service) List(ctx context.Context) ([]custody.Crypto, error) {
	return s.cryptos.ListCryptos(ctx)
}

// Update rewrites a catalog entry.
func (s *Service) Update(ctx context.Context, c custody.Crypto) (custody.Crypto, error) {
	if c.Name == "" || c.Symbol == "" {
		return custody.Crypto{}, apperr.InvalidArgument("name and symbol are required")
	}
	return s.cryptos.UpdateCrypto(ctx, c)
}

// Delete removes a catalog entry.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.cryptos.DeleteCrypto(ctx, id)
}
