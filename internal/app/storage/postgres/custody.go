package postgres

import (
	"context"

	"github.com/lib/pq"

	"github.com/nodevault/custody-service/internal/apperr"
	"github.com/nodevault/custody-service/internal/app/domain/custody"
)

const cryptoColumns = "id, name, symbol, is_ready, created_at"

const addressColumns = "id, user_id, crypto_id, address, label, created_at"

const inflowColumns = `id, address_id, tx_hash, amount, detected_at,
	fiat_value, fiat_currency, price_source, price_timestamp, created_at`

// CryptoStore ------------------------------------------------------------

func (s *Store) CreateCrypto(ctx context.Context, c custody.Crypto) (custody.Crypto, error) {
	var out custody.Crypto
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO cryptos (name, symbol, is_ready)
		VALUES ($1, $2, $3)
		RETURNING `+cryptoColumns,
		c.Name, c.Symbol, c.IsReady,
	).StructScan(&out)
	if err != nil {
		return custody.Crypto{}, wrapErr(err, "crypto not found", "crypto already exists")
	}
	return out, nil
}

func (s *Store) GetCrypto(ctx context.Context, id int64) (custody.Crypto, error) {
	var c custody.Crypto
	err := s.db.GetContext(ctx, &c,
		"SELECT "+cryptoColumns+" FROM cryptos WHERE id = $1", id)
	if err != nil {
		return custody.Crypto{}, wrapErr(err, "crypto not found", "")
	}
	return c, nil
}

func (s *Store) ListCryptos(ctx context.Context) ([]custody.Crypto, error) {
	cryptos := []custody.Crypto{}
	err := s.db.SelectContext(ctx, &cryptos,
		"SELECT "+cryptoColumns+" FROM cryptos ORDER BY lower(name)")
	if err != nil {
		return nil, apperr.Storage("database query failed", err)
	}
	return cryptos, nil
}

func (s *Store) UpdateCrypto(ctx context.Context, c custody.Crypto) (custody.Crypto, error) {
	var out custody.Crypto
	err := s.db.QueryRowxContext(ctx, `
		UPDATE cryptos SET name = $1, symbol = $2, is_ready = $3
		WHERE id = $4
		RETURNING `+cryptoColumns,
		c.Name, c.Symbol, c.IsReady, c.ID,
	).StructScan(&out)
	if err != nil {
		return custody.Crypto{}, wrapErr(err, "crypto not found", "crypto already exists")
	}
	return out, nil
}

func (s *Store) DeleteCrypto(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM cryptos WHERE id = $1", id)
	if err != nil {
		return apperr.Storage("database query failed", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return apperr.Storage("database query failed", err)
	} else if n == 0 {
		return apperr.NotFound("crypto not found")
	}
	return nil
}

// AddressStore -----------------------------------------------------------

func (s *Store) CreateAddress(ctx context.Context, a custody.Address) (custody.Address, error) {
	var out custody.Address
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO user_crypto_addresses (user_id, crypto_id, address, label)
		VALUES ($1, $2, $3, $4)
		RETURNING `+addressColumns,
		a.UserID, a.CryptoID, a.Address, a.Label,
	).StructScan(&out)
	if err != nil {
		return custody.Address{}, wrapErr(err, "address not found", "address already exists")
	}
	return s.attachCryptos(ctx, out)
}

func (s *Store) GetAddress(ctx context.Context, id, userID int64) (custody.Address, error) {
	var a custody.Address
	err := s.db.GetContext(ctx, &a,
		"SELECT "+addressColumns+" FROM user_crypto_addresses WHERE id = $1 AND user_id = $2",
		id, userID)
	if err != nil {
		return custody.Address{}, wrapErr(err, "address not found", "")
	}
	return s.attachCryptos(ctx, a)
}

func (s *Store) ListAddresses(ctx context.Context, userID int64) ([]custody.Address, error) {
	addresses := []custody.Address{}
	err := s.db.SelectContext(ctx, &addresses,
		"SELECT "+addressColumns+" FROM user_crypto_addresses WHERE user_id = $1 ORDER BY created_at DESC",
		userID)
	if err != nil {
		return nil, apperr.Storage("database query failed", err)
	}
	if err := s.attachCryptosAll(ctx, addresses); err != nil {
		return nil, err
	}
	return addresses, nil
}

func (s *Store) UpdateAddress(ctx context.Context, a custody.Address) (custody.Address, error) {
	var out custody.Address
	err := s.db.QueryRowxContext(ctx, `
		UPDATE user_crypto_addresses SET label = $1
		WHERE id = $2
		RETURNING `+addressColumns,
		a.Label, a.ID,
	).StructScan(&out)
	if err != nil {
		return custody.Address{}, wrapErr(err, "address not found", "")
	}
	return s.attachCryptos(ctx, out)
}

func (s *Store) DeleteAddress(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM user_crypto_addresses WHERE id = $1", id)
	if err != nil {
		return apperr.Storage("database query failed", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return apperr.Storage("database query failed", err)
	} else if n == 0 {
		return apperr.NotFound("address not found")
	}
	return nil
}

func (s *Store) attachCryptos(ctx context.Context, a custody.Address) (custody.Address, error) {
	addresses := []custody.Address{a}
	if err := s.attachCryptosAll(ctx, addresses); err != nil {
		return custody.Address{}, err
	}
	return addresses[0], nil
}

// attachCryptosAll resolves the referenced catalog entries in one query and
// attaches them in place.
func (s *Store) attachCryptosAll(ctx context.Context, addresses []custody.Address) error {
	if len(addresses) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(addresses))
	for _, a := range addresses {
		ids = append(ids, a.CryptoID)
	}
	cryptos := []custody.Crypto{}
	err := s.db.SelectContext(ctx, &cryptos,
		"SELECT "+cryptoColumns+" FROM cryptos WHERE id = ANY($1)", pq.Array(ids))
	if err != nil {
		return apperr.Storage("database query failed", err)
	}
	byID := make(map[int64]custody.Crypto, len(cryptos))
	for _, c := range cryptos {
		byID[c.ID] = c
	}
	for i := range addresses {
		if c, ok := byID[addresses[i].CryptoID]; ok {
			crypto := c
			addresses[i].Crypto = &crypto
		}
	}
	return nil
}

// InflowStore ------------------------------------------------------------

func (s *Store) CreateInflow(ctx context.Context, in custody.Inflow) (custody.Inflow, error) {
	var out custody.Inflow
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO crypto_inflows (address_id, tx_hash, amount, detected_at,
			fiat_value, fiat_currency, price_source, price_timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+inflowColumns,
		in.AddressID, in.TxHash, in.Amount, in.DetectedAt,
		in.FiatValue, in.FiatCurrency, in.PriceSource, in.PriceTimestamp,
	).StructScan(&out)
	if err != nil {
		return custody.Inflow{}, wrapErr(err, "inflow not found", "inflow with this txHash already exists")
	}
	return s.attachAddress(ctx, out)
}

func (s *Store) GetInflow(ctx context.Context, id, userID int64) (custody.Inflow, error) {
	var in custody.Inflow
	err := s.db.GetContext(ctx, &in, `
		SELECT i.id, i.address_id, i.tx_hash, i.amount, i.detected_at,
			i.fiat_value, i.fiat_currency, i.price_source, i.price_timestamp, i.created_at
		FROM crypto_inflows i
		JOIN user_crypto_addresses a ON a.id = i.address_id
		WHERE i.id = $1 AND a.user_id = $2`, id, userID)
	if err != nil {
		return custody.Inflow{}, wrapErr(err, "inflow not found", "")
	}
	return s.attachAddress(ctx, in)
}

func (s *Store) ListInflows(ctx context.Context, userID, addressID int64) ([]custody.Inflow, error) {
	query := `
		SELECT i.id, i.address_id, i.tx_hash, i.amount, i.detected_at,
			i.fiat_value, i.fiat_currency, i.price_source, i.price_timestamp, i.created_at
		FROM crypto_inflows i
		JOIN user_crypto_addresses a ON a.id = i.address_id
		WHERE a.user_id = $1`
	args := []any{userID}
	if addressID != 0 {
		query += " AND i.address_id = $2"
		args = append(args, addressID)
	}
	query += " ORDER BY i.detected_at DESC"

	inflows := []custody.Inflow{}
	if err := s.db.SelectContext(ctx, &inflows, query, args...); err != nil {
		return nil, apperr.Storage("database query failed", err)
	}
	for i := range inflows {
		hydrated, err := s.attachAddress(ctx, inflows[i])
		if err != nil {
			return nil, err
		}
		inflows[i] = hydrated
	}
	return inflows, nil
}

func (s *Store) UpdateInflow(ctx context.Context, in custody.Inflow) (custody.Inflow, error) {
	var out custody.Inflow
	err := s.db.QueryRowxContext(ctx, `
		UPDATE crypto_inflows
		SET amount = $1, detected_at = $2, fiat_value = $3, fiat_currency = $4,
			price_source = $5, price_timestamp = $6
		WHERE id = $7
		RETURNING `+inflowColumns,
		in.Amount, in.DetectedAt, in.FiatValue, in.FiatCurrency,
		in.PriceSource, in.PriceTimestamp, in.ID,
	).StructScan(&out)
	if err != nil {
		return custody.Inflow{}, wrapErr(err, "inflow not found", "")
	}
	return s.attachAddress(ctx, out)
}

func (s *Store) DeleteInflow(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM crypto_inflows WHERE id = $1", id)
	if err != nil {
		return apperr.Storage("database query failed", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return apperr.Storage("database query failed", err)
	} else if n == 0 {
		return apperr.NotFound("inflow not found")
	}
	return nil
}

func (s *Store) attachAddress(ctx context.Context, in custody.Inflow) (custody.Inflow, error) {
	var a custody.Address
	err := s.db.GetContext(ctx, &a,
		"SELECT "+addressColumns+" FROM user_crypto_addresses WHERE id = $1", in.AddressID)
	if err != nil {
		return in, nil
	}
	hydrated, err := s.attachCryptos(ctx, a)
	if err != nil {
		return custody.Inflow{}, err
	}
	in.Address = &hydrated
	return in, nil
}
