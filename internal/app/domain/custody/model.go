// Package custody defines the catalog of tracked cryptocurrencies, user
// wallet addresses and detected inflow transactions.
package custody

import (
	"time"

	"github.com/shopspring/decimal"
)

// Crypto is a catalog entry. The catalog is global: it is not scoped to any
// user.
type Crypto struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Symbol    string    `json:"symbol" db:"symbol"`
	IsReady   bool      `json:"isReady" db:"is_ready"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Address is a wallet address held by a user for one crypto. The pair
// (UserID, Address) is unique.
type Address struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"userId" db:"user_id"`
	CryptoID  int64     `json:"cryptoId" db:"crypto_id"`
	Address   string    `json:"address" db:"address"`
	Label     string    `json:"label" db:"label"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	Crypto *Crypto `json:"crypto,omitempty" db:"-"`
}

// Inflow is an incoming transaction detected on an address. TxHash is
// globally unique; amounts are decimals serialized as strings.
type Inflow struct {
	ID             int64            `json:"id" db:"id"`
	AddressID      int64            `json:"addressId" db:"address_id"`
	TxHash         string           `json:"txHash" db:"tx_hash"`
	Amount         decimal.Decimal  `json:"amount" db:"amount"`
	DetectedAt     time.Time        `json:"detectedAt" db:"detected_at"`
	FiatValue      *decimal.Decimal `json:"fiatValue" db:"fiat_value"`
	FiatCurrency   string           `json:"fiatCurrency" db:"fiat_currency"`
	PriceSource    string           `json:"priceSource" db:"price_source"`
	PriceTimestamp *time.Time       `json:"priceTimestamp" db:"price_timestamp"`
	CreatedAt      time.Time        `json:"createdAt" db:"created_at"`

	Address *Address `json:"address,omitempty" db:"-"`
}
