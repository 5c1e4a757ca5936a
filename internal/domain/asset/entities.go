// Package asset is the account-balance ledger for the loan asset, the
// collateral asset and the reward token. Balances live next to the
// lending tables so a failed transfer aborts the enclosing operation.
package asset

import (
	"time"

	"chainlend-backend/internal/domain/money"

	"github.com/ethereum/go-ethereum/common"
)

type Symbol string

const (
	USDC Symbol = "USDC"
	ETH  Symbol = "ETH"
	CL   Symbol = "CL"
)

func (s Symbol) Valid() bool { return s == USDC || s == ETH || s == CL }

// Decimals is the base-unit exponent of the asset.
func (s Symbol) Decimals() uint8 {
	if s == USDC {
		return 6
	}
	return 18
}

type Balance struct {
	Asset     Symbol         `gorm:"primaryKey;size:16;column:asset" json:"asset"`
	Account   common.Address `gorm:"primaryKey;type:binary(20);column:account" json:"account"`
	Amount    money.Amount   `gorm:"type:decimal(78,0);not null;column:amount" json:"amount"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime;column:updated_at" json:"updated_at"`
}

func (Balance) TableName() string { return "asset_balances" }

// Transfer is the journal row for one balance movement. A zero From is a mint.
type Transfer struct {
	ID        string         `gorm:"primaryKey;size:32;column:id" json:"id"`
	Asset     Symbol         `gorm:"size:16;not null;column:asset" json:"asset"`
	From      common.Address `gorm:"type:binary(20);column:from_account" json:"from"`
	To        common.Address `gorm:"type:binary(20);column:to_account" json:"to"`
	Amount    money.Amount   `gorm:"type:decimal(78,0);not null;column:amount" json:"amount"`
	Memo      string         `gorm:"size:128;column:memo" json:"memo"`
	CreatedAt time.Time      `gorm:"column:created_at" json:"created_at"`
}

func (Transfer) TableName() string { return "asset_transfers" }
