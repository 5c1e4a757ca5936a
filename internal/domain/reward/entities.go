package reward

import (
	"time"

	"chainlend-backend/internal/domain/money"

	"github.com/ethereum/go-ethereum/common"
)

// Pending is an accrued, unminted reward credit.
type Pending struct {
	Account   common.Address `gorm:"primaryKey;type:binary(20);column:account" json:"account"`
	Amount    money.Amount   `gorm:"type:decimal(78,0);not null;column:amount" json:"amount"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime;column:updated_at" json:"updated_at"`
}

func (Pending) TableName() string { return "pending_rewards" }

type Supply struct {
	Symbol      string       `gorm:"primaryKey;size:16;column:symbol" json:"symbol"`
	TotalSupply money.Amount `gorm:"type:decimal(78,0);not null;column:total_supply" json:"total_supply"`
	MaxSupply   money.Amount `gorm:"type:decimal(78,0);not null;column:max_supply" json:"max_supply"`
	UpdatedAt   time.Time    `gorm:"autoUpdateTime;column:updated_at" json:"updated_at"`
}

func (Supply) TableName() string { return "token_supplies" }

// Remaining is what can still be minted before the cap.
func (s *Supply) Remaining() money.Amount { return s.MaxSupply.SubFloor(s.TotalSupply) }

type Minter struct {
	Symbol    string         `gorm:"primaryKey;size:16;column:symbol" json:"symbol"`
	Account   common.Address `gorm:"primaryKey;type:binary(20);column:account" json:"account"`
	CreatedAt time.Time      `gorm:"column:created_at" json:"created_at"`
}

func (Minter) TableName() string { return "token_minters" }
