package ledger

import (
	"time"

	"chainlend-backend/internal/domain/money"

	"github.com/ethereum/go-ethereum/common"
)

// StateID is the key of the single protocol_state row.
const StateID uint8 = 1

// State holds the id counter and running totals. Every mutating
// transaction locks this row first.
type State struct {
	ID                  uint8          `gorm:"primaryKey;autoIncrement:false;column:id" json:"-"`
	NextRequestID       uint64         `gorm:"not null;column:next_request_id" json:"next_request_id"`
	TotalActiveRequests uint64         `gorm:"not null;column:total_active_requests" json:"total_active_requests"`
	TotalActiveLoans    uint64         `gorm:"not null;column:total_active_loans" json:"total_active_loans"`
	TotalVolume         money.Amount   `gorm:"type:decimal(78,0);not null;column:total_volume" json:"total_volume"`
	Treasury            common.Address `gorm:"type:binary(20);not null;column:treasury" json:"treasury"`
	UpdatedAt           time.Time      `gorm:"autoUpdateTime;column:updated_at" json:"updated_at"`
}

func (State) TableName() string { return "protocol_state" }

// InRange reports whether id has been issued by the counter.
func (s *State) InRange(id uint64) bool { return id != 0 && id < s.NextRequestID }

type EventName string

const (
	EventLoanRequestCreated        EventName = "LoanRequestCreated"
	EventCollateralDeposited       EventName = "CollateralDeposited"
	EventRewardsEarned             EventName = "RewardsEarned"
	EventLoanRequestCancelled      EventName = "LoanRequestCancelled"
	EventLoanFunded                EventName = "LoanFunded"
	EventLoanRepaid                EventName = "LoanRepaid"
	EventCollateralWithdrawn       EventName = "CollateralWithdrawn"
	EventCollateralAdded           EventName = "CollateralAdded"
	EventExcessCollateralWithdrawn EventName = "ExcessCollateralWithdrawn"
	EventLoanLiquidated            EventName = "LoanLiquidated"
	EventRewardsClaimed            EventName = "RewardsClaimed"
	EventTreasuryUpdated           EventName = "TreasuryUpdated"
	EventEmergencyWithdrawal       EventName = "EmergencyWithdrawal"
	EventMinterAdded               EventName = "MinterAdded"
	EventMinterRemoved             EventName = "MinterRemoved"
	EventFaucetCredited            EventName = "FaucetCredited"
)

// Event is an append-only journal entry written in the same tx as the
// change it describes. Payload is a JSON object of string fields.
type Event struct {
	ID        string         `gorm:"primaryKey;size:32;column:id" json:"id"`
	Name      EventName      `gorm:"size:64;not null;index:idx_events_name;column:name" json:"name"`
	RequestID uint64         `gorm:"index:idx_events_request;column:request_id" json:"request_id,omitempty"`
	Account   common.Address `gorm:"type:binary(20);column:account" json:"account"`
	Payload   string         `gorm:"type:text;column:payload" json:"payload"`
	CreatedAt time.Time      `gorm:"column:created_at" json:"created_at"`
}

func (Event) TableName() string { return "ledger_events" }
