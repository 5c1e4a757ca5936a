package loan

import (
	"time"

	"chainlend-backend/internal/domain/money"

	"github.com/ethereum/go-ethereum/common"
)

type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestFunded    RequestStatus = "funded"
	RequestCancelled RequestStatus = "cancelled"
)

type Status string

const (
	StatusActive     Status = "active"
	StatusRepaid     Status = "repaid"
	StatusLiquidated Status = "liquidated"
)

// Request is a borrower's ask, backed by escrowed collateral.
// RequiredCollateral is frozen at creation.
type Request struct {
	ID                 uint64         `gorm:"primaryKey;autoIncrement:false;column:id" json:"id"`
	Borrower           common.Address `gorm:"type:binary(20);not null;index:idx_requests_borrower;column:borrower" json:"borrower"`
	AmountRequested    money.Amount   `gorm:"type:decimal(78,0);not null;column:amount_requested" json:"amount_requested"`
	RequiredCollateral money.Amount   `gorm:"type:decimal(78,0);not null;column:required_collateral" json:"required_collateral"`
	ActualCollateral   money.Amount   `gorm:"type:decimal(78,0);not null;column:actual_collateral_deposited" json:"actual_collateral_deposited"`
	Duration           uint64         `gorm:"not null;column:duration" json:"duration"`
	InterestRate       uint64         `gorm:"not null;column:interest_rate" json:"interest_rate"`
	Status             RequestStatus  `gorm:"type:enum('pending','funded','cancelled');default:'pending';index:idx_requests_status;column:status" json:"status"`
	CreatedAt          time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"autoUpdateTime;column:updated_at" json:"updated_at"`
}

func (Request) TableName() string { return "loan_requests" }

// Loan is the funded side of a Request; RequestID is its key.
type Loan struct {
	RequestID uint64         `gorm:"primaryKey;autoIncrement:false;column:request_id" json:"request_id"`
	Borrower  common.Address `gorm:"type:binary(20);not null;index:idx_loans_borrower;column:borrower" json:"borrower"`
	Lender    common.Address `gorm:"type:binary(20);not null;index:idx_loans_lender;column:lender" json:"lender"`
	FundedAt  time.Time      `gorm:"column:funded_at" json:"funded_at"`
	DueDate   time.Time      `gorm:"column:due_date" json:"due_date"`
	Principal money.Amount   `gorm:"type:decimal(78,0);not null;column:principal_amount" json:"principal_amount"`
	Interest  money.Amount   `gorm:"type:decimal(78,0);not null;column:interest_amount" json:"interest_amount"`
	TotalDue  money.Amount   `gorm:"type:decimal(78,0);not null;column:total_amount_due" json:"total_amount_due"`
	Status    Status         `gorm:"type:enum('active','repaid','liquidated');default:'active';column:status" json:"status"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime;column:updated_at" json:"updated_at"`
}

func (Loan) TableName() string { return "active_loans" }
