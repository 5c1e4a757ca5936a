package lending

import (
	"time"

	"chainlend-backend/internal/domain/loan"
	"chainlend-backend/internal/domain/money"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type CreateRequestInput struct {
	Borrower     common.Address
	Amount       money.Amount
	InterestRate uint64 // bps per year
	Duration     uint64 // seconds
	Collateral   money.Amount
}

type RequestDTO struct {
	ID                 uint64             `json:"id"`
	Borrower           common.Address     `json:"borrower"`
	AmountRequested    money.Amount       `json:"amount_requested"`
	RequiredCollateral money.Amount       `json:"required_collateral"`
	ActualCollateral   money.Amount       `json:"actual_collateral_deposited"`
	Duration           uint64             `json:"duration"`
	InterestRate       uint64             `json:"interest_rate"`
	Status             loan.RequestStatus `json:"status"`
	CreatedAt          time.Time          `json:"created_at"`
}

func toRequestDTO(r *loan.Request) *RequestDTO {
	return &RequestDTO{
		ID:                 r.ID,
		Borrower:           r.Borrower,
		AmountRequested:    r.AmountRequested,
		RequiredCollateral: r.RequiredCollateral,
		ActualCollateral:   r.ActualCollateral,
		Duration:           r.Duration,
		InterestRate:       r.InterestRate,
		Status:             r.Status,
		CreatedAt:          r.CreatedAt,
	}
}

type LoanDTO struct {
	RequestID uint64         `json:"request_id"`
	Borrower  common.Address `json:"borrower"`
	Lender    common.Address `json:"lender"`
	FundedAt  time.Time      `json:"funded_at"`
	DueDate   time.Time      `json:"due_date"`
	Principal money.Amount   `json:"principal_amount"`
	Interest  money.Amount   `json:"interest_amount"`
	TotalDue  money.Amount   `json:"total_amount_due"`
	Status    loan.Status    `json:"status"`
}

func toLoanDTO(l *loan.Loan) *LoanDTO {
	return &LoanDTO{
		RequestID: l.RequestID,
		Borrower:  l.Borrower,
		Lender:    l.Lender,
		FundedAt:  l.FundedAt,
		DueDate:   l.DueDate,
		Principal: l.Principal,
		Interest:  l.Interest,
		TotalDue:  l.TotalDue,
		Status:    l.Status,
	}
}

// Repayment reports where a repaid loan's money went.
type Repayment struct {
	RequestID   uint64       `json:"request_id"`
	TotalPaid   money.Amount `json:"total_paid"`
	LenderShare money.Amount `json:"lender_share"`
	ProtocolFee money.Amount `json:"protocol_fee"`
}

// Liquidation reports the distribution of seized collateral.
type Liquidation struct {
	RequestID    uint64       `json:"request_id"`
	HealthFactor *uint256.Int `json:"-"`
	Collateral   money.Amount `json:"collateral"`
	Liquidator   money.Amount `json:"liquidator_bonus"`
	Treasury     money.Amount `json:"treasury_fee"`
	Lender       money.Amount `json:"lender_share"`
	Borrower     money.Amount `json:"borrower_remainder"`
}

type Risk struct {
	AtRisk bool
	Ratio  *uint256.Int
}

type WithdrawalCheck struct {
	CanWithdraw bool         `json:"can_withdraw"`
	Amount      money.Amount `json:"amount"`
	Reason      string       `json:"reason"`
}

type PendingPage struct {
	IDs     []uint64 `json:"ids"`
	HasMore bool     `json:"has_more"`
}

type Stats struct {
	TotalRequests  uint64       `json:"total_requests"`
	ActiveRequests uint64       `json:"active_requests"`
	ActiveLoans    uint64       `json:"active_loans"`
	TotalVolume    money.Amount `json:"total_volume"`
}

type TokenInfo struct {
	Symbol    string       `json:"symbol"`
	Total     money.Amount `json:"total_supply"`
	Max       money.Amount `json:"max_supply"`
	Remaining money.Amount `json:"remaining_mintable"`
}
