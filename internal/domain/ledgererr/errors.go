// Package ledgererr is the typed failure taxonomy of the lending ledger.
// Every rejected operation returns an *Error so clients can tell
// "Invalid ID range" from "Request does not exist" without parsing text.
package ledgererr

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"chainlend-backend/internal/domain/money"
)

type Kind string

const (
	KindZeroAmount             Kind = "ZeroAmount"
	KindInvalidAmount          Kind = "InvalidAmount"
	KindInvalidParameter       Kind = "InvalidParameter"
	KindInsufficientCollateral Kind = "InsufficientCollateral"
	KindInvalidPrice           Kind = "InvalidPrice"
	KindStalePrice             Kind = "StalePrice"
	KindInvalidRequest         Kind = "InvalidRequest"
	KindInvalidRequestStatus   Kind = "InvalidRequestStatus"
	KindInvalidLoan            Kind = "InvalidLoan"
	KindUnauthorized           Kind = "Unauthorized"
	KindExcessWithdrawalAmount Kind = "ExcessWithdrawalAmount"
	KindMaxSupplyExceeded      Kind = "MaxSupplyExceeded"
	KindNotMinter              Kind = "NotMinter"
	KindZeroAddress            Kind = "ZeroAddress"
	KindTransferFailed         Kind = "TransferFailed"
)

const (
	ReasonInvalidRange      = "Invalid ID range"
	ReasonRequestNotFound   = "Request does not exist"
	ReasonLoanNotFound      = "Loan does not exist"
	ReasonLoanNotActive     = "Loan not active"
	ReasonLoanNotRepaid     = "Loan not repaid"
	ReasonLoanHealthy       = "Loan is healthy"
	ReasonSelfFunding       = "Cannot fund own request"
	ReasonNoCollateral      = "No collateral deposited"
	ReasonRequestNotPending = "Request not pending"
	ReasonBelowMinClaim     = "Below minimum claim"
	ReasonExceedsMaxLoan    = "Exceeds maximum loan amount"
	ReasonInterestRate      = "Interest rate out of bounds"
	ReasonDuration          = "Duration out of bounds"
	ReasonNotOwner          = "Caller is not the owner"
	ReasonNotBorrower       = "Caller is not the borrower"
	ReasonInsufficientFunds = "Insufficient balance"
)

// Error carries the failure kind plus whatever identifies the offending
// input. ID and Amount are zero when they do not apply.
type Error struct {
	Kind      Kind
	ID        uint64
	Amount    money.Amount
	Reason    string
	UpdatedAt time.Time
	MaxAge    time.Duration
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.ID != 0 {
		fmt.Fprintf(&b, " id=%d", e.ID)
	}
	if !e.Amount.IsZero() {
		fmt.Fprintf(&b, " amount=%s", e.Amount)
	}
	if e.Kind == KindStalePrice {
		fmt.Fprintf(&b, " updated_at=%s max_age=%s", e.UpdatedAt.UTC().Format(time.RFC3339), e.MaxAge)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

// Is matches on Kind, and on Reason when the target names one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

var (
	ErrZeroAmount             = &Error{Kind: KindZeroAmount}
	ErrInvalidAmount          = &Error{Kind: KindInvalidAmount}
	ErrInvalidParameter       = &Error{Kind: KindInvalidParameter}
	ErrInsufficientCollateral = &Error{Kind: KindInsufficientCollateral}
	ErrInvalidPrice           = &Error{Kind: KindInvalidPrice}
	ErrStalePrice             = &Error{Kind: KindStalePrice}
	ErrInvalidRequest         = &Error{Kind: KindInvalidRequest}
	ErrInvalidRequestStatus   = &Error{Kind: KindInvalidRequestStatus}
	ErrInvalidLoan            = &Error{Kind: KindInvalidLoan}
	ErrUnauthorized           = &Error{Kind: KindUnauthorized}
	ErrExcessWithdrawalAmount = &Error{Kind: KindExcessWithdrawalAmount}
	ErrMaxSupplyExceeded      = &Error{Kind: KindMaxSupplyExceeded}
	ErrNotMinter              = &Error{Kind: KindNotMinter}
	ErrZeroAddress            = &Error{Kind: KindZeroAddress}
	ErrTransferFailed         = &Error{Kind: KindTransferFailed}

	// Raised by the id bounds check that precedes every lookup.
	ErrRequestOutOfRange = &Error{Kind: KindInvalidRequest, Reason: ReasonInvalidRange}
	ErrLoanOutOfRange    = &Error{Kind: KindInvalidLoan, Reason: ReasonInvalidRange}
)

func ZeroAmount(reason string) *Error { return &Error{Kind: KindZeroAmount, Reason: reason} }

func InvalidAmount(amount money.Amount, reason string) *Error {
	return &Error{Kind: KindInvalidAmount, Amount: amount, Reason: reason}
}

func InvalidParameter(reason string) *Error {
	return &Error{Kind: KindInvalidParameter, Reason: reason}
}

func InsufficientCollateral(required money.Amount) *Error {
	return &Error{Kind: KindInsufficientCollateral, Amount: required}
}

func InvalidPrice(feed string) *Error { return &Error{Kind: KindInvalidPrice, Reason: feed} }

func StalePrice(feed string, updatedAt time.Time, maxAge time.Duration) *Error {
	return &Error{Kind: KindStalePrice, Reason: feed, UpdatedAt: updatedAt, MaxAge: maxAge}
}

func InvalidRequest(id uint64, reason string) *Error {
	return &Error{Kind: KindInvalidRequest, ID: id, Reason: reason}
}

func InvalidRequestStatus(id uint64, reason string) *Error {
	return &Error{Kind: KindInvalidRequestStatus, ID: id, Reason: reason}
}

func InvalidLoan(id uint64, reason string) *Error {
	return &Error{Kind: KindInvalidLoan, ID: id, Reason: reason}
}

func Unauthorized(id uint64, reason string) *Error {
	return &Error{Kind: KindUnauthorized, ID: id, Reason: reason}
}

func ExcessWithdrawal(id uint64, available money.Amount) *Error {
	return &Error{Kind: KindExcessWithdrawalAmount, ID: id, Amount: available}
}

func MaxSupplyExceeded(requested money.Amount) *Error {
	return &Error{Kind: KindMaxSupplyExceeded, Amount: requested}
}

func NotMinter() *Error { return &Error{Kind: KindNotMinter} }

func ZeroAddress(reason string) *Error { return &Error{Kind: KindZeroAddress, Reason: reason} }

func TransferFailed(amount money.Amount, reason string) *Error {
	return &Error{Kind: KindTransferFailed, Amount: amount, Reason: reason}
}

// KindOf reports the taxonomy kind of err, or "" for infrastructure errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
