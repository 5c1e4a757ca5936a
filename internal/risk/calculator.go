// Package risk holds the pure collateral arithmetic: required collateral,
// health factor, interest, fees and the liquidation split. Nothing here
// performs I/O; prices arrive already validated.
package risk

import (
	"chainlend-backend/internal/domain/ledgererr"
	"chainlend-backend/internal/domain/money"

	"github.com/holiman/uint256"
)

const (
	BasisPoints          = 10_000
	MinCollateralRatio   = 15_000
	LiquidationThreshold = 13_000
	ProtocolFee          = 1_000
	LiquidationBonus     = 500
	LiquidationFee       = 200

	MinInterestRate = 500
	MaxInterestRate = 1_500

	Day            = 24 * 60 * 60
	MinDuration    = 30 * Day
	MaxDuration    = 1_095 * Day
	SecondsPerYear = 365 * Day
)

// Prices are positive feed answers with their fixed-point decimals.
type Prices struct {
	Collateral         *uint256.Int
	Loan               *uint256.Int
	CollateralDecimals uint8
	LoanDecimals       uint8
}

// Calculator converts between loan-asset and collateral-asset units.
type Calculator struct {
	LoanDecimals       uint8
	CollateralDecimals uint8
	MaxLoanAmount      money.Amount
}

// DefaultCalculator is USDC (6) against ETH (18), capped at 500k USDC.
func DefaultCalculator() Calculator {
	return Calculator{
		LoanDecimals:       6,
		CollateralDecimals: 18,
		MaxLoanAmount:      money.Units(500_000, 6),
	}
}

// RequiredCollateral is the 150% collateral for a new loan of amount.
func (c Calculator) RequiredCollateral(amount money.Amount, p Prices) (money.Amount, error) {
	if amount.IsZero() {
		return money.Amount{}, ledgererr.ZeroAmount("loan amount")
	}
	if amount.Gt(c.MaxLoanAmount) {
		return money.Amount{}, ledgererr.InvalidAmount(amount, ledgererr.ReasonExceedsMaxLoan)
	}
	return c.CollateralFor(amount, p, MinCollateralRatio)
}

// CollateralFor converts debt into collateral units scaled by ratioBps.
//
//	debt × loanPrice × ratio × 10^collDec × 10^collFeedDec
//	------------------------------------------------------
//	BP × collPrice × 10^loanDec × 10^loanFeedDec
func (c Calculator) CollateralFor(debt money.Amount, p Prices, ratioBps uint64) (money.Amount, error) {
	num, overflow := mulAll(debt.Int(), p.Loan, uint256.NewInt(ratioBps),
		money.Pow10(c.CollateralDecimals), money.Pow10(p.CollateralDecimals))
	if overflow {
		return money.Amount{}, ledgererr.InvalidAmount(debt, "collateral computation overflow")
	}
	den, overflow := mulAll(uint256.NewInt(BasisPoints), p.Collateral,
		money.Pow10(c.LoanDecimals), money.Pow10(p.LoanDecimals))
	if overflow || den.IsZero() {
		return money.Amount{}, ledgererr.InvalidPrice("collateral feed")
	}
	return money.FromUint256(num.Div(num, den)), nil
}

// HealthFactor is the collateral-to-debt ratio in basis points.
func (c Calculator) HealthFactor(collateral, debt money.Amount, p Prices) (*uint256.Int, error) {
	if debt.IsZero() {
		return new(uint256.Int).SetAllOne(), nil
	}
	num, overflow := mulAll(collateral.Int(), p.Collateral, uint256.NewInt(BasisPoints),
		money.Pow10(c.LoanDecimals), money.Pow10(p.LoanDecimals))
	if overflow {
		return nil, ledgererr.InvalidAmount(collateral, "health factor overflow")
	}
	den, overflow := mulAll(debt.Int(), p.Loan,
		money.Pow10(c.CollateralDecimals), money.Pow10(p.CollateralDecimals))
	if overflow || den.IsZero() {
		return nil, ledgererr.InvalidPrice("loan feed")
	}
	return num.Div(num, den), nil
}

// Liquidatable is true strictly below the threshold.
func Liquidatable(health *uint256.Int) bool {
	return health.Lt(uint256.NewInt(LiquidationThreshold))
}

// Interest is simple interest over duration seconds at rateBps per year.
func Interest(principal money.Amount, rateBps, duration uint64) (money.Amount, error) {
	num, overflow := mulAll(principal.Int(), uint256.NewInt(rateBps), uint256.NewInt(duration))
	if overflow {
		return money.Amount{}, ledgererr.InvalidAmount(principal, "interest overflow")
	}
	return money.FromUint256(num.Div(num, uint256.NewInt(BasisPoints*SecondsPerYear))), nil
}

// ProtocolFeeOf is the treasury's cut of the interest; principal is never charged.
func ProtocolFeeOf(interest money.Amount) money.Amount {
	return bps(interest, ProtocolFee)
}

// ExcessCollateral is what an active loan can release while staying at
// 150% of the outstanding debt and above its frozen requirement.
func (c Calculator) ExcessCollateral(actual, requiredAtCreation, debt money.Amount, p Prices) (money.Amount, error) {
	current, err := c.CollateralFor(debt, p, MinCollateralRatio)
	if err != nil {
		return money.Amount{}, err
	}
	return actual.SubFloor(money.Max(requiredAtCreation, current)), nil
}

// Split is the liquidation distribution. The four shares always add up to
// the seized collateral.
type Split struct {
	DebtValue  money.Amount
	Liquidator money.Amount
	Treasury   money.Amount
	Lender     money.Amount
	Borrower   money.Amount
}

// Liquidation distributes collateral in order bonus, fee, lender, borrower,
// each capped by what is left. A shortfall is borne by the lender.
func (c Calculator) Liquidation(collateral, debt money.Amount, p Prices) (Split, error) {
	debtValue, err := c.CollateralFor(debt, p, BasisPoints)
	if err != nil {
		return Split{}, err
	}
	s := Split{DebtValue: debtValue}
	left := collateral
	take := func(want money.Amount) money.Amount {
		got := money.Min(want, left)
		left, _ = left.Sub(got)
		return got
	}
	s.Liquidator = take(bps(debtValue, LiquidationBonus))
	s.Treasury = take(bps(debtValue, LiquidationFee))
	s.Lender = take(debtValue)
	s.Borrower = left
	return s, nil
}

// Total is the sum of the shares.
func (s Split) Total() money.Amount {
	t, _ := s.Liquidator.Add(s.Treasury)
	t, _ = t.Add(s.Lender)
	t, _ = t.Add(s.Borrower)
	return t
}

func bps(a money.Amount, rate uint64) money.Amount {
	n, overflow := new(uint256.Int).MulOverflow(a.Int(), uint256.NewInt(rate))
	if overflow {
		// a ≥ 2^256/rate; divide first and lose the sub-bps remainder
		n = new(uint256.Int).Div(a.Int(), uint256.NewInt(BasisPoints))
		return money.FromUint256(n.Mul(n, uint256.NewInt(rate)))
	}
	return money.FromUint256(n.Div(n, uint256.NewInt(BasisPoints)))
}

func mulAll(xs ...*uint256.Int) (*uint256.Int, bool) {
	out := uint256.NewInt(1)
	for _, x := range xs {
		var overflow bool
		if out, overflow = new(uint256.Int).MulOverflow(out, x); overflow {
			return nil, true
		}
	}
	return out, false
}
