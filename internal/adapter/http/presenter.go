package http

import (
	"chainlend-backend/internal/domain/asset"
	"chainlend-backend/internal/domain/money"
	"chainlend-backend/internal/usecase/lending"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Amounts travel as base-unit strings; the *_display siblings are for humans
// and are never parsed back.

func display(sym asset.Symbol, a money.Amount) string {
	return a.Decimal(sym.Decimals()).String()
}

// bpsPercent renders basis points as a percentage, "15000" → "150".
func bpsPercent(bps uint64) string {
	return decimal.NewFromInt(int64(bps)).Shift(-2).String()
}

type Quantity struct {
	Asset   asset.Symbol `json:"asset"`
	Amount  money.Amount `json:"amount"`
	Display string       `json:"display"`
}

func quantity(sym asset.Symbol, a money.Amount) Quantity {
	return Quantity{Asset: sym, Amount: a, Display: display(sym, a)}
}

type RequestView struct {
	*lending.RequestDTO
	AmountDisplay     string `json:"amount_requested_display"`
	RequiredDisplay   string `json:"required_collateral_display"`
	CollateralDisplay string `json:"actual_collateral_display"`
	RatePercent       string `json:"interest_rate_percent"`
}

func requestView(d *lending.RequestDTO) RequestView {
	return RequestView{
		RequestDTO:        d,
		AmountDisplay:     display(asset.USDC, d.AmountRequested),
		RequiredDisplay:   display(asset.ETH, d.RequiredCollateral),
		CollateralDisplay: display(asset.ETH, d.ActualCollateral),
		RatePercent:       bpsPercent(d.InterestRate),
	}
}

type LoanView struct {
	*lending.LoanDTO
	PrincipalDisplay string `json:"principal_display"`
	InterestDisplay  string `json:"interest_display"`
	TotalDueDisplay  string `json:"total_amount_due_display"`
}

func loanView(d *lending.LoanDTO) LoanView {
	return LoanView{
		LoanDTO:          d,
		PrincipalDisplay: display(asset.USDC, d.Principal),
		InterestDisplay:  display(asset.USDC, d.Interest),
		TotalDueDisplay:  display(asset.USDC, d.TotalDue),
	}
}

type RatioView struct {
	Ratio   string `json:"ratio_bps"`
	Percent string `json:"percent,omitempty"`
	AtRisk  *bool  `json:"at_risk,omitempty"`
}

// ratioView leaves Percent empty for the unbounded ratio of a debt-free loan.
func ratioView(r *uint256.Int) RatioView {
	v := RatioView{Ratio: r.Dec()}
	if r.IsUint64() && r.Uint64() <= 1<<62 {
		v.Percent = bpsPercent(r.Uint64())
	}
	return v
}
