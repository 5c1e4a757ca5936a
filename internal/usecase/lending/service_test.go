package lending

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"chainlend-backend/internal/adapter/pricefeed"
	"chainlend-backend/internal/adapter/repository/mysql"
	"chainlend-backend/internal/domain/asset"
	"chainlend-backend/internal/domain/ledger"
	"chainlend-backend/internal/domain/ledgererr"
	"chainlend-backend/internal/domain/money"
	"chainlend-backend/internal/domain/reward"
	"chainlend-backend/internal/oracle"
	"chainlend-backend/internal/risk"
	"chainlend-backend/internal/testutil/sqlitedb"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
)

var (
	owner    = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	escrow   = common.HexToAddress("0x8888888888888888888888888888888888888888")
	treasury = common.HexToAddress("0x7777777777777777777777777777777777777777")
	alice    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob      = common.HexToAddress("0x2222222222222222222222222222222222222222")
	carol    = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

const (
	ethUSD  = 2000_00000000
	usdcUSD = 1_00000000
	days30  = 30 * 24 * 3600
)

type capturePublisher struct {
	mu     sync.Mutex
	events []ledger.Event
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, events []ledger.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return p.err
}

// names lists published events, skipping faucet credits made by test setup.
func (p *capturePublisher) names() []ledger.EventName {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []ledger.EventName
	for _, e := range p.events {
		if e.Name != ledger.EventFaucetCredited {
			out = append(out, e.Name)
		}
	}
	return out
}

type fixture struct {
	svc  *Service
	db   *gorm.DB
	eth  *pricefeed.Static
	usdc *pricefeed.Static
	pub  *capturePublisher
	mu   sync.Mutex
	ops  []string
	at   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := sqlitedb.Open(t)
	if err := mysql.Bootstrap(context.Background(), db, mysql.BootstrapParams{Treasury: treasury, Ledger: escrow}); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	f := &fixture{db: db, at: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), pub: &capturePublisher{}}
	f.eth = pricefeed.NewStatic(ethUSD, f.at)
	f.usdc = pricefeed.NewStatic(usdcUSD, f.at)
	o := oracle.New(
		oracle.Source{Name: "ETH/USD", Feed: f.eth, MaxAge: time.Hour, Decimals: 8},
		oracle.Source{Name: "USDC/USD", Feed: f.usdc, MaxAge: time.Hour, Decimals: 8},
		nil,
	)
	cfg := DefaultSettings(owner, escrow)
	cfg.FaucetEnabled = true
	f.svc = New(mysql.NewGormUoW(db), o, risk.DefaultCalculator(), cfg,
		WithClock(func() time.Time { return f.at }),
		WithPublisher(f.pub),
		WithObserver(func(op string, _ error) {
			f.mu.Lock()
			f.ops = append(f.ops, op)
			f.mu.Unlock()
		}),
	)
	return f
}

// observed lists observed ops, skipping faucet calls made by test setup.
func (f *fixture) observed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, op := range f.ops {
		if op != "faucet" {
			out = append(out, op)
		}
	}
	return out
}

func (f *fixture) fund(t *testing.T, sym asset.Symbol, to common.Address, amount money.Amount) {
	t.Helper()
	if err := f.svc.Faucet(context.Background(), sym, to, amount); err != nil {
		t.Fatalf("Faucet %s: %v", sym, err)
	}
}

func (f *fixture) balance(t *testing.T, sym asset.Symbol, who common.Address) money.Amount {
	t.Helper()
	b, err := f.svc.BalanceOf(context.Background(), sym, who)
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	return b
}

func (f *fixture) setPrices(eth, usdc int64) {
	f.eth.Set(eth, f.at)
	f.usdc.Set(usdc, f.at)
}

// openRequest creates a 1000 USDC, 10%, 30 day request from alice.
func (f *fixture) openRequest(t *testing.T, collateral money.Amount) uint64 {
	t.Helper()
	f.fund(t, asset.ETH, alice, collateral)
	req, err := f.svc.CreateLoanRequest(context.Background(), CreateRequestInput{
		Borrower:     alice,
		Amount:       money.Units(1000, 6),
		InterestRate: 1000,
		Duration:     days30,
		Collateral:   collateral,
	})
	if err != nil {
		t.Fatalf("CreateLoanRequest: %v", err)
	}
	return req.ID
}

// openLoan adds bob's funding on top of openRequest.
func (f *fixture) openLoan(t *testing.T, collateral money.Amount) uint64 {
	t.Helper()
	id := f.openRequest(t, collateral)
	f.fund(t, asset.USDC, bob, money.Units(1000, 6))
	if _, err := f.svc.FundLoan(context.Background(), bob, id); err != nil {
		t.Fatalf("FundLoan: %v", err)
	}
	return id
}

func TestCalculateRequiredCollateral(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.svc.CalculateRequiredCollateral(ctx, money.Units(1000, 6))
	if err != nil {
		t.Fatalf("CalculateRequiredCollateral: %v", err)
	}
	if got.String() != "750000000000000000" {
		t.Fatalf("required = %s, want 0.75 ETH", got)
	}

	// price doubles, requirement halves
	f.setPrices(4000_00000000, usdcUSD)
	half, _ := f.svc.CalculateRequiredCollateral(ctx, money.Units(1000, 6))
	if half.String() != "375000000000000000" {
		t.Fatalf("required at 4000 = %s", half)
	}

	if _, err := f.svc.CalculateRequiredCollateral(ctx, money.Zero()); !errors.Is(err, ledgererr.ErrZeroAmount) {
		t.Fatalf("want ZeroAmount, got %v", err)
	}
	if _, err := f.svc.CalculateRequiredCollateral(ctx, money.Units(500_001, 6)); !errors.Is(err, ledgererr.ErrInvalidAmount) {
		t.Fatalf("want InvalidAmount, got %v", err)
	}
}

func TestCreateLoanRequest_Validation(t *testing.T) {
	f := newFixture(t)
	valid := CreateRequestInput{
		Borrower:     alice,
		Amount:       money.Units(1000, 6),
		InterestRate: 1000,
		Duration:     days30,
		Collateral:   money.Units(1, 18),
	}
	tests := []struct {
		name string
		mod  func(in *CreateRequestInput)
		want error
	}{
		{"zero amount", func(in *CreateRequestInput) { in.Amount = money.Zero() }, ledgererr.ErrZeroAmount},
		{"above max", func(in *CreateRequestInput) { in.Amount = money.Units(500_001, 6) }, ledgererr.ErrInvalidAmount},
		{"rate low", func(in *CreateRequestInput) { in.InterestRate = 499 }, ledgererr.ErrInvalidParameter},
		{"rate high", func(in *CreateRequestInput) { in.InterestRate = 1501 }, ledgererr.ErrInvalidParameter},
		{"duration short", func(in *CreateRequestInput) { in.Duration = days30 - 1 }, ledgererr.ErrInvalidParameter},
		{"duration long", func(in *CreateRequestInput) { in.Duration = risk.MaxDuration + 1 }, ledgererr.ErrInvalidParameter},
		{"zero collateral", func(in *CreateRequestInput) { in.Collateral = money.Zero() }, ledgererr.ErrZeroAmount},
		{"insufficient", func(in *CreateRequestInput) { in.Collateral = money.MustParse("749999999999999999") }, ledgererr.ErrInsufficientCollateral},
		// alice holds no ETH yet
		{"transfer fails", func(in *CreateRequestInput) {}, ledgererr.ErrTransferFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := valid
			tc.mod(&in)
			_, err := f.svc.CreateLoanRequest(context.Background(), in)
			if !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}

	stats, _ := f.svc.ProtocolStats(context.Background())
	if stats.TotalRequests != 0 || stats.ActiveRequests != 0 {
		t.Fatalf("rejected requests leaked into state: %+v", stats)
	}
}

func TestCreateLoanRequest_StalePrice(t *testing.T) {
	f := newFixture(t)
	f.fund(t, asset.ETH, alice, money.Units(1, 18))
	f.at = f.at.Add(2 * time.Hour)

	_, err := f.svc.CreateLoanRequest(context.Background(), CreateRequestInput{
		Borrower: alice, Amount: money.Units(1000, 6), InterestRate: 1000, Duration: days30, Collateral: money.Units(1, 18),
	})
	var le *ledgererr.Error
	if !errors.As(err, &le) || le.Kind != ledgererr.KindStalePrice || le.MaxAge != time.Hour {
		t.Fatalf("want StalePrice with max age, got %v", err)
	}
}

func TestCreateLoanRequest_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openRequest(t, money.Units(1, 18))
	if id != 1 {
		t.Fatalf("first id = %d", id)
	}

	req, err := f.svc.GetLoanRequest(ctx, id)
	if err != nil {
		t.Fatalf("GetLoanRequest: %v", err)
	}
	if req.RequiredCollateral.String() != "750000000000000000" || !req.ActualCollateral.Eq(money.Units(1, 18)) {
		t.Fatalf("collateral = %+v", req)
	}
	if !f.balance(t, asset.ETH, escrow).Eq(money.Units(1, 18)) || !f.balance(t, asset.ETH, alice).IsZero() {
		t.Fatal("collateral not moved into escrow")
	}
	pending, _ := f.svc.PendingRewards(ctx, alice)
	if !pending.Eq(money.Units(10, 18)) {
		t.Fatalf("pending rewards = %s", pending)
	}

	names := f.pub.names()
	want := []ledger.EventName{ledger.EventLoanRequestCreated, ledger.EventCollateralDeposited, ledger.EventRewardsEarned}
	if len(names) != len(want) {
		t.Fatalf("published %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("published %v, want %v", names, want)
		}
	}
}

func TestCreateThenCancel_RefundsExactly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	deposit := money.MustParse("912345678901234567")
	id := f.openRequest(t, deposit)

	if _, err := f.svc.CancelLoanRequest(ctx, bob, id); !errors.Is(err, ledgererr.ErrUnauthorized) {
		t.Fatalf("cancel by stranger: want Unauthorized, got %v", err)
	}
	if _, err := f.svc.CancelLoanRequest(ctx, alice, 0); !errors.Is(err, ledgererr.ErrRequestOutOfRange) {
		t.Fatalf("cancel id 0: want out of range, got %v", err)
	}

	req, err := f.svc.CancelLoanRequest(ctx, alice, id)
	if err != nil {
		t.Fatalf("CancelLoanRequest: %v", err)
	}
	if !req.ActualCollateral.IsZero() || req.Status != "cancelled" {
		t.Fatalf("request after cancel: %+v", req)
	}
	if !f.balance(t, asset.ETH, alice).Eq(deposit) || !f.balance(t, asset.ETH, escrow).IsZero() {
		t.Fatal("refund not exact")
	}
	stats, _ := f.svc.ProtocolStats(ctx)
	if stats.ActiveRequests != 0 || stats.TotalRequests != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	if _, err := f.svc.CancelLoanRequest(ctx, alice, id); !errors.Is(err, ledgererr.ErrInvalidRequestStatus) {
		t.Fatalf("second cancel: want InvalidRequestStatus, got %v", err)
	}
}

func TestFundLoan_Checks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openRequest(t, money.Units(1, 18))

	if _, err := f.svc.FundLoan(ctx, bob, 2); !errors.Is(err, ledgererr.ErrRequestOutOfRange) {
		t.Fatalf("want out of range, got %v", err)
	}
	self := &ledgererr.Error{Kind: ledgererr.KindInvalidRequest, Reason: ledgererr.ReasonSelfFunding}
	if _, err := f.svc.FundLoan(ctx, alice, id); !errors.Is(err, self) {
		t.Fatalf("self funding: got %v", err)
	}
	// bob has no USDC
	if _, err := f.svc.FundLoan(ctx, bob, id); !errors.Is(err, ledgererr.ErrTransferFailed) {
		t.Fatalf("want TransferFailed, got %v", err)
	}
	if req, _ := f.svc.GetLoanRequest(ctx, id); req.Status != "pending" {
		t.Fatalf("failed funding changed status: %s", req.Status)
	}
}

func TestFundRepayWithdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openLoan(t, money.Units(1, 18))

	l, err := f.svc.GetActiveLoan(ctx, id)
	if err != nil {
		t.Fatalf("GetActiveLoan: %v", err)
	}
	if l.Interest.String() != "8219178" || l.TotalDue.String() != "1008219178" {
		t.Fatalf("interest = %s total = %s", l.Interest, l.TotalDue)
	}
	if !l.DueDate.Equal(f.at.Add(days30 * time.Second)) {
		t.Fatalf("due date = %s", l.DueDate)
	}
	if !f.balance(t, asset.USDC, alice).Eq(money.Units(1000, 6)) {
		t.Fatal("principal not delivered to borrower")
	}
	stats, _ := f.svc.ProtocolStats(ctx)
	if stats.ActiveRequests != 0 || stats.ActiveLoans != 1 || !stats.TotalVolume.Eq(money.Units(1000, 6)) {
		t.Fatalf("stats after funding = %+v", stats)
	}
	if pending, _ := f.svc.PendingRewards(ctx, bob); !pending.Eq(money.Units(50, 18)) {
		t.Fatalf("lender rewards = %s", pending)
	}

	if _, err := f.svc.FundLoan(ctx, carol, id); !errors.Is(err, ledgererr.ErrInvalidRequestStatus) {
		t.Fatalf("double funding: got %v", err)
	}
	if _, err := f.svc.WithdrawCollateral(ctx, alice, id); !errors.Is(err, ledgererr.ErrInvalidLoan) {
		t.Fatalf("withdraw before repay: got %v", err)
	}
	// alice only holds the principal; the interest must come from somewhere
	f.fund(t, asset.USDC, alice, money.New(8_219_178))

	if _, err := f.svc.RepayLoan(ctx, bob, id); !errors.Is(err, ledgererr.ErrUnauthorized) {
		t.Fatalf("repay by lender: got %v", err)
	}
	rep, err := f.svc.RepayLoan(ctx, alice, id)
	if err != nil {
		t.Fatalf("RepayLoan: %v", err)
	}
	if rep.ProtocolFee.String() != "821917" || rep.LenderShare.String() != "1007397261" {
		t.Fatalf("repayment = %+v", rep)
	}
	sum, _ := rep.ProtocolFee.Add(rep.LenderShare)
	if !sum.Eq(rep.TotalPaid) {
		t.Fatal("fee + lender share != total due")
	}
	if !f.balance(t, asset.USDC, bob).Eq(rep.LenderShare) || !f.balance(t, asset.USDC, treasury).Eq(rep.ProtocolFee) {
		t.Fatal("repayment not distributed")
	}
	if _, err := f.svc.RepayLoan(ctx, alice, id); !errors.Is(err, ledgererr.ErrInvalidLoan) {
		t.Fatalf("second repay: got %v", err)
	}

	check, _ := f.svc.CanWithdrawCollateral(ctx, id)
	if !check.CanWithdraw || check.Reason != WithdrawAvailable || !check.Amount.Eq(money.Units(1, 18)) {
		t.Fatalf("CanWithdrawCollateral = %+v", check)
	}
	got, err := f.svc.WithdrawCollateral(ctx, alice, id)
	if err != nil || !got.Eq(money.Units(1, 18)) {
		t.Fatalf("WithdrawCollateral = %s, %v", got, err)
	}
	if !f.balance(t, asset.ETH, alice).Eq(money.Units(1, 18)) {
		t.Fatal("collateral not returned")
	}
	noColl := &ledgererr.Error{Kind: ledgererr.KindInvalidRequest, Reason: ledgererr.ReasonNoCollateral}
	if _, err := f.svc.WithdrawCollateral(ctx, alice, id); !errors.Is(err, noColl) {
		t.Fatalf("second withdraw: got %v", err)
	}
}

func TestAddAndWithdrawExcessCollateral(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openLoan(t, money.Units(1, 18))

	if _, err := f.svc.AddCollateral(ctx, alice, id, money.Zero()); !errors.Is(err, ledgererr.ErrZeroAmount) {
		t.Fatalf("zero add: got %v", err)
	}
	f.fund(t, asset.ETH, alice, money.Units(1, 18))
	if _, err := f.svc.AddCollateral(ctx, bob, id, money.Units(1, 18)); !errors.Is(err, ledgererr.ErrUnauthorized) {
		t.Fatalf("add by lender: got %v", err)
	}
	req, err := f.svc.AddCollateral(ctx, alice, id, money.Units(1, 18))
	if err != nil || !req.ActualCollateral.Eq(money.Units(2, 18)) {
		t.Fatalf("AddCollateral = %+v, %v", req, err)
	}

	// 150% of 1008.219178 USDC at 2000 is 0.756164383500000000 ETH
	excess, err := f.svc.GetExcessCollateral(ctx, id)
	if err != nil {
		t.Fatalf("GetExcessCollateral: %v", err)
	}
	if excess.String() != "1243835616500000000" {
		t.Fatalf("excess = %s", excess)
	}
	over, _ := excess.Add(money.New(1))
	if _, err := f.svc.WithdrawExcessCollateral(ctx, alice, id, over); !errors.Is(err, ledgererr.ErrExcessWithdrawalAmount) {
		t.Fatalf("over-withdraw: got %v", err)
	}
	left, err := f.svc.WithdrawExcessCollateral(ctx, alice, id, money.Units(1, 18))
	if err != nil {
		t.Fatalf("WithdrawExcessCollateral: %v", err)
	}
	if !left.ActualCollateral.Eq(money.Units(1, 18)) || !f.balance(t, asset.ETH, alice).Eq(money.Units(1, 18)) {
		t.Fatalf("after excess withdrawal: %+v", left)
	}
	h, _ := f.svc.GetHealthFactor(ctx, id)
	if h.Uint64() < risk.MinCollateralRatio {
		t.Fatalf("health after withdrawal = %d", h.Uint64())
	}
}

func TestLiquidation_AfterPriceDrop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openLoan(t, money.MustParse("750000000000000000"))

	healthy := &ledgererr.Error{Kind: ledgererr.KindInvalidLoan, Reason: ledgererr.ReasonLoanHealthy}
	if _, err := f.svc.LiquidateCollateral(ctx, carol, id); !errors.Is(err, healthy) {
		t.Fatalf("healthy loan: got %v", err)
	}
	r, _ := f.svc.IsAtRiskOfLiquidation(ctx, id)
	if r.AtRisk || r.Ratio.Uint64() != 14877 {
		t.Fatalf("risk at 2000 = %+v (%d)", r, r.Ratio.Uint64())
	}

	f.setPrices(1000_00000000, usdcUSD)
	if r, _ := f.svc.IsAtRiskOfLiquidation(ctx, id); !r.AtRisk {
		t.Fatal("loan should be at risk after the drop")
	}
	liq, err := f.svc.LiquidateCollateral(ctx, carol, id)
	if err != nil {
		t.Fatalf("LiquidateCollateral: %v", err)
	}
	if liq.Liquidator.String() != "50410958900000000" || liq.Treasury.String() != "20164383560000000" {
		t.Fatalf("bonus/fee = %s/%s", liq.Liquidator, liq.Treasury)
	}
	if !liq.Borrower.IsZero() {
		t.Fatalf("under-collateralized loan left borrower %s", liq.Borrower)
	}
	total, _ := liq.Liquidator.Add(liq.Treasury)
	total, _ = total.Add(liq.Lender)
	total, _ = total.Add(liq.Borrower)
	if !total.Eq(money.MustParse("750000000000000000")) {
		t.Fatalf("split sums to %s", total)
	}
	if !f.balance(t, asset.ETH, carol).Eq(liq.Liquidator) || !f.balance(t, asset.ETH, bob).Eq(liq.Lender) || !f.balance(t, asset.ETH, escrow).IsZero() {
		t.Fatal("seized collateral not distributed")
	}

	if _, err := f.svc.LiquidateCollateral(ctx, carol, id); !errors.Is(err, ledgererr.ErrInvalidLoan) {
		t.Fatalf("second liquidation: got %v", err)
	}
	l, _ := f.svc.GetActiveLoan(ctx, id)
	if l.Status != "liquidated" {
		t.Fatalf("status = %s", l.Status)
	}
	stats, _ := f.svc.ProtocolStats(ctx)
	if stats.ActiveLoans != 0 {
		t.Fatalf("active loans = %d", stats.ActiveLoans)
	}
}

func TestLiquidation_BorrowerKeepsRemainder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openLoan(t, money.Units(2, 18))

	f.setPrices(600_00000000, usdcUSD)
	liq, err := f.svc.LiquidateCollateral(ctx, carol, id)
	if err != nil {
		t.Fatalf("LiquidateCollateral: %v", err)
	}
	if liq.Borrower.IsZero() {
		t.Fatal("borrower remainder should be positive")
	}
	total, _ := liq.Liquidator.Add(liq.Treasury)
	total, _ = total.Add(liq.Lender)
	total, _ = total.Add(liq.Borrower)
	if !total.Eq(money.Units(2, 18)) {
		t.Fatalf("split sums to %s", total)
	}
	if !f.balance(t, asset.ETH, alice).Eq(liq.Borrower) {
		t.Fatal("remainder not returned to borrower")
	}
}

func TestLiquidation_PriceErrorsAfterStatusChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openLoan(t, money.Units(1, 18))

	f.eth.Fail(errors.New("rpc down"))
	if _, err := f.svc.LiquidateCollateral(ctx, carol, 9); !errors.Is(err, ledgererr.ErrLoanOutOfRange) {
		t.Fatalf("range must be checked before price: got %v", err)
	}
	if _, err := f.svc.LiquidateCollateral(ctx, carol, id); err == nil || ledgererr.KindOf(err) != "" {
		t.Fatalf("want feed error, got %v", err)
	}

	f.eth.Fail(nil)
	f.eth.Set(0, f.at)
	if _, err := f.svc.LiquidateCollateral(ctx, carol, id); !errors.Is(err, ledgererr.ErrInvalidPrice) {
		t.Fatalf("want InvalidPrice, got %v", err)
	}
}

func TestClaimRewards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.ClaimRewards(ctx, alice); !errors.Is(err, ledgererr.ErrInvalidAmount) {
		t.Fatalf("claim with nothing pending: got %v", err)
	}
	f.openRequest(t, money.Units(1, 18))

	got, err := f.svc.ClaimRewards(ctx, alice)
	if err != nil || !got.Eq(money.Units(10, 18)) {
		t.Fatalf("ClaimRewards = %s, %v", got, err)
	}
	if pending, _ := f.svc.PendingRewards(ctx, alice); !pending.IsZero() {
		t.Fatalf("pending after claim = %s", pending)
	}
	if !f.balance(t, asset.CL, alice).Eq(money.Units(10, 18)) {
		t.Fatal("reward not minted")
	}
	info, _ := f.svc.TokenInfo(ctx)
	if !info.Total.Eq(money.Units(10, 18)) || !info.Remaining.Eq(money.Units(99_999_990, 18)) {
		t.Fatalf("token info = %+v", info)
	}
	if share, _ := f.svc.HolderShare(ctx, alice); share != 10_000 {
		t.Fatalf("holder share = %d", share)
	}
	if _, err := f.svc.ClaimRewards(ctx, alice); !errors.Is(err, ledgererr.ErrInvalidAmount) {
		t.Fatalf("second claim: got %v", err)
	}
}

func TestClaimRewards_MaxSupplyExceeded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.openRequest(t, money.Units(1, 18))

	// leave room for 5 CL while alice has 10 CL pending
	nearCap, _ := reward.MaxSupply.Sub(money.Units(5, 18))
	repo := mysql.NewRewardRepository(f.db)
	s, err := repo.GetSupply(ctx, reward.TokenSymbol)
	if err != nil {
		t.Fatalf("GetSupply: %v", err)
	}
	s.TotalSupply = nearCap
	if err := repo.SaveSupply(ctx, s); err != nil {
		t.Fatalf("SaveSupply: %v", err)
	}

	if _, err := f.svc.ClaimRewards(ctx, alice); !errors.Is(err, ledgererr.ErrMaxSupplyExceeded) {
		t.Fatalf("claim past cap: got %v", err)
	}
	if pending, _ := f.svc.PendingRewards(ctx, alice); !pending.Eq(money.Units(10, 18)) {
		t.Fatalf("pending after failed claim = %s", pending)
	}
	if !f.balance(t, asset.CL, alice).IsZero() {
		t.Fatal("failed claim must not mint")
	}
	info, _ := f.svc.TokenInfo(ctx)
	if !info.Total.Eq(nearCap) || !info.Remaining.Eq(money.Units(5, 18)) {
		t.Fatalf("token info = %+v", info)
	}
	for _, n := range f.pub.names() {
		if n == ledger.EventRewardsClaimed {
			t.Fatal("failed claim published RewardsClaimed")
		}
	}
}

func TestConcurrentCreateAndFund(t *testing.T) {
	const n = 20
	f := newFixture(t)
	ctx := context.Background()
	collateral := money.Units(1, 18)

	borrowers := make([]common.Address, n)
	lenders := make([]common.Address, n)
	for i := range borrowers {
		borrowers[i] = common.HexToAddress(fmt.Sprintf("0x%040x", 0xb000+i))
		lenders[i] = common.HexToAddress(fmt.Sprintf("0x%040x", 0xc000+i))
		f.fund(t, asset.ETH, borrowers[i], collateral)
		f.fund(t, asset.USDC, lenders[i], money.Units(1000, 6))
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ids  []uint64
		errs []error
	)
	for _, b := range borrowers {
		wg.Add(1)
		go func(b common.Address) {
			defer wg.Done()
			req, err := f.svc.CreateLoanRequest(ctx, CreateRequestInput{
				Borrower:     b,
				Amount:       money.Units(1000, 6),
				InterestRate: 1000,
				Duration:     days30,
				Collateral:   collateral,
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			ids = append(ids, req.ID)
		}(b)
	}
	wg.Wait()
	if len(errs) != 0 {
		t.Fatalf("CreateLoanRequest errors: %v", errs)
	}
	seen := map[uint64]bool{}
	for _, id := range ids {
		if id == 0 || id > n || seen[id] {
			t.Fatalf("ids not unique in 1..%d: %v", n, ids)
		}
		seen[id] = true
	}
	st, err := f.svc.ProtocolStats(ctx)
	if err != nil {
		t.Fatalf("ProtocolStats: %v", err)
	}
	if st.TotalRequests != n || st.ActiveRequests != n || st.ActiveLoans != 0 {
		t.Fatalf("stats after create = %+v", st)
	}
	if got, want := f.balance(t, asset.ETH, escrow), money.Units(n, 18); !got.Eq(want) {
		t.Fatalf("escrow ETH = %s, want %s", got, want)
	}

	for i, id := range ids {
		wg.Add(1)
		go func(lender common.Address, id uint64) {
			defer wg.Done()
			_, err := f.svc.FundLoan(ctx, lender, id)
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(lenders[i], id)
	}
	wg.Wait()
	if len(errs) != 0 {
		t.Fatalf("FundLoan errors: %v", errs)
	}
	if st, _ = f.svc.ProtocolStats(ctx); st.ActiveRequests != 0 || st.ActiveLoans != n || !st.TotalVolume.Eq(money.Units(n*1000, 6)) {
		t.Fatalf("stats after fund = %+v", st)
	}
	for _, b := range borrowers {
		if got := f.balance(t, asset.USDC, b); !got.Eq(money.Units(1000, 6)) {
			t.Fatalf("borrower %s USDC = %s", b.Hex(), got)
		}
	}
	if got, want := f.balance(t, asset.ETH, escrow), money.Units(n, 18); !got.Eq(want) {
		t.Fatalf("escrow ETH after fund = %s, want %s", got, want)
	}
}

func TestPublisherFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("broker down")
	f.openRequest(t, money.Units(1, 18))
	if len(f.pub.names()) == 0 {
		t.Fatal("publisher not called")
	}
}

func TestObserverSeesEveryMutation(t *testing.T) {
	f := newFixture(t)
	f.openRequest(t, money.Units(1, 18))
	_, _ = f.svc.CancelLoanRequest(context.Background(), bob, 1)
	ops := f.observed()
	if len(ops) != 2 || ops[0] != "create_request" || ops[1] != "cancel_request" {
		t.Fatalf("observed ops = %v", ops)
	}
}
