// Package lending is the loan-lifecycle engine: requests, funding,
// repayment, collateral, liquidation and reward accrual. Every mutating
// call is one ledger transaction; prices are fetched before it opens and
// validated inside it.
package lending

import (
	"context"
	"encoding/json"
	"time"

	"chainlend-backend/internal/domain/asset"
	"chainlend-backend/internal/domain/ledger"
	"chainlend-backend/internal/domain/ledgererr"
	"chainlend-backend/internal/domain/money"
	"chainlend-backend/internal/domain/uow"
	"chainlend-backend/internal/oracle"
	"chainlend-backend/internal/risk"
	"chainlend-backend/pkg/id"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

type PriceOracle interface {
	Fetch(ctx context.Context) (oracle.Pair, error)
}

// Publisher receives committed ledger events. Failures are logged only.
type Publisher interface {
	Publish(ctx context.Context, events []ledger.Event) error
}

type Settings struct {
	Owner common.Address
	// Ledger is the escrow account holding collateral; it also mints rewards.
	Ledger        common.Address
	CreateReward  money.Amount
	FundReward    money.Amount
	MinClaim      money.Amount
	FaucetEnabled bool
}

func DefaultSettings(owner, ledgerAccount common.Address) Settings {
	return Settings{
		Owner:        owner,
		Ledger:       ledgerAccount,
		CreateReward: money.Units(10, 18),
		FundReward:   money.Units(50, 18),
		MinClaim:     money.Units(10, 18),
	}
}

type Service struct {
	uow     uow.UnitOfWork
	oracle  PriceOracle
	calc    risk.Calculator
	cfg     Settings
	pub     Publisher
	log     *zap.Logger
	now     func() time.Time
	observe func(op string, err error)
}

type Option func(*Service)

func WithClock(now func() time.Time) Option     { return func(s *Service) { s.now = now } }
func WithLogger(l *zap.Logger) Option           { return func(s *Service) { s.log = l } }
func WithPublisher(p Publisher) Option          { return func(s *Service) { s.pub = p } }
func WithObserver(f func(string, error)) Option { return func(s *Service) { s.observe = f } }

func New(u uow.UnitOfWork, o PriceOracle, calc risk.Calculator, cfg Settings, opts ...Option) *Service {
	s := &Service{
		uow:     u,
		oracle:  o,
		calc:    calc,
		cfg:     cfg,
		log:     zap.NewNop(),
		now:     time.Now,
		observe: func(string, error) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// txn is the per-transaction view handed to operation bodies.
type txn struct {
	uow.Repos
	st     *ledger.State
	now    time.Time
	events []ledger.Event
}

// move and credit journal transfers at the transaction clock.
func (t *txn) move(ctx context.Context, sym asset.Symbol, from, to common.Address, amount money.Amount, memo string) error {
	return asset.Move(ctx, t.Assets, sym, from, to, amount, t.now, memo)
}

func (t *txn) credit(ctx context.Context, sym asset.Symbol, to common.Address, amount money.Amount, memo string) error {
	return asset.Credit(ctx, t.Assets, sym, to, amount, t.now, memo)
}

func (t *txn) emit(ctx context.Context, name ledger.EventName, requestID uint64, account common.Address, fields map[string]any) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	e := ledger.Event{
		ID:        id.NewID32(),
		Name:      name,
		RequestID: requestID,
		Account:   account,
		Payload:   string(payload),
		CreatedAt: t.now,
	}
	if err := t.Ledger.AppendEvent(ctx, &e); err != nil {
		return err
	}
	t.events = append(t.events, e)
	return nil
}

func (s *Service) mutate(ctx context.Context, op string, fn func(t *txn) error) error {
	var t *txn
	err := s.uow.WithinLedgerTx(ctx, func(r uow.Repos, st *ledger.State) error {
		t = &txn{Repos: r, st: st, now: s.now().UTC()}
		return fn(t)
	})
	s.observe(op, err)
	if err != nil {
		if ledgererr.KindOf(err) == "" {
			s.log.Error("ledger operation failed", zap.String("op", op), zap.Error(err))
		} else {
			s.log.Debug("ledger operation rejected", zap.String("op", op), zap.Error(err))
		}
		return err
	}
	s.log.Info("ledger operation committed", zap.String("op", op), zap.Int("events", len(t.events)))
	s.publish(ctx, t.events)
	return nil
}

func (s *Service) read(ctx context.Context, fn func(r uow.Repos, st *ledger.State) error) error {
	return s.uow.WithinTx(ctx, func(r uow.Repos) error {
		st, err := r.Ledger.Get(ctx)
		if err != nil {
			return err
		}
		return fn(r, st)
	})
}

func (s *Service) publish(ctx context.Context, events []ledger.Event) {
	if s.pub == nil || len(events) == 0 {
		return
	}
	if err := s.pub.Publish(ctx, events); err != nil {
		s.log.Warn("publish ledger events", zap.Int("count", len(events)), zap.Error(err))
	}
}

// prefetch reads both feeds outside any transaction. The error is kept
// so callers can report id and status problems before price problems.
func (s *Service) prefetch(ctx context.Context) (oracle.Pair, error) {
	return s.oracle.Fetch(ctx)
}

// Settings returns a copy of the service's settings.
func (s *Service) Settings() Settings { return s.cfg }

// CalculateRequiredCollateral is the 150% requirement at current prices.
func (s *Service) CalculateRequiredCollateral(ctx context.Context, amount money.Amount) (money.Amount, error) {
	if amount.IsZero() {
		return money.Amount{}, ledgererr.ZeroAmount("loan amount")
	}
	if amount.Gt(s.calc.MaxLoanAmount) {
		return money.Amount{}, ledgererr.InvalidAmount(amount, ledgererr.ReasonExceedsMaxLoan)
	}
	pair, err := s.prefetch(ctx)
	if err != nil {
		return money.Amount{}, err
	}
	prices, err := pair.Resolve(s.now().UTC())
	if err != nil {
		return money.Amount{}, err
	}
	return s.calc.RequiredCollateral(amount, prices)
}
