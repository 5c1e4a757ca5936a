package lending

import (
	"context"
	"errors"
	"fmt"
	"math"

	"chainlend-backend/internal/domain/asset"
	"chainlend-backend/internal/domain/ledger"
	"chainlend-backend/internal/domain/ledgererr"
	"chainlend-backend/internal/domain/loan"
	"chainlend-backend/internal/domain/money"
	"chainlend-backend/internal/domain/reward"
	"chainlend-backend/internal/domain/uow"
	"chainlend-backend/internal/oracle"
	"chainlend-backend/internal/risk"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func getRequest(ctx context.Context, r uow.Repos, st *ledger.State, id uint64) (*loan.Request, error) {
	if !st.InRange(id) {
		return nil, ledgererr.InvalidRequest(id, ledgererr.ReasonInvalidRange)
	}
	req, err := r.Requests.GetByID(ctx, id)
	if errors.Is(err, loan.ErrNotFound) {
		return nil, ledgererr.InvalidRequest(id, ledgererr.ReasonRequestNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get request %d: %w", id, err)
	}
	return req, nil
}

func getLoan(ctx context.Context, r uow.Repos, st *ledger.State, id uint64) (*loan.Loan, error) {
	if !st.InRange(id) {
		return nil, ledgererr.InvalidLoan(id, ledgererr.ReasonInvalidRange)
	}
	l, err := r.Loans.GetByRequestID(ctx, id)
	if errors.Is(err, loan.ErrNotFound) {
		return nil, ledgererr.InvalidLoan(id, ledgererr.ReasonLoanNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get loan %d: %w", id, err)
	}
	return l, nil
}

func (s *Service) GetLoanRequest(ctx context.Context, id uint64) (*RequestDTO, error) {
	var out *RequestDTO
	err := s.read(ctx, func(r uow.Repos, st *ledger.State) error {
		req, err := getRequest(ctx, r, st, id)
		if err != nil {
			return err
		}
		out = toRequestDTO(req)
		return nil
	})
	return out, err
}

func (s *Service) GetActiveLoan(ctx context.Context, id uint64) (*LoanDTO, error) {
	var out *LoanDTO
	err := s.read(ctx, func(r uow.Repos, st *ledger.State) error {
		l, err := getLoan(ctx, r, st, id)
		if err != nil {
			return err
		}
		out = toLoanDTO(l)
		return nil
	})
	return out, err
}

// GetHealthFactor is the current collateral-to-debt ratio in bps.
func (s *Service) GetHealthFactor(ctx context.Context, id uint64) (*uint256.Int, error) {
	pair, fetchErr := s.prefetch(ctx)

	var out *uint256.Int
	err := s.read(ctx, func(r uow.Repos, st *ledger.State) error {
		var err error
		out, err = s.health(ctx, r, st, id, pair, fetchErr)
		return err
	})
	return out, err
}

func (s *Service) health(ctx context.Context, r uow.Repos, st *ledger.State, id uint64, pair oracle.Pair, fetchErr error) (*uint256.Int, error) {
	l, err := getLoan(ctx, r, st, id)
	if err != nil {
		return nil, err
	}
	if l.Status != loan.StatusActive {
		return nil, ledgererr.InvalidLoan(id, ledgererr.ReasonLoanNotActive)
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	prices, err := pair.Resolve(s.now().UTC())
	if err != nil {
		return nil, err
	}
	req, err := r.Requests.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get request %d: %w", id, err)
	}
	return s.calc.HealthFactor(req.ActualCollateral, l.TotalDue, prices)
}

func (s *Service) IsAtRiskOfLiquidation(ctx context.Context, id uint64) (*Risk, error) {
	h, err := s.GetHealthFactor(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Risk{AtRisk: risk.Liquidatable(h), Ratio: h}, nil
}

// GetExcessCollateral is what the borrower could take out now: above the
// requirement while pending, above 150% of debt while active, everything
// once repaid.
func (s *Service) GetExcessCollateral(ctx context.Context, id uint64) (money.Amount, error) {
	pair, fetchErr := s.prefetch(ctx)

	var out money.Amount
	err := s.read(ctx, func(r uow.Repos, st *ledger.State) error {
		req, err := getRequest(ctx, r, st, id)
		if err != nil {
			return err
		}
		switch req.Status {
		case loan.RequestPending:
			out = req.ActualCollateral.SubFloor(req.RequiredCollateral)
			return nil
		case loan.RequestCancelled:
			return nil
		}
		l, err := getLoan(ctx, r, st, id)
		if err != nil {
			return err
		}
		switch l.Status {
		case loan.StatusRepaid:
			out = req.ActualCollateral
			return nil
		case loan.StatusLiquidated:
			return nil
		}
		if fetchErr != nil {
			return fetchErr
		}
		prices, err := pair.Resolve(s.now().UTC())
		if err != nil {
			return err
		}
		out, err = s.calc.ExcessCollateral(req.ActualCollateral, req.RequiredCollateral, l.TotalDue, prices)
		return err
	})
	if err != nil {
		return money.Amount{}, err
	}
	return out, nil
}

const (
	WithdrawInvalidID    = "Invalid request ID"
	WithdrawNoRequest    = "Request does not exist"
	WithdrawNoCollateral = "No collateral deposited"
	WithdrawNotFunded    = "Request not funded"
	WithdrawNotRepaid    = "Loan not repaid"
	WithdrawAvailable    = "Collateral available"
)

// CanWithdrawCollateral never fails for business reasons; it reports them.
func (s *Service) CanWithdrawCollateral(ctx context.Context, id uint64) (*WithdrawalCheck, error) {
	out := &WithdrawalCheck{}
	err := s.read(ctx, func(r uow.Repos, st *ledger.State) error {
		if !st.InRange(id) {
			out.Reason = WithdrawInvalidID
			return nil
		}
		req, err := r.Requests.GetByID(ctx, id)
		if errors.Is(err, loan.ErrNotFound) {
			out.Reason = WithdrawNoRequest
			return nil
		}
		if err != nil {
			return fmt.Errorf("get request %d: %w", id, err)
		}
		if req.ActualCollateral.IsZero() {
			out.Reason = WithdrawNoCollateral
			return nil
		}
		if req.Status != loan.RequestFunded {
			out.Reason = WithdrawNotFunded
			return nil
		}
		l, err := r.Loans.GetByRequestID(ctx, id)
		if err != nil && !errors.Is(err, loan.ErrNotFound) {
			return fmt.Errorf("get loan %d: %w", id, err)
		}
		if l == nil || l.Status != loan.StatusRepaid {
			out.Reason = WithdrawNotRepaid
			return nil
		}
		out.CanWithdraw = true
		out.Amount = req.ActualCollateral
		out.Reason = WithdrawAvailable
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetPendingRequests pages through pending ids in ascending order.
func (s *Service) GetPendingRequests(ctx context.Context, offset, limit int) (*PendingPage, error) {
	if offset < 0 || limit < 0 {
		return nil, ledgererr.InvalidParameter("negative offset or limit")
	}
	out := &PendingPage{IDs: []uint64{}}
	if limit == 0 {
		return out, nil
	}
	err := s.uow.WithinTx(ctx, func(r uow.Repos) error {
		fetch := limit + 1
		if limit >= math.MaxInt32 {
			fetch = -1
		}
		ids, err := r.Requests.ListPending(ctx, offset, fetch)
		if err != nil {
			return fmt.Errorf("list pending: %w", err)
		}
		if fetch > 0 && len(ids) > limit {
			out.IDs, out.HasMore = ids[:limit], true
			return nil
		}
		if len(ids) > 0 {
			out.IDs = ids
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) GetPendingRequestsCount(ctx context.Context) (uint64, error) {
	var n int64
	err := s.uow.WithinTx(ctx, func(r uow.Repos) error {
		var err error
		n, err = r.Requests.CountPending(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return uint64(n), nil
}

func (s *Service) UserRequests(ctx context.Context, borrower common.Address) ([]uint64, error) {
	var out []uint64
	err := s.uow.WithinTx(ctx, func(r uow.Repos) error {
		var err error
		out, err = r.Requests.ListByBorrower(ctx, borrower)
		return err
	})
	return out, err
}

// UserLoans lists the loans the account has funded.
func (s *Service) UserLoans(ctx context.Context, lender common.Address) ([]uint64, error) {
	var out []uint64
	err := s.uow.WithinTx(ctx, func(r uow.Repos) error {
		var err error
		out, err = r.Loans.ListByLender(ctx, lender)
		return err
	})
	return out, err
}

func (s *Service) LoanEvents(ctx context.Context, id uint64) ([]ledger.Event, error) {
	var out []ledger.Event
	err := s.read(ctx, func(r uow.Repos, st *ledger.State) error {
		if !st.InRange(id) {
			return ledgererr.InvalidRequest(id, ledgererr.ReasonInvalidRange)
		}
		var err error
		out, err = r.Ledger.EventsByRequest(ctx, id)
		return err
	})
	return out, err
}

func (s *Service) PendingRewards(ctx context.Context, account common.Address) (money.Amount, error) {
	var out money.Amount
	err := s.uow.WithinTx(ctx, func(r uow.Repos) error {
		p, err := r.Rewards.GetPending(ctx, account)
		if err != nil {
			return err
		}
		out = p.Amount
		return nil
	})
	return out, err
}

func (s *Service) BalanceOf(ctx context.Context, sym asset.Symbol, account common.Address) (money.Amount, error) {
	if !sym.Valid() {
		return money.Amount{}, ledgererr.InvalidParameter("unknown asset " + string(sym))
	}
	var out money.Amount
	err := s.uow.WithinTx(ctx, func(r uow.Repos) error {
		var err error
		out, err = r.Assets.BalanceOf(ctx, sym, account)
		return err
	})
	return out, err
}

func (s *Service) TokenInfo(ctx context.Context) (*TokenInfo, error) {
	var out *TokenInfo
	err := s.uow.WithinTx(ctx, func(r uow.Repos) error {
		sup, err := r.Rewards.GetSupply(ctx, reward.TokenSymbol)
		if err != nil {
			return err
		}
		out = &TokenInfo{Symbol: sup.Symbol, Total: sup.TotalSupply, Max: sup.MaxSupply, Remaining: sup.Remaining()}
		return nil
	})
	return out, err
}

// HolderShare is the account's share of minted reward tokens in bps.
func (s *Service) HolderShare(ctx context.Context, account common.Address) (uint64, error) {
	var out uint64
	err := s.uow.WithinTx(ctx, func(r uow.Repos) error {
		sup, err := r.Rewards.GetSupply(ctx, reward.TokenSymbol)
		if err != nil {
			return err
		}
		bal, err := r.Assets.BalanceOf(ctx, asset.CL, account)
		if err != nil {
			return err
		}
		out = reward.HolderShare(bal, sup.TotalSupply)
		return nil
	})
	return out, err
}

func (s *Service) ProtocolStats(ctx context.Context) (*Stats, error) {
	var out *Stats
	err := s.read(ctx, func(_ uow.Repos, st *ledger.State) error {
		out = &Stats{
			TotalRequests:  st.NextRequestID - 1,
			ActiveRequests: st.TotalActiveRequests,
			ActiveLoans:    st.TotalActiveLoans,
			TotalVolume:    st.TotalVolume,
		}
		return nil
	})
	return out, err
}
