package http

import (
	"net/http"

	"chainlend-backend/internal/domain/asset"
	"chainlend-backend/internal/domain/money"
	"chainlend-backend/internal/usecase/lending"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"
)

type LendingHandler struct{ svc *lending.Service }

func NewLendingHandler(svc *lending.Service) *LendingHandler { return &LendingHandler{svc: svc} }

type createRequestReq struct {
	Amount       string `json:"amount" validate:"required,u256"`
	InterestRate uint64 `json:"interest_rate"`
	Duration     uint64 `json:"duration"`
	Collateral   string `json:"collateral" validate:"required,u256"`
}

type amountReq struct {
	Amount string `json:"amount" validate:"required,u256"`
}

type addressReq struct {
	Address string `json:"address" validate:"required,hexaddr"`
}

type emergencyReq struct {
	To     string `json:"to" validate:"required,hexaddr"`
	Amount string `json:"amount" validate:"required,u256"`
}

type faucetReq struct {
	Asset  string `json:"asset" validate:"required,asset"`
	To     string `json:"to" validate:"required,hexaddr"`
	Amount string `json:"amount" validate:"required,u256"`
}

// ---------- requests ----------

func (h *LendingHandler) CreateRequest(c echo.Context) error {
	who, ok := caller(c)
	if !ok {
		return badRequest(c, "missing caller")
	}
	var req createRequestReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	dto, err := h.svc.CreateLoanRequest(c.Request().Context(), lending.CreateRequestInput{
		Borrower:     who,
		Amount:       money.MustParse(req.Amount),
		InterestRate: req.InterestRate,
		Duration:     req.Duration,
		Collateral:   money.MustParse(req.Collateral),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, requestView(dto))
}

func (h *LendingHandler) GetRequest(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	dto, err := h.svc.GetLoanRequest(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, requestView(dto))
}

func (h *LendingHandler) CancelRequest(c echo.Context) error {
	return h.withCallerID(c, func(who common.Address, id uint64) error {
		dto, err := h.svc.CancelLoanRequest(c.Request().Context(), who, id)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, requestView(dto))
	})
}

func (h *LendingHandler) FundRequest(c echo.Context) error {
	return h.withCallerID(c, func(who common.Address, id uint64) error {
		dto, err := h.svc.FundLoan(c.Request().Context(), who, id)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusCreated, loanView(dto))
	})
}

func (h *LendingHandler) PendingRequests(c echo.Context) error {
	offset, ok1 := queryInt(c, "offset", 0)
	limit, ok2 := queryInt(c, "limit", 50)
	if !ok1 || !ok2 {
		return badRequest(c, "offset and limit must be integers")
	}
	page, err := h.svc.GetPendingRequests(c.Request().Context(), offset, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

func (h *LendingHandler) PendingCount(c echo.Context) error {
	n, err := h.svc.GetPendingRequestsCount(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]uint64{"count": n})
}

func (h *LendingHandler) RequiredCollateral(c echo.Context) error {
	amount, err := money.Parse(c.QueryParam("amount"))
	if err != nil {
		return badRequest(c, "amount must be a base-unit integer")
	}
	req, err := h.svc.CalculateRequiredCollateral(c.Request().Context(), amount)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, quantity(asset.ETH, req))
}

// ---------- collateral ----------

func (h *LendingHandler) AddCollateral(c echo.Context) error {
	return h.withCallerAmount(c, func(who common.Address, id uint64, amount money.Amount) error {
		dto, err := h.svc.AddCollateral(c.Request().Context(), who, id, amount)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, requestView(dto))
	})
}

func (h *LendingHandler) WithdrawExcess(c echo.Context) error {
	return h.withCallerAmount(c, func(who common.Address, id uint64, amount money.Amount) error {
		dto, err := h.svc.WithdrawExcessCollateral(c.Request().Context(), who, id, amount)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, requestView(dto))
	})
}

func (h *LendingHandler) WithdrawCollateral(c echo.Context) error {
	return h.withCallerID(c, func(who common.Address, id uint64) error {
		amount, err := h.svc.WithdrawCollateral(c.Request().Context(), who, id)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, quantity(asset.ETH, amount))
	})
}

func (h *LendingHandler) ExcessCollateral(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	amount, err := h.svc.GetExcessCollateral(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, quantity(asset.ETH, amount))
}

func (h *LendingHandler) Withdrawability(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	chk, err := h.svc.CanWithdrawCollateral(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, chk)
}

// ---------- loans ----------

func (h *LendingHandler) GetLoan(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	dto, err := h.svc.GetActiveLoan(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, loanView(dto))
}

func (h *LendingHandler) RepayLoan(c echo.Context) error {
	return h.withCallerID(c, func(who common.Address, id uint64) error {
		rep, err := h.svc.RepayLoan(c.Request().Context(), who, id)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, rep)
	})
}

func (h *LendingHandler) LiquidateLoan(c echo.Context) error {
	return h.withCallerID(c, func(who common.Address, id uint64) error {
		liq, err := h.svc.LiquidateCollateral(c.Request().Context(), who, id)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, liq)
	})
}

func (h *LendingHandler) HealthFactor(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	hf, err := h.svc.GetHealthFactor(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, ratioView(hf))
}

func (h *LendingHandler) Risk(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	r, err := h.svc.IsAtRiskOfLiquidation(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	v := ratioView(r.Ratio)
	v.AtRisk = &r.AtRisk
	return c.JSON(http.StatusOK, v)
}

func (h *LendingHandler) LoanEvents(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	events, err := h.svc.LoanEvents(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, events)
}

// ---------- accounts & rewards ----------

func (h *LendingHandler) AccountRequests(c echo.Context) error {
	return h.withPathAddress(c, func(a common.Address) error {
		ids, err := h.svc.UserRequests(c.Request().Context(), a)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, map[string][]uint64{"ids": ids})
	})
}

func (h *LendingHandler) AccountLoans(c echo.Context) error {
	return h.withPathAddress(c, func(a common.Address) error {
		ids, err := h.svc.UserLoans(c.Request().Context(), a)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, map[string][]uint64{"ids": ids})
	})
}

func (h *LendingHandler) AccountRewards(c echo.Context) error {
	return h.withPathAddress(c, func(a common.Address) error {
		p, err := h.svc.PendingRewards(c.Request().Context(), a)
		if err != nil {
			return writeError(c, err)
		}
		share, err := h.svc.HolderShare(c.Request().Context(), a)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{
			"pending":       quantity(asset.CL, p),
			"share_bps":     share,
			"share_percent": bpsPercent(share),
		})
	})
}

func (h *LendingHandler) AccountBalance(c echo.Context) error {
	return h.withPathAddress(c, func(a common.Address) error {
		sym := asset.Symbol(c.Param("asset"))
		b, err := h.svc.BalanceOf(c.Request().Context(), sym, a)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, quantity(sym, b))
	})
}

func (h *LendingHandler) ClaimRewards(c echo.Context) error {
	who, ok := caller(c)
	if !ok {
		return badRequest(c, "missing caller")
	}
	amount, err := h.svc.ClaimRewards(c.Request().Context(), who)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, quantity(asset.CL, amount))
}

func (h *LendingHandler) Stats(c echo.Context) error {
	st, err := h.svc.ProtocolStats(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"stats":                st,
		"total_volume_display": display(asset.USDC, st.TotalVolume),
	})
}

func (h *LendingHandler) Token(c echo.Context) error {
	info, err := h.svc.TokenInfo(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, info)
}

// ---------- admin ----------

func (h *LendingHandler) UpdateTreasury(c echo.Context) error {
	return h.withCallerAddress(c, func(who, a common.Address) error {
		return h.svc.UpdateTreasury(c.Request().Context(), who, a)
	})
}

func (h *LendingHandler) AddMinter(c echo.Context) error {
	return h.withCallerAddress(c, func(who, a common.Address) error {
		return h.svc.AddMinter(c.Request().Context(), who, a)
	})
}

func (h *LendingHandler) RemoveMinter(c echo.Context) error {
	who, ok := caller(c)
	if !ok {
		return badRequest(c, "missing caller")
	}
	a, ok := pathAddress(c, "address")
	if !ok {
		return badRequest(c, "invalid address")
	}
	if err := h.svc.RemoveMinter(c.Request().Context(), who, a); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *LendingHandler) EmergencyWithdraw(c echo.Context) error {
	who, ok := caller(c)
	if !ok {
		return badRequest(c, "missing caller")
	}
	var req emergencyReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	err := h.svc.EmergencyWithdraw(c.Request().Context(), who, common.HexToAddress(req.To), money.MustParse(req.Amount))
	if err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *LendingHandler) Faucet(c echo.Context) error {
	var req faucetReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	sym := asset.Symbol(req.Asset)
	amount := money.MustParse(req.Amount)
	if err := h.svc.Faucet(c.Request().Context(), sym, common.HexToAddress(req.To), amount); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, quantity(sym, amount))
}

// ---------- plumbing ----------

func (h *LendingHandler) withCallerID(c echo.Context, fn func(who common.Address, id uint64) error) error {
	who, ok := caller(c)
	if !ok {
		return badRequest(c, "missing caller")
	}
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	return fn(who, id)
}

func (h *LendingHandler) withCallerAmount(c echo.Context, fn func(who common.Address, id uint64, amount money.Amount) error) error {
	return h.withCallerID(c, func(who common.Address, id uint64) error {
		var req amountReq
		if ok, err := bindValid(c, &req); !ok {
			return err
		}
		return fn(who, id, money.MustParse(req.Amount))
	})
}

// withCallerAddress serves the admin calls that take one address and return nothing.
func (h *LendingHandler) withCallerAddress(c echo.Context, fn func(who, a common.Address) error) error {
	who, ok := caller(c)
	if !ok {
		return badRequest(c, "missing caller")
	}
	var req addressReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	if err := fn(who, common.HexToAddress(req.Address)); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *LendingHandler) withPathAddress(c echo.Context, fn func(a common.Address) error) error {
	a, ok := pathAddress(c, "address")
	if !ok {
		return badRequest(c, "invalid address")
	}
	return fn(a)
}
