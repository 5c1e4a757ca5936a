package http

import (
	"chainlend-backend/internal/adapter/middleware"

	"github.com/labstack/echo/v4"
)

// RegisterRoutes mounts the API. mutating is applied to the /v1 group after
// caller resolution and is where the idempotency store plugs in.
func RegisterRoutes(e *echo.Echo, h *Handler, lh *LendingHandler, mutating ...echo.MiddlewareFunc) {
	e.GET("/health", h.Health)

	v1 := e.Group("/v1", append([]echo.MiddlewareFunc{middleware.AccountMiddleware()}, mutating...)...)

	v1.GET("/collateral/required", lh.RequiredCollateral)

	v1.POST("/requests", lh.CreateRequest)
	v1.GET("/requests/pending", lh.PendingRequests)
	v1.GET("/requests/pending/count", lh.PendingCount)
	v1.GET("/requests/:id", lh.GetRequest)
	v1.POST("/requests/:id/cancel", lh.CancelRequest)
	v1.POST("/requests/:id/fund", lh.FundRequest)
	v1.POST("/requests/:id/collateral", lh.AddCollateral)
	v1.POST("/requests/:id/collateral/excess", lh.WithdrawExcess)
	v1.POST("/requests/:id/withdraw", lh.WithdrawCollateral)
	v1.GET("/requests/:id/excess", lh.ExcessCollateral)
	v1.GET("/requests/:id/withdrawable", lh.Withdrawability)

	v1.GET("/loans/:id", lh.GetLoan)
	v1.POST("/loans/:id/repay", lh.RepayLoan)
	v1.POST("/loans/:id/liquidate", lh.LiquidateLoan)
	v1.GET("/loans/:id/health", lh.HealthFactor)
	v1.GET("/loans/:id/risk", lh.Risk)
	v1.GET("/loans/:id/events", lh.LoanEvents)

	v1.GET("/accounts/:address/requests", lh.AccountRequests)
	v1.GET("/accounts/:address/loans", lh.AccountLoans)
	v1.GET("/accounts/:address/rewards", lh.AccountRewards)
	v1.GET("/accounts/:address/balances/:asset", lh.AccountBalance)

	v1.POST("/rewards/claim", lh.ClaimRewards)
	v1.GET("/stats", lh.Stats)
	v1.GET("/token", lh.Token)

	v1.POST("/admin/treasury", lh.UpdateTreasury)
	v1.POST("/admin/emergency-withdraw", lh.EmergencyWithdraw)
	v1.POST("/admin/minters", lh.AddMinter)
	v1.DELETE("/admin/minters/:address", lh.RemoveMinter)
	v1.POST("/faucet", lh.Faucet)
}
