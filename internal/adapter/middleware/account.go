package middleware

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"
)

// HeaderAccountID carries the address acting on the ledger. Signature
// verification happens at the gateway; this service trusts the header.
const HeaderAccountID = "Ax-Account-Id"

const accountCtxKey = "ax.account"

// AccountMiddleware resolves the caller on mutating requests and stores it
// for handlers. Reads pass through untouched.
func AccountMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch c.Request().Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}
			a, err := parseAccount(c.Request().Header.Get(HeaderAccountID))
			if err != nil {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
			}
			c.Set(accountCtxKey, a)
			return next(c)
		}
	}
}

// Account returns the caller stored by AccountMiddleware.
func Account(c echo.Context) (common.Address, bool) {
	a, ok := c.Get(accountCtxKey).(common.Address)
	return a, ok
}
