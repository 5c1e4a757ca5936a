package http

import (
	"net/http"
	"strconv"
	"strings"

	"chainlend-backend/internal/adapter/middleware"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"
)

// ---- helpers ----

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

// bindValid binds the body and runs the registered validator.
func bindValid(c echo.Context, dst any) (bool, error) {
	if err := c.Bind(dst); err != nil {
		return false, badRequest(c, "invalid body")
	}
	if err := c.Validate(dst); err != nil {
		return false, c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "validation failed", Details: ToFieldErrors(err)})
	}
	return true, nil
}

// pathID parses :id. Zero and unissued ids are left to the ledger, which
// reports them as out of range.
func pathID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil
}

func pathAddress(c echo.Context, name string) (common.Address, bool) {
	raw := c.Param(name)
	if !strings.HasPrefix(raw, "0x") || !common.IsHexAddress(raw) {
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func queryInt(c echo.Context, name string, def int) (int, bool) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	return n, err == nil
}

func caller(c echo.Context) (common.Address, bool) { return middleware.Account(c) }
