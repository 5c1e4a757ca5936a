package http

import (
	"errors"
	"net/http"

	"chainlend-backend/internal/domain/ledgererr"

	"github.com/labstack/echo/v4"
)

// LedgerErrorResponse is the body of every rejected ledger operation.
type LedgerErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	ID      uint64 `json:"id,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Amount  string `json:"amount,omitempty"`
}

func statusOf(e *ledgererr.Error) int {
	switch e.Kind {
	case ledgererr.KindZeroAmount, ledgererr.KindInvalidAmount, ledgererr.KindInvalidParameter,
		ledgererr.KindInsufficientCollateral, ledgererr.KindExcessWithdrawalAmount, ledgererr.KindZeroAddress:
		return http.StatusUnprocessableEntity
	case ledgererr.KindInvalidPrice, ledgererr.KindStalePrice:
		return http.StatusServiceUnavailable
	case ledgererr.KindUnauthorized, ledgererr.KindNotMinter:
		return http.StatusForbidden
	case ledgererr.KindInvalidRequest, ledgererr.KindInvalidLoan:
		switch e.Reason {
		case ledgererr.ReasonInvalidRange, ledgererr.ReasonRequestNotFound, ledgererr.ReasonLoanNotFound:
			return http.StatusNotFound
		case ledgererr.ReasonSelfFunding:
			return http.StatusForbidden
		}
		return http.StatusConflict
	case ledgererr.KindInvalidRequestStatus, ledgererr.KindMaxSupplyExceeded, ledgererr.KindTransferFailed:
		return http.StatusConflict
	}
	return http.StatusBadRequest
}

// writeError renders ledger rejections with their kind. Anything else is an
// infrastructure failure and is not described to the client.
func writeError(c echo.Context, err error) error {
	var le *ledgererr.Error
	if !errors.As(err, &le) {
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
	body := LedgerErrorResponse{
		Error:   string(le.Kind),
		Message: le.Error(),
		ID:      le.ID,
		Reason:  le.Reason,
	}
	if !le.Amount.IsZero() {
		body.Amount = le.Amount.String()
	}
	return c.JSON(statusOf(le), body)
}
