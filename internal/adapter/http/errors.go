package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"collateral-loans/internal/domain/consensus"
	"collateral-loans/internal/domain/loan"
	"collateral-loans/internal/domain/oracle"
)

var statusByError = []struct {
	err    error
	status int
}{
	{loan.ErrNotFound, http.StatusNotFound},
	{loan.ErrCallerNotBorrower, http.StatusForbidden},
	{loan.ErrBorrowerMismatch, http.StatusForbidden},
	{loan.ErrInvalidStatus, http.StatusConflict},
	{consensus.ErrRequestNonceTaken, http.StatusConflict},
	{consensus.ErrSignerNonceTaken, http.StatusConflict},
	{loan.ErrOraclePriceStale, http.StatusServiceUnavailable},
	{loan.ErrInvalidPrice, http.StatusBadGateway},
	{loan.ErrInvalidAmount, http.StatusBadRequest},
	{loan.ErrArithmeticOverflow, http.StatusBadRequest},
	{consensus.ErrInvalidRequest, http.StatusBadRequest},
	{loan.ErrInsufficientCollateral, http.StatusUnprocessableEntity},
	{loan.ErrLiquidationNotNeeded, http.StatusUnprocessableEntity},
	{loan.ErrTermsExpired, http.StatusUnprocessableEntity},
	{loan.ErrMaxLoanExceeded, http.StatusUnprocessableEntity},
	{consensus.ErrInsufficientResponses, http.StatusUnprocessableEntity},
	{consensus.ErrUnauthorizedSigner, http.StatusUnprocessableEntity},
	{consensus.ErrConsensusAddressMismatch, http.StatusUnprocessableEntity},
	{consensus.ErrResponseExpired, http.StatusUnprocessableEntity},
	{consensus.ErrDuplicateSigner, http.StatusUnprocessableEntity},
	{consensus.ErrSignatureMismatch, http.StatusUnprocessableEntity},
	{consensus.ErrOutsideTolerance, http.StatusUnprocessableEntity},
	{oracle.ErrInsufficientHistory, http.StatusUnprocessableEntity},
}

func statusFor(err error) int {
	for _, m := range statusByError {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// writeError renders err with its mapped status. Unmapped errors are logged
// and hidden behind a generic message.
func writeError(c echo.Context, err error) error {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("module", "http").Str("route", c.Path()).Msg("unhandled error")
		return c.JSON(status, ErrorResponse{Error: "internal error"})
	}
	return c.JSON(status, ErrorResponse{Error: err.Error()})
}
