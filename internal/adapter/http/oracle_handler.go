package http

import (
	"context"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// PriceView is the read side of *oracle.PriceOracle.
type PriceView interface {
	LatestAnswer(ctx context.Context) (*big.Int, error)
	LatestTimestamp(ctx context.Context) (uint64, error)
	LatestRound(ctx context.Context) (uint64, error)
	PreviousAnswer(ctx context.Context, roundsBack uint64) (*big.Int, error)
	PreviousTimestamp(ctx context.Context, roundsBack uint64) (uint64, error)
	CollateralDecimals() uint8
}

type OracleHandler struct{ oracle PriceView }

func NewOracleHandler(o PriceView) *OracleHandler { return &OracleHandler{oracle: o} }

type priceDTO struct {
	Round      uint64    `json:"round,omitempty"`
	RoundsBack uint64    `json:"rounds_back,omitempty"`
	Answer     string    `json:"answer"`
	Price      string    `json:"price"` // answer shifted by the collateral decimals
	UpdatedAt  time.Time `json:"updated_at"`
}

func (h *OracleHandler) dto(answer *big.Int, ts uint64) priceDTO {
	return priceDTO{
		Answer:    answer.String(),
		Price:     decimal.NewFromBigInt(answer, -int32(h.oracle.CollateralDecimals())).String(),
		UpdatedAt: time.Unix(int64(ts), 0).UTC(),
	}
}

func (h *OracleHandler) Price(c echo.Context) error {
	ctx := c.Request().Context()
	answer, err := h.oracle.LatestAnswer(ctx)
	if err != nil {
		return writeError(c, err)
	}
	ts, err := h.oracle.LatestTimestamp(ctx)
	if err != nil {
		return writeError(c, err)
	}
	round, err := h.oracle.LatestRound(ctx)
	if err != nil {
		return writeError(c, err)
	}
	out := h.dto(answer, ts)
	out.Round = round
	return c.JSON(http.StatusOK, out)
}

// History serves /oracle/price/history?rounds_back=N.
func (h *OracleHandler) History(c echo.Context) error {
	roundsBack, err := strconv.ParseUint(c.QueryParam("rounds_back"), 10, 64)
	if err != nil {
		return badRequest(c, "rounds_back must be a non-negative integer")
	}
	ctx := c.Request().Context()
	answer, err := h.oracle.PreviousAnswer(ctx, roundsBack)
	if err != nil {
		return writeError(c, err)
	}
	ts, err := h.oracle.PreviousTimestamp(ctx, roundsBack)
	if err != nil {
		return writeError(c, err)
	}
	out := h.dto(answer, ts)
	out.RoundsBack = roundsBack
	return c.JSON(http.StatusOK, out)
}
