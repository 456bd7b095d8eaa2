package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type Handler struct{}

func NewHandler() *Handler { return &Handler{} }

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// Routes groups everything RegisterRoutes mounts.
type Routes struct {
	Health  *Handler
	Loans   *LoanHandler
	Oracle  *OracleHandler
	Metrics http.Handler
	// Mutating applies to every POST route, typically the idempotency middleware.
	Mutating []echo.MiddlewareFunc
}

func RegisterRoutes(e *echo.Echo, r Routes) {
	e.GET("/health", r.Health.Health)
	if r.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(r.Metrics))
	}

	e.POST("/loans/terms", r.Loans.SetLoanTerms, r.Mutating...)
	e.GET("/loans/:loan_id", r.Loans.GetLoan)
	e.GET("/loans/:loan_id/submissions", r.Loans.Submissions)
	e.POST("/loans/:loan_id/collateral/deposit", r.Loans.DepositCollateral, r.Mutating...)
	e.POST("/loans/:loan_id/collateral/withdraw", r.Loans.WithdrawCollateral, r.Mutating...)
	e.POST("/loans/:loan_id/take-out", r.Loans.TakeOutLoan, r.Mutating...)
	e.POST("/loans/:loan_id/repay", r.Loans.Repay, r.Mutating...)
	e.POST("/loans/:loan_id/liquidate", r.Loans.Liquidate, r.Mutating...)
	e.GET("/borrowers/:address/loans", r.Loans.BorrowerLoans)
	e.GET("/ledger", r.Loans.Ledger)

	e.GET("/oracle/price", r.Oracle.Price)
	e.GET("/oracle/price/history", r.Oracle.History)
}
