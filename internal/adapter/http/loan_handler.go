package http

import (
	"context"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/labstack/echo/v4"

	"collateral-loans/internal/adapter/middleware"
	"collateral-loans/internal/domain/consensus"
	"collateral-loans/internal/domain/loan"
	uc "collateral-loans/internal/usecase/loan"
)

// LoanEngine is the surface of *loan.Engine the handlers drive.
type LoanEngine interface {
	SetLoanTerms(ctx context.Context, in uc.SetLoanTermsInput) (uint64, error)
	DepositCollateral(ctx context.Context, in uc.DepositCollateralInput) error
	WithdrawCollateral(ctx context.Context, in uc.WithdrawCollateralInput) (loan.Amount, error)
	TakeOutLoan(ctx context.Context, in uc.TakeOutLoanInput) error
	Repay(ctx context.Context, in uc.RepayInput) (*uc.RepayResult, error)
	LiquidateLoan(ctx context.Context, in uc.LiquidateInput) (*uc.LiquidationResult, error)
	GetBorrowerLoans(ctx context.Context, borrower common.Address) ([]uint64, error)
	GetLoan(ctx context.Context, loanID uint64) (*uc.LoanDTO, error)
	Submissions(ctx context.Context, loanID uint64) ([]consensus.Submission, error)
	Ledger(ctx context.Context) (*uc.LedgerDTO, error)
}

type LoanHandler struct{ engine LoanEngine }

func NewLoanHandler(engine LoanEngine) *LoanHandler { return &LoanHandler{engine: engine} }

type loanResponseReq struct {
	Signer           string `json:"signer" validate:"required,eth_addr"`
	ConsensusAddress string `json:"consensus_address" validate:"required,eth_addr"`
	ResponseTime     int64  `json:"response_time"`
	InterestRate     uint64 `json:"interest_rate"`
	CollateralRatio  uint64 `json:"collateral_ratio"`
	MaxLoanAmount    string `json:"max_loan_amount" validate:"required,uint256"`
	SignerNonce      uint64 `json:"signer_nonce"`
	Signature        string `json:"signature" validate:"required,hexadecimal"`
}

type setLoanTermsReq struct {
	Borrower         string            `json:"borrower" validate:"required,eth_addr"`
	Recipient        string            `json:"recipient" validate:"omitempty,eth_addr"`
	ConsensusAddress string            `json:"consensus_address" validate:"required,eth_addr"`
	RequestNonce     uint64            `json:"request_nonce"`
	Amount           string            `json:"amount" validate:"required,uint256"`
	Duration         uint64            `json:"duration" validate:"gt=0"`
	RequestTime      int64             `json:"request_time"`
	Collateral       string            `json:"collateral" validate:"omitempty,uint256"`
	Responses        []loanResponseReq `json:"responses" validate:"dive"`
}

type depositReq struct {
	Borrower string `json:"borrower" validate:"required,eth_addr"`
	Amount   string `json:"amount" validate:"required,amount"`
}

type amountReq struct {
	Amount string `json:"amount" validate:"required,amount"`
}

type submissionDTO struct {
	Signer          common.Address `json:"signer"`
	SignerNonce     uint64         `json:"signer_nonce"`
	InterestRate    uint64         `json:"interest_rate"`
	CollateralRatio uint64         `json:"collateral_ratio"`
	MaxLoanAmount   loan.Amount    `json:"max_loan_amount"`
	ResponseTime    time.Time      `json:"response_time"`
	Signature       hexutil.Bytes  `json:"signature"`
}

func (r setLoanTermsReq) toInput(caller common.Address) (uc.SetLoanTermsInput, error) {
	in := uc.SetLoanTermsInput{
		Caller: caller,
		Request: consensus.LoanRequest{
			Borrower:         common.HexToAddress(r.Borrower),
			ConsensusAddress: common.HexToAddress(r.ConsensusAddress),
			RequestNonce:     r.RequestNonce,
			Amount:           mustAmount(r.Amount),
			Duration:         r.Duration,
			RequestTime:      r.RequestTime,
		},
		Responses: make([]consensus.LoanResponse, 0, len(r.Responses)),
	}
	if r.Recipient != "" {
		in.Request.Recipient = common.HexToAddress(r.Recipient)
	}
	if r.Collateral != "" {
		in.Collateral = mustAmount(r.Collateral)
	}
	for _, resp := range r.Responses {
		sig, err := hexutil.Decode(resp.Signature)
		if err != nil {
			return in, err
		}
		in.Responses = append(in.Responses, consensus.LoanResponse{
			Signer:           common.HexToAddress(resp.Signer),
			ConsensusAddress: common.HexToAddress(resp.ConsensusAddress),
			ResponseTime:     resp.ResponseTime,
			InterestRate:     resp.InterestRate,
			CollateralRatio:  resp.CollateralRatio,
			MaxLoanAmount:    mustAmount(resp.MaxLoanAmount),
			SignerNonce:      resp.SignerNonce,
			Signature:        sig,
		})
	}
	return in, nil
}

func (h *LoanHandler) SetLoanTerms(c echo.Context) error {
	caller, err := middleware.CallerFrom(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	var req setLoanTermsReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	in, err := req.toInput(caller)
	if err != nil {
		return badRequest(c, "invalid signature encoding")
	}
	loanID, err := h.engine.SetLoanTerms(c.Request().Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	dto, err := h.engine.GetLoan(c.Request().Context(), loanID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, dto)
}

func (h *LoanHandler) GetLoan(c echo.Context) error {
	loanID, ok := pathLoanID(c)
	if !ok {
		return badRequest(c, "invalid loan_id")
	}
	dto, err := h.engine.GetLoan(c.Request().Context(), loanID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) Submissions(c echo.Context) error {
	loanID, ok := pathLoanID(c)
	if !ok {
		return badRequest(c, "invalid loan_id")
	}
	subs, err := h.engine.Submissions(c.Request().Context(), loanID)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]submissionDTO, 0, len(subs))
	for _, s := range subs {
		out = append(out, submissionDTO{
			Signer:          s.Signer,
			SignerNonce:     s.SignerNonce,
			InterestRate:    s.InterestRate,
			CollateralRatio: s.CollateralRatio,
			MaxLoanAmount:   s.MaxLoanAmount,
			ResponseTime:    s.ResponseTime.UTC(),
			Signature:       s.Signature,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"loan_id": loanID, "submissions": out})
}

func (h *LoanHandler) DepositCollateral(c echo.Context) error {
	loanID, caller, ok, err := h.loanAndCaller(c)
	if !ok {
		return err
	}
	var req depositReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	err = h.engine.DepositCollateral(c.Request().Context(), uc.DepositCollateralInput{
		Caller:   caller,
		Borrower: common.HexToAddress(req.Borrower),
		LoanID:   loanID,
		Amount:   mustAmount(req.Amount),
	})
	if err != nil {
		return writeError(c, err)
	}
	return h.respondLoan(c, loanID)
}

func (h *LoanHandler) WithdrawCollateral(c echo.Context) error {
	loanID, caller, ok, err := h.loanAndCaller(c)
	if !ok {
		return err
	}
	var req amountReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	withdrawn, err := h.engine.WithdrawCollateral(c.Request().Context(), uc.WithdrawCollateralInput{
		Caller: caller,
		LoanID: loanID,
		Amount: mustAmount(req.Amount),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"loan_id": loanID, "withdrawn": withdrawn})
}

func (h *LoanHandler) TakeOutLoan(c echo.Context) error {
	loanID, caller, ok, err := h.loanAndCaller(c)
	if !ok {
		return err
	}
	var req amountReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	err = h.engine.TakeOutLoan(c.Request().Context(), uc.TakeOutLoanInput{
		Caller: caller,
		LoanID: loanID,
		Amount: mustAmount(req.Amount),
	})
	if err != nil {
		return writeError(c, err)
	}
	return h.respondLoan(c, loanID)
}

func (h *LoanHandler) Repay(c echo.Context) error {
	loanID, caller, ok, err := h.loanAndCaller(c)
	if !ok {
		return err
	}
	var req amountReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	res, err := h.engine.Repay(c.Request().Context(), uc.RepayInput{
		Caller: caller,
		LoanID: loanID,
		Amount: mustAmount(req.Amount),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *LoanHandler) Liquidate(c echo.Context) error {
	loanID, caller, ok, err := h.loanAndCaller(c)
	if !ok {
		return err
	}
	res, err := h.engine.LiquidateLoan(c.Request().Context(), uc.LiquidateInput{Caller: caller, LoanID: loanID})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *LoanHandler) BorrowerLoans(c echo.Context) error {
	raw := c.Param("address")
	if !common.IsHexAddress(raw) {
		return badRequest(c, "invalid address")
	}
	borrower := common.HexToAddress(raw)
	ids, err := h.engine.GetBorrowerLoans(c.Request().Context(), borrower)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"borrower": borrower, "loan_ids": ids})
}

func (h *LoanHandler) Ledger(c echo.Context) error {
	dto, err := h.engine.Ledger(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) loanAndCaller(c echo.Context) (uint64, common.Address, bool, error) {
	loanID, ok := pathLoanID(c)
	if !ok {
		return 0, common.Address{}, false, badRequest(c, "invalid loan_id")
	}
	caller, err := middleware.CallerFrom(c)
	if err != nil {
		return 0, common.Address{}, false, badRequest(c, err.Error())
	}
	return loanID, caller, true, nil
}

func (h *LoanHandler) respondLoan(c echo.Context, loanID uint64) error {
	dto, err := h.engine.GetLoan(c.Request().Context(), loanID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}
