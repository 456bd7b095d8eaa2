package loan

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"collateral-loans/internal/domain/consensus"
	"collateral-loans/internal/domain/event"
	domain "collateral-loans/internal/domain/loan"
	"collateral-loans/internal/domain/pool"
	"collateral-loans/internal/domain/uow"
	"collateral-loans/pkg/id"
)

const (
	// TermsWindow is how long consensus terms stay open for take-out.
	TermsWindow = 30 * 24 * time.Hour
	// DefaultStaleness is the maximum accepted age of an oracle answer.
	DefaultStaleness = time.Hour
)

// PriceOracle is the part of the oracle adapter the engine reads.
type PriceOracle interface {
	LatestAnswer(ctx context.Context) (*big.Int, error)
	LatestTimestamp(ctx context.Context) (uint64, error)
}

// TermsConsensus turns a signed proposal set into loan terms.
type TermsConsensus interface {
	ProcessRequest(ctx context.Context, r uow.Repos, req consensus.LoanRequest, responses []consensus.LoanResponse, loanID uint64) (consensus.Terms, error)
}

// Metrics records operation outcomes and the collateral gauge.
type Metrics interface {
	ObserveOperation(op string, err error)
	SetTotalCollateral(total domain.Amount)
}

// Engine owns the loan lifecycle and collateral accounting. Every mutation
// runs inside one unit of work that holds the loan row lock.
type Engine struct {
	uow        uow.UnitOfWork
	consensus  TermsConsensus
	oracle     PriceOracle
	events     event.Publisher
	metrics    Metrics
	lendingOne *uint256.Int
	staleAfter time.Duration
	now        func() time.Time
	logger     zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source used for staleness checks.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithStaleness sets the maximum oracle answer age. Non-positive values are ignored.
func WithStaleness(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.staleAfter = d
		}
	}
}

// WithPublisher sets the sink for committed loan events. A nil publisher is ignored.
func WithPublisher(p event.Publisher) Option {
	return func(e *Engine) {
		if p != nil {
			e.events = p
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m Metrics) Option { return func(e *Engine) { e.metrics = m } }

// WithLogger sets the engine logger.
func WithLogger(l zerolog.Logger) Option { return func(e *Engine) { e.logger = l } }

// NewEngine reads the lending token decimals once and fails fast when a
// collaborator is missing.
func NewEngine(ctx context.Context, tx uow.UnitOfWork, terms TermsConsensus, oracle PriceOracle, token pool.LendingToken, opts ...Option) (*Engine, error) {
	switch {
	case tx == nil:
		return nil, fmt.Errorf("%w: unit of work", domain.ErrMissingCollaborator)
	case terms == nil:
		return nil, fmt.Errorf("%w: terms consensus", domain.ErrMissingCollaborator)
	case oracle == nil:
		return nil, fmt.Errorf("%w: price oracle", domain.ErrMissingCollaborator)
	case token == nil:
		return nil, fmt.Errorf("%w: lending token", domain.ErrMissingCollaborator)
	}
	decimals, err := token.Decimals(ctx)
	if err != nil {
		return nil, fmt.Errorf("read lending token decimals: %w", err)
	}
	one, err := pow10(decimals)
	if err != nil {
		return nil, fmt.Errorf("lending token decimals %d: %w", decimals, err)
	}
	e := &Engine{
		uow:        tx,
		consensus:  terms,
		oracle:     oracle,
		events:     event.Nop{},
		lendingOne: one,
		staleAfter: DefaultStaleness,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     log.Logger.With().Str("module", "loan_engine").Logger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

// SetLoanTerms creates a terms-set loan from a consensus-approved request and
// returns its ID.
func (e *Engine) SetLoanTerms(ctx context.Context, in SetLoanTermsInput) (uint64, error) {
	var (
		loanID uint64
		evs    []event.Event
		total  domain.Amount
	)
	err := func() error {
		if in.Caller != in.Request.Borrower {
			return fmt.Errorf("%w: caller %s, request borrower %s", domain.ErrCallerNotBorrower, in.Caller, in.Request.Borrower)
		}
		return e.uow.WithinTx(ctx, func(r uow.Repos) error {
			ledger, err := r.Ledger.GetForUpdate(ctx)
			if err != nil {
				return err
			}
			loanID = ledger.LoanIDCounter
			ledger.LoanIDCounter++

			terms, err := e.consensus.ProcessRequest(ctx, r, in.Request, in.Responses, loanID)
			if err != nil {
				return err
			}

			now := e.now()
			l := &domain.Loan{
				LoanID: loanID,
				Terms: domain.Terms{
					Borrower:        in.Request.Borrower,
					Recipient:       in.Request.Recipient,
					MaxLoanAmount:   terms.MaxLoanAmount,
					CollateralRatio: terms.CollateralRatio,
					InterestRate:    terms.InterestRate,
					Duration:        in.Request.Duration,
				},
				TermsExpiry: now.Add(TermsWindow),
				Status:      domain.StatusTermsSet,
			}
			evs = append(evs, e.newEvent(event.LoanTermsSet, l, in.Request.Recipient, terms.MaxLoanAmount))

			if !in.Collateral.IsZero() {
				if err := e.payInCollateral(ctx, r, ledger, l, in.Caller, in.Collateral); err != nil {
					return err
				}
				evs = append(evs, e.newEvent(event.CollateralDeposited, l, in.Caller, in.Collateral))
			}
			if err := r.Loans.Create(ctx, l); err != nil {
				return err
			}
			if err := r.Loans.AppendBorrowerLoan(ctx, l.Terms.Borrower, loanID); err != nil {
				return err
			}
			total = ledger.TotalCollateral
			return r.Ledger.Save(ctx, ledger)
		})
	}()
	e.finish(ctx, "set_loan_terms", err, evs, &total)
	if err != nil {
		return 0, err
	}
	return loanID, nil
}

// DepositCollateral credits amount to the loan. Anyone may deposit as long as
// they name the loan's borrower.
func (e *Engine) DepositCollateral(ctx context.Context, in DepositCollateralInput) error {
	var (
		evs   []event.Event
		total domain.Amount
	)
	err := func() error {
		if err := requirePositive(in.Amount); err != nil {
			return err
		}
		return e.uow.WithinLoanTx(ctx, in.LoanID, func(r uow.Repos, l *domain.Loan) error {
			if err := requireCollateralStatus(l); err != nil {
				return err
			}
			if in.Borrower != l.Terms.Borrower {
				return fmt.Errorf("%w: loan %d belongs to %s", domain.ErrBorrowerMismatch, l.LoanID, l.Terms.Borrower)
			}
			ledger, err := r.Ledger.GetForUpdate(ctx)
			if err != nil {
				return err
			}
			from := in.Caller
			if from == (common.Address{}) {
				from = in.Borrower
			}
			if err := e.payInCollateral(ctx, r, ledger, l, from, in.Amount); err != nil {
				return err
			}
			if err := r.Loans.Save(ctx, l); err != nil {
				return err
			}
			total = ledger.TotalCollateral
			evs = append(evs, e.newEvent(event.CollateralDeposited, l, from, in.Amount))
			return r.Ledger.Save(ctx, ledger)
		})
	}()
	e.finish(ctx, "deposit_collateral", err, evs, &total)
	return err
}

// WithdrawCollateral releases up to amount of excess collateral to the
// borrower and returns what was actually withdrawn.
func (e *Engine) WithdrawCollateral(ctx context.Context, in WithdrawCollateralInput) (domain.Amount, error) {
	var (
		withdrawn domain.Amount
		evs       []event.Event
		total     *domain.Amount
	)
	err := func() error {
		if err := requirePositive(in.Amount); err != nil {
			return err
		}
		return e.uow.WithinLoanTx(ctx, in.LoanID, func(r uow.Repos, l *domain.Loan) error {
			if err := requireCollateralStatus(l); err != nil {
				return err
			}
			if err := requireBorrower(l, in.Caller); err != nil {
				return err
			}
			price, err := e.freshPrice(ctx)
			if err != nil {
				return err
			}
			minimum, err := e.minimumCollateral(l, price)
			if err != nil {
				return err
			}
			current := l.Collateral.Uint256()
			if !current.Gt(minimum) {
				return nil
			}
			available := domain.AmountFromUint256(new(uint256.Int).Sub(current, minimum))
			withdrawn = in.Amount.Min(available)

			ledger, err := r.Ledger.GetForUpdate(ctx)
			if err != nil {
				return err
			}
			if err := e.payOutCollateral(ctx, r, ledger, l, l.Terms.Borrower, withdrawn); err != nil {
				return err
			}
			if err := r.Loans.Save(ctx, l); err != nil {
				return err
			}
			total = &ledger.TotalCollateral
			evs = append(evs, e.newEvent(event.CollateralWithdrawn, l, l.Terms.Borrower, withdrawn))
			return r.Ledger.Save(ctx, ledger)
		})
	}()
	e.finish(ctx, "withdraw_collateral", err, evs, total)
	if err != nil {
		return domain.Amount{}, err
	}
	return withdrawn, nil
}

// TakeOutLoan disburses amount to the loan's recipient and activates the loan.
func (e *Engine) TakeOutLoan(ctx context.Context, in TakeOutLoanInput) error {
	var evs []event.Event
	err := func() error {
		if err := requirePositive(in.Amount); err != nil {
			return err
		}
		return e.uow.WithinLoanTx(ctx, in.LoanID, func(r uow.Repos, l *domain.Loan) error {
			if err := requireStatus(l, domain.StatusTermsSet); err != nil {
				return err
			}
			if err := requireBorrower(l, in.Caller); err != nil {
				return err
			}
			now := e.now()
			if now.After(l.TermsExpiry) {
				return fmt.Errorf("%w: loan %d expired at %s", domain.ErrTermsExpired, l.LoanID, l.TermsExpiry.UTC().Format(time.RFC3339))
			}
			if in.Amount.Cmp(l.Terms.MaxLoanAmount) > 0 {
				return fmt.Errorf("%w: %s > %s", domain.ErrMaxLoanExceeded, in.Amount, l.Terms.MaxLoanAmount)
			}
			price, err := e.freshPrice(ctx)
			if err != nil {
				return err
			}
			if !collateralCovers(l.Collateral, in.Amount, l.Terms.CollateralRatio, price, e.lendingOne) {
				return fmt.Errorf("%w: loan %d collateral %s does not cover %s at ratio %d",
					domain.ErrInsufficientCollateral, l.LoanID, l.Collateral, in.Amount, l.Terms.CollateralRatio)
			}
			interest, err := interestFor(in.Amount, l.Terms.InterestRate, l.Terms.Duration)
			if err != nil {
				return err
			}
			owed, err := in.Amount.Add(domain.AmountFromUint256(interest))
			if err != nil {
				return err
			}

			end := now.Add(time.Duration(l.Terms.Duration) * time.Second)
			l.TotalOwed = owed
			l.LoanStartTime, l.LoanEndTime = &now, &end
			l.Status = domain.StatusActive
			if err := r.Loans.Save(ctx, l); err != nil {
				return err
			}
			if err := r.Pool.CreateLoan(ctx, l.LoanID, in.Amount, l.Terms.Payee()); err != nil {
				return err
			}
			evs = append(evs, e.newEvent(event.LoanTakenOut, l, l.Terms.Payee(), in.Amount))
			return nil
		})
	}()
	e.finish(ctx, "take_out_loan", err, evs, nil)
	return err
}

// Repay applies up to the outstanding balance. Paying off the loan closes it
// and releases all collateral to the borrower.
func (e *Engine) Repay(ctx context.Context, in RepayInput) (*RepayResult, error) {
	var (
		res   = &RepayResult{}
		evs   []event.Event
		total *domain.Amount
	)
	err := e.uow.WithinLoanTx(ctx, in.LoanID, func(r uow.Repos, l *domain.Loan) error {
		if err := requireStatus(l, domain.StatusActive); err != nil {
			return err
		}
		paid := in.Amount.Min(l.TotalOwed)
		res.TotalOwed = l.TotalOwed
		if paid.IsZero() {
			return nil
		}
		owed, err := l.TotalOwed.Sub(paid)
		if err != nil {
			return err
		}
		l.TotalOwed = owed
		res.Paid, res.TotalOwed = paid, owed
		evs = append(evs, e.newEvent(event.LoanRepaid, l, in.Caller, paid))

		if owed.IsZero() {
			l.Status = domain.StatusClosed
			res.Closed = true
			if !l.Collateral.IsZero() {
				ledger, err := r.Ledger.GetForUpdate(ctx)
				if err != nil {
					return err
				}
				released := l.Collateral
				if err := e.payOutCollateral(ctx, r, ledger, l, l.Terms.Borrower, released); err != nil {
					return err
				}
				if err := r.Ledger.Save(ctx, ledger); err != nil {
					return err
				}
				total = &ledger.TotalCollateral
				evs = append(evs, e.newEvent(event.CollateralWithdrawn, l, l.Terms.Borrower, released))
			}
		}
		if err := r.Loans.Save(ctx, l); err != nil {
			return err
		}
		return r.Pool.Repay(ctx, l.LoanID, paid, in.Caller)
	})
	e.finish(ctx, "repay", err, evs, total)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// LiquidateLoan closes an under-collateralized or expired loan. The caller
// pays the pool 95% of the collateral's lending value and receives all of it.
func (e *Engine) LiquidateLoan(ctx context.Context, in LiquidateInput) (*LiquidationResult, error) {
	var (
		res   *LiquidationResult
		evs   []event.Event
		total *domain.Amount
	)
	err := e.uow.WithinLoanTx(ctx, in.LoanID, func(r uow.Repos, l *domain.Loan) error {
		if err := requireStatus(l, domain.StatusActive); err != nil {
			return err
		}
		price, err := e.freshPrice(ctx)
		if err != nil {
			return err
		}
		minimum, err := e.minimumCollateral(l, price)
		if err != nil {
			return err
		}
		collateral := l.Collateral.Uint256()
		expired := l.LoanEndTime != nil && e.now().After(*l.LoanEndTime)
		if !collateral.Lt(minimum) && !expired {
			return fmt.Errorf("%w: loan %d collateral %s, minimum %s", domain.ErrLiquidationNotNeeded, l.LoanID, l.Collateral, minimum.Dec())
		}

		value, err := mulDiv(collateral, e.lendingOne, price)
		if err != nil {
			return err
		}
		payment, err := mulDiv(value, liquidationPct, hundred)
		if err != nil {
			return err
		}
		res = &LiquidationResult{
			Payment:    domain.AmountFromUint256(payment),
			Collateral: l.Collateral,
		}

		l.Status = domain.StatusClosed
		l.Liquidated = true
		if !l.Collateral.IsZero() {
			ledger, err := r.Ledger.GetForUpdate(ctx)
			if err != nil {
				return err
			}
			if err := e.payOutCollateral(ctx, r, ledger, l, in.Caller, res.Collateral); err != nil {
				return err
			}
			if err := r.Ledger.Save(ctx, ledger); err != nil {
				return err
			}
			total = &ledger.TotalCollateral
			evs = append(evs, e.newEvent(event.CollateralWithdrawn, l, in.Caller, res.Collateral))
		}
		if err := r.Loans.Save(ctx, l); err != nil {
			return err
		}
		if err := r.Pool.LiquidationPayment(ctx, l.LoanID, res.Payment, in.Caller); err != nil {
			return err
		}
		evs = append(evs, e.newEvent(event.LoanLiquidated, l, in.Caller, res.Payment))
		return nil
	})
	e.finish(ctx, "liquidate_loan", err, evs, total)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// GetBorrowerLoans lists the borrower's loan IDs in creation order.
func (e *Engine) GetBorrowerLoans(ctx context.Context, borrower common.Address) ([]uint64, error) {
	ids, err := e.uow.Reader().Loans.ListBorrowerLoanIDs(ctx, borrower)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []uint64{}
	}
	return ids, nil
}

func (e *Engine) GetLoan(ctx context.Context, loanID uint64) (*LoanDTO, error) {
	l, err := e.uow.Reader().Loans.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	return toDTO(l), nil
}

// Submissions lists the signer responses accepted when the loan was created.
func (e *Engine) Submissions(ctx context.Context, loanID uint64) ([]consensus.Submission, error) {
	if _, err := e.uow.Reader().Loans.GetByLoanID(ctx, loanID); err != nil {
		return nil, err
	}
	subs, err := e.uow.Reader().Submissions.ListByLoanID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if subs == nil {
		subs = []consensus.Submission{}
	}
	return subs, nil
}

func (e *Engine) Ledger(ctx context.Context) (*LedgerDTO, error) {
	l, err := e.uow.Reader().Ledger.Get(ctx)
	if err != nil {
		return nil, err
	}
	return &LedgerDTO{NextLoanID: l.LoanIDCounter, TotalCollateral: l.TotalCollateral}, nil
}

// freshPrice returns the oracle answer, rejecting stale or non-positive ones.
func (e *Engine) freshPrice(ctx context.Context) (*uint256.Int, error) {
	ts, err := e.oracle.LatestTimestamp(ctx)
	if err != nil {
		return nil, fmt.Errorf("oracle timestamp: %w", err)
	}
	updated := time.Unix(int64(ts), 0)
	if age := e.now().Sub(updated); age > e.staleAfter {
		return nil, fmt.Errorf("%w: last update %s (%s old)", domain.ErrOraclePriceStale, updated.UTC().Format(time.RFC3339), age.Truncate(time.Second))
	}
	answer, err := e.oracle.LatestAnswer(ctx)
	if err != nil {
		return nil, fmt.Errorf("oracle answer: %w", err)
	}
	if answer == nil || answer.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPrice, answer)
	}
	price, overflow := uint256.FromBig(answer)
	if overflow {
		return nil, domain.ErrArithmeticOverflow
	}
	return price, nil
}

// minimumCollateral converts the minimum collateral value into collateral
// units at price.
func (e *Engine) minimumCollateral(l *domain.Loan, price *uint256.Int) (*uint256.Int, error) {
	value, err := minimumCollateralValue(l)
	if err != nil {
		return nil, err
	}
	return mulDiv(value, price, e.lendingOne)
}

func (e *Engine) payInCollateral(ctx context.Context, r uow.Repos, ledger *domain.Ledger, l *domain.Loan, from common.Address, amount domain.Amount) error {
	collateral, err := l.Collateral.Add(amount)
	if err != nil {
		return err
	}
	total, err := ledger.TotalCollateral.Add(amount)
	if err != nil {
		return err
	}
	if err := r.Vault.PayIn(ctx, l.LoanID, from, amount); err != nil {
		return err
	}
	now := e.now()
	l.Collateral = collateral
	l.LastCollateralIn = &now
	ledger.TotalCollateral = total
	return nil
}

func (e *Engine) payOutCollateral(ctx context.Context, r uow.Repos, ledger *domain.Ledger, l *domain.Loan, to common.Address, amount domain.Amount) error {
	collateral, err := l.Collateral.Sub(amount)
	if err != nil {
		return err
	}
	total, err := ledger.TotalCollateral.Sub(amount)
	if err != nil {
		return err
	}
	if err := r.Vault.PayOut(ctx, l.LoanID, to, amount); err != nil {
		return err
	}
	l.Collateral = collateral
	ledger.TotalCollateral = total
	return nil
}

func (e *Engine) newEvent(typ event.Type, l *domain.Loan, account common.Address, amount domain.Amount) event.Event {
	return event.Event{
		ID:         id.NewEventID(),
		Type:       typ,
		LoanID:     l.LoanID,
		Borrower:   l.Terms.Borrower,
		Account:    account,
		Amount:     amount,
		OccurredAt: e.now(),
	}
}

// finish records the outcome and, on commit, publishes events. Publish
// failures are logged only; the state change already happened.
func (e *Engine) finish(ctx context.Context, op string, err error, evs []event.Event, total *domain.Amount) {
	if e.metrics != nil {
		e.metrics.ObserveOperation(op, err)
	}
	if err != nil {
		e.logger.Debug().Err(err).Str("op", op).Msg("operation rejected")
		return
	}
	if e.metrics != nil && total != nil {
		e.metrics.SetTotalCollateral(*total)
	}
	if len(evs) == 0 {
		return
	}
	if perr := e.events.Publish(ctx, evs...); perr != nil {
		e.logger.Error().Err(perr).Str("op", op).Int("events", len(evs)).Msg("failed to publish events")
	}
}
