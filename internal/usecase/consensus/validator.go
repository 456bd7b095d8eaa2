package consensus

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	domain "collateral-loans/internal/domain/consensus"
	"collateral-loans/internal/domain/loan"
	"collateral-loans/internal/domain/uow"
)

const basisPoints = 10_000

type Config struct {
	Address             common.Address
	Signers             []common.Address
	RequiredSubmissions int
	ToleranceBps        uint64
	ResponseExpiry      time.Duration
	ChainID             uint64
}

// Validator checks signed term proposals and reduces them to one set of
// terms.
type Validator struct {
	cfg     Config
	signers map[common.Address]struct{}
	now     func() time.Time
	logger  zerolog.Logger
}

func NewValidator(cfg Config, now func() time.Time) (*Validator, error) {
	if cfg.Address == (common.Address{}) {
		return nil, fmt.Errorf("%w: consensus address", loan.ErrMissingCollaborator)
	}
	if cfg.RequiredSubmissions <= 0 {
		return nil, fmt.Errorf("consensus: required submissions must be positive, got %d", cfg.RequiredSubmissions)
	}
	if len(cfg.Signers) < cfg.RequiredSubmissions {
		return nil, fmt.Errorf("consensus: %d signers cannot satisfy %d required submissions", len(cfg.Signers), cfg.RequiredSubmissions)
	}
	signers := make(map[common.Address]struct{}, len(cfg.Signers))
	for _, s := range cfg.Signers {
		signers[s] = struct{}{}
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Validator{
		cfg:     cfg,
		signers: signers,
		now:     now,
		logger:  log.Logger.With().Str("module", "consensus").Logger(),
	}, nil
}

func (v *Validator) Address() common.Address { return v.cfg.Address }

func (v *Validator) ChainID() uint64 { return v.cfg.ChainID }

// ProcessRequest validates every response, consumes the request nonce and
// records the accepted submissions under loanID.
func (v *Validator) ProcessRequest(ctx context.Context, r uow.Repos, req domain.LoanRequest, responses []domain.LoanResponse, loanID uint64) (domain.Terms, error) {
	if req.Duration == 0 {
		return domain.Terms{}, fmt.Errorf("%w: duration must be positive", domain.ErrInvalidRequest)
	}
	if req.ConsensusAddress != v.cfg.Address {
		return domain.Terms{}, fmt.Errorf("%w: request names %s", domain.ErrConsensusAddressMismatch, req.ConsensusAddress)
	}
	if len(responses) < v.cfg.RequiredSubmissions {
		return domain.Terms{}, fmt.Errorf("%w: got %d, need %d", domain.ErrInsufficientResponses, len(responses), v.cfg.RequiredSubmissions)
	}
	if err := r.Submissions.TakeRequestNonce(ctx, req.Borrower, req.RequestNonce, loanID); err != nil {
		return domain.Terms{}, err
	}

	requestHash := req.Hash(v.cfg.ChainID)
	now := v.now()
	seen := make(map[common.Address]struct{}, len(responses))
	for i, resp := range responses {
		if err := v.check(ctx, r, resp, requestHash, now, seen); err != nil {
			return domain.Terms{}, fmt.Errorf("response %d: %w", i, err)
		}
	}

	terms, err := aggregate(responses, v.cfg.ToleranceBps)
	if err != nil {
		return domain.Terms{}, err
	}

	for _, resp := range responses {
		sub := &domain.Submission{
			LoanID:          loanID,
			Signer:          resp.Signer,
			SignerNonce:     resp.SignerNonce,
			InterestRate:    resp.InterestRate,
			CollateralRatio: resp.CollateralRatio,
			MaxLoanAmount:   resp.MaxLoanAmount,
			ResponseTime:    time.Unix(resp.ResponseTime, 0).UTC(),
			Signature:       resp.Signature,
		}
		if err := r.Submissions.Create(ctx, sub); err != nil {
			return domain.Terms{}, err
		}
	}
	v.logger.Info().Uint64("loan_id", loanID).Int("responses", len(responses)).
		Uint64("interest_rate", terms.InterestRate).Uint64("collateral_ratio", terms.CollateralRatio).
		Str("max_loan_amount", terms.MaxLoanAmount.String()).Msg("loan terms agreed")
	return terms, nil
}

func (v *Validator) check(ctx context.Context, r uow.Repos, resp domain.LoanResponse, requestHash common.Hash, now time.Time, seen map[common.Address]struct{}) error {
	if _, ok := v.signers[resp.Signer]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnauthorizedSigner, resp.Signer)
	}
	if resp.ConsensusAddress != v.cfg.Address {
		return fmt.Errorf("%w: %s", domain.ErrConsensusAddressMismatch, resp.ConsensusAddress)
	}
	if time.Unix(resp.ResponseTime, 0).Add(v.cfg.ResponseExpiry).Before(now) {
		return fmt.Errorf("%w: signed at %d", domain.ErrResponseExpired, resp.ResponseTime)
	}
	if _, dup := seen[resp.Signer]; dup {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateSigner, resp.Signer)
	}
	seen[resp.Signer] = struct{}{}

	taken, err := r.Submissions.SignerNonceTaken(ctx, resp.Signer, resp.SignerNonce)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: signer %s nonce %d", domain.ErrSignerNonceTaken, resp.Signer, resp.SignerNonce)
	}

	recovered, err := domain.RecoverSigner(resp, requestHash, v.cfg.ChainID)
	if err != nil {
		return err
	}
	if recovered != resp.Signer {
		return fmt.Errorf("%w: recovered %s", domain.ErrSignatureMismatch, recovered)
	}
	return nil
}

// aggregate averages each term and rejects the set when any value strays
// more than toleranceBps from its average.
func aggregate(responses []domain.LoanResponse, toleranceBps uint64) (domain.Terms, error) {
	rates := make([]*uint256.Int, len(responses))
	ratios := make([]*uint256.Int, len(responses))
	maxes := make([]*uint256.Int, len(responses))
	for i, resp := range responses {
		rates[i] = uint256.NewInt(resp.InterestRate)
		ratios[i] = uint256.NewInt(resp.CollateralRatio)
		maxes[i] = resp.MaxLoanAmount.Uint256()
	}

	rate, err := average("interest_rate", rates, toleranceBps)
	if err != nil {
		return domain.Terms{}, err
	}
	ratio, err := average("collateral_ratio", ratios, toleranceBps)
	if err != nil {
		return domain.Terms{}, err
	}
	maxLoan, err := average("max_loan_amount", maxes, toleranceBps)
	if err != nil {
		return domain.Terms{}, err
	}
	return domain.Terms{
		InterestRate:    rate.Uint64(),
		CollateralRatio: ratio.Uint64(),
		MaxLoanAmount:   loan.AmountFromUint256(maxLoan),
	}, nil
}

func average(field string, values []*uint256.Int, toleranceBps uint64) (*uint256.Int, error) {
	sum := new(uint256.Int)
	lo, hi := values[0], values[0]
	for _, x := range values {
		if _, overflow := sum.AddOverflow(sum, x); overflow {
			return nil, fmt.Errorf("%s: %w", field, loan.ErrArithmeticOverflow)
		}
		if x.Lt(lo) {
			lo = x
		}
		if x.Gt(hi) {
			hi = x
		}
	}
	avg := new(uint256.Int).Div(sum, uint256.NewInt(uint64(len(values))))

	// deviation * 10000 <= avg * tolerance, for both extremes
	allowed, overflow := new(uint256.Int).MulOverflow(avg, uint256.NewInt(toleranceBps))
	if overflow {
		return nil, fmt.Errorf("%s: %w", field, loan.ErrArithmeticOverflow)
	}
	for _, dev := range []*uint256.Int{
		new(uint256.Int).Sub(hi, avg),
		new(uint256.Int).Sub(avg, lo),
	} {
		scaled, overflow := new(uint256.Int).MulOverflow(dev, uint256.NewInt(basisPoints))
		if overflow || scaled.Gt(allowed) {
			return nil, fmt.Errorf("%w: %s ranges %s..%s around %s", domain.ErrOutsideTolerance, field, lo.Dec(), hi.Dec(), avg.Dec())
		}
	}
	return avg, nil
}
