// Package memstore is an in-memory uow.UnitOfWork for engine tests. A
// transaction holds the store lock for its whole body and restores a snapshot
// when the body fails.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"collateral-loans/internal/domain/collateral"
	"collateral-loans/internal/domain/consensus"
	"collateral-loans/internal/domain/loan"
	"collateral-loans/internal/domain/pool"
	"collateral-loans/internal/domain/uow"
)

var _ uow.UnitOfWork = (*Store)(nil)

type nonceKey struct {
	borrower common.Address
	nonce    uint64
}

type signerKey struct {
	signer common.Address
	nonce  uint64
}

type state struct {
	loans         map[uint64]loan.Loan
	borrowerLoans []loan.BorrowerLoan
	ledger        *loan.Ledger
	submissions   []consensus.Submission
	requestNonces map[nonceKey]uint64
	movements     []pool.Movement
	transfers     []collateral.Transfer
	nextID        uint64
}

func (s *state) clone() state {
	c := state{
		loans:         make(map[uint64]loan.Loan, len(s.loans)),
		borrowerLoans: append([]loan.BorrowerLoan(nil), s.borrowerLoans...),
		submissions:   append([]consensus.Submission(nil), s.submissions...),
		requestNonces: make(map[nonceKey]uint64, len(s.requestNonces)),
		movements:     append([]pool.Movement(nil), s.movements...),
		transfers:     append([]collateral.Transfer(nil), s.transfers...),
		nextID:        s.nextID,
	}
	for k, v := range s.loans {
		c.loans[k] = v
	}
	for k, v := range s.requestNonces {
		c.requestNonces[k] = v
	}
	if s.ledger != nil {
		l := *s.ledger
		c.ledger = &l
	}
	return c
}

// Store keeps every repository in memory.
type Store struct {
	mu sync.Mutex
	st state

	// PoolErr and VaultErr, when set, fail every pool or vault call.
	PoolErr  error
	VaultErr error
}

func New() *Store {
	return &Store{st: state{
		loans:         map[uint64]loan.Loan{},
		requestNonces: map[nonceKey]uint64{},
	}}
}

func (s *Store) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run(ctx, func() error { return fn(s.repos(false)) })
}

func (s *Store) WithinLoanTx(ctx context.Context, loanID uint64, fn func(r uow.Repos, l *loan.Loan) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run(ctx, func() error {
		l, ok := s.st.loans[loanID]
		if !ok {
			return fmt.Errorf("%w: loan %d", loan.ErrNotFound, loanID)
		}
		return fn(s.repos(false), &l)
	})
}

func (s *Store) Reader() uow.Repos { return s.repos(true) }

func (s *Store) run(ctx context.Context, body func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	snap := s.st.clone()
	if err := body(); err != nil {
		s.st = snap
		return err
	}
	return nil
}

func (s *Store) repos(reader bool) uow.Repos {
	return uow.Repos{
		Loans:       &loanRepo{s: s, reader: reader},
		Ledger:      &ledgerRepo{s: s, reader: reader},
		Submissions: &submissionRepo{s: s, reader: reader},
		Pool:        &poolRepo{s: s},
		Vault:       &vaultRepo{s: s},
	}
}

// with runs f under the store lock unless the caller is already inside a tx.
func (s *Store) with(reader bool, f func()) {
	if reader {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	f()
}

func (s *Store) id() uint64 {
	s.st.nextID++
	return s.st.nextID
}

// Movements returns a copy of the pool journal.
func (s *Store) Movements() []pool.Movement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pool.Movement(nil), s.st.movements...)
}

// Transfers returns a copy of the collateral journal.
func (s *Store) Transfers() []collateral.Transfer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]collateral.Transfer(nil), s.st.transfers...)
}

// Loans returns every stored loan ordered by LoanID.
func (s *Store) Loans() []loan.Loan {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]loan.Loan, 0, len(s.st.loans))
	for _, l := range s.st.loans {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LoanID < out[j].LoanID })
	return out
}

// PutLoan stores l directly, bypassing the engine.
func (s *Store) PutLoan(l loan.Loan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.loans[l.LoanID] = l
}

type loanRepo struct {
	s      *Store
	reader bool
}

func (r *loanRepo) Create(_ context.Context, l *loan.Loan) error {
	var err error
	r.s.with(r.reader, func() {
		if _, dup := r.s.st.loans[l.LoanID]; dup {
			err = fmt.Errorf("memstore: duplicate loan %d", l.LoanID)
			return
		}
		l.ID = r.s.id()
		now := time.Now().UTC()
		l.CreatedAt, l.UpdatedAt = now, now
		r.s.st.loans[l.LoanID] = *l
	})
	return err
}

func (r *loanRepo) get(loanID uint64) (*loan.Loan, error) {
	var (
		out *loan.Loan
		err error
	)
	r.s.with(r.reader, func() {
		l, ok := r.s.st.loans[loanID]
		if !ok {
			err = fmt.Errorf("%w: loan %d", loan.ErrNotFound, loanID)
			return
		}
		out = &l
	})
	return out, err
}

func (r *loanRepo) GetByLoanID(_ context.Context, loanID uint64) (*loan.Loan, error) {
	return r.get(loanID)
}

func (r *loanRepo) GetByLoanIDForUpdate(_ context.Context, loanID uint64) (*loan.Loan, error) {
	return r.get(loanID)
}

func (r *loanRepo) Save(_ context.Context, l *loan.Loan) error {
	var err error
	r.s.with(r.reader, func() {
		if _, ok := r.s.st.loans[l.LoanID]; !ok {
			err = fmt.Errorf("%w: loan %d", loan.ErrNotFound, l.LoanID)
			return
		}
		l.UpdatedAt = time.Now().UTC()
		r.s.st.loans[l.LoanID] = *l
	})
	return err
}

func (r *loanRepo) AppendBorrowerLoan(_ context.Context, borrower common.Address, loanID uint64) error {
	r.s.with(r.reader, func() {
		r.s.st.borrowerLoans = append(r.s.st.borrowerLoans, loan.BorrowerLoan{ID: r.s.id(), Borrower: borrower, LoanID: loanID})
	})
	return nil
}

func (r *loanRepo) ListBorrowerLoanIDs(_ context.Context, borrower common.Address) ([]uint64, error) {
	var ids []uint64
	r.s.with(r.reader, func() {
		for _, bl := range r.s.st.borrowerLoans {
			if bl.Borrower == borrower {
				ids = append(ids, bl.LoanID)
			}
		}
	})
	return ids, nil
}

type ledgerRepo struct {
	s      *Store
	reader bool
}

func (r *ledgerRepo) GetForUpdate(_ context.Context) (*loan.Ledger, error) {
	var out loan.Ledger
	r.s.with(r.reader, func() {
		if r.s.st.ledger == nil {
			r.s.st.ledger = &loan.Ledger{ID: loan.LedgerRowID}
		}
		out = *r.s.st.ledger
	})
	return &out, nil
}

func (r *ledgerRepo) Get(_ context.Context) (*loan.Ledger, error) {
	out := loan.Ledger{ID: loan.LedgerRowID}
	r.s.with(r.reader, func() {
		if r.s.st.ledger != nil {
			out = *r.s.st.ledger
		}
	})
	return &out, nil
}

func (r *ledgerRepo) Save(_ context.Context, l *loan.Ledger) error {
	r.s.with(r.reader, func() {
		c := *l
		c.UpdatedAt = time.Now().UTC()
		r.s.st.ledger = &c
	})
	return nil
}

type submissionRepo struct {
	s      *Store
	reader bool
}

func (r *submissionRepo) Create(_ context.Context, sub *consensus.Submission) error {
	var err error
	r.s.with(r.reader, func() {
		for _, x := range r.s.st.submissions {
			if x.Signer == sub.Signer && x.SignerNonce == sub.SignerNonce {
				err = fmt.Errorf("%w: signer %s nonce %d", consensus.ErrSignerNonceTaken, sub.Signer, sub.SignerNonce)
				return
			}
		}
		sub.ID = r.s.id()
		r.s.st.submissions = append(r.s.st.submissions, *sub)
	})
	return err
}

func (r *submissionRepo) SignerNonceTaken(_ context.Context, signer common.Address, nonce uint64) (bool, error) {
	taken := false
	r.s.with(r.reader, func() {
		for _, x := range r.s.st.submissions {
			if (signerKey{x.Signer, x.SignerNonce}) == (signerKey{signer, nonce}) {
				taken = true
				return
			}
		}
	})
	return taken, nil
}

func (r *submissionRepo) TakeRequestNonce(_ context.Context, borrower common.Address, nonce, loanID uint64) error {
	var err error
	r.s.with(r.reader, func() {
		k := nonceKey{borrower, nonce}
		if _, taken := r.s.st.requestNonces[k]; taken {
			err = fmt.Errorf("%w: borrower %s nonce %d", consensus.ErrRequestNonceTaken, borrower, nonce)
			return
		}
		r.s.st.requestNonces[k] = loanID
	})
	return err
}

func (r *submissionRepo) ListByLoanID(_ context.Context, loanID uint64) ([]consensus.Submission, error) {
	var out []consensus.Submission
	r.s.with(r.reader, func() {
		for _, x := range r.s.st.submissions {
			if x.LoanID == loanID {
				out = append(out, x)
			}
		}
	})
	return out, nil
}

// poolRepo and vaultRepo are only handed out inside transactions, so they
// never take the lock themselves.
type poolRepo struct{ s *Store }

func (p *poolRepo) record(loanID uint64, kind pool.MovementKind, account common.Address, amount loan.Amount) error {
	if p.s.PoolErr != nil {
		return p.s.PoolErr
	}
	p.s.st.movements = append(p.s.st.movements, pool.Movement{
		ID: p.s.id(), LoanID: loanID, Kind: kind, Account: account, Amount: amount, CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (p *poolRepo) CreateLoan(_ context.Context, loanID uint64, amount loan.Amount, recipient common.Address) error {
	return p.record(loanID, pool.MovementDisbursement, recipient, amount)
}

func (p *poolRepo) Repay(_ context.Context, loanID uint64, amount loan.Amount, payer common.Address) error {
	return p.record(loanID, pool.MovementRepayment, payer, amount)
}

func (p *poolRepo) LiquidationPayment(_ context.Context, loanID uint64, amount loan.Amount, payer common.Address) error {
	return p.record(loanID, pool.MovementLiquidation, payer, amount)
}

type vaultRepo struct{ s *Store }

func (v *vaultRepo) record(loanID uint64, dir collateral.Direction, account common.Address, amount loan.Amount) error {
	if v.s.VaultErr != nil {
		return v.s.VaultErr
	}
	v.s.st.transfers = append(v.s.st.transfers, collateral.Transfer{
		ID: v.s.id(), LoanID: loanID, Direction: dir, Account: account, Amount: amount, CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (v *vaultRepo) PayIn(_ context.Context, loanID uint64, from common.Address, amount loan.Amount) error {
	return v.record(loanID, collateral.DirectionIn, from, amount)
}

func (v *vaultRepo) PayOut(_ context.Context, loanID uint64, to common.Address, amount loan.Amount) error {
	return v.record(loanID, collateral.DirectionOut, to, amount)
}
