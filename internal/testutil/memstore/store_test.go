package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"collateral-loans/internal/domain/consensus"
	"collateral-loans/internal/domain/loan"
	"collateral-loans/internal/domain/uow"
)

func TestStore_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	borrower := common.HexToAddress("0xb0")

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(r uow.Repos) error {
		led, _ := r.Ledger.GetForUpdate(ctx)
		led.LoanIDCounter = 1
		if err := r.Ledger.Save(ctx, led); err != nil {
			return err
		}
		if err := r.Loans.Create(ctx, &loan.Loan{LoanID: 0, Terms: loan.Terms{Borrower: borrower}}); err != nil {
			return err
		}
		if err := r.Vault.PayIn(ctx, 0, borrower, loan.NewAmount(5)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithinTx err = %v, want boom", err)
	}

	if got := s.Loans(); len(got) != 0 {
		t.Fatalf("loans after rollback = %d, want 0", len(got))
	}
	if got := s.Transfers(); len(got) != 0 {
		t.Fatalf("transfers after rollback = %d, want 0", len(got))
	}
	led, _ := s.Reader().Ledger.Get(ctx)
	if led.LoanIDCounter != 0 {
		t.Fatalf("ledger counter after rollback = %d, want 0", led.LoanIDCounter)
	}
}

func TestStore_WithinLoanTx(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.PutLoan(loan.Loan{LoanID: 3, Status: loan.StatusActive})

	if err := s.WithinLoanTx(ctx, 9, func(uow.Repos, *loan.Loan) error { return nil }); !errors.Is(err, loan.ErrNotFound) {
		t.Fatalf("missing loan: want ErrNotFound, got %v", err)
	}

	err := s.WithinLoanTx(ctx, 3, func(r uow.Repos, l *loan.Loan) error {
		l.Status = loan.StatusClosed
		return r.Loans.Save(ctx, l)
	})
	if err != nil {
		t.Fatalf("WithinLoanTx: %v", err)
	}
	got, err := s.Reader().Loans.GetByLoanID(ctx, 3)
	if err != nil || got.Status != loan.StatusClosed {
		t.Fatalf("GetByLoanID = (%+v, %v)", got, err)
	}
}

func TestStore_NonceUniqueness(t *testing.T) {
	ctx := context.Background()
	s := New()
	signer := common.HexToAddress("0x51")

	err := s.WithinTx(ctx, func(r uow.Repos) error {
		if err := r.Submissions.TakeRequestNonce(ctx, signer, 1, 0); err != nil {
			return err
		}
		return r.Submissions.TakeRequestNonce(ctx, signer, 1, 1)
	})
	if !errors.Is(err, consensus.ErrRequestNonceTaken) {
		t.Fatalf("request nonce reuse: want ErrRequestNonceTaken, got %v", err)
	}

	err = s.WithinTx(ctx, func(r uow.Repos) error {
		if err := r.Submissions.Create(ctx, &consensus.Submission{Signer: signer, SignerNonce: 2}); err != nil {
			return err
		}
		return r.Submissions.Create(ctx, &consensus.Submission{Signer: signer, SignerNonce: 2})
	})
	if !errors.Is(err, consensus.ErrSignerNonceTaken) {
		t.Fatalf("signer nonce reuse: want ErrSignerNonceTaken, got %v", err)
	}
	taken, _ := s.Reader().Submissions.SignerNonceTaken(ctx, signer, 2)
	if taken {
		t.Fatalf("rolled back submission still visible")
	}
}
