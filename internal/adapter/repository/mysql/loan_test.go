package mysql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	domain "collateral-loans/internal/domain/loan"
	"collateral-loans/internal/infrastructure/db"
)

var (
	borrowerA = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	borrowerB = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

// openTestDB creates an in-memory sqlite DB with the full schema. The domain
// models avoid ENUMs so they migrate on sqlite as-is.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), db.Config())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("DB: %v", err)
	}
	// every pooled connection would otherwise get its own empty database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return gdb
}

func makeLoan(loanID uint64, borrower common.Address) *domain.Loan {
	return &domain.Loan{
		LoanID: loanID,
		Terms: domain.Terms{
			Borrower:        borrower,
			MaxLoanAmount:   domain.NewAmount(5000),
			CollateralRatio: 15000,
			InterestRate:    500,
			Duration:        86400,
		},
		TermsExpiry: time.Now().UTC().Add(24 * time.Hour),
		Status:      domain.StatusTermsSet,
	}
}

func TestCreateAndGetByLoanID(t *testing.T) {
	repo := NewLoanRepository(openTestDB(t))
	ctx := context.Background()

	l := makeLoan(0, borrowerA)
	if err := repo.Create(ctx, l); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if l.ID == 0 {
		t.Fatalf("Create did not set auto-increment ID")
	}

	got, err := repo.GetByLoanID(ctx, 0)
	if err != nil {
		t.Fatalf("GetByLoanID: %v", err)
	}
	if got.Terms.Borrower != borrowerA || got.Terms.MaxLoanAmount.Cmp(domain.NewAmount(5000)) != 0 {
		t.Errorf("unexpected loan: %+v", got)
	}
	if got.LoanStartTime != nil || got.LastCollateralIn != nil {
		t.Errorf("unset times should load as nil: %+v", got)
	}
}

func TestSaveUpdates(t *testing.T) {
	repo := NewLoanRepository(openTestDB(t))
	ctx := context.Background()

	l := makeLoan(3, borrowerA)
	if err := repo.Create(ctx, l); err != nil {
		t.Fatalf("Create: %v", err)
	}

	big, err := domain.ParseAmount("115792089237316195423570985008687907853269984665640564039457584007913129639935")
	if err != nil {
		t.Fatalf("ParseAmount: %v", err)
	}
	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	l.Collateral = big
	l.Status = domain.StatusActive
	l.LoanStartTime = &start
	if err := repo.Save(ctx, l); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := repo.GetByLoanIDForUpdate(ctx, 3)
	if err != nil {
		t.Fatalf("GetByLoanIDForUpdate: %v", err)
	}
	if got.Collateral.Cmp(big) != 0 {
		t.Errorf("collateral = %s, want max uint256", got.Collateral)
	}
	if got.Status != domain.StatusActive || got.LoanStartTime == nil || !got.LoanStartTime.Equal(start) {
		t.Errorf("unexpected loan after save: %+v", got)
	}
}

func TestGetByLoanID_NotFound(t *testing.T) {
	repo := NewLoanRepository(openTestDB(t))
	ctx := context.Background()

	if _, err := repo.GetByLoanID(ctx, 404); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetByLoanID: expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetByLoanIDForUpdate(ctx, 404); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetByLoanIDForUpdate: expected ErrNotFound, got %v", err)
	}
}

func TestBorrowerIndex_OrderedPerBorrower(t *testing.T) {
	repo := NewLoanRepository(openTestDB(t))
	ctx := context.Background()

	for _, e := range []struct {
		b  common.Address
		id uint64
	}{{borrowerA, 0}, {borrowerB, 1}, {borrowerA, 2}, {borrowerA, 5}} {
		if err := repo.AppendBorrowerLoan(ctx, e.b, e.id); err != nil {
			t.Fatalf("AppendBorrowerLoan: %v", err)
		}
	}

	got, err := repo.ListBorrowerLoanIDs(ctx, borrowerA)
	if err != nil {
		t.Fatalf("ListBorrowerLoanIDs: %v", err)
	}
	want := []uint64{0, 2, 5}
	if len(got) != len(want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ids = %v, want %v", got, want)
		}
	}

	none, err := repo.ListBorrowerLoanIDs(ctx, common.HexToAddress("0xdead"))
	if err != nil || len(none) != 0 {
		t.Fatalf("unknown borrower = (%v, %v), want empty", none, err)
	}
}

func TestLedger_CreatesRowOnFirstLock(t *testing.T) {
	gdb := openTestDB(t)
	repo := NewLedgerRepository(gdb)
	ctx := context.Background()

	got, err := repo.Get(ctx)
	if err != nil || got.LoanIDCounter != 0 || !got.TotalCollateral.IsZero() {
		t.Fatalf("Get before first write = (%+v, %v)", got, err)
	}

	led, err := repo.GetForUpdate(ctx)
	if err != nil {
		t.Fatalf("GetForUpdate: %v", err)
	}
	led.LoanIDCounter = 4
	led.TotalCollateral = domain.NewAmount(1234)
	if err := repo.Save(ctx, led); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// a second lock must not reset the row
	again, err := repo.GetForUpdate(ctx)
	if err != nil {
		t.Fatalf("GetForUpdate again: %v", err)
	}
	if again.LoanIDCounter != 4 || again.TotalCollateral.Cmp(domain.NewAmount(1234)) != 0 {
		t.Fatalf("ledger = %+v", again)
	}

	var rows int64
	gdb.Model(&domain.Ledger{}).Count(&rows)
	if rows != 1 {
		t.Fatalf("ledger rows = %d, want 1", rows)
	}
}
