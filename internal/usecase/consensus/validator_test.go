package consensus

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	domain "collateral-loans/internal/domain/consensus"
	"collateral-loans/internal/domain/loan"
	"collateral-loans/internal/domain/uow"
	"collateral-loans/internal/testutil/memstore"
)

const chainID = 1337

var (
	consensusAddr = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	borrower      = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	now           = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

type signerSet struct {
	keys  []*ecdsa.PrivateKey
	addrs []common.Address
}

func newSigners(t *testing.T, n int) signerSet {
	t.Helper()
	var s signerSet
	for i := 0; i < n; i++ {
		k, err := crypto.GenerateKey()
		if err != nil {
			t.Fatalf("GenerateKey: %v", err)
		}
		s.keys = append(s.keys, k)
		s.addrs = append(s.addrs, crypto.PubkeyToAddress(k.PublicKey))
	}
	return s
}

func newValidator(t *testing.T, signers []common.Address) *Validator {
	t.Helper()
	v, err := NewValidator(Config{
		Address:             consensusAddr,
		Signers:             signers,
		RequiredSubmissions: 2,
		ToleranceBps:        500,
		ResponseExpiry:      10 * time.Minute,
		ChainID:             chainID,
	}, func() time.Time { return now })
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	return v
}

func request(nonce uint64) domain.LoanRequest {
	return domain.LoanRequest{
		Borrower:         borrower,
		ConsensusAddress: consensusAddr,
		RequestNonce:     nonce,
		Amount:           loan.NewAmount(1000),
		Duration:         86400,
		RequestTime:      now.Unix(),
	}
}

type proposal struct {
	rate, ratio, max uint64
	nonce            uint64
}

func sign(t *testing.T, req domain.LoanRequest, key *ecdsa.PrivateKey, p proposal) domain.LoanResponse {
	t.Helper()
	resp := domain.LoanResponse{
		ConsensusAddress: consensusAddr,
		ResponseTime:     now.Add(-time.Minute).Unix(),
		InterestRate:     p.rate,
		CollateralRatio:  p.ratio,
		MaxLoanAmount:    loan.NewAmount(p.max),
		SignerNonce:      p.nonce,
	}
	if err := domain.Sign(&resp, req.Hash(chainID), chainID, key); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return resp
}

func process(v *Validator, store *memstore.Store, req domain.LoanRequest, responses []domain.LoanResponse) (domain.Terms, error) {
	var terms domain.Terms
	err := store.WithinTx(context.Background(), func(r uow.Repos) error {
		var err error
		terms, err = v.ProcessRequest(context.Background(), r, req, responses, 0)
		return err
	})
	return terms, err
}

func TestNewValidator_Config(t *testing.T) {
	signers := newSigners(t, 1).addrs
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no address", Config{Signers: signers, RequiredSubmissions: 1}},
		{"zero required", Config{Address: consensusAddr, Signers: signers}},
		{"too few signers", Config{Address: consensusAddr, Signers: signers, RequiredSubmissions: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewValidator(tt.cfg, nil); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestProcessRequest_AveragesTerms(t *testing.T) {
	s := newSigners(t, 3)
	v := newValidator(t, s.addrs)
	store := memstore.New()
	req := request(1)

	responses := []domain.LoanResponse{
		sign(t, req, s.keys[0], proposal{rate: 1000, ratio: 15000, max: 5000, nonce: 1}),
		sign(t, req, s.keys[1], proposal{rate: 1010, ratio: 15100, max: 5100, nonce: 1}),
		sign(t, req, s.keys[2], proposal{rate: 990, ratio: 14900, max: 4900, nonce: 1}),
	}
	terms, err := process(v, store, req, responses)
	if err != nil {
		t.Fatalf("ProcessRequest: %v", err)
	}
	if terms.InterestRate != 1000 || terms.CollateralRatio != 15000 || terms.MaxLoanAmount.Cmp(loan.NewAmount(5000)) != 0 {
		t.Fatalf("terms = %+v", terms)
	}

	subs, err := store.Reader().Submissions.ListByLoanID(context.Background(), 0)
	if err != nil || len(subs) != 3 {
		t.Fatalf("submissions = (%d, %v), want 3", len(subs), err)
	}
}

func TestProcessRequest_Rejections(t *testing.T) {
	s := newSigners(t, 3)
	outsider := newSigners(t, 1)
	v := newValidator(t, s.addrs)
	good := proposal{rate: 1000, ratio: 15000, max: 5000, nonce: 7}

	tests := []struct {
		name  string
		build func(req domain.LoanRequest) (domain.LoanRequest, []domain.LoanResponse)
		want  error
	}{
		{
			name: "too few responses",
			build: func(req domain.LoanRequest) (domain.LoanRequest, []domain.LoanResponse) {
				return req, []domain.LoanResponse{sign(t, req, s.keys[0], good)}
			},
			want: domain.ErrInsufficientResponses,
		},
		{
			name: "zero duration",
			build: func(req domain.LoanRequest) (domain.LoanRequest, []domain.LoanResponse) {
				req.Duration = 0
				return req, nil
			},
			want: domain.ErrInvalidRequest,
		},
		{
			name: "unknown signer",
			build: func(req domain.LoanRequest) (domain.LoanRequest, []domain.LoanResponse) {
				return req, []domain.LoanResponse{sign(t, req, s.keys[0], good), sign(t, req, outsider.keys[0], good)}
			},
			want: domain.ErrUnauthorizedSigner,
		},
		{
			name: "duplicate signer",
			build: func(req domain.LoanRequest) (domain.LoanRequest, []domain.LoanResponse) {
				other := good
				other.nonce++
				return req, []domain.LoanResponse{sign(t, req, s.keys[0], good), sign(t, req, s.keys[0], other)}
			},
			want: domain.ErrDuplicateSigner,
		},
		{
			name: "expired response",
			build: func(req domain.LoanRequest) (domain.LoanRequest, []domain.LoanResponse) {
				old := sign(t, req, s.keys[1], good)
				old.ResponseTime = now.Add(-time.Hour).Unix()
				if err := domain.Sign(&old, req.Hash(chainID), chainID, s.keys[1]); err != nil {
					t.Fatalf("Sign: %v", err)
				}
				return req, []domain.LoanResponse{sign(t, req, s.keys[0], good), old}
			},
			want: domain.ErrResponseExpired,
		},
		{
			name: "tampered values",
			build: func(req domain.LoanRequest) (domain.LoanRequest, []domain.LoanResponse) {
				bad := sign(t, req, s.keys[1], good)
				bad.CollateralRatio = 14000
				return req, []domain.LoanResponse{sign(t, req, s.keys[0], good), bad}
			},
			want: domain.ErrSignatureMismatch,
		},
		{
			name: "signed for another request",
			build: func(req domain.LoanRequest) (domain.LoanRequest, []domain.LoanResponse) {
				other := req
				other.Amount = loan.NewAmount(999_999)
				return req, []domain.LoanResponse{sign(t, req, s.keys[0], good), sign(t, other, s.keys[1], good)}
			},
			want: domain.ErrSignatureMismatch,
		},
		{
			name: "other consensus address",
			build: func(req domain.LoanRequest) (domain.LoanRequest, []domain.LoanResponse) {
				req.ConsensusAddress = common.HexToAddress("0xbb")
				return req, nil
			},
			want: domain.ErrConsensusAddressMismatch,
		},
		{
			name: "outside tolerance",
			build: func(req domain.LoanRequest) (domain.LoanRequest, []domain.LoanResponse) {
				high := good
				high.rate = 2000
				return req, []domain.LoanResponse{sign(t, req, s.keys[0], good), sign(t, req, s.keys[1], high)}
			},
			want: domain.ErrOutsideTolerance,
		},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memstore.New()
			req, responses := tt.build(request(uint64(i + 1)))
			if _, err := process(v, store, req, responses); !errors.Is(err, tt.want) {
				t.Fatalf("want %v, got %v", tt.want, err)
			}
		})
	}
}

func TestProcessRequest_ReplayGuards(t *testing.T) {
	s := newSigners(t, 2)
	v := newValidator(t, s.addrs)
	store := memstore.New()

	req := request(1)
	responses := []domain.LoanResponse{
		sign(t, req, s.keys[0], proposal{rate: 1000, ratio: 15000, max: 5000, nonce: 1}),
		sign(t, req, s.keys[1], proposal{rate: 1000, ratio: 15000, max: 5000, nonce: 1}),
	}
	if _, err := process(v, store, req, responses); err != nil {
		t.Fatalf("first: %v", err)
	}

	if _, err := process(v, store, req, responses); !errors.Is(err, domain.ErrRequestNonceTaken) {
		t.Fatalf("same request: want ErrRequestNonceTaken, got %v", err)
	}

	fresh := request(2)
	replayed := []domain.LoanResponse{
		sign(t, fresh, s.keys[0], proposal{rate: 1000, ratio: 15000, max: 5000, nonce: 2}),
		sign(t, fresh, s.keys[1], proposal{rate: 1000, ratio: 15000, max: 5000, nonce: 1}),
	}
	if _, err := process(v, store, fresh, replayed); !errors.Is(err, domain.ErrSignerNonceTaken) {
		t.Fatalf("signer nonce reuse: want ErrSignerNonceTaken, got %v", err)
	}
}

func TestAverage_Tolerance(t *testing.T) {
	tests := []struct {
		name    string
		values  []uint64
		tol     uint64
		want    uint64
		wantErr bool
	}{
		{"identical", []uint64{10, 10, 10}, 0, 10, false},
		{"exact edge", []uint64{95, 105}, 500, 100, false},
		{"just outside", []uint64{94, 106}, 500, 100, true},
		{"floor average", []uint64{1, 2}, 10000, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var responses []domain.LoanResponse
			for _, x := range tt.values {
				responses = append(responses, domain.LoanResponse{InterestRate: x, CollateralRatio: 1, MaxLoanAmount: loan.NewAmount(1)})
			}
			terms, err := aggregate(responses, tt.tol)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrOutsideTolerance) {
					t.Fatalf("want ErrOutsideTolerance, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("aggregate: %v", err)
			}
			if terms.InterestRate != tt.want {
				t.Fatalf("average = %d, want %d", terms.InterestRate, tt.want)
			}
		})
	}
}
