package consensus

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"collateral-loans/internal/domain/loan"
)

func word(x uint64) []byte {
	b := uint256.NewInt(x).Bytes32()
	return b[:]
}

func amountWord(a loan.Amount) []byte {
	b := a.Uint256().Bytes32()
	return b[:]
}

// Hash is the keccak256 of the request's 32-byte left-padded fields.
func (r LoanRequest) Hash(chainID uint64) common.Hash {
	return crypto.Keccak256Hash(
		common.LeftPadBytes(r.Borrower.Bytes(), 32),
		common.LeftPadBytes(r.Recipient.Bytes(), 32),
		common.LeftPadBytes(r.ConsensusAddress.Bytes(), 32),
		word(r.RequestNonce),
		amountWord(r.Amount),
		word(r.Duration),
		word(uint64(r.RequestTime)),
		word(chainID),
	)
}

// Digest binds a response to the request it prices.
func (resp LoanResponse) Digest(requestHash common.Hash, chainID uint64) common.Hash {
	return crypto.Keccak256Hash(
		common.LeftPadBytes(resp.ConsensusAddress.Bytes(), 32),
		requestHash.Bytes(),
		word(resp.InterestRate),
		word(resp.CollateralRatio),
		amountWord(resp.MaxLoanAmount),
		word(resp.SignerNonce),
		word(uint64(resp.ResponseTime)),
		word(chainID),
	)
}

// SigningHash applies the EIP-191 personal message prefix.
func SigningHash(digest common.Hash) []byte { return accounts.TextHash(digest.Bytes()) }

// Sign fills Signer and Signature for resp.
func Sign(resp *LoanResponse, requestHash common.Hash, chainID uint64, key *ecdsa.PrivateKey) error {
	resp.Signer = crypto.PubkeyToAddress(key.PublicKey)
	sig, err := crypto.Sign(SigningHash(resp.Digest(requestHash, chainID)), key)
	if err != nil {
		return fmt.Errorf("consensus: sign response: %w", err)
	}
	resp.Signature = sig
	return nil
}

// RecoverSigner returns the address that produced resp.Signature. V may be
// 0/1 or 27/28.
func RecoverSigner(resp LoanResponse, requestHash common.Hash, chainID uint64) (common.Address, error) {
	if len(resp.Signature) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: signature length %d", ErrSignatureMismatch, len(resp.Signature))
	}
	sig := make([]byte, crypto.SignatureLength)
	copy(sig, resp.Signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(SigningHash(resp.Digest(requestHash, chainID)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrSignatureMismatch, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
