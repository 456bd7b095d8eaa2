package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"collateral-loans/internal/domain/pool"
)

var _ pool.LendingToken = (*Token)(nil)

// Token reads ERC-20 metadata. Decimals never change, so the first
// successful answer is kept.
type Token struct {
	c contract

	mu       sync.Mutex
	decimals *uint8
}

func NewToken(address common.Address, caller ethereum.ContractCaller) *Token {
	return &Token{c: contract{address: address, abi: erc20ABI, caller: caller, timeout: defaultCallTimeout}}
}

func (t *Token) Decimals(ctx context.Context) (uint8, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.decimals != nil {
		return *t.decimals, nil
	}
	output, err := t.c.call(ctx, decimalMethod)
	if err != nil {
		return 0, err
	}
	d, ok := abi.ConvertType(output[0], new(uint8)).(*uint8)
	if !ok {
		return 0, fmt.Errorf("decimals returned %T", output[0])
	}
	t.decimals = d
	return *d, nil
}
