package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"collateral-loans/internal/domain/oracle"
)

var _ oracle.Feed = (*Aggregator)(nil)

// Aggregator reads a Chainlink-style aggregator contract.
type Aggregator struct{ c contract }

func NewAggregator(address common.Address, caller ethereum.ContractCaller) *Aggregator {
	return &Aggregator{c: contract{address: address, abi: aggregatorABI, caller: caller, timeout: defaultCallTimeout}}
}

func (a *Aggregator) Address() common.Address { return a.c.address }

func (a *Aggregator) LatestAnswer(ctx context.Context) (*big.Int, error) {
	return a.c.callBig(ctx, latestAnswerMethod)
}

func (a *Aggregator) LatestTimestamp(ctx context.Context) (uint64, error) {
	return a.c.callUint64(ctx, latestTimestampMethod)
}

func (a *Aggregator) LatestRound(ctx context.Context) (uint64, error) {
	return a.c.callUint64(ctx, latestRoundMethod)
}

func (a *Aggregator) GetAnswer(ctx context.Context, round uint64) (*big.Int, error) {
	return a.c.callBig(ctx, getAnswerMethod, new(big.Int).SetUint64(round))
}

func (a *Aggregator) GetTimestamp(ctx context.Context, round uint64) (uint64, error) {
	return a.c.callUint64(ctx, getTimestampMethod, new(big.Int).SetUint64(round))
}
