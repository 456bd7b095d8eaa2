// Package chain reads the price feed and lending token from an EVM node.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog/log"
)

const defaultCallTimeout = 10 * time.Second

// Dial connects to the JSON-RPC endpoint and checks it answers.
func Dial(ctx context.Context, url string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fail to dial eth rpc: %w", err)
	}
	id, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("fail to read chain id: %w", err)
	}
	log.Info().Str("module", "chain").Str("chain_id", id.String()).Msg("eth rpc connected")
	return client, nil
}

// contract is a read-only view of one deployed contract.
type contract struct {
	address common.Address
	abi     abi.ABI
	caller  ethereum.ContractCaller
	timeout time.Duration
}

func (c contract) call(ctx context.Context, method string, args ...any) ([]any, error) {
	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("fail to pack %s: %w", method, err)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	to := c.address
	res, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("fail to call %s on %s: %w", method, c.address.Hex(), err)
	}
	output, err := c.abi.Unpack(method, res)
	if err != nil {
		return nil, fmt.Errorf("fail to unpack %s result: %w", method, err)
	}
	if len(output) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	return output, nil
}

func (c contract) callBig(ctx context.Context, method string, args ...any) (*big.Int, error) {
	output, err := c.call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := abi.ConvertType(output[0], new(big.Int)).(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s returned %T", method, output[0])
	}
	return v, nil
}

func (c contract) callUint64(ctx context.Context, method string, args ...any) (uint64, error) {
	v, err := c.callBig(ctx, method, args...)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("%s result %s does not fit in uint64", method, v)
	}
	return v.Uint64(), nil
}
