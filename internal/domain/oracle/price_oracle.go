// Package oracle adapts an external price feed into answers expressed in the
// collateral token's decimal precision.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// MaxPendingDecimals is the largest exponent whose power of ten fits in 256 bits.
const MaxPendingDecimals = 77

var (
	ErrInvalidAggregatorAddress = errors.New("oracle: invalid aggregator address")
	ErrPendingDecimalsOverflow  = errors.New("oracle: pending decimals overflow")
	ErrInsufficientHistory      = errors.New("oracle: insufficient history")
)

// Feed is the latest-answer/latest-round aggregator surface.
type Feed interface {
	LatestAnswer(ctx context.Context) (*big.Int, error)
	LatestTimestamp(ctx context.Context) (uint64, error)
	LatestRound(ctx context.Context) (uint64, error)
	GetAnswer(ctx context.Context, round uint64) (*big.Int, error)
	GetTimestamp(ctx context.Context, round uint64) (uint64, error)
}

type PriceOracle struct {
	address            common.Address
	feed               Feed
	responseDecimals   uint8
	collateralDecimals uint8
	pendingDecimals    uint8
	scale              *big.Int
}

func NewPriceOracle(address common.Address, feed Feed, responseDecimals, collateralDecimals uint8) (*PriceOracle, error) {
	if address == (common.Address{}) || feed == nil {
		return nil, ErrInvalidAggregatorAddress
	}
	pending := int(collateralDecimals) - int(responseDecimals)
	if pending < 0 {
		pending = -pending
	}
	if pending > MaxPendingDecimals {
		return nil, fmt.Errorf("%w: %d > %d", ErrPendingDecimalsOverflow, pending, MaxPendingDecimals)
	}
	return &PriceOracle{
		address:            address,
		feed:               feed,
		responseDecimals:   responseDecimals,
		collateralDecimals: collateralDecimals,
		pendingDecimals:    uint8(pending),
		scale:              new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(pending)), nil),
	}, nil
}

func (o *PriceOracle) Address() common.Address   { return o.address }
func (o *PriceOracle) ResponseDecimals() uint8   { return o.responseDecimals }
func (o *PriceOracle) CollateralDecimals() uint8 { return o.collateralDecimals }
func (o *PriceOracle) PendingDecimals() uint8    { return o.pendingDecimals }

func (o *PriceOracle) LatestAnswer(ctx context.Context) (*big.Int, error) {
	v, err := o.feed.LatestAnswer(ctx)
	if err != nil {
		return nil, fmt.Errorf("oracle: latest answer: %w", err)
	}
	return o.normalize(v), nil
}

func (o *PriceOracle) PreviousAnswer(ctx context.Context, roundsBack uint64) (*big.Int, error) {
	round, err := o.roundFor(ctx, roundsBack)
	if err != nil {
		return nil, err
	}
	v, err := o.feed.GetAnswer(ctx, round)
	if err != nil {
		return nil, fmt.Errorf("oracle: answer for round %d: %w", round, err)
	}
	return o.normalize(v), nil
}

func (o *PriceOracle) LatestTimestamp(ctx context.Context) (uint64, error) {
	return o.feed.LatestTimestamp(ctx)
}

func (o *PriceOracle) LatestRound(ctx context.Context) (uint64, error) {
	return o.feed.LatestRound(ctx)
}

func (o *PriceOracle) PreviousTimestamp(ctx context.Context, roundsBack uint64) (uint64, error) {
	round, err := o.roundFor(ctx, roundsBack)
	if err != nil {
		return 0, err
	}
	return o.feed.GetTimestamp(ctx, round)
}

func (o *PriceOracle) roundFor(ctx context.Context, roundsBack uint64) (uint64, error) {
	latest, err := o.feed.LatestRound(ctx)
	if err != nil {
		return 0, fmt.Errorf("oracle: latest round: %w", err)
	}
	if roundsBack > latest {
		return 0, fmt.Errorf("%w: %d rounds back, latest round %d", ErrInsufficientHistory, roundsBack, latest)
	}
	return latest - roundsBack, nil
}

// normalize rescales a feed answer into collateral decimals. Down-scaling
// truncates toward zero.
func (o *PriceOracle) normalize(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	if o.collateralDecimals >= o.responseDecimals {
		return new(big.Int).Mul(v, o.scale)
	}
	return new(big.Int).Quo(v, o.scale)
}
