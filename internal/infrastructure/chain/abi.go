package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const aggregatorABIJSON = `[
{"constant":true,"inputs":[],"name":"latestAnswer","outputs":[{"name":"","type":"int256"}],"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[],"name":"latestTimestamp","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[],"name":"latestRound","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[{"name":"roundId","type":"uint256"}],"name":"getAnswer","outputs":[{"name":"","type":"int256"}],"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[{"name":"roundId","type":"uint256"}],"name":"getTimestamp","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

const erc20ABIJSON = `[
{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"}
]`

const (
	latestAnswerMethod    = "latestAnswer"
	latestTimestampMethod = "latestTimestamp"
	latestRoundMethod     = "latestRound"
	getAnswerMethod       = "getAnswer"
	getTimestampMethod    = "getTimestamp"
	decimalMethod         = "decimals"
)

var (
	aggregatorABI = mustParseABI(aggregatorABIJSON)
	erc20ABI      = mustParseABI(erc20ABIJSON)
)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return parsed
}
