package domain

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Transaction is the subset of an on-chain transaction the engine inspects.
type Transaction struct {
	Version       uint64   // ledger version (monotonic ordinal)
	Hash          string   // transaction hash
	Type          string   // user_transaction, block_metadata_transaction, ...
	Sender        string   // sender address
	Success       bool     // VM execution outcome
	Function      string   // entry function id, e.g. 0x1::coin::transfer
	TypeArguments []string // ordered type arguments of the entry function
	Arguments     []string // call arguments; scalars unquoted, composites as raw JSON
	Timestamp     int64    // microseconds since epoch
}

// SwapIntent holds the economic parameters decoded from a master swap.
type SwapIntent struct {
	Version     uint64
	Function    string
	InputAsset  string
	OutputAsset string

	InputAmountRaw  *big.Int // smallest unit of InputAsset
	QuotedMinOutRaw *big.Int // 95% of the master's own min-out argument, informational

	DecimalsKnown    bool            // false when the asset exposes no CoinInfo
	InputDecimals    int32           // decimals of InputAsset when known
	InputAmountHuman decimal.Decimal // InputAmountRaw / 10^InputDecimals when known
}

// AssetName returns the trailing struct name of a Move type (x::coin::USDT -> USDT).
func AssetName(assetType string) string {
	if i := strings.LastIndex(assetType, "::"); i >= 0 {
		return assetType[i+2:]
	}
	return assetType
}
