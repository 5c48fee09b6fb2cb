package domain

import "time"

// CopyTradeRecord is one replica attempt as written to the trade journal.
// Corresponds to copy_trades table in ClickHouse.
type CopyTradeRecord struct {
	SessionID     string
	FollowerID    string
	MasterAddress string
	MasterVersion uint64 // version of the mirrored master transaction
	InputAsset    string
	OutputAsset   string
	AmountRaw     string // decimal string, smallest unit
	TxHash        string // empty on failure
	Status        string // EXECUTED | FAILED
	Reason        string // failure reason
	ExecutedAt    time.Time
}

// Trade status constants
const (
	TradeStatusExecuted = "EXECUTED"
	TradeStatusFailed   = "FAILED"
)
