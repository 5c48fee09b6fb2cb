package domain

import "time"

// EventKind identifies the type of an engine event.
type EventKind string

// Event kinds.
const (
	EventTradeDetected EventKind = "TRADE_DETECTED"
	EventTradeExecuted EventKind = "TRADE_EXECUTED"
	EventTradeFailed   EventKind = "TRADE_FAILED"
)

// Event is emitted by a session runner towards the notifier.
type Event interface {
	Kind() EventKind
	Meta() EventMeta
}

// EventMeta is the part shared by every event.
type EventMeta struct {
	SessionID     string    `json:"session_id"`
	FollowerID    string    `json:"follower_id"`
	MasterAddress string    `json:"master_address"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// TradeDetected reports a new qualifying master swap.
type TradeDetected struct {
	EventMeta
	Version  uint64 `json:"version"`
	Function string `json:"function"`
}

// TradeExecuted reports a confirmed replica swap.
type TradeExecuted struct {
	EventMeta
	Version     uint64 `json:"version"`
	TxHash      string `json:"tx_hash"`
	InputAsset  string `json:"input_asset"`
	OutputAsset string `json:"output_asset"`
	Amount      string `json:"amount"`       // raw input amount
	AmountHuman string `json:"amount_human"` // empty when decimals are unknown
}

// TradeFailed reports a replica that could not be executed.
// Terminal failures stop the session.
type TradeFailed struct {
	EventMeta
	Version     uint64 `json:"version"`
	Reason      string `json:"reason"`
	Terminal    bool   `json:"terminal"`
	InputAsset  string `json:"input_asset,omitempty"`
	OutputAsset string `json:"output_asset,omitempty"`
	Amount      string `json:"amount,omitempty"`
	TxHash      string `json:"tx_hash,omitempty"` // set when the replica was submitted but aborted
}

func (e TradeDetected) Kind() EventKind { return EventTradeDetected }
func (e TradeDetected) Meta() EventMeta { return e.EventMeta }

func (e TradeExecuted) Kind() EventKind { return EventTradeExecuted }
func (e TradeExecuted) Meta() EventMeta { return e.EventMeta }

func (e TradeFailed) Kind() EventKind { return EventTradeFailed }
func (e TradeFailed) Meta() EventMeta { return e.EventMeta }
