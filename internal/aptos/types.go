package aptos

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"aptos-copytrade/internal/domain"
)

// Transaction types returned by the node.
const (
	TxTypeUser    = "user_transaction"
	TxTypePending = "pending_transaction"
)

// PayloadTypeEntryFunction is the JSON payload type of entry function calls.
const PayloadTypeEntryFunction = "entry_function_payload"

// EntryFunctionPayload is a JSON-encoded entry function call.
type EntryFunctionPayload struct {
	Type          string        `json:"type"`
	Function      string        `json:"function"`
	TypeArguments []string      `json:"type_arguments"`
	Arguments     []interface{} `json:"arguments"`
}

// NewEntryFunctionPayload builds an entry function payload.
// u64 arguments must be passed as decimal strings.
func NewEntryFunctionPayload(function string, typeArgs []string, args ...interface{}) *EntryFunctionPayload {
	if typeArgs == nil {
		typeArgs = []string{}
	}
	if args == nil {
		args = []interface{}{}
	}
	return &EntryFunctionPayload{
		Type:          PayloadTypeEntryFunction,
		Function:      function,
		TypeArguments: typeArgs,
		Arguments:     args,
	}
}

// rawTransaction is the node's JSON view of a transaction.
type rawTransaction struct {
	Version   string      `json:"version"`
	Hash      string      `json:"hash"`
	Type      string      `json:"type"`
	Sender    string      `json:"sender"`
	Success   bool        `json:"success"`
	VMStatus  string      `json:"vm_status"`
	Timestamp string      `json:"timestamp"`
	Payload   *rawPayload `json:"payload"`
}

type rawPayload struct {
	Type          string            `json:"type"`
	Function      string            `json:"function"`
	TypeArguments []string          `json:"type_arguments"`
	Arguments     []json.RawMessage `json:"arguments"`
}

// toDomain converts a node transaction into the engine's record.
// Versions that do not parse are rejected; everything else is best effort.
func (t *rawTransaction) toDomain() (domain.Transaction, error) {
	version, err := strconv.ParseUint(t.Version, 10, 64)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("parse version %q: %w", t.Version, err)
	}
	ts, _ := strconv.ParseInt(t.Timestamp, 10, 64)

	tx := domain.Transaction{
		Version:   version,
		Hash:      t.Hash,
		Type:      t.Type,
		Sender:    t.Sender,
		Success:   t.Success,
		Timestamp: ts,
	}
	if t.Payload != nil {
		tx.Function = t.Payload.Function
		tx.TypeArguments = t.Payload.TypeArguments
		tx.Arguments = make([]string, len(t.Payload.Arguments))
		for i, arg := range t.Payload.Arguments {
			tx.Arguments[i] = renderArgument(arg)
		}
	}
	return tx, nil
}

// renderArgument unquotes JSON strings and keeps other values as raw JSON.
func renderArgument(arg json.RawMessage) string {
	var s string
	if err := json.Unmarshal(arg, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(arg))
}

// AccountInfo is the node's view of an account.
type AccountInfo struct {
	SequenceNumber    uint64
	AuthenticationKey string
}

type rawAccount struct {
	SequenceNumber    string `json:"sequence_number"`
	AuthenticationKey string `json:"authentication_key"`
}

// CoinInfo is the data of a 0x1::coin::CoinInfo resource.
type CoinInfo struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int32  `json:"decimals"`
}

type rawResource struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type gasEstimate struct {
	GasEstimate uint64 `json:"gas_estimate"`
}

type pendingTransaction struct {
	Hash string `json:"hash"`
}

// signedTransaction is the JSON submission body.
type signedTransaction struct {
	Sender                  string                `json:"sender"`
	SequenceNumber          string                `json:"sequence_number"`
	MaxGasAmount            string                `json:"max_gas_amount"`
	GasUnitPrice            string                `json:"gas_unit_price"`
	ExpirationTimestampSecs string                `json:"expiration_timestamp_secs"`
	Payload                 *EntryFunctionPayload `json:"payload"`
	Signature               *txSignature          `json:"signature,omitempty"`
}

type txSignature struct {
	Type      string `json:"type"`
	PublicKey string `json:"public_key"`
	Signature string `json:"signature"`
}

// CoinInfoType returns the CoinInfo resource type for a coin.
func CoinInfoType(coinType string) string {
	return "0x1::coin::CoinInfo<" + coinType + ">"
}

// CoinStoreType returns the CoinStore resource type for a coin.
func CoinStoreType(coinType string) string {
	return "0x1::coin::CoinStore<" + coinType + ">"
}

// IssuerAddress returns the account that published a Move type (the part before the first ::).
func IssuerAddress(moveType string) string {
	if i := strings.Index(moveType, "::"); i > 0 {
		return moveType[:i]
	}
	return moveType
}
