package aptos

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Node error codes the engine reacts to.
const (
	ErrorCodeResourceNotFound    = "resource_not_found"
	ErrorCodeAccountNotFound     = "account_not_found"
	ErrorCodeTransactionNotFound = "transaction_not_found"
)

// ErrInvalidPrivateKey is returned when a credential cannot be parsed into an ed25519 key.
var ErrInvalidPrivateKey = errors.New("invalid ed25519 private key")

// APIError is a non-2xx response or a transport failure talking to the node.
type APIError struct {
	StatusCode  int    // 0 for transport failures
	ErrorCode   string // node error_code
	Message     string
	VMErrorCode *int64
	Err         error // underlying transport error, if any
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("aptos request failed: %s", e.Message)
	}
	if e.ErrorCode != "" {
		return fmt.Sprintf("aptos API error %d (%s): %s", e.StatusCode, e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("aptos API error %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// IsTransient reports whether retrying the same request later may succeed.
func (e *APIError) IsTransient() bool {
	return e.StatusCode == 0 ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

// IsNotFound reports whether the node answered 404 for the requested entity.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

type apiErrorBody struct {
	Message     string `json:"message"`
	ErrorCode   string `json:"error_code"`
	VMErrorCode *int64 `json:"vm_error_code"`
}

func newAPIError(status int, body []byte) *APIError {
	var parsed apiErrorBody
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Message == "" {
		return &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
	}
	return &APIError{
		StatusCode:  status,
		ErrorCode:   parsed.ErrorCode,
		Message:     parsed.Message,
		VMErrorCode: parsed.VMErrorCode,
	}
}

// IsNotFound reports whether err is a 404 from the node.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsNotFound()
}

// IsTransient reports whether err is worth retrying on a later tick.
func IsTransient(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsTransient()
}

// TransactionFailedError is a committed transaction whose VM execution aborted.
type TransactionFailedError struct {
	Hash     string
	VMStatus string
}

func (e *TransactionFailedError) Error() string {
	return fmt.Sprintf("transaction %s failed: %s", e.Hash, e.VMStatus)
}
