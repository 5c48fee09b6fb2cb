package aptos

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// SignAndSubmit builds a transaction for payload, signs it with signer and submits it.
// Returns the transaction hash.
func (c *Client) SignAndSubmit(ctx context.Context, signer Signer, payload *EntryFunctionPayload) (string, error) {
	account, err := c.GetAccount(ctx, signer.Address())
	if err != nil {
		return "", fmt.Errorf("get account: %w", err)
	}

	gasPrice, err := c.EstimateGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("estimate gas price: %w", err)
	}

	txn := &signedTransaction{
		Sender:                  signer.Address(),
		SequenceNumber:          strconv.FormatUint(account.SequenceNumber, 10),
		MaxGasAmount:            strconv.FormatUint(c.maxGasAmount, 10),
		GasUnitPrice:            strconv.FormatUint(gasPrice, 10),
		ExpirationTimestampSecs: strconv.FormatInt(c.now().Add(c.expiration).Unix(), 10),
		Payload:                 payload,
	}

	var signingMessage string
	if err := c.do(ctx, "encode_submission", http.MethodPost, "/transactions/encode_submission", txn, &signingMessage); err != nil {
		return "", fmt.Errorf("encode submission: %w", err)
	}
	message, err := hex.DecodeString(strings.TrimPrefix(signingMessage, hexPrefix))
	if err != nil {
		return "", fmt.Errorf("decode signing message: %w", err)
	}

	txn.Signature = &txSignature{
		Type:      "ed25519_signature",
		PublicKey: signer.PublicKeyHex(),
		Signature: hexPrefix + hex.EncodeToString(signer.Sign(message)),
	}

	var pending pendingTransaction
	if err := c.do(ctx, "submit_transaction", http.MethodPost, "/transactions", txn, &pending); err != nil {
		return "", fmt.Errorf("submit transaction: %w", err)
	}
	return pending.Hash, nil
}

// WaitForTransaction polls until hash is committed or ctx is done.
// A committed transaction that aborted returns *TransactionFailedError.
func (c *Client) WaitForTransaction(ctx context.Context, hash string) error {
	ticker := time.NewTicker(c.confirmationPoll)
	defer ticker.Stop()

	for {
		var tx rawTransaction
		err := c.do(ctx, "transaction_by_hash", http.MethodGet, "/transactions/by_hash/"+hash, nil, &tx)
		switch {
		case err == nil && tx.Type != TxTypePending:
			if !tx.Success {
				return &TransactionFailedError{Hash: hash, VMStatus: tx.VMStatus}
			}
			return nil
		case err != nil && !IsNotFound(err) && !IsTransient(err):
			return fmt.Errorf("wait for transaction %s: %w", hash, err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for transaction %s: %w", hash, ctx.Err())
		case <-ticker.C:
		}
	}
}
