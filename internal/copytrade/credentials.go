package copytrade

import (
	"context"
	"errors"
	"fmt"

	"aptos-copytrade/internal/aptos"
	"aptos-copytrade/internal/storage"
)

// CredentialProvider resolves a follower's signing credential.
type CredentialProvider interface {
	Signer(ctx context.Context, followerID string) (aptos.Signer, error)
}

// WalletCredentials resolves the follower's default wallet from a WalletStore.
// The parsed key is returned to the caller and never cached.
type WalletCredentials struct {
	wallets storage.WalletStore
}

// NewWalletCredentials creates a provider backed by wallets.
func NewWalletCredentials(wallets storage.WalletStore) *WalletCredentials {
	return &WalletCredentials{wallets: wallets}
}

var _ CredentialProvider = (*WalletCredentials)(nil)

// Signer returns the follower's default wallet as a signer.
// Errors wrap ErrNoWallet or aptos.ErrInvalidPrivateKey when the credential is unusable.
func (c *WalletCredentials) Signer(ctx context.Context, followerID string) (aptos.Signer, error) {
	wallet, err := c.wallets.DefaultWallet(ctx, followerID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoWallet
	}
	if err != nil {
		return nil, fmt.Errorf("load default wallet: %w", err)
	}

	account, err := aptos.NewAccountFromHex(wallet.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("wallet %d: %w", wallet.ID, err)
	}
	return account.WithAddress(wallet.Address), nil
}

// isTerminalCredentialError reports whether err can only be fixed by the user.
func isTerminalCredentialError(err error) bool {
	return errors.Is(err, ErrNoWallet) || errors.Is(err, aptos.ErrInvalidPrivateKey)
}
