package postgres

import (
	"context"
	"fmt"

	"aptos-copytrade/internal/domain"
	"aptos-copytrade/internal/storage"
)

// WalletStore is a read-only PostgreSQL implementation of storage.WalletStore.
type WalletStore struct {
	pool *Pool
}

// NewWalletStore creates a new PostgreSQL wallet store.
func NewWalletStore(pool *Pool) *WalletStore {
	return &WalletStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WalletStore = (*WalletStore)(nil)

// DefaultWallet retrieves the follower's default, non-deleted wallet.
// If several are flagged default, the most recent one wins.
func (s *WalletStore) DefaultWallet(ctx context.Context, followerID string) (*domain.Wallet, error) {
	if followerID == "" {
		return nil, storage.ErrInvalidInput
	}

	var w domain.Wallet
	err := s.pool.QueryRow(ctx, `
		SELECT id, follower_id, address, private_key, is_default
		FROM wallets
		WHERE follower_id = $1 AND is_default AND NOT is_deleted
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, followerID).Scan(&w.ID, &w.FollowerID, &w.Address, &w.PrivateKey, &w.IsDefault)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get default wallet: %w", err)
	}
	return &w, nil
}
