package memory

import (
	"context"
	"sync"

	"aptos-copytrade/internal/domain"
	"aptos-copytrade/internal/storage"
)

// WalletStore is an in-memory implementation of storage.WalletStore.
type WalletStore struct {
	mu      sync.RWMutex
	wallets map[string]*domain.Wallet // followerID -> default wallet
}

// NewWalletStore creates a new in-memory wallet store.
func NewWalletStore() *WalletStore {
	return &WalletStore{
		wallets: make(map[string]*domain.Wallet),
	}
}

// Compile-time interface check.
var _ storage.WalletStore = (*WalletStore)(nil)

// Put sets the default wallet of w.FollowerID, replacing any previous one.
func (s *WalletStore) Put(w *domain.Wallet) error {
	if w == nil || w.FollowerID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *w
	cp.IsDefault = true
	s.wallets[w.FollowerID] = &cp
	return nil
}

// DefaultWallet retrieves the follower's default wallet.
func (s *WalletStore) DefaultWallet(_ context.Context, followerID string) (*domain.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.wallets[followerID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *w
	return &cp, nil
}
