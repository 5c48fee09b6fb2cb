package storage

import (
	"context"

	"aptos-copytrade/internal/domain"
)

// SessionStore provides access to copy_trading sessions.
// It is the single source of truth for the active flag and watermark of every session.
type SessionStore interface {
	// Create inserts a new session. Returns ErrDuplicateKey if the id exists or
	// the (follower, master) pair already has an active session.
	Create(ctx context.Context, s *domain.CopyTradeSession) error

	// GetByID retrieves a session by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.CopyTradeSession, error)

	// ListActive retrieves the active sessions of a follower, ordered by created_at ASC.
	ListActive(ctx context.Context, followerID string) ([]*domain.CopyTradeSession, error)

	// ListAllActive retrieves every active session, ordered by created_at ASC.
	ListAllActive(ctx context.Context) ([]*domain.CopyTradeSession, error)

	// SetActive flips the active flag. Returns ErrNotFound if the session does not exist,
	// ErrDuplicateKey when re-activating would create a second active session for the pair.
	SetActive(ctx context.Context, id string, active bool) error

	// SetWatermark raises last_seen_version to version. Lower or equal versions are ignored,
	// so the stored watermark never decreases. Returns ErrNotFound if the session does not exist.
	SetWatermark(ctx context.Context, id string, version uint64) error
}

// WalletStore provides read access to follower wallets.
type WalletStore interface {
	// DefaultWallet retrieves the follower's default, non-deleted wallet. Returns ErrNotFound if none.
	DefaultWallet(ctx context.Context, followerID string) (*domain.Wallet, error)
}

// TradeJournal provides access to the copy_trades journal.
type TradeJournal interface {
	// Insert appends a trade outcome. Returns ErrDuplicateKey if (session_id, master_version) exists.
	Insert(ctx context.Context, r *domain.CopyTradeRecord) error

	// GetBySession retrieves the outcomes of a session, ordered by master_version ASC.
	GetBySession(ctx context.Context, sessionID string) ([]*domain.CopyTradeRecord, error)
}
