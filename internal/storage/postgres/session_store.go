package postgres

import (
	"context"
	"fmt"

	"aptos-copytrade/internal/domain"
	"aptos-copytrade/internal/storage"
)

// SessionStore is a PostgreSQL implementation of storage.SessionStore.
// The partial unique index copy_trading_active_pair_uidx enforces one active
// session per (follower, lower(master)).
type SessionStore struct {
	pool *Pool
}

// NewSessionStore creates a new PostgreSQL session store.
func NewSessionStore(pool *Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SessionStore = (*SessionStore)(nil)

const sessionColumns = `id, follower_id, master_address, active, last_seen_version, created_at, updated_at`

// Create inserts a new session.
func (s *SessionStore) Create(ctx context.Context, session *domain.CopyTradeSession) error {
	if err := storage.ValidateSession(session); err != nil {
		return err
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO copy_trading (id, follower_id, master_address, active, last_seen_version)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, session.ID, session.FollowerID, session.MasterAddress, session.Active, int64(session.LastSeenVersion),
	).Scan(&session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetByID retrieves a session by its ID.
func (s *SessionStore) GetByID(ctx context.Context, id string) (*domain.CopyTradeSession, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM copy_trading WHERE id = $1`, id)

	session, err := scanSession(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// ListActive retrieves the active sessions of a follower.
func (s *SessionStore) ListActive(ctx context.Context, followerID string) ([]*domain.CopyTradeSession, error) {
	return s.query(ctx, `
		SELECT `+sessionColumns+`
		FROM copy_trading
		WHERE active AND follower_id = $1
		ORDER BY created_at ASC, id ASC
	`, followerID)
}

// ListAllActive retrieves every active session.
func (s *SessionStore) ListAllActive(ctx context.Context) ([]*domain.CopyTradeSession, error) {
	return s.query(ctx, `
		SELECT `+sessionColumns+`
		FROM copy_trading
		WHERE active
		ORDER BY created_at ASC, id ASC
	`)
}

// SetActive flips the active flag.
func (s *SessionStore) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE copy_trading
		SET active = $2, updated_at = NOW()
		WHERE id = $1
	`, id, active)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("set active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SetWatermark raises last_seen_version. The comparison runs inside the UPDATE,
// so concurrent writers can never lower it. Only the watermark columns are written.
func (s *SessionStore) SetWatermark(ctx context.Context, id string, version uint64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE copy_trading
		SET last_seen_version = $2, updated_at = NOW()
		WHERE id = $1 AND last_seen_version < $2
	`, id, int64(version))
	if err != nil {
		return fmt.Errorf("set watermark: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Nothing updated: either the watermark is already higher or the row is missing.
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM copy_trading WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check session: %w", err)
	}
	if !exists {
		return storage.ErrNotFound
	}
	return nil
}

func (s *SessionStore) query(ctx context.Context, sql string, args ...interface{}) ([]*domain.CopyTradeSession, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var result []*domain.CopyTradeSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		result = append(result, session)
	}
	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row scanner) (*domain.CopyTradeSession, error) {
	var (
		session domain.CopyTradeSession
		version int64
	)
	err := row.Scan(
		&session.ID,
		&session.FollowerID,
		&session.MasterAddress,
		&session.Active,
		&version,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	session.LastSeenVersion = uint64(version)
	return &session, nil
}
