package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"aptos-copytrade/internal/domain"
	"aptos-copytrade/internal/storage"
)

// SessionStore is an in-memory implementation of storage.SessionStore.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.CopyTradeSession
	now      func() time.Time
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*domain.CopyTradeSession),
		now:      time.Now,
	}
}

// Compile-time interface check.
var _ storage.SessionStore = (*SessionStore)(nil)

// Create inserts a new session.
func (s *SessionStore) Create(_ context.Context, session *domain.CopyTradeSession) error {
	if err := storage.ValidateSession(session); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return storage.ErrDuplicateKey
	}
	if session.Active && s.activePairLocked(session.Key(), "") {
		return storage.ErrDuplicateKey
	}

	cp := *session
	now := s.now().UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = cp.CreatedAt
	}
	s.sessions[cp.ID] = &cp
	session.CreatedAt, session.UpdatedAt = cp.CreatedAt, cp.UpdatedAt
	return nil
}

// GetByID retrieves a session by its ID.
func (s *SessionStore) GetByID(_ context.Context, id string) (*domain.CopyTradeSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *session
	return &cp, nil
}

// ListActive retrieves the active sessions of a follower.
func (s *SessionStore) ListActive(_ context.Context, followerID string) ([]*domain.CopyTradeSession, error) {
	return s.list(func(session *domain.CopyTradeSession) bool {
		return session.Active && session.FollowerID == followerID
	}), nil
}

// ListAllActive retrieves every active session.
func (s *SessionStore) ListAllActive(_ context.Context) ([]*domain.CopyTradeSession, error) {
	return s.list(func(session *domain.CopyTradeSession) bool {
		return session.Active
	}), nil
}

// SetActive flips the active flag.
func (s *SessionStore) SetActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return storage.ErrNotFound
	}
	if active && !session.Active && s.activePairLocked(session.Key(), id) {
		return storage.ErrDuplicateKey
	}
	session.Active = active
	session.UpdatedAt = s.now().UTC()
	return nil
}

// SetWatermark raises the watermark; lower or equal versions are ignored.
func (s *SessionStore) SetWatermark(_ context.Context, id string, version uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return storage.ErrNotFound
	}
	if version > session.LastSeenVersion {
		session.LastSeenVersion = version
		session.UpdatedAt = s.now().UTC()
	}
	return nil
}

func (s *SessionStore) list(keep func(*domain.CopyTradeSession) bool) []*domain.CopyTradeSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CopyTradeSession
	for _, session := range s.sessions {
		if keep(session) {
			cp := *session
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// activePairLocked reports whether another active session (other than exceptID) holds key.
func (s *SessionStore) activePairLocked(key domain.PairKey, exceptID string) bool {
	for id, session := range s.sessions {
		if id != exceptID && session.Active && session.Key() == key {
			return true
		}
	}
	return false
}
