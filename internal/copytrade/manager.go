package copytrade

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"aptos-copytrade/internal/domain"
	"aptos-copytrade/internal/notify"
	"aptos-copytrade/internal/storage"
)

// ManagerOptions contains configuration for creating a Manager.
type ManagerOptions struct {
	Sessions      storage.SessionStore
	Credentials   CredentialProvider
	Chain         ChainReader
	Decoder       SwapDecoder
	Executor      TradeExecutor
	Notifier      notify.Notifier
	PollInterval  time.Duration
	QueueSize     int
	NotifyTimeout time.Duration
	StopWait      time.Duration // Default: two poll intervals
	Logger        logrus.FieldLogger
}

// Manager is the control surface for copy-trade sessions.
// It owns the runners and keeps at most one per (follower, master) pair.
type Manager struct {
	opts     ManagerOptions
	log      logrus.FieldLogger
	registry *Registry
	newID    func() string
	now      func() time.Time
	stopWait time.Duration

	// startMu serializes session creation and runner registration of Start and Resume.
	startMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates a manager. Runners live until Shutdown.
func NewManager(opts ManagerOptions) *Manager {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	stopWait := opts.StopWait
	if stopWait <= 0 {
		interval := opts.PollInterval
		if interval <= 0 {
			interval = DefaultPollInterval
		}
		stopWait = 2 * interval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		opts:     opts,
		log:      log,
		registry: NewRegistry(),
		newID:    uuid.NewString,
		now:      time.Now,
		stopWait: stopWait,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Registry exposes the live runners.
func (m *Manager) Registry() *Registry { return m.registry }

// Start creates an active session for the pair and launches its runner.
// The watermark starts at the master's latest version so earlier history is never replayed.
// Chain and wallet reads run before startMu is taken, so a slow master never delays other starts.
func (m *Manager) Start(ctx context.Context, followerID, masterAddress string) (*domain.CopyTradeSession, error) {
	followerID = strings.TrimSpace(followerID)
	masterAddress = domain.NormalizeAddress(masterAddress)
	if followerID == "" || masterAddress == "" {
		return nil, fmt.Errorf("%w: follower id and master address are required", storage.ErrInvalidInput)
	}
	if !domain.IsValidAddress(masterAddress) {
		return nil, fmt.Errorf("%w: master address %q is not 0x-prefixed hex", storage.ErrInvalidInput, masterAddress)
	}
	if m.ctx.Err() != nil {
		return nil, errManagerShutdown
	}

	if _, err := m.opts.Credentials.Signer(ctx, followerID); err != nil {
		return nil, err
	}

	key := domain.NewPairKey(followerID, masterAddress)
	if err := m.ensureNoActive(ctx, key); err != nil {
		return nil, err
	}

	latest, err := m.opts.Chain.GetLatestTransaction(ctx, masterAddress)
	if err != nil {
		return nil, fmt.Errorf("read master latest transaction: %w", err)
	}
	var watermark uint64
	if latest != nil {
		watermark = latest.Version
	}

	now := m.now().UTC()
	session := &domain.CopyTradeSession{
		ID:              m.newID(),
		FollowerID:      followerID,
		MasterAddress:   masterAddress,
		Active:          true,
		LastSeenVersion: watermark,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	m.startMu.Lock()
	defer m.startMu.Unlock()

	if m.ctx.Err() != nil {
		return nil, errManagerShutdown
	}
	if err := m.opts.Sessions.Create(ctx, session); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, ErrSessionActive
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	if !m.launch(session, false) {
		if err := m.opts.Sessions.SetActive(ctx, session.ID, false); err != nil {
			m.log.WithError(err).WithField("session_id", session.ID).Error("deactivate orphan session failed")
		}
		return nil, ErrSessionActive
	}
	m.log.WithFields(logrus.Fields{
		"session_id":  session.ID,
		"follower_id": followerID,
		"master":      domain.ShortAddress(masterAddress),
		"watermark":   watermark,
	}).Info("copy trading started")
	return session, nil
}

// ensureNoActive rejects a pair that still has an active session. A runner whose
// session is already inactive but which has not observed it yet is waited for,
// at most stopWait.
func (m *Manager) ensureNoActive(ctx context.Context, key domain.PairKey) error {
	active, err := m.opts.Sessions.ListActive(ctx, key.FollowerID)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	for _, s := range active {
		if s.Key() == key {
			return ErrSessionActive
		}
	}

	r, ok := m.registry.Get(key)
	if !ok {
		return nil
	}
	session, err := m.opts.Sessions.GetByID(ctx, r.SessionID())
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return fmt.Errorf("get session: %w", err)
	case session.Active:
		return ErrSessionActive
	}

	timer := time.NewTimer(m.stopWait)
	defer timer.Stop()
	select {
	case <-r.Done():
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: previous runner is still stopping", ErrSessionActive)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop deactivates a follower's session. The runner stops at its next tick.
func (m *Manager) Stop(ctx context.Context, followerID, sessionID string) error {
	session, err := m.opts.Sessions.GetByID(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	if session.FollowerID != followerID {
		return ErrSessionNotFound
	}
	if !session.Active {
		return nil
	}

	if err := m.opts.Sessions.SetActive(ctx, sessionID, false); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("deactivate session: %w", err)
	}
	m.log.WithFields(logrus.Fields{
		"session_id":  sessionID,
		"follower_id": followerID,
		"master":      domain.ShortAddress(session.MasterAddress),
	}).Info("copy trading stop requested")
	return nil
}

// List returns the follower's active sessions.
func (m *Manager) List(ctx context.Context, followerID string) ([]*domain.CopyTradeSession, error) {
	return m.opts.Sessions.ListActive(ctx, followerID)
}

// Resume launches runners for every active session in the store and returns how many started.
// Resumed runners move their watermark to the master's latest version before polling.
func (m *Manager) Resume(ctx context.Context) (int, error) {
	sessions, err := m.opts.Sessions.ListAllActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active sessions: %w", err)
	}

	m.startMu.Lock()
	defer m.startMu.Unlock()

	started := 0
	for _, s := range sessions {
		if m.launch(s, true) {
			started++
		}
	}
	m.log.WithField("sessions", started).Info("copy trading resumed")
	return started, nil
}

// Shutdown cancels every runner and waits for them and their in-flight executions.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancel()
	return m.registry.Wait(ctx)
}

// launch registers and starts a runner for session unless its pair already has one.
func (m *Manager) launch(session *domain.CopyTradeSession, rebaseline bool) bool {
	r := NewRunner(RunnerOptions{
		Session:       session,
		Store:         m.opts.Sessions,
		Chain:         m.opts.Chain,
		Decoder:       m.opts.Decoder,
		Executor:      m.opts.Executor,
		Credentials:   m.opts.Credentials,
		Notifier:      m.opts.Notifier,
		PollInterval:  m.opts.PollInterval,
		QueueSize:     m.opts.QueueSize,
		NotifyTimeout: m.opts.NotifyTimeout,
		Rebaseline:    rebaseline,
		Logger:        m.log,
	})

	key := session.Key()
	if !m.registry.Insert(key, r) {
		return false
	}
	go func() {
		r.Run(m.ctx)
		m.registry.Remove(key, r)
	}()
	return true
}
