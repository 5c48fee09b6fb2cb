// Package copytrade runs one polling runner per copy-trade session and
// replays the master's swaps from the follower's account.
package copytrade

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"aptos-copytrade/internal/aptos"
	"aptos-copytrade/internal/decoder"
	"aptos-copytrade/internal/domain"
	"aptos-copytrade/internal/executor"
	"aptos-copytrade/internal/notify"
	"aptos-copytrade/internal/observability"
	"aptos-copytrade/internal/storage"
)

// Default runner settings.
const (
	DefaultPollInterval  = 3 * time.Second
	DefaultQueueSize     = 16
	DefaultNotifyTimeout = 5 * time.Second
)

// Stop reasons.
const (
	StopInactive   = "inactive"
	StopDeleted    = "deleted"
	StopShutdown   = "shutdown"
	StopCredential = "credential"
)

// ReasonQueueFull is the TradeFailed reason for a swap rejected by a full dispatch queue.
const ReasonQueueFull = "dispatch queue full"

// State is a runner lifecycle state.
type State int32

// Runner states.
const (
	StateStarting State = iota
	StatePolling
	StateDispatching
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StatePolling:
		return "polling"
	case StateDispatching:
		return "dispatching"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// ChainReader reads the master's most recent transaction.
type ChainReader interface {
	GetLatestTransaction(ctx context.Context, address string) (*domain.Transaction, error)
}

// SwapDecoder turns a transaction into a swap intent.
// It returns decoder.ErrNotSwap or decoder.ErrMalformed for transactions to skip.
type SwapDecoder interface {
	Decode(ctx context.Context, tx domain.Transaction) (*domain.SwapIntent, error)
}

// TradeExecutor replays a swap intent and returns the confirmed transaction hash.
type TradeExecutor interface {
	Execute(ctx context.Context, signer aptos.Signer, intent *domain.SwapIntent) (string, error)
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Session       *domain.CopyTradeSession
	Store         storage.SessionStore
	Chain         ChainReader
	Decoder       SwapDecoder
	Executor      TradeExecutor
	Credentials   CredentialProvider
	Notifier      notify.Notifier // may be nil
	PollInterval  time.Duration   // Default: 3s
	QueueSize     int             // Default: 16 pending swaps per session
	NotifyTimeout time.Duration   // Default: 5s per event
	Rebaseline    bool            // move the watermark to the master's latest version before polling
	Logger        logrus.FieldLogger
}

// Runner polls one master address for one session.
//
// The watermark is persisted before a swap is queued, so a version is
// dispatched at most once. Queued swaps run one at a time on a worker
// goroutine; a slow execution does not delay the next poll.
type Runner struct {
	sessionID  string
	followerID string
	master     string

	store       storage.SessionStore
	chain       ChainReader
	decoder     SwapDecoder
	executor    TradeExecutor
	credentials CredentialProvider
	notifier    notify.Notifier

	interval      time.Duration
	notifyTimeout time.Duration
	rebaseline    bool
	log           logrus.FieldLogger
	now           func() time.Time

	state     atomic.Int32
	watermark atomic.Uint64

	queue         chan *domain.SwapIntent
	terminated    chan struct{}
	terminateOnce sync.Once
	done          chan struct{}
}

// NewRunner creates a runner for opts.Session.
func NewRunner(opts RunnerOptions) *Runner {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	notifyTimeout := opts.NotifyTimeout
	if notifyTimeout <= 0 {
		notifyTimeout = DefaultNotifyTimeout
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	s := opts.Session
	r := &Runner{
		sessionID:     s.ID,
		followerID:    s.FollowerID,
		master:        s.MasterAddress,
		store:         opts.Store,
		chain:         opts.Chain,
		decoder:       opts.Decoder,
		executor:      opts.Executor,
		credentials:   opts.Credentials,
		notifier:      opts.Notifier,
		interval:      interval,
		notifyTimeout: notifyTimeout,
		rebaseline:    opts.Rebaseline,
		log: log.WithFields(logrus.Fields{
			"session_id":  s.ID,
			"follower_id": s.FollowerID,
			"master":      domain.ShortAddress(s.MasterAddress),
		}),
		now:        time.Now,
		queue:      make(chan *domain.SwapIntent, queueSize),
		terminated: make(chan struct{}),
		done:       make(chan struct{}),
	}
	r.watermark.Store(s.LastSeenVersion)
	return r
}

// SessionID returns the id of the runner's session.
func (r *Runner) SessionID() string { return r.sessionID }

// State returns the current lifecycle state.
func (r *Runner) State() State { return State(r.state.Load()) }

// Watermark returns the highest processed version.
func (r *Runner) Watermark() uint64 { return r.watermark.Load() }

// Done is closed once the runner stopped and its in-flight execution finished.
func (r *Runner) Done() <-chan struct{} { return r.done }

// Run polls until the session becomes inactive, its credential proves unusable,
// or ctx is cancelled. An execution in flight at that moment is allowed to
// finish; swaps still queued are dropped.
func (r *Runner) Run(ctx context.Context) {
	defer close(r.done)

	observability.RecordRunnerStarted()
	observability.UpdateWatermark(r.sessionID, r.Watermark())
	r.log.WithField("watermark", r.Watermark()).Info("runner started")

	stopWorker := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.work(context.WithoutCancel(ctx), stopWorker)
	}()

	reason := r.loop(ctx)

	r.setState(StateStopped)
	close(stopWorker)
	wg.Wait()

	observability.RecordRunnerStopped(r.sessionID, reason)
	r.log.WithField("reason", reason).Info("runner stopped")
}

func (r *Runner) loop(ctx context.Context) string {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if reason, stop := r.tick(ctx); stop {
			return reason
		}
		select {
		case <-ctx.Done():
			return StopShutdown
		case <-r.terminated:
			return StopCredential
		case <-ticker.C:
		}
	}
}

// tick runs one poll iteration and reports whether the runner must stop.
func (r *Runner) tick(ctx context.Context) (string, bool) {
	select {
	case <-ctx.Done():
		return StopShutdown, true
	case <-r.terminated:
		return StopCredential, true
	default:
	}

	observability.RecordPollTick()

	session, err := r.store.GetByID(ctx, r.sessionID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return StopDeleted, true
	case err != nil:
		if ctx.Err() != nil {
			return StopShutdown, true
		}
		observability.RecordPollError("store")
		r.log.WithError(err).Warn("session read failed")
		return "", false
	case !session.Active:
		return StopInactive, true
	}
	r.raiseWatermark(session.LastSeenVersion)

	if r.State() == StateStarting && !r.baseline(ctx) {
		return "", false
	}

	tx, err := r.chain.GetLatestTransaction(ctx, r.master)
	if err != nil {
		observability.RecordPollError("chain")
		r.log.WithError(err).Warn("latest transaction fetch failed")
		return "", false
	}
	observability.RecordPollSuccess()

	if tx == nil || tx.Version <= r.Watermark() {
		return "", false
	}
	r.process(ctx, *tx)
	return "", false
}

// baseline moves a resumed session past the versions produced while it was not polled.
func (r *Runner) baseline(ctx context.Context) bool {
	if r.rebaseline {
		tx, err := r.chain.GetLatestTransaction(ctx, r.master)
		if err != nil {
			observability.RecordPollError("chain")
			r.log.WithError(err).Warn("baseline fetch failed")
			return false
		}
		if tx != nil && tx.Version > r.Watermark() {
			if err := r.advance(ctx, tx.Version); err != nil {
				observability.RecordPollError("store")
				r.log.WithError(err).Warn("baseline watermark update failed")
				return false
			}
			r.log.WithField("watermark", tx.Version).Info("watermark re-baselined")
		}
	}
	r.setState(StatePolling)
	return true
}

func (r *Runner) process(ctx context.Context, tx domain.Transaction) {
	log := r.log.WithFields(logrus.Fields{"version": tx.Version, "function": tx.Function})

	intent, err := r.decoder.Decode(ctx, tx)
	outcome := observability.OutcomeSwap
	switch {
	case errors.Is(err, decoder.ErrNotSwap):
		outcome = observability.OutcomeNotSwap
	case errors.Is(err, decoder.ErrMalformed):
		outcome = observability.OutcomeMalformed
		log.WithError(err).Warn("skipping malformed swap")
	case err != nil:
		observability.RecordPollError("decode")
		log.WithError(err).Warn("decode failed, retrying next tick")
		return
	}

	// Persisted before dispatch: a crash after this point loses the trade rather than repeating it.
	if err := r.advance(ctx, tx.Version); err != nil {
		observability.RecordPollError("store")
		log.WithError(err).Warn("watermark update failed, retrying next tick")
		return
	}
	observability.RecordDecoded(outcome)

	if outcome != observability.OutcomeSwap {
		log.Debug("skipped")
		return
	}
	r.dispatch(ctx, intent)
}

func (r *Runner) dispatch(ctx context.Context, intent *domain.SwapIntent) {
	r.setState(StateDispatching)
	defer r.setState(StatePolling)

	r.log.WithFields(logrus.Fields{
		"version":      intent.Version,
		"input_asset":  intent.InputAsset,
		"output_asset": intent.OutputAsset,
		"amount_raw":   intent.InputAmountRaw.String(),
	}).Info("trade detected")

	r.emit(ctx, domain.TradeDetected{
		EventMeta: r.meta(),
		Version:   intent.Version,
		Function:  intent.Function,
	})

	select {
	case r.queue <- intent:
	default:
		observability.RecordQueueRejected()
		r.emit(ctx, r.failed(intent, ReasonQueueFull, false))
	}
}

// work executes queued swaps one at a time.
func (r *Runner) work(ctx context.Context, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-r.terminated:
			return
		case intent := <-r.queue:
			select {
			case <-stop:
				return
			case <-r.terminated:
				return
			default:
			}
			r.execute(ctx, intent)
		}
	}
}

func (r *Runner) execute(ctx context.Context, intent *domain.SwapIntent) {
	signer, err := r.credentials.Signer(ctx, r.followerID)
	if err != nil {
		credErr := &executor.ExecutionError{Stage: executor.StageCredential, Err: err}
		if isTerminalCredentialError(err) {
			r.terminate(ctx, intent, credErr)
			return
		}
		r.emit(ctx, r.failed(intent, credErr.Error(), false))
		return
	}

	hash, err := r.executor.Execute(ctx, signer, intent)
	if err != nil {
		r.log.WithError(err).WithField("version", intent.Version).Warn("replica trade failed")
		event := r.failed(intent, err.Error(), false)
		event.TxHash = hash
		r.emit(ctx, event)
		return
	}

	executed := domain.TradeExecuted{
		EventMeta:   r.meta(),
		Version:     intent.Version,
		TxHash:      hash,
		InputAsset:  intent.InputAsset,
		OutputAsset: intent.OutputAsset,
		Amount:      intent.InputAmountRaw.String(),
	}
	if intent.DecimalsKnown {
		executed.AmountHuman = intent.InputAmountHuman.String()
	}
	r.emit(ctx, executed)
}

// terminate deactivates the session after an unusable credential.
func (r *Runner) terminate(ctx context.Context, intent *domain.SwapIntent, cause error) {
	r.log.WithError(cause).Error("unusable credential, stopping session")

	if err := r.store.SetActive(ctx, r.sessionID, false); err != nil {
		r.log.WithError(err).Error("deactivate session failed")
	}
	r.emit(ctx, r.failed(intent, cause.Error(), true))
	r.terminateOnce.Do(func() { close(r.terminated) })
}

func (r *Runner) failed(intent *domain.SwapIntent, reason string, terminal bool) domain.TradeFailed {
	return domain.TradeFailed{
		EventMeta:   r.meta(),
		Version:     intent.Version,
		Reason:      reason,
		Terminal:    terminal,
		InputAsset:  intent.InputAsset,
		OutputAsset: intent.OutputAsset,
		Amount:      intent.InputAmountRaw.String(),
	}
}

func (r *Runner) emit(ctx context.Context, event domain.Event) {
	if r.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, r.notifyTimeout)
	defer cancel()
	if err := r.notifier.Notify(ctx, event); err != nil {
		r.log.WithError(err).WithField("event", event.Kind()).Warn("notify failed")
	}
}

func (r *Runner) meta() domain.EventMeta {
	return domain.EventMeta{
		SessionID:     r.sessionID,
		FollowerID:    r.followerID,
		MasterAddress: r.master,
		OccurredAt:    r.now().UTC(),
	}
}

func (r *Runner) advance(ctx context.Context, version uint64) error {
	if err := r.store.SetWatermark(ctx, r.sessionID, version); err != nil {
		return err
	}
	r.raiseWatermark(version)
	return nil
}

// raiseWatermark moves the in-memory watermark up; it never goes down.
func (r *Runner) raiseWatermark(version uint64) {
	for {
		cur := r.watermark.Load()
		if version <= cur {
			return
		}
		if r.watermark.CompareAndSwap(cur, version) {
			observability.UpdateWatermark(r.sessionID, version)
			return
		}
	}
}

func (r *Runner) setState(s State) {
	r.state.Store(int32(s))
}
