package copytrade

import (
	"context"
	"strings"
	"sync"

	"aptos-copytrade/internal/aptos"
	"aptos-copytrade/internal/decoder"
	"aptos-copytrade/internal/domain"
	"aptos-copytrade/internal/executor"
)

const (
	testFollower = "12345"
	testMaster   = "0x6b3720cd988adeaf721ed9d4730da4324d52364871a68eac62b46d21e4d2fa99"
	testSeedHex  = "0x1111111111111111111111111111111111111111111111111111111111111111"
)

func swapTx(version uint64) *domain.Transaction {
	return &domain.Transaction{
		Version:       version,
		Type:          "user_transaction",
		Success:       true,
		Function:      "0x190d::scripts_v2::swap",
		TypeArguments: []string{"0x1::aptos_coin::AptosCoin", "0xf22b::asset::USDT", "0x190d::curves::Uncorrelated"},
		Arguments:     []string{"1000000", "950000"},
	}
}

func transferTx(version uint64) *domain.Transaction {
	return &domain.Transaction{
		Version:   version,
		Function:  "0x1::coin::transfer",
		Arguments: []string{"0xabc", "1"},
	}
}

// fakeChain serves a settable latest transaction.
type fakeChain struct {
	mu     sync.Mutex
	latest *domain.Transaction
	errs   int // fail this many upcoming calls
	calls  int
}

func (c *fakeChain) GetLatestTransaction(_ context.Context, _ string) (*domain.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.errs > 0 {
		c.errs--
		return nil, &aptos.APIError{StatusCode: 503, Message: "unavailable"}
	}
	if c.latest == nil {
		return nil, nil
	}
	cp := *c.latest
	return &cp, nil
}

func (c *fakeChain) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *fakeChain) set(tx *domain.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest = tx
}

func (c *fakeChain) failNext(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = n
}

// fakeDecimals serves decimals for any asset.
type fakeDecimals struct {
	mu   sync.Mutex
	errs int
}

func (d *fakeDecimals) GetCoinDecimals(_ context.Context, _ string) (int32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.errs > 0 {
		d.errs--
		return 0, &aptos.APIError{StatusCode: 502, Message: "bad gateway"}
	}
	return 8, nil
}

func newTestDecoder(src *fakeDecimals) *decoder.Decoder {
	if src == nil {
		src = &fakeDecimals{}
	}
	return decoder.New(decoder.NewDecimalsCache(src, nil, nil))
}

// fakeExecutor records calls. When gate is set every call blocks until it is closed.
type fakeExecutor struct {
	mu          sync.Mutex
	versions    []uint64
	inFlight    int
	maxInFlight int
	fail        map[uint64]error
	gate        chan struct{}
	started     chan uint64
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{fail: make(map[uint64]error), started: make(chan uint64, 64)}
}

func (e *fakeExecutor) Execute(_ context.Context, _ aptos.Signer, intent *domain.SwapIntent) (string, error) {
	e.mu.Lock()
	e.versions = append(e.versions, intent.Version)
	e.inFlight++
	if e.inFlight > e.maxInFlight {
		e.maxInFlight = e.inFlight
	}
	gate := e.gate
	err := e.fail[intent.Version]
	e.mu.Unlock()

	e.started <- intent.Version
	if gate != nil {
		<-gate
	}

	e.mu.Lock()
	e.inFlight--
	e.mu.Unlock()

	if err != nil {
		return "", err
	}
	return "0xreplica", nil
}

func (e *fakeExecutor) calls() []uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]uint64(nil), e.versions...)
}

func (e *fakeExecutor) setFail(version uint64, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fail[version] = err
}

// staticCredentials returns a fixed signer or error.
type staticCredentials struct {
	mu  sync.Mutex
	err error
}

func (c *staticCredentials) Signer(_ context.Context, _ string) (aptos.Signer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return aptos.NewAccountFromHex(testSeedHex)
}

// recordingNotifier keeps every event.
type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.Event
}

func (n *recordingNotifier) Notify(_ context.Context, event domain.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) ofKind(kind domain.EventKind) []domain.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []domain.Event
	for _, e := range n.events {
		if e.Kind() == kind {
			out = append(out, e)
		}
	}
	return out
}

func (n *recordingNotifier) failures() []domain.TradeFailed {
	var out []domain.TradeFailed
	for _, e := range n.ofKind(domain.EventTradeFailed) {
		out = append(out, e.(domain.TradeFailed))
	}
	return out
}

func isQueueFull(f domain.TradeFailed) bool {
	return strings.Contains(f.Reason, ReasonQueueFull)
}

var errInsufficient = &executor.ExecutionError{
	Stage: executor.StageConfirm,
	Err:   &aptos.TransactionFailedError{Hash: "0xdead", VMStatus: "Move abort in 0x1::coin: EINSUFFICIENT_BALANCE(0x10006)"},
}
