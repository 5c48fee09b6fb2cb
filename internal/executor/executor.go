// Package executor replays a decoded swap with a follower's key.
package executor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"aptos-copytrade/internal/aptos"
	"aptos-copytrade/internal/dex"
	"aptos-copytrade/internal/domain"
	"aptos-copytrade/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout          = 2 * time.Minute
	DefaultRegisterFunction = "0x1::managed_coin::register"
	alreadyRegisteredMarker = "ALREADY"
)

// DefaultSlippage is the tolerance applied to the router quote.
var DefaultSlippage = decimal.RequireFromString("0.005")

// Chain is the node surface the executor needs.
type Chain interface {
	HasResource(ctx context.Context, address, resourceType string) (bool, error)
	GetBalance(ctx context.Context, address, assetType string) (uint64, error)
	SignAndSubmit(ctx context.Context, signer aptos.Signer, payload *aptos.EntryFunctionPayload) (string, error)
	WaitForTransaction(ctx context.Context, hash string) error
}

// Options configures Executor.
type Options struct {
	Slippage   decimal.Decimal    // applied to the router quote; zero means DefaultSlippage
	Timeout    time.Duration      // bound on one whole execution; zero means DefaultTimeout
	LogBalance bool               // read the input balance before submitting, for logs only
	Logger     logrus.FieldLogger // nil means the standard logger
}

// Executor builds, signs, submits and confirms replica swaps.
type Executor struct {
	chain  Chain
	router dex.Router
	opts   Options
	log    logrus.FieldLogger
}

// New creates an Executor.
func New(chain Chain, router dex.Router, opts Options) *Executor {
	if opts.Slippage.IsZero() {
		opts.Slippage = DefaultSlippage
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Executor{chain: chain, router: router, opts: opts, log: log}
}

// Execute replays intent from signer's account and returns the confirmed transaction hash.
// The master's raw input amount is used as is; the follower's balance is neither checked nor scaled.
func (e *Executor) Execute(ctx context.Context, signer aptos.Signer, intent *domain.SwapIntent) (string, error) {
	start := time.Now()
	hash, err := e.execute(ctx, signer, intent)

	status := domain.TradeStatusExecuted
	if err != nil {
		status = domain.TradeStatusFailed
	}
	observability.RecordExecution(status, time.Since(start))
	return hash, err
}

func (e *Executor) execute(ctx context.Context, signer aptos.Signer, intent *domain.SwapIntent) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	log := e.log.WithFields(logrus.Fields{
		"follower":     domain.ShortAddress(signer.Address()),
		"version":      intent.Version,
		"input_asset":  intent.InputAsset,
		"output_asset": intent.OutputAsset,
		"amount_raw":   intent.InputAmountRaw.String(),
	})

	e.ensureRegistered(ctx, log, signer, intent.OutputAsset)

	if e.opts.LogBalance {
		if balance, err := e.chain.GetBalance(ctx, signer.Address(), intent.InputAsset); err != nil {
			log.WithError(err).Debug("balance read failed")
		} else {
			log.WithField("balance", balance).Debug("input balance before replica")
		}
	}

	expectedOut, err := e.router.Quote(ctx, intent.InputAsset, intent.OutputAsset, intent.InputAmountRaw)
	if err != nil {
		return "", &ExecutionError{Stage: StageQuote, Err: err}
	}

	payload := e.router.BuildSwapPayload(intent.InputAsset, intent.OutputAsset, intent.InputAmountRaw, expectedOut, e.opts.Slippage)
	if err := checkU64Arguments(payload); err != nil {
		return "", &ExecutionError{Stage: StageBuild, Err: err}
	}

	log.WithFields(logrus.Fields{
		"expected_out":   expectedOut.String(),
		"master_min_out": intent.QuotedMinOutRaw.String(),
		"slippage":       e.opts.Slippage.String(),
	}).Info("submitting replica swap")

	hash, err := e.chain.SignAndSubmit(ctx, signer, payload)
	if err != nil {
		return "", &ExecutionError{Stage: StageSubmit, Err: err}
	}

	if err := e.chain.WaitForTransaction(ctx, hash); err != nil {
		return hash, &ExecutionError{Stage: StageConfirm, Err: err}
	}

	log.WithField("tx_hash", hash).Info("replica swap confirmed")
	return hash, nil
}

// ensureRegistered makes the follower able to hold asset. It never fails the trade.
func (e *Executor) ensureRegistered(ctx context.Context, log logrus.FieldLogger, signer aptos.Signer, asset string) {
	log = log.WithField("asset", asset)

	has, err := e.chain.HasResource(ctx, signer.Address(), aptos.CoinStoreType(asset))
	if err == nil && has {
		observability.RecordRegistration(observability.RegistrationSkipped)
		return
	}
	if err != nil {
		log.WithError(err).Debug("coin store lookup failed, registering anyway")
	}

	payload := aptos.NewEntryFunctionPayload(DefaultRegisterFunction, []string{asset})
	hash, err := e.chain.SignAndSubmit(ctx, signer, payload)
	if err == nil {
		err = e.chain.WaitForTransaction(ctx, hash)
	}

	switch {
	case err == nil:
		observability.RecordRegistration(observability.RegistrationSubmitted)
		log.WithField("tx_hash", hash).Info("registered coin store")
	case IsAlreadyRegistered(err):
		observability.RecordRegistration(observability.RegistrationAlready)
		log.Debug("coin store already registered")
	default:
		observability.RecordRegistration(observability.RegistrationFailed)
		log.WithError(err).Warn("coin store registration failed, continuing with swap")
	}
}

// IsAlreadyRegistered reports whether a registration failed because the store exists.
func IsAlreadyRegistered(err error) bool {
	var failed *aptos.TransactionFailedError
	if errors.As(err, &failed) {
		return strings.Contains(strings.ToUpper(failed.VMStatus), alreadyRegisteredMarker)
	}
	var apiErr *aptos.APIError
	if errors.As(err, &apiErr) {
		return strings.Contains(strings.ToUpper(apiErr.Message), alreadyRegisteredMarker)
	}
	return false
}

var maxU64 = new(big.Int).SetUint64(^uint64(0))

// checkU64Arguments rejects numeric payload arguments that do not fit a Move u64.
func checkU64Arguments(payload *aptos.EntryFunctionPayload) error {
	for i, arg := range payload.Arguments {
		s, ok := arg.(string)
		if !ok {
			continue
		}
		v, ok := new(big.Int).SetString(s, 10)
		if !ok {
			continue
		}
		if v.Sign() < 0 || v.Cmp(maxU64) > 0 {
			return fmt.Errorf("argument %d (%s) does not fit u64", i, s)
		}
	}
	return nil
}
