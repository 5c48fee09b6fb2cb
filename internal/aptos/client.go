package aptos

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"aptos-copytrade/internal/domain"
)

// Default configuration values.
const (
	DefaultTimeout          = 30 * time.Second
	DefaultMaxRetries       = 3
	DefaultRetryDelay       = 1 * time.Second
	DefaultMaxDelay         = 10 * time.Second
	DefaultMaxGasAmount     = 200000
	DefaultExpiration       = 60 * time.Second
	DefaultConfirmationPoll = 1 * time.Second
)

// LatencyObserver receives the duration of every node request, labelled by endpoint.
type LatencyObserver func(endpoint string, d time.Duration, err error)

// Client is a REST client for an Aptos fullnode (v1 API).
// It serves both the read side (transactions, resources, balances) and submission.
type Client struct {
	http             *resty.Client
	maxGasAmount     uint64
	expiration       time.Duration
	confirmationPoll time.Duration
	observe          LatencyObserver
	now              func() time.Time
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.http.SetTimeout(d)
	}
}

// WithMaxRetries sets maximum retry attempts for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.http.SetRetryCount(n)
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.http.SetRetryWaitTime(d)
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.http.SetRetryMaxWaitTime(d)
	}
}

// WithMaxGasAmount sets the gas limit used for submitted transactions.
func WithMaxGasAmount(n uint64) ClientOption {
	return func(c *Client) {
		c.maxGasAmount = n
	}
}

// WithExpiration sets how long a submitted transaction stays valid.
func WithExpiration(d time.Duration) ClientOption {
	return func(c *Client) {
		c.expiration = d
	}
}

// WithConfirmationPoll sets the interval between confirmation lookups.
func WithConfirmationPoll(d time.Duration) ClientOption {
	return func(c *Client) {
		c.confirmationPoll = d
	}
}

// WithLatencyObserver registers a callback invoked after every request.
func WithLatencyObserver(fn LatencyObserver) ClientOption {
	return func(c *Client) {
		c.observe = fn
	}
}

// NewClient creates a new Aptos REST client for nodeURL (e.g. https://fullnode.mainnet.aptoslabs.com/v1).
func NewClient(nodeURL string, opts ...ClientOption) *Client {
	nodeURL = strings.TrimSuffix(nodeURL, "/")

	httpClient := resty.New().
		SetBaseURL(nodeURL).
		SetTimeout(DefaultTimeout).
		SetRetryCount(DefaultMaxRetries).
		SetRetryWaitTime(DefaultRetryDelay).
		SetRetryMaxWaitTime(DefaultMaxDelay).
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			code := resp.StatusCode()
			return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
		}).
		SetRetryAfter(func(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
			// Honour Retry-After on rate limiting; zero falls back to backoff.
			if resp != nil && resp.StatusCode() == http.StatusTooManyRequests {
				if secs, err := strconv.Atoi(resp.Header().Get("Retry-After")); err == nil {
					return time.Duration(secs) * time.Second, nil
				}
			}
			return 0, nil
		})

	c := &Client{
		http:             httpClient,
		maxGasAmount:     DefaultMaxGasAmount,
		expiration:       DefaultExpiration,
		confirmationPoll: DefaultConfirmationPoll,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do performs a request and decodes a successful JSON response into out.
func (c *Client) do(ctx context.Context, label, method, path string, body, out interface{}) error {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	start := time.Now()
	resp, err := req.Execute(method, path)
	if err != nil {
		err = &APIError{Message: err.Error(), Err: err}
	} else if !resp.IsSuccess() {
		err = newAPIError(resp.StatusCode(), resp.Body())
	}
	if c.observe != nil {
		c.observe(label, time.Since(start), err)
	}
	if err != nil {
		return err
	}

	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("unmarshal %s response: %w", label, err)
		}
	}
	return nil
}

// GetAccountTransactions returns the most recent transactions sent by address, oldest first.
func (c *Client) GetAccountTransactions(ctx context.Context, address string, limit int) ([]domain.Transaction, error) {
	path := fmt.Sprintf("/accounts/%s/transactions?limit=%d", url.PathEscape(address), limit)

	var raw []rawTransaction
	if err := c.do(ctx, "account_transactions", http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}

	txs := make([]domain.Transaction, 0, len(raw))
	for i := range raw {
		tx, err := raw[i].toDomain()
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// GetLatestTransaction returns the most recent transaction of address.
// Returns nil if the account has not sent any transaction yet.
func (c *Client) GetLatestTransaction(ctx context.Context, address string) (*domain.Transaction, error) {
	txs, err := c.GetAccountTransactions(ctx, address, 1)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(txs) == 0 {
		return nil, nil
	}
	latest := txs[len(txs)-1]
	return &latest, nil
}

// GetAccountResource decodes the data of a resource stored under address into out.
func (c *Client) GetAccountResource(ctx context.Context, address, resourceType string, out interface{}) error {
	path := fmt.Sprintf("/accounts/%s/resource/%s", url.PathEscape(address), url.PathEscape(resourceType))

	var res rawResource
	if err := c.do(ctx, "account_resource", http.MethodGet, path, nil, &res); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(res.Data, out); err != nil {
		return fmt.Errorf("unmarshal resource %s: %w", resourceType, err)
	}
	return nil
}

// HasResource reports whether address holds a resource of the given type.
func (c *Client) HasResource(ctx context.Context, address, resourceType string) (bool, error) {
	err := c.GetAccountResource(ctx, address, resourceType, nil)
	if err == nil {
		return true, nil
	}
	if IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// GetCoinInfo fetches the CoinInfo resource published by the coin's issuer.
func (c *Client) GetCoinInfo(ctx context.Context, coinType string) (*CoinInfo, error) {
	var info CoinInfo
	if err := c.GetAccountResource(ctx, IssuerAddress(coinType), CoinInfoType(coinType), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetCoinDecimals returns the decimals of a coin type.
func (c *Client) GetCoinDecimals(ctx context.Context, coinType string) (int32, error) {
	info, err := c.GetCoinInfo(ctx, coinType)
	if err != nil {
		return 0, err
	}
	return info.Decimals, nil
}

// GetBalance returns the spendable balance of assetType held by address, in the smallest unit.
func (c *Client) GetBalance(ctx context.Context, address, assetType string) (uint64, error) {
	path := fmt.Sprintf("/accounts/%s/balance/%s", url.PathEscape(address), url.PathEscape(assetType))

	var raw json.RawMessage
	if err := c.do(ctx, "balance", http.MethodGet, path, nil, &raw); err != nil {
		return 0, err
	}
	value := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	balance, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse balance %q: %w", value, err)
	}
	return balance, nil
}

// GetAccount returns the sequence number and authentication key of address.
func (c *Client) GetAccount(ctx context.Context, address string) (*AccountInfo, error) {
	var raw rawAccount
	if err := c.do(ctx, "account", http.MethodGet, "/accounts/"+url.PathEscape(address), nil, &raw); err != nil {
		return nil, err
	}
	seq, err := strconv.ParseUint(raw.SequenceNumber, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse sequence number %q: %w", raw.SequenceNumber, err)
	}
	return &AccountInfo{SequenceNumber: seq, AuthenticationKey: raw.AuthenticationKey}, nil
}

// EstimateGasPrice returns the node's current gas unit price estimate.
func (c *Client) EstimateGasPrice(ctx context.Context) (uint64, error) {
	var est gasEstimate
	if err := c.do(ctx, "estimate_gas_price", http.MethodGet, "/estimate_gas_price", nil, &est); err != nil {
		return 0, err
	}
	return est.GasEstimate, nil
}
