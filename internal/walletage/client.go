package walletage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Config configures the HTTP lookup client.
type Config struct {
	BaseURL         string
	APIKey          string
	RateLimitRPS    float64
	Burst           int
	Timeout         time.Duration
	Retries         int
	RetryWait       time.Duration
	RetryMaxWait    time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// DefaultConfig returns conservative client limits.
func DefaultConfig() Config {
	return Config{
		RateLimitRPS:    5,
		Burst:           1,
		Timeout:         10 * time.Second,
		Retries:         3,
		RetryWait:       250 * time.Millisecond,
		RetryMaxWait:    5 * time.Second,
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

type createdResponse struct {
	Address   string `json:"address"`
	CreatedAt int64  `json:"created_at"` // unix seconds
}

// Client queries a wallet-history API for creation dates.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

var _ Lookup = (*Client)(nil)

// NewClient builds a client. Retries back off exponentially between
// RetryWait and RetryMaxWait; 429 and 5xx responses are retried.
func NewClient(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = def.RateLimitRPS
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = def.RetryWait
	}
	if cfg.RetryMaxWait <= 0 {
		cfg.RetryMaxWait = def.RetryMaxWait
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = def.BreakerFailures
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = def.BreakerTimeout
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(cfg.RetryMaxWait).
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		})
	if cfg.APIKey != "" {
		httpClient.SetHeader("X-API-Key", cfg.APIKey)
	}

	failures := cfg.BreakerFailures
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "walletage",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("walletage: breaker state change")
		},
	})

	return &Client{
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.Burst),
		breaker: breaker,
	}
}

// CreatedAt returns the creation time of address. Invalid addresses are
// rejected before any request is made.
func (c *Client) CreatedAt(ctx context.Context, address string) (time.Time, error) {
	if err := ValidateAddress(address); err != nil {
		return time.Time{}, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return time.Time{}, fmt.Errorf("walletage: rate limit wait: %w", err)
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		var body createdResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetPathParam("address", address).
			SetResult(&body).
			Get("/v1/wallets/{address}/created")
		if err != nil {
			return nil, fmt.Errorf("walletage: request %s: %w", address, err)
		}
		switch {
		case resp.StatusCode() == http.StatusNotFound:
			return nil, fmt.Errorf("%w: %s", ErrNotFound, address)
		case resp.IsError():
			return nil, fmt.Errorf("walletage: %s: status %d", address, resp.StatusCode())
		case body.CreatedAt <= 0:
			return nil, fmt.Errorf("%w: %s has no creation time", ErrNotFound, address)
		}
		return time.Unix(body.CreatedAt, 0).UTC(), nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return time.Time{}, fmt.Errorf("walletage: lookup unavailable: %w", err)
		}
		return time.Time{}, err
	}
	return out.(time.Time), nil
}
