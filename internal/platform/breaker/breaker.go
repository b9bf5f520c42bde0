// Package breaker wraps market data providers with a circuit breaker so a
// failing upstream fails each day fast instead of waiting on timeouts.
package breaker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"stock_pipeline/internal/feature/prices/domain/entity"
	"stock_pipeline/internal/feature/prices/usecase"
)

// Config holds the trip thresholds.
type Config struct {
	Name                string
	ConsecutiveFailures uint32        // trips after this many failures in a row
	Timeout             time.Duration // open -> half-open delay
	Interval            time.Duration // closed-state counter reset period; 0 never resets
}

// Provider decorates a usecase.Provider with a gobreaker.CircuitBreaker.
type Provider struct {
	inner usecase.Provider
	cb    *gobreaker.CircuitBreaker
}

var _ usecase.Provider = (*Provider)(nil)

// NewProvider wraps inner. Zero thresholds fall back to 5 failures and a 30s timeout.
func NewProvider(inner usecase.Provider, cfg Config) *Provider {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "provider"
	}
	threshold := cfg.ConsecutiveFailures
	st := gobreaker.Settings{
		Name:     cfg.Name,
		Interval: cfg.Interval,
		Timeout:  cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// 呼び出し側のキャンセルは上流の障害ではない
		IsSuccessful: func(err error) bool {
			var ce *callerCanceledError
			return err == nil || errors.As(err, &ce)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &Provider{inner: inner, cb: gobreaker.NewCircuitBreaker(st)}
}

// callerCanceledError marks a failure that happened because the caller's own
// context ended. An upstream timeout on the HTTP client is not one of these.
type callerCanceledError struct{ err error }

func (e *callerCanceledError) Error() string { return e.err.Error() }
func (e *callerCanceledError) Unwrap() error { return e.err }

// Download forwards to the wrapped provider unless the breaker is open.
func (p *Provider) Download(ctx context.Context, tickers []string, start, end entity.TradingDay, interval string) (*entity.QuoteTable, error) {
	res, err := p.cb.Execute(func() (interface{}, error) {
		table, err := p.inner.Download(ctx, tickers, start, end, interval)
		if err != nil && ctx.Err() != nil {
			return nil, &callerCanceledError{err: err}
		}
		return table, err
	})
	if err != nil {
		var ce *callerCanceledError
		if errors.As(err, &ce) {
			return nil, ce.err
		}
		return nil, err
	}
	table, _ := res.(*entity.QuoteTable)
	return table, nil
}

// State reports the breaker state, e.g. "closed" or "open".
func (p *Provider) State() string {
	return p.cb.State().String()
}
