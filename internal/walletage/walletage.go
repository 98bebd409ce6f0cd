// Package walletage resolves wallet creation dates behind a rate-limited,
// circuit-broken HTTP client and a bounded expiring cache.
package walletage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mr-tron/base58"
)

var (
	ErrInvalidAddress = errors.New("walletage: invalid address")
	ErrNotFound       = errors.New("walletage: wallet not found")
)

// Lookup resolves the creation time of a wallet.
type Lookup interface {
	CreatedAt(ctx context.Context, address string) (time.Time, error)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(ctx context.Context, address string) (time.Time, error)

func (f LookupFunc) CreatedAt(ctx context.Context, address string) (time.Time, error) {
	return f(ctx, address)
}

// ValidateAddress checks that address is a base58-encoded 32-byte public key.
func ValidateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	raw, err := base58.Decode(address)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("%w: %d bytes", ErrInvalidAddress, len(raw))
	}
	return nil
}

// AgeDays returns the wallet age in days at now, never negative.
func AgeDays(created, now time.Time) float64 {
	d := now.Sub(created).Hours() / 24
	if d < 0 {
		return 0
	}
	return d
}
