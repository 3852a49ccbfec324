// Package walleterrors defines the error kinds the Qi wallet engine
// returns to callers, per spec §7. Argument-validation failures are
// plain sentinel errors (mirrors the teacher's internal/utils/errors.go);
// anything that crosses the Provider boundary is wrapped in ProviderError,
// a classified error type mirroring the teacher's chainadapter ChainError.
package walleterrors

import (
	"errors"
	"fmt"
)

// Argument validation errors — reject, never retried.
var (
	ErrInvalidZone        = errors.New("invalid zone")
	ErrInvalidAddress     = errors.New("invalid address")
	ErrInvalidPaymentCode = errors.New("invalid payment code")
	ErrInvalidPath        = errors.New("invalid derivation path")
)

// Derivation errors.
var (
	// ErrDerivationExhausted is returned when the Qi+zone retry cap
	// (≈10,000 attempts) is hit while seeking a matching address.
	ErrDerivationExhausted = errors.New("derivation attempts exhausted")

	// ErrDepthExceeded is returned when a path would derive past depth 255.
	ErrDepthExceeded = errors.New("derivation depth exceeds 255")

	// ErrHardenedWithoutPrivateKey is returned deriving a hardened child
	// from a key that carries no private key material.
	ErrHardenedWithoutPrivateKey = errors.New("hardened derivation requires a private key")
)

// Address book errors.
var (
	ErrAddressAlreadyImported = errors.New("address already imported")
	ErrAddressNotFound        = errors.New("address not found in address book")
)

// Coin selection / send errors.
var (
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrNoSpendableUTXOs    = errors.New("no spendable utxos")
	ErrDenominationTooSmall = errors.New("no outpoints at or above the required denomination")
)

// Broadcast / reconciliation.
var (
	// ErrHashMismatch is returned when the adapter's reported broadcast
	// hash does not match the locally computed transaction hash. Locally
	// recoverable by calling reconcile on the pending outpoints.
	ErrHashMismatch = errors.New("broadcast hash mismatch")
)

// Snapshot errors.
var (
	ErrCorruptSnapshot = errors.New("corrupt snapshot")
)

// ErrorClassification categorizes ProviderError for retry logic. Retries
// themselves live in the adapter (spec §5); the core only classifies.
type ErrorClassification int

const (
	Retryable ErrorClassification = iota
	NonRetryable
	UserIntervention
)

func (c ErrorClassification) String() string {
	switch c {
	case Retryable:
		return "Retryable"
	case NonRetryable:
		return "NonRetryable"
	case UserIntervention:
		return "UserIntervention"
	default:
		return "Unknown"
	}
}

// ProviderError wraps an error surfaced by the Provider (chain adapter)
// with a zone tag and retry classification, per spec §7.
type ProviderError struct {
	Zone           string
	Classification ErrorClassification
	Cause          error
}

func (e *ProviderError) Error() string {
	if e.Zone != "" {
		return fmt.Sprintf("provider error in zone %s: %v", e.Zone, e.Cause)
	}
	return fmt.Sprintf("provider error: %v", e.Cause)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError wraps cause as a ProviderError tagged with zone.
func NewProviderError(zone string, classification ErrorClassification, cause error) *ProviderError {
	return &ProviderError{Zone: zone, Classification: classification, Cause: cause}
}

// CorruptSnapshotf builds an ErrCorruptSnapshot-wrapping error with detail.
func CorruptSnapshotf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrCorruptSnapshot}, args...)...)
}

// InsufficientFundsf builds an ErrInsufficientFunds-wrapping error
// carrying the shortfall amount, per spec §7 ("surface with the
// shortfall amount if known").
func InsufficientFundsf(shortfall uint64) error {
	return fmt.Errorf("%w: short by %d", ErrInsufficientFunds, shortfall)
}
